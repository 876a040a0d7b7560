package minio

import (
	"context"
	"fmt"
	"path"
	"sync"
	"time"

	"github.com/DRSN-tech/image-fingerprint/internal/domain"
	"github.com/DRSN-tech/image-fingerprint/internal/infrastructure"
	"github.com/DRSN-tech/image-fingerprint/internal/usecase"
	"github.com/DRSN-tech/image-fingerprint/pkg/e"
	"github.com/DRSN-tech/image-fingerprint/pkg/jitter"
	"github.com/DRSN-tech/image-fingerprint/pkg/logger"
)

const (
	cleanupTimeout     = 30 * time.Second
	cleanupBaseBackoff = time.Second
	cleanupMaxBackoff  = 8 * time.Second

	contentHashMetaKey = "Content-Sha256"
)

// Config параметры хранения оригиналов.
type Config struct {
	Bucket          string
	Prefix          string
	CleanupAttempts int
}

// MinioInfrastructure сохраняет оригиналы изображений и подчищает осиротевшие объекты.
type MinioInfrastructure struct {
	minioRepo   usecase.ImageRepository
	cfg         Config
	logger      logger.Logger
	shutdownCtx context.Context
	wg          sync.WaitGroup
}

func NewMinioInfrastructure(minioRepo usecase.ImageRepository, cfg Config, logger logger.Logger, shutdownCtx context.Context) *MinioInfrastructure {
	if cfg.CleanupAttempts <= 0 {
		cfg.CleanupAttempts = 3
	}

	return &MinioInfrastructure{
		minioRepo:   minioRepo,
		cfg:         cfg,
		logger:      logger,
		shutdownCtx: shutdownCtx,
	}
}

// UploadOriginal сохраняет оригинал под ключом, производным от хэша содержимого.
// Объект с тем же ключом уже содержит те же байты, поэтому повторная загрузка пропускается.
func (m *MinioInfrastructure) UploadOriginal(ctx context.Context, req *usecase.UploadOriginalReq) (*usecase.UploadOriginalRes, error) {
	const op = "MinioInfrastructure.UploadOriginal"

	if !req.ContentHash.Valid() {
		return nil, e.Wrap(op, fmt.Errorf("invalid content hash %q", req.ContentHash))
	}

	mime := infrastructure.DetectMIME(req.Data, req.MimeType)
	ext, _ := infrastructure.GetExtensionFromMIME(mime)

	key := m.ObjectKey(req.ContentHash, ext)
	exists, err := m.minioRepo.Exists(ctx, key)
	if err != nil {
		return nil, e.Wrap(op, err)
	}
	if exists {
		m.logger.Debugf("%s: original %s already stored", op, key)
		return usecase.NewUploadOriginalRes(key, false), nil
	}

	image := domain.NewImage(m.cfg.Bucket, key, req.Data, mime)
	image.Metadata[contentHashMetaKey] = req.ContentHash.String()
	key, err = m.minioRepo.Upload(ctx, image)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	return usecase.NewUploadOriginalRes(key, true), nil
}

// ObjectKey строит ключ вида <prefix>/<hash>.<ext>.
func (m *MinioInfrastructure) ObjectKey(hash domain.ContentHash, ext string) string {
	return path.Join(m.cfg.Prefix, hash.String()+"."+ext)
}

// CleanupImages запускает фоновую очистку указанных ключей MinIO
func (m *MinioInfrastructure) CleanupImages(keys []string) {
	if len(keys) == 0 {
		return
	}
	m.wg.Add(1)
	go m.cleanupUploadedKeys(keys)
}

// cleanupUploadedKeys удаляет указанные объекты из MinIO с экспоненциальной задержкой и jitter.
func (m *MinioInfrastructure) cleanupUploadedKeys(keys []string) {
	defer m.wg.Done()
	const op = "MinioInfrastructure.cleanupUploadedKeys"
	m.logger.Infof("%s: cleaning up %d orphaned object(s)", op, len(keys))

	ctx, cancel := context.WithTimeout(m.shutdownCtx, cleanupTimeout)
	defer cancel()

	for _, key := range keys {
		if err := m.deleteWithRetry(ctx, key); err != nil {
			m.logger.Warnf("%s: key=%s: %v", op, key, err)
			if ctx.Err() != nil {
				return
			}
		}
	}
}

func (m *MinioInfrastructure) deleteWithRetry(ctx context.Context, key string) error {
	var err error
	for attempt := 0; attempt < m.cfg.CleanupAttempts; attempt++ {
		if err = m.minioRepo.Delete(ctx, key); err == nil {
			return nil
		}
		if attempt == m.cfg.CleanupAttempts-1 {
			break
		}

		backoff := jitter.ExponentialBackoff(cleanupBaseBackoff, cleanupMaxBackoff, attempt, jitter.DefaultJitter)
		if serr := jitter.Sleep(ctx, backoff); serr != nil {
			return fmt.Errorf("cleanup interrupted by shutdown: %w", serr)
		}
	}
	return err
}

// WaitForCleanup ожидает завершения всех фоновых задач очистки с учётом таймаута завершения приложения.
func (m *MinioInfrastructure) WaitForCleanup(shutdownTimeoutCtx context.Context) error {
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-shutdownTimeoutCtx.Done():
		return fmt.Errorf("minio cleanup timeout during shutdown: %w", shutdownTimeoutCtx.Err())
	}
}
