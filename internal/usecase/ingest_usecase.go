package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/DRSN-tech/image-fingerprint/internal/domain"
	"github.com/DRSN-tech/image-fingerprint/pkg/e"
	"github.com/DRSN-tech/image-fingerprint/pkg/jitter"
	"github.com/DRSN-tech/image-fingerprint/pkg/logger"
	"github.com/google/uuid"
)

const (
	DefaultSimilarLimit = 10
	MaxSimilarLimit     = 100

	backgroundTimeout = 500 * time.Millisecond
)

// RetryPolicy задаёт повтор извлечения признаков при e.ErrInference.
type RetryPolicy struct {
	MaxAttempts int
	Base        time.Duration
	Max         time.Duration
}

// IngestUseCase регистрирует изображения продуктов в реестре отпечатков и ищет похожие.
type IngestUseCase struct {
	fingerprints     FingerprintUC
	decoder          ImageDecoder
	hasher           HasherInfra
	txManager        TxManager
	fingerprintRepo  FingerprintRepository
	productImageRepo ProductImageRepository
	indexRepo        IndexRepository
	cacheRepo        CacheRepository
	imagesInfra      ImagesInfra
	producer         EventProducer
	retry            RetryPolicy
	logger           logger.Logger
}

func NewIngestUC(
	fingerprints FingerprintUC,
	decoder ImageDecoder,
	hasher HasherInfra,
	txManager TxManager,
	fingerprintRepo FingerprintRepository,
	productImageRepo ProductImageRepository,
	indexRepo IndexRepository,
	cacheRepo CacheRepository,
	imagesInfra ImagesInfra,
	producer EventProducer,
	retry RetryPolicy,
	logger logger.Logger,
) *IngestUseCase {
	if retry.MaxAttempts <= 0 {
		retry.MaxAttempts = 1
	}

	return &IngestUseCase{
		fingerprints:     fingerprints,
		decoder:          decoder,
		hasher:           hasher,
		txManager:        txManager,
		fingerprintRepo:  fingerprintRepo,
		productImageRepo: productImageRepo,
		indexRepo:        indexRepo,
		cacheRepo:        cacheRepo,
		imagesInfra:      imagesInfra,
		producer:         producer,
		retry:            retry,
		logger:           logger,
	}
}

// IngestProductImage регистрирует изображение продукта.
// Побайтный повтор уже известного изображения только связывается с продуктом, без пересчёта отпечатка.
// Новое изображение проходит извлечение признаков, сохраняется в MinIO, реестре и индексе подобия.
func (i *IngestUseCase) IngestProductImage(ctx context.Context, req *IngestImageReq) (*IngestImageRes, error) {
	const op = "IngestUseCase.IngestProductImage"

	if req.ProductID <= 0 {
		return nil, e.Wrap(op, e.ErrInvalidProductID)
	}
	if len(req.Image.Data) == 0 {
		return nil, e.Wrap(op, e.ErrNoImages)
	}

	hash := i.hasher.ContentHash(req.Image.Data)

	existing, err := i.lookup(ctx, hash)
	if err != nil {
		return nil, e.Wrap(op, err)
	}
	if existing != nil {
		return i.linkDuplicate(ctx, req.ProductID, existing)
	}

	img, _, err := i.decoder.Decode(domain.NewRawImage(req.Image.Data, ""))
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	result, err := i.extractWithRetry(ctx, req.Image.Data)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	phash, err := i.hasher.PerceptualHash(img)
	if err != nil {
		i.logger.Warnf("perceptual hash failed, storing without it: hash=%s err=%v", hash, err)
	}

	uploadRes, err := i.imagesInfra.UploadOriginal(ctx, NewUploadOriginalReq(hash, req.Image.Data, req.Image.MimeType))
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	fp := domain.NewFingerprint(hash, phash, result, uploadRes.ObjectKey, img.Width, img.Height)

	var linked bool
	err = i.txManager.Do(ctx, func(ctx context.Context) error {
		if err := i.fingerprintRepo.Upsert(ctx, fp); err != nil {
			return err
		}

		var err error
		linked, err = i.productImageRepo.Link(ctx, domain.NewProductImage(req.ProductID, hash))
		if err != nil {
			return err
		}

		// Индекс пишется внутри транзакции: при его ошибке запись реестра откатывается
		embedding := domain.NewEmbedding(PointID(hash), fp.Vector.Float32(), domain.NewPayload(req.ProductID, fp))
		return i.indexRepo.Upsert(ctx, []domain.Embedding{*embedding})
	})
	if err != nil {
		// чужой объект мог уже попасть в реестр параллельной регистрацией, удаляем только свой
		if uploadRes.Created {
			i.logger.Warnf("Cleaning up orphaned original after registry failure. hash: %s, error: %v", hash, e.Wrap(op, err))
			i.imagesInfra.CleanupImages([]string{uploadRes.ObjectKey})
		}
		return nil, e.Wrap(op, err)
	}

	i.cacheInBackground(fp)
	i.publish(ctx, NewFingerprintEvent(EventFingerprintCreated, req.ProductID, fp))

	return NewIngestImageRes(fp, linked), nil
}

// FindSimilar ищет побайтный дубликат образца и ближайшие к нему изображения в индексе.
// Сравниваются только векторы той же версии модели.
func (i *IngestUseCase) FindSimilar(ctx context.Context, req *FindSimilarReq) (*FindSimilarRes, error) {
	const op = "IngestUseCase.FindSimilar"

	limit := req.Limit
	if limit == 0 {
		limit = DefaultSimilarLimit
	}
	if limit < 0 || limit > MaxSimilarLimit {
		return nil, e.Wrap(op, e.ErrInvalidLimit)
	}
	if len(req.Image.Data) == 0 {
		return nil, e.Wrap(op, e.ErrNoImages)
	}

	hash := i.hasher.ContentHash(req.Image.Data)

	existing, err := i.lookup(ctx, hash)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	result, err := i.extractWithRetry(ctx, req.Image.Data)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	candidates, err := i.indexRepo.Search(ctx, result.Vector.Float32(), limit, result.ModelVersion)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	hashes := make([]domain.ContentHash, 0, len(candidates)+1)
	for _, c := range candidates {
		hashes = append(hashes, c.ContentHash)
	}
	if existing != nil {
		hashes = append(hashes, existing.ContentHash)
	}

	products := map[domain.ContentHash][]int64{}
	if len(hashes) > 0 {
		products, err = i.productImageRepo.ProductIDsByHashes(ctx, hashes)
		if err != nil {
			return nil, e.Wrap(op, err)
		}
	}

	queryPHash := i.queryPerceptualHash(req.Image.Data, existing)

	res := &FindSimilarRes{ContentHash: hash, Similar: make([]SimilarImageInfo, 0, len(candidates))}
	if existing != nil {
		res.ExactMatch = &ExactMatch{Fingerprint: existing, ProductIDs: products[existing.ContentHash]}
	}
	for _, c := range candidates {
		res.Similar = append(res.Similar, SimilarImageInfo{
			Image:         c,
			ProductIDs:    products[c.ContentHash],
			NearDuplicate: c.ContentHash == hash || i.nearDuplicate(queryPHash, c.PerceptualHash),
		})
	}

	return res, nil
}

// PointID — детерминированный идентификатор точки индекса для хэша содержимого.
// Повторная запись того же изображения перезаписывает точку, а не создаёт новую.
func PointID(hash domain.ContentHash) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(hash)).String()
}

// lookup ищет отпечаток сначала в кэше, затем в реестре. nil без ошибки — изображение новое.
func (i *IngestUseCase) lookup(ctx context.Context, hash domain.ContentHash) (*domain.Fingerprint, error) {
	fp, err := i.cacheRepo.GetFingerprint(ctx, hash)
	if err == nil {
		return fp, nil
	}
	if !errors.Is(err, e.ErrCacheMiss) {
		i.logger.Warnf("fingerprint cache unavailable, falling back to registry: %v", err)
	}

	fp, err = i.fingerprintRepo.GetByHash(ctx, hash)
	if err != nil {
		if errors.Is(err, e.ErrFingerprintNotFound) {
			return nil, nil
		}
		return nil, err
	}

	i.cacheInBackground(fp)
	return fp, nil
}

func (i *IngestUseCase) linkDuplicate(ctx context.Context, productID int64, fp *domain.Fingerprint) (*IngestImageRes, error) {
	const op = "IngestUseCase.linkDuplicate"

	linked, err := i.productImageRepo.Link(ctx, domain.NewProductImage(productID, fp.ContentHash))
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	if linked {
		i.publish(ctx, NewFingerprintEvent(EventProductImageLinked, productID, fp))
	}
	i.logger.Infof("duplicate upload linked without recomputing: product_id=%d hash=%s", productID, fp.ContentHash)

	return NewDuplicateIngestRes(fp, linked), nil
}

// extractWithRetry повторяет извлечение только при e.ErrInference с экспоненциальной задержкой и джиттером.
func (i *IngestUseCase) extractWithRetry(ctx context.Context, data []byte) (*domain.FeatureExtractionResult, error) {
	const op = "IngestUseCase.extractWithRetry"

	for attempt := 0; ; attempt++ {
		res, err := i.fingerprints.ExtractFeaturesFromBuffer(ctx, data)
		if err == nil {
			return res, nil
		}
		if !errors.Is(err, e.ErrInference) || attempt == i.retry.MaxAttempts-1 {
			return nil, e.Wrap(op, err)
		}

		sleepTime := jitter.ExponentialBackoff(i.retry.Base, i.retry.Max, attempt, jitter.DefaultJitter)
		i.logger.Warnf("inference failed, retrying in %v (attempt %d)", sleepTime, attempt+1)

		if err := jitter.Sleep(ctx, sleepTime); err != nil {
			return nil, e.Wrap(op, err)
		}
	}
}

func (i *IngestUseCase) queryPerceptualHash(data []byte, existing *domain.Fingerprint) string {
	if existing != nil && existing.PerceptualHash != "" {
		return existing.PerceptualHash
	}

	img, _, err := i.decoder.Decode(domain.NewRawImage(data, ""))
	if err != nil {
		return ""
	}
	phash, err := i.hasher.PerceptualHash(img)
	if err != nil {
		return ""
	}
	return phash
}

func (i *IngestUseCase) nearDuplicate(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	dist, err := i.hasher.PerceptualDistance(a, b)
	if err != nil {
		return false
	}
	return dist <= domain.NearDuplicateDistance
}

// cacheInBackground кладёт отпечаток в кэш, не задерживая ответ.
func (i *IngestUseCase) cacheInBackground(fp *domain.Fingerprint) {
	const op = "IngestUseCase.cacheInBackground"

	go func() {
		bgCtx, cancel := context.WithTimeout(context.Background(), backgroundTimeout)
		defer cancel()

		if err := i.cacheRepo.SetFingerprint(bgCtx, fp); err != nil {
			i.logger.Warnf("Failed to cache fingerprint in background: %v", e.Wrap(op, err))
		}
	}()
}

// publish отправляет событие. Ошибка брокера не отменяет уже зафиксированную регистрацию.
func (i *IngestUseCase) publish(ctx context.Context, event *FingerprintEvent) {
	const op = "IngestUseCase.publish"

	if err := i.producer.PublishFingerprintEvent(ctx, event); err != nil {
		i.logger.Errorf(e.Wrap(op, err), "failed to publish %s event for %s", event.Type, event.ContentHash)
	}
}
