package minio

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DRSN-tech/image-fingerprint/internal/domain"
	"github.com/DRSN-tech/image-fingerprint/internal/usecase"
	"github.com/DRSN-tech/image-fingerprint/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	mu        sync.Mutex
	uploaded  []*domain.Image
	deleted   []string
	failFirst int
	deletes   int
}

func (r *fakeRepo) Upload(_ context.Context, image *domain.Image) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.uploaded = append(r.uploaded, image)
	return image.ObjectKey, nil
}

func (r *fakeRepo) Exists(_ context.Context, key string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, img := range r.uploaded {
		if img.ObjectKey == key {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeRepo) Delete(_ context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deletes++
	if r.deletes <= r.failFirst {
		return errors.New("minio: slow down")
	}
	r.deleted = append(r.deleted, key)
	return nil
}

var hash = domain.ContentHash(strings.Repeat("ab", 32))

func TestUploadOriginal_KeyFromHash(t *testing.T) {
	repo := &fakeRepo{}
	infra := NewMinioInfrastructure(repo, Config{Bucket: "fp", Prefix: "originals"}, logger.NewNopLogger(), context.Background())

	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\x0dIHDR")
	res, err := infra.UploadOriginal(context.Background(), usecase.NewUploadOriginalReq(hash, png, ""))
	require.NoError(t, err)

	assert.Equal(t, "originals/"+hash.String()+".png", res.ObjectKey)
	require.Len(t, repo.uploaded, 1)
	assert.Equal(t, "fp", repo.uploaded[0].Bucket)
	assert.Equal(t, "image/png", repo.uploaded[0].ContentType)
	assert.Equal(t, int64(len(png)), repo.uploaded[0].Size)
	assert.Equal(t, hash.String(), repo.uploaded[0].Metadata["Content-Sha256"])

	res, err = infra.UploadOriginal(context.Background(), usecase.NewUploadOriginalReq(hash, []byte("whatever"), "image/jpeg"))
	require.NoError(t, err)
	assert.Equal(t, "originals/"+hash.String()+".jpg", res.ObjectKey)
}

func TestUploadOriginal_SkipsStoredObject(t *testing.T) {
	repo := &fakeRepo{}
	infra := NewMinioInfrastructure(repo, Config{Bucket: "fp", Prefix: "originals"}, logger.NewNopLogger(), context.Background())

	for i := 0; i < 2; i++ {
		res, err := infra.UploadOriginal(context.Background(), usecase.NewUploadOriginalReq(hash, []byte("jpeg"), "image/jpeg"))
		require.NoError(t, err)
		assert.Equal(t, "originals/"+hash.String()+".jpg", res.ObjectKey)
		assert.Equal(t, i == 0, res.Created)
	}
	assert.Len(t, repo.uploaded, 1)
}

func TestUploadOriginal_InvalidHash(t *testing.T) {
	infra := NewMinioInfrastructure(&fakeRepo{}, Config{}, logger.NewNopLogger(), context.Background())

	_, err := infra.UploadOriginal(context.Background(), usecase.NewUploadOriginalReq("../etc", []byte{1}, "image/png"))
	assert.Error(t, err)
}

func TestCleanupImages_RetriesAndWaits(t *testing.T) {
	repo := &fakeRepo{failFirst: 1}
	infra := NewMinioInfrastructure(repo, Config{CleanupAttempts: 3}, logger.NewNopLogger(), context.Background())

	infra.CleanupImages([]string{"originals/a.png"})
	infra.CleanupImages(nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, infra.WaitForCleanup(ctx))

	assert.Equal(t, []string{"originals/a.png"}, repo.deleted)
	assert.Equal(t, 2, repo.deletes)
}

func TestCleanupImages_StopsOnShutdown(t *testing.T) {
	repo := &fakeRepo{failFirst: 100}
	shutdown, stop := context.WithCancel(context.Background())
	infra := NewMinioInfrastructure(repo, Config{CleanupAttempts: 5}, logger.NewNopLogger(), shutdown)

	infra.CleanupImages([]string{"a", "b"})
	stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, infra.WaitForCleanup(ctx))
	assert.Empty(t, repo.deleted)
}
