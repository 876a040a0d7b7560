package usecase

import (
	"context"

	"github.com/DRSN-tech/image-fingerprint/internal/domain"
)

// TxManager выполняет fn в транзакции: репозитории берут её из контекста.
type TxManager interface {
	Do(ctx context.Context, fn func(ctx context.Context) error) error
}

type FingerprintRepository interface {
	Upsert(ctx context.Context, fp *domain.Fingerprint) error
	// GetByHash возвращает e.ErrFingerprintNotFound, если отпечатка нет.
	GetByHash(ctx context.Context, hash domain.ContentHash) (*domain.Fingerprint, error)
}

type ProductImageRepository interface {
	// Link идемпотентно связывает продукт с изображением. created=false, если связь уже была.
	Link(ctx context.Context, image *domain.ProductImage) (bool, error)
	ProductIDsByHashes(ctx context.Context, hashes []domain.ContentHash) (map[domain.ContentHash][]int64, error)
}

type ImageRepository interface {
	Upload(ctx context.Context, image *domain.Image) (string, error)
	Exists(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) error
}

type IndexRepository interface {
	Upsert(ctx context.Context, embeddings []domain.Embedding) error
	Search(ctx context.Context, vector []float32, limit int, modelVersion string) ([]domain.SimilarImage, error)
}

type CacheRepository interface {
	// GetFingerprint возвращает e.ErrCacheMiss, если записи нет.
	GetFingerprint(ctx context.Context, hash domain.ContentHash) (*domain.Fingerprint, error)
	SetFingerprint(ctx context.Context, fp *domain.Fingerprint) error
}
