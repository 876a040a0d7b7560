package usecase

import (
	"context"

	"github.com/DRSN-tech/image-fingerprint/internal/domain"
)

// FingerprintUC — публичные операции извлечения признаков.
// Обученный и ручной пути намеренно разведены по разным методам: их векторы не сравнимы.
type FingerprintUC interface {
	ExtractFeaturesFromBuffer(ctx context.Context, data []byte) (*domain.FeatureExtractionResult, error)
	ExtractFeaturesFromURL(ctx context.Context, url string) (*domain.FeatureExtractionResult, error)
	ExtractHandcrafted(ctx context.Context, data []byte) (*domain.FeatureExtractionResult, error)
	ExtractBatch(ctx context.Context, req *ExtractBatchReq) (*ExtractBatchRes, error)
	ComputeContentHash(data []byte) domain.ContentHash
	ModelStatus() *ModelStatusRes
	WarmUp() domain.ModelState
}

// IngestUC — регистрация изображений продуктов и поиск похожих.
type IngestUC interface {
	IngestProductImage(ctx context.Context, req *IngestImageReq) (*IngestImageRes, error)
	FindSimilar(ctx context.Context, req *FindSimilarReq) (*FindSimilarRes, error)
}
