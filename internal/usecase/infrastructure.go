package usecase

import (
	"context"

	"github.com/DRSN-tech/image-fingerprint/internal/domain"
)

// ModelSessionProvider отдаёт кэшированное состояние сессии модели.
type ModelSessionProvider interface {
	// Session при первом вызове загружает модель, далее возвращает кэш.
	Session() *domain.ModelSession
	// State возвращает состояние без попытки загрузки.
	State() domain.ModelState
}

type ImageDecoder interface {
	Decode(raw domain.RawImage) (*domain.DecodedImage, string, error)
}

type TensorPreprocessor interface {
	ToTensor(img *domain.DecodedImage) (*domain.Tensor, error)
}

type HandcraftedExtractor interface {
	Extract(raw domain.RawImage) ([]float32, error)
}

type HasherInfra interface {
	ContentHash(data []byte) domain.ContentHash
	PerceptualHash(img *domain.DecodedImage) (string, error)
	PerceptualDistance(a, b string) (int, error)
}

type FetcherInfra interface {
	Fetch(ctx context.Context, url string) (*FetchImageRes, error)
}

type ImagesInfra interface {
	UploadOriginal(ctx context.Context, req *UploadOriginalReq) (*UploadOriginalRes, error)
	CleanupImages(keys []string)
}

type EventProducer interface {
	PublishFingerprintEvent(ctx context.Context, event *FingerprintEvent) error
}
