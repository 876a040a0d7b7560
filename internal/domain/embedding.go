package domain

import "time"

// Payload описывает дополнительную информацию вектора в индексе
type Payload map[string]any

// Embedding представляет точку индекса подобия: отпечаток одного уникального изображения
type Embedding struct {
	ID      string
	Vector  []float32
	Payload Payload
}

func NewEmbedding(id string, vector []float32, payload Payload) *Embedding {
	return &Embedding{
		ID:      id,
		Vector:  vector,
		Payload: payload,
	}
}

// Ключи полезной нагрузки точки индекса
const (
	PayloadProductID      = "product_id"
	PayloadContentHash    = "content_hash"
	PayloadPerceptualHash = "perceptual_hash"
	PayloadImagePath      = "image_path"
	PayloadSource         = "source"
	PayloadCreatedAt      = "created_at"
	PayloadModelVersion   = "model_version"
)

func NewPayload(productID int64, fp *Fingerprint) Payload {
	return Payload{
		PayloadProductID:      productID,
		PayloadContentHash:    fp.ContentHash.String(),
		PayloadPerceptualHash: fp.PerceptualHash,
		PayloadImagePath:      fp.ObjectKey,
		PayloadSource:         string(fp.Source),
		PayloadCreatedAt:      time.Now().UTC().UnixNano(),
		PayloadModelVersion:   fp.ModelVersion,
	}
}

// SimilarImage — кандидат из индекса подобия
type SimilarImage struct {
	ContentHash    ContentHash
	PerceptualHash string
	ProductID      int64 // продукт, с которым изображение было загружено впервые
	ImagePath      string
	Score          float32
}
