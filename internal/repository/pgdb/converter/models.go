package converter

import "time"

// FingerprintModel представляет запись таблицы fingerprints в PostgreSQL.
type FingerprintModel struct {
	ContentHash    string    `db:"content_hash"`
	PerceptualHash string    `db:"perceptual_hash"`
	Vector         []float32 `db:"vector"`
	Source         string    `db:"source"`
	ModelVersion   string    `db:"model_version"`
	ObjectKey      string    `db:"object_key"`
	Width          int32     `db:"width"`
	Height         int32     `db:"height"`
	CreatedAt      time.Time `db:"created_at"`
}

// ProductImageModel представляет запись таблицы product_images в PostgreSQL.
type ProductImageModel struct {
	ProductID   int64     `db:"product_id"`
	ContentHash string    `db:"content_hash"`
	CreatedAt   time.Time `db:"created_at"`
}
