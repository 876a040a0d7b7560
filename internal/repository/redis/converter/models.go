package converter

import "time"

// FingerprintRedisModel — JSON-представление отпечатка в кэше.
type FingerprintRedisModel struct {
	ContentHash    string    `json:"content_hash"`
	PerceptualHash string    `json:"perceptual_hash,omitempty"`
	Vector         []float32 `json:"vector"`
	Source         string    `json:"source"`
	ModelVersion   string    `json:"model_version"`
	ObjectKey      string    `json:"object_key"`
	Width          int       `json:"width"`
	Height         int       `json:"height"`
	CreatedAt      time.Time `json:"created_at"`
}
