package domain

import (
	"encoding/hex"
	"time"
)

// ContentHashHexLen — длина hex-представления SHA-256.
const ContentHashHexLen = 64

// ContentHash — hex-представление криптографического хэша исходных байтов изображения.
// Совпадение хэшей означает побайтно одинаковые загрузки.
type ContentHash string

// Valid проверяет, что хэш имеет вид 64 hex-символов.
func (h ContentHash) Valid() bool {
	if len(h) != ContentHashHexLen {
		return false
	}
	_, err := hex.DecodeString(string(h))
	return err == nil
}

func (h ContentHash) String() string {
	return string(h)
}

// Source — происхождение вектора признаков.
type Source string

const (
	SourceModel       Source = "model"
	SourceHandcrafted Source = "handcrafted"
)

// HandcraftedVersion — версия набора ручных признаков, указывается вместо версии модели.
const HandcraftedVersion = "handcrafted-v1"

// NearDuplicateDistance — расстояние Хэмминга между dHash, не выше которого изображения считаются визуально одинаковыми.
const NearDuplicateDistance = 10

// FeatureExtractionResult связывает вектор с его происхождением.
// Векторы из разных источников не сравнимы между собой.
type FeatureExtractionResult struct {
	Vector       FeatureVector
	Source       Source
	ModelVersion string
}

func NewFeatureExtractionResult(vector FeatureVector, source Source, modelVersion string) *FeatureExtractionResult {
	return &FeatureExtractionResult{
		Vector:       vector,
		Source:       source,
		ModelVersion: modelVersion,
	}
}

// Fingerprint — запись реестра отпечатков: одна на каждое уникальное по байтам изображение.
type Fingerprint struct {
	ContentHash    ContentHash
	PerceptualHash string
	Vector         FeatureVector
	Source         Source
	ModelVersion   string
	ObjectKey      string
	Width          int
	Height         int
	CreatedAt      time.Time
}

func NewFingerprint(
	hash ContentHash,
	perceptualHash string,
	res *FeatureExtractionResult,
	objectKey string,
	width, height int,
) *Fingerprint {
	return &Fingerprint{
		ContentHash:    hash,
		PerceptualHash: perceptualHash,
		Vector:         res.Vector,
		Source:         res.Source,
		ModelVersion:   res.ModelVersion,
		ObjectKey:      objectKey,
		Width:          width,
		Height:         height,
		CreatedAt:      time.Now().UTC(),
	}
}

// ProductImage связывает продукт каталога с отпечатком изображения.
type ProductImage struct {
	ProductID   int64
	ContentHash ContentHash
	CreatedAt   time.Time
}

func NewProductImage(productID int64, hash ContentHash) *ProductImage {
	return &ProductImage{
		ProductID:   productID,
		ContentHash: hash,
	}
}
