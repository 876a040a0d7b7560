package converter

import (
	"github.com/DRSN-tech/image-fingerprint/internal/domain"
)

// FingerprintConverter преобразует отпечатки между domain и моделью PostgreSQL.
type FingerprintConverter struct{}

func NewFingerprintConverter() FingerprintConverter {
	return FingerprintConverter{}
}

func (FingerprintConverter) ToModel(entity *domain.Fingerprint) *FingerprintModel {
	if entity == nil {
		return nil
	}

	return &FingerprintModel{
		ContentHash:    entity.ContentHash.String(),
		PerceptualHash: entity.PerceptualHash,
		Vector:         entity.Vector.Float32(),
		Source:         string(entity.Source),
		ModelVersion:   entity.ModelVersion,
		ObjectKey:      entity.ObjectKey,
		Width:          int32(entity.Width),
		Height:         int32(entity.Height),
		CreatedAt:      entity.CreatedAt,
	}
}

func (FingerprintConverter) ToEntity(model *FingerprintModel) *domain.Fingerprint {
	if model == nil {
		return nil
	}

	return &domain.Fingerprint{
		ContentHash:    domain.ContentHash(model.ContentHash),
		PerceptualHash: model.PerceptualHash,
		Vector:         domain.FeatureVector(append([]float32(nil), model.Vector...)),
		Source:         domain.Source(model.Source),
		ModelVersion:   model.ModelVersion,
		ObjectKey:      model.ObjectKey,
		Width:          int(model.Width),
		Height:         int(model.Height),
		CreatedAt:      model.CreatedAt,
	}
}

// ProductImageConverter преобразует связи продукт-изображение.
type ProductImageConverter struct{}

func NewProductImageConverter() ProductImageConverter {
	return ProductImageConverter{}
}

func (ProductImageConverter) ToModel(entity *domain.ProductImage) *ProductImageModel {
	if entity == nil {
		return nil
	}

	return &ProductImageModel{
		ProductID:   entity.ProductID,
		ContentHash: entity.ContentHash.String(),
		CreatedAt:   entity.CreatedAt,
	}
}

func (ProductImageConverter) ToEntity(model *ProductImageModel) *domain.ProductImage {
	if model == nil {
		return nil
	}

	return &domain.ProductImage{
		ProductID:   model.ProductID,
		ContentHash: domain.ContentHash(model.ContentHash),
		CreatedAt:   model.CreatedAt,
	}
}
