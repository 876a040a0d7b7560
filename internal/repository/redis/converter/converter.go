package converter

import "github.com/DRSN-tech/image-fingerprint/internal/domain"

type FingerprintConverter struct{}

func NewFingerprintConverter() FingerprintConverter {
	return FingerprintConverter{}
}

func (FingerprintConverter) ToRedisModel(entity *domain.Fingerprint) *FingerprintRedisModel {
	return &FingerprintRedisModel{
		ContentHash:    entity.ContentHash.String(),
		PerceptualHash: entity.PerceptualHash,
		Vector:         entity.Vector.Float32(),
		Source:         string(entity.Source),
		ModelVersion:   entity.ModelVersion,
		ObjectKey:      entity.ObjectKey,
		Width:          entity.Width,
		Height:         entity.Height,
		CreatedAt:      entity.CreatedAt,
	}
}

func (FingerprintConverter) ToEntity(model *FingerprintRedisModel) *domain.Fingerprint {
	return &domain.Fingerprint{
		ContentHash:    domain.ContentHash(model.ContentHash),
		PerceptualHash: model.PerceptualHash,
		Vector:         domain.FeatureVector(model.Vector),
		Source:         domain.Source(model.Source),
		ModelVersion:   model.ModelVersion,
		ObjectKey:      model.ObjectKey,
		Width:          model.Width,
		Height:         model.Height,
		CreatedAt:      model.CreatedAt,
	}
}
