package converter

import (
	"testing"
	"time"

	"github.com/DRSN-tech/image-fingerprint/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFingerprintConverter_PreservesVectorAndSource(t *testing.T) {
	conv := NewFingerprintConverter()
	vec := make(domain.FeatureVector, domain.FeatureDim)
	vec[3] = 1

	fp := &domain.Fingerprint{
		ContentHash:    domain.ContentHash("ab"),
		PerceptualHash: "p:8000000000000000",
		Vector:         vec,
		Source:         domain.SourceHandcrafted,
		ModelVersion:   domain.HandcraftedVersion,
		ObjectKey:      "originals/ab.png",
		Width:          640,
		Height:         480,
		CreatedAt:      time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}

	m := conv.ToModel(fp)
	require.NotNil(t, m)
	assert.Equal(t, "handcrafted", m.Source)
	assert.Equal(t, int32(640), m.Width)

	back := conv.ToEntity(m)
	assert.Equal(t, fp, back)

	// сущность не делит память с моделью
	m.Vector[3] = 0
	assert.Equal(t, float32(1), back.Vector[3])
}

func TestConverters_Nil(t *testing.T) {
	assert.Nil(t, NewFingerprintConverter().ToModel(nil))
	assert.Nil(t, NewFingerprintConverter().ToEntity(nil))
	assert.Nil(t, NewProductImageConverter().ToModel(nil))
	assert.Nil(t, NewProductImageConverter().ToEntity(nil))
}
