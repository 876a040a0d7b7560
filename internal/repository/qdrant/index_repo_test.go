package qdrant

import (
	"testing"

	"github.com/DRSN-tech/image-fingerprint/internal/domain"
	"github.com/qdrant/go-client/qdrant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToSimilarImage(t *testing.T) {
	fp := &domain.Fingerprint{
		ContentHash:    domain.ContentHash("c0ffee"),
		PerceptualHash: "p:00ff00ff00ff00ff",
		ObjectKey:      "originals/c0ffee.jpg",
		Source:         domain.SourceModel,
		ModelVersion:   "m-v2",
	}
	payload := qdrant.NewValueMap(domain.NewPayload(42, fp))

	img, ok := toSimilarImage(payload, 0.91)
	require.True(t, ok)
	assert.Equal(t, domain.SimilarImage{
		ContentHash:    "c0ffee",
		PerceptualHash: "p:00ff00ff00ff00ff",
		ProductID:      42,
		ImagePath:      "originals/c0ffee.jpg",
		Score:          0.91,
	}, img)
}

func TestToSimilarImage_MissingHash(t *testing.T) {
	_, ok := toSimilarImage(map[string]*qdrant.Value{}, 1)
	assert.False(t, ok)

	_, ok = toSimilarImage(nil, 1)
	assert.False(t, ok)
}

func TestVersionFilter(t *testing.T) {
	f := versionFilter("m-v2")
	require.Len(t, f.GetMust(), 1)

	field := f.GetMust()[0].GetField()
	assert.Equal(t, domain.PayloadModelVersion, field.GetKey())
	assert.Equal(t, "m-v2", field.GetMatch().GetKeyword())
}
