package redis

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/DRSN-tech/image-fingerprint/internal/domain"
	"github.com/DRSN-tech/image-fingerprint/internal/repository/redis/converter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFingerprintKey(t *testing.T) {
	assert.Equal(t, "fingerprint:abc", fingerprintKey(domain.ContentHash("abc")))
}

func TestUnmarshalFingerprint(t *testing.T) {
	conv := converter.NewFingerprintConverter()
	fp := &domain.Fingerprint{
		ContentHash:  "abc",
		Vector:       domain.FeatureVector{0.6, 0.8},
		Source:       domain.SourceModel,
		ModelVersion: "m-v1",
		ObjectKey:    "originals/abc.png",
		Width:        3,
		Height:       2,
		CreatedAt:    time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	}

	data, err := json.Marshal(conv.ToRedisModel(fp))
	require.NoError(t, err)

	model, err := unmarshalFingerprint(data)
	require.NoError(t, err)
	assert.Equal(t, fp, conv.ToEntity(model))

	_, err = unmarshalFingerprint([]byte("{broken"))
	assert.Error(t, err)
}
