package cfg

import (
	"testing"
	"time"

	"github.com/DRSN-tech/image-fingerprint/pkg/e"
	"github.com/DRSN-tech/image-fingerprint/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("POSTGRES_USER", "fp")
	t.Setenv("POSTGRES_PASSWORD", "secret")
	t.Setenv("POSTGRES_DB", "fingerprints")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	c, err := Load(logger.NewNopLogger())
	require.NoError(t, err)

	assert.Equal(t, "/models/feature_extractor.onnx", c.Model.Path)
	assert.Equal(t, 224, c.Model.InputSize)
	assert.Equal(t, 8*time.Second, c.Fetch.Timeout)
	assert.Equal(t, int64(10<<20), c.Fetch.MaxBytes)
	assert.Zero(t, c.Fetch.RatePerSec)
	assert.Equal(t, uint64(256), c.Qdrant.VectorSize)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, c.Kafka.Brokers)
	assert.Equal(t, "image-fingerprints", c.Kafka.Topic)
	assert.Equal(t, 3*time.Second, c.Redis.Timeout)
	assert.Equal(t, "8080", c.Http.Port)
	assert.Equal(t, 15*time.Second, c.Shutdown)
}

func TestLoad_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("MODEL_PATH", "/opt/models/clip.onnx")
	t.Setenv("MODEL_INPUT_SIZE", "336")
	t.Setenv("FETCH_TIMEOUT", "2s")
	t.Setenv("FETCH_RATE_PER_SEC", "2.5")
	t.Setenv("EXTRACT_TIMEOUT", "750ms")
	t.Setenv("WRITE_TIMEOUT", "9s")

	c, err := Load(logger.NewNopLogger())
	require.NoError(t, err)

	assert.Equal(t, "/opt/models/clip.onnx", c.Model.Path)
	assert.Equal(t, 336, c.Model.InputSize)
	assert.Equal(t, 2*time.Second, c.Fetch.Timeout)
	assert.Equal(t, 2.5, c.Fetch.RatePerSec)
	assert.Equal(t, 750*time.Millisecond, c.Extract.Timeout)
	assert.Equal(t, 9*time.Second, c.Redis.Timeout)
}

func TestLoad_Invalid(t *testing.T) {
	cases := []struct {
		key, value string
	}{
		{"MODEL_INPUT_SIZE", "-1"},
		{"MODEL_INPUT_SIZE", "big"},
		{"FETCH_MAX_BYTES", "0"},
		{"FETCH_RATE_PER_SEC", "fast"},
		{"FETCH_TIMEOUT", "8"},
		{"MINIO_USE_SSL", "maybe"},
	}

	for _, tc := range cases {
		t.Run(tc.key+"="+tc.value, func(t *testing.T) {
			setRequired(t)
			t.Setenv(tc.key, tc.value)

			_, err := Load(logger.NewNopLogger())
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingRequired(t *testing.T) {
	setRequired(t)
	t.Setenv("POSTGRES_PASSWORD", "")

	_, err := Load(logger.NewNopLogger())
	assert.Error(t, err)

	setRequired(t)
	t.Setenv("KAFKA_BROKERS", "")
	_, err = Load(logger.NewNopLogger())
	assert.Error(t, err)
}

func TestParseIntEnv(t *testing.T) {
	t.Setenv("SOME_INT", "x")
	_, err := parseIntEnv("SOME_INT", 1)
	assert.ErrorIs(t, err, e.ErrIncorrectEnvVariable)

	v, err := parseIntEnv("UNSET_INT_FOR_TEST", 7)
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}
