package cfg

import (
	"testing"
	"time"

	"github.com/modaics/fitsearch/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("POSTGRES_USER", "fitsearch")
	t.Setenv("POSTGRES_PASSWORD", "secret")
	t.Setenv("POSTGRES_DB", "fitsearch")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092,kafka-2:9092")
	t.Setenv("KAFKA_TOPIC", "item-events")
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load(logger.NewDiscardLogger())
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Http.Port)
	assert.Equal(t, "5432", cfg.Db.Port)
	assert.Equal(t, "disable", cfg.Db.SSLMode)

	assert.Equal(t, "fashion_items", cfg.Qdrant.CollectionName)
	assert.Equal(t, uint64(768), cfg.Qdrant.VectorSize)
	assert.Equal(t, 6334, cfg.Qdrant.Port)

	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "item-events", cfg.Kafka.Topic)
	assert.Equal(t, 2*time.Second, cfg.Kafka.RelayInterval)
	assert.Equal(t, 100, cfg.Kafka.RelayBatchSize)

	assert.Equal(t, "http://encoder:8000", cfg.Encoder.Addr)
	assert.Equal(t, 8, cfg.Encoder.MaxConcurrent)
	assert.Equal(t, 3, cfg.Encoder.MaxRetries)

	assert.Equal(t, uint64(50), cfg.Search.MaxLimit)
	assert.Equal(t, uint64(3), cfg.Search.OverfetchFactor)
	assert.Equal(t, 0.5, cfg.Search.TextWeight)
	assert.Equal(t, 0.5, cfg.Search.ImageWeight)
	assert.Equal(t, 0.0, cfg.Search.MinScore)
	assert.Equal(t, 5*time.Second, cfg.Search.StoreTimeout)

	assert.Equal(t, 3*time.Minute, cfg.Redis.ItemTTL)
}

func TestLoad_MissingPostgresUser(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("POSTGRES_USER", "")

	_, err := Load(logger.NewDiscardLogger())
	assert.Error(t, err)
}

func TestLoad_MissingKafkaBrokers(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("KAFKA_BROKERS", "")

	_, err := Load(logger.NewDiscardLogger())
	assert.Error(t, err)
}

func TestLoad_Overrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("SEARCH_MAX_LIMIT", "25")
	t.Setenv("SEARCH_TEXT_WEIGHT", "0.7")
	t.Setenv("SEARCH_IMAGE_WEIGHT", "0.3")
	t.Setenv("SEARCH_MIN_SCORE", "0.2")
	t.Setenv("VECTOR_SIZE", "512")
	t.Setenv("ENCODER_ADDR", "http://localhost:8000")

	cfg, err := Load(logger.NewDiscardLogger())
	require.NoError(t, err)

	assert.Equal(t, uint64(25), cfg.Search.MaxLimit)
	assert.Equal(t, 0.7, cfg.Search.TextWeight)
	assert.Equal(t, 0.3, cfg.Search.ImageWeight)
	assert.Equal(t, 0.2, cfg.Search.MinScore)
	assert.Equal(t, uint64(512), cfg.Qdrant.VectorSize)
	assert.Equal(t, "http://localhost:8000", cfg.Encoder.Addr)
}

func TestLoad_NegativeWeightRejected(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("SEARCH_TEXT_WEIGHT", "-0.1")

	_, err := Load(logger.NewDiscardLogger())
	assert.Error(t, err)
}

func TestParseDurationEnv(t *testing.T) {
	t.Setenv("SOME_TIMEOUT", "250ms")

	d, err := parseDurationEnv("SOME_TIMEOUT", time.Second)
	require.NoError(t, err)
	assert.Equal(t, 250*time.Millisecond, d)

	d, err = parseDurationEnv("UNSET_TIMEOUT", time.Second)
	require.NoError(t, err)
	assert.Equal(t, time.Second, d)

	t.Setenv("BAD_TIMEOUT", "not-a-duration")
	_, err = parseDurationEnv("BAD_TIMEOUT", time.Second)
	assert.Error(t, err)
}
