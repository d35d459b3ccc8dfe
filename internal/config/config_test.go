package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SUPABASE_URL", "https://proj.supabase.co")
	t.Setenv("SUPABASE_SERVICE_ROLE_KEY", "key")

	cfg := Load()
	assert.Equal(t, QueueKafka, cfg.QueueBackend)
	assert.Equal(t, []string{"kafka:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 3, cfg.MaxAttempts)
	assert.Equal(t, int64(10<<20), cfg.MaxUploadBytes)
	assert.Equal(t, 50, cfg.JPEGQuality)
	require.NoError(t, cfg.Validate())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", " k1:9092, ,k2:9092 ")
	t.Setenv("WORKER_CONCURRENCY", "16")
	t.Setenv("JOB_RETRY_BACKOFF", "250ms")
	t.Setenv("JPEG_QUALITY", "not-a-number")

	cfg := Load()
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 16, cfg.WorkerConcurrency)
	assert.Equal(t, 250*time.Millisecond, cfg.RetryBackoff)
	assert.Equal(t, 50, cfg.JPEGQuality)
}

func TestValidate(t *testing.T) {
	t.Setenv("STORAGE_BACKEND", StorageLocal)
	t.Setenv("QUEUE_BACKEND", QueueMemory)
	require.NoError(t, Load().Validate())

	cfg := Load()
	cfg.StorageBackend = StorageSupabase
	cfg.SupabaseURL = ""
	assert.Error(t, cfg.Validate())

	cfg = Load()
	cfg.QueueBackend = "sqs"
	assert.Error(t, cfg.Validate())

	cfg = Load()
	cfg.JPEGQuality = 0
	assert.Error(t, cfg.Validate())
}
