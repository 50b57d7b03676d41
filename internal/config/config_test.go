package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()
	require.Equal(t, ":8080", cfg.HTTPAddress)
	require.Equal(t, []string{"kafka:9092"}, cfg.KafkaBrokers)
	require.Equal(t, "placeholder", cfg.SummaryFailurePolicy)
	require.True(t, cfg.CreateMissingIndicators)
	require.False(t, cfg.AuthDisabled)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", " a:9092, ,b:9092 ")
	t.Setenv("OUTBOX_POLL_INTERVAL", "250ms")
	t.Setenv("OUTBOX_BATCH_SIZE", "not-a-number")
	t.Setenv("CREATE_MISSING_INDICATORS", "false")
	t.Setenv("CONSUMER_TOPICS", "requests,wars")

	cfg := Load()
	require.Equal(t, []string{"a:9092", "b:9092"}, cfg.KafkaBrokers)
	require.Equal(t, 250*time.Millisecond, cfg.OutboxPollInterval)
	require.Equal(t, 25, cfg.OutboxBatchSize)
	require.False(t, cfg.CreateMissingIndicators)
	require.Equal(t, []string{"requests", "wars"}, cfg.ConsumerTopics)
}

func TestLocationFallsBackToFixedZone(t *testing.T) {
	loc := Config{TimeZone: "Not/AZone"}.Location()
	_, offset := time.Date(2025, 3, 1, 0, 0, 0, 0, loc).Zone()
	require.Equal(t, 8*60*60, offset)

	require.Equal(t, "UTC", Config{TimeZone: "UTC"}.Location().String())
}
