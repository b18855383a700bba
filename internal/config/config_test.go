package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YelzhanWeb/coffeequeue/internal/domain"
)

const sample = `
service:
  log_level: DEBUG
database:
  host: localhost
  port: 5432
  user: coffee
  password: secret
  database: coffeeshop
rabbitmq:
  host: localhost
  port: 5672
  user: guest
  password: guest
queue:
  preparation:
    base_minutes: 5
    per_additional_minutes: 3
  retry_backoff: 100ms
reconciler:
  interval: 30s
  reorder_after_repair: false
`

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(sample))
	require.NoError(t, err)

	assert.Equal(t, "DEBUG", cfg.Service.LogLevel)
	assert.Equal(t, domain.PreparationPolicy{BaseMinutes: 5, PerAdditionalMinutes: 3}, cfg.Queue.Policy())
	assert.Equal(t, 100*time.Millisecond, cfg.Queue.RetryBackoff)
	assert.Equal(t, 30*time.Second, cfg.Reconciler.Interval)
	require.NotNil(t, cfg.Reconciler.ReorderAfterRepair)
	assert.False(t, *cfg.Reconciler.ReorderAfterRepair)
	assert.Equal(t, "host=localhost port=5432 user=coffee password=secret dbname=coffeeshop sslmode=disable", cfg.Database.DSN())

	// defaults
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "rabbitmq", cfg.Events.Driver)
	assert.Equal(t, 3, cfg.Queue.MaxAttempts)
	assert.Equal(t, 15*time.Minute, cfg.Queue.ReadyWindow)
	assert.Equal(t, 3000, cfg.HTTP.Port)
}

func TestParseRequiresPreparationPolicy(t *testing.T) {
	_, err := Parse([]byte("database:\n  driver: memory\n"))

	assert.ErrorIs(t, err, domain.ErrConfig)
	assert.Contains(t, err.Error(), "queue.preparation")
}

func TestParseRejectsUnknownFields(t *testing.T) {
	_, err := Parse([]byte("queue:\n  preparation:\n    base_minute: 5\n"))
	assert.Error(t, err)
}

func TestParseKafkaNeedsBrokers(t *testing.T) {
	_, err := Parse([]byte("events:\n  driver: kafka\nqueue:\n  preparation:\n    base_minutes: 3\n    per_additional_minutes: 2\n"))
	assert.ErrorIs(t, err, domain.ErrConfig)
}

func TestSeedFileOnlyForMemoryDriver(t *testing.T) {
	const policy = "queue:\n  preparation:\n    base_minutes: 3\n    per_additional_minutes: 2\n"

	cfg, err := Parse([]byte("database:\n  driver: memory\n  seed_file: orders.yaml\n" + policy))
	require.NoError(t, err)
	assert.Equal(t, "orders.yaml", cfg.Database.SeedFile)

	_, err = Parse([]byte("database:\n  driver: postgres\n  seed_file: orders.yaml\n" + policy))
	assert.ErrorIs(t, err, domain.ErrConfig)
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("COFFEEQ_DB_HOST", "db.internal")
	t.Setenv("COFFEEQ_DB_PORT", "6543")
	t.Setenv("COFFEEQ_KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("COFFEEQ_EVENTS_DRIVER", "kafka")

	cfg, err := Parse([]byte(sample))
	require.NoError(t, err)

	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 6543, cfg.Database.Port)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "kafka", cfg.Events.Driver)
}

func TestLoadReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "coffeeshop", cfg.Database.Database)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
