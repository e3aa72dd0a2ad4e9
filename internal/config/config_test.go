package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, BackendMemory, cfg.StoreBackend)
	assert.Equal(t, BackendStatic, cfg.DirectoryBackend)
	assert.Equal(t, BackendLocal, cfg.LockBackend)
	assert.Equal(t, []string{"log", "inbox"}, cfg.NotifySinks)
	assert.Equal(t, 5*time.Second, cfg.LockTTL)
	assert.False(t, cfg.NeedsPostgres())
	assert.False(t, cfg.NeedsRedis())
}

func TestLoadRequiresSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	_, err := Load()
	assert.ErrorContains(t, err, "JWT_SECRET")
}

func TestLoadPostgresNeedsDSN(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("STORE_BACKEND", "postgres")
	t.Setenv("POSTGRES_DSN", "")

	_, err := Load()
	assert.ErrorContains(t, err, "POSTGRES_DSN")
}

func TestLoadParsesListsAndDurations(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("NOTIFY_SINKS", "log, kafka,,redis")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("LOCK_WAIT", "750ms")
	t.Setenv("SHUTDOWN_TIMEOUT", "30")
	t.Setenv("REDIS_URL", "redis://bob:pw@cache:6380")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"log", "kafka", "redis"}, cfg.NotifySinks)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 750*time.Millisecond, cfg.LockWait)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, "cache:6380", cfg.RedisAddr)
	assert.Equal(t, "bob", cfg.RedisUsername)
	assert.Equal(t, "pw", cfg.RedisPassword)
	assert.True(t, cfg.NeedsRedis())
}

func TestLoadRejectsUnknownValues(t *testing.T) {
	tests := map[string][2]string{
		"store": {"STORE_BACKEND", "mongo"},
		"lock":  {"LOCK_BACKEND", "etcd"},
		"sink":  {"NOTIFY_SINKS", "sms"},
		"kafka": {"NOTIFY_SINKS", "kafka"},
		"dir":   {"DIRECTORY_BACKEND", "ldap"},
	}
	for name, kv := range tests {
		t.Run(name, func(t *testing.T) {
			t.Setenv("JWT_SECRET", "s3cret")
			t.Setenv("KAFKA_BROKERS", "")
			t.Setenv(kv[0], kv[1])

			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoadRelayDoesNotNeedSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("KAFKA_BROKERS", "k1:9092")

	cfg, err := LoadRelay()
	require.NoError(t, err)
	assert.Equal(t, "appointments.events", cfg.NotifyChannel)
	assert.Equal(t, []string{"k1:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "9091", cfg.RelayMetricsPort)

	_, err = Load()
	assert.ErrorContains(t, err, "JWT_SECRET")
}

func TestLoadRelayRejectsBadMetricsPort(t *testing.T) {
	t.Setenv("RELAY_METRICS_PORT", "metrics")

	_, err := LoadRelay()
	assert.ErrorContains(t, err, "RELAY_METRICS_PORT")

	t.Setenv("RELAY_METRICS_PORT", "")
	cfg, err := LoadRelay()
	require.NoError(t, err)
	assert.Empty(t, cfg.RelayMetricsPort, "explicitly empty disables the metrics listener")
}
