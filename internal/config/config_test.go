package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 30*24*time.Hour, cfg.Redis.CartTTL)
	assert.Equal(t, 5, cfg.Auction.BidAttempts)
	assert.Equal(t, 256, cfg.Notify.QueueSize)
	assert.Equal(t, ":8081", cfg.ListenAddr("8081"))
}

func TestLoad_YAMLWithEnvOverride(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  port: "9000"
postgres:
  url: postgres://file/db
redis:
  cart_ttl: 2h
kafka:
  brokers: ["k1:9092"]
auction:
  bid_attempts: 3
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	t.Setenv("POSTGRES_URL", "postgres://env/db")
	t.Setenv("KAFKA_BROKERS", "a:9092,b:9092")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.ListenAddr("8081"))
	assert.Equal(t, "postgres://env/db", cfg.Postgres.URL)
	assert.Equal(t, 2*time.Hour, cfg.Redis.CartTTL)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 3, cfg.Auction.BidAttempts)
}

func TestLoad_Invalid(t *testing.T) {
	t.Chdir(t.TempDir())

	t.Run("bad port", func(t *testing.T) {
		t.Setenv("PORT", "http")
		_, err := Load("")
		assert.Error(t, err)
	})

	t.Run("short jwt secret", func(t *testing.T) {
		t.Setenv("JWT_SECRET", "short")
		_, err := Load("")
		assert.Error(t, err)
	})

	t.Run("bad duration", func(t *testing.T) {
		t.Setenv("CART_TTL", "forever")
		_, err := Load("")
		assert.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load("does-not-exist.yaml")
		assert.Error(t, err)
	})
}

func TestRequire(t *testing.T) {
	cfg := &Config{}
	assert.Error(t, cfg.RequirePostgres())
	assert.Error(t, cfg.RequireRedis())
	assert.Error(t, cfg.RequireKafka())
	assert.Error(t, cfg.RequireJWTSecret())

	cfg.Postgres.URL = "postgres://x"
	cfg.Redis.URL = "redis://x"
	cfg.Kafka.Brokers = []string{"k:9092"}
	cfg.Auth.JWTSecret = "0123456789abcdef0123456789abcdef"
	assert.NoError(t, cfg.RequirePostgres())
	assert.NoError(t, cfg.RequireRedis())
	assert.NoError(t, cfg.RequireKafka())
	assert.NoError(t, cfg.RequireJWTSecret())
}
