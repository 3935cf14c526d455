package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func setRequired(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("WEBHOOK_SECRET", "whsec")
	t.Setenv("DB_DRIVER", "sqlite")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg := Load()

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 8, cfg.HoldMinutes)
	assert.Equal(t, 30*time.Second, cfg.ExpirySweepInterval)
	assert.Equal(t, 24*time.Hour, cfg.WebhookIdempotencyTTL)
	assert.True(t, cfg.WebhookDedupFailOpen)
	assert.Equal(t, "USD", cfg.Currency)
	assert.Equal(t, 8, cfg.SeatGridRows)
	assert.Equal(t, 12, cfg.SeatGridSeatsPerRow)
	assert.Equal(t, 30, cfg.TicketEntryOpenMinutes)
	assert.Equal(t, 30, cfg.TicketScanGraceMinutes)
	assert.False(t, cfg.AMQPEnabled)
}

func TestLoad_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("RESERVATION_HOLD_MINUTES", "15")
	t.Setenv("RESERVATION_EXPIRY_SWEEP_INTERVAL", "10s")
	t.Setenv("WEBHOOK_IDEMPOTENCY_TTL", "86400")
	t.Setenv("WEBHOOK_DEDUP_FAIL_OPEN", "false")

	cfg := Load()

	assert.Equal(t, 15, cfg.HoldMinutes)
	assert.Equal(t, 10*time.Second, cfg.ExpirySweepInterval)
	assert.Equal(t, 24*time.Hour, cfg.WebhookIdempotencyTTL)
	assert.False(t, cfg.WebhookDedupFailOpen)
}

func TestLoadRateLimitConfig_Clamps(t *testing.T) {
	t.Setenv("RATE_LIMIT_CAPACITY", "0")
	t.Setenv("RATE_LIMIT_REFILL_INTERVAL", "2s")
	t.Setenv("RATE_LIMIT_TTL", "1s")

	cfg := LoadRateLimitConfig()

	assert.Equal(t, 1, cfg.Capacity)
	assert.Equal(t, 10*time.Second, cfg.TTL)
	assert.Equal(t, 5, cfg.WithCapacity(5).Capacity)
}

func TestLoadCacheConfig_Methods(t *testing.T) {
	t.Setenv("CACHE_METHODS", "get, head")

	cfg := LoadCacheConfig()

	assert.True(t, cfg.Methods["GET"])
	assert.True(t, cfg.Methods["HEAD"])
	assert.False(t, cfg.Methods["POST"])
}
