package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 30*time.Second, cfg.Signaling.HeartbeatInterval)
	assert.Equal(t, 40*time.Second, cfg.Signaling.HeartbeatTimeout)
	assert.Equal(t, "session", cfg.Session.CookieName)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Len(t, cfg.AllowedOrigins, 2)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("HEARTBEAT_INTERVAL", "5s")
	t.Setenv("HEARTBEAT_TIMEOUT", "7s")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("ALLOWED_ORIGINS", " https://a.example , ,https://b.example")
	t.Setenv("SEND_BUFFER", "not-a-number")

	cfg := Load()

	assert.Equal(t, 5*time.Second, cfg.Signaling.HeartbeatInterval)
	assert.Equal(t, 7*time.Second, cfg.Signaling.HeartbeatTimeout)
	assert.Equal(t, 3, cfg.Redis.DB)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	assert.Equal(t, 256, cfg.Signaling.SendBuffer)
}
