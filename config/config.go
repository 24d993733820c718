package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port           string
	Environment    string
	AllowedOrigins []string
	Session        SessionConfig
	Redis          RedisConfig
	Database       DatabaseConfig
	Signaling      SignalingConfig
	RTC            RTCConfig
}

type SessionConfig struct {
	Secret     string
	CookieName string
	TTL        time.Duration
}

type RedisConfig struct {
	Host             string
	Port             string
	Password         string
	DB               int
	BroadcastChannel string
}

// DatabaseConfig points at the relationship store (match connections and
// connection requests) owned by the CRUD side of the application.
type DatabaseConfig struct {
	Driver string
	DSN    string
}

type SignalingConfig struct {
	HeartbeatInterval time.Duration
	HeartbeatTimeout  time.Duration
	SendBuffer        int
	MaxMessageSize    int64
}

type RTCConfig struct {
	StunServers        []string
	NegotiationTimeout time.Duration
}

func Load() *Config {
	// Parse allowed origins (comma-separated)
	origins := splitList(getEnv("ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:5173"))

	return &Config{
		Port:           getEnv("PORT", "8080"),
		Environment:    getEnv("ENVIRONMENT", "development"),
		AllowedOrigins: origins,
		Session: SessionConfig{
			Secret:     getEnv("JWT_SECRET", "change-me-in-production"),
			CookieName: getEnv("SESSION_COOKIE", "session"),
			TTL:        getEnvDuration("SESSION_TTL", 24*time.Hour),
		},
		Redis: RedisConfig{
			Host:             getEnv("REDIS_HOST", "localhost"),
			Port:             getEnv("REDIS_PORT", "6379"),
			Password:         getEnv("REDIS_PASSWORD", ""),
			DB:               getEnvInt("REDIS_DB", 0),
			BroadcastChannel: getEnv("BROADCAST_CHANNEL", "signaling:broadcast"),
		},
		Database: DatabaseConfig{
			Driver: getEnv("DB_DRIVER", "sqlite"),
			DSN:    getEnv("DB_DSN", "data/relationships.db"),
		},
		Signaling: SignalingConfig{
			HeartbeatInterval: getEnvDuration("HEARTBEAT_INTERVAL", 30*time.Second),
			HeartbeatTimeout:  getEnvDuration("HEARTBEAT_TIMEOUT", 40*time.Second),
			SendBuffer:        getEnvInt("SEND_BUFFER", 256),
			MaxMessageSize:    int64(getEnvInt("MAX_MESSAGE_SIZE", 64*1024)),
		},
		RTC: RTCConfig{
			StunServers:        splitList(getEnv("STUN_SERVERS", "stun:stun.l.google.com:19302,stun:stun1.l.google.com:19302")),
			NegotiationTimeout: getEnvDuration("NEGOTIATION_TIMEOUT", 45*time.Second),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
