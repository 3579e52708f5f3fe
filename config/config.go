package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Takeover policies for a second role:broadcaster registration while a
// session is already live and its streamId does not match the active one.
const (
	TakeoverReplace = "replace" // last writer wins
	TakeoverReject  = "reject"  // keep the current broadcaster
)

// Config holds application configuration loaded from environment.
type Config struct {
	Server ServerConfig
	Stream StreamConfig
	Redis  RedisConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string
	ReadTimeout        int
	WriteTimeout       int
	CORSAllowedOrigins string // comma-separated, or "*" for all (e.g. http://localhost:5173)
}

// StreamConfig holds session lifecycle settings.
type StreamConfig struct {
	GracePeriod    time.Duration // window for broadcaster reconnection before the session ends
	TakeoverPolicy string        // TakeoverReplace or TakeoverReject
}

// RedisConfig holds optional Redis settings for cross-instance fan-out.
// An empty Addr disables Redis entirely (single-instance mode).
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Load reads configuration from environment, with optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load() // .env

	readTimeout, _ := strconv.Atoi(getEnv("READ_TIMEOUT_SEC", "30"))
	writeTimeout, _ := strconv.Atoi(getEnv("WRITE_TIMEOUT_SEC", "30"))
	graceSec := getEnvInt("GRACE_PERIOD_SEC", 30)

	policy := strings.ToLower(getEnv("BROADCASTER_TAKEOVER", TakeoverReplace))
	if policy != TakeoverReplace && policy != TakeoverReject {
		policy = TakeoverReplace
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:               getEnv("PORT", "4000"),
			ReadTimeout:        readTimeout,
			WriteTimeout:       writeTimeout,
			CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
		},
		Stream: StreamConfig{
			GracePeriod:    time.Duration(graceSec) * time.Second,
			TakeoverPolicy: policy,
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
	}
	return cfg, nil
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
