package config

import (
	"os"
	"strconv"
	"time"
)

// Map view tuning.
const (
	// DefaultAnimationDuration is the camera animation length in ms.
	DefaultAnimationDuration = 500
	// DefaultSettleDelay masks map animation latency between issuing a
	// camera command and reporting completion. UX contract, not correctness.
	DefaultSettleDelay = 500 * time.Millisecond

	ZoomClose                     = 17.0
	ZoomFar                       = 14.0
	FitBoundsPadding              = 80
	ShowLocationAnimationDuration = 2000
)

// Config holds the runtime settings loaded from the environment. main loads
// .env via godotenv first, so both files and real env vars work.
type Config struct {
	HTTPAddr      string
	PostgresDSN   string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	JWTSecret     string

	// UserUID is the signed-in identity this agent process negotiates for.
	// Left empty, main mints a fresh anonymous one.
	UserUID string

	// MapSettleDelay overrides DefaultSettleDelay; tests shrink it.
	MapSettleDelay time.Duration
}

// Load reads the environment with code defaults matching docker-compose.
func Load() *Config {
	cfg := &Config{
		HTTPAddr:       getenv("HTTP_ADDR", ":8080"),
		PostgresDSN:    getenv("POSTGRES_DSN", "host=localhost user=user password=password dbname=daterdb port=5432 sslmode=disable"),
		RedisAddr:      getenv("REDIS_ADDR", "localhost:6380"),
		RedisPassword:  getenv("REDIS_PASSWORD", ""),
		JWTSecret:      getenv("JWT_SECRET", "YOUR_ULTRA_SECRET_KEY_HERE"),
		UserUID:        os.Getenv("USER_UID"),
		MapSettleDelay: DefaultSettleDelay,
	}

	if v := os.Getenv("REDIS_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			cfg.RedisDB = db
		}
	}
	if v := os.Getenv("MAP_SETTLE_DELAY_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil && ms >= 0 {
			cfg.MapSettleDelay = time.Duration(ms) * time.Millisecond
		}
	}
	return cfg
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
