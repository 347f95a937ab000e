package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all tunables for the assembly engine. Values come from the
// environment with sensible defaults; a missing .env is not an error.
type Config struct {
	Port string

	// Assembly policy
	DefaultCount     int     // questions per mock test
	DefaultRatio     float64 // historical share when the request omits one
	BatchSize        int     // generation batch size
	BatchSlack       int     // extra batches allowed to absorb rejected candidates
	HistoryRetention int     // seen-set window, in finalized attempts

	// Deadlines
	PerCallTimeout     time.Duration
	BackgroundDeadline time.Duration
	SyncDeadline       time.Duration

	// Result cache
	CacheTTL      time.Duration
	NegativeTTL   time.Duration
	SweepInterval time.Duration

	// Scoring
	StarThreshold  float64
	RetryThreshold float64

	// Providers
	MockGenerator  bool
	AnthropicModel string
	RouterBaseURL  string
	RouterModel    string
}

func Load() Config {
	return Config{
		Port: getEnv("PORT", "8080"),

		DefaultCount:     getEnvInt("TEST_QUESTION_COUNT", 10),
		DefaultRatio:     getEnvFloat("TEST_HISTORICAL_RATIO", 0.5),
		BatchSize:        getEnvInt("GEN_BATCH_SIZE", 3),
		BatchSlack:       getEnvInt("GEN_BATCH_SLACK", 1),
		HistoryRetention: getEnvInt("HISTORY_RETENTION_ATTEMPTS", 5),

		PerCallTimeout:     getEnvDuration("GEN_CALL_TIMEOUT", 5*time.Second),
		BackgroundDeadline: getEnvDuration("GEN_BACKGROUND_DEADLINE", 15*time.Second),
		SyncDeadline:       getEnvDuration("GEN_SYNC_DEADLINE", 6*time.Second),

		CacheTTL:      getEnvDuration("CACHE_TTL", 10*time.Minute),
		NegativeTTL:   getEnvDuration("CACHE_NEGATIVE_TTL", 30*time.Second),
		SweepInterval: getEnvDuration("CACHE_SWEEP_INTERVAL", time.Minute),

		StarThreshold:  getEnvFloat("STAR_THRESHOLD", 85),
		RetryThreshold: getEnvFloat("RETRY_THRESHOLD", 70),

		MockGenerator:  os.Getenv("MOCK_GENERATOR") == "true",
		AnthropicModel: getEnv("ANTHROPIC_MODEL", "claude-sonnet-4-5-20250929"),
		RouterBaseURL:  os.Getenv("ROUTER_BASE_URL"),
		RouterModel:    getEnv("ROUTER_MODEL", "gpt-4o-mini"),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
