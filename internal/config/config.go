package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	// Environment
	Environment string

	// Database
	DatabaseURL string

	// Redis
	RedisURL string

	// Server
	Port        string
	FrontendURL string

	// Challenge / matchmaking settings
	ChallengeMaxAgeSeconds  int
	MatchIntervalSeconds    int
	MatchBatchLimit         int
	CounterCASRetries       int
	CounterRecomputeSeconds int
	GameExpiryMinutes       int

	// Security
	JWTSecret              string
	MatchTriggerSecretHash string
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	return &Config{
		// Environment
		Environment: getEnv("APP_ENV", "development"),

		// Database
		DatabaseURL: getEnv("DATABASE_URL", "postgres://localhost:5432/playskrafl?sslmode=disable"),

		// Redis
		RedisURL: getEnv("REDIS_URL", "redis://localhost:6379/0"),

		// Server
		Port:        getEnv("APP_PORT", "8080"),
		FrontendURL: getEnv("FRONTEND_URL", "http://localhost:5173"),

		// Challenge / matchmaking settings
		ChallengeMaxAgeSeconds:  getEnvInt("CHALLENGE_MAX_AGE_SECONDS", 180),
		MatchIntervalSeconds:    getEnvInt("MATCH_INTERVAL_SECONDS", 5),
		MatchBatchLimit:         getEnvInt("MATCH_BATCH_LIMIT", 100),
		CounterCASRetries:       getEnvInt("COUNTER_CAS_RETRIES", 10),
		CounterRecomputeSeconds: getEnvInt("COUNTER_RECOMPUTE_SECONDS", 300),
		GameExpiryMinutes:       getEnvInt("GAME_EXPIRY_MINUTES", 10),

		// Security
		JWTSecret:              getEnv("JWT_SECRET", "change-me-in-production"),
		MatchTriggerSecretHash: getEnv("MATCH_TRIGGER_SECRET_HASH", ""),
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
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}
