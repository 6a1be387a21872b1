package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port                    string
	Env                     string
	FirebaseCredentialsPath string
	RedisAddr               string
	ResendAPIKey            string
	FromEmail               string
	EngineWorkers           int
	SinkWorkers             int
	SinkQueueBuffer         int
	SweepInterval           time.Duration
	ReadRetention           time.Duration
}

func Load() *Config {
	return &Config{
		Port:                    getEnv("PORT", "8080"),
		Env:                     getEnv("ENV", "development"),
		FirebaseCredentialsPath: getEnv("FIREBASE_CREDENTIALS_PATH", ""),
		RedisAddr:               getEnv("REDIS_ADDR", "localhost:6379"),
		ResendAPIKey:            getEnv("RESEND_API_KEY", ""),
		FromEmail:               getEnv("FROM_EMAIL", "notifications@loopline.app"),
		EngineWorkers:           getEnvInt("ENGINE_WORKERS", 4),
		SinkWorkers:             getEnvInt("SINK_WORKERS", 4),
		SinkQueueBuffer:         getEnvInt("SINK_QUEUE_BUFFER", 256),
		SweepInterval:           getEnvDuration("SWEEP_INTERVAL", 2*time.Minute),
		ReadRetention:           getEnvDuration("READ_RETENTION", 30*24*time.Hour),
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
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
