package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ServerPort       string
	FirebaseProject  string
	Environment      string
	AssignmentWindow time.Duration
	LedgerTimeout    time.Duration
	KafkaBrokers     []string
	KafkaTopic       string
}

func Load() (*Config, error) {
	godotenv.Load()

	config := &Config{
		ServerPort:       getEnv("SERVER_PORT", "8080"),
		FirebaseProject:  getEnv("FIREBASE_PROJECT_ID", ""),
		Environment:      getEnv("ENVIRONMENT", "development"),
		AssignmentWindow: time.Duration(getEnvAsInt64("ASSIGNMENT_WINDOW_MINUTES", 10)) * time.Minute,
		LedgerTimeout:    time.Duration(getEnvAsInt64("LEDGER_TIMEOUT_SECONDS", 5)) * time.Second,
		KafkaBrokers:     getEnvAsSlice("KAFKA_BROKERS"),
		KafkaTopic:       getEnv("KAFKA_MEDIATION_TOPIC", "mediation-events"),
	}

	return config, nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value, exists := os.LookupEnv(key); exists {
		intValue, err := strconv.ParseInt(value, 10, 64)
		if err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsSlice(key string) []string {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
