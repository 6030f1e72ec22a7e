package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the application configuration
type Config struct {
	Environment       string
	APIBaseURL        string
	LogLevel          string
	RequestTimeout    time.Duration
	RetryAttempts     int
	BreakerThreshold  int
	BreakerTimeout    time.Duration
	SessionStore      string
	SessionFile       string
	RedisURL          string
	SessionKey        string
	PredictionTTL     time.Duration
	PredictDebounce   time.Duration
	KeepAliveInterval time.Duration
	AgentPort         int
	UploadExtensions  []string
	TracingEndpoint   string
}

// Load reads configuration from a .env file (if present) and environment variables
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	requestTimeout, err := strconv.Atoi(getEnv("REQUEST_TIMEOUT_SECONDS", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REQUEST_TIMEOUT_SECONDS: %w", err)
	}

	retryAttempts, err := strconv.Atoi(getEnv("RETRY_ATTEMPTS", "1"))
	if err != nil {
		return nil, fmt.Errorf("invalid RETRY_ATTEMPTS: %w", err)
	}
	if retryAttempts < 1 {
		retryAttempts = 1
	}

	breakerThreshold, err := strconv.Atoi(getEnv("BREAKER_FAILURE_THRESHOLD", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid BREAKER_FAILURE_THRESHOLD: %w", err)
	}

	breakerTimeout, err := strconv.Atoi(getEnv("BREAKER_TIMEOUT_SECONDS", "30"))
	if err != nil {
		return nil, fmt.Errorf("invalid BREAKER_TIMEOUT_SECONDS: %w", err)
	}

	predictionTTL, err := strconv.Atoi(getEnv("PREDICTION_CACHE_SECONDS", "60"))
	if err != nil {
		return nil, fmt.Errorf("invalid PREDICTION_CACHE_SECONDS: %w", err)
	}

	debounce, err := strconv.Atoi(getEnv("PREDICT_DEBOUNCE_SECONDS", "10"))
	if err != nil {
		return nil, fmt.Errorf("invalid PREDICT_DEBOUNCE_SECONDS: %w", err)
	}

	keepAlive, err := strconv.Atoi(getEnv("KEEPALIVE_INTERVAL_SECONDS", "300"))
	if err != nil {
		return nil, fmt.Errorf("invalid KEEPALIVE_INTERVAL_SECONDS: %w", err)
	}

	agentPort, err := strconv.Atoi(getEnv("AGENT_PORT", "9464"))
	if err != nil {
		return nil, fmt.Errorf("invalid AGENT_PORT: %w", err)
	}

	return &Config{
		Environment:       getEnv("ENVIRONMENT", "development"),
		APIBaseURL:        strings.TrimRight(getEnv("STOCKCAST_API_URL", "http://localhost:5000"), "/"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		RequestTimeout:    time.Duration(requestTimeout) * time.Second,
		RetryAttempts:     retryAttempts,
		BreakerThreshold:  breakerThreshold,
		BreakerTimeout:    time.Duration(breakerTimeout) * time.Second,
		SessionStore:      strings.ToLower(getEnv("SESSION_STORE", "file")),
		SessionFile:       getEnv("SESSION_FILE", defaultSessionFile()),
		RedisURL:          getEnv("REDIS_URL", "redis://localhost:6379"),
		SessionKey:        getEnv("SESSION_KEY", "default"),
		PredictionTTL:     time.Duration(predictionTTL) * time.Second,
		PredictDebounce:   time.Duration(debounce) * time.Second,
		KeepAliveInterval: time.Duration(keepAlive) * time.Second,
		AgentPort:         agentPort,
		UploadExtensions:  parseCSVEnv("UPLOAD_ALLOWED_EXTENSIONS", []string{".csv"}),
		TracingEndpoint:   os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}, nil
}

func defaultSessionFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".stockcast", "session.json")
	}
	return filepath.Join(home, ".stockcast", "session.json")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseCSVEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			trimmed := strings.TrimSpace(p)
			if trimmed != "" {
				out = append(out, trimmed)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return defaultValue
}
