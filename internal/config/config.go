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

type Config struct {
	Port              string
	DBUrl             string
	JWTSecret         string
	AppEnv            string
	LogLevel          string
	SendRatePerMinute int
	SendBurst         int
	CORSOrigins       string
}

// ClientConfig configures the terminal chat client.
type ClientConfig struct {
	ServerURL      string
	Token          string
	UserID         string
	RequestTimeout time.Duration
	DraftsPath     string
	LogLevel       string
}

// loadDotEnv reports whether a .env file was found.
func loadDotEnv() bool {
	return godotenv.Load() == nil
}

func LoadConfig() (*Config, error) {
	loadDotEnv()

	jwtSecret, exists := os.LookupEnv("JWT_SECRET")
	if !exists || jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	return &Config{
		Port:              getEnv("PORT", "8080"),
		DBUrl:             getEnv("DB_URL", ""),
		JWTSecret:         jwtSecret,
		AppEnv:            normalizeEnv(getEnv("APP_ENV", "production")),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		SendRatePerMinute: getEnvInt("SEND_RATE_PER_MINUTE", 20),
		SendBurst:         getEnvInt("SEND_BURST", 5),
		CORSOrigins:       getEnv("CORS_ORIGINS", "*"),
	}, nil
}

func LoadClientConfig() (*ClientConfig, error) {
	loadDotEnv()

	drafts := getEnv("CHAT_DRAFTS_PATH", "")
	if drafts == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve drafts path: %w", err)
		}
		drafts = filepath.Join(home, ".tenantry", "drafts.db")
	}

	return &ClientConfig{
		ServerURL:      strings.TrimRight(getEnv("CHAT_SERVER_URL", "http://localhost:8080"), "/"),
		Token:          getEnv("CHAT_TOKEN", ""),
		UserID:         getEnv("CHAT_USER_ID", ""),
		RequestTimeout: getEnvDuration("CHAT_REQUEST_TIMEOUT", 15*time.Second),
		DraftsPath:     drafts,
		LogLevel:       getEnv("LOG_LEVEL", "warn"),
	}, nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, exists := os.LookupEnv(key)
	if !exists || strings.TrimSpace(value) == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, exists := os.LookupEnv(key)
	if !exists || strings.TrimSpace(value) == "" {
		return fallback
	}
	value = strings.TrimSpace(value)
	if parsed, err := time.ParseDuration(value); err == nil && parsed > 0 {
		return parsed
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	return fallback
}

func normalizeEnv(value string) string {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "dev", "develop", "development", "local":
		return "development"
	case "prod", "production":
		return "production"
	case "stage", "staging":
		return "staging"
	case "test", "testing":
		return "test"
	default:
		return strings.ToLower(strings.TrimSpace(value))
	}
}
