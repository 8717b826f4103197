package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Tunables for the messaging core.
const (
	// HistoryLimit caps a single history fetch.
	HistoryLimit = 200
	// PushBatchSize is the provider's per-call token cap.
	PushBatchSize = 99
	// PushBodyLimit truncates long message bodies in notifications.
	PushBodyLimit = 120
	// RealtimeCallTimeout bounds every store/push call made on behalf of
	// a realtime request.
	RealtimeCallTimeout = 10 * time.Second
)

// Config holds process configuration read from the environment. main
// loads .env first via godotenv, so local runs work without exporting
// anything.
type Config struct {
	HTTPAddr      string
	DatabaseDSN   string
	RedisAddr     string
	RedisPassword string
	JWTSecret     string
	PushURL       string

	TelegramBotToken     string
	TelegramOperatorChat int64
}

func Load() (*Config, error) {
	cfg := &Config{
		HTTPAddr: getenv("HTTP_ADDR", ":8080"),
		DatabaseDSN: getenv("DATABASE_DSN", fmt.Sprintf(
			"host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
			getenv("DB_HOST", "localhost"),
			getenv("DB_USER", "user"),
			getenv("DB_PASSWORD", "password"),
			getenv("DB_NAME", "roadassist"),
			getenv("DB_PORT", "5432"),
		)),
		RedisAddr:        getenv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:    os.Getenv("REDIS_PASSWORD"),
		JWTSecret:        os.Getenv("JWT_SECRET"),
		PushURL:          getenv("PUSH_URL", "https://exp.host/--/api/v2/push/send"),
		TelegramBotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is not set")
	}

	if raw := os.Getenv("TELEGRAM_OPERATOR_CHAT"); raw != "" {
		chatID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid TELEGRAM_OPERATOR_CHAT %q: %w", raw, err)
		}
		cfg.TelegramOperatorChat = chatID
	}

	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
