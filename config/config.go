package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all scanner configuration loaded from environment variables.
type Config struct {
	// Symbols to monitor (comma-separated bond codes, e.g. "113672,123089")
	Symbols string

	// Polling. MaxRetries -1 means a single attempt per poll (set
	// POLL_MAX_RETRIES=0).
	PollInterval time.Duration
	MaxRetries   int

	// Infrastructure
	RedisAddr     string
	RedisPassword string
	SQLitePath    string
	MetricsAddr   string
	GatewayAddr   string

	// Strategy file (YAML); empty means built-in defaults
	StrategyFile string

	// Notification backends; each is disabled when empty
	TelegramBotToken string
	TelegramChatID   string
	WebhookURL       string

	LogLevel string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() *Config {
	return &Config{
		Symbols: mustEnv("SCAN_SYMBOLS"),

		PollInterval: time.Duration(getEnvInt("POLL_INTERVAL_SEC", 60)) * time.Second,
		MaxRetries:   getEnvRetries("POLL_MAX_RETRIES", 3),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		SQLitePath:    getEnv("SQLITE_PATH", "data/bondscan.db"),
		MetricsAddr:   getEnv("METRICS_ADDR", ":9090"),
		GatewayAddr:   getEnv("GATEWAY_ADDR", ":8080"),

		StrategyFile: getEnv("STRATEGY_FILE", ""),

		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramChatID:   getEnv("TELEGRAM_CHAT_ID", ""),
		WebhookURL:       getEnv("WEBHOOK_URL", ""),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

// ParseSymbols splits the Symbols string into cleaned bond codes.
func (c *Config) ParseSymbols() []string {
	parts := strings.Split(c.Symbols, ",")
	syms := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		syms = append(syms, p)
	}
	return syms
}

func mustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		log.Fatalf("[config] required env var %s not set", key)
	}
	return v
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		log.Printf("[config] invalid value for %s: %q, using %d", key, v, fallback)
		return fallback
	}
	return n
}

// getEnvRetries parses a retry count. "0" is a valid setting meaning no
// retries, mapped to the monitor's -1 sentinel (0 there means unset).
func getEnvRetries(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		log.Printf("[config] invalid value for %s: %q, using %d", key, v, fallback)
		return fallback
	}
	if n == 0 {
		return -1
	}
	return n
}
