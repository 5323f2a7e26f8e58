package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	// Application
	AppEnv   string
	LogLevel string

	// Database
	DatabaseURL string

	// RabbitMQ
	RabbitMQURL string

	// Webhook server
	WebhookAddr string

	// Subscriptions
	ClientStateSecret string
	RenewalInterval   time.Duration

	// Graph
	GraphBaseURL string
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{
		AppEnv:   getEnv("APP_ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		DatabaseURL: getEnv("DATABASE_URL", ""),
		RabbitMQURL: getEnv("RABBITMQ_URL", ""),

		WebhookAddr: getEnv("WEBHOOK_ADDR", "0.0.0.0:8080"),

		ClientStateSecret: getEnv("CLIENT_STATE_SECRET", ""),
		RenewalInterval:   getDurationEnv("RENEWAL_INTERVAL", 12*time.Hour),

		GraphBaseURL: getEnv("GRAPH_BASE_URL", ""),
	}

	return cfg, nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
