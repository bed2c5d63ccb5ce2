package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the application configuration
type Config struct {
	Environment            string
	ServerPort             int
	MongoURI               string
	MongoDatabase          string
	RedisURL               string
	KafkaBrokers           []string
	KafkaTopic             string
	JWTSecret              string
	TokenLifetime          time.Duration
	LogLevel               string
	CORSAllowedOrigins     []string
	SearchCacheTTL         time.Duration
	PendingMonitorInterval time.Duration
	PendingReminderAge     time.Duration
	RateLimitPerMinute     int
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	port, err := strconv.Atoi(getEnv("SERVER_PORT", "8080"))
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_PORT: %w", err)
	}

	tokenLifetimeHours, err := strconv.Atoi(getEnv("TOKEN_LIFETIME_HOURS", "168"))
	if err != nil {
		return nil, fmt.Errorf("invalid TOKEN_LIFETIME_HOURS: %w", err)
	}

	searchCacheSeconds, err := strconv.Atoi(getEnv("SEARCH_CACHE_TTL_SECONDS", "30"))
	if err != nil {
		return nil, fmt.Errorf("invalid SEARCH_CACHE_TTL_SECONDS: %w", err)
	}

	monitorInterval, err := strconv.Atoi(getEnv("PENDING_MONITOR_INTERVAL_MINUTES", "1"))
	if err != nil {
		return nil, fmt.Errorf("invalid PENDING_MONITOR_INTERVAL_MINUTES: %w", err)
	}

	reminderAgeHours, err := strconv.Atoi(getEnv("PENDING_REMINDER_AGE_HOURS", "24"))
	if err != nil {
		return nil, fmt.Errorf("invalid PENDING_REMINDER_AGE_HOURS: %w", err)
	}

	rateLimit, err := strconv.Atoi(getEnv("RATE_LIMIT_PER_MINUTE", "100"))
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_PER_MINUTE: %w", err)
	}

	return &Config{
		Environment:   getEnv("ENVIRONMENT", "development"),
		ServerPort:    port,
		MongoURI:      getEnv("MONGODB_URI", "mongodb://localhost:27017"),
		MongoDatabase: getEnv("MONGO_DB_NAME", "businesshub"),
		RedisURL:      getEnv("REDIS_URL", "redis://localhost:6379"),
		KafkaBrokers:  parseCSVEnv("KAFKA_BROKERS", []string{"localhost:9092"}),
		KafkaTopic:    getEnv("KAFKA_TOPIC", "businesshub.notifications"),
		JWTSecret:     os.Getenv("JWT_SECRET"),
		TokenLifetime: time.Duration(tokenLifetimeHours) * time.Hour,
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		CORSAllowedOrigins: []string{
			"http://localhost:5173",
			"http://localhost:3000",
		},
		SearchCacheTTL:         time.Duration(searchCacheSeconds) * time.Second,
		PendingMonitorInterval: time.Duration(monitorInterval) * time.Minute,
		PendingReminderAge:     time.Duration(reminderAgeHours) * time.Hour,
		RateLimitPerMinute:     rateLimit,
	}, nil
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
