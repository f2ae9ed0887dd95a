package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	AppEnv         string
	Port           string
	AllowedOrigins string
	LogLevel       string
	JWTSecret      string

	DBDriver    string
	DatabaseURL string
	DBHost      string
	DBUser      string
	DBPass      string
	DBName      string
	DBPort      string
	SQLitePath  string

	RedisURL string
	AMQPURL  string

	SchedulerBackend      string
	SchedulerPollInterval time.Duration
	SweepSchedule         string

	PremiumServiceURL  string
	WishFulfillOnClose bool
	WSPingInterval     time.Duration
	// AdminUserIDs may author and cancel notifications over HTTP.
	AdminUserIDs []uuid.UUID
}

func Load() (*Config, error) {
	// Don't fail if .env doesn't exist (might be prod env vars)
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("APP_ENV", "development")
	v.SetDefault("PORT", "8080")
	v.SetDefault("ALLOWED_ORIGINS", "http://localhost:3000")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("JWT_SECRET", "12345")
	v.SetDefault("DB_DRIVER", "postgres")
	v.SetDefault("SQLITE_PATH", "bazhay.db")
	v.SetDefault("SCHEDULER_BACKEND", "redis")
	v.SetDefault("SCHEDULER_POLL_INTERVAL", "1s")
	v.SetDefault("SWEEP_SCHEDULE", "@every 1m")
	v.SetDefault("WISH_FULFILL_ON_CLOSE", false)
	v.SetDefault("WS_PING_INTERVAL", "30s")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{
		AppEnv:         v.GetString("APP_ENV"),
		Port:           v.GetString("PORT"),
		AllowedOrigins: v.GetString("ALLOWED_ORIGINS"),
		LogLevel:       v.GetString("LOG_LEVEL"),
		JWTSecret:      v.GetString("JWT_SECRET"),

		DBDriver:    v.GetString("DB_DRIVER"),
		DatabaseURL: v.GetString("DATABASE_URL"),
		DBHost:      v.GetString("DB_HOST"),
		DBUser:      v.GetString("DB_USER"),
		DBPass:      v.GetString("DB_PASS"),
		DBName:      v.GetString("DB_NAME"),
		DBPort:      v.GetString("DB_PORT"),
		SQLitePath:  v.GetString("SQLITE_PATH"),

		RedisURL: v.GetString("REDIS_URL"),
		AMQPURL:  v.GetString("AMQP_URL"),

		SchedulerBackend: v.GetString("SCHEDULER_BACKEND"),
		SweepSchedule:    v.GetString("SWEEP_SCHEDULE"),

		PremiumServiceURL:  v.GetString("PREMIUM_SERVICE_URL"),
		WishFulfillOnClose: v.GetBool("WISH_FULFILL_ON_CLOSE"),
	}

	// Parsing durations
	var err error
	cfg.SchedulerPollInterval, err = time.ParseDuration(v.GetString("SCHEDULER_POLL_INTERVAL"))
	if err != nil {
		return nil, fmt.Errorf("invalid SCHEDULER_POLL_INTERVAL: %w", err)
	}
	cfg.WSPingInterval, err = time.ParseDuration(v.GetString("WS_PING_INTERVAL"))
	if err != nil {
		return nil, fmt.Errorf("invalid WS_PING_INTERVAL: %w", err)
	}

	cfg.AdminUserIDs, err = parseUUIDs(v.GetString("ADMIN_USER_IDS"))
	if err != nil {
		return nil, fmt.Errorf("invalid ADMIN_USER_IDS: %w", err)
	}

	switch cfg.SchedulerBackend {
	case "redis", "amqp", "memory":
	default:
		return nil, fmt.Errorf("invalid SCHEDULER_BACKEND %q", cfg.SchedulerBackend)
	}

	return cfg, nil
}

func (c *Config) Origins() []string {
	if c.AllowedOrigins == "" {
		return []string{"http://localhost:3000"}
	}
	return strings.Split(c.AllowedOrigins, ",")
}

func parseUUIDs(list string) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	for _, part := range strings.Split(list, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := uuid.Parse(part)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
