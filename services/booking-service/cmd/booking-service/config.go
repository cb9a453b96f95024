package main

import (
	"fmt"
	"time"

	"github.com/md-rashed-zaman/slotbook/libs/config"
)

type serviceConfig struct {
	Service string
	Port    string

	StoreDriver   string
	DatabaseURL   string
	SQLitePath    string
	AutoMigrate   bool
	StoreTimeout  time.Duration
	Location      *time.Location
	Granularity   time.Duration
	WindowDays    int
	MaxWindowDays int

	JWTSecret string
	JWTTTL    time.Duration

	KafkaBrokers string

	RedisAddr         string
	RedisPassword     string
	RedisDB           int
	RateLimitPerMin   int
	RateLimitFailOpen bool

	CORSOrigins    []string
	BodyLimit      int64
	RequestTimeout time.Duration
}

func loadConfig() (serviceConfig, error) {
	var (
		cfg serviceConfig
		err error
	)
	cfg.Service = config.String("SERVICE_NAME", "booking-service")
	if cfg.Port, err = config.Port("PORT", "8083"); err != nil {
		return cfg, err
	}

	cfg.StoreDriver = config.String("STORE_DRIVER", "postgres")
	switch cfg.StoreDriver {
	case "postgres":
		if cfg.DatabaseURL, err = config.RequiredString("DATABASE_URL"); err != nil {
			return cfg, err
		}
	case "sqlite":
		cfg.SQLitePath = config.String("SQLITE_PATH", "slotbook.db")
	default:
		return cfg, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
	}
	cfg.AutoMigrate = config.Bool("DB_AUTO_MIGRATE", true)
	if cfg.StoreTimeout, err = config.Duration("STORE_TIMEOUT", 3*time.Second); err != nil {
		return cfg, err
	}

	if cfg.Location, err = time.LoadLocation(config.String("SCHEDULE_TIMEZONE", "UTC")); err != nil {
		return cfg, fmt.Errorf("SCHEDULE_TIMEZONE: %w", err)
	}
	minutes, err := config.Int("SLOT_GRANULARITY_MINUTES", 60)
	if err != nil {
		return cfg, err
	}
	if minutes <= 0 || minutes > 24*60 {
		return cfg, fmt.Errorf("SLOT_GRANULARITY_MINUTES must be between 1 and 1440")
	}
	cfg.Granularity = time.Duration(minutes) * time.Minute
	if cfg.WindowDays, err = config.Int("BOOKING_WINDOW_DAYS", 14); err != nil {
		return cfg, err
	}
	if cfg.MaxWindowDays, err = config.Int("MAX_WINDOW_DAYS", 60); err != nil {
		return cfg, err
	}

	if cfg.JWTSecret, err = config.RequiredString("JWT_SECRET"); err != nil {
		return cfg, err
	}
	if cfg.JWTTTL, err = config.Duration("JWT_TTL", 24*time.Hour); err != nil {
		return cfg, err
	}

	cfg.KafkaBrokers = config.String("KAFKA_BROKERS", "")

	cfg.RedisAddr = config.String("REDIS_ADDR", "")
	cfg.RedisPassword = config.String("REDIS_PASSWORD", "")
	if cfg.RedisDB, err = config.Int("REDIS_DB", 0); err != nil {
		return cfg, err
	}
	if cfg.RateLimitPerMin, err = config.Int("RATE_LIMIT_PER_MINUTE", 60); err != nil {
		return cfg, err
	}
	cfg.RateLimitFailOpen = config.Bool("RATE_LIMIT_FAIL_OPEN", true)

	cfg.CORSOrigins = config.List("CORS_ALLOWED_ORIGINS")
	limit, err := config.Int("REQUEST_BODY_LIMIT_BYTES", 1<<20)
	if err != nil {
		return cfg, err
	}
	cfg.BodyLimit = int64(limit)
	seconds, err := config.Int("REQUEST_TIMEOUT_SECONDS", 10)
	if err != nil {
		return cfg, err
	}
	cfg.RequestTimeout = time.Duration(seconds) * time.Second
	return cfg, nil
}
