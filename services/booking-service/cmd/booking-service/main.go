package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/md-rashed-zaman/slotbook/libs/auth"
	"github.com/md-rashed-zaman/slotbook/libs/config"
	"github.com/md-rashed-zaman/slotbook/libs/db"
	"github.com/md-rashed-zaman/slotbook/libs/httpx"
	"github.com/md-rashed-zaman/slotbook/libs/kafkax"
	otelx "github.com/md-rashed-zaman/slotbook/libs/otel"
	"github.com/md-rashed-zaman/slotbook/libs/runtime"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/accounts"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/handlers"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/metrics"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/outbox"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/storage/postgres"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/storage/sqlite"
)

type providerStore interface {
	booking.ProviderDirectory
	accounts.Store
}

// backend is the set of stores behind one STORE_DRIVER.
type backend struct {
	rules     booking.RuleStore
	bookings  booking.BookingStore
	providers providerStore
	outbox    outbox.Store
	ready     runtime.ReadyCheck
	close     func()
}

func openBackend(ctx context.Context, cfg serviceConfig, logger *slog.Logger) (*backend, error) {
	if cfg.StoreDriver == "sqlite" {
		store, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return &backend{
			rules:     store,
			bookings:  store,
			providers: store,
			outbox:    store,
			ready:     runtime.ReadyCheck{Name: "sqlite", Check: store.Ping},
			close:     func() { _ = store.Close() },
		}, nil
	}

	pool, err := db.Open(ctx, cfg.DatabaseURL, db.Options{Logger: logger})
	if err != nil {
		return nil, err
	}
	if cfg.AutoMigrate {
		if err := postgres.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
	}
	ob := outbox.NewRepository(pool)
	return &backend{
		rules:     postgres.NewRuleRepository(pool, ob),
		bookings:  postgres.NewBookingRepository(pool, ob),
		providers: postgres.NewProviderRepository(pool),
		outbox:    ob,
		ready:     runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		close:     pool.Close,
	}, nil
}

func main() {
	if err := config.Load(".env"); err != nil {
		slog.Error("env file load failed", "err", err)
		os.Exit(1)
	}
	cfg, err := loadConfig()
	if err != nil {
		slog.Error("invalid configuration", "err", err)
		os.Exit(1)
	}
	logger := runtime.NewLogger(cfg.Service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(cfg.Service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	be, err := openBackend(ctx, cfg, logger)
	if err != nil {
		logger.Error("store open failed", "driver", cfg.StoreDriver, "err", err)
		os.Exit(1)
	}
	defer be.close()

	publisher := outbox.NewPublisher(be.outbox, logger, outbox.PublisherConfig{
		Brokers:   cfg.KafkaBrokers,
		PollEvery: 2 * time.Second,
		BatchSize: 50,
	})
	go publisher.Run(ctx)

	signer, err := auth.NewSigner(cfg.JWTSecret, cfg.Service, cfg.JWTTTL)
	if err != nil {
		logger.Error("jwt signer init failed", "err", err)
		os.Exit(1)
	}

	bookingSvc := booking.NewService(be.rules, be.bookings, be.providers, logger,
		booking.Config{
			WindowDays:    cfg.WindowDays,
			MaxWindowDays: cfg.MaxWindowDays,
			Granularity:   cfg.Granularity,
			Location:      cfg.Location,
			StoreTimeout:  cfg.StoreTimeout,
		},
		booking.WithMetrics(metrics.New(prometheus.DefaultRegisterer)),
	)
	accountSvc := accounts.NewService(be.providers, signer, logger)

	checks := []runtime.ReadyCheck{be.ready}
	if cfg.KafkaBrokers != "" {
		checks = append(checks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(cfg.KafkaBrokers)})
	}

	var publicLimit httpx.Middleware
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		defer rdb.Close()
		publicLimit = httpx.NewRedisRateLimiter(rdb, cfg.RateLimitPerMin, time.Minute, "slotbook:rl").
			Middleware(logger, cfg.RateLimitFailOpen)
		checks = append(checks, runtime.ReadyCheck{Name: "redis", Check: httpx.RedisReadyCheck(rdb)})
	} else {
		limiter := httpx.NewRateLimiter(cfg.RateLimitPerMin, time.Minute)
		limiter.StartJanitor(ctx, time.Minute)
		publicLimit = limiter.Middleware()
	}

	router := handlers.NewRouter(handlers.RouterConfig{
		Booking:        bookingSvc,
		Accounts:       accountSvc,
		Signer:         signer,
		Logger:         logger,
		HTTPMetrics:    httpx.NewHTTPMetrics(prometheus.DefaultRegisterer, "slotbook"),
		MetricsHandler: promhttp.Handler(),
		PublicLimit:    publicLimit,
		ReadyChecks:    checks,
		CORS:           httpx.CORSPolicy{AllowedOrigins: cfg.CORSOrigins, MaxAge: 10 * time.Minute},
		BodyLimit:      cfg.BodyLimit,
		RequestLimit:   cfg.RequestTimeout,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           otelhttp.NewHandler(router, "booking"),
		ReadHeaderTimeout: 5 * time.Second,
	}
	logger.Info("booking service starting",
		"store", cfg.StoreDriver,
		"timezone", cfg.Location.String(),
		"granularity", cfg.Granularity.String(),
		"window_days", cfg.WindowDays,
	)
	if err := runtime.Serve(ctx, srv, logger, 10*time.Second); err != nil {
		logger.Error("http server error", "err", err)
	}
}
