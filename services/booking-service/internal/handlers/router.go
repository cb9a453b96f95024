package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/md-rashed-zaman/slotbook/libs/auth"
	"github.com/md-rashed-zaman/slotbook/libs/httpx"
	"github.com/md-rashed-zaman/slotbook/libs/runtime"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/accounts"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/booking"
)

type RouterConfig struct {
	Booking  *booking.Service
	Accounts *accounts.Service
	Signer   *auth.Signer
	Logger   *slog.Logger

	// HTTPMetrics and MetricsHandler are optional.
	HTTPMetrics    *httpx.HTTPMetrics
	MetricsHandler http.Handler
	// PublicLimit throttles the unauthenticated routes when set.
	PublicLimit  httpx.Middleware
	ReadyChecks  []runtime.ReadyCheck
	CORS         httpx.CORSPolicy
	BodyLimit    int64
	RequestLimit time.Duration
}

// RoutePattern reports the matched chi pattern, falling back to the raw
// path for unmatched requests.
func RoutePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}

func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	bodyLimit := cfg.BodyLimit
	if bodyLimit <= 0 {
		bodyLimit = 1 << 20
	}
	requestLimit := cfg.RequestLimit
	if requestLimit <= 0 {
		requestLimit = 10 * time.Second
	}

	public := NewPublicHandler(cfg.Booking, logger)
	provider := NewProviderHandler(cfg.Booking, logger)
	authH := NewAuthHandler(cfg.Accounts, logger)

	r := chi.NewRouter()
	r.Use(httpx.WithRequestID)
	r.Use(httpx.WithAccessLog(logger))
	r.Use(httpx.WithRecover(logger))
	if cfg.HTTPMetrics != nil {
		r.Use(cfg.HTTPMetrics.Middleware(RoutePattern))
	}
	r.Use(httpx.WithCORS(cfg.CORS))

	r.Get("/healthz", runtime.HealthHandler())
	r.Get("/readyz", runtime.ReadyHandler(cfg.ReadyChecks...))
	metricsHandler := cfg.MetricsHandler
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}
	r.Method(http.MethodGet, "/metrics", metricsHandler)

	r.Route("/api/v1", func(api chi.Router) {
		api.Use(httpx.WithBodyLimit(bodyLimit))
		api.Use(httpx.WithTimeout(requestLimit))

		api.Group(func(pub chi.Router) {
			if cfg.PublicLimit != nil {
				pub.Use(cfg.PublicLimit)
			}
			pub.Get("/public/{username}/slots", public.Slots)
			pub.Post("/public/{username}/bookings", public.CreateBooking)
			pub.Post("/auth/register", authH.Register)
			pub.Post("/auth/login", authH.Login)
		})

		api.Route("/provider", func(pr chi.Router) {
			pr.Use(RequireProvider(cfg.Signer))
			pr.Get("/me", authH.Me)
			pr.Get("/rules", provider.GetRules)
			pr.Put("/rules", provider.PutRules)
			pr.Get("/bookings", provider.ListBookings)
			pr.Post("/bookings/{id}/cancel", provider.CancelBooking)
			pr.Get("/overview", provider.Overview)
		})
	})

	return r
}
