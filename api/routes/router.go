package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/quotedesk-backend/api/controllers"
	"github.com/angelmondragon/quotedesk-backend/api/middleware"
	"github.com/angelmondragon/quotedesk-backend/internal/partslists"
	"github.com/angelmondragon/quotedesk-backend/internal/quotes"
	"github.com/angelmondragon/quotedesk-backend/internal/reviews"
	"github.com/angelmondragon/quotedesk-backend/pkg/config"
	"github.com/angelmondragon/quotedesk-backend/pkg/db"
	"github.com/angelmondragon/quotedesk-backend/pkg/logger"
	"github.com/angelmondragon/quotedesk-backend/pkg/metrics"
	pkgredis "github.com/angelmondragon/quotedesk-backend/pkg/redis"
)

// RedisStore is the slice of the redis client the HTTP layer leans on.
type RedisStore interface {
	pkgredis.IdempotencyStore
	middleware.RevocationChecker
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
	Ping(ctx context.Context) error
}

// Params wires the router. Redis may be nil, which disables revocation
// checks, idempotency replay and rate limiting.
type Params struct {
	Config      *config.Config
	Logger      *logger.Logger
	DB          db.Pinger
	Redis       RedisStore
	HTTPMetrics *metrics.HTTPMetrics
	Gatherer    prometheus.Gatherer
	Quotes      quotes.Service
	PartsLists  partslists.Service
	Reviews     reviews.Service
	Events      controllers.EventSource
}

func NewRouter(p Params) http.Handler {
	cfg, logg := p.Config, p.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg, p.HTTPMetrics),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	// keep typed-nil redis clients from reaching the middleware as non-nil interfaces
	var (
		revocations middleware.RevocationChecker
		idempotency pkgredis.IdempotencyStore
		rateStore   RedisStore
		readiness   = []controllers.ReadinessCheck{{Name: "database", Pinger: p.DB}}
	)
	if p.Redis != nil {
		revocations, idempotency, rateStore = p.Redis, p.Redis, p.Redis
		readiness = append(readiness, controllers.ReadinessCheck{Name: "redis", Pinger: p.Redis})
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, readiness...))
	})

	if p.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(p.Gatherer, promhttp.HandlerOpts{}))
	}

	apiPolicy := middleware.NewRateLimitPolicy(
		"api",
		cfg.RateLimit.Window,
		cfg.RateLimit.IPLimit,
		cfg.RateLimit.UserLimit,
	)

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, revocations, logg))
		if rateStore != nil {
			r.Use(middleware.RateLimit(apiPolicy, rateStore, logg))
		}
		r.Use(middleware.RequireWrite(logg))
		r.Use(middleware.Idempotency(idempotency, logg))

		r.Get("/ping", controllers.PrivatePing())

		r.Route("/v1", func(r chi.Router) {
			r.Route("/quotes", func(r chi.Router) {
				r.Get("/", controllers.QuoteList(p.Quotes, logg))
				r.Post("/", controllers.QuoteCreate(p.Quotes, logg))
				r.Route("/{quoteId}", func(r chi.Router) {
					r.Get("/", controllers.QuoteGet(p.Quotes, logg))
					r.Patch("/", controllers.QuoteUpdate(p.Quotes, logg))
					r.Get("/items", controllers.QuoteItems(p.Quotes, logg))
					r.Put("/items", controllers.QuoteReplaceItems(p.Quotes, logg))
					r.Get("/export.xlsx", controllers.QuoteExport(p.Quotes, logg))
					r.Post("/reviews", controllers.ReviewStart(p.Reviews, logg))
				})
			})
			r.Get("/reviews/{jobId}", controllers.ReviewGet(p.Reviews, logg))
			r.Route("/tickets/{ticketId}", func(r chi.Router) {
				r.Get("/parts", controllers.TicketParts(p.PartsLists, logg))
				r.Put("/parts", controllers.TicketReplaceParts(p.PartsLists, logg))
			})
			r.Get("/events", controllers.EventsStream(p.Events, cfg.Events, logg))
		})
	})

	return r
}
