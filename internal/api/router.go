package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// RouterConfig carries every dependency the HTTP router needs. It is
// designed for injection: tests pass mocks and a permissive rate limit.
type RouterConfig struct {
	// State is the dispatcher surface (required).
	State StateSource

	// Board serves leaderboard queries (required).
	Board LeaderboardSource

	// Stats serves single-player stat lookups (required).
	Stats PlayerStatsSource

	// Status is static metadata for the status endpoint.
	Status StatusInfo

	// MaxEntries caps the leaderboard limit parameter. Zero means 200.
	MaxEntries int

	// RateLimiter is optional; nil constructs one from RateLimitConfig.
	RateLimiter *IPRateLimiter

	// RateLimitConfig is used only when RateLimiter is nil.
	RateLimitConfig *RateLimitConfig

	// CORSOrigins overrides the allowed origins. Nil allows any origin,
	// matching the public read-only nature of the API.
	CORSOrigins []string

	// DisableLogging turns off the request logger (benchmarks, tests).
	DisableLogging bool
}

// NewRouter builds the HTTP router. The function is pure: no goroutines,
// no listeners, safe to hand straight to httptest.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	if !cfg.DisableLogging {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.Recoverer)

	// Rate limiting before CORS so abusive traffic is dropped early.
	rateLimiter := cfg.RateLimiter
	if rateLimiter == nil {
		rlCfg := DefaultRateLimitConfig
		if cfg.RateLimitConfig != nil {
			rlCfg = *cfg.RateLimitConfig
		}
		rateLimiter = NewIPRateLimiter(rlCfg)
	}
	r.Use(rateLimiter.Middleware)

	origins := cfg.CORSOrigins
	if origins == nil {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Use(metricsMiddleware)

	maxEntries := cfg.MaxEntries
	if maxEntries <= 0 {
		maxEntries = 200
	}
	h := &routerHandlers{
		state:      cfg.State,
		board:      cfg.Board,
		stats:      cfg.Stats,
		status:     cfg.Status,
		maxEntries: maxEntries,
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", h.handleStatus)
		r.Get("/map", h.handleGetMap)
		r.Get("/map/delta", h.handleGetMapDelta)
		r.Get("/leaderboard", h.handleLeaderboard)
		r.Get("/leaderboard/player", h.handlePlayerStats)
		r.Post("/round", h.handlePublishRound)
	})

	r.Handle("/metrics", MetricsHandler())

	return r
}
