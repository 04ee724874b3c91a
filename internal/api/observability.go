package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/xk2013awa/CodingSnake/internal/game"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics keep bounded cardinality: endpoint labels are chi route
// patterns, never raw URLs or player ids.
var (
	roundDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "snake_round_publish_duration_seconds",
		Help:    "Time spent swapping snapshots and computing the round delta",
		Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1},
	})

	currentRound = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "snake_current_round",
		Help: "Round number of the current authoritative snapshot",
	})

	playerCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "snake_player_count",
		Help: "Players present in the current snapshot",
	})

	foodCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "snake_food_count",
		Help: "Food items present in the current snapshot",
	})

	deltaSize = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "snake_delta_entries",
		Help: "Entry counts of the latest round delta",
	}, []string{"kind"}) // bounded: persisted, joined, died, added_foods, removed_foods

	cacheEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "leaderboard_cache_events_total",
		Help: "Leaderboard cache hits, misses and recomputations",
	}, []string{"event"}) // bounded: hit, miss, recompute

	rateLimited = promauto.NewCounter(prometheus.CounterOpts{
		Name: "http_rate_limited_total",
		Help: "Requests rejected by the per-IP rate limiter",
	})

	requestLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "endpoint"})

	requestTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "endpoint", "status"})

	wsConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "websocket_connections_active",
		Help: "Currently active WebSocket connections",
	})

	wsMessagesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "websocket_messages_total",
		Help: "Total WebSocket messages sent",
	})
)

// ObserveRound records snapshot and delta gauges after each accepted
// round; wire it to the dispatcher as a round listener.
func ObserveRound(state *game.MapState, delta *game.DeltaState) {
	currentRound.Set(float64(state.Round))
	playerCount.Set(float64(len(state.Players)))
	foodCount.Set(float64(len(state.Foods)))

	if delta == nil {
		return
	}
	deltaSize.WithLabelValues("persisted").Set(float64(len(delta.Players)))
	deltaSize.WithLabelValues("joined").Set(float64(len(delta.JoinedPlayers)))
	deltaSize.WithLabelValues("died").Set(float64(len(delta.DiedPlayers)))
	deltaSize.WithLabelValues("added_foods").Set(float64(len(delta.AddedFoods)))
	deltaSize.WithLabelValues("removed_foods").Set(float64(len(delta.RemovedFoods)))
}

// ObserveRoundDuration records how long a PublishRound call took.
func ObserveRoundDuration(d time.Duration) {
	roundDuration.Observe(d.Seconds())
}

// RecordCacheHit, RecordCacheMiss and RecordCacheRecompute are the hook
// targets for the leaderboard cache.
func RecordCacheHit()       { cacheEvents.WithLabelValues("hit").Inc() }
func RecordCacheMiss()      { cacheEvents.WithLabelValues("miss").Inc() }
func RecordCacheRecompute() { cacheEvents.WithLabelValues("recompute").Inc() }

func recordRateLimited() { rateLimited.Inc() }

// MetricsHandler exposes the prometheus registry.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// metricsMiddleware instruments every request with the chi route pattern
// as the endpoint label.
func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		endpoint := chi.RouteContext(r.Context()).RoutePattern()
		if endpoint == "" {
			endpoint = "unmatched"
		}
		requestLatency.WithLabelValues(r.Method, endpoint).Observe(time.Since(start).Seconds())
		requestTotal.WithLabelValues(r.Method, endpoint, strconv.Itoa(rec.status)).Inc()
	})
}
