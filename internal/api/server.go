package api

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Server combines the HTTP router with the WebSocket hub.
//
// Construction starts nothing: no goroutines, no listeners. Start is the
// only method with side effects, which keeps the server testable through
// Router() and httptest.
type Server struct {
	router      *chi.Mux
	wsHub       *WebSocketHub
	rateLimiter *IPRateLimiter
}

// NewServer builds the full API server from a router configuration.
func NewServer(cfg RouterConfig) *Server {
	s := &Server{
		wsHub: NewWebSocketHub(),
	}

	if cfg.RateLimiter == nil {
		rlCfg := DefaultRateLimitConfig
		if cfg.RateLimitConfig != nil {
			rlCfg = *cfg.RateLimitConfig
		}
		cfg.RateLimiter = NewIPRateLimiter(rlCfg)
	}
	s.rateLimiter = cfg.RateLimiter

	s.router = NewRouter(cfg)
	s.router.Get("/ws", s.wsHub.HandleWebSocket)

	return s
}

// Hub exposes the WebSocket hub so the dispatcher can be wired to it.
func (s *Server) Hub() *WebSocketHub {
	return s.wsHub
}

// Router returns the HTTP handler, for httptest in integration tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// Start launches the broadcast pump and serves HTTP on addr. It blocks.
func (s *Server) Start(addr string) error {
	go s.wsHub.Run()

	log.Printf("API server listening on %s", addr)
	return http.ListenAndServe(addr, s.router)
}

// Stop shuts down background workers.
func (s *Server) Stop() {
	s.wsHub.Stop()
	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
	}
}
