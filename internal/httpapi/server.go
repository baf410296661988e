// Package httpapi serves read-only introspection over the decision engine:
// current regime, learned weights, specialist values, rolling performance,
// and the recent-decision audit ring. The single write operation is the
// explicit circuit-breaker reset.
package httpapi

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"quantmind/internal/engine"
	"quantmind/internal/model"
)

// Config controls the server.
type Config struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	RateRPS      float64       `yaml:"rate_rps"`
	RateBurst    int           `yaml:"rate_burst"`
}

func (c *Config) applyDefaults() {
	if c.Addr == "" {
		c.Addr = ":8090"
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 10 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 10 * time.Second
	}
	if c.RateRPS <= 0 {
		c.RateRPS = 20
	}
	if c.RateBurst <= 0 {
		c.RateBurst = 40
	}
}

// Server wraps the engine behind a gorilla router.
type Server struct {
	cfg    Config
	engine *engine.Engine
	log    zerolog.Logger
	router *mux.Router
	srv    *http.Server

	mu       sync.Mutex
	limiters map[string]*clientLimiter
}

// Idle limiters are swept once the map reaches limiterSweepAt entries, so a
// churning client population cannot grow it without bound.
const (
	limiterIdleTTL = 10 * time.Minute
	limiterSweepAt = 1024
)

type clientLimiter struct {
	lim  *rate.Limiter
	seen time.Time
}

// New builds the server. metricsHandler serves the Prometheus scrape; pass
// telemetry.Metrics.Handler().
func New(cfg Config, eng *engine.Engine, metricsHandler http.Handler, log zerolog.Logger) *Server {
	cfg.applyDefaults()
	s := &Server{
		cfg:      cfg,
		engine:   eng,
		log:      log,
		router:   mux.NewRouter(),
		limiters: make(map[string]*clientLimiter),
	}

	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.Handle("/metrics", metricsHandler).Methods(http.MethodGet)

	v1 := s.router.PathPrefix("/v1").Subrouter()
	v1.Use(s.rateLimit)
	v1.HandleFunc("/regime", s.handleRegime).Methods(http.MethodGet)
	v1.HandleFunc("/weights", s.handleWeights).Methods(http.MethodGet)
	v1.HandleFunc("/learners", s.handleLearners).Methods(http.MethodGet)
	v1.HandleFunc("/performance", s.handlePerformance).Methods(http.MethodGet)
	v1.HandleFunc("/decisions/recent", s.handleRecentDecisions).Methods(http.MethodGet)
	v1.HandleFunc("/breaker/reset", s.handleBreakerReset).Methods(http.MethodPost)

	s.srv = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until the listener fails or Shutdown runs.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.cfg.Addr).Msg("http api listening")
	err := s.srv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// rateLimit admits requests per client address.
func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiterFor(clientKey(r)).Allow() {
			s.writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) limiterFor(key string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	if len(s.limiters) >= limiterSweepAt {
		s.sweepLimitersLocked(now)
	}
	c, ok := s.limiters[key]
	if !ok {
		c = &clientLimiter{lim: rate.NewLimiter(rate.Limit(s.cfg.RateRPS), s.cfg.RateBurst)}
		s.limiters[key] = c
	}
	c.seen = now
	return c.lim
}

func (s *Server) sweepLimitersLocked(now time.Time) {
	for key, c := range s.limiters {
		if now.Sub(c.seen) > limiterIdleTTL {
			delete(s.limiters, key)
		}
	}
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleRegime(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"state":  s.engine.RegimeState(),
		"belief": s.engine.RegimeBelief(),
		"stats":  s.engine.RegimeStats(),
	})
}

func (s *Server) handleWeights(w http.ResponseWriter, r *http.Request) {
	regime, ok := s.regimeParam(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"regime":  regime,
		"weights": s.engine.MeanWeights(regime),
	})
}

func (s *Server) handleLearners(w http.ResponseWriter, r *http.Request) {
	regime, ok := s.regimeParam(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"regime": regime,
		"values": s.engine.LearnerValues(regime),
	})
}

func (s *Server) handlePerformance(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"metrics": s.engine.Metrics(),
		"breaker": s.engine.Breaker(),
		"pending": s.engine.PendingDecisions(),
	})
}

func (s *Server) handleRecentDecisions(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			s.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"decisions": s.engine.RecentDecisions(limit),
	})
}

func (s *Server) handleBreakerReset(w http.ResponseWriter, _ *http.Request) {
	s.engine.ResetBreaker()
	s.writeJSON(w, http.StatusOK, map[string]any{
		"breaker": s.engine.Breaker(),
	})
}

// regimeParam parses the required ?regime= query argument.
func (s *Server) regimeParam(w http.ResponseWriter, r *http.Request) (model.Regime, bool) {
	raw := r.URL.Query().Get("regime")
	if raw == "" {
		s.writeError(w, http.StatusBadRequest, "regime query parameter required")
		return model.RegimeUnknown, false
	}
	regime := model.Regime(raw)
	if regime == model.RegimeUnknown || !regime.Valid() {
		s.writeError(w, http.StatusBadRequest, "unknown regime "+raw)
		return model.RegimeUnknown, false
	}
	return regime, true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Warn().Err(err).Msg("response encode failed")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
