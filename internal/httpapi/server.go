// Package httpapi serves the read-only query surface: the signal log,
// process health and metrics.
package httpapi

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/pumpwatch/pumpwatch/internal/detector"
	"github.com/pumpwatch/pumpwatch/internal/exchange/binance"
	"github.com/pumpwatch/pumpwatch/internal/signal"
)

type ctxKey string

const requestIDKey ctxKey = "request_id"

// SignalSource is the read side of the signal log.
type SignalSource interface {
	Snapshot() []signal.Signal
	Len() int
}

// CycleStatus reports the detector's state machine.
type CycleStatus interface {
	Status() detector.Status
}

// ExchangeHealth reports upstream client statistics.
type ExchangeHealth interface {
	Health() binance.Health
}

// UniverseInfo reports the cached universe size.
type UniverseInfo interface {
	Size() int
}

// Deps are the read-only views the server exposes.
type Deps struct {
	Signals  SignalSource
	Detector CycleStatus
	Exchange ExchangeHealth
	Universe UniverseInfo
	Metrics  http.Handler
}

// Config holds server settings.
type Config struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

func DefaultConfig() Config {
	return Config{
		Addr:         ":8080",
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// Server is the read-only HTTP server. It never mutates detector state.
type Server struct {
	router *mux.Router
	server *http.Server
	deps   Deps
	cfg    Config
}

func NewServer(cfg Config, deps Deps) (*Server, error) {
	if cfg.Addr == "" {
		cfg.Addr = DefaultConfig().Addr
	}

	// Fail fast when the port is taken instead of erroring at serve time.
	listener, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return nil, fmt.Errorf("listen address %s unavailable: %w", cfg.Addr, err)
	}
	listener.Close()

	s := &Server{
		router: mux.NewRouter(),
		deps:   deps,
		cfg:    cfg,
	}
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return s, nil
}

func (s *Server) setupRoutes() {
	s.router.Use(s.requestIDMiddleware)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(s.timeoutMiddleware)
	s.router.Use(s.corsMiddleware)

	api := s.router.PathPrefix("/").Subrouter()
	api.Use(s.jsonContentTypeMiddleware)
	api.HandleFunc("/signals", s.handleSignals).Methods(http.MethodGet)
	api.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	// Prometheus exposition writes its own content type.
	if s.deps.Metrics != nil {
		s.router.Handle("/metrics", s.deps.Metrics).Methods(http.MethodGet)
	}

	s.router.NotFoundHandler = http.HandlerFunc(s.handleNotFound)
}

// SignalsResponse is the GET /signals payload.
type SignalsResponse struct {
	DetectedSignals []signal.Signal `json:"detected_signals"`
}

func (s *Server) handleSignals(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, SignalsResponse{
		DetectedSignals: s.deps.Signals.Snapshot(),
	})
}

// HealthResponse is the GET /health payload.
type HealthResponse struct {
	Status       string          `json:"status"`
	Timestamp    time.Time       `json:"timestamp"`
	Detector     detector.Status `json:"detector"`
	Exchange     binance.Health  `json:"exchange"`
	UniverseSize int             `json:"universe_size"`
	SignalCount  int             `json:"signal_count"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	exchange := s.deps.Exchange.Health()
	status := "healthy"
	if !exchange.Healthy {
		status = "degraded"
	}

	s.writeJSON(w, http.StatusOK, HealthResponse{
		Status:       status,
		Timestamp:    time.Now().UTC(),
		Detector:     s.deps.Detector.Status(),
		Exchange:     exchange,
		UniverseSize: s.deps.Universe.Size(),
		SignalCount:  s.deps.Signals.Len(),
	})
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	s.writeError(w, r, http.StatusNotFound, "endpoint_not_found", "the requested endpoint does not exist")
}

// Start blocks serving requests until Shutdown or a listener error.
func (s *Server) Start() error {
	log.Info().Str("addr", s.cfg.Addr).Msg("http server starting (read-only)")
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	log.Info().Msg("http server shutting down")
	return s.server.Shutdown(ctx)
}

func (s *Server) Addr() string { return s.cfg.Addr }
