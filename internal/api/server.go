// Package api provides the Rescribe REST API server.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/FocuswithJustin/Rescribe/core/cas"
	"github.com/FocuswithJustin/Rescribe/core/convert"
	"github.com/FocuswithJustin/Rescribe/core/plugins"
	"github.com/FocuswithJustin/Rescribe/internal/logging"
	"github.com/FocuswithJustin/Rescribe/internal/metrics"
	"github.com/FocuswithJustin/Rescribe/internal/server"
)

// Version is reported by / and /health.
const Version = "0.1.0"

// Server serves conversions over HTTP. Progress of every conversion is
// broadcast on /ws and counted in /metrics.
type Server struct {
	cfg         Config
	converter   *convert.Converter
	jobs        *JobStore
	hub         *Hub
	wsLimiter   *WebSocketRateLimiter
	rateLimiter *RateLimiter
	metrics     *metrics.Metrics
	store       *cas.Store
	handler     http.Handler
	startTime   time.Time
}

// NewServer builds a server over reg. A nil reg uses plugins.Default.
func NewServer(cfg Config, reg *plugins.Registry) (*Server, error) {
	if err := ValidateAuthConfig(cfg.Auth); err != nil {
		return nil, fmt.Errorf("invalid auth config: %w", err)
	}

	s := &Server{
		cfg:       cfg,
		jobs:      NewJobStore(cfg.JobTTL),
		hub:       NewHub(),
		wsLimiter: NewWebSocketRateLimiter(),
		metrics:   metrics.New(),
		startTime: time.Now(),
	}
	if cfg.StoreDir != "" {
		store, err := cas.NewStore(cfg.StoreDir)
		if err != nil {
			return nil, fmt.Errorf("failed to open resource store: %w", err)
		}
		s.store = store
	}

	s.converter = convert.New(reg)
	s.converter.Observer = convert.Observers{s.metrics, s.hub}
	s.hub.OnClientCount = func(n int) { s.metrics.WebSocketClients.Set(float64(n)) }
	s.jobs.OnPendingCount = func(n int) { s.metrics.JobsQueued.Set(float64(n)) }

	s.handler = s.buildHandler()
	return s, nil
}

// Handler returns the HTTP handler with the full middleware chain.
func (s *Server) Handler() http.Handler { return s.handler }

// Hub returns the progress hub. It must be running (see Run) for /ws
// clients to receive messages.
func (s *Server) Hub() *Hub { return s.hub }

// Close stops background goroutines and cancels pending jobs.
func (s *Server) Close() {
	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
	}
	s.jobs.CancelAll()
}

// Run serves on cfg.Addr until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	if s.cfg.TLS.Enabled {
		if s.cfg.TLS.CertFile == "" || s.cfg.TLS.KeyFile == "" {
			return fmt.Errorf("TLS enabled but cert or key file not specified")
		}
		if _, err := os.Stat(s.cfg.TLS.CertFile); err != nil {
			return fmt.Errorf("TLS cert file not found: %w", err)
		}
		if _, err := os.Stat(s.cfg.TLS.KeyFile); err != nil {
			return fmt.Errorf("TLS key file not found: %w", err)
		}
	}

	hubCtx, stopHub := context.WithCancel(ctx)
	defer stopHub()
	go s.hub.Run(hubCtx)
	defer s.Close()

	protocol, wsProtocol := "http", "ws"
	if s.cfg.TLS.Enabled {
		protocol, wsProtocol = "https", "wss"
		logging.Info("TLS enabled", "cert_file", s.cfg.TLS.CertFile)
	} else {
		logging.Warn("TLS disabled - using plain HTTP",
			"recommendation", "consider using TLS or reverse proxy for production")
	}
	logArgs := []any{"websocket_protocol", wsProtocol}
	if s.store != nil {
		logArgs = append(logArgs, "store_dir", server.AbsPath(s.store.Root()))
	}
	logging.ServerStartup("rest_api", protocol, s.cfg.Addr, logArgs...)

	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		if s.cfg.TLS.Enabled {
			errCh <- srv.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
			return
		}
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		logging.Info("shutting down API server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// setupRoutes configures all HTTP routes. Each route is counted under its
// pattern in /metrics.
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()
	route := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, s.metrics.Middleware(pattern, h))
	}

	route("/", s.handleRoot)
	route("/health", s.handleHealth)
	route("/formats", s.handleFormats)
	route("/convert", s.handleConvert)
	route("/jobs", s.handleJobs)
	route("/jobs/{id}", s.handleJobByID)
	route("/jobs/{id}/output", s.handleJobOutput)
	route("/resources/{hash}", s.handleResource)
	route("/ws", SecureWebSocketHandler(s.hub, s.cfg.websocketConfig(), s.wsLimiter))
	mux.Handle("/metrics", s.metrics.Handler())

	return mux
}

func (s *Server) buildHandler() http.Handler {
	cfg := s.cfg

	var handler http.Handler = server.SecurityHeadersWithCSP(server.APICSPConfig(), s.setupRoutes())

	if cfg.Auth.Enabled {
		handler = AuthMiddleware(cfg.Auth, handler)
		logging.SecurityEvent("authentication_configured", "api",
			"enabled", true,
			"note", "API key required")
	} else {
		logging.SecurityEvent("authentication_configured", "api",
			"enabled", false,
			"note", "all requests allowed")
	}

	if cfg.RateLimitRequests > 0 {
		rateLimitConfig := RateLimiterConfig{
			RequestsPerMinute: cfg.RateLimitRequests,
			BurstSize:         cfg.RateLimitBurst,
			ConversionCost:    cfg.ConversionCost,
			OnReject: func(kind string) {
				s.metrics.RateLimitedTotal.WithLabelValues(kind).Inc()
			},
		}
		if rateLimitConfig.BurstSize == 0 {
			rateLimitConfig.BurstSize = 10
		}
		s.rateLimiter = NewRateLimiter(rateLimitConfig)
		handler = s.rateLimiter.Middleware(handler)
		logging.Info("rate limiting enabled",
			"requests_per_minute", rateLimitConfig.RequestsPerMinute,
			"burst_size", rateLimitConfig.BurstSize,
			"conversion_cost", s.rateLimiter.cost)
	}

	handler = server.CORSMiddlewareWithConfig(server.CORSConfig{AllowedOrigins: cfg.AllowedOrigins}, handler)
	if len(cfg.AllowedOrigins) > 0 {
		logging.SecurityEvent("cors_configured", "api",
			"mode", "restricted",
			"allowed_origins_count", len(cfg.AllowedOrigins))
	} else {
		logging.SecurityEvent("cors_configured", "api",
			"mode", "permissive",
			"note", "allowing all origins (*) - consider restricting for production")
	}

	return logging.CombinedMiddleware(handler)
}
