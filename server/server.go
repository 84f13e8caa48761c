// Package server wires the translate pipeline into an HTTP server: chi
// routes, the middleware stack and the process lifecycle.
package server

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/tarjuman/tarjuman/config"
	"github.com/tarjuman/tarjuman/errors"
	"github.com/tarjuman/tarjuman/server/circuitbreaker"
	"github.com/tarjuman/tarjuman/server/handlers"
	"github.com/tarjuman/tarjuman/server/metrics"
	"github.com/tarjuman/tarjuman/server/middleware"
	"github.com/tarjuman/tarjuman/server/ratelimit"
	"github.com/tarjuman/tarjuman/server/translation"
	"github.com/tarjuman/tarjuman/server/validation"
)

// Server represents the HTTP server
type Server struct {
	cfg        *config.Config
	logger     *zap.Logger
	level      *zap.AtomicLevel
	metrics    *metrics.Metrics
	generator  translation.Generator
	translator *translation.Translator
	limiter    ratelimit.Limiter
	queue      *middleware.QueueMiddleware
	watcher    config.Watcher
	router     chi.Router
	httpServer *http.Server

	ready   chan struct{}
	addr    string
	addrMu  sync.RWMutex
	started atomic.Bool
}

// Option configures a Server.
type Option func(*Server)

// WithGenerator replaces the generator built from the llm config.
func WithGenerator(gen translation.Generator) Option {
	return func(s *Server) {
		s.generator = gen
	}
}

// WithLimiter replaces the limiter built from the rate_limit config.
func WithLimiter(l ratelimit.Limiter) Option {
	return func(s *Server) {
		s.limiter = l
	}
}

// WithWatcher applies reloaded configs while the server runs.
func WithWatcher(w config.Watcher) Option {
	return func(s *Server) {
		s.watcher = w
	}
}

// WithLogLevel lets reloads change the log level.
func WithLogLevel(level zap.AtomicLevel) Option {
	return func(s *Server) {
		s.level = &level
	}
}

// WithMetrics uses m instead of a fresh registry.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// NewServer builds the full pipeline from cfg.
func NewServer(cfg *config.Config, logger *zap.Logger, opts ...Option) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		cfg:    cfg,
		logger: logger,
		ready:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.metrics == nil {
		s.metrics = metrics.NewMetrics()
	}

	if s.generator == nil {
		gen, err := translation.NewGenerator(cfg.LLM)
		if err != nil {
			return nil, fmt.Errorf("failed to create generator: %w", err)
		}
		s.generator = gen
	}

	trOpts := []translation.Option{
		translation.WithInstructions(cfg.LLM.Instructions, cfg.LLM.InstructionsVersion),
		translation.WithDecoder(translation.Decoder{CleanJSON: cfg.LLM.CleanJSON}),
		translation.WithMetrics(s.metrics),
		translation.WithLogger(logger),
		translation.WithBackendName(cfg.LLM.Backend),
	}
	if cfg.CircuitBreaker.Enabled {
		cb, err := circuitbreaker.NewCircuitBreaker(circuitbreaker.Config{
			Name:             "llm",
			MaxRequests:      cfg.CircuitBreaker.MaxRequests,
			Interval:         cfg.CircuitBreaker.Interval,
			Timeout:          cfg.CircuitBreaker.Timeout,
			FailureThreshold: cfg.CircuitBreaker.FailureThreshold,
		}, logger, s.metrics.Registry())
		if err != nil {
			return nil, fmt.Errorf("failed to create circuit breaker: %w", err)
		}
		trOpts = append(trOpts, translation.WithCircuitBreaker(cb))
	}
	s.translator = translation.NewTranslator(s.generator, trOpts...)

	v, err := validation.NewFromConfig(cfg)
	if err != nil {
		return nil, err
	}

	if cfg.RateLimit.Enabled && s.limiter == nil {
		l, err := ratelimit.New(cfg.RateLimit)
		if err != nil {
			return nil, fmt.Errorf("failed to create rate limiter: %w", err)
		}
		s.limiter = l
	}
	if !cfg.RateLimit.Enabled {
		s.limiter = nil
	}

	if cfg.Queue.Enabled {
		s.queue = middleware.NewQueueMiddleware(middleware.QueueConfig{
			MaxSize: cfg.Queue.MaxSize,
			Metrics: s.metrics,
		})
	}

	s.router = s.routes(handlers.NewTranslateHandler(v, s.translator, logger))
	s.httpServer = &http.Server{
		Addr:           fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:        s.router,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
	}

	return s, nil
}

func (s *Server) routes(translate http.Handler) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTimer)
	r.Use(middleware.Logging(s.logger))
	r.Use(middleware.PrometheusMetrics(s.metrics))
	r.Use(middleware.Recovery(s.logger))
	r.Use(middleware.CORS(s.cfg.CORS.AllowedOrigins))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		errors.ErrorWithType(w, "Not found", errors.NotFoundError, http.StatusNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		errors.ErrorWithType(w, "Method not allowed", errors.ValidationError, http.StatusMethodNotAllowed)
	})

	r.Get("/health", handlers.Health(s))
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		if s.limiter != nil {
			r.Use(middleware.RateLimit(
				s.limiter,
				ratelimit.ClientAddress(s.cfg.RateLimit.TrustForwardedFor),
				s.metrics,
				s.logger,
			))
		}
		if s.queue != nil {
			r.Use(s.queue.Handler)
		}
		r.With(middleware.Timeout(s.cfg.LLM.Timeout)).Method(http.MethodPost, "/translate", translate)
	})

	return r
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// CircuitState implements handlers.StatusSource.
func (s *Server) CircuitState() string {
	return s.translator.CircuitState()
}

// InstructionsVersion implements handlers.StatusSource.
func (s *Server) InstructionsVersion() string {
	return s.translator.InstructionsVersion()
}

// Addr blocks until Start is listening and returns the bound address, or
// "" if listening failed.
func (s *Server) Addr() string {
	<-s.ready
	s.addrMu.RLock()
	defer s.addrMu.RUnlock()
	return s.addr
}

// Start runs the HTTP server, the rate limiter janitor and the config
// watcher until ctx is done, then shuts down gracefully within
// server.shutdown_timeout. It can be called once.
func (s *Server) Start(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		return fmt.Errorf("server already started")
	}

	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		close(s.ready)
		return fmt.Errorf("failed to listen on %s: %w", s.httpServer.Addr, err)
	}
	s.addrMu.Lock()
	s.addr = ln.Addr().String()
	s.addrMu.Unlock()
	close(s.ready)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info("Server started",
			zap.String("address", s.addr),
			zap.String("backend", s.cfg.LLM.Backend),
			zap.String("model", s.cfg.LLM.Model),
			zap.String("instructions_version", s.InstructionsVersion()),
		)
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		return s.shutdown()
	})

	if j, ok := s.limiter.(ratelimit.Janitor); ok {
		g.Go(func() error {
			j.Run(gctx, s.cfg.RateLimit.CleanupInterval)
			return nil
		})
	}

	if s.watcher != nil {
		g.Go(func() error {
			s.watchConfig(gctx)
			return nil
		})
	}

	err = g.Wait()

	if c, ok := s.limiter.(io.Closer); ok {
		if cerr := c.Close(); cerr != nil {
			s.logger.Warn("Failed to close rate limiter", zap.Error(cerr))
		}
	}
	return err
}

func (s *Server) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()

	s.logger.Info("Shutting down server")

	if s.queue != nil {
		if err := s.queue.Shutdown(ctx); err != nil {
			s.logger.Warn("Queue did not drain before shutdown timeout", zap.Error(err))
		}
	}
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("error during server shutdown: %w", err)
	}
	return nil
}

func (s *Server) watchConfig(ctx context.Context) {
	updates := s.watcher.Subscribe()
	for {
		select {
		case <-ctx.Done():
			return
		case cfg, ok := <-updates:
			if !ok {
				return
			}
			s.applyConfig(cfg)
		}
	}
}

// applyConfig picks up the settings that can change without a restart:
// the instruction template, the log level and the queue size.
func (s *Server) applyConfig(cfg *config.Config) {
	s.translator.UpdateInstructions(cfg.LLM.Instructions, cfg.LLM.InstructionsVersion)

	if s.level != nil {
		if lvl, err := zapcore.ParseLevel(cfg.Logging.Level); err == nil && lvl != s.level.Level() {
			s.level.SetLevel(lvl)
			s.logger.Info("Log level changed", zap.String("level", lvl.String()))
		}
	}

	if s.queue != nil && cfg.Queue.MaxSize != s.queue.GetMaxSize() {
		s.queue.SetMaxSize(cfg.Queue.MaxSize)
		s.logger.Info("Queue size changed", zap.Int64("max_size", cfg.Queue.MaxSize))
	}

	if cfg.Server.Port != s.cfg.Server.Port || cfg.LLM.Model != s.cfg.LLM.Model {
		s.logger.Warn("Configuration change requires a restart to take effect",
			zap.Int("port", cfg.Server.Port),
			zap.String("model", cfg.LLM.Model),
		)
	}
}
