package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	apihttp "github.com/GriffinCanCode/launcher/internal/api/http"
	"github.com/GriffinCanCode/launcher/internal/api/middleware"
	"github.com/GriffinCanCode/launcher/internal/api/ws"
	"github.com/GriffinCanCode/launcher/internal/backend"
	"github.com/GriffinCanCode/launcher/internal/domain/orchestrator"
	"github.com/GriffinCanCode/launcher/internal/event"
	"github.com/GriffinCanCode/launcher/internal/infrastructure/config"
	"github.com/GriffinCanCode/launcher/internal/infrastructure/logging"
	"github.com/GriffinCanCode/launcher/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/launcher/internal/infrastructure/tracing"
)

const shutdownTimeout = 5 * time.Second

// Server wraps the view API and the orchestration core behind it
type Server struct {
	config  *config.Config
	logger  *logging.Logger
	metrics *monitoring.Metrics
	tracer  *tracing.Tracer

	router *gin.Engine
	orch   *orchestrator.Orchestrator
	hub    *ws.Hub
	stream *event.Stream

	closeOnce sync.Once
}

// Deps overrides collaborators; zero fields are built from config
type Deps struct {
	Backend backend.Commands
	Clock   clockwork.Clock
	Logger  *logging.Logger
}

// NewServer creates a new server instance
func NewServer(cfg *config.Config) (*Server, error) {
	return NewServerWithDeps(cfg, Deps{})
}

// NewServerWithDeps creates a server, using deps where set
func NewServerWithDeps(cfg *config.Config, deps Deps) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger := deps.Logger
	if logger == nil {
		var err error
		logger, err = logging.New(logging.Config{
			Level:       cfg.Logging.Level,
			Development: cfg.Logging.Development,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create logger: %w", err)
		}
	}
	clock := deps.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	logger.Info("Initializing launcher core",
		zap.String("port", cfg.Server.Port),
		zap.String("backend", cfg.Backend.URL),
		zap.String("policy", cfg.Launch.Policy),
	)

	metrics := monitoring.NewMetrics()
	tracer := tracing.New("launcher", logger.Component("trace"))

	commands := deps.Backend
	if commands == nil {
		commands = backend.NewClient(cfg.Backend, logger.Component("backend")).
			WithMetrics(metrics).
			WithTracer(tracer)
	}

	bus := event.NewBus(logger.Component("event"))
	stream := event.NewStream(cfg.Backend.EventsURL, bus, clock, logger.Component("stream")).WithMetrics(metrics)

	opts, err := orchestrator.OptionsFromConfig(cfg)
	if err != nil {
		tracer.Close()
		return nil, err
	}
	orch := orchestrator.New(orchestrator.Deps{
		Backend: commands,
		Bus:     bus,
		Clock:   clock,
		Logger:  logger.Component("orchestrator"),
		Metrics: metrics,
	}, opts)
	hub := ws.NewHub(orch, metrics, logger.Component("ws"))

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(tracing.HTTPMiddleware(tracer))
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		router.Use(middleware.RateLimit(middleware.RateLimitFromConfig(cfg.RateLimit)))
	}

	apihttp.NewHandlers(orch, logger.Component("api")).Register(router)
	router.GET("/stream", hub.HandleConnection)
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	logger.Info("Server initialized successfully")

	return &Server{
		config:  cfg,
		logger:  logger,
		metrics: metrics,
		tracer:  tracer,
		router:  router,
		orch:    orch,
		hub:     hub,
		stream:  stream,
	}, nil
}

// Handler returns the view API handler
func (s *Server) Handler() http.Handler { return s.router }

// Orchestrator returns the orchestration facade
func (s *Server) Orchestrator() *orchestrator.Orchestrator { return s.orch }

// Run loads initial state, follows backend events and serves the view
// until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	defer wg.Wait()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := s.stream.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Warn("Event stream stopped", zap.Error(err))
		}
	}()

	// the backend may still be starting; the view can retry from there
	if err := s.orch.Init(ctx); err != nil {
		s.logger.Warn("Initial load incomplete", zap.Error(err))
	}

	addr := net.JoinHostPort(s.config.Server.Host, s.config.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	s.hub.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

// Close stops the orchestration core and flushes logs
func (s *Server) Close() error {
	s.closeOnce.Do(func() {
		s.logger.Info("Shutting down server...")
		s.hub.Close()
		s.orch.Close()
		s.tracer.Close()
		_ = s.logger.Sync()
	})
	return nil
}
