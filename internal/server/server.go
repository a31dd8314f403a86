package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/klauspost/compress/gzhttp"
	"go.uber.org/zap"

	apihttp "github.com/GriffinCanCode/RunnerOS/backend/internal/api/http"
	"github.com/GriffinCanCode/RunnerOS/backend/internal/api/middleware"
	"github.com/GriffinCanCode/RunnerOS/backend/internal/api/ws"
	"github.com/GriffinCanCode/RunnerOS/backend/internal/domain/renderer"
	"github.com/GriffinCanCode/RunnerOS/backend/internal/domain/resource"
	"github.com/GriffinCanCode/RunnerOS/backend/internal/framework/sphero"
	"github.com/GriffinCanCode/RunnerOS/backend/internal/infrastructure/config"
	"github.com/GriffinCanCode/RunnerOS/backend/internal/infrastructure/logging"
	"github.com/GriffinCanCode/RunnerOS/backend/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/RunnerOS/backend/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/RunnerOS/backend/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/RunnerOS/backend/internal/sandbox"
	"github.com/GriffinCanCode/RunnerOS/backend/internal/transport/redisrelay"
)

const shutdownTimeout = 10 * time.Second

// Server wraps the HTTP server and dependencies
type Server struct {
	config    *config.Config
	logger    *logging.Logger
	metrics   *monitoring.Metrics
	registry  *renderer.Registry
	sandboxes *sandbox.Manager
	origins   *middleware.OriginPolicy
	router    *gin.Engine
	handler   http.Handler
	http      *http.Server
	closers   []io.Closer
}

// NewServer creates a server with a logger built from cfg
func NewServer(cfg *config.Config) (*Server, error) {
	return New(cfg, logging.FromSettings(cfg.Logging.Level, cfg.Logging.Development))
}

// New wires every component. A bad CORS origin or framework manifest is
// fatal; an unreachable Redis disables the relay.
func New(cfg *config.Config, logger *logging.Logger) (*Server, error) {
	logger.Info("Initializing runner server",
		zap.String("port", cfg.Server.Port),
		zap.Strings("cors_origins", cfg.Server.CORSOrigins),
		zap.Duration("sandbox_timeout", cfg.Sandbox.Timeout),
		zap.Bool("redis", cfg.Redis.Enabled),
	)

	s := &Server{
		config:  cfg,
		logger:  logger,
		metrics: monitoring.NewMetrics(),
	}
	s.metrics.AllowCommands(sphero.Commands...)

	origins, err := middleware.ParseOrigins(cfg.Server.CORSOrigins)
	if err != nil {
		return nil, err
	}
	s.origins = origins

	s.registry = renderer.NewRegistry(
		renderer.NewAssembler(cfg.Server.DocumentTitle),
		logger.Component("renderer"),
	).WithMetrics(s.metrics)
	if err := renderer.RegisterBuiltins(s.registry); err != nil {
		return nil, err
	}
	logger.Info("Renderers registered", zap.Int("languages", len(s.registry.Languages())))

	opts := []sandbox.ManagerOption{
		sandbox.WithLogger(logger.Component("sandbox")),
		sandbox.WithMetrics(s.metrics),
	}

	if cfg.Frameworks.Manifest != "" {
		catalog, err := resource.LoadCatalog(cfg.Frameworks.Manifest)
		if err != nil {
			return nil, fmt.Errorf("failed to load framework catalog: %w", err)
		}
		opts = append(opts, sandbox.WithCatalog(catalog))
		logger.Info("Framework catalog loaded",
			zap.String("manifest", cfg.Frameworks.Manifest),
			zap.Strings("frameworks", catalog.Names()),
			zap.Int("libraries", catalog.Libraries().Len()),
		)
	}

	var breakers []*resilience.Breaker
	if cfg.Redis.Enabled {
		if relay := s.connectRelay(); relay != nil {
			opts = append(opts, sandbox.WithAttacher(relay))
			breakers = append(breakers, relay.Breaker())
		}
	}

	s.sandboxes = sandbox.NewManager(s.registry, sandboxConfig(cfg.Sandbox), opts...)

	s.router = s.newRouter(breakers)
	s.handler = compress(s.router)

	logger.Info("Server initialized successfully")
	return s, nil
}

func (s *Server) connectRelay() *redisrelay.Relay {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := redisrelay.Dial(ctx, s.config.Redis.Address)
	if err != nil {
		s.logger.Warn("Failed to connect to Redis, relay disabled",
			zap.String("addr", s.config.Redis.Address),
			zap.Error(err),
		)
		return nil
	}

	broker := redisrelay.NewRedisBroker(client)
	s.closers = append(s.closers, broker)
	s.logger.Info("Connected to Redis",
		zap.String("addr", s.config.Redis.Address),
		zap.String("prefix", s.config.Redis.ChannelPrefix),
	)

	return redisrelay.New(broker, s.config.Redis.ChannelPrefix,
		redisrelay.WithLogger(s.logger.Logger),
		redisrelay.WithMetrics(s.metrics),
	)
}

func (s *Server) newRouter(breakers []*resilience.Breaker) *gin.Engine {
	if !s.config.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(tracing.HTTPMiddleware(s.logger.Component("http")))
	router.Use(monitoring.Middleware(s.metrics))
	router.Use(middleware.CORS(s.origins))
	if s.config.RateLimit.Enabled {
		s.logger.Info("Rate limiting enabled",
			zap.Int("rps", s.config.RateLimit.RequestsPerSecond),
			zap.Int("burst", s.config.RateLimit.Burst),
		)
		limits := middleware.DefaultRateLimitConfig()
		limits.RequestsPerSecond = s.config.RateLimit.RequestsPerSecond
		limits.Burst = s.config.RateLimit.Burst
		router.Use(middleware.RateLimit(limits))
	}

	apihttp.NewHandlers(s.registry, s.sandboxes, s.logger.Component("api")).Register(router)
	apihttp.NewMetricsAggregator(s.metrics, breakers...).Register(router)

	wsHandler := ws.NewHandler(s.sandboxes, s.metrics, s.logger.Logger).WithOriginCheck(s.origins.CheckOrigin)
	router.GET("/sandboxes/:id/runner", wsHandler.HandleConnection)

	return router
}

// compress gzips responses except websocket upgrades, which need the raw
// connection
func compress(next http.Handler) http.Handler {
	gz := gzhttp.GzipHandler(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if websocket.IsWebSocketUpgrade(r) {
			next.ServeHTTP(w, r)
			return
		}
		gz.ServeHTTP(w, r)
	})
}

func sandboxConfig(cfg config.SandboxConfig) sandbox.Config {
	out := sandbox.DefaultConfig()
	if cfg.Timeout > 0 {
		out.Timeout = cfg.Timeout
	}
	if cfg.MaxInstances >= 0 {
		out.MaxInstances = cfg.MaxInstances
	}
	if cfg.QueueSize > 0 {
		out.QueueSize = cfg.QueueSize
	}
	out.IdleTimeout = cfg.IdleTimeout
	return out
}

// Handler returns the root HTTP handler
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Sandboxes returns the sandbox manager
func (s *Server) Sandboxes() *sandbox.Manager {
	return s.sandboxes
}

// Run starts the HTTP server and blocks until it stops
func (s *Server) Run() error {
	addr := s.config.Server.Host + ":" + s.config.Server.Port
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info("Starting HTTP server", zap.String("addr", addr))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Close gracefully shuts down the server
func (s *Server) Close() error {
	s.logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var errs []error
	if s.http != nil {
		if err := s.http.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop HTTP server: %w", err))
		}
	}

	if err := s.sandboxes.Close(); err != nil {
		errs = append(errs, err)
	}
	s.logger.Info("Closed sandboxes")

	for _, c := range s.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	err := errors.Join(errs...)
	if err != nil {
		s.logger.Error("Shutdown incomplete", zap.Error(err))
	}

	// Sync logger before exit
	s.logger.Sync()
	return err
}
