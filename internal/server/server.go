// Package server wires the HTTP server: configuration, providers,
// cache, middleware, and routes.
package server

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mbrant/tokensentinel/internal/cache"
	"github.com/mbrant/tokensentinel/internal/chains"
	"github.com/mbrant/tokensentinel/internal/circuitbreaker"
	"github.com/mbrant/tokensentinel/internal/config"
	"github.com/mbrant/tokensentinel/internal/explain"
	"github.com/mbrant/tokensentinel/internal/guardian"
	"github.com/mbrant/tokensentinel/internal/health"
	"github.com/mbrant/tokensentinel/internal/logging"
	"github.com/mbrant/tokensentinel/internal/metrics"
	"github.com/mbrant/tokensentinel/internal/providers"
	"github.com/mbrant/tokensentinel/internal/ratelimit"
	"github.com/mbrant/tokensentinel/internal/scanner"
	"github.com/mbrant/tokensentinel/internal/security"
	"github.com/mbrant/tokensentinel/internal/validation"
)

// Server wraps the HTTP server and dependencies.
type Server struct {
	cfg         *config.Config
	registry    *chains.Registry
	cacheStore  cache.Store
	scanner     *scanner.Service
	guardian    *guardian.Service
	healthReg   *health.Registry
	rateLimiter *ratelimit.Limiter
	router      *gin.Engine
	httpSrv     *http.Server
	logger      *slog.Logger
	stopMetrics chan struct{}

	// Health state
	ready   atomic.Bool
	healthy atomic.Bool
}

// Option configures the server.
type Option func(*Server)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// New creates a new server instance.
func New(cfg *config.Config, opts ...Option) (*Server, error) {
	s := &Server{
		cfg:    cfg,
		logger: logging.New(cfg.LogLevel, "json"),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.registry = cfg.Registry()

	// Cache: bbolt when a path is configured, in-memory otherwise.
	if cfg.CachePath != "" {
		store, err := cache.NewBoltStore(cfg.CachePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open cache at %s: %w", cfg.CachePath, err)
		}
		s.cacheStore = store
		s.logger.Info("persistent cache enabled", "path", cfg.CachePath)
	} else {
		s.cacheStore = cache.NewMemoryStore()
		s.logger.Info("using in-memory cache")
	}
	gw := cache.NewGateway(s.cacheStore, cache.TTLPolicy{
		FullAnalysis: cfg.FullAnalysisTTL,
		QuickCheck:   cfg.QuickCheckTTL,
		WalletScan:   cfg.WalletScanTTL,
	}, s.logger)

	// One breaker shared across all providers; circuits are per name.
	breaker := circuitbreaker.New(5, 30*time.Second)

	securityClient := providers.NewTokenSecurityClient(cfg.TokenSecurityURL, cfg.ProviderTimeout, breaker, s.logger)
	liquidityClient := providers.NewLiquidityClient(cfg.LiquidityURL, cfg.ProviderTimeout, breaker, s.logger)
	explorerClient := providers.NewExplorerClient(cfg.ProviderTimeout, breaker, s.logger)
	reputationClient := providers.NewReputationClient(cfg.ReputationURL, cfg.ProviderTimeout, breaker, s.logger)

	// The explanation provider is optional. The concrete client is checked
	// for nil before the interface assignment so a disabled client does
	// not masquerade as a live provider.
	var textProvider explain.Provider
	if c := explain.NewOpenAIClient(cfg.ExplainBaseURL, cfg.ExplainAPIKey, cfg.ExplainModel, cfg.ExplainTimeout); c != nil {
		textProvider = c
		s.logger.Info("explanation generation enabled", "model", cfg.ExplainModel)
	} else {
		s.logger.Info("explanation generation disabled, using fixed templates")
	}
	explainer := explain.NewGenerator(textProvider, cfg.ExplainTimeout, s.logger)

	s.scanner = scanner.NewService(
		s.registry, gw,
		securityClient, liquidityClient, explorerClient,
		explainer,
		scanner.WithLogger(s.logger),
		scanner.WithSignalTimeout(cfg.ProviderTimeout),
	)
	s.guardian = guardian.NewService(
		s.registry, gw,
		explorerClient, reputationClient,
		explainer,
		guardian.WithLogger(s.logger),
		guardian.WithSignalTimeout(cfg.ProviderTimeout),
	)

	s.healthReg = health.NewRegistry()
	s.healthReg.Register("cache", func(ctx context.Context) health.Status {
		st := health.Status{Name: "cache", Healthy: true}
		if _, _, err := s.cacheStore.Get(ctx, "health:probe"); err != nil {
			st.Healthy = false
			st.Detail = err.Error()
		}
		return st
	})
	s.healthReg.Register("circuits", func(ctx context.Context) health.Status {
		st := health.Status{Name: "circuits", Healthy: true}
		for _, p := range []string{"tokensecurity", "liquidity", "explorer", "reputation"} {
			if breaker.State(p) == circuitbreaker.StateOpen {
				st.Healthy = false
				st.Detail = p + " circuit open"
			}
		}
		return st
	})

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	s.router = gin.New()
	s.setupMiddleware()
	s.setupRoutes()

	s.healthy.Store(true)

	return s, nil
}

func (s *Server) setupMiddleware() {
	// Recovery with logging
	s.router.Use(gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logging.L(c.Request.Context()).Error("panic recovered",
			"error", recovered,
			"path", c.Request.URL.Path,
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "An unexpected error occurred",
		})
	}))

	// Security headers
	s.router.Use(security.HeadersMiddleware())

	// CORS (allow all origins for demo - restrict in production)
	s.router.Use(security.CORSMiddleware([]string{"*"}))

	// Request size limit (1MB)
	s.router.Use(validation.RequestSizeMiddleware(validation.MaxRequestSize))

	// Rate limiting
	s.rateLimiter = ratelimit.New(ratelimit.DefaultConfig())
	s.router.Use(s.rateLimiter.Middleware())

	// Prometheus metrics
	s.router.Use(metrics.Middleware())

	// Request ID
	s.router.Use(s.requestIDMiddleware())

	// Logging
	s.router.Use(s.loggingMiddleware())
}

func (s *Server) requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Check for existing request ID (from load balancer, etc.)
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = generateRequestID()
		}

		ctx := logging.WithRequestID(c.Request.Context(), requestID)
		ctx = logging.WithLogger(ctx, s.logger)
		c.Request = c.Request.WithContext(ctx)

		c.Header("X-Request-ID", requestID)

		c.Next()
	}
}

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		logger := logging.L(c.Request.Context())

		switch {
		case status >= 500:
			logger.Error("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
				"client_ip", c.ClientIP(),
			)
		case status >= 400:
			logger.Warn("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
			)
		default:
			logger.Info("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
			)
		}
	}
}

func (s *Server) setupRoutes() {
	// Health & metrics endpoints
	s.router.GET("/health", s.healthHandler)
	s.router.GET("/health/live", s.livenessHandler)
	s.router.GET("/health/ready", s.readinessHandler)
	s.router.GET("/metrics", metrics.Handler())

	s.router.GET("/api", s.infoHandler)

	v1 := s.router.Group("/api/v1")
	v1.Use(validation.AddressParamMiddleware())
	v1.GET("/chains", s.chainsHandler)

	scanner.NewHandler(s.scanner).RegisterRoutes(v1)
	guardian.NewHandler(s.guardian, s.registry).RegisterRoutes(v1)
}

// HealthResponse is the body of the /health endpoint.
type HealthResponse struct {
	Status    string          `json:"status"`
	Version   string          `json:"version"`
	Checks    []health.Status `json:"checks"`
	Timestamp string          `json:"timestamp"`
}

func (s *Server) healthHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	healthy, statuses := s.healthReg.CheckAll(ctx)

	status := "healthy"
	httpStatus := http.StatusOK
	if !healthy {
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable
	}

	c.JSON(httpStatus, HealthResponse{
		Status:    status,
		Version:   "0.1.0",
		Checks:    statuses,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) livenessHandler(c *gin.Context) {
	if !s.healthy.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "alive"})
}

func (s *Server) readinessHandler(c *gin.Context) {
	if !s.ready.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

func (s *Server) infoHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name":    "TokenSentinel API",
		"version": "0.1.0",
		"endpoints": gin.H{
			"analysis":   "/api/v1/contracts/:chain/:address/analysis",
			"quickCheck": "/api/v1/contracts/:chain/:address/quick-check",
			"approvals":  "/api/v1/wallets/:chain/:address/approvals",
			"revokeTx":   "/api/v1/wallets/revoke-tx",
			"chains":     "/api/v1/chains",
		},
	})
}

func (s *Server) chainsHandler(c *gin.Context) {
	type chainInfo struct {
		ID   chains.ChainID `json:"id"`
		Name string         `json:"name"`
	}
	var out []chainInfo
	for _, id := range []chains.ChainID{
		chains.Ethereum, chains.BSC, chains.Polygon, chains.Arbitrum, chains.Base,
	} {
		if cfg, ok := s.registry.Get(id); ok {
			out = append(out, chainInfo{ID: cfg.ID, Name: cfg.Name})
		}
	}
	c.JSON(http.StatusOK, gin.H{"chains": out})
}

// Run starts the server and blocks until shutdown.
func (s *Server) Run(ctx context.Context) error {
	s.httpSrv = &http.Server{
		Addr:              ":" + s.cfg.Port,
		Handler:           s.router,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errChan := make(chan error, 1)

	go func() {
		s.logger.Info("starting server", "port", s.cfg.Port)
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	s.stopMetrics = make(chan struct{})
	go metrics.StartRuntimeCollector(s.stopMetrics, 15*time.Second)

	// Mark as ready after brief delay for startup
	go func() {
		time.Sleep(100 * time.Millisecond)
		s.ready.Store(true)
		s.logger.Info("server ready")
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigChan:
		s.logger.Info("shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		s.logger.Info("context cancelled")
	}

	return s.Shutdown()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown() error {
	s.ready.Store(false)
	s.logger.Info("starting graceful shutdown")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpSrv.Shutdown(ctx); err != nil {
		s.logger.Error("shutdown error", "error", err)
		return err
	}

	if s.stopMetrics != nil {
		close(s.stopMetrics)
	}

	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
		s.logger.Info("rate limiter stopped")
	}

	if err := s.cacheStore.Close(); err != nil {
		s.logger.Error("cache close error", "error", err)
	}

	s.logger.Info("server stopped")
	return nil
}

// Router returns the gin router for testing.
func (s *Server) Router() *gin.Engine {
	return s.router
}

func generateRequestID() string {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		// Fallback to timestamp-based ID
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(bytes)
}
