// Package server sets up the HTTP server with all routes
package server

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/mbd888/trapdetect/internal/chain"
	"github.com/mbd888/trapdetect/internal/config"
	"github.com/mbd888/trapdetect/internal/health"
	"github.com/mbd888/trapdetect/internal/logging"
	"github.com/mbd888/trapdetect/internal/metrics"
	"github.com/mbd888/trapdetect/internal/paywall"
	"github.com/mbd888/trapdetect/internal/ratelimit"
	"github.com/mbd888/trapdetect/internal/risk"
	"github.com/mbd888/trapdetect/internal/security"
	"github.com/mbd888/trapdetect/internal/traces"
	"github.com/mbd888/trapdetect/internal/usage"
	"github.com/mbd888/trapdetect/internal/validation"
)

// -----------------------------------------------------------------------------
// Server
// -----------------------------------------------------------------------------

// ChainService is the RPC surface the server needs: contract classification
// for the risk engine, payment verification for the paywall, and liveness
// for health checks.
type ChainService interface {
	Address() string
	VerifyPayment(ctx context.Context, from string, minAmount string, txHash string) (bool, error)
	IsContract(ctx context.Context, address string) bool
	Healthy(ctx context.Context) bool
	BlockNumber(ctx context.Context) (uint64, error)
	Close()
}

// Server wraps the HTTP server and dependencies
type Server struct {
	cfg          *config.Config
	chain        ChainService
	engine       *risk.Engine
	usage        *usage.Service
	checks       *health.Registry
	rateLimiter  *ratelimit.Limiter
	db           *sql.DB // nil if using in-memory
	router       *gin.Engine
	httpSrv      *http.Server
	logger       *slog.Logger
	cancelRunCtx context.CancelFunc
	tracesDown   func(context.Context) error

	// Health state
	ready   atomic.Bool
	healthy atomic.Bool
}

// Option configures the server
type Option func(*Server)

// WithLogger sets a custom logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithChainService sets a custom chain client (for testing)
func WithChainService(c ChainService) Option {
	return func(s *Server) {
		s.chain = c
	}
}

// New creates a new server instance
func New(cfg *config.Config, opts ...Option) (*Server, error) {
	s := &Server{
		cfg:    cfg,
		logger: logging.New(cfg.LogLevel, "json"),
	}

	// Apply options first (may set chain/logger)
	for _, opt := range opts {
		opt(s)
	}

	// Initialize storage (Postgres if DATABASE_URL set, otherwise in-memory)
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}

		// Configure connection pool
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)

		// Test connection
		if err := db.Ping(); err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}

		s.db = db
		s.usage = usage.NewService(usage.NewPostgresStore(db))
		s.logger.Info("using PostgreSQL usage log", "url", maskDSN(cfg.DatabaseURL))
	} else {
		s.usage = usage.NewService(usage.NewMemoryStore())
		s.logger.Info("using in-memory usage log (data will not persist)")
	}

	// Create chain client if not injected
	if s.chain == nil {
		c, err := chain.New(chain.Config{
			RPCURL:       cfg.RPCURL,
			Timeout:      cfg.RPCTimeout,
			PaymentToken: cfg.PaymentToken,
			Recipient:    cfg.PayTo,
		}, chain.WithLogger(s.logger))
		if err != nil {
			return nil, fmt.Errorf("failed to create chain client: %w", err)
		}
		s.chain = c
	}

	// Risk engine backed by the on-chain classifier
	s.engine = risk.NewEngine(s.chain)

	// Subsystem health checks
	s.checks = health.NewRegistry()
	s.checks.Register("rpc", func(ctx context.Context) health.Status {
		st := health.Status{Name: "rpc", Healthy: s.chain.Healthy(ctx)}
		if !st.Healthy {
			st.Detail = "RPC endpoint unreachable"
		}
		return st
	})
	if s.db != nil {
		s.checks.Register("database", func(ctx context.Context) health.Status {
			st := health.Status{Name: "database", Healthy: s.db.PingContext(ctx) == nil}
			if !st.Healthy {
				st.Detail = "database ping failed"
			}
			return st
		})
	}

	// Configure gin
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	s.router = gin.New()
	s.setupMiddleware()
	s.setupRoutes()

	s.healthy.Store(true)

	return s, nil
}

// maskDSN hides password in connection string for logging
func maskDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil {
		return "***"
	}
	if u.User != nil {
		u.User = url.UserPassword(u.User.Username(), "***")
	}
	return u.String()
}

// -----------------------------------------------------------------------------
// Middleware
// -----------------------------------------------------------------------------

func (s *Server) setupMiddleware() {
	// Recovery with logging
	s.router.Use(gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logging.L(c.Request.Context()).Error("panic recovered",
			"error", recovered,
			"path", c.Request.URL.Path,
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error": "Internal server error",
			"code":  "INTERNAL_ERROR",
		})
	}))

	// Security headers
	s.router.Use(security.HeadersMiddleware())

	// CORS (allow all origins - wallet extensions and playgrounds call from anywhere)
	s.router.Use(security.CORSMiddleware([]string{"*"}))

	// Request size limit (1MB)
	s.router.Use(validation.RequestSizeMiddleware(validation.MaxRequestSize))

	// Rate limiting
	limitCfg := ratelimit.DefaultConfig()
	if s.cfg.RateLimitRPM > 0 {
		limitCfg.RequestsPerMinute = s.cfg.RateLimitRPM
	}
	s.rateLimiter = ratelimit.New(limitCfg)
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

		// Add to context
		ctx := logging.WithRequestID(c.Request.Context(), requestID)
		ctx = logging.WithLogger(ctx, s.logger)
		c.Request = c.Request.WithContext(ctx)

		// Set response header
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

		// Log level based on status code
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

// adminSecretMiddleware guards operator endpoints with the X-Admin-Secret header.
func (s *Server) adminSecretMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.cfg.AdminSecret == "" || c.GetHeader("X-Admin-Secret") != s.cfg.AdminSecret {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "Admin secret required",
				"code":  "FORBIDDEN",
			})
			return
		}
		c.Next()
	}
}

// -----------------------------------------------------------------------------
// Routes
// -----------------------------------------------------------------------------

func (s *Server) setupRoutes() {
	// Health & metrics endpoints
	s.router.GET("/health", s.healthHandler)
	s.router.GET("/health/live", s.livenessHandler)
	s.router.GET("/health/ready", s.readinessHandler)
	s.router.GET("/metrics", metrics.Handler())

	// API info
	s.router.GET("/", s.infoHandler)
	s.router.GET("/api", s.infoHandler)

	v1 := s.router.Group("/api/v1")

	// Free endpoints
	v1.GET("/pricing", s.pricingHandler)
	v1.GET("/signals", s.signalsHandler)
	v1.GET("/status", s.statusHandler)

	// Operator endpoints
	admin := v1.Group("/admin")
	admin.Use(s.adminSecretMiddleware())
	admin.GET("/metrics", s.adminMetricsHandler)

	// The analyze endpoint sits behind the x402 paywall when a recipient
	// address is configured; otherwise it is open (local/demo mode).
	analyze := v1.Group("")
	if s.cfg.PaywallEnabled() {
		analyze.Use(paywall.Middleware(s.paywallConfig()))
		s.logger.Info("x402 paywall enabled",
			"price", s.cfg.Price,
			"recipient", s.cfg.PayTo,
		)
	} else {
		s.logger.Info("x402 paywall disabled (no X402_PAYTO set)")
	}
	analyze.POST("/analyze", s.analyzeHandler)
}

func (s *Server) paywallConfig() paywall.Config {
	return paywall.Config{
		Verifier:     s.chain,
		DefaultPrice: s.cfg.Price,
		Chain:        "base",
		ChainID:      s.cfg.ChainID,
		Contract:     s.cfg.PaymentToken,
		ValidFor:     5 * time.Minute,
		OnPaymentReceived: func(proof *paywall.PaymentProof, route string) {
			metrics.PaymentsVerifiedTotal.WithLabelValues("verified").Inc()
			s.logger.Info("payment received",
				"tx_hash", proof.TxHash,
				"from", proof.From,
				"route", route,
			)
		},
		OnPaymentFailed: func(proof *paywall.PaymentProof, err error) {
			metrics.PaymentsVerifiedTotal.WithLabelValues("failed").Inc()
			s.logger.Warn("payment failed",
				"tx_hash", proof.TxHash,
				"error", err,
			)
		},
	}
}

// -----------------------------------------------------------------------------
// Lifecycle
// -----------------------------------------------------------------------------

// Run starts the HTTP server with graceful shutdown
func (s *Server) Run(ctx context.Context) error {
	// Cancellable context for background goroutines so Shutdown() can stop them.
	runCtx, cancel := context.WithCancel(ctx)
	s.cancelRunCtx = cancel

	// Tracing (no-op when no OTLP endpoint configured)
	shutdown, err := traces.Init(runCtx, s.cfg.OTLPEndpoint, s.logger)
	if err != nil {
		s.logger.Warn("failed to initialize tracing", "error", err)
	} else {
		s.tracesDown = shutdown
	}

	s.httpSrv = &http.Server{
		Addr:              ":" + s.cfg.Port,
		Handler:           s.router,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Channel to catch server errors
	errChan := make(chan error, 1)

	// Start server in goroutine
	go func() {
		s.logger.Info("starting server",
			"port", s.cfg.Port,
			"chain_id", s.cfg.ChainID,
		)
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	// Sample DB pool stats into Prometheus
	if s.db != nil {
		go metrics.StartDBStatsCollector(runCtx, s.db, 15*time.Second)
	}

	// Mark as ready after brief delay for startup
	go func() {
		time.Sleep(100 * time.Millisecond)
		s.ready.Store(true)
		s.logger.Info("server ready")
	}()

	// Wait for shutdown signal or error
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

// Shutdown gracefully stops the server
func (s *Server) Shutdown() error {
	s.ready.Store(false)
	s.logger.Info("starting graceful shutdown")

	// Cancel the context for background goroutines
	if s.cancelRunCtx != nil {
		s.cancelRunCtx()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpSrv.Shutdown(ctx); err != nil {
		s.logger.Error("shutdown error", "error", err)
		return err
	}

	// Stop rate limiter cleanup goroutine
	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
		s.logger.Info("rate limiter stopped")
	}

	// Flush traces
	if s.tracesDown != nil {
		if err := s.tracesDown(ctx); err != nil {
			s.logger.Error("traces shutdown error", "error", err)
		}
	}

	// Close RPC connection
	s.chain.Close()

	// Close database connection pool
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("database close error", "error", err)
		} else {
			s.logger.Info("database connection closed")
		}
	}

	s.logger.Info("server stopped")
	return nil
}

// Router returns the gin router for testing
func (s *Server) Router() *gin.Engine {
	return s.router
}

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

func generateRequestID() string {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		// Fallback to timestamp-based ID
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(bytes)
}
