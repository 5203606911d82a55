// Package api exposes the matrix platform over HTTP.
package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"matrix-board-platform/internal/cache"
	"matrix-board-platform/internal/database"
	"matrix-board-platform/internal/events"
	"matrix-board-platform/internal/logging"
	"matrix-board-platform/internal/matrix"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RateLimiter provides simple in-memory rate limiting per endpoint.
type RateLimiter struct {
	requests map[string][]time.Time
	mu       sync.Mutex
	limit    int
	window   time.Duration
}

// NewRateLimiter creates a new rate limiter.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		requests: make(map[string][]time.Time),
		limit:    limit,
		window:   window,
	}
}

// Allow checks if a request is allowed for the given key.
func (r *RateLimiter) Allow(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	windowStart := now.Add(-r.window)

	var recent []time.Time
	for _, t := range r.requests[key] {
		if t.After(windowStart) {
			recent = append(recent, t)
		}
	}

	if len(recent) >= r.limit {
		r.requests[key] = recent
		return false
	}

	r.requests[key] = append(recent, now)
	return true
}

// Server represents the HTTP API server.
type Server struct {
	router      *gin.Engine
	httpServer  *http.Server
	engine      *matrix.Engine
	repo        *database.Repository
	eventBus    *events.EventBus
	cacheSvc    *cache.CacheService // nil when Redis is disabled
	config      ServerConfig
	rateLimiter *RateLimiter
	log         zerolog.Logger
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Port           int
	Host           string
	AllowedOrigins string
	ProductionMode bool
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
}

// NewServer creates a new API server. cacheSvc may be nil.
func NewServer(
	config ServerConfig,
	engine *matrix.Engine,
	repo *database.Repository,
	eventBus *events.EventBus,
	cacheSvc *cache.CacheService,
) *Server {
	if config.ProductionMode {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(traceMiddleware())

	corsConfig := cors.DefaultConfig()
	if config.AllowedOrigins == "" || config.AllowedOrigins == "*" {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = strings.Split(config.AllowedOrigins, ",")
		corsConfig.AllowCredentials = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization"}
	corsConfig.ExposeHeaders = []string{"Content-Length"}
	router.Use(cors.New(corsConfig))

	server := &Server{
		router:      router,
		engine:      engine,
		repo:        repo,
		eventBus:    eventBus,
		cacheSvc:    cacheSvc,
		config:      config,
		rateLimiter: NewRateLimiter(120, time.Minute),
		log:         logging.WithComponent("api"),
	}

	server.setupRoutes()

	// Real-time event broadcasting over WebSocket.
	InitWebSocket(eventBus)

	return server
}

// traceMiddleware tags each request context with a trace ID so engine log
// lines from one cascade can be correlated.
func traceMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, _ := logging.WithTraceContext(c.Request.Context())
		c.Request = c.Request.WithContext(ctx)
		c.Header("X-Trace-ID", logging.TraceIDFromContext(ctx))
		c.Next()
	}
}

// rateLimitMiddleware rate limits mutating endpoints by path.
func (s *Server) rateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodGet {
			c.Next()
			return
		}

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		if !s.rateLimiter.Allow(path) {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":   true,
				"message": "Rate limit exceeded",
				"path":    path,
			})
			c.Abort()
			return
		}
		c.Next()
	}
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)
	s.router.GET("/ws", s.handleWebSocket)

	api := s.router.Group("/api")
	api.Use(s.rateLimitMiddleware())
	{
		// Member lifecycle
		api.POST("/members", s.handleRegisterMember)
		api.GET("/members/:id", s.handleGetMember)
		api.GET("/members/ref/:ref_id", s.handleGetMemberByRef)
		api.POST("/members/:id/payment-reference", s.handleSubmitPaymentReference)
		api.POST("/members/:id/activate", s.handleActivateMember)

		// Board views and history
		api.GET("/members/:id/boards/:board/tree", s.handleGetBoardTree)
		api.GET("/members/:id/ledger", s.handleGetLedger)

		// Withdrawals
		api.POST("/members/:id/withdrawals", s.handleRequestWithdrawal)
		api.GET("/members/:id/withdrawals", s.handleGetWithdrawals)

		// Admin
		admin := api.Group("/admin")
		{
			admin.GET("/members", s.handleListMembers)
			admin.GET("/withdrawals/pending", s.handlePendingWithdrawals)
			admin.POST("/withdrawals/:id/settle", s.handleSettleWithdrawal)
			admin.GET("/revenue", s.handleRevenueSummary)
			admin.GET("/boards/occupancy", s.handleBoardOccupancy)
			admin.POST("/members/:id/boards/:board/reconcile", s.handleReconcileBoard)
		}
	}
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.log.Info().Str("address", addr).Msg("http server starting")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server error: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// Router exposes the gin engine for tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}

// handleHealth reports service health.
func (s *Server) handleHealth(c *gin.Context) {
	status := "ok"
	dbStatus := "ok"
	if err := s.repo.HealthCheck(c.Request.Context()); err != nil {
		status = "degraded"
		dbStatus = err.Error()
	}
	cacheStatus := "disabled"
	if s.cacheSvc != nil {
		cacheStatus = "degraded"
		if s.cacheSvc.IsHealthy() {
			cacheStatus = "ok"
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"status":   status,
		"database": dbStatus,
		"cache":    cacheStatus,
		"time":     time.Now().UTC(),
	})
}

// errorResponse is a helper to send error responses.
func errorResponse(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, gin.H{
		"error":   true,
		"message": message,
	})
}

// successResponse is a helper to send success responses.
func successResponse(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    data,
	})
}
