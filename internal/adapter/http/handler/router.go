package handler

import (
	"sms-billing-gateway/internal/adapter/http/middleware"
	redisStore "sms-billing-gateway/internal/adapter/storage/redis"
	"sms-billing-gateway/internal/adapter/ws"
	"sms-billing-gateway/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	DispatchSvc    ports.DispatchService
	LedgerSvc      ports.LedgerService
	ReconcileSvc   ports.ReconcileService
	ReportingSvc   ports.ReportingService
	TokenSvc       ports.TokenService
	Hub            *ws.Hub                    // nil = live streaming disabled
	RateLimitStore *redisStore.RateLimitStore // nil = rate limiting disabled
	HealthCheckers []ports.HealthChecker
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(1 << 20)) // 1 MB request body limit

	// Health check (deep — verifies PostgreSQL + Redis)
	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	// Rate limit rules
	rules := middleware.DefaultRateLimitRules()

	// Helper: return rate limiter middleware if store is available, else noop.
	rl := func(group string) gin.HandlerFunc {
		if deps.RateLimitStore == nil {
			return func(c *gin.Context) { c.Next() }
		}
		rule, ok := rules[group]
		if !ok {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimitStore, group, rule, deps.Logger)
	}

	// API v1 routes
	v1 := r.Group("/api/v1")

	smsHandler := NewSMSHandler(deps.DispatchSvc, deps.ReconcileSvc, deps.Logger)

	// --- Provider callback (no auth; the provider cannot hold our tokens) ---
	v1.POST("/sms/delivery-reports", rl("delivery_reports"), smsHandler.DeliveryReport)

	// --- JWT-authenticated routes ---
	jwtAuth := middleware.JWTAuth(deps.TokenSvc, deps.Logger)
	walletHandler := NewWalletHandler(deps.LedgerSvc)
	dashboardHandler := NewDashboardHandler(deps.ReportingSvc)

	sms := v1.Group("/sms", jwtAuth)
	{
		sms.POST("/send", rl("sms_send"), smsHandler.Send)
		sms.GET("/history", rl("history"), dashboardHandler.ListHistory)
		sms.GET("/stats", rl("history"), dashboardHandler.GetStats)
	}

	wallet := v1.Group("/wallet", jwtAuth)
	{
		wallet.GET("/balance", rl("wallet"), walletHandler.GetBalance)
		wallet.GET("/entries", rl("wallet"), walletHandler.ListEntries)
	}

	// --- Live event stream (JWT via access_token query param) ---
	if deps.Hub != nil {
		streamHandler := NewStreamHandler(deps.Hub, deps.Logger)
		v1.GET("/sms/ws", jwtAuth, streamHandler.Stream)
	}

	return r
}
