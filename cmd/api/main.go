package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sms-billing-gateway/config"
	"sms-billing-gateway/internal/adapter/gateway"
	httpHandler "sms-billing-gateway/internal/adapter/http/handler"
	pgStorage "sms-billing-gateway/internal/adapter/storage/postgres"
	redisStorage "sms-billing-gateway/internal/adapter/storage/redis"
	"sms-billing-gateway/internal/adapter/ws"
	"sms-billing-gateway/internal/core/ports"
	"sms-billing-gateway/internal/service"
	"sms-billing-gateway/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Msg("Starting SMS Billing Gateway")

	ctx := context.Background()

	// Initialize PostgreSQL pool
	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()
	log.Info().Msg("PostgreSQL connected")

	// Initialize Redis client
	rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()
	log.Info().Msg("Redis connected")

	// Initialize repositories
	accountRepo := pgStorage.NewAccountRepo(pool)
	ledgerRepo := pgStorage.NewLedgerRepo(pool)
	dispatchRepo := pgStorage.NewDispatchRepo(pool)
	templateRepo := pgStorage.NewTemplateRepo(pool)
	auditRepo := pgStorage.NewAuditRepository(pool)
	transactor := pgStorage.NewTransactor(pool)

	// Initialize Redis stores
	callbackCache := redisStorage.NewCallbackCache(rdb)
	rateLimitStore := redisStorage.NewRateLimitStore(rdb)

	// Initialize the live event hub
	hub := ws.NewHub(log)

	// Initialize the SMS provider client
	smsGateway := gateway.NewAfricasTalkingGateway(cfg.Gateway, log)

	// Initialize business services
	tokenSvc := service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer)
	auditSvc := service.NewAuditService(auditRepo, log)
	ledgerSvc := service.NewLedgerService(accountRepo, ledgerRepo, transactor, log)
	dispatchSvc := service.NewDispatchService(
		ledgerSvc,
		accountRepo,
		dispatchRepo,
		templateRepo,
		smsGateway,
		hub,
		auditSvc,
		log,
	)
	reconcileSvc := service.NewReconcileService(dispatchRepo, callbackCache, hub, auditSvc, log)
	reportingSvc := service.NewReportingService(dispatchRepo)

	// Initialize health checkers
	pgHealth := pgStorage.NewHealthCheck(pool)
	redisHealth := redisStorage.NewHealthCheck(rdb)

	// Setup Gin router with all routes
	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		DispatchSvc:    dispatchSvc,
		LedgerSvc:      ledgerSvc,
		ReconcileSvc:   reconcileSvc,
		ReportingSvc:   reportingSvc,
		TokenSvc:       tokenSvc,
		Hub:            hub,
		RateLimitStore: rateLimitStore,
		HealthCheckers: []ports.HealthChecker{pgHealth, redisHealth},
		Logger:         log,
	})

	// HTTP Server with graceful shutdown
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Disconnect streaming clients after the listener stops accepting.
	hub.Close()

	log.Info().Msg("Server exited")
}
