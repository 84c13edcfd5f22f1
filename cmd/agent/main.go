package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"

	"shuttlepay/internal/app"
	"shuttlepay/internal/backend"
	"shuttlepay/internal/config"
	"shuttlepay/internal/handler"
	internalRedis "shuttlepay/internal/redis"
	"shuttlepay/internal/repository"
	"shuttlepay/internal/repository/postgres"
	"shuttlepay/internal/service"
)

func main() {
	// Load configuration.
	cfg := config.Load()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Initialize New Relic FIRST (before database so we can instrument DB).
	var nrApp *newrelic.Application
	var err error
	if cfg.NewRelic.Enabled && cfg.NewRelic.LicenseKey != "" {
		nrApp, err = newrelic.NewApplication(
			newrelic.ConfigAppName(cfg.NewRelic.AppName),
			newrelic.ConfigLicense(cfg.NewRelic.LicenseKey),
			newrelic.ConfigDistributedTracerEnabled(true),
			newrelic.ConfigAppLogForwardingEnabled(true),
		)
		if err != nil {
			log.Printf("failed to initialize New Relic: %v", err)
		} else {
			log.Printf("New Relic enabled: app=%s (with DB instrumentation)", cfg.NewRelic.AppName)
		}
	}

	// The attempt journal is optional; the reconciliation core runs without it.
	var db *sql.DB
	if cfg.Agent.JournalOn {
		db, err = app.NewDatabase(ctx, cfg.Database, nrApp)
		if err != nil {
			log.Fatalf("failed to connect to database: %v", err)
		}
		defer db.Close()
		log.Println("Connected to PostgreSQL")
	}

	// Initialize Redis with New Relic instrumentation.
	redisClient, err := app.NewRedisClient(ctx, cfg.Redis, nrApp)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	defer redisClient.Close()
	log.Println("Connected to Redis")

	// Wire dependencies and restore the persisted session before serving:
	// no authenticated route may observe identity pre-hydration.
	server, sessions := wireServer(db, redisClient, nrApp, cfg)
	sessions.Hydrate(ctx)

	// Start server in goroutine.
	go func() {
		log.Printf("Starting agent on port %s", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down agent...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("server forced to shutdown: %v", err)
	}

	log.Println("Agent exited")
}

// wireServer wires all dependencies and returns the HTTP server plus the
// session service (hydrated by the caller before serving).
func wireServer(db *sql.DB, redisClient *redis.Client, nrApp *newrelic.Application, cfg *config.Config) (*http.Server, *service.SessionService) {
	// Initialize Redis stores.
	sessionStore := internalRedis.NewSessionStore(redisClient, cfg.Agent.DeviceID)
	guardStore := internalRedis.NewGuardStore(redisClient)

	// Initialize the attempt journal if configured.
	var attemptRepo repository.AttemptRepository
	if db != nil {
		attemptRepo = postgres.NewAttemptRepository(db)
	}

	// Campus backend client.
	backendClient := backend.NewClient(cfg.Backend.BaseURL, cfg.Backend.Timeout)

	// Initialize services. Both payment flows share one reference ledger.
	notifier := service.NewNotificationService()
	receipts := service.NewReceiptService(notifier)
	sessions := service.NewSessionService(sessionStore, backendClient)
	ledger := service.NewReferenceLedger()
	codes := service.NewCodeService(backendClient, sessions)
	intake := service.NewIntakeService()
	orchestrator := service.NewOrchestrator(backendClient, sessions, ledger, guardStore, attemptRepo, receipts, notifier)
	topups := service.NewTopupService(backendClient, sessions, ledger, attemptRepo, notifier, cfg.Agent.RedirectDelay)

	// Initialize handlers.
	sessionHandler := handler.NewSessionHandler(sessions)
	codeHandler := handler.NewCodeHandler(codes)
	paymentHandler := handler.NewPaymentHandler(intake, orchestrator)
	topupHandler := handler.NewTopupHandler(topups)

	// Create router.
	router := app.NewRouter(app.RouterDeps{
		SessionHandler: sessionHandler,
		CodeHandler:    codeHandler,
		PaymentHandler: paymentHandler,
		TopupHandler:   topupHandler,
		RedisClient:    redisClient,
		NewRelicApp:    nrApp,
	})

	// Create HTTP server.
	return &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, sessions
}
