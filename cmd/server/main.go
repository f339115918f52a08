package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ales-api/internal/api"
	"github.com/ales-api/internal/chain"
	"github.com/ales-api/internal/config"
	"github.com/ales-api/internal/database"
	"github.com/ales-api/internal/ipfs"
	"github.com/ales-api/internal/repository"
	"github.com/ales-api/internal/service"
	"github.com/ales-api/internal/wallet"
	"github.com/ales-api/pkg/logger"
	"github.com/joho/godotenv"
)

func main() {
	// A missing .env is fine; the environment may already be set
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		boot := logger.New(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))
		boot.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Initialize logger
	log := logger.New(cfg.Log.Level, cfg.Log.Format)
	log.Info().Msg("Starting Ales API server...")

	// Initialize database
	db, err := database.New(&cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	// Run migrations
	migrationsPath := os.Getenv("MIGRATIONS_PATH")
	if migrationsPath == "" {
		migrationsPath = "./migrations"
	}
	if len(os.Args) > 1 && os.Args[1] == "migrate-down" {
		if err := db.RollbackMigration(migrationsPath); err != nil {
			log.Fatal().Err(err).Msg("Failed to roll back migration")
		}
		return
	}
	if err := db.RunMigrations(migrationsPath); err != nil {
		log.Fatal().Err(err).Msg("Failed to run database migrations")
	}

	// Initialize repositories
	repos := repository.New(db)

	// Initialize gateways
	connector := chain.NewConnector(cfg.Chain, log)
	store := ipfs.NewPinataStore(cfg.Pinata, log)

	// Initialize services
	services := service.NewServices(repos, connector, store, cfg, log)

	// Background workers share one lifetime
	bgCtx, stopBackground := context.WithCancel(context.Background())
	defer stopBackground()

	go services.Reconciler.StartProcessor(bgCtx)
	log.Info().Msg("Pin reconciler started")

	registry := wallet.NewRegistry(cfg.Chain.SupportedChainIDs)
	go registry.RunJanitor(bgCtx, 10*time.Minute, cfg.Session.MaxIdle)

	// Initialize router
	router := api.NewRouter(services, registry, db, cfg, log)

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.ReadTimeout,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("port", cfg.Server.Port).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	// Stop background workers
	services.Reconciler.StopProcessor()
	stopBackground()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited gracefully")
}
