package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"matrix-board-platform/config"
	"matrix-board-platform/internal/api"
	"matrix-board-platform/internal/cache"
	"matrix-board-platform/internal/database"
	"matrix-board-platform/internal/events"
	"matrix-board-platform/internal/logging"
	"matrix-board-platform/internal/matrix"
	"matrix-board-platform/internal/vault"

	"github.com/shopspring/decimal"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := logging.New(&logging.Config{
		Level:      cfg.LoggingConfig.Level,
		Output:     cfg.LoggingConfig.Output,
		JSONFormat: cfg.LoggingConfig.JSONFormat,
	})
	logging.SetDefault(logger)
	mainLog := logging.WithComponent("main")
	mainLog.Info().Msg("structured logging initialized")

	ctx := context.Background()

	// Vault overlays database/redis credentials when enabled.
	vaultClient, err := vault.NewClient(cfg.VaultConfig)
	if err != nil {
		mainLog.Fatal().Err(err).Msg("failed to create vault client")
	}
	if vaultClient.IsEnabled() {
		if err := vaultClient.Apply(ctx, cfg); err != nil {
			mainLog.Fatal().Err(err).Msg("failed to load credentials from vault")
		}
		mainLog.Info().Msg("credentials loaded from vault")
	}

	eventBus := events.NewEventBus()
	mainLog.Info().Msg("event bus initialized")

	db, err := database.NewDB(database.Config{
		Host:     cfg.DatabaseConfig.Host,
		Port:     cfg.DatabaseConfig.Port,
		User:     cfg.DatabaseConfig.User,
		Password: cfg.DatabaseConfig.Password,
		Database: cfg.DatabaseConfig.Database,
		SSLMode:  cfg.DatabaseConfig.SSLMode,
	})
	if err != nil {
		mainLog.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	if err := db.RunMigrations(ctx); err != nil {
		mainLog.Fatal().Err(err).Msg("failed to run migrations")
	}

	repo := database.NewRepository(db)
	store := database.NewStore(db)

	engine := matrix.NewEngine(store, eventBus, matrix.Config{
		PlacementRetry:       cfg.MatrixConfig.PlacementRetry,
		WithdrawalMin:        decimal.NewFromFloat(cfg.WithdrawalConfig.MinAmount),
		WithdrawalFeePercent: decimal.NewFromFloat(cfg.WithdrawalConfig.FeePercent),
	})
	mainLog.Info().Msg("matrix engine initialized")

	var cacheSvc *cache.CacheService
	if cfg.RedisConfig.Enabled {
		cacheSvc, err = cache.NewCacheService(cfg.RedisConfig)
		if err != nil {
			mainLog.Warn().Err(err).Msg("cache unavailable, continuing without it")
			cacheSvc = nil
		} else {
			defer cacheSvc.Close()
		}
	}

	// Structural events drop cached tree snapshots so reads repopulate
	// from live state.
	if cacheSvc != nil {
		svc := cacheSvc
		invalidate := func(ev events.Event) {
			for _, key := range []string{"member_id", "parent_id"} {
				if id, ok := ev.Data[key].(int64); ok {
					svc.InvalidateMember(ctx, id, matrix.MaxBoard)
				}
			}
		}
		eventBus.Subscribe(events.EventMemberPlaced, invalidate)
		eventBus.Subscribe(events.EventBoardCycled, invalidate)
		eventBus.Subscribe(events.EventBoardUpgraded, invalidate)
	}

	server := api.NewServer(api.ServerConfig{
		Port:           cfg.ServerConfig.Port,
		Host:           cfg.ServerConfig.Host,
		AllowedOrigins: cfg.ServerConfig.AllowedOrigins,
		ProductionMode: cfg.ServerConfig.ProductionMode,
		ReadTimeout:    time.Duration(cfg.ServerConfig.ReadTimeout) * time.Second,
		WriteTimeout:   time.Duration(cfg.ServerConfig.WriteTimeout) * time.Second,
	}, engine, repo, eventBus, cacheSvc)

	go func() {
		if err := server.Start(); err != nil {
			mainLog.Fatal().Err(err).Msg("http server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	mainLog.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(ctx, time.Duration(cfg.ServerConfig.ShutdownTimeout)*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		mainLog.Error().Err(err).Msg("shutdown error")
	}
	mainLog.Info().Msg("stopped")
}
