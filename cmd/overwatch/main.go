package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"tourist-overwatch/api"
	"tourist-overwatch/api/middleware"
	"tourist-overwatch/api/services"
	"tourist-overwatch/db"
	"tourist-overwatch/pkg/config"
	"tourist-overwatch/pkg/engine/feed"
	"tourist-overwatch/pkg/engine/session"
	"tourist-overwatch/pkg/logger"
	"tourist-overwatch/pkg/metrics"
	"tourist-overwatch/pkg/registry"
	embeddednats "tourist-overwatch/pkg/services/embedded-nats"
	"tourist-overwatch/pkg/services/workers"
)

func initDB(cfg *config.Config, zl *zap.Logger) (*db.Service, error) {
	dbConfig := db.DefaultConfig()
	dbConfig.DBPath = cfg.DBPath
	dbConfig.Logger = zl

	dbService, err := db.New(dbConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database service: %w", err)
	}

	if err := dbService.VerifySchema(); err != nil {
		dbService.Close()
		return nil, err
	}
	return dbService, nil
}

func initNATS(cfg *config.Config, zl *zap.Logger) (*embeddednats.EmbeddedNATS, error) {
	natsConfig := embeddednats.DefaultConfig()
	natsConfig.Port = cfg.NATSPort
	natsConfig.DataDir = cfg.NATSDataDir
	natsConfig.Logger = zl

	en, err := embeddednats.New(natsConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedded NATS: %w", err)
	}

	if err := en.Start(); err != nil {
		return nil, fmt.Errorf("failed to start embedded NATS: %w", err)
	}

	if err := en.CreateOverwatchStreams(); err != nil {
		_ = en.Shutdown(context.Background())
		return nil, fmt.Errorf("failed to create overwatch streams: %w", err)
	}

	zl.Info("NATS JetStream initialized")
	return en, nil
}

var newWorkerManager = workers.NewManager

// initMessaging starts NATS and the workers. On failure nothing is left
// running.
func initMessaging(cfg *config.Config, ledger workers.Ledger, journal workers.Journal, zl *zap.Logger) (*embeddednats.EmbeddedNATS, *workers.Manager, error) {
	en, err := initNATS(cfg, zl)
	if err != nil {
		return nil, nil, err
	}

	manager, err := newWorkerManager(en, ledger, journal, zl)
	if err != nil {
		shutdownNATS(en, cfg.ShutdownTimeout, zl)
		return nil, nil, fmt.Errorf("failed to create worker manager: %w", err)
	}
	if err := manager.Start(); err != nil {
		if stopErr := manager.Stop(); stopErr != nil {
			zl.Warn("Failed to stop workers", zap.Error(stopErr))
		}
		shutdownNATS(en, cfg.ShutdownTimeout, zl)
		return nil, nil, fmt.Errorf("failed to start workers: %w", err)
	}
	return en, manager, nil
}

func shutdownNATS(en *embeddednats.EmbeddedNATS, timeout time.Duration, zl *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := en.Shutdown(ctx); err != nil {
		zl.Warn("Failed to shutdown NATS", zap.Error(err))
	}
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg, loaded, err := config.Load()
	if err != nil {
		return err
	}

	zl, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	defer zl.Sync()

	if loaded {
		zl.Info("Loaded configuration from .env file")
	} else {
		zl.Info("No .env file found, using environment variables")
	}

	dbService, err := initDB(cfg, zl)
	if err != nil {
		return err
	}
	defer dbService.Close()

	reg, err := registry.New(registry.SeedTourists())
	if err != nil {
		return fmt.Errorf("failed to load tourist registry: %w", err)
	}

	rescue := services.NewRescueService(dbService, zl)
	if err := rescue.Seed(context.Background()); err != nil {
		return err
	}
	journal := db.NewJournal(dbService)
	collector := metrics.NewCollector()

	// Without NATS the ledger and journal take side effects directly.
	var (
		dispatcher session.Dispatcher = rescue
		sink       session.Sink       = journal
		nats       *embeddednats.EmbeddedNATS
		manager    *workers.Manager
	)
	if cfg.NATSEnabled {
		nats, manager, err = initMessaging(cfg, rescue, journal, zl)
		if err != nil {
			return err
		}

		publisher := embeddednats.NewPublisher(nats)
		dispatcher, sink = publisher, publisher
	}

	feedConfig := &feed.Config{InitialDelay: cfg.FeedInitialDelay, Interval: cfg.FeedInterval}
	sessions := services.NewSessionService(func(id, role string) (*session.Session, error) {
		return session.New(session.Options{
			ID:             id,
			Role:           role,
			Registry:       reg,
			Sequence:       registry.SeedAlerts(),
			Feed:           feedConfig,
			NoticeCapacity: cfg.NoticeCapacity,
			Dispatcher:     dispatcher,
			Sink:           sink,
			Metrics:        collector,
			Logger:         zl,
		})
	}, zl)

	mux := http.NewServeMux()
	handlers := api.NewHandlers(api.Deps{
		Sessions: sessions,
		Rescue:   rescue,
		Registry: reg,
		Journal:  journal,
		DB:       dbService,
		NATS:     nats,
		Metrics:  collector,
		Logger:   zl,
	})
	handlers.RegisterRoutes(mux)

	handler := middleware.CORS(middleware.RequestLogger(zl, collector)(mux))

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		zl.Info("Starting tourist overwatch server", zap.String("port", cfg.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case sig := <-sigChan:
		zl.Info("Shutting down server", zap.String("signal", sig.String()))
	case err := <-serverErr:
		zl.Error("Server failed", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zl.Warn("Failed to shutdown server gracefully", zap.Error(err))
	}

	// sessions flush their last events before the workers go away
	sessions.StopAll()

	if manager != nil {
		if err := manager.Stop(); err != nil {
			zl.Warn("Failed to stop workers", zap.Error(err))
		}
	}

	if nats != nil {
		if err := nats.Shutdown(shutdownCtx); err != nil {
			zl.Warn("Failed to shutdown NATS", zap.Error(err))
		}
	}

	zl.Info("Server shutdown complete")
	return nil
}
