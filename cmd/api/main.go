package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/Tomlord1122/concierge-backend/internal/controller"
	"github.com/Tomlord1122/concierge-backend/internal/database"
	"github.com/Tomlord1122/concierge-backend/internal/notify"
	"github.com/Tomlord1122/concierge-backend/internal/repository"
	"github.com/Tomlord1122/concierge-backend/internal/server"
	"github.com/Tomlord1122/concierge-backend/internal/service"
	"github.com/Tomlord1122/concierge-backend/internal/storage"
)

func newLogger() (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if env := os.Getenv("APP_ENV"); env == "local" || env == "" {
		cfg = zap.NewDevelopmentConfig()
	}
	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		level, err := zapcore.ParseLevel(lvl)
		if err != nil {
			return nil, fmt.Errorf("parse LOG_LEVEL: %w", err)
		}
		cfg.Level = zap.NewAtomicLevelAt(level)
	}
	return cfg.Build()
}

// openStore picks the key-value backend from STORE_DRIVER.
func openStore(ctx context.Context, logger *zap.Logger) (storage.KeyValueStore, database.Service, error) {
	driver := os.Getenv("STORE_DRIVER")
	if driver == "" {
		driver = "sqlite"
	}

	switch driver {
	case "memory":
		return storage.NewMemoryStore(), database.NewMemory(), nil
	case "sqlite":
		path := os.Getenv("SQLITE_PATH")
		if path == "" {
			path = "./data/concierge.db"
		}
		db, err := database.NewSQLite(path, logger)
		if err != nil {
			return nil, nil, err
		}
		store, err := storage.NewSQLiteStore(ctx, db.SQL(), logger)
		if err != nil {
			db.Close()
			return nil, nil, err
		}
		return store, db, nil
	case "postgres":
		db, err := database.NewPostgres(database.PostgresDSN(), logger)
		if err != nil {
			return nil, nil, err
		}
		store, err := storage.NewGormStore(db.GetDB(), logger)
		if err != nil {
			db.Close()
			return nil, nil, err
		}
		return store, db, nil
	default:
		return nil, nil, fmt.Errorf("unknown STORE_DRIVER %q", driver)
	}
}

func run(logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, dbService, err := openStore(ctx, logger)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}

	todoRepo := repository.NewTodoRepository(store, logger)
	todoService := service.NewTodoService(todoRepo, logger)
	notifications := notify.New(logger)

	apiServer := server.NewServer(server.Config{
		Todos:         todoService,
		TodoRepo:      todoRepo,
		Notifications: notifications,
		Submitter:     controller.NewStoreSubmitter(store, logger),
		DB:            dbService,
		Logger:        logger,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting server", zap.String("addr", apiServer.Addr))
		if err := apiServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen and serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down gracefully, press Ctrl+C again to force")
		stop()

		// The server has 5 seconds to finish the requests it is handling.
		ctxTimeout, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := apiServer.Shutdown(ctxTimeout); err != nil {
			logger.Error("server forced to shutdown", zap.Error(err))
		}
		return nil
	})

	err = g.Wait()

	notifications.Close()
	if cerr := store.Close(); cerr != nil {
		logger.Error("closing store", zap.Error(cerr))
	}
	if cerr := dbService.Close(); cerr != nil {
		logger.Error("closing database", zap.Error(cerr))
	}
	logger.Info("graceful shutdown complete")
	return err
}

func main() {
	logger, err := newLogger()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(logger); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}
