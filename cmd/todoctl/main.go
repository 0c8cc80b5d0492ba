// Command todoctl manages the concierge todo board stored in a local SQLite
// database, the same file the API server uses by default.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	_ "github.com/joho/godotenv/autoload"
	"go.uber.org/zap"

	"github.com/Tomlord1122/concierge-backend/internal/database"
	"github.com/Tomlord1122/concierge-backend/internal/repository"
	"github.com/Tomlord1122/concierge-backend/internal/service"
	"github.com/Tomlord1122/concierge-backend/internal/storage"
)

// app holds what every subcommand needs once the database is open.
type app struct {
	todos   service.TodoService
	closers []func() error
}

func (a *app) close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func openApp(ctx context.Context, dbPath string, logger *zap.Logger) (*app, error) {
	db, err := database.NewSQLite(dbPath, logger)
	if err != nil {
		return nil, err
	}
	store, err := storage.NewSQLiteStore(ctx, db.SQL(), logger)
	if err != nil {
		db.Close()
		return nil, err
	}
	repo := repository.NewTodoRepository(store, logger)
	return &app{
		todos:   service.NewTodoService(repo, logger),
		closers: []func() error{db.Close, store.Close},
	}, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	root, opts := newRootCmd()
	if err := execute(ctx, root, opts); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
