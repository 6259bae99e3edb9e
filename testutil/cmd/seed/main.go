// Command seed creates the circulation schema and fills it with a demo catalog.
//
// The target database is taken from CIRCULATION_POSTGRES_DSN (or a .env file).
// Pass -reset to empty all circulation tables first.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/AntonStoeckl/library-circulation-go/circulation/postgresengine"
	"github.com/AntonStoeckl/library-circulation-go/testutil/postgresengine/config"
	"github.com/AntonStoeckl/library-circulation-go/testutil/postgresengine/fixtures"
)

func main() {
	reset := flag.Bool("reset", false, "empty all circulation tables before seeding")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	if err := run(*reset, logger); err != nil {
		logger.Error("seeding failed", "error", err.Error())
		os.Exit(1)
	}
}

func run(reset bool, logger *slog.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	poolConfig, err := config.PostgresPGXPoolConfig()
	if err != nil {
		return fmt.Errorf("parsing dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return fmt.Errorf("connecting: %w", err)
	}
	defer pool.Close()

	store, err := postgresengine.NewStoreFromPGXPool(pool, postgresengine.WithLogger(logger))
	if err != nil {
		return err
	}

	if err = store.EnsureSchema(ctx); err != nil {
		return err
	}

	catalog := fixtures.NewCatalog(pool)

	if reset {
		if err = catalog.Reset(ctx); err != nil {
			return err
		}
	}

	copies, err := catalog.SeedDemo(ctx)
	if err != nil {
		return err
	}

	logger.Info("demo catalog seeded", "titles", len(fixtures.DemoTitles), "copies", copies, "customers", len(fixtures.DemoCustomers))

	return nil
}
