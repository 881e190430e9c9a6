// Command seed optionally wipes the reading table and ingests sample readings
// through the normal ingest path.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/septivank/waterlevel-monitor/internal/config"
	"github.com/septivank/waterlevel-monitor/internal/db"
	"github.com/septivank/waterlevel-monitor/internal/logging"
	"github.com/septivank/waterlevel-monitor/internal/repository"
	"github.com/septivank/waterlevel-monitor/internal/service"
	"github.com/septivank/waterlevel-monitor/internal/source"
	"github.com/septivank/waterlevel-monitor/internal/status"
	"github.com/septivank/waterlevel-monitor/internal/validator"
	"go.uber.org/zap"
)

func main() {
	reset := flag.Bool("reset", false, "delete every stored reading before seeding")
	count := flag.Int("count", 30, "number of sample readings to ingest")
	seed := flag.Int64("seed", time.Now().UnixNano(), "random seed for sample values")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	logger, err := logging.NewLogger(cfg.ServiceName+"-seed", cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(context.Background(), cfg, logger, *reset, *count, *seed); err != nil {
		logger.Fatal("seed failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger, reset bool, count int, seed int64) error {
	if cfg.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required for seeding")
	}

	pool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	if cfg.Database.AutoMigrate {
		if err := db.Migrate(ctx, pool, logger); err != nil {
			return err
		}
	}

	classifier, err := status.NewClassifier(cfg.Thresholds.WarningCM, cfg.Thresholds.CriticalCM)
	if err != nil {
		return err
	}

	svc := service.NewReadingService(service.Deps{
		Store:      repository.NewPostgresStore(pool),
		Classifier: classifier,
		Validator:  validator.NewValidator(cfg.Validation.MaxFutureSkew),
		Limits:     cfg.Limits,
		Logger:     logger,
	})

	if reset {
		if _, err := svc.Reset(ctx); err != nil {
			return err
		}
	}

	// Sample rows come from the simulated source so seeded data matches what
	// a sync against the development source would produce.
	table, err := source.NewSimulatedSource(source.SimulatedOptions{Rows: count, Seed: seed}).FetchTable(ctx, count)
	if err != nil {
		return err
	}

	inserted, merged := 0, 0
	for i, row := range table.Rows {
		measurement, err := strconv.ParseFloat(row[2], 64)
		if err != nil {
			return fmt.Errorf("bad sample %d: %w", i, err)
		}
		location := row[3]
		_, created, err := svc.Ingest(ctx, validator.ReadingInput{
			Timestamp:   row[0],
			DeviceID:    row[1],
			Measurement: &measurement,
			Location:    &location,
		})
		if err != nil {
			return fmt.Errorf("failed to ingest sample %d: %w", i, err)
		}
		if created {
			inserted++
		} else {
			merged++
		}
	}

	logger.Info("seed completed",
		zap.Bool("reset", reset),
		zap.Int("inserted", inserted),
		zap.Int("merged", merged),
	)
	return nil
}
