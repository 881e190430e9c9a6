package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/septivank/waterlevel-monitor/internal/db"
	"github.com/septivank/waterlevel-monitor/internal/logging"
	"github.com/septivank/waterlevel-monitor/internal/metrics"
	"github.com/septivank/waterlevel-monitor/internal/mq"
	"github.com/septivank/waterlevel-monitor/internal/repository"
	"go.uber.org/zap"
)

// SyncResult summarises one sync run.
type SyncResult struct {
	Inserted     int `json:"inserted"`
	Updated      int `json:"updated"`
	TotalFetched int `json:"total_fetched"`
}

// Sync pulls up to maxRows rows from the external source and merges them into
// the store in a single transaction. Running it twice against an unchanged
// source changes nothing the second time. An unreachable source yields an
// empty fetch, not an error.
func (s *ReadingService) Sync(ctx context.Context, maxRows int) (SyncResult, error) {
	if maxRows <= 0 {
		maxRows = s.limits.SyncDefault
	}

	runID := uuid.New().String()
	logger := logging.FromContext(ctx, s.logger).With(
		zap.String("sync_run_id", runID),
		zap.String("source", s.fetcher.Kind()),
	)
	started := time.Now()

	candidates := s.fetcher.Fetch(ctx, maxRows)
	result := SyncResult{TotalFetched: len(candidates)}
	unchanged := 0

	fail := func(msg string, err error) (SyncResult, error) {
		s.metrics.ObserveSync(metrics.ResultError, time.Since(started), 0, 0, 0)
		logger.Error(msg, zap.Error(err))
		return SyncResult{}, fmt.Errorf("%s: %w", msg, err)
	}

	tx, err := s.store.Begin(ctx)
	if err != nil {
		return fail("failed to begin transaction", err)
	}
	defer tx.Rollback(ctx)

	for _, c := range candidates {
		if c.DeviceID == "" || c.Timestamp.IsZero() {
			continue
		}

		outcome, err := tx.MergeSyncedReading(ctx, &db.Reading{
			DeviceID:    c.DeviceID,
			Timestamp:   c.Timestamp,
			Measurement: c.Measurement,
			Location:    c.Location,
			Status:      c.Status,
		})
		if err != nil {
			return fail("failed to merge synced reading", err)
		}

		switch outcome {
		case repository.Inserted:
			result.Inserted++
		case repository.Updated:
			result.Updated++
		default:
			unchanged++
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fail("failed to commit sync", err)
	}

	elapsed := time.Since(started)
	s.metrics.ObserveSync(metrics.ResultSuccess, elapsed, result.Inserted, result.Updated, unchanged)
	logger.Info("sync completed",
		zap.Int("fetched", result.TotalFetched),
		zap.Int("inserted", result.Inserted),
		zap.Int("updated", result.Updated),
		zap.Int("unchanged", unchanged),
		zap.Duration("elapsed", elapsed),
	)

	event := mq.SyncEvent{
		RunID:        runID,
		Source:       s.fetcher.Kind(),
		Inserted:     result.Inserted,
		Updated:      result.Updated,
		TotalFetched: result.TotalFetched,
		FinishedAt:   time.Now().UTC(),
	}
	if err := s.publisher.PublishSync(ctx, event); err != nil {
		logger.Error("failed to publish sync event", zap.Error(err))
	}

	return result, nil
}
