//go:build integration

package repository_test

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/septivank/waterlevel-monitor/internal/db"
	"github.com/septivank/waterlevel-monitor/internal/repository"
	"github.com/septivank/waterlevel-monitor/internal/status"
)

// Run with: TEST_DATABASE_URL=postgres://... go test -tags integration ./internal/repository/
func newPostgresStore(t *testing.T) *repository.PostgresStore {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		t.Fatalf("pgxpool.New: %v", err)
	}
	t.Cleanup(pool.Close)

	if err := db.Migrate(ctx, pool, zap.NewNop()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}

	store := repository.NewPostgresStore(pool)
	if _, err := store.DeleteAll(ctx); err != nil {
		t.Fatalf("DeleteAll: %v", err)
	}
	t.Cleanup(func() { _, _ = store.DeleteAll(context.Background()) })
	return store
}

func mergeSynced(t *testing.T, store repository.Store, r *db.Reading) repository.MergeOutcome {
	t.Helper()
	ctx := context.Background()

	tx, err := store.Begin(ctx)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	defer tx.Rollback(ctx)

	outcome, err := tx.MergeSyncedReading(ctx, r)
	if err != nil {
		t.Fatalf("MergeSyncedReading: %v", err)
	}
	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	return outcome
}

func TestPostgresStore_IngestUpsert(t *testing.T) {
	store := newPostgresStore(t)
	notes := "first"

	first, inserted := ingest(t, store, &db.Reading{
		DeviceID: "S1", Timestamp: baseTime, Measurement: 45, Location: "Zone A", Status: status.Warning, Notes: &notes,
	})
	if !inserted {
		t.Fatal("expected first ingest to insert")
	}
	if first.Location != "Zone A" || first.Notes == nil || *first.Notes != "first" {
		t.Fatalf("unexpected stored reading %+v", first)
	}

	second, inserted := ingest(t, store, &db.Reading{
		DeviceID: "S1", Timestamp: baseTime, Measurement: 15, Status: status.Critical,
	})
	if inserted {
		t.Fatal("expected second ingest of the same key to merge")
	}
	if second.ID != first.ID {
		t.Errorf("expected id %d to be kept, got %d", first.ID, second.ID)
	}
	if second.Measurement != 15 || second.Status != status.Critical {
		t.Errorf("expected measurement and status to be replaced, got %+v", second)
	}
	if second.Location != "Zone A" || second.Notes == nil || *second.Notes != "first" {
		t.Errorf("expected absent location and notes to keep stored values, got %+v", second)
	}
	if !second.Timestamp.Equal(baseTime) {
		t.Errorf("unexpected timestamp %v", second.Timestamp)
	}
}

func TestPostgresStore_IngestDefaultsLocation(t *testing.T) {
	store := newPostgresStore(t)

	stored, _ := ingest(t, store, &db.Reading{DeviceID: "S2", Timestamp: baseTime, Measurement: 70, Status: status.Normal})
	if stored.Location != db.DefaultLocation {
		t.Errorf("expected %q, got %q", db.DefaultLocation, stored.Location)
	}
}

func TestPostgresStore_MergeSyncedOutcomes(t *testing.T) {
	store := newPostgresStore(t)
	r := &db.Reading{DeviceID: "waterlevel", Timestamp: baseTime, Measurement: 30, Status: status.Warning}

	if got := mergeSynced(t, store, r); got != repository.Inserted {
		t.Fatalf("expected inserted, got %s", got)
	}
	if got := mergeSynced(t, store, r); got != repository.Unchanged {
		t.Fatalf("expected unchanged for identical data, got %s", got)
	}

	changed := *r
	changed.Measurement = 10
	changed.Status = status.Critical
	if got := mergeSynced(t, store, &changed); got != repository.Updated {
		t.Fatalf("expected updated, got %s", got)
	}

	latest, err := store.LatestReading(context.Background())
	if err != nil {
		t.Fatalf("LatestReading: %v", err)
	}
	if latest.Measurement != 10 || latest.Status != status.Critical {
		t.Errorf("unexpected latest reading %+v", latest)
	}
}

func TestPostgresStore_StatisticsEmpty(t *testing.T) {
	store := newPostgresStore(t)

	stats, err := store.Statistics(context.Background(), 1000)
	if err != nil {
		t.Fatalf("Statistics: %v", err)
	}
	if stats.TotalReadings != 0 || stats.Average != 0 || len(stats.Devices) != 0 || stats.Devices == nil {
		t.Errorf("unexpected empty statistics %+v", stats)
	}
}
