package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/septivank/waterlevel-monitor/internal/db"
	"github.com/septivank/waterlevel-monitor/internal/repository"
	"github.com/septivank/waterlevel-monitor/internal/service"
	"github.com/septivank/waterlevel-monitor/internal/source"
	"github.com/septivank/waterlevel-monitor/internal/status"
)

func candidate(day int, device string, m float64, level status.Level) source.Candidate {
	return source.Candidate{
		Timestamp:   time.Date(2024, 1, day, 0, 0, 0, 0, time.UTC),
		DeviceID:    device,
		Measurement: m,
		Status:      level,
	}
}

func TestSync_Idempotent(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.fetcher.candidates = []source.Candidate{
		candidate(1, "waterlevel", 15, status.Critical),
		candidate(2, "waterlevel", 60, status.Normal),
	}

	first, err := f.svc.Sync(ctx, 0)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if first.Inserted != 2 || first.Updated != 0 || first.TotalFetched != 2 {
		t.Errorf("Unexpected first result %+v", first)
	}

	second, err := f.svc.Sync(ctx, 0)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if second.Inserted != 0 || second.Updated != 0 || second.TotalFetched != 2 {
		t.Errorf("Expected no changes on second sync, got %+v", second)
	}

	if len(f.publisher.syncs) != 2 || f.publisher.syncs[0].RunID == f.publisher.syncs[1].RunID {
		t.Errorf("Expected two sync events with distinct run ids, got %+v", f.publisher.syncs)
	}
}

func TestSync_UpdatesChangedMeasurement(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.fetcher.candidates = []source.Candidate{candidate(1, "waterlevel", 45, status.Warning)}

	if _, err := f.svc.Sync(ctx, 0); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	f.fetcher.candidates = []source.Candidate{candidate(1, "waterlevel", 10, status.Critical)}
	res, err := f.svc.Sync(ctx, 0)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if res.Updated != 1 || res.Inserted != 0 {
		t.Errorf("Expected one update, got %+v", res)
	}

	latest, err := f.svc.Latest(ctx)
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if latest.Measurement != 10 || latest.Status != status.Critical {
		t.Errorf("Unexpected latest %+v", latest)
	}
}

func TestSync_EmptySource(t *testing.T) {
	f := newFixture(t, nil)

	res, err := f.svc.Sync(context.Background(), 10)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if res != (service.SyncResult{}) {
		t.Errorf("Expected zero result, got %+v", res)
	}

	all, _ := f.svc.List(context.Background(), 0)
	if len(all) != 0 {
		t.Errorf("Expected empty store, got %d readings", len(all))
	}
}

func TestSync_SkipsIncompleteCandidates(t *testing.T) {
	f := newFixture(t, nil)
	f.fetcher.candidates = []source.Candidate{
		{DeviceID: "waterlevel", Measurement: 15, Status: status.Critical},
		candidate(1, "", 15, status.Critical),
		candidate(1, "waterlevel", 15, status.Critical),
	}

	res, err := f.svc.Sync(context.Background(), 0)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if res.Inserted != 1 || res.TotalFetched != 3 {
		t.Errorf("Unexpected result %+v", res)
	}
}

// failingStore fails the merge after a number of successful ones.
type failingStore struct {
	*repository.MemoryStore
	failAfter int
}

func (s *failingStore) Begin(ctx context.Context) (repository.Tx, error) {
	tx, err := s.MemoryStore.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &failingTx{Tx: tx, remaining: s.failAfter}, nil
}

type failingTx struct {
	repository.Tx
	remaining int
}

func (t *failingTx) MergeSyncedReading(ctx context.Context, r *db.Reading) (repository.MergeOutcome, error) {
	if t.remaining == 0 {
		return repository.Unchanged, errors.New("disk full")
	}
	t.remaining--
	return t.Tx.MergeSyncedReading(ctx, r)
}

func TestSync_StoreFailureRollsBack(t *testing.T) {
	f := newFixture(t, &failingStore{MemoryStore: repository.NewMemoryStore(), failAfter: 1})
	f.fetcher.candidates = []source.Candidate{
		candidate(1, "waterlevel", 15, status.Critical),
		candidate(2, "waterlevel", 60, status.Normal),
	}

	if _, err := f.svc.Sync(context.Background(), 0); err == nil {
		t.Fatal("Expected sync to fail")
	}

	all, err := f.svc.List(context.Background(), 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 0 {
		t.Errorf("Expected no readings after rollback, got %d", len(all))
	}
	if len(f.publisher.syncs) != 0 {
		t.Error("Expected no sync event after rollback")
	}
}
