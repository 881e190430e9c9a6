package repository

import (
	"context"
	"errors"

	"github.com/septivank/waterlevel-monitor/internal/db"
)

// ErrNotFound is returned when a lookup matches no reading.
var ErrNotFound = errors.New("reading not found")

// MergeOutcome reports what a synced reading did to the store.
type MergeOutcome int

const (
	Unchanged MergeOutcome = iota
	Inserted
	Updated
)

func (o MergeOutcome) String() string {
	switch o {
	case Inserted:
		return "inserted"
	case Updated:
		return "updated"
	}
	return "unchanged"
}

// Store is the reading store shared by the Postgres and in-memory backends.
type Store interface {
	// Begin starts a unit of work. Writes become visible to readers on Commit.
	Begin(ctx context.Context) (Tx, error)
	// ListReadings returns up to limit readings, newest first.
	ListReadings(ctx context.Context, limit int) ([]db.Reading, error)
	// LatestReading returns the newest reading or ErrNotFound.
	LatestReading(ctx context.Context) (*db.Reading, error)
	// Statistics aggregates the newest limit readings.
	Statistics(ctx context.Context, limit int) (*db.Statistics, error)
	// DeleteAll removes every reading. Administrative reset only.
	DeleteAll(ctx context.Context) (int64, error)
}

// Tx is a unit of work against the store. Rollback after Commit is a no-op.
type Tx interface {
	// IngestReading inserts r or merges it into the reading with the same key.
	// Measurement and status are always overwritten; location and notes only
	// when r carries them. It returns the stored row and whether it was new.
	IngestReading(ctx context.Context, r *db.Reading) (*db.Reading, bool, error)
	// MergeSyncedReading inserts r or overwrites measurement and status of the
	// reading with the same key when either differs.
	MergeSyncedReading(ctx context.Context, r *db.Reading) (MergeOutcome, error)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}
