package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/septivank/waterlevel-monitor/internal/db"
)

type readingKey struct {
	deviceID  string
	timestamp int64
}

func keyOf(r *db.Reading) readingKey {
	return readingKey{deviceID: r.DeviceID, timestamp: r.Timestamp.UTC().UnixNano()}
}

// MemoryStore keeps readings in process memory. It is used when no database
// is configured. A transaction holds the write lock until it ends, so
// transactions are serialised and their writes stay invisible until Commit.
type MemoryStore struct {
	mu       sync.RWMutex
	readings map[readingKey]*db.Reading
	nextID   int64
	now      func() time.Time
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		readings: make(map[readingKey]*db.Reading),
		nextID:   1,
		now:      time.Now,
	}
}

// Begin starts a transaction. It blocks while another transaction is open,
// and that wait does not observe ctx: cancellation is checked before waiting
// and again once the lock is held.
func (s *MemoryStore) Begin(ctx context.Context) (Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	s.mu.Lock()
	if err := ctx.Err(); err != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return &memoryTx{
		store:  s,
		staged: make(map[readingKey]*db.Reading),
		nextID: s.nextID,
	}, nil
}

// ListReadings returns up to limit readings, newest first
func (s *MemoryStore) ListReadings(ctx context.Context, limit int) ([]db.Reading, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.newest(limit), nil
}

// LatestReading returns the newest reading
func (s *MemoryStore) LatestReading(ctx context.Context) (*db.Reading, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	newest := s.newest(1)
	if len(newest) == 0 {
		return nil, ErrNotFound
	}
	return &newest[0], nil
}

// Statistics aggregates the newest limit readings
func (s *MemoryStore) Statistics(ctx context.Context, limit int) (*db.Statistics, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Summarize(s.newest(limit)), nil
}

// DeleteAll removes every reading
func (s *MemoryStore) DeleteAll(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := int64(len(s.readings))
	s.readings = make(map[readingKey]*db.Reading)
	return n, nil
}

// newest returns copies ordered by timestamp then id, both descending.
// Callers must hold the lock.
func (s *MemoryStore) newest(limit int) []db.Reading {
	all := make([]db.Reading, 0, len(s.readings))
	for _, r := range s.readings {
		all = append(all, *r)
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].Timestamp.Equal(all[j].Timestamp) {
			return all[i].Timestamp.After(all[j].Timestamp)
		}
		return all[i].ID > all[j].ID
	})
	if limit >= 0 && limit < len(all) {
		all = all[:limit]
	}
	return all
}

// Summarize computes statistics over a reading set. An empty set yields
// zero values and an empty device list.
func Summarize(readings []db.Reading) *db.Statistics {
	stats := &db.Statistics{Devices: []string{}}
	if len(readings) == 0 {
		return stats
	}

	seen := make(map[string]struct{})
	sum := 0.0
	stats.Max = readings[0].Measurement
	stats.Min = readings[0].Measurement
	for _, r := range readings {
		sum += r.Measurement
		if r.Measurement > stats.Max {
			stats.Max = r.Measurement
		}
		if r.Measurement < stats.Min {
			stats.Min = r.Measurement
		}
		if _, ok := seen[r.DeviceID]; !ok {
			seen[r.DeviceID] = struct{}{}
			stats.Devices = append(stats.Devices, r.DeviceID)
		}
	}
	sort.Strings(stats.Devices)

	stats.TotalReadings = len(readings)
	stats.Average = sum / float64(len(readings))
	return stats
}

type memoryTx struct {
	store  *MemoryStore
	staged map[readingKey]*db.Reading
	nextID int64
	done   bool
}

func (t *memoryTx) lookup(key readingKey) (*db.Reading, bool) {
	if r, ok := t.staged[key]; ok {
		return r, true
	}
	r, ok := t.store.readings[key]
	return r, ok
}

func (t *memoryTx) IngestReading(ctx context.Context, r *db.Reading) (*db.Reading, bool, error) {
	if t.done {
		return nil, false, fmt.Errorf("failed to upsert reading: transaction closed")
	}

	key := keyOf(r)
	now := t.store.now().UTC()

	if existing, ok := t.lookup(key); ok {
		merged := *existing
		merged.Measurement = r.Measurement
		merged.Status = r.Status
		if r.Location != "" {
			merged.Location = r.Location
		}
		if r.Notes != nil {
			notes := *r.Notes
			merged.Notes = &notes
		}
		merged.UpdatedAt = now
		t.staged[key] = &merged
		out := merged
		return &out, false, nil
	}

	created := t.newReading(r, now)
	if r.Notes != nil {
		notes := *r.Notes
		created.Notes = &notes
	}
	t.staged[key] = created
	out := *created
	return &out, true, nil
}

func (t *memoryTx) MergeSyncedReading(ctx context.Context, r *db.Reading) (MergeOutcome, error) {
	if t.done {
		return Unchanged, fmt.Errorf("failed to merge synced reading: transaction closed")
	}

	key := keyOf(r)
	now := t.store.now().UTC()

	if existing, ok := t.lookup(key); ok {
		if existing.Measurement == r.Measurement && existing.Status == r.Status {
			return Unchanged, nil
		}
		merged := *existing
		merged.Measurement = r.Measurement
		merged.Status = r.Status
		merged.UpdatedAt = now
		t.staged[key] = &merged
		return Updated, nil
	}

	t.staged[key] = t.newReading(r, now)
	return Inserted, nil
}

func (t *memoryTx) newReading(r *db.Reading, now time.Time) *db.Reading {
	location := r.Location
	if location == "" {
		location = db.DefaultLocation
	}
	created := &db.Reading{
		ID:          t.nextID,
		DeviceID:    r.DeviceID,
		Timestamp:   r.Timestamp.UTC(),
		Measurement: r.Measurement,
		Location:    location,
		Status:      r.Status,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	t.nextID++
	return created
}

func (t *memoryTx) Commit(ctx context.Context) error {
	if t.done {
		return fmt.Errorf("failed to commit transaction: transaction closed")
	}
	for key, r := range t.staged {
		t.store.readings[key] = r
	}
	t.store.nextID = t.nextID
	t.finish()
	return nil
}

func (t *memoryTx) Rollback(ctx context.Context) error {
	if t.done {
		return nil
	}
	t.finish()
	return nil
}

func (t *memoryTx) finish() {
	t.done = true
	t.staged = nil
	t.store.mu.Unlock()
}
