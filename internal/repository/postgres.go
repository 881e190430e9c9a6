package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/septivank/waterlevel-monitor/internal/db"
	"github.com/septivank/waterlevel-monitor/internal/status"
)

const readingColumns = `id, device_id, reading_timestamp, measurement, location, status, notes, created_at, updated_at`

// PostgresStore handles reading persistence in PostgreSQL
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new Postgres-backed store
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Begin starts a new transaction
func (s *PostgresStore) Begin(ctx context.Context) (Tx, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return &postgresTx{tx: tx}, nil
}

// ListReadings returns the newest readings first
func (s *PostgresStore) ListReadings(ctx context.Context, limit int) ([]db.Reading, error) {
	query := `
		SELECT ` + readingColumns + `
		FROM sensor_readings
		ORDER BY reading_timestamp DESC, id DESC
		LIMIT $1
	`

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query readings: %w", err)
	}
	defer rows.Close()

	readings := make([]db.Reading, 0)
	for rows.Next() {
		reading, err := scanReading(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reading: %w", err)
		}
		readings = append(readings, *reading)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return readings, nil
}

// LatestReading returns the newest reading
func (s *PostgresStore) LatestReading(ctx context.Context) (*db.Reading, error) {
	query := `
		SELECT ` + readingColumns + `
		FROM sensor_readings
		ORDER BY reading_timestamp DESC, id DESC
		LIMIT 1
	`

	reading, err := scanReading(s.pool.QueryRow(ctx, query))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest reading: %w", err)
	}
	return reading, nil
}

// Statistics aggregates the newest readings
func (s *PostgresStore) Statistics(ctx context.Context, limit int) (*db.Statistics, error) {
	query := `
		SELECT
			COUNT(*),
			COALESCE(AVG(measurement), 0),
			COALESCE(MAX(measurement), 0),
			COALESCE(MIN(measurement), 0),
			COALESCE(ARRAY_AGG(DISTINCT device_id), '{}')::text[]
		FROM (
			SELECT measurement, device_id
			FROM sensor_readings
			ORDER BY reading_timestamp DESC, id DESC
			LIMIT $1
		) newest
	`

	var stats db.Statistics
	err := s.pool.QueryRow(ctx, query, limit).Scan(
		&stats.TotalReadings,
		&stats.Average,
		&stats.Max,
		&stats.Min,
		&stats.Devices,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query statistics: %w", err)
	}
	if stats.Devices == nil {
		stats.Devices = []string{}
	}
	return &stats, nil
}

// DeleteAll removes every reading
func (s *PostgresStore) DeleteAll(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM sensor_readings`)
	if err != nil {
		return 0, fmt.Errorf("failed to delete readings: %w", err)
	}
	return tag.RowsAffected(), nil
}

type postgresTx struct {
	tx pgx.Tx
}

// IngestReading upserts in one statement so the existence check and the
// write cannot race with a concurrent ingest of the same key.
func (t *postgresTx) IngestReading(ctx context.Context, r *db.Reading) (*db.Reading, bool, error) {
	query := `
		INSERT INTO sensor_readings (device_id, reading_timestamp, measurement, location, status, notes)
		VALUES ($1, $2, $3, COALESCE($4, '` + db.DefaultLocation + `'), $5, $6)
		ON CONFLICT (device_id, reading_timestamp) DO UPDATE
		SET measurement = EXCLUDED.measurement,
		    status = EXCLUDED.status,
		    location = COALESCE($4, sensor_readings.location),
		    notes = COALESCE($6, sensor_readings.notes),
		    updated_at = NOW()
		RETURNING ` + readingColumns + `, (xmax = 0) AS inserted
	`

	var location *string
	if r.Location != "" {
		location = &r.Location
	}

	var stored db.Reading
	var level string
	var inserted bool
	err := t.tx.QueryRow(ctx, query,
		r.DeviceID,
		r.Timestamp,
		r.Measurement,
		location,
		string(r.Status),
		r.Notes,
	).Scan(
		&stored.ID,
		&stored.DeviceID,
		&stored.Timestamp,
		&stored.Measurement,
		&stored.Location,
		&level,
		&stored.Notes,
		&stored.CreatedAt,
		&stored.UpdatedAt,
		&inserted,
	)
	if err != nil {
		return nil, false, fmt.Errorf("failed to upsert reading: %w", err)
	}

	stored.Timestamp = stored.Timestamp.UTC()
	stored.Status = status.Level(level)
	return &stored, inserted, nil
}

// MergeSyncedReading upserts a synced reading. The conditional DO UPDATE
// leaves identical rows untouched, in which case nothing is returned.
func (t *postgresTx) MergeSyncedReading(ctx context.Context, r *db.Reading) (MergeOutcome, error) {
	location := r.Location
	if location == "" {
		location = db.DefaultLocation
	}

	query := `
		INSERT INTO sensor_readings (device_id, reading_timestamp, measurement, location, status)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (device_id, reading_timestamp) DO UPDATE
		SET measurement = EXCLUDED.measurement,
		    status = EXCLUDED.status,
		    updated_at = NOW()
		WHERE sensor_readings.measurement IS DISTINCT FROM EXCLUDED.measurement
		   OR sensor_readings.status IS DISTINCT FROM EXCLUDED.status
		RETURNING (xmax = 0) AS inserted
	`

	var inserted bool
	err := t.tx.QueryRow(ctx, query,
		r.DeviceID,
		r.Timestamp,
		r.Measurement,
		location,
		string(r.Status),
	).Scan(&inserted)
	if errors.Is(err, pgx.ErrNoRows) {
		return Unchanged, nil
	}
	if err != nil {
		return Unchanged, fmt.Errorf("failed to merge synced reading: %w", err)
	}

	if inserted {
		return Inserted, nil
	}
	return Updated, nil
}

func (t *postgresTx) Commit(ctx context.Context) error {
	if err := t.tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (t *postgresTx) Rollback(ctx context.Context) error {
	err := t.tx.Rollback(ctx)
	if err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("failed to rollback transaction: %w", err)
	}
	return nil
}

func scanReading(row pgx.Row) (*db.Reading, error) {
	var reading db.Reading
	var level string
	err := row.Scan(
		&reading.ID,
		&reading.DeviceID,
		&reading.Timestamp,
		&reading.Measurement,
		&reading.Location,
		&level,
		&reading.Notes,
		&reading.CreatedAt,
		&reading.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	reading.Timestamp = reading.Timestamp.UTC()
	reading.Status = status.Level(level)
	return &reading, nil
}
