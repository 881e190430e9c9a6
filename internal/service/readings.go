package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/septivank/waterlevel-monitor/internal/config"
	"github.com/septivank/waterlevel-monitor/internal/db"
	"github.com/septivank/waterlevel-monitor/internal/logging"
	"github.com/septivank/waterlevel-monitor/internal/metrics"
	"github.com/septivank/waterlevel-monitor/internal/mq"
	"github.com/septivank/waterlevel-monitor/internal/repository"
	"github.com/septivank/waterlevel-monitor/internal/source"
	"github.com/septivank/waterlevel-monitor/internal/status"
	"github.com/septivank/waterlevel-monitor/internal/validator"
	"go.uber.org/zap"
)

// EventPublisher receives events for committed changes.
type EventPublisher interface {
	PublishReading(ctx context.Context, event mq.ReadingEvent) error
	PublishSync(ctx context.Context, event mq.SyncEvent) error
}

// Fetcher yields classified candidates from the external source.
// *source.Adapter implements it.
type Fetcher interface {
	Kind() string
	Fetch(ctx context.Context, maxRows int) []source.Candidate
}

// ReadingService implements ingest, queries and sync on top of a Store.
type ReadingService struct {
	store      repository.Store
	classifier *status.Classifier
	validator  *validator.Validator
	fetcher    Fetcher
	publisher  EventPublisher
	metrics    *metrics.Metrics
	limits     config.LimitConfig
	logger     *zap.Logger
}

// Deps holds ReadingService dependencies. Publisher and Metrics are optional.
type Deps struct {
	Store      repository.Store
	Classifier *status.Classifier
	Validator  *validator.Validator
	Fetcher    Fetcher
	Publisher  EventPublisher
	Metrics    *metrics.Metrics
	Limits     config.LimitConfig
	Logger     *zap.Logger
}

// NewReadingService creates a new reading service
func NewReadingService(d Deps) *ReadingService {
	publisher := d.Publisher
	if publisher == nil {
		publisher = mq.NopPublisher{}
	}
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReadingService{
		store:      d.Store,
		classifier: d.Classifier,
		validator:  d.Validator,
		fetcher:    d.Fetcher,
		publisher:  publisher,
		metrics:    d.Metrics,
		limits:     d.Limits,
		logger:     logger,
	}
}

// Ingest validates input, classifies it against the current thresholds and
// stores it, merging into an existing reading with the same device and
// timestamp. It returns the stored reading and whether it was newly created.
// Validation failures are returned as *validator.ValidationError.
func (s *ReadingService) Ingest(ctx context.Context, input validator.ReadingInput) (*db.Reading, bool, error) {
	logger := logging.FromContext(ctx, s.logger)

	valid, err := s.validator.ValidateReading(input)
	if err != nil {
		s.metrics.ObserveIngest(metrics.ResultInvalid, "")
		logger.Info("reading rejected", zap.Error(err))
		return nil, false, err
	}

	reading := &db.Reading{
		DeviceID:    valid.DeviceID,
		Timestamp:   valid.Timestamp,
		Measurement: valid.Measurement,
		Location:    valid.Location,
		Status:      s.classifier.Classify(valid.Measurement),
		Notes:       valid.Notes,
	}

	tx, err := s.store.Begin(ctx)
	if err != nil {
		s.metrics.ObserveIngest(metrics.ResultError, "")
		logger.Error("failed to begin transaction", zap.Error(err))
		return nil, false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	stored, created, err := tx.IngestReading(ctx, reading)
	if err != nil {
		s.metrics.ObserveIngest(metrics.ResultError, "")
		logger.Error("failed to store reading", zap.Error(err), zap.String("device_id", reading.DeviceID))
		return nil, false, fmt.Errorf("failed to store reading: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		s.metrics.ObserveIngest(metrics.ResultError, "")
		logger.Error("failed to commit transaction", zap.Error(err))
		return nil, false, fmt.Errorf("failed to commit transaction: %w", err)
	}

	outcome := repository.Updated
	if created {
		outcome = repository.Inserted
	}
	s.metrics.ObserveIngest(metrics.ResultSuccess, outcome.String())

	logger.Info("reading stored",
		zap.Int64("id", stored.ID),
		zap.String("device_id", stored.DeviceID),
		zap.Time("timestamp", stored.Timestamp),
		zap.Float64("water_level", stored.Measurement),
		zap.String("status", string(stored.Status)),
		zap.String("outcome", outcome.String()),
	)

	event := mq.ReadingEvent{
		ID:          stored.ID,
		DeviceID:    stored.DeviceID,
		Timestamp:   stored.Timestamp,
		WaterLevel:  stored.Measurement,
		Location:    stored.Location,
		Status:      string(stored.Status),
		Created:     created,
		RequestID:   logging.RequestIDFromContext(ctx),
		PublishedAt: time.Now().UTC(),
	}
	if err := s.publisher.PublishReading(ctx, event); err != nil {
		logger.Error("failed to publish reading event", zap.Error(err), zap.Int64("id", stored.ID))
	}

	return stored, created, nil
}

// List returns up to limit readings, newest first. A non-positive limit
// selects the default and limits above the maximum are capped.
func (s *ReadingService) List(ctx context.Context, limit int) ([]db.Reading, error) {
	if limit <= 0 {
		limit = s.limits.ListDefault
	}
	if s.limits.ListMax > 0 && limit > s.limits.ListMax {
		limit = s.limits.ListMax
	}

	readings, err := s.store.ListReadings(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list readings: %w", err)
	}
	if readings == nil {
		readings = []db.Reading{}
	}
	return readings, nil
}

// Latest returns the newest reading or repository.ErrNotFound.
func (s *ReadingService) Latest(ctx context.Context) (*db.Reading, error) {
	reading, err := s.store.LatestReading(ctx)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest reading: %w", err)
	}
	return reading, nil
}

// Statistics aggregates the newest limit readings. A non-positive limit
// selects the default.
func (s *ReadingService) Statistics(ctx context.Context, limit int) (*db.Statistics, error) {
	if limit <= 0 {
		limit = s.limits.StatsDefault
	}

	stats, err := s.store.Statistics(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to compute statistics: %w", err)
	}
	if stats.Devices == nil {
		stats.Devices = []string{}
	}
	return stats, nil
}

// Reset deletes every stored reading.
func (s *ReadingService) Reset(ctx context.Context) (int64, error) {
	n, err := s.store.DeleteAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to reset readings: %w", err)
	}
	s.logger.Warn("all readings deleted", zap.Int64("count", n))
	return n, nil
}
