package source

import (
	"context"
	"time"

	"github.com/septivank/waterlevel-monitor/internal/metrics"
	"github.com/septivank/waterlevel-monitor/internal/status"
	"go.uber.org/zap"
)

// Adapter wraps a Source with the device filter, classification and the
// fetch timeout. It never returns an error: a failed fetch is logged,
// counted and reported as an empty result.
type Adapter struct {
	source        Source
	allowedDevice string
	classifier    *status.Classifier
	timeout       time.Duration
	metrics       *metrics.Metrics
	logger        *zap.Logger
}

// AdapterConfig holds adapter dependencies.
type AdapterConfig struct {
	Source        Source
	AllowedDevice string
	Classifier    *status.Classifier
	Timeout       time.Duration
	Metrics       *metrics.Metrics
	Logger        *zap.Logger
}

func NewAdapter(cfg AdapterConfig) *Adapter {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Adapter{
		source:        cfg.Source,
		allowedDevice: cfg.AllowedDevice,
		classifier:    cfg.Classifier,
		timeout:       cfg.Timeout,
		metrics:       cfg.Metrics,
		logger:        logger,
	}
}

// Kind returns the kind of the wrapped source.
func (a *Adapter) Kind() string { return a.source.Kind() }

// Fetch returns the classified candidates from at most maxRows body rows.
func (a *Adapter) Fetch(ctx context.Context, maxRows int) []Candidate {
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	table, err := a.source.FetchTable(ctx, maxRows)
	if err != nil {
		a.logger.Warn("external source fetch failed, treating as empty",
			zap.String("source", a.source.Kind()),
			zap.Error(err),
		)
		a.metrics.SourceFailure(a.source.Kind())
		return []Candidate{}
	}

	candidates, dropped := ParseTable(table, a.allowedDevice, a.classifier)
	for reason, n := range dropped {
		a.metrics.RowsDropped(reason, n)
		a.logger.Debug("external rows dropped",
			zap.String("source", a.source.Kind()),
			zap.String("reason", reason),
			zap.Int("count", n),
		)
	}

	a.logger.Debug("external source fetched",
		zap.String("source", a.source.Kind()),
		zap.Int("rows", len(table.Rows)),
		zap.Int("candidates", len(candidates)),
		zap.Int("dropped", dropped.Total()),
	)
	return candidates
}
