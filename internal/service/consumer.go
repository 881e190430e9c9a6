package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/septivank/waterlevel-monitor/internal/logging"
	"github.com/septivank/waterlevel-monitor/internal/mq"
	"github.com/septivank/waterlevel-monitor/internal/validator"
	"go.uber.org/zap"
)

// ProcessMessage handles one delivery from the ingest queue. Malformed and
// invalid messages return an error so the consumer dead-letters them.
func (s *ReadingService) ProcessMessage(ctx context.Context, body []byte) error {
	var msg mq.IngestMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return fmt.Errorf("failed to unmarshal message: %w", err)
	}

	if msg.RequestID != "" {
		ctx = logging.ContextWithRequestID(ctx, msg.RequestID)
	}
	logger := logging.FromContext(ctx, s.logger)

	reading, created, err := s.Ingest(ctx, validator.ReadingInput{
		Timestamp:   msg.Timestamp,
		DeviceID:    msg.DeviceID,
		Measurement: msg.WaterLevel,
		Location:    msg.Location,
		Notes:       msg.Notes,
	})
	if err != nil {
		var verr *validator.ValidationError
		if errors.As(err, &verr) {
			return fmt.Errorf("invalid reading message: %w", err)
		}
		return err
	}

	logger.Debug("queued reading processed",
		zap.Int64("id", reading.ID),
		zap.Bool("created", created),
		zap.Time("received_at", msg.ReceivedAt),
	)
	return nil
}
