package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/septivank/running-hours-ledger/internal/anomaly"
	"github.com/septivank/running-hours-ledger/internal/ledger"
	"github.com/septivank/running-hours-ledger/internal/logging"
	"github.com/septivank/running-hours-ledger/internal/mq"
	"go.uber.org/zap"
)

// EventPublisher publishes the outcome of processed commands
type EventPublisher interface {
	PublishUpdated(ctx context.Context, event mq.RunningHoursEvent) error
	PublishRejected(ctx context.Context, event mq.RejectedEvent) error
}

// ProcessorService applies running-hours commands to the ledger
type ProcessorService struct {
	ledger    *ledger.Ledger
	publisher EventPublisher
	detector  *anomaly.Detector
	logger    *zap.Logger
}

// NewProcessorService creates a new processor service
func NewProcessorService(
	l *ledger.Ledger,
	publisher EventPublisher,
	detector *anomaly.Detector,
	logger *zap.Logger,
) *ProcessorService {
	return &ProcessorService{
		ledger:    l,
		publisher: publisher,
		detector:  detector,
		logger:    logger,
	}
}

// ProcessMessage processes one command message. Validation rejections are
// published and acknowledged; a returned error dead-letters the message.
func (s *ProcessorService) ProcessMessage(ctx context.Context, body []byte) error {
	cmd, err := DecodeCommand(body)
	if err != nil {
		return err
	}

	reqLogger := logging.WithRequestID(s.logger, cmd.RequestID)
	reqLogger.Info("processing command",
		zap.String("kind", cmd.Kind),
		zap.String("user_id", cmd.UserID),
		zap.Int("rows", len(cmd.Rows)),
	)

	switch cmd.Kind {
	case KindSingle:
		if cmd.Update == nil {
			s.reject(ctx, reqLogger, cmd, "", &ledger.ValidationError{Field: "update", Message: "update is required"})
			return nil
		}
		return s.processSingle(ctx, reqLogger, cmd)
	case KindBulk:
		return s.processBulk(ctx, reqLogger, cmd)
	default:
		s.reject(ctx, reqLogger, cmd, "", &ledger.ValidationError{
			Field:   "kind",
			Message: fmt.Sprintf("unknown command kind '%s'", cmd.Kind),
		})
		return nil
	}
}

func (s *ProcessorService) processSingle(ctx context.Context, logger *zap.Logger, cmd *Command) error {
	// an unknown mode stays zero and is rejected by the ledger
	mode, _ := ledger.ParseMode(cmd.Mode)
	u := cmd.Update

	result, err := s.ledger.ApplySingleUpdate(ctx, u.ComponentID, ledger.UpdateInput{
		Mode:             mode,
		Value:            string(u.Value),
		DateUpdatedLocal: u.DateUpdatedLocal,
		Timezone:         cmd.Timezone,
		MeterReplaced:    u.MeterReplaced,
		OldMeterFinal:    string(u.OldMeterFinal),
		NewMeterStart:    string(u.NewMeterStart),
		Comments:         u.Comments,
		UserID:           cmd.UserID,
	})
	if err != nil {
		if ledger.IsValidation(err) {
			s.reject(ctx, logger, cmd, u.ComponentID, err)
			return nil
		}
		logger.Error("failed to apply running hours update",
			zap.String("component_id", u.ComponentID),
			zap.Error(err),
		)
		return fmt.Errorf("failed to apply running hours update: %w", err)
	}

	s.publishUpdated(ctx, logger, cmd.RequestID, result)
	logger.Info("command processed successfully", zap.String("component_id", u.ComponentID))
	return nil
}

func (s *ProcessorService) processBulk(ctx context.Context, logger *zap.Logger, cmd *Command) error {
	mode, _ := ledger.ParseMode(cmd.Mode)
	req := ledger.BulkRequest{
		Mode:     mode,
		Timezone: cmd.Timezone,
		UserID:   cmd.UserID,
		Rows:     make([]ledger.BulkRow, len(cmd.Rows)),
	}
	for i, row := range cmd.Rows {
		req.Rows[i] = ledger.BulkRow{
			ComponentID:   row.ComponentID,
			Value:         string(row.Value),
			MeterReplaced: row.MeterReplaced,
			OldMeterFinal: string(row.OldMeterFinal),
			NewMeterStart: string(row.NewMeterStart),
			Comments:      row.Comments,
		}
	}

	report := s.ledger.ApplyBulkUpdate(ctx, req)

	var (
		unapplied  int
		rejections []mq.RejectedEvent
	)
	for _, row := range report.Rows {
		row := row
		switch row.Status {
		case ledger.RowUpdated:
			s.publishUpdated(ctx, logger, cmd.RequestID, row.Result)
		case ledger.RowFailed:
			if row.Kind == ledger.FailurePersistence {
				unapplied++
			}
			rejections = append(rejections, mq.RejectedEvent{
				RequestID:   cmd.RequestID,
				UserID:      cmd.UserID,
				ComponentID: row.ComponentID,
				Row:         &row.Index,
				Kind:        string(row.Kind),
				Field:       row.Field,
				Reason:      row.Message,
			})
		case ledger.RowCancelled:
			unapplied++
			rejections = append(rejections, mq.RejectedEvent{
				RequestID:   cmd.RequestID,
				UserID:      cmd.UserID,
				ComponentID: row.ComponentID,
				Row:         &row.Index,
				Kind:        string(ledger.RowCancelled),
				Reason:      "row was not applied before the command was cancelled",
			})
		}
	}

	// with nothing committed the whole command can be replayed from the DLQ,
	// and the replay reports its own rejections
	if unapplied > 0 && report.Updated == 0 {
		return fmt.Errorf("bulk command %s: %d rows could not be applied", cmd.RequestID, unapplied)
	}
	for _, event := range rejections {
		s.publishRejected(ctx, logger, event)
	}
	if unapplied > 0 {
		logger.Error("bulk command partially applied",
			zap.Int("updated", report.Updated),
			zap.Int("unapplied", unapplied),
		)
	}

	logger.Info("command processed successfully",
		zap.Int("updated", report.Updated),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", report.Failed),
		zap.Int("cancelled", report.Cancelled),
	)
	return nil
}

func (s *ProcessorService) publishUpdated(ctx context.Context, logger *zap.Logger, requestID string, result *ledger.UpdateResult) {
	audit := result.Audit
	event := mq.RunningHoursEvent{
		RequestID:        requestID,
		ComponentID:      audit.ComponentID,
		AuditID:          audit.ID.String(),
		PreviousRH:       audit.PreviousRH,
		CumulativeRH:     audit.CumulativeRH,
		MeterReplaced:    audit.MeterReplaced,
		Source:           string(audit.Source),
		UserID:           audit.UserID,
		DateUpdatedLocal: audit.DateUpdatedLocal.Format(time.RFC3339),
		DateUpdatedTZ:    audit.DateUpdatedTZ,
	}

	isAnomaly, reason := s.detector.DetectAnomaly(anomaly.Reading{
		PreviousRH:    result.Previous.CumulativeRunningHours,
		CumulativeRH:  audit.CumulativeRH,
		PreviousAt:    result.Previous.LastUpdatedLocal,
		At:            audit.DateUpdatedLocal,
		MeterReplaced: audit.MeterReplaced,
	})
	if isAnomaly {
		event.AnomalyReason = &reason
		logger.Warn("anomaly detected",
			zap.String("component_id", audit.ComponentID),
			zap.Float64("previous_rh", audit.PreviousRH),
			zap.Float64("cumulative_rh", audit.CumulativeRH),
			zap.String("reason", reason),
		)
	}

	// the update is already stored, a lost event must not dead-letter it
	if err := s.publisher.PublishUpdated(ctx, event); err != nil {
		logger.Error("failed to publish event",
			zap.Error(err),
			zap.String("component_id", event.ComponentID),
			zap.String("audit_id", event.AuditID),
		)
	}
}

func (s *ProcessorService) reject(ctx context.Context, logger *zap.Logger, cmd *Command, componentID string, err error) {
	event := mq.RejectedEvent{
		RequestID:   cmd.RequestID,
		UserID:      cmd.UserID,
		ComponentID: componentID,
		Kind:        string(ledger.FailureKindOf(err)),
		Reason:      err.Error(),
	}
	var ve *ledger.ValidationError
	if errors.As(err, &ve) {
		event.Field = ve.Field
		event.Reason = ve.Message
	}

	logger.Info("command rejected",
		zap.String("component_id", componentID),
		zap.String("field", event.Field),
		zap.String("reason", event.Reason),
	)
	s.publishRejected(ctx, logger, event)
}

func (s *ProcessorService) publishRejected(ctx context.Context, logger *zap.Logger, event mq.RejectedEvent) {
	if err := s.publisher.PublishRejected(ctx, event); err != nil {
		logger.Error("failed to publish rejection",
			zap.Error(err),
			zap.String("component_id", event.ComponentID),
		)
	}
}
