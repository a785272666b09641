package telemetry

import (
	"context"
	"errors"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/djsoulspotti-ops/skajla/model"
	"github.com/djsoulspotti-ops/skajla/utils/apperr"
)

const maxBatchSize = 100

// Service ingests client telemetry. Events are deduplicated by their
// client_event_id; replays acknowledge without a second row.
type Service struct {
	db  *gorm.DB
	now func() time.Time
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db, now: time.Now}
}

// EventInput is one client-side event.
type EventInput struct {
	ClientEventID string         `json:"client_event_id" validate:"required,max=64"`
	Name          string         `json:"name" validate:"required,max=100"`
	Payload       datatypes.JSON `json:"payload,omitempty"`
	OccurredAt    *time.Time     `json:"occurred_at,omitempty"`
}

// Track persists a single event. A replayed client_event_id succeeds
// without writing.
func (s *Service) Track(ctx context.Context, userID, schoolID uint, in EventInput) error {
	if in.ClientEventID == "" || in.Name == "" {
		return apperr.InvalidInput("client_event_id and name are required")
	}

	occurred := s.now()
	if in.OccurredAt != nil {
		occurred = *in.OccurredAt
	}

	evt := model.TelemetryEvent{
		ClientEventID: in.ClientEventID,
		UserID:        userID,
		SchoolID:      schoolID,
		Name:          in.Name,
		Payload:       in.Payload,
		OccurredAt:    occurred,
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "client_event_id"}},
		DoNothing: true,
	}).Create(&evt).Error
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil
		}
		return apperr.TransientStore("telemetry store unavailable", err)
	}
	return nil
}

// FailedEvent carries why one batch member was rejected.
type FailedEvent struct {
	ClientEventID string `json:"client_event_id"`
	Reason        string `json:"reason"`
}

// BatchResult is the partial-success report for a batch.
type BatchResult struct {
	AcknowledgedIDs []string      `json:"acknowledged_ids"`
	FailedEvents    []FailedEvent `json:"failed_events,omitempty"`
}

// Batch ingests up to maxBatchSize events, acknowledging each persisted (or
// already known) id. A batch where the store rejects everything surfaces as
// a transient error so the client keeps its queue.
func (s *Service) Batch(ctx context.Context, userID, schoolID uint, events []EventInput) (*BatchResult, error) {
	if len(events) == 0 {
		return nil, apperr.InvalidInput("events is empty")
	}
	if len(events) > maxBatchSize {
		return nil, apperr.InvalidInput("too many events in one batch")
	}

	res := &BatchResult{}
	storeFailures := 0
	for _, in := range events {
		if in.ClientEventID == "" || in.Name == "" {
			res.FailedEvents = append(res.FailedEvents, FailedEvent{
				ClientEventID: in.ClientEventID,
				Reason:        "client_event_id and name are required",
			})
			continue
		}
		if err := s.Track(ctx, userID, schoolID, in); err != nil {
			if apperr.KindOf(err) == apperr.KindTransientStore {
				storeFailures++
			}
			res.FailedEvents = append(res.FailedEvents, FailedEvent{
				ClientEventID: in.ClientEventID,
				Reason:        "store rejected the event",
			})
			continue
		}
		res.AcknowledgedIDs = append(res.AcknowledgedIDs, in.ClientEventID)
	}

	if storeFailures == len(events) {
		return nil, apperr.TransientStore("telemetry store unavailable", nil)
	}
	return res, nil
}
