package model

import (
	"time"

	"gorm.io/datatypes"
)

// TelemetryEvent is a client-reported event. ClientEventID is the client's
// outbox key: the unique index makes re-delivery idempotent, and the batch
// endpoint acknowledges exactly the ids that were persisted.
type TelemetryEvent struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	CreatedAt     time.Time      `json:"created_at"`
	ClientEventID string         `gorm:"type:varchar(64);uniqueIndex;not null" json:"client_event_id"`
	UserID        uint           `gorm:"not null;index" json:"user_id"`
	SchoolID      uint           `gorm:"not null;index" json:"school_id"`
	Name          string         `gorm:"type:varchar(100);not null;index" json:"name"`
	Payload       datatypes.JSON `gorm:"type:jsonb;default:'{}'" json:"payload,omitempty"`
	OccurredAt    time.Time      `gorm:"not null" json:"occurred_at"`

	User User `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
}

func (TelemetryEvent) TableName() string {
	return "telemetry_events"
}
