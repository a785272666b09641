package model

import (
	"time"

	"gorm.io/gorm"
)

// StudySessionKind enumerates timer flavours.
type StudySessionKind string

const (
	StudyFocus    StudySessionKind = "focus"
	StudyPomodoro StudySessionKind = "pomodoro"
	StudyDeep     StudySessionKind = "deep"
	StudyReview   StudySessionKind = "review"
)

// StudySessionStatus values.
type StudySessionStatus string

const (
	StudyActive    StudySessionStatus = "active"
	StudyPaused    StudySessionStatus = "paused"
	StudyCompleted StudySessionStatus = "completed"
)

// StudySession is a timed study block. At most one non-completed session
// exists per user; the service enforces it before insert.
type StudySession struct {
	ID            uint               `gorm:"primaryKey" json:"id"`
	CreatedAt     time.Time          `json:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at"`
	DeletedAt     gorm.DeletedAt     `gorm:"index" json:"-"`
	UserID        uint               `gorm:"not null;index" json:"user_id"`
	Subject       string             `gorm:"type:varchar(100)" json:"subject,omitempty"`
	Kind          StudySessionKind   `gorm:"type:varchar(20);not null" json:"kind"`
	Status        StudySessionStatus `gorm:"type:varchar(20);not null;index" json:"status"`
	StartedAt     time.Time          `gorm:"not null" json:"started_at"`
	EndedAt       *time.Time         `json:"ended_at,omitempty"`
	PausedAt      *time.Time         `json:"paused_at,omitempty"`
	PausedSeconds int64              `gorm:"default:0" json:"paused_seconds"`
	XPEarned      int64              `gorm:"default:0" json:"xp_earned"`

	User User `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
}

func (StudySession) TableName() string {
	return "study_sessions"
}

// StudiedMinutes returns the elapsed study time net of pauses.
func (s *StudySession) StudiedMinutes(now time.Time) int64 {
	end := now
	if s.EndedAt != nil {
		end = *s.EndedAt
	}
	paused := s.PausedSeconds
	if s.PausedAt != nil {
		paused += int64(end.Sub(*s.PausedAt).Seconds())
	}
	elapsed := int64(end.Sub(s.StartedAt).Seconds()) - paused
	if elapsed < 0 {
		elapsed = 0
	}
	return elapsed / 60
}
