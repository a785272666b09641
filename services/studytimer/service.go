package studytimer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/djsoulspotti-ops/skajla/model"
	"github.com/djsoulspotti-ops/skajla/services/gamification"
	"github.com/djsoulspotti-ops/skajla/utils/apperr"
)

// maxCreditedMinutes caps the XP credit of one session so a timer left
// running overnight does not mint a week of XP.
const maxCreditedMinutes = 240

// Service runs the study timer. One non-completed session per user.
type Service struct {
	db     *gorm.DB
	engine *gamification.Engine
	now    func() time.Time
}

func NewService(db *gorm.DB, engine *gamification.Engine) *Service {
	return &Service{db: db, engine: engine, now: time.Now}
}

func validKind(k model.StudySessionKind) bool {
	switch k {
	case model.StudyFocus, model.StudyPomodoro, model.StudyDeep, model.StudyReview:
		return true
	}
	return false
}

// Start opens a session. Fails when another one is still open.
func (s *Service) Start(ctx context.Context, userID uint, kind model.StudySessionKind, subject string) (*model.StudySession, error) {
	if !validKind(kind) {
		return nil, apperr.InvalidInput("unknown session kind")
	}

	var open int64
	if err := s.db.WithContext(ctx).Model(&model.StudySession{}).
		Where("user_id = ? AND status <> ?", userID, model.StudyCompleted).
		Count(&open).Error; err != nil {
		return nil, apperr.TransientStore("session lookup failed", err)
	}
	if open > 0 {
		return nil, apperr.Duplicate("a session is already running")
	}

	sess := model.StudySession{
		UserID:    userID,
		Subject:   subject,
		Kind:      kind,
		Status:    model.StudyActive,
		StartedAt: s.now(),
	}
	if err := s.db.WithContext(ctx).Create(&sess).Error; err != nil {
		return nil, apperr.TransientStore("session create failed", err)
	}
	return &sess, nil
}

func (s *Service) open(ctx context.Context, tx *gorm.DB, userID uint) (*model.StudySession, error) {
	var sess model.StudySession
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ? AND status <> ?", userID, model.StudyCompleted).
		First(&sess).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("no running session")
	}
	if err != nil {
		return nil, apperr.TransientStore("session lookup failed", err)
	}
	return &sess, nil
}

// Pause stops the clock without closing the session.
func (s *Service) Pause(ctx context.Context, userID uint) (*model.StudySession, error) {
	var out *model.StudySession
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sess, err := s.open(ctx, tx, userID)
		if err != nil {
			return err
		}
		if sess.Status == model.StudyPaused {
			return apperr.InvalidInput("session is already paused")
		}
		now := s.now()
		sess.Status = model.StudyPaused
		sess.PausedAt = &now
		out = sess
		return tx.Save(sess).Error
	})
	if err != nil {
		return nil, asAppErr(err, "pause failed")
	}
	return out, nil
}

// Resume restarts a paused session, banking the paused interval.
func (s *Service) Resume(ctx context.Context, userID uint) (*model.StudySession, error) {
	var out *model.StudySession
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sess, err := s.open(ctx, tx, userID)
		if err != nil {
			return err
		}
		if sess.Status != model.StudyPaused || sess.PausedAt == nil {
			return apperr.InvalidInput("session is not paused")
		}
		sess.PausedSeconds += int64(s.now().Sub(*sess.PausedAt).Seconds())
		sess.PausedAt = nil
		sess.Status = model.StudyActive
		out = sess
		return tx.Save(sess).Error
	})
	if err != nil {
		return nil, asAppErr(err, "resume failed")
	}
	return out, nil
}

// Stop closes the session and awards XP by net minutes studied.
func (s *Service) Stop(ctx context.Context, userID uint) (*model.StudySession, error) {
	var out *model.StudySession
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sess, err := s.open(ctx, tx, userID)
		if err != nil {
			return err
		}
		now := s.now()
		if sess.PausedAt != nil {
			sess.PausedSeconds += int64(now.Sub(*sess.PausedAt).Seconds())
			sess.PausedAt = nil
		}
		sess.EndedAt = &now
		sess.Status = model.StudyCompleted
		out = sess
		return tx.Save(sess).Error
	})
	if err != nil {
		return nil, asAppErr(err, "stop failed")
	}

	minutes := out.StudiedMinutes(s.now())
	if minutes > maxCreditedMinutes {
		minutes = maxCreditedMinutes
	}
	if minutes > 0 {
		dedup := fmt.Sprintf("study:%d:%d", userID, out.ID)
		outcome, err := s.engine.Award(ctx, userID, gamification.ActionStudySession,
			float64(minutes), fmt.Sprintf("%d minuti di studio", minutes), &dedup)
		if err == nil {
			out.XPEarned = outcome.XPEarned
			s.db.WithContext(ctx).Model(&model.StudySession{}).
				Where("id = ?", out.ID).Update("xp_earned", outcome.XPEarned)
		}
	}
	return out, nil
}

// Current returns the open session, if any.
func (s *Service) Current(ctx context.Context, userID uint) (*model.StudySession, error) {
	var sess model.StudySession
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND status <> ?", userID, model.StudyCompleted).
		First(&sess).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("no running session")
	}
	if err != nil {
		return nil, apperr.TransientStore("session lookup failed", err)
	}
	return &sess, nil
}

func asAppErr(err error, fallback string) error {
	if ae := apperr.As(err); ae != nil {
		return ae
	}
	return apperr.TransientStore(fallback, err)
}
