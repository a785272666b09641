package timer

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/djsoulspotti-ops/skajla/model"
	"github.com/djsoulspotti-ops/skajla/services/studytimer"
	"github.com/djsoulspotti-ops/skajla/utils/middleware"
	"github.com/djsoulspotti-ops/skajla/utils/response"
)

// Handler serves the study-timer endpoints
type Handler struct {
	db    *gorm.DB
	timer *studytimer.Service
}

// NewHandler creates a new timer handler
func NewHandler(db *gorm.DB, timer *studytimer.Service) *Handler {
	return &Handler{db: db, timer: timer}
}

func userID(c *fiber.Ctx) (uint, error) {
	id, ok := middleware.GetUserID(c)
	if !ok {
		return 0, response.Unauthorized(c, "Not authenticated")
	}
	return id, nil
}

// StartRequest opens a session
type StartRequest struct {
	Kind    model.StudySessionKind `json:"kind" validate:"required"`
	Subject string                 `json:"subject,omitempty" validate:"max=100"`
}

// Start opens a new study session
func (h *Handler) Start(c *fiber.Ctx) error {
	uid, err := userID(c)
	if err != nil {
		return err
	}

	var req StartRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	sess, err := h.timer.Start(c.Context(), uid, req.Kind, req.Subject)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Created(c, sess)
}

// Stop closes the running session and pays XP
func (h *Handler) Stop(c *fiber.Ctx) error {
	uid, err := userID(c)
	if err != nil {
		return err
	}
	sess, err := h.timer.Stop(c.Context(), uid)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, sess)
}

// Pause stops the clock
func (h *Handler) Pause(c *fiber.Ctx) error {
	uid, err := userID(c)
	if err != nil {
		return err
	}
	sess, err := h.timer.Pause(c.Context(), uid)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, sess)
}

// Resume restarts a paused session
func (h *Handler) Resume(c *fiber.Ctx) error {
	uid, err := userID(c)
	if err != nil {
		return err
	}
	sess, err := h.timer.Resume(c.Context(), uid)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, sess)
}

// Active returns the running session, if any
func (h *Handler) Active(c *fiber.Ctx) error {
	uid, err := userID(c)
	if err != nil {
		return err
	}
	sess, err := h.timer.Current(c.Context(), uid)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, sess)
}

// History lists recent completed sessions
func (h *Handler) History(c *fiber.Ctx) error {
	uid, err := userID(c)
	if err != nil {
		return err
	}

	var sessions []model.StudySession
	if err := h.db.
		Where("user_id = ? AND status = ?", uid, model.StudyCompleted).
		Order("ended_at DESC").Limit(50).Find(&sessions).Error; err != nil {
		return response.ServiceUnavailable(c, "History temporarily unavailable")
	}
	return response.Success(c, sessions)
}

// StatsResponse aggregates completed sessions
type StatsResponse struct {
	TotalSessions int64 `json:"total_sessions"`
	TotalMinutes  int64 `json:"total_minutes"`
	TotalXP       int64 `json:"total_xp"`
}

// Stats returns study totals for the caller
func (h *Handler) Stats(c *fiber.Ctx) error {
	uid, err := userID(c)
	if err != nil {
		return err
	}

	var stats StatsResponse
	row := h.db.Model(&model.StudySession{}).
		Select("COUNT(*) AS total_sessions, COALESCE(SUM(EXTRACT(EPOCH FROM (ended_at - started_at)) / 60 - paused_seconds / 60), 0)::bigint AS total_minutes, COALESCE(SUM(xp_earned), 0) AS total_xp").
		Where("user_id = ? AND status = ?", uid, model.StudyCompleted).
		Scan(&stats)
	if row.Error != nil {
		return response.ServiceUnavailable(c, "Stats temporarily unavailable")
	}
	return response.Success(c, stats)
}

// Types lists the supported session kinds
func (h *Handler) Types(c *fiber.Ctx) error {
	return response.Success(c, []model.StudySessionKind{
		model.StudyFocus, model.StudyPomodoro, model.StudyDeep, model.StudyReview,
	})
}
