package gamification

import (
	"github.com/gofiber/fiber/v2"

	"github.com/djsoulspotti-ops/skajla/model"
	gameng "github.com/djsoulspotti-ops/skajla/services/gamification"
	"github.com/djsoulspotti-ops/skajla/services/leaderboard"
	"github.com/djsoulspotti-ops/skajla/utils/middleware"
	"github.com/djsoulspotti-ops/skajla/utils/response"
	"gorm.io/gorm"
)

// Handler serves profile, leaderboard and challenge endpoints
type Handler struct {
	db     *gorm.DB
	engine *gameng.Engine
	boards *leaderboard.Service
}

// NewHandler creates a new gamification handler
func NewHandler(db *gorm.DB, engine *gameng.Engine, boards *leaderboard.Service) *Handler {
	return &Handler{db: db, engine: engine, boards: boards}
}

func identity(c *fiber.Ctx) (userID, schoolID uint, err error) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return 0, 0, response.Unauthorized(c, "Not authenticated")
	}
	schoolID, ok = c.Locals("school_id").(uint)
	if !ok {
		return 0, 0, response.Unauthorized(c, "Not authenticated")
	}
	return userID, schoolID, nil
}

// ProfileResponse bundles the progression row with its unlocks
type ProfileResponse struct {
	Profile      *model.GamificationProfile `json:"profile"`
	Achievements []model.UserAchievement    `json:"achievements"`
	Badges       []model.UserBadge          `json:"badges"`
}

// Profile returns the caller's progression, achievements and badges
func (h *Handler) Profile(c *fiber.Ctx) error {
	userID, _, err := identity(c)
	if err != nil {
		return err
	}

	profile, err := h.engine.Profile(c.Context(), userID)
	if err != nil {
		return response.FromError(c, err)
	}

	res := ProfileResponse{Profile: profile}
	h.db.Preload("Achievement").Where("user_id = ?", userID).
		Order("unlocked_at DESC").Find(&res.Achievements)
	h.db.Preload("Badge").Where("user_id = ?", userID).
		Order("unlocked_at DESC").Find(&res.Badges)

	return response.Success(c, res)
}

func parsePeriod(c *fiber.Ctx) leaderboard.Period {
	p := leaderboard.Period(c.Query("period", string(leaderboard.PeriodWeekly)))
	switch p {
	case leaderboard.PeriodDaily, leaderboard.PeriodWeekly, leaderboard.PeriodMonthly,
		leaderboard.PeriodSeasonal, leaderboard.PeriodLifetime:
		return p
	}
	return leaderboard.PeriodWeekly
}

// Leaderboard returns the school ranking for a period
func (h *Handler) Leaderboard(c *fiber.Ctx) error {
	_, schoolID, err := identity(c)
	if err != nil {
		return err
	}

	entries, err := h.boards.Board(c.Context(), schoolID, parsePeriod(c), c.QueryInt("limit", 50))
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, entries)
}

// SmartLeaderboard returns the podium plus the caller's neighborhood
func (h *Handler) SmartLeaderboard(c *fiber.Ctx) error {
	userID, schoolID, err := identity(c)
	if err != nil {
		return err
	}

	view, err := h.boards.Smart(c.Context(), schoolID, userID, parsePeriod(c))
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, view)
}

// Challenges lists live challenges with the caller's progress
func (h *Handler) Challenges(c *fiber.Ctx) error {
	userID, _, err := identity(c)
	if err != nil {
		return err
	}

	list, err := h.engine.ActiveChallenges(c.Context(), userID)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, list)
}

// BuyWeekendPass spends coins on streak protection for the coming weekends
func (h *Handler) BuyWeekendPass(c *fiber.Ctx) error {
	userID, _, err := identity(c)
	if err != nil {
		return err
	}

	profile, err := h.engine.ActivateWeekendPass(c.Context(), userID)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, profile)
}
