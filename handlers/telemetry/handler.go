package telemetry

import (
	"github.com/gofiber/fiber/v2"

	"github.com/djsoulspotti-ops/skajla/services/telemetry"
	"github.com/djsoulspotti-ops/skajla/utils/middleware"
	"github.com/djsoulspotti-ops/skajla/utils/response"
)

// Handler ingests client telemetry
type Handler struct {
	svc *telemetry.Service
}

// NewHandler creates a new telemetry handler
func NewHandler(svc *telemetry.Service) *Handler {
	return &Handler{svc: svc}
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

// Track ingests one event
func (h *Handler) Track(c *fiber.Ctx) error {
	userID, schoolID, err := identity(c)
	if err != nil {
		return err
	}

	var req telemetry.EventInput
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	if err := h.svc.Track(c.Context(), userID, schoolID, req); err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, fiber.Map{"acknowledged": req.ClientEventID})
}

// BatchRequest wraps a batch of events
type BatchRequest struct {
	Events []telemetry.EventInput `json:"events" validate:"required,max=100"`
}

// Batch ingests up to 100 events with per-event acknowledgement
func (h *Handler) Batch(c *fiber.Ctx) error {
	userID, schoolID, err := identity(c)
	if err != nil {
		return err
	}

	var req BatchRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	res, err := h.svc.Batch(c.Context(), userID, schoolID, req.Events)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, res)
}
