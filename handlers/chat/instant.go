package chat

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/djsoulspotti-ops/skajla/services/groups"
	"github.com/djsoulspotti-ops/skajla/utils/response"
)

// InstantHandler serves the instant study-group endpoints
type InstantHandler struct {
	groups *groups.Service
}

// NewInstantHandler creates a new instant-group handler
func NewInstantHandler(grp *groups.Service) *InstantHandler {
	return &InstantHandler{groups: grp}
}

// Create opens a new instant group
func (h *InstantHandler) Create(c *fiber.Ctx) error {
	userID, schoolID, err := identity(c)
	if err != nil {
		return err
	}

	var req groups.CreateInput
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	chat, err := h.groups.Create(c.Context(), userID, schoolID, req)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Created(c, chat)
}

// List returns live public groups, optionally filtered by topic
func (h *InstantHandler) List(c *fiber.Ctx) error {
	_, schoolID, err := identity(c)
	if err != nil {
		return err
	}

	list, err := h.groups.Discover(c.Context(), schoolID, c.Query("topic"))
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, list)
}

func groupID(c *fiber.Ctx) (uint, error) {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil || id == 0 {
		return 0, response.BadRequest(c, "Invalid group id")
	}
	return uint(id), nil
}

// Join adds the caller to a group
func (h *InstantHandler) Join(c *fiber.Ctx) error {
	userID, schoolID, err := identity(c)
	if err != nil {
		return err
	}
	id, err := groupID(c)
	if err != nil {
		return err
	}

	if err := h.groups.Join(c.Context(), id, userID, schoolID); err != nil {
		return response.FromError(c, err)
	}
	return response.SuccessWithMessage(c, "Joined", nil)
}

// Leave removes the caller from a group
func (h *InstantHandler) Leave(c *fiber.Ctx) error {
	userID, schoolID, err := identity(c)
	if err != nil {
		return err
	}
	id, err := groupID(c)
	if err != nil {
		return err
	}

	if err := h.groups.Leave(c.Context(), id, userID, schoolID); err != nil {
		return response.FromError(c, err)
	}
	return response.SuccessWithMessage(c, "Left", nil)
}

// Delete tears a group down (creator only)
func (h *InstantHandler) Delete(c *fiber.Ctx) error {
	userID, schoolID, err := identity(c)
	if err != nil {
		return err
	}
	id, err := groupID(c)
	if err != nil {
		return err
	}

	if err := h.groups.Delete(c.Context(), id, userID, schoolID); err != nil {
		return response.FromError(c, err)
	}
	return response.SuccessWithMessage(c, "Deleted", nil)
}
