package chat

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/djsoulspotti-ops/skajla/services/messaging"
	"github.com/djsoulspotti-ops/skajla/services/tenantguard"
	"github.com/djsoulspotti-ops/skajla/utils/middleware"
	"github.com/djsoulspotti-ops/skajla/utils/response"
)

// ChatHandler serves the conversation list and message history
type ChatHandler struct {
	messaging *messaging.Service
	guard     *tenantguard.Guard
}

// NewChatHandler creates a new chat handler
func NewChatHandler(msg *messaging.Service, guard *tenantguard.Guard) *ChatHandler {
	return &ChatHandler{messaging: msg, guard: guard}
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

// Conversations lists the caller's chats, newest activity first
func (h *ChatHandler) Conversations(c *fiber.Ctx) error {
	userID, schoolID, err := identity(c)
	if err != nil {
		return err
	}

	list, err := h.messaging.Conversations(c.Context(), userID, schoolID)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, list)
}

// Messages returns the last page of a conversation's history
func (h *ChatHandler) Messages(c *fiber.Ctx) error {
	userID, schoolID, err := identity(c)
	if err != nil {
		return err
	}

	chatID, err := strconv.ParseUint(c.Params("chat_id"), 10, 32)
	if err != nil || chatID == 0 {
		return response.BadRequest(c, "Invalid chat id")
	}
	beforeID, _ := strconv.ParseUint(c.Query("before_id", "0"), 10, 32)

	if err := h.guard.RequireChatInTenant(c.Context(), uint(chatID), schoolID); err != nil {
		return response.FromError(c, err)
	}

	msgs, err := h.messaging.History(c.Context(), uint(chatID), userID, uint(beforeID))
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, msgs)
}

// OpenPrivateRequest starts a direct conversation
type OpenPrivateRequest struct {
	PeerID uint `json:"peer_id" validate:"required"`
}

// OpenPrivate finds or creates the 1:1 chat with another user
func (h *ChatHandler) OpenPrivate(c *fiber.Ctx) error {
	userID, schoolID, err := identity(c)
	if err != nil {
		return err
	}

	var req OpenPrivateRequest
	if err := c.BodyParser(&req); err != nil || req.PeerID == 0 {
		return response.BadRequest(c, "peer_id is required")
	}

	chat, err := h.messaging.OpenPrivate(c.Context(), schoolID, userID, req.PeerID)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, chat)
}
