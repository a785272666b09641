package notification

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/djsoulspotti-ops/skajla/services/notification"
	"github.com/djsoulspotti-ops/skajla/utils/middleware"
	"github.com/djsoulspotti-ops/skajla/utils/response"
)

// NotificationHandler handles notification-related API endpoints
type NotificationHandler struct {
	svc *notification.Service
}

// NewNotificationHandler creates a new notification handler
func NewNotificationHandler(svc *notification.Service) *NotificationHandler {
	return &NotificationHandler{svc: svc}
}

// GetNotifications returns the authenticated user's feed
func (h *NotificationHandler) GetNotifications(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok || user == nil {
		return response.Unauthorized(c, "User not authenticated")
	}

	limit, _ := strconv.Atoi(c.Query("limit", "50"))
	offset, _ := strconv.Atoi(c.Query("offset", "0"))

	rows, total, err := h.svc.List(c.Context(), notification.ListOptions{
		UserID:     user.ID,
		UnreadOnly: c.Query("unread_only") == "true",
		Category:   c.Query("category"),
		Limit:      limit,
		Offset:     offset,
	})
	if err != nil {
		return response.FromError(c, err)
	}

	unread, _ := h.svc.UnreadCount(c.Context(), user.ID)

	return response.Success(c, fiber.Map{
		"notifications": rows,
		"total":         total,
		"unread_count":  unread,
		"limit":         limit,
		"offset":        offset,
	})
}

// GetUnreadCount returns the unread counter
func (h *NotificationHandler) GetUnreadCount(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok || user == nil {
		return response.Unauthorized(c, "User not authenticated")
	}

	count, err := h.svc.UnreadCount(c.Context(), user.ID)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, fiber.Map{"unread_count": count})
}

func notificationID(c *fiber.Ctx) (uint, error) {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil || id == 0 {
		return 0, response.BadRequest(c, "Invalid notification id")
	}
	return uint(id), nil
}

// MarkRead marks one notification read
func (h *NotificationHandler) MarkRead(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok || user == nil {
		return response.Unauthorized(c, "User not authenticated")
	}
	id, err := notificationID(c)
	if err != nil {
		return err
	}

	if err := h.svc.MarkRead(c.Context(), user.ID, id); err != nil {
		return response.FromError(c, err)
	}
	return response.SuccessWithMessage(c, "Marked as read", nil)
}

// MarkAllRead marks the whole feed read
func (h *NotificationHandler) MarkAllRead(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok || user == nil {
		return response.Unauthorized(c, "User not authenticated")
	}

	updated, err := h.svc.MarkAllRead(c.Context(), user.ID)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, fiber.Map{"updated": updated})
}

// Delete removes one notification
func (h *NotificationHandler) Delete(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok || user == nil {
		return response.Unauthorized(c, "User not authenticated")
	}
	id, err := notificationID(c)
	if err != nil {
		return err
	}

	if err := h.svc.Delete(c.Context(), user.ID, id); err != nil {
		return response.FromError(c, err)
	}
	return response.SuccessWithMessage(c, "Deleted", nil)
}
