package ws

import (
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/djsoulspotti-ops/skajla/model"
	"github.com/djsoulspotti-ops/skajla/services/realtime"
	authutil "github.com/djsoulspotti-ops/skajla/utils/auth"
	"github.com/djsoulspotti-ops/skajla/utils/response"
)

// Handler upgrades authenticated clients onto the event transport. Browsers
// cannot set headers on websocket dials, so the handshake token rides the
// query string.
type Handler struct {
	db         *gorm.DB
	jwtManager *authutil.JWTManager
	blacklist  *authutil.BlacklistService
	dispatcher *realtime.Dispatcher
}

// NewHandler creates a new websocket handler
func NewHandler(db *gorm.DB, jwtManager *authutil.JWTManager, blacklist *authutil.BlacklistService, dispatcher *realtime.Dispatcher) *Handler {
	return &Handler{db: db, jwtManager: jwtManager, blacklist: blacklist, dispatcher: dispatcher}
}

// Upgrade authenticates the handshake and stashes the identity for the
// websocket goroutine.
func (h *Handler) Upgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return response.BadRequest(c, "Websocket upgrade required")
	}

	token := c.Query("token")
	if token == "" {
		return response.Unauthorized(c, "Missing handshake token")
	}

	claims, err := h.jwtManager.ValidateToken(token)
	if err != nil {
		return response.Unauthorized(c, "Invalid handshake token")
	}
	revoked, err := h.blacklist.IsTokenRevoked(c.Context(), claims.ID)
	if err != nil {
		return response.ServiceUnavailable(c, "Failed to check token status")
	}
	if revoked {
		return response.Unauthorized(c, "Token has been revoked")
	}

	var user model.User
	if err := h.db.First(&user, claims.UserID).Error; err != nil || !user.Active {
		return response.Unauthorized(c, "Account unavailable")
	}

	c.Locals("ws_user_id", user.ID)
	c.Locals("ws_school_id", user.SchoolID)
	c.Locals("ws_role", user.Role)
	c.Locals("ws_class_id", user.ClassID)
	return c.Next()
}

// Serve runs the connection until the peer disconnects.
func (h *Handler) Serve() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		userID, _ := conn.Locals("ws_user_id").(uint)
		schoolID, _ := conn.Locals("ws_school_id").(uint)
		role, _ := conn.Locals("ws_role").(string)
		classID, _ := conn.Locals("ws_class_id").(*uint)
		if userID == 0 || schoolID == 0 {
			_ = conn.Close()
			return
		}
		h.dispatcher.ServeConn(conn, userID, schoolID, role, classID)
	})
}
