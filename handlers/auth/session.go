package auth

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"

	authutil "github.com/djsoulspotti-ops/skajla/utils/auth"
	"github.com/djsoulspotti-ops/skajla/utils/middleware"
	"github.com/djsoulspotti-ops/skajla/utils/response"
)

// dailyLoginKey dedups the daily-login award to once per calendar day.
func dailyLoginKey(userID uint) *string {
	k := fmt.Sprintf("login:%d:%s", userID, time.Now().Format("2006-01-02"))
	return &k
}

// Logout revokes the current session token
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	token, ok := c.Locals("token").(string)
	if !ok || token == "" {
		return response.Unauthorized(c, "Not authenticated")
	}
	jti, _ := c.Locals("token_jti").(string)
	userID, _ := middleware.GetUserID(c)

	expiry, err := h.jwtManager.GetTokenExpiry(token)
	if err != nil {
		expiry = time.Now().Add(authutil.RememberMeExpiry)
	}

	if err := h.blacklist.RevokeToken(c.Context(), jti, userID, expiry, "logout"); err != nil {
		return response.ServiceUnavailable(c, "Logout temporarily unavailable")
	}
	return response.SuccessWithMessage(c, "Logged out", nil)
}

// Me returns the authenticated user
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok {
		return response.Unauthorized(c, "Not authenticated")
	}
	return response.Success(c, toUserResponse(user))
}
