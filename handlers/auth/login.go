package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/djsoulspotti-ops/skajla/model"
	"github.com/djsoulspotti-ops/skajla/services/gamification"
	authutil "github.com/djsoulspotti-ops/skajla/utils/auth"
	"github.com/djsoulspotti-ops/skajla/utils/response"
)

// LoginRequest represents a user login request
type LoginRequest struct {
	Email      string `json:"email" validate:"required,email"`
	Password   string `json:"password" validate:"required"`
	RememberMe bool   `json:"remember_me"`
}

// LoginResponse represents a successful login response
type LoginResponse struct {
	User        UserResponse `json:"user"`
	AccessToken string       `json:"access_token"`
	ExpiresIn   int          `json:"expires_in"` // in seconds
	XPEarned    int64        `json:"xp_earned,omitempty"`
}

// Login handles user login. Unknown email and wrong password answer
// identically, and both feed the per-email lockout bucket.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if req.Email == "" || req.Password == "" {
		return response.BadRequest(c, "Email and password are required")
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	ctx := c.Context()
	if locked := h.lockout.LockedFor(ctx, req.Email); locked > 0 {
		return response.Locked(c, "Too many failed attempts, try again later", int(locked.Seconds()))
	}

	var user model.User
	if err := h.db.Where("email = ? AND active = ?", req.Email, true).First(&user).Error; err != nil {
		h.lockout.RecordFailure(ctx, req.Email)
		return response.Unauthorized(c, "Invalid email or password")
	}

	needsRehash, err := authutil.VerifyPassword(user.PasswordHash, req.Password)
	if err != nil {
		h.lockout.RecordFailure(ctx, req.Email)
		return response.Unauthorized(c, "Invalid email or password")
	}
	h.lockout.RecordSuccess(ctx, req.Email)

	// A legacy hash that just verified gets upgraded in place.
	if needsRehash {
		if newHash, herr := authutil.HashPassword(req.Password); herr == nil {
			h.db.Model(&model.User{}).Where("id = ?", user.ID).Updates(map[string]interface{}{
				"password_hash": newHash,
				"password_algo": authutil.AlgoBcrypt,
			})
		}
	}

	token, _, err := h.jwtManager.GenerateSessionToken(user.ID, user.SchoolID, user.Role, user.ClassID, req.RememberMe)
	if err != nil {
		return response.InternalServerError(c, "Failed to establish session")
	}

	expiresIn := int(authutil.SessionExpiry.Seconds())
	if req.RememberMe {
		expiresIn = int(authutil.RememberMeExpiry.Seconds())
	}

	res := LoginResponse{
		User:        toUserResponse(&user),
		AccessToken: token,
		ExpiresIn:   expiresIn,
	}

	// First login of the day moves the streak and pays daily XP.
	if outcome, aerr := h.engine.Award(ctx, user.ID, gamification.ActionLoginDaily, 1.0, "accesso giornaliero", dailyLoginKey(user.ID)); aerr == nil && !outcome.Deduplicated {
		res.XPEarned = outcome.XPEarned
	}

	return response.Success(c, res)
}
