package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/djsoulspotti-ops/skajla/model"
	"github.com/djsoulspotti-ops/skajla/services/gamification"
	"github.com/djsoulspotti-ops/skajla/services/school"
	authutil "github.com/djsoulspotti-ops/skajla/utils/auth"
	"github.com/djsoulspotti-ops/skajla/utils/middleware"
	"github.com/djsoulspotti-ops/skajla/utils/response"
	"github.com/djsoulspotti-ops/skajla/utils/validation"
)

// AuthHandler handles authentication-related requests
type AuthHandler struct {
	db         *gorm.DB
	jwtManager *authutil.JWTManager
	blacklist  *authutil.BlacklistService
	lockout    *middleware.LoginLockout
	schools    *school.Service
	engine     *gamification.Engine
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(db *gorm.DB, jwtManager *authutil.JWTManager, blacklist *authutil.BlacklistService, lockout *middleware.LoginLockout, schools *school.Service, engine *gamification.Engine) *AuthHandler {
	return &AuthHandler{
		db:         db,
		jwtManager: jwtManager,
		blacklist:  blacklist,
		lockout:    lockout,
		schools:    schools,
		engine:     engine,
	}
}

// RegisterRequest represents a user registration request. A school_code joins
// an existing school; an invite_code materializes a new one and makes the
// registrant its director.
type RegisterRequest struct {
	Username   string `json:"username" validate:"required,min=3,max=30"`
	Email      string `json:"email" validate:"required,email"`
	Password   string `json:"password" validate:"required,min=8"`
	FirstName  string `json:"nome" validate:"required,max=100"`
	LastName   string `json:"cognome" validate:"required,max=100"`
	Role       string `json:"role" validate:"required"`
	ClassID    *uint  `json:"class_id,omitempty"`
	SchoolCode string `json:"school_code,omitempty"`
	InviteCode string `json:"invite_code,omitempty"`
}

// UserResponse is the user shape returned by auth endpoints
type UserResponse struct {
	ID        uint      `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	FirstName string    `json:"nome"`
	LastName  string    `json:"cognome"`
	Role      string    `json:"role"`
	SchoolID  uint      `json:"school_id"`
	ClassID   *uint     `json:"class_id,omitempty"`
	Active    bool      `json:"attivo"`
	CreatedAt time.Time `json:"created_at"`
}

func toUserResponse(u *model.User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Role:      u.Role,
		SchoolID:  u.SchoolID,
		ClassID:   u.ClassID,
		Active:    u.Active,
		CreatedAt: u.CreatedAt,
	}
}

func validRole(role string) bool {
	switch role {
	case model.RoleStudent, model.RoleTeacher, model.RoleDirector, model.RoleParent:
		return true
	}
	return false
}

// Register creates a new account
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Username = strings.TrimSpace(req.Username)
	req.FirstName = validation.SanitizeString(req.FirstName)
	req.LastName = validation.SanitizeString(req.LastName)

	if !validation.ValidateEmail(req.Email) {
		return response.BadRequest(c, "Invalid email address")
	}
	if ok, msg := validation.ValidateUsername(req.Username); !ok {
		return response.BadRequest(c, msg)
	}
	if ok, problems := validation.ValidatePassword(req.Password); !ok {
		return response.BadRequest(c, strings.Join(problems, "; "))
	}
	if req.FirstName == "" || req.LastName == "" {
		return response.BadRequest(c, "First and last name are required")
	}
	if !validRole(req.Role) {
		return response.BadRequest(c, "Invalid role")
	}

	// Resolve the tenant before touching the users table.
	var schoolID uint
	switch {
	case req.InviteCode != "":
		if req.Role != model.RoleDirector {
			return response.BadRequest(c, "Invite codes are reserved for director registration")
		}
		s, err := h.schools.MaterializeFromInvite(c.Context(), req.InviteCode)
		if err != nil {
			return response.FromError(c, err)
		}
		schoolID = s.ID
	case req.SchoolCode != "":
		s, err := h.schools.ByCode(c.Context(), req.SchoolCode)
		if err != nil {
			return response.FromError(c, err)
		}
		schoolID = s.ID
	default:
		return response.BadRequest(c, "A school code or invite code is required")
	}

	if req.ClassID != nil {
		var count int64
		if err := h.db.Model(&model.Class{}).
			Where("id = ? AND school_id = ?", *req.ClassID, schoolID).
			Count(&count).Error; err != nil || count == 0 {
			return response.BadRequest(c, "Unknown class for this school")
		}
	}

	var existing int64
	if err := h.db.Model(&model.User{}).
		Where("email = ? OR username = ?", req.Email, req.Username).
		Count(&existing).Error; err != nil {
		return response.ServiceUnavailable(c, "Registration temporarily unavailable")
	}
	if existing > 0 {
		return response.Conflict(c, "Email or username already registered")
	}

	hash, err := authutil.HashPassword(req.Password)
	if err != nil {
		return response.InternalServerError(c, "Failed to process password")
	}

	user := model.User{
		SchoolID:     schoolID,
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hash,
		PasswordAlgo: authutil.AlgoBcrypt,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Role:         req.Role,
		ClassID:      req.ClassID,
		Active:       true,
	}
	if err := h.db.Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return response.Conflict(c, "Email or username already registered")
		}
		return response.ServiceUnavailable(c, "Registration temporarily unavailable")
	}

	return response.Created(c, toUserResponse(&user))
}
