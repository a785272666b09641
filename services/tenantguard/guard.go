package tenantguard

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/djsoulspotti-ops/skajla/model"
	"github.com/djsoulspotti-ops/skajla/utils/apperr"
	"github.com/djsoulspotti-ops/skajla/utils/logging"
	"github.com/djsoulspotti-ops/skajla/utils/metrics"
)

// Guard is the single choke point for tenant isolation. Every repository
// read of tenant-scoped rows goes through Scope; every cross-entity access
// is checked with a Require* call first. A violation is never handled soft:
// it logs at error severity with full context and surfaces as 403.
type Guard struct {
	db  *gorm.DB
	log *logging.Log
}

// New creates a tenant guard
func New(db *gorm.DB, log *logging.Log) *Guard {
	return &Guard{db: db, log: log}
}

// CurrentTenant reads the school id pinned by the auth middleware.
func CurrentTenant(c *fiber.Ctx) (uint, error) {
	v := c.Locals("school_id")
	if v == nil {
		return 0, apperr.New(apperr.KindAuthFailure, "AUTH_CONTEXT_MISSING", "no identity attached to request")
	}
	id, ok := v.(uint)
	if !ok || id == 0 {
		return 0, apperr.New(apperr.KindAuthFailure, "AUTH_CONTEXT_MISSING", "no identity attached to request")
	}
	return id, nil
}

// Scope returns a GORM scope restricting a query to one tenant's rows.
func Scope(schoolID uint) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("school_id = ?", schoolID)
	}
}

// RequireChatInTenant fails with a tenant violation unless the chat belongs
// to the school.
func (g *Guard) RequireChatInTenant(ctx context.Context, chatID, schoolID uint) error {
	var count int64
	err := g.db.WithContext(ctx).
		Model(&model.Chat{}).
		Where("id = ? AND school_id = ?", chatID, schoolID).
		Count(&count).Error
	if err != nil {
		return apperr.TransientStore("failed to check chat tenant", err)
	}
	if count == 0 {
		return g.violation(ctx, "chat", chatID, schoolID)
	}
	return nil
}

// RequireUserInTenant fails with a tenant violation unless the user belongs
// to the school.
func (g *Guard) RequireUserInTenant(ctx context.Context, userID, schoolID uint) error {
	var count int64
	err := g.db.WithContext(ctx).
		Model(&model.User{}).
		Where("id = ? AND school_id = ?", userID, schoolID).
		Count(&count).Error
	if err != nil {
		return apperr.TransientStore("failed to check user tenant", err)
	}
	if count == 0 {
		return g.violation(ctx, "user", userID, schoolID)
	}
	return nil
}

// RequireClassInTenant fails with a tenant violation unless the class belongs
// to the school.
func (g *Guard) RequireClassInTenant(ctx context.Context, classID, schoolID uint) error {
	var count int64
	err := g.db.WithContext(ctx).
		Model(&model.Class{}).
		Where("id = ? AND school_id = ?", classID, schoolID).
		Count(&count).Error
	if err != nil {
		return apperr.TransientStore("failed to check class tenant", err)
	}
	if count == 0 {
		return g.violation(ctx, "class", classID, schoolID)
	}
	return nil
}

func (g *Guard) violation(ctx context.Context, resource string, resourceID, sessionTenant uint) error {
	metrics.TenantViolations.Inc()
	g.log.Base.Error("tenant violation",
		zap.String("resource", resource),
		zap.Uint("resource_id", resourceID),
		zap.Uint("session_tenant", sessionTenant),
		zap.Uint("user_id", userIDFrom(ctx)),
		zap.String("path", pathFrom(ctx)),
	)
	return apperr.TenantViolation("access outside your school is not permitted")
}

type ctxKey string

const (
	// CtxUserID and CtxPath enrich violation logs when set by callers.
	CtxUserID ctxKey = "tenantguard.user_id"
	CtxPath   ctxKey = "tenantguard.path"
)

// WithRequestInfo attaches the caller identity and path to a context so
// violations are attributable.
func WithRequestInfo(ctx context.Context, userID uint, path string) context.Context {
	ctx = context.WithValue(ctx, CtxUserID, userID)
	return context.WithValue(ctx, CtxPath, path)
}

func userIDFrom(ctx context.Context) uint {
	if v, ok := ctx.Value(CtxUserID).(uint); ok {
		return v
	}
	return 0
}

func pathFrom(ctx context.Context) string {
	if v, ok := ctx.Value(CtxPath).(string); ok {
		return v
	}
	return ""
}
