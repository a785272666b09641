package middleware

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/djsoulspotti-ops/skajla/model"
	"github.com/djsoulspotti-ops/skajla/utils/response"
)

// ModuleGate gates route families behind tenant module flags. A tenant with
// the module switched off gets 404, not 403: the feature simply does not
// exist for that school.
type ModuleGate struct {
	db *gorm.DB
}

// NewModuleGate creates a new module gate
func NewModuleGate(db *gorm.DB) *ModuleGate {
	return &ModuleGate{db: db}
}

// Require returns a middleware requiring the named module to be enabled for
// the caller's school. Must run after AuthMiddleware.Required.
func (g *ModuleGate) Require(name string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, ok := GetUser(c)
		if !ok {
			return response.Unauthorized(c, "")
		}

		var school model.School
		if err := g.db.Select("id", "module_flags").First(&school, user.SchoolID).Error; err != nil {
			return response.ServiceUnavailable(c, "")
		}

		if !school.ModuleEnabled(name) {
			return response.NotFound(c, "")
		}
		return c.Next()
	}
}
