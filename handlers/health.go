package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/djsoulspotti-ops/skajla/database"
)

// HandleCheckHealth answers the keep-alive probe. It reports degraded (but
// still 200) when the durable store is unreachable, so the platform pinger
// does not recycle the process for a transient DB hiccup.
func HandleCheckHealth(c *fiber.Ctx, store *database.GORMStore) error {
	status := "ok"
	dbStatus := "up"
	if err := store.HealthCheck(); err != nil {
		status = "degraded"
		dbStatus = "down"
	}
	return c.JSON(fiber.Map{
		"status":   status,
		"database": dbStatus,
	})
}
