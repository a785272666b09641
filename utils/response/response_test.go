package response

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
)

func TestLockedCarriesMinutesAndRetrySeconds(t *testing.T) {
	app := fiber.New()
	app.Get("/locked", func(c *fiber.Ctx) error {
		return Locked(c, "Too many failed attempts, try again later", 90)
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/locked", nil))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != fiber.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", resp.StatusCode)
	}
	if got := resp.Header.Get("Retry-After"); got != "90" {
		t.Fatalf("Retry-After = %q, want 90", got)
	}

	raw, _ := io.ReadAll(resp.Body)
	var body ErrorResponse
	if err := json.Unmarshal(raw, &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.RetryAfter != 90 {
		t.Fatalf("retry_after = %d, want 90", body.RetryAfter)
	}
	// 90 seconds rounds up to 2 minutes.
	if body.LockedUntilMinutes != 2 {
		t.Fatalf("locked_until_minutes = %d, want 2", body.LockedUntilMinutes)
	}
}
