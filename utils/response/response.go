package response

import (
	"fmt"

	"github.com/gofiber/fiber/v2"

	"github.com/djsoulspotti-ops/skajla/utils/apperr"
)

// Response is the standard success envelope.
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// ErrorResponse is the standard error envelope. Error carries the machine
// code, Message the human-readable text. RetryAfter and Recoverable are only
// present for rate limits, lockouts and transient store failures.
type ErrorResponse struct {
	Success            bool   `json:"success"`
	Error              string `json:"error"`
	Message            string `json:"message"`
	RetryAfter         int    `json:"retry_after,omitempty"`
	LockedUntilMinutes int    `json:"locked_until_minutes,omitempty"`
	Recoverable        *bool  `json:"recoverable,omitempty"`
}

// PaginationMeta contains pagination metadata
type PaginationMeta struct {
	CurrentPage int   `json:"current_page"`
	PerPage     int   `json:"per_page"`
	Total       int64 `json:"total"`
	TotalPages  int   `json:"total_pages"`
}

// PaginatedResponse represents a paginated API response
type PaginatedResponse struct {
	Success    bool           `json:"success"`
	Message    string         `json:"message,omitempty"`
	Data       interface{}    `json:"data"`
	Pagination PaginationMeta `json:"pagination"`
}

// Success returns a successful response
func Success(c *fiber.Ctx, data interface{}) error {
	return c.Status(fiber.StatusOK).JSON(Response{
		Success: true,
		Data:    data,
	})
}

// SuccessWithMessage returns a successful response with a message
func SuccessWithMessage(c *fiber.Ctx, message string, data interface{}) error {
	return c.Status(fiber.StatusOK).JSON(Response{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// Created returns a 201 Created response
func Created(c *fiber.Ctx, data interface{}) error {
	return c.Status(fiber.StatusCreated).JSON(Response{
		Success: true,
		Data:    data,
	})
}

// Error returns an error response with an explicit status and code
func Error(c *fiber.Ctx, statusCode int, code, message string) error {
	return c.Status(statusCode).JSON(ErrorResponse{
		Success: false,
		Error:   code,
		Message: message,
	})
}

// BadRequest returns a 400 Bad Request response
func BadRequest(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusBadRequest, "INVALID_INPUT", message)
}

// Unauthorized returns a 401 Unauthorized response
func Unauthorized(c *fiber.Ctx, message string) error {
	if message == "" {
		message = "Unauthorized access"
	}
	return Error(c, fiber.StatusUnauthorized, "AUTH_FAILURE", message)
}

// Forbidden returns a 403 Forbidden response
func Forbidden(c *fiber.Ctx, message string) error {
	if message == "" {
		message = "Access forbidden"
	}
	return Error(c, fiber.StatusForbidden, "FORBIDDEN", message)
}

// NotFound returns a 404 Not Found response
func NotFound(c *fiber.Ctx, message string) error {
	if message == "" {
		message = "Resource not found"
	}
	return Error(c, fiber.StatusNotFound, "NOT_FOUND", message)
}

// Conflict returns a 409 Conflict response
func Conflict(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusConflict, "DUPLICATE_RESOURCE", message)
}

// TooManyRequests returns a 429 response with a Retry-After hint
func TooManyRequests(c *fiber.Ctx, message string, retryAfter int) error {
	if message == "" {
		message = "Too many requests"
	}
	if retryAfter > 0 {
		c.Set("Retry-After", fmt.Sprintf("%d", retryAfter))
	}
	return c.Status(fiber.StatusTooManyRequests).JSON(ErrorResponse{
		Success:    false,
		Error:      "RATE_LIMIT_EXCEEDED",
		Message:    message,
		RetryAfter: retryAfter,
	})
}

// Locked returns a 429 for login lockouts. Alongside the retry_after seconds
// it carries the rounded-up minutes field login clients display.
func Locked(c *fiber.Ctx, message string, retryAfter int) error {
	if message == "" {
		message = "Too many failed attempts"
	}
	if retryAfter > 0 {
		c.Set("Retry-After", fmt.Sprintf("%d", retryAfter))
	}
	return c.Status(fiber.StatusTooManyRequests).JSON(ErrorResponse{
		Success:            false,
		Error:              "RATE_LIMIT_EXCEEDED",
		Message:            message,
		RetryAfter:         retryAfter,
		LockedUntilMinutes: (retryAfter + 59) / 60,
	})
}

// InternalServerError returns a 500 Internal Server Error response
func InternalServerError(c *fiber.Ctx, message string) error {
	if message == "" {
		message = "Internal server error"
	}
	return Error(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", message)
}

// ServiceUnavailable returns a 503 with recoverable=true so clients retry
func ServiceUnavailable(c *fiber.Ctx, message string) error {
	if message == "" {
		message = "Service temporarily unavailable"
	}
	recoverable := true
	return c.Status(fiber.StatusServiceUnavailable).JSON(ErrorResponse{
		Success:     false,
		Error:       "TRANSIENT_STORE_ERROR",
		Message:     message,
		Recoverable: &recoverable,
	})
}

// FromError translates a domain error into the envelope. This is the single
// point where error kinds become HTTP statuses.
func FromError(c *fiber.Ctx, err error) error {
	e := apperr.As(err)
	if e == nil {
		return InternalServerError(c, "")
	}

	switch e.Kind {
	case apperr.KindInvalidInput:
		return Error(c, fiber.StatusBadRequest, e.Code, e.Message)
	case apperr.KindAuthFailure:
		return Error(c, fiber.StatusUnauthorized, e.Code, e.Message)
	case apperr.KindTenantViolation:
		return Error(c, fiber.StatusForbidden, e.Code, e.Message)
	case apperr.KindDuplicate:
		return Error(c, fiber.StatusConflict, e.Code, e.Message)
	case apperr.KindNotFound:
		return Error(c, fiber.StatusNotFound, e.Code, e.Message)
	case apperr.KindRateLimited:
		return TooManyRequests(c, e.Message, e.RetryAfter)
	case apperr.KindTransientStore:
		return ServiceUnavailable(c, e.Message)
	default:
		return InternalServerError(c, e.Message)
	}
}

// Paginated returns a paginated response
func Paginated(c *fiber.Ctx, data interface{}, pagination PaginationMeta) error {
	return c.Status(fiber.StatusOK).JSON(PaginatedResponse{
		Success:    true,
		Data:       data,
		Pagination: pagination,
	})
}

// CalculatePagination calculates pagination metadata
func CalculatePagination(page, limit int, total int64) PaginationMeta {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}

	totalPages := int(total) / limit
	if int(total)%limit > 0 {
		totalPages++
	}

	return PaginationMeta{
		CurrentPage: page,
		PerPage:     limit,
		Total:       total,
		TotalPages:  totalPages,
	}
}
