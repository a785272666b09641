package ai

import (
	"github.com/gofiber/fiber/v2"

	"github.com/djsoulspotti-ops/skajla/services/aichat"
	"github.com/djsoulspotti-ops/skajla/services/quiz"
	"github.com/djsoulspotti-ops/skajla/utils/middleware"
	"github.com/djsoulspotti-ops/skajla/utils/response"
)

// Handler serves the assistant chat and the adaptive quiz
type Handler struct {
	chat *aichat.Service
	quiz *quiz.Service
}

// NewHandler creates a new AI handler
func NewHandler(chat *aichat.Service, q *quiz.Service) *Handler {
	return &Handler{chat: chat, quiz: q}
}

func identity(c *fiber.Ctx) (userID, schoolID uint, err error) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return 0, 0, response.Unauthorized(c, "Not authenticated")
	}
	schoolID, ok = c.Locals("school_id").(uint)
	if !ok {
		return 0, 0, response.Unauthorized(c, "Not authenticated")
	}
	return userID, schoolID, nil
}

// ChatRequest is one assistant question
type ChatRequest struct {
	Message string `json:"message" validate:"required,max=2000"`
}

// Chat forwards a question to the assistant
func (h *Handler) Chat(c *fiber.Ctx) error {
	userID, schoolID, err := identity(c)
	if err != nil {
		return err
	}

	var req ChatRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	reply, err := h.chat.Ask(c.Context(), userID, schoolID, req.Message)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, reply)
}

// QuizRequest asks for the next question in a subject
type QuizRequest struct {
	Subject string `json:"subject" validate:"required,max=100"`
}

// GetQuiz dispatches the next adaptive question
func (h *Handler) GetQuiz(c *fiber.Ctx) error {
	userID, _, err := identity(c)
	if err != nil {
		return err
	}

	var req QuizRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	q, err := h.quiz.Next(c.Context(), userID, req.Subject)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, q)
}

// SubmitRequest grades one answer
type SubmitRequest struct {
	QuizID       uint   `json:"quiz_id" validate:"required"`
	Answer       string `json:"answer" validate:"required,len=1"`
	TimeTakenSec int    `json:"time_taken_sec"`
}

// SubmitQuiz grades a pending answer
func (h *Handler) SubmitQuiz(c *fiber.Ctx) error {
	userID, _, err := identity(c)
	if err != nil {
		return err
	}

	var req SubmitRequest
	if err := c.BodyParser(&req); err != nil || req.QuizID == 0 {
		return response.BadRequest(c, "quiz_id and answer are required")
	}

	res, err := h.quiz.Submit(c.Context(), userID, req.QuizID, req.Answer, req.TimeTakenSec)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, res)
}

// QuizProgress returns per-subject aggregates
func (h *Handler) QuizProgress(c *fiber.Ctx) error {
	userID, _, err := identity(c)
	if err != nil {
		return err
	}

	rows, err := h.quiz.Progress(c.Context(), userID)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, rows)
}
