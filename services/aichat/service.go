package aichat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/djsoulspotti-ops/skajla/model"
	"github.com/djsoulspotti-ops/skajla/services/gamification"
	"github.com/djsoulspotti-ops/skajla/utils/apperr"
	"github.com/djsoulspotti-ops/skajla/utils/cache"
	"github.com/djsoulspotti-ops/skajla/utils/logging"
	"github.com/djsoulspotti-ops/skajla/utils/metrics"
)

const (
	rateLimit  = 30
	rateWindow = 60 * time.Second

	maxQuestionLen = 2000
)

// Responder generates the assistant reply. The platform treats it as a
// black box; the HTTP layer wires whichever backend operations supplies.
type Responder interface {
	Respond(ctx context.Context, userCtx UserContext, question string) (string, error)
}

// UserContext is what a Responder learns about the asker.
type UserContext struct {
	UserID    uint   `json:"user_id"`
	SchoolID  uint   `json:"school_id"`
	FirstName string `json:"nome"`
	Role      string `json:"role"`
	Level     int    `json:"level"`
}

// Service fronts the assistant with rate limiting and XP accounting.
type Service struct {
	db        *gorm.DB
	hot       *cache.RedisCache
	engine    *gamification.Engine
	responder Responder
	log       *logging.Log
}

func NewService(db *gorm.DB, hot *cache.RedisCache, engine *gamification.Engine, responder Responder, log *logging.Log) *Service {
	return &Service{db: db, hot: hot, engine: engine, responder: responder, log: log}
}

// BotName is the assistant's display name on every reply.
const BotName = "Skaj"

// Reply is the assistant answer plus what the question earned.
type Reply struct {
	Response     string `json:"response"`
	BotName      string `json:"bot_name"`
	Personalized bool   `json:"personalized"`
	XPEarned     int64  `json:"xp_earned,omitempty"`
}

// newReply marks the answer personalized when the responder had a name to
// address the student with.
func newReply(answer, firstName string) *Reply {
	return &Reply{Response: answer, BotName: BotName, Personalized: firstName != ""}
}

// Ask validates, rate-limits and forwards a question, then credits the
// interaction.
func (s *Service) Ask(ctx context.Context, userID, schoolID uint, question string) (*Reply, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, apperr.InvalidInput("question is required")
	}
	if len(question) > maxQuestionLen {
		return nil, apperr.InvalidInput("question is too long")
	}
	if s.responder == nil {
		return nil, apperr.Internal("assistant backend not configured", nil)
	}

	key := fmt.Sprintf("rate:ai:%d", userID)
	count, err := s.hot.IncrementWithTTL(ctx, key, rateWindow)
	if err == nil && count > rateLimit {
		metrics.RateLimitHits.Inc()
		ttl, _ := s.hot.TTL(ctx, key)
		retry := int(ttl.Seconds())
		if retry <= 0 {
			retry = int(rateWindow.Seconds())
		}
		return nil, apperr.RateLimited("assistant rate limit exceeded", retry)
	}

	var user model.User
	if err := s.db.WithContext(ctx).Select("id", "first_name", "role").First(&user, userID).Error; err != nil {
		return nil, apperr.TransientStore("user lookup failed", err)
	}
	profile, err := s.engine.Profile(ctx, userID)
	if err != nil {
		return nil, err
	}

	answer, err := s.responder.Respond(ctx, UserContext{
		UserID:    userID,
		SchoolID:  schoolID,
		FirstName: user.FirstName,
		Role:      user.Role,
		Level:     profile.Level,
	}, question)
	if err != nil {
		return nil, apperr.TransientStore("assistant unavailable", err)
	}

	reply := newReply(answer, user.FirstName)
	outcome, err := s.engine.Award(ctx, userID, gamification.ActionAIQuestion, 1.0, "domanda assistente", nil)
	if err != nil {
		s.log.Base.Warn("ai xp award failed", zap.Uint("user_id", userID), zap.Error(err))
	} else {
		reply.XPEarned = outcome.XPEarned
	}
	return reply, nil
}
