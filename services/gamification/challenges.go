package gamification

import (
	"context"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/djsoulspotti-ops/skajla/model"
	"github.com/djsoulspotti-ops/skajla/utils/apperr"
)

func challengeCounter(action Action) string {
	switch action {
	case ActionMessageSent:
		return "messages_sent"
	case ActionAIQuestion, ActionAICorrectAnswer:
		return "ai_interactions"
	case ActionQuizCompleted:
		return "quizzes_taken"
	case ActionPeerHelped:
		return "peers_helped"
	case ActionGroupCreated:
		return "groups_created"
	case ActionStudySession:
		return "study_minutes"
	}
	return ""
}

// applyChallenges moves the user's progress on every live challenge whose
// objectives mention the counter this action bumps. Completion marks the row;
// the reward is paid immediately as a plain ledger row. Runs inside the award
// transaction so progress can never outrun the counter it mirrors.
func (e *Engine) applyChallenges(tx *gorm.DB, p *model.GamificationProfile, action Action, now time.Time) error {
	counter := challengeCounter(action)
	if counter == "" {
		return nil
	}

	var challenges []model.Challenge
	if err := tx.Where("starts_at <= ? AND ends_at > ?", now, now).Find(&challenges).Error; err != nil {
		return err
	}

	for _, ch := range challenges {
		if _, mentioned := ch.Objectives[counter]; !mentioned {
			continue
		}

		var prog model.UserChallengeProgress
		err := tx.Where("user_id = ? AND challenge_id = ?", p.UserID, ch.ID).First(&prog).Error
		if err == gorm.ErrRecordNotFound {
			prog = model.UserChallengeProgress{
				UserID: p.UserID, ChallengeID: ch.ID, Progress: datatypes.JSONMap{},
			}
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&prog).Error; err != nil {
				return err
			}
		} else if err != nil {
			return err
		}
		if prog.Completed {
			continue
		}

		if prog.Progress == nil {
			prog.Progress = datatypes.JSONMap{}
		}
		prog.Progress[counter] = toFloat(prog.Progress[counter]) + 1

		done := true
		for obj, target := range ch.Objectives {
			if toFloat(prog.Progress[obj]) < toFloat(target) {
				done = false
				break
			}
		}
		if done {
			prog.Completed = true
			prog.RewardClaimed = true
			if ch.RewardXP > 0 {
				if err := tx.Create(&model.XPEvent{
					UserID: p.UserID, Delta: ch.RewardXP,
					Source: sourceChallengeCompleted, Description: ch.Title, Multiplier: 1,
				}).Error; err != nil {
					return err
				}
				p.TotalXP += ch.RewardXP
				p.SeasonXP += ch.RewardXP
				p.Level = LevelForXP(p.TotalXP)
			}
		}

		if err := tx.Save(&prog).Error; err != nil {
			return err
		}
	}
	return nil
}

func toFloat(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	case int:
		return float64(n)
	}
	return 0
}

// ActiveChallenges lists live challenges with the caller's progress attached.
func (e *Engine) ActiveChallenges(ctx context.Context, userID uint) ([]model.UserChallengeProgress, error) {
	now := e.now()
	var challenges []model.Challenge
	if err := e.db.WithContext(ctx).
		Where("starts_at <= ? AND ends_at > ?", now, now).
		Order("ends_at ASC").Find(&challenges).Error; err != nil {
		return nil, apperr.TransientStore("challenge query failed", err)
	}

	out := make([]model.UserChallengeProgress, 0, len(challenges))
	for _, ch := range challenges {
		var prog model.UserChallengeProgress
		err := e.db.WithContext(ctx).
			Where("user_id = ? AND challenge_id = ?", userID, ch.ID).
			First(&prog).Error
		if err != nil {
			prog = model.UserChallengeProgress{UserID: userID, ChallengeID: ch.ID, Progress: datatypes.JSONMap{}}
		}
		prog.Challenge = ch
		out = append(out, prog)
	}
	return out, nil
}
