package gamification

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/djsoulspotti-ops/skajla/model"
	"github.com/djsoulspotti-ops/skajla/utils/apperr"
	"github.com/djsoulspotti-ops/skajla/utils/logging"
	"github.com/djsoulspotti-ops/skajla/utils/metrics"
)

// Broadcaster pushes realtime events to connected users. The websocket hub
// satisfies this through a thin adapter; tests use the nop implementation.
type Broadcaster interface {
	ToUser(userID uint, event string, data interface{})
	ToSchool(schoolID uint, event string, data interface{})
}

type nopBroadcaster struct{}

func (nopBroadcaster) ToUser(uint, string, interface{})   {}
func (nopBroadcaster) ToSchool(uint, string, interface{}) {}

// NopBroadcaster is a Broadcaster that drops everything.
var NopBroadcaster Broadcaster = nopBroadcaster{}

// AwardOutcome is what an action was worth once everything settled.
type AwardOutcome struct {
	XPEarned        int64                         `json:"xp_earned"`
	CoinsEarned     int64                         `json:"coins_earned"`
	Multiplier      float64                       `json:"multiplier"`
	LevelUp         bool                          `json:"level_up"`
	NewLevel        int                           `json:"new_level,omitempty"`
	StreakMilestone int                           `json:"streak_milestone,omitempty"`
	NewAchievements []model.AchievementDefinition `json:"new_achievements,omitempty"`
	NewBadges       []model.BadgeDefinition       `json:"new_badges,omitempty"`
	Deduplicated    bool                          `json:"deduplicated,omitempty"`
}

// Engine owns all XP mutation. Every grant goes through one transaction that
// appends the ledger row and moves the profile, so the two can only diverge
// through operator surgery, and the ledger wins when they do.
type Engine struct {
	db  *gorm.DB
	log *logging.Log
	bc  Broadcaster

	now func() time.Time
}

func NewEngine(db *gorm.DB, log *logging.Log, bc Broadcaster) *Engine {
	if bc == nil {
		bc = NopBroadcaster
	}
	return &Engine{db: db, log: log, bc: bc, now: time.Now}
}

// Profile returns the user's progression row, creating it on first touch.
func (e *Engine) Profile(ctx context.Context, userID uint) (*model.GamificationProfile, error) {
	var p model.GamificationProfile
	err := e.db.WithContext(ctx).Where("user_id = ?", userID).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		p = model.GamificationProfile{UserID: userID, Level: 1, FreezeCardsLeft: 1}
		if err := e.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoNothing: true,
		}).Create(&p).Error; err != nil {
			return nil, apperr.TransientStore("profile create failed", err)
		}
		err = e.db.WithContext(ctx).Where("user_id = ?", userID).First(&p).Error
	}
	if err != nil {
		return nil, apperr.TransientStore("profile lookup failed", err)
	}
	return &p, nil
}

// Award grants XP for an action. contextMultiplier is the caller-supplied
// factor on top of the dynamic one; dedupKey makes retries safe.
func (e *Engine) Award(ctx context.Context, userID uint, action Action, contextMultiplier float64, description string, dedupKey *string) (*AwardOutcome, error) {
	base, ok := baseXP[action]
	if !ok {
		return nil, apperr.UnknownAction(string(action))
	}
	if contextMultiplier <= 0 {
		contextMultiplier = 1.0
	}

	if dedupKey != nil {
		if prior, ok := e.priorOutcome(ctx, *dedupKey); ok {
			return prior, nil
		}
	}

	if _, err := e.Profile(ctx, userID); err != nil {
		return nil, err
	}

	now := e.now()
	out := &AwardOutcome{}
	var schoolID uint

	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var p model.GamificationProfile
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ?", userID).First(&p).Error; err != nil {
			return err
		}

		streak := applyStreak(&p, now)
		out.StreakMilestone = streak.Milestone

		dyn := DynamicMultiplier(&p, now)
		out.Multiplier = dyn * contextMultiplier
		out.XPEarned = FinalXP(base, dyn, contextMultiplier)
		out.CoinsEarned = CoinsFor(out.XPEarned)

		evt := model.XPEvent{
			UserID:      userID,
			Delta:       out.XPEarned,
			Source:      string(action),
			Description: description,
			Multiplier:  out.Multiplier,
			DedupKey:    dedupKey,
		}
		if err := tx.Create(&evt).Error; err != nil {
			return err
		}

		oldLevel := p.Level
		p.TotalXP += out.XPEarned
		p.SeasonXP += out.XPEarned
		p.Coins += out.CoinsEarned
		bumpCounter(&p, action)
		if action == ActionStudySession {
			p.StudyMinutes += int64(math.Round(contextMultiplier))
		}

		if streak.Milestone > 0 {
			bonus := StreakMilestones[streak.Milestone]
			p.Coins += bonus
			milestoneEvt := model.XPEvent{
				UserID:      userID,
				Delta:       0,
				Source:      sourceStreakMilestone,
				Description: fmt.Sprintf("streak %d giorni", streak.Milestone),
				Multiplier:  1,
			}
			if err := tx.Create(&milestoneEvt).Error; err != nil {
				return err
			}
		}

		p.Level = LevelForXP(p.TotalXP)
		if p.Level > oldLevel {
			out.LevelUp = true
			out.NewLevel = p.Level
			bonus := LevelUpBonus(p.Level)
			bonusEvt := model.XPEvent{
				UserID:      userID,
				Delta:       bonus,
				Source:      sourceLevelUpBonus,
				Description: fmt.Sprintf("livello %d", p.Level),
				Multiplier:  1,
			}
			if err := tx.Create(&bonusEvt).Error; err != nil {
				return err
			}
			p.TotalXP += bonus
			p.SeasonXP += bonus
			// A bonus can nudge the user over the next threshold; no
			// cascading bonus for that.
			p.Level = LevelForXP(p.TotalXP)
			out.NewLevel = p.Level
		}

		if err := e.unlockPass(tx, &p, out); err != nil {
			return err
		}
		if err := e.applyChallenges(tx, &p, action, now); err != nil {
			return err
		}

		if err := tx.Save(&p).Error; err != nil {
			return err
		}

		return tx.Model(&model.User{}).Select("school_id").Where("id = ?", userID).Scan(&schoolID).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) && dedupKey != nil {
			// Lost the race to a concurrent retry; report what it paid.
			if prior, ok := e.priorOutcome(ctx, *dedupKey); ok {
				return prior, nil
			}
			return &AwardOutcome{Deduplicated: true}, nil
		}
		return nil, apperr.TransientStore("xp award failed", err)
	}

	metrics.XPAwarded.Add(float64(out.XPEarned))
	e.notify(ctx, userID, schoolID, out)
	return out, nil
}

// priorOutcome rebuilds the outcome of an already-recorded award from its
// ledger row, so a retried call sees what the first attempt paid rather than
// zeroes.
func (e *Engine) priorOutcome(ctx context.Context, dedupKey string) (*AwardOutcome, bool) {
	var evt model.XPEvent
	err := e.db.WithContext(ctx).Where("dedup_key = ?", dedupKey).First(&evt).Error
	if err != nil {
		return nil, false
	}
	return &AwardOutcome{
		XPEarned:     evt.Delta,
		CoinsEarned:  CoinsFor(evt.Delta),
		Multiplier:   evt.Multiplier,
		Deduplicated: true,
	}, true
}

// unlockPass evaluates every definition the user has not unlocked yet against
// the updated profile and records fresh unlocks inside the award transaction.
// Unlock XP lands as plain ledger rows, never multiplied.
func (e *Engine) unlockPass(tx *gorm.DB, p *model.GamificationProfile, out *AwardOutcome) error {
	var achDefs []model.AchievementDefinition
	if err := tx.Where("id NOT IN (?)",
		tx.Model(&model.UserAchievement{}).Select("achievement_id").Where("user_id = ?", p.UserID),
	).Find(&achDefs).Error; err != nil {
		return err
	}
	for _, def := range achDefs {
		rules, err := model.DecodeRules(def.Rules)
		if err != nil || !evalRules(p, rules) {
			continue
		}
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&model.UserAchievement{
			UserID: p.UserID, AchievementID: def.ID, UnlockedAt: e.now(),
		})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			continue // concurrent award got there first
		}
		if def.XPReward > 0 {
			if err := tx.Create(&model.XPEvent{
				UserID: p.UserID, Delta: def.XPReward,
				Source: sourceAchievementUnlock, Description: def.Code, Multiplier: 1,
			}).Error; err != nil {
				return err
			}
			p.TotalXP += def.XPReward
			p.SeasonXP += def.XPReward
		}
		out.NewAchievements = append(out.NewAchievements, def)
	}

	var badgeDefs []model.BadgeDefinition
	if err := tx.Where("id NOT IN (?)",
		tx.Model(&model.UserBadge{}).Select("badge_id").Where("user_id = ?", p.UserID),
	).Find(&badgeDefs).Error; err != nil {
		return err
	}
	for _, def := range badgeDefs {
		rules, err := model.DecodeRules(def.Rules)
		if err != nil || !evalRules(p, rules) {
			continue
		}
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&model.UserBadge{
			UserID: p.UserID, BadgeID: def.ID, UnlockedAt: e.now(),
		})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			continue
		}
		if def.XPReward > 0 {
			if err := tx.Create(&model.XPEvent{
				UserID: p.UserID, Delta: def.XPReward,
				Source: sourceBadgeUnlocked, Description: def.Code, Multiplier: 1,
			}).Error; err != nil {
				return err
			}
			p.TotalXP += def.XPReward
			p.SeasonXP += def.XPReward
		}
		out.NewBadges = append(out.NewBadges, def)
	}

	p.Level = LevelForXP(p.TotalXP)
	return nil
}

// notify persists and pushes the user-facing consequences of an award.
// Failures are logged; a lost notification never rolls back XP.
func (e *Engine) notify(ctx context.Context, userID, schoolID uint, out *AwardOutcome) {
	if out.LevelUp {
		e.persistNotification(ctx, userID, schoolID, model.NotificationTypeSuccess,
			fmt.Sprintf("Livello %d raggiunto!", out.NewLevel),
			fmt.Sprintf("Hai guadagnato %d XP bonus.", LevelUpBonus(out.NewLevel)))
		e.bc.ToSchool(schoolID, "level_up", map[string]interface{}{
			"user_id": userID, "new_level": out.NewLevel,
		})
	}
	for _, a := range out.NewAchievements {
		e.persistNotification(ctx, userID, schoolID, model.NotificationTypeSuccess,
			"Obiettivo sbloccato: "+a.Name, "")
		e.bc.ToUser(userID, "achievement_unlocked", a)
	}
	for _, b := range out.NewBadges {
		e.persistNotification(ctx, userID, schoolID, model.NotificationTypeSuccess,
			"Badge sbloccato: "+b.Name, "")
		e.bc.ToUser(userID, "badge_unlocked", b)
	}
	if out.StreakMilestone > 0 {
		e.persistNotification(ctx, userID, schoolID, model.NotificationTypeSuccess,
			fmt.Sprintf("Streak di %d giorni!", out.StreakMilestone),
			fmt.Sprintf("Bonus di %d monete.", StreakMilestones[out.StreakMilestone]))
		e.bc.ToUser(userID, "streak_milestone", map[string]interface{}{
			"days": out.StreakMilestone, "coins": StreakMilestones[out.StreakMilestone],
		})
	}
}

func (e *Engine) persistNotification(ctx context.Context, userID, schoolID uint, typ model.NotificationType, title, message string) {
	n := model.UserNotification{
		UserID:   userID,
		SchoolID: schoolID,
		Type:     typ,
		Category: model.NotificationCategoryGamification,
		Title:    title,
		Message:  message,
	}
	if err := e.db.WithContext(ctx).Create(&n).Error; err != nil {
		e.log.Base.Warn("notification persist failed", zap.Uint("user_id", userID), zap.Error(err))
	}
}

// WeekendPassCost and duration for the coin shop.
const (
	WeekendPassCost = 200
	WeekendPassDays = 7
)

// ActivateWeekendPass spends coins on a weekend pass extending streak
// protection over the coming weekends.
func (e *Engine) ActivateWeekendPass(ctx context.Context, userID uint) (*model.GamificationProfile, error) {
	var p model.GamificationProfile
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ?", userID).First(&p).Error; err != nil {
			return err
		}
		if p.Coins < WeekendPassCost {
			return apperr.InvalidInput("not enough coins")
		}
		p.Coins -= WeekendPassCost
		until := e.now().AddDate(0, 0, WeekendPassDays)
		p.WeekendPassUntil = &until
		return tx.Save(&p).Error
	})
	if err != nil {
		if ae := apperr.As(err); ae != nil {
			return nil, ae
		}
		return nil, apperr.TransientStore("weekend pass purchase failed", err)
	}
	return &p, nil
}
