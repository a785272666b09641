package quiz

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/djsoulspotti-ops/skajla/model"
	"github.com/djsoulspotti-ops/skajla/services/gamification"
	"github.com/djsoulspotti-ops/skajla/utils/apperr"
	"github.com/djsoulspotti-ops/skajla/utils/cache"
)

// Tuning knobs for selection and scoring.
const (
	historyWindow     = 10
	hardAccuracy      = 85.0
	mediumAccuracy    = 70.0
	minRowsForRating  = 3
	weakThreshold     = 70.0
	weakTopicBias     = 0.8
	speedBonusSeconds = 30
	speedBonus        = 1.2
	participationRate = 0.2

	pendingTTL = 10 * time.Minute
)

// Service serves adaptive quizzes. The correct key never reaches the client:
// it is parked in the hot store under the dispatch id until the answer
// arrives.
type Service struct {
	db     *gorm.DB
	hot    *cache.RedisCache
	engine *gamification.Engine
	rnd    *rand.Rand
	now    func() time.Time
}

func NewService(db *gorm.DB, hot *cache.RedisCache, engine *gamification.Engine) *Service {
	return &Service{
		db:     db,
		hot:    hot,
		engine: engine,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		now:    time.Now,
	}
}

// Question is the client-facing item, stripped of the answer.
type Question struct {
	QuizID     uint                 `json:"quiz_id"`
	Subject    string               `json:"subject"`
	Topic      string               `json:"topic"`
	Difficulty model.QuizDifficulty `json:"difficulty"`
	Prompt     string               `json:"prompt"`
	Options    map[string]string    `json:"options"`
	XPReward   int64                `json:"xp_reward"`
}

type pendingAnswer struct {
	QuizID      uint      `json:"quiz_id"`
	CorrectKey  string    `json:"correct_key"`
	Explanation string    `json:"explanation"`
	DispatchedAt time.Time `json:"dispatched_at"`
}

func pendingKey(userID, quizID uint) string {
	return fmt.Sprintf("quiz:pending:%d:%d", userID, quizID)
}

// errNoPending covers the missing-or-consumed pending key: expired TTL or a
// repeated submit. Both are the client's mistake, not a missing resource.
func errNoPending() error {
	return apperr.InvalidInput("no pending quiz; request a new question")
}

// awardPlan maps a graded answer to its XP action and context multiplier.
// Every grade counts as a taken quiz; correct answers pay full item XP (fast
// ones a speed bonus) while wrong answers still pay participation.
func awardPlan(correct bool, itemXP int64, timeTakenSec int) (gamification.Action, float64) {
	base, _ := gamification.BaseXP(gamification.ActionQuizCompleted)
	mult := float64(itemXP) / float64(base)
	if !correct {
		return gamification.ActionQuizCompleted, mult * participationRate
	}
	if timeTakenSec > 0 && timeTakenSec < speedBonusSeconds {
		mult *= speedBonus
	}
	return gamification.ActionQuizCompleted, mult
}

// pickDifficulty rates the user from their last answers in the subject.
// Too little data means easy.
func (s *Service) pickDifficulty(ctx context.Context, userID uint, subject string) (model.QuizDifficulty, error) {
	var recent []model.QuizHistory
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND subject = ?", userID, subject).
		Order("id DESC").Limit(historyWindow).Find(&recent).Error
	if err != nil {
		return "", apperr.TransientStore("quiz history query failed", err)
	}

	return rateDifficulty(recent), nil
}

// rateDifficulty maps recent accuracy to the next question's difficulty.
func rateDifficulty(recent []model.QuizHistory) model.QuizDifficulty {
	if len(recent) < minRowsForRating {
		return model.QuizEasy
	}
	correct := 0
	for _, h := range recent {
		if h.Correct {
			correct++
		}
	}
	accuracy := float64(correct) / float64(len(recent)) * 100
	switch {
	case accuracy >= hardAccuracy:
		return model.QuizHard
	case accuracy >= mediumAccuracy:
		return model.QuizMedium
	default:
		return model.QuizEasy
	}
}

// weakTopicsFor computes topics with enough attempts and accuracy under the
// threshold, from the user's full history in the subject.
func (s *Service) weakTopicsFor(ctx context.Context, userID uint, subject string) ([]string, error) {
	var rows []struct {
		Topic   string
		Total   int64
		Correct int64
	}
	err := s.db.WithContext(ctx).Model(&model.QuizHistory{}).
		Select("topic, COUNT(*) AS total, COUNT(*) FILTER (WHERE correct) AS correct").
		Where("user_id = ? AND subject = ?", userID, subject).
		Group("topic").Scan(&rows).Error
	if err != nil {
		return nil, apperr.TransientStore("topic accuracy query failed", err)
	}

	var weak []string
	for _, r := range rows {
		if r.Total >= minRowsForRating && float64(r.Correct)/float64(r.Total)*100 < weakThreshold {
			weak = append(weak, r.Topic)
		}
	}
	return weak, nil
}

// Next selects the user's next question for a subject: difficulty from recent
// accuracy, topic biased toward weak spots.
func (s *Service) Next(ctx context.Context, userID uint, subject string) (*Question, error) {
	if subject == "" {
		return nil, apperr.InvalidInput("subject is required")
	}

	difficulty, err := s.pickDifficulty(ctx, userID, subject)
	if err != nil {
		return nil, err
	}

	q := s.db.WithContext(ctx).
		Where("subject = ? AND difficulty = ? AND approved = ?", subject, difficulty, true)

	weak, err := s.weakTopicsFor(ctx, userID, subject)
	if err != nil {
		return nil, err
	}
	if len(weak) > 0 && s.rnd.Float64() < weakTopicBias {
		q = q.Where("topic IN ?", weak)
	}

	var item model.QuizItem
	err = q.Order("RANDOM()").First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		// Weak-topic pool may be empty at this difficulty; fall back to the
		// whole difficulty bucket.
		err = s.db.WithContext(ctx).
			Where("subject = ? AND difficulty = ? AND approved = ?", subject, difficulty, true).
			Order("RANDOM()").First(&item).Error
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("no quiz available for this subject")
	}
	if err != nil {
		return nil, apperr.TransientStore("quiz selection failed", err)
	}

	opts, err := item.DecodeOptions()
	if err != nil {
		return nil, apperr.Internal("corrupt quiz options", err)
	}

	pending := pendingAnswer{
		QuizID:      item.ID,
		CorrectKey:  item.CorrectKey,
		Explanation: item.Explanation,
		DispatchedAt: s.now(),
	}
	if err := s.hot.SetJSON(ctx, pendingKey(userID, item.ID), pending, pendingTTL); err != nil {
		return nil, apperr.TransientStore("quiz dispatch failed", err)
	}

	return &Question{
		QuizID:     item.ID,
		Subject:    item.Subject,
		Topic:      item.Topic,
		Difficulty: item.Difficulty,
		Prompt:     item.Prompt,
		Options:    opts,
		XPReward:   item.XPReward,
	}, nil
}

// Result is the graded answer plus the withheld explanation.
type Result struct {
	Correct     bool   `json:"correct"`
	CorrectKey  string `json:"correct_key"`
	Explanation string `json:"explanation,omitempty"`
	XPEarned    int64  `json:"xp_earned"`
}

// Submit grades a pending answer, persists history and subject progress in
// one transaction, then routes XP through the engine.
func (s *Service) Submit(ctx context.Context, userID, quizID uint, answer string, timeTakenSec int) (*Result, error) {
	if answer == "" {
		return nil, apperr.InvalidInput("answer is required")
	}

	var pending pendingAnswer
	key := pendingKey(userID, quizID)
	if err := s.hot.GetJSON(ctx, key, &pending); err != nil {
		return nil, errNoPending()
	}
	_ = s.hot.Delete(ctx, key)

	var item model.QuizItem
	if err := s.db.WithContext(ctx).First(&item, quizID).Error; err != nil {
		return nil, apperr.TransientStore("quiz lookup failed", err)
	}

	correct := answer == pending.CorrectKey
	hist := model.QuizHistory{
		UserID:       userID,
		QuizID:       quizID,
		Subject:      item.Subject,
		Topic:        item.Topic,
		Answer:       answer,
		Correct:      correct,
		TimeTakenSec: timeTakenSec,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&hist).Error; err != nil {
			return err
		}
		return s.updateProgress(ctx, tx, userID, item.Subject, item.Topic, correct, item.XPReward)
	})
	if err != nil {
		return nil, apperr.TransientStore("quiz result persist failed", err)
	}

	action, ctxMult := awardPlan(correct, item.XPReward, timeTakenSec)

	dedup := fmt.Sprintf("quiz:%d:%d", userID, hist.ID)
	outcome, err := s.engine.Award(ctx, userID, action, ctxMult, "quiz "+item.Subject, &dedup)
	if err != nil {
		return nil, err
	}

	s.db.WithContext(ctx).Model(&model.QuizHistory{}).
		Where("id = ?", hist.ID).Update("xp_earned", outcome.XPEarned)

	res := &Result{
		Correct:    correct,
		CorrectKey: pending.CorrectKey,
		XPEarned:   outcome.XPEarned,
	}
	if pending.Explanation != "" {
		res.Explanation = pending.Explanation
	}
	return res, nil
}

// updateProgress rolls the answer into SubjectProgress and recomputes the
// weak-topic set: a miss can add the topic, recovered accuracy removes it.
func (s *Service) updateProgress(ctx context.Context, tx *gorm.DB, userID uint, subject, topic string, correct bool, xp int64) error {
	var prog model.SubjectProgress
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ? AND subject = ?", userID, subject).
		First(&prog).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		prog = model.SubjectProgress{UserID: userID, Subject: subject, WeakTopics: datatypes.JSON("[]")}
	} else if err != nil {
		return err
	}

	prog.Total++
	if correct {
		prog.CorrectCount++
	}
	prog.Accuracy = float64(prog.CorrectCount) / float64(prog.Total) * 100
	now := s.now()
	prog.LastActivity = &now

	weak, _ := prog.DecodeWeakTopics()
	weakSet := make(map[string]bool, len(weak))
	for _, t := range weak {
		weakSet[t] = true
	}

	if correct {
		// Remove the topic once its recent accuracy recovers.
		if weakSet[topic] {
			var rows []model.QuizHistory
			if err := tx.Where("user_id = ? AND subject = ? AND topic = ?", userID, subject, topic).
				Order("id DESC").Limit(historyWindow).Find(&rows).Error; err != nil {
				return err
			}
			hits := 1 // the row for this answer is not committed yet
			total := 1
			for _, r := range rows {
				total++
				if r.Correct {
					hits++
				}
			}
			if float64(hits)/float64(total)*100 >= weakThreshold {
				delete(weakSet, topic)
			}
		}
	} else {
		weakSet[topic] = true
	}

	topics := make([]string, 0, len(weakSet))
	for t := range weakSet {
		topics = append(topics, t)
	}
	encoded, err := json.Marshal(topics)
	if err != nil {
		return err
	}
	prog.WeakTopics = datatypes.JSON(encoded)

	return tx.Save(&prog).Error
}

// Progress returns the caller's per-subject aggregates.
func (s *Service) Progress(ctx context.Context, userID uint) ([]model.SubjectProgress, error) {
	var rows []model.SubjectProgress
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("subject ASC").Find(&rows).Error; err != nil {
		return nil, apperr.TransientStore("progress query failed", err)
	}
	return rows, nil
}
