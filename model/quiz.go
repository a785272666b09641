package model

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// QuizDifficulty values for QuizItem.Difficulty.
type QuizDifficulty string

const (
	QuizEasy   QuizDifficulty = "easy"
	QuizMedium QuizDifficulty = "medium"
	QuizHard   QuizDifficulty = "hard"
)

// QuizItem is one question with four options. Only approved items are
// eligible for selection. CorrectKey and Explanation never leave the server
// until the answer is submitted.
type QuizItem struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"-"`
	Subject    string         `gorm:"type:varchar(100);not null;index" json:"subject"`
	Topic      string         `gorm:"type:varchar(100);not null;index" json:"topic"`
	Difficulty QuizDifficulty `gorm:"type:varchar(10);not null;index" json:"difficulty"`
	Prompt     string         `gorm:"type:text;not null" json:"prompt"`
	Options    datatypes.JSON `gorm:"type:jsonb;not null" json:"options"` // {"A": ..., "B": ..., "C": ..., "D": ...}
	CorrectKey string         `gorm:"type:varchar(1);not null" json:"-"`
	Explanation string        `gorm:"type:text" json:"-"`
	XPReward   int64          `gorm:"default:50" json:"xp_reward"`
	Approved   bool           `gorm:"default:false;index" json:"approved"`
}

func (QuizItem) TableName() string {
	return "quiz_items"
}

// DecodeOptions parses the options column into a key -> text map.
func (q *QuizItem) DecodeOptions() (map[string]string, error) {
	opts := make(map[string]string)
	if err := json.Unmarshal(q.Options, &opts); err != nil {
		return nil, err
	}
	return opts, nil
}

// QuizHistory records one answered quiz.
type QuizHistory struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	CreatedAt    time.Time `gorm:"index" json:"created_at"`
	UserID       uint      `gorm:"not null;index:idx_quiz_history_user" json:"user_id"`
	QuizID       uint      `gorm:"not null;index" json:"quiz_id"`
	Subject      string    `gorm:"type:varchar(100);not null;index:idx_quiz_history_user" json:"subject"`
	Topic        string    `gorm:"type:varchar(100);not null" json:"topic"`
	Answer       string    `gorm:"type:varchar(1);not null" json:"answer"`
	Correct      bool      `gorm:"not null" json:"correct"`
	TimeTakenSec int       `gorm:"default:0" json:"time_taken_sec"`
	XPEarned     int64     `gorm:"default:0" json:"xp_earned"`

	User User     `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Quiz QuizItem `gorm:"foreignKey:QuizID;constraint:OnDelete:CASCADE" json:"-"`
}

func (QuizHistory) TableName() string {
	return "quiz_history"
}

// SubjectProgress aggregates quiz performance per (user, subject).
// WeakTopics is recomputed on miss (add) and on recovered accuracy (remove).
type SubjectProgress struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	UserID       uint           `gorm:"not null;uniqueIndex:idx_subject_progress" json:"user_id"`
	Subject      string         `gorm:"type:varchar(100);not null;uniqueIndex:idx_subject_progress" json:"subject"`
	Total        int64          `gorm:"default:0" json:"total"`
	CorrectCount int64          `gorm:"default:0" json:"correct_count"`
	Accuracy     float64        `gorm:"default:0" json:"accuracy"`
	TotalXP      int64          `gorm:"default:0" json:"total_xp"`
	WeakTopics   datatypes.JSON `gorm:"type:jsonb;default:'[]'" json:"weak_topics"`
	LastActivity *time.Time     `json:"last_activity,omitempty"`

	User User `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
}

func (SubjectProgress) TableName() string {
	return "subject_progress"
}

// DecodeWeakTopics parses the weak-topic JSONB column.
func (p *SubjectProgress) DecodeWeakTopics() ([]string, error) {
	if len(p.WeakTopics) == 0 {
		return nil, nil
	}
	var topics []string
	if err := json.Unmarshal(p.WeakTopics, &topics); err != nil {
		return nil, err
	}
	return topics, nil
}
