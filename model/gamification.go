package model

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// GamificationProfile is the per-user progression row, created lazily on the
// first XP-awarding action. Counters are denormalized for predicate
// evaluation; the XPEvent log stays the source of truth for TotalXP.
type GamificationProfile struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
	UserID    uint           `gorm:"uniqueIndex;not null" json:"user_id"`

	TotalXP int64 `gorm:"default:0" json:"total_xp"`
	Level   int   `gorm:"default:1" json:"level"`
	Coins   int64 `gorm:"default:0" json:"coins"`

	CurrentStreak    int        `gorm:"default:0" json:"current_streak"`
	MaxStreak        int        `gorm:"default:0" json:"max_streak"`
	LastActivityDate *time.Time `json:"last_activity_date,omitempty"`

	// Streak protections
	FreezeCardsLeft  int        `gorm:"default:1" json:"freeze_cards_left"`
	FreezeResetMonth int        `gorm:"default:0" json:"-"` // yyyymm of the last monthly reset
	WeekendPassUntil *time.Time `json:"weekend_pass_until,omitempty"`

	// Activity counters referenced by achievement predicates
	MessagesSent      int64 `gorm:"default:0" json:"messages_sent"`
	AIInteractions    int64 `gorm:"default:0" json:"ai_interactions"`
	QuizzesTaken      int64 `gorm:"default:0" json:"quizzes_taken"`
	PeersHelped       int64 `gorm:"default:0" json:"peers_helped"`
	StudyMinutes      int64 `gorm:"default:0" json:"study_minutes"`
	GroupsCreated     int64 `gorm:"default:0" json:"groups_created"`
	ReactionsReceived int64 `gorm:"default:0" json:"reactions_received"`

	// Cosmetics and battle pass
	AvatarID        string `gorm:"type:varchar(50);default:'default'" json:"avatar_id"`
	Theme           string `gorm:"type:varchar(50);default:'default'" json:"theme"`
	SeasonXP        int64  `gorm:"default:0" json:"season_xp"`
	BattlePassLevel int    `gorm:"default:1" json:"battle_pass_level"`

	User User `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
}

func (GamificationProfile) TableName() string {
	return "gamification_profiles"
}

// XPEvent is the append-only XP ledger. Rows are never mutated; the profile
// total is reconcilable from the sum of deltas.
type XPEvent struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	CreatedAt   time.Time `gorm:"index" json:"created_at"`
	UserID      uint      `gorm:"not null;index" json:"user_id"`
	Delta       int64     `gorm:"not null" json:"delta"`
	Source      string    `gorm:"type:varchar(50);not null;index" json:"source"`
	Description string    `gorm:"type:varchar(255)" json:"description,omitempty"`
	Multiplier  float64   `gorm:"default:1" json:"multiplier"`

	// DedupKey lets retrying callers pass a client_event_id; the unique index
	// turns a replay into a constraint violation instead of double credit.
	DedupKey *string `gorm:"type:varchar(64);uniqueIndex" json:"dedup_key,omitempty"`

	User User `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
}

func (XPEvent) TableName() string {
	return "xp_events"
}

// PredicateRule is one clause of an unlock predicate: a profile counter
// compared against a value. Rules on a definition are AND-ed. Keeping the
// predicate as data means definitions can be seeded, versioned and tested
// without code changes.
type PredicateRule struct {
	Counter string `json:"counter"`
	Op      string `json:"op"` // gte, gt, eq, lte, lt
	Value   int64  `json:"value"`
}

// DecodeRules parses a JSONB rules column into predicate rules.
func DecodeRules(raw datatypes.JSON) ([]PredicateRule, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var rules []PredicateRule
	if err := json.Unmarshal(raw, &rules); err != nil {
		return nil, err
	}
	return rules, nil
}

// AchievementDefinition is tenant-independent reference data.
type AchievementDefinition struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	Code      string         `gorm:"type:varchar(50);uniqueIndex;not null" json:"code"`
	Name      string         `gorm:"type:varchar(100);not null" json:"name"`
	Rarity    string         `gorm:"type:varchar(20);default:'common'" json:"rarity"`
	Rules     datatypes.JSON `gorm:"type:jsonb;not null" json:"rules"`
	XPReward  int64          `gorm:"default:0" json:"xp_reward"`
}

func (AchievementDefinition) TableName() string {
	return "achievement_definitions"
}

// BadgeDefinition mirrors achievements with an optional cosmetic reward.
type BadgeDefinition struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	CreatedAt    time.Time      `json:"created_at"`
	Code         string         `gorm:"type:varchar(50);uniqueIndex;not null" json:"code"`
	Name         string         `gorm:"type:varchar(100);not null" json:"name"`
	Rarity       string         `gorm:"type:varchar(20);default:'common'" json:"rarity"`
	Rules        datatypes.JSON `gorm:"type:jsonb;not null" json:"rules"`
	XPReward     int64          `gorm:"default:0" json:"xp_reward"`
	CosmeticItem string         `gorm:"type:varchar(50)" json:"cosmetic_item,omitempty"`
}

func (BadgeDefinition) TableName() string {
	return "badge_definitions"
}

// UserAchievement certifies an unlock. Unique per pair, never deleted.
type UserAchievement struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	UserID        uint      `gorm:"not null;uniqueIndex:idx_user_achievement" json:"user_id"`
	AchievementID uint      `gorm:"not null;uniqueIndex:idx_user_achievement" json:"achievement_id"`
	UnlockedAt    time.Time `gorm:"not null" json:"unlocked_at"`

	User        User                  `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Achievement AchievementDefinition `gorm:"foreignKey:AchievementID" json:"achievement,omitempty"`
}

func (UserAchievement) TableName() string {
	return "user_achievements"
}

// UserBadge certifies a badge unlock. Unique per pair, never deleted.
type UserBadge struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	UserID     uint      `gorm:"not null;uniqueIndex:idx_user_badge" json:"user_id"`
	BadgeID    uint      `gorm:"not null;uniqueIndex:idx_user_badge" json:"badge_id"`
	UnlockedAt time.Time `gorm:"not null" json:"unlocked_at"`

	User  User            `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Badge BadgeDefinition `gorm:"foreignKey:BadgeID" json:"badge,omitempty"`
}

func (UserBadge) TableName() string {
	return "user_badges"
}

// ChallengeKind enumerates challenge cadences.
type ChallengeKind string

const (
	ChallengeDaily  ChallengeKind = "daily"
	ChallengeWeekly ChallengeKind = "weekly"
	ChallengeClass  ChallengeKind = "class"
)

// Challenge is a time-boxed objective set with a reward.
type Challenge struct {
	ID         uint              `gorm:"primaryKey" json:"id"`
	CreatedAt  time.Time         `json:"created_at"`
	Kind       ChallengeKind     `gorm:"type:varchar(20);not null;index" json:"kind"`
	Title      string            `gorm:"type:varchar(100);not null" json:"title"`
	Objectives datatypes.JSONMap `gorm:"type:jsonb;not null" json:"objectives"` // counter -> target
	RewardXP   int64             `gorm:"default:0" json:"reward_xp"`
	StartsAt   time.Time         `gorm:"not null;index" json:"starts_at"`
	EndsAt     time.Time         `gorm:"not null;index" json:"ends_at"`
}

func (Challenge) TableName() string {
	return "challenges"
}

// UserChallengeProgress tracks one user against one challenge.
type UserChallengeProgress struct {
	ID            uint              `gorm:"primaryKey" json:"id"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
	UserID        uint              `gorm:"not null;uniqueIndex:idx_user_challenge" json:"user_id"`
	ChallengeID   uint              `gorm:"not null;uniqueIndex:idx_user_challenge" json:"challenge_id"`
	Progress      datatypes.JSONMap `gorm:"type:jsonb;default:'{}'" json:"progress"`
	Completed     bool              `gorm:"default:false" json:"completed"`
	RewardClaimed bool              `gorm:"default:false" json:"reward_claimed"`

	User      User      `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Challenge Challenge `gorm:"foreignKey:ChallengeID;constraint:OnDelete:CASCADE" json:"challenge,omitempty"`
}

func (UserChallengeProgress) TableName() string {
	return "user_challenge_progress"
}
