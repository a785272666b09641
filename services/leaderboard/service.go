package leaderboard

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/djsoulspotti-ops/skajla/utils/apperr"
	"github.com/djsoulspotti-ops/skajla/utils/cache"
)

// Period selects the XP aggregation window.
type Period string

const (
	PeriodDaily    Period = "daily"
	PeriodWeekly   Period = "weekly"
	PeriodMonthly  Period = "monthly"
	PeriodSeasonal Period = "seasonal"
	PeriodLifetime Period = "lifetime"
)

const cacheTTL = 30 * time.Second

// Entry is one leaderboard row.
type Entry struct {
	Position  int    `json:"position"`
	UserID    uint   `json:"user_id"`
	FirstName string `json:"nome"`
	LastName  string `json:"cognome"`
	AvatarID  string `json:"avatar_id"`
	Level     int    `json:"level"`
	XP        int64  `json:"xp"`
}

// SmartView is the condensed board: podium, the caller's neighborhood and
// their absolute position.
type SmartView struct {
	Top      []Entry `json:"top"`
	Nearby   []Entry `json:"nearby"`
	Position int     `json:"position"`
	Total    int     `json:"total"`
}

// Service ranks users of one school by XP earned in a window. Rankings are
// recomputed from the XPEvent ledger, not the profile totals, so a window
// never needs its own running counters.
type Service struct {
	db  *gorm.DB
	hot *cache.RedisCache
	now func() time.Time
}

func NewService(db *gorm.DB, hot *cache.RedisCache) *Service {
	return &Service{db: db, hot: hot, now: time.Now}
}

// periodStart maps a period to its window start. Seasons follow the school
// year: trimesters starting 1 Sep, 1 Jan and 1 Apr.
func (s *Service) periodStart(p Period) (time.Time, error) {
	now := s.now()
	y, m, d := now.Date()
	switch p {
	case PeriodDaily:
		return time.Date(y, m, d, 0, 0, 0, 0, now.Location()), nil
	case PeriodWeekly:
		weekday := int(now.Weekday())
		if weekday == 0 {
			weekday = 7 // Monday-based weeks
		}
		return time.Date(y, m, d, 0, 0, 0, 0, now.Location()).AddDate(0, 0, -(weekday - 1)), nil
	case PeriodMonthly:
		return time.Date(y, m, 1, 0, 0, 0, 0, now.Location()), nil
	case PeriodSeasonal:
		switch {
		case m >= time.September:
			return time.Date(y, time.September, 1, 0, 0, 0, 0, now.Location()), nil
		case m >= time.April:
			return time.Date(y, time.April, 1, 0, 0, 0, 0, now.Location()), nil
		default:
			return time.Date(y, time.January, 1, 0, 0, 0, 0, now.Location()), nil
		}
	case PeriodLifetime:
		return time.Time{}, nil
	}
	return time.Time{}, apperr.InvalidInput(fmt.Sprintf("unknown period %q", p))
}

// Board returns the full ranking for a school, capped at limit.
func (s *Service) Board(ctx context.Context, schoolID uint, period Period, limit int) ([]Entry, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	cacheKey := fmt.Sprintf("leaderboard:%d:%s:%d", schoolID, period, limit)
	if s.hot != nil {
		var cached []Entry
		if err := s.hot.GetJSON(ctx, cacheKey, &cached); err == nil {
			return cached, nil
		}
	}

	entries, err := s.rank(ctx, schoolID, period)
	if err != nil {
		return nil, err
	}
	if len(entries) > limit {
		entries = entries[:limit]
	}

	if s.hot != nil {
		_ = s.hot.SetJSON(ctx, cacheKey, entries, cacheTTL)
	}
	return entries, nil
}

// Smart builds the condensed view around one user.
func (s *Service) Smart(ctx context.Context, schoolID, userID uint, period Period) (*SmartView, error) {
	entries, err := s.rank(ctx, schoolID, period)
	if err != nil {
		return nil, err
	}

	view := &SmartView{Total: len(entries)}
	for i := 0; i < len(entries) && i < 3; i++ {
		view.Top = append(view.Top, entries[i])
	}

	pos := -1
	for i := range entries {
		if entries[i].UserID == userID {
			pos = i
			break
		}
	}
	if pos < 0 {
		return view, nil
	}
	view.Position = pos + 1

	lo := pos - 2
	if lo < 0 {
		lo = 0
	}
	hi := pos + 3
	if hi > len(entries) {
		hi = len(entries)
	}
	view.Nearby = entries[lo:hi]
	return view, nil
}

func (s *Service) rank(ctx context.Context, schoolID uint, period Period) ([]Entry, error) {
	since, err := s.periodStart(period)
	if err != nil {
		return nil, err
	}

	q := s.db.WithContext(ctx).Table("xp_events").
		Select("xp_events.user_id, SUM(xp_events.delta) AS xp, users.first_name, users.last_name, gamification_profiles.level, gamification_profiles.avatar_id").
		Joins("JOIN users ON users.id = xp_events.user_id AND users.school_id = ? AND users.active = ?", schoolID, true).
		Joins("JOIN gamification_profiles ON gamification_profiles.user_id = xp_events.user_id").
		Group("xp_events.user_id, users.first_name, users.last_name, gamification_profiles.level, gamification_profiles.avatar_id").
		Order("xp DESC, xp_events.user_id ASC")
	if !since.IsZero() {
		q = q.Where("xp_events.created_at >= ?", since)
	}

	var rows []struct {
		UserID    uint
		XP        int64
		FirstName string
		LastName  string
		Level     int
		AvatarID  string
	}
	if err := q.Scan(&rows).Error; err != nil {
		return nil, apperr.TransientStore("leaderboard query failed", err)
	}

	entries := make([]Entry, len(rows))
	for i, r := range rows {
		entries[i] = Entry{
			Position:  i + 1,
			UserID:    r.UserID,
			FirstName: r.FirstName,
			LastName:  r.LastName,
			AvatarID:  r.AvatarID,
			Level:     r.Level,
			XP:        r.XP,
		}
	}
	return entries, nil
}
