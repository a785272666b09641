package presence

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"gorm.io/gorm"

	"github.com/djsoulspotti-ops/skajla/model"
	"github.com/djsoulspotti-ops/skajla/utils/cache"
)

const (
	// TTL is the liveness window for a presence key; heartbeats arrive every
	// 60s, so one missed heartbeat keeps the user online.
	TTL = 120 * time.Second
)

func onlineKey(schoolID uint) string { return fmt.Sprintf("online:school:%d", schoolID) }
func aliveKey(userID uint) string    { return fmt.Sprintf("presence:%d", userID) }

// Service tracks who is online per school. The per-school set answers roster
// queries; the per-user TTL key is the liveness source of truth, so a crashed
// client goes offline even without an explicit disconnect.
type Service struct {
	hot *cache.RedisCache
	db  *gorm.DB
}

// New creates a presence service
func New(hot *cache.RedisCache, db *gorm.DB) *Service {
	return &Service{hot: hot, db: db}
}

// SetOnline records a user as online. Idempotent: repeated connects only
// refresh the TTL.
func (s *Service) SetOnline(ctx context.Context, userID, schoolID uint) error {
	if err := s.hot.SAdd(ctx, onlineKey(schoolID), userID); err != nil {
		return err
	}
	if err := s.hot.Set(ctx, aliveKey(userID), "alive", TTL); err != nil {
		return err
	}

	now := time.Now()
	return s.db.WithContext(ctx).Model(&model.User{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{"status_online": true, "last_seen": now}).Error
}

// Heartbeat refreshes the liveness TTL.
func (s *Service) Heartbeat(ctx context.Context, userID uint) error {
	return s.hot.Set(ctx, aliveKey(userID), "alive", TTL)
}

// SetOffline removes a user from the online roster.
func (s *Service) SetOffline(ctx context.Context, userID, schoolID uint) error {
	if err := s.hot.SRem(ctx, onlineKey(schoolID), userID); err != nil {
		return err
	}
	if err := s.hot.Delete(ctx, aliveKey(userID)); err != nil {
		return err
	}

	now := time.Now()
	return s.db.WithContext(ctx).Model(&model.User{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{"status_online": false, "last_seen": now}).Error
}

// OnlineInSchool returns the ids of currently-online users for a school.
// Members whose liveness key has expired are treated as offline even if the
// set still lists them; the reconciler cleans those up.
func (s *Service) OnlineInSchool(ctx context.Context, schoolID uint) ([]uint, error) {
	members, err := s.hot.SMembers(ctx, onlineKey(schoolID))
	if err != nil {
		return nil, err
	}

	online := make([]uint, 0, len(members))
	for _, m := range members {
		id, err := strconv.ParseUint(m, 10, 64)
		if err != nil {
			continue
		}
		alive, err := s.hot.Exists(ctx, aliveKey(uint(id)))
		if err != nil || !alive {
			continue
		}
		online = append(online, uint(id))
	}
	return online, nil
}

// IsOnline reports liveness for a single user.
func (s *Service) IsOnline(ctx context.Context, userID uint) bool {
	alive, err := s.hot.Exists(ctx, aliveKey(userID))
	return err == nil && alive
}

// Reconcile scrubs stale members from every online set. Runs every minute
// from the job runner.
func (s *Service) Reconcile(ctx context.Context) (removed int, err error) {
	keys, err := s.hot.Keys(ctx, "online:school:*")
	if err != nil {
		return 0, err
	}

	for _, key := range keys {
		members, err := s.hot.SMembers(ctx, key)
		if err != nil {
			continue
		}
		for _, m := range members {
			id, err := strconv.ParseUint(m, 10, 64)
			if err != nil {
				_ = s.hot.SRem(ctx, key, m)
				removed++
				continue
			}
			alive, err := s.hot.Exists(ctx, aliveKey(uint(id)))
			if err == nil && !alive {
				_ = s.hot.SRem(ctx, key, m)
				_ = s.db.WithContext(ctx).Model(&model.User{}).
					Where("id = ?", uint(id)).
					Update("status_online", false).Error
				removed++
			}
		}
	}
	return removed, nil
}
