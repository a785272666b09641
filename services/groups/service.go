package groups

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/djsoulspotti-ops/skajla/model"
	"github.com/djsoulspotti-ops/skajla/services/gamification"
	"github.com/djsoulspotti-ops/skajla/services/tenantguard"
	"github.com/djsoulspotti-ops/skajla/utils/apperr"
	"github.com/djsoulspotti-ops/skajla/utils/logging"
)

// Instant-group limits.
const (
	MaxActivePerCreator = 5
	MaxMembers          = 50
	MaxInvitees         = 50
	MinTTLHours         = 1
	MaxTTLHours         = 168

	inactivityWindow = 24 * time.Hour
)

// Service manages instant study groups: short-lived chats with a TTL, a
// creator and invitations.
type Service struct {
	db     *gorm.DB
	guard  *tenantguard.Guard
	engine *gamification.Engine
	log    *logging.Log
	now    func() time.Time
}

func NewService(db *gorm.DB, guard *tenantguard.Guard, engine *gamification.Engine, log *logging.Log) *Service {
	return &Service{db: db, guard: guard, engine: engine, log: log, now: time.Now}
}

// CreateInput carries the instant-group creation form.
type CreateInput struct {
	Name        string `json:"nome" validate:"required,min=3,max=100"`
	Topic       string `json:"topic" validate:"required,min=2,max=50"`
	Description string `json:"description" validate:"max=500"`
	TTLHours    int    `json:"durata_ore" validate:"required,min=1,max=168"`
	Public      bool   `json:"is_public"`
	InviteeIDs  []uint `json:"invitee_ids" validate:"max=50"`
}

// Create validates the form, enforces the per-creator cap and persists the
// group with its creator membership and invitations in one transaction.
func (s *Service) Create(ctx context.Context, creatorID, schoolID uint, in CreateInput) (*model.Chat, error) {
	if l := len(in.Name); l < 3 || l > 100 {
		return nil, apperr.InvalidInput("name must be 3-100 characters")
	}
	if l := len(in.Topic); l < 2 || l > 50 {
		return nil, apperr.InvalidInput("topic must be 2-50 characters")
	}
	if in.TTLHours < MinTTLHours || in.TTLHours > MaxTTLHours {
		return nil, apperr.InvalidInput("duration must be 1-168 hours")
	}
	if len(in.InviteeIDs) > MaxInvitees {
		return nil, apperr.InvalidInput("too many invitees")
	}

	now := s.now()
	var active int64
	err := s.db.WithContext(ctx).Model(&model.Chat{}).
		Where("creator_id = ? AND kind = ? AND active = ?", creatorID, model.ChatKindInstant, true).
		Where("expires_at IS NULL OR expires_at > ?", now).
		Count(&active).Error
	if err != nil {
		return nil, apperr.TransientStore("active group count failed", err)
	}
	if active >= MaxActivePerCreator {
		return nil, apperr.InvalidInput("active group limit reached")
	}

	for _, inviteeID := range in.InviteeIDs {
		if err := s.guard.RequireUserInTenant(ctx, inviteeID, schoolID); err != nil {
			return nil, err
		}
	}

	expires := now.Add(time.Duration(in.TTLHours) * time.Hour)
	chat := model.Chat{
		SchoolID:    schoolID,
		Kind:        model.ChatKindInstant,
		Name:        in.Name,
		Topic:       in.Topic,
		Description: in.Description,
		IsPublic:    in.Public,
		CreatorID:   creatorID,
		Active:      true,
		ExpiresAt:   &expires,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&chat).Error; err != nil {
			return err
		}
		if err := tx.Create(&model.ChatMembership{
			ChatID: chat.ID, UserID: creatorID, Role: model.ChatRoleAdmin,
		}).Error; err != nil {
			return err
		}
		for _, inviteeID := range in.InviteeIDs {
			if inviteeID == creatorID {
				continue
			}
			invite := model.ChatInvite{ChatID: chat.ID, InviteeID: inviteeID, InviterID: creatorID}
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&invite).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, apperr.TransientStore("group create failed", err)
	}

	if _, err := s.engine.Award(ctx, creatorID, gamification.ActionGroupCreated, 1.0, "gruppo "+in.Name, nil); err != nil {
		s.log.Base.Warn("group xp award failed", zap.Uint("user_id", creatorID), zap.Error(err))
	}
	return &chat, nil
}

func (s *Service) load(ctx context.Context, chatID, schoolID uint) (*model.Chat, error) {
	var chat model.Chat
	err := s.db.WithContext(ctx).
		Where("id = ? AND kind = ?", chatID, model.ChatKindInstant).
		First(&chat).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("group not found")
	}
	if err != nil {
		return nil, apperr.TransientStore("group lookup failed", err)
	}
	if chat.SchoolID != schoolID {
		return nil, apperr.New(apperr.KindTenantViolation, "TENANT_VIOLATION", "group not found")
	}
	return &chat, nil
}

// Join adds a user to a public, live group below the member cap.
func (s *Service) Join(ctx context.Context, chatID, userID, schoolID uint) error {
	chat, err := s.load(ctx, chatID, schoolID)
	if err != nil {
		return err
	}
	if !chat.IsPublic {
		// Private groups are entered through an invite.
		var invited int64
		if err := s.db.WithContext(ctx).Model(&model.ChatInvite{}).
			Where("chat_id = ? AND invitee_id = ?", chatID, userID).
			Count(&invited).Error; err != nil {
			return apperr.TransientStore("invite lookup failed", err)
		}
		if invited == 0 {
			return apperr.InvalidInput("group is private")
		}
	}
	if !chat.Active || chat.Expired(s.now()) {
		return apperr.InvalidInput("group has expired")
	}

	var members int64
	if err := s.db.WithContext(ctx).Model(&model.ChatMembership{}).
		Where("chat_id = ?", chatID).Count(&members).Error; err != nil {
		return apperr.TransientStore("member count failed", err)
	}
	if members >= MaxMembers {
		return apperr.InvalidInput("group is full")
	}

	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).
		Create(&model.ChatMembership{ChatID: chatID, UserID: userID, Role: model.ChatRoleMember})
	if res.Error != nil {
		return apperr.TransientStore("join failed", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.Duplicate("already a member")
	}

	// A consumed invite is done.
	s.db.WithContext(ctx).Where("chat_id = ? AND invitee_id = ?", chatID, userID).Delete(&model.ChatInvite{})
	return nil
}

// Leave removes a member. The creator cannot leave, only delete.
func (s *Service) Leave(ctx context.Context, chatID, userID, schoolID uint) error {
	chat, err := s.load(ctx, chatID, schoolID)
	if err != nil {
		return err
	}
	if chat.CreatorID == userID {
		return apperr.InvalidInput("the creator must delete the group instead of leaving")
	}

	res := s.db.WithContext(ctx).
		Where("chat_id = ? AND user_id = ?", chatID, userID).
		Delete(&model.ChatMembership{})
	if res.Error != nil {
		return apperr.TransientStore("leave failed", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("not a member")
	}
	return nil
}

// Delete tears a group down. Creator-only; memberships and invites go with it.
func (s *Service) Delete(ctx context.Context, chatID, callerID, schoolID uint) error {
	chat, err := s.load(ctx, chatID, schoolID)
	if err != nil {
		return err
	}
	if chat.CreatorID != callerID {
		return apperr.New(apperr.KindTenantViolation, "FORBIDDEN", "only the creator can delete the group")
	}
	return s.hardDelete(ctx, chatID)
}

func (s *Service) hardDelete(ctx context.Context, chatID uint) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("chat_id = ?", chatID).Delete(&model.ChatInvite{}).Error; err != nil {
			return err
		}
		if err := tx.Where("chat_id = ?", chatID).Delete(&model.ChatMembership{}).Error; err != nil {
			return err
		}
		return tx.Unscoped().Delete(&model.Chat{}, chatID).Error
	})
	if err != nil {
		return apperr.TransientStore("group delete failed", err)
	}
	return nil
}

// Discover lists live public groups of the school, optionally by topic.
func (s *Service) Discover(ctx context.Context, schoolID uint, topic string) ([]model.Chat, error) {
	q := s.db.WithContext(ctx).
		Where("school_id = ? AND kind = ? AND is_public = ? AND active = ?", schoolID, model.ChatKindInstant, true, true).
		Where("expires_at > ?", s.now())
	if topic != "" {
		q = q.Where("topic = ?", topic)
	}

	var chats []model.Chat
	if err := q.Order("last_message_at DESC NULLS LAST").Limit(50).Find(&chats).Error; err != nil {
		return nil, apperr.TransientStore("group discovery failed", err)
	}
	return chats, nil
}

// SweepExpired removes groups past their TTL. Runs hourly.
func (s *Service) SweepExpired(ctx context.Context) (int, error) {
	var ids []uint
	if err := s.db.WithContext(ctx).Model(&model.Chat{}).
		Where("kind = ? AND expires_at < ?", model.ChatKindInstant, s.now()).
		Pluck("id", &ids).Error; err != nil {
		return 0, err
	}

	deleted := 0
	for _, id := range ids {
		if err := s.hardDelete(ctx, id); err != nil {
			s.log.Base.Warn("expired group delete failed", zap.Uint("chat_id", id), zap.Error(err))
			continue
		}
		deleted++
	}
	return deleted, nil
}

// SweepInactive removes groups silent for a day. Runs every six hours.
func (s *Service) SweepInactive(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-inactivityWindow)
	var ids []uint
	err := s.db.WithContext(ctx).Model(&model.Chat{}).
		Where("kind = ?", model.ChatKindInstant).
		Where("last_message_at < ? OR (last_message_at IS NULL AND created_at < ?)", cutoff, cutoff).
		Pluck("id", &ids).Error
	if err != nil {
		return 0, err
	}

	deleted := 0
	for _, id := range ids {
		if err := s.hardDelete(ctx, id); err != nil {
			s.log.Base.Warn("inactive group delete failed", zap.Uint("chat_id", id), zap.Error(err))
			continue
		}
		deleted++
	}
	return deleted, nil
}
