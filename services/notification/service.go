package notification

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/djsoulspotti-ops/skajla/model"
	"github.com/djsoulspotti-ops/skajla/services/gamification"
	"github.com/djsoulspotti-ops/skajla/utils/apperr"
)

// Service stores notifications durably and pushes them over the realtime
// fabric when the target is online.
type Service struct {
	db *gorm.DB
	bc gamification.Broadcaster
}

func NewService(db *gorm.DB, bc gamification.Broadcaster) *Service {
	if bc == nil {
		bc = gamification.NopBroadcaster
	}
	return &Service{db: db, bc: bc}
}

// Notify persists a notification and pushes it to the user's room.
func (s *Service) Notify(ctx context.Context, n model.UserNotification) error {
	if n.UserID == 0 || n.Title == "" {
		return apperr.InvalidInput("user and title are required")
	}
	if n.Type == "" {
		n.Type = model.NotificationTypeInfo
	}
	if n.Category == "" {
		n.Category = model.NotificationCategoryGeneral
	}

	if err := s.db.WithContext(ctx).Create(&n).Error; err != nil {
		return apperr.TransientStore("notification persist failed", err)
	}
	s.bc.ToUser(n.UserID, "notification", n)
	return nil
}

// ListOptions filters a user's notification feed.
type ListOptions struct {
	UserID     uint
	UnreadOnly bool
	Category   string
	Limit      int
	Offset     int
}

// List returns a page of the user's notifications plus the total count.
func (s *Service) List(ctx context.Context, opts ListOptions) ([]model.UserNotification, int64, error) {
	if opts.Limit <= 0 || opts.Limit > 100 {
		opts.Limit = 50
	}

	q := s.db.WithContext(ctx).Model(&model.UserNotification{}).Where("user_id = ?", opts.UserID)
	if opts.UnreadOnly {
		q = q.Where("read = ?", false)
	}
	if opts.Category != "" {
		q = q.Where("category = ?", opts.Category)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, apperr.TransientStore("notification count failed", err)
	}

	var rows []model.UserNotification
	if err := q.Order("created_at DESC").Limit(opts.Limit).Offset(opts.Offset).Find(&rows).Error; err != nil {
		return nil, 0, apperr.TransientStore("notification query failed", err)
	}
	return rows, total, nil
}

// UnreadCount returns how many notifications the user has not read.
func (s *Service) UnreadCount(ctx context.Context, userID uint) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&model.UserNotification{}).
		Where("user_id = ? AND read = ?", userID, false).Count(&count).Error
	if err != nil {
		return 0, apperr.TransientStore("unread count failed", err)
	}
	return count, nil
}

// MarkRead marks one notification read. Only the owner can.
func (s *Service) MarkRead(ctx context.Context, userID, notificationID uint) error {
	res := s.db.WithContext(ctx).Model(&model.UserNotification{}).
		Where("id = ? AND user_id = ?", notificationID, userID).
		Update("read", true)
	if res.Error != nil {
		return apperr.TransientStore("mark read failed", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("notification not found")
	}
	return nil
}

// MarkAllRead marks the whole feed read.
func (s *Service) MarkAllRead(ctx context.Context, userID uint) (int64, error) {
	res := s.db.WithContext(ctx).Model(&model.UserNotification{}).
		Where("user_id = ? AND read = ?", userID, false).
		Update("read", true)
	if res.Error != nil {
		return 0, apperr.TransientStore("mark all read failed", res.Error)
	}
	return res.RowsAffected, nil
}

// Delete removes one notification from the feed.
func (s *Service) Delete(ctx context.Context, userID, notificationID uint) error {
	res := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", notificationID, userID).
		Delete(&model.UserNotification{})
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrRecordNotFound) {
			return apperr.NotFound("notification not found")
		}
		return apperr.TransientStore("notification delete failed", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("notification not found")
	}
	return nil
}
