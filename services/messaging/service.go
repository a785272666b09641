package messaging

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/djsoulspotti-ops/skajla/model"
	"github.com/djsoulspotti-ops/skajla/services/tenantguard"
	"github.com/djsoulspotti-ops/skajla/utils/apperr"
	"github.com/djsoulspotti-ops/skajla/utils/cache"
	"github.com/djsoulspotti-ops/skajla/utils/metrics"
)

const (
	// HistoryLimit is the page size for message history.
	HistoryLimit = 100

	conversationsCacheTTL = 30 * time.Second
)

// Service is the messaging fabric: conversations, messages, receipts.
// Message inserts and the parent chat's last-message timestamp commit in one
// transaction; fan-out is the caller's job and happens only after commit.
type Service struct {
	db    *gorm.DB
	guard *tenantguard.Guard
	hot   *cache.RedisCache
}

func NewService(db *gorm.DB, guard *tenantguard.Guard, hot *cache.RedisCache) *Service {
	return &Service{db: db, guard: guard, hot: hot}
}

func conversationsCacheKey(userID uint) string {
	return fmt.Sprintf("conversations:%d", userID)
}

// RequireMembership returns a tenant-violation error when the user is not a
// member of the chat. Sender identity always comes from the session, so a
// failed check here means a forged chat_id.
func (s *Service) RequireMembership(ctx context.Context, chatID, userID uint) error {
	var count int64
	if err := s.db.WithContext(ctx).Model(&model.ChatMembership{}).
		Where("chat_id = ? AND user_id = ?", chatID, userID).
		Count(&count).Error; err != nil {
		return apperr.TransientStore("membership lookup failed", err)
	}
	if count == 0 {
		return apperr.New(apperr.KindTenantViolation, "NOT_A_MEMBER", "not a member of this conversation")
	}
	return nil
}

// MessageAuthor returns the sender of a message, checking it belongs to the
// chat so a forged message_id cannot credit across conversations.
func (s *Service) MessageAuthor(ctx context.Context, chatID, messageID uint) (uint, error) {
	var msg model.Message
	err := s.db.WithContext(ctx).Select("sender_id").
		Where("id = ? AND chat_id = ?", messageID, chatID).
		First(&msg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, apperr.NotFound("message not found")
	}
	if err != nil {
		return 0, apperr.TransientStore("message lookup failed", err)
	}
	return msg.SenderID, nil
}

// SendInput carries everything needed to persist one message.
type SendInput struct {
	ChatID        uint
	SenderID      uint
	Body          string
	Kind          model.MessageKind
	AttachmentURL string
}

// Send persists a message after checking membership and chat liveness.
// The insert and the chat's last_message_at update share a transaction so a
// conversation list can never show a newer timestamp than its history.
func (s *Service) Send(ctx context.Context, in SendInput) (*model.Message, error) {
	if err := s.RequireMembership(ctx, in.ChatID, in.SenderID); err != nil {
		return nil, err
	}

	var chat model.Chat
	if err := s.db.WithContext(ctx).Select("id", "active", "expires_at").First(&chat, in.ChatID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("conversation not found")
		}
		return nil, apperr.TransientStore("chat lookup failed", err)
	}
	if !chat.Active || chat.Expired(time.Now()) {
		return nil, apperr.InvalidInput("conversation is closed")
	}

	msg := model.Message{
		ChatID:        in.ChatID,
		SenderID:      in.SenderID,
		Body:          in.Body,
		Kind:          in.Kind,
		AttachmentURL: in.AttachmentURL,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&msg).Error; err != nil {
			return err
		}
		return tx.Model(&model.Chat{}).Where("id = ?", in.ChatID).
			Update("last_message_at", msg.CreatedAt).Error
	})
	if err != nil {
		return nil, apperr.TransientStore("message persist failed", err)
	}

	metrics.MessagesPersisted.Inc()

	// Conversation previews for members are now stale; drop them lazily.
	s.invalidateConversations(ctx, in.ChatID)

	return &msg, nil
}

func (s *Service) invalidateConversations(ctx context.Context, chatID uint) {
	if s.hot == nil {
		return
	}
	var memberIDs []uint
	if err := s.db.WithContext(ctx).Model(&model.ChatMembership{}).
		Where("chat_id = ?", chatID).Pluck("user_id", &memberIDs).Error; err != nil {
		return
	}
	keys := make([]string, 0, len(memberIDs))
	for _, id := range memberIDs {
		keys = append(keys, conversationsCacheKey(id))
	}
	if len(keys) > 0 {
		_ = s.hot.Delete(ctx, keys...)
	}
}

// MarkRead upserts read receipts for the given messages. An empty id list
// marks everything in the chat up to now. Duplicate receipts are ignored.
func (s *Service) MarkRead(ctx context.Context, chatID, userID uint, messageIDs []uint) error {
	if err := s.RequireMembership(ctx, chatID, userID); err != nil {
		return err
	}

	q := s.db.WithContext(ctx).Model(&model.Message{}).
		Where("chat_id = ? AND sender_id <> ?", chatID, userID)
	if len(messageIDs) > 0 {
		q = q.Where("id IN ?", messageIDs)
	}
	var ids []uint
	if err := q.Pluck("id", &ids).Error; err != nil {
		return apperr.TransientStore("message lookup failed", err)
	}
	if len(ids) == 0 {
		return nil
	}

	now := time.Now()
	receipts := make([]model.ReadReceipt, 0, len(ids))
	for _, id := range ids {
		receipts = append(receipts, model.ReadReceipt{MessageID: id, UserID: userID, ReadAt: now})
	}

	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "message_id"}, {Name: "user_id"}},
		DoNothing: true,
	}).Create(&receipts).Error; err != nil {
		return apperr.TransientStore("receipt upsert failed", err)
	}

	if s.hot != nil {
		_ = s.hot.Delete(ctx, conversationsCacheKey(userID))
	}
	return nil
}

// History returns the newest messages of a chat, oldest first, capped at
// HistoryLimit. beforeID > 0 pages backwards.
func (s *Service) History(ctx context.Context, chatID, userID uint, beforeID uint) ([]model.Message, error) {
	if err := s.RequireMembership(ctx, chatID, userID); err != nil {
		return nil, err
	}

	q := s.db.WithContext(ctx).Where("chat_id = ?", chatID)
	if beforeID > 0 {
		q = q.Where("id < ?", beforeID)
	}

	var msgs []model.Message
	if err := q.Order("id DESC").Limit(HistoryLimit).Find(&msgs).Error; err != nil {
		return nil, apperr.TransientStore("history query failed", err)
	}

	// Reverse into chronological order.
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// ConversationSummary is one row of the conversation list.
type ConversationSummary struct {
	Chat        model.Chat     `json:"chat"`
	LastMessage *model.Message `json:"last_message,omitempty"`
	UnreadCount int64          `json:"unread_count"`
	MemberCount int64          `json:"member_count"`
}

// Conversations lists the user's chats newest-activity first, with unread
// counts. Results are cached for a short window since the list is hit on
// every app foreground.
func (s *Service) Conversations(ctx context.Context, userID, schoolID uint) ([]ConversationSummary, error) {
	cacheKey := conversationsCacheKey(userID)
	if s.hot != nil {
		var cached []ConversationSummary
		if err := s.hot.GetJSON(ctx, cacheKey, &cached); err == nil {
			return cached, nil
		}
	}

	var chats []model.Chat
	err := s.db.WithContext(ctx).
		Joins("JOIN chat_memberships cm ON cm.chat_id = chats.id AND cm.user_id = ?", userID).
		Where("chats.school_id = ? AND chats.active = ?", schoolID, true).
		Order("chats.last_message_at DESC NULLS LAST").
		Find(&chats).Error
	if err != nil {
		return nil, apperr.TransientStore("conversation query failed", err)
	}

	out := make([]ConversationSummary, 0, len(chats))
	for i := range chats {
		chat := chats[i]
		summary := ConversationSummary{Chat: chat}

		var last model.Message
		if err := s.db.WithContext(ctx).Where("chat_id = ?", chat.ID).
			Order("id DESC").First(&last).Error; err == nil {
			summary.LastMessage = &last
		}

		if err := s.db.WithContext(ctx).Model(&model.Message{}).
			Where("chat_id = ? AND sender_id <> ?", chat.ID, userID).
			Where("id NOT IN (?)", s.db.Model(&model.ReadReceipt{}).Select("message_id").Where("user_id = ?", userID)).
			Count(&summary.UnreadCount).Error; err != nil {
			return nil, apperr.TransientStore("unread count failed", err)
		}

		if err := s.db.WithContext(ctx).Model(&model.ChatMembership{}).
			Where("chat_id = ?", chat.ID).Count(&summary.MemberCount).Error; err != nil {
			return nil, apperr.TransientStore("member count failed", err)
		}

		out = append(out, summary)
	}

	if s.hot != nil {
		_ = s.hot.SetJSON(ctx, cacheKey, out, conversationsCacheTTL)
	}
	return out, nil
}

// OpenPrivate finds or creates the private chat between two users of the
// same school. The membership pair is canonical regardless of who opened it.
func (s *Service) OpenPrivate(ctx context.Context, schoolID, userID, peerID uint) (*model.Chat, error) {
	if userID == peerID {
		return nil, apperr.InvalidInput("cannot open a conversation with yourself")
	}
	if err := s.guard.RequireUserInTenant(ctx, peerID, schoolID); err != nil {
		return nil, err
	}

	var existing model.Chat
	err := s.db.WithContext(ctx).
		Joins("JOIN chat_memberships a ON a.chat_id = chats.id AND a.user_id = ?", userID).
		Joins("JOIN chat_memberships b ON b.chat_id = chats.id AND b.user_id = ?", peerID).
		Where("chats.kind = ? AND chats.school_id = ?", model.ChatKindPrivate, schoolID).
		First(&existing).Error
	if err == nil {
		return &existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.TransientStore("private chat lookup failed", err)
	}

	var peer model.User
	if err := s.db.WithContext(ctx).Select("id", "first_name", "last_name").First(&peer, peerID).Error; err != nil {
		return nil, apperr.TransientStore("peer lookup failed", err)
	}

	chat := model.Chat{
		SchoolID:  schoolID,
		Kind:      model.ChatKindPrivate,
		Name:      fmt.Sprintf("%s %s", peer.FirstName, peer.LastName),
		CreatorID: userID,
		Active:    true,
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&chat).Error; err != nil {
			return err
		}
		members := []model.ChatMembership{
			{ChatID: chat.ID, UserID: userID, Role: model.ChatRoleMember},
			{ChatID: chat.ID, UserID: peerID, Role: model.ChatRoleMember},
		}
		return tx.Create(&members).Error
	})
	if err != nil {
		return nil, apperr.TransientStore("private chat create failed", err)
	}

	if s.hot != nil {
		_ = s.hot.Delete(ctx, conversationsCacheKey(userID), conversationsCacheKey(peerID))
	}
	return &chat, nil
}

// EnsureClassChat returns the class chat, creating it on first use and
// enrolling every active student of the class plus its teachers.
func (s *Service) EnsureClassChat(ctx context.Context, schoolID, classID uint) (*model.Chat, error) {
	if err := s.guard.RequireClassInTenant(ctx, classID, schoolID); err != nil {
		return nil, err
	}

	var chat model.Chat
	err := s.db.WithContext(ctx).
		Where("kind = ? AND class_id = ? AND school_id = ?", model.ChatKindClass, classID, schoolID).
		First(&chat).Error
	if err == nil {
		return &chat, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.TransientStore("class chat lookup failed", err)
	}

	var class model.Class
	if err := s.db.WithContext(ctx).First(&class, classID).Error; err != nil {
		return nil, apperr.TransientStore("class lookup failed", err)
	}

	var studentIDs []uint
	if err := s.db.WithContext(ctx).Model(&model.User{}).
		Where("class_id = ? AND active = ?", classID, true).
		Pluck("id", &studentIDs).Error; err != nil {
		return nil, apperr.TransientStore("student lookup failed", err)
	}
	var teacherIDs []uint
	if err := s.db.WithContext(ctx).Model(&model.TeacherClass{}).
		Where("class_id = ?", classID).
		Pluck("teacher_id", &teacherIDs).Error; err != nil {
		return nil, apperr.TransientStore("teacher lookup failed", err)
	}

	chat = model.Chat{
		SchoolID:  schoolID,
		Kind:      model.ChatKindClass,
		Name:      class.Name,
		ClassID:   &classID,
		CreatorID: firstOr(teacherIDs, firstOr(studentIDs, 0)),
		Active:    true,
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&chat).Error; err != nil {
			return err
		}
		var members []model.ChatMembership
		for _, id := range teacherIDs {
			members = append(members, model.ChatMembership{ChatID: chat.ID, UserID: id, Role: model.ChatRoleAdmin})
		}
		for _, id := range studentIDs {
			members = append(members, model.ChatMembership{ChatID: chat.ID, UserID: id, Role: model.ChatRoleMember})
		}
		if len(members) == 0 {
			return nil
		}
		return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&members).Error
	})
	if err != nil {
		return nil, apperr.TransientStore("class chat create failed", err)
	}
	return &chat, nil
}

func firstOr(ids []uint, fallback uint) uint {
	if len(ids) > 0 {
		return ids[0]
	}
	return fallback
}
