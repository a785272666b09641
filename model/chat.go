package model

import (
	"time"

	"gorm.io/gorm"
)

// ChatKind enumerates the chat flavours the platform supports.
type ChatKind string

const (
	ChatKindClass   ChatKind = "class"
	ChatKindSubject ChatKind = "subject"
	ChatKindPrivate ChatKind = "private"
	ChatKindInstant ChatKind = "instant"
	ChatKindSystem  ChatKind = "system"
)

// Chat is a conversation scoped to one school. Instant groups are chats with
// an expiration; they also carry topic/description/visibility.
type Chat struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`
	SchoolID      uint           `gorm:"not null;index" json:"school_id"`
	Kind          ChatKind       `gorm:"type:varchar(20);not null;index" json:"kind"`
	Name          string         `gorm:"type:varchar(100);not null" json:"name"`
	ClassID       *uint          `gorm:"index" json:"class_id,omitempty"`
	Subject       string         `gorm:"type:varchar(100)" json:"subject,omitempty"`
	Topic         string         `gorm:"type:varchar(50)" json:"topic,omitempty"`
	Description   string         `gorm:"type:text" json:"description,omitempty"`
	IsPublic      bool           `gorm:"default:false" json:"is_public"`
	CreatorID     uint           `gorm:"not null;index" json:"creator_id"`
	Active        bool           `gorm:"default:true;index" json:"attivo"`
	ExpiresAt     *time.Time     `gorm:"index" json:"expires_at,omitempty"`
	LastMessageAt *time.Time     `gorm:"index" json:"ultimo_messaggio_data,omitempty"`

	School  School `gorm:"foreignKey:SchoolID;constraint:OnDelete:CASCADE" json:"-"`
	Creator User   `gorm:"foreignKey:CreatorID" json:"-"`

	Members  []ChatMembership `gorm:"foreignKey:ChatID;constraint:OnDelete:CASCADE" json:"-"`
	Messages []Message        `gorm:"foreignKey:ChatID;constraint:OnDelete:CASCADE" json:"-"`
	Invites  []ChatInvite     `gorm:"foreignKey:ChatID;constraint:OnDelete:CASCADE" json:"-"`
}

func (Chat) TableName() string {
	return "chats"
}

// Expired reports whether an instant group has passed its TTL.
func (c *Chat) Expired(now time.Time) bool {
	return c.ExpiresAt != nil && now.After(*c.ExpiresAt)
}

// Chat-level member roles.
const (
	ChatRoleAdmin  = "admin"
	ChatRoleMember = "member"
)

// ChatMembership links a user to a chat. Unique per (chat, user).
type ChatMembership struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	ChatID    uint      `gorm:"not null;uniqueIndex:idx_chat_member" json:"chat_id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_chat_member;index" json:"user_id"`
	Role      string    `gorm:"type:varchar(20);default:'member'" json:"role"`

	Chat Chat `gorm:"foreignKey:ChatID;constraint:OnDelete:CASCADE" json:"-"`
	User User `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
}

func (ChatMembership) TableName() string {
	return "chat_memberships"
}

// ChatInvite is a pending invitation into an instant group. Unique per
// (chat, invitee).
type ChatInvite struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	ChatID    uint      `gorm:"not null;uniqueIndex:idx_chat_invite" json:"chat_id"`
	InviteeID uint      `gorm:"not null;uniqueIndex:idx_chat_invite;index" json:"invitee_id"`
	InviterID uint      `gorm:"not null" json:"inviter_id"`

	Chat    Chat `gorm:"foreignKey:ChatID;constraint:OnDelete:CASCADE" json:"-"`
	Invitee User `gorm:"foreignKey:InviteeID;constraint:OnDelete:CASCADE" json:"-"`
}

func (ChatInvite) TableName() string {
	return "chat_invites"
}

// MessageKind enumerates message payload flavours.
type MessageKind string

const (
	MessageKindText       MessageKind = "text"
	MessageKindAttachment MessageKind = "attachment"
	MessageKindSystem     MessageKind = "system"
)

// Message is immutable after insert. Sender must be a member of the chat.
type Message struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	CreatedAt     time.Time      `gorm:"index" json:"created_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`
	ChatID        uint           `gorm:"not null;index" json:"chat_id"`
	SenderID      uint           `gorm:"not null;index" json:"sender_id"`
	Body          string         `gorm:"type:text;not null" json:"body"`
	Kind          MessageKind    `gorm:"type:varchar(20);default:'text'" json:"kind"`
	AttachmentURL string         `gorm:"type:varchar(512)" json:"attachment_url,omitempty"`

	Chat   Chat `gorm:"foreignKey:ChatID;constraint:OnDelete:CASCADE" json:"-"`
	Sender User `gorm:"foreignKey:SenderID" json:"-"`

	Receipts []ReadReceipt `gorm:"foreignKey:MessageID;constraint:OnDelete:CASCADE" json:"-"`
}

func (Message) TableName() string {
	return "messages"
}

// ReadReceipt records that a user has read a message. Unique per pair.
type ReadReceipt struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	MessageID uint      `gorm:"not null;uniqueIndex:idx_receipt" json:"message_id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_receipt;index" json:"user_id"`
	ReadAt    time.Time `gorm:"not null" json:"read_at"`

	Message Message `gorm:"foreignKey:MessageID;constraint:OnDelete:CASCADE" json:"-"`
	User    User    `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
}

func (ReadReceipt) TableName() string {
	return "read_receipts"
}
