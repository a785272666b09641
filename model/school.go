package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// School is the tenant root. Every tenant-scoped row carries SchoolID and is
// reachable only through the tenant guard.
type School struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
	Name        string         `gorm:"type:varchar(255);not null" json:"name"`
	Code        string         `gorm:"type:varchar(32);uniqueIndex;not null" json:"code"`
	EmailDomain string         `gorm:"type:varchar(255)" json:"email_domain,omitempty"`

	// ModuleFlags maps module name -> enabled. Routes of a disabled module
	// answer 404 for this tenant.
	ModuleFlags datatypes.JSONMap `gorm:"type:jsonb;default:'{}'" json:"module_flags"`

	Users   []User  `gorm:"foreignKey:SchoolID;constraint:OnDelete:CASCADE" json:"-"`
	Classes []Class `gorm:"foreignKey:SchoolID;constraint:OnDelete:CASCADE" json:"-"`
	Chats   []Chat  `gorm:"foreignKey:SchoolID;constraint:OnDelete:CASCADE" json:"-"`
}

func (School) TableName() string {
	return "schools"
}

// ModuleEnabled reports whether a module is switched on for this school.
// Unknown modules default to enabled.
func (s *School) ModuleEnabled(name string) bool {
	if s.ModuleFlags == nil {
		return true
	}
	v, ok := s.ModuleFlags[name]
	if !ok {
		return true
	}
	enabled, ok := v.(bool)
	return !ok || enabled
}

// SchoolInvite is a one-shot invite code that materializes a school (and its
// first director account) on redemption. Redemption is race-sensitive and
// runs under a row lock.
type SchoolInvite struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	CodeHash   string     `gorm:"type:varchar(128);uniqueIndex;not null" json:"-"`
	SchoolName string     `gorm:"type:varchar(255);not null" json:"school_name"`
	Assigned   bool       `gorm:"default:false;index" json:"assigned"`
	SchoolID   *uint      `gorm:"index" json:"school_id,omitempty"`
	AssignedAt *time.Time `json:"assigned_at,omitempty"`
}

func (SchoolInvite) TableName() string {
	return "school_invites"
}
