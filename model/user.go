package model

import (
	"time"

	"gorm.io/gorm"
)

// Role values for User.Role.
const (
	RoleStudent  = "student"
	RoleTeacher  = "teacher"
	RoleDirector = "director"
	RoleParent   = "parent"
	RoleAdmin    = "admin"
)

// User represents a registered user. Every user belongs to exactly one
// school; the role determines which operations are permitted.
type User struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
	SchoolID     uint           `gorm:"not null;index" json:"school_id"`
	Username     string         `gorm:"type:varchar(30);uniqueIndex;not null" json:"username"`
	Email        string         `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string         `gorm:"not null" json:"-"`
	PasswordAlgo string         `gorm:"type:varchar(20);default:'bcrypt'" json:"-"`
	FirstName    string         `gorm:"type:varchar(120);not null" json:"nome"`
	LastName     string         `gorm:"type:varchar(120);not null" json:"cognome"`
	Role         string         `gorm:"type:varchar(20);default:'student'" json:"role"`
	ClassID      *uint          `gorm:"index" json:"class_id,omitempty"`
	Active       bool           `gorm:"default:true" json:"attivo"`
	StatusOnline bool           `gorm:"default:false" json:"status_online"`
	LastSeen     *time.Time     `json:"last_seen,omitempty"`

	School School `gorm:"foreignKey:SchoolID;constraint:OnDelete:CASCADE" json:"-"`
	Class  *Class `gorm:"foreignKey:ClassID;constraint:OnDelete:SET NULL" json:"class,omitempty"`

	Memberships []ChatMembership `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Profile     *GamificationProfile `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
}

func (User) TableName() string {
	return "users"
}

// Class groups students inside a school. Students reference at most one
// class; teachers reference many via TeacherClass.
type Class struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
	SchoolID     uint           `gorm:"not null;index" json:"school_id"`
	Name         string         `gorm:"type:varchar(100);not null" json:"name"`
	AcademicYear string         `gorm:"type:varchar(20);not null" json:"academic_year"`

	School School `gorm:"foreignKey:SchoolID;constraint:OnDelete:CASCADE" json:"-"`
}

func (Class) TableName() string {
	return "classes"
}

// TeacherClass associates a teacher with the classes they teach.
type TeacherClass struct {
	TeacherID uint      `gorm:"primaryKey" json:"teacher_id"`
	ClassID   uint      `gorm:"primaryKey" json:"class_id"`
	Subject   string    `gorm:"type:varchar(100)" json:"subject,omitempty"`
	CreatedAt time.Time `json:"created_at"`

	Teacher User  `gorm:"foreignKey:TeacherID;constraint:OnDelete:CASCADE" json:"-"`
	Class   Class `gorm:"foreignKey:ClassID;constraint:OnDelete:CASCADE" json:"-"`
}

func (TeacherClass) TableName() string {
	return "teacher_classes"
}

// SessionBlacklist stores revoked session JTIs until their natural expiry.
type SessionBlacklist struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Token     string    `gorm:"uniqueIndex;not null;type:text" json:"token"`
	UserID    uint      `gorm:"index" json:"user_id"`
	Reason    string    `gorm:"type:varchar(100)" json:"reason"` // logout, security, manual_revoke
	ExpiresAt time.Time `gorm:"index;not null" json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`

	User User `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
}

func (SessionBlacklist) TableName() string {
	return "session_blacklist"
}
