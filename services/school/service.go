package school

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/djsoulspotti-ops/skajla/model"
	"github.com/djsoulspotti-ops/skajla/utils/apperr"
)

// Service manages tenants and their invite codes.
type Service struct {
	db  *gorm.DB
	now func() time.Time
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db, now: time.Now}
}

// HashInviteCode normalizes and hashes an invite code for lookup. Codes are
// stored only as hashes.
func HashInviteCode(code string) string {
	sum := sha256.Sum256([]byte(strings.ToUpper(strings.TrimSpace(code))))
	return hex.EncodeToString(sum[:])
}

// ByID loads a school.
func (s *Service) ByID(ctx context.Context, id uint) (*model.School, error) {
	var school model.School
	err := s.db.WithContext(ctx).First(&school, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("school not found")
	}
	if err != nil {
		return nil, apperr.TransientStore("school lookup failed", err)
	}
	return &school, nil
}

// ByCode resolves a school by its public code, for registration.
func (s *Service) ByCode(ctx context.Context, code string) (*model.School, error) {
	var school model.School
	err := s.db.WithContext(ctx).Where("code = ?", strings.ToUpper(strings.TrimSpace(code))).First(&school).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("school not found")
	}
	if err != nil {
		return nil, apperr.TransientStore("school lookup failed", err)
	}
	return &school, nil
}

// MaterializeFromInvite redeems a one-shot invite code into a school row.
// The invite row is locked FOR UPDATE and re-checked inside the transaction,
// so two concurrent redemptions of the same code produce exactly one school.
func (s *Service) MaterializeFromInvite(ctx context.Context, code string) (*model.School, error) {
	hash := HashInviteCode(code)

	var school model.School
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var invite model.SchoolInvite
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("code_hash = ?", hash).First(&invite).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFound("invalid invite code")
		}
		if err != nil {
			return err
		}

		if invite.Assigned {
			if invite.SchoolID == nil {
				return apperr.Internal("invite assigned without a school", nil)
			}
			// Idempotent redemption: hand back the school it created.
			return tx.First(&school, *invite.SchoolID).Error
		}

		school = model.School{
			Name: invite.SchoolName,
			Code: schoolCode(invite.SchoolName, invite.ID),
		}
		if err := tx.Create(&school).Error; err != nil {
			return err
		}

		now := s.now()
		invite.Assigned = true
		invite.SchoolID = &school.ID
		invite.AssignedAt = &now
		return tx.Save(&invite).Error
	})
	if err != nil {
		if ae := apperr.As(err); ae != nil {
			return nil, ae
		}
		return nil, apperr.TransientStore("invite redemption failed", err)
	}
	return &school, nil
}

// CreateInvite mints a new invite for a named school and returns the
// plain-text code exactly once.
func (s *Service) CreateInvite(ctx context.Context, schoolName string) (string, error) {
	if l := len(strings.TrimSpace(schoolName)); l < 3 || l > 255 {
		return "", apperr.InvalidInput("school name must be 3-255 characters")
	}

	code := fmt.Sprintf("SKJ-%d", s.now().UnixNano()%100000000)
	invite := model.SchoolInvite{
		CodeHash:   HashInviteCode(code),
		SchoolName: strings.TrimSpace(schoolName),
	}
	if err := s.db.WithContext(ctx).Create(&invite).Error; err != nil {
		return "", apperr.TransientStore("invite create failed", err)
	}
	return code, nil
}

// SetModuleFlag flips one module flag on a school.
func (s *Service) SetModuleFlag(ctx context.Context, schoolID uint, module string, enabled bool) error {
	var school model.School
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&school, schoolID).Error; err != nil {
			return err
		}
		if school.ModuleFlags == nil {
			school.ModuleFlags = map[string]interface{}{}
		}
		school.ModuleFlags[module] = enabled
		return tx.Save(&school).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFound("school not found")
		}
		return apperr.TransientStore("module flag update failed", err)
	}
	return nil
}

func schoolCode(name string, inviteID uint) string {
	cleaned := make([]rune, 0, 8)
	for _, r := range strings.ToUpper(name) {
		if r >= 'A' && r <= 'Z' {
			cleaned = append(cleaned, r)
		}
		if len(cleaned) == 4 {
			break
		}
	}
	return fmt.Sprintf("%s%04d", string(cleaned), inviteID)
}
