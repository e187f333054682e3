package service

import (
	"errors"
	"fmt"

	"club-treasury/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrMemberNotFound        = errors.New("member not found")
	ErrMemberHasTransactions = errors.New("member still owns transactions")
	ErrEmailTaken            = errors.New("email already exists")
	ErrPasswordMismatch      = errors.New("passwords don't match")
	ErrInvalidCredentials    = errors.New("invalid email or password")
)

// Migrate creates or updates every table.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(model.All()...)
}

// createMember inserts a member and its profile. Callers run it inside a
// transaction so neither row exists without the other.
func createMember(tx *gorm.DB, m *model.Member) error {
	if err := tx.Omit(clause.Associations).Create(m).Error; err != nil {
		return fmt.Errorf("create member: %w", err)
	}
	m.Profile.MemberID = m.ID
	if err := tx.Create(&m.Profile).Error; err != nil {
		return fmt.Errorf("create profile: %w", err)
	}
	return nil
}

// saveMember writes the member then its profile.
func saveMember(tx *gorm.DB, m *model.Member) error {
	if err := tx.Omit(clause.Associations).Save(m).Error; err != nil {
		return fmt.Errorf("save member: %w", err)
	}
	m.Profile.MemberID = m.ID
	if err := tx.Save(&m.Profile).Error; err != nil {
		return fmt.Errorf("save profile: %w", err)
	}
	return nil
}
