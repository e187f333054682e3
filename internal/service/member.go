package service

import (
	"context"
	"errors"
	"fmt"

	"club-treasury/internal/model"

	"gorm.io/gorm"
)

type MemberService struct{ db *gorm.DB }

func NewMemberService(db *gorm.DB) *MemberService { return &MemberService{db: db} }

// Create registers a member by hand, usually a staff account.
func (s *MemberService) Create(ctx context.Context, req model.CreateMemberRequest) (*model.Member, error) {
	if req.Password1 != req.Password2 {
		return nil, ErrPasswordMismatch
	}
	hash, err := hashPassword(req.Password1)
	if err != nil {
		return nil, err
	}

	m := model.NewMember(req.Email, true)
	m.Password = hash
	m.FirstName = req.FirstName
	m.LastName = req.LastName
	m.IsStaff = req.IsStaff

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return createMember(tx, m)
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, ErrEmailTaken
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

// EnsureStaff creates the staff account or resets its password.
func (s *MemberService) EnsureStaff(ctx context.Context, email, password string) (*model.Member, bool, error) {
	hash, err := hashPassword(password)
	if err != nil {
		return nil, false, err
	}
	var (
		m       model.Member
		created bool
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Preload("Profile").Where("email = ?", model.NormalizeEmail(email)).First(&m).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			m = *model.NewMember(email, true)
			created = true
		} else if err != nil {
			return fmt.Errorf("find member: %w", err)
		}
		m.Password = hash
		m.IsActive = true
		m.IsStaff = true
		if created {
			return createMember(tx, &m)
		}
		return saveMember(tx, &m)
	})
	if err != nil {
		return nil, false, err
	}
	return &m, created, nil
}

func (s *MemberService) Get(ctx context.Context, id uint) (*model.Member, error) {
	var m model.Member
	err := s.db.WithContext(ctx).Preload("Profile").First(&m, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrMemberNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find member %d: %w", id, err)
	}
	return &m, nil
}

// Transactions lists the member's non-deleted ledger entries, newest first.
func (s *MemberService) Transactions(ctx context.Context, id uint) ([]model.Transaction, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	var txns []model.Transaction
	err := s.db.WithContext(ctx).
		Where("member_id = ? AND is_deleted = ?", id, false).
		Order("event_date DESC, entity_id DESC").
		Find(&txns).Error
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return txns, nil
}

// Delete removes a member with its profile and reminders. A member still
// owning transactions cannot be deleted.
func (s *MemberService) Delete(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var m model.Member
		err := tx.First(&m, id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrMemberNotFound
		}
		if err != nil {
			return fmt.Errorf("find member %d: %w", id, err)
		}

		var owned int64
		if err := tx.Model(&model.Transaction{}).Where("member_id = ?", id).Count(&owned).Error; err != nil {
			return fmt.Errorf("count transactions: %w", err)
		}
		if owned > 0 {
			return ErrMemberHasTransactions
		}

		if err := tx.Where("recipient_id = ?", id).Delete(&model.DebtReminder{}).Error; err != nil {
			return fmt.Errorf("delete reminders: %w", err)
		}
		if err := tx.Where("member_id = ?", id).Delete(&model.ExternalProfile{}).Error; err != nil {
			return fmt.Errorf("delete profile: %w", err)
		}
		if err := tx.Delete(&m).Error; err != nil {
			return fmt.Errorf("delete member: %w", err)
		}
		return nil
	})
}
