package service

import (
	"context"
	"errors"
	"fmt"

	"club-treasury/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// BalanceService compares the balance reported by the external system with
// the one recomputed from the imported ledger. It never writes.
type BalanceService struct {
	db *gorm.DB
}

func NewBalanceService(db *gorm.DB) *BalanceService {
	return &BalanceService{db: db}
}

// Discrepancies lists every member with a reported balance.
func (s *BalanceService) Discrepancies(ctx context.Context) ([]model.MemberBalance, error) {
	return s.list(ctx, "current_amount IS NOT NULL")
}

// Debtors lists members whose reported balance is negative.
func (s *BalanceService) Debtors(ctx context.Context) ([]model.MemberBalance, error) {
	return s.list(ctx, "current_amount < ?", 0)
}

func (s *BalanceService) MemberBalance(ctx context.Context, id uint) (*model.MemberBalance, error) {
	db := s.db.WithContext(ctx)
	var m model.Member
	err := db.Preload("Profile").First(&m, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrMemberNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find member %d: %w", id, err)
	}
	sums, err := ledgerTotals(db, []uint{id})
	if err != nil {
		return nil, err
	}
	b := newMemberBalance(&m, sums[id])
	return &b, nil
}

func (s *BalanceService) list(ctx context.Context, profileCond string, args ...any) ([]model.MemberBalance, error) {
	db := s.db.WithContext(ctx)
	profiles := db.Model(&model.ExternalProfile{}).Select("member_id").Where(profileCond, args...)

	var members []model.Member
	err := db.Preload("Profile").
		Where("id IN (?)", profiles).
		Order("last_name, first_name, email").
		Find(&members).Error
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}

	ids := make([]uint, len(members))
	for i := range members {
		ids[i] = members[i].ID
	}
	sums, err := ledgerTotals(db, ids)
	if err != nil {
		return nil, err
	}

	out := make([]model.MemberBalance, len(members))
	for i := range members {
		out[i] = newMemberBalance(&members[i], sums[members[i].ID])
	}
	return out, nil
}

// ledgerTotals sums the non-deleted transaction amounts of each member.
// Members without transactions are absent from the result.
func ledgerTotals(db *gorm.DB, ids []uint) (map[uint]decimal.Decimal, error) {
	out := make(map[uint]decimal.Decimal, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []struct {
		MemberID uint
		Total    decimal.NullDecimal
	}
	err := db.Model(&model.Transaction{}).
		Select("member_id, SUM(amount) AS total").
		Where("member_id IN ? AND is_deleted = ?", ids, false).
		Group("member_id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("sum transactions: %w", err)
	}
	for _, r := range rows {
		if r.Total.Valid {
			out[r.MemberID] = r.Total.Decimal.Round(2)
		}
	}
	return out, nil
}

func newMemberBalance(m *model.Member, ledger decimal.Decimal) model.MemberBalance {
	initial := m.Profile.InitialAmount.Decimal // zero when null
	reported := m.Profile.CurrentAmount.Decimal
	computed := initial.Add(ledger)
	return model.MemberBalance{
		ID:          m.ID,
		Email:       m.Email,
		FirstName:   m.FirstName,
		LastName:    m.LastName,
		ContactID:   m.Profile.ContactID,
		Initial:     initial,
		Reported:    reported,
		Computed:    computed,
		Discrepancy: reported.Sub(computed),
	}
}
