package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type LoginResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

type User struct {
	ID    uint   `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

type CreateMemberRequest struct {
	Email     string `json:"email" binding:"required,email"`
	Password1 string `json:"password1" binding:"required,min=8"`
	Password2 string `json:"password2" binding:"required"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	IsStaff   bool   `json:"is_staff"`
}

type NotifyRequest struct {
	MemberIDs []uint `json:"member_ids" binding:"required,min=1"`
}

// MemberBalance is a member annotated with its reported and computed balances.
type MemberBalance struct {
	ID          uint            `json:"id"`
	Email       string          `json:"email"`
	FirstName   string          `json:"first_name"`
	LastName    string          `json:"last_name"`
	ContactID   *uint64         `json:"contact_id,omitempty"`
	Initial     decimal.Decimal `json:"initial"`
	Reported    decimal.Decimal `json:"reported"`
	Computed    decimal.Decimal `json:"computed"`
	Discrepancy decimal.Decimal `json:"discrepancy"`
}

type TransactionView struct {
	EntityID     uint64           `json:"entity_id"`
	DocumentID   uint64           `json:"document_id"`
	Title        string           `json:"title"`
	DisplayTitle string           `json:"display_title"`
	Amount       *decimal.Decimal `json:"amount"`
	EventDate    string           `json:"event_date"`
	ImportedAt   time.Time        `json:"imported_at"`
}

func NewTransactionView(t Transaction) TransactionView {
	v := TransactionView{
		EntityID:     t.EntityID,
		DocumentID:   t.DocumentID,
		Title:        t.Title,
		DisplayTitle: t.DisplayTitle(),
		EventDate:    t.EventDate.Format("2006-01-02"),
		ImportedAt:   t.ImportedAt,
	}
	if t.Amount.Valid {
		a := t.Amount.Decimal
		v.Amount = &a
	}
	return v
}
