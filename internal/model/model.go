package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Gender string

const (
	GenderMen         Gender = "M"
	GenderWomen       Gender = "W"
	GenderUnspecified Gender = "U"
)

// Member is a club member. Email is the login identifier and is stored normalized.
type Member struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	Email       string     `gorm:"size:255;uniqueIndex;not null" json:"email"`
	Password    string     `json:"-"`
	FirstName   string     `gorm:"size:150" json:"first_name"`
	LastName    string     `gorm:"size:150" json:"last_name"`
	Gender      Gender     `gorm:"size:1;not null" json:"gender"`
	PhoneNumber string     `gorm:"size:32" json:"phone_number,omitempty"`
	DateOfBirth *time.Time `gorm:"type:date" json:"date_of_birth,omitempty"`
	IsActive    bool       `json:"is_active"`
	IsStaff     bool       `json:"is_staff"`
	LastLogin   *time.Time `json:"last_login,omitempty"`

	Profile      ExternalProfile `gorm:"foreignKey:MemberID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"profile"`
	Transactions []Transaction   `gorm:"foreignKey:MemberID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"-"`
	Reminders    []DebtReminder  `gorm:"foreignKey:RecipientID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}

// ExternalProfile holds what the external membership system knows about a member.
type ExternalProfile struct {
	ID              uint                `gorm:"primaryKey" json:"-"`
	MemberID        uint                `gorm:"uniqueIndex;not null" json:"-"`
	ContactID       *uint64             `gorm:"uniqueIndex" json:"contact_id,omitempty"`
	InitialAmount   decimal.NullDecimal `gorm:"type:decimal(9,2)" json:"initial_amount"`
	CurrentAmount   decimal.NullDecimal `gorm:"type:decimal(9,2)" json:"current_amount"`
	ClubMembership  bool                `json:"club_membership"`
	AidedMembership bool                `json:"aided_membership"`
	DetailURL       string              `gorm:"size:500" json:"detail_url,omitempty"`
	LastCheck       time.Time           `gorm:"type:date" json:"last_check"`
}

// Transaction is a ledger entry owned by a member. EntityID comes from the
// source system and is never generated here.
type Transaction struct {
	EntityID   uint64              `gorm:"primaryKey;autoIncrement:false" json:"entity_id"`
	MemberID   uint                `gorm:"not null;index" json:"member_id"`
	DocumentID uint64              `json:"document_id"`
	Title      string              `gorm:"size:300" json:"title"`
	Amount     decimal.NullDecimal `gorm:"type:decimal(9,2)" json:"amount"`
	EventDate  time.Time           `gorm:"type:date" json:"event_date"`
	LastUpdate time.Time           `gorm:"autoUpdateTime" json:"last_update"`
	ImportedAt time.Time           `gorm:"autoCreateTime" json:"imported_at"`
	IsDeleted  bool                `json:"is_deleted"`
}

type DebtReminder struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	SentAt      time.Time       `json:"sent_at"`
	Subject     string          `gorm:"size:300" json:"subject"`
	RecipientID uint            `gorm:"not null;index" json:"recipient_id"`
	Balance     decimal.Decimal `gorm:"type:decimal(9,2)" json:"balance"`
}

func (Member) TableName() string          { return "members" }
func (ExternalProfile) TableName() string { return "external_profiles" }
func (Transaction) TableName() string     { return "transactions" }
func (DebtReminder) TableName() string    { return "debt_reminders" }

// All lists every persisted model in dependency order, for AutoMigrate.
func All() []interface{} {
	return []interface{}{&Member{}, &ExternalProfile{}, &Transaction{}, &DebtReminder{}}
}

// NewMember builds a member together with its external profile. Every member
// is created through here so the profile always exists.
func NewMember(email string, active bool) *Member {
	return &Member{
		Email:    NormalizeEmail(email),
		Gender:   GenderUnspecified,
		IsActive: active,
		Profile:  ExternalProfile{LastCheck: Today()},
	}
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func Today() time.Time {
	y, m, d := time.Now().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (m *Member) FullName() string {
	if m.FirstName != "" && m.LastName != "" {
		return m.FirstName + " " + m.LastName
	}
	return ""
}

func (m *Member) String() string {
	if name := m.FullName(); name != "" {
		return fmt.Sprintf("%s <%s>", name, m.Email)
	}
	return m.Email
}

const (
	paymentTitle      = "Payment received by club"
	transactionMarker = " - Transaction #"
)

// DisplayTitle is the title shown to staff instead of the raw export label.
func (t *Transaction) DisplayTitle() string {
	if t.Amount.Valid && t.Amount.Decimal.IsPositive() {
		if strings.Contains(t.Title, "paiement") || strings.Contains(t.Title, "Paiement") {
			return paymentTitle
		}
	}
	if i := strings.Index(t.Title, transactionMarker); i >= 0 {
		return t.Title[:i]
	}
	return t.Title
}
