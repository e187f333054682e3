package service

import (
	"context"
	"fmt"
	"strings"
	"text/template"
	"time"

	"club-treasury/internal/config"
	"club-treasury/internal/logger"
	"club-treasury/internal/mail"
	"club-treasury/internal/metrics"
	"club-treasury/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var reminderTmpl = template.Must(template.New("reminder").Parse(`
Hello {{ .FirstName }} {{ .LastName }},

On {{ .Date }}, the club's records show an outstanding balance of {{ .Amount }} EUR on your account.

Please settle it at your earliest convenience, or reply to this message if you believe it is a mistake.

The treasury team
`))

type reminderData struct {
	FirstName string
	LastName  string
	Email     string
	Amount    string
	Date      string
}

type FailedRecipient struct {
	MemberID uint   `json:"member_id"`
	Email    string `json:"email"`
	Error    string `json:"error"`
}

type NotifyResult struct {
	Sent        []uint            `json:"sent"`
	Failed      []FailedRecipient `json:"failed"`
	NotEligible []uint            `json:"not_eligible"`
}

// NotifyService emails members with a negative reported balance.
type NotifyService struct {
	db     *gorm.DB
	sender mail.Sender
	cfg    config.MailConfig
	now    func() time.Time
}

func NewNotifyService(db *gorm.DB, sender mail.Sender, cfg config.MailConfig) *NotifyService {
	return &NotifyService{db: db, sender: sender, cfg: cfg, now: time.Now}
}

// NotifyDebtors sends one reminder per eligible requested member. A failed
// send is recorded and the remaining members are still processed.
func (s *NotifyService) NotifyDebtors(ctx context.Context, memberIDs []uint) (*NotifyResult, error) {
	db := s.db.WithContext(ctx)
	var members []model.Member
	err := db.Preload("Profile").
		Where("id IN ?", memberIDs).
		Where("id IN (?)", db.Model(&model.ExternalProfile{}).Select("member_id").Where("current_amount < ?", 0)).
		Order("id").
		Find(&members).Error
	if err != nil {
		return nil, fmt.Errorf("load debtors: %w", err)
	}

	res := &NotifyResult{}
	eligible := make(map[uint]bool, len(members))
	for _, m := range members {
		eligible[m.ID] = true
	}
	for _, id := range memberIDs {
		if !eligible[id] {
			res.NotEligible = append(res.NotEligible, id)
		}
	}

	for i := range members {
		m := &members[i]
		if err := s.remind(ctx, m); err != nil {
			logger.Error("debt reminder failed", "member_id", m.ID, "email", m.Email, "err", err)
			metrics.Reminders.WithLabelValues("failed").Inc()
			res.Failed = append(res.Failed, FailedRecipient{MemberID: m.ID, Email: m.Email, Error: err.Error()})
			continue
		}
		metrics.Reminders.WithLabelValues("sent").Inc()
		res.Sent = append(res.Sent, m.ID)
	}
	logger.Info("debt reminders: done", "sent", len(res.Sent), "failed", len(res.Failed), "not_eligible", len(res.NotEligible))
	return res, nil
}

func (s *NotifyService) remind(ctx context.Context, m *model.Member) error {
	now := s.now()
	balance := m.Profile.CurrentAmount.Decimal
	body, err := renderReminder(m, balance, now)
	if err != nil {
		return err
	}
	msg := mail.Message{
		From:    s.cfg.From,
		To:      m.Email,
		ReplyTo: s.cfg.ReplyTo,
		Subject: s.cfg.Subject,
		Body:    body,
	}
	if err := s.sender.Send(ctx, msg); err != nil {
		return err
	}

	// The email is already out, so a failed write still counts as sent.
	reminder := model.DebtReminder{
		SentAt:      now,
		Subject:     s.cfg.Subject,
		RecipientID: m.ID,
		Balance:     balance,
	}
	if err := s.db.WithContext(ctx).Create(&reminder).Error; err != nil {
		logger.Error("debt reminder sent but not recorded", "member_id", m.ID, "email", m.Email, "err", err)
		metrics.Reminders.WithLabelValues("unrecorded").Inc()
	}
	return nil
}

// renderReminder fills the template and collapses every whitespace run to a
// single space.
func renderReminder(m *model.Member, balance decimal.Decimal, now time.Time) (string, error) {
	var sb strings.Builder
	err := reminderTmpl.Execute(&sb, reminderData{
		FirstName: m.FirstName,
		LastName:  m.LastName,
		Email:     m.Email,
		Amount:    balance.Abs().StringFixed(2),
		Date:      now.Format("02/01/2006"),
	})
	if err != nil {
		return "", fmt.Errorf("render reminder: %w", err)
	}
	return strings.Join(strings.Fields(sb.String()), " "), nil
}
