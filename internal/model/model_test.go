package model

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func amount(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(s))
}

func TestDisplayTitle(t *testing.T) {
	cases := []struct {
		name   string
		title  string
		amount decimal.NullDecimal
		want   string
	}{
		{"payment lower", "paiement CB licence", amount("50.00"), "Payment received by club"},
		{"payment upper", "Paiement chèque", amount("10"), "Payment received by club"},
		{"payment title on debit", "Paiement chèque", amount("-10"), "Paiement chèque"},
		{"marker", "Licence 2024 - Transaction #1234", amount("-120"), "Licence 2024"},
		{"marker on credit", "Remboursement - Transaction #9", amount("15"), "Remboursement"},
		{"verbatim", "Tournoi Lyon", amount("-30"), "Tournoi Lyon"},
		{"null amount", "paiement", decimal.NullDecimal{}, "paiement"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tx := Transaction{Title: tc.title, Amount: tc.amount}
			assert.Equal(t, tc.want, tx.DisplayTitle())
		})
	}
}

func TestNewMemberBuildsProfile(t *testing.T) {
	m := NewMember("  Jean.Dupont@Example.ORG ", false)

	assert.Equal(t, "jean.dupont@example.org", m.Email)
	assert.False(t, m.IsActive)
	assert.Equal(t, GenderUnspecified, m.Gender)
	assert.Equal(t, Today(), m.Profile.LastCheck)
	assert.Nil(t, m.Profile.ContactID)
}

func TestMemberString(t *testing.T) {
	m := Member{Email: "a@b.fr"}
	assert.Equal(t, "a@b.fr", m.String())

	m.FirstName, m.LastName = "Ana", "Roux"
	assert.Equal(t, "Ana Roux <a@b.fr>", m.String())
}
