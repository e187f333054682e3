package service

import (
	"testing"

	"club-treasury/internal/config"
	"club-treasury/internal/importer"
	"club-treasury/internal/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// newTestDB opens a private in-memory SQLite database. A single connection
// keeps every query on the same database.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	cfg := &config.Config{Database: config.DatabaseConfig{Driver: "sqlite", Name: ":memory:"}}
	db, err := cfg.OpenGormDB()
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, Migrate(db))
	return db
}

func parseBatch(t *testing.T, filename, data string, category importer.Category) *importer.Batch {
	t.Helper()
	b, err := importer.Parse(filename, []byte(data), category)
	require.NoError(t, err)
	return b
}

// seedMember stores a member whose profile carries the given contact id and
// balances. Empty balance strings are stored as null.
func seedMember(t *testing.T, db *gorm.DB, email, first, last string, contactID uint64, initial, current string) *model.Member {
	t.Helper()
	m := model.NewMember(email, false)
	m.FirstName = first
	m.LastName = last
	if contactID != 0 {
		m.Profile.ContactID = &contactID
	}
	m.Profile.InitialAmount = nullDecimal(initial)
	m.Profile.CurrentAmount = nullDecimal(current)
	require.NoError(t, createMember(db, m))
	return m
}

func seedTransaction(t *testing.T, db *gorm.DB, memberID uint, entityID uint64, amount string, deleted bool) {
	t.Helper()
	txn := model.Transaction{
		EntityID:  entityID,
		MemberID:  memberID,
		Title:     "seed",
		Amount:    nullDecimal(amount),
		EventDate: model.Today(),
		IsDeleted: deleted,
	}
	require.NoError(t, db.Create(&txn).Error)
}

func nullDecimal(s string) decimal.NullDecimal {
	if s == "" {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(decimal.RequireFromString(s))
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }
