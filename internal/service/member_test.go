package service

import (
	"context"
	"testing"

	"club-treasury/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func staffRequest(email string) model.CreateMemberRequest {
	return model.CreateMemberRequest{
		Email:     email,
		Password1: "s3cret-pass",
		Password2: "s3cret-pass",
		FirstName: "Tre",
		LastName:  "Sorier",
		IsStaff:   true,
	}
}

func TestMemberService_Create(t *testing.T) {
	db := newTestDB(t)
	svc := NewMemberService(db)
	ctx := context.Background()

	m, err := svc.Create(ctx, staffRequest(" Staff@Club.example "))
	require.NoError(t, err)
	assert.Equal(t, "staff@club.example", m.Email)
	assert.True(t, m.IsActive)
	assert.NotEqual(t, "s3cret-pass", m.Password)

	var p model.ExternalProfile
	require.NoError(t, db.Where("member_id = ?", m.ID).First(&p).Error)

	_, err = svc.Create(ctx, staffRequest("staff@club.example"))
	assert.ErrorIs(t, err, ErrEmailTaken)

	req := staffRequest("other@club.example")
	req.Password2 = "different"
	_, err = svc.Create(ctx, req)
	assert.ErrorIs(t, err, ErrPasswordMismatch)
}

func TestMemberService_Delete(t *testing.T) {
	db := newTestDB(t)
	svc := NewMemberService(db)
	ctx := context.Background()

	owner := seedMember(t, db, "owner@example.org", "O", "Wner", 1, "", "")
	seedTransaction(t, db, owner.ID, 1, "5", false)
	assert.ErrorIs(t, svc.Delete(ctx, owner.ID), ErrMemberHasTransactions)

	m := seedMember(t, db, "gone@example.org", "G", "One", 2, "", "-1")
	require.NoError(t, db.Create(&model.DebtReminder{RecipientID: m.ID, Subject: "x", Balance: dec("-1")}).Error)
	require.NoError(t, svc.Delete(ctx, m.ID))

	var count int64
	require.NoError(t, db.Model(&model.ExternalProfile{}).Where("member_id = ?", m.ID).Count(&count).Error)
	assert.Zero(t, count)
	require.NoError(t, db.Model(&model.DebtReminder{}).Count(&count).Error)
	assert.Zero(t, count)

	assert.ErrorIs(t, svc.Delete(ctx, m.ID), ErrMemberNotFound)
}

func TestMemberService_Transactions(t *testing.T) {
	db := newTestDB(t)
	svc := NewMemberService(db)
	m := seedMember(t, db, "a@example.org", "A", "B", 1, "", "")
	seedTransaction(t, db, m.ID, 1, "5", false)
	seedTransaction(t, db, m.ID, 2, "6", true)

	txns, err := svc.Transactions(context.Background(), m.ID)
	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.Equal(t, uint64(1), txns[0].EntityID)

	_, err = svc.Transactions(context.Background(), 404)
	assert.ErrorIs(t, err, ErrMemberNotFound)
}

func TestAuthService_Login(t *testing.T) {
	db := newTestDB(t)
	members := NewMemberService(db)
	auth := NewAuthService(db)
	ctx := context.Background()

	_, err := members.Create(ctx, staffRequest("staff@club.example"))
	require.NoError(t, err)
	plain := staffRequest("plain@club.example")
	plain.IsStaff = false
	_, err = members.Create(ctx, plain)
	require.NoError(t, err)
	seedMember(t, db, "imported@example.org", "I", "M", 1, "", "")

	m, err := auth.Login(ctx, "STAFF@club.example", "s3cret-pass")
	require.NoError(t, err)
	assert.NotNil(t, m.LastLogin)

	cases := []struct{ email, password string }{
		{"staff@club.example", "wrong"},
		{"plain@club.example", "s3cret-pass"},
		{"imported@example.org", ""},
		{"unknown@example.org", "s3cret-pass"},
	}
	for _, tc := range cases {
		_, err := auth.Login(ctx, tc.email, tc.password)
		assert.ErrorIs(t, err, ErrInvalidCredentials, tc.email)
	}
}

func TestMemberService_EnsureStaff(t *testing.T) {
	db := newTestDB(t)
	svc := NewMemberService(db)
	ctx := context.Background()
	seedMember(t, db, "admin@club.example", "Ad", "Min", 1, "", "")

	m, created, err := svc.EnsureStaff(ctx, "admin@club.example", "first-pass")
	require.NoError(t, err)
	assert.False(t, created)
	assert.True(t, m.IsStaff)

	_, err = NewAuthService(db).Login(ctx, "admin@club.example", "first-pass")
	require.NoError(t, err)

	_, created, err = svc.EnsureStaff(ctx, "new@club.example", "pw")
	require.NoError(t, err)
	assert.True(t, created)
}
