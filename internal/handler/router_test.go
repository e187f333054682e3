package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"club-treasury/internal/config"
	"club-treasury/internal/mail"
	"club-treasury/internal/model"
	"club-treasury/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type recordingSender struct {
	mu   sync.Mutex
	sent []mail.Message
}

func (s *recordingSender) Send(_ context.Context, msg mail.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, msg)
	return nil
}

type testServer struct {
	router *gin.Engine
	db     *gorm.DB
	sender *recordingSender
	token  string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		Database: config.DatabaseConfig{Driver: "sqlite", Name: ":memory:"},
		Auth:     config.AuthConfig{JWTSecret: "test-secret", TokenHours: 24 * 7},
		Mail:     config.MailConfig{From: "tresorerie@club.example", Subject: "Reminder"},
	}
	db, err := cfg.OpenGormDB()
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, service.Migrate(db))

	_, _, err = service.NewMemberService(db).EnsureStaff(context.Background(), "staff@club.example", "s3cret-pass")
	require.NoError(t, err)

	s := &testServer{db: db, sender: &recordingSender{}}
	s.router = NewRouter(cfg, db, s.sender)

	w := s.do(t, http.MethodPost, "/api/login", jsonBody(t, gin.H{"email": "staff@club.example", "password": "s3cret-pass"}), "application/json")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var login model.LoginResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &login))
	require.NotEmpty(t, login.Token)
	s.token = login.Token
	return s
}

func (s *testServer) do(t *testing.T, method, path string, body *bytes.Buffer, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	if body == nil {
		body = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) upload(t *testing.T, category, filename, content string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("category", category))
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return s.do(t, http.MethodPost, "/api/imports", &buf, mw.FormDataContentType())
}

func jsonBody(t *testing.T, v any) *bytes.Buffer {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewBuffer(data)
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

const twoRowRoster = "Email,Prénom,Nom\n" +
	"jean@example.org,Jean,Dupont\n" +
	"not-an-email,Ana,Roux\n"

func TestImportMembers_EndToEnd(t *testing.T) {
	s := newTestServer(t)

	w := s.upload(t, "Members", "roster.csv", twoRowRoster)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var res struct {
		Message string         `json:"message"`
		Created int            `json:"created"`
		Skipped []service.Skip `json:"skipped"`
		BatchID string         `json:"batch_id"`
	}
	decode(t, w, &res)
	assert.Equal(t, "Imported successfully (1 member(s) added)", res.Message)
	assert.Equal(t, 1, res.Created)
	require.Len(t, res.Skipped, 1)
	assert.Equal(t, 3, res.Skipped[0].Line)
	assert.NotEmpty(t, res.BatchID)

	var count int64
	require.NoError(t, s.db.Model(&model.Member{}).Where("email = ?", "jean@example.org").Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestImport_BadRequests(t *testing.T) {
	s := newTestServer(t)

	cases := []struct {
		name, category, file, content, wantErr string
	}{
		{"unknown category", "Invoices", "a.csv", "Email\n", "unknown file category"},
		{"bad extension", "Members", "a.txt", "Email\n", "extension"},
		{"missing column", "Members", "a.csv", "Mail\nx@y.fr\n", "Email"},
		{"latin1", "Members", "a.csv", "Email,Pr\xe9nom\n", "UTF-8"},
		{"json object", "Transactions", "a.json", `{"entity_id": 1}`, "JSON array"},
		{"json null", "Transactions", "a.json", "null", "JSON array"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := s.upload(t, tc.category, tc.file, tc.content)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			var body map[string]string
			decode(t, w, &body)
			assert.Contains(t, body["error"], tc.wantErr)
		})
	}
}

func TestImportTransactions_NullDocumentKeepsLedger(t *testing.T) {
	s := newTestServer(t)
	m := seedDebtor(t, s.db, "owes@example.org", 1, "-15")
	require.NoError(t, s.db.Create(&model.Transaction{EntityID: 1, MemberID: m.ID, EventDate: model.Today()}).Error)

	w := s.upload(t, "Transactions", "ledger.json", "null")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var count int64
	require.NoError(t, s.db.Model(&model.Transaction{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestImportBalances_UnknownContact(t *testing.T) {
	s := newTestServer(t)
	w := s.upload(t, "Balances", "balances.csv", "ID,Solde début de période,Solde fin de période\n555,1,2\n")
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestRoutesRequireToken(t *testing.T) {
	s := newTestServer(t)
	s.token = ""

	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodGet, "/api/debts", nil, "").Code)
	assert.Equal(t, http.StatusUnauthorized, s.upload(t, "Members", "roster.csv", twoRowRoster).Code)
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/api/health", nil, "").Code)

	w := s.do(t, http.MethodPost, "/api/login", jsonBody(t, gin.H{"email": "staff@club.example", "password": "nope"}), "application/json")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func seedDebtor(t *testing.T, db *gorm.DB, email string, contactID uint64, current string) *model.Member {
	t.Helper()
	m := model.NewMember(email, false)
	m.FirstName, m.LastName = "F", "L"
	m.Profile.ContactID = &contactID
	m.Profile.CurrentAmount = decimal.NewNullDecimal(decimal.RequireFromString(current))
	require.NoError(t, db.Omit("Profile").Create(m).Error)
	m.Profile.MemberID = m.ID
	require.NoError(t, db.Create(&m.Profile).Error)
	return m
}

func TestDebts_ListAndNotify(t *testing.T) {
	s := newTestServer(t)
	debtor := seedDebtor(t, s.db, "owes@example.org", 1, "-15")
	settled := seedDebtor(t, s.db, "fine@example.org", 2, "3")

	w := s.do(t, http.MethodGet, "/api/debts", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var debtors []model.MemberBalance
	decode(t, w, &debtors)
	require.Len(t, debtors, 1)
	assert.Equal(t, debtor.ID, debtors[0].ID)

	w = s.do(t, http.MethodPost, "/api/debts/notify", jsonBody(t, gin.H{"member_ids": []uint{debtor.ID, settled.ID}}), "application/json")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var res service.NotifyResult
	decode(t, w, &res)
	assert.Equal(t, []uint{debtor.ID}, res.Sent)
	assert.Equal(t, []uint{settled.ID}, res.NotEligible)
	require.Len(t, s.sender.sent, 1)
	assert.Equal(t, "owes@example.org", s.sender.sent[0].To)

	w = s.do(t, http.MethodPost, "/api/debts/notify", jsonBody(t, gin.H{"member_ids": []uint{}}), "application/json")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMembers_CreateListDelete(t *testing.T) {
	s := newTestServer(t)

	req := gin.H{"email": "new@club.example", "password1": "long-password", "password2": "other-password"}
	w := s.do(t, http.MethodPost, "/api/members", jsonBody(t, req), "application/json")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error": "Password don't match"}`, w.Body.String())

	req["password2"] = "long-password"
	w = s.do(t, http.MethodPost, "/api/members", jsonBody(t, req), "application/json")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created model.Member
	decode(t, w, &created)
	assert.Equal(t, "new@club.example", created.Email)

	w = s.do(t, http.MethodPost, "/api/members", jsonBody(t, req), "application/json")
	assert.Equal(t, http.StatusConflict, w.Code)

	debtor := seedDebtor(t, s.db, "owes@example.org", 1, "-15")
	require.NoError(t, s.db.Create(&model.Transaction{EntityID: 1, MemberID: debtor.ID, EventDate: model.Today(),
		Title: "Cotisation - Transaction #12", Amount: decimal.NewNullDecimal(decimal.RequireFromString("-15"))}).Error)

	w = s.do(t, http.MethodGet, "/api/members/balances", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var balances []model.MemberBalance
	decode(t, w, &balances)
	require.Len(t, balances, 1)
	assert.True(t, balances[0].Computed.Equal(decimal.RequireFromString("-15")))
	assert.True(t, balances[0].Discrepancy.IsZero())

	w = s.do(t, http.MethodGet, fmt.Sprintf("/api/members/%d/transactions", debtor.ID), nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var txns []model.TransactionView
	decode(t, w, &txns)
	require.Len(t, txns, 1)
	assert.Equal(t, "Cotisation", txns[0].DisplayTitle)

	w = s.do(t, http.MethodGet, fmt.Sprintf("/api/members/%d/balance", debtor.ID), nil, "")
	assert.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, http.StatusConflict, s.do(t, http.MethodDelete, fmt.Sprintf("/api/members/%d", debtor.ID), nil, "").Code)
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodDelete, fmt.Sprintf("/api/members/%d", created.ID), nil, "").Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodDelete, fmt.Sprintf("/api/members/%d", created.ID), nil, "").Code)
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodDelete, "/api/members/abc", nil, "").Code)
}
