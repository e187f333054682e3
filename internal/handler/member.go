package handler

import (
	"errors"
	"net/http"
	"strconv"

	"club-treasury/internal/logger"
	"club-treasury/internal/model"
	"club-treasury/internal/service"

	"github.com/gin-gonic/gin"
)

type MemberHandler struct {
	members  *service.MemberService
	balances *service.BalanceService
}

func NewMemberHandler(members *service.MemberService, balances *service.BalanceService) *MemberHandler {
	return &MemberHandler{members: members, balances: balances}
}

// GET /api/members/balances
func (h *MemberHandler) Balances(c *gin.Context) {
	list, err := h.balances.Discrepancies(c.Request.Context())
	if err != nil {
		logger.Error("list balances", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if list == nil {
		list = []model.MemberBalance{}
	}
	c.JSON(http.StatusOK, list)
}

// GET /api/members/:id/balance
func (h *MemberHandler) Balance(c *gin.Context) {
	id, ok := memberID(c)
	if !ok {
		return
	}
	b, err := h.balances.MemberBalance(c.Request.Context(), id)
	if err != nil {
		writeMemberError(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

// GET /api/members/:id/transactions
func (h *MemberHandler) Transactions(c *gin.Context) {
	id, ok := memberID(c)
	if !ok {
		return
	}
	txns, err := h.members.Transactions(c.Request.Context(), id)
	if err != nil {
		writeMemberError(c, err)
		return
	}
	views := make([]model.TransactionView, len(txns))
	for i, t := range txns {
		views[i] = model.NewTransactionView(t)
	}
	c.JSON(http.StatusOK, views)
}

// POST /api/members
func (h *MemberHandler) Create(c *gin.Context) {
	var req model.CreateMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	m, err := h.members.Create(c.Request.Context(), req)
	switch {
	case errors.Is(err, service.ErrPasswordMismatch):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Password don't match"})
		return
	case errors.Is(err, service.ErrEmailTaken):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	case err != nil:
		logger.Error("create member", "email", req.Email, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create failed"})
		return
	}
	logger.Info("member created", "id", m.ID, "by", c.GetUint("user_id"))
	c.JSON(http.StatusCreated, m)
}

// DELETE /api/members/:id
func (h *MemberHandler) Delete(c *gin.Context) {
	id, ok := memberID(c)
	if !ok {
		return
	}
	if err := h.members.Delete(c.Request.Context(), id); err != nil {
		writeMemberError(c, err)
		return
	}
	logger.Info("member deleted", "id", id, "by", c.GetUint("user_id"))
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func memberID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return uint(id), true
}

func writeMemberError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrMemberNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrMemberHasTransactions):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		logger.Error("member request", "path", c.FullPath(), "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
