package handler

import (
	"net/http"

	"club-treasury/internal/model"
	"club-treasury/internal/service"

	"github.com/gin-gonic/gin"
)

type DebtHandler struct {
	balances *service.BalanceService
	notifier *service.NotifyService
}

func NewDebtHandler(balances *service.BalanceService, notifier *service.NotifyService) *DebtHandler {
	return &DebtHandler{balances: balances, notifier: notifier}
}

// GET /api/debts
func (h *DebtHandler) List(c *gin.Context) {
	debtors, err := h.balances.Debtors(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if debtors == nil {
		debtors = []model.MemberBalance{}
	}
	c.JSON(http.StatusOK, debtors)
}

// POST /api/debts/notify  body: {"member_ids":[1,2]}
func (h *DebtHandler) Notify(c *gin.Context) {
	var req model.NotifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "member_ids is required"})
		return
	}
	res, err := h.notifier.NotifyDebtors(c.Request.Context(), req.MemberIDs)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, res)
}
