package handler

import (
	"errors"
	"net/http"
	"time"

	"club-treasury/internal/logger"
	"club-treasury/internal/middleware"
	"club-treasury/internal/model"
	"club-treasury/internal/service"

	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	auth   *service.AuthService
	secret []byte
	ttl    time.Duration
}

func NewAuthHandler(auth *service.AuthService, secret []byte, ttl time.Duration) *AuthHandler {
	return &AuthHandler{auth: auth, secret: secret, ttl: ttl}
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req model.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	m, err := h.auth.Login(c.Request.Context(), req.Email, req.Password)
	if errors.Is(err, service.ErrInvalidCredentials) {
		logger.Warn("login.failed", "email", req.Email)
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		logger.Error("login.error", "email", req.Email, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
		return
	}

	token, err := middleware.IssueToken(h.secret, h.ttl, m.ID, m.Email)
	if err != nil {
		logger.Error("login.sign", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
		return
	}
	logger.Info("login.ok", "uid", m.ID, "email", m.Email)

	c.JSON(http.StatusOK, model.LoginResponse{
		Token: token,
		User:  model.User{ID: m.ID, Email: m.Email, Name: m.FullName()},
	})
}
