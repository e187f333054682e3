package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"club-treasury/internal/model"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type AuthService struct{ db *gorm.DB }

func NewAuthService(db *gorm.DB) *AuthService { return &AuthService{db: db} }

// Login checks staff credentials. Imported members have no password and
// can never log in.
func (s *AuthService) Login(ctx context.Context, email, password string) (*model.Member, error) {
	db := s.db.WithContext(ctx)
	var m model.Member
	err := db.Where("email = ?", model.NormalizeEmail(email)).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("find member: %w", err)
	}
	if m.Password == "" || !m.IsActive || !m.IsStaff {
		return nil, ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(m.Password), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}

	now := time.Now()
	if err := db.Model(&m).Update("last_login", now).Error; err != nil {
		return nil, fmt.Errorf("update last login: %w", err)
	}
	m.LastLogin = &now
	return &m, nil
}

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}
