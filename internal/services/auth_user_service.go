package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/oktamirror/oktamirror/internal/models"
	"github.com/oktamirror/oktamirror/pkg/crypto"
	apperrors "github.com/oktamirror/oktamirror/pkg/errors"
)

const (
	defaultLockoutThreshold = 5
	defaultLockoutDuration  = 15 * time.Minute
)

// AuthUserService manages local operator and bot accounts for the mirror.
// These accounts are unrelated to the mirrored Okta identities.
type AuthUserService struct {
	db *gorm.DB

	lockoutThreshold int
	lockoutDuration  time.Duration
	now              func() time.Time
}

// AuthUserOption customises the service.
type AuthUserOption func(*AuthUserService)

// WithLockout overrides the failed-attempt threshold and lockout duration.
func WithLockout(threshold int, duration time.Duration) AuthUserOption {
	return func(s *AuthUserService) {
		if threshold > 0 {
			s.lockoutThreshold = threshold
		}
		if duration > 0 {
			s.lockoutDuration = duration
		}
	}
}

// NewAuthUserService constructs the local credential store.
func NewAuthUserService(db *gorm.DB, opts ...AuthUserOption) (*AuthUserService, error) {
	if db == nil {
		return nil, errors.New("auth user service: db is required")
	}

	svc := &AuthUserService{
		db:               db,
		lockoutThreshold: defaultLockoutThreshold,
		lockoutDuration:  defaultLockoutDuration,
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Create registers a new account with an argon2id password hash.
func (s *AuthUserService) Create(ctx context.Context, username, password, role string) (*models.AuthUser, error) {
	ctx = ensureContext(ctx)

	username = strings.TrimSpace(strings.ToLower(username))
	if username == "" {
		return nil, errors.New("auth user service: username is required")
	}

	hash, err := crypto.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("auth user service: hash password: %w", err)
	}

	user := models.AuthUser{
		Username:     username,
		PasswordHash: hash,
		Role:         role,
		IsActive:     true,
	}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		return nil, fmt.Errorf("auth user service: create: %w", err)
	}
	return &user, nil
}

// Authenticate verifies credentials, tracking failed attempts and enforcing
// lockout. A locked or inactive account is rejected without a hash comparison.
func (s *AuthUserService) Authenticate(ctx context.Context, username, password string) (*models.AuthUser, error) {
	ctx = ensureContext(ctx)

	var user models.AuthUser
	err := s.db.WithContext(ctx).
		Where("username = ?", strings.TrimSpace(strings.ToLower(username))).
		First(&user).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, apperrors.ErrInvalidCredentials
	case err != nil:
		return nil, fmt.Errorf("auth user service: lookup: %w", err)
	}

	if !user.IsActive {
		return nil, apperrors.ErrInvalidCredentials
	}

	now := s.now().UTC()
	if user.LockedUntil != nil && user.LockedUntil.After(now) {
		return nil, apperrors.ErrAccountLocked
	}

	if !crypto.VerifyPassword(user.PasswordHash, password) {
		if err := s.recordFailure(ctx, &user, now); err != nil {
			return nil, err
		}
		return nil, apperrors.ErrInvalidCredentials
	}

	updates := map[string]any{
		"failed_attempts": 0,
		"locked_until":    nil,
		"last_login_at":   &now,
	}
	if err := s.db.WithContext(ctx).Model(&user).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("auth user service: record login: %w", err)
	}

	user.FailedAttempts = 0
	user.LockedUntil = nil
	user.LastLoginAt = &now
	return &user, nil
}

func (s *AuthUserService) recordFailure(ctx context.Context, user *models.AuthUser, now time.Time) error {
	attempts := user.FailedAttempts + 1
	updates := map[string]any{"failed_attempts": attempts}
	if attempts >= s.lockoutThreshold {
		until := now.Add(s.lockoutDuration)
		updates["locked_until"] = &until
	}

	if err := s.db.WithContext(ctx).Model(user).Updates(updates).Error; err != nil {
		return fmt.Errorf("auth user service: record failure: %w", err)
	}
	return nil
}

// Unlock clears lockout state for an account.
func (s *AuthUserService) Unlock(ctx context.Context, username string) error {
	ctx = ensureContext(ctx)

	result := s.db.WithContext(ctx).Model(&models.AuthUser{}).
		Where("username = ?", strings.TrimSpace(strings.ToLower(username))).
		Updates(map[string]any{
			"failed_attempts": 0,
			"locked_until":    nil,
		})
	if result.Error != nil {
		return fmt.Errorf("auth user service: unlock: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// Deactivate disables an account without deleting it.
func (s *AuthUserService) Deactivate(ctx context.Context, username string) error {
	ctx = ensureContext(ctx)

	result := s.db.WithContext(ctx).Model(&models.AuthUser{}).
		Where("username = ?", strings.TrimSpace(strings.ToLower(username))).
		Update("is_active", false)
	if result.Error != nil {
		return fmt.Errorf("auth user service: deactivate: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}
