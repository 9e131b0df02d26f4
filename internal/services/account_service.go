package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ahmetcoskunkizilkaya/imageguard/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var ErrUserNotFound = errors.New("user not found")

// DefaultSuspensionReason is recorded when an image rejection suspends the uploader.
const DefaultSuspensionReason = "Uploaded inappropriate content"

// SuspensionError reports that a rejection was stored but the uploader's
// account could not be suspended.
type SuspensionError struct {
	UserID uuid.UUID
	Err    error
}

func (e *SuspensionError) Error() string {
	return fmt.Sprintf("failed to suspend account %s: %v", e.UserID, e.Err)
}

func (e *SuspensionError) Unwrap() error {
	return e.Err
}

type AccountService struct {
	db *gorm.DB
}

func NewAccountService(db *gorm.DB) *AccountService {
	return &AccountService{db: db}
}

// Suspend marks the user suspended with reason and timestamp.
func (s *AccountService) Suspend(ctx context.Context, userID uuid.UUID, reason string, at time.Time) error {
	if reason == "" {
		reason = DefaultSuspensionReason
	}
	result := s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{
			"account_status":    models.AccountSuspended,
			"suspension_reason": reason,
			"suspended_at":      at,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (s *AccountService) Get(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("id = ?", userID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}
