package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AccountStatus string

const (
	AccountActive    AccountStatus = "active"
	AccountSuspended AccountStatus = "suspended"
)

// User is the uploader account. Only the fields moderation acts on live here.
type User struct {
	ID               uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Email            string         `gorm:"not null;size:255;uniqueIndex" json:"email"`
	Name             string         `gorm:"size:255" json:"name"`
	Role             string         `gorm:"size:20;default:'user'" json:"role"`
	AccountStatus    AccountStatus  `gorm:"size:20;not null;default:'active';index" json:"account_status"`
	SuspensionReason string         `gorm:"size:500" json:"suspension_reason,omitempty"`
	SuspendedAt      *time.Time     `json:"suspended_at,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	DeletedAt        gorm.DeletedAt `gorm:"index" json:"-"`
}

func (u *User) BeforeCreate(_ *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	if u.AccountStatus == "" {
		u.AccountStatus = AccountActive
	}
	return nil
}
