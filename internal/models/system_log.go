package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// SystemLog stores structured warn/error logs so moderation incidents can be queried.
type SystemLog struct {
	ID             uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Timestamp      time.Time      `gorm:"not null;index" json:"timestamp"`
	Level          string         `gorm:"size:10;not null;index" json:"level"`
	Message        string         `gorm:"type:text" json:"message"`
	Component      string         `gorm:"size:50;index" json:"component"`
	TraceID        string         `gorm:"size:36;index" json:"trace_id"`
	UserID         *string        `gorm:"size:36" json:"user_id"`
	FlaggedImageID *string        `gorm:"size:36;index" json:"flagged_image_id"`
	File           string         `gorm:"size:255" json:"file"`
	Action         string         `gorm:"size:100" json:"action"`
	Error          string         `gorm:"type:text" json:"error"`
	LatencyMs      int            `json:"latency_ms"`
	Extra          datatypes.JSON `gorm:"type:jsonb;default:'{}'" json:"extra"`
	CreatedAt      time.Time      `json:"created_at"`
}

func (l *SystemLog) BeforeCreate(_ *gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}
