package models

import (
	"time"

	"github.com/ahmetcoskunkizilkaya/imageguard/internal/moderation"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type ReviewStatus string

const (
	ReviewPending  ReviewStatus = "pending"
	ReviewApproved ReviewStatus = "approved"
	ReviewRejected ReviewStatus = "rejected"
	ReviewDeleted  ReviewStatus = "deleted"
)

func (s ReviewStatus) Valid() bool {
	switch s {
	case ReviewPending, ReviewApproved, ReviewRejected, ReviewDeleted:
		return true
	}
	return false
}

type ActionTaken string

const (
	ActionNone             ActionTaken = "none"
	ActionRemoved          ActionTaken = "removed"
	ActionWarned           ActionTaken = "warned"
	ActionAccountSuspended ActionTaken = "account_suspended"
)

func (a ActionTaken) Valid() bool {
	switch a {
	case ActionNone, ActionRemoved, ActionWarned, ActionAccountSuspended:
		return true
	}
	return false
}

// Appeal is the uploader's dispute of a flag.
type Appeal struct {
	Submitted   bool       `gorm:"not null;default:false" json:"submitted"`
	Message     string     `gorm:"size:2000" json:"message,omitempty"`
	SubmittedAt *time.Time `json:"submitted_at,omitempty"`
	ResolvedAt  *time.Time `json:"resolved_at,omitempty"`
	Resolution  string     `gorm:"size:2000" json:"resolution,omitempty"`
}

// FlaggedImage is an upload the analyzer judged unsafe, held for admin disposition.
// Severity and AutoRejected are fixed at creation.
type FlaggedImage struct {
	ID               uuid.UUID                                     `gorm:"type:uuid;primaryKey" json:"id"`
	ImagePath        string                                        `gorm:"not null;size:1024" json:"image_path"`
	OriginalFilename string                                        `gorm:"size:255" json:"original_filename"`
	ImageURL         string                                        `gorm:"size:1024" json:"image_url"`
	EntityType       EntityType                                    `gorm:"not null;size:32;index:idx_flagged_entity" json:"entity_type"`
	EntityID         uuid.UUID                                     `gorm:"type:uuid;not null;index:idx_flagged_entity" json:"entity_id"`
	UploaderID       uuid.UUID                                     `gorm:"type:uuid;not null;index" json:"uploader_id"`
	ModerationResult datatypes.JSONType[moderation.AnalysisResult] `gorm:"type:jsonb" json:"moderation_result"`
	ReviewStatus     ReviewStatus                                  `gorm:"not null;size:20;default:'pending';index:idx_flagged_status_time,priority:1;index:idx_flagged_severity_status,priority:2" json:"review_status"`
	ReviewedBy       *uuid.UUID                                    `gorm:"type:uuid" json:"reviewed_by,omitempty"`
	ReviewedAt       *time.Time                                    `json:"reviewed_at,omitempty"`
	ReviewNotes      string                                        `gorm:"size:2000" json:"review_notes,omitempty"`
	ActionTaken      ActionTaken                                   `gorm:"not null;size:32;default:'none'" json:"action_taken"`
	Severity         moderation.Severity                           `gorm:"not null;size:20;default:'medium';index:idx_flagged_severity_status,priority:1" json:"severity"`
	AutoRejected     bool                                          `gorm:"not null;default:false" json:"auto_rejected"`
	FlaggedAt        time.Time                                     `gorm:"not null;index:idx_flagged_status_time,priority:2" json:"flagged_at"`
	FileDeletedAt    *time.Time                                    `json:"file_deleted_at,omitempty"`
	Appeal           Appeal                                        `gorm:"embedded;embeddedPrefix:appeal_" json:"appeal"`
	CreatedAt        time.Time                                     `json:"created_at"`
	UpdatedAt        time.Time                                     `json:"updated_at"`
}

func (FlaggedImage) TableName() string {
	return "flagged_images"
}

func (f *FlaggedImage) BeforeCreate(_ *gorm.DB) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	if f.ReviewStatus == "" {
		f.ReviewStatus = ReviewPending
	}
	if f.ActionTaken == "" {
		f.ActionTaken = ActionNone
	}
	if f.FlaggedAt.IsZero() {
		f.FlaggedAt = time.Now().UTC()
	}
	return nil
}

// Entity resolves the polymorphic entity reference.
func (f *FlaggedImage) Entity() (EntityRef, error) {
	return NewEntityRef(f.EntityType, f.EntityID)
}

// AgeInHours is the whole hours elapsed since the image was flagged.
func (f *FlaggedImage) AgeInHours(now time.Time) int {
	return int(now.Sub(f.FlaggedAt) / time.Hour)
}
