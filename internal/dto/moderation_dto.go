package dto

import (
	"time"

	"github.com/ahmetcoskunkizilkaya/imageguard/internal/models"
	"github.com/ahmetcoskunkizilkaya/imageguard/internal/moderation"
	"github.com/ahmetcoskunkizilkaya/imageguard/internal/optimizer"
	"github.com/ahmetcoskunkizilkaya/imageguard/internal/services"
	"github.com/google/uuid"
)

// CodeImageValidationFailed marks an upload batch refused by moderation.
const CodeImageValidationFailed = "IMAGE_VALIDATION_FAILED"

type ApproveRequest struct {
	Notes string `json:"notes" validate:"max=2000"`
}

type RejectRequest struct {
	Notes       string `json:"notes" validate:"max=2000"`
	ActionTaken string `json:"actionTaken" validate:"omitempty,oneof=none removed warned account_suspended"`
	DeleteFile  *bool  `json:"deleteFile"`
}

type DeleteFlaggedImageRequest struct {
	DeleteFile bool `json:"deleteFile"`
}

type BatchApproveRequest struct {
	IDs   []uuid.UUID `json:"ids" validate:"required,min=1,max=100"`
	Notes string      `json:"notes" validate:"max=2000"`
}

type BatchRejectRequest struct {
	IDs         []uuid.UUID `json:"ids" validate:"required,min=1,max=100"`
	Notes       string      `json:"notes" validate:"max=2000"`
	ActionTaken string      `json:"actionTaken" validate:"omitempty,oneof=none removed warned account_suspended"`
}

type AppealRequest struct {
	Message string `json:"message" validate:"required,max=2000"`
}

type ResolveAppealRequest struct {
	Resolution string `json:"resolution" validate:"required,max=2000"`
}

// FlaggedImageResponse adds derived fields to a stored record.
type FlaggedImageResponse struct {
	*models.FlaggedImage
	AgeInHours int `json:"age_in_hours"`
}

func NewFlaggedImageResponse(f *models.FlaggedImage, now time.Time) FlaggedImageResponse {
	return FlaggedImageResponse{FlaggedImage: f, AgeInHours: f.AgeInHours(now)}
}

func NewFlaggedImageResponses(items []models.FlaggedImage, now time.Time) []FlaggedImageResponse {
	out := make([]FlaggedImageResponse, 0, len(items))
	for i := range items {
		out = append(out, NewFlaggedImageResponse(&items[i], now))
	}
	return out
}

type Pagination struct {
	Total int64 `json:"total"`
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Pages int   `json:"pages"`
}

type FlaggedImageListResponse struct {
	Data       []FlaggedImageResponse `json:"data"`
	Pagination Pagination             `json:"pagination"`
}

type FlaggedImageStatsResponse struct {
	Total               int64                         `json:"total"`
	ByStatus            map[models.ReviewStatus]int64 `json:"by_status"`
	BySeverity          map[moderation.Severity]int64 `json:"by_severity"`
	ViolationCategories []services.CategoryCount      `json:"violation_categories"`
	RecentFlags         []FlaggedImageResponse        `json:"recent_flags"`
}

type ReviewResponse struct {
	Message string               `json:"message"`
	Warning string               `json:"warning,omitempty"`
	Data    FlaggedImageResponse `json:"data"`
}

type BatchResponse struct {
	Message  string `json:"message"`
	Modified int64  `json:"modified"`
}

// AcceptedImage is an upload that entered the platform.
type AcceptedImage struct {
	Filename     string            `json:"filename"`
	Path         string            `json:"path"`
	URL          string            `json:"url"`
	Optimization *optimizer.Result `json:"optimization,omitempty"`
	Warning      string            `json:"warning,omitempty"`
}

// FlaggedFile describes an upload moderation held back or discarded.
type FlaggedFile struct {
	Filename       string                 `json:"filename"`
	Severity       moderation.Severity    `json:"severity"`
	AutoRejected   bool                   `json:"auto_rejected"`
	Violations     []moderation.Violation `json:"violations"`
	FlaggedImageID *uuid.UUID             `json:"flagged_image_id,omitempty"`
}

type UploadRejectedResponse struct {
	Error             bool          `json:"error"`
	Code              string        `json:"code"`
	Message           string        `json:"message"`
	FlaggedCount      int           `json:"flagged_count"`
	AutoRejectedCount int           `json:"auto_rejected_count"`
	Files             []FlaggedFile `json:"files"`
}

type UploadAcceptedResponse struct {
	Accepted []AcceptedImage `json:"accepted"`
	Flagged  []FlaggedFile   `json:"flagged"`
	Warnings []string        `json:"warnings"`
}

type SandboxFileResult struct {
	Filename     string                     `json:"filename"`
	IsSafe       bool                       `json:"is_safe"`
	Severity     moderation.Severity        `json:"severity,omitempty"`
	AutoRejected bool                       `json:"auto_rejected"`
	Analysis     *moderation.AnalysisResult `json:"analysis,omitempty"`
	DetectedText string                     `json:"detected_text,omitempty"`
	Warning      string                     `json:"warning,omitempty"`
}

type SandboxSummary struct {
	Total        int  `json:"total"`
	Safe         int  `json:"safe"`
	Unsafe       int  `json:"unsafe"`
	AutoRejected int  `json:"auto_rejected"`
	Unanalyzed   int  `json:"unanalyzed"`
	WouldReject  bool `json:"would_reject"`
}

type SandboxResponse struct {
	Results []SandboxFileResult `json:"results"`
	Summary SandboxSummary      `json:"summary"`
}

type OptimizationUsageResponse struct {
	Configured       bool  `json:"configured"`
	CompressionCount int64 `json:"compression_count"`
}

type OptimizationTestResponse struct {
	Filename string            `json:"filename"`
	Preset   string            `json:"preset"`
	Result   *optimizer.Result `json:"result"`
}
