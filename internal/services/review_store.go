package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ahmetcoskunkizilkaya/imageguard/internal/models"
	"github.com/ahmetcoskunkizilkaya/imageguard/internal/moderation"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

var (
	ErrFlaggedImageNotFound = errors.New("flagged image not found")
	ErrEmptyIDList          = errors.New("ids must be a non-empty list")
	ErrInvalidFilter        = errors.New("invalid filter")
)

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
	DefaultSort      = "-flaggedAt"
	recentFlagsLimit = 5
)

// severityRank orders severity descending in SQL without relying on enum types.
const severityRank = "CASE severity WHEN 'critical' THEN 4 WHEN 'high' THEN 3 WHEN 'medium' THEN 2 ELSE 1 END"

var sortColumns = map[string]string{
	"flaggedAt":  "flagged_at",
	"reviewedAt": "reviewed_at",
	"createdAt":  "created_at",
	"severity":   severityRank,
}

// ListFilter selects flagged images. An empty Status or "all" matches every status.
type ListFilter struct {
	Status   string
	Severity string
	Page     int
	Limit    int
	Sort     string
}

type ListResult struct {
	Items []models.FlaggedImage
	Total int64
	Page  int
	Limit int
	Pages int
}

type CategoryCount struct {
	Category moderation.Category `json:"category"`
	Count    int64               `json:"count"`
}

type Stats struct {
	Total               int64                         `json:"total"`
	ByStatus            map[models.ReviewStatus]int64 `json:"by_status"`
	BySeverity          map[moderation.Severity]int64 `json:"by_severity"`
	ViolationCategories []CategoryCount               `json:"violation_categories"`
	RecentFlags         []models.FlaggedImage         `json:"recent_flags"`
}

// ReviewUpdate is the reviewer metadata written by approve and reject.
type ReviewUpdate struct {
	Status      models.ReviewStatus
	ReviewedBy  *uuid.UUID
	ReviewedAt  time.Time
	Notes       string
	ActionTaken models.ActionTaken
}

func (u ReviewUpdate) columns() map[string]interface{} {
	return map[string]interface{}{
		"review_status": u.Status,
		"reviewed_by":   u.ReviewedBy,
		"reviewed_at":   u.ReviewedAt,
		"review_notes":  u.Notes,
		"action_taken":  u.ActionTaken,
	}
}

// ReviewStore persists flagged-image records.
type ReviewStore struct {
	db *gorm.DB
}

func NewReviewStore(db *gorm.DB) *ReviewStore {
	return &ReviewStore{db: db}
}

func (s *ReviewStore) Create(ctx context.Context, f *models.FlaggedImage) error {
	if err := s.db.WithContext(ctx).Create(f).Error; err != nil {
		return fmt.Errorf("failed to create flagged image: %w", err)
	}
	return nil
}

func (s *ReviewStore) Get(ctx context.Context, id uuid.UUID) (*models.FlaggedImage, error) {
	var f models.FlaggedImage
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&f).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrFlaggedImageNotFound
		}
		return nil, err
	}
	return &f, nil
}

func (s *ReviewStore) List(ctx context.Context, filter ListFilter) (*ListResult, error) {
	order, err := orderClause(filter.Sort)
	if err != nil {
		return nil, err
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit <= 0 {
		filter.Limit = DefaultPageLimit
	}
	if filter.Limit > MaxPageLimit {
		filter.Limit = MaxPageLimit
	}

	query := s.db.WithContext(ctx).Model(&models.FlaggedImage{})
	if filter.Status != "" && filter.Status != "all" {
		if !models.ReviewStatus(filter.Status).Valid() {
			return nil, fmt.Errorf("%w: status %q", ErrInvalidFilter, filter.Status)
		}
		query = query.Where("review_status = ?", filter.Status)
	}
	if filter.Severity != "" {
		if !moderation.Severity(filter.Severity).Valid() {
			return nil, fmt.Errorf("%w: severity %q", ErrInvalidFilter, filter.Severity)
		}
		query = query.Where("severity = ?", filter.Severity)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, err
	}

	var items []models.FlaggedImage
	offset := (filter.Page - 1) * filter.Limit
	if err := query.Order(order).Order("id").Limit(filter.Limit).Offset(offset).Find(&items).Error; err != nil {
		return nil, err
	}

	pages := int((total + int64(filter.Limit) - 1) / int64(filter.Limit))
	return &ListResult{Items: items, Total: total, Page: filter.Page, Limit: filter.Limit, Pages: pages}, nil
}

// orderClause maps a sort key such as "-flaggedAt" onto a whitelisted column.
func orderClause(key string) (string, error) {
	if key == "" {
		key = DefaultSort
	}
	dir := "ASC"
	if strings.HasPrefix(key, "-") {
		dir = "DESC"
		key = key[1:]
	}
	col, ok := sortColumns[key]
	if !ok {
		return "", fmt.Errorf("%w: sort %q", ErrInvalidFilter, key)
	}
	return col + " " + dir, nil
}

// Stats aggregates counts. The independent counts run concurrently.
func (s *ReviewStore) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{
		ByStatus:   make(map[models.ReviewStatus]int64),
		BySeverity: make(map[moderation.Severity]int64),
	}
	statuses := []models.ReviewStatus{models.ReviewPending, models.ReviewApproved, models.ReviewRejected}
	severities := []moderation.Severity{moderation.SeverityCritical, moderation.SeverityHigh, moderation.SeverityMedium, moderation.SeverityLow}

	statusCounts := make([]int64, len(statuses))
	severityCounts := make([]int64, len(severities))
	var pending []models.FlaggedImage

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.db.WithContext(gctx).Model(&models.FlaggedImage{}).Count(&stats.Total).Error
	})
	for i, st := range statuses {
		g.Go(func() error {
			return s.db.WithContext(gctx).Model(&models.FlaggedImage{}).
				Where("review_status = ?", st).Count(&statusCounts[i]).Error
		})
	}
	for i, sev := range severities {
		g.Go(func() error {
			return s.db.WithContext(gctx).Model(&models.FlaggedImage{}).
				Where("review_status = ? AND severity = ?", models.ReviewPending, sev).
				Count(&severityCounts[i]).Error
		})
	}
	g.Go(func() error {
		return s.db.WithContext(gctx).Where("review_status = ?", models.ReviewPending).
			Order("flagged_at DESC").Limit(recentFlagsLimit).Find(&stats.RecentFlags).Error
	})
	g.Go(func() error {
		return s.db.WithContext(gctx).Select("id", "moderation_result").
			Where("review_status = ?", models.ReviewPending).Find(&pending).Error
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to compute flagged image stats: %w", err)
	}

	for i, st := range statuses {
		stats.ByStatus[st] = statusCounts[i]
	}
	for i, sev := range severities {
		stats.BySeverity[sev] = severityCounts[i]
	}
	stats.ViolationCategories = categoryBreakdown(pending)
	return stats, nil
}

// categoryBreakdown counts violations per category, most frequent first.
func categoryBreakdown(records []models.FlaggedImage) []CategoryCount {
	counts := make(map[moderation.Category]int64)
	var order []moderation.Category
	for _, r := range records {
		for _, v := range r.ModerationResult.Data().Violations {
			if _, seen := counts[v.Category]; !seen {
				order = append(order, v.Category)
			}
			counts[v.Category]++
		}
	}
	out := make([]CategoryCount, 0, len(order))
	for _, c := range order {
		out = append(out, CategoryCount{Category: c, Count: counts[c]})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	return out
}

// HighPriority returns pending high and critical records, most severe first and
// oldest first within a severity.
func (s *ReviewStore) HighPriority(ctx context.Context, limit int) ([]models.FlaggedImage, error) {
	if limit <= 0 {
		limit = DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	var items []models.FlaggedImage
	err := s.db.WithContext(ctx).
		Where("review_status = ? AND severity IN ?", models.ReviewPending,
			[]moderation.Severity{moderation.SeverityHigh, moderation.SeverityCritical}).
		Order(severityRank + " DESC").
		Order("flagged_at ASC").
		Limit(limit).
		Find(&items).Error
	return items, err
}

func (s *ReviewStore) UpdateReview(ctx context.Context, id uuid.UUID, u ReviewUpdate) error {
	result := s.db.WithContext(ctx).Model(&models.FlaggedImage{}).
		Where("id = ?", id).
		Updates(u.columns())
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrFlaggedImageNotFound
	}
	return nil
}

// BulkUpdateReview applies u to every existing id and returns the number of rows changed.
func (s *ReviewStore) BulkUpdateReview(ctx context.Context, ids []uuid.UUID, u ReviewUpdate) (int64, error) {
	if len(ids) == 0 {
		return 0, ErrEmptyIDList
	}
	result := s.db.WithContext(ctx).Model(&models.FlaggedImage{}).
		Where("id IN ?", ids).
		Updates(u.columns())
	return result.RowsAffected, result.Error
}

func (s *ReviewStore) MarkFileDeleted(ctx context.Context, id uuid.UUID, at time.Time) error {
	result := s.db.WithContext(ctx).Model(&models.FlaggedImage{}).
		Where("id = ?", id).
		Update("file_deleted_at", at)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrFlaggedImageNotFound
	}
	return nil
}

func (s *ReviewStore) SaveAppeal(ctx context.Context, id uuid.UUID, appeal models.Appeal) error {
	result := s.db.WithContext(ctx).Model(&models.FlaggedImage{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"appeal_submitted":    appeal.Submitted,
			"appeal_message":      appeal.Message,
			"appeal_submitted_at": appeal.SubmittedAt,
			"appeal_resolved_at":  appeal.ResolvedAt,
			"appeal_resolution":   appeal.Resolution,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrFlaggedImageNotFound
	}
	return nil
}

// Delete hard-removes the record.
func (s *ReviewStore) Delete(ctx context.Context, id uuid.UUID) error {
	result := s.db.WithContext(ctx).Where("id = ?", id).Delete(&models.FlaggedImage{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrFlaggedImageNotFound
	}
	return nil
}
