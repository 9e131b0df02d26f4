package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ahmetcoskunkizilkaya/imageguard/internal/metrics"
	"github.com/ahmetcoskunkizilkaya/imageguard/internal/models"
	"github.com/ahmetcoskunkizilkaya/imageguard/internal/storage"
	"github.com/google/uuid"
)

var (
	ErrInvalidAction  = errors.New("invalid action taken")
	ErrAppealExists   = errors.New("appeal already submitted")
	ErrNotUploader    = errors.New("only the uploader can appeal this image")
	ErrEmptyAppeal    = errors.New("appeal message is required")
	ErrNoAppeal       = errors.New("no appeal submitted for this image")
	ErrAppealResolved = errors.New("appeal already resolved")
)

const (
	defaultApproveNotes      = "Approved by admin"
	defaultRejectNotes       = "Rejected due to policy violation"
	defaultBatchApproveNotes = "Batch approved"
	defaultBatchRejectNotes  = "Batch rejected"
)

// RejectOptions controls a single rejection. ActionTaken defaults to removed.
type RejectOptions struct {
	Notes       string
	ActionTaken models.ActionTaken
	DeleteFile  bool
}

// ReviewService applies admin dispositions to flagged images.
type ReviewService struct {
	store    *ReviewStore
	accounts *AccountService
	files    storage.Store
	metrics  *metrics.ModerationMetrics
	now      func() time.Time
}

func NewReviewService(store *ReviewStore, accounts *AccountService, files storage.Store, m *metrics.ModerationMetrics) *ReviewService {
	return &ReviewService{
		store:    store,
		accounts: accounts,
		files:    files,
		metrics:  m,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *ReviewService) Store() *ReviewStore {
	return s.store
}

// Approve marks the record approved. Repeating it only refreshes reviewer metadata.
func (s *ReviewService) Approve(ctx context.Context, id uuid.UUID, reviewer *uuid.UUID, notes string) (*models.FlaggedImage, error) {
	if notes == "" {
		notes = defaultApproveNotes
	}
	err := s.store.UpdateReview(ctx, id, ReviewUpdate{
		Status:      models.ReviewApproved,
		ReviewedBy:  reviewer,
		ReviewedAt:  s.now(),
		Notes:       notes,
		ActionTaken: models.ActionNone,
	})
	if err != nil {
		return nil, err
	}
	s.metrics.RecordReviewAction("approve", 1)
	return s.store.Get(ctx, id)
}

// Reject marks the record rejected, optionally deletes the stored file, and
// suspends the uploader when the action is account_suspended. The suspension is
// a separate write after the record update; when it fails the updated record is
// returned together with a *SuspensionError.
func (s *ReviewService) Reject(ctx context.Context, id uuid.UUID, reviewer *uuid.UUID, opts RejectOptions) (*models.FlaggedImage, error) {
	action := opts.ActionTaken
	if action == "" {
		action = models.ActionRemoved
	}
	if !action.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAction, action)
	}
	notes := opts.Notes
	if notes == "" {
		notes = defaultRejectNotes
	}

	rec, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	alreadySuspended := rec.ReviewStatus == models.ReviewRejected && rec.ActionTaken == models.ActionAccountSuspended

	now := s.now()
	err = s.store.UpdateReview(ctx, id, ReviewUpdate{
		Status:      models.ReviewRejected,
		ReviewedBy:  reviewer,
		ReviewedAt:  now,
		Notes:       notes,
		ActionTaken: action,
	})
	if err != nil {
		return nil, err
	}
	s.metrics.RecordReviewAction("reject", 1)

	if opts.DeleteFile {
		removeStoredFile(ctx, s.files, s.store, rec, now)
	}

	var suspendErr error
	if action == models.ActionAccountSuspended && !alreadySuspended {
		if err := s.accounts.Suspend(ctx, rec.UploaderID, DefaultSuspensionReason, now); err != nil {
			slog.Error("account suspension failed after rejection",
				"component", "moderation",
				"action", "account_suspended",
				"flagged_image_id", id.String(),
				"user_id", rec.UploaderID.String(),
				"error", err,
			)
			suspendErr = &SuspensionError{UserID: rec.UploaderID, Err: err}
		} else {
			s.metrics.RecordSuspension()
		}
	}

	updated, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return updated, suspendErr
}

// BatchApprove approves every existing id in one update. Missing ids are skipped.
func (s *ReviewService) BatchApprove(ctx context.Context, ids []uuid.UUID, reviewer *uuid.UUID, notes string) (int64, error) {
	if notes == "" {
		notes = defaultBatchApproveNotes
	}
	n, err := s.store.BulkUpdateReview(ctx, ids, ReviewUpdate{
		Status:      models.ReviewApproved,
		ReviewedBy:  reviewer,
		ReviewedAt:  s.now(),
		Notes:       notes,
		ActionTaken: models.ActionNone,
	})
	if err != nil {
		return 0, err
	}
	s.metrics.RecordReviewAction("batch_approve", n)
	return n, nil
}

// BatchReject rejects every existing id in one update. It never deletes files
// or suspends accounts.
func (s *ReviewService) BatchReject(ctx context.Context, ids []uuid.UUID, reviewer *uuid.UUID, notes string, action models.ActionTaken) (int64, error) {
	if action == "" {
		action = models.ActionRemoved
	}
	if !action.Valid() {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAction, action)
	}
	if notes == "" {
		notes = defaultBatchRejectNotes
	}
	n, err := s.store.BulkUpdateReview(ctx, ids, ReviewUpdate{
		Status:      models.ReviewRejected,
		ReviewedBy:  reviewer,
		ReviewedAt:  s.now(),
		Notes:       notes,
		ActionTaken: action,
	})
	if err != nil {
		return 0, err
	}
	s.metrics.RecordReviewAction("batch_reject", n)
	return n, nil
}

// DeleteRecord hard-deletes the record, optionally removing the stored file first.
func (s *ReviewService) DeleteRecord(ctx context.Context, id uuid.UUID, deleteFile bool) error {
	rec, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if deleteFile {
		removeStoredFile(ctx, s.files, nil, rec, s.now())
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.metrics.RecordReviewAction("delete", 1)
	return nil
}

// SubmitAppeal records the uploader's dispute. Only one appeal per record is accepted.
func (s *ReviewService) SubmitAppeal(ctx context.Context, id, uploaderID uuid.UUID, message string) (*models.FlaggedImage, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, ErrEmptyAppeal
	}
	rec, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.UploaderID != uploaderID {
		return nil, ErrNotUploader
	}
	if rec.Appeal.Submitted {
		return nil, ErrAppealExists
	}

	now := s.now()
	rec.Appeal = models.Appeal{Submitted: true, Message: message, SubmittedAt: &now}
	if err := s.store.SaveAppeal(ctx, id, rec.Appeal); err != nil {
		return nil, err
	}
	return s.store.Get(ctx, id)
}

// ResolveAppeal closes an open appeal. The review status is left as is.
func (s *ReviewService) ResolveAppeal(ctx context.Context, id uuid.UUID, resolution string) (*models.FlaggedImage, error) {
	resolution = strings.TrimSpace(resolution)
	rec, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !rec.Appeal.Submitted {
		return nil, ErrNoAppeal
	}
	if rec.Appeal.ResolvedAt != nil {
		return nil, ErrAppealResolved
	}

	now := s.now()
	rec.Appeal.ResolvedAt = &now
	rec.Appeal.Resolution = resolution
	if err := s.store.SaveAppeal(ctx, id, rec.Appeal); err != nil {
		return nil, err
	}
	s.metrics.RecordReviewAction("resolve_appeal", 1)
	return s.store.Get(ctx, id)
}
