package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/ahmetcoskunkizilkaya/imageguard/internal/models"
	"github.com/ahmetcoskunkizilkaya/imageguard/internal/storage"
	"github.com/google/uuid"
)

// removeStoredFile deletes the record's file at most once. A file that is already
// gone counts as deleted. Failures are logged and never returned.
func removeStoredFile(ctx context.Context, files storage.Store, store *ReviewStore, rec *models.FlaggedImage, at time.Time) bool {
	if files == nil || rec.ImagePath == "" || rec.FileDeletedAt != nil {
		return false
	}
	if err := files.Delete(ctx, rec.ImagePath); err != nil && !errors.Is(err, storage.ErrNotFound) {
		slog.Warn("failed to delete flagged image file",
			"component", "moderation",
			"flagged_image_id", rec.ID.String(),
			"file", rec.ImagePath,
			"error", err,
		)
		return false
	}
	rec.FileDeletedAt = &at
	if store != nil && rec.ID != uuid.Nil {
		if err := store.MarkFileDeleted(ctx, rec.ID, at); err != nil && !errors.Is(err, ErrFlaggedImageNotFound) {
			slog.Warn("failed to record file deletion",
				"component", "moderation",
				"flagged_image_id", rec.ID.String(),
				"error", err,
			)
		}
	}
	return true
}
