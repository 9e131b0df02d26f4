package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"path/filepath"
	"strings"

	"github.com/ahmetcoskunkizilkaya/imageguard/internal/dto"
	"github.com/ahmetcoskunkizilkaya/imageguard/internal/middleware"
	"github.com/ahmetcoskunkizilkaya/imageguard/internal/models"
	"github.com/ahmetcoskunkizilkaya/imageguard/internal/optimizer"
	"github.com/ahmetcoskunkizilkaya/imageguard/internal/services"
	"github.com/ahmetcoskunkizilkaya/imageguard/internal/storage"
	"github.com/gabriel-vasile/mimetype"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// formField is the multipart field carrying the images.
const formField = "images"

var allowedMIME = []string{"image/jpeg", "image/png", "image/webp"}

// Pipeline is the moderation entry point used by the upload handlers.
type Pipeline interface {
	ProcessBatch(ctx context.Context, uc services.UploadContext, files []services.UploadedFile) (*services.BatchResult, error)
}

type UploadHandler struct {
	pipeline Pipeline
	files    storage.Store
	maxFiles int
}

func NewUploadHandler(pipeline Pipeline, files storage.Store, maxFiles int) *UploadHandler {
	if maxFiles <= 0 {
		maxFiles = 10
	}
	return &UploadHandler{pipeline: pipeline, files: files, maxFiles: maxFiles}
}

// Upload stores the images, runs moderation and reports the outcome. A batch
// with any auto-rejected file is refused with 400.
func (h *UploadHandler) Upload(c *fiber.Ctx) error {
	uploaderID, err := middleware.CurrentUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
			Error: true, Message: "Unauthorized",
		})
	}

	form, err := c.MultipartForm()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Expected multipart form data",
		})
	}
	entity, err := models.ParseEntityRef(firstValue(form, "entityType"), firstValue(form, "entityId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: err.Error(),
		})
	}

	uploaded, err := h.store(c.UserContext(), form.File[formField], entityPrefix(entity))
	if err != nil {
		return uploadError(c, err)
	}

	uc := services.UploadContext{Entity: entity, UploaderID: uploaderID}
	result, err := h.pipeline.ProcessBatch(c.UserContext(), uc, uploaded)
	if err != nil {
		h.discard(unheld(uploaded, result))
		return c.Status(fiber.StatusServiceUnavailable).JSON(dto.ErrorResponse{
			Error: true, Message: "Upload processing was interrupted",
		})
	}

	if result.Rejected() {
		// Accepted files of a refused batch are orphans; held files stay for review.
		h.discard(unheld(uploaded, result))
		return c.Status(fiber.StatusBadRequest).JSON(dto.UploadRejectedResponse{
			Error:             true,
			Code:              dto.CodeImageValidationFailed,
			Message:           "One or more uploaded images contain inappropriate content and were rejected",
			FlaggedCount:      len(result.Flagged),
			AutoRejectedCount: len(result.AutoRejected),
			Files:             flaggedFiles(result.AutoRejected),
		})
	}

	accepted := make([]dto.AcceptedImage, 0, len(result.Validated))
	for _, v := range result.Validated {
		accepted = append(accepted, dto.AcceptedImage{
			Filename:     v.File.OriginalName,
			Path:         v.File.Path,
			URL:          v.File.URL,
			Optimization: v.Optimization,
			Warning:      v.Warning,
		})
	}
	warnings := result.Warnings
	if warnings == nil {
		warnings = []string{}
	}
	return c.Status(fiber.StatusCreated).JSON(dto.UploadAcceptedResponse{
		Accepted: accepted,
		Flagged:  flaggedFiles(result.HeldForReview()),
		Warnings: warnings,
	})
}

type uploadValidationError struct {
	msg string
}

func (e *uploadValidationError) Error() string { return e.msg }

// store validates every file before writing any of them.
func (h *UploadHandler) store(ctx context.Context, headers []*multipart.FileHeader, prefix string) ([]services.UploadedFile, error) {
	if len(headers) == 0 {
		return nil, &uploadValidationError{msg: "At least one image is required"}
	}
	if len(headers) > h.maxFiles {
		return nil, &uploadValidationError{msg: fmt.Sprintf("At most %d images can be uploaded at once", h.maxFiles)}
	}

	type pending struct {
		header *multipart.FileHeader
		data   []byte
		mime   string
	}
	files := make([]pending, 0, len(headers))
	for _, fh := range headers {
		if !optimizer.ValidExtension(fh.Filename) {
			return nil, &uploadValidationError{msg: fmt.Sprintf("%s: only .jpg, .jpeg, .png and .webp images are allowed", fh.Filename)}
		}
		data, err := readFormFile(fh)
		if err != nil {
			return nil, err
		}
		mt := mimetype.Detect(data)
		if !mimetype.EqualsAny(mt.String(), allowedMIME...) {
			return nil, &uploadValidationError{msg: fmt.Sprintf("%s: file content is %s, not a supported image", fh.Filename, mt.String())}
		}
		files = append(files, pending{header: fh, data: data, mime: mt.String()})
	}

	out := make([]services.UploadedFile, 0, len(files))
	for _, f := range files {
		key := prefix + "/" + uuid.NewString() + strings.ToLower(filepath.Ext(f.header.Filename))
		if err := h.files.Write(ctx, key, f.data, f.mime); err != nil {
			h.discard(out)
			return nil, fmt.Errorf("failed to store %s: %w", f.header.Filename, err)
		}
		out = append(out, services.UploadedFile{Path: key, OriginalName: f.header.Filename, URL: h.files.URL(key)})
	}
	return out, nil
}

func (h *UploadHandler) discard(files []services.UploadedFile) {
	for _, f := range files {
		if err := h.files.Delete(context.Background(), f.Path); err != nil && !errors.Is(err, storage.ErrNotFound) {
			slog.Warn("failed to discard uploaded file", "component", "upload", "file", f.Path, "error", err)
		}
	}
}

// unheld returns the files that have no pending review record pointing at them.
func unheld(files []services.UploadedFile, result *services.BatchResult) []services.UploadedFile {
	if result == nil {
		return files
	}
	held := make(map[string]bool)
	for _, o := range result.HeldForReview() {
		if o.FlaggedImageID != nil {
			held[o.File.Path] = true
		}
	}
	out := make([]services.UploadedFile, 0, len(files))
	for _, f := range files {
		if !held[f.Path] {
			out = append(out, f)
		}
	}
	return out
}

func readFormFile(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", fh.Filename, err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", fh.Filename, err)
	}
	return data, nil
}

func uploadError(c *fiber.Ctx, err error) error {
	var verr *uploadValidationError
	if errors.As(err, &verr) {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: verr.msg,
		})
	}
	slog.Error("upload storage failed", "component", "upload", "error", err)
	return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
		Error: true, Message: "Failed to store uploaded images",
	})
}

func firstValue(form *multipart.Form, key string) string {
	if vals := form.Value[key]; len(vals) > 0 {
		return strings.TrimSpace(vals[0])
	}
	return ""
}

func entityPrefix(ref models.EntityRef) string {
	if ref == nil {
		return "sandbox"
	}
	return strings.ToLower(string(ref.Type())) + "/" + ref.EntityID().String()
}

func flaggedFiles(outcomes []services.FileOutcome) []dto.FlaggedFile {
	out := make([]dto.FlaggedFile, 0, len(outcomes))
	for _, o := range outcomes {
		f := dto.FlaggedFile{
			Filename:       o.File.OriginalName,
			Severity:       o.Severity,
			AutoRejected:   o.AutoRejected,
			FlaggedImageID: o.FlaggedImageID,
		}
		if o.Analysis != nil {
			f.Violations = o.Analysis.Violations
		}
		out = append(out, f)
	}
	return out
}
