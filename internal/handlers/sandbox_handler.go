package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/ahmetcoskunkizilkaya/imageguard/internal/dto"
	"github.com/ahmetcoskunkizilkaya/imageguard/internal/middleware"
	"github.com/ahmetcoskunkizilkaya/imageguard/internal/optimizer"
	"github.com/ahmetcoskunkizilkaya/imageguard/internal/services"
	"github.com/gofiber/fiber/v2"
)

// UsageReporter exposes the optimizer's monthly counter.
type UsageReporter interface {
	Configured() bool
	CompressionCount() int64
}

// PresetOptimizer compresses a stored image using a named preset.
type PresetOptimizer interface {
	UsageReporter
	OptimizeWithPreset(ctx context.Context, inputPath, outputPath, preset string) (*optimizer.Result, error)
}

// SandboxHandler runs moderation without persisting, deleting or optimizing.
type SandboxHandler struct {
	uploads *UploadHandler
	usage   PresetOptimizer
}

func NewSandboxHandler(uploads *UploadHandler, usage PresetOptimizer) *SandboxHandler {
	return &SandboxHandler{uploads: uploads, usage: usage}
}

func (h *SandboxHandler) Moderate(c *fiber.Ctx) error {
	form, err := c.MultipartForm()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Expected multipart form data",
		})
	}

	uploaded, err := h.uploads.store(c.UserContext(), form.File[formField], "sandbox")
	if err != nil {
		return uploadError(c, err)
	}
	defer h.uploads.discard(uploaded)

	uc := services.UploadContext{Sandbox: true}
	uc.UploaderID, _ = middleware.CurrentUserID(c)

	result, err := h.uploads.pipeline.ProcessBatch(c.UserContext(), uc, uploaded)
	if err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(dto.ErrorResponse{
			Error: true, Message: "Moderation test was interrupted",
		})
	}

	byPath := make(map[string]services.FileOutcome, len(uploaded))
	for _, o := range result.Validated {
		byPath[o.File.Path] = o
	}
	for _, o := range result.Flagged {
		byPath[o.File.Path] = o
	}

	resp := dto.SandboxResponse{Results: make([]dto.SandboxFileResult, 0, len(uploaded))}
	for _, f := range uploaded {
		o := byPath[f.Path]
		r := dto.SandboxFileResult{
			Filename:     f.OriginalName,
			IsSafe:       o.Analysis == nil || o.Analysis.IsSafe,
			Severity:     o.Severity,
			AutoRejected: o.AutoRejected,
			Analysis:     o.Analysis,
			Warning:      o.Warning,
		}
		if o.Analysis != nil {
			r.DetectedText = o.Analysis.DetectedText
		}
		resp.Results = append(resp.Results, r)

		resp.Summary.Total++
		switch {
		case o.Analysis == nil:
			resp.Summary.Unanalyzed++
		case o.Analysis.IsSafe:
			resp.Summary.Safe++
		default:
			resp.Summary.Unsafe++
		}
		if o.AutoRejected {
			resp.Summary.AutoRejected++
		}
	}
	resp.Summary.WouldReject = result.Rejected()

	return c.JSON(resp)
}

func (h *SandboxHandler) OptimizationUsage(c *fiber.Ctx) error {
	if h.usage == nil {
		return c.JSON(dto.OptimizationUsageResponse{})
	}
	return c.JSON(dto.OptimizationUsageResponse{
		Configured:       h.usage.Configured(),
		CompressionCount: h.usage.CompressionCount(),
	})
}

// Optimize compresses a single throwaway image with the requested preset and
// reports the savings. The image is removed afterwards.
func (h *SandboxHandler) Optimize(c *fiber.Ctx) error {
	if h.usage == nil || !h.usage.Configured() {
		return c.Status(fiber.StatusServiceUnavailable).JSON(dto.ErrorResponse{
			Error: true, Message: "Image optimization is not configured",
		})
	}

	form, err := c.MultipartForm()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Expected multipart form data",
		})
	}

	preset := firstValue(form, "preset")
	if preset == "" {
		preset = c.Query("preset", "large")
	}
	if _, ok := optimizer.Presets[preset]; !ok {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: fmt.Sprintf("Unknown preset %q, expected one of: %s", preset, strings.Join(presetNames(), ", ")),
		})
	}
	if len(form.File[formField]) > 1 {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Exactly one image is required",
		})
	}

	uploaded, err := h.uploads.store(c.UserContext(), form.File[formField], "sandbox")
	if err != nil {
		return uploadError(c, err)
	}
	defer h.uploads.discard(uploaded)

	result, err := h.usage.OptimizeWithPreset(c.UserContext(), uploaded[0].Path, "", preset)
	if err != nil {
		status := fiber.StatusBadGateway
		switch {
		case errors.Is(err, optimizer.ErrNotConfigured):
			status = fiber.StatusServiceUnavailable
		case optimizer.IsKind(err, optimizer.KindClient):
			status = fiber.StatusUnprocessableEntity
		}
		slog.Warn("optimization test failed", "component", "optimizer", "file", uploaded[0].OriginalName, "preset", preset, "error", err)
		return c.Status(status).JSON(dto.ErrorResponse{
			Error: true, Message: err.Error(),
		})
	}

	return c.JSON(dto.OptimizationTestResponse{
		Filename: uploaded[0].OriginalName,
		Preset:   preset,
		Result:   result,
	})
}

func presetNames() []string {
	names := make([]string, 0, len(optimizer.Presets))
	for name := range optimizer.Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
