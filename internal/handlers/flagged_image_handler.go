package handlers

import (
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/ahmetcoskunkizilkaya/imageguard/internal/dto"
	"github.com/ahmetcoskunkizilkaya/imageguard/internal/middleware"
	"github.com/ahmetcoskunkizilkaya/imageguard/internal/models"
	"github.com/ahmetcoskunkizilkaya/imageguard/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// FlaggedImageHandler serves the admin review surface and uploader appeals.
type FlaggedImageHandler struct {
	reviewService *services.ReviewService
	now           func() time.Time
}

func NewFlaggedImageHandler(reviewService *services.ReviewService) *FlaggedImageHandler {
	return &FlaggedImageHandler{
		reviewService: reviewService,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

func (h *FlaggedImageHandler) List(c *fiber.Ctx) error {
	page, _ := strconv.Atoi(c.Query("page", "1"))
	limit, _ := strconv.Atoi(c.Query("limit", strconv.Itoa(services.DefaultPageLimit)))
	sort := c.Query("sort", c.Query("sortBy", services.DefaultSort))

	res, err := h.reviewService.Store().List(c.UserContext(), services.ListFilter{
		Status:   c.Query("status", string(models.ReviewPending)),
		Severity: c.Query("severity"),
		Page:     page,
		Limit:    limit,
		Sort:     sort,
	})
	if err != nil {
		return reviewError(c, err, "Failed to fetch flagged images")
	}

	return c.JSON(dto.FlaggedImageListResponse{
		Data: dto.NewFlaggedImageResponses(res.Items, h.now()),
		Pagination: dto.Pagination{
			Total: res.Total,
			Page:  res.Page,
			Limit: res.Limit,
			Pages: res.Pages,
		},
	})
}

func (h *FlaggedImageHandler) Get(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return invalidID(c)
	}
	rec, err := h.reviewService.Store().Get(c.UserContext(), id)
	if err != nil {
		return reviewError(c, err, "Failed to fetch flagged image")
	}
	return c.JSON(dto.NewFlaggedImageResponse(rec, h.now()))
}

func (h *FlaggedImageHandler) Stats(c *fiber.Ctx) error {
	stats, err := h.reviewService.Store().Stats(c.UserContext())
	if err != nil {
		return reviewError(c, err, "Failed to fetch statistics")
	}
	return c.JSON(dto.FlaggedImageStatsResponse{
		Total:               stats.Total,
		ByStatus:            stats.ByStatus,
		BySeverity:          stats.BySeverity,
		ViolationCategories: stats.ViolationCategories,
		RecentFlags:         dto.NewFlaggedImageResponses(stats.RecentFlags, h.now()),
	})
}

func (h *FlaggedImageHandler) HighPriority(c *fiber.Ctx) error {
	limit, _ := strconv.Atoi(c.Query("limit", strconv.Itoa(services.DefaultPageLimit)))
	items, err := h.reviewService.Store().HighPriority(c.UserContext(), limit)
	if err != nil {
		return reviewError(c, err, "Failed to fetch high priority flags")
	}
	return c.JSON(fiber.Map{"data": dto.NewFlaggedImageResponses(items, h.now())})
}

func (h *FlaggedImageHandler) Approve(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return invalidID(c)
	}
	var req dto.ApproveRequest
	if err := parseOptionalBody(c, &req); err != nil {
		return badRequest(c, err)
	}

	rec, err := h.reviewService.Approve(c.UserContext(), id, middleware.ReviewerID(c), req.Notes)
	if err != nil {
		return reviewError(c, err, "Failed to approve image")
	}
	return c.JSON(dto.ReviewResponse{
		Message: "Image approved",
		Data:    dto.NewFlaggedImageResponse(rec, h.now()),
	})
}

func (h *FlaggedImageHandler) Reject(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return invalidID(c)
	}
	var req dto.RejectRequest
	if err := parseOptionalBody(c, &req); err != nil {
		return badRequest(c, err)
	}
	deleteFile := true
	if req.DeleteFile != nil {
		deleteFile = *req.DeleteFile
	}

	rec, err := h.reviewService.Reject(c.UserContext(), id, middleware.ReviewerID(c), services.RejectOptions{
		Notes:       req.Notes,
		ActionTaken: models.ActionTaken(req.ActionTaken),
		DeleteFile:  deleteFile,
	})
	var suspErr *services.SuspensionError
	if errors.As(err, &suspErr) && rec != nil {
		return c.JSON(dto.ReviewResponse{
			Message: "Image rejected",
			Warning: "Account suspension failed: " + suspErr.Err.Error(),
			Data:    dto.NewFlaggedImageResponse(rec, h.now()),
		})
	}
	if err != nil {
		return reviewError(c, err, "Failed to reject image")
	}
	return c.JSON(dto.ReviewResponse{
		Message: "Image rejected",
		Data:    dto.NewFlaggedImageResponse(rec, h.now()),
	})
}

func (h *FlaggedImageHandler) Delete(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return invalidID(c)
	}
	var req dto.DeleteFlaggedImageRequest
	if err := parseOptionalBody(c, &req); err != nil {
		return badRequest(c, err)
	}
	if q := c.Query("deleteFile"); q != "" {
		req.DeleteFile, _ = strconv.ParseBool(q)
	}

	if err := h.reviewService.DeleteRecord(c.UserContext(), id, req.DeleteFile); err != nil {
		return reviewError(c, err, "Failed to delete flagged image")
	}
	return c.JSON(dto.MessageResponse{Message: "Flagged image record deleted"})
}

func (h *FlaggedImageHandler) BatchApprove(c *fiber.Ctx) error {
	var req dto.BatchApproveRequest
	if err := parseBody(c, &req); err != nil {
		return badRequest(c, err)
	}
	n, err := h.reviewService.BatchApprove(c.UserContext(), req.IDs, middleware.ReviewerID(c), req.Notes)
	if err != nil {
		return reviewError(c, err, "Failed to approve images")
	}
	return c.JSON(dto.BatchResponse{Message: "Images approved", Modified: n})
}

func (h *FlaggedImageHandler) BatchReject(c *fiber.Ctx) error {
	var req dto.BatchRejectRequest
	if err := parseBody(c, &req); err != nil {
		return badRequest(c, err)
	}
	n, err := h.reviewService.BatchReject(c.UserContext(), req.IDs, middleware.ReviewerID(c), req.Notes, models.ActionTaken(req.ActionTaken))
	if err != nil {
		return reviewError(c, err, "Failed to reject images")
	}
	return c.JSON(dto.BatchResponse{Message: "Images rejected", Modified: n})
}

func (h *FlaggedImageHandler) SubmitAppeal(c *fiber.Ctx) error {
	uploaderID, err := middleware.CurrentUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
			Error: true, Message: "Unauthorized",
		})
	}
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return invalidID(c)
	}
	var req dto.AppealRequest
	if err := parseBody(c, &req); err != nil {
		return badRequest(c, err)
	}

	rec, err := h.reviewService.SubmitAppeal(c.UserContext(), id, uploaderID, req.Message)
	if err != nil {
		return reviewError(c, err, "Failed to submit appeal")
	}
	return c.Status(fiber.StatusCreated).JSON(dto.NewFlaggedImageResponse(rec, h.now()))
}

func (h *FlaggedImageHandler) ResolveAppeal(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return invalidID(c)
	}
	var req dto.ResolveAppealRequest
	if err := parseBody(c, &req); err != nil {
		return badRequest(c, err)
	}

	rec, err := h.reviewService.ResolveAppeal(c.UserContext(), id, req.Resolution)
	if err != nil {
		return reviewError(c, err, "Failed to resolve appeal")
	}
	return c.JSON(dto.ReviewResponse{
		Message: "Appeal resolved",
		Data:    dto.NewFlaggedImageResponse(rec, h.now()),
	})
}

// errBadBody marks an unparseable request body.
var errBadBody = errors.New("invalid request body")

func parseBody(c *fiber.Ctx, out interface{}) error {
	if err := c.BodyParser(out); err != nil {
		return errBadBody
	}
	return dto.Validate(out)
}

// parseOptionalBody accepts an empty body and leaves out at its zero value.
func parseOptionalBody(c *fiber.Ctx, out interface{}) error {
	if len(c.Body()) == 0 {
		return nil
	}
	return parseBody(c, out)
}

func badRequest(c *fiber.Ctx, err error) error {
	msg := "Invalid request body"
	if !errors.Is(err, errBadBody) {
		msg = dto.ValidationMessage(err)
	}
	return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
		Error: true, Message: msg,
	})
}

func invalidID(c *fiber.Ctx) error {
	return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
		Error: true, Message: "Invalid flagged image ID",
	})
}

func reviewError(c *fiber.Ctx, err error, fallback string) error {
	status := fiber.StatusInternalServerError
	switch {
	case errors.Is(err, services.ErrFlaggedImageNotFound):
		status = fiber.StatusNotFound
	case errors.Is(err, services.ErrEmptyIDList),
		errors.Is(err, services.ErrInvalidAction),
		errors.Is(err, services.ErrInvalidFilter),
		errors.Is(err, services.ErrEmptyAppeal):
		status = fiber.StatusBadRequest
	case errors.Is(err, services.ErrNotUploader):
		status = fiber.StatusForbidden
	case errors.Is(err, services.ErrAppealExists),
		errors.Is(err, services.ErrNoAppeal),
		errors.Is(err, services.ErrAppealResolved):
		status = fiber.StatusConflict
	}

	if status == fiber.StatusInternalServerError {
		slog.Error("review request failed", "component", "review", "path", c.Path(), "reason", fallback, "error", err)
		return c.Status(status).JSON(dto.ErrorResponse{Error: true, Message: fallback})
	}
	return c.Status(status).JSON(dto.ErrorResponse{Error: true, Message: err.Error()})
}
