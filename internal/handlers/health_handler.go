package handlers

import (
	"time"

	"github.com/ahmetcoskunkizilkaya/imageguard/internal/database"
	"github.com/ahmetcoskunkizilkaya/imageguard/internal/dto"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type HealthHandler struct {
	db         *gorm.DB
	storage    string
	classifier bool
	usage      UsageReporter
}

func NewHealthHandler(db *gorm.DB, storageBackend string, classifierConfigured bool, usage UsageReporter) *HealthHandler {
	return &HealthHandler{db: db, storage: storageBackend, classifier: classifierConfigured, usage: usage}
}

func (h *HealthHandler) Check(c *fiber.Ctx) error {
	status := "ok"
	dbStatus := "ok"
	if err := database.Ping(h.db); err != nil {
		dbStatus = "unhealthy: " + err.Error()
		status = "degraded"
	}

	resp := dto.HealthResponse{
		Status:     status,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		DB:         dbStatus,
		Storage:    h.storage,
		Classifier: h.classifier,
	}
	if h.usage != nil {
		resp.Optimizer = h.usage.Configured()
		resp.CompressionCount = h.usage.CompressionCount()
	}
	return c.JSON(resp)
}
