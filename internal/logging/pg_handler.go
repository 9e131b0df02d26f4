package logging

import (
	"context"
	"encoding/json"
	"log/slog"
	"math"
	"os"
	"sync"
	"time"

	"github.com/ahmetcoskunkizilkaya/imageguard/internal/models"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// PGHandler is an slog.Handler that batches WARN+ logs to PostgreSQL, so
// analyzer outages and swallowed moderation failures stay queryable.
type PGHandler struct {
	core  *pgCore
	attrs []slog.Attr
}

type pgCore struct {
	db       *gorm.DB
	minLevel slog.Level
	mu       sync.Mutex
	buffer   []models.SystemLog
	ticker   *time.Ticker
	done     chan struct{}
	stopOnce sync.Once
	// fallback reports flush failures. It must not route back into this handler.
	fallback *slog.Logger
}

func NewPGHandler(db *gorm.DB, minLevel slog.Level) *PGHandler {
	core := &pgCore{
		db:       db,
		minLevel: minLevel,
		buffer:   make([]models.SystemLog, 0, 50),
		ticker:   time.NewTicker(5 * time.Second),
		done:     make(chan struct{}),
		fallback: slog.New(slog.NewJSONHandler(os.Stdout, nil)),
	}
	go core.flushLoop()
	return &PGHandler{core: core}
}

func (c *pgCore) flushLoop() {
	for {
		select {
		case <-c.ticker.C:
			c.flush()
		case <-c.done:
			c.flush()
			return
		}
	}
}

func (c *pgCore) flush() {
	c.mu.Lock()
	if len(c.buffer) == 0 {
		c.mu.Unlock()
		return
	}
	batch := c.buffer
	c.buffer = make([]models.SystemLog, 0, 50)
	c.mu.Unlock()

	if err := c.db.CreateInBatches(batch, 50).Error; err != nil {
		c.fallback.Error("failed to flush system logs to DB", "error", err, "count", len(batch))
	}
}

// Flush writes buffered entries synchronously.
func (h *PGHandler) Flush() {
	h.core.flush()
}

func (h *PGHandler) Stop() {
	h.core.stopOnce.Do(func() {
		h.core.ticker.Stop()
		close(h.core.done)
	})
}

func (h *PGHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.core.minLevel
}

func (h *PGHandler) Handle(_ context.Context, record slog.Record) error {
	entry := models.SystemLog{
		ID:        uuid.New(),
		Timestamp: record.Time,
		Level:     record.Level.String(),
		Message:   record.Message,
	}

	extra := make(map[string]interface{})
	apply := func(a slog.Attr) bool {
		switch a.Key {
		case "component":
			entry.Component = a.Value.String()
		case "trace_id", "request_id":
			entry.TraceID = a.Value.String()
		case "user_id", "uploader_id":
			s := a.Value.String()
			entry.UserID = &s
		case "flagged_image_id":
			s := a.Value.String()
			entry.FlaggedImageID = &s
		case "file":
			entry.File = a.Value.String()
		case "action":
			entry.Action = a.Value.String()
		case "error":
			entry.Error = a.Value.String()
		case "latency_ms":
			switch v := a.Value.Any().(type) {
			case float64:
				entry.LatencyMs = int(math.Round(v))
			case int64:
				entry.LatencyMs = int(v)
			}
		default:
			extra[a.Key] = a.Value.Any()
		}
		return true
	}
	for _, a := range h.attrs {
		apply(a)
	}
	record.Attrs(apply)

	if len(extra) > 0 {
		if b, err := json.Marshal(extra); err == nil {
			entry.Extra = datatypes.JSON(b)
		}
	}

	c := h.core
	c.mu.Lock()
	c.buffer = append(c.buffer, entry)
	needFlush := len(c.buffer) >= 50
	c.mu.Unlock()

	if needFlush {
		go c.flush()
	}
	return nil
}

func (h *PGHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &PGHandler{core: h.core, attrs: merged}
}

func (h *PGHandler) WithGroup(name string) slog.Handler {
	return h
}
