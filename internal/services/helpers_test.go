package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ahmetcoskunkizilkaya/imageguard/internal/database"
	"github.com/ahmetcoskunkizilkaya/imageguard/internal/models"
	"github.com/ahmetcoskunkizilkaya/imageguard/internal/moderation"
	"github.com/ahmetcoskunkizilkaya/imageguard/internal/storage"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, database.Migrate(db))
	return db
}

// memStore is an in-memory storage.Store that counts deletions.
type memStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	deletes map[string]int
	failDel bool
}

func newMemStore() *memStore {
	return &memStore{objects: make(map[string][]byte), deletes: make(map[string]int)}
}

func (m *memStore) Read(_ context.Context, path string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[path]
	if !ok {
		return nil, fmt.Errorf("%s: %w", path, storage.ErrNotFound)
	}
	return data, nil
}

func (m *memStore) Write(_ context.Context, path string, data []byte, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[path] = data
	return nil
}

func (m *memStore) Delete(_ context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failDel {
		return errors.New("permission denied")
	}
	m.deletes[path]++
	if _, ok := m.objects[path]; !ok {
		return fmt.Errorf("%s: %w", path, storage.ErrNotFound)
	}
	delete(m.objects, path)
	return nil
}

func (m *memStore) URL(path string) string {
	return "/uploads/" + path
}

func (m *memStore) has(path string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[path]
	return ok
}

func (m *memStore) deleteCount(path string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deletes[path]
}

// fixedClock returns a clock that advances by one second per call.
func fixedClock(start time.Time) func() time.Time {
	var mu sync.Mutex
	current := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now := current
		current = current.Add(time.Second)
		return now
	}
}

type flagOpts struct {
	status     models.ReviewStatus
	severity   moderation.Severity
	flaggedAt  time.Time
	uploader   uuid.UUID
	violations []moderation.Violation
	path       string
}

func seedFlagged(t *testing.T, db *gorm.DB, o flagOpts) *models.FlaggedImage {
	t.Helper()
	if o.status == "" {
		o.status = models.ReviewPending
	}
	if o.severity == "" {
		o.severity = moderation.SeverityMedium
	}
	if o.flaggedAt.IsZero() {
		o.flaggedAt = time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	}
	if o.uploader == uuid.Nil {
		o.uploader = uuid.New()
	}
	if o.path == "" {
		o.path = uuid.NewString() + ".jpg"
	}
	if o.violations == nil {
		o.violations = []moderation.Violation{{Category: moderation.CategorySpoof, Likelihood: moderation.Possible}}
	}
	rec := &models.FlaggedImage{
		ImagePath:  o.path,
		EntityType: models.EntityRoom,
		EntityID:   uuid.New(),
		UploaderID: o.uploader,
		ModerationResult: datatypes.NewJSONType(moderation.AnalysisResult{
			IsSafe:     false,
			Violations: o.violations,
		}),
		ReviewStatus: o.status,
		ActionTaken:  models.ActionNone,
		Severity:     o.severity,
		FlaggedAt:    o.flaggedAt,
	}
	require.NoError(t, db.Create(rec).Error)
	return rec
}

func seedUser(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()
	u := &models.User{Email: uuid.NewString() + "@example.com", Name: "Uploader"}
	require.NoError(t, db.Create(u).Error)
	return u
}
