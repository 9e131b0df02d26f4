package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/ahmetcoskunkizilkaya/imageguard/internal/database"
	"github.com/ahmetcoskunkizilkaya/imageguard/internal/moderation"
	"github.com/ahmetcoskunkizilkaya/imageguard/internal/storage"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var pngMagic = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

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

type memStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newMemStore() *memStore {
	return &memStore{objects: make(map[string][]byte)}
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
	if _, ok := m.objects[path]; !ok {
		return fmt.Errorf("%s: %w", path, storage.ErrNotFound)
	}
	delete(m.objects, path)
	return nil
}

func (m *memStore) URL(path string) string { return "/uploads/" + path }

func (m *memStore) has(path string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[path]
	return ok
}

func (m *memStore) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}

// markerClassifier picks a verdict from a marker embedded in the image bytes.
type markerClassifier struct {
	verdicts map[string]*moderation.Classification
}

func (c *markerClassifier) Classify(_ context.Context, image []byte) (*moderation.Classification, error) {
	for marker, cls := range c.verdicts {
		if bytes.Contains(image, []byte(marker)) {
			return cls, nil
		}
	}
	return nil, errors.New("vision: service unavailable")
}

func verdict(overrides map[moderation.Category]moderation.Likelihood) *moderation.Classification {
	l := map[moderation.Category]moderation.Likelihood{}
	for _, c := range moderation.SafeSearchCategories {
		l[c] = moderation.VeryUnlikely
	}
	for c, v := range overrides {
		l[c] = v
	}
	return &moderation.Classification{Likelihoods: l}
}

func withText(cls *moderation.Classification, text string) *moderation.Classification {
	cls.Text = text
	return cls
}

func newClassifier() *markerClassifier {
	return &markerClassifier{verdicts: map[string]*moderation.Classification{
		"clean": verdict(nil),
		"adult": verdict(map[moderation.Category]moderation.Likelihood{moderation.CategoryAdult: moderation.VeryLikely}),
		"spoof": verdict(map[moderation.Category]moderation.Likelihood{moderation.CategorySpoof: moderation.Possible}),
		"sign":  withText(verdict(nil), "FOR RENT\nCall 555-0100"),
	}}
}

// asUser stands in for the JWT middleware.
func asUser(id uuid.UUID) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Locals("user", &jwt.Token{Claims: jwt.MapClaims{"sub": id.String()}})
		return c.Next()
	}
}

type formFile struct {
	name    string
	content []byte
}

func pngFile(name, marker string) formFile {
	return formFile{name: name, content: append(append([]byte{}, pngMagic...), marker...)}
}

func multipartRequest(t *testing.T, target string, fields map[string]string, files ...formFile) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	for _, f := range files {
		part, err := w.CreateFormFile(formField, f.name)
		require.NoError(t, err)
		_, err = part.Write(f.content)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func jsonRequest(method, target, body string) *http.Request {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	return req
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}
