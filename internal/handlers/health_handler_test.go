package handlers

import (
	"net/http"
	"testing"

	"github.com/ahmetcoskunkizilkaya/imageguard/internal/dto"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubUsage struct{ count int64 }

func (s stubUsage) Configured() bool        { return true }
func (s stubUsage) CompressionCount() int64 { return s.count }

func TestHealthCheck(t *testing.T) {
	db := setupDB(t)
	app := fiber.New()
	app.Get("/health", NewHealthHandler(db, "local", false, stubUsage{count: 42}).Check)

	resp, err := app.Test(jsonRequest(http.MethodGet, "/health", ""), -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decode[dto.HealthResponse](t, resp)
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, "ok", body.DB)
	assert.Equal(t, "local", body.Storage)
	assert.False(t, body.Classifier)
	assert.True(t, body.Optimizer)
	assert.Equal(t, int64(42), body.CompressionCount)
}
