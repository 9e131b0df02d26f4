package handlers

import (
	"context"
	"net/http"
	"testing"

	"github.com/ahmetcoskunkizilkaya/imageguard/internal/dto"
	"github.com/ahmetcoskunkizilkaya/imageguard/internal/moderation"
	"github.com/ahmetcoskunkizilkaya/imageguard/internal/optimizer"
	"github.com/ahmetcoskunkizilkaya/imageguard/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeOptimizer struct {
	files      *memStore
	configured bool
	err        error
	preset     string
	sawFile    bool
}

func (f *fakeOptimizer) Configured() bool { return f.configured }
func (f *fakeOptimizer) CompressionCount() int64 { return 42 }

func (f *fakeOptimizer) OptimizeWithPreset(_ context.Context, inputPath, _, preset string) (*optimizer.Result, error) {
	f.preset = preset
	f.sawFile = f.files.has(inputPath)
	if f.err != nil {
		return nil, f.err
	}
	return &optimizer.Result{OriginalSize: 1000, CompressedSize: 400, CompressionRatio: "60.00%", SavedBytes: 600, OutputPath: inputPath}, nil
}

func newOptimizeFixture(t *testing.T, opt *fakeOptimizer) (*fiber.App, *memStore) {
	t.Helper()
	files := newMemStore()
	opt.files = files
	analyzer := moderation.NewAnalyzer(newClassifier(), moderation.DefaultPolicy())
	pipeline := services.NewModerationPipeline(analyzer, files, services.NewReviewStore(setupDB(t)), nil, nil, services.PipelineConfig{})
	sandbox := NewSandboxHandler(NewUploadHandler(pipeline, files, 3), opt)

	app := fiber.New()
	app.Post("/optimize", sandbox.Optimize)
	app.Get("/usage", sandbox.OptimizationUsage)
	return app, files
}

func TestSandboxOptimize(t *testing.T) {
	t.Run("uses requested preset and discards the file", func(t *testing.T) {
		opt := &fakeOptimizer{configured: true}
		app, files := newOptimizeFixture(t, opt)

		req := multipartRequest(t, "/optimize", map[string]string{"preset": "thumbnail"}, pngFile("room.png", "clean"))
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		body := decode[dto.OptimizationTestResponse](t, resp)
		assert.Equal(t, "room.png", body.Filename)
		assert.Equal(t, "thumbnail", body.Preset)
		require.NotNil(t, body.Result)
		assert.EqualValues(t, 600, body.Result.SavedBytes)
		assert.Equal(t, "thumbnail", opt.preset)
		assert.True(t, opt.sawFile)
		assert.Zero(t, files.len())
	})

	t.Run("defaults to large", func(t *testing.T) {
		opt := &fakeOptimizer{configured: true}
		app, _ := newOptimizeFixture(t, opt)

		resp, err := app.Test(multipartRequest(t, "/optimize", nil, pngFile("room.png", "clean")), -1)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "large", opt.preset)
	})

	t.Run("query preset", func(t *testing.T) {
		opt := &fakeOptimizer{configured: true}
		app, _ := newOptimizeFixture(t, opt)

		resp, err := app.Test(multipartRequest(t, "/optimize?preset=medium", nil, pngFile("room.png", "clean")), -1)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "medium", opt.preset)
	})
}

func TestSandboxOptimizeErrors(t *testing.T) {
	tests := []struct {
		name   string
		opt    *fakeOptimizer
		fields map[string]string
		files  []formFile
		status int
	}{
		{"not configured", &fakeOptimizer{}, nil, []formFile{pngFile("a.png", "clean")}, http.StatusServiceUnavailable},
		{"unknown preset", &fakeOptimizer{configured: true}, map[string]string{"preset": "huge"}, []formFile{pngFile("a.png", "clean")}, http.StatusBadRequest},
		{"no image", &fakeOptimizer{configured: true}, nil, nil, http.StatusBadRequest},
		{"two images", &fakeOptimizer{configured: true}, nil, []formFile{pngFile("a.png", "clean"), pngFile("b.png", "clean")}, http.StatusBadRequest},
		{"rejected input", &fakeOptimizer{configured: true, err: &optimizer.Error{Kind: optimizer.KindClient, Status: 415, Message: "File type is not supported."}}, nil, []formFile{pngFile("a.png", "clean")}, http.StatusUnprocessableEntity},
		{"account limit", &fakeOptimizer{configured: true, err: &optimizer.Error{Kind: optimizer.KindAccount, Status: 429, Message: "limit"}}, nil, []formFile{pngFile("a.png", "clean")}, http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app, files := newOptimizeFixture(t, tt.opt)

			resp, err := app.Test(multipartRequest(t, "/optimize", tt.fields, tt.files...), -1)
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.Zero(t, files.len())
		})
	}
}

func TestSandboxOptimizationUsageReportsCount(t *testing.T) {
	app, _ := newOptimizeFixture(t, &fakeOptimizer{configured: true})

	resp, err := app.Test(jsonRequest(http.MethodGet, "/usage", ""), -1)
	require.NoError(t, err)

	body := decode[dto.OptimizationUsageResponse](t, resp)
	assert.True(t, body.Configured)
	assert.EqualValues(t, 42, body.CompressionCount)
}
