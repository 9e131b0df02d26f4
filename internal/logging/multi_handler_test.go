package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingHandler struct{ slog.Handler }

func (failingHandler) Handle(context.Context, slog.Record) error {
	return errors.New("sink down")
}

func TestMultiHandlerKeepsDeliveringWhenASinkFails(t *testing.T) {
	var buf bytes.Buffer
	stdout := slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})
	broken := failingHandler{Handler: slog.NewJSONHandler(&bytes.Buffer{}, nil)}

	h := NewMultiHandler(broken, stdout)
	rec := slog.NewRecord(time.Now(), slog.LevelWarn, "file discarded", 0)
	rec.AddAttrs(slog.String("component", "upload"))
	err := h.Handle(context.Background(), rec)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sink down")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "file discarded", line["msg"])
	assert.Equal(t, "upload", line["component"])
}

func TestMultiHandlerEnabled(t *testing.T) {
	info := slog.NewJSONHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelInfo})
	errOnly := slog.NewJSONHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelError})

	assert.True(t, NewMultiHandler(errOnly, info).Enabled(context.Background(), slog.LevelInfo))
	assert.False(t, NewMultiHandler(errOnly).Enabled(context.Background(), slog.LevelWarn))

	m := NewMultiHandler(info)
	assert.Same(t, m, m.WithGroup(""))
}
