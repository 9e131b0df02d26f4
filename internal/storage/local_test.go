package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s, err := NewLocalStore(t.TempDir(), "/uploads/")
	require.NoError(t, err)

	require.NoError(t, s.Write(ctx, "rooms/a.jpg", []byte("data"), "image/jpeg"))

	got, err := s.Read(ctx, "rooms/a.jpg")
	require.NoError(t, err)
	assert.Equal(t, []byte("data"), got)
	assert.Equal(t, "/uploads/rooms/a.jpg", s.URL("rooms/a.jpg"))

	require.NoError(t, s.Delete(ctx, "rooms/a.jpg"))
	_, err = s.Read(ctx, "rooms/a.jpg")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, "rooms/a.jpg"), ErrNotFound)
}

func TestLocalStore_PathsStayInsideRoot(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	s, err := NewLocalStore(root, "/uploads")
	require.NoError(t, err)

	require.NoError(t, s.Write(ctx, "../../escape.jpg", []byte("x"), "image/jpeg"))

	got, err := s.Read(ctx, "escape.jpg")
	require.NoError(t, err)
	assert.Equal(t, []byte("x"), got)
}

func TestLocalStore_URLMatchesStoredFile(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	s, err := NewLocalStore(root, "/uploads")
	require.NoError(t, err)

	tests := []struct {
		key  string
		want string
	}{
		{"room/3f0c/abc.png", "/uploads/room/3f0c/abc.png"},
		{"/boardinghouse/1/x.jpg", "/uploads/boardinghouse/1/x.jpg"},
		{"../escape.jpg", "/uploads/escape.jpg"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			require.NoError(t, s.Write(ctx, tt.key, []byte("x"), "image/png"))
			url := s.URL(tt.key)
			assert.Equal(t, tt.want, url)

			// The static handler serves root at the prefix.
			onDisk := filepath.Join(root, filepath.FromSlash(strings.TrimPrefix(url, "/uploads/")))
			_, err := os.Stat(onDisk)
			assert.NoError(t, err)
		})
	}
}
