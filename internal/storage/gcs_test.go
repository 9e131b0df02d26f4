package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeGCS answers the emulator-style endpoints the GCS client uses: XML reads at
// /<bucket>/<object>, JSON deletes and multipart uploads under /storage/v1 and
// /upload/storage/v1.
type fakeGCS struct {
	mu      sync.Mutex
	objects map[string]string
	uploads int
	deletes []string
}

func (f *fakeGCS) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch {
	case strings.HasPrefix(r.URL.Path, "/upload/storage/v1/b/imgs/o"):
		_, _ = io.Copy(io.Discard, r.Body)
		f.uploads++
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"bucket":"imgs","name":"room/2/b.webp","size":"4","contentType":"image/webp"}`)
	case r.Method == http.MethodDelete && strings.HasPrefix(r.URL.Path, "/storage/v1/b/imgs/o/"):
		name := strings.TrimPrefix(r.URL.Path, "/storage/v1/b/imgs/o/")
		if _, ok := f.objects[name]; !ok {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `{"error":{"code":404,"message":"No such object"}}`)
			return
		}
		delete(f.objects, name)
		f.deletes = append(f.deletes, name)
		w.WriteHeader(http.StatusNoContent)
	case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/imgs/"):
		body, ok := f.objects[strings.TrimPrefix(r.URL.Path, "/imgs/")]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = io.WriteString(w, body)
	default:
		w.WriteHeader(http.StatusNotImplemented)
	}
}

func newTestGCSStore(t *testing.T) (*GCSStore, *fakeGCS) {
	t.Helper()
	fake := &fakeGCS{objects: map[string]string{"room/1/a.png": "png-bytes"}}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	t.Setenv("STORAGE_EMULATOR_HOST", strings.TrimPrefix(srv.URL, "http://"))

	s, err := NewGCSStore(context.Background(), "imgs", "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, fake
}

func TestGCSStore_Read(t *testing.T) {
	s, _ := newTestGCSStore(t)

	got, err := s.Read(context.Background(), "room/1/a.png")
	require.NoError(t, err)
	assert.Equal(t, []byte("png-bytes"), got)

	_, err = s.Read(context.Background(), "room/1/missing.png")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGCSStore_Delete(t *testing.T) {
	s, fake := newTestGCSStore(t)
	ctx := context.Background()

	require.NoError(t, s.Delete(ctx, "room/1/a.png"))
	assert.ErrorIs(t, s.Delete(ctx, "room/1/a.png"), ErrNotFound)

	fake.mu.Lock()
	defer fake.mu.Unlock()
	assert.Equal(t, []string{"room/1/a.png"}, fake.deletes)
}

func TestGCSStore_WriteAndURL(t *testing.T) {
	s, fake := newTestGCSStore(t)

	require.NoError(t, s.Write(context.Background(), "room/2/b.webp", []byte("webp"), "image/webp"))

	fake.mu.Lock()
	defer fake.mu.Unlock()
	assert.Equal(t, 1, fake.uploads)
	assert.Equal(t, "https://storage.googleapis.com/imgs/room/2/b.webp", s.URL("room/2/b.webp"))
}
