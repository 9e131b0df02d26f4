package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const noSuchKeyXML = `<?xml version="1.0" encoding="UTF-8"?>
<Error><Code>NoSuchKey</Code><Message>The specified key does not exist.</Message><Key>%s</Key><BucketName>imgs</BucketName><Resource>/imgs/%s</Resource><RequestId>1</RequestId></Error>`

// fakeS3 serves the handful of path-style S3 calls MinioStore makes.
type fakeS3 struct {
	mu       sync.Mutex
	objects  map[string]string
	puts     map[string]string
	removals []string
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := strings.TrimPrefix(r.URL.Path, "/imgs/")
	switch {
	case r.URL.Path == "/imgs" || r.URL.Path == "/imgs/":
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodPut:
		_, _ = io.Copy(io.Discard, r.Body)
		f.puts[key] = r.Header.Get("Content-Type")
		w.Header().Set("ETag", `"d41d8cd98f00b204e9800998ecf8427e"`)
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodGet || r.Method == http.MethodHead:
		body, ok := f.objects[key]
		if !ok {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			if r.Method == http.MethodGet {
				fmt.Fprintf(w, noSuchKeyXML, key, key)
			}
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Content-Length", fmt.Sprint(len(body)))
		w.Header().Set("ETag", `"abc"`)
		w.Header().Set("Last-Modified", time.Now().UTC().Format(http.TimeFormat))
		w.WriteHeader(http.StatusOK)
		if r.Method == http.MethodGet {
			_, _ = io.WriteString(w, body)
		}
	case r.Method == http.MethodDelete:
		f.removals = append(f.removals, key)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusNotImplemented)
	}
}

func newTestMinioStore(t *testing.T) (*MinioStore, *fakeS3) {
	t.Helper()
	fake := &fakeS3{objects: map[string]string{"room/1/a.png": "png-bytes"}, puts: map[string]string{}}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	s, err := NewMinioStore(context.Background(), MinioOptions{
		Endpoint:   strings.TrimPrefix(srv.URL, "http://"),
		Region:     "us-east-1",
		Bucket:     "imgs",
		AccessKey:  "minio",
		SecretKey:  "minio123",
		PublicBase: "https://cdn.example.com/imgs",
	})
	require.NoError(t, err)
	return s, fake
}

func TestMinioStore_Read(t *testing.T) {
	s, _ := newTestMinioStore(t)

	got, err := s.Read(context.Background(), "room/1/a.png")
	require.NoError(t, err)
	assert.Equal(t, []byte("png-bytes"), got)

	_, err = s.Read(context.Background(), "room/1/missing.png")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMinioStore_WriteDeleteURL(t *testing.T) {
	s, fake := newTestMinioStore(t)
	ctx := context.Background()

	require.NoError(t, s.Write(ctx, "room/2/b.webp", []byte("webp"), "image/webp"))
	require.NoError(t, s.Delete(ctx, "room/2/b.webp"))

	fake.mu.Lock()
	defer fake.mu.Unlock()
	assert.Equal(t, "image/webp", fake.puts["room/2/b.webp"])
	assert.Equal(t, []string{"room/2/b.webp"}, fake.removals)
	assert.Equal(t, "https://cdn.example.com/imgs/room/2/b.webp", s.URL("room/2/b.webp"))
}
