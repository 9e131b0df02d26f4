package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// GCSStore keeps uploads in a Google Cloud Storage bucket.
type GCSStore struct {
	client     *gcs.Client
	bucketName string
}

func NewGCSStore(ctx context.Context, bucketName, credentialsPath string) (*GCSStore, error) {
	var opts []option.ClientOption
	if credentialsPath != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsPath))
	}

	client, err := gcs.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	return &GCSStore{client: client, bucketName: bucketName}, nil
}

func (s *GCSStore) Read(ctx context.Context, path string) ([]byte, error) {
	r, err := s.client.Bucket(s.bucketName).Object(path).NewReader(ctx)
	if errors.Is(err, gcs.ErrObjectNotExist) {
		return nil, fmt.Errorf("%s: %w", path, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open object: %w", err)
	}
	defer r.Close()
	return io.ReadAll(r)
}

func (s *GCSStore) Write(ctx context.Context, path string, data []byte, contentType string) error {
	wc := s.client.Bucket(s.bucketName).Object(path).NewWriter(ctx)
	wc.ContentType = contentType
	wc.CacheControl = "public, max-age=86400"

	if _, err := wc.Write(data); err != nil {
		_ = wc.Close()
		return fmt.Errorf("failed to write object: %w", err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("failed to close writer: %w", err)
	}
	return nil
}

func (s *GCSStore) Delete(ctx context.Context, path string) error {
	err := s.client.Bucket(s.bucketName).Object(path).Delete(ctx)
	if errors.Is(err, gcs.ErrObjectNotExist) {
		return fmt.Errorf("%s: %w", path, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}

func (s *GCSStore) URL(path string) string {
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", s.bucketName, path)
}

func (s *GCSStore) Close() error {
	return s.client.Close()
}
