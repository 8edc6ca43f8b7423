package storage

import (
	"context"
	"fmt"
	"mime"
	"path"

	"cloud.google.com/go/storage"
)

var _ Store = (*GCSStorage)(nil)

// GCSStorage writes artifacts to a bucket under a fixed object prefix.
type GCSStorage struct {
	client *storage.Client
	bucket string
	prefix string
}

func NewGCSStorage(ctx context.Context, bucket, prefix string) (*GCSStorage, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}

	return &GCSStorage{
		client: client,
		bucket: bucket,
		prefix: prefix,
	}, nil
}

func (s *GCSStorage) Close() error {
	return s.client.Close()
}

func (s *GCSStorage) Store(ctx context.Context, data []byte, category, basename, ext string) (ArtifactRef, error) {
	rel, err := relativePath(category, basename, ext)
	if err != nil {
		return ArtifactRef{}, fmt.Errorf("store artifact: %w", err)
	}

	name := s.objectName(rel)
	w := s.client.Bucket(s.bucket).Object(name).NewWriter(ctx)
	w.ContentType = contentType(rel)

	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return ArtifactRef{}, fmt.Errorf("failed to upload gs://%s/%s: %w", s.bucket, name, err)
	}
	if err := w.Close(); err != nil {
		return ArtifactRef{}, fmt.Errorf("failed to finalize gs://%s/%s: %w", s.bucket, name, err)
	}

	return ArtifactRef{
		RelativePath: rel,
		Size:         int64(len(data)),
		URL:          fmt.Sprintf("https://storage.googleapis.com/%s/%s", s.bucket, name),
	}, nil
}

func (s *GCSStorage) objectName(rel string) string {
	if s.prefix == "" {
		return rel
	}
	return path.Join(s.prefix, rel)
}

func contentType(rel string) string {
	if ct := mime.TypeByExtension(path.Ext(rel)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
