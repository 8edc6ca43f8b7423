package storage

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
)

var _ Store = (*LocalStorage)(nil)

type LocalStorage struct {
	root      string
	urlPrefix string
}

func NewLocalStorage(root, urlPrefix string) *LocalStorage {
	return &LocalStorage{
		root:      root,
		urlPrefix: urlPrefix,
	}
}

func (s *LocalStorage) Root() string {
	return s.root
}

func (s *LocalStorage) Store(ctx context.Context, data []byte, category, basename, ext string) (ArtifactRef, error) {
	rel, err := relativePath(category, basename, ext)
	if err != nil {
		return ArtifactRef{}, fmt.Errorf("store artifact: %w", err)
	}

	dir := filepath.Join(s.root, category)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return ArtifactRef{}, fmt.Errorf("failed to create %s directory: %w", category, err)
	}

	if err := os.WriteFile(s.Path(rel), data, 0644); err != nil {
		return ArtifactRef{}, fmt.Errorf("failed to write artifact: %w", err)
	}

	return ArtifactRef{
		RelativePath: rel,
		Size:         int64(len(data)),
		URL:          s.URL(rel),
	}, nil
}

// Path is the on-disk location of a relative artifact path.
func (s *LocalStorage) Path(rel string) string {
	return filepath.Join(s.root, filepath.FromSlash(rel))
}

func (s *LocalStorage) URL(rel string) string {
	if s.urlPrefix == "" {
		return rel
	}
	return path.Join(s.urlPrefix, rel)
}

func (s *LocalStorage) EnsureDirectories(categories ...string) error {
	for _, c := range categories {
		if err := os.MkdirAll(filepath.Join(s.root, c), 0755); err != nil {
			return fmt.Errorf("failed to create %s directory: %w", c, err)
		}
	}
	return nil
}
