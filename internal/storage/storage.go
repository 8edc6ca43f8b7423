package storage

import (
	"context"
	"fmt"
	"path"
	"regexp"
	"strings"
)

const (
	CategoryAudio    = "audio"
	CategoryDiagrams = "diagrams"
	CategoryUploads  = "uploads"
)

const maxBasenameLen = 50

// ArtifactRef points at a stored file. RelativePath is rooted at the media
// root, URL at the serving prefix.
type ArtifactRef struct {
	RelativePath string `json:"relative_path"`
	Size         int64  `json:"byte_size"`
	URL          string `json:"url"`
}

// Store writes artifacts. Writing the same category/basename/ext twice
// leaves only the second write.
type Store interface {
	Store(ctx context.Context, data []byte, category, basename, ext string) (ArtifactRef, error)
}

var sanitizeRegex = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// SanitizeBasename reduces s to a lowercase filesystem-safe name.
func SanitizeBasename(s string) string {
	s = strings.ToLower(s)
	s = sanitizeRegex.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")
	if len(s) > maxBasenameLen {
		s = strings.TrimRight(s[:maxBasenameLen], "_")
	}
	return s
}

func relativePath(category, basename, ext string) (string, error) {
	if category == "" || strings.ContainsAny(category, `/\.`) {
		return "", fmt.Errorf("invalid category %q", category)
	}
	if basename == "" || strings.ContainsAny(basename, `/\`) || basename == "." || basename == ".." {
		return "", fmt.Errorf("invalid basename %q", basename)
	}
	ext = strings.TrimPrefix(ext, ".")
	if ext == "" || strings.ContainsAny(ext, `/\`) {
		return "", fmt.Errorf("invalid extension %q", ext)
	}
	return path.Join(category, basename+"."+ext), nil
}
