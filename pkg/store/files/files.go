package files

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// Object is a stored export.
type Object struct {
	Key string
	// Path is where the object lives inside the store (a file path or s3:// URI)
	Path string
	// URL is the public link, empty when the store has no public base URL
	URL string
}

type Store interface {
	Put(ctx context.Context, key string, content []byte, contentType string) (Object, error)
}

// LocalStore keeps exports in a directory on disk.
type LocalStore struct {
	dir       string
	publicURL string
}

func NewLocalStore(dir, publicURL string) (*LocalStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("export directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create export directory: %w", err)
	}
	return &LocalStore{dir: dir, publicURL: strings.TrimRight(publicURL, "/")}, nil
}

func (s *LocalStore) Put(ctx context.Context, key string, content []byte, _ string) (Object, error) {
	if err := ctx.Err(); err != nil {
		return Object{}, err
	}
	clean, err := cleanKey(key)
	if err != nil {
		return Object{}, err
	}

	full := filepath.Join(s.dir, filepath.FromSlash(clean))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return Object{}, fmt.Errorf("create export directory: %w", err)
	}
	if err := os.WriteFile(full, content, 0o644); err != nil {
		return Object{}, fmt.Errorf("write export %s: %w", clean, err)
	}
	return Object{Key: clean, Path: full, URL: publicLink(s.publicURL, clean)}, nil
}

// cleanKey rejects keys that would escape the store root.
func cleanKey(key string) (string, error) {
	clean := path.Clean("/" + strings.ReplaceAll(key, "\\", "/"))[1:]
	if clean == "" || clean == "." {
		return "", fmt.Errorf("invalid export key %q", key)
	}
	return clean, nil
}

func publicLink(base, key string) string {
	if base == "" {
		return ""
	}
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return base + "/" + strings.Join(parts, "/")
}
