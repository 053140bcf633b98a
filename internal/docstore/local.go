package docstore

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// LocalStore archives documents on the local filesystem. It is the
// fallback when no GCS bucket is configured and the default for the CLI.
type LocalStore struct {
	root string
}

func NewLocalStore(root string) (*LocalStore, error) {
	if root == "" {
		root = "documents"
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("NewLocalStore: create root %s: %w", root, err)
	}
	return &LocalStore{root: root}, nil
}

// Save writes the document under <root>/statements/<userID>/<uuid>/<filename>
// and returns a file:// URI.
func (s *LocalStore) Save(ctx context.Context, userID, filename string, data []byte) (string, error) {
	if filename == "" {
		filename = "statement"
	}
	dir := filepath.Join(s.root, "statements", userID, uuid.NewString())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("Save: create dir %s: %w", dir, err)
	}

	dest := filepath.Join(dir, path.Base(filename))
	if err := os.WriteFile(dest, data, 0o644); err != nil {
		return "", fmt.Errorf("Save: write %s: %w", dest, err)
	}

	return "file://" + filepath.ToSlash(dest), nil
}

// Fetch reads the document bytes for a file:// URI.
func (s *LocalStore) Fetch(ctx context.Context, uri string) ([]byte, error) {
	if !strings.HasPrefix(uri, "file://") {
		return nil, fmt.Errorf("Fetch: invalid local URI: %s", uri)
	}
	p := strings.TrimPrefix(uri, "file://")
	if p == "" {
		return nil, fmt.Errorf("Fetch: invalid local URI: %s", uri)
	}

	data, err := os.ReadFile(filepath.FromSlash(p))
	if err != nil {
		return nil, fmt.Errorf("Fetch: read %s: %w", p, err)
	}
	return data, nil
}

var _ DocumentStore = (*LocalStore)(nil)
