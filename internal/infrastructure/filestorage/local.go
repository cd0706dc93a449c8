package filestorage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/sagenius/agency-crm/internal/domain/shared"
)

// LocalBackend stores objects under a root directory. Used in development
// and when no bucket is configured.
type LocalBackend struct {
	root    string
	baseURL string
}

// NewLocalBackend creates the root directory if needed. baseURL prefixes
// returned URLs, e.g. "/files".
func NewLocalBackend(root, baseURL string) (*LocalBackend, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("filestorage: create root: %w", err)
	}
	return &LocalBackend{root: root, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

func (b *LocalBackend) path(key string) (string, error) {
	p := filepath.Join(b.root, filepath.FromSlash(key))
	rel, err := filepath.Rel(b.root, p)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", shared.NewDomainError("filestorage", "Put", shared.ErrInvalidInput, "object key escapes storage root")
	}
	return p, nil
}

// Put implements Backend.
func (b *LocalBackend) Put(ctx context.Context, key, _ string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	p, err := b.path(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return "", shared.StorageFailure("filestorage.Put", err)
	}

	f, err := os.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return "", ErrObjectExists
		}
		return "", shared.StorageFailure("filestorage.Put", err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(p)
		return "", shared.StorageFailure("filestorage.Put", err)
	}
	if err := f.Close(); err != nil {
		return "", shared.StorageFailure("filestorage.Put", err)
	}
	return b.baseURL + "/" + key, nil
}

// Delete implements Backend. Missing objects are not an error.
func (b *LocalBackend) Delete(_ context.Context, key string) error {
	p, err := b.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return shared.StorageFailure("filestorage.Delete", err)
	}
	return nil
}
