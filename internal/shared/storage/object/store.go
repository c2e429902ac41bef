package object

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"

	"github.com/WeDesignz/WebApp-sub000/internal/shared/util"
)

var (
	// ErrInvalidKey is returned for keys that escape the store root.
	ErrInvalidKey = errors.New("invalid storage key")
	// ErrNotFound is returned by Open when nothing is stored under the key.
	ErrNotFound = errors.New("object not found")
)

// ObjectStore persists generated bundles.
type ObjectStore interface {
	Put(ctx context.Context, storageKey, contentType string, r io.Reader) (sizeBytes int64, err error)
	Open(ctx context.Context, storageKey string) (*Object, error)
}

// Object is an open stored artifact. The caller closes Body.
type Object struct {
	Body io.ReadCloser
	// Size is -1 when the backend does not report it.
	Size        int64
	ContentType string
}

// BundleKey returns the storage key for a generated bundle, namespaced by a hash of the owner.
func BundleKey(userID, jobID string) string {
	return path.Join(util.UserKey(userID), "mock-pdf", jobID+".pdf")
}

// CleanKey normalizes a storage key and rejects absolute or parent-relative keys.
func CleanKey(storageKey string) (string, error) {
	trimmed := strings.TrimSpace(storageKey)
	if trimmed == "" {
		return "", ErrInvalidKey
	}
	clean := path.Clean(strings.ReplaceAll(trimmed, "\\", "/"))
	if strings.HasPrefix(clean, "/") || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", ErrInvalidKey
	}
	return clean, nil
}
