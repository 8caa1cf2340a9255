// Package storage keeps uploaded images on the local filesystem or in an S3-compatible bucket.
package storage

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/notetasks/constants"
	"github.com/joseph-ayodele/notetasks/internal/common"
)

// Store reads and writes image bytes by slash-separated relative key.
type Store interface {
	Write(ctx context.Context, key string, data []byte, contentType string) error
	Read(ctx context.Context, key string) ([]byte, error)
	Exists(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) error
	Type() string
}

// UploadKey is the storage key for a new upload: uploads/YYYY/MM/DD/<uuid><ext>.
func UploadKey(now time.Time, id uuid.UUID, ext string) string {
	ext = constants.NormalizeExt(ext)
	if ext != "" {
		ext = "." + ext
	}
	return path.Join("uploads", now.UTC().Format("2006/01/02"), id.String()+ext)
}

// cleanKey rejects keys that escape the storage root.
func cleanKey(key string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("%w: empty storage key", common.ErrInvalidInput)
	}
	key = strings.ReplaceAll(key, "\\", "/")
	if strings.HasPrefix(key, "/") {
		return "", fmt.Errorf("%w: absolute storage key %q", common.ErrInvalidInput, key)
	}
	cleaned := path.Clean(key)
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("%w: storage key %q escapes root", common.ErrInvalidInput, key)
	}
	return cleaned, nil
}
