// Package storage keeps activity attachments.  Two backends exist: an S3
// bucket (optionally fronted by CloudFront) and a local directory served
// by the HTTP server.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/iliyamo/farm-records/internal/config"
)

// ErrInvalidKey is returned for keys that are empty or escape the store
// root.
var ErrInvalidKey = errors.New("invalid storage key")

// Store saves, removes and addresses objects by key.  Keys use forward
// slashes, e.g. "activities/<id>/<file>".
type Store interface {
	Save(ctx context.Context, key string, body io.Reader, contentType string) error
	Delete(ctx context.Context, key string) error
	URL(key string) string
}

// New builds the Store selected by cfg.Driver.
func New(ctx context.Context, cfg config.StorageConfig) (Store, error) {
	switch strings.ToLower(cfg.Driver) {
	case "", "disk":
		return NewDisk(cfg.DiskDir, cfg.PublicBaseURL)
	case "s3":
		return NewS3(ctx, cfg.S3)
	default:
		return nil, fmt.Errorf("storage: unknown driver %q", cfg.Driver)
	}
}

// cleanKey normalizes key and rejects anything that would resolve outside
// the root.
func cleanKey(key string) (string, error) {
	key = strings.TrimSpace(strings.ReplaceAll(key, `\`, "/"))
	if key == "" {
		return "", ErrInvalidKey
	}
	cleaned := path.Clean("/" + key)[1:]
	if cleaned == "" || cleaned != strings.TrimPrefix(key, "/") || strings.HasPrefix(cleaned, "..") {
		return "", ErrInvalidKey
	}
	return cleaned, nil
}

// SafeFileName reduces a client supplied file name to characters that are
// safe in a storage key.
func SafeFileName(name string) string {
	name = path.Base(strings.ReplaceAll(name, `\`, "/"))
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		case r == ' ':
			b.WriteRune('_')
		}
	}
	out := strings.TrimLeft(b.String(), ".")
	if out == "" {
		return "file"
	}
	if len(out) > 100 {
		out = out[len(out)-100:]
	}
	return out
}
