// Package assets stores product images and releases them when a product stops
// referencing them.
package assets

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"storefront/internal/config"

	"github.com/google/uuid"
)

var ErrUnknownAsset = errors.New("asset uri does not belong to this store")

// Store is an object store addressed by key on write and by public URI afterwards
type Store interface {
	// Put stores body under key and returns the public URI of the asset
	Put(ctx context.Context, key, contentType string, body io.Reader) (string, error)
	// Delete removes the asset behind uri
	Delete(ctx context.Context, uri string) error
}

// NewStore builds the driver selected by cfg.Driver
func NewStore(ctx context.Context, cfg config.AssetConfig) (Store, error) {
	switch cfg.Driver {
	case "s3":
		return NewS3Store(ctx, cfg)
	case "local", "":
		return NewLocalStore(cfg.LocalRoot, cfg.LocalURL)
	default:
		return nil, fmt.Errorf("unknown asset driver %q", cfg.Driver)
	}
}

// NewKey returns a collision-free object key for an uploaded product image.
// Only the extension of the client supplied name is kept.
func NewKey(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if len(ext) > 10 || strings.ContainsAny(ext, `/\`) {
		ext = ""
	}
	return "products/" + uuid.NewString() + ext
}

func keyFromURI(baseURL, uri string) (string, error) {
	prefix := strings.TrimRight(baseURL, "/") + "/"
	if !strings.HasPrefix(uri, prefix) {
		return "", fmt.Errorf("%w: %s", ErrUnknownAsset, uri)
	}
	key := strings.TrimPrefix(uri, prefix)
	if key == "" || strings.Contains(key, "..") {
		return "", fmt.Errorf("%w: %s", ErrUnknownAsset, uri)
	}
	return key, nil
}
