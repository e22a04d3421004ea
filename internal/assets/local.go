package assets

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// LocalStore keeps assets on the local filesystem and serves them over HTTP.
type LocalStore struct {
	root    string
	baseURL string
}

// NewLocalStore creates the root directory when missing
func NewLocalStore(root, baseURL string) (*LocalStore, error) {
	if !filepath.IsAbs(root) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("assets/local: getwd: %w", err)
		}
		root = filepath.Join(cwd, root)
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("assets/local: mkdir %s: %w", root, err)
	}
	return &LocalStore{root: root, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

func (s *LocalStore) abs(key string) string {
	return filepath.Join(s.root, filepath.FromSlash(key))
}

func (s *LocalStore) Put(ctx context.Context, key, contentType string, body io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	full := s.abs(key)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("assets/local: mkdir: %w", err)
	}
	f, err := os.Create(full)
	if err != nil {
		return "", fmt.Errorf("assets/local: create %s: %w", key, err)
	}
	defer f.Close()

	if _, err := io.Copy(f, body); err != nil {
		_ = os.Remove(full)
		return "", fmt.Errorf("assets/local: write %s: %w", key, err)
	}
	return s.baseURL + "/" + key, nil
}

func (s *LocalStore) Delete(ctx context.Context, uri string) error {
	key, err := keyFromURI(s.baseURL, uri)
	if err != nil {
		return err
	}
	if err := os.Remove(s.abs(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("assets/local: delete %s: %w", key, err)
	}
	return nil
}

// Handler serves stored files, to be mounted under the path of baseURL
func (s *LocalStore) Handler() http.Handler {
	return http.FileServer(http.Dir(s.root))
}
