package assets

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"storefront/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewKey(t *testing.T) {
	key := NewKey("Photo.JPG")
	assert.Regexp(t, regexp.MustCompile(`^products/[0-9a-f-]{36}\.jpg$`), key)

	assert.NotEqual(t, NewKey("a.png"), NewKey("a.png"))
	assert.Regexp(t, regexp.MustCompile(`^products/[0-9a-f-]{36}$`), NewKey("no-extension"))
}

func TestKeyFromURI(t *testing.T) {
	key, err := keyFromURI("https://cdn.example.com/", "https://cdn.example.com/products/a.png")
	require.NoError(t, err)
	assert.Equal(t, "products/a.png", key)

	_, err = keyFromURI("https://cdn.example.com", "https://evil.example.com/products/a.png")
	assert.ErrorIs(t, err, ErrUnknownAsset)

	_, err = keyFromURI("https://cdn.example.com", "https://cdn.example.com/../etc/passwd")
	assert.ErrorIs(t, err, ErrUnknownAsset)
}

func TestLocalStore_PutServeDelete(t *testing.T) {
	root := t.TempDir()
	store, err := NewLocalStore(root, "http://localhost:8080/uploads/")
	require.NoError(t, err)

	ctx := context.Background()
	uri, err := store.Put(ctx, "products/lamp.png", "image/png", strings.NewReader("pixels"))
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/uploads/products/lamp.png", uri)

	data, err := os.ReadFile(filepath.Join(root, "products", "lamp.png"))
	require.NoError(t, err)
	assert.Equal(t, "pixels", string(data))

	srv := httptest.NewServer(http.StripPrefix("/uploads", store.Handler()))
	defer srv.Close()
	resp, err := http.Get(srv.URL + "/uploads/products/lamp.png")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "pixels", string(body))

	require.NoError(t, store.Delete(ctx, uri))
	_, err = os.Stat(filepath.Join(root, "products", "lamp.png"))
	assert.True(t, os.IsNotExist(err))

	// already gone
	assert.NoError(t, store.Delete(ctx, uri))
}

func TestNewStore_SelectsDriver(t *testing.T) {
	store, err := NewStore(context.Background(), config.AssetConfig{Driver: "local", LocalRoot: t.TempDir(), LocalURL: "http://x"})
	require.NoError(t, err)
	assert.IsType(t, &LocalStore{}, store)

	_, err = NewStore(context.Background(), config.AssetConfig{Driver: "s3"})
	assert.Error(t, err, "s3 without a bucket must be rejected")

	_, err = NewStore(context.Background(), config.AssetConfig{Driver: "ftp"})
	assert.Error(t, err)
}

func TestNewS3Store_UsesCustomEndpoint(t *testing.T) {
	store, err := NewS3Store(context.Background(), config.AssetConfig{
		S3Bucket:   "images",
		S3Region:   "us-east-1",
		S3Key:      "minio",
		S3Secret:   "minio123",
		S3Endpoint: "http://localhost:9000",
		S3URL:      "http://localhost:9000/images/",
	})
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:9000/images", store.baseURL)

	err = store.Delete(context.Background(), "https://elsewhere.example.com/products/a.png")
	assert.ErrorIs(t, err, ErrUnknownAsset)
}
