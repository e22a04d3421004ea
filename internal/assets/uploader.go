package assets

import (
	"context"
	"fmt"
	"io"
	"time"

	"storefront/internal/metrics"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// File is one uploaded file awaiting storage
type File struct {
	Name        string
	ContentType string
	Open        func() (io.ReadCloser, error)
}

// Uploader stores batches of files and releases assets no longer referenced
type Uploader struct {
	store       Store
	concurrency int
	timeout     time.Duration
	metrics     metrics.Recorder
	logger      *zap.Logger
}

// NewUploader creates an Uploader. Non-positive concurrency or timeout fall back to 4 and 30s.
func NewUploader(store Store, concurrency int, timeout time.Duration, rec metrics.Recorder, logger *zap.Logger) *Uploader {
	if concurrency <= 0 {
		concurrency = 4
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if rec == nil {
		rec = metrics.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Uploader{
		store:       store,
		concurrency: concurrency,
		timeout:     timeout,
		metrics:     rec,
		logger:      logger,
	}
}

// UploadAll stores every file and returns their URIs in submission order.
// The first failure cancels the uploads still running, and every asset already
// stored by this call is released before the error is returned.
func (u *Uploader) UploadAll(ctx context.Context, files []File) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, u.timeout)
	defer cancel()

	uris := make([]string, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(u.concurrency)

	for i, file := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			uri, err := u.put(gctx, file)
			u.metrics.RecordAssetUpload(err == nil)
			if err != nil {
				return fmt.Errorf("upload %q: %w", file.Name, err)
			}
			uris[i] = uri
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		stored := make([]string, 0, len(uris))
		for _, uri := range uris {
			if uri != "" {
				stored = append(stored, uri)
			}
		}
		u.Release(context.WithoutCancel(ctx), stored)
		return nil, err
	}

	return uris, nil
}

func (u *Uploader) put(ctx context.Context, file File) (string, error) {
	body, err := file.Open()
	if err != nil {
		return "", err
	}
	defer body.Close()

	return u.store.Put(ctx, NewKey(file.Name), file.ContentType, body)
}

// Release deletes the given assets. Failures are logged and counted, never
// returned; it reports how many deletions failed.
func (u *Uploader) Release(ctx context.Context, uris []string) int {
	if len(uris) == 0 {
		return 0
	}

	ctx, cancel := context.WithTimeout(ctx, u.timeout)
	defer cancel()

	failed := 0
	for _, uri := range uris {
		if err := u.store.Delete(ctx, uri); err != nil {
			failed++
			u.metrics.RecordAssetCleanupFailure()
			u.logger.Warn("Failed to release asset",
				zap.String("uri", uri),
				zap.Error(err),
			)
		}
	}
	return failed
}
