package hosting

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/mediaflow/internal/metrics"
)

// Rehoster relocates artifact bytes to a stable URL. When an uploader is
// configured it is tried first; the local store is the fallback and never
// fails for reachable disks, so callers always get a usable URL back.
type Rehoster struct {
	uploader Uploader
	store    *LocalStore
	metrics  *metrics.Collector
	logger   *zap.Logger
}

// NewRehoster creates a Rehoster. The store is required; the uploader and
// collector may be nil.
func NewRehoster(uploader Uploader, store *LocalStore, collector *metrics.Collector, logger *zap.Logger) *Rehoster {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Rehoster{uploader: uploader, store: store, metrics: collector, logger: logger}
}

// Rehost stores the bytes and returns their new URL.
func (r *Rehoster) Rehost(ctx context.Context, filename, contentType string, data []byte) (string, error) {
	if r.uploader != nil {
		url, err := r.uploader.Upload(ctx, filename, contentType, data)
		if err == nil {
			if r.metrics != nil {
				r.metrics.RecordUpload(r.uploader.Name(), "success")
			}
			return url, nil
		}
		if r.metrics != nil {
			r.metrics.RecordUpload(r.uploader.Name(), "error")
			r.metrics.RecordLocalFallback(r.uploader.Name())
		}
		r.logger.Warn("upload failed, storing artifact locally",
			zap.String("uploader", r.uploader.Name()),
			zap.Error(err))
	}
	return r.store.Save(EnsureExt(filename, contentType), data)
}

// Store returns the underlying local store.
func (r *Rehoster) Store() *LocalStore { return r.store }

// Fetch downloads a URL with optional headers. Vendor result URLs are
// typically signed and short-lived, so fetching happens immediately after
// the poll reports success.
func Fetch(ctx context.Context, client *http.Client, url string, headers map[string]string) ([]byte, error) {
	if client == nil {
		client = &http.Client{Timeout: 300 * time.Second}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("download error: status=%d body=%s", resp.StatusCode, string(body))
	}
	return io.ReadAll(resp.Body)
}
