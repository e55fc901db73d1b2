// Package hosting relocates generated artifacts to stable locations.
// Vendor result URLs are often short-lived signed URLs; bytes are pulled
// down and re-hosted through an upload service, falling back to a local
// store served under /api/outputs/.
package hosting

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// OutputRoute is the URL prefix under which locally stored artifacts are
// served.
const OutputRoute = "/api/outputs/"

// LocalStore writes artifacts into a directory served under OutputRoute.
// Saving never touches the network, so it can back every re-hosting
// fallback path.
type LocalStore struct {
	dir    string
	logger *zap.Logger
}

// NewLocalStore creates a store rooted at dir, creating it if needed.
func NewLocalStore(dir string, logger *zap.Logger) (*LocalStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	return &LocalStore{dir: dir, logger: logger}, nil
}

// Dir returns the store's root directory.
func (s *LocalStore) Dir() string { return s.dir }

// Save writes data under an opaque collision-free name and returns the
// served route. The name keeps the caller's base name as a readable
// suffix: "<8-hex>_<name>".
func (s *LocalStore) Save(name string, data []byte) (string, error) {
	filename := fmt.Sprintf("%s_%s", uuid.NewString()[:8], sanitize(name))
	path := filepath.Join(s.dir, filename)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write artifact: %w", err)
	}
	s.logger.Debug("artifact stored locally",
		zap.String("path", path),
		zap.Int("bytes", len(data)))
	return OutputRoute + filename, nil
}

// Resolve maps a served route back to the filesystem path, or reports
// false for anything outside the store.
func (s *LocalStore) Resolve(url string) (string, bool) {
	idx := strings.Index(url, OutputRoute)
	if idx < 0 {
		return "", false
	}
	base := filepath.Base(url[idx+len(OutputRoute):])
	if base == "." || base == "/" {
		return "", false
	}
	path := filepath.Join(s.dir, base)
	if _, err := os.Stat(path); err != nil {
		return "", false
	}
	return path, true
}

// sanitize keeps the base name safe for the flat output directory.
func sanitize(name string) string {
	name = filepath.Base(name)
	name = strings.ReplaceAll(name, " ", "_")
	if name == "" || name == "." {
		name = "artifact"
	}
	return name
}
