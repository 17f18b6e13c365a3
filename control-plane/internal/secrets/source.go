// Package secrets resolves credentials the control plane needs at runtime.
//
// The only credential today is the bearer token for the external
// intelligence service. The primary source is 1Password Connect for
// production, with file and environment fallbacks for development and
// container secrets.
package secrets

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"
)

// TokenSource returns a bearer token. An empty token with a nil error means
// no token is configured and requests go out unauthenticated.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Static is a fixed token.
type Static string

// Token returns the fixed token.
func (s Static) Token(ctx context.Context) (string, error) {
	return string(s), nil
}

// FileSource reads a token from a file, e.g. a mounted container secret.
// The file is re-read when it changes on disk.
type FileSource struct {
	path   string
	logger *slog.Logger

	mu      sync.Mutex
	token   string
	modTime time.Time
}

// NewFileSource creates a file-backed token source. The file must exist.
func NewFileSource(path string, logger *slog.Logger) (*FileSource, error) {
	if path == "" {
		return nil, fmt.Errorf("token file path is required")
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("checking token file: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("using token file", "path", path)
	return &FileSource{path: path, logger: logger}, nil
}

// Token returns the trimmed file contents.
func (fs *FileSource) Token(ctx context.Context) (string, error) {
	info, err := os.Stat(fs.path)
	if err != nil {
		return "", fmt.Errorf("checking token file: %w", err)
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	if fs.token != "" && info.ModTime().Equal(fs.modTime) {
		return fs.token, nil
	}

	data, err := os.ReadFile(fs.path)
	if err != nil {
		return "", fmt.Errorf("reading token file: %w", err)
	}
	fs.token = strings.TrimSpace(string(data))
	fs.modTime = info.ModTime()
	fs.logger.Debug("token file loaded", "path", fs.path)
	return fs.token, nil
}
