package stage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// DirSink writes raw payloads under a local directory, mirroring the key
// layout the S3 sink uses. Meant for development runs without AWS access.
type DirSink struct {
	root   string
	logger *slog.Logger
}

func NewDirSink(root string, logger *slog.Logger) *DirSink {
	return &DirSink{root: root, logger: logger}
}

// Put writes one payload to root/key, creating parent directories as needed.
func (s *DirSink) Put(_ context.Context, key string, body []byte) error {
	path := filepath.Join(s.root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("stage %s: %w", path, err)
	}
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return fmt.Errorf("stage %s: %w", path, err)
	}
	s.logger.Debug("staged payload", "path", path, "bytes", len(body))
	return nil
}
