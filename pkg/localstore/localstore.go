// Package localstore implements the upload FileStorage interface on local
// disk. Stored files are served by the API under the configured base URL.
package localstore

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
)

// Service writes uploads under a single directory, prefixing each file name
// with a random token so concurrent uploads of the same name never collide.
type Service struct {
	dir     string
	baseURL string
	logger  zerolog.Logger
}

// New constructs a disk-backed storage rooted at dir. The directory is
// created if missing.
func New(dir, baseURL string, logger zerolog.Logger) (*Service, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("upload directory must be provided")
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}

	return &Service{
		dir:     dir,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger.With().Str("component", "localstore").Logger(),
	}, nil
}

// Upload writes the file to disk and returns its public URL path.
func (s *Service) Upload(ctx context.Context, name string, reader io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	token := make([]byte, 8)
	if _, err := rand.Read(token); err != nil {
		return "", fmt.Errorf("failed to generate file token: %w", err)
	}

	fileName := hex.EncodeToString(token) + "-" + filepath.Base(name)
	target := filepath.Join(s.dir, fileName)

	out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("failed to create upload file: %w", err)
	}

	if _, err := io.Copy(out, reader); err != nil {
		_ = out.Close()
		_ = os.Remove(target)
		return "", fmt.Errorf("failed to write upload: %w", err)
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(target)
		return "", fmt.Errorf("failed to finalize upload: %w", err)
	}

	s.logger.Info().Str("file", fileName).Msg("file stored on disk")

	return path.Join(s.baseURL, fileName), nil
}
