package storage

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"go.uber.org/zap"

	apperrors "github.com/aavi4012-cmd/invoice-fraud-backend/internal/domain/errors"
)

const (
	// MaxFileSize is the per-file upload cap.
	MaxFileSize = 12 << 20
	// MaxFiles is the per-request upload cap.
	MaxFiles = 10
)

var allowedTypes = map[string]bool{
	"application/pdf": true,
	"image/jpeg":      true,
	"image/png":       true,
}

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9-_]`)

// IsAllowedType reports whether the client-declared content type may be stored.
func IsAllowedType(mimeType string) bool {
	return allowedTypes[mimeType]
}

// LocalStore writes uploaded invoice files under a single directory with
// sanitized, collision-free names. Stored paths are what the repository
// persists and what delete-all later removes.
type LocalStore struct {
	dir    string
	logger *zap.Logger
}

func NewLocalStore(dir string, logger *zap.Logger) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create uploads directory: %w", err)
	}
	return &LocalStore{dir: dir, logger: logger}, nil
}

// Save streams the upload to disk and returns the stored path. The original
// name survives only as a sanitized base; a random hex suffix prevents
// collisions between same-named uploads.
func (s *LocalStore) Save(fileName, mimeType string, r io.Reader) (string, error) {
	if !IsAllowedType(mimeType) {
		return "", apperrors.NewValidationError("UNSUPPORTED_FILE_TYPE",
			"Unsupported file type. Only PDF/JPG/PNG are allowed.")
	}

	ext := filepath.Ext(fileName)
	base := unsafeChars.ReplaceAllString(strings.TrimSuffix(filepath.Base(fileName), ext), "_")
	if base == "" {
		base = "invoice"
	}

	suffix := make([]byte, 6)
	if _, err := rand.Read(suffix); err != nil {
		return "", fmt.Errorf("generate file suffix: %w", err)
	}

	path := filepath.Join(s.dir, fmt.Sprintf("%s-%s%s", base, hex.EncodeToString(suffix), ext))
	out, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create stored file: %w", err)
	}

	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		os.Remove(path)
		return "", fmt.Errorf("write stored file: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("close stored file: %w", err)
	}
	return path, nil
}

// Remove deletes a stored file. A file already gone is not an error; the
// record it backed may outlive it.
func (s *LocalStore) Remove(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove stored file: %w", err)
	}
	return nil
}
