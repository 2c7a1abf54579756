// Package filestore persists uploaded profile pictures on local disk.
package filestore

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/ahmedmirza994/whatsapp-sub001/errors"
)

// Pictures are sniffed by content, not by filename extension.
var allowedTypes = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
}

type LocalStore struct {
	root string
}

func NewLocalStore(root string) (*LocalStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("creating storage root: %w", err)
	}
	return &LocalStore{root: root}, nil
}

// Save sniffs the content type, rejects anything but png/jpeg, and writes
// the file under a fresh name. It returns the stored filename.
func (s *LocalStore) Save(r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}

	detected := mimetype.Detect(data).String()
	ext, allowed := allowedTypes[detected]
	if !allowed {
		return "", fmt.Errorf("%w: %s", errors.ErrUnsupportedFileType, detected)
	}

	filename := uuid.NewString() + ext
	if err := os.WriteFile(filepath.Join(s.root, filename), data, 0o644); err != nil {
		return "", err
	}
	return filename, nil
}

// Open returns the stored file for streaming back to a client.
// The name is reduced to its base to keep lookups inside the root.
func (s *LocalStore) Open(filename string) (*os.File, error) {
	return os.Open(filepath.Join(s.root, filepath.Base(filename)))
}
