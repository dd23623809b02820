package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ScratchStore holds request-scoped copies of recordings on local disk
type ScratchStore interface {
	Create(filename string) (*os.File, error)
	Save(r io.Reader, filename string) (string, error)
	Remove(path string) error
}

// Scratch creates uniquely named files in a single directory
type Scratch struct {
	dir string
}

// NewScratch creates the scratch directory if needed
func NewScratch(dir string) (*Scratch, error) {
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create scratch dir: %w", err)
	}
	return &Scratch{dir: dir}, nil
}

// Dir returns the scratch directory
func (s *Scratch) Dir() string {
	return s.dir
}

// Create opens a new empty file named <uuid><ext>, where ext is taken from
// filename. Two requests with the same filename never share a file.
func (s *Scratch) Create(filename string) (*os.File, error) {
	path := filepath.Join(s.dir, uuid.New().String()+extension(filename))
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return nil, fmt.Errorf("failed to create scratch file: %w", err)
	}
	return f, nil
}

// Save copies r into a new scratch file and returns its path
func (s *Scratch) Save(r io.Reader, filename string) (string, error) {
	f, err := s.Create(filename)
	if err != nil {
		return "", err
	}
	path := f.Name()

	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("failed to save upload: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("failed to save upload: %w", err)
	}
	return path, nil
}

// Remove deletes a scratch file. A file that is already gone is not an error.
func (s *Scratch) Remove(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove scratch file: %w", err)
	}
	return nil
}

// extension keeps a short alphanumeric extension so ffprobe can use it as a
// format hint; anything else is dropped.
func extension(filename string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(filename)))
	if len(ext) < 2 || len(ext) > 8 {
		return ""
	}
	for _, r := range ext[1:] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return ""
		}
	}
	return ext
}
