package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// PublicPrefix is the URL prefix under which the upload root is served.
const PublicPrefix = "/uploads/"

// Storage is the on-disk upload area. Every path it accepts is relative to
// the root and slash separated.
type Storage struct {
	validator *PathValidator
}

func New(root string) (*Storage, error) {
	validator, err := NewPathValidator(root)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(validator.RootAbs(), 0o755); err != nil {
		return nil, fmt.Errorf("create upload root: %w", err)
	}

	return &Storage{validator: validator}, nil
}

func (s *Storage) RootAbs() string {
	return s.validator.RootAbs()
}

func (s *Storage) Resolve(rel string) (string, error) {
	return s.validator.Resolve(rel)
}

// Create opens a new file for writing. It fails if the file already exists.
func (s *Storage) Create(rel string) (*os.File, error) {
	resolved, err := s.Resolve(rel)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
		return nil, fmt.Errorf("create parent directory: %w", err)
	}

	return os.OpenFile(resolved, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
}

func (s *Storage) Open(rel string) (*os.File, error) {
	resolved, err := s.Resolve(rel)
	if err != nil {
		return nil, err
	}
	return os.Open(resolved)
}

func (s *Storage) Stat(rel string) (fs.FileInfo, error) {
	resolved, err := s.Resolve(rel)
	if err != nil {
		return nil, err
	}
	return os.Stat(resolved)
}

// Remove deletes one file. A file that is already gone is not an error.
func (s *Storage) Remove(rel string) error {
	resolved, err := s.Resolve(rel)
	if err != nil {
		return err
	}

	if err := os.Remove(resolved); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove %q: %w", rel, err)
	}
	return nil
}

// PublicPath is the URL a stored file is served at.
func PublicPath(rel string) string {
	return PublicPrefix + strings.TrimPrefix(filepath.ToSlash(rel), "/")
}

// RelativePath turns a URL produced by PublicPath back into a storage path.
func RelativePath(public string) (string, bool) {
	rel, ok := strings.CutPrefix(public, PublicPrefix)
	if !ok || rel == "" {
		return "", false
	}
	return rel, true
}
