package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// LocalArtifactStore keeps artifacts under a directory on local disk.
// All access goes through an os.Root so refs cannot escape it.
type LocalArtifactStore struct {
	root *os.Root
	dir  string
}

// NewLocalArtifactStore opens (creating if needed) the directory
func NewLocalArtifactStore(dir string) (*LocalArtifactStore, error) {
	if dir == "" {
		return nil, errors.New("storage local_root is required")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create artifact directory: %w", err)
	}
	root, err := os.OpenRoot(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open artifact directory: %w", err)
	}
	return &LocalArtifactStore{root: root, dir: dir}, nil
}

// Put writes an artifact. Used by the dev upload path and tests.
func (s *LocalArtifactStore) Put(_ context.Context, ref string, data []byte) error {
	name, err := localName(ref)
	if err != nil {
		return err
	}
	if parent := filepath.Dir(name); parent != "." {
		if err := s.root.MkdirAll(parent, 0o700); err != nil {
			return fmt.Errorf("failed to create artifact directory: %w", err)
		}
	}
	f, err := s.root.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("failed to write artifact: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("failed to write artifact: %w", err)
	}
	return f.Close()
}

// UploadURL returns a file:// location; local storage has no presigning
func (s *LocalArtifactStore) UploadURL(_ context.Context, ref, _ string) (string, time.Time, error) {
	name, err := localName(ref)
	if err != nil {
		return "", time.Time{}, err
	}
	abs, err := filepath.Abs(filepath.Join(s.dir, name))
	if err != nil {
		return "", time.Time{}, err
	}
	return "file://" + filepath.ToSlash(abs), time.Now().Add(15 * time.Minute), nil
}

// Delete removes an artifact. Deleting a missing file succeeds.
func (s *LocalArtifactStore) Delete(_ context.Context, ref string) error {
	name, err := localName(ref)
	if err != nil {
		return err
	}
	if err := s.root.Remove(name); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete artifact: %w", err)
	}
	return nil
}

// Exists reports whether an artifact is still stored
func (s *LocalArtifactStore) Exists(_ context.Context, ref string) (bool, error) {
	name, err := localName(ref)
	if err != nil {
		return false, err
	}
	_, err = s.root.Stat(name)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, fmt.Errorf("failed to check artifact: %w", err)
	}
}

// Close releases the directory handle
func (s *LocalArtifactStore) Close() error {
	return s.root.Close()
}

func localName(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", ErrEmptyRef
	}
	name := filepath.FromSlash(strings.TrimPrefix(ref, "/"))
	if !filepath.IsLocal(name) {
		return "", fmt.Errorf("artifact reference %q is not a relative path", ref)
	}
	return name, nil
}
