package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Manager stores downloaded pictures. Saves go through a temporary
// file and an atomic rename so a crashed download never leaves a
// half-written asset at its final path.
type Manager struct {
	baseDir string
}

// NewManager creates the picture directory when absent.
func NewManager(baseDir string) (*Manager, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create picture directory: %w", err)
	}
	return &Manager{baseDir: baseDir}, nil
}

// BaseDir returns the picture directory.
func (m *Manager) BaseDir() string {
	return m.baseDir
}

// Save writes an asset to path.
func (m *Manager) Save(r io.Reader, path string) error {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	tempPath := path + ".tmp"
	out, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}

	_, copyErr := io.Copy(out, r)
	closeErr := out.Close()

	if copyErr != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to write picture data: %w", copyErr)
	}
	if closeErr != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close file: %w", closeErr)
	}

	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename temporary file: %w", err)
	}
	return nil
}
