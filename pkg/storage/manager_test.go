package storage

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewManagerCreatesDirectory(t *testing.T) {
	baseDir := filepath.Join(t.TempDir(), "pictures")

	m, err := NewManager(baseDir)
	require.NoError(t, err)
	assert.Equal(t, baseDir, m.BaseDir())

	info, err := os.Stat(baseDir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestSaveWritesFile(t *testing.T) {
	baseDir := t.TempDir()
	m, err := NewManager(baseDir)
	require.NoError(t, err)

	path := filepath.Join(baseDir, "photo.jpg")
	payload := []byte{0xFF, 0xD8, 0xFF, 0xE0}

	require.NoError(t, m.Save(bytes.NewReader(payload), path))

	saved, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, payload, saved)
}

func TestSaveLeavesNoTempFile(t *testing.T) {
	baseDir := t.TempDir()
	m, err := NewManager(baseDir)
	require.NoError(t, err)

	path := filepath.Join(baseDir, "photo.jpg")
	require.NoError(t, m.Save(bytes.NewReader([]byte("data")), path))

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestSaveCreatesNestedDirectory(t *testing.T) {
	baseDir := t.TempDir()
	m, err := NewManager(baseDir)
	require.NoError(t, err)

	path := filepath.Join(baseDir, "sub", "dir", "photo.jpg")
	require.NoError(t, m.Save(bytes.NewReader([]byte("data")), path))

	_, err = os.Stat(path)
	assert.NoError(t, err)
}
