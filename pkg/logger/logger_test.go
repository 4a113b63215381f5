package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithValidLevels(t *testing.T) {
	for _, level := range []string{"", "debug", "info", "warn", "error"} {
		log, err := New(&Config{Level: level})
		require.NoError(t, err, "level %q", level)
		assert.NotNil(t, log)
	}
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New(&Config{Level: "shout"})
	assert.Error(t, err)
}

func TestNewWithFileSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "crawl.log")

	log, err := New(&Config{Level: "info", File: path})
	require.NoError(t, err)

	log.Info("hello")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello")
}

func TestNopDoesNotPanic(t *testing.T) {
	log := Nop()
	log.Debug("a")
	log.Info("b")
	log.WithField("k", "v").Warn("c")
	log.WithFields(map[string]interface{}{"x": 1}).Error("d")
	log.WithError(nil).Info("e")
}
