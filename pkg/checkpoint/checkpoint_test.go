package checkpoint

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wbscraper/pkg/logger"
	"wbscraper/pkg/models"
)

func day(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.Parse(models.DateLayout, s)
	require.NoError(t, err)
	return d
}

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	t.Setenv("XDG_DATA_HOME", t.TempDir())

	m, err := NewManager("杭州", logger.Nop())
	require.NoError(t, err)
	return m
}

func TestCheckpointRoundTrip(t *testing.T) {
	m := newTestManager(t)
	assert.False(t, m.Exists())

	q := models.Query{Keywords: []string{"杭州"}, Scope: "ori"}
	cp, err := m.Create(q)
	require.NoError(t, err)
	assert.True(t, m.Exists())

	cp.SetSegments([]models.Segment{
		{Start: day(t, "2024-01-01"), End: day(t, "2024-01-16")},
		{Start: day(t, "2024-01-17"), End: day(t, "2024-01-31")},
	})
	cp.PagesCrawled = 12
	cp.RecordsAppended = 40
	require.NoError(t, m.Save(cp))

	loaded, err := m.Load()
	require.NoError(t, err)
	require.NotNil(t, loaded)

	assert.Equal(t, "杭州", loaded.Keyword)
	assert.Equal(t, "ori", loaded.Scope)
	assert.Equal(t, 12, loaded.PagesCrawled)
	assert.Equal(t, 40, loaded.RecordsAppended)

	segments, err := loaded.Segments()
	require.NoError(t, err)
	require.Len(t, segments, 2)
	assert.Equal(t, day(t, "2024-01-01"), segments[0].Start)
	assert.Equal(t, day(t, "2024-01-31"), segments[1].End)
}

func TestCheckpointOpenSegment(t *testing.T) {
	m := newTestManager(t)

	cp, err := m.Create(models.Query{Keywords: []string{"x"}})
	require.NoError(t, err)

	cp.SetSegments([]models.Segment{{}})
	require.NoError(t, m.Save(cp))

	loaded, err := m.Load()
	require.NoError(t, err)

	segments, err := loaded.Segments()
	require.NoError(t, err)
	require.Len(t, segments, 1)
	assert.False(t, segments[0].Defined())
}

func TestLoadMissingCheckpoint(t *testing.T) {
	m := newTestManager(t)

	loaded, err := m.Load()
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestDeleteCheckpoint(t *testing.T) {
	m := newTestManager(t)

	_, err := m.Create(models.Query{Keywords: []string{"x"}})
	require.NoError(t, err)
	require.True(t, m.Exists())

	require.NoError(t, m.Delete())
	assert.False(t, m.Exists())

	// Deleting again is not an error.
	assert.NoError(t, m.Delete())
}
