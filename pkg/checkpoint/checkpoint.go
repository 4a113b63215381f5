package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"wbscraper/pkg/logger"
	"wbscraper/pkg/models"
)

// SegmentState is one pending date segment, serialized with calendar
// days. Empty bounds mean an open-ended segment.
type SegmentState struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Checkpoint is the resumable state of a crawl run: the segments still
// queued (front first) and the progress counters.
type Checkpoint struct {
	Keyword         string         `json:"keyword"`
	Scope           string         `json:"scope"`
	PendingSegments []SegmentState `json:"pending_segments"`
	PagesCrawled    int            `json:"pages_crawled"`
	RecordsAppended int            `json:"records_appended"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	Version         int            `json:"version"`
}

// SetSegments stores the queue snapshot.
func (c *Checkpoint) SetSegments(segments []models.Segment) {
	c.PendingSegments = make([]SegmentState, 0, len(segments))
	for _, seg := range segments {
		state := SegmentState{}
		if seg.Defined() {
			state.Start = seg.Start.Format(models.DateLayout)
			state.End = seg.End.Format(models.DateLayout)
		}
		c.PendingSegments = append(c.PendingSegments, state)
	}
}

// Segments rebuilds the queue snapshot.
func (c *Checkpoint) Segments() ([]models.Segment, error) {
	segments := make([]models.Segment, 0, len(c.PendingSegments))
	for _, state := range c.PendingSegments {
		if state.Start == "" && state.End == "" {
			segments = append(segments, models.Segment{})
			continue
		}
		start, err := time.Parse(models.DateLayout, state.Start)
		if err != nil {
			return nil, fmt.Errorf("invalid segment start %q: %w", state.Start, err)
		}
		end, err := time.Parse(models.DateLayout, state.End)
		if err != nil {
			return nil, fmt.Errorf("invalid segment end %q: %w", state.End, err)
		}
		segments = append(segments, models.Segment{Start: start, End: end})
	}
	return segments, nil
}

// Manager persists checkpoints for one keyword.
type Manager struct {
	path   string
	logger logger.Logger
}

// NewManager creates a checkpoint manager. State lives under the
// per-user data directory.
func NewManager(keyword string, log logger.Logger) (*Manager, error) {
	if log == nil {
		log = logger.Nop()
	}
	dataDir, err := dataDirectory()
	if err != nil {
		return nil, fmt.Errorf("failed to get data directory: %w", err)
	}

	checkpointsDir := filepath.Join(dataDir, "checkpoints")
	if err := os.MkdirAll(checkpointsDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create checkpoints directory: %w", err)
	}

	return &Manager{
		path:   filepath.Join(checkpointsDir, fmt.Sprintf("%s.checkpoint.json", keyword)),
		logger: log,
	}, nil
}

// Exists reports whether a checkpoint is on disk.
func (m *Manager) Exists() bool {
	_, err := os.Stat(m.path)
	return err == nil
}

// Create starts a fresh checkpoint for a query.
func (m *Manager) Create(q models.Query) (*Checkpoint, error) {
	cp := &Checkpoint{
		Keyword:   q.Keyword(),
		Scope:     q.Scope,
		CreatedAt: time.Now(),
		Version:   1,
	}
	if err := m.Save(cp); err != nil {
		return nil, fmt.Errorf("failed to save initial checkpoint: %w", err)
	}
	return cp, nil
}

// Load reads the checkpoint. A missing file returns (nil, nil).
func (m *Manager) Load() (*Checkpoint, error) {
	file, err := os.Open(m.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open checkpoint file: %w", err)
	}
	defer file.Close()

	var cp Checkpoint
	if err := json.NewDecoder(file).Decode(&cp); err != nil {
		return nil, fmt.Errorf("failed to decode checkpoint: %w", err)
	}

	m.logger.WithFields(map[string]interface{}{
		"keyword":          cp.Keyword,
		"pending_segments": len(cp.PendingSegments),
		"records_appended": cp.RecordsAppended,
	}).Info("checkpoint loaded")

	return &cp, nil
}

// Save writes the checkpoint atomically.
func (m *Manager) Save(cp *Checkpoint) error {
	cp.UpdatedAt = time.Now()

	tempPath := m.path + ".tmp"
	file, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("failed to create temporary checkpoint file: %w", err)
	}

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	encodeErr := encoder.Encode(cp)
	closeErr := file.Close()

	if encodeErr != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to encode checkpoint: %w", encodeErr)
	}
	if closeErr != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close checkpoint file: %w", closeErr)
	}

	if err := os.Rename(tempPath, m.path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename checkpoint file: %w", err)
	}
	return nil
}

// Delete removes the checkpoint, typically after a completed run.
func (m *Manager) Delete() error {
	if err := os.Remove(m.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}
	return nil
}

func dataDirectory() (string, error) {
	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, "Library", "Application Support", "wbscraper"), nil
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "wbscraper"), nil
	default:
		if xdgData := os.Getenv("XDG_DATA_HOME"); xdgData != "" {
			return filepath.Join(xdgData, "wbscraper"), nil
		}
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, ".local", "share", "wbscraper"), nil
	}
}
