package records

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"wbscraper/pkg/logger"
	"wbscraper/pkg/models"
)

// canonicalURLColumn is the CSV column holding the dedup key.
const canonicalURLColumn = 8

// header is written exactly once, when the log file is created.
var header = []string{
	"kind", "source", "keyword", "author", "title", "summary",
	"tags", "caption", "canonical_url", "picture_url", "local_path", "created_at",
}

// Store is the append-only record log plus the in-memory set of
// canonical URLs already persisted. The key snapshot is loaded once
// when the store opens and grows monotonically with every append;
// nothing re-reads the file during a run.
type Store struct {
	path   string
	file   *os.File
	writer *csv.Writer
	seen   map[string]struct{}
	added  int
	mu     sync.Mutex
	logger logger.Logger
}

// Open creates the log file with its header when absent, loads the
// key snapshot, and leaves the file open for appending.
func Open(path string, log logger.Logger) (*Store, error) {
	if log == nil {
		log = logger.Nop()
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create records directory: %w", err)
		}
	}

	seen, created, err := loadSnapshot(path)
	if err != nil {
		return nil, err
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open records file: %w", err)
	}

	store := &Store{
		path:   path,
		file:   file,
		writer: csv.NewWriter(file),
		seen:   seen,
		logger: log,
	}

	if created {
		if err := store.writeHeader(); err != nil {
			file.Close()
			return nil, err
		}
	}

	log.WithFields(map[string]interface{}{
		"path":       path,
		"known_keys": len(seen),
	}).Info("record store opened")

	return store, nil
}

// loadSnapshot reads every canonical URL already persisted. It reports
// whether the file needs a header (missing or empty).
func loadSnapshot(path string) (map[string]struct{}, bool, error) {
	seen := make(map[string]struct{})

	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return seen, true, nil
		}
		return nil, false, fmt.Errorf("failed to open records file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	first := true
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, false, fmt.Errorf("failed to read records file: %w", err)
		}
		if first {
			first = false // header row
			continue
		}
		if len(row) > canonicalURLColumn {
			seen[row[canonicalURLColumn]] = struct{}{}
		}
	}

	return seen, first, nil
}

// Has reports whether a canonical URL is already persisted, either
// from the startup snapshot or from an append earlier in this run.
func (s *Store) Has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.seen[key]
	return ok
}

// Append writes one record to the durable log. Appends serialize on
// the store's lock so concurrent callers cannot interleave rows. The
// caller is expected to have filtered via Has; a duplicate key from
// a multi-picture card is accepted as another row sharing the key.
func (s *Store) Append(rec models.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.writer.Write(rec.Row()); err != nil {
		return fmt.Errorf("failed to append record: %w", err)
	}
	s.writer.Flush()
	if err := s.writer.Error(); err != nil {
		return fmt.Errorf("failed to flush record: %w", err)
	}

	s.seen[rec.CanonicalURL] = struct{}{}
	s.added++

	s.logger.WithField("canonical_url", rec.CanonicalURL).Debug("record appended")
	return nil
}

// KnownKeys returns how many distinct canonical URLs the store knows.
func (s *Store) KnownKeys() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seen)
}

// Appended returns how many rows this run has written.
func (s *Store) Appended() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.added
}

// Close flushes and closes the underlying file.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.writer.Flush()
	if err := s.writer.Error(); err != nil {
		s.file.Close()
		return err
	}
	return s.file.Close()
}

func (s *Store) writeHeader() error {
	if err := s.writer.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	s.writer.Flush()
	return s.writer.Error()
}
