// Package sink accumulates completed results and persists them as a
// checkpoint: a JSON array rewritten in full on every append, replaced
// atomically so an interrupt never leaves a torn artifact.
package sink

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"
)

// Sink is the single collection point for finished tasks. Append is
// serialized; multiple workers may complete concurrently.
type Sink struct {
	mu      sync.Mutex
	path    string // empty disables persistence
	idKey   string
	records []map[string]any
	done    map[string]struct{}
	log     zerolog.Logger
}

// Load builds a sink, reading a prior checkpoint from path when one exists.
// A missing file starts fresh; an unparsable one is treated as empty rather
// than fatal.
func Load(path, idKey string, log zerolog.Logger) *Sink {
	s := &Sink{
		path:  path,
		idKey: idKey,
		done:  make(map[string]struct{}),
		log:   log,
	}
	if path == "" {
		return s
	}

	b, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn().Err(err).Msgf("could not read checkpoint %s, starting fresh", path)
		}
		return s
	}

	var records []map[string]any
	if err := json.Unmarshal(b, &records); err != nil {
		log.Warn().Err(err).Msgf("could not parse checkpoint %s, starting fresh", path)
		return s
	}

	s.records = records
	for _, rec := range records {
		if id, ok := rec[idKey]; ok {
			s.done[idString(id)] = struct{}{}
		}
	}
	log.Info().Msgf("loaded %d existing results from %s", len(records), path)
	return s
}

// Append adds a terminal record, marks its id completed, and rewrites the
// checkpoint when persistence is configured.
func (s *Sink) Append(rec map[string]any, id any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = append(s.records, rec)
	if id != nil {
		s.done[idString(id)] = struct{}{}
	}
	if s.path == "" {
		return nil
	}
	return s.persistLocked()
}

// persistLocked rewrites the full checkpoint via a temp file and rename.
func (s *Sink) persistLocked() error {
	b, err := json.MarshalIndent(s.records, "", "  ")
	if err != nil {
		return fmt.Errorf("encode checkpoint: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create checkpoint temp file: %w", err)
	}
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write checkpoint: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close checkpoint: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace checkpoint: %w", err)
	}
	return nil
}

// IsDone reports whether id was already completed, here or in a prior run.
func (s *Sink) IsDone(id any) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.done[idString(id)]
	return ok
}

// Records returns a copy of the accumulated result set.
func (s *Sink) Records() []map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]map[string]any, len(s.records))
	copy(out, s.records)
	return out
}

// Count reports how many records have accumulated.
func (s *Sink) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// idString normalizes ids for dedup so values that round-trip through JSON
// (int to float64) still match.
func idString(id any) string {
	return fmt.Sprint(id)
}
