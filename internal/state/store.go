// Package state persists resumable crawl state on the local filesystem.
package state

import (
	"bytes"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"go.uber.org/zap"

	"github.com/bredec/policy-harvester/internal/crawl"
)

const (
	stateFileName    = "crawl_state.json"
	frontierFileName = "frontier.bin"
)

// stateDocument is the JSON artifact written alongside the frontier blob.
type stateDocument struct {
	VisitedURLs  []string `json:"visited_urls"`
	CurrentURL   string   `json:"current_url"`
	CurrentDepth int      `json:"current_depth"`
	VisitedCount int      `json:"visited_count"`
	QueueCount   int      `json:"queue_count"`
}

// Store saves and loads crawl state as a JSON document plus a gob-encoded
// frontier blob. Both artifacts are written temp-then-rename so a crash
// mid-write never corrupts the previous good state.
type Store struct {
	dir    string
	logger *zap.Logger
}

// New creates a Store rooted at dir, creating it if needed.
func New(dir string, logger *zap.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create state dir %s: %w", dir, err)
	}
	return &Store{dir: dir, logger: logger}, nil
}

// Save persists the visited set, frontier, and resume position. Errors are
// returned for logging but callers treat them as non-fatal: a lost
// checkpoint only risks redoing work on resume.
func (s *Store) Save(st crawl.State) error {
	visited := make([]string, 0, len(st.Visited))
	for u := range st.Visited {
		visited = append(visited, u)
	}
	sort.Strings(visited)

	doc := stateDocument{
		VisitedURLs:  visited,
		CurrentURL:   st.LastURL,
		CurrentDepth: st.LastDepth,
		VisitedCount: len(visited),
		QueueCount:   len(st.Frontier),
	}

	payload, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	if err := s.writeAtomic(stateFileName, payload); err != nil {
		return fmt.Errorf("write state document: %w", err)
	}

	var blob bytes.Buffer
	if err := gob.NewEncoder(&blob).Encode(st.Frontier); err != nil {
		return fmt.Errorf("encode frontier: %w", err)
	}
	if err := s.writeAtomic(frontierFileName, blob.Bytes()); err != nil {
		return fmt.Errorf("write frontier blob: %w", err)
	}
	return nil
}

// Load reads persisted state. The second return is false when no usable
// prior state exists; decode failures fall back to an empty state with a
// warning, never an error.
func (s *Store) Load() (crawl.State, bool) {
	statePayload, err := os.ReadFile(filepath.Join(s.dir, stateFileName))
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("Unreadable state document, starting fresh", zap.Error(err))
		}
		return crawl.NewState(), false
	}
	frontierPayload, err := os.ReadFile(filepath.Join(s.dir, frontierFileName))
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("Unreadable frontier blob, starting fresh", zap.Error(err))
		} else {
			s.logger.Warn("State document present but frontier blob missing, starting fresh")
		}
		return crawl.NewState(), false
	}

	var doc stateDocument
	if err := json.Unmarshal(statePayload, &doc); err != nil {
		s.logger.Warn("Corrupt state document, starting fresh", zap.Error(err))
		return crawl.NewState(), false
	}

	var frontier []crawl.FrontierEntry
	if err := gob.NewDecoder(bytes.NewReader(frontierPayload)).Decode(&frontier); err != nil {
		s.logger.Warn("Corrupt frontier blob, starting fresh", zap.Error(err))
		return crawl.NewState(), false
	}

	st := crawl.NewState()
	for _, u := range doc.VisitedURLs {
		st.Visited[u] = true
	}
	st.Frontier = frontier
	st.LastURL = doc.CurrentURL
	st.LastDepth = doc.CurrentDepth
	return st, true
}

// Clear removes both persisted artifacts.
func (s *Store) Clear() error {
	for _, name := range []string{stateFileName, frontierFileName} {
		if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove %s: %w", name, err)
		}
	}
	return nil
}

func (s *Store) writeAtomic(name string, payload []byte) error {
	target := filepath.Join(s.dir, name)
	tmp, err := os.CreateTemp(s.dir, name+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename into place: %w", err)
	}
	return nil
}
