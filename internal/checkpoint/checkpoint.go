// Package checkpoint persists run progress so an interrupted run can
// resume without losing captured pairs.
//
// The snapshot is a single JSON file written atomically (write .tmp then
// rename) so a crash mid-write never leaves a state Load cannot parse.
package checkpoint

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// Item is one captured question/answer pair. Items are immutable once
// appended and carry the question with its original casing; dedup happens
// on the normalized form held in RunState.Dedup.
type Item struct {
	Query    string `json:"query"`
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// RunState is the single unit of persisted truth for a run.
//
// Invariants: Items holds no two entries with the same (query, normalized
// question); every entry of Completed was fully processed before being
// recorded.
type RunState struct {
	// Completed lists fully processed queries in completion order.
	Completed []string `json:"completed_queries"`

	// Items are all captured pairs, in capture order.
	Items []Item `json:"items"`

	// Dedup is the normalized-question index, grow-only across resumes.
	Dedup []string `json:"dedup"`

	// Interferences counts consecutive unresolved challenges at save time.
	Interferences int `json:"consecutive_interferences"`

	// SavedAt is the wall-clock time of the snapshot.
	SavedAt time.Time `json:"saved_at"`
}

// CompletedSet returns the completed queries as a set for resume filtering.
func (s *RunState) CompletedSet() map[string]struct{} {
	set := make(map[string]struct{}, len(s.Completed))
	for _, q := range s.Completed {
		set[q] = struct{}{}
	}
	return set
}

// Store reads and writes RunState snapshots at a fixed path.
type Store struct {
	path   string
	logger *slog.Logger
}

// NewStore creates a Store for the given snapshot path.
func NewStore(path string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{path: path, logger: logger}
}

// Path returns the snapshot path.
func (s *Store) Path() string { return s.path }

// Persist writes the state atomically. A persist failure is the loss of
// the crash-recovery guarantee, so it is always surfaced to the caller.
func (s *Store) Persist(state *RunState) error {
	state.SavedAt = time.Now().UTC()

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("checkpoint: marshal: %w", err)
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("checkpoint: mkdir %s: %w", dir, err)
		}
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("checkpoint: write tmp: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("checkpoint: rename: %w", err)
	}

	s.logger.Debug("checkpoint: persisted",
		"queries", len(state.Completed), "items", len(state.Items))
	return nil
}

// Load restores the last snapshot. A missing file yields an empty state.
// A corrupt file is logged and treated as empty rather than blocking the
// run; the corrupt snapshot is kept on disk under a .corrupt suffix.
func (s *Store) Load() (*RunState, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return &RunState{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("checkpoint: read: %w", err)
	}

	var state RunState
	if err := json.Unmarshal(data, &state); err != nil {
		s.logger.Warn("checkpoint: snapshot corrupt, starting fresh",
			"path", s.path, "error", err)
		os.Rename(s.path, s.path+".corrupt")
		return &RunState{}, nil
	}

	s.logger.Info("checkpoint: loaded",
		"queries", len(state.Completed), "items", len(state.Items))
	return &state, nil
}

// Clear removes the snapshot after a fully completed run.
func (s *Store) Clear() error {
	err := os.Remove(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
