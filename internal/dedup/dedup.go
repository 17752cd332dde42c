// Package dedup tracks already-captured questions across an entire run.
//
// The index is process-wide and monotone: entries are never removed, and a
// resumed run restores the full set from the checkpoint so repeats across
// queries stay suppressed.
package dedup

import (
	"sort"
	"strings"
)

// Normalize folds a question for dedup comparison: trim, lowercase, and
// collapse internal whitespace. Output casing is never taken from here;
// items keep their original text.
func Normalize(question string) string {
	return strings.ToLower(strings.Join(strings.Fields(question), " "))
}

// Index is a grow-only set of normalized question texts.
type Index struct {
	seen map[string]struct{}
}

// NewIndex creates an empty Index.
func NewIndex() *Index {
	return &Index{seen: make(map[string]struct{})}
}

// Restore rebuilds an Index from checkpointed entries. Entries are assumed
// to be already normalized; they are re-normalized anyway so older
// checkpoints with raw text still dedup correctly.
func Restore(entries []string) *Index {
	idx := NewIndex()
	for _, e := range entries {
		idx.Record(Normalize(e))
	}
	return idx
}

// Seen reports whether the normalized question was already captured.
func (i *Index) Seen(norm string) bool {
	_, ok := i.seen[norm]
	return ok
}

// Record adds a normalized question to the index.
func (i *Index) Record(norm string) {
	if norm == "" {
		return
	}
	i.seen[norm] = struct{}{}
}

// Len returns the number of distinct questions recorded.
func (i *Index) Len() int { return len(i.seen) }

// Snapshot returns the index contents sorted, for stable checkpoints.
func (i *Index) Snapshot() []string {
	out := make([]string, 0, len(i.seen))
	for k := range i.seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
