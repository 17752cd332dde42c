// Package export writes the final deduplicated result list to flat files.
// Files are written atomically (tmp then rename) so a crash during export
// never truncates a previous good export.
package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hazyhaar/paagrab/internal/checkpoint"
)

// WriteJSON writes items as an indented JSON array.
func WriteJSON(path string, items []checkpoint.Item) error {
	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return fmt.Errorf("export: marshal: %w", err)
	}
	return writeAtomic(path, append(data, '\n'))
}

// WriteCSV writes items as a three-column sheet with a header row.
func WriteCSV(path string, items []checkpoint.Item) error {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write([]string{"query", "question", "answer"}); err != nil {
		return fmt.Errorf("export: header: %w", err)
	}
	for _, it := range items {
		if err := w.Write([]string{it.Query, it.Question, it.Answer}); err != nil {
			return fmt.Errorf("export: row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("export: flush: %w", err)
	}
	return writeAtomic(path, buf.Bytes())
}

// Write writes items in the format implied by the path's extension
// (.json or .csv), and always writes a JSON sibling next to a tabular
// output so the structured form survives spreadsheet round-trips.
func Write(path string, items []checkpoint.Item) error {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return WriteJSON(path, items)
	}
	if err := WriteCSV(path, items); err != nil {
		return err
	}
	sibling := strings.TrimSuffix(path, filepath.Ext(path)) + ".json"
	return WriteJSON(sibling, items)
}

func writeAtomic(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("export: mkdir: %w", err)
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("export: write tmp: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("export: rename: %w", err)
	}
	return nil
}
