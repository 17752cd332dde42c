package paagrab

import (
	"bufio"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/hazyhaar/paagrab/internal/dedup"
)

// LoadQueries reads a query list from a file: one query per line, blank
// lines and #-comments skipped, duplicates dropped on their normalized
// form with the first occurrence kept.
func LoadQueries(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	queries, err := ParseQueries(f)
	if err != nil {
		return nil, fmt.Errorf("queries: read %s: %w", path, err)
	}
	return queries, nil
}

// ParseQueries parses a query list from a reader. See LoadQueries.
func ParseQueries(r io.Reader) ([]string, error) {
	var (
		queries []string
		seen    = make(map[string]struct{})
	)

	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		norm := dedup.Normalize(line)
		if _, dup := seen[norm]; dup {
			continue
		}
		seen[norm] = struct{}{}
		queries = append(queries, line)
	}
	return queries, sc.Err()
}

// FilterCompleted drops queries already completed by an earlier run,
// preserving input order.
func FilterCompleted(queries []string, completed map[string]struct{}) []string {
	if len(completed) == 0 {
		return queries
	}
	out := make([]string, 0, len(queries))
	for _, q := range queries {
		if _, done := completed[q]; done {
			continue
		}
		out = append(out, q)
	}
	return out
}

// SearchURL builds the result page URL for a query in the given locale.
func SearchURL(query, language, region string) string {
	v := url.Values{}
	v.Set("q", query)
	v.Set("hl", language)
	v.Set("gl", region)
	return "https://www.google.com/search?" + v.Encode()
}
