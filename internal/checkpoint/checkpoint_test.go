package checkpoint

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(filepath.Join(t.TempDir(), "checkpoint.json"), slog.New(slog.DiscardHandler))
}

func TestPersistLoadRoundTrip(t *testing.T) {
	store := testStore(t)

	state := &RunState{
		Completed: []string{"go generics", "go modules"},
		Items: []Item{
			{Query: "go generics", Question: "What are generics?", Answer: "Type parameters."},
			{Query: "go modules", Question: "What is go.mod?", Answer: "The module manifest."},
		},
		Dedup:         []string{"what are generics?", "what is go.mod?"},
		Interferences: 1,
	}
	if err := store.Persist(state); err != nil {
		t.Fatalf("persist: %v", err)
	}

	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if diff := cmp.Diff(state, loaded, cmpopts.EquateApproxTime(0)); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadMissingFileYieldsEmptyState(t *testing.T) {
	state, err := testStore(t).Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(state.Completed) != 0 || len(state.Items) != 0 || len(state.Dedup) != 0 {
		t.Errorf("expected empty state, got %+v", state)
	}
}

func TestLoadCorruptFileStartsFresh(t *testing.T) {
	store := testStore(t)
	if err := os.WriteFile(store.Path(), []byte("{truncated"), 0o644); err != nil {
		t.Fatal(err)
	}

	state, err := store.Load()
	if err != nil {
		t.Fatalf("corrupt snapshot must not block the run: %v", err)
	}
	if len(state.Items) != 0 {
		t.Errorf("expected empty state, got %+v", state)
	}
	if _, err := os.Stat(store.Path() + ".corrupt"); err != nil {
		t.Error("corrupt snapshot should be kept under .corrupt")
	}
}

func TestPersistLeavesNoTempFile(t *testing.T) {
	store := testStore(t)
	if err := store.Persist(&RunState{Completed: []string{"q"}}); err != nil {
		t.Fatalf("persist: %v", err)
	}
	if _, err := os.Stat(store.Path() + ".tmp"); !os.IsNotExist(err) {
		t.Error("temp file left behind after rename")
	}
}

func TestPersistOverwritesPreviousSnapshot(t *testing.T) {
	store := testStore(t)
	if err := store.Persist(&RunState{Completed: []string{"a"}}); err != nil {
		t.Fatal(err)
	}
	if err := store.Persist(&RunState{Completed: []string{"a", "b"}}); err != nil {
		t.Fatal(err)
	}

	state, err := store.Load()
	if err != nil {
		t.Fatal(err)
	}
	if len(state.Completed) != 2 {
		t.Errorf("latest snapshot must win, got %v", state.Completed)
	}
}

func TestClear(t *testing.T) {
	store := testStore(t)
	if err := store.Persist(&RunState{}); err != nil {
		t.Fatal(err)
	}
	if err := store.Clear(); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if err := store.Clear(); err != nil {
		t.Errorf("clearing an already-cleared checkpoint must be a no-op: %v", err)
	}
	if _, err := os.Stat(store.Path()); !os.IsNotExist(err) {
		t.Error("snapshot still present after clear")
	}
}
