package status

import (
	"encoding/json"
	"io"
	"net/http"
	"testing"
	"time"
)

func startTestServer(t *testing.T) *Server {
	t.Helper()
	s := NewServer(nil, "127.0.0.1:0")
	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestHealthz(t *testing.T) {
	s := startTestServer(t)

	resp, err := http.Get("http://" + s.Addr() + "/healthz")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}

func TestStatusReflectsUpdates(t *testing.T) {
	s := startTestServer(t)
	s.Update(Snapshot{
		Query:         "how tall is everest",
		QueriesDone:   2,
		QueriesTotal:  5,
		ItemsCaptured: 17,
		StartedAt:     time.Now(),
	})

	resp, err := http.Get("http://" + s.Addr() + "/status")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	var got Snapshot
	if err := json.Unmarshal(body, &got); err != nil {
		t.Fatalf("unmarshal %q: %v", body, err)
	}
	if got.Query != "how tall is everest" || got.ItemsCaptured != 17 {
		t.Errorf("snapshot = %+v", got)
	}
	if got.QueriesDone != 2 || got.QueriesTotal != 5 {
		t.Errorf("progress = %d/%d, want 2/5", got.QueriesDone, got.QueriesTotal)
	}
}
