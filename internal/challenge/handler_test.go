package challenge

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/hazyhaar/paagrab/internal/driver/drivertest"
)

func challengedSession() *drivertest.Session {
	s := drivertest.NewSession()
	s.CurrentURL = "https://www.example.com/sorry/index"
	s.PageHTML = `<html><body><form action="/sorry/x"><div data-sitekey="6LeKEY"></div></form></body></html>`
	return s
}

func testHandler(s *drivertest.Session, solver *Solver) *Handler {
	return NewHandler(Config{
		Session:        s,
		Solver:         solver,
		ManualWait:     20 * time.Millisecond,
		ProbeInterval:  2 * time.Millisecond,
		AbortThreshold: 3,
		ResubmitSettle: time.Millisecond,
		Logger:         slog.New(slog.DiscardHandler),
	})
}

func TestManualResolutionClears(t *testing.T) {
	s := challengedSession()
	h := testHandler(s, nil)

	// The "human" resolves the challenge out-of-band shortly after.
	go func() {
		time.Sleep(5 * time.Millisecond)
		s.CurrentURL = "https://www.example.com/search?q=x"
		s.PageHTML = "<html><body>results</body></html>"
	}()

	res, err := h.Resolve(context.Background())
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res != ResolvedManual {
		t.Errorf("resolution = %q, want manual-solved", res)
	}
	if h.Consecutive() != 0 {
		t.Errorf("consecutive = %d, want 0 after success", h.Consecutive())
	}
}

func TestUnresolvedIncrementsConsecutive(t *testing.T) {
	h := testHandler(challengedSession(), nil)

	res, err := h.Resolve(context.Background())
	if err != nil {
		t.Fatalf("below threshold must not error: %v", err)
	}
	if res != Unresolved {
		t.Errorf("resolution = %q, want timed-out", res)
	}
	if h.Consecutive() != 1 {
		t.Errorf("consecutive = %d, want 1", h.Consecutive())
	}
}

func TestAbortAtThreshold(t *testing.T) {
	h := testHandler(challengedSession(), nil)

	for i := 1; i <= 2; i++ {
		if _, err := h.Resolve(context.Background()); err != nil {
			t.Fatalf("attempt %d must not abort yet: %v", i, err)
		}
	}

	_, err := h.Resolve(context.Background())
	if !errors.Is(err, ErrAborted) {
		t.Fatalf("third consecutive failure must abort, got %v", err)
	}
	if h.Consecutive() != 3 {
		t.Errorf("consecutive = %d, want 3", h.Consecutive())
	}
}

func TestSuccessResetsConsecutiveCount(t *testing.T) {
	s := challengedSession()
	h := testHandler(s, nil)
	h.Restore(2)

	go func() {
		time.Sleep(5 * time.Millisecond)
		s.CurrentURL = "https://www.example.com/search?q=x"
		s.PageHTML = "<html><body>results</body></html>"
	}()

	if _, err := h.Resolve(context.Background()); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if h.Consecutive() != 0 {
		t.Errorf("consecutive = %d, want reset to 0", h.Consecutive())
	}
}

func TestAPIStrategyResolvesAndInjects(t *testing.T) {
	svc := &fakeService{token: "tok-xyz", pollsUntilSolved: 1}
	solver := newTestSolver(t, svc)

	s := challengedSession()
	var injected string
	s.OnEval = func(js string) (string, error) {
		injected = js
		// The resubmitted page clears the challenge.
		s.CurrentURL = "https://www.example.com/search?q=x"
		s.PageHTML = "<html><body>results</body></html>"
		return "", nil
	}

	h := testHandler(s, solver)
	res, err := h.Resolve(context.Background())
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res != ResolvedAPI {
		t.Errorf("resolution = %q, want api-solved", res)
	}
	if injected == "" {
		t.Fatal("token was never injected")
	}
	if want := "'tok-xyz'"; !strings.Contains(injected, want) {
		t.Errorf("injected script missing quoted token %s", want)
	}
}

func TestAPIFailureFallsThroughToManual(t *testing.T) {
	solver := newTestSolver(t, &fakeService{rejectSubmit: true})
	s := challengedSession()
	h := testHandler(s, solver)

	go func() {
		time.Sleep(5 * time.Millisecond)
		s.CurrentURL = "https://www.example.com/search?q=x"
		s.PageHTML = "<html><body>results</body></html>"
	}()

	res, err := h.Resolve(context.Background())
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res != ResolvedManual {
		t.Errorf("resolution = %q, want manual fallback", res)
	}
}

func TestRestoreIgnoresNonPositive(t *testing.T) {
	h := testHandler(challengedSession(), nil)
	h.Restore(-1)
	if h.Consecutive() != 0 {
		t.Errorf("consecutive = %d, want 0", h.Consecutive())
	}
}
