package expand

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/hazyhaar/paagrab/internal/dedup"
	"github.com/hazyhaar/paagrab/internal/driver/drivertest"
	"github.com/hazyhaar/paagrab/internal/selector"
)

var (
	pairExpr     = selector.Chain(selector.RolePair)[0].Expr
	questionExpr = selector.Chain(selector.RoleQuestion)[0].Expr
	answerExpr   = selector.Chain(selector.RoleAnswer)[0].Expr
	buttonExpr   = selector.Chain(selector.RoleQuestionButton)[0].Expr
)

// fakePair models one question/answer container. The answer region is
// empty until the button is clicked.
type fakePair struct {
	el     *drivertest.Element
	answer *drivertest.Element
	button *drivertest.Element
}

func newFakePair(question, answer string) *fakePair {
	p := &fakePair{
		el:     drivertest.NewElement(question),
		answer: drivertest.NewElement(""),
		button: drivertest.NewElement(""),
	}
	p.el.Add(questionExpr, drivertest.NewElement(question))
	p.el.Add(answerExpr, p.answer)
	p.el.Add(buttonExpr, p.button)
	p.button.OnClick = func() error {
		p.answer.TextValue = answer
		return nil
	}
	return p
}

func panelOf(pairs ...*fakePair) *drivertest.Element {
	panel := drivertest.NewElement("")
	for _, p := range pairs {
		panel.Add(pairExpr, p.el)
	}
	return panel
}

func newEngine(budget int, index *dedup.Index) *Engine {
	if index == nil {
		index = dedup.NewIndex()
	}
	return New(Config{
		Resolver:    selector.New(slog.New(slog.DiscardHandler)),
		Index:       index,
		ClickBudget: budget,
		Settle:      time.Millisecond,
		WaitStable:  func(ctx context.Context, settle time.Duration) error { return nil },
		Logger:      slog.New(slog.DiscardHandler),
	})
}

func TestZeroBudgetExhaustsImmediately(t *testing.T) {
	panel := panelOf(newFakePair("Q1?", "A1"))
	results, err := newEngine(0, nil).Run(context.Background(), panel)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("budget 0 must capture nothing, got %d items", len(results))
	}
}

func TestCapturesAllPendingPairs(t *testing.T) {
	a := newFakePair("Q one?", "answer one")
	b := newFakePair("Q two?", "answer two")
	panel := panelOf(a, b)

	results, err := newEngine(10, nil).Run(context.Background(), panel)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].Question != "Q one?" || results[0].Answer != "answer one" {
		t.Errorf("first result = %+v", results[0])
	}
	if results[1].Question != "Q two?" || results[1].Answer != "answer two" {
		t.Errorf("second result = %+v", results[1])
	}
}

// Expanding B collapses A's answer. The captured answer for A must be the
// value observed between A's click and B's click.
func TestImmediateExtractionSurvivesCollapse(t *testing.T) {
	a := newFakePair("Q alpha?", "alpha answer")
	b := newFakePair("Q beta?", "beta answer")
	bOnClick := b.button.OnClick
	b.button.OnClick = func() error {
		a.answer.TextValue = "" // collapse previously expanded pair
		return bOnClick()
	}
	panel := panelOf(a, b)

	results, err := newEngine(10, nil).Run(context.Background(), panel)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].Answer != "alpha answer" {
		t.Errorf("A's answer = %q, want the pre-collapse value", results[0].Answer)
	}
}

func TestExpansionRevealsNewPairs(t *testing.T) {
	a := newFakePair("Q seed?", "seed answer")
	panel := panelOf(a)

	aOnClick := a.button.OnClick
	a.button.OnClick = func() error {
		revealed := newFakePair("Q revealed?", "revealed answer")
		panel.Add(pairExpr, revealed.el)
		return aOnClick()
	}

	results, err := newEngine(10, nil).Run(context.Background(), panel)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2 (seed + revealed)", len(results))
	}
	if results[1].Question != "Q revealed?" {
		t.Errorf("revealed pair not captured: %+v", results[1])
	}
}

func TestDuplicateQuestionCapturedOnce(t *testing.T) {
	a := newFakePair("Same question?", "first answer")
	b := newFakePair("same   QUESTION?", "second answer")
	panel := panelOf(a, b)

	results, err := newEngine(10, nil).Run(context.Background(), panel)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	if results[0].Answer != "first answer" {
		t.Errorf("first occurrence must win, got %+v", results[0])
	}
}

func TestCrossQueryDedupViaIndex(t *testing.T) {
	index := dedup.NewIndex()
	index.Record(dedup.Normalize("Already captured?"))

	a := newFakePair("Already captured?", "stale answer")
	b := newFakePair("Fresh question?", "fresh answer")
	panel := panelOf(a, b)

	results, err := newEngine(10, index).Run(context.Background(), panel)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 1 || results[0].Question != "Fresh question?" {
		t.Fatalf("want only the fresh question, got %+v", results)
	}
}

func TestEmptyAnswerSkippedLoopContinues(t *testing.T) {
	broken := newFakePair("Broken?", "")
	ok := newFakePair("Working?", "works")
	panel := panelOf(broken, ok)

	results, err := newEngine(10, nil).Run(context.Background(), panel)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 1 || results[0].Question != "Working?" {
		t.Fatalf("want only the working pair, got %+v", results)
	}
}

func TestPanelVanishedReturnsPartialResults(t *testing.T) {
	a := newFakePair("Q first?", "first")
	b := newFakePair("Q second?", "never read")
	panel := panelOf(a, b)

	aOnClick := a.button.OnClick
	a.button.OnClick = func() error {
		err := aOnClick()
		// The page is replaced right after this expansion; the answer
		// read in the same step must still succeed.
		panel.Detached = true
		return err
	}

	results, err := newEngine(10, nil).Run(context.Background(), panel)
	if !errors.Is(err, ErrPanelVanished) {
		t.Fatalf("err = %v, want ErrPanelVanished", err)
	}
	if len(results) != 1 || results[0].Question != "Q first?" {
		t.Fatalf("partial results lost: %+v", results)
	}
}

func TestBudgetCapsClicks(t *testing.T) {
	pairs := []*fakePair{
		newFakePair("Q1?", "A1"),
		newFakePair("Q2?", "A2"),
		newFakePair("Q3?", "A3"),
	}
	panel := panelOf(pairs...)

	results, err := newEngine(2, nil).Run(context.Background(), panel)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 2 {
		t.Errorf("budget 2 must cap at 2 items, got %d", len(results))
	}
	if pairs[2].button.Clicks != 0 {
		t.Error("third pair must never be clicked")
	}
}
