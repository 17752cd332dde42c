// Package expand implements the click→observe→extract loop for a single
// query's panel.
//
// The central correctness property: expanding a question collapses the
// previously expanded one, so the answer must be read immediately after the
// triggering click, never in a later batch pass. Each pass re-scans the
// panel because expansion appends new question nodes as a side effect.
package expand

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/hazyhaar/paagrab/internal/dedup"
	"github.com/hazyhaar/paagrab/internal/driver"
	"github.com/hazyhaar/paagrab/internal/selector"
)

// ErrPanelVanished is returned when the panel disappears mid-loop, usually
// because the page was replaced by a challenge. The caller delegates to the
// interference handler; items captured before the loss are still returned.
var ErrPanelVanished = errors.New("expand: panel vanished")

// Result is one captured question/answer pair, in capture order.
type Result struct {
	Question string
	Answer   string
}

// Config holds the engine's dependencies for one run.
type Config struct {
	Resolver *selector.Resolver

	// Index is the process-wide dedup index. Captured questions are
	// recorded here at extraction time so repeats are suppressed both
	// within a query and across queries.
	Index *dedup.Index

	// ClickBudget caps expansions per query. 0 means the engine reports
	// exhaustion immediately.
	ClickBudget int

	// Settle bounds the post-click wait for the answer region to render.
	// Default: 2s.
	Settle time.Duration

	// WaitStable blocks until the DOM settles after a click. Optional;
	// wired to the session's stability wait. Nil falls back to a fixed
	// sleep of Settle.
	WaitStable func(ctx context.Context, settle time.Duration) error

	// CleanAnswer post-processes the answer region's HTML into text.
	// Nil keeps the region's visible text as-is.
	CleanAnswer func(html, text string) string

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.Settle <= 0 {
		c.Settle = 2 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Engine drives sequential expansion of one panel.
type Engine struct {
	cfg Config
}

// New creates an Engine.
func New(cfg Config) *Engine {
	cfg.defaults()
	return &Engine{cfg: cfg}
}

// Run expands questions until the click budget is spent or no pending
// nodes remain. Strictly sequential: every click mutates shared panel
// state the next step depends on.
func (e *Engine) Run(ctx context.Context, panel driver.Element) ([]Result, error) {
	log := e.cfg.Logger

	var captured []Result
	attempted := make(map[string]struct{}) // normalized questions clicked this query
	clicked := 0
	rescans := 0

	for clicked < e.cfg.ClickBudget {
		if err := ctx.Err(); err != nil {
			return captured, err
		}

		// Seeking: locate the next unclicked question pair in current
		// DOM order.
		pair, question, err := e.nextPending(ctx, panel, attempted)
		if err != nil {
			return captured, err
		}
		if pair == nil {
			// Nothing pending right now. Newly revealed siblings can
			// lag a render cycle behind, so re-scan a few times before
			// declaring exhaustion.
			rescans++
			if rescans > 3 {
				break
			}
			e.settle(ctx)
			continue
		}
		rescans = 0

		norm := dedup.Normalize(question)
		attempted[norm] = struct{}{}

		// Expanding: click the pair's expander button, or the pair
		// itself when the button node is missing.
		if err := e.click(ctx, pair); err != nil {
			log.Debug("expand: click failed, skipping node",
				"question", question, "error", err)
			continue
		}
		clicked++

		// Extracting: read the answer in the same step as the click.
		e.settle(ctx)
		answer := e.readAnswer(ctx, panel, pair, norm)
		if answer == "" {
			log.Debug("expand: empty answer, skipping", "question", question)
			continue
		}

		if question == "" || e.cfg.Index.Seen(norm) {
			continue // duplicate across queries, or unreadable question
		}
		e.cfg.Index.Record(norm)
		captured = append(captured, Result{Question: question, Answer: answer})
	}

	return captured, nil
}

// nextPending scans the panel for the first pair whose question has not
// been attempted. A scan error means the panel itself is gone.
func (e *Engine) nextPending(ctx context.Context, panel driver.Element, attempted map[string]struct{}) (driver.Element, string, error) {
	visible, err := panel.Visible(ctx)
	if err != nil || !visible {
		return nil, "", ErrPanelVanished
	}

	pairs, err := e.cfg.Resolver.ResolveAll(ctx, panel, selector.RolePair)
	if err != nil {
		return nil, "", ErrPanelVanished
	}

	for _, pair := range pairs {
		q := e.readQuestion(ctx, pair)
		if q == "" {
			continue
		}
		if _, done := attempted[dedup.Normalize(q)]; done {
			continue
		}
		return pair, q, nil
	}
	return nil, "", nil
}

// readQuestion reads a pair's question text. The expander button itself is
// empty; the text lives in the pair container, so fall back to the pair's
// first text line when the question node is missing.
func (e *Engine) readQuestion(ctx context.Context, pair driver.Element) string {
	nodes, err := e.cfg.Resolver.ResolveAll(ctx, pair, selector.RoleQuestion)
	if err == nil && len(nodes) > 0 {
		if text, terr := nodes[0].Text(ctx); terr == nil && strings.TrimSpace(text) != "" {
			return strings.TrimSpace(text)
		}
	}

	text, err := pair.Text(ctx)
	if err != nil {
		return ""
	}
	line, _, _ := strings.Cut(strings.TrimSpace(text), "\n")
	return strings.TrimSpace(line)
}

// click expands a pair via its button, falling back to the pair node.
func (e *Engine) click(ctx context.Context, pair driver.Element) error {
	buttons, err := e.cfg.Resolver.ResolveAll(ctx, pair, selector.RoleQuestionButton)
	if err == nil && len(buttons) > 0 {
		if cerr := buttons[0].Click(ctx); cerr == nil {
			return nil
		}
	}
	return pair.Click(ctx)
}

// readAnswer reads the just-expanded pair's answer region. When the clicked
// handle went stale (the panel re-rendered), re-scan all pairs for the one
// matching the clicked question.
func (e *Engine) readAnswer(ctx context.Context, panel, pair driver.Element, norm string) string {
	if text := e.answerOf(ctx, pair); text != "" {
		return text
	}

	pairs, err := e.cfg.Resolver.ResolveAll(ctx, panel, selector.RolePair)
	if err != nil {
		return ""
	}
	for _, p := range pairs {
		if dedup.Normalize(e.readQuestion(ctx, p)) != norm {
			continue
		}
		if text := e.answerOf(ctx, p); text != "" {
			return text
		}
	}
	return ""
}

func (e *Engine) answerOf(ctx context.Context, pair driver.Element) string {
	nodes, err := e.cfg.Resolver.ResolveAll(ctx, pair, selector.RoleAnswer)
	if err != nil || len(nodes) == 0 {
		return ""
	}

	text, _ := nodes[0].Text(ctx)
	text = strings.TrimSpace(text)

	if e.cfg.CleanAnswer != nil {
		html, _ := nodes[0].HTML(ctx)
		if cleaned := e.cfg.CleanAnswer(html, text); cleaned != "" {
			return cleaned
		}
	}
	return text
}

func (e *Engine) settle(ctx context.Context) {
	if e.cfg.WaitStable != nil {
		if err := e.cfg.WaitStable(ctx, e.cfg.Settle); err == nil {
			return
		}
	}
	select {
	case <-ctx.Done():
	case <-time.After(e.cfg.Settle):
	}
}
