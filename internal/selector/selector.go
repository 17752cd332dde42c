// Package selector maps logical element roles to ordered locator fallback
// chains. The host page's structure drifts over time; trying each strategy
// in priority order absorbs minor layout changes without touching the
// engine.
package selector

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hazyhaar/paagrab/internal/driver"
)

// ErrNotFound is returned when every strategy for a role matched nothing.
// Recoverable: the caller decides whether this ends the query or is fatal.
var ErrNotFound = errors.New("selector: no strategy matched")

// Role names a logical element the engine needs to find.
type Role string

const (
	RolePanel          Role = "panel"           // the PAA container block
	RolePair           Role = "pair"            // one question/answer container
	RoleQuestion       Role = "question"        // question text node within a pair
	RoleAnswer         Role = "answer"          // answer region within a pair
	RoleQuestionButton Role = "question_button" // clickable expander
	RoleConsent        Role = "consent"         // cookie consent accept button
	RoleChallenge      Role = "challenge"       // anti-automation challenge marker
)

// chains holds the locator fallback chain per role, primary first.
// The jsname selectors track the host DOM as of 2026-02; the fallbacks
// survive jsname rotations.
var chains = map[Role][]driver.Locator{
	RolePanel: {
		driver.CSS("div[jsname='N760b']"),
		driver.CSS("div[data-initq]"),
		driver.CSS("div[jscontroller='PoEVuc']"),
	},
	RolePair: {
		driver.CSS("div[jsname='yEVEwb']"),
	},
	RoleQuestion: {
		driver.CSS("div[jsname='tJHJj']"),
	},
	RoleAnswer: {
		driver.CSS("div[jsname='NRdf4c']"),
	},
	RoleQuestionButton: {
		driver.CSS("div[jsname='pcRaIe']"),
	},
	RoleConsent: {
		driver.CSS("div.QS5gu.sy4vM"),
		driver.CSS("button#L2AGLb"),
		driver.CSS("button[jsname='b3VHJd']"),
	},
	RoleChallenge: {
		driver.CSS("form[action*='sorry']"),
		driver.CSS("iframe[src*='recaptcha']"),
		driver.CSS("[data-sitekey]"),
	},
}

// Chain returns the locator chain for a role, primary first. The returned
// slice must not be mutated.
func Chain(role Role) []driver.Locator { return chains[role] }

// Resolver probes roles against a scope with bounded per-strategy waits.
type Resolver struct {
	// ProbeTimeout bounds the wait for one strategy. Default: 4s for the
	// primary strategy, 1s for fallbacks.
	ProbeTimeout time.Duration

	// PollInterval between existence checks. Default: 200ms.
	PollInterval time.Duration

	Logger *slog.Logger
}

func (r *Resolver) defaults() {
	if r.ProbeTimeout <= 0 {
		r.ProbeTimeout = 4 * time.Second
	}
	if r.PollInterval <= 0 {
		r.PollInterval = 200 * time.Millisecond
	}
	if r.Logger == nil {
		r.Logger = slog.Default()
	}
}

// New creates a Resolver with defaults applied.
func New(logger *slog.Logger) *Resolver {
	r := &Resolver{Logger: logger}
	r.defaults()
	return r
}

// Resolve returns the first visible element matched by the role's chain.
// Strategies are tried in priority order; each gets a bounded polling wait.
// Read-only: no side effects on the page.
func (r *Resolver) Resolve(ctx context.Context, scope driver.Scope, role Role) (driver.Element, error) {
	r.defaults()
	chain, ok := chains[role]
	if !ok || len(chain) == 0 {
		return nil, ErrNotFound
	}

	for i, loc := range chain {
		timeout := r.ProbeTimeout
		if i > 0 {
			// Fallbacks get a shorter probe; the page has already had
			// time to render while the primary was tried.
			timeout = r.ProbeTimeout / 4
			if timeout < r.PollInterval {
				timeout = r.PollInterval
			}
		}

		el, err := r.probe(ctx, scope, loc, timeout)
		if err == nil {
			if i > 0 {
				r.Logger.Debug("selector: fallback matched",
					"role", string(role), "strategy", i, "expr", loc.Expr)
			}
			return el, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	return nil, ErrNotFound
}

// ResolveAll returns all current matches for the role's first strategy that
// yields anything. No polling wait: the caller is scanning live state and
// an empty result is meaningful (exhaustion).
func (r *Resolver) ResolveAll(ctx context.Context, scope driver.Scope, role Role) ([]driver.Element, error) {
	r.defaults()
	for _, loc := range chains[role] {
		els, err := scope.Elements(ctx, loc)
		if err != nil {
			continue
		}
		if len(els) > 0 {
			return els, nil
		}
	}
	return nil, nil
}

// probe polls one strategy until a visible match appears or the timeout
// passes.
func (r *Resolver) probe(ctx context.Context, scope driver.Scope, loc driver.Locator, timeout time.Duration) (driver.Element, error) {
	deadline := time.Now().Add(timeout)
	for {
		els, err := scope.Elements(ctx, loc)
		if err == nil {
			for _, el := range els {
				visible, verr := el.Visible(ctx)
				if verr == nil && visible {
					return el, nil
				}
			}
		}

		if time.Now().After(deadline) {
			return nil, ErrNotFound
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(r.PollInterval):
		}
	}
}
