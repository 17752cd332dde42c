// Package drivertest provides in-memory fakes of the driver interfaces for
// engine and runner tests. The fake page is a mutable tree keyed by locator
// expression; Click callbacks mutate it the way a real panel would.
package drivertest

import (
	"context"
	"errors"
	"time"

	"github.com/hazyhaar/paagrab/internal/driver"
)

// ErrDetached is returned by operations on a detached element.
var ErrDetached = errors.New("drivertest: element detached")

// Element is a scriptable fake DOM node.
type Element struct {
	TextValue    string
	HTMLValue    string
	Hidden       bool
	Detached     bool
	Children     map[string][]*Element // keyed by locator Expr
	OnClick      func() error          // mutates the fake page
	Clicks       int
}

// NewElement creates a visible element with the given text.
func NewElement(text string) *Element {
	return &Element{TextValue: text, Children: map[string][]*Element{}}
}

// Add appends children under a locator expression.
func (e *Element) Add(expr string, children ...*Element) *Element {
	if e.Children == nil {
		e.Children = map[string][]*Element{}
	}
	e.Children[expr] = append(e.Children[expr], children...)
	return e
}

// Set replaces the children under a locator expression.
func (e *Element) Set(expr string, children ...*Element) {
	if e.Children == nil {
		e.Children = map[string][]*Element{}
	}
	e.Children[expr] = children
}

func (e *Element) Elements(ctx context.Context, loc driver.Locator) ([]driver.Element, error) {
	if e.Detached {
		return nil, ErrDetached
	}
	return wrap(e.Children[loc.Expr]), nil
}

func (e *Element) Click(ctx context.Context) error {
	if e.Detached {
		return ErrDetached
	}
	e.Clicks++
	if e.OnClick != nil {
		return e.OnClick()
	}
	return nil
}

func (e *Element) Text(ctx context.Context) (string, error) {
	if e.Detached {
		return "", ErrDetached
	}
	return e.TextValue, nil
}

func (e *Element) HTML(ctx context.Context) (string, error) {
	if e.Detached {
		return "", ErrDetached
	}
	return e.HTMLValue, nil
}

func (e *Element) Visible(ctx context.Context) (bool, error) {
	if e.Detached {
		return false, ErrDetached
	}
	return !e.Hidden, nil
}

func wrap(els []*Element) []driver.Element {
	out := make([]driver.Element, 0, len(els))
	for _, e := range els {
		out = append(out, e)
	}
	return out
}

// Session is a scriptable fake page.
type Session struct {
	Root        map[string][]*Element // keyed by locator Expr
	CurrentURL  string
	PageHTML    string
	Navigations []string
	Closed      bool

	// OnNavigate, when set, is called for each navigation and may mutate
	// the fake page (e.g. swap in a challenge).
	OnNavigate func(url string) error

	// OnEval records or answers script evaluations.
	OnEval func(js string) (string, error)
}

// NewSession creates an empty fake session.
func NewSession() *Session {
	return &Session{Root: map[string][]*Element{}}
}

// Set replaces the page-level children under a locator expression.
func (s *Session) Set(expr string, children ...*Element) {
	s.Root[expr] = children
}

func (s *Session) Elements(ctx context.Context, loc driver.Locator) ([]driver.Element, error) {
	return wrap(s.Root[loc.Expr]), nil
}

func (s *Session) Navigate(ctx context.Context, url string) error {
	s.Navigations = append(s.Navigations, url)
	s.CurrentURL = url
	if s.OnNavigate != nil {
		return s.OnNavigate(url)
	}
	return nil
}

func (s *Session) URL(ctx context.Context) (string, error) { return s.CurrentURL, nil }

func (s *Session) HTML(ctx context.Context) (string, error) { return s.PageHTML, nil }

func (s *Session) Eval(ctx context.Context, js string) (string, error) {
	if s.OnEval != nil {
		return s.OnEval(js)
	}
	return "", nil
}

func (s *Session) WaitStable(ctx context.Context, settle time.Duration) error { return nil }

func (s *Session) Close() error {
	s.Closed = true
	return nil
}
