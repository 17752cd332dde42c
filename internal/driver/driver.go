// Package driver defines the browser capability consumed by the extraction
// engine: navigation, element lookup, clicking, and text reads. The engine
// never talks to a concrete automation stack; internal/browser provides the
// Rod-backed implementation, tests provide fakes.
package driver

import (
	"context"
	"time"
)

// LocatorKind selects the lookup mechanism for a Locator.
type LocatorKind string

const (
	KindCSS   LocatorKind = "css"
	KindXPath LocatorKind = "xpath"
)

// Locator is one strategy for finding elements. Roles chain several of
// these in priority order to absorb layout drift.
type Locator struct {
	Kind LocatorKind
	Expr string
}

// CSS builds a CSS locator.
func CSS(expr string) Locator { return Locator{Kind: KindCSS, Expr: expr} }

// XPath builds an XPath locator.
func XPath(expr string) Locator { return Locator{Kind: KindXPath, Expr: expr} }

// Scope is anything elements can be searched under: a whole page or a
// previously resolved element's subtree.
type Scope interface {
	// Elements returns all current matches for the locator. An empty slice
	// is not an error; it means the locator matched nothing right now.
	Elements(ctx context.Context, loc Locator) ([]Element, error)
}

// Element is a live handle to a DOM node. Handles go stale when the page
// mutates underneath them; callers must treat every method as fallible.
type Element interface {
	Scope

	// Click scrolls the node into view and clicks it.
	Click(ctx context.Context) error

	// Text returns the node's visible text.
	Text(ctx context.Context) (string, error)

	// HTML returns the node's outer HTML.
	HTML(ctx context.Context) (string, error)

	// Visible reports whether the node is rendered and interactable.
	Visible(ctx context.Context) (bool, error)
}

// Session is a single browser page reused across queries. One session is
// acquired per run and passed by reference into every component.
type Session interface {
	Scope

	// Navigate loads the URL and waits for the load event.
	Navigate(ctx context.Context, url string) error

	// URL returns the current page URL (after redirects).
	URL(ctx context.Context) (string, error)

	// HTML returns the full page source.
	HTML(ctx context.Context) (string, error)

	// Eval runs a JavaScript expression and returns its string result.
	Eval(ctx context.Context, js string) (string, error)

	// WaitStable blocks until the DOM has stopped mutating for the settle
	// window, or the context deadline passes.
	WaitStable(ctx context.Context, settle time.Duration) error

	// Close releases the page.
	Close() error
}
