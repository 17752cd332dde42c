package browser

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/hazyhaar/paagrab/internal/driver"
)

// Session adapts a Rod page to driver.Session.
type Session struct {
	page   *rod.Page
	logger *slog.Logger
}

var _ driver.Session = (*Session)(nil)

// Navigate loads the URL and waits for the load event. A load timeout is
// not fatal; heavy result pages keep loading subresources long after the
// content the engine needs is interactable.
func (s *Session) Navigate(ctx context.Context, url string) error {
	p := s.page.Context(ctx)
	if err := p.Navigate(url); err != nil {
		return fmt.Errorf("browser: navigate %s: %w", url, err)
	}
	if err := p.WaitLoad(); err != nil {
		s.logger.Warn("browser: wait load", "url", url, "error", err)
	}
	return nil
}

func (s *Session) URL(ctx context.Context) (string, error) {
	info, err := s.page.Context(ctx).Info()
	if err != nil {
		return "", fmt.Errorf("browser: page info: %w", err)
	}
	return info.URL, nil
}

func (s *Session) HTML(ctx context.Context) (string, error) {
	html, err := s.page.Context(ctx).HTML()
	if err != nil {
		return "", fmt.Errorf("browser: page html: %w", err)
	}
	return html, nil
}

// Eval evaluates a JavaScript expression. The expression is passed as an
// argument so arbitrary statements work regardless of how Rod classifies
// the source string.
func (s *Session) Eval(ctx context.Context, js string) (string, error) {
	res, err := s.page.Context(ctx).Eval(
		`code => { const v = eval(code); return v === undefined || v === null ? "" : String(v); }`, js)
	if err != nil {
		return "", fmt.Errorf("browser: eval: %w", err)
	}
	return res.Value.Str(), nil
}

func (s *Session) WaitStable(ctx context.Context, settle time.Duration) error {
	return s.page.Context(ctx).WaitDOMStable(settle, 0)
}

func (s *Session) Elements(ctx context.Context, loc driver.Locator) ([]driver.Element, error) {
	p := s.page.Context(ctx)
	var els rod.Elements
	var err error
	switch loc.Kind {
	case driver.KindXPath:
		els, err = p.ElementsX(loc.Expr)
	default:
		els, err = p.Elements(loc.Expr)
	}
	if err != nil {
		return nil, fmt.Errorf("browser: elements %q: %w", loc.Expr, err)
	}
	return wrap(els), nil
}

func (s *Session) Close() error {
	return s.page.Close()
}

// element adapts a Rod element to driver.Element.
type element struct {
	el *rod.Element
}

var _ driver.Element = (*element)(nil)

func wrap(els rod.Elements) []driver.Element {
	out := make([]driver.Element, len(els))
	for i, el := range els {
		out[i] = &element{el: el}
	}
	return out
}

func (e *element) Elements(ctx context.Context, loc driver.Locator) ([]driver.Element, error) {
	el := e.el.Context(ctx)
	var els rod.Elements
	var err error
	switch loc.Kind {
	case driver.KindXPath:
		els, err = el.ElementsX(loc.Expr)
	default:
		els, err = el.Elements(loc.Expr)
	}
	if err != nil {
		return nil, fmt.Errorf("browser: elements %q: %w", loc.Expr, err)
	}
	return wrap(els), nil
}

// Click scrolls the node into view and clicks it. When the native click is
// intercepted by an overlay, a direct DOM click is tried before giving up.
func (e *element) Click(ctx context.Context) error {
	el := e.el.Context(ctx)
	if err := el.ScrollIntoView(); err != nil {
		return fmt.Errorf("browser: scroll: %w", err)
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		if _, jsErr := el.Eval(`() => this.click()`); jsErr != nil {
			return fmt.Errorf("browser: click: %w", err)
		}
	}
	return nil
}

func (e *element) Text(ctx context.Context) (string, error) {
	text, err := e.el.Context(ctx).Text()
	if err != nil {
		return "", fmt.Errorf("browser: text: %w", err)
	}
	return text, nil
}

func (e *element) HTML(ctx context.Context) (string, error) {
	html, err := e.el.Context(ctx).HTML()
	if err != nil {
		return "", fmt.Errorf("browser: html: %w", err)
	}
	return html, nil
}

func (e *element) Visible(ctx context.Context) (bool, error) {
	return e.el.Context(ctx).Visible()
}
