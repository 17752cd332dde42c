package challenge

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hazyhaar/paagrab/internal/driver"
)

// ErrAborted is returned when consecutive unresolved challenges reach the
// abort threshold. This is a run-ending condition: the caller must stop
// processing queries, force a checkpoint, and exit with a distinguishable
// status.
var ErrAborted = errors.New("challenge: consecutive interference threshold reached")

// Resolution describes how a detected challenge ended.
type Resolution string

const (
	ResolvedAPI    Resolution = "api-solved"
	ResolvedManual Resolution = "manual-solved"
	Unresolved     Resolution = "timed-out"
)

// Config holds the handler's dependencies and policy knobs.
type Config struct {
	Session driver.Session

	// Solver is the API-assisted strategy. Nil means manual-only.
	Solver *Solver

	// ManualWait bounds the wait for an out-of-band human resolution.
	// Default: 5m.
	ManualWait time.Duration

	// ProbeInterval between re-checks during the manual wait. Default: 5s.
	ProbeInterval time.Duration

	// AbortThreshold is the consecutive unresolved count that ends the
	// run. Default: 3. Consecutive, not total: interference is bursty,
	// and a challenge recovered from an hour ago says nothing about the
	// run being blocked now.
	AbortThreshold int

	// ResubmitSettle is the pause between token injection and the
	// clearance re-probe. Default: 3s.
	ResubmitSettle time.Duration

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.ManualWait <= 0 {
		c.ManualWait = 5 * time.Minute
	}
	if c.ProbeInterval <= 0 {
		c.ProbeInterval = 5 * time.Second
	}
	if c.AbortThreshold <= 0 {
		c.AbortThreshold = 3
	}
	if c.ResubmitSettle <= 0 {
		c.ResubmitSettle = 3 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Handler runs the Clear → Detected → Resolving → Clear | Aborted state
// machine and tracks the consecutive-failure count for the abort policy.
type Handler struct {
	cfg         Config
	consecutive int
}

// NewHandler creates a Handler.
func NewHandler(cfg Config) *Handler {
	cfg.defaults()
	return &Handler{cfg: cfg}
}

// Detected probes the current page for a challenge.
func (h *Handler) Detected(ctx context.Context) bool {
	return Detected(ctx, h.cfg.Session)
}

// Consecutive returns the current consecutive unresolved count.
func (h *Handler) Consecutive() int { return h.consecutive }

// Restore sets the consecutive count from a loaded checkpoint.
func (h *Handler) Restore(n int) {
	if n > 0 {
		h.consecutive = n
	}
}

// Reset clears the consecutive count. Called by the runner when a query
// completes without interference.
func (h *Handler) Reset() { h.consecutive = 0 }

// Resolve attempts to clear a detected challenge: API-assisted first when
// configured, then the bounded manual wait. On success the consecutive
// count resets and the caller should restart the current query from a
// fresh page load. On failure the count increments; reaching the abort
// threshold returns ErrAborted.
func (h *Handler) Resolve(ctx context.Context) (Resolution, error) {
	log := h.cfg.Logger

	if h.cfg.Solver != nil {
		if ok := h.resolveViaAPI(ctx); ok {
			h.consecutive = 0
			return ResolvedAPI, nil
		}
		log.Warn("challenge: API strategy failed, falling back to manual wait")
	}

	if ok := h.resolveManually(ctx); ok {
		h.consecutive = 0
		return ResolvedManual, nil
	}

	h.consecutive++
	log.Warn("challenge: unresolved", "consecutive", h.consecutive,
		"threshold", h.cfg.AbortThreshold)
	if h.consecutive >= h.cfg.AbortThreshold {
		return Unresolved, ErrAborted
	}
	return Unresolved, nil
}

// resolveViaAPI submits the on-page challenge to the solving service,
// injects the returned token, and resubmits the challenge form.
func (h *Handler) resolveViaAPI(ctx context.Context) bool {
	log := h.cfg.Logger
	s := h.cfg.Session

	html, err := s.HTML(ctx)
	if err != nil {
		log.Warn("challenge: page source unavailable", "error", err)
		return false
	}
	siteKey := SiteKey(html)
	if siteKey == "" {
		log.Warn("challenge: no site key on page")
		return false
	}

	pageURL, err := s.URL(ctx)
	if err != nil {
		return false
	}

	token, err := h.cfg.Solver.Solve(ctx, siteKey, pageURL)
	if err != nil {
		log.Warn("challenge: solve failed", "error", err)
		return false
	}

	if err := h.injectToken(ctx, token); err != nil {
		log.Warn("challenge: token injection failed", "error", err)
		return false
	}

	// Give the resubmitted page a moment before re-probing.
	select {
	case <-ctx.Done():
		return false
	case <-time.After(h.cfg.ResubmitSettle):
	}
	return !h.Detected(ctx)
}

// injectToken places the token into the response field, fires the
// challenge callback when one is registered, and submits the form.
func (h *Handler) injectToken(ctx context.Context, token string) error {
	_, err := h.cfg.Session.Eval(ctx, `
		(function(token) {
			var el = document.getElementById('g-recaptcha-response') ||
				document.querySelector('[name="g-recaptcha-response"]');
			if (el) {
				el.style.display = 'block';
				el.value = token;
			}
			try {
				var cb = document.querySelector('[data-callback]');
				if (cb) {
					var fn = cb.getAttribute('data-callback');
					if (fn && window[fn]) window[fn](token);
				}
			} catch (e) {}
			var form = document.querySelector("form[action*='sorry']") ||
				document.querySelector('form');
			if (form) form.submit();
		})(`+jsString(token)+`);`)
	return err
}

// resolveManually blocks until the challenge clears out-of-band or the
// ceiling passes, re-probing periodically. This is a documented suspension
// point, not a control-flow dependency on stdin.
func (h *Handler) resolveManually(ctx context.Context) bool {
	log := h.cfg.Logger
	log.Warn("challenge: waiting for manual resolution",
		"ceiling", h.cfg.ManualWait)

	deadline := time.Now().Add(h.cfg.ManualWait)
	for {
		select {
		case <-ctx.Done():
			return false
		case <-time.After(h.cfg.ProbeInterval):
		}

		if !h.Detected(ctx) {
			log.Info("challenge: cleared")
			return true
		}
		if time.Now().After(deadline) {
			log.Error("challenge: manual wait timed out")
			return false
		}
	}
}

// jsString quotes a value for embedding in an injected script.
func jsString(s string) string {
	out := make([]byte, 0, len(s)+2)
	out = append(out, '\'')
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\'', '\\':
			out = append(out, '\\', s[i])
		case '\n':
			out = append(out, '\\', 'n')
		default:
			out = append(out, s[i])
		}
	}
	return string(append(out, '\''))
}
