package browser

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hazyhaar/paagrab/internal/driver"
	"github.com/hazyhaar/paagrab/internal/selector"
)

// AcceptConsent dismisses the cookie consent interstitial if one is shown.
// The dialog appears once per browser profile, on the first navigation of a
// fresh session. Returns true when a dialog was found and dismissed.
func AcceptConsent(ctx context.Context, sess driver.Session, res *selector.Resolver, logger *slog.Logger) bool {
	if logger == nil {
		logger = slog.Default()
	}

	btn, err := res.Resolve(ctx, sess, selector.RoleConsent)
	if err != nil {
		if !errors.Is(err, selector.ErrNotFound) {
			logger.Debug("consent: probe failed", "error", err)
		}
		return false
	}

	if err := btn.Click(ctx); err != nil {
		logger.Warn("consent: click failed", "error", err)
		return false
	}
	if err := sess.WaitStable(ctx, 1500*time.Millisecond); err != nil {
		logger.Debug("consent: settle after dismiss", "error", err)
	}
	logger.Info("consent: dialog dismissed")
	return true
}
