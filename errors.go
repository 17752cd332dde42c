package paagrab

import (
	"errors"

	"github.com/hazyhaar/paagrab/internal/challenge"
)

// ErrSessionLost is returned when the browser session died and queries can
// no longer be attempted. Unrecoverable within a run; restart with resume.
var ErrSessionLost = errors.New("paagrab: browser session lost")

// ErrAborted is returned when consecutive unresolved interference reached
// the configured threshold. Re-exported from internal.
var ErrAborted = challenge.ErrAborted
