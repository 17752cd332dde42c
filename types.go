package paagrab

import (
	"time"

	"github.com/hazyhaar/paagrab/internal/checkpoint"
)

// QAItem is one captured question/answer pair. Re-exported from internal.
type QAItem = checkpoint.Item

// RunStatus is the terminal state of a run.
type RunStatus string

const (
	// StatusCompleted: every query processed.
	StatusCompleted RunStatus = "completed"

	// StatusAborted: the consecutive interference threshold ended the run
	// early. Progress is checkpointed.
	StatusAborted RunStatus = "aborted"

	// StatusFailed: an unrecoverable error (session lost, cancellation).
	// Progress is checkpointed.
	StatusFailed RunStatus = "failed"
)

// RunSummary is what a finished run reports.
type RunSummary struct {
	Status        RunStatus
	QueriesDone   int
	QueriesTotal  int
	ItemsCaptured int
	Interferences int
	Duration      time.Duration

	// Items are all captured pairs, including those restored from the
	// checkpoint on resume, in capture order.
	Items []QAItem
}
