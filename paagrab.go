// Package paagrab drives incremental expansion and extraction of related
// question panels on search result pages: one browser session, queries
// processed strictly in order, progress checkpointed so an interrupted run
// resumes where it stopped.
package paagrab

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/hazyhaar/paagrab/internal/archive"
	"github.com/hazyhaar/paagrab/internal/browser"
	"github.com/hazyhaar/paagrab/internal/challenge"
	"github.com/hazyhaar/paagrab/internal/checkpoint"
	"github.com/hazyhaar/paagrab/internal/dedup"
	"github.com/hazyhaar/paagrab/internal/driver"
	"github.com/hazyhaar/paagrab/internal/expand"
	"github.com/hazyhaar/paagrab/internal/extract"
	"github.com/hazyhaar/paagrab/internal/selector"
	"github.com/hazyhaar/paagrab/internal/status"
)

// RunnerConfig wires a Runner's collaborators. Session is required; the
// rest default to working implementations or stay disabled when nil.
type RunnerConfig struct {
	Config  *Config
	Session driver.Session

	// Solver enables the API-assisted challenge strategy. Nil means
	// manual-only resolution.
	Solver *challenge.Solver

	// Archive receives every captured pair when non-nil.
	Archive *archive.Archive

	// Status receives progress snapshots when non-nil.
	Status *status.Server

	// Resolver overrides the default selector resolver. Tests shorten its
	// probe timeouts.
	Resolver *selector.Resolver

	Logger *slog.Logger

	// Sleep and Pause are seams for tests; nil uses context-aware sleep
	// and a randomized pause in [PauseMin, PauseMax].
	Sleep func(ctx context.Context, d time.Duration)
	Pause func() time.Duration

	Now func() time.Time
}

// Runner executes one run over a query list.
type Runner struct {
	cfg      *Config
	sess     driver.Session
	resolver *selector.Resolver
	handler  *challenge.Handler
	store    *checkpoint.Store
	index    *dedup.Index
	cleaner  *extract.Cleaner
	arch     *archive.Archive
	stat     *status.Server
	logger   *slog.Logger
	sleep    func(ctx context.Context, d time.Duration)
	pause    func() time.Duration
	now      func() time.Time

	runID           string
	startedAt       time.Time
	consentDone     bool
	sawInterference bool
	lastCheckpoint  time.Time
}

// NewRunner creates a Runner.
func NewRunner(rc RunnerConfig) *Runner {
	cfg := rc.Config
	if cfg == nil {
		cfg = DefaultConfig()
	}
	cfg.applyDefaults()

	logger := rc.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := rc.Now
	if now == nil {
		now = time.Now
	}
	sleep := rc.Sleep
	if sleep == nil {
		sleep = func(ctx context.Context, d time.Duration) {
			select {
			case <-ctx.Done():
			case <-time.After(d):
			}
		}
	}
	pause := rc.Pause
	if pause == nil {
		pause = func() time.Duration {
			span := cfg.PauseMax - cfg.PauseMin
			if span <= 0 {
				return cfg.PauseMin
			}
			return cfg.PauseMin + rand.N(span)
		}
	}

	resolver := rc.Resolver
	if resolver == nil {
		resolver = selector.New(logger)
	}

	return &Runner{
		cfg:      cfg,
		sess:     rc.Session,
		resolver: resolver,
		handler: challenge.NewHandler(challenge.Config{
			Session:        rc.Session,
			Solver:         rc.Solver,
			ManualWait:     cfg.ManualWait,
			ProbeInterval:  cfg.ProbeInterval,
			AbortThreshold: cfg.AbortThreshold,
			Logger:         logger,
		}),
		store:   checkpoint.NewStore(cfg.CheckpointPath, logger),
		index:   dedup.NewIndex(),
		cleaner: extract.NewCleaner(),
		arch:    rc.Archive,
		stat:    rc.Status,
		logger:  logger,
		sleep:   sleep,
		pause:   pause,
		now:     now,
		runID:   "run-" + now().UTC().Format("20060102-150405"),
	}
}

// Run processes queries in order and returns the run summary. The summary
// is populated even when the returned error is non-nil.
func (r *Runner) Run(ctx context.Context, queries []string) (*RunSummary, error) {
	r.startedAt = r.now()
	log := r.logger

	state := &checkpoint.RunState{}
	if r.cfg.Resume {
		loaded, err := r.store.Load()
		if err != nil {
			return nil, err
		}
		state = loaded
		r.index = dedup.Restore(state.Dedup)
		r.handler.Restore(state.Interferences)
	}

	pending := FilterCompleted(queries, state.CompletedSet())
	if skipped := len(queries) - len(pending); skipped > 0 {
		log.Info("resume: skipping completed queries", "skipped", skipped)
	}

	persist := func() {
		state.Dedup = r.index.Snapshot()
		state.Interferences = r.handler.Consecutive()
		if err := r.store.Persist(state); err != nil {
			log.Error("checkpoint persist failed", "error", err)
			return
		}
		r.lastCheckpoint = r.now()
	}

	var runErr error
	for i, query := range pending {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}
		r.publish(state, query, len(queries))
		log.Info("processing query", "query", query,
			"position", len(state.Completed)+1, "total", len(queries))

		items, err := r.processQuery(ctx, query)
		state.Items = append(state.Items, items...)
		if err != nil {
			runErr = err
			break
		}

		state.Completed = append(state.Completed, query)
		if !r.sawInterference {
			// A clean query breaks the consecutive-interference streak.
			r.handler.Reset()
		}
		log.Info("query done", "query", query, "captured", len(items))

		if len(state.Completed)%r.cfg.CheckpointEvery == 0 {
			persist()
		}
		if i < len(pending)-1 {
			r.sleep(ctx, r.pause())
		}
	}

	summary := &RunSummary{
		QueriesDone:   len(state.Completed),
		QueriesTotal:  len(queries),
		ItemsCaptured: len(state.Items),
		Interferences: r.handler.Consecutive(),
		Duration:      r.now().Sub(r.startedAt),
		Items:         append([]QAItem(nil), state.Items...),
	}
	r.publish(state, "", len(queries))

	switch {
	case runErr == nil:
		summary.Status = StatusCompleted
		if err := r.store.Clear(); err != nil {
			log.Warn("checkpoint clear failed", "error", err)
		}
	case errors.Is(runErr, ErrAborted):
		summary.Status = StatusAborted
		persist()
	default:
		summary.Status = StatusFailed
		persist()
	}

	log.Info("run finished", "status", string(summary.Status),
		"queries", summary.QueriesDone, "items", summary.ItemsCaptured,
		"duration", summary.Duration)
	return summary, runErr
}

// processQuery runs one query, retrying once from a fresh page load after
// a resolved interference. Items captured before the interruption are kept;
// the dedup index keeps the retry from re-capturing them.
func (r *Runner) processQuery(ctx context.Context, query string) ([]QAItem, error) {
	r.sawInterference = false
	var collected []QAItem
	for attempt := 0; attempt < 2; attempt++ {
		items, retry, err := r.attemptQuery(ctx, query)
		collected = append(collected, items...)
		if err != nil || !retry {
			return collected, err
		}
		r.logger.Info("interference resolved, restarting query", "query", query)
	}
	return collected, nil
}

func (r *Runner) attemptQuery(ctx context.Context, query string) (items []QAItem, retry bool, err error) {
	if err := r.sess.Navigate(ctx, SearchURL(query, r.cfg.Language, r.cfg.Region)); err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrSessionLost, err)
	}
	if !r.consentDone {
		browser.AcceptConsent(ctx, r.sess, r.resolver, r.logger)
		r.consentDone = true
	}

	if r.handler.Detected(ctx) {
		retry, err := r.afterInterference(ctx, query)
		return nil, retry, err
	}

	panel, err := r.resolver.Resolve(ctx, r.sess, selector.RolePanel)
	if errors.Is(err, selector.ErrNotFound) {
		r.logger.Info("no panel on result page", "query", query)
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	engine := expand.New(expand.Config{
		Resolver:    r.resolver,
		Index:       r.index,
		ClickBudget: r.cfg.ClickBudget,
		WaitStable:  r.sess.WaitStable,
		CleanAnswer: r.cleaner.Clean,
		Logger:      r.logger,
	})
	results, runErr := engine.Run(ctx, panel)
	items = r.capture(ctx, query, results)

	switch {
	case runErr == nil:
		return items, false, nil
	case errors.Is(runErr, expand.ErrPanelVanished) && r.handler.Detected(ctx):
		retry, err := r.afterInterference(ctx, query)
		return items, retry, err
	case errors.Is(runErr, expand.ErrPanelVanished):
		// Page mutated under us without a challenge; keep what we got.
		r.logger.Warn("panel vanished mid-expansion", "query", query)
		return items, false, nil
	default:
		return items, false, runErr
	}
}

// afterInterference delegates to the handler. A resolved challenge means
// the query restarts from a fresh load; an unresolved one below the abort
// threshold gives the query up and moves on.
func (r *Runner) afterInterference(ctx context.Context, query string) (retry bool, err error) {
	r.sawInterference = true
	resolution, err := r.handler.Resolve(ctx)
	if err != nil {
		return false, err
	}
	if resolution == challenge.Unresolved {
		r.logger.Warn("giving up on query after unresolved interference",
			"query", query, "consecutive", r.handler.Consecutive())
		return false, nil
	}
	r.logger.Info("interference cleared", "resolution", string(resolution))
	return true, nil
}

// capture converts engine results and records them in the archive.
func (r *Runner) capture(ctx context.Context, query string, results []expand.Result) []QAItem {
	if len(results) == 0 {
		return nil
	}
	items := make([]QAItem, 0, len(results))
	for _, res := range results {
		item := QAItem{Query: query, Question: res.Question, Answer: res.Answer}
		items = append(items, item)
		if r.arch != nil {
			if err := r.arch.Insert(ctx, r.runID, item, r.now()); err != nil {
				r.logger.Warn("archive insert failed", "error", err)
			}
		}
	}
	return items
}

func (r *Runner) publish(state *checkpoint.RunState, current string, total int) {
	if r.stat == nil {
		return
	}
	r.stat.Update(status.Snapshot{
		Query:          current,
		QueriesDone:    len(state.Completed),
		QueriesTotal:   total,
		ItemsCaptured:  len(state.Items),
		Interferences:  r.handler.Consecutive(),
		LastCheckpoint: r.lastCheckpoint,
		StartedAt:      r.startedAt,
	})
}
