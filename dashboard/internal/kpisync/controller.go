// Package kpisync keeps live tower KPIs in step with what the map shows.
//
// # Triggers
//
// Two independent paths fetch KPIs:
//
//  1. Viewport: every viewport change computes the visible towers and issues
//     one batch fetch, subject to a throttle and an in-flight guard. Triggers
//     rejected by either are dropped, never queued.
//  2. Selection: while a tower is selected it is fetched immediately and then
//     on a fixed interval until the selection changes.
//
// # Consistency
//
// Every successful response is merged into the Store by whole-snapshot
// replacement, including responses that arrive after the viewport or
// selection that caused them has changed.
package kpisync

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/florykhan/TelusGuardAI/pkg/spatial"
	"github.com/florykhan/TelusGuardAI/pkg/types"
)

// Defaults.
const (
	DefaultThrottle     = 1500 * time.Millisecond
	DefaultMaxBatch     = types.MaxKPIBatch
	DefaultPollInterval = 5 * time.Second
)

// Fetch paths, used in logs and metric labels.
const (
	pathBatch = "batch"
	pathPoll  = "poll"
)

// Fetcher retrieves the latest KPIs for a set of towers.
type Fetcher interface {
	FetchKPIs(ctx context.Context, towerIDs []string, opts types.KpiOptions) (map[string]types.KpiSnapshot, error)
}

// Config for the controller.
type Config struct {
	Fetcher      Fetcher          // KPI source (required)
	Towers       *spatial.Index   // Displayed tower set (required)
	Throttle     time.Duration    // Minimum gap between batch dispatches
	MaxBatch     int              // Max tower ids per batch request
	PollInterval time.Duration    // Selected-tower refresh interval
	Options      types.KpiOptions // Passed through to every fetch
	Clock        Clock            // Optional, defaults to SystemClock
	Metrics      *Metrics         // Optional
	Logger       *slog.Logger     // Optional
}

// Controller owns the KPI store and decides when to fetch.
type Controller struct {
	fetcher      Fetcher
	maxBatch     int
	pollInterval time.Duration
	options      types.KpiOptions
	clock        Clock
	metrics      *Metrics
	logger       *slog.Logger
	store        *Store

	// ctx bounds every fetch; cancelled by Close.
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Viewport path. inFlight holds the generation of the outstanding batch
	// or zero when none is outstanding.
	mu       sync.Mutex
	towers   *spatial.Index
	limiter  *rate.Limiter
	gen      uint64
	inFlight uint64
	closed   bool

	// Selection path.
	pollMu     sync.Mutex
	pollTower  string
	pollCancel context.CancelFunc
	pollDone   chan struct{}

	statsMu sync.Mutex
	stats   Stats
}

// Stats reports controller activity.
type Stats struct {
	Dispatched   int64 `json:"dispatched"`
	Throttled    int64 `json:"throttled"`
	DroppedBusy  int64 `json:"dropped_in_flight"`
	SkippedEmpty int64 `json:"skipped_empty"`
	Polls        int64 `json:"polls"`
	Failures     int64 `json:"failures"`
	Merged       int64 `json:"merged"`
}

// New creates a controller. Call Close to stop polling and release fetches.
func New(cfg Config) (*Controller, error) {
	if cfg.Fetcher == nil {
		return nil, fmt.Errorf("kpisync: fetcher is required")
	}
	if cfg.Towers == nil {
		cfg.Towers = spatial.NewIndex(nil)
	}
	if cfg.Throttle <= 0 {
		cfg.Throttle = DefaultThrottle
	}
	if cfg.MaxBatch <= 0 {
		cfg.MaxBatch = DefaultMaxBatch
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.Clock == nil {
		cfg.Clock = SystemClock{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		fetcher:      cfg.Fetcher,
		maxBatch:     cfg.MaxBatch,
		pollInterval: cfg.PollInterval,
		options:      cfg.Options,
		clock:        cfg.Clock,
		metrics:      cfg.Metrics,
		logger:       cfg.Logger.With("component", "kpisync"),
		store:        NewStore(cfg.Clock.Now),
		ctx:          ctx,
		cancel:       cancel,
		towers:       cfg.Towers,
		limiter:      rate.NewLimiter(rate.Every(cfg.Throttle), 1),
	}, nil
}

// Store returns the KPI store. Callers must treat it as read-only.
func (c *Controller) Store() *Store {
	return c.store
}

// SetTowers replaces the displayed tower set, e.g. after a radio filter
// change. It does not trigger a fetch.
func (c *Controller) SetTowers(towers *spatial.Index) {
	if towers == nil {
		towers = spatial.NewIndex(nil)
	}
	c.mu.Lock()
	c.towers = towers
	c.mu.Unlock()
}

// =============================================================================
// VIEWPORT PATH
// =============================================================================

// ViewportChanged handles a new viewport. At most one batch fetch is
// outstanding at any time and dispatches are at least the throttle interval
// apart; triggers that violate either rule are dropped. The fetch itself runs
// in the background.
func (c *Controller) ViewportChanged(bounds types.Bounds) Outcome {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return c.record(OutcomeClosed)
	}

	ids := c.towers.VisibleIDs(bounds)
	if len(ids) == 0 {
		c.mu.Unlock()
		return c.record(OutcomeEmpty)
	}
	// In-flight is checked before the limiter so a dropped trigger does not
	// spend the throttle token.
	if c.inFlight != 0 {
		c.mu.Unlock()
		return c.record(OutcomeInFlight)
	}
	if !c.limiter.AllowN(c.clock.Now(), 1) {
		c.mu.Unlock()
		return c.record(OutcomeThrottled)
	}

	c.gen++
	token := c.gen
	c.inFlight = token
	c.wg.Add(1)
	c.mu.Unlock()

	if len(ids) > c.maxBatch {
		c.logger.Debug("capping batch", "visible", len(ids), "max", c.maxBatch)
		ids = ids[:c.maxBatch]
	}

	go func() {
		defer c.wg.Done()
		defer c.release(token)
		c.fetch(pathBatch, ids)
	}()
	return c.record(OutcomeDispatched)
}

// release clears the in-flight guard if token still owns it.
func (c *Controller) release(token uint64) {
	c.mu.Lock()
	if c.inFlight == token {
		c.inFlight = 0
	}
	c.mu.Unlock()
}

// InFlight reports whether a batch fetch is outstanding.
func (c *Controller) InFlight() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inFlight != 0
}

// =============================================================================
// SELECTION PATH
// =============================================================================

// StartPolling fetches towerID now and then every poll interval until
// StopPolling, another StartPolling, or Close. Any previous poll is stopped
// first, so at most one poll loop exists.
func (c *Controller) StartPolling(towerID string) {
	c.pollMu.Lock()
	defer c.pollMu.Unlock()

	c.stopPollingLocked()
	if towerID == "" {
		return
	}

	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return
	}

	ctx, cancel := context.WithCancel(c.ctx)
	done := make(chan struct{})
	c.pollTower = towerID
	c.pollCancel = cancel
	c.pollDone = done

	c.logger.Debug("polling started", "tower_id", towerID, "interval", c.pollInterval)
	go c.pollLoop(ctx, towerID, done)
}

// StopPolling cancels the current poll loop, if any, and waits for it to
// exit. A poll fetch already on the wire still completes and is merged.
func (c *Controller) StopPolling() {
	c.pollMu.Lock()
	defer c.pollMu.Unlock()
	c.stopPollingLocked()
}

// PollingTower returns the tower currently being polled.
func (c *Controller) PollingTower() (string, bool) {
	c.pollMu.Lock()
	defer c.pollMu.Unlock()
	return c.pollTower, c.pollTower != ""
}

func (c *Controller) stopPollingLocked() {
	if c.pollCancel == nil {
		return
	}
	c.pollCancel()
	<-c.pollDone
	c.logger.Debug("polling stopped", "tower_id", c.pollTower)
	c.pollTower = ""
	c.pollCancel = nil
	c.pollDone = nil
}

func (c *Controller) pollLoop(ctx context.Context, towerID string, done chan struct{}) {
	defer close(done)

	c.pollOnce(ctx, towerID)

	ticker := c.clock.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			c.pollOnce(ctx, towerID)
		}
	}
}

// pollOnce dispatches one poll fetch unless the loop has been cancelled.
// The fetch runs on the controller context so it outlives the loop.
func (c *Controller) pollOnce(ctx context.Context, towerID string) {
	if ctx.Err() != nil {
		return
	}
	c.statsMu.Lock()
	c.stats.Polls++
	c.statsMu.Unlock()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.fetch(pathPoll, []string{towerID})
	}()
}

// =============================================================================
// FETCH & MERGE
// =============================================================================

// fetch performs one request and merges the result. Failures are logged and
// counted; there is no retry. The next trigger is the retry.
func (c *Controller) fetch(path string, ids []string) {
	start := time.Now()
	kpis, err := c.fetcher.FetchKPIs(c.ctx, ids, c.options)
	elapsed := time.Since(start)

	if err != nil {
		c.statsMu.Lock()
		c.stats.Failures++
		c.statsMu.Unlock()
		c.metrics.fetch(path, false, elapsed.Seconds(), c.store.Len())

		if c.ctx.Err() != nil {
			c.logger.Debug("kpi fetch cancelled", "path", path, "towers", len(ids))
			return
		}
		c.logger.Warn("kpi fetch failed",
			"path", path,
			"towers", len(ids),
			"error", err)
		return
	}

	merged := c.store.Merge(kpis)

	c.statsMu.Lock()
	c.stats.Merged += int64(merged)
	c.statsMu.Unlock()
	c.metrics.fetch(path, true, elapsed.Seconds(), c.store.Len())

	c.logger.Debug("kpis merged",
		"path", path,
		"requested", len(ids),
		"merged", merged,
		"duration", elapsed)
}

func (c *Controller) record(o Outcome) Outcome {
	c.statsMu.Lock()
	switch o {
	case OutcomeDispatched:
		c.stats.Dispatched++
	case OutcomeThrottled:
		c.stats.Throttled++
	case OutcomeInFlight:
		c.stats.DroppedBusy++
	case OutcomeEmpty:
		c.stats.SkippedEmpty++
	}
	c.statsMu.Unlock()
	c.metrics.trigger(o)
	return o
}

// Stats returns a copy of the controller counters.
func (c *Controller) Stats() Stats {
	c.statsMu.Lock()
	defer c.statsMu.Unlock()
	return c.stats
}

// Wait blocks until every dispatched fetch has returned.
func (c *Controller) Wait() {
	c.wg.Wait()
}

// Close stops polling, cancels outstanding fetches and waits for them.
func (c *Controller) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()

	c.StopPolling()
	c.cancel()
	c.wg.Wait()
}
