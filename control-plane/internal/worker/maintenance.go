// Package worker provides background workers for the control plane.
package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/florykhan/TelusGuardAI/control-plane/internal/config"
	"github.com/florykhan/TelusGuardAI/control-plane/internal/kpi"
)

// IncidentLister lists unexpired incidents, dropping expired ones as it goes.
type IncidentLister interface {
	List() []kpi.Incident
}

// QueryIndex lists cached questions, pruning index entries whose result
// has expired.
type QueryIndex interface {
	Queries(ctx context.Context) ([]string, error)
}

// TowerPruner drops simulated state for towers nobody has read recently.
type TowerPruner interface {
	Prune(idle time.Duration) int
}

// Gauges receives the counts observed on each run.
type Gauges interface {
	SetActiveIncidents(n int)
	SetCachedQueries(n int)
}

// MaintenanceConfig holds configuration for the maintenance worker.
type MaintenanceConfig struct {
	// Interval between runs.
	Interval time.Duration

	// KPIIdle is how long an unread tower keeps its simulated state.
	KPIIdle time.Duration

	// Dependencies are optional; a nil one is skipped.
	Incidents IncidentLister
	Cache     QueryIndex
	KPIs      TowerPruner
	Gauges    Gauges
}

// DefaultMaintenanceConfig returns sensible defaults.
func DefaultMaintenanceConfig() MaintenanceConfig {
	return MaintenanceConfig{
		Interval: config.MaintenanceInterval,
		KPIIdle:  config.KPIIdleTimeout,
	}
}

// RunStats is the outcome of one maintenance run.
type RunStats struct {
	ActiveIncidents int
	CachedQueries   int
	PrunedTowers    int
	CacheErr        error
}

// MaintenanceWorker prunes expired incidents, stale cache index entries and
// idle simulated towers so they do not accumulate between reads.
type MaintenanceWorker struct {
	config MaintenanceConfig
	logger *slog.Logger
	stopCh chan struct{}
}

// NewMaintenanceWorker creates a new maintenance worker.
func NewMaintenanceWorker(cfg MaintenanceConfig, logger *slog.Logger) *MaintenanceWorker {
	if cfg.Interval <= 0 {
		cfg.Interval = config.MaintenanceInterval
	}
	if cfg.KPIIdle <= 0 {
		cfg.KPIIdle = config.KPIIdleTimeout
	}
	return &MaintenanceWorker{
		config: cfg,
		logger: logger.With("component", "maintenance_worker"),
		stopCh: make(chan struct{}),
	}
}

// Start begins the worker in a goroutine.
func (w *MaintenanceWorker) Start(ctx context.Context) {
	go w.run(ctx)
}

// Stop signals the worker to stop.
func (w *MaintenanceWorker) Stop() {
	close(w.stopCh)
}

func (w *MaintenanceWorker) run(ctx context.Context) {
	w.logger.Info("maintenance worker started", "interval", w.config.Interval)

	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("maintenance worker stopping (context cancelled)")
			return
		case <-w.stopCh:
			w.logger.Info("maintenance worker stopping (stop signal)")
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single maintenance pass.
func (w *MaintenanceWorker) RunOnce(ctx context.Context) RunStats {
	start := time.Now()
	var stats RunStats

	if w.config.Incidents != nil {
		stats.ActiveIncidents = len(w.config.Incidents.List())
		if w.config.Gauges != nil {
			w.config.Gauges.SetActiveIncidents(stats.ActiveIncidents)
		}
	}

	if w.config.KPIs != nil {
		stats.PrunedTowers = w.config.KPIs.Prune(w.config.KPIIdle)
	}

	if w.config.Cache != nil {
		queries, err := w.config.Cache.Queries(ctx)
		if err != nil {
			stats.CacheErr = err
			w.logger.Warn("failed to prune cache index", "error", err)
		} else {
			stats.CachedQueries = len(queries)
			if w.config.Gauges != nil {
				w.config.Gauges.SetCachedQueries(stats.CachedQueries)
			}
		}
	}

	w.logger.Debug("maintenance cycle complete",
		"duration", time.Since(start),
		"active_incidents", stats.ActiveIncidents,
		"cached_queries", stats.CachedQueries,
		"pruned_towers", stats.PrunedTowers,
	)
	return stats
}
