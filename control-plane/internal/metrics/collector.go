// Package metrics provides health and Prometheus metrics for the control plane.
package metrics

import (
	"context"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/florykhan/TelusGuardAI/control-plane/internal/cache"
	"github.com/florykhan/TelusGuardAI/control-plane/internal/config"
	"github.com/florykhan/TelusGuardAI/pkg/types"
)

// DatabaseProbe is the tower store as seen by health checks.
type DatabaseProbe interface {
	Ping(ctx context.Context) error
	GetPoolStats() types.PoolStats
}

// CacheProbe is the analysis cache as seen by health checks.
type CacheProbe interface {
	Stats(ctx context.Context) (cache.Stats, error)
}

// TowerCounter reports the catalog size.
type TowerCounter interface {
	CountTowers(ctx context.Context) (int, error)
}

// Degraded thresholds for the process.
const (
	maxHealthyCPUPercent    = 90
	maxHealthyMemoryPercent = 90
)

// CollectorConfig wires the optional probes.
type CollectorConfig struct {
	Version  string
	Config   types.HealthConfig
	Database DatabaseProbe // nil when no database is configured
	Cache    CacheProbe    // nil when no cache is configured
	Towers   TowerCounter
	TTL      time.Duration // default config.CacheTTLHealth
}

// Collector gathers health metrics with caching.
type Collector struct {
	cfg       CollectorConfig
	startTime time.Time
	now       func() time.Time

	mu          sync.RWMutex
	cached      *types.Health
	cacheExpiry time.Time
}

// NewCollector creates a new health collector.
func NewCollector(cfg CollectorConfig) *Collector {
	if cfg.TTL <= 0 {
		cfg.TTL = config.CacheTTLHealth
	}
	return &Collector{
		cfg:       cfg,
		startTime: time.Now(),
		now:       time.Now,
	}
}

// Health returns the current health, reusing the previous answer for the
// collector TTL so a busy load balancer doesn't hammer Postgres and Redis.
func (c *Collector) Health(ctx context.Context) *types.Health {
	c.mu.RLock()
	if c.cached != nil && c.now().Before(c.cacheExpiry) {
		h := *c.cached
		c.mu.RUnlock()
		return &h
	}
	c.mu.RUnlock()

	h := c.collect(ctx)

	c.mu.Lock()
	c.cached = h
	c.cacheExpiry = c.now().Add(c.cfg.TTL)
	c.mu.Unlock()

	out := *h
	return &out
}

func (c *Collector) collect(ctx context.Context) *types.Health {
	h := &types.Health{
		Status:    "healthy",
		Timestamp: c.now(),
		Version:   c.cfg.Version,
		Config:    c.cfg.Config,
		Process:   c.processHealth(),
	}

	if c.cfg.Database != nil {
		db := &types.DatabaseHealth{Status: "up"}
		if err := c.cfg.Database.Ping(ctx); err != nil {
			db.Status = "down"
			h.Status = "degraded"
		} else {
			db.Pool = c.cfg.Database.GetPoolStats()
		}
		h.Database = db
	}

	if c.cfg.Cache != nil {
		ch := &types.CacheHealth{Status: "up"}
		if stats, err := c.cfg.Cache.Stats(ctx); err != nil {
			ch.Status = "down"
			h.Status = "degraded"
		} else {
			ch.Items = stats.ActiveItems
		}
		h.Cache = ch
	}

	if c.cfg.Towers != nil {
		if n, err := c.cfg.Towers.CountTowers(ctx); err == nil {
			h.Towers = n
		}
	}

	if h.Process.CPUPercent > maxHealthyCPUPercent || h.Process.MemoryPercent > maxHealthyMemoryPercent {
		h.Status = "degraded"
	}
	return h
}

func (c *Collector) processHealth() types.ProcessHealth {
	ph := types.ProcessHealth{
		Goroutines:    runtime.NumGoroutine(),
		UptimeSeconds: int64(c.now().Sub(c.startTime).Seconds()),
	}

	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return ph
	}
	if cpu, err := proc.CPUPercent(); err == nil {
		ph.CPUPercent = cpu
	}
	if mem, err := proc.MemoryInfo(); err == nil {
		ph.MemoryMB = float64(mem.RSS) / (1024 * 1024)
	}
	if memPct, err := proc.MemoryPercent(); err == nil {
		ph.MemoryPercent = float64(memPct)
	}
	return ph
}
