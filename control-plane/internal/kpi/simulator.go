// Package kpi produces live tower KPIs for the control plane.
//
// # Model
//
// Each tower carries its own random source seeded from the global seed and
// the tower id, so a tower's series is reproducible regardless of which other
// towers are requested or in what order. On every update the current value is
// blended with a fresh random target:
//
//	next = current*smoothing + target*(1-smoothing)
//
// then clamped, and the status is derived from the result. A tower is only
// advanced once its last update is at least the update interval old, so
// polling faster than the interval returns the same snapshot.
//
// Active incidents are applied on top of the smoothed state when a snapshot
// is read and never feed back into it; a tower recovers as soon as its
// incident expires.
package kpi

import (
	"hash/fnv"
	"log/slog"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/florykhan/TelusGuardAI/control-plane/internal/config"
	"github.com/florykhan/TelusGuardAI/pkg/types"
)

// Value bounds.
const (
	minLatencyMs  = 10
	maxLatencyMs  = 200
	maxPacketLoss = 0.2
)

// SimConfig configures the simulator.
type SimConfig struct {
	Seed      int64            // Global seed (default config.KPISeed)
	Smoothing float64          // Weight kept from the previous value (default config.KPISmoothing)
	Interval  time.Duration    // Minimum age before a tower advances (default config.KPIUpdateInterval)
	Now       func() time.Time // Optional clock
	Incidents *Incidents       // Optional incident overlay
	Logger    *slog.Logger
}

// Simulator maintains smoothed per-tower KPI state.
type Simulator struct {
	seed      int64
	smoothing float64
	interval  time.Duration
	now       func() time.Time
	incidents *Incidents
	logger    *slog.Logger

	mu     sync.Mutex
	towers map[string]*towerState
}

type towerState struct {
	rng        *rand.Rand
	traffic    float64
	latencyMs  int
	packetLoss float64
	energy     float64
	updatedAt  time.Time
	readAt     time.Time
}

// NewSimulator creates a simulator.
func NewSimulator(cfg SimConfig) *Simulator {
	if cfg.Seed == 0 {
		cfg.Seed = config.KPISeed
	}
	if cfg.Smoothing <= 0 || cfg.Smoothing >= 1 {
		cfg.Smoothing = config.KPISmoothing
	}
	if cfg.Interval <= 0 {
		cfg.Interval = config.KPIUpdateInterval
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Simulator{
		seed:      cfg.Seed,
		smoothing: cfg.Smoothing,
		interval:  cfg.Interval,
		now:       cfg.Now,
		incidents: cfg.Incidents,
		logger:    cfg.Logger.With("component", "kpi_simulator"),
		towers:    make(map[string]*towerState),
	}
}

// Incidents returns the incident overlay, or nil if none was configured.
func (s *Simulator) Incidents() *Incidents {
	return s.incidents
}

// Get returns the latest snapshot for each id, advancing towers whose state
// is older than the update interval. Empty ids are skipped.
func (s *Simulator) Get(ids []string) map[string]types.KpiSnapshot {
	now := s.now()
	out := make(map[string]types.KpiSnapshot, len(ids))

	s.mu.Lock()
	for _, id := range ids {
		if id == "" {
			continue
		}
		st, ok := s.towers[id]
		if !ok {
			st = s.initTower(id, now)
			s.towers[id] = st
			s.advance(st, now)
		} else if now.Sub(st.updatedAt) >= s.interval {
			s.advance(st, now)
		}
		st.readAt = now
		out[id] = st.snapshot()
	}
	s.mu.Unlock()

	if s.incidents != nil {
		for id, snap := range out {
			if inc, ok := s.incidents.Active(id); ok {
				out[id] = inc.Apply(snap)
			}
		}
	}
	return out
}

// Len returns the number of towers with simulated state.
func (s *Simulator) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.towers)
}

// Prune drops towers not read for at least idle and returns how many were
// dropped. A pruned tower restarts its series on the next read.
func (s *Simulator) Prune(idle time.Duration) int {
	cutoff := s.now().Add(-idle)

	s.mu.Lock()
	n := 0
	for id, st := range s.towers {
		if !st.readAt.After(cutoff) {
			delete(s.towers, id)
			n++
		}
	}
	s.mu.Unlock()

	if n > 0 {
		s.logger.Debug("pruned idle towers", "count", n)
	}
	return n
}

// Reset drops all tower state. Subsequent reads restart every series.
func (s *Simulator) Reset() {
	s.mu.Lock()
	n := len(s.towers)
	s.towers = make(map[string]*towerState)
	s.mu.Unlock()
	s.logger.Info("simulator reset", "towers", n)
}

func (s *Simulator) initTower(id string, now time.Time) *towerState {
	rng := rand.New(rand.NewSource(towerSeed(s.seed, id)))
	return &towerState{
		rng:        rng,
		traffic:    uniform(rng, 0.2, 0.7),
		latencyMs:  int(uniform(rng, 20, 60)),
		packetLoss: uniform(rng, 0, 0.05),
		energy:     uniform(rng, 0.3, 0.8),
		updatedAt:  now,
	}
}

func (s *Simulator) advance(st *towerState, now time.Time) {
	k := s.smoothing
	traffic := st.traffic*k + uniform(st.rng, 0.1, 0.9)*(1-k)
	latency := int(float64(st.latencyMs)*k + float64(int(uniform(st.rng, 15, 100)))*(1-k))
	loss := st.packetLoss*k + uniform(st.rng, 0, 0.15)*(1-k)
	energy := st.energy*k + uniform(st.rng, 0.2, 0.9)*(1-k)

	st.traffic = round(clamp(traffic, 0, 1), 3)
	st.latencyMs = clampInt(latency, minLatencyMs, maxLatencyMs)
	st.packetLoss = round(clamp(loss, 0, maxPacketLoss), 4)
	st.energy = round(clamp(energy, 0, 1), 3)
	st.updatedAt = now
}

func (st *towerState) snapshot() types.KpiSnapshot {
	energy := st.energy
	snap := types.KpiSnapshot{
		Traffic:    st.traffic,
		LatencyMs:  float64(st.latencyMs),
		PacketLoss: st.packetLoss,
		Energy:     &energy,
		UpdatedAt:  st.updatedAt,
	}
	snap.Status = Status(snap)
	return snap
}

// Status derives the operational status from a snapshot's values.
func Status(k types.KpiSnapshot) types.KpiStatus {
	switch {
	case k.LatencyMs > config.DownLatencyMs || k.PacketLoss > config.DownPacketLoss || k.Traffic > config.DownTraffic:
		return types.KpiStatusDown
	case k.LatencyMs > config.DegradedLatencyMs || k.PacketLoss > config.DegradedLoss || k.Traffic > config.DegradedTraffic:
		return types.KpiStatusDegraded
	default:
		return types.KpiStatusOK
	}
}

// towerSeed mixes the global seed with a stable hash of the tower id.
func towerSeed(seed int64, id string) int64 {
	h := fnv.New64a()
	h.Write([]byte(id))
	return seed ^ int64(h.Sum64()&math.MaxInt64)
}

func uniform(rng *rand.Rand, lo, hi float64) float64 {
	return lo + rng.Float64()*(hi-lo)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
