package kpi

import (
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/florykhan/TelusGuardAI/control-plane/internal/config"
	"github.com/florykhan/TelusGuardAI/pkg/types"
)

// IncidentType names a kind of injected fault.
type IncidentType string

const (
	IncidentTrafficSurge IncidentType = "traffic_surge"
	IncidentOutage       IncidentType = "outage"
	IncidentLossSpike    IncidentType = "loss_spike"
)

// outage values.
const (
	outageTraffic   = 0.01
	outageLatencyMs = 150
)

// Incident is a temporary fault applied to one tower.
type Incident struct {
	TowerID    string        `json:"tower_id"`
	Type       IncidentType  `json:"type"`
	Multiplier float64       `json:"multiplier,omitempty"` // traffic_surge
	ExtraLoss  float64       `json:"extra_loss,omitempty"` // loss_spike, 0..1
	StartedAt  time.Time     `json:"started_at"`
	Duration   time.Duration `json:"-"`
	ExpiresAt  time.Time     `json:"expires_at"`
}

// Apply returns k with the incident's effect applied and the status
// recomputed.
func (inc Incident) Apply(k types.KpiSnapshot) types.KpiSnapshot {
	switch inc.Type {
	case IncidentTrafficSurge:
		k.Traffic = round(clamp(k.Traffic*inc.Multiplier, 0, 1), 3)
	case IncidentOutage:
		k.Traffic = outageTraffic
		k.PacketLoss = maxPacketLoss
		k.LatencyMs = math.Max(k.LatencyMs, outageLatencyMs)
	case IncidentLossSpike:
		k.PacketLoss = round(clamp(k.PacketLoss+inc.ExtraLoss, 0, maxPacketLoss), 4)
	}
	k.Status = Status(k)
	return k
}

// IncidentRequest asks for an incident on one or more towers. Zero values
// take the defaults for the incident type.
type IncidentRequest struct {
	Type            IncidentType `json:"type"`
	TowerIDs        []string     `json:"tower_ids"`
	Multiplier      float64      `json:"multiplier,omitempty"`
	ExtraLoss       float64      `json:"extra_loss,omitempty"`
	DurationSeconds float64      `json:"duration_seconds,omitempty"`
}

// Validate checks the request and fills in defaults.
func (r *IncidentRequest) Validate() error {
	if len(r.TowerIDs) == 0 {
		return fmt.Errorf("tower_ids must not be empty")
	}
	for _, id := range r.TowerIDs {
		if id == "" {
			return fmt.Errorf("tower_ids must not contain empty ids")
		}
	}
	if r.DurationSeconds < 0 {
		return fmt.Errorf("duration_seconds must not be negative")
	}
	if time.Duration(r.DurationSeconds*float64(time.Second)) > config.MaxIncidentDuration {
		return fmt.Errorf("duration_seconds exceeds maximum of %v", config.MaxIncidentDuration)
	}

	switch r.Type {
	case IncidentTrafficSurge:
		if r.Multiplier == 0 {
			r.Multiplier = config.DefaultSurgeMultiplier
		}
		if r.Multiplier < 1 {
			return fmt.Errorf("multiplier must be at least 1")
		}
		r.setDefaultDuration(config.DefaultSurgeDuration)
	case IncidentOutage:
		r.setDefaultDuration(config.DefaultOutageDuration)
	case IncidentLossSpike:
		if r.ExtraLoss == 0 {
			r.ExtraLoss = config.DefaultLossSpikeExtra
		}
		if r.ExtraLoss < 0 || r.ExtraLoss > 1 {
			return fmt.Errorf("extra_loss must be in 0..1")
		}
		r.setDefaultDuration(config.DefaultLossSpikeDuration)
	default:
		return fmt.Errorf("unknown incident type: %q", r.Type)
	}
	return nil
}

func (r *IncidentRequest) setDefaultDuration(d time.Duration) {
	if r.DurationSeconds == 0 {
		r.DurationSeconds = d.Seconds()
	}
}

// Incidents tracks active incidents, at most one per tower. Expired incidents
// are removed lazily on read.
type Incidents struct {
	now    func() time.Time
	logger *slog.Logger

	mu     sync.Mutex
	active map[string]Incident
}

// NewIncidents creates an empty incident set. now may be nil.
func NewIncidents(now func() time.Time, logger *slog.Logger) *Incidents {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Incidents{
		now:    now,
		logger: logger.With("component", "incidents"),
		active: make(map[string]Incident),
	}
}

// Trigger starts the requested incident on every listed tower, replacing any
// incident already active there.
func (s *Incidents) Trigger(req IncidentRequest) ([]Incident, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	now := s.now()
	d := time.Duration(req.DurationSeconds * float64(time.Second))
	out := make([]Incident, 0, len(req.TowerIDs))

	s.mu.Lock()
	for _, id := range req.TowerIDs {
		inc := Incident{
			TowerID:    id,
			Type:       req.Type,
			Multiplier: req.Multiplier,
			ExtraLoss:  req.ExtraLoss,
			StartedAt:  now,
			Duration:   d,
			ExpiresAt:  now.Add(d),
		}
		s.active[id] = inc
		out = append(out, inc)
	}
	s.mu.Unlock()

	s.logger.Info("incident triggered",
		"type", req.Type,
		"towers", len(req.TowerIDs),
		"duration", d)
	return out, nil
}

// Active returns the unexpired incident for a tower.
func (s *Incidents) Active(towerID string) (Incident, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inc, ok := s.active[towerID]
	if !ok {
		return Incident{}, false
	}
	if s.now().After(inc.ExpiresAt) {
		delete(s.active, towerID)
		return Incident{}, false
	}
	return inc, true
}

// List returns all unexpired incidents ordered by tower id.
func (s *Incidents) List() []Incident {
	now := s.now()

	s.mu.Lock()
	out := make([]Incident, 0, len(s.active))
	for id, inc := range s.active {
		if now.After(inc.ExpiresAt) {
			delete(s.active, id)
			continue
		}
		out = append(out, inc)
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].TowerID < out[j].TowerID })
	return out
}

// Clear removes the incident on a tower. It reports whether one was active.
func (s *Incidents) Clear(towerID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.active[towerID]
	delete(s.active, towerID)
	return ok
}
