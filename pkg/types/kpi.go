package types

import "time"

// =============================================================================
// KPI
// =============================================================================

// KpiStatus is the live operational status reported for a tower.
type KpiStatus string

const (
	KpiStatusOK       KpiStatus = "ok"
	KpiStatusDegraded KpiStatus = "degraded"
	KpiStatusDown     KpiStatus = "down"
)

// Valid reports whether the status is one of the known values.
func (s KpiStatus) Valid() bool {
	switch s {
	case KpiStatusOK, KpiStatusDegraded, KpiStatusDown:
		return true
	}
	return false
}

// KpiSnapshot is one tower's telemetry at a point in time.
//
// Snapshots are replaced wholesale per tower; fields are never merged
// individually across snapshots.
type KpiSnapshot struct {
	Traffic    float64   `json:"traffic"`               // 0..1
	LatencyMs  float64   `json:"latency_ms"`            // non-negative
	PacketLoss float64   `json:"packet_loss"`           // 0..1
	Energy     *float64  `json:"energy,omitempty"`      // 0..1
	Status     KpiStatus `json:"status,omitempty"`
	UpdatedAt  time.Time `json:"updated_at,omitempty"`
}

// KpiOptions is the options bag carried by a KPI batch request.
type KpiOptions struct {
	Mode   string `json:"mode,omitempty"`    // e.g. "sim"
	TickMs int    `json:"tick_ms,omitempty"` // producer tick hint
}

// MaxKPIBatch is the largest tower_ids list a KPI batch request may carry.
const MaxKPIBatch = 1000

// KpiBatchRequest asks for the latest telemetry of a set of towers.
type KpiBatchRequest struct {
	TowerIDs []string   `json:"tower_ids"`
	Options  KpiOptions `json:"options,omitempty"`
}

// KpiBatchResponse maps tower id to its latest snapshot.
type KpiBatchResponse struct {
	Timestamp time.Time              `json:"timestamp"`
	KPIs      map[string]KpiSnapshot `json:"kpis"`
}

// KpiStreamFrame is pushed to live stream subscribers on every tick.
type KpiStreamFrame struct {
	SessionID string                 `json:"session_id"`
	Seq       int64                  `json:"seq"`
	Timestamp time.Time              `json:"timestamp"`
	KPIs      map[string]KpiSnapshot `json:"kpis"`
}
