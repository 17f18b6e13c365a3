// Package config provides configuration constants for the control plane.
//
// This package centralizes values shared by the analysis pipeline, the KPI
// simulator and the HTTP layer so they are easy to find, modify, and test.
package config

import (
	"time"

	"github.com/florykhan/TelusGuardAI/pkg/types"
)

// Analysis post-processing defaults. Requests may override MaxAreas and
// MinConfidence per call.
const (
	// DefaultMaxAreas caps the number of areas kept per event.
	DefaultMaxAreas = 10

	// MaxAreasLimit is the largest max_areas a request may ask for.
	MaxAreasLimit = 50

	// DefaultMinConfidence drops areas the intelligence service is unsure about.
	DefaultMinConfidence = 0.65

	// SummaryEventNames is how many event names the summary lists.
	SummaryEventNames = 3
)

// Confidence bands used in the analysis summary.
const (
	ConfidenceHigh     = 0.8
	ConfidenceModerate = 0.7
)

// ReasoningOmitted replaces per-area reasoning when the caller opts out.
const ReasoningOmitted = "Reasoning omitted (set include_reasoning=true to see details)"

// Cache TTLs for API response caching.
const (
	// CacheTTLAnalysis is how long an analysis result is served from cache.
	CacheTTLAnalysis = 5 * time.Minute

	// CacheTTLHealth is the TTL for the health snapshot.
	CacheTTLHealth = 10 * time.Second
)

// KPI simulation.
const (
	// KPIUpdateInterval is the minimum age before a tower's KPIs are advanced.
	KPIUpdateInterval = 1 * time.Second

	// KPISmoothing is the weight kept from the previous value on each update.
	KPISmoothing = 0.7

	// KPISeed seeds the simulator so runs are reproducible.
	KPISeed = 42

	// MaxKPIBatch is the largest tower_ids list a KPI request may carry.
	MaxKPIBatch = types.MaxKPIBatch
)

// KPI status thresholds. A tower is down if any "down" threshold is exceeded,
// otherwise degraded if any "degraded" threshold is exceeded.
const (
	DownLatencyMs     = 100
	DownPacketLoss    = 0.1
	DownTraffic       = 0.95
	DegradedLatencyMs = 70
	DegradedLoss      = 0.05
	DegradedTraffic   = 0.85
)

// Incident defaults.
const (
	DefaultSurgeMultiplier   = 2.0
	DefaultSurgeDuration     = 15 * time.Second
	DefaultOutageDuration    = 15 * time.Second
	DefaultLossSpikeExtra    = 0.08
	DefaultLossSpikeDuration = 12 * time.Second

	// MaxIncidentDuration bounds a requested incident duration.
	MaxIncidentDuration = 10 * time.Minute
)

// KPI stream.
const (
	// DefaultStreamTick is the push interval when the subscriber sends no tick_ms.
	DefaultStreamTick = 1 * time.Second

	// MinStreamTick bounds how fast a subscriber may ask to be pushed.
	MinStreamTick = 250 * time.Millisecond

	// StreamWriteTimeout bounds a single websocket write.
	StreamWriteTimeout = 5 * time.Second
)

// Background maintenance.
const (
	// MaintenanceInterval is how often expired incidents and cache index
	// entries are pruned.
	MaintenanceInterval = 1 * time.Minute

	// KPIIdleTimeout is how long a tower's simulated state is kept without
	// being read.
	KPIIdleTimeout = 10 * time.Minute
)

// Tower catalog query limits.
const (
	// DefaultTowerLimit is the number of towers returned when no limit is given.
	DefaultTowerLimit = 5000

	// MaxTowerLimit is the most towers a single request may return.
	MaxTowerLimit = 50000
)

// HTTP client timeouts.
const (
	// DefaultHTTPTimeout is the default timeout for HTTP client requests.
	DefaultHTTPTimeout = 30 * time.Second

	// AnalysisTimeout bounds one call to the intelligence service.
	AnalysisTimeout = 120 * time.Second

	// IntelligenceRatePerMinute limits calls to the intelligence service.
	IntelligenceRatePerMinute = 30
)

// Database connection configuration.
const (
	// DatabasePingTimeout is the timeout for database connectivity checks.
	DatabasePingTimeout = 5 * time.Second

	// RedisConnectionTimeout is the timeout for Redis connectivity checks.
	RedisConnectionTimeout = 5 * time.Second
)
