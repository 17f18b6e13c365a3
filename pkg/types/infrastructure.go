package types

import "time"

// Health is the control plane /health response.
type Health struct {
	Status    string          `json:"status"` // healthy, degraded
	Timestamp time.Time       `json:"timestamp"`
	Version   string          `json:"version"`
	Config    HealthConfig    `json:"config"`
	Process   ProcessHealth   `json:"process"`
	Database  *DatabaseHealth `json:"database,omitempty"`
	Cache     *CacheHealth    `json:"cache,omitempty"`
	Towers    int             `json:"towers"`
}

// HealthConfig echoes the tunables a client may want to know about.
type HealthConfig struct {
	CacheTTLSeconds   int     `json:"cache_ttl"`
	MaxAreasReturned  int     `json:"max_areas_returned"`
	MinConfidence     float64 `json:"min_confidence"`
	KPIUpdateInterval float64 `json:"kpi_update_interval_seconds"`
	KPISmoothing      float64 `json:"kpi_smoothing"`
}

// ProcessHealth contains control plane runtime metrics.
type ProcessHealth struct {
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryMB      float64 `json:"memory_mb"`
	MemoryPercent float64 `json:"memory_percent"`
	Goroutines    int     `json:"goroutines"`
	UptimeSeconds int64   `json:"uptime_seconds"`
}

// DatabaseHealth contains tower catalog connectivity and pool metrics.
type DatabaseHealth struct {
	Status string    `json:"status"` // up, down
	Pool   PoolStats `json:"pool"`
}

// PoolStats contains pgxpool connection pool statistics.
type PoolStats struct {
	TotalConnections    int32 `json:"total_connections"`
	IdleConnections     int32 `json:"idle_connections"`
	AcquiredConnections int32 `json:"acquired_connections"`
	MaxConnections      int32 `json:"max_connections"`
}

// CacheHealth reports analysis cache connectivity.
type CacheHealth struct {
	Status string `json:"status"` // up, down
	Items  int    `json:"items"`
}
