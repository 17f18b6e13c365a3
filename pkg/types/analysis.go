package types

import (
	"fmt"
	"strings"
	"time"
)

// =============================================================================
// ANALYSIS (external intelligence service contract)
// =============================================================================

// Question length limits enforced before an analysis is run.
const (
	MinQuestionLength = 10
	MaxQuestionLength = 500
)

// AnalysisOptions tunes post-processing of an analysis.
// Nil fields fall back to server defaults.
type AnalysisOptions struct {
	MaxAreas         *int     `json:"max_areas,omitempty"`
	MinConfidence    *float64 `json:"min_confidence,omitempty"`
	IncludeReasoning *bool    `json:"include_reasoning,omitempty"`
}

// AnalysisRequest carries a free-text question about network impact.
type AnalysisRequest struct {
	Question string          `json:"question"`
	Options  AnalysisOptions `json:"options,omitempty"`
}

// Validate enforces question presence and length.
func (r AnalysisRequest) Validate() error {
	q := strings.TrimSpace(r.Question)
	if q == "" {
		return fmt.Errorf("question cannot be empty")
	}
	if len(r.Question) < MinQuestionLength {
		return fmt.Errorf("question too short (minimum %d characters)", MinQuestionLength)
	}
	if len(r.Question) > MaxQuestionLength {
		return fmt.Errorf("question too long (maximum %d characters)", MaxQuestionLength)
	}
	return nil
}

// AreaCenter is the center point as produced by the intelligence service.
type AreaCenter struct {
	Lat  float64 `json:"lat"`
	Long float64 `json:"long"`
}

// AffectedArea is one area inside an event as produced upstream.
// Consumers must not trust its ranges to be ordered or well-formed.
type AffectedArea struct {
	AreaName          string      `json:"area_name"`
	Severity          string      `json:"severity"`
	LatRange          []float64   `json:"lat_range"`
	LongRange         []float64   `json:"long_range"`
	Center            *AreaCenter `json:"center,omitempty"`
	Reasoning         string      `json:"reasoning,omitempty"`
	EstimatedImpact   string      `json:"estimated_impact,omitempty"`
	Confidence        float64     `json:"confidence"`
	DataPoints        int         `json:"data_points,omitempty"`
	AffectedTowers    []string    `json:"affected_towers,omitempty"`
	MitigationActions []string    `json:"mitigation_actions,omitempty"`
}

// Event is a network disruption event with its affected areas.
type Event struct {
	EventID       string         `json:"event_id"`
	EventName     string         `json:"event_name"`
	EventType     string         `json:"event_type,omitempty"`
	Timeframe     string         `json:"timeframe,omitempty"`
	AffectedAreas []AffectedArea `json:"affected_areas"`
}

// AreaCount returns the total number of areas across events.
func AreaCount(events []Event) int {
	n := 0
	for _, e := range events {
		n += len(e.AffectedAreas)
	}
	return n
}

// AnalysisMetadata describes how an analysis result was produced.
type AnalysisMetadata struct {
	AnalysisID           string         `json:"analysis_id"`
	AnalysisDurationMs   int64          `json:"analysis_duration_ms"`
	WebSearchesPerformed int            `json:"web_searches_performed"`
	DataSources          []string       `json:"data_sources,omitempty"`
	SearchQueriesUsed    []string       `json:"search_queries_used,omitempty"`
	TotalDataPoints      int            `json:"total_data_points_analyzed"`
	FiltersApplied       AppliedFilters `json:"filters_applied"`
	Cached               bool           `json:"cached"`
}

// AppliedFilters echoes the effective post-processing filters.
type AppliedFilters struct {
	MaxAreas      int     `json:"max_areas"`
	MinConfidence float64 `json:"min_confidence"`
}

// AnalysisResult is the complete analysis response.
type AnalysisResult struct {
	Query              string           `json:"query"`
	Timestamp          time.Time        `json:"timestamp"`
	Summary            string           `json:"summary"`
	Events             []Event          `json:"events"`
	TotalEvents        int              `json:"total_events"`
	TotalAffectedAreas int              `json:"total_affected_areas"`
	AnalysisMetadata   AnalysisMetadata `json:"analysis_metadata"`
}

// IntelligenceReport is what the external intelligence service returns before
// post-processing.
type IntelligenceReport struct {
	Events            []Event  `json:"events"`
	SearchQueriesUsed []string `json:"search_queries_used,omitempty"`
	DataSources       []string `json:"data_sources,omitempty"`
	TotalDataPoints   int      `json:"total_data_points,omitempty"`
}
