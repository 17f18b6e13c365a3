package impact

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/florykhan/TelusGuardAI/pkg/types"
)

// DecodeReport reads an intelligence service response into its wire types
// with the same per-area tolerance as Normalize. Field aliases are folded
// into the canonical fields, a numeric severity is kept as its decimal text,
// and an area whose ranges are not two numbers is dropped without affecting
// its siblings. Only a body that is not a JSON object is an error.
func DecodeReport(raw []byte) (*types.IntelligenceReport, Report, error) {
	var rep Report

	var top struct {
		Events            []json.RawMessage `json:"events"`
		SearchQueriesUsed json.RawMessage   `json:"search_queries_used"`
		DataSources       json.RawMessage   `json:"data_sources"`
		TotalDataPoints   json.RawMessage   `json:"total_data_points"`
	}
	if err := json.Unmarshal(raw, &top); err != nil {
		return nil, rep, fmt.Errorf("decoding report: %w", err)
	}

	report := &types.IntelligenceReport{
		Events:            make([]types.Event, 0, len(top.Events)),
		SearchQueriesUsed: stringList(top.SearchQueriesUsed),
		DataSources:       stringList(top.DataSources),
	}
	if n, ok := numberValue(top.TotalDataPoints); ok && n > 0 {
		report.TotalDataPoints = int(n)
	}

	for _, rawEvent := range top.Events {
		var ev struct {
			EventID       json.RawMessage   `json:"event_id"`
			EventName     json.RawMessage   `json:"event_name"`
			EventType     json.RawMessage   `json:"event_type"`
			Timeframe     json.RawMessage   `json:"timeframe"`
			AffectedAreas []json.RawMessage `json:"affected_areas"`
		}
		if err := json.Unmarshal(rawEvent, &ev); err != nil {
			continue
		}
		rep.Events++

		event := types.Event{
			EventID:       stringValue(ev.EventID),
			EventName:     stringValue(ev.EventName),
			EventType:     stringValue(ev.EventType),
			Timeframe:     stringValue(ev.Timeframe),
			AffectedAreas: make([]types.AffectedArea, 0, len(ev.AffectedAreas)),
		}
		for _, rawArea := range ev.AffectedAreas {
			area, ok := decodeAffectedArea(rawArea)
			if !ok {
				rep.Dropped++
				continue
			}
			event.AffectedAreas = append(event.AffectedAreas, area)
			rep.Areas++
		}
		report.Events = append(report.Events, event)
	}
	return report, rep, nil
}

func decodeAffectedArea(raw json.RawMessage) (types.AffectedArea, bool) {
	in, ok := decodeArea(raw)
	if !ok || len(in.latRange) != 2 || len(in.lonRange) != 2 {
		return types.AffectedArea{}, false
	}
	for _, v := range append(in.latRange[:2:2], in.lonRange...) {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return types.AffectedArea{}, false
		}
	}

	var extra struct {
		Severity      json.RawMessage `json:"severity"`
		SeverityLevel json.RawMessage `json:"severity_level"`
		DataPoints    json.RawMessage `json:"data_points"`
	}
	// decodeArea already proved raw is an object.
	_ = json.Unmarshal(raw, &extra)

	area := types.AffectedArea{
		AreaName:          in.name,
		Severity:          severityText(extra.Severity, extra.SeverityLevel),
		LatRange:          in.latRange,
		LongRange:         in.lonRange,
		Reasoning:         in.reasoning,
		EstimatedImpact:   in.estimatedImpact,
		AffectedTowers:    in.affectedTowers,
		MitigationActions: in.mitigation,
	}
	if in.confidence != nil {
		area.Confidence = *in.confidence
	}
	if in.center != nil {
		area.Center = &types.AreaCenter{Lat: in.center.Lat, Long: in.center.Lon}
	}
	if n, ok := numberValue(extra.DataPoints); ok && n > 0 {
		area.DataPoints = int(n)
	}
	return area, true
}

// severityText keeps a label as given and renders a number as decimal text,
// which severity.ScoreLabel parses back to the same score.
func severityText(primary, alias json.RawMessage) string {
	raw := primary
	if !isPresent(raw) {
		raw = alias
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return stringValue(raw)
}
