// Package impact turns analysis responses into canonical impact areas and
// orders them for the two consumers that need them: flat lists (by severity)
// and the map (by z-order).
//
// # Tolerance
//
// Upstream responses are produced by a language model and are not trusted.
// Every area is decoded on its own. A malformed area is dropped without
// affecting its siblings, and a response without an events list yields no
// areas at all. Normalization never returns an error.
package impact

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/florykhan/TelusGuardAI/pkg/severity"
	"github.com/florykhan/TelusGuardAI/pkg/types"
)

// Fallback id components.
const (
	defaultEventKey = "event"
	defaultAreaKey  = "area"
)

// Report summarises one normalization pass.
type Report struct {
	Events  int `json:"events"`
	Areas   int `json:"areas"`   // areas produced
	Dropped int `json:"dropped"` // areas skipped as malformed
}

// areaInput is the decoded, not yet validated form of one affected area.
type areaInput struct {
	name            string
	latRange        []float64
	lonRange        []float64
	severity        severity.Result
	confidence      *float64
	center          *types.LatLon
	reasoning       string
	estimatedImpact string
	affectedTowers  []string
	mitigation      []string
}

// Normalize decodes a raw analysis response and returns its impact areas in
// severity order (see BySeverity).
func Normalize(raw []byte) []types.ImpactArea {
	areas, _ := NormalizeWithReport(raw)
	return areas
}

// NormalizeWithReport is Normalize plus a count of what was kept and dropped.
func NormalizeWithReport(raw []byte) ([]types.ImpactArea, Report) {
	var rep Report

	var top struct {
		Events []json.RawMessage `json:"events"`
	}
	if err := json.Unmarshal(raw, &top); err != nil {
		return []types.ImpactArea{}, rep
	}

	b := newBuilder()
	for _, rawEvent := range top.Events {
		var ev struct {
			EventID       json.RawMessage   `json:"event_id"`
			EventName     json.RawMessage   `json:"event_name"`
			AffectedAreas []json.RawMessage `json:"affected_areas"`
		}
		if err := json.Unmarshal(rawEvent, &ev); err != nil {
			continue
		}
		rep.Events++

		eventID := stringValue(ev.EventID)
		eventName := stringValue(ev.EventName)
		for _, rawArea := range ev.AffectedAreas {
			in, ok := decodeArea(rawArea)
			if !ok || !b.add(eventID, eventName, in) {
				rep.Dropped++
			}
		}
	}

	areas := BySeverity(b.areas)
	rep.Areas = len(areas)
	return areas, rep
}

// NormalizeResult normalizes an already decoded analysis result.
func NormalizeResult(result *types.AnalysisResult) []types.ImpactArea {
	if result == nil {
		return []types.ImpactArea{}
	}
	b := newBuilder()
	for _, ev := range result.Events {
		for _, a := range ev.AffectedAreas {
			in := areaInput{
				name:            a.AreaName,
				latRange:        a.LatRange,
				lonRange:        a.LongRange,
				severity:        severity.ScoreLabel(a.Severity),
				reasoning:       a.Reasoning,
				estimatedImpact: a.EstimatedImpact,
				affectedTowers:  a.AffectedTowers,
				mitigation:      a.MitigationActions,
			}
			conf := clamp01(a.Confidence)
			in.confidence = &conf
			if a.Center != nil {
				in.center = &types.LatLon{Lat: a.Center.Lat, Lon: a.Center.Long}
			}
			b.add(ev.EventID, ev.EventName, in)
		}
	}
	return BySeverity(b.areas)
}

// BySeverity returns a copy of areas sorted by severity score, highest first.
// Equal scores keep their input order.
func BySeverity(areas []types.ImpactArea) []types.ImpactArea {
	out := make([]types.ImpactArea, len(areas))
	copy(out, areas)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].SeverityScore > out[j].SeverityScore
	})
	return out
}

// =============================================================================
// BUILDER
// =============================================================================

type builder struct {
	areas []types.ImpactArea
	seen  map[string]int
}

func newBuilder() *builder {
	return &builder{
		areas: make([]types.ImpactArea, 0),
		seen:  make(map[string]int),
	}
}

// add validates one area and appends it. It reports false when the area was
// dropped for a malformed range.
func (b *builder) add(eventID, eventName string, in areaInput) bool {
	if len(in.latRange) != 2 || len(in.lonRange) != 2 {
		return false
	}
	for _, v := range append(in.latRange[:2:2], in.lonRange...) {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}

	bounds := types.NewBounds(in.latRange[0], in.latRange[1], in.lonRange[0], in.lonRange[1])
	center := bounds.Center()
	if in.center != nil {
		center = *in.center
	}

	area := types.ImpactArea{
		ID:                b.uniqueID(areaID(eventID, eventName, in.name)),
		Name:              firstNonEmpty(in.name, "Unknown Area"),
		EventID:           eventID,
		EventName:         firstNonEmpty(eventName, eventID),
		SeverityLabel:     in.severity.Label,
		SeverityScore:     in.severity.Score,
		Confidence:        in.confidence,
		Bounds:            bounds,
		Center:            center,
		SizeDeg2:          bounds.SizeDeg2(),
		AffectedTowers:    in.affectedTowers,
		Reasoning:         in.reasoning,
		EstimatedImpact:   in.estimatedImpact,
		MitigationActions: in.mitigation,
	}
	b.areas = append(b.areas, area)
	return true
}

// uniqueID suffixes repeated ids with "#n" so ids stay unique per response.
func (b *builder) uniqueID(id string) string {
	b.seen[id]++
	if n := b.seen[id]; n > 1 {
		return fmt.Sprintf("%s#%d", id, n)
	}
	return id
}

func areaID(eventID, eventName, areaName string) string {
	event := firstNonEmpty(eventID, eventName, defaultEventKey)
	area := firstNonEmpty(areaName, defaultAreaKey)
	return event + "::" + area
}

// =============================================================================
// DECODING
// =============================================================================

// decodeArea reads one affected area, accepting the field aliases seen in
// upstream responses. It fails only when the object or its ranges cannot be
// decoded.
func decodeArea(raw json.RawMessage) (areaInput, bool) {
	var a struct {
		AreaName          json.RawMessage `json:"area_name"`
		Area              json.RawMessage `json:"area"`
		LatRange          json.RawMessage `json:"lat_range"`
		LongRange         json.RawMessage `json:"long_range"`
		Severity          json.RawMessage `json:"severity"`
		SeverityLevel     json.RawMessage `json:"severity_level"`
		Confidence        json.RawMessage `json:"confidence"`
		Center            json.RawMessage `json:"center"`
		Reasoning         json.RawMessage `json:"reasoning"`
		EstimatedImpact   json.RawMessage `json:"estimated_impact"`
		AffectedTowers    json.RawMessage `json:"affected_towers"`
		MitigationActions json.RawMessage `json:"mitigation_actions"`
		Mitigation        json.RawMessage `json:"mitigation"`
	}
	if err := json.Unmarshal(raw, &a); err != nil {
		return areaInput{}, false
	}

	var in areaInput
	var ok bool
	if in.latRange, ok = rangeValue(a.LatRange); !ok {
		return areaInput{}, false
	}
	if in.lonRange, ok = rangeValue(a.LongRange); !ok {
		return areaInput{}, false
	}

	in.name = firstNonEmpty(stringValue(a.AreaName), stringValue(a.Area))
	if isPresent(a.Severity) {
		in.severity = severity.ScoreJSON(a.Severity)
	} else {
		in.severity = severity.ScoreJSON(a.SeverityLevel)
	}
	if c, ok := numberValue(a.Confidence); ok {
		c = clamp01(c)
		in.confidence = &c
	}
	in.center = centerValue(a.Center)
	in.reasoning = stringValue(a.Reasoning)
	in.estimatedImpact = stringValue(a.EstimatedImpact)
	in.affectedTowers = stringList(a.AffectedTowers)
	if isPresent(a.MitigationActions) {
		in.mitigation = stringList(a.MitigationActions)
	} else {
		in.mitigation = stringList(a.Mitigation)
	}
	return in, true
}

// rangeValue decodes a numeric pair. Length is validated by the builder so
// that a well-formed array of the wrong length is still reported as dropped.
func rangeValue(raw json.RawMessage) ([]float64, bool) {
	if !isPresent(raw) {
		return nil, true
	}
	var vals []json.Number
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&vals); err != nil {
		var strs []string
		if err := json.Unmarshal(raw, &strs); err != nil {
			return nil, false
		}
		for _, s := range strs {
			vals = append(vals, json.Number(strings.TrimSpace(s)))
		}
	}
	out := make([]float64, 0, len(vals))
	for _, v := range vals {
		f, err := v.Float64()
		if err != nil {
			return nil, false
		}
		out = append(out, f)
	}
	return out, true
}

// centerValue accepts {lat,lon}, {lat,long}, {lat,lng} and
// {latitude,longitude}. Anything else yields nil.
func centerValue(raw json.RawMessage) *types.LatLon {
	if !isPresent(raw) {
		return nil
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil
	}
	lat, okLat := firstNumber(fields, "lat", "latitude")
	lon, okLon := firstNumber(fields, "lon", "long", "lng", "longitude")
	if !okLat || !okLon {
		return nil
	}
	return &types.LatLon{Lat: lat, Lon: lon}
}

func firstNumber(fields map[string]json.RawMessage, keys ...string) (float64, bool) {
	for _, k := range keys {
		if v, ok := numberValue(fields[k]); ok {
			return v, true
		}
	}
	return 0, false
}

// numberValue accepts a JSON number or a numeric string.
func numberValue(raw json.RawMessage) (float64, bool) {
	if !isPresent(raw) {
		return 0, false
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f, !math.IsNaN(f)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
			return f, true
		}
	}
	return 0, false
}

// stringValue accepts a JSON string or number; anything else is empty.
func stringValue(raw json.RawMessage) string {
	if !isPresent(raw) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

// stringList accepts a list of strings or numbers, or a single string.
// Empty entries are skipped.
func stringList(raw json.RawMessage) []string {
	if !isPresent(raw) {
		return nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		if s := stringValue(raw); s != "" {
			return []string{s}
		}
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s := stringValue(item); s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func isPresent(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}

func clamp01(x float64) float64 {
	return math.Max(0, math.Min(1, x))
}
