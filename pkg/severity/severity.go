// Package severity maps heterogeneous severity inputs onto one canonical 0..1
// score, and provides the two presentation taxonomies derived from it.
//
// # Taxonomies
//
// Impact areas use a four-level taxonomy (critical/high/moderate/low).
// Live tower status uses a three-level taxonomy (online/warning/critical).
// Both are pure functions of the same score; neither is stored.
package severity

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/florykhan/TelusGuardAI/pkg/types"
)

// Anchor scores for known labels.
const (
	ScoreCritical = 0.95
	ScoreHigh     = 0.8
	ScoreModerate = 0.6
	ScoreLow      = 0.35

	// ScoreDefault is used for absent or unrecognised input.
	ScoreDefault = 0.5
)

// Area tier thresholds. Every anchor maps back onto its own label, and the
// default score lands on moderate.
const (
	areaCriticalAt = 0.85
	areaHighAt     = 0.7
	areaModerateAt = 0.5
)

// Status tier thresholds.
const (
	StatusCriticalAt = 0.85
	StatusWarningAt  = 0.6
)

// StatusTier is the three-level live status taxonomy.
type StatusTier string

const (
	TierOnline   StatusTier = "online"
	TierWarning  StatusTier = "warning"
	TierCritical StatusTier = "critical"
)

// Result is a canonical score and its area label.
type Result struct {
	Score float64             `json:"score"`
	Label types.SeverityLabel `json:"label"`
}

var anchors = map[string]float64{
	string(types.SeverityCritical): ScoreCritical,
	string(types.SeverityHigh):     ScoreHigh,
	string(types.SeverityModerate): ScoreModerate,
	string(types.SeverityLow):      ScoreLow,
}

// Score maps a label, a number or a JSON value to a canonical score.
// It never fails: unknown input yields ScoreDefault / moderate.
func Score(v any) Result {
	switch x := v.(type) {
	case nil:
		return defaultResult()
	case string:
		return ScoreLabel(x)
	case types.SeverityLabel:
		return ScoreLabel(string(x))
	case float64:
		return ScoreNumber(x)
	case float32:
		return ScoreNumber(float64(x))
	case int:
		return ScoreNumber(float64(x))
	case int64:
		return ScoreNumber(float64(x))
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return defaultResult()
		}
		return ScoreNumber(f)
	case json.RawMessage:
		return ScoreJSON(x)
	}
	return defaultResult()
}

// ScoreLabel maps a textual label. Numeric strings are scored as numbers.
func ScoreLabel(label string) Result {
	l := strings.ToLower(strings.TrimSpace(label))
	if s, ok := anchors[l]; ok {
		return Result{Score: s, Label: types.SeverityLabel(l)}
	}
	if f, err := strconv.ParseFloat(l, 64); err == nil {
		return ScoreNumber(f)
	}
	return defaultResult()
}

// ScoreNumber clamps x into [0,1] and uses it directly as the score. The
// returned label uses the area cut-offs (see AreaLabel); callers wanting the
// 0.85/0.6 status cut-offs should pass the score to Tier.
func ScoreNumber(x float64) Result {
	if math.IsNaN(x) {
		return defaultResult()
	}
	s := clamp01(x)
	return Result{Score: s, Label: AreaLabel(s)}
}

// ScoreJSON scores a raw JSON value that may be a string, a number or null.
func ScoreJSON(raw json.RawMessage) Result {
	if len(raw) == 0 {
		return defaultResult()
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return ScoreLabel(s)
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return ScoreNumber(f)
	}
	return defaultResult()
}

// AreaLabel maps a score to the four-level area taxonomy.
func AreaLabel(score float64) types.SeverityLabel {
	switch {
	case math.IsNaN(score):
		return types.SeverityOther
	case score >= areaCriticalAt:
		return types.SeverityCritical
	case score >= areaHighAt:
		return types.SeverityHigh
	case score >= areaModerateAt:
		return types.SeverityModerate
	default:
		return types.SeverityLow
	}
}

// Tier maps a score to the three-level live status taxonomy.
func Tier(score float64) StatusTier {
	switch {
	case score >= StatusCriticalAt:
		return TierCritical
	case score >= StatusWarningAt:
		return TierWarning
	default:
		return TierOnline
	}
}

// KpiScore collapses a KPI snapshot onto the canonical score so it can be
// tiered like any other severity. An explicit status wins over the metrics.
func KpiScore(k types.KpiSnapshot) float64 {
	switch k.Status {
	case types.KpiStatusDown:
		return ScoreCritical
	case types.KpiStatusDegraded:
		return math.Max(StatusWarningAt, metricScore(k))
	case types.KpiStatusOK:
		return math.Min(metricScore(k), StatusWarningAt-0.01)
	}
	return metricScore(k)
}

// metricScore takes the worst of the normalised metrics. Latency saturates
// at 200ms, loss at 20%.
func metricScore(k types.KpiSnapshot) float64 {
	lat := clamp01(k.LatencyMs / 200)
	loss := clamp01(k.PacketLoss / 0.2)
	return math.Max(clamp01(k.Traffic), math.Max(lat, loss))
}

func defaultResult() Result {
	return Result{Score: ScoreDefault, Label: types.SeverityModerate}
}

func clamp01(x float64) float64 {
	return math.Max(0, math.Min(1, x))
}
