package severity

import (
	"encoding/json"
	"testing"

	"github.com/florykhan/TelusGuardAI/pkg/types"
)

func TestScoreLabels(t *testing.T) {
	tests := []struct {
		in        any
		wantScore float64
		wantLabel types.SeverityLabel
	}{
		{"critical", 0.95, types.SeverityCritical},
		{"HIGH", 0.8, types.SeverityHigh},
		{" moderate ", 0.6, types.SeverityModerate},
		{"low", 0.35, types.SeverityLow},
		{"catastrophic", 0.5, types.SeverityModerate},
		{"", 0.5, types.SeverityModerate},
		{nil, 0.5, types.SeverityModerate},
		{struct{}{}, 0.5, types.SeverityModerate},
		{types.SeverityHigh, 0.8, types.SeverityHigh},
	}

	for _, tt := range tests {
		got := Score(tt.in)
		if got.Score != tt.wantScore {
			t.Errorf("Score(%v).Score = %v, want %v", tt.in, got.Score, tt.wantScore)
		}
		if got.Label != tt.wantLabel {
			t.Errorf("Score(%v).Label = %v, want %v", tt.in, got.Label, tt.wantLabel)
		}
	}
}

func TestScoreMonotonic(t *testing.T) {
	c := Score("critical").Score
	h := Score("high").Score
	m := Score("moderate").Score
	l := Score("low").Score
	if !(c > h && h > m && m > l) {
		t.Fatalf("scores not monotonic: critical=%v high=%v moderate=%v low=%v", c, h, m, l)
	}
}

func TestScoreNumberIdentity(t *testing.T) {
	for i := 0; i <= 100; i++ {
		x := float64(i) / 100
		if got := Score(x).Score; got != x {
			t.Errorf("Score(%v) = %v, want identity", x, got)
		}
	}
}

func TestScoreNumberClamps(t *testing.T) {
	if got := Score(1.7).Score; got != 1 {
		t.Errorf("Score(1.7) = %v, want 1", got)
	}
	if got := Score(-3).Score; got != 0 {
		t.Errorf("Score(-3) = %v, want 0", got)
	}
}

func TestAnchorsRoundTrip(t *testing.T) {
	for label, score := range anchors {
		if got := AreaLabel(score); string(got) != label {
			t.Errorf("AreaLabel(%v) = %s, want %s", score, got, label)
		}
	}
	if got := AreaLabel(ScoreDefault); got != types.SeverityModerate {
		t.Errorf("AreaLabel(default) = %s, want moderate", got)
	}
}

func TestTier(t *testing.T) {
	tests := []struct {
		score float64
		want  StatusTier
	}{
		{0, TierOnline},
		{0.59, TierOnline},
		{0.6, TierWarning},
		{0.84, TierWarning},
		{0.85, TierCritical},
		{1, TierCritical},
	}
	for _, tt := range tests {
		if got := Tier(tt.score); got != tt.want {
			t.Errorf("Tier(%v) = %s, want %s", tt.score, got, tt.want)
		}
	}
}

func TestNumericInputTaxonomies(t *testing.T) {
	tests := []struct {
		x        float64
		wantArea types.SeverityLabel
		wantTier StatusTier
	}{
		{0.9, types.SeverityCritical, TierCritical},
		{0.65, types.SeverityModerate, TierWarning},
		{0.55, types.SeverityModerate, TierOnline},
		{0.75, types.SeverityHigh, TierWarning},
	}
	for _, tt := range tests {
		r := ScoreNumber(tt.x)
		if r.Label != tt.wantArea {
			t.Errorf("ScoreNumber(%v).Label = %s, want %s", tt.x, r.Label, tt.wantArea)
		}
		if got := Tier(r.Score); got != tt.wantTier {
			t.Errorf("Tier(ScoreNumber(%v).Score) = %s, want %s", tt.x, got, tt.wantTier)
		}
	}
}

func TestScoreJSON(t *testing.T) {
	tests := []struct {
		raw  string
		want float64
	}{
		{`"critical"`, 0.95},
		{`0.42`, 0.42},
		{`"0.7"`, 0.7},
		{`null`, 0.5},
		{`{"x":1}`, 0.5},
		{``, 0.5},
	}
	for _, tt := range tests {
		if got := Score(json.RawMessage(tt.raw)).Score; got != tt.want {
			t.Errorf("ScoreJSON(%s) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}

func TestKpiScoreTiers(t *testing.T) {
	down := types.KpiSnapshot{Status: types.KpiStatusDown}
	if Tier(KpiScore(down)) != TierCritical {
		t.Errorf("down status should be critical tier")
	}

	degraded := types.KpiSnapshot{Status: types.KpiStatusDegraded, Traffic: 0.2}
	if Tier(KpiScore(degraded)) != TierWarning {
		t.Errorf("degraded status should be warning tier, got %s", Tier(KpiScore(degraded)))
	}

	ok := types.KpiSnapshot{Status: types.KpiStatusOK, Traffic: 0.99}
	if Tier(KpiScore(ok)) != TierOnline {
		t.Errorf("ok status should be online tier")
	}

	// No status: worst metric decides. 180ms of latency is 0.9.
	noStatus := types.KpiSnapshot{LatencyMs: 180}
	if Tier(KpiScore(noStatus)) != TierCritical {
		t.Errorf("high latency without status should be critical tier")
	}
}
