package analysis

import (
	"strings"
	"testing"

	"github.com/florykhan/TelusGuardAI/control-plane/internal/config"
	"github.com/florykhan/TelusGuardAI/pkg/types"
)

func intPtr(v int) *int { return &v }
func floatPtr(v float64) *float64 { return &v }
func boolPtr(v bool) *bool { return &v }

func area(name, severity string, confidence float64) types.AffectedArea {
	return types.AffectedArea{
		AreaName:   name,
		Severity:   severity,
		LatRange:   []float64{49.0, 49.1},
		LongRange:  []float64{-123.1, -123.0},
		Confidence: confidence,
		Reasoning:  "observed outage reports",
	}
}

func TestResolveFilters(t *testing.T) {
	tests := []struct {
		name    string
		opts    types.AnalysisOptions
		want    Filters
		wantErr bool
	}{
		{
			name: "defaults",
			want: Filters{MaxAreas: config.DefaultMaxAreas, MinConfidence: config.DefaultMinConfidence, IncludeReasoning: true},
		},
		{
			name: "overrides",
			opts: types.AnalysisOptions{MaxAreas: intPtr(3), MinConfidence: floatPtr(0.9), IncludeReasoning: boolPtr(false)},
			want: Filters{MaxAreas: 3, MinConfidence: 0.9, IncludeReasoning: false},
		},
		{name: "zero max areas", opts: types.AnalysisOptions{MaxAreas: intPtr(0)}, wantErr: true},
		{name: "max areas too large", opts: types.AnalysisOptions{MaxAreas: intPtr(config.MaxAreasLimit + 1)}, wantErr: true},
		{name: "confidence above one", opts: types.AnalysisOptions{MinConfidence: floatPtr(1.5)}, wantErr: true},
		{name: "negative confidence", opts: types.AnalysisOptions{MinConfidence: floatPtr(-0.1)}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveFilters(tt.opts)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestFilterEvents(t *testing.T) {
	events := []types.Event{
		{EventID: "storm", EventName: "Storm", AffectedAreas: []types.AffectedArea{
			area("A", "high", 0.70),
			area("B", "critical", 0.95),
			area("C", "low", 0.40),
			area("D", "moderate", 0.80),
		}},
		{EventID: "rumour", EventName: "Rumour", AffectedAreas: []types.AffectedArea{
			area("E", "low", 0.30),
		}},
	}

	got := FilterEvents(events, Filters{MaxAreas: 2, MinConfidence: 0.65, IncludeReasoning: true})

	if len(got) != 1 {
		t.Fatalf("got %d events, want 1 (event with no confident areas dropped)", len(got))
	}
	names := []string{got[0].AffectedAreas[0].AreaName, got[0].AffectedAreas[1].AreaName}
	if len(got[0].AffectedAreas) != 2 || names[0] != "B" || names[1] != "D" {
		t.Errorf("areas = %v, want [B D]", names)
	}
	if len(events[0].AffectedAreas) != 4 {
		t.Error("FilterEvents modified its input")
	}
}

func TestFilterEventsConfidenceIsInclusive(t *testing.T) {
	events := []types.Event{{EventName: "Edge", AffectedAreas: []types.AffectedArea{area("A", "low", 0.65)}}}
	if got := FilterEvents(events, Filters{MaxAreas: 10, MinConfidence: 0.65}); len(got) != 1 {
		t.Fatal("area at exactly the threshold should be kept")
	}
}

func TestFilterEventsOmitsReasoning(t *testing.T) {
	events := []types.Event{{EventName: "Storm", AffectedAreas: []types.AffectedArea{area("A", "high", 0.9)}}}

	got := FilterEvents(events, Filters{MaxAreas: 10, MinConfidence: 0.5, IncludeReasoning: false})
	if got[0].AffectedAreas[0].Reasoning != config.ReasoningOmitted {
		t.Errorf("reasoning = %q", got[0].AffectedAreas[0].Reasoning)
	}
	if events[0].AffectedAreas[0].Reasoning != "observed outage reports" {
		t.Error("input reasoning was overwritten")
	}
}

func TestSummarize(t *testing.T) {
	tests := []struct {
		name   string
		events []types.Event
		want   []string
	}{
		{
			name: "no events",
			want: []string{"No significant network impacts detected"},
		},
		{
			name:   "single critical event",
			events: []types.Event{{EventName: "Ice Storm", AffectedAreas: []types.AffectedArea{
				area("A", "critical", 0.9), area("B", "high", 0.85),
			}}},
			want: []string{
				"Analysis identified 1 distinct event(s) affecting 2 area(s). ",
				"Primary event: Ice Storm. ",
				"1 area(s) experiencing critical service disruption. ",
				"Analysis confidence: High.",
			},
		},
		{
			name:   "several high events",
			events: []types.Event{
				{EventName: "One", AffectedAreas: []types.AffectedArea{area("A", "High", 0.75)}},
				{EventName: "Two", AffectedAreas: []types.AffectedArea{area("B", "moderate", 0.7)}},
				{EventName: "Three", AffectedAreas: []types.AffectedArea{area("C", "low", 0.7)}},
				{EventName: "Four", AffectedAreas: []types.AffectedArea{area("D", "low", 0.7)}},
			},
			want: []string{
				"Events detected: One, Two, Three. ",
				"1 area(s) experiencing high-severity impact. ",
				"Analysis confidence: Moderate.",
			},
		},
		{
			name:   "numeric severity counts by score",
			events: []types.Event{{EventName: "Heatwave", AffectedAreas: []types.AffectedArea{area("A", "0.9", 0.8)}}},
			want: []string{
				"1 area(s) experiencing critical service disruption. ",
			},
		},
		{
			name:   "low confidence moderate event",
			events: []types.Event{{EventName: "Fog", AffectedAreas: []types.AffectedArea{area("A", "moderate", 0.66)}}},
			want: []string{
				"Impact levels range from moderate to low. ",
				"Analysis confidence: Limited data available.",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Summarize(tt.events)
			for _, w := range tt.want {
				if !strings.Contains(got, w) {
					t.Errorf("summary %q missing %q", got, w)
				}
			}
		})
	}
}

func TestSummarizeOmitsFourthEventName(t *testing.T) {
	events := []types.Event{
		{EventName: "One", AffectedAreas: []types.AffectedArea{area("A", "low", 0.7)}},
		{EventName: "Two", AffectedAreas: []types.AffectedArea{area("B", "low", 0.7)}},
		{EventName: "Three", AffectedAreas: []types.AffectedArea{area("C", "low", 0.7)}},
		{EventName: "Four", AffectedAreas: []types.AffectedArea{area("D", "low", 0.7)}},
	}
	if got := Summarize(events); strings.Contains(got, "Four") {
		t.Errorf("summary lists more than %d events: %q", config.SummaryEventNames, got)
	}
}

func TestTotalDataPoints(t *testing.T) {
	withCount := &types.IntelligenceReport{TotalDataPoints: 42}
	if got := totalDataPoints(withCount); got != 42 {
		t.Errorf("got %d, want 42", got)
	}

	a, b := area("A", "low", 0.7), area("B", "low", 0.7)
	a.DataPoints, b.DataPoints = 3, 4
	summed := &types.IntelligenceReport{Events: []types.Event{{AffectedAreas: []types.AffectedArea{a, b}}}}
	if got := totalDataPoints(summed); got != 7 {
		t.Errorf("got %d, want 7", got)
	}
}
