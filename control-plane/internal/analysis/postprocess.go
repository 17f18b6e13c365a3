package analysis

import (
	"fmt"
	"sort"
	"strings"

	"github.com/florykhan/TelusGuardAI/control-plane/internal/config"
	"github.com/florykhan/TelusGuardAI/pkg/severity"
	"github.com/florykhan/TelusGuardAI/pkg/types"
)

// Filters are the effective post-processing options for one request.
type Filters struct {
	MaxAreas         int
	MinConfidence    float64
	IncludeReasoning bool
}

// ResolveFilters applies defaults to the request options and validates them.
func ResolveFilters(opts types.AnalysisOptions) (Filters, error) {
	f := Filters{
		MaxAreas:         config.DefaultMaxAreas,
		MinConfidence:    config.DefaultMinConfidence,
		IncludeReasoning: true,
	}
	if opts.MaxAreas != nil {
		if *opts.MaxAreas < 1 || *opts.MaxAreas > config.MaxAreasLimit {
			return f, fmt.Errorf("max_areas must be between 1 and %d", config.MaxAreasLimit)
		}
		f.MaxAreas = *opts.MaxAreas
	}
	if opts.MinConfidence != nil {
		if *opts.MinConfidence < 0 || *opts.MinConfidence > 1 {
			return f, fmt.Errorf("min_confidence must be between 0 and 1")
		}
		f.MinConfidence = *opts.MinConfidence
	}
	if opts.IncludeReasoning != nil {
		f.IncludeReasoning = *opts.IncludeReasoning
	}
	return f, nil
}

// FilterEvents keeps, per event, the areas at or above the confidence
// threshold, most confident first, capped at MaxAreas. Events left with no
// areas are dropped. The input is not modified.
func FilterEvents(events []types.Event, f Filters) []types.Event {
	out := make([]types.Event, 0, len(events))
	for _, ev := range events {
		kept := make([]types.AffectedArea, 0, len(ev.AffectedAreas))
		for _, a := range ev.AffectedAreas {
			if a.Confidence >= f.MinConfidence {
				kept = append(kept, a)
			}
		}
		if len(kept) == 0 {
			continue
		}

		sort.SliceStable(kept, func(i, j int) bool {
			return kept[i].Confidence > kept[j].Confidence
		})
		if len(kept) > f.MaxAreas {
			kept = kept[:f.MaxAreas]
		}
		if !f.IncludeReasoning {
			for i := range kept {
				kept[i].Reasoning = config.ReasoningOmitted
			}
		}

		ev.AffectedAreas = kept
		out = append(out, ev)
	}
	return out
}

// Summarize builds the one-paragraph summary shown above the results.
func Summarize(events []types.Event) string {
	if len(events) == 0 {
		return "No significant network impacts detected based on available data. " +
			"This could indicate either no current outages or insufficient data sources."
	}

	total := types.AreaCount(events)

	var b strings.Builder
	fmt.Fprintf(&b, "Analysis identified %d distinct event(s) affecting %d area(s). ", len(events), total)

	names := make([]string, 0, config.SummaryEventNames)
	for i := 0; i < len(events) && i < config.SummaryEventNames; i++ {
		names = append(names, events[i].EventName)
	}
	if len(events) == 1 {
		fmt.Fprintf(&b, "Primary event: %s. ", names[0])
	} else {
		fmt.Fprintf(&b, "Events detected: %s. ", strings.Join(names, ", "))
	}

	var critical, high int
	var confidence float64
	for _, ev := range events {
		for _, a := range ev.AffectedAreas {
			switch severity.ScoreLabel(a.Severity).Label {
			case types.SeverityCritical:
				critical++
			case types.SeverityHigh:
				high++
			}
			confidence += a.Confidence
		}
	}

	switch {
	case critical > 0:
		fmt.Fprintf(&b, "%d area(s) experiencing critical service disruption. ", critical)
	case high > 0:
		fmt.Fprintf(&b, "%d area(s) experiencing high-severity impact. ", high)
	default:
		b.WriteString("Impact levels range from moderate to low. ")
	}

	var avg float64
	if total > 0 {
		avg = confidence / float64(total)
	}
	switch {
	case avg >= config.ConfidenceHigh:
		b.WriteString("Analysis confidence: High.")
	case avg >= config.ConfidenceModerate:
		b.WriteString("Analysis confidence: Moderate.")
	default:
		b.WriteString("Analysis confidence: Limited data available.")
	}
	return b.String()
}

// totalDataPoints prefers the report's own count and falls back to the sum
// of per-area data points.
func totalDataPoints(report *types.IntelligenceReport) int {
	if report.TotalDataPoints > 0 {
		return report.TotalDataPoints
	}
	n := 0
	for _, ev := range report.Events {
		for _, a := range ev.AffectedAreas {
			n += a.DataPoints
		}
	}
	return n
}
