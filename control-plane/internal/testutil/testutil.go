// Package testutil provides testing utilities and fixtures for the control plane.
//
// This package contains:
//   - Test loggers
//   - Fixture factories for domain types (towers, areas, events, reports)
//
// # Usage
//
// Fixtures use functional options for customization:
//
//	tower := testutil.FixtureTower()
//	tower := testutil.FixtureTower(func(t *types.Tower) {
//		t.Radio = types.RadioNR
//	})
package testutil

import (
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/florykhan/TelusGuardAI/pkg/types"
)

// NewTestLogger returns a logger that discards all output.
func NewTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// =============================================================================
// TOWER FIXTURES
// =============================================================================

// FixtureTower creates an LTE tower in downtown Vancouver with a random id.
func FixtureTower(overrides ...func(*types.Tower)) types.Tower {
	tower := types.Tower{
		ID:     "tower-" + uuid.New().String()[:8],
		Lat:    49.2827,
		Lon:    -123.1207,
		Radio:  types.RadioLTE,
		MCC:    302,
		MNC:    220,
		RangeM: Ptr(1000),
	}

	for _, override := range overrides {
		override(&tower)
	}

	return tower
}

// FixtureTowerAt creates a tower with a fixed id and position.
func FixtureTowerAt(id string, lat, lon float64, overrides ...func(*types.Tower)) types.Tower {
	return FixtureTower(append([]func(*types.Tower){
		func(t *types.Tower) {
			t.ID = id
			t.Lat = lat
			t.Lon = lon
		},
	}, overrides...)...)
}

// =============================================================================
// ANALYSIS FIXTURES
// =============================================================================

// FixtureArea creates an affected area box around Vancouver with the given
// name, severity and confidence.
func FixtureArea(name, severity string, confidence float64, overrides ...func(*types.AffectedArea)) types.AffectedArea {
	area := types.AffectedArea{
		AreaName:   name,
		Severity:   severity,
		LatRange:   []float64{49.20, 49.30},
		LongRange:  []float64{-123.20, -123.00},
		Reasoning:  "Reported outages in " + name,
		Confidence: confidence,
		DataPoints: 3,
	}

	for _, override := range overrides {
		override(&area)
	}

	return area
}

// FixtureEvent creates an event holding the given areas.
func FixtureEvent(id, name string, areas ...types.AffectedArea) types.Event {
	return types.Event{
		EventID:       id,
		EventName:     name,
		EventType:     "weather",
		Timeframe:     "last 24 hours",
		AffectedAreas: areas,
	}
}

// FixtureReport creates an intelligence report holding the given events.
func FixtureReport(events ...types.Event) *types.IntelligenceReport {
	return &types.IntelligenceReport{
		Events:            events,
		SearchQueriesUsed: []string{"network outage"},
		DataSources:       []string{"web_search"},
	}
}

// FixtureKPI creates a healthy KPI snapshot updated at the given time.
func FixtureKPI(at time.Time, overrides ...func(*types.KpiSnapshot)) types.KpiSnapshot {
	k := types.KpiSnapshot{
		Traffic:    0.5,
		LatencyMs:  30,
		PacketLoss: 0.01,
		Status:     types.KpiStatusOK,
		UpdatedAt:  at,
	}

	for _, override := range overrides {
		override(&k)
	}

	return k
}

// =============================================================================
// HELPERS
// =============================================================================

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}
