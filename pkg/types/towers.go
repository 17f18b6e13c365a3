// Package types defines the domain types shared between the dashboard and the control plane.
//
// # Design Principles
//
// 1. Simplicity: Types represent the domain model directly
// 2. Serialization: All wire types are JSON-serializable for API transport
// 3. Immutability: Towers and areas are values; consumers copy, never mutate in place
package types

import (
	"fmt"
	"math"
)

// =============================================================================
// TOWER
// =============================================================================

// Tower is an immutable cell tower reference entry.
//
// Towers are loaded once from static reference data and never mutated.
type Tower struct {
	ID      string  `json:"id"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	Radio   string  `json:"radio,omitempty"`
	MCC     int     `json:"mcc,omitempty"`
	MNC     int     `json:"mnc,omitempty"`
	RangeM  *int    `json:"range,omitempty"`
	Samples *int    `json:"samples,omitempty"`
}

// Radio types seen in the reference data.
const (
	RadioLTE  = "LTE"
	RadioUMTS = "UMTS"
	RadioGSM  = "GSM"
	RadioNR   = "NR"
)

// towerKeyPrecision is the number of decimal places used for fallback keys.
// Five places is roughly one metre at the equator.
const towerKeyPrecision = 5

// Key returns the tower's stable identity. When the reference data carries no
// explicit id, a deterministic key is derived from the rounded coordinates.
func (t Tower) Key() string {
	if t.ID != "" {
		return t.ID
	}
	return CoordinateKey(t.Lat, t.Lon)
}

// CoordinateKey builds the fallback identity for an id-less tower.
func CoordinateKey(lat, lon float64) string {
	return fmt.Sprintf("tower_%.*f_%.*f", towerKeyPrecision, roundTo(lat), towerKeyPrecision, roundTo(lon))
}

func roundTo(v float64) float64 {
	p := math.Pow(10, towerKeyPrecision)
	r := math.Round(v*p) / p
	if r == 0 {
		// avoid "-0.00000"
		return 0
	}
	return r
}

// WithKeys returns a copy of towers where every entry has a non-empty ID.
func WithKeys(towers []Tower) []Tower {
	out := make([]Tower, len(towers))
	for i, t := range towers {
		t.ID = t.Key()
		out[i] = t
	}
	return out
}

// Validate checks that the tower coordinates are valid WGS84 degrees.
func (t Tower) Validate() error {
	if math.IsNaN(t.Lat) || t.Lat < -90 || t.Lat > 90 {
		return fmt.Errorf("tower %s: latitude %v out of range", t.Key(), t.Lat)
	}
	if math.IsNaN(t.Lon) || t.Lon < -180 || t.Lon > 180 {
		return fmt.Errorf("tower %s: longitude %v out of range", t.Key(), t.Lon)
	}
	return nil
}
