package types

import (
	"fmt"
	"math"
	"net/url"
	"strconv"
)

// =============================================================================
// BOUNDS & VIEWPORT
// =============================================================================

// LatLon is a WGS84 coordinate in degrees.
type LatLon struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Bounds is an axis-aligned rectangle in degrees.
//
// Invariant: MinLat <= MaxLat and MinLon <= MaxLon. Use NewBounds to build one
// from endpoints of unknown order.
type Bounds struct {
	MinLat float64 `json:"min_lat"`
	MaxLat float64 `json:"max_lat"`
	MinLon float64 `json:"min_lon"`
	MaxLon float64 `json:"max_lon"`
}

// NewBounds builds bounds from two latitude and two longitude endpoints,
// given in any order.
func NewBounds(lat1, lat2, lon1, lon2 float64) Bounds {
	return Bounds{
		MinLat: math.Min(lat1, lat2),
		MaxLat: math.Max(lat1, lat2),
		MinLon: math.Min(lon1, lon2),
		MaxLon: math.Max(lon1, lon2),
	}
}

// Center returns the rectangle midpoint.
func (b Bounds) Center() LatLon {
	return LatLon{
		Lat: (b.MinLat + b.MaxLat) / 2,
		Lon: (b.MinLon + b.MaxLon) / 2,
	}
}

// SizeDeg2 returns the rectangle area in square degrees. Only meaningful for
// ordering; it is not a physical area.
func (b Bounds) SizeDeg2() float64 {
	return (b.MaxLat - b.MinLat) * (b.MaxLon - b.MinLon)
}

// Corners returns [[minLat, minLon], [maxLat, maxLon]], the shape mapping
// libraries expect for fitBounds.
func (b Bounds) Corners() [2][2]float64 {
	return [2][2]float64{{b.MinLat, b.MinLon}, {b.MaxLat, b.MaxLon}}
}

// Viewport is the visible map rectangle. A new value replaces the previous one
// wholesale on every pan or zoom.
type Viewport struct {
	North float64 `json:"north"`
	South float64 `json:"south"`
	East  float64 `json:"east"`
	West  float64 `json:"west"`
}

// Bounds converts the viewport to normalized bounds.
func (v Viewport) Bounds() Bounds {
	return NewBounds(v.South, v.North, v.West, v.East)
}

// Viewport returns the bounds as north/south/east/west edges.
func (b Bounds) Viewport() Viewport {
	return Viewport{North: b.MaxLat, South: b.MinLat, East: b.MaxLon, West: b.MinLon}
}

// viewportKeys are the query parameters carrying a bounding box, in
// north, south, east, west order.
var viewportKeys = [4]string{"north", "south", "east", "west"}

// SetQuery writes the viewport edges as query parameters.
func (v Viewport) SetQuery(q url.Values) {
	for i, f := range [4]float64{v.North, v.South, v.East, v.West} {
		q.Set(viewportKeys[i], strconv.FormatFloat(f, 'f', -1, 64))
	}
}

// ParseBoundsQuery reads a box written by Viewport.SetQuery. It returns nil
// when no edge is given; a partial box or a non-numeric edge is an error.
func ParseBoundsQuery(q url.Values) (*Bounds, error) {
	var vals [4]float64
	given := 0
	for i, k := range viewportKeys {
		v := q.Get(k)
		if v == "" {
			continue
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, fmt.Errorf("%s must be a number", k)
		}
		vals[i] = f
		given++
	}
	switch given {
	case 0:
		return nil, nil
	case len(viewportKeys):
		b := Viewport{North: vals[0], South: vals[1], East: vals[2], West: vals[3]}.Bounds()
		return &b, nil
	default:
		return nil, fmt.Errorf("north, south, east and west must be given together")
	}
}

// =============================================================================
// IMPACT AREA
// =============================================================================

// SeverityLabel is the coarse four-level taxonomy used for impact areas.
type SeverityLabel string

const (
	SeverityCritical SeverityLabel = "critical"
	SeverityHigh     SeverityLabel = "high"
	SeverityModerate SeverityLabel = "moderate"
	SeverityLow      SeverityLabel = "low"
	SeverityOther    SeverityLabel = "other"
)

// ImpactArea is the canonical spatial model of one affected area.
//
// Areas are derived from an analysis response and recomputed wholesale
// whenever that response changes.
type ImpactArea struct {
	ID                string        `json:"id"` // "<event>::<area>"
	Name              string        `json:"name"`
	EventID           string        `json:"event_id,omitempty"`
	EventName         string        `json:"event_name"`
	SeverityLabel     SeverityLabel `json:"severity_label"`
	SeverityScore     float64       `json:"severity_score"`
	Confidence        *float64      `json:"confidence,omitempty"`
	Bounds            Bounds        `json:"bounds"`
	Center            LatLon        `json:"center"`
	SizeDeg2          float64       `json:"area_size_deg2"`
	AffectedTowers    []string      `json:"affected_towers,omitempty"`
	TowerCount        int           `json:"tower_count"`
	TowerCountSource  CountSource   `json:"tower_count_source,omitempty"`
	Reasoning         string        `json:"reasoning,omitempty"`
	EstimatedImpact   string        `json:"estimated_impact,omitempty"`
	MitigationActions []string      `json:"mitigation_actions,omitempty"`
}

// CountSource records which computation produced an area's tower count.
type CountSource string

const (
	// CountDisplayed was computed against the currently displayed (filtered)
	// tower set and is authoritative.
	CountDisplayed CountSource = "displayed"
	// CountFullSet is the fallback computed over the unfiltered tower set.
	CountFullSet CountSource = "full_set"
)
