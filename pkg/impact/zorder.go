package impact

import (
	"sort"

	"github.com/florykhan/TelusGuardAI/pkg/spatial"
	"github.com/florykhan/TelusGuardAI/pkg/types"
)

// SizeEpsilon is the size difference, in square degrees, below which two
// areas are treated as the same size for ordering.
const SizeEpsilon = 1e-4

// RenderOrder returns a copy of areas in draw order: largest first, so that
// nested areas are drawn over the areas containing them.
//
// Areas whose sizes chain together within SizeEpsilon form one size class.
// Inside a class, lower severity draws first, so the most severe area ends up
// on top. Area id breaks any remaining tie to keep the order total.
func RenderOrder(areas []types.ImpactArea) []types.ImpactArea {
	out := make([]types.ImpactArea, len(areas))
	copy(out, areas)

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].SizeDeg2 != out[j].SizeDeg2 {
			return out[i].SizeDeg2 > out[j].SizeDeg2
		}
		return out[i].ID < out[j].ID
	})

	// Walk the size-sorted list and sort each size class on its own. Grouping
	// first keeps the comparator transitive.
	start := 0
	for i := 1; i <= len(out); i++ {
		if i < len(out) && out[i-1].SizeDeg2-out[i].SizeDeg2 <= SizeEpsilon {
			continue
		}
		class := out[start:i]
		sort.SliceStable(class, func(a, b int) bool {
			if class[a].SeverityScore != class[b].SeverityScore {
				return class[a].SeverityScore < class[b].SeverityScore
			}
			return class[a].ID < class[b].ID
		})
		start = i
	}
	return out
}

// HitTest returns the area that receives a pointer event at (lat, lon) given
// areas in draw order. The last-drawn containing area wins and the event does
// not reach any area beneath it.
func HitTest(ordered []types.ImpactArea, lat, lon float64) (types.ImpactArea, bool) {
	if i := HitIndex(ordered, lat, lon); i >= 0 {
		return ordered[i], true
	}
	return types.ImpactArea{}, false
}

// HitIndex is HitTest returning the position in ordered, or -1.
func HitIndex(ordered []types.ImpactArea, lat, lon float64) int {
	probe := types.Tower{Lat: lat, Lon: lon}
	for i := len(ordered) - 1; i >= 0; i-- {
		if spatial.Contains(ordered[i].Bounds, probe) {
			return i
		}
	}
	return -1
}
