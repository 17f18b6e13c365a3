// Package spatial answers point-in-rectangle questions about towers.
//
// # Containment
//
// A tower is inside a rectangle iff minLat <= lat <= maxLat and
// minLon <= lon <= maxLon. Edges are inclusive. Rectangles are handled as
// orb.Bound values whose Contains test has exactly these semantics.
//
// # Tower Counts
//
// Two counts can exist for an area: a trusted count computed against the
// displayed (filtered) tower set, and a fallback count over the full set.
// When both are present the trusted count is authoritative. See TowerCounts.
package spatial

import (
	"sync"

	"github.com/paulmach/orb"

	"github.com/florykhan/TelusGuardAI/pkg/types"
)

// ToBound converts bounds to an orb.Bound ([lon, lat] points).
func ToBound(b types.Bounds) orb.Bound {
	return orb.Bound{
		Min: orb.Point{b.MinLon, b.MinLat},
		Max: orb.Point{b.MaxLon, b.MaxLat},
	}
}

// FromBound converts an orb.Bound back to bounds.
func FromBound(b orb.Bound) types.Bounds {
	return types.Bounds{
		MinLat: b.Min.Lat(),
		MaxLat: b.Max.Lat(),
		MinLon: b.Min.Lon(),
		MaxLon: b.Max.Lon(),
	}
}

// Point converts a tower location to an orb.Point.
func Point(t types.Tower) orb.Point {
	return orb.Point{t.Lon, t.Lat}
}

// Contains reports whether the tower lies inside b, edges included.
func Contains(b types.Bounds, t types.Tower) bool {
	return ToBound(b).Contains(Point(t))
}

// CountContained returns how many towers lie inside the area's bounds.
func CountContained(area types.ImpactArea, towers []types.Tower) int {
	return countIn(ToBound(area.Bounds), towers)
}

// FilterVisible returns the towers inside the viewport bounds, preserving the
// input order.
func FilterVisible(bounds types.Bounds, towers []types.Tower) []types.Tower {
	bound := ToBound(bounds)
	out := make([]types.Tower, 0)
	for _, t := range towers {
		if bound.Contains(Point(t)) {
			out = append(out, t)
		}
	}
	return out
}

// FilterByRadio keeps towers whose radio type is in radios. An empty filter
// keeps everything.
func FilterByRadio(towers []types.Tower, radios ...string) []types.Tower {
	if len(radios) == 0 {
		return towers
	}
	allowed := make(map[string]bool, len(radios))
	for _, r := range radios {
		allowed[r] = true
	}
	out := make([]types.Tower, 0, len(towers))
	for _, t := range towers {
		if allowed[t.Radio] {
			out = append(out, t)
		}
	}
	return out
}

func countIn(bound orb.Bound, towers []types.Tower) int {
	n := 0
	for _, t := range towers {
		if bound.Contains(Point(t)) {
			n++
		}
	}
	return n
}

// =============================================================================
// INDEX
// =============================================================================

// Index wraps an immutable tower set and memoizes results per bounds.
//
// Memoization is keyed only by bounds because the tower set never changes for
// the lifetime of an Index. Results are identical to the free functions.
type Index struct {
	towers []types.Tower
	byID   map[string]int

	mu      sync.Mutex
	counts  map[types.Bounds]int
	visible map[types.Bounds][]types.Tower
}

// maxMemo bounds the memo tables; viewports change constantly and would grow
// them without limit.
const maxMemo = 256

// NewIndex builds an index over towers. Towers without ids are given their
// coordinate key.
func NewIndex(towers []types.Tower) *Index {
	keyed := types.WithKeys(towers)
	byID := make(map[string]int, len(keyed))
	for i, t := range keyed {
		if _, dup := byID[t.ID]; !dup {
			byID[t.ID] = i
		}
	}
	return &Index{
		towers:  keyed,
		byID:    byID,
		counts:  make(map[types.Bounds]int),
		visible: make(map[types.Bounds][]types.Tower),
	}
}

// Len returns the number of towers.
func (ix *Index) Len() int {
	return len(ix.towers)
}

// Towers returns a copy of the tower set.
func (ix *Index) Towers() []types.Tower {
	out := make([]types.Tower, len(ix.towers))
	copy(out, ix.towers)
	return out
}

// Get looks up a tower by id.
func (ix *Index) Get(id string) (types.Tower, bool) {
	i, ok := ix.byID[id]
	if !ok {
		return types.Tower{}, false
	}
	return ix.towers[i], true
}

// Filter returns a new index over the towers matching keep.
func (ix *Index) Filter(keep func(types.Tower) bool) *Index {
	out := make([]types.Tower, 0, len(ix.towers))
	for _, t := range ix.towers {
		if keep(t) {
			out = append(out, t)
		}
	}
	return NewIndex(out)
}

// CountIn returns the number of towers inside bounds.
func (ix *Index) CountIn(bounds types.Bounds) int {
	ix.mu.Lock()
	if n, ok := ix.counts[bounds]; ok {
		ix.mu.Unlock()
		return n
	}
	ix.mu.Unlock()

	n := countIn(ToBound(bounds), ix.towers)

	ix.mu.Lock()
	if len(ix.counts) >= maxMemo {
		ix.counts = make(map[types.Bounds]int)
	}
	ix.counts[bounds] = n
	ix.mu.Unlock()
	return n
}

// Visible returns the towers inside bounds in index order. The returned slice
// is a copy and may be modified by the caller.
func (ix *Index) Visible(bounds types.Bounds) []types.Tower {
	ix.mu.Lock()
	cached, ok := ix.visible[bounds]
	ix.mu.Unlock()
	if !ok {
		cached = FilterVisible(bounds, ix.towers)
		ix.mu.Lock()
		if len(ix.visible) >= maxMemo {
			ix.visible = make(map[types.Bounds][]types.Tower)
		}
		ix.visible[bounds] = cached
		ix.mu.Unlock()
	}
	out := make([]types.Tower, len(cached))
	copy(out, cached)
	return out
}

// VisibleIDs returns the ids of the towers inside bounds in index order.
func (ix *Index) VisibleIDs(bounds types.Bounds) []string {
	visible := ix.Visible(bounds)
	ids := make([]string, len(visible))
	for i, t := range visible {
		ids[i] = t.ID
	}
	return ids
}

// =============================================================================
// TOWER COUNTS
// =============================================================================

// Count is a resolved tower count together with where it came from.
type Count struct {
	Value  int
	Source types.CountSource
}

// TowerCounts resolves the tower count of every area.
//
// Precedence: a count in trusted (computed against the displayed tower set)
// is authoritative. Areas absent from trusted fall back to a count over full.
// A nil full index with no trusted entry yields zero with the full-set source.
func TowerCounts(areas []types.ImpactArea, full *Index, trusted map[string]int) map[string]Count {
	out := make(map[string]Count, len(areas))
	for _, a := range areas {
		if n, ok := trusted[a.ID]; ok {
			out[a.ID] = Count{Value: n, Source: types.CountDisplayed}
			continue
		}
		n := 0
		if full != nil {
			n = full.CountIn(a.Bounds)
		}
		out[a.ID] = Count{Value: n, Source: types.CountFullSet}
	}
	return out
}

// DisplayedCounts computes trusted counts for areas against the displayed
// index.
func DisplayedCounts(areas []types.ImpactArea, displayed *Index) map[string]int {
	out := make(map[string]int, len(areas))
	if displayed == nil {
		return out
	}
	for _, a := range areas {
		out[a.ID] = displayed.CountIn(a.Bounds)
	}
	return out
}

// ApplyCounts returns a copy of areas with TowerCount and TowerCountSource set.
func ApplyCounts(areas []types.ImpactArea, counts map[string]Count) []types.ImpactArea {
	out := make([]types.ImpactArea, len(areas))
	for i, a := range areas {
		if c, ok := counts[a.ID]; ok {
			a.TowerCount = c.Value
			a.TowerCountSource = c.Source
		}
		out[i] = a
	}
	return out
}
