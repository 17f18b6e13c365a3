package store

import (
	"context"
	"sort"
	"strings"

	"github.com/florykhan/TelusGuardAI/pkg/spatial"
	"github.com/florykhan/TelusGuardAI/pkg/types"
)

// MemoryCatalog serves towers loaded from a reference file. It is read-only
// after construction and safe for concurrent use.
type MemoryCatalog struct {
	towers []types.Tower
	byID   map[string]int
}

// NewMemoryCatalog indexes towers by key. Invalid towers are dropped and
// later duplicates replace earlier ones.
func NewMemoryCatalog(towers []types.Tower) *MemoryCatalog {
	c := &MemoryCatalog{byID: make(map[string]int, len(towers))}
	for _, t := range types.WithKeys(towers) {
		if t.Validate() != nil {
			continue
		}
		if i, ok := c.byID[t.ID]; ok {
			c.towers[i] = t
			continue
		}
		c.byID[t.ID] = len(c.towers)
		c.towers = append(c.towers, t)
	}
	sort.Slice(c.towers, func(i, j int) bool { return c.towers[i].ID < c.towers[j].ID })
	for i, t := range c.towers {
		c.byID[t.ID] = i
	}
	return c
}

// ListTowers returns the towers matching q, ordered by id.
func (c *MemoryCatalog) ListTowers(ctx context.Context, q TowerQuery) ([]types.Tower, error) {
	towers := c.towers
	if q.After != "" {
		i := sort.Search(len(towers), func(i int) bool { return towers[i].ID > q.After })
		towers = towers[i:]
	}
	if q.Radio != "" {
		towers = spatial.FilterByRadio(towers, strings.ToUpper(q.Radio))
	}
	if q.Bounds != nil {
		return spatial.FilterBBox(towers, *q.Bounds, q.Limit), nil
	}
	if q.Limit > 0 && len(towers) > q.Limit {
		towers = towers[:q.Limit]
	}
	out := make([]types.Tower, len(towers))
	copy(out, towers)
	return out, nil
}

// GetTower returns the tower with the given id, or nil.
func (c *MemoryCatalog) GetTower(ctx context.Context, id string) (*types.Tower, error) {
	i, ok := c.byID[id]
	if !ok {
		return nil, nil
	}
	t := c.towers[i]
	return &t, nil
}

// CountTowers returns the catalog size.
func (c *MemoryCatalog) CountTowers(ctx context.Context) (int, error) {
	return len(c.towers), nil
}
