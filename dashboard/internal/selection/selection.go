// Package selection holds the single tower-or-area selection of the map.
//
// States are None, Tower(id) and Area(id). Every transition is exclusive:
// selecting a tower clears an area selection and vice versa. Tower selection
// drives KPI polling through the Poller; area selection drives focus bounds.
package selection

import (
	"log/slog"
	"sync"

	"github.com/florykhan/TelusGuardAI/pkg/types"
)

// Poller starts and stops selection-driven KPI polling.
type Poller interface {
	StartPolling(towerID string)
	StopPolling()
}

// TowerResolver reports whether a tower id refers to a known tower.
type TowerResolver func(id string) bool

// Config for the controller.
type Config struct {
	Poller   Poller        // Optional
	Resolver TowerResolver // Optional; nil accepts every non-empty id
	Logger   *slog.Logger  // Optional
}

// Controller is the selection state machine.
type Controller struct {
	poller   Poller
	resolver TowerResolver
	logger   *slog.Logger

	// mu also serialises poller calls so polling always follows the latest
	// transition.
	mu    sync.Mutex
	state types.Selection
	focus *types.Bounds
	areas map[string]types.ImpactArea
}

// New creates a controller with nothing selected.
func New(cfg Config) *Controller {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Controller{
		poller:   cfg.Poller,
		resolver: cfg.Resolver,
		logger:   cfg.Logger.With("component", "selection"),
		state:    types.NoSelection,
		areas:    make(map[string]types.ImpactArea),
	}
}

// SelectTower selects a tower and starts polling it. An empty or unknown id
// clears the selection instead.
func (c *Controller) SelectTower(id string) types.Selection {
	c.mu.Lock()
	defer c.mu.Unlock()

	if id == "" || (c.resolver != nil && !c.resolver(id)) {
		c.logger.Debug("tower not found, clearing selection", "tower_id", id)
		c.clearLocked()
		return c.state
	}

	c.state = types.Selection{Kind: types.SelectionTower, ID: id}
	c.focus = nil
	if c.poller != nil {
		c.poller.StartPolling(id)
	}
	return c.state
}

// SelectArea selects an area and focuses its bounds. An id that does not
// resolve to a current area is still recorded, but has no focus bounds.
// An empty id clears the selection.
func (c *Controller) SelectArea(id string) types.Selection {
	c.mu.Lock()
	defer c.mu.Unlock()

	if id == "" {
		c.clearLocked()
		return c.state
	}

	if c.poller != nil && c.state.Kind == types.SelectionTower {
		c.poller.StopPolling()
	}
	c.state = types.Selection{Kind: types.SelectionArea, ID: id}
	c.focus = nil
	if area, ok := c.areas[id]; ok {
		b := area.Bounds
		c.focus = &b
	} else {
		c.logger.Debug("selected area not in current set", "area_id", id)
	}
	return c.state
}

// Clear returns to None.
func (c *Controller) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clearLocked()
}

func (c *Controller) clearLocked() {
	if c.poller != nil && c.state.Kind == types.SelectionTower {
		c.poller.StopPolling()
	}
	c.state = types.NoSelection
	c.focus = nil
}

// ReplaceAreas installs the areas of a new analysis response and clears the
// selection, since the selected area belonged to the old set.
func (c *Controller) ReplaceAreas(areas []types.ImpactArea) {
	byID := make(map[string]types.ImpactArea, len(areas))
	for _, a := range areas {
		byID[a.ID] = a
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.areas = byID
	c.clearLocked()
}

// Selection returns the current state.
func (c *Controller) Selection() types.Selection {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// FocusBounds returns the bounds the map should fit, if any.
func (c *Controller) FocusBounds() (types.Bounds, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.focus == nil {
		return types.Bounds{}, false
	}
	return *c.focus, true
}

// SelectedArea returns the selected area when it resolves in the current set.
func (c *Controller) SelectedArea() (types.ImpactArea, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id, ok := c.state.AreaID()
	if !ok {
		return types.ImpactArea{}, false
	}
	area, ok := c.areas[id]
	return area, ok
}
