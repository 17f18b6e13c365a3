// Package dashboard composes the overlay and KPI engine behind the map.
//
// # Data Flow
//
//  1. An analysis response is normalized into impact areas
//  2. Tower counts are computed per area (displayed set first, full set as fallback)
//  3. Areas are ordered twice: by severity for lists, by z-order for the map
//  4. Viewport changes drive throttled KPI batch fetches
//  5. Tower selection drives KPI polling; area selection drives focus bounds
//
// The Engine owns the area list; the KPI store is owned by kpisync and the
// selection by the selection controller. Everything else reads.
package dashboard

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/florykhan/TelusGuardAI/dashboard/internal/kpisync"
	"github.com/florykhan/TelusGuardAI/dashboard/internal/selection"
	"github.com/florykhan/TelusGuardAI/pkg/impact"
	"github.com/florykhan/TelusGuardAI/pkg/severity"
	"github.com/florykhan/TelusGuardAI/pkg/spatial"
	"github.com/florykhan/TelusGuardAI/pkg/types"
)

// Version is set at build time.
var Version = "dev"

// Analyzer runs an impact analysis and returns the raw response.
type Analyzer interface {
	Analyze(ctx context.Context, req types.AnalysisRequest) ([]byte, error)
}

// Config for the engine.
type Config struct {
	Towers   []types.Tower    // Tower reference set, loaded once
	Radios   []string         // Displayed radio types; empty shows all
	Fetcher  kpisync.Fetcher  // KPI source (required)
	Analyzer Analyzer         // Optional; required for Analyze
	Sync     kpisync.Config   // Throttle, batch and poll settings; Fetcher and Towers are filled in
	Viewport types.Viewport   // Initial viewport
	Metrics  *kpisync.Metrics // Optional
	Logger   *slog.Logger     // Optional
}

// Engine is the overlay and KPI synchronisation engine.
type Engine struct {
	analyzer Analyzer
	kpi      *kpisync.Controller
	sel      *selection.Controller
	logger   *slog.Logger

	mu        sync.RWMutex
	full      *spatial.Index
	displayed *spatial.Index
	radios    []string
	viewport  types.Viewport
	areas     []types.ImpactArea // severity order
	render    []types.ImpactArea // draw order
}

// New creates an engine. Call Close when done.
func New(cfg Config) (*Engine, error) {
	if cfg.Fetcher == nil {
		return nil, fmt.Errorf("fetcher is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	full := spatial.NewIndex(cfg.Towers)
	displayed := displayedIndex(full, cfg.Radios)

	syncCfg := cfg.Sync
	syncCfg.Fetcher = cfg.Fetcher
	syncCfg.Towers = displayed
	syncCfg.Metrics = cfg.Metrics
	syncCfg.Logger = cfg.Logger
	kpi, err := kpisync.New(syncCfg)
	if err != nil {
		return nil, fmt.Errorf("creating kpi sync: %w", err)
	}

	e := &Engine{
		analyzer:  cfg.Analyzer,
		kpi:       kpi,
		logger:    cfg.Logger.With("component", "engine"),
		full:      full,
		displayed: displayed,
		radios:    cfg.Radios,
		viewport:  cfg.Viewport,
		areas:     []types.ImpactArea{},
		render:    []types.ImpactArea{},
	}
	e.sel = selection.New(selection.Config{
		Poller:   kpi,
		Resolver: e.towerExists,
		Logger:   cfg.Logger,
	})

	e.logger.Info("engine ready",
		"towers", full.Len(),
		"displayed", displayed.Len(),
		"radios", cfg.Radios)
	return e, nil
}

func displayedIndex(full *spatial.Index, radios []string) *spatial.Index {
	if len(radios) == 0 {
		return full
	}
	allowed := make(map[string]bool, len(radios))
	for _, r := range radios {
		allowed[r] = true
	}
	return full.Filter(func(t types.Tower) bool { return allowed[t.Radio] })
}

func (e *Engine) towerExists(id string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, ok := e.displayed.Get(id)
	return ok
}

// =============================================================================
// ANALYSIS
// =============================================================================

// Analyze runs an analysis and applies its result. This is the one path whose
// errors reach the user; see client.ErrBackendUnreachable.
func (e *Engine) Analyze(ctx context.Context, req types.AnalysisRequest) ([]types.ImpactArea, error) {
	if e.analyzer == nil {
		return nil, fmt.Errorf("no analyzer configured")
	}
	raw, err := e.analyzer.Analyze(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("running analysis: %w", err)
	}
	return e.ApplyAnalysis(raw), nil
}

// ApplyAnalysis replaces the area set with the areas of a new response and
// clears the selection. Malformed areas are skipped. Returns the areas in
// severity order.
func (e *Engine) ApplyAnalysis(raw []byte) []types.ImpactArea {
	areas, rep := impact.NormalizeWithReport(raw)
	if rep.Dropped > 0 {
		e.logger.Warn("dropped malformed areas", "dropped", rep.Dropped, "kept", rep.Areas)
	}

	e.mu.Lock()
	e.setAreasLocked(areas)
	out := e.copyAreasLocked()
	e.mu.Unlock()

	e.sel.ReplaceAreas(out)

	e.logger.Info("analysis applied", "events", rep.Events, "areas", rep.Areas)
	return out
}

// setAreasLocked resolves tower counts and both orderings.
func (e *Engine) setAreasLocked(areas []types.ImpactArea) {
	trusted := spatial.DisplayedCounts(areas, e.displayed)
	counts := spatial.TowerCounts(areas, e.full, trusted)
	e.areas = spatial.ApplyCounts(areas, counts)
	e.render = impact.RenderOrder(e.areas)
}

func (e *Engine) copyAreasLocked() []types.ImpactArea {
	out := make([]types.ImpactArea, len(e.areas))
	copy(out, e.areas)
	return out
}

// Areas returns the current areas in severity order.
func (e *Engine) Areas() []types.ImpactArea {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.copyAreasLocked()
}

// =============================================================================
// TOWERS & VIEWPORT
// =============================================================================

// SetRadioFilter changes the displayed radio types and recomputes tower
// counts against the new displayed set. Selection is left alone unless the
// selected tower is no longer displayed.
func (e *Engine) SetRadioFilter(radios ...string) {
	e.mu.Lock()
	e.radios = radios
	e.displayed = displayedIndex(e.full, radios)
	e.setAreasLocked(e.areas)
	displayed := e.displayed
	e.mu.Unlock()

	e.kpi.SetTowers(displayed)

	if id, ok := e.sel.Selection().TowerID(); ok {
		if _, still := displayed.Get(id); !still {
			e.sel.Clear()
		}
	}
	e.logger.Debug("radio filter changed", "radios", radios, "displayed", displayed.Len())
}

// SetViewport records the viewport and triggers a throttled KPI fetch for the
// towers now visible.
func (e *Engine) SetViewport(v types.Viewport) kpisync.Outcome {
	e.mu.Lock()
	e.viewport = v
	e.mu.Unlock()
	return e.kpi.ViewportChanged(v.Bounds())
}

// =============================================================================
// SELECTION
// =============================================================================

// SelectTower selects a displayed tower and starts polling its KPIs.
func (e *Engine) SelectTower(id string) types.Selection {
	return e.sel.SelectTower(id)
}

// SelectArea selects an area and focuses the map on it.
func (e *Engine) SelectArea(id string) types.Selection {
	return e.sel.SelectArea(id)
}

// ClearSelection clears any selection and stops polling.
func (e *Engine) ClearSelection() {
	e.sel.Clear()
}

// Click selects the top-most area under (lat, lon). A click that hits no
// area leaves the selection unchanged.
func (e *Engine) Click(lat, lon float64) (types.Selection, bool) {
	e.mu.RLock()
	hit, ok := impact.HitTest(e.render, lat, lon)
	e.mu.RUnlock()
	if !ok {
		return e.sel.Selection(), false
	}
	return e.sel.SelectArea(hit.ID), true
}

// =============================================================================
// VIEW
// =============================================================================

// TowerView is a displayed tower with its live KPIs.
type TowerView struct {
	types.Tower
	KPI   *types.KpiSnapshot  `json:"kpi,omitempty"`
	Score float64             `json:"score,omitempty"`
	Tier  severity.StatusTier `json:"tier,omitempty"` // empty until a KPI arrives
}

// View is a consistent snapshot for the renderer.
type View struct {
	Viewport      types.Viewport     `json:"viewport"`
	Areas         []types.ImpactArea `json:"areas"`
	RenderOrder   []types.ImpactArea `json:"render_order"`
	Towers        []TowerView        `json:"towers"`
	Selection     types.Selection    `json:"selection"`
	Focus         *types.Bounds      `json:"focus,omitempty"`
	SelectedArea  *types.ImpactArea  `json:"selected_area,omitempty"`
	SelectedTower *TowerView         `json:"selected_tower,omitempty"`
	Sync          kpisync.Stats      `json:"sync"`
}

// View builds the current render snapshot.
func (e *Engine) View() View {
	e.mu.RLock()
	vp := e.viewport
	areas := e.copyAreasLocked()
	render := make([]types.ImpactArea, len(e.render))
	copy(render, e.render)
	visible := e.displayed.Visible(vp.Bounds())
	displayed := e.displayed
	e.mu.RUnlock()

	store := e.kpi.Store()
	towers := make([]TowerView, len(visible))
	for i, t := range visible {
		towers[i] = towerView(t, store)
	}

	v := View{
		Viewport:    vp,
		Areas:       areas,
		RenderOrder: render,
		Towers:      towers,
		Selection:   e.sel.Selection(),
		Sync:        e.kpi.Stats(),
	}
	if b, ok := e.sel.FocusBounds(); ok {
		v.Focus = &b
	}
	if a, ok := e.sel.SelectedArea(); ok {
		v.SelectedArea = &a
	}
	if id, ok := v.Selection.TowerID(); ok {
		if t, ok := displayed.Get(id); ok {
			tv := towerView(t, store)
			v.SelectedTower = &tv
		}
	}
	return v
}

func towerView(t types.Tower, store *kpisync.Store) TowerView {
	tv := TowerView{Tower: t}
	if k, ok := store.Get(t.ID); ok {
		tv.KPI = &k
		tv.Score = severity.KpiScore(k)
		tv.Tier = severity.Tier(tv.Score)
	}
	return tv
}

// =============================================================================
// LIFECYCLE
// =============================================================================

// Run fetches KPIs for the initial viewport and blocks until ctx is done,
// then closes the engine.
func (e *Engine) Run(ctx context.Context) error {
	e.mu.RLock()
	vp := e.viewport
	e.mu.RUnlock()

	outcome := e.kpi.ViewportChanged(vp.Bounds())
	e.logger.Info("engine running", "initial_fetch", outcome, "version", Version)

	<-ctx.Done()
	e.Close()
	return ctx.Err()
}

// Close stops polling and waits for outstanding fetches.
func (e *Engine) Close() {
	e.sel.Clear()
	e.kpi.Close()
}

// Wait blocks until outstanding KPI fetches have completed.
func (e *Engine) Wait() {
	e.kpi.Wait()
}
