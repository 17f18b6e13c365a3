// Package api provides HTTP handlers for the control plane.
//
// # Endpoints
//
// Towers:
//   - GET  /api/towers - Towers in a bounding box (north, south, east, west, radio, limit)
//   - GET  /api/towers/{id} - One tower
//
// KPIs:
//   - POST /api/kpis - Latest KPI snapshot for a list of towers
//   - GET  /api/kpis/stream - Websocket pushing KPI batches every tick_ms
//
// Incidents:
//   - POST   /api/incidents - Trigger a simulated incident on towers
//   - GET    /api/incidents - List active incidents
//   - DELETE /api/incidents/{tower_id} - Clear a tower's incident
//
// Analysis:
//   - POST /api/analyze-network-impact - Run a network impact analysis
//   - GET  /api/cache-stats - Analysis cache statistics
//   - GET  /api/cached-queries - Questions with a cached report
//   - POST /api/clear-cache - Drop every cached report
//
// Health:
//   - GET /health - Health check
//   - GET /metrics - Prometheus metrics
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/florykhan/TelusGuardAI/control-plane/internal/cache"
	"github.com/florykhan/TelusGuardAI/control-plane/internal/kpi"
	"github.com/florykhan/TelusGuardAI/control-plane/internal/metrics"
	"github.com/florykhan/TelusGuardAI/control-plane/internal/store"
	"github.com/florykhan/TelusGuardAI/pkg/types"
)

// TowerCatalog serves tower reference data. Implemented by *store.Store and
// *store.MemoryCatalog.
type TowerCatalog interface {
	ListTowers(ctx context.Context, q store.TowerQuery) ([]types.Tower, error)
	GetTower(ctx context.Context, id string) (*types.Tower, error)
	CountTowers(ctx context.Context) (int, error)
}

// KPISource returns the latest snapshot per tower id.
type KPISource interface {
	Get(ids []string) map[string]types.KpiSnapshot
}

// Analyzer runs network impact analyses.
type Analyzer interface {
	Analyze(ctx context.Context, req types.AnalysisRequest) (*types.AnalysisResult, error)
}

// AnalysisCache is the cache administration surface.
type AnalysisCache interface {
	Stats(ctx context.Context) (cache.Stats, error)
	Queries(ctx context.Context) ([]string, error)
	Clear(ctx context.Context) (int, error)
}

// HealthReporter produces the /health body.
type HealthReporter interface {
	Health(ctx context.Context) *types.Health
}

// Config wires the server's dependencies. Only Towers and KPIs are required;
// the routes of a missing optional dependency answer 503.
type Config struct {
	Towers    TowerCatalog
	KPIs      KPISource
	Incidents *kpi.Incidents
	Analyzer  Analyzer
	Cache     AnalysisCache
	Health    HealthReporter
	Metrics   *metrics.Metrics
	Logger    *slog.Logger
}

// Server is the HTTP API server.
type Server struct {
	towers    TowerCatalog
	kpis      KPISource
	incidents *kpi.Incidents
	analyzer  Analyzer
	cache     AnalysisCache
	health    HealthReporter
	metrics   *metrics.Metrics
	logger    *slog.Logger
	mux       *http.ServeMux
	now       func() time.Time
}

// NewServer creates a new API server.
func NewServer(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		towers:    cfg.Towers,
		kpis:      cfg.KPIs,
		incidents: cfg.Incidents,
		analyzer:  cfg.Analyzer,
		cache:     cfg.Cache,
		health:    cfg.Health,
		metrics:   cfg.Metrics,
		logger:    logger.With("component", "api"),
		mux:       http.NewServeMux(),
		now:       time.Now,
	}
	s.registerRoutes()
	return s
}

// Mux returns the underlying ServeMux for registering additional routes.
func (s *Server) Mux() *http.ServeMux {
	return s.mux
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	start := time.Now()
	s.mux.ServeHTTP(w, r)
	s.logger.Debug("request",
		"method", r.Method,
		"path", r.URL.Path,
		"duration", time.Since(start))
}

// endpoints is listed by the index and 404 responses.
var endpoints = []string{
	"GET /health",
	"GET /metrics",
	"GET /api/towers",
	"GET /api/towers/{id}",
	"POST /api/kpis",
	"GET /api/kpis/stream",
	"POST /api/incidents",
	"GET /api/incidents",
	"DELETE /api/incidents/{tower_id}",
	"POST /api/analyze-network-impact",
	"GET /api/cache-stats",
	"GET /api/cached-queries",
	"POST /api/clear-cache",
}

func (s *Server) registerRoutes() {
	handle := func(pattern, route string, h http.HandlerFunc) {
		s.mux.Handle(pattern, s.metrics.Instrument(route, h))
	}

	// Health
	handle("GET /health", "/health", s.handleHealth)
	if s.metrics != nil {
		s.mux.Handle("GET /metrics", s.metrics.Handler())
	}

	// Towers
	handle("GET /api/towers", "/api/towers", s.handleListTowers)
	handle("GET /api/towers/{id}", "/api/towers/{id}", s.handleGetTower)

	// KPIs
	handle("POST /api/kpis", "/api/kpis", s.handleKPIs)
	handle("GET /api/kpis/stream", "/api/kpis/stream", s.handleKPIStream)

	// Incidents
	handle("POST /api/incidents", "/api/incidents", s.handleTriggerIncident)
	handle("GET /api/incidents", "/api/incidents", s.handleListIncidents)
	handle("DELETE /api/incidents/{tower_id}", "/api/incidents/{tower_id}", s.handleClearIncident)

	// Analysis
	handle("POST /api/analyze-network-impact", "/api/analyze-network-impact", s.handleAnalyze)
	handle("GET /api/cache-stats", "/api/cache-stats", s.handleCacheStats)
	handle("GET /api/cached-queries", "/api/cached-queries", s.handleCachedQueries)
	handle("POST /api/clear-cache", "/api/clear-cache", s.handleClearCache)

	// Index and fallthrough
	s.mux.HandleFunc("/", s.handleIndex)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		s.writeJSON(w, http.StatusNotFound, map[string]any{
			"error":               "not found",
			"available_endpoints": endpoints,
		})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"service":   "netimpact control plane",
		"endpoints": endpoints,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health == nil {
		s.writeJSON(w, http.StatusOK, map[string]any{
			"status":    "healthy",
			"timestamp": s.now().UTC(),
		})
		return
	}
	s.writeJSON(w, http.StatusOK, s.health.Health(r.Context()))
}

func (s *Server) readJSON(w http.ResponseWriter, r *http.Request, v any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
}

// maxBodyBytes bounds request bodies. A full KPI batch of long ids fits.
const maxBodyBytes = 1 << 20

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{
		"error": message,
	})
}
