package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/florykhan/TelusGuardAI/control-plane/internal/analysis"
	"github.com/florykhan/TelusGuardAI/control-plane/internal/cache"
	"github.com/florykhan/TelusGuardAI/control-plane/internal/kpi"
	"github.com/florykhan/TelusGuardAI/control-plane/internal/metrics"
	"github.com/florykhan/TelusGuardAI/control-plane/internal/store"
	fixtures "github.com/florykhan/TelusGuardAI/control-plane/internal/testutil"
	"github.com/florykhan/TelusGuardAI/pkg/types"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type mockAnalyzer struct {
	mu     sync.Mutex
	calls  int
	result *types.AnalysisResult
	err    error
}

func (m *mockAnalyzer) Analyze(ctx context.Context, req types.AnalysisRequest) (*types.AnalysisResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	res := *m.result
	res.Query = req.Question
	return &res, nil
}

type mockCache struct {
	mu      sync.Mutex
	queries []string
	cleared int
	err     error
}

func (m *mockCache) Stats(ctx context.Context) (cache.Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cache.Stats{TotalItems: len(m.queries), ActiveItems: len(m.queries), TTLSeconds: 300}, m.err
}

func (m *mockCache) Queries(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.queries, m.err
}

func (m *mockCache) Clear(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.queries)
	m.queries = nil
	m.cleared++
	return n, m.err
}

type testEnv struct {
	server    *Server
	analyzer  *mockAnalyzer
	cache     *mockCache
	incidents *kpi.Incidents
	metrics   *metrics.Metrics
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	m, err := metrics.New(prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("metrics.New: %v", err)
	}
	now := func() time.Time { return testNow }
	incidents := kpi.NewIncidents(now, testLogger())
	sim := kpi.NewSimulator(kpi.SimConfig{Now: now, Incidents: incidents, Logger: testLogger()})

	env := &testEnv{
		analyzer: &mockAnalyzer{result: &types.AnalysisResult{
			Summary:     "Found 1 event(s)",
			TotalEvents: 1,
		}},
		cache:     &mockCache{queries: []string{"which areas lost power?"}},
		incidents: incidents,
		metrics:   m,
	}
	env.server = NewServer(Config{
		Towers: store.NewMemoryCatalog([]types.Tower{
			fixtures.FixtureTowerAt("t1", 49.25, -123.10),
			fixtures.FixtureTowerAt("t2", 49.28, -123.12, func(tw *types.Tower) { tw.Radio = types.RadioNR }),
			fixtures.FixtureTowerAt("far", 43.65, -79.38),
		}),
		KPIs:      sim,
		Incidents: incidents,
		Analyzer:  env.analyzer,
		Cache:     env.cache,
		Metrics:   m,
		Logger:    testLogger(),
	})
	env.server.now = now
	return env
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		if err != nil {
			t.Fatal(err)
		}
		r = bytes.NewReader(data)
	}
	rec := httptest.NewRecorder()
	e.server.ServeHTTP(rec, httptest.NewRequest(method, path, r))
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decoding %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestKPIs(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/kpis", types.KpiBatchRequest{
		TowerIDs: []string{"t1", "t2", ""},
		Options:  types.KpiOptions{Mode: "sim", TickMs: 1000},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}

	resp := decode[types.KpiBatchResponse](t, rec)
	if !resp.Timestamp.Equal(testNow) {
		t.Errorf("timestamp = %v, want %v", resp.Timestamp, testNow)
	}
	if len(resp.KPIs) != 2 {
		t.Fatalf("kpis = %d, want 2 (empty id skipped)", len(resp.KPIs))
	}
	for id, k := range resp.KPIs {
		if !k.Status.Valid() || k.Traffic < 0 || k.Traffic > 1 {
			t.Errorf("%s: invalid snapshot %+v", id, k)
		}
	}
	if got := testutil.ToFloat64(env.metrics.KPIBatches); got != 1 {
		t.Errorf("kpi batches = %v, want 1", got)
	}
}

func TestKPIsValidation(t *testing.T) {
	env := newTestEnv(t)

	tooMany := make([]string, 1001)
	for i := range tooMany {
		tooMany[i] = fmt.Sprintf("t%d", i)
	}

	tests := []struct {
		name string
		body any
	}{
		{"not json", "tower_ids=t1"},
		{"missing ids", map[string]any{}},
		{"empty ids", types.KpiBatchRequest{TowerIDs: []string{}}},
		{"ids not a list", `{"tower_ids": "t1"}`},
		{"too many", types.KpiBatchRequest{TowerIDs: tooMany}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/api/kpis", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
			if resp := decode[map[string]string](t, rec); resp["error"] == "" {
				t.Error("error message missing")
			}
		})
	}
}

func TestKPIsReflectIncidents(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/incidents", kpi.IncidentRequest{
		Type:     kpi.IncidentOutage,
		TowerIDs: []string{"t1"},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("trigger status = %d, body = %s", rec.Code, rec.Body)
	}

	resp := decode[types.KpiBatchResponse](t, env.do(t, http.MethodPost, "/api/kpis", types.KpiBatchRequest{TowerIDs: []string{"t1"}}))
	if got := resp.KPIs["t1"].Status; got != types.KpiStatusDown {
		t.Errorf("status under outage = %s, want down", got)
	}
}

func TestIncidents(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/incidents", kpi.IncidentRequest{Type: "meteor", TowerIDs: []string{"t1"}})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown type status = %d, want 400", rec.Code)
	}

	rec = env.do(t, http.MethodPost, "/api/incidents", kpi.IncidentRequest{
		Type:     kpi.IncidentTrafficSurge,
		TowerIDs: []string{"t2", "t1"},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("trigger status = %d, body = %s", rec.Code, rec.Body)
	}

	list := decode[struct {
		Incidents []kpi.Incident `json:"incidents"`
		Count     int            `json:"count"`
	}](t, env.do(t, http.MethodGet, "/api/incidents", nil))
	if list.Count != 2 || list.Incidents[0].TowerID != "t1" {
		t.Errorf("list = %+v", list)
	}

	if rec := env.do(t, http.MethodDelete, "/api/incidents/t1", nil); rec.Code != http.StatusNoContent {
		t.Errorf("clear status = %d, want 204", rec.Code)
	}
	if rec := env.do(t, http.MethodDelete, "/api/incidents/t1", nil); rec.Code != http.StatusNotFound {
		t.Errorf("second clear status = %d, want 404", rec.Code)
	}
	if got := testutil.ToFloat64(env.metrics.Incidents.WithLabelValues("traffic_surge")); got != 2 {
		t.Errorf("surge incidents = %v, want 2", got)
	}
}

func TestListTowers(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name     string
		path     string
		wantCode int
		wantIDs  []string
	}{
		{"all", "/api/towers", http.StatusOK, []string{"far", "t1", "t2"}},
		{"box", "/api/towers?north=49.5&south=49.0&east=-122.5&west=-123.5", http.StatusOK, []string{"t1", "t2"}},
		{"box and radio", "/api/towers?north=49.5&south=49.0&east=-122.5&west=-123.5&radio=nr", http.StatusOK, []string{"t2"}},
		{"limit", "/api/towers?limit=1", http.StatusOK, []string{"far"}},
		{"next page", "/api/towers?after=far&limit=1", http.StatusOK, []string{"t1"}},
		{"partial box", "/api/towers?north=49.5", http.StatusBadRequest, nil},
		{"bad number", "/api/towers?north=x&south=1&east=1&west=1", http.StatusBadRequest, nil},
		{"bad limit", "/api/towers?limit=-3", http.StatusBadRequest, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodGet, tt.path, nil)
			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			if tt.wantCode != http.StatusOK {
				return
			}
			resp := decode[struct {
				Towers []types.Tower `json:"towers"`
				Count  int           `json:"count"`
			}](t, rec)
			var ids []string
			for _, tw := range resp.Towers {
				ids = append(ids, tw.ID)
			}
			if strings.Join(ids, ",") != strings.Join(tt.wantIDs, ",") || resp.Count != len(tt.wantIDs) {
				t.Errorf("ids = %v (count %d), want %v", ids, resp.Count, tt.wantIDs)
			}
		})
	}
}

func TestListTowersSharedBoundsQuery(t *testing.T) {
	env := newTestEnv(t)

	params := url.Values{}
	vancouver := types.NewBounds(49.0, 49.5, -123.5, -122.5)
	vancouver.Viewport().SetQuery(params)
	params.Set("limit", "10")

	rec := env.do(t, http.MethodGet, "/api/towers?"+params.Encode(), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	resp := decode[struct {
		Towers []types.Tower `json:"towers"`
	}](t, rec)
	if len(resp.Towers) != 2 {
		t.Errorf("towers = %+v, want t1 and t2 only", resp.Towers)
	}
	for _, tw := range resp.Towers {
		if tw.ID == "far" {
			t.Error("bounding box was ignored")
		}
	}
}

func TestGetTower(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/towers/t2", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if tw := decode[types.Tower](t, rec); tw.Radio != types.RadioNR {
		t.Errorf("tower = %+v", tw)
	}
	if rec := env.do(t, http.MethodGet, "/api/towers/nope", nil); rec.Code != http.StatusNotFound {
		t.Errorf("missing tower status = %d, want 404", rec.Code)
	}
}

func TestAnalyze(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		body     any
		wantCode int
	}{
		{"ok", nil, types.AnalysisRequest{Question: "Which areas lost service in the storm?"}, http.StatusOK},
		{"invalid", fmt.Errorf("%w: question too short", analysis.ErrInvalidRequest), types.AnalysisRequest{Question: "short"}, http.StatusBadRequest},
		{"upstream", &analysis.UpstreamError{StatusCode: 503, Message: "busy"}, types.AnalysisRequest{Question: "Which areas lost service?"}, http.StatusBadGateway},
		{"timeout", context.DeadlineExceeded, types.AnalysisRequest{Question: "Which areas lost service?"}, http.StatusGatewayTimeout},
		{"other", errors.New("boom"), types.AnalysisRequest{Question: "Which areas lost service?"}, http.StatusInternalServerError},
		{"not json", nil, "{", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.analyzer.err = tt.err

			rec := env.do(t, http.MethodPost, "/api/analyze-network-impact", tt.body)
			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.wantCode, rec.Body)
			}
			if tt.wantCode == http.StatusOK {
				res := decode[types.AnalysisResult](t, rec)
				if res.Query != "Which areas lost service in the storm?" || res.TotalEvents != 1 {
					t.Errorf("result = %+v", res)
				}
			}
		})
	}
}

func TestCacheEndpoints(t *testing.T) {
	env := newTestEnv(t)

	stats := decode[struct {
		CacheStats cache.Stats `json:"cache_stats"`
	}](t, env.do(t, http.MethodGet, "/api/cache-stats", nil))
	if stats.CacheStats.ActiveItems != 1 || stats.CacheStats.TTLSeconds != 300 {
		t.Errorf("stats = %+v", stats.CacheStats)
	}

	queries := decode[struct {
		CachedQueries []string `json:"cached_queries"`
		Count         int      `json:"count"`
	}](t, env.do(t, http.MethodGet, "/api/cached-queries", nil))
	if queries.Count != 1 || queries.CachedQueries[0] != "which areas lost power?" {
		t.Errorf("queries = %+v", queries)
	}

	cleared := decode[map[string]any](t, env.do(t, http.MethodPost, "/api/clear-cache", nil))
	if cleared["message"] != "Cache cleared successfully" {
		t.Errorf("clear response = %v", cleared)
	}

	queries = decode[struct {
		CachedQueries []string `json:"cached_queries"`
		Count         int      `json:"count"`
	}](t, env.do(t, http.MethodGet, "/api/cached-queries", nil))
	if queries.Count != 0 || queries.CachedQueries == nil {
		t.Errorf("queries after clear = %+v, want empty list", queries)
	}
}

func TestOptionalDependencies(t *testing.T) {
	s := NewServer(Config{
		Towers: store.NewMemoryCatalog(nil),
		KPIs:   kpi.NewSimulator(kpi.SimConfig{Logger: testLogger()}),
		Logger: testLogger(),
	})

	for _, tc := range []struct{ method, path string }{
		{http.MethodPost, "/api/analyze-network-impact"},
		{http.MethodGet, "/api/cache-stats"},
		{http.MethodGet, "/api/cached-queries"},
		{http.MethodPost, "/api/clear-cache"},
		{http.MethodGet, "/api/incidents"},
	} {
		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, httptest.NewRequest(tc.method, tc.path, strings.NewReader("{}")))
		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("%s %s = %d, want 503", tc.method, tc.path, rec.Code)
		}
	}

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("health = %d", rec.Code)
	}
}

func TestIndexAndNotFound(t *testing.T) {
	env := newTestEnv(t)

	if rec := env.do(t, http.MethodGet, "/", nil); rec.Code != http.StatusOK {
		t.Errorf("index status = %d", rec.Code)
	}
	rec := env.do(t, http.MethodGet, "/api/nope", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "available_endpoints") {
		t.Error("404 body does not list endpoints")
	}
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodOptions, "/api/kpis", nil)
	if rec.Code != http.StatusOK || rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Errorf("preflight = %d, headers %v", rec.Code, rec.Header())
	}
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodPost, "/api/kpis", types.KpiBatchRequest{TowerIDs: []string{"t1"}})

	rec := env.do(t, http.MethodGet, "/metrics", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `netimpact_http_requests_total{code="200",method="POST",route="/api/kpis"} 1`) {
		t.Errorf("metrics = %d\n%s", rec.Code, rec.Body)
	}
}

func TestStreamTick(t *testing.T) {
	tests := []struct {
		tickMs int
		want   time.Duration
	}{
		{0, time.Second},
		{-5, time.Second},
		{100, 250 * time.Millisecond},
		{2000, 2 * time.Second},
	}
	for _, tt := range tests {
		if got := streamTick(tt.tickMs); got != tt.want {
			t.Errorf("streamTick(%d) = %v, want %v", tt.tickMs, got, tt.want)
		}
	}
}
