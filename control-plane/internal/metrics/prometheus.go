package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles the control plane Prometheus collectors.
type Metrics struct {
	gatherer prometheus.Gatherer

	HTTPRequests     *prometheus.CounterVec
	HTTPDuration     *prometheus.HistogramVec
	Analyses         *prometheus.CounterVec
	AnalysisDuration *prometheus.HistogramVec
	AnalysisAreas    prometheus.Histogram
	KPIBatches       prometheus.Counter
	KPITowers        prometheus.Histogram
	Incidents        *prometheus.CounterVec
	StreamSessions   prometheus.Gauge
	ActiveIncidents  prometheus.Gauge
	CachedQueries    prometheus.Gauge
}

// New registers the control plane metrics against reg, defaulting to the
// global registry when nil. Registering twice returns the existing collectors.
func New(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	m := &Metrics{gatherer: gatherer}
	var err error

	if m.HTTPRequests, err = registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "netimpact_http_requests_total",
		Help: "HTTP requests handled, labeled by route, method, and status code.",
	}, []string{"route", "method", "code"}), "netimpact_http_requests_total"); err != nil {
		return nil, err
	}
	if m.HTTPDuration, err = registerHistogramVec(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "netimpact_http_request_duration_seconds",
		Help:    "HTTP request latency in seconds.",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 5, 30},
	}, []string{"route"}), "netimpact_http_request_duration_seconds"); err != nil {
		return nil, err
	}
	if m.Analyses, err = registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "netimpact_analyses_total",
		Help: "Completed network impact analyses, labeled by whether the cache served them.",
	}, []string{"cached"}), "netimpact_analyses_total"); err != nil {
		return nil, err
	}
	if m.AnalysisDuration, err = registerHistogramVec(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "netimpact_analysis_duration_seconds",
		Help:    "Analysis latency in seconds, including the intelligence service call on a miss.",
		Buckets: []float64{0.01, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
	}, []string{"cached"}), "netimpact_analysis_duration_seconds"); err != nil {
		return nil, err
	}
	if m.AnalysisAreas, err = registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "netimpact_analysis_areas",
		Help:    "Affected areas returned per analysis after filtering.",
		Buckets: []float64{0, 1, 2, 5, 10, 20, 50},
	}), "netimpact_analysis_areas"); err != nil {
		return nil, err
	}
	if m.KPIBatches, err = registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "netimpact_kpi_batches_total",
		Help: "KPI batches served over HTTP or the live stream.",
	}), "netimpact_kpi_batches_total"); err != nil {
		return nil, err
	}
	if m.KPITowers, err = registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "netimpact_kpi_batch_towers",
		Help:    "Towers per KPI batch.",
		Buckets: prometheus.ExponentialBuckets(1, 4, 6),
	}), "netimpact_kpi_batch_towers"); err != nil {
		return nil, err
	}
	if m.Incidents, err = registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "netimpact_incidents_triggered_total",
		Help: "Simulated incidents triggered, labeled by type.",
	}, []string{"type"}), "netimpact_incidents_triggered_total"); err != nil {
		return nil, err
	}
	if m.StreamSessions, err = registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "netimpact_kpi_stream_sessions",
		Help: "Open live KPI stream sessions.",
	}), "netimpact_kpi_stream_sessions"); err != nil {
		return nil, err
	}
	if m.ActiveIncidents, err = registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "netimpact_active_incidents",
		Help: "Unexpired simulated incidents at the last maintenance run.",
	}), "netimpact_active_incidents"); err != nil {
		return nil, err
	}
	if m.CachedQueries, err = registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "netimpact_cached_queries",
		Help: "Questions with an unexpired cached analysis at the last maintenance run.",
	}), "netimpact_cached_queries"); err != nil {
		return nil, err
	}

	return m, nil
}

// Handler exposes a ready-to-use /metrics handler.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// ObserveAnalysis records one completed analysis.
func (m *Metrics) ObserveAnalysis(cached bool, events, areas int, d time.Duration) {
	if m == nil {
		return
	}
	label := strconv.FormatBool(cached)
	m.Analyses.WithLabelValues(label).Inc()
	m.AnalysisDuration.WithLabelValues(label).Observe(d.Seconds())
	m.AnalysisAreas.Observe(float64(areas))
}

// ObserveKPIBatch records one served KPI batch of n towers.
func (m *Metrics) ObserveKPIBatch(n int) {
	if m == nil {
		return
	}
	m.KPIBatches.Inc()
	m.KPITowers.Observe(float64(n))
}

// IncidentsTriggered counts n incidents of one type.
func (m *Metrics) IncidentsTriggered(incidentType string, n int) {
	if m == nil {
		return
	}
	m.Incidents.WithLabelValues(incidentType).Add(float64(n))
}

// SetActiveIncidents records the current incident count.
func (m *Metrics) SetActiveIncidents(n int) {
	if m == nil {
		return
	}
	m.ActiveIncidents.Set(float64(n))
}

// SetCachedQueries records the current cached query count.
func (m *Metrics) SetCachedQueries(n int) {
	if m == nil {
		return
	}
	m.CachedQueries.Set(float64(n))
}

// StreamOpened and StreamClosed track live stream sessions.
func (m *Metrics) StreamOpened() {
	if m != nil {
		m.StreamSessions.Inc()
	}
}

func (m *Metrics) StreamClosed() {
	if m != nil {
		m.StreamSessions.Dec()
	}
}

// Instrument wraps h with request counting and timing under route.
func (m *Metrics) Instrument(route string, h http.Handler) http.Handler {
	if m == nil {
		return h
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		h.ServeHTTP(sw, r)
		m.HTTPRequests.WithLabelValues(route, r.Method, strconv.Itoa(sw.status)).Inc()
		m.HTTPDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// statusWriter captures the response code. It passes Hijack through so the
// live stream can upgrade to a websocket.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	w.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogramVec(reg prometheus.Registerer, vec *prometheus.HistogramVec, name string) (*prometheus.HistogramVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogram(reg prometheus.Registerer, h prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(h); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return h, nil
}

func registerCounter(reg prometheus.Registerer, c prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return c, nil
}

func registerGauge(reg prometheus.Registerer, g prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(g); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return g, nil
}
