package kpisync

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Trigger outcomes, used as the "outcome" metric label.
const (
	OutcomeDispatched Outcome = "dispatched"
	OutcomeThrottled  Outcome = "throttled"
	OutcomeInFlight   Outcome = "in_flight"
	OutcomeEmpty      Outcome = "empty"
	OutcomeClosed     Outcome = "closed"
)

// Outcome is what happened to one viewport trigger.
type Outcome string

// Metrics bundles the Prometheus collectors for KPI synchronisation.
type Metrics struct {
	Triggers      *prometheus.CounterVec
	Fetches       *prometheus.CounterVec
	FetchDuration *prometheus.HistogramVec
	StoreTowers   prometheus.Gauge
}

// NewMetrics registers the KPI sync metrics against reg, defaulting to the
// global registry when nil. Registering twice returns the existing collectors.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	triggers, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "kpisync_viewport_triggers_total",
		Help: "Viewport triggers seen by the KPI sync controller, labeled by outcome.",
	}, []string{"outcome"}), "kpisync_viewport_triggers_total")
	if err != nil {
		return nil, err
	}

	fetches, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "kpisync_fetches_total",
		Help: "KPI fetches, labeled by path (batch or poll) and result.",
	}, []string{"path", "result"}), "kpisync_fetches_total")
	if err != nil {
		return nil, err
	}

	durations, err := registerHistogramVec(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "kpisync_fetch_duration_seconds",
		Help:    "KPI fetch latency in seconds.",
		Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	}, []string{"path"}), "kpisync_fetch_duration_seconds")
	if err != nil {
		return nil, err
	}

	towers := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "kpisync_store_towers",
		Help: "Number of towers with a KPI snapshot in the store.",
	})
	if err := reg.Register(towers); err != nil {
		are, ok := err.(prometheus.AlreadyRegisteredError)
		if !ok {
			return nil, err
		}
		existing, ok := are.ExistingCollector.(prometheus.Gauge)
		if !ok {
			return nil, fmt.Errorf("collector kpisync_store_towers already registered with incompatible type")
		}
		towers = existing
	}

	return &Metrics{
		Triggers:      triggers,
		Fetches:       fetches,
		FetchDuration: durations,
		StoreTowers:   towers,
	}, nil
}

func (m *Metrics) trigger(o Outcome) {
	if m == nil {
		return
	}
	m.Triggers.WithLabelValues(string(o)).Inc()
}

func (m *Metrics) fetch(path string, ok bool, seconds float64, storeLen int) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	m.Fetches.WithLabelValues(path, result).Inc()
	m.FetchDuration.WithLabelValues(path).Observe(seconds)
	m.StoreTowers.Set(float64(storeLen))
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
