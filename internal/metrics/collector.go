// Package metrics exposes Prometheus instrumentation for divide calls.
// A nil *Collector is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// OutcomeOK labels successful calls; failures are labelled with their error kind.
const OutcomeOK = "ok"

type Collector struct {
	callsTotal   *prometheus.CounterVec
	callDuration *prometheus.HistogramVec
	namesTotal   *prometheus.CounterVec
	inflight     prometheus.Gauge
	chunksTotal  prometheus.Counter
}

// NewCollector registers the collector's metrics on reg. Registering twice on
// the same registerer fails, so tests should use a fresh prometheus.NewRegistry.
func NewCollector(namespace string, reg prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		callsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "divide_calls_total",
				Help:      "Total number of divide calls by mode and outcome",
			},
			[]string{"mode", "outcome"},
		),
		callDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "divide_call_duration_seconds",
				Help:      "Divide call duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"mode"},
		),
		namesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "divide_names_total",
				Help:      "Total number of names successfully divided",
			},
			[]string{"mode"},
		),
		inflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "divide_inflight",
			Help:      "Divide calls currently in flight",
		}),
		chunksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batch_chunks_total",
			Help:      "Total number of batch chunks dispatched",
		}),
	}

	for _, collector := range []prometheus.Collector{
		c.callsTotal, c.callDuration, c.namesTotal, c.inflight, c.chunksTotal,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// CallStarted marks one call in flight and returns the function that records
// its completion.
func (c *Collector) CallStarted(mode string) func(outcome string, names int) {
	if c == nil {
		return func(string, int) {}
	}
	start := time.Now()
	c.inflight.Inc()
	return func(outcome string, names int) {
		c.inflight.Dec()
		c.callDuration.WithLabelValues(mode).Observe(time.Since(start).Seconds())
		c.callsTotal.WithLabelValues(mode, outcome).Inc()
		if outcome == OutcomeOK {
			c.namesTotal.WithLabelValues(mode).Add(float64(names))
		}
	}
}

func (c *Collector) ChunkDispatched() {
	if c == nil {
		return
	}
	c.chunksTotal.Inc()
}
