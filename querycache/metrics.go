package querycache

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	lookupFresh = "fresh"
	lookupStale = "stale"
	lookupMiss  = "miss"
)

type metrics struct {
	lookups *prometheus.CounterVec
	fetches *prometheus.CounterVec
	entries prometheus.Gauge
}

func newMetrics(reg prometheus.Registerer) *metrics {
	if reg == nil {
		return nil
	}
	m := &metrics{
		lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dropzone_cache_lookups_total",
			Help: "Query cache lookups by outcome.",
		}, []string{"outcome"}),
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dropzone_cache_fetches_total",
			Help: "Network fetches started by the query cache, by result.",
		}, []string{"result"}),
		entries: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dropzone_cache_entries",
			Help: "Entries currently held by the query cache.",
		}),
	}
	m.lookups = register(reg, m.lookups)
	m.fetches = register(reg, m.fetches)
	m.entries = register(reg, m.entries)
	return m
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(C); ok {
				return existing
			}
		}
	}
	return c
}

func (m *metrics) lookup(outcome string) {
	if m == nil {
		return
	}
	m.lookups.WithLabelValues(outcome).Inc()
}

func (m *metrics) fetched(err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.fetches.WithLabelValues(result).Inc()
}

func (m *metrics) size(n int) {
	if m == nil {
		return
	}
	m.entries.Set(float64(n))
}
