// Package metrics defines the prometheus collectors for the data layer:
// cache effectiveness, offline queue depth, and import outcomes.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Set struct {
	registry *prometheus.Registry

	CacheHits   *prometheus.CounterVec
	CacheMisses *prometheus.CounterVec
	QueueDepth  prometheus.Gauge
}

func New() *Set {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	s := &Set{
		registry: reg,
		CacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gym_cache_hits_total",
			Help: "Snapshot cache hits per collection.",
		}, []string{"collection"}),
		CacheMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gym_cache_misses_total",
			Help: "Snapshot cache misses (loader runs) per collection.",
		}, []string{"collection"}),
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gym_offline_queue_depth",
			Help: "Pending operations in the offline replay queue.",
		}),
	}
	reg.MustRegister(s.CacheHits, s.CacheMisses, s.QueueDepth)
	return s
}

// Handler serves the /metrics endpoint.
func (s *Set) Handler() http.Handler {
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})
}
