package ringhash

import "github.com/prometheus/client_golang/prometheus"

type metrics struct {
	nodes          prometheus.Gauge
	virtualNodes   prometheus.Gauge
	replicas       prometheus.Gauge
	assignments    *prometheus.CounterVec
	rebuildLatency prometheus.Histogram
}

var _ prometheus.Collector = (*metrics)(nil)

func newMetrics(o Options) *metrics {
	var m metrics

	m.nodes = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "ringhash_nodes",
		Help: "Current number of nodes in the ring",
	})
	m.virtualNodes = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "ringhash_virtual_nodes",
		Help: "Current number of virtual nodes in the ring",
	})
	m.replicas = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "ringhash_replicas",
		Help: "Number of virtual nodes created for each node",
	})
	m.assignments = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ringhash_assignments_total",
		Help: "Total number of key assignments. result will be one of: success or error_empty.",
	}, []string{"result"})
	m.rebuildLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "ringhash_rebuild_duration_seconds",
		Help:    "Histogram of the time taken to rebuild the sorted ring after a change",
		Buckets: prometheus.DefBuckets,
	})

	// Set constants
	m.replicas.Set(float64(o.Replicas))

	return &m
}

func (m *metrics) observeState(s *state) {
	m.nodes.Set(float64(len(s.nodes)))
	m.virtualNodes.Set(float64(len(s.vnodes)))
}

func (m *metrics) Describe(ch chan<- *prometheus.Desc) {
	m.nodes.Describe(ch)
	m.virtualNodes.Describe(ch)
	m.replicas.Describe(ch)
	m.assignments.Describe(ch)
	m.rebuildLatency.Describe(ch)
}

func (m *metrics) Collect(ch chan<- prometheus.Metric) {
	m.nodes.Collect(ch)
	m.virtualNodes.Collect(ch)
	m.replicas.Collect(ch)
	m.assignments.Collect(ch)
	m.rebuildLatency.Collect(ch)
}
