package prometheus

import (
	"strings"

	"github.com/ethereum/go-ethereum/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

var nameReplacer = strings.NewReplacer("/", "_", ".", "_", "-", "_", " ", "_")

func promName(name string) string {
	return nameReplacer.Replace(name)
}

// convertToPrometheusMetric wraps a go-ethereum metric into a collector that
// reads the live value on every scrape. Unsupported kinds return false.
func convertToPrometheusMetric(name string, m interface{}) (prometheus.Collector, bool) {
	name = promName(name)
	counter := func(f func() float64) prometheus.Collector {
		return prometheus.NewCounterFunc(prometheus.CounterOpts{Name: name, Help: name}, f)
	}
	gauge := func(f func() float64) prometheus.Collector {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{Name: name, Help: name}, f)
	}

	switch metric := m.(type) {
	case metrics.Counter:
		return counter(func() float64 { return float64(metric.Count()) }), true
	case metrics.Gauge:
		return gauge(func() float64 { return float64(metric.Value()) }), true
	case metrics.GaugeFloat64:
		return gauge(metric.Value), true
	case metrics.Meter:
		return counter(func() float64 { return float64(metric.Count()) }), true
	case metrics.Timer:
		return newSummary(name, func() sample { return metric.Snapshot() }), true
	case metrics.Histogram:
		return newSummary(name, func() sample { return metric.Snapshot() }), true
	}
	return nil, false
}

var quantiles = []float64{0.5, 0.9, 0.99}

type sample interface {
	Count() int64
	Sum() int64
	Percentiles([]float64) []float64
}

// summary exports a sampled metric as a prometheus summary.
type summary struct {
	desc     *prometheus.Desc
	snapshot func() sample
}

func newSummary(name string, snapshot func() sample) *summary {
	return &summary{
		desc:     prometheus.NewDesc(name, name, nil, nil),
		snapshot: snapshot,
	}
}

func (s *summary) Describe(ch chan<- *prometheus.Desc) {
	ch <- s.desc
}

func (s *summary) Collect(ch chan<- prometheus.Metric) {
	snap := s.snapshot()
	ps := snap.Percentiles(quantiles)
	q := make(map[float64]float64, len(quantiles))
	for i, v := range quantiles {
		q[v] = ps[i]
	}
	m, err := prometheus.NewConstSummary(s.desc, uint64(snap.Count()), float64(snap.Sum()), q)
	if err != nil {
		logger.Warn("Failed to export summary", "err", err)
		return
	}
	ch <- m
}
