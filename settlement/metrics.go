package settlement

import (
	"github.com/ethereum/go-ethereum/metrics"
)

// providerMetrics are looked up when a Provider is built, so a process that
// enables metrics after package init still gets live meters.
type providerMetrics struct {
	updateAccepted metrics.Counter
	updateRejected metrics.Counter
	toL2Sent       metrics.Counter
	toL2Consumed   metrics.Counter
	toL1Registered metrics.Counter
	block          metrics.Gauge
}

func newProviderMetrics(r metrics.Registry) *providerMetrics {
	return &providerMetrics{
		updateAccepted: counter(r, "settlement/update/accepted"),
		updateRejected: counter(r, "settlement/update/rejected"),
		toL2Sent:       counter(r, "settlement/messages/tol2/sent"),
		toL2Consumed:   counter(r, "settlement/messages/tol2/consumed"),
		toL1Registered: counter(r, "settlement/messages/tol1/registered"),
		block:          gauge(r, "settlement/block"),
	}
}

// counter returns the meter registered under name. A no-op meter left by an
// earlier lookup is replaced once metrics are enabled.
func counter(r metrics.Registry, name string) metrics.Counter {
	c := metrics.GetOrRegisterCounter(name, r)
	if _, nop := c.(metrics.NilCounter); nop && metrics.Enabled {
		r.Unregister(name)
		c = metrics.GetOrRegisterCounter(name, r)
	}
	return c
}

func gauge(r metrics.Registry, name string) metrics.Gauge {
	g := metrics.GetOrRegisterGauge(name, r)
	if _, nop := g.(metrics.NilGauge); nop && metrics.Enabled {
		r.Unregister(name)
		g = metrics.GetOrRegisterGauge(name, r)
	}
	return g
}
