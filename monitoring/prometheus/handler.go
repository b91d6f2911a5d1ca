package prometheus

import (
	"net/http"

	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var logger = log.New("module", "prometheus")

// Handler exports every metric of reg at scrape time.
func Handler(reg metrics.Registry) http.Handler {
	if reg == nil {
		reg = metrics.DefaultRegistry
	}
	registry := prometheus.NewRegistry()
	reg.Each(func(name string, metric interface{}) {
		collect(registry, name, metric)
	})
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

// PrometheusListener serves prometheus connections on endpoint until srv is closed.
func PrometheusListener(endpoint string, reg metrics.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(reg))
	srv := &http.Server{Addr: endpoint, Handler: mux}

	go func() {
		logger.Info("Metrics server starts", "endpoint", endpoint)
		defer logger.Info("Metrics server is stopped")

		err := srv.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			logger.Warn("Metrics server", "err", err)
		}
	}()
	return srv
}

func collect(registry prometheus.Registerer, name string, metric interface{}) {
	collector, ok := convertToPrometheusMetric(name, metric)
	if !ok {
		return
	}

	err := registry.Register(collector)
	if err != nil {
		switch err.(type) {
		case prometheus.AlreadyRegisteredError:
			return
		default:
			logger.Warn(err.Error())
		}
	}
}
