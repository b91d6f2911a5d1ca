package prometheus

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/metrics"
	"github.com/stretchr/testify/require"
)

func TestConvertToPrometheusMetric(t *testing.T) {
	for _, m := range []interface{}{
		metrics.NewCounterForced(),
		new(metrics.StandardGauge),
		new(metrics.StandardGaugeFloat64),
		metrics.NewMeterForced(),
		metrics.NewTimer(),
		metrics.NewHistogram(metrics.NewUniformSample(16)),
	} {
		c, ok := convertToPrometheusMetric("settlement/test", m)
		require.True(t, ok, "%T", m)
		require.NotNil(t, c)
	}

	_, ok := convertToPrometheusMetric("settlement/test", struct{}{})
	require.False(t, ok)

	require.Equal(t, "settlement_update_accepted", promName("settlement/update.accepted"))
}

func TestHandlerExportsRegistry(t *testing.T) {
	reg := metrics.NewRegistry()
	counter := metrics.NewCounterForced()
	require.NoError(t, reg.Register("settlement/messages/sent", counter))
	gauge := new(metrics.StandardGauge)
	require.NoError(t, reg.Register("settlement/state/block", gauge))
	require.NoError(t, reg.Register("settlement/ignored", struct{}{}))

	h := Handler(reg)
	counter.Inc(3)
	gauge.Update(42)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	require.Contains(t, body, "settlement_messages_sent 3")
	require.Contains(t, body, "settlement_state_block 42")
	require.NotContains(t, body, "settlement_ignored")
}
