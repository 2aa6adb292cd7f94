package metrics_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/chatrelay/internal/chat"
	"github.com/Tyrowin/chatrelay/internal/metrics"
)

var _ chat.Metrics = (*metrics.Metrics)(nil)

func scrape(t *testing.T, m *metrics.Metrics) map[string]*dto.MetricFamily {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))
	require.Equal(t, http.StatusOK, rec.Code)

	var parser expfmt.TextParser
	families, err := parser.TextToMetricFamilies(rec.Body)
	require.NoError(t, err)
	return families
}

func TestConnectionCounters(t *testing.T) {
	m := metrics.New()
	m.ConnectionOpened()
	m.ConnectionOpened()
	m.ConnectionOpened()
	m.ConnectionClosed()

	families := scrape(t, m)

	accepted := families["ws_server_new_connections_total"]
	require.NotNil(t, accepted)
	assert.Equal(t, dto.MetricType_COUNTER, accepted.GetType())
	assert.Equal(t, 3.0, accepted.GetMetric()[0].GetCounter().GetValue())

	open := families["ws_server_connections_total"]
	require.NotNil(t, open)
	assert.Equal(t, dto.MetricType_GAUGE, open.GetType())
	assert.Equal(t, 2.0, open.GetMetric()[0].GetGauge().GetValue())
}

func TestFrameAndFailureCounters(t *testing.T) {
	m := metrics.New()
	m.EventHandled("chat")
	m.EventHandled("chat")
	m.EventHandled("raw")
	m.SendFailed(4)

	families := scrape(t, m)

	frames := families["chatrelay_frames_total"]
	require.NotNil(t, frames)
	byEvent := map[string]float64{}
	for _, metric := range frames.GetMetric() {
		for _, label := range metric.GetLabel() {
			if label.GetName() == "event" {
				byEvent[label.GetValue()] = metric.GetCounter().GetValue()
			}
		}
	}
	assert.Equal(t, map[string]float64{"chat": 2, "raw": 1}, byEvent)

	failures := families["chatrelay_send_failures_total"]
	require.NotNil(t, failures)
	assert.Equal(t, 4.0, failures.GetMetric()[0].GetCounter().GetValue())
}

func TestRuntimeCollectorsRegistered(t *testing.T) {
	families := scrape(t, metrics.New())
	assert.Contains(t, families, "go_goroutines")
}
