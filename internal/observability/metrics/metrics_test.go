package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/payconiq-go/pkg/payconiq"
)

var _ payconiq.Metrics = (*ClientMetrics)(nil)

func TestClientMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewClientMetrics(reg)
	m.ObserveOperation("create_payment", OutcomeSuccess)
	m.ObserveOperation("create_payment", OutcomeSuccess)
	m.ObserveOperation("create_payment", OutcomeRejected)
	m.ObserveRequestLatency("create_payment", 0.25)
	m.ObserveSearchPage()

	families, err := reg.Gather()
	require.NoError(t, err)

	byName := map[string]*dto.MetricFamily{}
	for _, f := range families {
		byName[f.GetName()] = f
	}

	requests := byName["payconiq_client_requests_total"]
	require.NotNil(t, requests)
	counts := map[string]float64{}
	for _, metric := range requests.GetMetric() {
		for _, label := range metric.GetLabel() {
			if label.GetName() == "outcome" {
				counts[label.GetValue()] = metric.GetCounter().GetValue()
			}
		}
	}
	assert.Equal(t, 2.0, counts[OutcomeSuccess])
	assert.Equal(t, 1.0, counts[OutcomeRejected])

	latency := byName["payconiq_client_request_duration_seconds"]
	require.NotNil(t, latency)
	assert.Equal(t, uint64(1), latency.GetMetric()[0].GetHistogram().GetSampleCount())

	pages := byName["payconiq_client_search_pages_total"]
	require.NotNil(t, pages)
	assert.Equal(t, 1.0, pages.GetMetric()[0].GetCounter().GetValue())
}

func TestClientMetricsNilSafe(t *testing.T) {
	var m *ClientMetrics
	m.ObserveOperation("create_payment", OutcomeSuccess)
	m.ObserveRequestLatency("create_payment", 0.1)
	m.ObserveSearchPage()
}
