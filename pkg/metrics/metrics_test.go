package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RegistersAllCollectorsWithoutPanic(t *testing.T) {
	reg := prometheus.NewRegistry()
	assert.NotPanics(t, func() { New(reg) })
}

func TestQuotesRequested_IncrementsPerDirection(t *testing.T) {
	c := New(nil)
	c.QuotesRequested.WithLabelValues("ToBTC").Inc()
	c.QuotesRequested.WithLabelValues("ToBTC").Inc()
	c.QuotesRequested.WithLabelValues("FromBTC").Inc()

	var m dto.Metric
	require.NoError(t, c.QuotesRequested.WithLabelValues("ToBTC").Write(&m))
	assert.Equal(t, float64(2), m.GetCounter().GetValue())
}

func TestInFlightSwaps_GaugeTracksSetValue(t *testing.T) {
	c := New(nil)
	c.InFlightSwaps.Set(3)

	var m dto.Metric
	require.NoError(t, c.InFlightSwaps.Write(&m))
	assert.Equal(t, float64(3), m.GetGauge().GetValue())
}
