package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegister(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.CheckIns.Inc()
	m.QueueLength.Set(3)
	m.Requests.WithLabelValues("GET", "/healthz", "200").Inc()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.CheckIns))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.QueueLength))

	n, err := testutil.GatherAndCount(reg, "halaqa_http_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestDoubleRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)
	assert.Panics(t, func() { New(reg) })
}
