package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func labelsOf(pairs map[string]string, got map[string]string) bool {
	for k, v := range pairs {
		if got[k] != v {
			return false
		}
	}
	return true
}

// value returns the counter or gauge value of the series matching labels.
func value(t *testing.T, m *Metrics, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := m.Registry().Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.GetMetric() {
			got := map[string]string{}
			for _, lp := range metric.GetLabel() {
				got[lp.GetName()] = lp.GetValue()
			}
			if !labelsOf(labels, got) {
				continue
			}
			if c := metric.GetCounter(); c != nil {
				return c.GetValue()
			}
			if g := metric.GetGauge(); g != nil {
				return g.GetValue()
			}
		}
	}
	return 0
}

func TestObserveCall(t *testing.T) {
	m := New()
	m.ObserveCall("health", 0, time.Millisecond)
	m.ObserveCall("health", 0, time.Millisecond)
	m.ObserveCall("", -32601, time.Millisecond)

	assert.Equal(t, 2.0, value(t, m, "plugin_rpc_requests_total", map[string]string{"method": "health", "code": "0"}))
	assert.Equal(t, 1.0, value(t, m, "plugin_rpc_requests_total", map[string]string{"method": "", "code": "-32601"}))
}

func TestInstancesGauge(t *testing.T) {
	m := New()
	m.InstanceStarted("kernel", "echo")
	m.InstanceStarted("kernel", "echo")
	m.InstanceStopped("kernel", "echo")

	assert.Equal(t, 1.0, value(t, m, "plugin_instances", map[string]string{"kind": "kernel", "class": "echo"}))
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.ObserveCall("health", 0, time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `plugin_rpc_requests_total{code="0",method="health"} 1`)
}
