package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorExportsFanoutMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector("killrvideo", reg)

	c.ObserveWrite("add_video", "videos", "applied", 20*time.Millisecond)
	c.ObserveWrite("add_video", "videos_by_tag", "failed", 5*time.Millisecond)
	c.ObserveMutation("add_video", "partial")
	c.ObserveQuery("", "ok")

	mfs, err := reg.Gather()
	require.NoError(t, err)

	assert.Equal(t, 1.0, counterValue(t, mfs, "killrvideo_fanout_writes_total", "table", "videos_by_tag"))
	assert.Equal(t, 1.0, counterValue(t, mfs, "killrvideo_mutations_total", "result", "partial"))
	assert.Equal(t, 1.0, counterValue(t, mfs, "killrvideo_queries_total", "shape", "unknown"))
}

func TestNilCollectorIsSafe(t *testing.T) {
	var c *Collector
	assert.Nil(t, NewCollector("x", nil))
	assert.NotPanics(t, func() {
		c.ObserveWrite("m", "t", "applied", time.Second)
		c.ObserveMutation("m", "ok")
		c.ObserveQuery("s", "ok")
		c.ObserveHTTP("GET", "/", "200", time.Second)
	})
}

func counterValue(t *testing.T, mfs []*dto.MetricFamily, name, label, value string) float64 {
	t.Helper()
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == label && l.GetValue() == value {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	t.Fatalf("metric %s{%s=%q} not found", name, label, value)
	return 0
}
