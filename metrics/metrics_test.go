package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func TestNewRegistersAllCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.MaintainerInvocations.WithLabelValues("byCity", "value").Inc()
	m.PlannerCacheHits.Inc()
	m.IndexBuildProgress.WithLabelValues("byCity").Set(0.5)

	families, err := reg.Gather()
	require.NoError(t, err)

	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	require.True(t, names["fdbrecord_maintainer_invocations_total"])
	require.True(t, names["fdbrecord_planner_cache_hits_total"])
	require.True(t, names["fdbrecord_online_index_progress_ratio"])
}

func TestIndexBuildProgressReflectsLastSetValue(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.IndexBuildProgress.WithLabelValues("byTag").Set(0.75)

	var metric dto.Metric
	require.NoError(t, m.IndexBuildProgress.WithLabelValues("byTag").Write(&metric))
	require.Equal(t, 0.75, metric.GetGauge().GetValue())
}
