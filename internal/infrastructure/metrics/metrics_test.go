package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCountersRecord(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.OrderTransition("Pending", "Posted")
	m.OrderTransition("Pending", "Posted")
	m.ImportRows("members", "upserted", 3)
	m.ExportBranch("placeholder")

	if got := testutil.ToFloat64(m.orderTransitions.WithLabelValues("Pending", "Posted")); got != 2 {
		t.Errorf("transitions = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.importRows.WithLabelValues("members", "upserted")); got != 3 {
		t.Errorf("import rows = %v, want 3", got)
	}
	if got := testutil.ToFloat64(m.exportBranches.WithLabelValues("placeholder")); got != 1 {
		t.Errorf("export branches = %v, want 1", got)
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.OrderTransition("Pending", "Posted")
	m.ImportRows("items", "skipped", 1)
	m.ExportAttempt("ok")
	m.ExportBranch("ok")
}
