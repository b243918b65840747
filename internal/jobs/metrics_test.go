package jobmetrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestJobRunRecordsOutcome(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	assert.NoError(t, m.Start("ledger:mirror_repair").Finish(nil))
	boom := errors.New("boom")
	assert.ErrorIs(t, m.Start("ledger:mirror_repair").Finish(boom), boom)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("ledger:mirror_repair", OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("ledger:mirror_repair", OutcomeFailure)))
	assert.Greater(t, testutil.ToFloat64(m.lastSuccess.WithLabelValues("ledger:mirror_repair")), 0.0)
}

func TestSkippedRunLeavesLastSuccessAlone(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	run := m.Start("ledger:mirror_repair")
	run.Skip()
	assert.NoError(t, run.Finish(nil))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("ledger:mirror_repair", OutcomeSkipped)))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.lastSuccess.WithLabelValues("ledger:mirror_repair")))
	assert.Equal(t, 0, testutil.CollectAndCount(m.duration))
}

func TestMirrorSweepCountsIssues(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.MirrorSweep(2, 0, 1)
	m.MirrorSweep(1, 0, 0)

	assert.Equal(t, 3.0, testutil.ToFloat64(m.mirrors.WithLabelValues("missing")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.mirrors.WithLabelValues("repaired")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.mirrors))

	var nilMetrics *Metrics
	nilMetrics.MirrorSweep(1, 1, 1)
	assert.NoError(t, nilMetrics.Start("x").Finish(nil))
}

func TestUnregisteredMetricsStillRecord(t *testing.T) {
	m := NewMetrics(nil)
	assert.NoError(t, m.Start("ledger:balances_warmup").Finish(nil))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("ledger:balances_warmup", OutcomeSuccess)))
}
