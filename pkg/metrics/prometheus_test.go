package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecorderCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewWithRegisterer(reg)

	r.RecordDecision("central_bank", "ok")
	r.RecordDecision("central_bank", "ok")
	r.RecordDecision("big_bank", "retry")
	r.RecordRoundCommitted("sequential")
	r.RecordSeriesValue("inflation_rate", 0.031)
	r.RecordError("sink_csv")

	assert.Equal(t, 2.0, testutil.ToFloat64(r.decisions.WithLabelValues("central_bank", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.decisions.WithLabelValues("big_bank", "retry")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.rounds.WithLabelValues("sequential")))
	assert.Equal(t, 0.031, testutil.ToFloat64(r.seriesValue.WithLabelValues("inflation_rate")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.errorsTotal.WithLabelValues("sink_csv")))
}
