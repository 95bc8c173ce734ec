package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecorderCounts(t *testing.T) {
	r := New(prometheus.NewRegistry())

	r.RecordThrottle("admitted")
	r.RecordThrottle("admitted")
	r.RecordThrottle("suppressed")
	r.RecordDecision("price", "threshold_met")
	r.RecordDelivery("push", "failed")

	assert.Equal(t, 2.0, testutil.ToFloat64(r.throttle.WithLabelValues("admitted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.throttle.WithLabelValues("suppressed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.decisions.WithLabelValues("price", "threshold_met")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.deliveries.WithLabelValues("push", "failed")))
}

func TestNewOnSeparateRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		New(prometheus.NewRegistry())
		New(prometheus.NewRegistry())
	})
}
