package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecorderCounts(t *testing.T) {
	r := NewRecorder()

	r.Approval("recorded", time.Now())
	r.Approval("recorded", time.Now())
	r.Approval("forbidden", time.Now())
	r.Transition("automatic")
	r.Decision("VIEW", false)
	r.OverridesExpired(3)
	r.OverridesExpired(0)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.approvals.WithLabelValues("recorded")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.approvals.WithLabelValues("forbidden")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.transitions.WithLabelValues("automatic")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.decisions.WithLabelValues("VIEW", "deny")))
	assert.Equal(t, 3.0, testutil.ToFloat64(r.sweptOverrides))
}

func TestNilRecorderIsSafe(t *testing.T) {
	var r *Recorder
	assert.NotPanics(t, func() {
		r.Approval("recorded", time.Now())
		r.Transition("manual")
		r.Decision("EDIT", true)
		r.InvariantViolation()
		r.SubscriberDelta(1)
	})
}
