package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCountersRecord(t *testing.T) {
	t.Parallel()
	m := New(prometheus.NewRegistry())

	m.IncrementReceived("text")
	m.IncrementReceived("text")
	m.IncrementIgnored("no_session")
	m.IncrementSubmission("singer", "created")
	m.AddExpired(3)
	m.AddExpired(0)
	m.ObserveIngest("audio", 200*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.EventsReceived.WithLabelValues("text")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EventsIgnored.WithLabelValues("no_session")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Submissions.WithLabelValues("singer", "created")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.SessionsExpired))
}

func TestNilMetricsIsNoop(t *testing.T) {
	t.Parallel()
	var m *Metrics
	m.IncrementReceived("text")
	m.IncrementIgnored("modality")
	m.IncrementRejection("phone", "invalid")
	m.IncrementSubmission("mission", "failed")
	m.AddExpired(1)
	m.ObserveIngest("photo", time.Second)
}
