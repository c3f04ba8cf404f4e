package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestClassifyStatus(t *testing.T) {
	assert.Equal(t, "2xx", classifyStatus(201))
	assert.Equal(t, "3xx", classifyStatus(304))
	assert.Equal(t, "4xx", classifyStatus(422))
	assert.Equal(t, "5xx", classifyStatus(503))
	assert.Equal(t, "unknown", classifyStatus(99))
}

func TestRecordRequestCountsByClass(t *testing.T) {
	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("POST", "/api/v1/requirements", "2xx"))
	RecordRequest("POST", "/api/v1/requirements", 201, 15*time.Millisecond)
	RecordRequest("POST", "/api/v1/requirements", 200, 5*time.Millisecond)

	after := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("POST", "/api/v1/requirements", "2xx"))
	assert.Equal(t, before+2, after)
}

func TestDomainCounters(t *testing.T) {
	RecordNegotiationTransition("accepted")
	assert.GreaterOrEqual(t, testutil.ToFloat64(negotiationTransitions.WithLabelValues("accepted")), 1.0)

	RecordOutbox("quota.created", false)
	assert.GreaterOrEqual(t, testutil.ToFloat64(outboxEvents.WithLabelValues("quota.created", "error")), 1.0)

	RecordNotification("payment.saved", true)
	assert.GreaterOrEqual(t, testutil.ToFloat64(notificationsTotal.WithLabelValues("payment.saved", "ok")), 1.0)
}
