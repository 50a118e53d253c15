package observability

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMetricsCounters(t *testing.T) {
	m := NewMetrics()

	m.RecordRequest("/tickets", "GET", 200, 5*time.Millisecond)
	m.RecordRequest("/tickets", "GET", 200, 7*time.Millisecond)
	m.RecordRequest("/tickets/t1/reply", "POST", 201, time.Millisecond)
	m.RecordError("/tickets/t1/status", "POST", "VALIDATION_FAILED")

	requests := m.Requests()
	require.Equal(t, int64(2), requests["/tickets|GET|200"])
	require.Equal(t, int64(1), requests["/tickets/t1/reply|POST|201"])

	errors := m.Errors()
	require.Equal(t, int64(1), errors["/tickets/t1/status|POST|VALIDATION_FAILED"])
}

func TestMetricsNilReceiverIsSafe(t *testing.T) {
	var m *Metrics
	m.RecordRequest("/health/live", "GET", 200, 0)
	m.RecordError("/health/live", "GET", "INTERNAL_ERROR")
}
