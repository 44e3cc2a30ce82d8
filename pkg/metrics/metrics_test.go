package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestViewEventsCounter(t *testing.T) {
	before := testutil.ToFloat64(ViewEvents.WithLabelValues("metrics-test", "add"))
	ViewEvents.WithLabelValues("metrics-test", "add").Inc()
	after := testutil.ToFloat64(ViewEvents.WithLabelValues("metrics-test", "add"))

	assert.Equal(t, before+1, after)
}

func TestHandlerExposesConsoleMetrics(t *testing.T) {
	SessionChecks.WithLabelValues("valid").Inc()

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	require.Equal(t, 200, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "console_session_checks_total"))
}

func TestTimer(t *testing.T) {
	timer := NewTimer()
	assert.GreaterOrEqual(t, timer.Stop().Nanoseconds(), int64(0))
}
