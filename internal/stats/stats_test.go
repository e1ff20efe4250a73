package stats

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewStatsUpdater(t *testing.T) {
	mux := http.NewServeMux()
	su := NewStatsUpdater(mux)
	assert.NotNil(t, su, "expected StatsUpdater to be non-nil")
	assert.NotNil(t, su.updateChan, "expected updateChan to be initialized")
	handler, pattern := mux.Handler(&http.Request{URL: &url.URL{Path: "/debug/vars"}, Method: http.MethodGet})
	assert.NotNil(t, handler, "expected handler for /debug/vars to be set")
	assert.Equal(t, "GET /debug/vars", pattern, "expected handler to be registered for GET method on /debug/vars")
}

func TestStatsUpdater_counters(t *testing.T) {
	mux := http.NewServeMux()
	su := NewStatsUpdater(mux)
	su.RegisterMetric(MetricMessagesSent)
	su.RegisterFunc(MetricActiveSessions, func() any { return 3 })
	su.Run()
	defer su.Stop()

	su.Incr(MetricMessagesSent)
	su.Incr(MetricMessagesSent)
	su.Decr(MetricMessagesSent)

	assert.Eventually(t, func() bool {
		return su.vars.Get(MetricMessagesSent).String() == "1"
	}, time.Second, 10*time.Millisecond, "expected counter to reach 1")

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/debug/vars", nil))
	assert.Equal(t, http.StatusOK, rr.Code, "expected status code to be 200")

	var body map[string]any
	assert.NoError(t, json.NewDecoder(rr.Body).Decode(&body), "expected valid json body")
	assert.Equal(t, float64(1), body[MetricMessagesSent], "expected counter in response")
	assert.Equal(t, float64(3), body[MetricActiveSessions], "expected func metric in response")
	assert.Contains(t, body, "Uptime", "expected uptime metric in response")
}
