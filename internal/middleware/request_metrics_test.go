package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/2beens/wodcareer/internal/middleware"
	"github.com/2beens/wodcareer/internal/telemetry/metrics"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestMetricsAndLogging(t *testing.T) {
	m, reg := metrics.NewTestManagerAndRegistry()

	r := mux.NewRouter()
	r.HandleFunc("/athlete/workouts/{workoutId}/result", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}).Methods("POST")
	r.Use(middleware.LogRequest(), middleware.RequestMetrics(m))

	req := httptest.NewRequest("POST", "/athlete/workouts/12/result", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	require.Equal(t, http.StatusCreated, rr.Code)

	_, err := uuid.Parse(rr.Header().Get(middleware.RequestIDHeader))
	assert.NoError(t, err, "a request id is generated")

	assert.Equal(t, float64(1), testutil.ToFloat64(m.CounterRequests.WithLabelValues("POST", "201")))
	assert.Equal(t, float64(0), testutil.ToFloat64(m.GaugeRequests))
	count, err := testutil.GatherAndCount(reg, "wodcareer_test_server_request_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	// a valid caller id is kept
	id := uuid.NewString()
	req = httptest.NewRequest("POST", "/athlete/workouts/12/result", nil)
	req.Header.Set(middleware.RequestIDHeader, id)
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	assert.Equal(t, id, rr.Header().Get(middleware.RequestIDHeader))
}

func TestDrainAndCloseRequest(t *testing.T) {
	called := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	})
	req := httptest.NewRequest("POST", "/", nil)
	middleware.DrainAndCloseRequest()(next).ServeHTTP(httptest.NewRecorder(), req)
	assert.True(t, called)
}
