package internal

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/2beens/wodcareer/internal/config"
	"github.com/2beens/wodcareer/internal/ledger"
	"github.com/2beens/wodcareer/internal/ledger/memstore"
	"github.com/2beens/wodcareer/internal/workouts"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const testToken = "test-session-token"

func newMemoryServer(t *testing.T) (*Server, *memstore.Store) {
	t.Helper()
	s, err := NewServer(context.Background(), NewServerParams{
		Config: &config.Config{
			Port:                        9000,
			StorageBackend:              config.StorageBackendMemory,
			ApplyRateLimitAllowedPerMin: 30,
		},
		VersionInfo: "test-version",
		DevSessions: map[string]int{testToken: 7},
	})
	require.NoError(t, err)
	require.Nil(t, s.authService)

	store, ok := s.store.(*memstore.Store)
	require.True(t, ok)
	return s, store
}

func doRequest(t *testing.T, h http.Handler, method, path, body string, authed bool) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("User-Agent", "test-agent")
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if authed {
		req.Header.Set("Authorization", "Bearer "+testToken)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestServer_Health(t *testing.T) {
	s, _ := newMemoryServer(t)
	router := s.routerSetup()

	rec := doRequest(t, router, "GET", "/health", "", false)
	require.Equal(t, http.StatusOK, rec.Code)

	var status map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "ok", status["status"])
	assert.Equal(t, "test-version", status["version"])
	assert.Equal(t, config.StorageBackendMemory, status["storage"])
}

func TestServer_AuthRequired(t *testing.T) {
	s, _ := newMemoryServer(t)
	router := s.routerSetup()

	for _, path := range []string{"/athlete/career", "/athlete/missions"} {
		rec := doRequest(t, router, "GET", path, "", false)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}
	rec := doRequest(t, router, "POST", "/athlete/workouts/1/apply-impact", "", false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestServer_ApplyAndSubmitFlow(t *testing.T) {
	s, store := newMemoryServer(t)
	router := s.routerSetup()

	load := 2000.0
	store.PutWorkout(workouts.Workout{
		ID:          5,
		Title:       "2k row",
		SessionLoad: "moderate",
		Blocks: []workouts.Block{{ID: 50, Position: 1, Movements: []workouts.Movement{
			{MovementID: 4, DistanceMeters: &load},
		}}},
	})
	store.PutAnalysis(ledger.Analysis{WorkoutID: 5, UserID: 7, Payload: map[string]any{"fatigue_score": 6}})

	rec := doRequest(t, router, "POST", "/athlete/workouts/404/apply-impact", "", true)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(t, router, "POST", "/athlete/workouts/5/apply-impact", `{"athlete_impact":{"resistance":12}}`, true)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var applied struct {
		Applied        bool               `json:"applied"`
		XPAwarded      int                `json:"xp_awarded"`
		UpdatedProfile map[string]float64 `json:"updated_profile"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &applied))
	assert.True(t, applied.Applied)
	assert.Positive(t, applied.XPAwarded)
	assert.Equal(t, 12.0, applied.UpdatedProfile["resistance"])

	rec = doRequest(t, router, "POST", "/athlete/workouts/5/result", `{"method":"total","total_time_sec":420}`, true)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = doRequest(t, router, "POST", "/athlete/workouts/5/result", `{"method":"by_blocks","block_times_sec":[100,200]}`, true)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = doRequest(t, router, "GET", "/athlete/career", "", true)
	require.Equal(t, http.StatusOK, rec.Code)
	var snap struct {
		XPTotal int `json:"xp_total"`
		Level   int `json:"level"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Positive(t, snap.XPTotal)

	rec = doRequest(t, router, "GET", "/athlete/missions", "", true)
	require.Equal(t, http.StatusOK, rec.Code)
	var missions []ledger.UserMission
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &missions))
	assert.Len(t, missions, 3)

	// apply and result share one execution
	assert.Len(t, store.Snapshot(7).Executions, 1)
}

func TestServer_ConnStateMetrics(t *testing.T) {
	s, _ := newMemoryServer(t)
	s.connStateMetrics(nil, http.StateNew)
	s.connStateMetrics(nil, http.StateNew)
	s.connStateMetrics(nil, http.StateClosed)
	s.connStateMetrics(nil, http.StateActive)

	mfs, err := s.promRegistry.Gather()
	require.NoError(t, err)
	value, found := gaugeValue(mfs, "wodcareer_engine_current_requests")
	require.True(t, found)
	assert.Equal(t, 1.0, value)
}

func gaugeValue(mfs []*dto.MetricFamily, name string) (float64, bool) {
	for _, mf := range mfs {
		if mf.GetName() != name || mf.GetType() != dto.MetricType_GAUGE || len(mf.GetMetric()) == 0 {
			continue
		}
		return mf.GetMetric()[0].GetGauge().GetValue(), true
	}
	return 0, false
}
