//go:build integration_test || all_tests

package test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/2beens/wodcareer/internal/apply"
	"github.com/2beens/wodcareer/internal/career"
	"github.com/2beens/wodcareer/internal/ledger"

	"github.com/brianvoe/gofakeit/v6"
)

// newAthlete opens a redis session for a fresh athlete id.
func (s *IntegrationTestSuite) newAthlete() (int, string) {
	athleteID := gofakeit.Number(1_000, 1_000_000_000)
	token, err := s.sessions.Open(context.Background(), athleteID)
	s.Require().NoError(err)
	return athleteID, token
}

func (s *IntegrationTestSuite) insertWorkout(sessionLoad string, blocks int) (workoutID int, blockIDs []int) {
	r := s.Require()
	r.NoError(s.DB.QueryRow(
		`INSERT INTO workouts (title, domain) VALUES ($1, 'metcon') RETURNING id`,
		gofakeit.Sentence(2),
	).Scan(&workoutID))
	if sessionLoad != "" {
		_, err := s.DB.Exec(`INSERT INTO workout_metadata (workout_id, session_load) VALUES ($1, $2)`, workoutID, sessionLoad)
		r.NoError(err)
	}

	for position := 1; position <= blocks; position++ {
		var movementID, blockID int
		r.NoError(s.DB.QueryRow(`INSERT INTO movements (name) VALUES ($1) RETURNING id`, gofakeit.HipsterWord()).Scan(&movementID))
		r.NoError(s.DB.QueryRow(
			`INSERT INTO workout_blocks (workout_id, position, title) VALUES ($1, $2, $3) RETURNING id`,
			workoutID, position, fmt.Sprintf("block %d", position),
		).Scan(&blockID))
		_, err := s.DB.Exec(
			`INSERT INTO workout_block_movements (block_id, movement_id, position, reps) VALUES ($1, $2, 1, $3)`,
			blockID, movementID, gofakeit.Number(10, 50),
		)
		r.NoError(err)
		blockIDs = append(blockIDs, blockID)
	}
	return workoutID, blockIDs
}

func (s *IntegrationTestSuite) insertAnalysis(workoutID, athleteID int, payload string) int {
	var id int
	s.Require().NoError(s.DB.QueryRow(
		`INSERT INTO workout_analysis (workout_id, user_id, analysis_json) VALUES ($1, $2, $3) RETURNING id`,
		workoutID, athleteID, payload,
	).Scan(&id))
	return id
}

func (s *IntegrationTestSuite) do(method, path, token string, body any, out any) int {
	r := s.Require()

	var reqBody io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		r.NoError(err)
		reqBody = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, serverEndpoint+path, reqBody)
	r.NoError(err)
	req.Header.Set("User-Agent", "test-agent")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	r.NoError(err)
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	r.NoError(err)
	if out != nil && resp.StatusCode < 300 {
		r.NoError(json.Unmarshal(respBytes, out), string(respBytes))
	}
	return resp.StatusCode
}

// postApply is safe to call off the test goroutine; failures show up as a
// zero status code.
func postApply(path, token string, analysisID int) (status, xp int) {
	body, err := json.Marshal(map[string]any{"analysis_id": analysisID})
	if err != nil {
		return 0, 0
	}
	req, err := http.NewRequest("POST", serverEndpoint+path, bytes.NewReader(body))
	if err != nil {
		return 0, 0
	}
	req.Header.Set("User-Agent", "test-agent")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return 0, 0
	}
	defer resp.Body.Close()

	var applied apply.ImpactResponse
	if err := json.NewDecoder(resp.Body).Decode(&applied); err != nil {
		return resp.StatusCode, 0
	}
	return resp.StatusCode, applied.XPAwarded
}

func (s *IntegrationTestSuite) TestHealth() {
	var status map[string]string
	s.Equal(http.StatusOK, s.do("GET", "/health", "", nil, &status))
	s.Equal("ok", status["status"])
	s.Equal("postgres", status["storage"])
}

func (s *IntegrationTestSuite) TestSessions() {
	s.Equal(http.StatusUnauthorized, s.do("GET", "/athlete/career", "", nil, nil))
	s.Equal(http.StatusUnauthorized, s.do("GET", "/athlete/career", "not-a-session", nil, nil))

	_, token := s.newAthlete()
	var snap career.Snapshot
	s.Equal(http.StatusOK, s.do("GET", "/athlete/career", token, nil, &snap))
	s.Equal(1, snap.Level)
	s.Zero(snap.XPTotal)

	s.Equal(http.StatusNoContent, s.do("DELETE", "/athlete/session", token, nil, nil))
	s.Equal(http.StatusUnauthorized, s.do("GET", "/athlete/career", token, nil, nil))
}

func (s *IntegrationTestSuite) TestApplyImpact_LevelOne() {
	athleteID, token := s.newAthlete()
	workoutID, _ := s.insertWorkout("", 0)
	analysisID := s.insertAnalysis(workoutID, athleteID, `{}`)

	body := map[string]any{
		"analysis_id":    analysisID,
		"athlete_impact": map[string]any{"fatigue_score": 5, "resistencia": 10},
	}
	var resp apply.ImpactResponse
	path := fmt.Sprintf("/athlete/workouts/%d/apply-impact", workoutID)
	s.Require().Equal(http.StatusOK, s.do("POST", path, token, body, &resp))

	s.True(resp.Applied)
	s.InDelta(70.5, resp.UpdatedProfile["fatigue_score"], 0.001)
	s.InDelta(10, resp.UpdatedProfile["resistance"], 0.001)
	s.Equal(83, resp.XPAwarded)
	s.Equal(103, resp.Career.XPTotal)
	s.Equal([]string{"Haz un WOD hoy"}, resp.MissionsCompleted)

	// the analysis belongs to this athlete only
	_, other := s.newAthlete()
	s.Equal(http.StatusNotFound, s.do("POST", path, other, body, nil))

	var missions []ledger.UserMission
	s.Require().Equal(http.StatusOK, s.do("GET", "/athlete/missions", token, nil, &missions))
	s.Len(missions, 3)
}

func (s *IntegrationTestSuite) TestApplyImpact_Concurrent() {
	athleteID, token := s.newAthlete()
	workoutID, _ := s.insertWorkout("high", 1)
	analysisID := s.insertAnalysis(workoutID, athleteID, `{"fatigue_score": 6}`)
	path := fmt.Sprintf("/athlete/workouts/%d/apply-impact", workoutID)

	const callers = 6
	var wg sync.WaitGroup
	awarded := make([]int, callers)
	codes := make([]int, callers)
	for n := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			codes[n], awarded[n] = postApply(path, token, analysisID)
		}()
	}
	wg.Wait()

	booked := 0
	for n := range callers {
		s.Equal(http.StatusOK, codes[n])
		if awarded[n] > 0 {
			booked++
		}
	}
	s.Equal(1, booked, "xp is booked once")

	var executions int
	s.Require().NoError(s.DB.QueryRow(
		`SELECT count(*) FROM workout_execution WHERE user_id = $1`, athleteID,
	).Scan(&executions))
	s.Equal(1, executions)
}

func (s *IntegrationTestSuite) TestSubmitResult_ByBlocks() {
	athleteID, token := s.newAthlete()
	workoutID, blockIDs := s.insertWorkout("moderate", 2)
	path := fmt.Sprintf("/athlete/workouts/%d/result", workoutID)

	s.Equal(http.StatusUnprocessableEntity, s.do("POST", path, token, map[string]any{
		"method":          "by_blocks",
		"block_times_sec": []float64{60, 60, 60},
	}, nil))

	var resp apply.ResultResponse
	s.Require().Equal(http.StatusCreated, s.do("POST", path, token, map[string]any{
		"method":          "by_blocks",
		"block_times_sec": []float64{70, 110},
		"difficulty":      7,
	}, &resp))
	s.Equal(180.0, resp.Result.TimeSeconds)
	s.Len(resp.PRsRegistered, 2)
	s.Positive(resp.XPAwarded)
	s.Contains(resp.AchievementsUnlocked, "Primer PR registrado")

	rows, err := s.DB.Query(`
		SELECT b.workout_block_id, b.time_seconds::float8
		FROM workout_execution_block b
		JOIN workout_execution e ON e.id = b.execution_id
		WHERE e.user_id = $1
		ORDER BY b.id
	`, athleteID)
	s.Require().NoError(err)
	defer rows.Close()

	var gotBlocks []int
	var gotTimes []float64
	for rows.Next() {
		var blockID int
		var sec float64
		s.Require().NoError(rows.Scan(&blockID, &sec))
		gotBlocks = append(gotBlocks, blockID)
		gotTimes = append(gotTimes, sec)
	}
	s.Require().NoError(rows.Err())
	s.Equal(blockIDs, gotBlocks)
	s.Equal([]float64{70, 110}, gotTimes)

	// a slower second attempt is no record
	var slower apply.ResultResponse
	s.Require().Equal(http.StatusCreated, s.do("POST", path, token, map[string]any{
		"method":         "total",
		"total_time_sec": 400,
	}, &slower))
	s.Empty(slower.PRsRegistered)
	s.Greater(slower.XPTotal, resp.XPTotal)
}
