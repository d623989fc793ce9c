// Package memstore is an in-process ledger backend. A transaction works on
// a copy of the whole state and swaps it in on success; transactions are
// serialized with one mutex, which gives what the row locks of the
// Postgres backend give.
package memstore

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/2beens/wodcareer/internal/ledger"
	"github.com/2beens/wodcareer/internal/workouts"
)

type skillKey struct {
	userID     int
	movementID int
}

type grantKey struct {
	userID        int
	achievementID int
}

type state struct {
	nextID int

	workouts         map[int]workouts.Workout
	analyses         map[int]ledger.Analysis
	capacities       []ledger.Capacity
	capacityLog      []ledger.CapacityMeasurement
	biometrics       []ledger.BiometricMeasurement
	skills           map[skillKey]ledger.SkillAggregate
	records          []ledger.PersonalRecord
	loads            map[int]ledger.TrainingLoadDay
	executions       map[int]ledger.Execution
	executionBlocks  []ledger.ExecutionBlock
	results          []ledger.Result
	careers          map[int]ledger.CareerState
	achievements     []ledger.Achievement
	userAchievements map[grantKey]time.Time
	missions         []ledger.Mission
	userMissions     map[int]ledger.UserMission
}

func newState() *state {
	return &state{
		workouts:         map[int]workouts.Workout{},
		analyses:         map[int]ledger.Analysis{},
		skills:           map[skillKey]ledger.SkillAggregate{},
		loads:            map[int]ledger.TrainingLoadDay{},
		executions:       map[int]ledger.Execution{},
		careers:          map[int]ledger.CareerState{},
		userAchievements: map[grantKey]time.Time{},
		userMissions:     map[int]ledger.UserMission{},
	}
}

// clone is shallow per row. Rows holding maps are deep copied when they
// are written and when they are read, so stored maps are never shared.
func (s *state) clone() *state {
	return &state{
		nextID:           s.nextID,
		workouts:         maps.Clone(s.workouts),
		analyses:         maps.Clone(s.analyses),
		capacities:       slices.Clone(s.capacities),
		capacityLog:      slices.Clone(s.capacityLog),
		biometrics:       slices.Clone(s.biometrics),
		skills:           maps.Clone(s.skills),
		records:          slices.Clone(s.records),
		loads:            maps.Clone(s.loads),
		executions:       maps.Clone(s.executions),
		executionBlocks:  slices.Clone(s.executionBlocks),
		results:          slices.Clone(s.results),
		careers:          maps.Clone(s.careers),
		achievements:     slices.Clone(s.achievements),
		userAchievements: maps.Clone(s.userAchievements),
		missions:         slices.Clone(s.missions),
		userMissions:     maps.Clone(s.userMissions),
	}
}

func (s *state) newID() int {
	s.nextID++
	return s.nextID
}

type Store struct {
	mu    sync.Mutex
	state *state
}

var _ ledger.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		state: newState(),
	}
}

func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx ledger.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	tx := &Tx{state: s.state.clone()}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	s.state = tx.state
	return nil
}

// PutWorkout stores w under w.ID.
func (s *Store) PutWorkout(w workouts.Workout) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.workouts[w.ID] = w
}

func (s *Store) PutCapacity(code, name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.state.newID()
	s.state.capacities = append(s.state.capacities, ledger.Capacity{ID: id, Code: code, Name: name})
	return id
}

func (s *Store) PutAchievement(a ledger.Achievement) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	a.ID = s.state.newID()
	s.state.achievements = append(s.state.achievements, a)
	return a.ID
}

func (s *Store) PutMission(m ledger.Mission) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	m.ID = s.state.newID()
	s.state.missions = append(s.state.missions, m)
	return m.ID
}

func (s *Store) PutAnalysis(a ledger.Analysis) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	a.ID = s.state.newID()
	s.state.analyses[a.ID] = cloneAnalysis(a)
	return a.ID
}

func (s *Store) PutCareer(c ledger.CareerState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.careers[c.UserID] = c
}

// PutTrainingLoadDay stores a historical load row.
func (s *Store) PutTrainingLoadDay(d ledger.TrainingLoadDay) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	d.ID = s.state.newID()
	d.LoadDate = ledger.Day(d.LoadDate)
	s.state.loads[d.ID] = d
	return d.ID
}

func (s *Store) PutResult(r ledger.Result) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	r.ID = s.state.newID()
	s.state.results = append(s.state.results, r)
	return r.ID
}

// Snapshot is a copy of the ledger rows of one athlete, for inspection.
type Snapshot struct {
	Analyses        []ledger.Analysis
	Capacities      []ledger.CapacityMeasurement
	Biometrics      []ledger.BiometricMeasurement
	Skills          []ledger.SkillAggregate
	Records         []ledger.PersonalRecord
	TrainingLoad    []ledger.TrainingLoadDay
	Executions      []ledger.Execution
	ExecutionBlocks []ledger.ExecutionBlock
	Results         []ledger.Result
	Career          *ledger.CareerState
	Achievements    []int
	Missions        []ledger.UserMission
}

func (s *Store) Snapshot(userID int) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.state

	var snap Snapshot
	for _, id := range sortedKeys(st.analyses) {
		if a := st.analyses[id]; a.UserID == userID {
			snap.Analyses = append(snap.Analyses, cloneAnalysis(a))
		}
	}
	for _, m := range st.capacityLog {
		if m.UserID == userID {
			snap.Capacities = append(snap.Capacities, m)
		}
	}
	for _, m := range st.biometrics {
		if m.UserID == userID {
			snap.Biometrics = append(snap.Biometrics, m)
		}
	}
	for _, sk := range st.skills {
		if sk.UserID == userID {
			snap.Skills = append(snap.Skills, sk)
		}
	}
	slices.SortFunc(snap.Skills, func(a, b ledger.SkillAggregate) int {
		return a.MovementID - b.MovementID
	})
	for _, pr := range st.records {
		if pr.UserID == userID {
			snap.Records = append(snap.Records, pr)
		}
	}
	for _, id := range sortedKeys(st.loads) {
		if d := st.loads[id]; d.UserID == userID {
			snap.TrainingLoad = append(snap.TrainingLoad, d)
		}
	}
	executionIDs := map[int]bool{}
	for _, id := range sortedKeys(st.executions) {
		if e := st.executions[id]; e.UserID == userID {
			snap.Executions = append(snap.Executions, cloneExecution(e))
			executionIDs[id] = true
		}
	}
	for _, b := range st.executionBlocks {
		if executionIDs[b.ExecutionID] {
			snap.ExecutionBlocks = append(snap.ExecutionBlocks, b)
		}
	}
	for _, r := range st.results {
		if r.UserID == userID {
			snap.Results = append(snap.Results, r)
		}
	}
	if c, ok := st.careers[userID]; ok {
		snap.Career = &c
	}
	for k := range st.userAchievements {
		if k.userID == userID {
			snap.Achievements = append(snap.Achievements, k.achievementID)
		}
	}
	slices.Sort(snap.Achievements)
	for _, id := range sortedKeys(st.userMissions) {
		if um := st.userMissions[id]; um.UserID == userID {
			snap.Missions = append(snap.Missions, um)
		}
	}
	return snap
}

func sortedKeys[V any](m map[int]V) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func cloneAnalysis(a ledger.Analysis) ledger.Analysis {
	a.Payload = cloneAnyMap(a.Payload)
	a.Impact = maps.Clone(a.Impact)
	return a
}

func cloneExecution(e ledger.Execution) ledger.Execution {
	e.Raw = cloneAnyMap(e.Raw)
	return e
}

// cloneAnyMap copies nested maps and slices of a decoded JSON document.
func cloneAnyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneAny(v)
	}
	return out
}

func cloneAny(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneAnyMap(t)
	case []any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = cloneAny(t[i])
		}
		return out
	case map[string]float64:
		return maps.Clone(t)
	case []float64:
		return slices.Clone(t)
	}
	return v
}
