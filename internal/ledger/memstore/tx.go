package memstore

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/2beens/wodcareer/internal/ledger"
	"github.com/2beens/wodcareer/internal/workouts"
)

type Tx struct {
	state *state
}

var _ ledger.Tx = (*Tx)(nil)

func (tx *Tx) Savepoint(ctx context.Context, fn func(ctx context.Context, tx ledger.Tx) error) error {
	saved := tx.state.clone()
	if err := fn(ctx, tx); err != nil {
		tx.state = saved
		return err
	}
	return nil
}

func (tx *Tx) GetWorkout(_ context.Context, id int) (*workouts.Workout, error) {
	w, ok := tx.state.workouts[id]
	if !ok {
		return nil, workouts.ErrWorkoutNotFound
	}
	return &w, nil
}

func (tx *Tx) LockAnalysis(_ context.Context, id, userID int) (*ledger.Analysis, error) {
	a, ok := tx.state.analyses[id]
	if !ok || a.UserID != userID {
		return nil, ledger.ErrNotFound
	}
	a = cloneAnalysis(a)
	return &a, nil
}

func (tx *Tx) LockLatestAnalysis(_ context.Context, workoutID, userID int) (*ledger.Analysis, error) {
	var latest *ledger.Analysis
	for _, id := range sortedKeys(tx.state.analyses) {
		a := tx.state.analyses[id]
		if a.WorkoutID != workoutID || a.UserID != userID {
			continue
		}
		if latest == nil || !a.CreatedAt.Before(latest.CreatedAt) {
			a := cloneAnalysis(a)
			latest = &a
		}
	}
	if latest == nil {
		return nil, ledger.ErrNotFound
	}
	return latest, nil
}

func (tx *Tx) CreateAnalysis(_ context.Context, a *ledger.Analysis) error {
	a.ID = tx.state.newID()
	tx.state.analyses[a.ID] = cloneAnalysis(*a)
	return nil
}

func (tx *Tx) SaveAnalysis(_ context.Context, a *ledger.Analysis) error {
	stored, ok := tx.state.analyses[a.ID]
	if !ok {
		return ledger.ErrNotFound
	}
	stored.Impact = maps.Clone(a.Impact)
	stored.Applied = a.Applied
	stored.AppliedAt = a.AppliedAt
	tx.state.analyses[a.ID] = stored
	return nil
}

func (tx *Tx) Capacities(context.Context) ([]ledger.Capacity, error) {
	return slices.Clone(tx.state.capacities), nil
}

func (tx *Tx) latestCapacity(userID, capacityID int) (ledger.CapacityMeasurement, bool) {
	var (
		latest ledger.CapacityMeasurement
		found  bool
	)
	for _, m := range tx.state.capacityLog {
		if m.UserID != userID || m.CapacityID != capacityID {
			continue
		}
		if !found || !m.MeasuredAt.Before(latest.MeasuredAt) {
			latest, found = m, true
		}
	}
	return latest, found
}

func (tx *Tx) LatestCapacity(_ context.Context, userID, capacityID int) (float64, error) {
	m, ok := tx.latestCapacity(userID, capacityID)
	if !ok {
		return 0, ledger.ErrNotFound
	}
	return m.Value, nil
}

func (tx *Tx) AppendCapacity(_ context.Context, m ledger.CapacityMeasurement) error {
	tx.state.capacityLog = append(tx.state.capacityLog, m)
	return nil
}

func (tx *Tx) CurrentCapacities(_ context.Context, userID int) (map[string]float64, error) {
	current := map[string]float64{}
	for _, c := range tx.state.capacities {
		if m, ok := tx.latestCapacity(userID, c.ID); ok {
			current[c.Code] = m.Value
		}
	}
	return current, nil
}

func (tx *Tx) LatestBiometric(_ context.Context, userID int) (*ledger.BiometricMeasurement, error) {
	var latest *ledger.BiometricMeasurement
	for _, m := range tx.state.biometrics {
		if m.UserID != userID {
			continue
		}
		if latest == nil || !m.MeasuredAt.Before(latest.MeasuredAt) {
			latest = &m
		}
	}
	if latest == nil {
		return nil, ledger.ErrNotFound
	}
	return latest, nil
}

func (tx *Tx) AppendBiometric(_ context.Context, m ledger.BiometricMeasurement) error {
	tx.state.biometrics = append(tx.state.biometrics, m)
	return nil
}

func (tx *Tx) GetSkill(_ context.Context, userID, movementID int) (*ledger.SkillAggregate, error) {
	s, ok := tx.state.skills[skillKey{userID: userID, movementID: movementID}]
	if !ok {
		return nil, ledger.ErrNotFound
	}
	return &s, nil
}

func (tx *Tx) UpsertSkill(_ context.Context, s ledger.SkillAggregate) error {
	tx.state.skills[skillKey{userID: s.UserID, movementID: s.MovementID}] = s
	return nil
}

func (tx *Tx) BestRecord(_ context.Context, userID, movementID int, recordType ledger.RecordType) (*ledger.PersonalRecord, error) {
	var best *ledger.PersonalRecord
	for _, pr := range tx.state.records {
		if pr.UserID != userID || pr.MovementID != movementID || pr.Type != recordType {
			continue
		}
		if best == nil || better(recordType, pr.Value, best.Value) {
			best = &pr
		}
	}
	if best == nil {
		return nil, ledger.ErrNotFound
	}
	return best, nil
}

func better(t ledger.RecordType, v, than float64) bool {
	if t.LowerIsBetter() {
		return v < than
	}
	return v > than
}

func (tx *Tx) AppendRecord(_ context.Context, pr ledger.PersonalRecord) error {
	tx.state.records = append(tx.state.records, pr)
	return nil
}

func (tx *Tx) LockTrainingLoadDay(_ context.Context, userID int, day time.Time) (*ledger.TrainingLoadDay, error) {
	day = ledger.Day(day)
	for _, d := range tx.state.loads {
		if d.UserID == userID && d.LoadDate.Equal(day) {
			return &d, nil
		}
	}
	return nil, ledger.ErrNotFound
}

func (tx *Tx) LatestTrainingLoad(_ context.Context, userID int) (*ledger.TrainingLoadDay, error) {
	var latest *ledger.TrainingLoadDay
	for _, id := range sortedKeys(tx.state.loads) {
		d := tx.state.loads[id]
		if d.UserID != userID {
			continue
		}
		if latest == nil || !d.LoadDate.Before(latest.LoadDate) {
			latest = &d
		}
	}
	if latest == nil {
		return nil, ledger.ErrNotFound
	}
	return latest, nil
}

func (tx *Tx) SaveTrainingLoadDay(ctx context.Context, d *ledger.TrainingLoadDay) error {
	d.LoadDate = ledger.Day(d.LoadDate)
	if d.ID == 0 {
		if _, err := tx.LockTrainingLoadDay(ctx, d.UserID, d.LoadDate); err == nil {
			return fmt.Errorf("training load of user %d on %s already exists", d.UserID, d.LoadDate.Format(time.DateOnly))
		}
		d.ID = tx.state.newID()
	} else if _, ok := tx.state.loads[d.ID]; !ok {
		return ledger.ErrNotFound
	}
	tx.state.loads[d.ID] = *d
	return nil
}

func (tx *Tx) CountTrainingLoadDaysSince(_ context.Context, userID int, since time.Time) (int, error) {
	since = ledger.Day(since)
	n := 0
	for _, d := range tx.state.loads {
		if d.UserID == userID && !d.LoadDate.Before(since) {
			n++
		}
	}
	return n, nil
}

func (tx *Tx) CountExecutionsOn(_ context.Context, userID int, day time.Time) (int, error) {
	day = ledger.Day(day)
	n := 0
	for _, e := range tx.state.executions {
		if e.UserID == userID && ledger.Day(e.ExecutedAt).Equal(day) {
			n++
		}
	}
	return n, nil
}

func (tx *Tx) LockExecutionOn(_ context.Context, userID, workoutID int, day time.Time) (*ledger.Execution, error) {
	day = ledger.Day(day)
	var latest *ledger.Execution
	for _, id := range sortedKeys(tx.state.executions) {
		e := tx.state.executions[id]
		if e.UserID != userID || e.WorkoutID != workoutID || !ledger.Day(e.ExecutedAt).Equal(day) {
			continue
		}
		if latest == nil || !e.ExecutedAt.Before(latest.ExecutedAt) {
			e := cloneExecution(e)
			latest = &e
		}
	}
	if latest == nil {
		return nil, ledger.ErrNotFound
	}
	return latest, nil
}

func (tx *Tx) SaveExecution(_ context.Context, e *ledger.Execution) error {
	if e.ID == 0 {
		e.ID = tx.state.newID()
	} else if _, ok := tx.state.executions[e.ID]; !ok {
		return ledger.ErrNotFound
	}
	tx.state.executions[e.ID] = cloneExecution(*e)
	return nil
}

func (tx *Tx) AddExecutionBlocks(_ context.Context, blocks []ledger.ExecutionBlock) error {
	for _, b := range blocks {
		if _, ok := tx.state.executions[b.ExecutionID]; !ok {
			return fmt.Errorf("execution %d: %w", b.ExecutionID, ledger.ErrNotFound)
		}
	}
	tx.state.executionBlocks = append(tx.state.executionBlocks, blocks...)
	return nil
}

func (tx *Tx) LatestResult(_ context.Context, userID, workoutID int) (*ledger.Result, error) {
	var latest *ledger.Result
	for _, r := range tx.state.results {
		if r.UserID != userID || r.WorkoutID != workoutID {
			continue
		}
		if latest == nil || !r.CreatedAt.Before(latest.CreatedAt) {
			latest = &r
		}
	}
	if latest == nil {
		return nil, ledger.ErrNotFound
	}
	return latest, nil
}

func (tx *Tx) AddResult(_ context.Context, r *ledger.Result) error {
	r.ID = tx.state.newID()
	tx.state.results = append(tx.state.results, *r)
	return nil
}

func (tx *Tx) LockCareer(_ context.Context, userID int) (*ledger.CareerState, error) {
	c, ok := tx.state.careers[userID]
	if !ok {
		return nil, ledger.ErrNotFound
	}
	return &c, nil
}

func (tx *Tx) SaveCareer(_ context.Context, c *ledger.CareerState) error {
	tx.state.careers[c.UserID] = *c
	return nil
}

func (tx *Tx) ActiveAchievements(context.Context) ([]ledger.Achievement, error) {
	var active []ledger.Achievement
	for _, a := range tx.state.achievements {
		if a.IsActive {
			active = append(active, a)
		}
	}
	return active, nil
}

func (tx *Tx) AchievementByCode(_ context.Context, code string) (*ledger.Achievement, error) {
	for _, a := range tx.state.achievements {
		if a.Code == code {
			return &a, nil
		}
	}
	return nil, ledger.ErrNotFound
}

func (tx *Tx) HasAchievement(_ context.Context, userID, achievementID int) (bool, error) {
	_, ok := tx.state.userAchievements[grantKey{userID: userID, achievementID: achievementID}]
	return ok, nil
}

func (tx *Tx) GrantAchievement(_ context.Context, userID, achievementID int, at time.Time) error {
	key := grantKey{userID: userID, achievementID: achievementID}
	if _, ok := tx.state.userAchievements[key]; !ok {
		tx.state.userAchievements[key] = at
	}
	return nil
}

func (tx *Tx) ActiveMissions(context.Context) ([]ledger.Mission, error) {
	var active []ledger.Mission
	for _, m := range tx.state.missions {
		if m.IsActive {
			active = append(active, m)
		}
	}
	return active, nil
}

func (tx *Tx) mission(id int) (ledger.Mission, bool) {
	for _, m := range tx.state.missions {
		if m.ID == id {
			return m, true
		}
	}
	return ledger.Mission{}, false
}

func (tx *Tx) UserMissions(_ context.Context, userID int) ([]ledger.UserMission, error) {
	var out []ledger.UserMission
	for _, id := range sortedKeys(tx.state.userMissions) {
		um := tx.state.userMissions[id]
		if um.UserID != userID {
			continue
		}
		if m, ok := tx.mission(um.Mission.ID); ok {
			um.Mission = m
		}
		out = append(out, um)
	}
	return out, nil
}

func (tx *Tx) AssignMission(_ context.Context, m *ledger.UserMission) error {
	for _, um := range tx.state.userMissions {
		if um.UserID == m.UserID && um.Mission.ID == m.Mission.ID {
			*m = um
			return nil
		}
	}
	m.ID = tx.state.newID()
	tx.state.userMissions[m.ID] = *m
	return nil
}

func (tx *Tx) SaveUserMission(_ context.Context, m *ledger.UserMission) error {
	if _, ok := tx.state.userMissions[m.ID]; !ok {
		return ledger.ErrNotFound
	}
	tx.state.userMissions[m.ID] = *m
	return nil
}
