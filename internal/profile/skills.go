package profile

import (
	"sort"
	"time"

	"github.com/2beens/wodcareer/internal/ledger"
	"github.com/2beens/wodcareer/internal/workouts"
)

const (
	MetricKg      = "kg"
	MetricReps    = "reps"
	MetricMeters  = "meters"
	MetricCals    = "cals"
	MetricSeconds = "seconds"
)

func value(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}

// MovementIncrement is what one exposure to the movement adds to the
// athlete's totals. Kilos are only counted when both reps and load are set.
func MovementIncrement(m workouts.Movement) ledger.SkillTotals {
	inc := ledger.SkillTotals{
		Reps:    value(m.Reps),
		Meters:  value(m.DistanceMeters),
		Cals:    value(m.Calories),
		Seconds: value(m.DurationSeconds),
	}
	if m.Reps != nil && m.Load != nil {
		inc.Kg = *m.Reps * *m.Load
	}
	return inc
}

type Exposure struct {
	MovementID int
	Increment  ledger.SkillTotals
}

// Exposures sums the increments per movement across all blocks of w,
// dropping movements whose increment is all zero. Sorted by movement id.
func Exposures(w *workouts.Workout) []Exposure {
	byMovement := map[int]ledger.SkillTotals{}
	for _, m := range w.Movements() {
		if m.MovementID == 0 {
			continue
		}
		byMovement[m.MovementID] = byMovement[m.MovementID].Add(MovementIncrement(m))
	}

	exposures := make([]Exposure, 0, len(byMovement))
	for id, inc := range byMovement {
		if inc.IsZero() {
			continue
		}
		exposures = append(exposures, Exposure{MovementID: id, Increment: inc})
	}
	sort.Slice(exposures, func(i, j int) bool {
		return exposures[i].MovementID < exposures[j].MovementID
	})
	return exposures
}

// PrimaryMetric picks the first non-zero total by kg > reps > meters > cals
// > seconds, falling back to seconds.
func PrimaryMetric(t ledger.SkillTotals) (string, float64) {
	switch {
	case t.Kg != 0:
		return MetricKg, t.Kg
	case t.Reps != 0:
		return MetricReps, t.Reps
	case t.Meters != 0:
		return MetricMeters, t.Meters
	case t.Cals != 0:
		return MetricCals, t.Cals
	default:
		return MetricSeconds, t.Seconds
	}
}

// AggregateSkill folds inc into existing (nil when the athlete never did
// the movement) and returns the row to store.
func AggregateSkill(existing *ledger.SkillAggregate, userID, movementID int, inc ledger.SkillTotals, at time.Time) ledger.SkillAggregate {
	var totals ledger.SkillTotals
	if existing != nil {
		totals = existing.Totals
	}
	totals = totals.Add(inc)
	metric, score := PrimaryMetric(totals)
	return ledger.SkillAggregate{
		UserID:        userID,
		MovementID:    movementID,
		SkillScore:    Round(score, 2),
		Totals:        totals,
		PrimaryMetric: metric,
		MeasuredAt:    at,
	}
}
