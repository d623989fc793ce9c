// Package ledger holds the athlete profile entities and the transactional
// storage contract the progression engine runs against. Two backends
// implement it: pgstore (Postgres, row locks) and memstore (in-process,
// copy-on-write).
package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/2beens/wodcareer/internal/workouts"
)

var ErrNotFound = errors.New("not found")

// Store runs fn inside one atomic transaction: every write made through tx
// becomes visible on commit, or none does.
type Store interface {
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Tx is the set of ledger operations available inside a transaction.
// Lookups of a single missing row return ErrNotFound.
type Tx interface {
	WorkoutReader
	AnalysisLedger
	CapacityLedger
	BiometricLedger
	SkillStore
	RecordStore
	TrainingLoadLedger
	ExecutionLog
	CareerStore

	// Savepoint runs fn in a nested transaction. When fn fails only its own
	// writes are discarded and the outer transaction stays usable.
	Savepoint(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

type WorkoutReader interface {
	GetWorkout(ctx context.Context, id int) (*workouts.Workout, error)
}

type AnalysisLedger interface {
	// LockAnalysis locks the analysis row id owned by userID.
	LockAnalysis(ctx context.Context, id, userID int) (*Analysis, error)
	// LockLatestAnalysis locks the freshest analysis of workoutID for userID.
	LockLatestAnalysis(ctx context.Context, workoutID, userID int) (*Analysis, error)
	CreateAnalysis(ctx context.Context, a *Analysis) error
	// SaveAnalysis persists Impact, Applied and AppliedAt.
	SaveAnalysis(ctx context.Context, a *Analysis) error
}

type CapacityLedger interface {
	Capacities(ctx context.Context) ([]Capacity, error)
	// LatestCapacity returns the value of the most recent measurement.
	LatestCapacity(ctx context.Context, userID, capacityID int) (float64, error)
	AppendCapacity(ctx context.Context, m CapacityMeasurement) error
	// CurrentCapacities maps capacity codes to their latest value.
	CurrentCapacities(ctx context.Context, userID int) (map[string]float64, error)
}

type BiometricLedger interface {
	LatestBiometric(ctx context.Context, userID int) (*BiometricMeasurement, error)
	AppendBiometric(ctx context.Context, m BiometricMeasurement) error
}

type SkillStore interface {
	GetSkill(ctx context.Context, userID, movementID int) (*SkillAggregate, error)
	// UpsertSkill replaces the single row of (UserID, MovementID).
	UpsertSkill(ctx context.Context, s SkillAggregate) error
}

type RecordStore interface {
	// BestRecord returns the most favorable record under the type ordering.
	BestRecord(ctx context.Context, userID, movementID int, recordType RecordType) (*PersonalRecord, error)
	AppendRecord(ctx context.Context, pr PersonalRecord) error
}

type TrainingLoadLedger interface {
	// LockTrainingLoadDay locks the row of userID for the day of `day`.
	LockTrainingLoadDay(ctx context.Context, userID int, day time.Time) (*TrainingLoadDay, error)
	// LatestTrainingLoad returns the row with the most recent load date.
	LatestTrainingLoad(ctx context.Context, userID int) (*TrainingLoadDay, error)
	// SaveTrainingLoadDay inserts when ID is zero, updates otherwise.
	SaveTrainingLoadDay(ctx context.Context, d *TrainingLoadDay) error
	CountTrainingLoadDaysSince(ctx context.Context, userID int, since time.Time) (int, error)
}

type ExecutionLog interface {
	CountExecutionsOn(ctx context.Context, userID int, day time.Time) (int, error)
	// LockExecutionOn locks the latest execution of workoutID by userID on day.
	LockExecutionOn(ctx context.Context, userID, workoutID int, day time.Time) (*Execution, error)
	// SaveExecution inserts when ID is zero, updates otherwise.
	SaveExecution(ctx context.Context, e *Execution) error
	AddExecutionBlocks(ctx context.Context, blocks []ExecutionBlock) error
	// LatestResult returns the most recent result of workoutID by userID.
	LatestResult(ctx context.Context, userID, workoutID int) (*Result, error)
	AddResult(ctx context.Context, r *Result) error
}

type CareerStore interface {
	LockCareer(ctx context.Context, userID int) (*CareerState, error)
	SaveCareer(ctx context.Context, c *CareerState) error

	ActiveAchievements(ctx context.Context) ([]Achievement, error)
	AchievementByCode(ctx context.Context, code string) (*Achievement, error)
	HasAchievement(ctx context.Context, userID, achievementID int) (bool, error)
	GrantAchievement(ctx context.Context, userID, achievementID int, at time.Time) error

	ActiveMissions(ctx context.Context) ([]Mission, error)
	UserMissions(ctx context.Context, userID int) ([]UserMission, error)
	// AssignMission inserts the row unless (UserID, Mission.ID) exists.
	AssignMission(ctx context.Context, m *UserMission) error
	SaveUserMission(ctx context.Context, m *UserMission) error
}
