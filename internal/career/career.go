// Package career keeps the athlete XP ledger on the fixed level curve and
// evaluates the achievements and missions that feed it.
package career

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/2beens/wodcareer/internal/ledger"
	"github.com/2beens/wodcareer/internal/telemetry/tracing"
	"github.com/2beens/wodcareer/internal/workouts"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

const streakDays = 7

type Snapshot struct {
	UserID       int       `json:"user_id"`
	XPTotal      int       `json:"xp_total"`
	Level        int       `json:"level"`
	ProgressPct  float64   `json:"progress_pct"`
	NextLevel    *int      `json:"next_level"`
	XPToNext     *int      `json:"xp_to_next"`
	WeeklyStreak int       `json:"weekly_streak"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Service runs every operation inside the caller's transaction.
type Service struct {
	now func() time.Time
}

func NewService(now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{
		now: func() time.Time { return now().UTC() },
	}
}

func (s *Service) Now() time.Time {
	return s.now()
}

// Level returns the stored level of userID, nil when the athlete has no
// career yet. The career row stays locked until the transaction ends.
func (s *Service) Level(ctx context.Context, tx ledger.Tx, userID int) (*int, error) {
	state, err := tx.LockCareer(ctx, userID)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("lock career: %w", err)
	}
	level := state.Level
	return &level, nil
}

// Snapshot reads the career without writing. A missing row reads as a
// fresh level 1 career.
func (s *Service) Snapshot(ctx context.Context, tx ledger.Tx, userID int) (Snapshot, error) {
	state, err := tx.LockCareer(ctx, userID)
	if err != nil {
		if !errors.Is(err, ledger.ErrNotFound) {
			return Snapshot{}, fmt.Errorf("lock career: %w", err)
		}
		state = s.freshState(userID)
	}
	return s.snapshot(ctx, tx, state)
}

// AddXP adds amount to the career of userID, creating it when missing,
// and recomputes level and progress.
func (s *Service) AddXP(ctx context.Context, tx ledger.Tx, userID, amount int) (_ Snapshot, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "career.add_xp")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("user.id", userID), attribute.Int("xp.amount", amount))

	state, err := tx.LockCareer(ctx, userID)
	if err != nil {
		if !errors.Is(err, ledger.ErrNotFound) {
			return Snapshot{}, fmt.Errorf("lock career: %w", err)
		}
		state = s.freshState(userID)
	}

	state.XPTotal += amount
	state.Level = LevelFor(state.XPTotal).Number
	state.ProgressPct = ProgressPct(state.XPTotal)
	state.UpdatedAt = s.now()
	if err := tx.SaveCareer(ctx, state); err != nil {
		return Snapshot{}, fmt.Errorf("save career: %w", err)
	}

	log.Debugf("[career] user=%d +%d xp, total=%d level=%d", userID, amount, state.XPTotal, state.Level)
	return s.snapshot(ctx, tx, state)
}

type ResultAward struct {
	UserID      int
	Workout     *workouts.Workout
	TimeSeconds *float64
	Difficulty  *float64
	// WeeklyStreak must be read with WeeklyStreak before the training load
	// of this result is booked.
	WeeklyStreak int
}

// AwardForResult computes and books the XP of one workout result. It must
// run before the result itself is stored, the latest stored result is the
// one the improvement bonus compares against.
func (s *Service) AwardForResult(ctx context.Context, tx ledger.Tx, award ResultAward) (_ int, _ Snapshot, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "career.award_for_result")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	in := ResultXPInput{
		Difficulty:   award.Difficulty,
		TimeSeconds:  award.TimeSeconds,
		WeeklyStreak: award.WeeklyStreak,
	}
	if w := award.Workout; w != nil {
		in.WorkoutDifficulty = w.EstimatedDifficulty
		in.SessionLoad = w.SessionLoad

		prior, err := tx.LatestResult(ctx, award.UserID, w.ID)
		switch {
		case err == nil:
			in.PriorTimeSeconds = &prior.TimeSeconds
		case !errors.Is(err, ledger.ErrNotFound):
			return 0, Snapshot{}, fmt.Errorf("latest result: %w", err)
		}
	}

	xp := ResultXP(in)
	span.SetAttributes(attribute.Int("xp.awarded", xp))

	snap, err := s.AddXP(ctx, tx, award.UserID, xp)
	if err != nil {
		return 0, Snapshot{}, err
	}
	return xp, snap, nil
}

func (s *Service) freshState(userID int) *ledger.CareerState {
	return &ledger.CareerState{
		UserID:    userID,
		Level:     1,
		UpdatedAt: s.now(),
	}
}

// WeeklyStreak counts the training-load days of userID in the trailing
// week.
func (s *Service) WeeklyStreak(ctx context.Context, tx ledger.Tx, userID int) (int, error) {
	since := ledger.Day(s.now()).AddDate(0, 0, -streakDays)
	streak, err := tx.CountTrainingLoadDaysSince(ctx, userID, since)
	if err != nil {
		return 0, fmt.Errorf("weekly streak: %w", err)
	}
	return streak, nil
}

func (s *Service) snapshot(ctx context.Context, tx ledger.Tx, state *ledger.CareerState) (Snapshot, error) {
	streak, err := s.WeeklyStreak(ctx, tx, state.UserID)
	if err != nil {
		return Snapshot{}, err
	}

	snap := Snapshot{
		UserID:       state.UserID,
		XPTotal:      state.XPTotal,
		Level:        state.Level,
		ProgressPct:  state.ProgressPct,
		WeeklyStreak: streak,
		UpdatedAt:    state.UpdatedAt,
	}
	if next, ok := NextLevel(LevelFor(state.XPTotal)); ok {
		n, toNext := next.Number, next.MinXP-state.XPTotal
		snap.NextLevel = &n
		snap.XPToNext = &toNext
	}
	return snap, nil
}
