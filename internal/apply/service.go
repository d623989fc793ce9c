// Package apply books workout impacts and results onto the athlete profile
// and career, one ledger transaction per request.
package apply

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/2beens/wodcareer/internal/career"
	"github.com/2beens/wodcareer/internal/impact"
	"github.com/2beens/wodcareer/internal/ledger"
	"github.com/2beens/wodcareer/internal/profile"
	"github.com/2beens/wodcareer/internal/telemetry/metrics"
	"github.com/2beens/wodcareer/internal/telemetry/tracing"
	"github.com/2beens/wodcareer/internal/workouts"
	"github.com/2beens/wodcareer/pkg"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

const txAttempts = 3

// Analyzer produces an analysis payload for a workout that has none yet.
// A nil payload means the workout cannot be analyzed.
type Analyzer interface {
	Analyze(ctx context.Context, w *workouts.Workout) (map[string]any, error)
}

type NewServiceParams struct {
	Store    ledger.Store
	Analyzer Analyzer
	Metrics  *metrics.Manager
	// Now defaults to time.Now.
	Now func() time.Time
}

type Service struct {
	store      ledger.Store
	analyzer   Analyzer
	normalizer *impact.Normalizer
	career     *career.Service
	metrics    *metrics.Manager
}

func NewService(params NewServiceParams) *Service {
	analyzer := params.Analyzer
	if analyzer == nil {
		analyzer = workouts.NewDeclaredAnalyzer()
	}
	m := params.Metrics
	if m == nil {
		m = metrics.NewTestManager()
	}
	return &Service{
		store:      params.Store,
		analyzer:   analyzer,
		normalizer: impact.NewNormalizer(),
		career:     career.NewService(params.Now),
		metrics:    m,
	}
}

// inTx retries the whole transaction on serialization failures, deadlocks
// and unique violations raced by a concurrent first insert.
func (s *Service) inTx(ctx context.Context, name string, fn func(ctx context.Context, tx ledger.Tx) error) error {
	var err error
	for attempt := 1; attempt <= txAttempts; attempt++ {
		err = s.store.InTx(ctx, fn)
		if err == nil || !retryable(err) {
			return err
		}
		log.Warnf("[%s] attempt %d/%d failed, retrying: %s", name, attempt, txAttempts, err)
	}
	return err
}

func retryable(err error) bool {
	return pkg.IsRetryableTxError(err) || pkg.IsUniqueViolationError(err)
}

// Career returns the career snapshot of userID without writing.
func (s *Service) Career(ctx context.Context, userID int) (_ career.Snapshot, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.apply.career")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("user.id", userID))

	var snap career.Snapshot
	err = s.inTx(ctx, "career", func(ctx context.Context, tx ledger.Tx) error {
		var txErr error
		snap, txErr = s.career.Snapshot(ctx, tx, userID)
		return txErr
	})
	if err != nil {
		return career.Snapshot{}, fmt.Errorf("career snapshot: %w", err)
	}
	return snap, nil
}

// Missions lists the missions of userID, assigning the active catalog
// missions it does not have yet.
func (s *Service) Missions(ctx context.Context, userID int) (_ []ledger.UserMission, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.apply.missions")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("user.id", userID))

	var missions []ledger.UserMission
	err = s.inTx(ctx, "missions", func(ctx context.Context, tx ledger.Tx) error {
		var txErr error
		missions, txErr = s.career.AssignActive(ctx, tx, userID)
		return txErr
	})
	if err != nil {
		return nil, fmt.Errorf("user missions: %w", err)
	}
	if missions == nil {
		missions = []ledger.UserMission{}
	}
	return missions, nil
}

// capacityIDs maps canonical capacity codes to catalog ids. Stored codes are
// matched case and space insensitive.
func capacityIDs(ctx context.Context, tx ledger.Tx) (map[string]int, error) {
	capacities, err := tx.Capacities(ctx)
	if err != nil {
		return nil, fmt.Errorf("capacities: %w", err)
	}
	ids := make(map[string]int, len(capacities))
	for _, c := range capacities {
		code := strings.ToLower(strings.TrimSpace(c.Code))
		if canonical, ok := impact.CanonicalCapacity(code); ok {
			code = canonical
		}
		ids[code] = c.ID
	}
	return ids, nil
}

func lockExecutionToday(ctx context.Context, tx ledger.Tx, userID, workoutID int, now time.Time) (*ledger.Execution, error) {
	exec, err := tx.LockExecutionOn(ctx, userID, workoutID, now)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("lock execution: %w", err)
	}
	return exec, nil
}

// bookTrainingLoad adds the deltas on top of the latest known day and
// writes today's row, which stays locked until commit.
func bookTrainingLoad(ctx context.Context, tx ledger.Tx, userID int, now time.Time, acuteDelta, chronicDelta float64, ratioOverride *float64, notes string) (*ledger.TrainingLoadDay, error) {
	today, err := tx.LockTrainingLoadDay(ctx, userID, now)
	switch {
	case errors.Is(err, ledger.ErrNotFound):
		today = nil
	case err != nil:
		return nil, fmt.Errorf("lock training load: %w", err)
	}
	base, err := tx.LatestTrainingLoad(ctx, userID)
	switch {
	case errors.Is(err, ledger.ErrNotFound):
		base = nil
	case err != nil:
		return nil, fmt.Errorf("latest training load: %w", err)
	}

	acute, chronic, ratio := profile.NextTrainingLoad(base, acuteDelta, chronicDelta, ratioOverride)
	if today == nil {
		today = &ledger.TrainingLoadDay{
			UserID:   userID,
			LoadDate: ledger.Day(now),
			Notes:    notes,
		}
	}
	today.AcuteLoad = acute
	today.ChronicLoad = chronic
	today.LoadRatio = &ratio
	if err := tx.SaveTrainingLoadDay(ctx, today); err != nil {
		return nil, fmt.Errorf("save training load: %w", err)
	}
	return today, nil
}

// appendNote adds line to existing execution notes.
func appendNote(notes, line string) string {
	if notes == "" {
		return line
	}
	return notes + "\n" + line
}

func raw(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
