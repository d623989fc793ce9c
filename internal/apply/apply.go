package apply

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/2beens/wodcareer/internal/career"
	"github.com/2beens/wodcareer/internal/impact"
	"github.com/2beens/wodcareer/internal/ledger"
	"github.com/2beens/wodcareer/internal/profile"
	"github.com/2beens/wodcareer/internal/telemetry/tracing"
	"github.com/2beens/wodcareer/internal/workouts"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

type ImpactRequest struct {
	UserID     int  `json:"-"`
	WorkoutID  int  `json:"-"`
	AnalysisID *int `json:"analysis_id,omitempty"`

	// Impact holds caller overrides, keys in any supported alias.
	Impact map[string]any `json:"athlete_impact,omitempty"`
}

type ImpactResponse struct {
	Analysis             map[string]any     `json:"analysis"`
	UpdatedProfile       map[string]float64 `json:"updated_profile"`
	Impact               map[string]float64 `json:"impact"`
	Applied              bool               `json:"applied"`
	XPAwarded            int                `json:"xp_awarded"`
	Career               career.Snapshot    `json:"career"`
	AchievementsUnlocked []string           `json:"achievements_unlocked"`
	MissionsCompleted    []string           `json:"missions_completed"`

	alreadyApplied bool
}

const (
	outcomeApplied        = "applied"
	outcomeAlreadyApplied = "already_applied"
	outcomeFailed         = "failed"
)

// ApplyImpact applies the analysis of a workout to the athlete profile at
// most once. Concurrent calls serialize on the analysis row; the later ones
// see it applied and only read.
func (s *Service) ApplyImpact(ctx context.Context, req ImpactRequest) (_ *ImpactResponse, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.apply.impact")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("user.id", req.UserID), attribute.Int("workout.id", req.WorkoutID))

	log.Debugf("[apply-impact] start user=%d workout=%d analysis=%v", req.UserID, req.WorkoutID, req.AnalysisID)
	start := time.Now()
	defer func() {
		s.metrics.HistogramApplyDuration.Observe(time.Since(start).Seconds())
	}()

	var resp *ImpactResponse
	err = s.inTx(ctx, "apply-impact", func(ctx context.Context, tx ledger.Tx) error {
		var txErr error
		resp, txErr = s.applyImpact(ctx, tx, req)
		return txErr
	})
	if err != nil {
		s.metrics.CounterImpactApplications.WithLabelValues(outcomeFailed).Inc()
		return nil, err
	}

	outcome := outcomeApplied
	if resp.alreadyApplied {
		outcome = outcomeAlreadyApplied
	}
	s.metrics.CounterImpactApplications.WithLabelValues(outcome).Inc()
	if resp.XPAwarded > 0 {
		s.metrics.CounterXPAwarded.WithLabelValues("impact").Add(float64(resp.XPAwarded))
	}
	log.Debugf("[apply-impact] done user=%d workout=%d xp=%d", req.UserID, req.WorkoutID, resp.XPAwarded)
	return resp, nil
}

func (s *Service) applyImpact(ctx context.Context, tx ledger.Tx, req ImpactRequest) (*ImpactResponse, error) {
	w, err := tx.GetWorkout(ctx, req.WorkoutID)
	if err != nil {
		return nil, fmt.Errorf("workout %d: %w", req.WorkoutID, err)
	}

	analysis, err := s.lockAnalysis(ctx, tx, req, w)
	if err != nil {
		return nil, err
	}

	if analysis.Applied {
		return s.appliedView(ctx, tx, analysis)
	}

	n := s.normalizer.Normalize(impact.Input{
		Incoming: req.Impact,
		Current:  analysis.Impact,
		Analysis: analysis.Payload,
		Workout:  w,
	})
	if n.Empty() {
		return nil, ErrEmptyImpact
	}
	s.metrics.CounterMappingGaps.Add(float64(len(n.Gaps)))

	level, err := s.career.Level(ctx, tx, req.UserID)
	if err != nil {
		return nil, err
	}
	n.ScaleFatigue(profile.LevelFactor(level))

	now := s.career.Now()
	if err := s.applyCapacities(ctx, tx, req.UserID, n.Capacities, now); err != nil {
		return nil, err
	}

	exec, err := lockExecutionToday(ctx, tx, req.UserID, w.ID, now)
	if err != nil {
		return nil, err
	}
	if err := s.applyFatigue(ctx, tx, req.UserID, level, n, exec == nil, now); err != nil {
		return nil, err
	}
	if err := applySkills(ctx, tx, req.UserID, n.Skills, now); err != nil {
		return nil, err
	}

	streak, err := s.career.WeeklyStreak(ctx, tx, req.UserID)
	if err != nil {
		return nil, err
	}

	note := fmt.Sprintf("impact applied %s", now.Format(time.RFC3339))
	if exec != nil {
		// the session was already booked by a result today, the load is not
		// added again
		exec.Raw = raw(exec.Raw)
		exec.Raw["analysis_id"] = analysis.ID
		exec.Raw["impact_applied"] = true
		exec.Raw["impact"] = n.Map
		exec.Notes = appendNote(exec.Notes, note)
		if err := tx.SaveExecution(ctx, exec); err != nil {
			return nil, fmt.Errorf("annotate execution: %w", err)
		}
	} else {
		exec = &ledger.Execution{
			WorkoutID:  w.ID,
			UserID:     req.UserID,
			ExecutedAt: now,
			Raw: map[string]any{
				"analysis_id":    analysis.ID,
				"impact_applied": true,
				"impact":         n.Map,
			},
			Notes: note,
		}
		if err := tx.SaveExecution(ctx, exec); err != nil {
			return nil, fmt.Errorf("save execution: %w", err)
		}
		loadNote := fmt.Sprintf("workout %d analysis %d", w.ID, analysis.ID)
		if _, err := bookTrainingLoad(ctx, tx, req.UserID, now, n.Load.Acute, n.Load.Chronic, n.Load.Ratio, loadNote); err != nil {
			return nil, err
		}
	}

	xp := s.awardImpactXP(ctx, tx, req.UserID, w, analysis, streak)

	snap, err := s.career.Snapshot(ctx, tx, req.UserID)
	if err != nil {
		return nil, err
	}
	unlocked, err := s.career.EvaluateLevel(ctx, tx, req.UserID, snap.Level)
	if err != nil {
		return nil, err
	}
	completed, _, err := s.career.UpdateMissions(ctx, tx, req.UserID, false)
	if err != nil {
		return nil, err
	}

	analysis.Impact = n.Map
	analysis.Applied = true
	analysis.AppliedAt = &now
	if err := tx.SaveAnalysis(ctx, analysis); err != nil {
		return nil, fmt.Errorf("save analysis: %w", err)
	}

	updated, err := projectProfile(ctx, tx, req.UserID)
	if err != nil {
		return nil, err
	}
	if snap, err = s.career.Snapshot(ctx, tx, req.UserID); err != nil {
		return nil, err
	}

	return &ImpactResponse{
		Analysis:             analysisView(analysis),
		UpdatedProfile:       updated,
		Impact:               n.Map,
		Applied:              true,
		XPAwarded:            xp,
		Career:               snap,
		AchievementsUnlocked: nonNil(unlocked),
		MissionsCompleted:    nonNil(completed),
	}, nil
}

// lockAnalysis locks the requested analysis, else the latest one of the
// workout, else synthesizes one with the analyzer.
func (s *Service) lockAnalysis(ctx context.Context, tx ledger.Tx, req ImpactRequest, w *workouts.Workout) (*ledger.Analysis, error) {
	if req.AnalysisID != nil {
		a, err := tx.LockAnalysis(ctx, *req.AnalysisID, req.UserID)
		if err != nil {
			if errors.Is(err, ledger.ErrNotFound) {
				return nil, fmt.Errorf("analysis %d: %w", *req.AnalysisID, ErrAnalysisNotFound)
			}
			return nil, fmt.Errorf("lock analysis: %w", err)
		}
		if a.WorkoutID != w.ID {
			return nil, fmt.Errorf("analysis %d of workout %d: %w", a.ID, a.WorkoutID, ErrAnalysisNotFound)
		}
		return a, nil
	}

	a, err := tx.LockLatestAnalysis(ctx, w.ID, req.UserID)
	if err == nil {
		return a, nil
	}
	if !errors.Is(err, ledger.ErrNotFound) {
		return nil, fmt.Errorf("lock latest analysis: %w", err)
	}

	payload, err := s.analyzer.Analyze(ctx, w)
	if err != nil {
		return nil, fmt.Errorf("analyze workout %d: %w", w.ID, err)
	}
	if len(payload) == 0 {
		return nil, fmt.Errorf("workout %d has nothing to analyze: %w", w.ID, ErrAnalysisNotFound)
	}

	base := s.normalizer.Normalize(impact.Input{Analysis: payload, Workout: w})
	a = &ledger.Analysis{
		WorkoutID: w.ID,
		UserID:    req.UserID,
		Payload:   payload,
		Impact:    base.Map,
		CreatedAt: s.career.Now(),
	}
	if err := tx.CreateAnalysis(ctx, a); err != nil {
		return nil, fmt.Errorf("create analysis: %w", err)
	}
	log.Debugf("[apply-impact] synthesized analysis %d for workout %d", a.ID, w.ID)
	return a, nil
}

func (s *Service) appliedView(ctx context.Context, tx ledger.Tx, a *ledger.Analysis) (*ImpactResponse, error) {
	updated, err := projectProfile(ctx, tx, a.UserID)
	if err != nil {
		return nil, err
	}
	snap, err := s.career.Snapshot(ctx, tx, a.UserID)
	if err != nil {
		return nil, err
	}
	return &ImpactResponse{
		Analysis:             analysisView(a),
		UpdatedProfile:       updated,
		Impact:               a.Impact,
		Applied:              true,
		Career:               snap,
		AchievementsUnlocked: []string{},
		MissionsCompleted:    []string{},
		alreadyApplied:       true,
	}, nil
}

func (s *Service) applyCapacities(ctx context.Context, tx ledger.Tx, userID int, deltas []impact.CapacityDelta, now time.Time) error {
	if len(deltas) == 0 {
		return nil
	}
	ids, err := capacityIDs(ctx, tx)
	if err != nil {
		return err
	}
	for _, d := range deltas {
		id, ok := ids[d.Code]
		if !ok {
			log.Warnf("[apply-impact] capacity %s not in catalog", d.Code)
			s.metrics.CounterMappingGaps.Inc()
			continue
		}
		current, err := tx.LatestCapacity(ctx, userID, id)
		if err != nil && !errors.Is(err, ledger.ErrNotFound) {
			return fmt.Errorf("latest capacity %s: %w", d.Code, err)
		}
		next := profile.Round(profile.NextCapacity(current, d.Value), 0)
		if err := tx.AppendCapacity(ctx, ledger.CapacityMeasurement{
			UserID:     userID,
			CapacityID: id,
			Value:      next,
			MeasuredAt: now,
		}); err != nil {
			return fmt.Errorf("append capacity %s: %w", d.Code, err)
		}
	}
	return nil
}

// applyFatigue books the new fatigue score. newSession is set when this
// application creates today's execution of the workout.
func (s *Service) applyFatigue(ctx context.Context, tx ledger.Tx, userID int, level *int, n *impact.Normalized, newSession bool, now time.Time) error {
	if n.Fatigue == nil {
		return nil
	}
	sessions, err := tx.CountExecutionsOn(ctx, userID, now)
	if err != nil {
		return fmt.Errorf("count executions: %w", err)
	}
	if newSession {
		sessions++
	}

	next := ledger.BiometricMeasurement{UserID: userID}
	latest, err := tx.LatestBiometric(ctx, userID)
	switch {
	case err == nil:
		next = *latest
	case !errors.Is(err, ledger.ErrNotFound):
		return fmt.Errorf("latest biometric: %w", err)
	}

	in := profile.FatigueInput{
		Delta:         n.Fatigue.Value,
		Multiplier:    profile.TierMultiplier(level),
		SessionsToday: sessions,
		AcuteDelta:    n.Load.Acute,
		ChronicDelta:  n.Load.Chronic,
	}
	if next.FatigueScore != nil {
		in.Latest = *next.FatigueScore
	}
	fatigue := profile.Round(profile.NextFatigue(in), 2)

	// other biometrics carry over from the previous measurement
	next.UserID = userID
	next.MeasuredAt = now
	next.FatigueScore = &fatigue
	if err := tx.AppendBiometric(ctx, next); err != nil {
		return fmt.Errorf("append biometric: %w", err)
	}
	return nil
}

func applySkills(ctx context.Context, tx ledger.Tx, userID int, skills []impact.SkillDelta, now time.Time) error {
	for _, sd := range skills {
		existing, err := tx.GetSkill(ctx, userID, sd.MovementID)
		switch {
		case errors.Is(err, ledger.ErrNotFound):
			existing = nil
		case err != nil:
			return fmt.Errorf("skill %d: %w", sd.MovementID, err)
		}
		agg := profile.AggregateSkill(existing, userID, sd.MovementID, sd.Increment, now)
		if err := tx.UpsertSkill(ctx, agg); err != nil {
			return fmt.Errorf("upsert skill %d: %w", sd.MovementID, err)
		}
	}
	return nil
}

// awardImpactXP books the XP estimated from the analysis in a savepoint.
// Any failure there leaves the career untouched and awards nothing.
func (s *Service) awardImpactXP(ctx context.Context, tx ledger.Tx, userID int, w *workouts.Workout, a *ledger.Analysis, streak int) int {
	award := career.ResultAward{
		UserID:       userID,
		Workout:      w,
		WeeklyStreak: streak,
	}
	if t, ok := impact.ParseNumber(a.Payload["avg_time_seconds"]); ok {
		award.TimeSeconds = &t
	}
	if d, ok := impact.ParseNumber(a.Payload[impact.KeyFatigue]); ok {
		award.Difficulty = &d
	}

	var xp int
	err := tx.Savepoint(ctx, func(ctx context.Context, stx ledger.Tx) error {
		var err error
		xp, _, err = s.career.AwardForResult(ctx, stx, award)
		return err
	})
	if err != nil {
		log.Warnf("[apply-impact] xp award degraded user=%d analysis=%d: %s", userID, a.ID, err)
		s.metrics.CounterDegradedAwards.Inc()
		return 0
	}
	return xp
}
