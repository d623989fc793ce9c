package apply

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/2beens/wodcareer/internal/career"
	"github.com/2beens/wodcareer/internal/ledger"
	"github.com/2beens/wodcareer/internal/profile"
	"github.com/2beens/wodcareer/internal/telemetry/tracing"
	"github.com/2beens/wodcareer/internal/workouts"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

const (
	MethodTotal    = "total"
	MethodByBlocks = "by_blocks"

	resultChronicShare = 0.65
)

type ResultRequest struct {
	UserID    int `json:"-"`
	WorkoutID int `json:"-"`

	Method        string    `json:"method"`
	TotalTimeSec  *float64  `json:"total_time_sec,omitempty"`
	BlockTimesSec []float64 `json:"block_times_sec,omitempty"`
	Difficulty    *float64  `json:"difficulty,omitempty"`
	Rating        *float64  `json:"rating,omitempty"`
	Comment       string    `json:"comment,omitempty"`
}

// totalSeconds validates the timing fields and returns the result time.
// By-blocks results take the sum of the block times.
func (r ResultRequest) totalSeconds() (float64, error) {
	switch r.Method {
	case MethodTotal:
		if r.TotalTimeSec == nil || *r.TotalTimeSec <= 0 {
			return 0, fmt.Errorf("total_time_sec must be positive: %w", ErrInvalidResult)
		}
		return *r.TotalTimeSec, nil
	case MethodByBlocks:
		if len(r.BlockTimesSec) == 0 {
			return 0, fmt.Errorf("block_times_sec is required: %w", ErrInvalidResult)
		}
		total := 0.0
		for i, t := range r.BlockTimesSec {
			if t <= 0 {
				return 0, fmt.Errorf("block %d time must be positive: %w", i+1, ErrInvalidResult)
			}
			total += t
		}
		return total, nil
	}
	return 0, fmt.Errorf("unknown method %q: %w", r.Method, ErrInvalidResult)
}

type RecordView struct {
	MovementID int               `json:"movement_id"`
	Type       ledger.RecordType `json:"pr_type"`
	Value      float64           `json:"value"`
	Unit       string            `json:"unit"`
}

type ResultResponse struct {
	Result               ledger.Result `json:"result"`
	XPAwarded            int           `json:"xp_awarded"`
	XPTotal              int           `json:"xp_total"`
	Level                int           `json:"level"`
	ProgressPct          float64       `json:"progress_pct"`
	AchievementsUnlocked []string      `json:"achievements_unlocked"`
	MissionsCompleted    []string      `json:"missions_completed"`
	PRsRegistered        []RecordView  `json:"prs_registered"`
}

// SubmitResult records a finished workout and books its load, XP, personal
// records and mission progress in one transaction.
func (s *Service) SubmitResult(ctx context.Context, req ResultRequest) (_ *ResultResponse, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.apply.result")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(
		attribute.Int("user.id", req.UserID),
		attribute.Int("workout.id", req.WorkoutID),
		attribute.String("result.method", req.Method),
	)

	total, err := req.totalSeconds()
	if err != nil {
		return nil, err
	}

	var resp *ResultResponse
	err = s.inTx(ctx, "submit-result", func(ctx context.Context, tx ledger.Tx) error {
		var txErr error
		resp, txErr = s.submitResult(ctx, tx, req, total)
		return txErr
	})
	if err != nil {
		return nil, err
	}

	s.metrics.CounterResultsSubmitted.Inc()
	s.metrics.CounterXPAwarded.WithLabelValues("result").Add(float64(resp.XPAwarded))
	s.metrics.CounterPRsRegistered.Add(float64(len(resp.PRsRegistered)))
	log.Debugf("[submit-result] user=%d workout=%d time=%.0fs xp=%d prs=%d",
		req.UserID, req.WorkoutID, total, resp.XPAwarded, len(resp.PRsRegistered))
	return resp, nil
}

func (s *Service) submitResult(ctx context.Context, tx ledger.Tx, req ResultRequest, total float64) (*ResultResponse, error) {
	w, err := tx.GetWorkout(ctx, req.WorkoutID)
	if err != nil {
		return nil, fmt.Errorf("workout %d: %w", req.WorkoutID, err)
	}
	blocks := w.OrderedBlocks()
	if req.Method == MethodByBlocks && len(req.BlockTimesSec) != len(blocks) {
		return nil, fmt.Errorf("got %d block times for %d blocks: %w", len(req.BlockTimesSec), len(blocks), ErrInvalidResult)
	}

	now := s.career.Now()
	exec, err := lockExecutionToday(ctx, tx, req.UserID, w.ID, now)
	if err != nil {
		return nil, err
	}
	reused := exec != nil

	streak, err := s.career.WeeklyStreak(ctx, tx, req.UserID)
	if err != nil {
		return nil, err
	}

	if err := saveResultExecution(ctx, tx, req, w, exec, blocks, total, now); err != nil {
		return nil, err
	}
	if !reused {
		note := fmt.Sprintf("result workout %d", w.ID)
		if _, err := bookTrainingLoad(ctx, tx, req.UserID, now, total, total*resultChronicShare, nil, note); err != nil {
			return nil, err
		}
	}

	xp, snap, err := s.career.AwardForResult(ctx, tx, career.ResultAward{
		UserID:       req.UserID,
		Workout:      w,
		TimeSeconds:  &total,
		Difficulty:   req.Difficulty,
		WeeklyStreak: streak,
	})
	if err != nil {
		return nil, fmt.Errorf("award xp: %w", err)
	}

	result := &ledger.Result{
		WorkoutID:   w.ID,
		UserID:      req.UserID,
		TimeSeconds: total,
		Difficulty:  req.Difficulty,
		Rating:      req.Rating,
		Comment:     req.Comment,
		CreatedAt:   now,
	}
	if err := tx.AddResult(ctx, result); err != nil {
		return nil, fmt.Errorf("add result: %w", err)
	}

	unlocked, err := s.career.EvaluateLevel(ctx, tx, req.UserID, snap.Level)
	if err != nil {
		return nil, err
	}

	prs, err := registerRecords(ctx, tx, req.UserID, w, req.BlockTimesSec, total, now)
	if err != nil {
		return nil, err
	}
	if len(prs) > 0 {
		first, err := s.career.UnlockByCode(ctx, tx, req.UserID, career.FirstPRAchievement)
		if err != nil {
			return nil, err
		}
		unlocked = append(unlocked, first...)
	}

	completed, _, err := s.career.UpdateMissions(ctx, tx, req.UserID, len(prs) > 0)
	if err != nil {
		return nil, err
	}

	if snap, err = s.career.Snapshot(ctx, tx, req.UserID); err != nil {
		return nil, err
	}
	return &ResultResponse{
		Result:               *result,
		XPAwarded:            xp,
		XPTotal:              snap.XPTotal,
		Level:                snap.Level,
		ProgressPct:          snap.ProgressPct,
		AchievementsUnlocked: nonNil(unlocked),
		MissionsCompleted:    nonNil(completed),
		PRsRegistered:        prs,
	}, nil
}

// saveResultExecution annotates today's execution of the workout, or
// creates it, and stores the per-block times.
func saveResultExecution(ctx context.Context, tx ledger.Tx, req ResultRequest, w *workouts.Workout, exec *ledger.Execution, blocks []workouts.Block, total float64, now time.Time) error {
	note := fmt.Sprintf("result %s %.0fs", req.Method, total)
	entry := map[string]any{
		"method":         req.Method,
		"total_time_sec": total,
	}
	if len(req.BlockTimesSec) > 0 {
		entry["block_times_sec"] = req.BlockTimesSec
	}

	if exec == nil {
		exec = &ledger.Execution{
			WorkoutID:  w.ID,
			UserID:     req.UserID,
			ExecutedAt: now,
			Raw:        map[string]any{},
		}
	}
	exec.TotalTimeSeconds = &total
	exec.Raw = raw(exec.Raw)
	exec.Raw["result"] = entry
	exec.Notes = appendNote(exec.Notes, note)
	if err := tx.SaveExecution(ctx, exec); err != nil {
		return fmt.Errorf("save execution: %w", err)
	}

	if req.Method != MethodByBlocks {
		return nil
	}
	rows := make([]ledger.ExecutionBlock, 0, len(blocks))
	for i, b := range blocks {
		rows = append(rows, ledger.ExecutionBlock{
			ExecutionID:    exec.ID,
			WorkoutBlockID: b.ID,
			TimeSeconds:    req.BlockTimesSec[i],
		})
	}
	if err := tx.AddExecutionBlocks(ctx, rows); err != nil {
		return fmt.Errorf("add execution blocks: %w", err)
	}
	return nil
}

// registerRecords appends every candidate that strictly beats the stored
// best of its movement and type.
func registerRecords(ctx context.Context, tx ledger.Tx, userID int, w *workouts.Workout, blockTimes []float64, total float64, now time.Time) ([]RecordView, error) {
	prs := []RecordView{}
	for _, c := range profile.RecordCandidates(w, blockTimes, total) {
		best, err := tx.BestRecord(ctx, userID, c.MovementID, c.Type)
		switch {
		case errors.Is(err, ledger.ErrNotFound):
			best = nil
		case err != nil:
			return nil, fmt.Errorf("best record %d: %w", c.MovementID, err)
		}
		if !profile.Improves(best, c) {
			continue
		}
		if err := tx.AppendRecord(ctx, ledger.PersonalRecord{
			UserID:     userID,
			MovementID: c.MovementID,
			Type:       c.Type,
			Value:      c.Value,
			Unit:       c.Unit,
			AchievedAt: now,
		}); err != nil {
			return nil, fmt.Errorf("append record %d: %w", c.MovementID, err)
		}
		prs = append(prs, RecordView{
			MovementID: c.MovementID,
			Type:       c.Type,
			Value:      c.Value,
			Unit:       c.Unit,
		})
	}
	return prs, nil
}
