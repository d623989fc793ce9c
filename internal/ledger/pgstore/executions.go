package pgstore

import (
	"context"
	"fmt"
	"time"

	"github.com/2beens/wodcareer/internal/ledger"
	"github.com/2beens/wodcareer/internal/telemetry/tracing"

	"github.com/jackc/pgx/v5"
)

func dayBounds(day time.Time) (time.Time, time.Time) {
	from := ledger.Day(day)
	return from, from.AddDate(0, 0, 1)
}

func (t *Tx) CountExecutionsOn(ctx context.Context, userID int, day time.Time) (int, error) {
	from, to := dayBounds(day)
	var n int
	err := t.tx.QueryRow(ctx, `
		SELECT COUNT(*) FROM workout_execution
		WHERE user_id = $1 AND executed_at >= $2 AND executed_at < $3
	`, userID, from, to).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count executions: %w", err)
	}
	return n, nil
}

func (t *Tx) LockExecutionOn(ctx context.Context, userID, workoutID int, day time.Time) (*ledger.Execution, error) {
	from, to := dayBounds(day)
	e := &ledger.Execution{}
	var (
		rawJSON []byte
		notes   *string
	)
	err := t.tx.QueryRow(ctx, `
		SELECT id, workout_id, user_id, executed_at, total_time_seconds::float8, raw_json, notes
		FROM workout_execution
		WHERE user_id = $1 AND workout_id = $2 AND executed_at >= $3 AND executed_at < $4
		ORDER BY executed_at DESC, id DESC
		LIMIT 1
		FOR UPDATE
	`, userID, workoutID, from, to).Scan(
		&e.ID, &e.WorkoutID, &e.UserID, &e.ExecutedAt, &e.TotalTimeSeconds, &rawJSON, &notes,
	)
	if err != nil {
		return nil, notFound(err)
	}
	if e.Raw, err = unmarshalJSON[map[string]any](rawJSON); err != nil {
		return nil, fmt.Errorf("execution %d raw json: %w", e.ID, err)
	}
	if notes != nil {
		e.Notes = *notes
	}
	return e, nil
}

func (t *Tx) SaveExecution(ctx context.Context, e *ledger.Execution) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.execution.save")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	raw, err := marshalJSON(e.Raw)
	if err != nil {
		return err
	}

	if e.ID == 0 {
		err = t.tx.QueryRow(ctx, `
			INSERT INTO workout_execution (workout_id, user_id, executed_at, total_time_seconds, raw_json, notes)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id
		`, e.WorkoutID, e.UserID, e.ExecutedAt, e.TotalTimeSeconds, raw, e.Notes).Scan(&e.ID)
		if err != nil {
			return fmt.Errorf("insert execution: %w", err)
		}
		return nil
	}

	tag, err := t.tx.Exec(ctx, `
		UPDATE workout_execution
		SET total_time_seconds = $1, raw_json = $2, notes = $3
		WHERE id = $4
	`, e.TotalTimeSeconds, raw, e.Notes, e.ID)
	if err != nil {
		return fmt.Errorf("update execution: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ledger.ErrNotFound
	}
	return nil
}

func (t *Tx) AddExecutionBlocks(ctx context.Context, blocks []ledger.ExecutionBlock) error {
	if len(blocks) == 0 {
		return nil
	}
	rows := make([][]any, 0, len(blocks))
	for _, b := range blocks {
		rows = append(rows, []any{b.ExecutionID, b.WorkoutBlockID, b.TimeSeconds})
	}
	_, err := t.tx.CopyFrom(
		ctx,
		pgx.Identifier{"workout_execution_block"},
		[]string{"execution_id", "workout_block_id", "time_seconds"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("copy execution blocks: %w", err)
	}
	return nil
}

const resultColumns = `id, workout_id, user_id, COALESCE(time_seconds, 0)::float8, difficulty::float8, rating::float8, COALESCE(comment, ''), created_at`

func (t *Tx) LatestResult(ctx context.Context, userID, workoutID int) (*ledger.Result, error) {
	r := &ledger.Result{}
	err := t.tx.QueryRow(ctx, `
		SELECT `+resultColumns+`
		FROM workout_result
		WHERE user_id = $1 AND workout_id = $2
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`, userID, workoutID).Scan(
		&r.ID, &r.WorkoutID, &r.UserID, &r.TimeSeconds, &r.Difficulty, &r.Rating, &r.Comment, &r.CreatedAt,
	)
	if err != nil {
		return nil, notFound(err)
	}
	return r, nil
}

func (t *Tx) AddResult(ctx context.Context, r *ledger.Result) error {
	err := t.tx.QueryRow(ctx, `
		INSERT INTO workout_result (workout_id, user_id, time_seconds, difficulty, rating, comment, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`, r.WorkoutID, r.UserID, r.TimeSeconds, r.Difficulty, r.Rating, r.Comment, r.CreatedAt).Scan(&r.ID)
	if err != nil {
		return fmt.Errorf("insert result: %w", err)
	}
	return nil
}
