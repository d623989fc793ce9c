package pgstore

import (
	"context"
	"fmt"

	"github.com/2beens/wodcareer/internal/ledger"
	"github.com/2beens/wodcareer/internal/telemetry/tracing"

	"go.opentelemetry.io/otel/attribute"
)

const analysisColumns = `id, workout_id, user_id, analysis_json, athlete_impact, applied, applied_at, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAnalysis(row rowScanner) (*ledger.Analysis, error) {
	var (
		a                     ledger.Analysis
		payloadRaw, impactRaw []byte
	)
	if err := row.Scan(&a.ID, &a.WorkoutID, &a.UserID, &payloadRaw, &impactRaw, &a.Applied, &a.AppliedAt, &a.CreatedAt); err != nil {
		return nil, notFound(err)
	}
	var err error
	if a.Payload, err = unmarshalJSON[map[string]any](payloadRaw); err != nil {
		return nil, fmt.Errorf("analysis %d payload: %w", a.ID, err)
	}
	if a.Impact, err = unmarshalJSON[map[string]float64](impactRaw); err != nil {
		return nil, fmt.Errorf("analysis %d impact: %w", a.ID, err)
	}
	return &a, nil
}

func (t *Tx) LockAnalysis(ctx context.Context, id, userID int) (_ *ledger.Analysis, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.analysis.lock")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("analysis.id", id))

	return scanAnalysis(t.tx.QueryRow(ctx, `
		SELECT `+analysisColumns+`
		FROM workout_analysis
		WHERE id = $1 AND user_id = $2
		FOR UPDATE
	`, id, userID))
}

// LockLatestAnalysis takes a transaction advisory lock on (user, workout)
// first, so two requests that both find no analysis do not both create one.
func (t *Tx) LockLatestAnalysis(ctx context.Context, workoutID, userID int) (_ *ledger.Analysis, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.analysis.lock_latest")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("workout.id", workoutID))

	if _, err := t.tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1::int4, $2::int4)`, userID, workoutID); err != nil {
		return nil, fmt.Errorf("advisory lock: %w", err)
	}

	return scanAnalysis(t.tx.QueryRow(ctx, `
		SELECT `+analysisColumns+`
		FROM workout_analysis
		WHERE workout_id = $1 AND user_id = $2
		ORDER BY created_at DESC, id DESC
		LIMIT 1
		FOR UPDATE
	`, workoutID, userID))
}

func (t *Tx) CreateAnalysis(ctx context.Context, a *ledger.Analysis) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.analysis.create")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	payload, err := marshalJSON(a.Payload)
	if err != nil {
		return err
	}
	impact, err := marshalJSON(a.Impact)
	if err != nil {
		return err
	}

	err = t.tx.QueryRow(ctx, `
		INSERT INTO workout_analysis (workout_id, user_id, analysis_json, athlete_impact, applied, applied_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`, a.WorkoutID, a.UserID, payload, impact, a.Applied, a.AppliedAt, a.CreatedAt).Scan(&a.ID)
	if err != nil {
		return fmt.Errorf("insert analysis: %w", err)
	}
	span.SetAttributes(attribute.Int("analysis.id", a.ID))
	return nil
}

func (t *Tx) SaveAnalysis(ctx context.Context, a *ledger.Analysis) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.analysis.save")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("analysis.id", a.ID))

	impact, err := marshalJSON(a.Impact)
	if err != nil {
		return err
	}

	tag, err := t.tx.Exec(ctx, `
		UPDATE workout_analysis
		SET athlete_impact = $1, applied = $2, applied_at = $3
		WHERE id = $4
	`, impact, a.Applied, a.AppliedAt, a.ID)
	if err != nil {
		return fmt.Errorf("update analysis: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ledger.ErrNotFound
	}
	return nil
}
