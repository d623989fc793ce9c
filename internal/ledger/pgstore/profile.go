package pgstore

import (
	"context"
	"fmt"
	"time"

	"github.com/2beens/wodcareer/internal/ledger"
	"github.com/2beens/wodcareer/internal/telemetry/tracing"
	"github.com/2beens/wodcareer/pkg"

	"go.opentelemetry.io/otel/attribute"
)

func (t *Tx) Capacities(ctx context.Context) (_ []ledger.Capacity, err error) {
	if cached, ok := t.cache.get(); ok {
		return cached, nil
	}

	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.capacities.list")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	rows, err := t.tx.Query(ctx, `SELECT id, code, name FROM physical_capacities ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("select capacities: %w", err)
	}
	defer rows.Close()

	var capacities []ledger.Capacity
	for rows.Next() {
		var c ledger.Capacity
		if err := rows.Scan(&c.ID, &c.Code, &c.Name); err != nil {
			return nil, fmt.Errorf("rows scan: %w", err)
		}
		capacities = append(capacities, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	t.cache.set(capacities)
	return capacities, nil
}

func (t *Tx) LatestCapacity(ctx context.Context, userID, capacityID int) (float64, error) {
	var value float64
	err := t.tx.QueryRow(ctx, `
		SELECT value::float8
		FROM user_capacity_profile
		WHERE user_id = $1 AND capacity_id = $2
		ORDER BY measured_at DESC, id DESC
		LIMIT 1
	`, userID, capacityID).Scan(&value)
	if err != nil {
		return 0, notFound(err)
	}
	return value, nil
}

func (t *Tx) AppendCapacity(ctx context.Context, m ledger.CapacityMeasurement) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO user_capacity_profile (user_id, capacity_id, value, measured_at)
		VALUES ($1, $2, $3, $4)
	`, m.UserID, m.CapacityID, m.Value, m.MeasuredAt)
	if err != nil {
		return fmt.Errorf("insert capacity measurement: %w", err)
	}
	return nil
}

func (t *Tx) CurrentCapacities(ctx context.Context, userID int) (_ map[string]float64, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.capacities.current")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("user.id", userID))

	rows, err := t.tx.Query(ctx, `
		SELECT DISTINCT ON (ucp.capacity_id) pc.code, ucp.value::float8
		FROM user_capacity_profile ucp
		JOIN physical_capacities pc ON pc.id = ucp.capacity_id
		WHERE ucp.user_id = $1
		ORDER BY ucp.capacity_id, ucp.measured_at DESC, ucp.id DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("select current capacities: %w", err)
	}
	defer rows.Close()

	current := map[string]float64{}
	for rows.Next() {
		var (
			code  string
			value float64
		)
		if err := rows.Scan(&code, &value); err != nil {
			return nil, fmt.Errorf("rows scan: %w", err)
		}
		current[code] = value
	}
	return current, rows.Err()
}

func (t *Tx) LatestBiometric(ctx context.Context, userID int) (*ledger.BiometricMeasurement, error) {
	b := &ledger.BiometricMeasurement{UserID: userID}
	err := t.tx.QueryRow(ctx, `
		SELECT measured_at, fatigue_score::float8, hr_rest::float8, hr_avg::float8, hr_max::float8,
		       vo2_est::float8, hrv::float8, sleep_hours::float8, recovery_time_hours::float8
		FROM user_biometrics
		WHERE user_id = $1
		ORDER BY measured_at DESC, id DESC
		LIMIT 1
	`, userID).Scan(
		&b.MeasuredAt, &b.FatigueScore, &b.HRRest, &b.HRAvg, &b.HRMax,
		&b.VO2Est, &b.HRV, &b.SleepHours, &b.RecoveryTimeHours,
	)
	if err != nil {
		return nil, notFound(err)
	}
	return b, nil
}

func (t *Tx) AppendBiometric(ctx context.Context, m ledger.BiometricMeasurement) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO user_biometrics
			(user_id, measured_at, fatigue_score, hr_rest, hr_avg, hr_max, vo2_est, hrv, sleep_hours, recovery_time_hours)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, m.UserID, m.MeasuredAt, m.FatigueScore, m.HRRest, m.HRAvg, m.HRMax, m.VO2Est, m.HRV, m.SleepHours, m.RecoveryTimeHours)
	if err != nil {
		return fmt.Errorf("insert biometrics: %w", err)
	}
	return nil
}

// skillNote is the JSON kept in user_skills.note.
type skillNote struct {
	ledger.SkillTotals
	PrimaryMetric string `json:"primary_metric"`
}

func (t *Tx) GetSkill(ctx context.Context, userID, movementID int) (*ledger.SkillAggregate, error) {
	s := &ledger.SkillAggregate{UserID: userID, MovementID: movementID}
	var noteRaw []byte
	err := t.tx.QueryRow(ctx, `
		SELECT skill_score::float8, note, measured_at
		FROM user_skills
		WHERE user_id = $1 AND movement_id = $2
	`, userID, movementID).Scan(&s.SkillScore, &noteRaw, &s.MeasuredAt)
	if err != nil {
		return nil, notFound(err)
	}

	note, err := unmarshalJSON[skillNote](noteRaw)
	if err != nil {
		return nil, fmt.Errorf("skill note: %w", err)
	}
	s.Totals = note.SkillTotals
	s.PrimaryMetric = note.PrimaryMetric
	return s, nil
}

func (t *Tx) UpsertSkill(ctx context.Context, s ledger.SkillAggregate) error {
	note, err := marshalJSON(skillNote{SkillTotals: s.Totals, PrimaryMetric: s.PrimaryMetric})
	if err != nil {
		return err
	}
	_, err = t.tx.Exec(ctx, `
		INSERT INTO user_skills (user_id, movement_id, skill_score, note, measured_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, movement_id)
		DO UPDATE SET skill_score = EXCLUDED.skill_score, note = EXCLUDED.note, measured_at = EXCLUDED.measured_at
	`, s.UserID, s.MovementID, s.SkillScore, note, s.MeasuredAt)
	if pkg.IsForeignKeyViolationError(err) {
		return fmt.Errorf("upsert skill, movement %d: %w", s.MovementID, ledger.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("upsert skill: %w", err)
	}
	return nil
}

func (t *Tx) BestRecord(ctx context.Context, userID, movementID int, recordType ledger.RecordType) (*ledger.PersonalRecord, error) {
	order := "DESC"
	if recordType.LowerIsBetter() {
		order = "ASC"
	}

	pr := &ledger.PersonalRecord{UserID: userID, MovementID: movementID, Type: recordType}
	var unit *string
	err := t.tx.QueryRow(ctx, `
		SELECT value::float8, unit, achieved_at
		FROM user_pr
		WHERE user_id = $1 AND movement_id = $2 AND pr_type = $3
		ORDER BY value `+order+`
		LIMIT 1
	`, userID, movementID, string(recordType)).Scan(&pr.Value, &unit, &pr.AchievedAt)
	if err != nil {
		return nil, notFound(err)
	}
	if unit != nil {
		pr.Unit = *unit
	}
	return pr, nil
}

func (t *Tx) AppendRecord(ctx context.Context, pr ledger.PersonalRecord) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO user_pr (user_id, movement_id, pr_type, value, unit, achieved_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, pr.UserID, pr.MovementID, string(pr.Type), pr.Value, pr.Unit, pr.AchievedAt)
	if pkg.IsForeignKeyViolationError(err) {
		return fmt.Errorf("insert personal record, movement %d: %w", pr.MovementID, ledger.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("insert personal record: %w", err)
	}
	return nil
}

const trainingLoadColumns = `id, user_id, load_date, acute_load::float8, chronic_load::float8, load_ratio::float8, COALESCE(notes, '')`

func scanTrainingLoad(row rowScanner) (*ledger.TrainingLoadDay, error) {
	d := &ledger.TrainingLoadDay{}
	if err := row.Scan(&d.ID, &d.UserID, &d.LoadDate, &d.AcuteLoad, &d.ChronicLoad, &d.LoadRatio, &d.Notes); err != nil {
		return nil, notFound(err)
	}
	return d, nil
}

func (t *Tx) LockTrainingLoadDay(ctx context.Context, userID int, day time.Time) (*ledger.TrainingLoadDay, error) {
	return scanTrainingLoad(t.tx.QueryRow(ctx, `
		SELECT `+trainingLoadColumns+`
		FROM user_training_load
		WHERE user_id = $1 AND load_date = $2
		FOR UPDATE
	`, userID, ledger.Day(day)))
}

func (t *Tx) LatestTrainingLoad(ctx context.Context, userID int) (*ledger.TrainingLoadDay, error) {
	return scanTrainingLoad(t.tx.QueryRow(ctx, `
		SELECT `+trainingLoadColumns+`
		FROM user_training_load
		WHERE user_id = $1
		ORDER BY load_date DESC
		LIMIT 1
	`, userID))
}

func (t *Tx) SaveTrainingLoadDay(ctx context.Context, d *ledger.TrainingLoadDay) error {
	d.LoadDate = ledger.Day(d.LoadDate)
	if d.ID == 0 {
		err := t.tx.QueryRow(ctx, `
			INSERT INTO user_training_load (user_id, load_date, acute_load, chronic_load, load_ratio, notes)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id
		`, d.UserID, d.LoadDate, d.AcuteLoad, d.ChronicLoad, d.LoadRatio, d.Notes).Scan(&d.ID)
		if err != nil {
			return fmt.Errorf("insert training load: %w", err)
		}
		return nil
	}

	tag, err := t.tx.Exec(ctx, `
		UPDATE user_training_load
		SET acute_load = $1, chronic_load = $2, load_ratio = $3, notes = $4
		WHERE id = $5
	`, d.AcuteLoad, d.ChronicLoad, d.LoadRatio, d.Notes, d.ID)
	if err != nil {
		return fmt.Errorf("update training load: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ledger.ErrNotFound
	}
	return nil
}

func (t *Tx) CountTrainingLoadDaysSince(ctx context.Context, userID int, since time.Time) (int, error) {
	var n int
	err := t.tx.QueryRow(ctx, `
		SELECT COUNT(*) FROM user_training_load WHERE user_id = $1 AND load_date >= $2
	`, userID, ledger.Day(since)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count training load days: %w", err)
	}
	return n, nil
}
