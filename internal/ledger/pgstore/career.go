package pgstore

import (
	"context"
	"fmt"
	"time"

	"github.com/2beens/wodcareer/internal/ledger"
	"github.com/2beens/wodcareer/internal/telemetry/tracing"

	"go.opentelemetry.io/otel/attribute"
)

func (t *Tx) LockCareer(ctx context.Context, userID int) (*ledger.CareerState, error) {
	c := &ledger.CareerState{}
	err := t.tx.QueryRow(ctx, `
		SELECT user_id, xp_total, level, progress_pct::float8, updated_at
		FROM user_progress
		WHERE user_id = $1
		FOR UPDATE
	`, userID).Scan(&c.UserID, &c.XPTotal, &c.Level, &c.ProgressPct, &c.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return c, nil
}

func (t *Tx) SaveCareer(ctx context.Context, c *ledger.CareerState) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.career.save")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("user.id", c.UserID), attribute.Int("career.xp", c.XPTotal))

	_, err = t.tx.Exec(ctx, `
		INSERT INTO user_progress (user_id, xp_total, level, progress_pct, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id)
		DO UPDATE SET xp_total = EXCLUDED.xp_total, level = EXCLUDED.level,
		              progress_pct = EXCLUDED.progress_pct, updated_at = EXCLUDED.updated_at
	`, c.UserID, c.XPTotal, c.Level, c.ProgressPct, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert career: %w", err)
	}
	return nil
}

const achievementColumns = `id, code, name, COALESCE(description, ''), COALESCE(category, ''), xp_reward, is_active`

func (t *Tx) ActiveAchievements(ctx context.Context) ([]ledger.Achievement, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT `+achievementColumns+`
		FROM achievements
		WHERE is_active
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("select achievements: %w", err)
	}
	defer rows.Close()

	var achievements []ledger.Achievement
	for rows.Next() {
		var a ledger.Achievement
		if err := rows.Scan(&a.ID, &a.Code, &a.Name, &a.Description, &a.Category, &a.XPReward, &a.IsActive); err != nil {
			return nil, fmt.Errorf("rows scan: %w", err)
		}
		achievements = append(achievements, a)
	}
	return achievements, rows.Err()
}

func (t *Tx) AchievementByCode(ctx context.Context, code string) (*ledger.Achievement, error) {
	a := &ledger.Achievement{}
	err := t.tx.QueryRow(ctx, `
		SELECT `+achievementColumns+`
		FROM achievements
		WHERE code = $1
	`, code).Scan(&a.ID, &a.Code, &a.Name, &a.Description, &a.Category, &a.XPReward, &a.IsActive)
	if err != nil {
		return nil, notFound(err)
	}
	return a, nil
}

func (t *Tx) HasAchievement(ctx context.Context, userID, achievementID int) (bool, error) {
	var has bool
	err := t.tx.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM user_achievements WHERE user_id = $1 AND achievement_id = $2)
	`, userID, achievementID).Scan(&has)
	if err != nil {
		return false, fmt.Errorf("select user achievement: %w", err)
	}
	return has, nil
}

func (t *Tx) GrantAchievement(ctx context.Context, userID, achievementID int, at time.Time) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO user_achievements (user_id, achievement_id, unlocked_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, achievement_id) DO NOTHING
	`, userID, achievementID, at)
	if err != nil {
		return fmt.Errorf("insert user achievement: %w", err)
	}
	return nil
}

func (t *Tx) ActiveMissions(ctx context.Context) ([]ledger.Mission, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT id, type, title, COALESCE(description, ''), xp_reward, condition_json, is_active
		FROM missions
		WHERE is_active
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("select missions: %w", err)
	}
	defer rows.Close()

	var missions []ledger.Mission
	for rows.Next() {
		var (
			m         ledger.Mission
			condition []byte
		)
		if err := rows.Scan(&m.ID, &m.Type, &m.Title, &m.Description, &m.XPReward, &condition, &m.IsActive); err != nil {
			return nil, fmt.Errorf("rows scan: %w", err)
		}
		if m.Condition, err = unmarshalJSON[ledger.MissionCondition](condition); err != nil {
			return nil, fmt.Errorf("mission %d condition: %w", m.ID, err)
		}
		missions = append(missions, m)
	}
	return missions, rows.Err()
}

func (t *Tx) UserMissions(ctx context.Context, userID int) (_ []ledger.UserMission, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.missions.user")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("user.id", userID))

	rows, err := t.tx.Query(ctx, `
		SELECT um.id, um.user_id, um.status, um.progress_value, um.assigned_at, um.completed_at, um.expires_at,
		       m.id, m.type, m.title, COALESCE(m.description, ''), m.xp_reward, m.condition_json, m.is_active
		FROM user_missions um
		JOIN missions m ON m.id = um.mission_id
		WHERE um.user_id = $1
		ORDER BY um.id
		FOR UPDATE OF um
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("select user missions: %w", err)
	}
	defer rows.Close()

	var missions []ledger.UserMission
	for rows.Next() {
		var (
			um        ledger.UserMission
			status    string
			condition []byte
		)
		if err := rows.Scan(
			&um.ID, &um.UserID, &status, &um.ProgressValue, &um.AssignedAt, &um.CompletedAt, &um.ExpiresAt,
			&um.Mission.ID, &um.Mission.Type, &um.Mission.Title, &um.Mission.Description,
			&um.Mission.XPReward, &condition, &um.Mission.IsActive,
		); err != nil {
			return nil, fmt.Errorf("rows scan: %w", err)
		}
		um.Status = ledger.MissionStatus(status)
		if um.Mission.Condition, err = unmarshalJSON[ledger.MissionCondition](condition); err != nil {
			return nil, fmt.Errorf("mission %d condition: %w", um.Mission.ID, err)
		}
		missions = append(missions, um)
	}
	return missions, rows.Err()
}

func (t *Tx) AssignMission(ctx context.Context, m *ledger.UserMission) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO user_missions (user_id, mission_id, status, progress_value, assigned_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id, mission_id) DO NOTHING
	`, m.UserID, m.Mission.ID, string(m.Status), m.ProgressValue, m.AssignedAt, m.ExpiresAt)
	if err != nil {
		return fmt.Errorf("insert user mission: %w", err)
	}
	return nil
}

func (t *Tx) SaveUserMission(ctx context.Context, m *ledger.UserMission) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE user_missions
		SET status = $1, progress_value = $2, completed_at = $3, expires_at = $4
		WHERE id = $5
	`, string(m.Status), m.ProgressValue, m.CompletedAt, m.ExpiresAt, m.ID)
	if err != nil {
		return fmt.Errorf("update user mission: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ledger.ErrNotFound
	}
	return nil
}
