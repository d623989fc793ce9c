package workouts

import (
	"context"
	"errors"
	"fmt"

	"github.com/2beens/wodcareer/internal/telemetry/tracing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel/attribute"
)

// Querier is satisfied by *pgxpool.Pool and pgx.Tx.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Repo reads workout definitions. The tables belong to the workout catalog,
// this repo never writes them.
type Repo struct {
	db Querier
}

func NewRepo(db Querier) *Repo {
	return &Repo{
		db: db,
	}
}

func (r *Repo) Get(ctx context.Context, id int) (_ *Workout, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.workouts.get")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("workout.id", id))

	w := &Workout{}
	var sessionLoad *string
	err = r.db.QueryRow(ctx, `
		SELECT w.id, w.title, COALESCE(w.domain, ''),
		       wm.session_load, ws.estimated_difficulty::float8, ws.avg_time_seconds::float8
		FROM workouts w
		LEFT JOIN workout_metadata wm ON wm.workout_id = w.id
		LEFT JOIN workout_stats ws ON ws.workout_id = w.id
		WHERE w.id = $1
	`, id).Scan(
		&w.ID, &w.Title, &w.Domain,
		&sessionLoad, &w.EstimatedDifficulty, &w.AvgTimeSeconds,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrWorkoutNotFound
		}
		return nil, fmt.Errorf("select workout: %w", err)
	}
	if sessionLoad != nil {
		w.SessionLoad = *sessionLoad
	}

	if w.Capacities, err = r.capacities(ctx, id); err != nil {
		return nil, err
	}
	if w.Blocks, err = r.blocks(ctx, id); err != nil {
		return nil, err
	}

	return w, nil
}

func (r *Repo) capacities(ctx context.Context, workoutID int) ([]CapacityLink, error) {
	rows, err := r.db.Query(ctx, `
		SELECT capacity, value::float8
		FROM workout_capacities
		WHERE workout_id = $1
		ORDER BY id
	`, workoutID)
	if err != nil {
		return nil, fmt.Errorf("select workout capacities: %w", err)
	}
	defer rows.Close()

	var links []CapacityLink
	for rows.Next() {
		var l CapacityLink
		if err := rows.Scan(&l.Capacity, &l.Value); err != nil {
			return nil, err
		}
		links = append(links, l)
	}
	return links, rows.Err()
}

func (r *Repo) blocks(ctx context.Context, workoutID int) ([]Block, error) {
	rows, err := r.db.Query(ctx, `
		SELECT b.id, b.position, COALESCE(b.title, ''),
		       bm.movement_id, COALESCE(m.name, ''), bm.position,
		       bm.reps::float8, bm.load::float8, bm.distance_meters::float8,
		       bm.duration_seconds::float8, bm.calories::float8
		FROM workout_blocks b
		LEFT JOIN workout_block_movements bm ON bm.block_id = b.id
		LEFT JOIN movements m ON m.id = bm.movement_id
		WHERE b.workout_id = $1
		ORDER BY b.position, b.id, bm.position
	`, workoutID)
	if err != nil {
		return nil, fmt.Errorf("select workout blocks: %w", err)
	}
	defer rows.Close()

	var blocks []Block
	index := map[int]int{}
	for rows.Next() {
		var (
			b          Block
			movementID *int
			mv         Movement
			mvPosition *int
		)
		if err := rows.Scan(
			&b.ID, &b.Position, &b.Name,
			&movementID, &mv.Name, &mvPosition,
			&mv.Reps, &mv.Load, &mv.DistanceMeters,
			&mv.DurationSeconds, &mv.Calories,
		); err != nil {
			return nil, err
		}

		i, ok := index[b.ID]
		if !ok {
			blocks = append(blocks, b)
			i = len(blocks) - 1
			index[b.ID] = i
		}
		if movementID == nil {
			continue
		}
		mv.MovementID = *movementID
		if mvPosition != nil {
			mv.Position = *mvPosition
		}
		blocks[i].Movements = append(blocks[i].Movements, mv)
	}
	return blocks, rows.Err()
}
