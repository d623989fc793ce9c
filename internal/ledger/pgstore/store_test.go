//go:build integration_test || all_tests

package pgstore_test

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/2beens/wodcareer/internal/apply"
	"github.com/2beens/wodcareer/internal/catalog"
	"github.com/2beens/wodcareer/internal/db"
	"github.com/2beens/wodcareer/internal/impact"
	"github.com/2beens/wodcareer/internal/ledger"
	"github.com/2beens/wodcareer/internal/ledger/pgstore"
	"github.com/2beens/wodcareer/internal/telemetry/metrics"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)

type testEnv struct {
	pool  *pgxpool.Pool
	store *pgstore.Store
	svc   *apply.Service
}

func testStoreSetup(t *testing.T) (*testEnv, func()) {
	t.Helper()

	timeoutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	host := os.Getenv("POSTGRES_HOST")
	if host == "" {
		host = "localhost"
	}
	t.Logf("using postres host: %s", host)

	dbPool, err := db.NewDBPool(timeoutCtx, db.NewDBPoolParams{
		DBHost:         host,
		DBPort:         "5432",
		DBName:         "wodcareer",
		TracingEnabled: false,
	})
	require.NoError(t, err)

	store := pgstore.NewStore(dbPool, 512*1024)
	require.NoError(t, store.ApplySchema(timeoutCtx))
	_, err = store.SeedCatalog(timeoutCtx, catalog.Default())
	require.NoError(t, err)

	env := &testEnv{
		pool:  dbPool,
		store: store,
		svc: apply.NewService(apply.NewServiceParams{
			Store:   store,
			Metrics: metrics.NewTestManager(),
			Now:     func() time.Time { return testNow },
		}),
	}
	return env, func() {
		dbPool.Close()
	}
}

// athlete returns an id no earlier run has used.
func athlete() int {
	return gofakeit.Number(1_000_000, 2_000_000_000)
}

func (e *testEnv) insertWorkout(t *testing.T, title string) int {
	t.Helper()
	var id int
	err := e.pool.QueryRow(context.Background(),
		`INSERT INTO workouts (title) VALUES ($1) RETURNING id`, title,
	).Scan(&id)
	require.NoError(t, err)
	return id
}

func (e *testEnv) insertMovement(t *testing.T) int {
	t.Helper()
	var id int
	err := e.pool.QueryRow(context.Background(),
		`INSERT INTO movements (name) VALUES ($1) RETURNING id`, gofakeit.HipsterWord(),
	).Scan(&id)
	require.NoError(t, err)
	return id
}

func (e *testEnv) insertBlock(t *testing.T, workoutID, position, movementID int, reps float64) int {
	t.Helper()
	ctx := context.Background()
	var blockID int
	err := e.pool.QueryRow(ctx,
		`INSERT INTO workout_blocks (workout_id, position) VALUES ($1, $2) RETURNING id`, workoutID, position,
	).Scan(&blockID)
	require.NoError(t, err)
	_, err = e.pool.Exec(ctx,
		`INSERT INTO workout_block_movements (block_id, movement_id, position, reps) VALUES ($1, $2, 1, $3)`,
		blockID, movementID, reps,
	)
	require.NoError(t, err)
	return blockID
}

func (e *testEnv) pendingAnalysis(t *testing.T, workoutID, userID int) int {
	t.Helper()
	a := &ledger.Analysis{
		WorkoutID: workoutID,
		UserID:    userID,
		Payload:   map[string]any{},
		CreatedAt: testNow.Add(-time.Hour),
	}
	err := e.store.InTx(context.Background(), func(ctx context.Context, tx ledger.Tx) error {
		return tx.CreateAnalysis(ctx, a)
	})
	require.NoError(t, err)
	return a.ID
}

func TestStore_SchemaAndSeedIdempotent(t *testing.T) {
	env, shutdown := testStoreSetup(t)
	defer shutdown()
	ctx := context.Background()

	require.NoError(t, env.store.ApplySchema(ctx))
	stats, err := env.store.SeedCatalog(ctx, catalog.Default())
	require.NoError(t, err)
	assert.Equal(t, len(catalog.Default().Capacities), stats.Capacities)

	err = env.store.InTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		capacities, err := tx.Capacities(ctx)
		require.NoError(t, err)
		assert.Len(t, capacities, len(catalog.Default().Capacities))

		missions, err := tx.ActiveMissions(ctx)
		require.NoError(t, err)
		assert.Len(t, missions, len(catalog.Default().Missions))
		return nil
	})
	require.NoError(t, err)
}

func TestStore_ApplyImpactLevelOne(t *testing.T) {
	env, shutdown := testStoreSetup(t)
	defer shutdown()
	ctx := context.Background()

	userID := athlete()
	workoutID := env.insertWorkout(t, "Fran")
	analysisID := env.pendingAnalysis(t, workoutID, userID)

	resp, err := env.svc.ApplyImpact(ctx, apply.ImpactRequest{
		UserID:     userID,
		WorkoutID:  workoutID,
		AnalysisID: &analysisID,
		Impact:     map[string]any{"fatigue_score": 5, "resistencia": 10},
	})
	require.NoError(t, err)

	assert.True(t, resp.Applied)
	assert.InDelta(t, 70.5, resp.UpdatedProfile[impact.KeyFatigue], 0.001)
	assert.InDelta(t, 10.0, resp.UpdatedProfile["resistance"], 0.001)
	assert.InDelta(t, 1.54, resp.UpdatedProfile[impact.KeyLoadRatio], 0.001)
	assert.Equal(t, 83, resp.XPAwarded)
	assert.Equal(t, []string{"Haz un WOD hoy"}, resp.MissionsCompleted)
	assert.Equal(t, 103, resp.Career.XPTotal)
	assert.Equal(t, 1, resp.Career.Level)

	// replay is a read
	again, err := env.svc.ApplyImpact(ctx, apply.ImpactRequest{
		UserID:     userID,
		WorkoutID:  workoutID,
		AnalysisID: &analysisID,
		Impact:     map[string]any{"resistencia": 90},
	})
	require.NoError(t, err)
	assert.Zero(t, again.XPAwarded)
	assert.Equal(t, 103, again.Career.XPTotal)
	assert.InDelta(t, 10.0, again.UpdatedProfile["resistance"], 0.001)

	snap, err := env.svc.Career(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 103, snap.XPTotal)
}

func TestStore_ConcurrentApply(t *testing.T) {
	env, shutdown := testStoreSetup(t)
	defer shutdown()

	userID := athlete()
	workoutID := env.insertWorkout(t, "Grace")
	analysisID := env.pendingAnalysis(t, workoutID, userID)

	const callers = 6
	var wg sync.WaitGroup
	responses := make([]*apply.ImpactResponse, callers)
	errs := make([]error, callers)
	for n := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			responses[n], errs[n] = env.svc.ApplyImpact(context.Background(), apply.ImpactRequest{
				UserID:     userID,
				WorkoutID:  workoutID,
				AnalysisID: &analysisID,
				Impact:     map[string]any{"fatigue_score": 5, "resistencia": 10},
			})
		}()
	}
	wg.Wait()

	awarded := 0
	for n := range callers {
		require.NoError(t, errs[n])
		if responses[n].XPAwarded > 0 {
			awarded++
		}
	}
	assert.Equal(t, 1, awarded, "xp is booked once")

	var measurements int
	err := env.pool.QueryRow(context.Background(),
		`SELECT count(*) FROM user_capacity_profile WHERE user_id = $1`, userID,
	).Scan(&measurements)
	require.NoError(t, err)
	assert.Equal(t, 1, measurements)
}

func TestStore_SubmitResultByBlocks(t *testing.T) {
	env, shutdown := testStoreSetup(t)
	defer shutdown()
	ctx := context.Background()

	userID := athlete()
	workoutID := env.insertWorkout(t, gofakeit.Sentence(3))
	second := env.insertBlock(t, workoutID, 2, env.insertMovement(t), 30)
	first := env.insertBlock(t, workoutID, 1, env.insertMovement(t), 21)

	_, err := env.svc.SubmitResult(ctx, apply.ResultRequest{
		UserID:        userID,
		WorkoutID:     workoutID,
		Method:        apply.MethodByBlocks,
		BlockTimesSec: []float64{60},
	})
	require.ErrorIs(t, err, apply.ErrInvalidResult)

	resp, err := env.svc.SubmitResult(ctx, apply.ResultRequest{
		UserID:        userID,
		WorkoutID:     workoutID,
		Method:        apply.MethodByBlocks,
		BlockTimesSec: []float64{70, 110},
	})
	require.NoError(t, err)
	assert.Equal(t, 180.0, resp.Result.TimeSeconds)
	assert.Len(t, resp.PRsRegistered, 2)

	rows, err := env.pool.Query(ctx, `
		SELECT b.workout_block_id, b.time_seconds::float8
		FROM workout_execution_block b
		JOIN workout_execution e ON e.id = b.execution_id
		WHERE e.user_id = $1
		ORDER BY b.id
	`, userID)
	require.NoError(t, err)
	defer rows.Close()

	var blockIDs []int
	var times []float64
	for rows.Next() {
		var blockID int
		var sec float64
		require.NoError(t, rows.Scan(&blockID, &sec))
		blockIDs = append(blockIDs, blockID)
		times = append(times, sec)
	}
	require.NoError(t, rows.Err())
	assert.Equal(t, []int{first, second}, blockIDs)
	assert.Equal(t, []float64{70, 110}, times)
}
