// Package pgstore is the Postgres ledger backend. Every Store.InTx call is
// one pgx transaction; the rows the engine must serialize on are read with
// SELECT ... FOR UPDATE.
package pgstore

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/2beens/wodcareer/internal/db"
	"github.com/2beens/wodcareer/internal/ledger"
	"github.com/2beens/wodcareer/internal/workouts"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Schema creates every table the engine and its read-only collaborators
// use. It is idempotent.
//
//go:embed schema.sql
var Schema string

// Pool is satisfied by *pgxpool.Pool.
type Pool interface {
	db.Beginner
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type Store struct {
	pool  Pool
	cache *capacityCache
}

var _ ledger.Store = (*Store)(nil)

// NewStore keeps up to cacheSize bytes of catalog rows in memory.
func NewStore(pool Pool, cacheSize int) *Store {
	return &Store{
		pool:  pool,
		cache: newCapacityCache(cacheSize),
	}
}

func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx ledger.Tx) error) error {
	return db.RunInTx(ctx, s.pool, func(pgTx pgx.Tx) error {
		return fn(ctx, s.wrap(pgTx))
	})
}

func (s *Store) wrap(pgTx pgx.Tx) *Tx {
	return &Tx{
		tx:       pgTx,
		cache:    s.cache,
		workouts: workouts.NewRepo(pgTx),
	}
}

// ApplySchema runs Schema on the pool.
func (s *Store) ApplySchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

type Tx struct {
	tx       pgx.Tx
	cache    *capacityCache
	workouts *workouts.Repo
}

var _ ledger.Tx = (*Tx)(nil)

// Savepoint uses a pgx nested transaction, which is a SAVEPOINT on the
// same connection.
func (t *Tx) Savepoint(ctx context.Context, fn func(ctx context.Context, tx ledger.Tx) error) error {
	return db.RunInTx(ctx, t.tx, func(sp pgx.Tx) error {
		return fn(ctx, &Tx{
			tx:       sp,
			cache:    t.cache,
			workouts: workouts.NewRepo(sp),
		})
	})
}

func (t *Tx) GetWorkout(ctx context.Context, id int) (*workouts.Workout, error) {
	return t.workouts.Get(ctx, id)
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ledger.ErrNotFound
	}
	return err
}

func marshalJSON(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal json: %w", err)
	}
	return b, nil
}

func unmarshalJSON[T any](data []byte) (T, error) {
	var v T
	if len(data) == 0 {
		return v, nil
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return v, fmt.Errorf("unmarshal json: %w", err)
	}
	return v, nil
}
