package auth

import (
	"context"
	"sync"
)

var (
	_ Resolver = (*Service)(nil)
	_ Resolver = (*StaticResolver)(nil)
)

// Resolver maps a session token to an athlete id.
type Resolver interface {
	Resolve(ctx context.Context, token string) (int, error)
}

// StaticResolver serves a fixed token table, for tests and the memory
// backend.
type StaticResolver struct {
	mu       sync.RWMutex
	sessions map[string]int
}

func NewStaticResolver(sessions map[string]int) *StaticResolver {
	r := &StaticResolver{sessions: map[string]int{}}
	for token, id := range sessions {
		r.sessions[token] = id
	}
	return r
}

func (r *StaticResolver) Add(token string, athleteID int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[token] = athleteID
}

func (r *StaticResolver) Resolve(_ context.Context, token string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.sessions[token]
	if !ok {
		return 0, ErrSessionNotFound
	}
	return id, nil
}

type athleteKey struct{}

func ContextWithAthleteID(ctx context.Context, athleteID int) context.Context {
	return context.WithValue(ctx, athleteKey{}, athleteID)
}

func AthleteIDFromContext(ctx context.Context) (int, bool) {
	id, ok := ctx.Value(athleteKey{}).(int)
	return id, ok && id > 0
}
