//go:build integration_test || all_tests

package auth

import (
	"testing"
	"time"

	testingpkg "github.com/2beens/wodcareer/pkg/testing"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestService_RedisRoundTrip(t *testing.T) {
	ctx, rdb := testingpkg.GetRedisClientAndCtx(t)
	s := NewService(time.Minute, rdb)

	athleteID := gofakeit.Number(1, 1_000_000)
	token, err := s.Open(ctx, athleteID)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	resolved, err := s.Resolve(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, athleteID, resolved)

	closed, err := s.Close(ctx, token)
	require.NoError(t, err)
	assert.True(t, closed)

	_, err = s.Resolve(ctx, token)
	assert.Error(t, err)

	closed, err = s.Close(ctx, token)
	require.NoError(t, err)
	assert.False(t, closed)
}
