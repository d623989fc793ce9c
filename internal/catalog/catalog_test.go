package catalog_test

import (
	"context"
	"strings"
	"testing"

	"github.com/2beens/wodcareer/internal/catalog"
	"github.com/2beens/wodcareer/internal/ledger"
	"github.com/2beens/wodcareer/internal/ledger/memstore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	c := catalog.Default()
	assert.Len(t, c.Capacities, 6)
	assert.Len(t, c.Achievements, 5)
	require.Len(t, c.Missions, 3)

	epic := c.Missions[2]
	assert.Equal(t, "pr", epic.Condition.Type)
	assert.Equal(t, 1, epic.Condition.Target)
	assert.Equal(t, "week", epic.Condition.Window)
	assert.True(t, epic.Ledger().IsActive)
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	_, err := catalog.Read(strings.NewReader(`
capacities:
  - code: strength
  - code: fuerza
  - code: flexibility
achievements:
  - code: LEVEL_five
  - code: FIRST_PR
  - code: FIRST_PR
    xp_reward: -1
missions:
  - title: Weird
    condition: {type: wods, target: -2, window: month}
  - description: no title
`))
	require.Error(t, err)
	msg := err.Error()
	for _, want := range []string{
		`capacity "fuerza": duplicate`,
		`capacity "flexibility": no canonical mapping`,
		"LEVEL_five: level is not a number",
		"FIRST_PR: duplicate",
		"FIRST_PR: negative xp reward",
		`unknown window "month"`,
		"negative target",
		"mission without title",
	} {
		assert.Contains(t, msg, want)
	}
}

func TestParse_InvalidYAML(t *testing.T) {
	_, err := catalog.Parse([]byte("capacities: {"))
	assert.Error(t, err)
}

func TestSeedMemory(t *testing.T) {
	s := memstore.New()
	catalog.Default().SeedMemory(s)

	err := s.InTx(context.Background(), func(ctx context.Context, tx ledger.Tx) error {
		capacities, err := tx.Capacities(ctx)
		require.NoError(t, err)
		assert.Len(t, capacities, 6)

		achievements, err := tx.ActiveAchievements(ctx)
		require.NoError(t, err)
		assert.Len(t, achievements, 5)

		missions, err := tx.ActiveMissions(ctx)
		require.NoError(t, err)
		assert.Len(t, missions, 3)
		return nil
	})
	require.NoError(t, err)
	assert.Empty(t, s.Snapshot(1).Missions, "missions are assigned lazily")
}
