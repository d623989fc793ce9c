package impact_test

import (
	"encoding/json"
	"testing"

	"github.com/2beens/wodcareer/internal/impact"
	"github.com/2beens/wodcareer/internal/workouts"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func f(v float64) *float64 { return &v }

func TestParseNumber(t *testing.T) {
	tests := []struct {
		in   any
		want float64
		ok   bool
	}{
		{12.5, 12.5, true},
		{7, 7, true},
		{int64(3), 3, true},
		{json.Number("4.25"), 4.25, true},
		{"12,5", 12.5, true},
		{" 80 kg", 80, true},
		{"-3", -3, true},
		{"abc", 0, false},
		{"", 0, false},
		{"1.2.3", 0, false},
		{true, 0, false},
		{nil, 0, false},
		{[]int{1}, 0, false},
	}
	for _, tt := range tests {
		got, ok := impact.ParseNumber(tt.in)
		assert.Equal(t, tt.ok, ok, "%v", tt.in)
		assert.Equal(t, tt.want, got, "%v", tt.in)
	}
}

func TestParseEmphasis(t *testing.T) {
	assert.Equal(t, 75.0, impact.ParseEmphasis("75/100"))
	assert.Equal(t, 75.0, impact.ParseEmphasis("75%"))
	assert.Equal(t, 75.0, impact.ParseEmphasis("75"))
	assert.Equal(t, 40.0, impact.ParseEmphasis(40))
	assert.Equal(t, 0.0, impact.ParseEmphasis("high"))
	assert.Equal(t, 0.0, impact.ParseEmphasis(nil))
}

func TestCanonicalCapacity(t *testing.T) {
	tests := map[string]string{
		"resistance":     impact.CapacityResistencia,
		"Resistencia":    impact.CapacityResistencia,
		"STRENGTH":       impact.CapacityFuerza,
		"metcon":         impact.CapacityMetcon,
		"Gimnásticos":    impact.CapacityGimnasticos,
		"gymnastics":     impact.CapacityGimnasticos,
		"gimnastico":     impact.CapacityGimnasticos,
		"speed":          impact.CapacityVelocidad,
		"power":          impact.CapacityPotencia,
		"carga_muscular": impact.CapacityCargaMuscular,
		"muscular-load":  impact.CapacityCargaMuscular,
	}
	for in, want := range tests {
		got, ok := impact.CanonicalCapacity(in)
		require.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}

	_, ok := impact.CanonicalCapacity("flexibility")
	assert.False(t, ok)
}

func TestNormalize_ExplicitImpact(t *testing.T) {
	n := impact.NewNormalizer().Normalize(impact.Input{
		Incoming: map[string]any{
			"fatigue_score": 5,
			"resistencia":   "10",
			"flexibility":   3,
			"skill_snatch":  2,
			"notes":         "no number here",
		},
	})

	assert.Equal(t, 10.0, n.Map[impact.CapacityResistencia])
	assert.Equal(t, 5.0, n.Map[impact.KeyFatigue])
	assert.Equal(t, 40.0, n.Map[impact.KeyAcuteLoad], "fatigue*8")
	assert.Equal(t, 26.0, n.Map[impact.KeyChronicLoad])
	assert.Equal(t, 1.54, n.Map[impact.KeyLoadRatio])
	assert.Equal(t, 2.0, n.Map["skill_snatch"])
	assert.NotContains(t, n.Map, "flexibility")
	assert.NotContains(t, n.Map, "notes")

	require.Len(t, n.Gaps, 1)
	assert.Equal(t, "flexibility", n.Gaps[0].Key)

	require.Len(t, n.Capacities, 1)
	assert.Equal(t, impact.CapacityDelta{Code: impact.CapacityResistencia, Value: 10}, n.Capacities[0])
	require.NotNil(t, n.Fatigue)
	assert.Equal(t, 5.0, n.Fatigue.Value)
	require.NotNil(t, n.Load.Ratio)
	assert.Equal(t, 1.54, *n.Load.Ratio)
}

func TestNormalize_IncomingWinsOverCurrent(t *testing.T) {
	n := impact.NewNormalizer().Normalize(impact.Input{
		Current:  map[string]float64{impact.CapacityFuerza: 5, impact.KeyFatigue: 12},
		Incoming: map[string]any{"strength": 9},
	})
	assert.Equal(t, 9.0, n.Map[impact.CapacityFuerza])
	assert.Equal(t, 12.0, n.Map[impact.KeyFatigue])
}

func TestNormalize_CapacityFromFocusThenWorkout(t *testing.T) {
	w := &workouts.Workout{
		Capacities: []workouts.CapacityLink{
			{Capacity: "Fuerza", Value: 30},
			{Capacity: "Metcon", Value: 60},
		},
	}
	n := impact.NewNormalizer().Normalize(impact.Input{
		Analysis: map[string]any{
			"capacity_focus": []any{
				map[string]any{"capacity": "Fuerza", "emphasis": "75/100"},
				map[string]any{"capacity": "Velocidad", "emphasis": "40%"},
			},
			"fatigue_score": 6.5,
		},
		Workout: w,
	})

	assert.Equal(t, 75.0, n.Map[impact.CapacityFuerza], "focus beats workout link")
	assert.Equal(t, 40.0, n.Map[impact.CapacityVelocidad])
	assert.Equal(t, 60.0, n.Map[impact.CapacityMetcon])
	assert.Equal(t, 6.5, n.Map[impact.KeyFatigue])
}

func TestNormalize_DomainFallback(t *testing.T) {
	tests := []struct {
		domain string
		want   string
	}{
		{"Strength & skill", impact.CapacityFuerza},
		{"endurance", impact.CapacityResistencia},
		{"POWER", impact.CapacityPotencia},
		{"chipper", impact.CapacityMetcon},
		{"", impact.CapacityMetcon},
	}
	for _, tt := range tests {
		n := impact.NewNormalizer().Normalize(impact.Input{
			Workout: &workouts.Workout{Domain: tt.domain},
		})
		assert.Equal(t, map[string]float64{
			tt.want:               5,
			impact.KeyFatigue:     impact.DefaultFatigue,
			impact.KeyAcuteLoad:   80,
			impact.KeyChronicLoad: 52,
			impact.KeyLoadRatio:   1.54,
		}, n.Map, tt.domain)
	}
}

func TestNormalize_LoadsFromSessionLoad(t *testing.T) {
	n := impact.NewNormalizer().Normalize(impact.Input{
		Incoming: map[string]any{"metcon": 4},
		Analysis: map[string]any{"session_load": 1},
	})
	assert.Equal(t, 1.0, n.Map[impact.KeyAcuteLoad])
	assert.Equal(t, 1.0, n.Map[impact.KeyChronicLoad], "chronic never under 1")
	assert.Equal(t, 1.0, n.Map[impact.KeyLoadRatio])

	n = impact.NewNormalizer().Normalize(impact.Input{
		Incoming: map[string]any{"metcon": 4},
		Workout:  &workouts.Workout{SessionLoad: "120"},
	})
	assert.Equal(t, 120.0, n.Map[impact.KeyAcuteLoad])
	assert.Equal(t, 78.0, n.Map[impact.KeyChronicLoad])

	n = impact.NewNormalizer().Normalize(impact.Input{
		Incoming: map[string]any{"metcon": 4, "fatigue_score": 2},
		Workout:  &workouts.Workout{SessionLoad: "zone 3"},
	})
	assert.Equal(t, 16.0, n.Map[impact.KeyAcuteLoad])
}

func TestNormalize_ExplicitRatioKept(t *testing.T) {
	n := impact.NewNormalizer().Normalize(impact.Input{
		Incoming: map[string]any{"metcon": 4, "acute_load": 10, "chronic_load": 0, "load_ratio": 0.8},
	})
	assert.Equal(t, 0.0, n.Map[impact.KeyChronicLoad])
	assert.Equal(t, 0.8, n.Map[impact.KeyLoadRatio])

	n = impact.NewNormalizer().Normalize(impact.Input{
		Incoming: map[string]any{"metcon": 4, "acute_load": 10, "chronic_load": 0},
	})
	assert.NotContains(t, n.Map, impact.KeyLoadRatio, "no ratio when chronic is zero")
	assert.Nil(t, n.Load.Ratio)
}

func TestNormalized_DeltasAndScale(t *testing.T) {
	w := &workouts.Workout{
		Blocks: []workouts.Block{{ID: 1, Movements: []workouts.Movement{
			{MovementID: 4, Reps: f(21), Load: f(43)},
		}}},
	}
	n := impact.NewNormalizer().Normalize(impact.Input{
		Incoming: map[string]any{"fuerza": 3, "metcon": 2, "fatigue_score": 4},
		Workout:  w,
	})

	kinds := []impact.Kind{}
	for _, d := range n.Deltas() {
		kinds = append(kinds, d.Kind())
	}
	assert.Equal(t, []impact.Kind{
		impact.KindCapacity, impact.KindCapacity, impact.KindFatigue, impact.KindLoad, impact.KindSkill,
	}, kinds)
	assert.Equal(t, "skill", impact.KindSkill.String())

	require.Len(t, n.Skills, 1)
	assert.Equal(t, 4, n.Skills[0].MovementID)
	assert.Equal(t, 903.0, n.Skills[0].Increment.Kg)

	n.ScaleFatigue(2.5)
	assert.Equal(t, 10.0, n.Fatigue.Value)
	assert.Equal(t, 10.0, n.Map[impact.KeyFatigue])
	assert.False(t, n.Empty())
}
