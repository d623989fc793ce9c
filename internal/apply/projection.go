package apply

import (
	"context"
	"errors"
	"fmt"
	"maps"

	"github.com/2beens/wodcareer/internal/impact"
	"github.com/2beens/wodcareer/internal/ledger"
)

// projectionKeys are the response names of the canonical capacity codes.
var projectionKeys = map[string]string{
	impact.CapacityResistencia:   "resistance",
	impact.CapacityFuerza:        "strength",
	impact.CapacityMetcon:        "metcon",
	impact.CapacityGimnasticos:   "gymnastics",
	impact.CapacityVelocidad:     "speed",
	impact.CapacityPotencia:      "power",
	impact.CapacityCargaMuscular: "muscular_load",
}

func projectionKey(code string) string {
	if canonical, ok := impact.CanonicalCapacity(code); ok {
		if key, ok := projectionKeys[canonical]; ok {
			return key
		}
	}
	return code
}

// projectProfile is the flat profile view: latest capacity values, the
// latest biometrics and the latest training load.
func projectProfile(ctx context.Context, tx ledger.Tx, userID int) (map[string]float64, error) {
	out := map[string]float64{}

	capacities, err := tx.CurrentCapacities(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("current capacities: %w", err)
	}
	for code, v := range capacities {
		out[projectionKey(code)] = v
	}

	bio, err := tx.LatestBiometric(ctx, userID)
	switch {
	case err == nil:
		for key, v := range map[string]*float64{
			impact.KeyFatigue: bio.FatigueScore,
			"hr_rest":         bio.HRRest,
			"hr_avg":          bio.HRAvg,
			"hr_max":          bio.HRMax,
			"vo2_est":         bio.VO2Est,
			"hrv":             bio.HRV,
			"sleep_hours":     bio.SleepHours,
		} {
			if v != nil {
				out[key] = *v
			}
		}
	case !errors.Is(err, ledger.ErrNotFound):
		return nil, fmt.Errorf("latest biometric: %w", err)
	}

	load, err := tx.LatestTrainingLoad(ctx, userID)
	switch {
	case err == nil:
		out[impact.KeyAcuteLoad] = load.AcuteLoad
		out[impact.KeyChronicLoad] = load.ChronicLoad
		if load.LoadRatio != nil {
			out[impact.KeyLoadRatio] = *load.LoadRatio
		}
	case !errors.Is(err, ledger.ErrNotFound):
		return nil, fmt.Errorf("latest training load: %w", err)
	}

	return out, nil
}

// analysisView is the stored payload extended with the row fields.
func analysisView(a *ledger.Analysis) map[string]any {
	view := maps.Clone(raw(a.Payload))
	view["id"] = a.ID
	view["workout_id"] = a.WorkoutID
	view["user_id"] = a.UserID
	view["applied"] = a.Applied
	view["applied_at"] = a.AppliedAt
	view["athlete_impact"] = a.Impact
	return view
}
