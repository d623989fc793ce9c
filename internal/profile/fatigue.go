package profile

const (
	MaxFatigue = 99.0

	maxLevelFactor = 2.5
	minLevelFactor = 1.0
	lastLevel      = 50
)

// LevelFactor decays linearly from 2.5 at level 1 to 1.0 at level 50.
// Unknown or non-positive levels get the highest factor.
func LevelFactor(level *int) float64 {
	if level == nil || *level <= 0 {
		return maxLevelFactor
	}
	l := min(*level, lastLevel)
	factor := maxLevelFactor - float64(l-1)*((maxLevelFactor-minLevelFactor)/float64(lastLevel-1))
	return Clamp(Round(factor, 3), minLevelFactor, maxLevelFactor)
}

// TierMultiplier is the per-athlete fatigue sensitivity: beginners feel
// more. Athletes without a career yet count as level 1.
func TierMultiplier(level *int) float64 {
	l := 1
	if level != nil {
		l = *level
	}
	switch {
	case l <= 2:
		return 2.2
	case l <= 4:
		return 1.5
	default:
		return 1.1
	}
}

type FatigueInput struct {
	Latest        float64
	Delta         float64
	Multiplier    float64
	SessionsToday int
	AcuteDelta    float64
	ChronicDelta  float64
}

// FatigueGain only ever adds fatigue, recovery is not modeled here.
func FatigueGain(in FatigueInput) float64 {
	n := float64(in.SessionsToday)
	gain := max(in.Delta*in.Multiplier*(1+0.6*n), in.Delta*1.5)
	gain += 0.5 * max(in.AcuteDelta, 0)
	gain += 0.25 * max(in.ChronicDelta, 0)
	if in.SessionsToday > 1 {
		gain += 15 * (n - 1)
	}
	return gain
}

// NextFatigue is capped at 99, the column is NUMERIC(4,2).
func NextFatigue(in FatigueInput) float64 {
	return min(MaxFatigue, in.Latest+FatigueGain(in))
}
