package career

import (
	"math"
	"strings"
)

const (
	baseXP          = 25
	minResultXP     = 15
	defaultDiff     = 5.0
	maxStreakBonus  = 40
	streakBonusStep = 5
	maxImprovement  = 0.5
)

// SessionLoadScore scores the declared session load category.
func SessionLoadScore(category string) int {
	switch strings.ToLower(strings.TrimSpace(category)) {
	case "low", "light":
		return 5
	case "moderate", "medium":
		return 12
	case "high", "hard":
		return 18
	case "":
		return 8
	default:
		return 10
	}
}

// ImprovementBonus rewards beating the previous time on the same workout.
func ImprovementBonus(prior, current *float64) int {
	if prior == nil || current == nil || *prior <= 0 || *current >= *prior {
		return 0
	}
	gain := min(maxImprovement, (*prior-*current) / *prior)
	return int(20 + gain*60)
}

func StreakBonus(weeklyStreak int) int {
	return min(maxStreakBonus, streakBonusStep*max(weeklyStreak, 0))
}

type ResultXPInput struct {
	// Difficulty of this result, falls back to WorkoutDifficulty, then 5.
	Difficulty        *float64
	WorkoutDifficulty *float64
	SessionLoad       string
	TimeSeconds       *float64
	PriorTimeSeconds  *float64
	// WeeklyStreak is the streak as it was before this result counted.
	WeeklyStreak int
}

func ResultXP(in ResultXPInput) int {
	difficulty := defaultDiff
	switch {
	case in.Difficulty != nil:
		difficulty = *in.Difficulty
	case in.WorkoutDifficulty != nil:
		difficulty = *in.WorkoutDifficulty
	}

	xp := baseXP +
		int(math.Round(difficulty*10)) +
		SessionLoadScore(in.SessionLoad) +
		ImprovementBonus(in.PriorTimeSeconds, in.TimeSeconds) +
		StreakBonus(in.WeeklyStreak)

	return max(minResultXP, xp)
}
