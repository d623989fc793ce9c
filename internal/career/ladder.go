package career

import (
	"fmt"
	"math"

	"github.com/2beens/wodcareer/internal/profile"
)

const (
	LevelCount = 50

	spanBase     = 200.0
	spanExponent = 1.35
)

// Level is the XP bucket [MinXP, MaxXP).
type Level struct {
	Number int    `json:"level"`
	Code   string `json:"code"`
	MinXP  int    `json:"min_xp"`
	MaxXP  int    `json:"max_xp"`
}

func (l Level) Span() int {
	return l.MaxXP - l.MinXP
}

var ladder = buildLadder(LevelCount)

func buildLadder(levels int) []Level {
	out := make([]Level, 0, levels)
	minXP := 0
	for n := 1; n <= levels; n++ {
		span := int(math.Round(spanBase * math.Pow(float64(n), spanExponent)))
		out = append(out, Level{
			Number: n,
			Code:   fmt.Sprintf("L%d", n),
			MinXP:  minXP,
			MaxXP:  minXP + span,
		})
		minXP += span
	}
	return out
}

// Ladder returns a copy of the fixed level curve.
func Ladder() []Level {
	out := make([]Level, len(ladder))
	copy(out, ladder)
	return out
}

// LevelFor returns the level whose bucket contains xp, the last level once
// xp goes past the curve.
func LevelFor(xp int) Level {
	for _, l := range ladder {
		if xp < l.MaxXP {
			return l
		}
	}
	return ladder[len(ladder)-1]
}

// NextLevel returns the level after l, false on the last one.
func NextLevel(l Level) (Level, bool) {
	if l.Number >= len(ladder) {
		return Level{}, false
	}
	return ladder[l.Number], true
}

// ProgressPct is how far xp is into its level, in [0,100] with two decimals.
func ProgressPct(xp int) float64 {
	l := LevelFor(xp)
	if l.Span() <= 0 {
		return 100
	}
	pct := 100 * float64(xp-l.MinXP) / float64(l.Span())
	return profile.Round(profile.Clamp(pct, 0, 100), 2)
}
