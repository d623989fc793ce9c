package apply

import (
	"errors"

	"github.com/2beens/wodcareer/internal/workouts"
)

var (
	ErrWorkoutNotFound  = workouts.ErrWorkoutNotFound
	ErrAnalysisNotFound = errors.New("analysis not found")
	ErrEmptyImpact      = errors.New("empty impact")
	ErrInvalidResult    = errors.New("invalid result")
)
