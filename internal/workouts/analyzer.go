package workouts

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/2beens/wodcareer/internal/telemetry/tracing"

	"go.opentelemetry.io/otel/attribute"
)

// DeclaredAnalyzer builds an analysis payload only from what the workout
// declares about itself: capacity weights, difficulty, average time and
// session load. It does not estimate anything.
type DeclaredAnalyzer struct{}

func NewDeclaredAnalyzer() *DeclaredAnalyzer {
	return &DeclaredAnalyzer{}
}

// Analyze returns nil, nil when the workout declares nothing usable.
func (a *DeclaredAnalyzer) Analyze(ctx context.Context, w *Workout) (_ map[string]any, err error) {
	_, span := tracing.GlobalTracer.Start(ctx, "workouts.analyzer.analyze")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	if w == nil {
		return nil, fmt.Errorf("analyze: %w", ErrWorkoutNotFound)
	}
	span.SetAttributes(attribute.Int("workout.id", w.ID))

	analysis := map[string]any{}

	focus := make([]any, 0, len(w.Capacities))
	for _, c := range w.Capacities {
		if strings.TrimSpace(c.Capacity) == "" {
			continue
		}
		focus = append(focus, map[string]any{
			"capacity": c.Capacity,
			"emphasis": strconv.FormatFloat(c.Value, 'f', -1, 64),
		})
	}
	if len(focus) > 0 {
		analysis["capacity_focus"] = focus
	}
	if w.EstimatedDifficulty != nil {
		analysis["fatigue_score"] = *w.EstimatedDifficulty
	}
	if w.AvgTimeSeconds != nil {
		analysis["avg_time_seconds"] = *w.AvgTimeSeconds
	}
	if load, err := strconv.ParseFloat(strings.TrimSpace(w.SessionLoad), 64); err == nil {
		analysis["session_load"] = load
	}
	if w.Domain != "" {
		analysis["domain"] = w.Domain
	}

	if len(analysis) == 0 {
		return nil, nil
	}
	return analysis, nil
}
