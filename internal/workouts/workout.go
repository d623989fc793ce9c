package workouts

import (
	"errors"
	"sort"
)

var ErrWorkoutNotFound = errors.New("workout not found")

type Movement struct {
	MovementID      int      `json:"movement_id"`
	Name            string   `json:"name"`
	Position        int      `json:"position"`
	Reps            *float64 `json:"reps,omitempty"`
	Load            *float64 `json:"load,omitempty"`
	DistanceMeters  *float64 `json:"distance_meters,omitempty"`
	DurationSeconds *float64 `json:"duration_seconds,omitempty"`
	Calories        *float64 `json:"calories,omitempty"`
}

type Block struct {
	ID        int        `json:"id"`
	Position  int        `json:"position"`
	Name      string     `json:"name"`
	Movements []Movement `json:"movements"`
}

// CapacityLink is a capacity the workout declares it trains, with a weight.
type CapacityLink struct {
	Capacity string  `json:"capacity"`
	Value    float64 `json:"value"`
}

type Workout struct {
	ID     int    `json:"id"`
	Title  string `json:"title"`
	Domain string `json:"domain"`
	// SessionLoad is a category (low, moderate, high) or a numeric load.
	SessionLoad         string         `json:"session_load"`
	EstimatedDifficulty *float64       `json:"estimated_difficulty,omitempty"`
	AvgTimeSeconds      *float64       `json:"avg_time_seconds,omitempty"`
	Capacities          []CapacityLink `json:"capacities"`
	Blocks              []Block        `json:"blocks"`
}

// OrderedBlocks returns the blocks sorted by their declared position,
// movements inside each block sorted as well.
func (w *Workout) OrderedBlocks() []Block {
	blocks := make([]Block, len(w.Blocks))
	copy(blocks, w.Blocks)
	sort.SliceStable(blocks, func(i, j int) bool {
		return blocks[i].Position < blocks[j].Position
	})
	for i := range blocks {
		movements := make([]Movement, len(blocks[i].Movements))
		copy(movements, blocks[i].Movements)
		sort.SliceStable(movements, func(a, b int) bool {
			return movements[a].Position < movements[b].Position
		})
		blocks[i].Movements = movements
	}
	return blocks
}

// Movements lists every movement of the workout, in block order.
func (w *Workout) Movements() []Movement {
	var all []Movement
	for _, b := range w.OrderedBlocks() {
		all = append(all, b.Movements...)
	}
	return all
}
