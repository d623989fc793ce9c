package profile

import (
	"github.com/2beens/wodcareer/internal/ledger"
	"github.com/2beens/wodcareer/internal/workouts"
)

type RecordCandidate struct {
	MovementID int
	Type       ledger.RecordType
	Value      float64
	Unit       string
}

func timeCandidate(movementID int, seconds float64) RecordCandidate {
	return RecordCandidate{
		MovementID: movementID,
		Type:       ledger.RecordTime,
		Value:      seconds,
		Unit:       "s",
	}
}

// RecordCandidates extracts time records from a submitted result. Block
// times count only when they align 1:1 with the declared blocks, and only
// for blocks made of a single movement. A workout of one block with one
// movement also takes the total time.
func RecordCandidates(w *workouts.Workout, blockTimes []float64, totalSeconds float64) []RecordCandidate {
	blocks := w.OrderedBlocks()
	var candidates []RecordCandidate
	seen := map[int]bool{}

	if len(blockTimes) > 0 && len(blockTimes) == len(blocks) {
		for i, b := range blocks {
			if len(b.Movements) != 1 || blockTimes[i] <= 0 {
				continue
			}
			mv := b.Movements[0].MovementID
			if mv == 0 || seen[mv] {
				continue
			}
			seen[mv] = true
			candidates = append(candidates, timeCandidate(mv, blockTimes[i]))
		}
	}

	if len(blocks) == 1 && len(blocks[0].Movements) == 1 && totalSeconds > 0 {
		mv := blocks[0].Movements[0].MovementID
		if mv != 0 && !seen[mv] {
			candidates = append(candidates, timeCandidate(mv, totalSeconds))
		}
	}

	return candidates
}

// IsBetter reports whether candidate strictly improves on best for the type.
func IsBetter(recordType ledger.RecordType, candidate, best float64) bool {
	if recordType.LowerIsBetter() {
		return candidate < best
	}
	return candidate > best
}

// Improves reports whether c should be appended given the current best
// (nil when there is none yet).
func Improves(best *ledger.PersonalRecord, c RecordCandidate) bool {
	if best == nil {
		return true
	}
	return IsBetter(c.Type, c.Value, best.Value)
}
