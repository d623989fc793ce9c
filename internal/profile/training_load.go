package profile

import "github.com/2beens/wodcareer/internal/ledger"

// NextTrainingLoad adds the deltas on top of the latest known day (base may
// be nil). The ratio is the override when given, acute/chronic when chronic
// is positive, else the base ratio, else 1.0.
func NextTrainingLoad(base *ledger.TrainingLoadDay, acuteDelta, chronicDelta float64, ratioOverride *float64) (acute, chronic, ratio float64) {
	var baseRatio *float64
	if base != nil {
		acute, chronic = base.AcuteLoad, base.ChronicLoad
		baseRatio = base.LoadRatio
	}
	acute += acuteDelta
	chronic += chronicDelta

	switch {
	case ratioOverride != nil:
		ratio = *ratioOverride
	case chronic > 0:
		ratio = acute / chronic
	case baseRatio != nil:
		ratio = *baseRatio
	default:
		ratio = 1.0
	}
	return acute, chronic, ratio
}
