package identity

import (
	"github.com/shopspring/decimal"
)

// VolunteerStats are the derived counters shown on a volunteer profile
type VolunteerStats struct {
	TotalDeliveries int
	RatingCount     int
	AverageRating   *decimal.Decimal
}

// ComputeStats derives volunteer stats from the underlying facts: the number
// of completed deliveries and every submitted score.
func ComputeStats(completed int, scores []int) VolunteerStats {
	stats := VolunteerStats{TotalDeliveries: completed, RatingCount: len(scores)}
	if len(scores) == 0 {
		return stats
	}
	sum := int64(0)
	for _, s := range scores {
		sum += int64(s)
	}
	avg := decimal.NewFromInt(sum).DivRound(decimal.NewFromInt(int64(len(scores))), 2)
	stats.AverageRating = &avg
	return stats
}
