// ABOUTME: Promotion reach estimation over all-time segment rows
// ABOUTME: Unknown target keywords count every fan; team targeting is not filtered

package insights

import "github.com/2389/fanpulse/internal/store"

// Reach target keywords with a real definition. Any other keyword counts all fans.
const (
	TargetHighEngagement = "high_engagement"
	TargetLowEngagement  = "low_engagement"
	TargetNoPurchases    = "no_purchases"
)

// EstimateReach counts the fans a promotion targeting segment would reach.
// Counts are all-time. Keywords other than the three above, including "all"
// and "specific_team", return the total fan count.
func EstimateReach(rows []*store.SegmentRow, segment string) int {
	var match func(*store.SegmentRow) bool
	switch segment {
	case TargetHighEngagement:
		match = func(r *store.SegmentRow) bool { return r.EngagementCount >= 4 }
	case TargetLowEngagement:
		match = func(r *store.SegmentRow) bool { return r.EngagementCount < 3 }
	case TargetNoPurchases:
		match = func(r *store.SegmentRow) bool { return r.PurchaseCount == 0 }
	default:
		return len(rows)
	}

	n := 0
	for _, r := range rows {
		if match(r) {
			n++
		}
	}
	return n
}
