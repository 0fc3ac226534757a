// ABOUTME: Ordered rule classifier that assigns every fan to exactly one segment
// ABOUTME: Rules are evaluated top to bottom and the first match wins

package insights

import (
	"strings"

	"github.com/2389/fanpulse/internal/store"
)

// Segment is one of the five mutually exclusive fan buckets
type Segment string

const (
	SegmentSuperfans           Segment = "superfans"
	SegmentEngagedNoPurchase   Segment = "engaged_no_purchase"
	SegmentBuyersLowEngagement Segment = "buyers_low_engagement"
	SegmentCasualFans          Segment = "casual_fans"
	SegmentDormantFans         Segment = "dormant_fans"
)

// Segments lists every segment in rule priority order.
var Segments = []Segment{
	SegmentSuperfans,
	SegmentEngagedNoPurchase,
	SegmentBuyersLowEngagement,
	SegmentCasualFans,
	SegmentDormantFans,
}

var segmentDescriptions = map[Segment]string{
	SegmentSuperfans:           "Highly engaged fans who also buy merchandise",
	SegmentEngagedNoPurchase:   "Active fans who have never made a purchase",
	SegmentBuyersLowEngagement: "Fans who buy merchandise but engage lightly",
	SegmentCasualFans:          "Fans with occasional engagement and no purchases",
	SegmentDormantFans:         "Fans with no recent engagement or purchases",
}

// NeverEngaged is reported as last_engagement for fans with no events at all
const NeverEngaged = "never"

// Description returns the fixed human-readable description of the segment
func (s Segment) Description() string {
	return segmentDescriptions[s]
}

// Classify assigns a fan's unwindowed aggregates to a segment.
//
// A purchaser not claimed by the superfan rule always lands in
// buyers_low_engagement, so engagement == 3 with a purchase is a buyer and
// never engaged_no_purchase.
func Classify(engagements, purchases int) Segment {
	switch {
	case engagements >= 4 && purchases > 0:
		return SegmentSuperfans
	case engagements >= 3 && purchases == 0:
		return SegmentEngagedNoPurchase
	case purchases > 0:
		return SegmentBuyersLowEngagement
	case engagements >= 1 && engagements < 3:
		return SegmentCasualFans
	default:
		return SegmentDormantFans
	}
}

// SegmentMember is one fan's row inside a segment group
type SegmentMember struct {
	FanID           int64   `json:"fan_id"`
	Name            string  `json:"name"`
	Email           string  `json:"email"`
	FavoriteTeam    string  `json:"favorite_team"`
	EngagementCount int     `json:"engagement_count"`
	GamesAttended   int     `json:"games_attended"`
	PurchaseCount   int     `json:"purchase_count"`
	TotalSpent      float64 `json:"total_spent"`
	LastEngagement  string  `json:"last_engagement"`
}

// SegmentGroup is the classifier output for a single segment
type SegmentGroup struct {
	Segment     Segment         `json:"segment"`
	Description string          `json:"description"`
	Count       int             `json:"count"`
	Members     []SegmentMember `json:"members"`
}

// ClassifyFans partitions rows into the five segment groups, in priority
// order. A non-empty team keeps only fans whose favorite team contains it,
// ignoring case. Members keep the input row order.
func ClassifyFans(rows []*store.SegmentRow, team string) []SegmentGroup {
	groups := make([]SegmentGroup, len(Segments))
	index := make(map[Segment]int, len(Segments))
	for i, seg := range Segments {
		groups[i] = SegmentGroup{
			Segment:     seg,
			Description: seg.Description(),
			Members:     []SegmentMember{},
		}
		index[seg] = i
	}

	needle := strings.ToLower(team)
	for _, row := range rows {
		if needle != "" && !strings.Contains(strings.ToLower(row.FavoriteTeam), needle) {
			continue
		}
		g := &groups[index[Classify(row.EngagementCount, row.PurchaseCount)]]
		g.Members = append(g.Members, memberFromRow(row))
		g.Count++
	}
	return groups
}

func memberFromRow(row *store.SegmentRow) SegmentMember {
	last := NeverEngaged
	if row.LastEngagement != nil {
		last = row.LastEngagement.Format(store.DateLayout)
	}
	return SegmentMember{
		FanID:           row.FanID,
		Name:            row.Name,
		Email:           row.Email,
		FavoriteTeam:    row.FavoriteTeam,
		EngagementCount: row.EngagementCount,
		GamesAttended:   row.GamesAttended,
		PurchaseCount:   row.PurchaseCount,
		TotalSpent:      row.TotalSpent,
		LastEngagement:  last,
	}
}
