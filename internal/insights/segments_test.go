// ABOUTME: Tests for the segment classifier rule order and partition guarantees
// ABOUTME: Covers boundary rows, team filtering and repeatability

package insights

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/fanpulse/internal/store"
)

func TestClassify_Boundaries(t *testing.T) {
	tests := []struct {
		name        string
		engagements int
		purchases   int
		want        Segment
	}{
		{"engaged buyer", 4, 1, SegmentSuperfans},
		{"very engaged buyer", 20, 3, SegmentSuperfans},
		{"four events no purchase", 4, 0, SegmentEngagedNoPurchase},
		{"three events no purchase", 3, 0, SegmentEngagedNoPurchase},
		{"three events one purchase", 3, 1, SegmentBuyersLowEngagement},
		{"two events one purchase", 2, 1, SegmentBuyersLowEngagement},
		{"no events one purchase", 0, 1, SegmentBuyersLowEngagement},
		{"two events", 2, 0, SegmentCasualFans},
		{"one event", 1, 0, SegmentCasualFans},
		{"nothing", 0, 0, SegmentDormantFans},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.engagements, tt.purchases))
		})
	}
}

func TestClassifyFans_Partition(t *testing.T) {
	var rows []*store.SegmentRow
	id := int64(0)
	for e := 0; e <= 6; e++ {
		for p := 0; p <= 3; p++ {
			id++
			rows = append(rows, &store.SegmentRow{FanID: id, EngagementCount: e, PurchaseCount: p})
		}
	}

	groups := ClassifyFans(rows, "")
	require.Len(t, groups, 5)

	seen := make(map[int64]Segment)
	total := 0
	for i, g := range groups {
		assert.Equal(t, Segments[i], g.Segment, "groups are in rule order")
		assert.Equal(t, len(g.Members), g.Count)
		assert.NotEmpty(t, g.Description)
		total += g.Count
		for _, m := range g.Members {
			prev, dup := seen[m.FanID]
			assert.False(t, dup, "fan %d in both %s and %s", m.FanID, prev, g.Segment)
			seen[m.FanID] = g.Segment
		}
	}
	assert.Equal(t, len(rows), total)
}

func TestClassifyFans_EmptyGroupsStillPresent(t *testing.T) {
	groups := ClassifyFans(nil, "")
	require.Len(t, groups, 5)
	for _, g := range groups {
		assert.Equal(t, 0, g.Count)
		assert.NotNil(t, g.Members)
	}
}

func TestClassifyFans_TeamFilterIgnoresCase(t *testing.T) {
	rows := []*store.SegmentRow{
		{FanID: 1, FavoriteTeam: "Thunderbolts", EngagementCount: 5, PurchaseCount: 1},
		{FanID: 2, FavoriteTeam: "Riverhawks", EngagementCount: 5, PurchaseCount: 1},
		{FanID: 3, FavoriteTeam: "", EngagementCount: 1},
	}

	groups := ClassifyFans(rows, "THUNDER")
	total := 0
	for _, g := range groups {
		total += g.Count
	}
	assert.Equal(t, 1, total)
	require.Len(t, groups[0].Members, 1)
	assert.Equal(t, int64(1), groups[0].Members[0].FanID)
}

func TestClassifyFans_LastEngagement(t *testing.T) {
	last := time.Date(2026, time.February, 1, 0, 0, 0, 0, time.UTC)
	rows := []*store.SegmentRow{
		{FanID: 1, EngagementCount: 1, LastEngagement: &last},
		{FanID: 2},
	}

	groups := ClassifyFans(rows, "")
	casual := groups[3]
	dormant := groups[4]
	require.Len(t, casual.Members, 1)
	require.Len(t, dormant.Members, 1)
	assert.Equal(t, "2026-02-01", casual.Members[0].LastEngagement)
	assert.Equal(t, NeverEngaged, dormant.Members[0].LastEngagement)
}

func TestClassifyFans_Repeatable(t *testing.T) {
	rows := []*store.SegmentRow{
		{FanID: 1, EngagementCount: 8, PurchaseCount: 2, TotalSpent: 54.98},
		{FanID: 2, EngagementCount: 3},
		{FanID: 3, EngagementCount: 3, PurchaseCount: 1},
	}
	assert.Equal(t, ClassifyFans(rows, ""), ClassifyFans(rows, ""))
}
