// ABOUTME: Tests for engagement levels, summaries, scores and the ranked fan list
// ABOUTME: Checks both level scales and the fan id tie-break

package insights

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/fanpulse/internal/store"
)

func TestWindowedLevel(t *testing.T) {
	tests := []struct {
		games, total int
		want         EngagementLevel
	}{
		{4, 10, LevelSuperfan},
		{3, 3, LevelRegular},
		{2, 2, LevelRegular},
		{1, 5, LevelCasual},
		{0, 1, LevelCasual},
		{0, 0, LevelDormant},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, WindowedLevel(tt.games, tt.total), "games=%d total=%d", tt.games, tt.total)
	}
}

func TestProfileLevel(t *testing.T) {
	assert.Equal(t, LevelSuperfan, ProfileLevel(4))
	assert.Equal(t, LevelRegular, ProfileLevel(2))
	assert.Equal(t, LevelCasual, ProfileLevel(1))
	assert.Equal(t, LevelCasual, ProfileLevel(0), "profile scale has no dormant label")
}

func TestSummarize(t *testing.T) {
	first := time.Date(2026, time.January, 2, 0, 0, 0, 0, time.UTC)
	last := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	counts := &store.EventCounts{
		Total: 10, DistinctTypes: 3, Games: 4, AppOpens: 4, SocialShares: 2,
		FirstEvent: &first, LastEvent: &last,
	}

	s := Summarize(7, 90, counts)

	assert.Equal(t, int64(7), s.FanID)
	assert.Equal(t, 90, s.LookbackDays)
	assert.Equal(t, LevelSuperfan, s.EngagementLevel)
	assert.Equal(t, "2026-01-02", s.FirstEvent)
	assert.Equal(t, "2026-03-01", s.LastEvent)
}

func TestSummarize_NoEventsIsDormant(t *testing.T) {
	s := Summarize(1, 90, &store.EventCounts{})
	assert.Equal(t, LevelDormant, s.EngagementLevel)
	assert.Empty(t, s.FirstEvent)
	assert.Empty(t, s.LastEvent)
}

func TestEngagementScore(t *testing.T) {
	assert.Equal(t, 8*3+5*2, EngagementScore(store.EventCounts{Total: 8, DistinctTypes: 3, Games: 5}))
	assert.Equal(t, 0, EngagementScore(store.EventCounts{}))
}

func TestRankFans_OrderAndTieBreak(t *testing.T) {
	activity := []*store.FanActivity{
		{FanID: 3, Name: "C", Counts: store.EventCounts{Total: 2, DistinctTypes: 1}},
		{FanID: 1, Name: "A", Counts: store.EventCounts{Total: 1, DistinctTypes: 1, Games: 1}}, // 3
		{FanID: 2, Name: "B", Counts: store.EventCounts{Total: 3, DistinctTypes: 1}},           // 3
		{FanID: 4, Name: "D", Counts: store.EventCounts{Total: 8, DistinctTypes: 3, Games: 5}}, // 34
		{FanID: 5, Name: "E"},
	}

	ranked := RankFans(activity)

	require.Len(t, ranked, 5)
	ids := make([]int64, len(ranked))
	for i, r := range ranked {
		ids[i] = r.FanID
	}
	assert.Equal(t, []int64{4, 1, 2, 3, 5}, ids)
	assert.Equal(t, 34, ranked[0].EngagementScore)
	assert.Equal(t, LevelSuperfan, ranked[0].EngagementLevel)
	assert.Equal(t, LevelDormant, ranked[4].EngagementLevel)
}

func TestWindowStart(t *testing.T) {
	now := time.Date(2026, time.March, 15, 23, 59, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2025, time.December, 15, 0, 0, 0, 0, time.UTC), WindowStart(now, 90))
}
