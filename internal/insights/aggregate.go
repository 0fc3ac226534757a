// ABOUTME: Reduces engagement counts into summaries, engagement levels and a ranked fan list
// ABOUTME: Holds both level scales: windowed (four-way) and profile (three-way)

package insights

import (
	"sort"
	"time"

	"github.com/2389/fanpulse/internal/store"
)

// DefaultLookbackDays is the trailing window for engagement summaries
const DefaultLookbackDays = 90

// EngagementLevel labels how involved a fan is
type EngagementLevel string

const (
	LevelSuperfan EngagementLevel = "superfan"
	LevelRegular  EngagementLevel = "regular"
	LevelCasual   EngagementLevel = "casual"
	LevelDormant  EngagementLevel = "dormant"
)

// WindowedLevel is the four-way scale used by engagement summaries and the
// ranked fan list. Zero events yields dormant whatever the fan's history.
func WindowedLevel(games, totalEvents int) EngagementLevel {
	switch {
	case games >= 4:
		return LevelSuperfan
	case games >= 2:
		return LevelRegular
	case totalEvents > 0:
		return LevelCasual
	default:
		return LevelDormant
	}
}

// ProfileLevel is the three-way scale reported with recommendations.
// It has no dormant label: a fan with no games is casual.
func ProfileLevel(games int) EngagementLevel {
	switch {
	case games >= 4:
		return LevelSuperfan
	case games >= 2:
		return LevelRegular
	default:
		return LevelCasual
	}
}

// EngagementSummary is a fan's engagement within a lookback window
type EngagementSummary struct {
	FanID              int64           `json:"fan_id"`
	LookbackDays       int             `json:"lookback_days"`
	TotalEvents        int             `json:"total_events"`
	DistinctEventTypes int             `json:"distinct_event_types"`
	GamesAttended      int             `json:"games_attended"`
	AppOpens           int             `json:"app_opens"`
	SocialShares       int             `json:"social_shares"`
	ContentViews       int             `json:"content_views"`
	FirstEvent         string          `json:"first_event,omitempty"`
	LastEvent          string          `json:"last_event,omitempty"`
	EngagementLevel    EngagementLevel `json:"engagement_level"`
}

// Summarize builds an EngagementSummary from windowed counts
func Summarize(fanID int64, lookbackDays int, c *store.EventCounts) EngagementSummary {
	return EngagementSummary{
		FanID:              fanID,
		LookbackDays:       lookbackDays,
		TotalEvents:        c.Total,
		DistinctEventTypes: c.DistinctTypes,
		GamesAttended:      c.Games,
		AppOpens:           c.AppOpens,
		SocialShares:       c.SocialShares,
		ContentViews:       c.ContentViews,
		FirstEvent:         formatOptionalDate(c.FirstEvent),
		LastEvent:          formatOptionalDate(c.LastEvent),
		EngagementLevel:    WindowedLevel(c.Games, c.Total),
	}
}

// WindowStart returns the first calendar day inside a lookback window ending at now
func WindowStart(now time.Time, lookbackDays int) time.Time {
	return store.Today(now).AddDate(0, 0, -lookbackDays)
}

// RankedFan is one row of the all-fan engagement leaderboard
type RankedFan struct {
	FanID              int64           `json:"fan_id"`
	Name               string          `json:"name"`
	FavoriteTeam       string          `json:"favorite_team"`
	TotalEvents        int             `json:"total_events"`
	DistinctEventTypes int             `json:"distinct_event_types"`
	GamesAttended      int             `json:"games_attended"`
	EngagementScore    int             `json:"engagement_score"`
	EngagementLevel    EngagementLevel `json:"engagement_level"`
}

// EngagementScore weights breadth of activity and rewards game attendance
func EngagementScore(c store.EventCounts) int {
	return c.Total*c.DistinctTypes + c.Games*2
}

// RankFans orders fans by engagement score descending, then fan ID ascending.
func RankFans(activity []*store.FanActivity) []RankedFan {
	out := make([]RankedFan, 0, len(activity))
	for _, a := range activity {
		out = append(out, RankedFan{
			FanID:              a.FanID,
			Name:               a.Name,
			FavoriteTeam:       a.FavoriteTeam,
			TotalEvents:        a.Counts.Total,
			DistinctEventTypes: a.Counts.DistinctTypes,
			GamesAttended:      a.Counts.Games,
			EngagementScore:    EngagementScore(a.Counts),
			EngagementLevel:    WindowedLevel(a.Counts.Games, a.Counts.Total),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].EngagementScore != out[j].EngagementScore {
			return out[i].EngagementScore > out[j].EngagementScore
		}
		return out[i].FanID < out[j].FanID
	})
	return out
}

func formatOptionalDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(store.DateLayout)
}
