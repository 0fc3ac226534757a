// ABOUTME: Tests for the REST API handlers over the seeded demo dataset
// ABOUTME: Covers lookups, rankings, filters, problem responses and capability checks

package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/fanpulse/internal/auth"
	"github.com/2389/fanpulse/internal/config"
	"github.com/2389/fanpulse/internal/insights"
)

func decodeBody[T any](t *testing.T, body []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(body, &v), string(body))
	return v
}

func TestAPI_GetFan(t *testing.T) {
	_, h := newTestGateway(t, nil)

	rr := get(h, "/api/fans/1", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	profile := decodeBody[insights.ProfileView](t, rr.Body.Bytes())
	assert.Equal(t, "Maya Chen", profile.Fan.Name)
	assert.Equal(t, "2021-03-14", profile.Fan.JoinDate)
	assert.InDelta(t, 54.98, profile.TotalSpent, 0.001)
	assert.Len(t, profile.Purchases, 2)
	assert.Equal(t, 8, profile.EngagementSummary.TotalEvents)
	assert.Equal(t, insights.LevelSuperfan, profile.EngagementSummary.EngagementLevel)
}

func TestAPI_GetFanByEmail(t *testing.T) {
	_, h := newTestGateway(t, nil)

	rr := get(h, "/api/fans/MAYA.CHEN@example.com", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	profile := decodeBody[insights.ProfileView](t, rr.Body.Bytes())
	assert.Equal(t, int64(1), profile.Fan.ID)
}

func TestAPI_GetFanNotFound(t *testing.T) {
	_, h := newTestGateway(t, nil)

	rr := get(h, "/api/fans/999", nil)
	require.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "application/problem+json", rr.Header().Get("Content-Type"))

	p := decodeBody[Problem](t, rr.Body.Bytes())
	assert.Equal(t, "not_found", p.Type)
	assert.Equal(t, "fan", p.Entity)
	assert.InDelta(t, 999, p.ID, 0)

	rr = get(h, "/api/fans/nobody@example.com", nil)
	require.Equal(t, http.StatusNotFound, rr.Code)
	p = decodeBody[Problem](t, rr.Body.Bytes())
	assert.Equal(t, "nobody@example.com", p.ID)
}

func TestAPI_BadParams(t *testing.T) {
	_, h := newTestGateway(t, nil)

	tests := []struct {
		path  string
		field string
	}{
		{"/api/fans/abc", "id"},
		{"/api/fans/0", "id"},
		{"/api/fans/-3/recommendations", "id"},
		{"/api/fans/1/recommendations?max_results=many", "max_results"},
		{"/api/fans/1/recommendations?max_results=51", "max_results"},
		{"/api/metrics/engagement?lookback_days=9999", "lookback_days"},
		{"/api/metrics/engagement?fan_id=-1", "fan_id"},
		{"/api/merchandise?max_price=cheap", "max_price"},
		{"/api/merchandise?in_stock_only=maybe", "in_stock_only"},
		{"/api/promotions?limit=101", "limit"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rr := get(h, tt.path, nil)
			require.Equal(t, http.StatusBadRequest, rr.Code)
			p := decodeBody[Problem](t, rr.Body.Bytes())
			assert.Equal(t, "invalid input", p.Title)
			assert.Len(t, p.Errors, 1)
			assert.Contains(t, p.Errors, tt.field)
		})
	}
}

func TestAPI_Recommendations(t *testing.T) {
	_, h := newTestGateway(t, nil)

	rr := get(h, "/api/fans/1/recommendations", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	result := decodeBody[insights.RecommendationResult](t, rr.Body.Bytes())
	assert.Equal(t, "Maya Chen", result.FanName)
	require.Len(t, result.Recommendations, 5)
	assert.Equal(t, int64(2), result.Recommendations[0].ProductID)
	assert.Equal(t, 30, result.Recommendations[0].Score)

	var ids []int64
	for _, rec := range result.Recommendations {
		ids = append(ids, rec.ProductID)
	}
	assert.Equal(t, []int64{2, 1, 14, 10, 8}, ids)

	rr = get(h, "/api/fans/1/recommendations?max_results=2", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	result = decodeBody[insights.RecommendationResult](t, rr.Body.Bytes())
	assert.Len(t, result.Recommendations, 2)

	assert.Equal(t, http.StatusNotFound, get(h, "/api/fans/77/recommendations", nil).Code)
}

func TestAPI_EngagementRanking(t *testing.T) {
	_, h := newTestGateway(t, nil)

	rr := get(h, "/api/metrics/engagement", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	ranked := decodeBody[RankedFansResponse](t, rr.Body.Bytes())
	assert.Equal(t, "all_time", ranked.Window)
	assert.Equal(t, 10, ranked.Count)
	require.Len(t, ranked.Fans, 10)
	assert.Equal(t, int64(1), ranked.Fans[0].FanID)
	assert.Equal(t, 34, ranked.Fans[0].EngagementScore)

	for i := 1; i < len(ranked.Fans); i++ {
		assert.GreaterOrEqual(t, ranked.Fans[i-1].EngagementScore, ranked.Fans[i].EngagementScore)
	}
}

func TestAPI_EngagementForFan(t *testing.T) {
	_, h := newTestGateway(t, nil)

	rr := get(h, "/api/metrics/engagement?fan_id=6", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	tom := decodeBody[insights.EngagementSummary](t, rr.Body.Bytes())
	assert.Equal(t, 5, tom.TotalEvents)
	assert.Equal(t, 4, tom.GamesAttended)
	assert.Equal(t, 90, tom.LookbackDays)

	rr = get(h, "/api/metrics/engagement?fan_id=9", nil)
	sofia := decodeBody[insights.EngagementSummary](t, rr.Body.Bytes())
	assert.Equal(t, 0, sofia.TotalEvents)
	assert.Equal(t, insights.LevelDormant, sofia.EngagementLevel)

	rr = get(h, "/api/metrics/engagement?fan_id=9&lookback_days=365", nil)
	sofia = decodeBody[insights.EngagementSummary](t, rr.Body.Bytes())
	assert.Equal(t, 3, sofia.TotalEvents)
	assert.Equal(t, 2, sofia.GamesAttended)
	assert.Equal(t, insights.LevelRegular, sofia.EngagementLevel)

	assert.Equal(t, http.StatusNotFound, get(h, "/api/metrics/engagement?fan_id=404", nil).Code)
}

func TestAPI_Merchandise(t *testing.T) {
	_, h := newTestGateway(t, nil)

	rr := get(h, "/api/merchandise?team=thunderbolts&max_price=30", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	resp := decodeBody[MerchandiseResponse](t, rr.Body.Bytes())
	require.Equal(t, 3, resp.Count)
	assert.Equal(t, "hat", resp.Items[0].Category)
	assert.Equal(t, "poster", resp.Items[1].Category)
	assert.Equal(t, "scarf", resp.Items[2].Category)

	rr = get(h, "/api/merchandise?category=collectible", nil)
	resp = decodeBody[MerchandiseResponse](t, rr.Body.Bytes())
	assert.Equal(t, 1, resp.Count)

	rr = get(h, "/api/merchandise?category=collectible&in_stock_only=false", nil)
	resp = decodeBody[MerchandiseResponse](t, rr.Body.Bytes())
	assert.Equal(t, 2, resp.Count)

	rr = get(h, "/api/merchandise", nil)
	resp = decodeBody[MerchandiseResponse](t, rr.Body.Bytes())
	assert.Equal(t, 13, resp.Count)
}

func TestAPI_Segments(t *testing.T) {
	_, h := newTestGateway(t, nil)

	rr := get(h, "/api/segments", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	resp := decodeBody[SegmentsResponse](t, rr.Body.Bytes())
	assert.Equal(t, 10, resp.TotalFans)

	counts := make(map[insights.Segment]int)
	for _, g := range resp.Segments {
		counts[g.Segment] = g.Count
	}
	assert.Equal(t, map[insights.Segment]int{
		insights.SegmentSuperfans:           2,
		insights.SegmentEngagedNoPurchase:   3,
		insights.SegmentBuyersLowEngagement: 2,
		insights.SegmentCasualFans:          1,
		insights.SegmentDormantFans:         2,
	}, counts)

	rr = get(h, "/api/segments?team=riverhawks", nil)
	resp = decodeBody[SegmentsResponse](t, rr.Body.Bytes())
	assert.Equal(t, "riverhawks", resp.Team)
	assert.Equal(t, 3, resp.TotalFans)
}

func TestAPI_Reach(t *testing.T) {
	_, h := newTestGateway(t, nil)

	tests := map[string]int{
		"high_engagement": 3,
		"low_engagement":  4,
		"no_purchases":    6,
		"all":             10,
		"specific_team":   10,
	}
	for segment, want := range tests {
		t.Run(segment, func(t *testing.T) {
			rr := get(h, "/api/reach/"+segment, nil)
			require.Equal(t, http.StatusOK, rr.Code)
			resp := decodeBody[ReachResponse](t, rr.Body.Bytes())
			assert.Equal(t, segment, resp.TargetSegment)
			assert.Equal(t, want, resp.EstimatedReach)
		})
	}
}

func TestAPI_Promotions(t *testing.T) {
	gw, h := newTestGateway(t, nil)

	rr := get(h, "/api/promotions", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	resp := decodeBody[PromotionsResponse](t, rr.Body.Bytes())
	assert.Equal(t, 0, resp.Count)

	for _, name := range []string{"Spring Sale", "Playoff Push"} {
		_, err := gw.Insights().CreatePromotion(context.Background(), insights.PromotionRequest{
			Name:            name,
			DiscountPercent: 15,
			TargetSegment:   "high_engagement",
		})
		require.NoError(t, err)
	}

	rr = get(h, "/api/promotions", nil)
	resp = decodeBody[PromotionsResponse](t, rr.Body.Bytes())
	require.Equal(t, 2, resp.Count)
	assert.Equal(t, "Playoff Push", resp.Promotions[0].Name)
	assert.Equal(t, "2026-03-15", resp.Promotions[0].StartDate)
	assert.Equal(t, "2026-04-14", resp.Promotions[0].EndDate)

	rr = get(h, "/api/promotions?limit=1", nil)
	resp = decodeBody[PromotionsResponse](t, rr.Body.Bytes())
	assert.Equal(t, 1, resp.Count)
}

func TestAPI_RequireAuth(t *testing.T) {
	_, h := newTestGateway(t, func(c *config.Config) {
		c.Auth.JWTSecret = testSecret
		c.Auth.RequireAPIAuth = true
	})
	verifier := auth.NewJWTVerifier([]byte(testSecret))

	assert.Equal(t, http.StatusUnauthorized, get(h, "/api/segments", nil).Code)

	bearer := func(caps ...string) http.Header {
		token, err := verifier.Generate("dashboard", caps, time.Hour)
		require.NoError(t, err)
		return http.Header{"Authorization": {"Bearer " + token}}
	}

	merchOnly := bearer("merch")
	assert.Equal(t, http.StatusOK, get(h, "/api/merchandise", merchOnly).Code)
	assert.Equal(t, http.StatusForbidden, get(h, "/api/segments", merchOnly).Code)
	assert.Equal(t, http.StatusForbidden, get(h, "/api/fans/1", merchOnly).Code)

	full := bearer("fans", "merch", "marketing")
	assert.Equal(t, http.StatusOK, get(h, "/api/segments", full).Code)
	assert.Equal(t, http.StatusOK, get(h, "/api/fans/1", full).Code)

	// Health stays open
	assert.Equal(t, http.StatusOK, get(h, "/health", nil).Code)
}

func TestAPI_OptionalAuth(t *testing.T) {
	_, h := newTestGateway(t, func(c *config.Config) {
		c.Auth.JWTSecret = testSecret
	})

	assert.Equal(t, http.StatusOK, get(h, "/api/segments", nil).Code)
}
