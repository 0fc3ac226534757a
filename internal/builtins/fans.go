// ABOUTME: Fans pack: profile lookup, engagement logging, engagement metrics and recommendations
// ABOUTME: Requires the "fans" capability.

package builtins

import (
	"context"
	"encoding/json"

	"github.com/2389/fanpulse/internal/insights"
	"github.com/2389/fanpulse/internal/packs"
)

// FanPack creates the fans pack over an insights service.
func FanPack(svc *insights.Service) *packs.BuiltinPack {
	f := &fanHandlers{svc: svc}
	return &packs.BuiltinPack{
		ID: "fans",
		Tools: []*packs.BuiltinTool{
			{
				Definition: &packs.ToolDefinition{
					Name:                 "get_fan_profile",
					Description:          "Look up a fan by id or email with recent engagements, purchase history and a 90-day engagement summary",
					InputSchemaJSON:      `{"type":"object","properties":{"fan_id":{"type":"integer","minimum":1},"email":{"type":"string"}}}`,
					RequiredCapabilities: []string{CapFans},
				},
				Handler: f.GetFanProfile,
			},
			{
				Definition: &packs.ToolDefinition{
					Name:                 "log_engagement_event",
					Description:          "Record a fan engagement event such as game_attendance, app_open, social_share or content_view",
					InputSchemaJSON:      `{"type":"object","properties":{"fan_id":{"type":"integer","minimum":1},"event_type":{"type":"string"},"details":{"type":"string"},"event_date":{"type":"string","format":"date"},"idempotency_key":{"type":"string"}},"required":["fan_id","event_type"]}`,
					RequiredCapabilities: []string{CapFans},
				},
				Handler: f.LogEngagementEvent,
			},
			{
				Definition: &packs.ToolDefinition{
					Name:                 "get_fan_engagement_metrics",
					Description:          "Summarize one fan's engagement over a lookback window, or rank all fans by engagement score when fan_id is omitted",
					InputSchemaJSON:      `{"type":"object","properties":{"fan_id":{"type":"integer","minimum":1},"lookback_days":{"type":"integer","minimum":1,"default":90}}}`,
					RequiredCapabilities: []string{CapFans},
				},
				Handler: f.GetEngagementMetrics,
			},
			{
				Definition: &packs.ToolDefinition{
					Name:                 "get_merch_recommendations",
					Description:          "Recommend in-stock merchandise a fan has not bought yet, scored by team, player and engagement",
					InputSchemaJSON:      `{"type":"object","properties":{"fan_id":{"type":"integer","minimum":1},"max_results":{"type":"integer","minimum":1,"default":5}},"required":["fan_id"]}`,
					RequiredCapabilities: []string{CapFans},
				},
				Handler: f.GetRecommendations,
			},
		},
	}
}

type fanHandlers struct {
	svc *insights.Service
}

type fanProfileInput struct {
	FanID int64  `json:"fan_id" validate:"gte=0"`
	Email string `json:"email" validate:"max=320"`
}

func (f *fanHandlers) GetFanProfile(ctx context.Context, callerID string, input json.RawMessage) (json.RawMessage, error) {
	var in fanProfileInput
	if err := decodeInput(input, &in); err != nil {
		return nil, err
	}

	profile, err := f.svc.GetFanProfile(ctx, insights.FanRef{ID: in.FanID, Email: in.Email})
	if err != nil {
		return nil, toolError(err)
	}

	return encode(insights.NewProfileView(profile))
}

type logEventInput struct {
	FanID          int64  `json:"fan_id" validate:"required,gt=0"`
	EventType      string `json:"event_type" validate:"required,max=64"`
	Details        string `json:"details" validate:"max=1000"`
	EventDate      string `json:"event_date" validate:"omitempty,datetime=2006-01-02"`
	IdempotencyKey string `json:"idempotency_key" validate:"max=128"`
}

type logEventOutput struct {
	Status string `json:"status"`
	insights.EventView
	Duplicate bool `json:"duplicate"`
}

func (f *fanHandlers) LogEngagementEvent(ctx context.Context, callerID string, input json.RawMessage) (json.RawMessage, error) {
	var in logEventInput
	if err := decodeInput(input, &in); err != nil {
		return nil, err
	}
	date, err := parseOptionalDate(in.EventDate)
	if err != nil {
		return nil, err
	}

	logged, err := f.svc.LogEngagementEvent(ctx, insights.LogEventRequest{
		FanID:          in.FanID,
		EventType:      in.EventType,
		Details:        in.Details,
		EventDate:      date,
		IdempotencyKey: in.IdempotencyKey,
	})
	if err != nil {
		return nil, toolError(err)
	}

	return encode(logEventOutput{
		Status:    "logged",
		EventView: insights.NewEventView(logged.Event),
		Duplicate: logged.Duplicate,
	})
}

type engagementMetricsInput struct {
	FanID        int64 `json:"fan_id" validate:"gte=0"`
	LookbackDays int   `json:"lookback_days" validate:"gte=0,lte=3650"`
}

type rankedFansOutput struct {
	Window string               `json:"window"`
	Count  int                  `json:"count"`
	Fans   []insights.RankedFan `json:"fans"`
}

func (f *fanHandlers) GetEngagementMetrics(ctx context.Context, callerID string, input json.RawMessage) (json.RawMessage, error) {
	var in engagementMetricsInput
	if err := decodeInput(input, &in); err != nil {
		return nil, err
	}

	if in.FanID == 0 {
		ranked, err := f.svc.RankedFans(ctx)
		if err != nil {
			return nil, toolError(err)
		}
		return encode(rankedFansOutput{Window: "all_time", Count: len(ranked), Fans: ranked})
	}

	summary, err := f.svc.FanEngagement(ctx, in.FanID, in.LookbackDays)
	if err != nil {
		return nil, toolError(err)
	}
	return encode(summary)
}

type recommendationsInput struct {
	FanID      int64 `json:"fan_id" validate:"required,gt=0"`
	MaxResults int   `json:"max_results" validate:"gte=0,lte=50"`
}

func (f *fanHandlers) GetRecommendations(ctx context.Context, callerID string, input json.RawMessage) (json.RawMessage, error) {
	var in recommendationsInput
	if err := decodeInput(input, &in); err != nil {
		return nil, err
	}

	result, err := f.svc.Recommendations(ctx, in.FanID, in.MaxResults)
	if err != nil {
		return nil, toolError(err)
	}
	return encode(result)
}
