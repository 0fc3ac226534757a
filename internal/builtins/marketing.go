// ABOUTME: Marketing pack: promotion creation with reach estimates, segments and promotion history
// ABOUTME: Requires the "marketing" capability.

package builtins

import (
	"context"
	"encoding/json"

	"github.com/2389/fanpulse/internal/insights"
	"github.com/2389/fanpulse/internal/packs"
)

// DefaultPromotionListLimit is how many promotions list_promotions returns by default
const DefaultPromotionListLimit = 20

// MarketingPack creates the marketing pack over an insights service.
func MarketingPack(svc *insights.Service) *packs.BuiltinPack {
	m := &marketingHandlers{svc: svc}
	return &packs.BuiltinPack{
		ID: "marketing",
		Tools: []*packs.BuiltinTool{
			{
				Definition: &packs.ToolDefinition{
					Name:                 "create_promotion",
					Description:          "Create a promotion for a target segment and product category and estimate how many fans it reaches",
					InputSchemaJSON:      `{"type":"object","properties":{"name":{"type":"string"},"description":{"type":"string"},"discount_percent":{"type":"number","minimum":0,"maximum":100},"target_segment":{"type":"string","examples":["all","high_engagement","low_engagement","no_purchases"]},"target_category":{"type":"string"},"start_date":{"type":"string","format":"date"},"end_date":{"type":"string","format":"date"}},"required":["name","discount_percent","target_segment"]}`,
					RequiredCapabilities: []string{CapMarketing},
				},
				Handler: m.CreatePromotion,
			},
			{
				Definition: &packs.ToolDefinition{
					Name:                 "get_fan_segments",
					Description:          "Classify fans into superfans, engaged_no_purchase, buyers_low_engagement, casual_fans and dormant_fans, optionally for one team",
					InputSchemaJSON:      `{"type":"object","properties":{"team":{"type":"string"}}}`,
					RequiredCapabilities: []string{CapMarketing},
				},
				Handler: m.GetFanSegments,
			},
			{
				Definition: &packs.ToolDefinition{
					Name:                 "list_promotions",
					Description:          "List the most recent promotions, newest first",
					InputSchemaJSON:      `{"type":"object","properties":{"limit":{"type":"integer","minimum":1,"maximum":100,"default":20}}}`,
					RequiredCapabilities: []string{CapMarketing},
				},
				Handler: m.ListPromotions,
			},
		},
	}
}

type marketingHandlers struct {
	svc *insights.Service
}

type createPromotionInput struct {
	Name            string  `json:"name" validate:"required,max=200"`
	Description     string  `json:"description" validate:"max=5000"`
	DiscountPercent float64 `json:"discount_percent" validate:"gte=0,lte=100"`
	TargetSegment   string  `json:"target_segment" validate:"required,max=100"`
	TargetCategory  string  `json:"target_category" validate:"max=100"`
	StartDate       string  `json:"start_date" validate:"omitempty,datetime=2006-01-02"`
	EndDate         string  `json:"end_date" validate:"omitempty,datetime=2006-01-02"`
}

type createPromotionOutput struct {
	Status string `json:"status"`
	insights.PromotionView
	DescriptionHTML string `json:"description_html,omitempty"`
	EstimatedReach  int    `json:"estimated_reach"`
}

func (m *marketingHandlers) CreatePromotion(ctx context.Context, callerID string, input json.RawMessage) (json.RawMessage, error) {
	var in createPromotionInput
	if err := decodeInput(input, &in); err != nil {
		return nil, err
	}
	start, err := parseOptionalDate(in.StartDate)
	if err != nil {
		return nil, err
	}
	end, err := parseOptionalDate(in.EndDate)
	if err != nil {
		return nil, err
	}

	result, err := m.svc.CreatePromotion(ctx, insights.PromotionRequest{
		Name:            in.Name,
		Description:     in.Description,
		DiscountPercent: in.DiscountPercent,
		TargetSegment:   in.TargetSegment,
		TargetCategory:  in.TargetCategory,
		StartDate:       start,
		EndDate:         end,
	})
	if err != nil {
		return nil, toolError(err)
	}

	return encode(createPromotionOutput{
		Status:          "created",
		PromotionView:   insights.NewPromotionView(result.Promotion),
		DescriptionHTML: result.DescriptionHTML,
		EstimatedReach:  result.EstimatedReach,
	})
}

type fanSegmentsInput struct {
	Team string `json:"team" validate:"max=100"`
}

type fanSegmentsOutput struct {
	Team      string                  `json:"team,omitempty"`
	TotalFans int                     `json:"total_fans"`
	Segments  []insights.SegmentGroup `json:"segments"`
}

func (m *marketingHandlers) GetFanSegments(ctx context.Context, callerID string, input json.RawMessage) (json.RawMessage, error) {
	var in fanSegmentsInput
	if err := decodeInput(input, &in); err != nil {
		return nil, err
	}

	groups, err := m.svc.Segments(ctx, in.Team)
	if err != nil {
		return nil, toolError(err)
	}
	total := 0
	for _, g := range groups {
		total += g.Count
	}
	return encode(fanSegmentsOutput{Team: in.Team, TotalFans: total, Segments: groups})
}

type listPromotionsInput struct {
	Limit int `json:"limit" validate:"gte=0,lte=100"`
}

type listPromotionsOutput struct {
	Count      int                      `json:"count"`
	Promotions []insights.PromotionView `json:"promotions"`
}

func (m *marketingHandlers) ListPromotions(ctx context.Context, callerID string, input json.RawMessage) (json.RawMessage, error) {
	var in listPromotionsInput
	if err := decodeInput(input, &in); err != nil {
		return nil, err
	}
	if in.Limit == 0 {
		in.Limit = DefaultPromotionListLimit
	}

	promos, err := m.svc.ListPromotions(ctx, in.Limit)
	if err != nil {
		return nil, toolError(err)
	}
	return encode(listPromotionsOutput{Count: len(promos), Promotions: insights.NewPromotionViews(promos)})
}
