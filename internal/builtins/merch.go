// ABOUTME: Merch pack: catalog search by team, category, player and price
// ABOUTME: Requires the "merch" capability.

package builtins

import (
	"context"
	"encoding/json"

	"github.com/2389/fanpulse/internal/insights"
	"github.com/2389/fanpulse/internal/packs"
	"github.com/2389/fanpulse/internal/store"
)

// MerchPack creates the merch pack over an insights service.
func MerchPack(svc *insights.Service) *packs.BuiltinPack {
	m := &merchHandlers{svc: svc}
	return &packs.BuiltinPack{
		ID: "merch",
		Tools: []*packs.BuiltinTool{
			{
				Definition: &packs.ToolDefinition{
					Name:                 "search_merchandise",
					Description:          "Search the merchandise catalog. Text filters are case-insensitive substrings; results are ordered by category then price",
					InputSchemaJSON:      `{"type":"object","properties":{"team":{"type":"string"},"category":{"type":"string"},"player":{"type":"string"},"max_price":{"type":"number"},"in_stock_only":{"type":"boolean","default":true}}}`,
					RequiredCapabilities: []string{CapMerch},
				},
				Handler: m.SearchMerchandise,
			},
		},
	}
}

type merchHandlers struct {
	svc *insights.Service
}

type searchMerchandiseInput struct {
	Team        string   `json:"team" validate:"max=100"`
	Category    string   `json:"category" validate:"max=100"`
	Player      string   `json:"player" validate:"max=100"`
	MaxPrice    *float64 `json:"max_price"`
	InStockOnly *bool    `json:"in_stock_only"`
}

type searchMerchandiseOutput struct {
	Count int                 `json:"count"`
	Items []insights.ItemView `json:"items"`
}

func (m *merchHandlers) SearchMerchandise(ctx context.Context, callerID string, input json.RawMessage) (json.RawMessage, error) {
	var in searchMerchandiseInput
	if err := decodeInput(input, &in); err != nil {
		return nil, err
	}

	filter := store.MerchandiseFilter{
		Team:        in.Team,
		Category:    in.Category,
		Player:      in.Player,
		MaxPrice:    in.MaxPrice,
		InStockOnly: in.InStockOnly == nil || *in.InStockOnly,
	}
	items, err := m.svc.SearchMerchandise(ctx, filter)
	if err != nil {
		return nil, toolError(err)
	}
	return encode(searchMerchandiseOutput{Count: len(items), Items: insights.NewItemViews(items)})
}
