// ABOUTME: JSON views of store entities with calendar dates rendered as YYYY-MM-DD
// ABOUTME: Shared by the MCP tool handlers and the REST API so both emit the same shapes

package insights

import (
	"time"

	"github.com/2389/fanpulse/internal/store"
)

// FanView is the wire shape of a fan. FavoriteTeam is null when unset.
type FanView struct {
	ID              int64   `json:"id"`
	Name            string  `json:"name"`
	Email           string  `json:"email"`
	FavoriteTeam    *string `json:"favorite_team"`
	FavoritePlayers string  `json:"favorite_players"`
	JoinDate        string  `json:"join_date"`
	City            string  `json:"city"`
	State           string  `json:"state"`
}

// NewFanView converts a fan
func NewFanView(f *store.Fan) FanView {
	return FanView{
		ID:              f.ID,
		Name:            f.Name,
		Email:           f.Email,
		FavoriteTeam:    nullable(f.FavoriteTeam),
		FavoritePlayers: f.FavoritePlayers,
		JoinDate:        formatDate(f.JoinDate),
		City:            f.City,
		State:           f.State,
	}
}

// ProfileView is the wire shape of a FanProfile
type ProfileView struct {
	Fan               FanView           `json:"fan"`
	RecentEngagements []EventView       `json:"recent_engagements"`
	Purchases         []PurchaseView    `json:"purchases"`
	TotalSpent        float64           `json:"total_spent"`
	EngagementSummary EngagementSummary `json:"engagement_summary"`
}

// NewProfileView converts a fan profile
func NewProfileView(p *FanProfile) ProfileView {
	return ProfileView{
		Fan:               NewFanView(p.Fan),
		RecentEngagements: NewEventViews(p.RecentEngagements),
		Purchases:         NewPurchaseViews(p.Purchases),
		TotalSpent:        p.TotalSpent,
		EngagementSummary: p.Engagement,
	}
}

// EventView is the wire shape of an engagement event
type EventView struct {
	ID        int64  `json:"id"`
	FanID     int64  `json:"fan_id"`
	EventType string `json:"event_type"`
	EventDate string `json:"event_date"`
	Details   string `json:"details"`
}

// NewEventViews converts engagement events, never returning nil
func NewEventViews(events []*store.EngagementEvent) []EventView {
	out := make([]EventView, 0, len(events))
	for _, e := range events {
		out = append(out, NewEventView(e))
	}
	return out
}

// NewEventView converts an engagement event
func NewEventView(e *store.EngagementEvent) EventView {
	return EventView{
		ID:        e.ID,
		FanID:     e.FanID,
		EventType: e.EventType,
		EventDate: formatDate(e.EventDate),
		Details:   e.Details,
	}
}

// PurchaseView is the wire shape of a purchase
type PurchaseView struct {
	ID           int64   `json:"id"`
	ProductID    int64   `json:"product_id"`
	ProductName  string  `json:"product_name"`
	Category     string  `json:"category"`
	PurchaseDate string  `json:"purchase_date"`
	Quantity     int     `json:"quantity"`
	TotalPrice   float64 `json:"total_price"`
}

// NewPurchaseViews converts purchases, never returning nil
func NewPurchaseViews(purchases []*store.Purchase) []PurchaseView {
	out := make([]PurchaseView, 0, len(purchases))
	for _, p := range purchases {
		out = append(out, PurchaseView{
			ID:           p.ID,
			ProductID:    p.ProductID,
			ProductName:  p.ProductName,
			Category:     p.Category,
			PurchaseDate: formatDate(p.PurchaseDate),
			Quantity:     p.Quantity,
			TotalPrice:   p.TotalPrice,
		})
	}
	return out
}

// ItemView is the wire shape of a catalog item. Team and Player are null when unset.
type ItemView struct {
	ID       int64   `json:"id"`
	Name     string  `json:"name"`
	Category string  `json:"category"`
	Team     *string `json:"team"`
	Player   *string `json:"player"`
	Price    float64 `json:"price"`
	InStock  bool    `json:"in_stock"`
}

// NewItemViews converts catalog items, never returning nil
func NewItemViews(items []*store.MerchandiseItem) []ItemView {
	out := make([]ItemView, 0, len(items))
	for _, it := range items {
		out = append(out, ItemView{
			ID:       it.ID,
			Name:     it.Name,
			Category: it.Category,
			Team:     nullable(it.Team),
			Player:   nullable(it.Player),
			Price:    it.Price,
			InStock:  it.InStock,
		})
	}
	return out
}

// PromotionView is the wire shape of a promotion
type PromotionView struct {
	ID              int64   `json:"id"`
	Name            string  `json:"name"`
	Description     string  `json:"description"`
	DiscountPercent float64 `json:"discount_percent"`
	TargetSegment   string  `json:"target_segment"`
	TargetCategory  string  `json:"target_category"`
	StartDate       string  `json:"start_date"`
	EndDate         string  `json:"end_date"`
	CreatedAt       string  `json:"created_at,omitempty"`
}

// NewPromotionView converts a promotion
func NewPromotionView(p *store.Promotion) PromotionView {
	v := PromotionView{
		ID:              p.ID,
		Name:            p.Name,
		Description:     p.Description,
		DiscountPercent: p.DiscountPercent,
		TargetSegment:   p.TargetSegment,
		TargetCategory:  p.TargetCategory,
		StartDate:       formatDate(p.StartDate),
		EndDate:         formatDate(p.EndDate),
	}
	if !p.CreatedAt.IsZero() {
		v.CreatedAt = p.CreatedAt.UTC().Format(time.RFC3339)
	}
	return v
}

// NewPromotionViews converts promotions, never returning nil
func NewPromotionViews(promos []*store.Promotion) []PromotionView {
	out := make([]PromotionView, 0, len(promos))
	for _, p := range promos {
		out = append(out, NewPromotionView(p))
	}
	return out
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(store.DateLayout)
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
