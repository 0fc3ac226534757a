// ABOUTME: Store interface and data types for fanpulse persistence
// ABOUTME: Defines fans, engagement events, merchandise, purchases, promotions and aggregate rows

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrDuplicateEmail is returned when a fan with the same email already exists
var ErrDuplicateEmail = errors.New("fan email already exists")

// DateLayout is the on-disk format for calendar dates (join, event, purchase, promotion dates)
const DateLayout = "2006-01-02"

// Known engagement event types. The column is free text; other values are stored as-is.
const (
	EventGameAttendance = "game_attendance"
	EventAppOpen        = "app_open"
	EventSocialShare    = "social_share"
	EventContentView    = "content_view"
)

// Fan is a registered supporter. FavoriteTeam is empty when the fan has none.
type Fan struct {
	ID              int64     `json:"id"`
	Name            string    `json:"name"`
	Email           string    `json:"email"`
	FavoriteTeam    string    `json:"favorite_team"`
	FavoritePlayers string    `json:"favorite_players"` // comma-separated free text
	JoinDate        time.Time `json:"join_date"`
	City            string    `json:"city"`
	State           string    `json:"state"`
}

// EngagementEvent is a single recorded interaction by a fan
type EngagementEvent struct {
	ID        int64     `json:"id"`
	FanID     int64     `json:"fan_id"`
	EventType string    `json:"event_type"`
	EventDate time.Time `json:"event_date"`
	Details   string    `json:"details"`
}

// MerchandiseItem is a product in the catalog. Team and Player are empty when unset.
type MerchandiseItem struct {
	ID       int64   `json:"id"`
	Name     string  `json:"name"`
	Category string  `json:"category"`
	Team     string  `json:"team"`
	Player   string  `json:"player"`
	Price    float64 `json:"price"`
	InStock  bool    `json:"in_stock"`
}

// Purchase is a completed order line. ProductName and Category are joined from merchandise.
type Purchase struct {
	ID           int64     `json:"id"`
	FanID        int64     `json:"fan_id"`
	ProductID    int64     `json:"product_id"`
	ProductName  string    `json:"product_name"`
	Category     string    `json:"category"`
	PurchaseDate time.Time `json:"purchase_date"`
	Quantity     int       `json:"quantity"`
	TotalPrice   float64   `json:"total_price"`
}

// Promotion is a marketing campaign aimed at a segment keyword and product category
type Promotion struct {
	ID              int64     `json:"id"`
	Name            string    `json:"name"`
	Description     string    `json:"description"`
	DiscountPercent float64   `json:"discount_percent"`
	TargetSegment   string    `json:"target_segment"`
	TargetCategory  string    `json:"target_category"`
	StartDate       time.Time `json:"start_date"`
	EndDate         time.Time `json:"end_date"`
	CreatedAt       time.Time `json:"created_at"`
}

// EventCounts is the per-fan reduction of engagement events.
// Events of unrecognized types count toward Total and DistinctTypes only.
type EventCounts struct {
	Total         int
	DistinctTypes int
	Games         int
	AppOpens      int
	SocialShares  int
	ContentViews  int
	FirstEvent    *time.Time
	LastEvent     *time.Time
}

// FanActivity pairs a fan with their all-time event counts
type FanActivity struct {
	FanID        int64
	Name         string
	FavoriteTeam string
	Counts       EventCounts
}

// SegmentRow is the unwindowed per-fan aggregate used for segmentation
type SegmentRow struct {
	FanID           int64
	Name            string
	Email           string
	FavoriteTeam    string
	EngagementCount int
	GamesAttended   int
	PurchaseCount   int
	TotalSpent      float64
	LastEngagement  *time.Time // nil when the fan has no events at all
}

// MerchandiseFilter narrows a catalog search. Empty strings and nil mean "no filter".
// Team, Category and Player are case-insensitive substring matches.
type MerchandiseFilter struct {
	Team        string
	Category    string
	Player      string
	MaxPrice    *float64
	InStockOnly bool
}

// FanStore defines the read and append operations over the fan dataset
type FanStore interface {
	// Fans
	CreateFan(ctx context.Context, fan *Fan) error
	GetFan(ctx context.Context, id int64) (*Fan, error)
	GetFanByEmail(ctx context.Context, email string) (*Fan, error)
	ListFans(ctx context.Context) ([]*Fan, error)

	// Engagement events (since.IsZero() means all time)
	CreateEngagementEvent(ctx context.Context, event *EngagementEvent) error
	GetEngagementEvent(ctx context.Context, id int64) (*EngagementEvent, error)
	ListRecentEngagements(ctx context.Context, fanID int64, limit int) ([]*EngagementEvent, error)
	CountEngagements(ctx context.Context, fanID int64, since time.Time) (*EventCounts, error)
	ListFanActivity(ctx context.Context) ([]*FanActivity, error)

	// Merchandise and purchases
	CreateMerchandise(ctx context.Context, item *MerchandiseItem) error
	SearchMerchandise(ctx context.Context, filter MerchandiseFilter) ([]*MerchandiseItem, error)
	CreatePurchase(ctx context.Context, purchase *Purchase) error
	ListPurchases(ctx context.Context, fanID int64) ([]*Purchase, error)

	// Segmentation input, one row per fan ordered by fan ID
	ListSegmentRows(ctx context.Context) ([]*SegmentRow, error)

	// Promotions
	CreatePromotion(ctx context.Context, promo *Promotion) error
	ListPromotions(ctx context.Context, limit int) ([]*Promotion, error)

	// Ping reports whether the store is reachable
	Ping(ctx context.Context) error

	// Close releases any resources held by the store
	Close() error
}

// formatDate renders a calendar date for storage
func formatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// parseDate parses a stored calendar date
func parseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, s)
}

// Today truncates t to its calendar date in t's location, expressed as a UTC midnight.
func Today(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
