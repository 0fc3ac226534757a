// ABOUTME: Deterministic demo dataset and loader for empty databases
// ABOUTME: Event and purchase dates are relative to the load time so windows stay meaningful

package store

import (
	"context"
	"fmt"
	"time"
)

// SeedEvent is an engagement event in a Dataset. Fan is an index into Dataset.Fans.
type SeedEvent struct {
	Fan       int
	EventType string
	DaysAgo   int
	Details   string
}

// SeedPurchase is a purchase in a Dataset. Fan and Product index Dataset.Fans
// and Dataset.Merchandise.
type SeedPurchase struct {
	Fan      int
	Product  int
	DaysAgo  int
	Quantity int
}

// Dataset is a self-contained set of rows that can be loaded into a FanStore
type Dataset struct {
	Fans        []Fan
	Merchandise []MerchandiseItem
	Events      []SeedEvent
	Purchases   []SeedPurchase
}

// SeedResult reports the IDs assigned while loading a Dataset, parallel to its slices
type SeedResult struct {
	FanIDs     []int64
	ProductIDs []int64
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DemoDataset returns the built-in demo data: ten fans spread across every
// segment, a small catalog for three teams, and a year of activity.
func DemoDataset() *Dataset {
	return &Dataset{
		Fans: []Fan{
			{Name: "Maya Chen", Email: "maya.chen@example.com", FavoriteTeam: "Thunderbolts", FavoritePlayers: "Jake Storm, Anika Patel", JoinDate: date(2021, time.March, 14), City: "Portland", State: "OR"},
			{Name: "Marcus Johnson", Email: "marcus.johnson@example.com", FavoriteTeam: "Riverhawks", FavoritePlayers: "Leo Rivera", JoinDate: date(2022, time.June, 2), City: "Sacramento", State: "CA"},
			{Name: "Priya Sharma", Email: "priya.sharma@example.com", FavoriteTeam: "Ironclads", FavoritePlayers: "Dana Kim", JoinDate: date(2023, time.January, 20), City: "Pittsburgh", State: "PA"},
			{Name: "Diego Alvarez", Email: "diego.alvarez@example.com", FavoriteTeam: "Thunderbolts", FavoritePlayers: "Anika Patel", JoinDate: date(2023, time.August, 9), City: "Eugene", State: "OR"},
			{Name: "Emily Walsh", Email: "emily.walsh@example.com", FavoritePlayers: "", JoinDate: date(2024, time.February, 28), City: "Boise", State: "ID"},
			{Name: "Tom Becker", Email: "tom.becker@example.com", FavoriteTeam: "Riverhawks", FavoritePlayers: "Sam Okafor, Leo Rivera", JoinDate: date(2020, time.September, 5), City: "Reno", State: "NV"},
			{Name: "Aisha Bello", Email: "aisha.bello@example.com", FavoriteTeam: "Ironclads", FavoritePlayers: "Ravi Menon", JoinDate: date(2022, time.November, 11), City: "Cleveland", State: "OH"},
			{Name: "Kenji Watanabe", Email: "kenji.watanabe@example.com", FavoriteTeam: "Thunderbolts", FavoritePlayers: "Jake Storm", JoinDate: date(2024, time.May, 17), City: "Seattle", State: "WA"},
			{Name: "Sofia Rossi", Email: "sofia.rossi@example.com", FavoriteTeam: "Riverhawks", FavoritePlayers: "Leo Rivera", JoinDate: date(2021, time.July, 30), City: "Fresno", State: "CA"},
			{Name: "Liam O'Brien", Email: "liam.obrien@example.com", FavoriteTeam: "Ironclads", FavoritePlayers: "", JoinDate: date(2025, time.January, 3), City: "Akron", State: "OH"},
		},
		Merchandise: []MerchandiseItem{
			{Name: "Thunderbolts Home Jersey - Jake Storm", Category: "jersey", Team: "Thunderbolts", Player: "Jake Storm", Price: 109.99, InStock: true},
			{Name: "Thunderbolts Away Jersey - Anika Patel", Category: "jersey", Team: "Thunderbolts", Player: "Anika Patel", Price: 104.99, InStock: true},
			{Name: "Thunderbolts Snapback", Category: "hat", Team: "Thunderbolts", Price: 29.99, InStock: true},
			{Name: "Thunderbolts Knit Scarf", Category: "scarf", Team: "Thunderbolts", Price: 24.99, InStock: true},
			{Name: "Riverhawks Home Jersey - Leo Rivera", Category: "jersey", Team: "Riverhawks", Player: "Leo Rivera", Price: 99.99, InStock: true},
			{Name: "Riverhawks Beanie", Category: "hat", Team: "Riverhawks", Price: 22.00, InStock: true},
			{Name: "Riverhawks Signed Ball - Sam Okafor", Category: "collectible", Team: "Riverhawks", Player: "Sam Okafor", Price: 149.99, InStock: true},
			{Name: "Ironclads Jersey - Dana Kim", Category: "jersey", Team: "Ironclads", Player: "Dana Kim", Price: 94.99, InStock: true},
			{Name: "Ironclads Poster - Ravi Menon", Category: "poster", Team: "Ironclads", Player: "Ravi Menon", Price: 14.99, InStock: true},
			{Name: "Ironclads Pullover Hoodie", Category: "apparel", Team: "Ironclads", Price: 59.99, InStock: true},
			{Name: "League Logo Keychain", Category: "accessory", Price: 9.99, InStock: true},
			{Name: "Jake Storm Bobblehead", Category: "collectible", Team: "Thunderbolts", Player: "Jake Storm", Price: 34.99, InStock: false},
			{Name: "Riverhawks Stripe Scarf", Category: "scarf", Team: "Riverhawks", Price: 19.99, InStock: true},
			{Name: "Thunderbolts Championship Poster", Category: "poster", Team: "Thunderbolts", Price: 12.50, InStock: true},
		},
		Events: []SeedEvent{
			// Maya Chen: season ticket holder
			{Fan: 0, EventType: EventGameAttendance, DaysAgo: 3, Details: "Home opener"},
			{Fan: 0, EventType: EventGameAttendance, DaysAgo: 10, Details: "vs Riverhawks"},
			{Fan: 0, EventType: EventGameAttendance, DaysAgo: 17, Details: "vs Ironclads"},
			{Fan: 0, EventType: EventGameAttendance, DaysAgo: 24, Details: "Rivalry night"},
			{Fan: 0, EventType: EventGameAttendance, DaysAgo: 31, Details: "Preseason"},
			{Fan: 0, EventType: EventAppOpen, DaysAgo: 2, Details: "Checked lineup"},
			{Fan: 0, EventType: EventAppOpen, DaysAgo: 9, Details: "Bought parking"},
			{Fan: 0, EventType: EventSocialShare, DaysAgo: 3, Details: "Shared highlight reel"},

			// Marcus Johnson: active but never bought
			{Fan: 1, EventType: EventGameAttendance, DaysAgo: 12, Details: "vs Thunderbolts"},
			{Fan: 1, EventType: EventGameAttendance, DaysAgo: 40, Details: "Playoff game"},
			{Fan: 1, EventType: EventAppOpen, DaysAgo: 5, Details: "Score check"},
			{Fan: 1, EventType: EventContentView, DaysAgo: 6, Details: "Watched interview"},

			// Priya Sharma
			{Fan: 2, EventType: EventAppOpen, DaysAgo: 15, Details: "Browsed store"},

			// Diego Alvarez
			{Fan: 3, EventType: EventContentView, DaysAgo: 20, Details: "Read recap"},
			{Fan: 3, EventType: EventAppOpen, DaysAgo: 22, Details: "Schedule"},

			// Tom Becker
			{Fan: 5, EventType: EventGameAttendance, DaysAgo: 4, Details: "vs Ironclads"},
			{Fan: 5, EventType: EventGameAttendance, DaysAgo: 11, Details: "vs Thunderbolts"},
			{Fan: 5, EventType: EventGameAttendance, DaysAgo: 18, Details: "Family night"},
			{Fan: 5, EventType: EventGameAttendance, DaysAgo: 25, Details: "Fan appreciation day"},
			{Fan: 5, EventType: EventSocialShare, DaysAgo: 4, Details: "Posted stadium photo"},

			// Aisha Bello
			{Fan: 6, EventType: EventGameAttendance, DaysAgo: 30, Details: "Away game"},
			{Fan: 6, EventType: EventAppOpen, DaysAgo: 8, Details: "Ticket transfer"},
			{Fan: 6, EventType: EventContentView, DaysAgo: 9, Details: "Draft preview"},

			// Kenji Watanabe
			{Fan: 7, EventType: EventAppOpen, DaysAgo: 1, Details: "Live scores"},
			{Fan: 7, EventType: EventAppOpen, DaysAgo: 7, Details: "Push notification"},
			{Fan: 7, EventType: EventSocialShare, DaysAgo: 7, Details: "Shared buzzer beater"},

			// Sofia Rossi: active last season, quiet since
			{Fan: 8, EventType: EventGameAttendance, DaysAgo: 120, Details: "Season finale"},
			{Fan: 8, EventType: EventGameAttendance, DaysAgo: 150, Details: "vs Ironclads"},
			{Fan: 8, EventType: EventAppOpen, DaysAgo: 200, Details: "Renewal reminder"},
		},
		Purchases: []SeedPurchase{
			{Fan: 0, Product: 3, DaysAgo: 40, Quantity: 1},
			{Fan: 0, Product: 2, DaysAgo: 20, Quantity: 1},
			{Fan: 2, Product: 9, DaysAgo: 15, Quantity: 1},
			{Fan: 5, Product: 5, DaysAgo: 11, Quantity: 2},
			{Fan: 6, Product: 8, DaysAgo: 30, Quantity: 1},
		},
	}
}

// Seed loads ds into st. Event and purchase dates are computed relative to now.
func Seed(ctx context.Context, st FanStore, ds *Dataset, now time.Time) (*SeedResult, error) {
	today := Today(now)
	result := &SeedResult{
		FanIDs:     make([]int64, len(ds.Fans)),
		ProductIDs: make([]int64, len(ds.Merchandise)),
	}

	for i := range ds.Fans {
		fan := ds.Fans[i]
		if err := st.CreateFan(ctx, &fan); err != nil {
			return nil, fmt.Errorf("seeding fan %q: %w", fan.Email, err)
		}
		result.FanIDs[i] = fan.ID
	}

	for i := range ds.Merchandise {
		item := ds.Merchandise[i]
		if err := st.CreateMerchandise(ctx, &item); err != nil {
			return nil, fmt.Errorf("seeding merchandise %q: %w", item.Name, err)
		}
		result.ProductIDs[i] = item.ID
	}

	for _, se := range ds.Events {
		if se.Fan < 0 || se.Fan >= len(ds.Fans) {
			return nil, fmt.Errorf("seed event references fan index %d", se.Fan)
		}
		event := &EngagementEvent{
			FanID:     result.FanIDs[se.Fan],
			EventType: se.EventType,
			EventDate: today.AddDate(0, 0, -se.DaysAgo),
			Details:   se.Details,
		}
		if err := st.CreateEngagementEvent(ctx, event); err != nil {
			return nil, fmt.Errorf("seeding engagement event: %w", err)
		}
	}

	for _, sp := range ds.Purchases {
		if sp.Fan < 0 || sp.Fan >= len(ds.Fans) || sp.Product < 0 || sp.Product >= len(ds.Merchandise) {
			return nil, fmt.Errorf("seed purchase references fan %d product %d", sp.Fan, sp.Product)
		}
		qty := sp.Quantity
		if qty <= 0 {
			qty = 1
		}
		purchase := &Purchase{
			FanID:        result.FanIDs[sp.Fan],
			ProductID:    result.ProductIDs[sp.Product],
			PurchaseDate: today.AddDate(0, 0, -sp.DaysAgo),
			Quantity:     qty,
			TotalPrice:   ds.Merchandise[sp.Product].Price * float64(qty),
		}
		if err := st.CreatePurchase(ctx, purchase); err != nil {
			return nil, fmt.Errorf("seeding purchase: %w", err)
		}
	}

	return result, nil
}

// SeedIfEmpty loads ds only when st has no fans. It reports whether data was loaded.
func SeedIfEmpty(ctx context.Context, st FanStore, ds *Dataset, now time.Time) (bool, error) {
	fans, err := st.ListFans(ctx)
	if err != nil {
		return false, fmt.Errorf("checking for existing fans: %w", err)
	}
	if len(fans) > 0 {
		return false, nil
	}
	if _, err := Seed(ctx, st, ds, now); err != nil {
		return false, err
	}
	return true, nil
}
