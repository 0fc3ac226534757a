// ABOUTME: Additive rule scorer that ranks merchandise for a single fan
// ABOUTME: Each rule adds points and a reason; purchased and zero-score items are dropped

package insights

import (
	"sort"
	"strings"

	"github.com/2389/fanpulse/internal/store"
)

// DefaultMaxRecommendations is the result limit when the caller gives none
const DefaultMaxRecommendations = 5

// Point values and reasons for each scoring rule
const (
	pointsTeam       = 10
	pointsPlayer     = 15
	pointsPremium    = 5
	pointsEntryLevel = 5

	reasonTeam       = "Matches favorite team"
	reasonPlayer     = "Features favorite player: "
	reasonPremium    = "Premium pick for dedicated fan"
	reasonEntryLevel = "Great entry-level item"

	premiumMinGames      = 3
	premiumMinPrice      = 50.0
	entryLevelMaxEvents  = 3
	entryLevelBelowPrice = 30.0
)

// Recommendation is a scored catalog item with the reasons it scored
type Recommendation struct {
	ProductID int64   `json:"product_id"`
	Name      string  `json:"name"`
	Category  string  `json:"category"`
	Team      string  `json:"team"`
	Player    string  `json:"player"`
	Price     float64 `json:"price"`
	Score     int     `json:"score"`
	Reason    string  `json:"reason"`
}

// ScoreItem applies every rule to one item. Reasons are in rule order.
// counts are the fan's all-time engagement counts.
func ScoreItem(fan *store.Fan, counts store.EventCounts, item *store.MerchandiseItem) (int, []string) {
	score := 0
	var reasons []string

	if item.Team != "" && strings.EqualFold(item.Team, fan.FavoriteTeam) {
		score += pointsTeam
		reasons = append(reasons, reasonTeam)
	}
	if item.Player != "" && strings.Contains(strings.ToLower(fan.FavoritePlayers), strings.ToLower(item.Player)) {
		score += pointsPlayer
		reasons = append(reasons, reasonPlayer+item.Player)
	}
	if counts.Games >= premiumMinGames && item.Price > premiumMinPrice {
		score += pointsPremium
		reasons = append(reasons, reasonPremium)
	}
	if counts.Total < entryLevelMaxEvents && item.Price < entryLevelBelowPrice {
		score += pointsEntryLevel
		reasons = append(reasons, reasonEntryLevel)
	}
	return score, reasons
}

// Recommend scores catalog for fan and returns at most limit items, best
// first. Out-of-stock items and products in purchases are skipped. Ties are
// broken by price ascending, then product ID ascending. A limit <= 0 uses
// DefaultMaxRecommendations.
func Recommend(fan *store.Fan, counts store.EventCounts, catalog []*store.MerchandiseItem, purchases []*store.Purchase, limit int) []Recommendation {
	if limit <= 0 {
		limit = DefaultMaxRecommendations
	}

	owned := make(map[int64]struct{}, len(purchases))
	for _, p := range purchases {
		owned[p.ProductID] = struct{}{}
	}

	recs := []Recommendation{}
	for _, item := range catalog {
		if !item.InStock {
			continue
		}
		if _, ok := owned[item.ID]; ok {
			continue
		}
		score, reasons := ScoreItem(fan, counts, item)
		if score <= 0 {
			continue
		}
		recs = append(recs, Recommendation{
			ProductID: item.ID,
			Name:      item.Name,
			Category:  item.Category,
			Team:      item.Team,
			Player:    item.Player,
			Price:     item.Price,
			Score:     score,
			Reason:    strings.Join(reasons, "; "),
		})
	}

	sort.Slice(recs, func(i, j int) bool {
		if recs[i].Score != recs[j].Score {
			return recs[i].Score > recs[j].Score
		}
		if recs[i].Price != recs[j].Price {
			return recs[i].Price < recs[j].Price
		}
		return recs[i].ProductID < recs[j].ProductID
	})

	if len(recs) > limit {
		recs = recs[:limit]
	}
	return recs
}
