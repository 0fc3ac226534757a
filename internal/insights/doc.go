// Package insights holds the fan segmentation, engagement and recommendation
// rules, and the Service that applies them to a store.FanStore.
//
// # Rules
//
// The rule functions are pure and operate on pre-aggregated rows:
//
//   - Classify / ClassifyFans: ordered, first-match-wins segment rules
//   - WindowedLevel / ProfileLevel: the two engagement level scales
//   - EngagementScore / RankFans: the all-fan leaderboard
//   - ScoreItem / Recommend: additive merchandise scoring
//   - EstimateReach: promotion reach by target keyword
//
// # Segments
//
// Every fan lands in exactly one segment, tested in this order:
//
//	superfans              engagements >= 4 and purchases > 0
//	engaged_no_purchase    engagements >= 3 and purchases == 0
//	buyers_low_engagement  any other purchaser
//	casual_fans            1 <= engagements < 3
//	dormant_fans           everything else
//
// Engagement counts here are all-time. A fan with three events and a
// purchase is a buyer, not engaged_no_purchase.
//
// # Engagement Levels
//
// Two scales exist and are named separately. WindowedLevel (superfan,
// regular, casual, dormant) labels engagement summaries and the ranked list.
// ProfileLevel (superfan, regular, casual) labels recommendation responses
// and never returns dormant.
//
// # Recommendations
//
// Each in-stock item the fan has not bought collects points:
//
//	+10  item team equals favorite team (case-insensitive)
//	+15  item player appears in favorite players (case-insensitive substring)
//	+5   fan attended >= 3 games and price > 50
//	+5   fan has < 3 events and price < 30
//
// Items scoring zero are dropped. Results sort by score descending, then
// price ascending, then product ID ascending.
//
// # Errors
//
// Lookups that miss return *NotFoundError, which matches ErrNotFound and,
// for fans, ErrFanNotFound. Reach estimation is best-effort and returns zero
// on store failure. Other store errors are wrapped and returned.
package insights
