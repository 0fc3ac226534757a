// ABOUTME: Per-fan aggregate rows used for segmentation and reach estimation
// ABOUTME: Engagement and purchase totals are computed in separate subqueries to avoid join fan-out

package store

import (
	"context"
	"database/sql"
	"fmt"
)

// ListSegmentRows returns one unwindowed aggregate row per fan ordered by fan ID.
// Fans without events or purchases appear with zero counts.
func (s *SQLiteStore) ListSegmentRows(ctx context.Context) ([]*SegmentRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT
			f.id, f.name, f.email, f.favorite_team,
			COALESCE(e.engagements, 0),
			COALESCE(e.games, 0),
			COALESCE(p.purchases, 0),
			COALESCE(p.spent, 0),
			e.last_event
		FROM fans f
		LEFT JOIN (
			SELECT fan_id,
				COUNT(*) AS engagements,
				SUM(CASE WHEN event_type = 'game_attendance' THEN 1 ELSE 0 END) AS games,
				MAX(event_date) AS last_event
			FROM engagement_events
			GROUP BY fan_id
		) e ON e.fan_id = f.id
		LEFT JOIN (
			SELECT fan_id, COUNT(*) AS purchases, SUM(total_price) AS spent
			FROM purchases
			GROUP BY fan_id
		) p ON p.fan_id = f.id
		ORDER BY f.id
	`)
	if err != nil {
		return nil, fmt.Errorf("querying segment rows: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*SegmentRow
	for rows.Next() {
		var r SegmentRow
		var team, last sql.NullString
		if err := rows.Scan(&r.FanID, &r.Name, &r.Email, &team,
			&r.EngagementCount, &r.GamesAttended, &r.PurchaseCount, &r.TotalSpent, &last); err != nil {
			return nil, fmt.Errorf("scanning segment row: %w", err)
		}
		r.FavoriteTeam = team.String
		if last.Valid {
			t, err := parseDate(last.String)
			if err != nil {
				return nil, fmt.Errorf("parsing last engagement for fan %d: %w", r.FanID, err)
			}
			r.LastEngagement = &t
		}
		out = append(out, &r)
	}
	return out, rows.Err()
}
