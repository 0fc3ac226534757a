// ABOUTME: SQLite persistence and aggregation for engagement events
// ABOUTME: Appends events, lists recent history and reduces events into per-fan counts

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// countColumns reduces engagement_events rows into the EventCounts shape.
// Callers alias the table as e.
const countColumns = `
	COUNT(e.id),
	COUNT(DISTINCT e.event_type),
	COALESCE(SUM(CASE WHEN e.event_type = 'game_attendance' THEN 1 ELSE 0 END), 0),
	COALESCE(SUM(CASE WHEN e.event_type = 'app_open' THEN 1 ELSE 0 END), 0),
	COALESCE(SUM(CASE WHEN e.event_type = 'social_share' THEN 1 ELSE 0 END), 0),
	COALESCE(SUM(CASE WHEN e.event_type = 'content_view' THEN 1 ELSE 0 END), 0),
	MIN(e.event_date),
	MAX(e.event_date)`

// CreateEngagementEvent appends an event and sets event.ID.
// Returns ErrNotFound if the fan doesn't exist.
func (s *SQLiteStore) CreateEngagementEvent(ctx context.Context, event *EngagementEvent) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO engagement_events (fan_id, event_type, event_date, details)
		VALUES (?, ?, ?, ?)
	`, event.FanID, event.EventType, formatDate(event.EventDate), event.Details)
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrNotFound
		}
		return fmt.Errorf("inserting engagement event: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading engagement event id: %w", err)
	}
	event.ID = id
	return nil
}

// GetEngagementEvent retrieves an event by ID.
// Returns ErrNotFound if the event doesn't exist.
func (s *SQLiteStore) GetEngagementEvent(ctx context.Context, id int64) (*EngagementEvent, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, fan_id, event_type, event_date, details
		FROM engagement_events WHERE id = ?
	`, id)
	return scanEngagementEvent(row)
}

// ListRecentEngagements returns a fan's most recent events, newest first.
// Events on the same date are ordered by descending ID.
func (s *SQLiteStore) ListRecentEngagements(ctx context.Context, fanID int64, limit int) ([]*EngagementEvent, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, fan_id, event_type, event_date, details
		FROM engagement_events
		WHERE fan_id = ?
		ORDER BY event_date DESC, id DESC
		LIMIT ?
	`, fanID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying engagement events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var events []*EngagementEvent
	for rows.Next() {
		e, err := scanEngagementEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// CountEngagements reduces a fan's events on or after since.
// A zero since counts all events. Unknown fans yield zero counts.
func (s *SQLiteStore) CountEngagements(ctx context.Context, fanID int64, since time.Time) (*EventCounts, error) {
	query := `SELECT ` + countColumns + ` FROM engagement_events e WHERE e.fan_id = ?`
	args := []any{fanID}
	if !since.IsZero() {
		query += ` AND e.event_date >= ?`
		args = append(args, formatDate(since))
	}

	var c EventCounts
	var first, last sql.NullString
	err := s.db.QueryRowContext(ctx, query, args...).Scan(
		&c.Total, &c.DistinctTypes, &c.Games, &c.AppOpens, &c.SocialShares, &c.ContentViews, &first, &last)
	if err != nil {
		return nil, fmt.Errorf("counting engagement events: %w", err)
	}
	if err := setEventBounds(&c, first, last); err != nil {
		return nil, err
	}
	return &c, nil
}

// ListFanActivity returns all-time event counts for every fan, including fans
// with no events, ordered by fan ID.
func (s *SQLiteStore) ListFanActivity(ctx context.Context) ([]*FanActivity, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT f.id, f.name, f.favorite_team, `+countColumns+`
		FROM fans f
		LEFT JOIN engagement_events e ON e.fan_id = f.id
		GROUP BY f.id
		ORDER BY f.id
	`)
	if err != nil {
		return nil, fmt.Errorf("querying fan activity: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*FanActivity
	for rows.Next() {
		var a FanActivity
		var team, first, last sql.NullString
		c := &a.Counts
		if err := rows.Scan(&a.FanID, &a.Name, &team,
			&c.Total, &c.DistinctTypes, &c.Games, &c.AppOpens, &c.SocialShares, &c.ContentViews,
			&first, &last); err != nil {
			return nil, fmt.Errorf("scanning fan activity: %w", err)
		}
		a.FavoriteTeam = team.String
		if err := setEventBounds(c, first, last); err != nil {
			return nil, err
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}

func scanEngagementEvent(row rowScanner) (*EngagementEvent, error) {
	var e EngagementEvent
	var eventDate string
	err := row.Scan(&e.ID, &e.FanID, &e.EventType, &eventDate, &e.Details)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning engagement event: %w", err)
	}
	e.EventDate, err = parseDate(eventDate)
	if err != nil {
		return nil, fmt.Errorf("parsing event date for event %d: %w", e.ID, err)
	}
	return &e, nil
}

func setEventBounds(c *EventCounts, first, last sql.NullString) error {
	if first.Valid {
		t, err := parseDate(first.String)
		if err != nil {
			return fmt.Errorf("parsing first event date: %w", err)
		}
		c.FirstEvent = &t
	}
	if last.Valid {
		t, err := parseDate(last.String)
		if err != nil {
			return fmt.Errorf("parsing last event date: %w", err)
		}
		c.LastEvent = &t
	}
	return nil
}
