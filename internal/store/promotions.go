// ABOUTME: SQLite persistence for marketing promotions
// ABOUTME: Promotions are insert-only and listed newest first

package store

import (
	"context"
	"fmt"
	"time"
)

// CreatePromotion inserts a promotion and sets promo.ID.
// CreatedAt defaults to now when unset.
func (s *SQLiteStore) CreatePromotion(ctx context.Context, promo *Promotion) error {
	if promo.CreatedAt.IsZero() {
		promo.CreatedAt = time.Now().UTC()
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO promotions (name, description, discount_percent, target_segment, target_category,
			start_date, end_date, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, promo.Name, promo.Description, promo.DiscountPercent, promo.TargetSegment, promo.TargetCategory,
		formatDate(promo.StartDate), formatDate(promo.EndDate), promo.CreatedAt.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("inserting promotion: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading promotion id: %w", err)
	}
	promo.ID = id
	return nil
}

// ListPromotions returns up to limit promotions, newest first.
func (s *SQLiteStore) ListPromotions(ctx context.Context, limit int) ([]*Promotion, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, description, discount_percent, target_segment, target_category,
			start_date, end_date, created_at
		FROM promotions
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying promotions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*Promotion
	for rows.Next() {
		var p Promotion
		var start, end, created string
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.DiscountPercent, &p.TargetSegment,
			&p.TargetCategory, &start, &end, &created); err != nil {
			return nil, fmt.Errorf("scanning promotion: %w", err)
		}
		if p.StartDate, err = parseDate(start); err != nil {
			return nil, fmt.Errorf("parsing start date for promotion %d: %w", p.ID, err)
		}
		if p.EndDate, err = parseDate(end); err != nil {
			return nil, fmt.Errorf("parsing end date for promotion %d: %w", p.ID, err)
		}
		// Rows migrated from before created_at existed carry an empty string
		p.CreatedAt, _ = time.Parse(time.RFC3339, created)
		out = append(out, &p)
	}
	return out, rows.Err()
}
