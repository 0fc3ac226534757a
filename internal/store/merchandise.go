// ABOUTME: SQLite persistence for the merchandise catalog and purchases
// ABOUTME: Catalog search builds a filtered query; purchases join product names

package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// CreateMerchandise inserts a catalog item and sets item.ID.
func (s *SQLiteStore) CreateMerchandise(ctx context.Context, item *MerchandiseItem) error {
	inStock := 0
	if item.InStock {
		inStock = 1
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO merchandise (name, category, team, player, price, in_stock)
		VALUES (?, ?, ?, ?, ?, ?)
	`, item.Name, item.Category, nullString(item.Team), nullString(item.Player), item.Price, inStock)
	if err != nil {
		return fmt.Errorf("inserting merchandise: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading merchandise id: %w", err)
	}
	item.ID = id
	return nil
}

// SearchMerchandise returns catalog items matching the filter, ordered by
// category, then price, then ID.
func (s *SQLiteStore) SearchMerchandise(ctx context.Context, filter MerchandiseFilter) ([]*MerchandiseItem, error) {
	var args []any
	query := `SELECT id, name, category, team, player, price, in_stock FROM merchandise WHERE 1=1`

	if filter.Team != "" {
		query += ` AND lower(team) LIKE ?`
		args = append(args, likePattern(filter.Team))
	}
	if filter.Category != "" {
		query += ` AND lower(category) LIKE ?`
		args = append(args, likePattern(filter.Category))
	}
	if filter.Player != "" {
		query += ` AND lower(player) LIKE ?`
		args = append(args, likePattern(filter.Player))
	}
	if filter.MaxPrice != nil {
		query += ` AND price <= ?`
		args = append(args, *filter.MaxPrice)
	}
	if filter.InStockOnly {
		query += ` AND in_stock = 1`
	}
	query += ` ORDER BY category, price, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying merchandise: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var items []*MerchandiseItem
	for rows.Next() {
		var m MerchandiseItem
		var team, player sql.NullString
		var inStock int
		if err := rows.Scan(&m.ID, &m.Name, &m.Category, &team, &player, &m.Price, &inStock); err != nil {
			return nil, fmt.Errorf("scanning merchandise: %w", err)
		}
		m.Team = team.String
		m.Player = player.String
		m.InStock = inStock != 0
		items = append(items, &m)
	}
	return items, rows.Err()
}

// CreatePurchase records a purchase and sets purchase.ID.
// Returns ErrNotFound if the fan or product doesn't exist.
func (s *SQLiteStore) CreatePurchase(ctx context.Context, purchase *Purchase) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO purchases (fan_id, product_id, purchase_date, quantity, total_price)
		VALUES (?, ?, ?, ?, ?)
	`, purchase.FanID, purchase.ProductID, formatDate(purchase.PurchaseDate), purchase.Quantity, purchase.TotalPrice)
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrNotFound
		}
		return fmt.Errorf("inserting purchase: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading purchase id: %w", err)
	}
	purchase.ID = id
	return nil
}

// ListPurchases returns a fan's purchase history, newest first.
func (s *SQLiteStore) ListPurchases(ctx context.Context, fanID int64) ([]*Purchase, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.id, p.fan_id, p.product_id, m.name, m.category, p.purchase_date, p.quantity, p.total_price
		FROM purchases p
		JOIN merchandise m ON m.id = p.product_id
		WHERE p.fan_id = ?
		ORDER BY p.purchase_date DESC, p.id DESC
	`, fanID)
	if err != nil {
		return nil, fmt.Errorf("querying purchases: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var purchases []*Purchase
	for rows.Next() {
		var p Purchase
		var purchaseDate string
		if err := rows.Scan(&p.ID, &p.FanID, &p.ProductID, &p.ProductName, &p.Category,
			&purchaseDate, &p.Quantity, &p.TotalPrice); err != nil {
			return nil, fmt.Errorf("scanning purchase: %w", err)
		}
		p.PurchaseDate, err = parseDate(purchaseDate)
		if err != nil {
			return nil, fmt.Errorf("parsing purchase date for purchase %d: %w", p.ID, err)
		}
		purchases = append(purchases, &p)
	}
	return purchases, rows.Err()
}

// likePattern builds a lower-cased substring pattern for LIKE
func likePattern(s string) string {
	return "%" + strings.ToLower(s) + "%"
}
