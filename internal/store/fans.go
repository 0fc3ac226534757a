// ABOUTME: SQLite persistence for fans
// ABOUTME: Create, lookup by id or email, and list in id order

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// Ensure SQLiteStore implements FanStore.
var _ FanStore = (*SQLiteStore)(nil)

const fanColumns = `id, name, email, favorite_team, favorite_players, join_date, city, state`

// CreateFan inserts a fan and sets fan.ID from the generated key.
// Returns ErrDuplicateEmail if the email is already registered.
func (s *SQLiteStore) CreateFan(ctx context.Context, fan *Fan) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO fans (name, email, favorite_team, favorite_players, join_date, city, state)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, fan.Name, fan.Email, nullString(fan.FavoriteTeam), fan.FavoritePlayers,
		formatDate(fan.JoinDate), fan.City, fan.State)
	if err != nil {
		if isConstraintViolation(err) {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("inserting fan: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading fan id: %w", err)
	}
	fan.ID = id
	return nil
}

// GetFan retrieves a fan by ID.
// Returns ErrNotFound if the fan doesn't exist.
func (s *SQLiteStore) GetFan(ctx context.Context, id int64) (*Fan, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+fanColumns+` FROM fans WHERE id = ?`, id)
	return scanFan(row)
}

// GetFanByEmail retrieves a fan by email, ignoring case.
// Returns ErrNotFound if no fan has that email.
func (s *SQLiteStore) GetFanByEmail(ctx context.Context, email string) (*Fan, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+fanColumns+` FROM fans WHERE lower(email) = ?`, strings.ToLower(email))
	return scanFan(row)
}

// ListFans returns every fan ordered by ID.
func (s *SQLiteStore) ListFans(ctx context.Context) ([]*Fan, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+fanColumns+` FROM fans ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying fans: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var fans []*Fan
	for rows.Next() {
		fan, err := scanFan(rows)
		if err != nil {
			return nil, err
		}
		fans = append(fans, fan)
	}
	return fans, rows.Err()
}

// rowScanner is satisfied by *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

func scanFan(row rowScanner) (*Fan, error) {
	var f Fan
	var team sql.NullString
	var joinDate string

	err := row.Scan(&f.ID, &f.Name, &f.Email, &team, &f.FavoritePlayers, &joinDate, &f.City, &f.State)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning fan: %w", err)
	}

	f.FavoriteTeam = team.String
	f.JoinDate, err = parseDate(joinDate)
	if err != nil {
		return nil, fmt.Errorf("parsing join date for fan %d: %w", f.ID, err)
	}
	return &f, nil
}
