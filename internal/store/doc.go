// Package store provides persistent storage for fanpulse using SQLite.
//
// # Architecture
//
// FanStore is the single storage interface. It covers read access to fans,
// merchandise and purchases, append-only engagement events and promotions, and
// two pre-aggregated views used by the insights package:
//
//   - CountEngagements / ListFanActivity: per-fan event counts (EventCounts)
//   - ListSegmentRows: unwindowed engagement and purchase totals (SegmentRow)
//
// SQLiteStore implements FanStore on database/sql. MemoryStore implements it
// in memory with the same ordering and error semantics.
//
// # Data Models
//
//   - Fan: registered supporter with optional favorite team and a
//     comma-separated favorite_players string
//   - EngagementEvent: dated interaction (game_attendance, app_open,
//     social_share, content_view, or any other type string)
//   - MerchandiseItem: catalog product, optionally tied to a team and player
//   - Purchase: order line linking a fan to a product
//   - Promotion: marketing campaign aimed at a segment keyword
//
// Calendar dates (join, event, purchase, promotion start/end) are stored as
// ISO "YYYY-MM-DD" strings so window filters compare lexically.
//
// # SQLite Configuration
//
// The store uses SQLite with WAL mode for concurrent reads:
//
//	PRAGMA journal_mode=WAL;
//	PRAGMA foreign_keys=ON;
//
// Two drivers are linked in. The default is modernc.org/sqlite (driver name
// "sqlite", pure Go). github.com/mattn/go-sqlite3 (driver name "sqlite3")
// is selected with WithDriver(DriverMattn) and requires cgo.
//
// Database file locations:
//
//   - Development: ~/.local/share/fanpulse/fanpulse.db
//   - Testing: :memory: (in-memory database, single connection)
//
// # Error Handling
//
// Common errors:
//
//   - ErrNotFound: Requested entity does not exist, or an insert referenced
//     a missing fan or product
//   - ErrDuplicateEmail: Fan email already registered
//
// All methods accept context.Context for cancellation support.
//
// # Seeding
//
// DemoDataset returns a deterministic dataset covering every segment. Seed and
// SeedIfEmpty load it with event dates relative to the supplied clock.
//
// # Testing
//
// Use NewMemoryStore() for unit tests:
//
//	st := store.NewMemoryStore()
//	// st implements FanStore
//
// Use NewSQLiteStore(":memory:") for integration tests with real SQLite.
//
// # Migrations
//
// Tables are created with CREATE TABLE IF NOT EXISTS. Columns added after the
// first release are applied by runMigrations, which checks pragma_table_info
// before each ALTER TABLE.
package store
