// ABOUTME: Tests for the in-memory FanStore
// ABOUTME: Checks that MemoryStore agrees with SQLiteStore on the demo dataset

package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_MatchesSQLite(t *testing.T) {
	ctx := context.Background()

	sqlite := newTestStore(t)
	defer sqlite.Close()
	mem := NewMemoryStore()

	sqlRes, err := Seed(ctx, sqlite, DemoDataset(), testNow)
	require.NoError(t, err)
	memRes, err := Seed(ctx, mem, DemoDataset(), testNow)
	require.NoError(t, err)

	sqlRows, err := sqlite.ListSegmentRows(ctx)
	require.NoError(t, err)
	memRows, err := mem.ListSegmentRows(ctx)
	require.NoError(t, err)
	require.Len(t, memRows, len(sqlRows))

	for i := range sqlRows {
		s, m := sqlRows[i], memRows[i]
		assert.Equal(t, s.Name, m.Name)
		assert.Equal(t, s.EngagementCount, m.EngagementCount, "engagement for %s", s.Name)
		assert.Equal(t, s.GamesAttended, m.GamesAttended, "games for %s", s.Name)
		assert.Equal(t, s.PurchaseCount, m.PurchaseCount, "purchases for %s", s.Name)
		assert.InDelta(t, s.TotalSpent, m.TotalSpent, 0.001, "spent for %s", s.Name)
	}

	since := Today(testNow).AddDate(0, 0, -90)
	for i := range sqlRes.FanIDs {
		sc, err := sqlite.CountEngagements(ctx, sqlRes.FanIDs[i], since)
		require.NoError(t, err)
		mc, err := mem.CountEngagements(ctx, memRes.FanIDs[i], since)
		require.NoError(t, err)
		assert.Equal(t, sc.Total, mc.Total)
		assert.Equal(t, sc.DistinctTypes, mc.DistinctTypes)
		assert.Equal(t, sc.Games, mc.Games)
	}

	sqlItems, err := sqlite.SearchMerchandise(ctx, MerchandiseFilter{InStockOnly: true})
	require.NoError(t, err)
	memItems, err := mem.SearchMerchandise(ctx, MerchandiseFilter{InStockOnly: true})
	require.NoError(t, err)
	require.Len(t, memItems, len(sqlItems))
	for i := range sqlItems {
		assert.Equal(t, sqlItems[i].Name, memItems[i].Name)
	}
}

func TestMemoryStore_NotFound(t *testing.T) {
	ctx := context.Background()
	mem := NewMemoryStore()

	_, err := mem.GetFan(ctx, 1)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = mem.GetFanByEmail(ctx, "missing@example.com")
	assert.ErrorIs(t, err, ErrNotFound)

	err = mem.CreateEngagementEvent(ctx, &EngagementEvent{FanID: 1, EventType: EventAppOpen, EventDate: testNow})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_DuplicateEmail(t *testing.T) {
	ctx := context.Background()
	mem := NewMemoryStore()

	require.NoError(t, mem.CreateFan(ctx, &Fan{Name: "A", Email: "a@example.com"}))
	err := mem.CreateFan(ctx, &Fan{Name: "B", Email: "A@example.com"})
	assert.ErrorIs(t, err, ErrDuplicateEmail)
}

func TestMemoryStore_FailWith(t *testing.T) {
	ctx := context.Background()
	mem := NewMemoryStore()
	boom := errors.New("disk on fire")
	mem.FailWith = boom

	_, err := mem.ListSegmentRows(ctx)
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, mem.Ping(ctx), boom)
}

func TestMemoryStore_RecentEngagementsTruncatesToDate(t *testing.T) {
	ctx := context.Background()
	mem := NewMemoryStore()
	fan := &Fan{Name: "A", Email: "a@example.com"}
	require.NoError(t, mem.CreateFan(ctx, fan))

	ev := &EngagementEvent{FanID: fan.ID, EventType: EventAppOpen, EventDate: testNow}
	require.NoError(t, mem.CreateEngagementEvent(ctx, ev))

	events, err := mem.ListRecentEngagements(ctx, fan.ID, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, time.Date(2026, time.March, 15, 0, 0, 0, 0, time.UTC), events[0].EventDate)
}
