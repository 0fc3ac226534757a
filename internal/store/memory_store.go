// ABOUTME: In-memory FanStore implementation for tests and ephemeral runs
// ABOUTME: Mirrors SQLiteStore ordering and error semantics without a database

package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// Ensure MemoryStore implements FanStore.
var _ FanStore = (*MemoryStore)(nil)

// MemoryStore is an in-memory FanStore.
type MemoryStore struct {
	mu          sync.RWMutex
	fans        map[int64]*Fan
	events      map[int64]*EngagementEvent
	merchandise map[int64]*MerchandiseItem
	purchases   map[int64]*Purchase
	promotions  map[int64]*Promotion
	nextID      int64

	// FailWith, when set, is returned by every method. Used to exercise error paths.
	FailWith error
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		fans:        make(map[int64]*Fan),
		events:      make(map[int64]*EngagementEvent),
		merchandise: make(map[int64]*MerchandiseItem),
		purchases:   make(map[int64]*Purchase),
		promotions:  make(map[int64]*Promotion),
	}
}

func (m *MemoryStore) id() int64 {
	m.nextID++
	return m.nextID
}

// CreateFan stores a new fan.
func (m *MemoryStore) CreateFan(ctx context.Context, fan *Fan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return m.FailWith
	}

	for _, f := range m.fans {
		if strings.EqualFold(f.Email, fan.Email) {
			return ErrDuplicateEmail
		}
	}
	fan.ID = m.id()
	f := *fan
	m.fans[f.ID] = &f
	return nil
}

// GetFan retrieves a fan by ID.
func (m *MemoryStore) GetFan(ctx context.Context, id int64) (*Fan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.FailWith != nil {
		return nil, m.FailWith
	}

	f, ok := m.fans[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *f
	return &out, nil
}

// GetFanByEmail retrieves a fan by email, ignoring case.
func (m *MemoryStore) GetFanByEmail(ctx context.Context, email string) (*Fan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.FailWith != nil {
		return nil, m.FailWith
	}

	for _, f := range m.fans {
		if strings.EqualFold(f.Email, email) {
			out := *f
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

// ListFans returns every fan ordered by ID.
func (m *MemoryStore) ListFans(ctx context.Context) ([]*Fan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.FailWith != nil {
		return nil, m.FailWith
	}

	out := make([]*Fan, 0, len(m.fans))
	for _, f := range m.fans {
		c := *f
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// CreateEngagementEvent appends an event.
func (m *MemoryStore) CreateEngagementEvent(ctx context.Context, event *EngagementEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return m.FailWith
	}

	if _, ok := m.fans[event.FanID]; !ok {
		return ErrNotFound
	}
	event.ID = m.id()
	event.EventDate = Today(event.EventDate)
	e := *event
	m.events[e.ID] = &e
	return nil
}

// GetEngagementEvent retrieves an event by ID.
func (m *MemoryStore) GetEngagementEvent(ctx context.Context, id int64) (*EngagementEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.FailWith != nil {
		return nil, m.FailWith
	}

	e, ok := m.events[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *e
	return &out, nil
}

// ListRecentEngagements returns a fan's most recent events, newest first.
func (m *MemoryStore) ListRecentEngagements(ctx context.Context, fanID int64, limit int) ([]*EngagementEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.FailWith != nil {
		return nil, m.FailWith
	}
	if limit <= 0 {
		limit = 10
	}

	events := m.fanEvents(fanID, time.Time{})
	sort.Slice(events, func(i, j int) bool {
		if !events[i].EventDate.Equal(events[j].EventDate) {
			return events[i].EventDate.After(events[j].EventDate)
		}
		return events[i].ID > events[j].ID
	})
	if len(events) > limit {
		events = events[:limit]
	}
	return events, nil
}

// CountEngagements reduces a fan's events on or after since.
func (m *MemoryStore) CountEngagements(ctx context.Context, fanID int64, since time.Time) (*EventCounts, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.FailWith != nil {
		return nil, m.FailWith
	}

	c := countEvents(m.fanEvents(fanID, since))
	return &c, nil
}

// ListFanActivity returns all-time event counts for every fan ordered by fan ID.
func (m *MemoryStore) ListFanActivity(ctx context.Context) ([]*FanActivity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.FailWith != nil {
		return nil, m.FailWith
	}

	out := make([]*FanActivity, 0, len(m.fans))
	for _, f := range m.fans {
		out = append(out, &FanActivity{
			FanID:        f.ID,
			Name:         f.Name,
			FavoriteTeam: f.FavoriteTeam,
			Counts:       countEvents(m.fanEvents(f.ID, time.Time{})),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FanID < out[j].FanID })
	return out, nil
}

// CreateMerchandise stores a catalog item.
func (m *MemoryStore) CreateMerchandise(ctx context.Context, item *MerchandiseItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return m.FailWith
	}

	item.ID = m.id()
	c := *item
	m.merchandise[c.ID] = &c
	return nil
}

// SearchMerchandise returns items matching the filter ordered by category, price, ID.
func (m *MemoryStore) SearchMerchandise(ctx context.Context, filter MerchandiseFilter) ([]*MerchandiseItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.FailWith != nil {
		return nil, m.FailWith
	}

	var out []*MerchandiseItem
	for _, item := range m.merchandise {
		if !matchesFilter(item, filter) {
			continue
		}
		c := *item
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		if out[i].Price != out[j].Price {
			return out[i].Price < out[j].Price
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// CreatePurchase records a purchase.
func (m *MemoryStore) CreatePurchase(ctx context.Context, purchase *Purchase) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return m.FailWith
	}

	if _, ok := m.fans[purchase.FanID]; !ok {
		return ErrNotFound
	}
	if _, ok := m.merchandise[purchase.ProductID]; !ok {
		return ErrNotFound
	}
	purchase.ID = m.id()
	purchase.PurchaseDate = Today(purchase.PurchaseDate)
	c := *purchase
	m.purchases[c.ID] = &c
	return nil
}

// ListPurchases returns a fan's purchases, newest first.
func (m *MemoryStore) ListPurchases(ctx context.Context, fanID int64) ([]*Purchase, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.FailWith != nil {
		return nil, m.FailWith
	}

	var out []*Purchase
	for _, p := range m.purchases {
		if p.FanID != fanID {
			continue
		}
		c := *p
		if item, ok := m.merchandise[p.ProductID]; ok {
			c.ProductName = item.Name
			c.Category = item.Category
		}
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].PurchaseDate.Equal(out[j].PurchaseDate) {
			return out[i].PurchaseDate.After(out[j].PurchaseDate)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

// ListSegmentRows returns one aggregate row per fan ordered by fan ID.
func (m *MemoryStore) ListSegmentRows(ctx context.Context) ([]*SegmentRow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.FailWith != nil {
		return nil, m.FailWith
	}

	out := make([]*SegmentRow, 0, len(m.fans))
	for _, f := range m.fans {
		c := countEvents(m.fanEvents(f.ID, time.Time{}))
		row := &SegmentRow{
			FanID:           f.ID,
			Name:            f.Name,
			Email:           f.Email,
			FavoriteTeam:    f.FavoriteTeam,
			EngagementCount: c.Total,
			GamesAttended:   c.Games,
			LastEngagement:  c.LastEvent,
		}
		for _, p := range m.purchases {
			if p.FanID == f.ID {
				row.PurchaseCount++
				row.TotalSpent += p.TotalPrice
			}
		}
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FanID < out[j].FanID })
	return out, nil
}

// CreatePromotion stores a promotion.
func (m *MemoryStore) CreatePromotion(ctx context.Context, promo *Promotion) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return m.FailWith
	}

	if promo.CreatedAt.IsZero() {
		promo.CreatedAt = time.Now().UTC()
	}
	promo.ID = m.id()
	c := *promo
	m.promotions[c.ID] = &c
	return nil
}

// ListPromotions returns up to limit promotions, newest first.
func (m *MemoryStore) ListPromotions(ctx context.Context, limit int) ([]*Promotion, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.FailWith != nil {
		return nil, m.FailWith
	}
	if limit <= 0 {
		limit = 20
	}

	out := make([]*Promotion, 0, len(m.promotions))
	for _, p := range m.promotions {
		c := *p
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Ping always succeeds unless FailWith is set.
func (m *MemoryStore) Ping(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.FailWith
}

// Close is a no-op.
func (m *MemoryStore) Close() error {
	return nil
}

// fanEvents returns copies of a fan's events on or after since. Caller holds the lock.
func (m *MemoryStore) fanEvents(fanID int64, since time.Time) []*EngagementEvent {
	var out []*EngagementEvent
	for _, e := range m.events {
		if e.FanID != fanID {
			continue
		}
		if !since.IsZero() && e.EventDate.Before(Today(since)) {
			continue
		}
		c := *e
		out = append(out, &c)
	}
	return out
}

func countEvents(events []*EngagementEvent) EventCounts {
	var c EventCounts
	kinds := make(map[string]struct{})
	for _, e := range events {
		c.Total++
		kinds[e.EventType] = struct{}{}
		switch e.EventType {
		case EventGameAttendance:
			c.Games++
		case EventAppOpen:
			c.AppOpens++
		case EventSocialShare:
			c.SocialShares++
		case EventContentView:
			c.ContentViews++
		}
		d := e.EventDate
		if c.FirstEvent == nil || d.Before(*c.FirstEvent) {
			c.FirstEvent = &d
		}
		if c.LastEvent == nil || d.After(*c.LastEvent) {
			last := d
			c.LastEvent = &last
		}
	}
	c.DistinctTypes = len(kinds)
	return c
}

func matchesFilter(item *MerchandiseItem, f MerchandiseFilter) bool {
	contains := func(field, sub string) bool {
		if sub == "" {
			return true
		}
		return field != "" && strings.Contains(strings.ToLower(field), strings.ToLower(sub))
	}
	if !contains(item.Team, f.Team) || !contains(item.Category, f.Category) || !contains(item.Player, f.Player) {
		return false
	}
	if f.MaxPrice != nil && item.Price > *f.MaxPrice {
		return false
	}
	if f.InStockOnly && !item.InStock {
		return false
	}
	return true
}
