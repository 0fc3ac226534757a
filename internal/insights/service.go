// ABOUTME: Service wires the pure scoring rules to a FanStore for each caller-facing operation
// ABOUTME: Handles lookups, defaults, idempotent event logging and best-effort reach estimation

package insights

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/yuin/goldmark"

	"github.com/2389/fanpulse/internal/dedupe"
	"github.com/2389/fanpulse/internal/store"
)

// DefaultPromotionDays is the promotion length when no end date is given
const DefaultPromotionDays = 30

// RecentEngagementLimit is how many events a fan profile includes
const RecentEngagementLimit = 10

// Options configures a Service. Zero values select the package defaults.
type Options struct {
	LookbackDays       int
	MaxRecommendations int
	PromotionDays      int

	// Idempotency remembers event IDs by idempotency key. Nil disables deduplication.
	Idempotency *dedupe.Cache

	// Events is told about every newly written engagement event. Optional.
	Events EventRecorder

	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time

	Logger *slog.Logger
}

// EventRecorder observes newly written engagement events
type EventRecorder interface {
	RecordEventLogged(eventType string)
}

// Service implements the fan insight operations over a FanStore.
// It holds no per-request state and is safe for concurrent use.
type Service struct {
	store              store.FanStore
	lookbackDays       int
	maxRecommendations int
	promotionDays      int
	idempotency        *dedupe.Cache
	idempotencyMu      sync.Mutex
	events             EventRecorder
	now                func() time.Time
	markdown           goldmark.Markdown
	logger             *slog.Logger
}

// NewService creates a Service backed by st.
func NewService(st store.FanStore, opts Options) *Service {
	s := &Service{
		store:              st,
		lookbackDays:       opts.LookbackDays,
		maxRecommendations: opts.MaxRecommendations,
		promotionDays:      opts.PromotionDays,
		idempotency:        opts.Idempotency,
		events:             opts.Events,
		now:                opts.Now,
		markdown:           goldmark.New(),
		logger:             opts.Logger,
	}
	if s.lookbackDays <= 0 {
		s.lookbackDays = DefaultLookbackDays
	}
	if s.maxRecommendations <= 0 {
		s.maxRecommendations = DefaultMaxRecommendations
	}
	if s.promotionDays <= 0 {
		s.promotionDays = DefaultPromotionDays
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.logger = s.logger.With("component", "insights")
	return s
}

// Store returns the underlying FanStore
func (s *Service) Store() store.FanStore {
	return s.store
}

// FanRef identifies a fan by ID or, when ID is zero, by email
type FanRef struct {
	ID    int64
	Email string
}

// FanProfile is a fan with their recent activity and purchase history
type FanProfile struct {
	Fan               *store.Fan               `json:"fan"`
	RecentEngagements []*store.EngagementEvent `json:"recent_engagements"`
	Purchases         []*store.Purchase        `json:"purchases"`
	TotalSpent        float64                  `json:"total_spent"`
	Engagement        EngagementSummary        `json:"engagement_summary"`
}

// GetFanProfile loads a fan and their activity. The summary uses the
// configured lookback window.
func (s *Service) GetFanProfile(ctx context.Context, ref FanRef) (*FanProfile, error) {
	fan, err := s.lookupFan(ctx, ref)
	if err != nil {
		return nil, err
	}

	recent, err := s.store.ListRecentEngagements(ctx, fan.ID, RecentEngagementLimit)
	if err != nil {
		return nil, fmt.Errorf("listing recent engagements: %w", err)
	}
	purchases, err := s.store.ListPurchases(ctx, fan.ID)
	if err != nil {
		return nil, fmt.Errorf("listing purchases: %w", err)
	}
	counts, err := s.store.CountEngagements(ctx, fan.ID, WindowStart(s.now(), s.lookbackDays))
	if err != nil {
		return nil, fmt.Errorf("counting engagements: %w", err)
	}

	profile := &FanProfile{
		Fan:               fan,
		RecentEngagements: nonNil(recent),
		Purchases:         nonNil(purchases),
		Engagement:        Summarize(fan.ID, s.lookbackDays, counts),
	}
	for _, p := range purchases {
		profile.TotalSpent += p.TotalPrice
	}
	return profile, nil
}

// LogEventRequest is an engagement event to append
type LogEventRequest struct {
	FanID     int64
	EventType string
	Details   string
	// EventDate defaults to today when zero
	EventDate time.Time
	// IdempotencyKey, when set, makes retries within the cache TTL return the first event
	IdempotencyKey string
}

// LoggedEvent is the result of LogEngagementEvent
type LoggedEvent struct {
	Event     *store.EngagementEvent
	Duplicate bool
}

// LogEngagementEvent appends an event for an existing fan. Unknown event
// types are stored as given.
func (s *Service) LogEngagementEvent(ctx context.Context, req LogEventRequest) (*LoggedEvent, error) {
	if req.IdempotencyKey != "" && s.idempotency != nil {
		s.idempotencyMu.Lock()
		defer s.idempotencyMu.Unlock()

		key := fmt.Sprintf("%d:%s", req.FanID, req.IdempotencyKey)
		if id, ok := s.idempotency.Lookup(key); ok {
			event, err := s.store.GetEngagementEvent(ctx, id)
			if err == nil {
				s.logger.Debug("duplicate engagement event", "fan_id", req.FanID, "event_id", id)
				return &LoggedEvent{Event: event, Duplicate: true}, nil
			}
			if !errors.Is(err, store.ErrNotFound) {
				return nil, fmt.Errorf("loading original event: %w", err)
			}
		}

		logged, err := s.insertEvent(ctx, req)
		if err != nil {
			return nil, err
		}
		s.idempotency.Remember(key, logged.Event.ID)
		return logged, nil
	}
	return s.insertEvent(ctx, req)
}

func (s *Service) insertEvent(ctx context.Context, req LogEventRequest) (*LoggedEvent, error) {
	if _, err := s.store.GetFan(ctx, req.FanID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fanNotFound(req.FanID)
		}
		return nil, fmt.Errorf("looking up fan: %w", err)
	}

	date := req.EventDate
	if date.IsZero() {
		date = s.now()
	}
	event := &store.EngagementEvent{
		FanID:     req.FanID,
		EventType: req.EventType,
		EventDate: store.Today(date),
		Details:   req.Details,
	}
	if err := s.store.CreateEngagementEvent(ctx, event); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fanNotFound(req.FanID)
		}
		return nil, fmt.Errorf("creating engagement event: %w", err)
	}

	s.logger.Info("engagement event logged", "fan_id", event.FanID, "event_id", event.ID, "event_type", event.EventType)
	if s.events != nil {
		s.events.RecordEventLogged(event.EventType)
	}
	return &LoggedEvent{Event: event}, nil
}

// FanEngagement summarizes one fan's events over lookbackDays. A
// lookbackDays <= 0 uses the configured default.
func (s *Service) FanEngagement(ctx context.Context, fanID int64, lookbackDays int) (*EngagementSummary, error) {
	if lookbackDays <= 0 {
		lookbackDays = s.lookbackDays
	}
	if _, err := s.lookupFan(ctx, FanRef{ID: fanID}); err != nil {
		return nil, err
	}

	counts, err := s.store.CountEngagements(ctx, fanID, WindowStart(s.now(), lookbackDays))
	if err != nil {
		return nil, fmt.Errorf("counting engagements: %w", err)
	}
	summary := Summarize(fanID, lookbackDays, counts)
	return &summary, nil
}

// RankedFans returns every fan ranked by all-time engagement score
func (s *Service) RankedFans(ctx context.Context) ([]RankedFan, error) {
	activity, err := s.store.ListFanActivity(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing fan activity: %w", err)
	}
	return RankFans(activity), nil
}

// SearchMerchandise returns catalog items matching filter, ordered by category then price
func (s *Service) SearchMerchandise(ctx context.Context, filter store.MerchandiseFilter) ([]*store.MerchandiseItem, error) {
	items, err := s.store.SearchMerchandise(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("searching merchandise: %w", err)
	}
	return nonNil(items), nil
}

// RecommendationResult is a fan's ranked merchandise recommendations
type RecommendationResult struct {
	FanID           int64            `json:"fan_id"`
	FanName         string           `json:"fan_name"`
	FavoriteTeam    string           `json:"favorite_team"`
	FavoritePlayers string           `json:"favorite_players"`
	GamesAttended   int              `json:"games_attended"`
	TotalEvents     int              `json:"total_events"`
	EngagementLevel EngagementLevel  `json:"engagement_level"`
	Recommendations []Recommendation `json:"recommendations"`
}

// Recommendations scores the in-stock catalog for a fan using all-time
// engagement. A limit <= 0 uses the configured default.
func (s *Service) Recommendations(ctx context.Context, fanID int64, limit int) (*RecommendationResult, error) {
	if limit <= 0 {
		limit = s.maxRecommendations
	}
	fan, err := s.lookupFan(ctx, FanRef{ID: fanID})
	if err != nil {
		return nil, err
	}

	counts, err := s.store.CountEngagements(ctx, fan.ID, time.Time{})
	if err != nil {
		return nil, fmt.Errorf("counting engagements: %w", err)
	}
	purchases, err := s.store.ListPurchases(ctx, fan.ID)
	if err != nil {
		return nil, fmt.Errorf("listing purchases: %w", err)
	}
	catalog, err := s.store.SearchMerchandise(ctx, store.MerchandiseFilter{InStockOnly: true})
	if err != nil {
		return nil, fmt.Errorf("loading catalog: %w", err)
	}

	return &RecommendationResult{
		FanID:           fan.ID,
		FanName:         fan.Name,
		FavoriteTeam:    fan.FavoriteTeam,
		FavoritePlayers: fan.FavoritePlayers,
		GamesAttended:   counts.Games,
		TotalEvents:     counts.Total,
		EngagementLevel: ProfileLevel(counts.Games),
		Recommendations: Recommend(fan, *counts, catalog, purchases, limit),
	}, nil
}

// PromotionRequest describes a promotion to create. Zero dates select
// today and today plus the configured promotion length.
type PromotionRequest struct {
	Name            string
	Description     string
	DiscountPercent float64
	TargetSegment   string
	TargetCategory  string
	StartDate       time.Time
	EndDate         time.Time
}

// PromotionResult is a created promotion with its rendered description and reach
type PromotionResult struct {
	*store.Promotion
	DescriptionHTML string `json:"description_html"`
	EstimatedReach  int    `json:"estimated_reach"`
}

// CreatePromotion stores a promotion and estimates its reach. Reach failures
// are logged and reported as zero.
func (s *Service) CreatePromotion(ctx context.Context, req PromotionRequest) (*PromotionResult, error) {
	now := s.now()
	start := req.StartDate
	if start.IsZero() {
		start = now
	}
	start = store.Today(start)
	end := req.EndDate
	if end.IsZero() {
		end = start.AddDate(0, 0, s.promotionDays)
	}
	end = store.Today(end)
	if end.Before(start) {
		return nil, ErrInvalidPromotionWindow
	}

	promo := &store.Promotion{
		Name:            req.Name,
		Description:     req.Description,
		DiscountPercent: req.DiscountPercent,
		TargetSegment:   req.TargetSegment,
		TargetCategory:  req.TargetCategory,
		StartDate:       start,
		EndDate:         end,
		CreatedAt:       now.UTC(),
	}
	if err := s.store.CreatePromotion(ctx, promo); err != nil {
		return nil, fmt.Errorf("creating promotion: %w", err)
	}

	s.logger.Info("promotion created", "promotion_id", promo.ID, "target_segment", promo.TargetSegment)
	return &PromotionResult{
		Promotion:       promo,
		DescriptionHTML: s.renderMarkdown(promo.Description),
		EstimatedReach:  s.EstimateReach(ctx, promo.TargetSegment),
	}, nil
}

// EstimateReach counts fans matching a target segment keyword. It never
// fails: query errors are logged and reported as zero.
func (s *Service) EstimateReach(ctx context.Context, segment string) int {
	rows, err := s.store.ListSegmentRows(ctx)
	if err != nil {
		s.logger.Warn("reach estimation failed", "target_segment", segment, "error", err)
		return 0
	}
	return EstimateReach(rows, segment)
}

// Segments classifies every fan, optionally restricted to favorite teams containing team
func (s *Service) Segments(ctx context.Context, team string) ([]SegmentGroup, error) {
	rows, err := s.store.ListSegmentRows(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing segment rows: %w", err)
	}
	return ClassifyFans(rows, team), nil
}

// ListPromotions returns the newest promotions first
func (s *Service) ListPromotions(ctx context.Context, limit int) ([]*store.Promotion, error) {
	promos, err := s.store.ListPromotions(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("listing promotions: %w", err)
	}
	return nonNil(promos), nil
}

func (s *Service) lookupFan(ctx context.Context, ref FanRef) (*store.Fan, error) {
	var (
		fan *store.Fan
		err error
		id  any
	)
	switch {
	case ref.ID != 0:
		id = ref.ID
		fan, err = s.store.GetFan(ctx, ref.ID)
	case strings.TrimSpace(ref.Email) != "":
		id = ref.Email
		fan, err = s.store.GetFanByEmail(ctx, strings.TrimSpace(ref.Email))
	default:
		return nil, ErrMissingFanRef
	}
	if errors.Is(err, store.ErrNotFound) {
		return nil, fanNotFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("looking up fan: %w", err)
	}
	return fan, nil
}

// renderMarkdown converts a promotion description to HTML. Conversion
// failures fall back to an empty string.
func (s *Service) renderMarkdown(src string) string {
	if src == "" {
		return ""
	}
	var buf bytes.Buffer
	if err := s.markdown.Convert([]byte(src), &buf); err != nil {
		s.logger.Warn("rendering promotion description", "error", err)
		return ""
	}
	return buf.String()
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
