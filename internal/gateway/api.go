// ABOUTME: Read-only REST API over the insights service for dashboards and scripts
// ABOUTME: Routes fans, recommendations, metrics, merchandise, segments, promotions and reach

package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/2389/fanpulse/internal/auth"
	"github.com/2389/fanpulse/internal/builtins"
	"github.com/2389/fanpulse/internal/insights"
	"github.com/2389/fanpulse/internal/store"
	"github.com/2389/fanpulse/internal/validation"
)

// Problem is an RFC 7807 error body served as application/problem+json.
type Problem struct {
	Type   string              `json:"type,omitempty"`
	Title  string              `json:"title"`
	Status int                 `json:"status"`
	Detail string              `json:"detail,omitempty"`
	Entity string              `json:"entity,omitempty"`
	ID     any                 `json:"id,omitempty"`
	Errors map[string][]string `json:"errors,omitempty"`
}

// RankedFansResponse is the JSON response for GET /api/metrics/engagement without fan_id.
type RankedFansResponse struct {
	Window string               `json:"window"`
	Count  int                  `json:"count"`
	Fans   []insights.RankedFan `json:"fans"`
}

// MerchandiseResponse is the JSON response for GET /api/merchandise.
type MerchandiseResponse struct {
	Count int                 `json:"count"`
	Items []insights.ItemView `json:"items"`
}

// SegmentsResponse is the JSON response for GET /api/segments.
type SegmentsResponse struct {
	Team      string                  `json:"team,omitempty"`
	TotalFans int                     `json:"total_fans"`
	Segments  []insights.SegmentGroup `json:"segments"`
}

// PromotionsResponse is the JSON response for GET /api/promotions.
type PromotionsResponse struct {
	Count      int                      `json:"count"`
	Promotions []insights.PromotionView `json:"promotions"`
}

// ReachResponse is the JSON response for GET /api/reach/{segment}.
type ReachResponse struct {
	TargetSegment  string `json:"target_segment"`
	EstimatedReach int    `json:"estimated_reach"`
}

// Query parameter bounds, checked with the shared validator.
type metricsQuery struct {
	FanID        int64 `json:"fan_id" validate:"gte=0"`
	LookbackDays int   `json:"lookback_days" validate:"gte=0,lte=3650"`
}

type recommendationsQuery struct {
	MaxResults int `json:"max_results" validate:"gte=0,lte=50"`
}

type promotionsQuery struct {
	Limit int `json:"limit" validate:"gte=0,lte=100"`
}

// registerAPIRoutes mounts the REST API on r. With a verifier configured,
// bearer tokens are verified; auth.require_api_auth additionally demands
// one and checks the capability of each route.
func (g *Gateway) registerAPIRoutes(r chi.Router, verifier auth.TokenVerifier) {
	requireCap := func(string) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler { return next }
	}

	switch {
	case verifier != nil && g.config.Auth.RequireAPIAuth:
		r.Use(auth.HTTPAuthMiddleware(verifier))
		requireCap = auth.RequireCapability
		g.logger.Info("HTTP API auth enabled")
	case verifier != nil:
		r.Use(auth.OptionalAuthMiddleware(verifier))
		g.logger.Info("HTTP API accepts optional bearer tokens")
	default:
		g.logger.Warn("HTTP API auth disabled - no jwt_secret configured")
	}

	r.With(requireCap(builtins.CapFans)).Get("/fans/{id}", g.handleGetFan)
	r.With(requireCap(builtins.CapFans)).Get("/fans/{id}/recommendations", g.handleRecommendations)
	r.With(requireCap(builtins.CapFans)).Get("/metrics/engagement", g.handleEngagementMetrics)
	r.With(requireCap(builtins.CapMerch)).Get("/merchandise", g.handleMerchandise)
	r.With(requireCap(builtins.CapMarketing)).Get("/segments", g.handleSegments)
	r.With(requireCap(builtins.CapMarketing)).Get("/promotions", g.handlePromotions)
	r.With(requireCap(builtins.CapMarketing)).Get("/reach/{segment}", g.handleReach)
}

// handleGetFan handles GET /api/fans/{id}. An id containing "@" is looked up as an email.
func (g *Gateway) handleGetFan(w http.ResponseWriter, r *http.Request) {
	ref, ok := g.fanRefParam(w, r)
	if !ok {
		return
	}

	profile, err := g.insights.GetFanProfile(r.Context(), ref)
	if err != nil {
		g.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, insights.NewProfileView(profile))
}

// handleRecommendations handles GET /api/fans/{id}/recommendations?max_results=N.
func (g *Gateway) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	fanID, ok := g.fanIDParam(w, r)
	if !ok {
		return
	}
	maxResults, ok := intQuery(w, r, "max_results")
	if !ok {
		return
	}
	q := recommendationsQuery{MaxResults: maxResults}
	if !validQuery(w, q) {
		return
	}

	result, err := g.insights.Recommendations(r.Context(), fanID, q.MaxResults)
	if err != nil {
		g.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleEngagementMetrics handles GET /api/metrics/engagement?fan_id=N&lookback_days=D.
// Without fan_id it returns every fan ranked by all-time engagement score.
func (g *Gateway) handleEngagementMetrics(w http.ResponseWriter, r *http.Request) {
	fanID, ok := intQuery(w, r, "fan_id")
	if !ok {
		return
	}
	lookback, ok := intQuery(w, r, "lookback_days")
	if !ok {
		return
	}
	q := metricsQuery{FanID: int64(fanID), LookbackDays: lookback}
	if !validQuery(w, q) {
		return
	}

	if q.FanID == 0 {
		ranked, err := g.insights.RankedFans(r.Context())
		if err != nil {
			g.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, RankedFansResponse{Window: "all_time", Count: len(ranked), Fans: ranked})
		return
	}

	summary, err := g.insights.FanEngagement(r.Context(), q.FanID, q.LookbackDays)
	if err != nil {
		g.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// handleMerchandise handles GET /api/merchandise with optional team, category,
// player, max_price and in_stock_only (default true) query parameters.
func (g *Gateway) handleMerchandise(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := store.MerchandiseFilter{
		Team:        query.Get("team"),
		Category:    query.Get("category"),
		Player:      query.Get("player"),
		InStockOnly: true,
	}

	if raw := query.Get("max_price"); raw != "" {
		price, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			writeBadParam(w, "max_price", "max_price must be a number")
			return
		}
		filter.MaxPrice = &price
	}
	if raw := query.Get("in_stock_only"); raw != "" {
		inStock, err := strconv.ParseBool(raw)
		if err != nil {
			writeBadParam(w, "in_stock_only", "in_stock_only must be true or false")
			return
		}
		filter.InStockOnly = inStock
	}

	items, err := g.insights.SearchMerchandise(r.Context(), filter)
	if err != nil {
		g.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MerchandiseResponse{Count: len(items), Items: insights.NewItemViews(items)})
}

// handleSegments handles GET /api/segments?team=T.
func (g *Gateway) handleSegments(w http.ResponseWriter, r *http.Request) {
	team := r.URL.Query().Get("team")
	groups, err := g.insights.Segments(r.Context(), team)
	if err != nil {
		g.writeServiceError(w, r, err)
		return
	}

	total := 0
	for _, grp := range groups {
		total += grp.Count
	}
	writeJSON(w, http.StatusOK, SegmentsResponse{Team: team, TotalFans: total, Segments: groups})
}

// handlePromotions handles GET /api/promotions?limit=N, newest first.
func (g *Gateway) handlePromotions(w http.ResponseWriter, r *http.Request) {
	limit, ok := intQuery(w, r, "limit")
	if !ok {
		return
	}
	q := promotionsQuery{Limit: limit}
	if !validQuery(w, q) {
		return
	}
	if q.Limit == 0 {
		q.Limit = builtins.DefaultPromotionListLimit
	}

	promos, err := g.insights.ListPromotions(r.Context(), q.Limit)
	if err != nil {
		g.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, PromotionsResponse{Count: len(promos), Promotions: insights.NewPromotionViews(promos)})
}

// handleReach handles GET /api/reach/{segment}.
func (g *Gateway) handleReach(w http.ResponseWriter, r *http.Request) {
	segment := chi.URLParam(r, "segment")
	writeJSON(w, http.StatusOK, ReachResponse{
		TargetSegment:  segment,
		EstimatedReach: g.insights.EstimateReach(r.Context(), segment),
	})
}

// fanRefParam reads the {id} URL parameter as a fan ID or email.
func (g *Gateway) fanRefParam(w http.ResponseWriter, r *http.Request) (insights.FanRef, bool) {
	raw := chi.URLParam(r, "id")
	if strings.Contains(raw, "@") {
		return insights.FanRef{Email: raw}, true
	}
	id, ok := g.fanIDParam(w, r)
	return insights.FanRef{ID: id}, ok
}

// fanIDParam reads the {id} URL parameter as a positive fan ID.
func (g *Gateway) fanIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeBadParam(w, "id", "id must be a positive integer")
		return 0, false
	}
	return id, true
}

// intQuery parses an optional integer query parameter; missing means zero.
func intQuery(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		writeBadParam(w, name, name+" must be an integer")
		return 0, false
	}
	return n, true
}

// validQuery runs the shared validator and writes a 400 problem on failure.
func validQuery(w http.ResponseWriter, q any) bool {
	err := validation.ValidateStruct(q)
	if err == nil {
		return true
	}
	var verr *validation.RequestValidationError
	if errors.As(err, &verr) {
		fields := make(map[string][]string, len(verr.Fields))
		for _, f := range verr.Fields {
			fields[f.Field] = append(fields[f.Field], f.Message)
		}
		writeProblem(w, Problem{Title: "invalid input", Status: http.StatusBadRequest, Detail: verr.Error(), Errors: fields})
		return false
	}
	writeProblem(w, Problem{Title: "invalid input", Status: http.StatusBadRequest, Detail: err.Error()})
	return false
}

func writeBadParam(w http.ResponseWriter, field, msg string) {
	writeProblem(w, Problem{
		Title:  "invalid input",
		Status: http.StatusBadRequest,
		Detail: msg,
		Errors: map[string][]string{field: {msg}},
	})
}

// writeServiceError maps insights errors onto problem responses.
func (g *Gateway) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var nf *insights.NotFoundError
	switch {
	case errors.As(err, &nf):
		writeProblem(w, Problem{
			Type:   "not_found",
			Title:  "not found",
			Status: http.StatusNotFound,
			Detail: nf.Error(),
			Entity: nf.Entity,
			ID:     nf.ID,
		})
	case errors.Is(err, insights.ErrMissingFanRef), errors.Is(err, validation.ErrInvalidInput):
		writeProblem(w, Problem{Title: "invalid input", Status: http.StatusBadRequest, Detail: err.Error()})
	default:
		g.logger.Error("API request failed", "path", r.URL.Path, "error", err)
		writeProblem(w, Problem{Title: "internal error", Status: http.StatusInternalServerError})
	}
}

func writeProblem(w http.ResponseWriter, p Problem) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(p.Status)
	_ = json.NewEncoder(w).Encode(p)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
