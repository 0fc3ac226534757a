// ABOUTME: Shared helpers for tool handlers: input decoding, validation and result encoding
// ABOUTME: Maps insights and validation failures onto structured tool error payloads

package builtins

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/2389/fanpulse/internal/insights"
	"github.com/2389/fanpulse/internal/packs"
	"github.com/2389/fanpulse/internal/store"
	"github.com/2389/fanpulse/internal/validation"
)

// Capabilities required by each pack
const (
	CapFans      = "fans"
	CapMerch     = "merch"
	CapMarketing = "marketing"
)

// AllCapabilities lists every capability a fanpulse tool can require
var AllCapabilities = []string{CapFans, CapMerch, CapMarketing}

// All returns every fanpulse pack in registration order
func All(svc *insights.Service) []*packs.BuiltinPack {
	return []*packs.BuiltinPack{FanPack(svc), MerchPack(svc), MarketingPack(svc)}
}

// decodeInput unmarshals input into v and validates it. An empty input is
// treated as an empty object.
func decodeInput(input json.RawMessage, v any) error {
	if len(input) > 0 && string(input) != "null" {
		if err := json.Unmarshal(input, v); err != nil {
			return toolError(fmt.Errorf("%w: %v", validation.ErrInvalidInput, err))
		}
	}
	if err := validation.ValidateStruct(v); err != nil {
		return toolError(err)
	}
	return nil
}

// toolError converts known failures into structured error results. Other
// errors pass through and surface as plain error messages.
func toolError(err error) error {
	var nf *insights.NotFoundError
	if errors.As(err, &nf) {
		return packs.NewResultError(err, map[string]any{
			"error":  "not_found",
			"entity": nf.Entity,
			"id":     nf.ID,
		})
	}

	var verr *validation.RequestValidationError
	if errors.As(err, &verr) {
		return packs.NewResultError(err, map[string]any{
			"error":  "invalid_input",
			"fields": verr.Fields,
		})
	}

	if errors.Is(err, validation.ErrInvalidInput) ||
		errors.Is(err, insights.ErrMissingFanRef) ||
		errors.Is(err, insights.ErrInvalidPromotionWindow) {
		return packs.NewResultError(err, map[string]any{
			"error":   "invalid_input",
			"message": err.Error(),
		})
	}
	return err
}

// parseOptionalDate parses a validated YYYY-MM-DD string, returning the zero
// time for an empty one
func parseOptionalDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(store.DateLayout, s)
	if err != nil {
		return time.Time{}, toolError(fmt.Errorf("%w: %v", validation.ErrInvalidInput, err))
	}
	return t, nil
}

func encode(v any) (json.RawMessage, error) {
	out, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding result: %w", err)
	}
	return out, nil
}
