// ABOUTME: Error values returned by the insights service
// ABOUTME: NotFoundError carries the entity and identifier that failed to resolve

package insights

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound matches any NotFoundError via errors.Is
	ErrNotFound = errors.New("not found")

	// ErrFanNotFound matches a NotFoundError whose entity is a fan
	ErrFanNotFound = errors.New("fan not found")

	// ErrMissingFanRef is returned when neither a fan ID nor an email is given
	ErrMissingFanRef = errors.New("fan_id or email is required")

	// ErrInvalidPromotionWindow is returned when a promotion ends before it starts
	ErrInvalidPromotionWindow = errors.New("promotion end_date is before start_date")
)

// NotFoundError reports that a looked-up entity does not exist.
// ID holds the identifier as supplied: an int64 ID or an email string.
type NotFoundError struct {
	Entity string
	ID     any
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %v not found", e.Entity, e.ID)
}

// Is lets errors.Is match ErrNotFound, and ErrFanNotFound for fans.
func (e *NotFoundError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return true
	case ErrFanNotFound:
		return e.Entity == "fan"
	}
	return false
}

func fanNotFound(id any) error {
	return &NotFoundError{Entity: "fan", ID: id}
}
