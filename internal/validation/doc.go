// Package validation checks decoded tool and API inputs with
// go-playground/validator.
//
// # Overview
//
// A single validator instance is shared by the whole process. Field names in
// error messages come from json tags, so callers see the names they sent:
//
//	type logEventInput struct {
//	    FanID     int64  `json:"fan_id" validate:"required,gt=0"`
//	    EventType string `json:"event_type" validate:"required"`
//	    EventDate string `json:"event_date" validate:"omitempty,datetime=2006-01-02"`
//	}
//
//	if err := validation.ValidateStruct(&in); err != nil {
//	    return nil, err
//	}
//
// # Errors
//
// A failed validation returns *RequestValidationError, which wraps
// ErrInvalidInput and lists one FieldError per failing field.
package validation
