package app

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Custom application-level errors
var ErrValidation = errors.New("invalid preferences")
var ErrSubscriberIDRequired = fmt.Errorf("%w: subscriber id is required", ErrValidation)
var ErrCorrelationIDRequired = errors.New("correlation id is required")

// DispatchError is returned when the execution engine refused or could not
// take a scheduled delivery. It never invalidates the preference write that
// preceded it.
type DispatchError struct {
	Reason string // unreachable, rejected, rate_limited, malformed_response
	Err    error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("dispatch failed (%s): %v", e.Reason, e.Err)
}

func (e *DispatchError) Unwrap() error { return e.Err }

// TrackError means the run status could not be determined right now.
// It is not a failed run.
type TrackError struct {
	CorrelationID string
	Err           error
}

func (e *TrackError) Error() string {
	return fmt.Sprintf("could not fetch run status for %s: %v", e.CorrelationID, e.Err)
}

func (e *TrackError) Unwrap() error { return e.Err }

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// validationError converts validator output into an ErrValidation with a
// message a subscriber can act on.
func validationError(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, describeFieldError(fe))
	}
	return fmt.Errorf("%w: %s", ErrValidation, strings.Join(msgs, "; "))
}

func describeFieldError(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "min":
		return fmt.Sprintf("%s must contain at least %s item(s)", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s long", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s %q is invalid, must be one of: %s", field, fe.Value(), strings.ReplaceAll(fe.Param(), " ", ", "))
	case "email":
		return field + " must be a valid email address"
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}
