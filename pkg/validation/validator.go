package validation

import (
	"fmt"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/orchestrix/orchestrix-alerts/pkg/apperror"
)

// Validator collects one message per field. The first failing rule for a
// field wins, so rules are checked in the order they are declared.
type Validator struct {
	order  []string
	fields map[string]string
}

func newValidator() *Validator {
	return &Validator{fields: make(map[string]string)}
}

// AddError records message for field unless the field already failed
func (v *Validator) AddError(field, message string) {
	if _, failed := v.fields[field]; failed {
		return
	}
	v.order = append(v.order, field)
	v.fields[field] = message
}

// Failed reports whether field already has an error
func (v *Validator) Failed(field string) bool {
	_, failed := v.fields[field]
	return failed
}

// Required validates that a string is not blank
func (v *Validator) Required(field, value string) *Validator {
	if strings.TrimSpace(value) == "" {
		v.AddError(field, field+" is required")
	}
	return v
}

// RequiredTime validates that a timestamp is set
func (v *Validator) RequiredTime(field string, value time.Time) *Validator {
	if value.IsZero() {
		v.AddError(field, field+" is required")
	}
	return v
}

// LengthBetween validates the trimmed length of a string in characters.
// Blank values are left to Required.
func (v *Validator) LengthBetween(field, value string, min, max int) *Validator {
	value = strings.TrimSpace(value)
	if value == "" || v.Failed(field) {
		return v
	}
	if n := utf8.RuneCountInString(value); n < min || n > max {
		v.AddError(field, fmt.Sprintf("%s must be between %d and %d characters", field, min, max))
	}
	return v
}

// Enum validates that a non-blank value is one of allowed, ignoring case
func (v *Validator) Enum(field, value string, allowed []string) *Validator {
	value = strings.TrimSpace(value)
	if value == "" || v.Failed(field) {
		return v
	}
	if !slices.ContainsFunc(allowed, func(a string) bool { return strings.EqualFold(value, a) }) {
		v.AddError(field, fmt.Sprintf("%s must be one of: %s", field, strings.Join(allowed, ", ")))
	}
	return v
}

// Ordered validates that from is not after to when both are set
func (v *Validator) Ordered(fromField string, from, to *time.Time) *Validator {
	if from != nil && to != nil && from.After(*to) {
		v.AddError(fromField, fromField+" must not be after the end of the range")
	}
	return v
}

// Custom adds a custom validation
func (v *Validator) Custom(field string, valid bool, message string) *Validator {
	if !valid {
		v.AddError(field, message)
	}
	return v
}

// Err returns the collected errors as one AppError with a "fields" detail,
// or nil when every rule passed
func (v *Validator) Err() error {
	if len(v.order) == 0 {
		return nil
	}
	fields := make(map[string]string, len(v.fields))
	for k, msg := range v.fields {
		fields[k] = msg
	}
	return apperror.Validation(v.fields[v.order[0]]).WithDetail("fields", fields)
}

// Validate runs fn against a fresh Validator and returns its error
func Validate(fn func(v *Validator)) error {
	v := newValidator()
	fn(v)
	return v.Err()
}
