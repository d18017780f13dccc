package domain

import (
	"errors"
	"sort"
	"strings"
)

var (
	// ErrNotFound is returned by repositories and services when an entity does not exist
	// or is not visible to the caller.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a uniqueness constraint would be violated.
	ErrConflict = errors.New("conflict")
)

// NonFieldErrors is the key used for errors that do not belong to a single field.
const NonFieldErrors = "non_field_errors"

// ValidationError collects per-field validation messages.
type ValidationError struct {
	Fields map[string][]string
}

// NewValidationError returns a ValidationError holding one message for field.
func NewValidationError(field, msg string) *ValidationError {
	v := &ValidationError{}
	v.Add(field, msg)
	return v
}

func (v *ValidationError) Add(field, msg string) {
	if v.Fields == nil {
		v.Fields = make(map[string][]string)
	}
	v.Fields[field] = append(v.Fields[field], msg)
}

// Merge copies every message of other under prefix (e.g. "pickup").
func (v *ValidationError) Merge(prefix string, other *ValidationError) {
	if other == nil {
		return
	}
	for field, msgs := range other.Fields {
		key := field
		if prefix != "" {
			key = prefix + "." + field
		}
		for _, m := range msgs {
			v.Add(key, m)
		}
	}
}

func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.Fields) > 0
}

// OrNil returns nil when no message was recorded, so callers can `return v.OrNil()`.
func (v *ValidationError) OrNil() error {
	if !v.HasErrors() {
		return nil
	}
	return v
}

func (v *ValidationError) Error() string {
	keys := make([]string, 0, len(v.Fields))
	for k := range v.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+strings.Join(v.Fields[k], " "))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// AsValidation unwraps err into a *ValidationError when it is one.
func AsValidation(err error) (*ValidationError, bool) {
	var v *ValidationError
	if errors.As(err, &v) {
		return v, true
	}
	return nil, false
}
