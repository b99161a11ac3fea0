package config

import (
	"cmp"
	"fmt"
	"net/url"
	"slices"
	"strings"
)

// ValidationError reports one invalid setting.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// ValidationErrors is every failure a Validator collected.
type ValidationErrors []ValidationError

func (errs ValidationErrors) Error() string {
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.Field + ": " + e.Message
	}
	return "invalid configuration: " + strings.Join(msgs, "; ")
}

// Unwrap exposes the individual failures to errors.As.
func (errs ValidationErrors) Unwrap() []error {
	out := make([]error, len(errs))
	for i, e := range errs {
		out[i] = e
	}
	return out
}

// Validator accumulates failures so that every problem of a configuration
// is reported at once. Checks chain.
type Validator struct {
	errs ValidationErrors
}

func NewValidator() *Validator {
	return &Validator{}
}

func (v *Validator) fail(field, format string, args ...any) *Validator {
	v.errs = append(v.errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	return v
}

func inRange[T cmp.Ordered](v *Validator, field string, value, lo, hi T, verb string) *Validator {
	if value < lo || value > hi {
		return v.fail(field, "must be between "+verb+" and "+verb+", got "+verb, lo, hi, value)
	}
	return v
}

// RequireNonEmpty rejects blank strings.
func (v *Validator) RequireNonEmpty(field, value string) *Validator {
	if strings.TrimSpace(value) == "" {
		return v.fail(field, "cannot be empty")
	}
	return v
}

// RequirePositive rejects values below one.
func (v *Validator) RequirePositive(field string, value int) *Validator {
	if value <= 0 {
		return v.fail(field, "must be positive, got %d", value)
	}
	return v
}

// ValidateRange checks lo <= value <= hi.
func (v *Validator) ValidateRange(field string, value, lo, hi int) *Validator {
	return inRange(v, field, value, lo, hi, "%d")
}

// ValidateFloatRange checks lo <= value <= hi.
func (v *Validator) ValidateFloatRange(field string, value, lo, hi float64) *Validator {
	return inRange(v, field, value, lo, hi, "%g")
}

// ValidateDBNumber checks a Redis logical database index.
func (v *Validator) ValidateDBNumber(field string, db int) *Validator {
	return v.ValidateRange(field, db, 0, 15)
}

// ValidateOneOf checks value against a closed set.
func (v *Validator) ValidateOneOf(field, value string, allowed ...string) *Validator {
	if !slices.Contains(allowed, value) {
		return v.fail(field, "must be one of %q, got %q", allowed, value)
	}
	return v
}

// ValidateURL checks that value parses as an absolute URL whose scheme is
// one of schemes. An empty value passes; pair with RequireNonEmpty when the
// field is mandatory.
func (v *Validator) ValidateURL(field, value string, schemes ...string) *Validator {
	if value == "" {
		return v
	}
	u, err := url.Parse(value)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return v.fail(field, "not an absolute URL: %q", value)
	}
	if len(schemes) > 0 && !slices.Contains(schemes, u.Scheme) {
		return v.fail(field, "scheme must be one of %q, got %q", schemes, u.Scheme)
	}
	return v
}

// When runs fn only if cond holds, for checks that depend on another field.
func (v *Validator) When(cond bool, fn func(*Validator)) *Validator {
	if cond {
		fn(v)
	}
	return v
}

func (v *Validator) HasErrors() bool {
	return len(v.errs) > 0
}

// Error returns the collected failures as ValidationErrors, or nil.
func (v *Validator) Error() error {
	if !v.HasErrors() {
		return nil
	}
	return slices.Clone(v.errs)
}

func (v *Validator) Errors() []ValidationError {
	return v.errs
}
