package config

import (
	"errors"
	"strings"
	"testing"
)

func TestValidatorRequireNonEmpty(t *testing.T) {
	tests := []struct {
		name      string
		value     string
		wantError bool
	}{
		{
			name:      "non-empty value",
			value:     "valid",
			wantError: false,
		},
		{
			name:      "empty value",
			value:     "",
			wantError: true,
		},
		{
			name:      "whitespace only",
			value:     "  \t",
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewValidator()
			v.RequireNonEmpty("test_field", tt.value)
			hasError := v.HasErrors()
			if hasError != tt.wantError {
				t.Errorf("HasErrors() = %v, want %v", hasError, tt.wantError)
			}
		})
	}
}

func TestValidatorRequirePositive(t *testing.T) {
	tests := []struct {
		name      string
		value     int
		wantError bool
	}{
		{
			name:      "positive value",
			value:     10,
			wantError: false,
		},
		{
			name:      "zero value",
			value:     0,
			wantError: true,
		},
		{
			name:      "negative value",
			value:     -5,
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewValidator()
			v.RequirePositive("test_field", tt.value)
			if got := v.HasErrors(); got != tt.wantError {
				t.Errorf("HasErrors() = %v, want %v", got, tt.wantError)
			}
		})
	}
}

func TestValidatorRanges(t *testing.T) {
	tests := []struct {
		name      string
		check     func(*Validator)
		wantError bool
	}{
		{"int in range", func(v *Validator) { v.ValidateRange("f", 5, 0, 10) }, false},
		{"int at bounds", func(v *Validator) { v.ValidateRange("f", 10, 0, 10) }, false},
		{"int above", func(v *Validator) { v.ValidateRange("f", 11, 0, 10) }, true},
		{"float in range", func(v *Validator) { v.ValidateFloatRange("f", 0.7, 0, 2) }, false},
		{"float below", func(v *Validator) { v.ValidateFloatRange("f", -0.1, 0, 2) }, true},
		{"redis db", func(v *Validator) { v.ValidateDBNumber("f", 15) }, false},
		{"redis db too high", func(v *Validator) { v.ValidateDBNumber("f", 16) }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewValidator()
			tt.check(v)
			if got := v.HasErrors(); got != tt.wantError {
				t.Errorf("HasErrors() = %v, want %v", got, tt.wantError)
			}
		})
	}
}

func TestValidatorOneOf(t *testing.T) {
	v := NewValidator()
	v.ValidateOneOf("backend", "redis", "memory", "redis")
	if v.HasErrors() {
		t.Fatalf("unexpected errors: %v", v.Errors())
	}

	v.ValidateOneOf("backend", "sqlite", "memory", "redis")
	errs := v.Errors()
	if len(errs) != 1 {
		t.Fatalf("got %d errors, want 1", len(errs))
	}
	if errs[0].Field != "backend" || !strings.Contains(errs[0].Message, `"sqlite"`) {
		t.Errorf("unexpected error: %+v", errs[0])
	}
}

func TestValidatorWhen(t *testing.T) {
	v := NewValidator()
	v.When(false, func(v *Validator) { v.RequireNonEmpty("skipped", "") })
	if v.HasErrors() {
		t.Fatal("When(false) must not run the checks")
	}
	v.When(true, func(v *Validator) { v.RequireNonEmpty("checked", "") })
	if !v.HasErrors() {
		t.Fatal("When(true) must run the checks")
	}
}

func TestValidatorError(t *testing.T) {
	if err := NewValidator().Error(); err != nil {
		t.Fatalf("Error() = %v, want nil", err)
	}

	err := NewValidator().
		RequireNonEmpty("api_key", "").
		RequirePositive("max_tokens", 0).
		Error()
	if err == nil {
		t.Fatal("expected an error")
	}

	var all ValidationErrors
	if !errors.As(err, &all) || len(all) != 2 {
		t.Fatalf("expected two ValidationErrors, got %v", err)
	}

	var first ValidationError
	if !errors.As(err, &first) || first.Field != "api_key" {
		t.Errorf("errors.As(ValidationError) = %+v", first)
	}
	for _, field := range []string{"api_key", "max_tokens"} {
		if !strings.Contains(err.Error(), field) {
			t.Errorf("error message %q does not mention %s", err.Error(), field)
		}
	}
}

func TestValidatorURL(t *testing.T) {
	tests := []struct {
		name      string
		value     string
		wantError bool
	}{
		{"empty passes", "", false},
		{"https", "https://api.groq.com/openai/v1", false},
		{"no scheme", "api.groq.com", true},
		{"wrong scheme", "ftp://example.com", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewValidator().ValidateURL("base_url", tt.value, "http", "https")
			if got := v.HasErrors(); got != tt.wantError {
				t.Errorf("HasErrors() = %v, want %v (%v)", got, tt.wantError, v.Errors())
			}
		})
	}
}
