// Package validate collects rule violations for request input instead of
// stopping at the first failure.
package validate

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Rule names reported in FieldError.Rule.
const (
	RuleRequired = "required"
	RuleLength   = "length"
	RuleEmail    = "email"
	RuleMinLen   = "min_length"
	RuleMaxBytes = "max_bytes"
)

type FieldError struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

// Errors is the list of violations found for one input.
type Errors struct {
	Fields []FieldError
}

func (e *Errors) Error() string {
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, f.Message)
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

// Validator accumulates FieldErrors.
type Validator struct {
	fields []FieldError
}

func New() *Validator {
	return &Validator{}
}

func (v *Validator) add(field, rule, msg string) {
	v.fields = append(v.fields, FieldError{Field: field, Rule: rule, Message: msg})
}

// Required fails when value is empty or only whitespace.
func (v *Validator) Required(field, value string) bool {
	if strings.TrimSpace(value) == "" {
		v.add(field, RuleRequired, field+" is required")
		return false
	}
	return true
}

// Length checks the rune count of value is within [min, max].
func (v *Validator) Length(field, value string, min, max int) bool {
	n := utf8.RuneCountInString(value)
	if n < min || n > max {
		v.add(field, RuleLength, fmt.Sprintf("%s must be between %d and %d characters", field, min, max))
		return false
	}
	return true
}

func (v *Validator) MinLength(field, value string, min int) bool {
	if utf8.RuneCountInString(value) < min {
		v.add(field, RuleMinLen, fmt.Sprintf("%s must be at least %d characters", field, min))
		return false
	}
	return true
}

// MaxBytes caps the size of value in bytes rather than runes.
func (v *Validator) MaxBytes(field, value string, max int) bool {
	if len(value) > max {
		v.add(field, RuleMaxBytes, fmt.Sprintf("%s must be at most %d bytes", field, max))
		return false
	}
	return true
}

// Email only requires an '@' and a '.'.
func (v *Validator) Email(field, value string) bool {
	if !strings.Contains(value, "@") || !strings.Contains(value, ".") {
		v.add(field, RuleEmail, "invalid email address")
		return false
	}
	return true
}

// Err returns nil when no rule failed.
func (v *Validator) Err() error {
	if len(v.fields) == 0 {
		return nil
	}
	return &Errors{Fields: v.fields}
}
