// Package validation holds the shared validator instance and the free-text input
// policy applied to submissions before anything is stored or logged.
package validation

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"

	"github.com/intake-gateway/intake-gateway/internal/config"
)

const (
	ModePermissive = "permissive"
	ModeStrict     = "strict"
)

var instance = validator.New()

func init() {
	_ = instance.RegisterValidation("no_control", noControl)
}

// noControl rejects control characters other than newline and tab.
func noControl(fl validator.FieldLevel) bool {
	for _, r := range fl.Field().String() {
		if r == '\n' || r == '\t' {
			continue
		}
		if unicode.IsControl(r) {
			return false
		}
	}
	return true
}

// Error lists the fields that failed the policy, keyed by field name.
type Error struct {
	Fields map[string]string
}

func (e *Error) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	msgs := make([]string, 0, len(names))
	for _, name := range names {
		msgs = append(msgs, fmt.Sprintf("%s %s", name, e.Fields[name]))
	}
	return "invalid input: " + strings.Join(msgs, "; ")
}

// Policy checks free-text fields. A permissive policy accepts everything.
type Policy struct {
	strict     bool
	maxField   int
	maxContent int
}

// NewPolicy builds the policy described by cfg
func NewPolicy(cfg *config.ValidationConfig) *Policy {
	return &Policy{
		strict:     cfg.Mode == ModeStrict,
		maxField:   cfg.MaxFieldLength,
		maxContent: cfg.MaxContentLength,
	}
}

// Strict reports whether the policy rejects anything
func (p *Policy) Strict() bool {
	return p.strict
}

// Check validates every named value. The "content" field uses the content limit.
func (p *Policy) Check(fields map[string]string) error {
	if !p.strict {
		return nil
	}

	failed := make(map[string]string)
	for name, value := range fields {
		limit := p.maxField
		if name == "content" {
			limit = p.maxContent
		}

		tag := "no_control"
		if limit > 0 {
			tag = fmt.Sprintf("max=%d,no_control", limit)
		}

		if err := instance.Var(value, tag); err != nil {
			if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
				failed[name] = describe(verrs[0])
				continue
			}
			failed[name] = err.Error()
		}
	}

	if len(failed) > 0 {
		return &Error{Fields: failed}
	}
	return nil
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "no_control":
		return "must not contain control characters"
	default:
		return fmt.Sprintf("failed on '%s' tag", fe.Tag())
	}
}
