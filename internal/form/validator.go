// Package form validates booking and contact form fields against a small
// rule table and reports per-field error messages.
package form

import (
	"regexp"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

var (
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phonePattern = regexp.MustCompile(`^[\+]?[1-9][\d]{0,15}$`)
)

// DateLayout is the value format of date inputs.
const DateLayout = "2006-01-02"

// Field is one input of a submitted form.
type Field struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Value    string `json:"value"`
	Required bool   `json:"required"`
}

// Result is the outcome of validating one field.
type Result struct {
	Valid   bool   `json:"valid"`
	Message string `json:"message,omitempty"`
}

// Results maps field names to their validation result.
type Results map[string]Result

// Errors returns only the failing fields' messages.
func (r Results) Errors() map[string]string {
	out := make(map[string]string)
	for name, res := range r {
		if !res.Valid {
			out[name] = res.Message
		}
	}
	return out
}

// ErrorView renders field errors next to their inputs.
type ErrorView interface {
	ShowFieldError(fieldName, message string)
	ClearFieldError(fieldName string)
}

type rule struct {
	label string
	check func(value string, now time.Time) bool
}

// Validator applies the rule table. The zero value is not usable; call New.
type Validator struct {
	rules map[string]rule
	now   func() time.Time
	view  ErrorView
}

// Option configures a Validator.
type Option func(*Validator)

// WithClock sets the clock used by the date rule.
func WithClock(now func() time.Time) Option {
	return func(v *Validator) { v.now = now }
}

// WithErrorView renders every validation result through view.
func WithErrorView(view ErrorView) Option {
	return func(v *Validator) { v.view = view }
}

// New returns a Validator with the email, phone and date rules.
func New(opts ...Option) *Validator {
	phone := rule{label: "phone", check: func(value string, _ time.Time) bool {
		return phonePattern.MatchString(value)
	}}
	v := &Validator{
		rules: map[string]rule{
			"email": {label: "email", check: func(value string, _ time.Time) bool {
				return emailPattern.MatchString(value)
			}},
			"phone": phone,
			"tel":   phone,
			"date":  {label: "date", check: notBeforeToday},
		},
		now: time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// notBeforeToday accepts dates on or after today's local midnight.
func notBeforeToday(value string, now time.Time) bool {
	d, err := time.ParseInLocation(DateLayout, value, now.Location())
	if err != nil {
		return false
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return !d.Before(today)
}

// ValidateField checks a single field. Empty optional fields are valid.
func (v *Validator) ValidateField(f Field) Result {
	res := v.check(f)
	if v.view != nil {
		if res.Valid {
			v.view.ClearFieldError(f.Name)
		} else {
			v.view.ShowFieldError(f.Name, res.Message)
		}
	}
	return res
}

func (v *Validator) check(f Field) Result {
	value := strings.TrimSpace(f.Value)
	if value == "" {
		if f.Required {
			return Result{Message: capitalize(f.Name) + " is required"}
		}
		return Result{Valid: true}
	}
	r, ok := v.rules[strings.ToLower(f.Type)]
	if !ok {
		return Result{Valid: true}
	}
	if !r.check(value, v.now()) {
		return Result{Message: "Please enter a valid " + r.label}
	}
	return Result{Valid: true}
}

// ValidateForm re-validates every field and reports whether all passed.
func (v *Validator) ValidateForm(fields []Field) (Results, bool) {
	results := make(Results, len(fields))
	ok := true
	for _, f := range fields {
		res := v.ValidateField(f)
		results[f.Name] = res
		if !res.Valid {
			ok = false
		}
	}
	return results, ok
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
