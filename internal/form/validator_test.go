package form

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var today = time.Date(2025, 6, 15, 14, 30, 0, 0, time.UTC)

func newTestValidator(opts ...Option) *Validator {
	return New(append([]Option{WithClock(func() time.Time { return today })}, opts...)...)
}

func TestEmailField(t *testing.T) {
	v := newTestValidator()

	res := v.ValidateField(Field{Name: "email", Type: "email", Value: "not-an-email", Required: true})
	assert.False(t, res.Valid)
	assert.Equal(t, "Please enter a valid email", res.Message)

	res = v.ValidateField(Field{Name: "email", Type: "email", Value: "a@b.com", Required: true})
	assert.True(t, res.Valid)
	assert.Empty(t, res.Message)
}

func TestRequiredField(t *testing.T) {
	v := newTestValidator()

	res := v.ValidateField(Field{Name: "firstName", Type: "text", Value: "   ", Required: true})
	assert.False(t, res.Valid)
	assert.Equal(t, "FirstName is required", res.Message)

	res = v.ValidateField(Field{Name: "message", Type: "textarea"})
	assert.True(t, res.Valid, "empty optional fields pass")

	res = v.ValidateField(Field{Name: "phone", Type: "tel"})
	assert.True(t, res.Valid, "type rules only apply to non-empty values")
}

func TestPhoneField(t *testing.T) {
	v := newTestValidator()
	for value, want := range map[string]bool{
		"+14155550123":      true,
		"4155550123":        true,
		"0123456":           false,
		"+1 415 555 0123":   false,
		"12345678901234567": false,
		"1234567890123456":  true,
		"call me maybe":     false,
	} {
		res := v.ValidateField(Field{Name: "phone", Type: "tel", Value: value})
		assert.Equal(t, want, res.Valid, value)
		if !want {
			assert.Equal(t, "Please enter a valid phone", res.Message)
		}
	}
}

func TestDateField(t *testing.T) {
	v := newTestValidator()

	assert.True(t, v.ValidateField(Field{Name: "date", Type: "date", Value: "2025-06-15"}).Valid, "today is allowed")
	assert.True(t, v.ValidateField(Field{Name: "date", Type: "date", Value: "2025-07-01"}).Valid)

	res := v.ValidateField(Field{Name: "date", Type: "date", Value: "2025-06-14"})
	assert.False(t, res.Valid)
	assert.Equal(t, "Please enter a valid date", res.Message)

	assert.False(t, v.ValidateField(Field{Name: "date", Type: "date", Value: "15/06/2025"}).Valid)
}

type recordingErrorView struct {
	shown   map[string]string
	cleared []string
}

func (r *recordingErrorView) ShowFieldError(name, msg string) { r.shown[name] = msg }
func (r *recordingErrorView) ClearFieldError(name string)     { r.cleared = append(r.cleared, name) }

func TestValidateFormRendersEveryField(t *testing.T) {
	view := &recordingErrorView{shown: map[string]string{}}
	v := newTestValidator(WithErrorView(view))

	results, ok := v.ValidateForm([]Field{
		{Name: "firstName", Type: "text", Value: "Ada", Required: true},
		{Name: "email", Type: "email", Value: "ada@", Required: true},
		{Name: "date", Type: "date", Value: "", Required: true},
	})
	require.False(t, ok)
	assert.Equal(t, map[string]string{
		"email": "Please enter a valid email",
		"date":  "Date is required",
	}, results.Errors())
	assert.Equal(t, results.Errors(), view.shown)
	assert.Equal(t, []string{"firstName"}, view.cleared)
}
