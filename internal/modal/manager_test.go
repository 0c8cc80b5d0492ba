package modal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingView struct {
	visible map[string]bool
	locked  bool
	focused string
	calls   int
}

func newRecordingView() *recordingView {
	return &recordingView{visible: map[string]bool{}}
}

func (v *recordingView) SetVisible(id string, visible bool) {
	v.calls++
	v.visible[id] = visible
}

func (v *recordingView) SetScrollLocked(locked bool) {
	v.calls++
	v.locked = locked
}

func (v *recordingView) Focus(id string) {
	v.calls++
	v.focused = id
}

func bookingModal() Modal {
	return Modal{ID: "booking-modal", Focusables: []string{"close", "first-name", "email", "submit"}}
}

func TestOpenFocusesFirstElementAndLocksScroll(t *testing.T) {
	view := newRecordingView()
	m := NewManager(view)
	m.Register(bookingModal())

	require.True(t, m.Open("booking-modal"))
	assert.True(t, view.visible["booking-modal"])
	assert.True(t, view.locked)
	assert.True(t, m.ScrollLocked())
	assert.Equal(t, "close", view.focused)
	assert.Equal(t, "booking-modal", m.Active())
}

func TestOpenUnknownIDChangesNothing(t *testing.T) {
	view := newRecordingView()
	m := NewManager(view)
	m.Register(bookingModal())
	m.Focus("nav-home")

	assert.False(t, m.Open("missing-modal"))
	assert.Zero(t, view.calls)
	assert.Equal(t, "nav-home", m.Focused())
	assert.Empty(t, m.Active())
	assert.False(t, m.ScrollLocked())
}

func TestAtMostOneActiveModal(t *testing.T) {
	view := newRecordingView()
	m := NewManager(view)
	m.Register(bookingModal())
	m.Register(Modal{ID: "membership-modal", Focusables: []string{"tier-gold"}})

	m.Open("booking-modal")
	m.Open("membership-modal")

	assert.False(t, view.visible["booking-modal"])
	assert.True(t, view.visible["membership-modal"])
	assert.Equal(t, "membership-modal", m.Active())
	assert.Equal(t, "tier-gold", m.Focused())
}

func TestCloseRestoresScrollAndFocus(t *testing.T) {
	view := newRecordingView()
	m := NewManager(view)
	m.Register(bookingModal())
	m.Focus("book-now")

	m.Open("booking-modal")
	m.Close("other-modal")
	assert.Equal(t, "booking-modal", m.Active(), "closing an inactive modal is a no-op")

	m.Close("booking-modal")
	assert.False(t, view.visible["booking-modal"])
	assert.False(t, view.locked)
	assert.Equal(t, "book-now", view.focused)
	assert.Empty(t, m.Active())
}

func TestEscapeClosesAll(t *testing.T) {
	view := newRecordingView()
	m := NewManager(view)
	m.Register(bookingModal())
	m.Open("booking-modal")

	assert.False(t, m.HandleKey(Key{Name: "Escape"}))
	assert.Empty(t, m.Active())
	assert.False(t, view.locked)
}

func TestCloseAllReleasesScrollWithoutModal(t *testing.T) {
	view := newRecordingView()
	m := NewManager(view)
	view.locked = true

	m.CloseAll()
	assert.False(t, view.locked)
}

func TestTabWrapsFocus(t *testing.T) {
	view := newRecordingView()
	m := NewManager(view)
	m.Register(bookingModal())
	m.Open("booking-modal")

	m.Focus("submit")
	assert.True(t, m.HandleKey(Key{Name: "Tab"}))
	assert.Equal(t, "close", view.focused)

	assert.True(t, m.HandleKey(Key{Name: "Tab", Shift: true}))
	assert.Equal(t, "submit", view.focused)

	m.Focus("email")
	assert.False(t, m.HandleKey(Key{Name: "Tab"}), "tabbing inside the modal is left to the browser")
	assert.False(t, m.HandleKey(Key{Name: "Tab", Shift: true}))
}

func TestTabWithoutModalIsIgnored(t *testing.T) {
	m := NewManager(newRecordingView())
	m.Register(bookingModal())
	assert.False(t, m.HandleKey(Key{Name: "Tab"}))
}

func TestClickBackdropClosesModal(t *testing.T) {
	view := newRecordingView()
	m := NewManager(view)
	m.Register(bookingModal())
	m.Open("booking-modal")

	m.ClickBackdrop("booking-modal")
	assert.Empty(t, m.Active())
}
