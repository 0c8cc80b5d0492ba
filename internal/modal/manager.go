// Package modal manages the page's dialog overlays: at most one modal is open,
// page scroll is locked while it is, and keyboard focus is trapped inside it.
package modal

import "sync"

// View renders modal state. Implementations must not call back into the Manager.
type View interface {
	SetVisible(modalID string, visible bool)
	SetScrollLocked(locked bool)
	Focus(elementID string)
}

// Modal describes a dialog and its focusable elements in tab order.
type Modal struct {
	ID         string
	Focusables []string
}

// Key is a keyboard event relevant to modals.
type Key struct {
	Name  string // "Escape", "Tab", ...
	Shift bool
}

// Manager tracks the single active modal.
type Manager struct {
	view View

	mu      sync.Mutex
	modals  map[string]Modal
	active  string
	focused string
	restore string
	locked  bool
}

// NewManager returns a Manager rendering through view.
func NewManager(view View) *Manager {
	return &Manager{view: view, modals: make(map[string]Modal)}
}

// Register adds or replaces a modal definition.
func (m *Manager) Register(modal Modal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.modals[modal.ID] = modal
}

// Open shows the modal with the given id and focuses its first focusable
// element. Unknown ids are ignored. Opening a modal while another is open
// closes the other one first.
func (m *Manager) Open(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	modal, ok := m.modals[id]
	if !ok {
		return false
	}
	if m.active == id {
		return true
	}
	if m.active != "" {
		m.view.SetVisible(m.active, false)
	} else {
		m.restore = m.focused
	}

	m.active = id
	m.view.SetVisible(id, true)
	m.view.SetScrollLocked(true)
	m.locked = true
	if len(modal.Focusables) > 0 {
		m.focus(modal.Focusables[0])
	}
	return true
}

// Close hides the modal if it is the active one.
func (m *Manager) Close(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id == "" || m.active != id {
		return
	}
	m.closeActive()
}

// CloseAll hides any open modal and always releases the scroll lock.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active != "" {
		m.closeActive()
		return
	}
	m.view.SetScrollLocked(false)
	m.locked = false
}

// ClickBackdrop handles a click on the overlay outside the modal content.
func (m *Manager) ClickBackdrop(id string) {
	m.Close(id)
}

// Active returns the open modal id, or "" if none is open.
func (m *Manager) Active() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// Focused returns the element that currently has keyboard focus.
func (m *Manager) Focused() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.focused
}

// ScrollLocked reports whether page scroll is suspended.
func (m *Manager) ScrollLocked() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.locked
}

// Focus records that the user moved focus to elementID.
func (m *Manager) Focus(elementID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.focused = elementID
}

// HandleKey applies Escape and Tab handling. It returns true when the
// default browser behaviour should be prevented.
func (m *Manager) HandleKey(k Key) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch k.Name {
	case "Escape":
		if m.active != "" {
			m.closeActive()
		} else {
			m.view.SetScrollLocked(false)
			m.locked = false
		}
		return false
	case "Tab":
		if m.active == "" {
			return false
		}
		focusables := m.modals[m.active].Focusables
		if len(focusables) == 0 {
			return false
		}
		first, last := focusables[0], focusables[len(focusables)-1]
		if k.Shift && m.focused == first {
			m.focus(last)
			return true
		}
		if !k.Shift && m.focused == last {
			m.focus(first)
			return true
		}
	}
	return false
}

func (m *Manager) closeActive() {
	m.view.SetVisible(m.active, false)
	m.view.SetScrollLocked(false)
	m.locked = false
	m.active = ""
	if m.restore != "" {
		m.focus(m.restore)
		m.restore = ""
	}
}

func (m *Manager) focus(elementID string) {
	m.focused = elementID
	m.view.Focus(elementID)
}
