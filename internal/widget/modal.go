package widget

// Modal is the open/closed state of the chat window. The zero value is closed.
// It is owned by one UI component and is not safe for concurrent use.
type Modal struct {
	open bool
}

// IsOpen reports whether the chat window is open
func (m *Modal) IsOpen() bool { return m.open }

// Toggle flips the state and returns the new one
func (m *Modal) Toggle() bool {
	m.open = !m.open
	return m.open
}

func (m *Modal) Open() { m.open = true }

func (m *Modal) Close() { m.open = false }

// HandleKey closes the window on Escape. It reports whether the state changed.
func (m *Modal) HandleKey(key string) bool {
	switch key {
	case "esc", "Escape":
		if m.open {
			m.open = false
			return true
		}
	}
	return false
}

// HandleOutsideClick closes the window for a click outside it and its toggle
// button. It reports whether the state changed.
func (m *Modal) HandleOutsideClick() bool {
	if !m.open {
		return false
	}
	m.open = false
	return true
}
