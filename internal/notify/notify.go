// Package notify delivers user-facing notifications. Delivery is always
// best-effort: a failed notification is logged and dropped, never an error
// the caller has to handle.
package notify

import "log"

// Sink delivers one notification.
type Sink interface {
	Notify(title, body string) error
}

// Manager fans a notification out to the desktop and, when the user has it
// enabled, the VR overlay.
type Manager struct {
	desktop Sink
	overlay Sink

	// overlayEnabled is read per notification so settings changes apply
	// without a restart.
	overlayEnabled func() bool
}

func NewManager(desktop, overlay Sink, overlayEnabled func() bool) *Manager {
	if overlayEnabled == nil {
		overlayEnabled = func() bool { return false }
	}
	return &Manager{desktop: desktop, overlay: overlay, overlayEnabled: overlayEnabled}
}

// Notify sends to all active sinks. Failures are logged and swallowed.
func (m *Manager) Notify(title, body string) {
	if m.desktop != nil {
		if err := m.desktop.Notify(title, body); err != nil {
			log.Printf("NOTIFY: desktop notification failed: %v", err)
		}
	}
	if m.overlay != nil && m.overlayEnabled() {
		if err := m.overlay.Notify(title, body); err != nil {
			log.Printf("NOTIFY: overlay notification failed: %v", err)
		}
	}
}
