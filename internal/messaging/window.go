package messaging

import (
	"sync"
	"time"
)

// CustomerServiceWindow is how long after the last inbound message the
// WhatsApp Cloud API accepts free-form text. Outside it only approved
// templates are deliverable.
const CustomerServiceWindow = 24 * time.Hour

// WindowTracker tracks the customer service window per recipient.
type WindowTracker struct {
	mu          sync.RWMutex
	lastInbound map[string]time.Time
	now         func() time.Time
}

// NewWindowTracker creates an empty window tracker.
func NewWindowTracker() *WindowTracker {
	return &WindowTracker{
		lastInbound: make(map[string]time.Time),
		now:         time.Now,
	}
}

// RecordInbound records an inbound message from the recipient, opening the
// customer service window.
func (w *WindowTracker) RecordInbound(recipient string, at time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if existing, ok := w.lastInbound[recipient]; !ok || at.After(existing) {
		w.lastInbound[recipient] = at
	}
}

// IsOpen reports whether the customer service window is open for the
// recipient.
func (w *WindowTracker) IsOpen(recipient string) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	at, ok := w.lastInbound[recipient]
	if !ok {
		return false
	}
	return w.now().Sub(at) < CustomerServiceWindow
}
