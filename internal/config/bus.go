package config

import (
	"sync"

	"github.com/apexls/apexls/internal/debug"
)

// ChangeHandler receives the previous and new settings. Handlers may reject
// disallowed live changes by returning an error; the change still applies for
// other subscribers, and the rejection is logged for the operator.
type ChangeHandler func(old, new *Settings) error

// Bus delivers settings-change notifications to subscribers in registration
// order.
type Bus struct {
	mu       sync.RWMutex
	current  *Settings
	handlers []ChangeHandler
}

// NewBus creates a bus seeded with initial settings.
func NewBus(initial *Settings) *Bus {
	if initial == nil {
		initial = Default()
	}
	return &Bus{current: initial.Clone()}
}

// Current returns a copy of the active settings.
func (b *Bus) Current() *Settings {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.current.Clone()
}

// Subscribe registers a change handler. The handler is not invoked with the
// current settings; only future changes are delivered.
func (b *Bus) Subscribe(h ChangeHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, h)
}

// Publish validates and applies new settings, then notifies subscribers.
// Handler rejections are logged, not propagated: the next spawn of whatever
// the handler guards enforces the constraint.
func (b *Bus) Publish(next *Settings) error {
	if err := next.Validate(); err != nil {
		return err
	}

	b.mu.Lock()
	old := b.current
	b.current = next.Clone()
	handlers := append([]ChangeHandler(nil), b.handlers...)
	b.mu.Unlock()

	for _, h := range handlers {
		if err := h(old, next); err != nil {
			debug.Warnf("CONFIG", "settings change rejected by subscriber: %v", err)
		}
	}
	return nil
}
