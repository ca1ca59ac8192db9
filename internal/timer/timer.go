// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package timer provides a registry of one-shot timers addressed by opaque
// handles. Handles are issued at registration and required for cancellation,
// so two units of work can never collide on a shared key.
package timer

import (
	"sync"
	"time"
)

// Handle identifies one armed timer. The zero handle is never issued.
type Handle uint64

// Manager owns a set of pending one-shot timers. The zero value is not
// usable; construct with NewManager.
type Manager struct {
	mu     sync.Mutex
	seq    uint64
	timers map[Handle]*time.Timer
}

// NewManager returns an empty timer registry.
func NewManager() *Manager {
	return &Manager{timers: make(map[Handle]*time.Timer)}
}

// Arm schedules fn to run once after d and returns the handle for it.
// The callback runs on its own goroutine. A callback fires at most once
// per registration.
func (m *Manager) Arm(d time.Duration, fn func()) Handle {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.seq++
	h := Handle(m.seq)
	m.timers[h] = time.AfterFunc(d, func() {
		// Deregister before running so Cancel after firing is a no-op.
		m.mu.Lock()
		delete(m.timers, h)
		m.mu.Unlock()
		fn()
	})
	return h
}

// Cancel stops the timer for h if it is still pending. It reports whether a
// pending timer was cancelled; cancelling an unknown or already-fired handle
// is a no-op. A callback that has already started is not interrupted.
func (m *Manager) Cancel(h Handle) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.timers[h]
	if !ok {
		return false
	}
	delete(m.timers, h)
	return t.Stop()
}

// CancelAll stops every pending timer.
func (m *Manager) CancelAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for h, t := range m.timers {
		t.Stop()
		delete(m.timers, h)
	}
}

// Len returns the number of pending timers.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.timers)
}
