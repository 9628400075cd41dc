// Package slot tracks the per-credential execution lanes. Each slot is
// owned by exactly one worker; the monitor reads slot state concurrently,
// so the monitor-visible fields are atomics.
package slot

import (
	"sync"
	"sync/atomic"
	"time"
)

// Slot is one rate-limited execution lane bound to a single credential.
type Slot struct {
	Index      int
	Credential string

	// mu serializes the availability-check-through-call window. A worker
	// owns its slot, but single-shot calls may borrow one concurrently.
	mu sync.Mutex

	// lastCall is read and written only while mu is held.
	lastCall time.Time

	cooldownUntil atomic.Int64 // unix nanos
	exhausted     atomic.Bool
}

func New(index int, credential string) *Slot {
	return &Slot{Index: index, Credential: credential}
}

// Lock claims the slot for one call attempt. Calls on a slot are strictly
// sequential; the lock must be held from the availability check until the
// last-call timestamp is updated.
func (s *Slot) Lock() {
	s.mu.Lock()
}

// Unlock releases the slot after a call attempt.
func (s *Slot) Unlock() {
	s.mu.Unlock()
}

// Available reports whether the slot may issue a call: not exhausted and
// past any cooldown.
func (s *Slot) Available() bool {
	if s.exhausted.Load() {
		return false
	}
	return time.Now().UnixNano() >= s.cooldownUntil.Load()
}

// OnCooldown reports whether the slot is inside a cooldown window.
func (s *Slot) OnCooldown() bool {
	return time.Now().UnixNano() < s.cooldownUntil.Load()
}

// ApplyCooldown makes the slot unavailable for d from now.
func (s *Slot) ApplyCooldown(d time.Duration) {
	s.cooldownUntil.Store(time.Now().Add(d).UnixNano())
}

// Exhaust permanently disables the slot. Idempotent; there is no way back.
func (s *Slot) Exhaust() {
	s.exhausted.Store(true)
}

// Exhausted reports whether the slot has been permanently disabled.
func (s *Slot) Exhausted() bool {
	return s.exhausted.Load()
}

// LastCall returns when the slot last issued a call (zero if never).
func (s *Slot) LastCall() time.Time {
	return s.lastCall
}

// TouchLastCall records that a call just finished on this slot.
func (s *Slot) TouchLastCall() {
	s.lastCall = time.Now()
}
