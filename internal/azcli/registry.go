package azcli

import (
	"sync"

	"github.com/54b3r/azmcp-go/internal/process"
)

// SessionRegistry holds the single current interactive login process.
// At most one device-code login is in flight at any time; starting a new one
// swaps its handle in and hands the previous one back to the caller for
// termination. The swap happens under the lock, the (blocking) terminate
// does not.
type SessionRegistry struct {
	mu      sync.Mutex
	current process.Handle
}

// NewSessionRegistry returns an empty registry.
func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{}
}

// Replace stores h as the current login handle and returns the previous one,
// or nil if no login was in flight. After Replace returns, no reader of
// Current can observe the old handle.
func (r *SessionRegistry) Replace(h process.Handle) process.Handle {
	r.mu.Lock()
	prev := r.current
	r.current = h
	r.mu.Unlock()
	return prev
}

// Current returns the handle of the login in flight, or nil.
func (r *SessionRegistry) Current() process.Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}
