package client

import (
	"sync"

	"github.com/zeusync/glowline/internal/core/protocol"
)

// PermissionState is the last verdict received from the server. Until one
// arrives outlines are not allowed.
type PermissionState struct {
	mu        sync.Mutex
	allowed   bool
	reason    string
	received  bool
	onBlocked func(reason string)
}

func NewPermissionState() *PermissionState {
	return &PermissionState{}
}

// OnBlocked registers fn, called when the first verdict after a reset is a
// refusal. Later refusals stay silent.
func (s *PermissionState) OnBlocked(fn func(reason string)) {
	s.mu.Lock()
	s.onBlocked = fn
	s.mu.Unlock()
}

// Set records a verdict and reports whether it changed the allowed flag.
func (s *PermissionState) Set(p protocol.Permission) bool {
	s.mu.Lock()
	first := !s.received
	changed := first || s.allowed != p.Allowed
	s.received = true
	s.allowed = p.Allowed
	s.reason = p.Reason
	notify := s.onBlocked
	s.mu.Unlock()

	if !p.Allowed && first && notify != nil {
		notify(p.Reason)
	}
	return changed
}

func (s *PermissionState) Allowed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.allowed
}

func (s *PermissionState) Reason() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reason
}

// Received reports whether any verdict arrived since the last reset.
func (s *PermissionState) Received() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.received
}

// Reset returns to the not-allowed, nothing-received state.
func (s *PermissionState) Reset() {
	s.mu.Lock()
	s.allowed = false
	s.reason = ""
	s.received = false
	s.mu.Unlock()
}
