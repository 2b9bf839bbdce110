package tui

import "sync"

// AltScreenState tracks whether the TUI is drawing into the terminal's
// alternate screen buffer (a full-screen app) or mirroring the
// transcript into the normal buffer (spec.md §4.6: "Ctrl+T switches
// between alt-screen TUI and normal-buffer mirrored transcript;
// preference is persisted"). Persistence itself is the caller's
// responsibility (via internal/config) — this type only tracks the
// in-memory toggle and notifies a listener so the caller can persist
// on change.
type AltScreenState struct {
	mu       sync.Mutex
	active   bool
	onChange func(active bool)
}

func NewAltScreenState(initial bool) *AltScreenState {
	return &AltScreenState{active: initial}
}

func (s *AltScreenState) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// OnChange registers a callback invoked (outside the lock) whenever
// Toggle or Set changes the active state.
func (s *AltScreenState) OnChange(fn func(active bool)) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

func (s *AltScreenState) Toggle() {
	s.mu.Lock()
	s.active = !s.active
	active := s.active
	cb := s.onChange
	s.mu.Unlock()
	if cb != nil {
		cb(active)
	}
}

func (s *AltScreenState) Set(active bool) {
	s.mu.Lock()
	if s.active == active {
		s.mu.Unlock()
		return
	}
	s.active = active
	cb := s.onChange
	s.mu.Unlock()
	if cb != nil {
		cb(active)
	}
}
