package daemon

import (
	"sync"

	"github.com/go-logr/logr"

	"github.com/perfmgr/boostd/internal/bridge"
)

// virtualInputSource stands in for the platform input subsystem. It
// connects a single synthetic key-capable device and forwards activity
// reported over the debug HTTP surface.
type virtualInputSource struct {
	logger logr.Logger

	mu     sync.Mutex
	target *bridge.Bridge
	handle *bridge.Handle
}

func newVirtualInputSource(logger logr.Logger) *virtualInputSource {
	return &virtualInputSource{logger: logger.WithName("VirtualInput")}
}

func (s *virtualInputSource) RegisterHandler(b *bridge.Bridge) error {
	handle, err := b.Connect("virtual-input", bridge.DeviceCaps{Events: bridge.EvKey})
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.target = b
	s.handle = handle
	s.mu.Unlock()
	return nil
}

func (s *virtualInputSource) UnregisterHandler(b *bridge.Bridge) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.target == b && s.handle != nil {
		b.Disconnect(s.handle)
		s.handle = nil
		s.target = nil
	}
}

// Activity reports one opaque input event.
func (s *virtualInputSource) Activity() {
	s.mu.Lock()
	target, handle := s.target, s.handle
	s.mu.Unlock()

	if target != nil {
		target.Event(handle)
	}
}

// displayNotifier stands in for the display power-state source, driven
// by the debug HTTP surface.
type displayNotifier struct {
	mu sync.Mutex
	cb func(phase bridge.BlankPhase, blank bool)
}

func (n *displayNotifier) Register(cb func(phase bridge.BlankPhase, blank bool)) error {
	n.mu.Lock()
	n.cb = cb
	n.mu.Unlock()
	return nil
}

// Blank delivers an early-phase transition followed by the final phase.
func (n *displayNotifier) Blank(blank bool) {
	n.mu.Lock()
	cb := n.cb
	n.mu.Unlock()

	if cb != nil {
		cb(bridge.PhaseEarly, blank)
		cb(bridge.PhaseFinal, blank)
	}
}
