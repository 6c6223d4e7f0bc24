// Package bridge translates input-subsystem and display power
// notifications into boost controller calls. It owns the capability
// filter deciding which input devices are worth listening to.
package bridge

import (
	"fmt"
	"sync"

	"github.com/go-logr/logr"
	"github.com/google/uuid"

	"github.com/perfmgr/boostd/internal/boost"
)

// Event class bits reported by input devices.
const (
	EvKey uint32 = 1 << iota
	EvAbs
)

// Absolute-axis bits.
const (
	AbsX uint64 = 1 << iota
	AbsY
	AbsMTPositionX
	AbsMTPositionY
)

// Key/button bits.
const (
	BtnTouch uint64 = 1 << iota
)

// DeviceCaps describes an input device's advertised capabilities.
type DeviceCaps struct {
	Events  uint32
	AbsAxes uint64
	Keys    uint64
}

type capFilter struct {
	events  uint32
	absAxes uint64
	keys    uint64
}

// The fixed filter table: multi-touch surfaces, touchpads, and anything
// that can emit key events.
var boostFilters = []capFilter{
	{events: EvAbs, absAxes: AbsMTPositionX | AbsMTPositionY},
	{absAxes: AbsX | AbsY, keys: BtnTouch},
	{events: EvKey},
}

func (f capFilter) match(caps DeviceCaps) bool {
	return caps.Events&f.events == f.events &&
		caps.AbsAxes&f.absAxes == f.absAxes &&
		caps.Keys&f.keys == f.keys
}

// ScreenListener receives display power transitions.
type ScreenListener interface {
	SetScreenState(on bool)
}

// InputSource is the external input subsystem the bridge registers with.
type InputSource interface {
	RegisterHandler(b *Bridge) error
	UnregisterHandler(b *Bridge)
}

// DisplayNotifier is the external display power-state source. Callbacks
// fire for every phase; the bridge only acts on the early one.
type DisplayNotifier interface {
	Register(cb func(phase BlankPhase, blank bool)) error
}

// BlankPhase distinguishes the early notification, delivered before a
// blank transition completes, from the final one.
type BlankPhase int

const (
	PhaseEarly BlankPhase = iota
	PhaseFinal
)

// Handle represents one opened connection to a matched input device.
type Handle struct {
	ID         string
	DeviceName string
}

// Bridge fans input activity into the boost controller and display
// transitions into every registered screen listener.
type Bridge struct {
	controller *boost.Controller
	listeners  []ScreenListener
	logger     logr.Logger

	mu      sync.Mutex
	handles map[string]*Handle
}

// New creates a Bridge. The controller is always a screen listener;
// extra listeners (e.g. the power saver) ride along.
func New(controller *boost.Controller, listeners []ScreenListener, logger logr.Logger) *Bridge {
	all := append([]ScreenListener{screenAdapter{controller}}, listeners...)
	return &Bridge{
		controller: controller,
		listeners:  all,
		logger:     logger.WithName("EventBridge"),
		handles:    make(map[string]*Handle),
	}
}

type screenAdapter struct {
	c *boost.Controller
}

func (a screenAdapter) SetScreenState(on bool) {
	a.c.SetScreenState(on)
}

// Attach registers the bridge with the input source and the display
// notifier. On a display registration failure the input handler is
// unregistered again before the error is returned.
func (b *Bridge) Attach(source InputSource, display DisplayNotifier) error {
	if err := source.RegisterHandler(b); err != nil {
		return fmt.Errorf("%w: input handler: %v", boost.ErrRegistration, err)
	}

	if err := display.Register(b.DisplayBlankChanged); err != nil {
		source.UnregisterHandler(b)
		return fmt.Errorf("%w: display notifier: %v", boost.ErrRegistration, err)
	}

	return nil
}

// Matches reports whether a device with the given capabilities passes
// the boost filter table.
func (b *Bridge) Matches(caps DeviceCaps) bool {
	for _, f := range boostFilters {
		if f.match(caps) {
			return true
		}
	}
	return false
}

// Connect opens a handle for a matched device. Non-matching devices are
// ignored and yield a nil handle.
func (b *Bridge) Connect(deviceName string, caps DeviceCaps) (*Handle, error) {
	if !b.Matches(caps) {
		return nil, nil
	}

	h := &Handle{
		ID:         uuid.NewString(),
		DeviceName: deviceName,
	}

	b.mu.Lock()
	b.handles[h.ID] = h
	b.mu.Unlock()

	b.logger.V(4).Info("input device connected", "device", deviceName, "handle", h.ID)
	return h, nil
}

// Disconnect tears down a handle.
func (b *Bridge) Disconnect(h *Handle) {
	if h == nil {
		return
	}
	b.mu.Lock()
	delete(b.handles, h.ID)
	b.mu.Unlock()

	b.logger.V(4).Info("input device disconnected", "device", h.DeviceName, "handle", h.ID)
}

// HandleCount returns the number of open input handles.
func (b *Bridge) HandleCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.handles)
}

// Event reports activity on an open handle. The payload does not matter;
// any event kicks every boost device.
func (b *Bridge) Event(h *Handle) {
	if h == nil {
		return
	}
	b.controller.InputEvent()
}

// DisplayBlankChanged handles a display power transition. Only the early
// phase is acted on: unblank turns the screen state on, blank turns it
// off, for every listener.
func (b *Bridge) DisplayBlankChanged(phase BlankPhase, blank bool) {
	if phase != PhaseEarly {
		return
	}
	for _, l := range b.listeners {
		l.SetScreenState(!blank)
	}
}
