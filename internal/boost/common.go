// Package boost raises device minimum frequencies in response to input
// activity, display power transitions, and explicit max-boost requests.
// Each device gets a dedicated worker that pushes the effective floor to
// its governor; producers only flip atomic state bits and signal a wake.
package boost

import (
	"errors"
	"time"
)

// ErrRegistration is returned when a worker or external notifier cannot
// be brought up at startup.
var ErrRegistration = errors.New("boost: registration failed")

// DeviceKind identifies one of the fixed boost targets. The set is
// closed: it mirrors the scaling devices of the reference platform.
type DeviceKind int

const (
	// DeviceCPUBandwidth scales the CPU-to-memory bandwidth device.
	DeviceCPUBandwidth DeviceKind = iota
	// DeviceLLCBandwidth scales the last-level-cache bandwidth device.
	DeviceLLCBandwidth

	deviceKindCount
)

func (k DeviceKind) String() string {
	switch k {
	case DeviceCPUBandwidth:
		return "cpubw"
	case DeviceLLCBandwidth:
		return "llccbw"
	default:
		return "unknown"
	}
}

// DeviceKinds returns every valid kind in routing order.
func DeviceKinds() []DeviceKind {
	return []DeviceKind{DeviceCPUBandwidth, DeviceLLCBandwidth}
}

// State bits. ScreenOff wins precedence when applying frequencies but
// does not clear the boost bits; InputBoost and MaxBoost are mutually
// exclusive.
const (
	stateScreenOff uint32 = 1 << iota
	stateInputBoost
	stateMaxBoost
)

// Governor is the externally owned frequency-governor object a device
// pushes its computed floor into. Implementations do their own locking.
type Governor interface {
	Floor() uint64
	MaxFreq() uint64
	SetMinFreq(hz uint64)
	Recompute()
	MarkBoostDevice()
}

// Opts configures the controller's devices.
type Opts struct {
	// InputBoostDuration is how long a plain kick holds the boost.
	InputBoostDuration time.Duration
	// MaxBoostDuration is how long a max kick holds the boost.
	MaxBoostDuration time.Duration
	// BoostFrequencies supplies the per-kind input-boost floor.
	BoostFrequencies map[DeviceKind]uint64
}
