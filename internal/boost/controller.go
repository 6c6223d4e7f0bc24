package boost

import (
	"github.com/go-logr/logr"
)

// Controller owns the fixed set of boost devices and routes external
// signals to them. Input activity fans out to every device; an explicit
// kick targets exactly one.
type Controller struct {
	devices [deviceKindCount]*Device
	logger  logr.Logger
	started bool
}

// NewController builds the device set from opts. Workers are not running
// until Start is called.
func NewController(opts Opts, logger logr.Logger) *Controller {
	c := &Controller{
		logger: logger.WithName("BoostController"),
	}

	for _, kind := range DeviceKinds() {
		c.devices[kind] = newDevice(kind, opts.BoostFrequencies[kind], opts, logger)
	}

	return c
}

// Start launches one worker per device.
func (c *Controller) Start() error {
	for _, kind := range DeviceKinds() {
		c.devices[kind].start()
		c.logger.V(5).Info("worker started", "device", kind.String())
	}
	c.started = true
	return nil
}

// Stop cancels every unboost timer, signals every worker, and joins
// them. Timers are stopped before workers so nothing fires into torn
// down state.
func (c *Controller) Stop() {
	if !c.started {
		return
	}
	for _, kind := range DeviceKinds() {
		c.devices[kind].stop()
		c.logger.V(5).Info("worker stopped", "device", kind.String())
	}
	c.started = false
}

// RegisterDevice binds a governor to the named device at runtime.
func (c *Controller) RegisterDevice(kind DeviceKind, gov Governor) {
	c.devices[kind].Register(gov)
	c.logger.V(4).Info("governor registered", "device", kind.String())
}

// Device returns the named device.
func (c *Controller) Device(kind DeviceKind) *Device {
	return c.devices[kind]
}

// Kick boosts the single named device.
func (c *Controller) Kick(kind DeviceKind, max bool) {
	c.devices[kind].Kick(max)
}

// InputEvent fans a plain kick out to every device.
func (c *Controller) InputEvent() {
	for _, kind := range DeviceKinds() {
		c.devices[kind].Kick(false)
	}
}

// SetScreenState routes a display blank transition to every device.
func (c *Controller) SetScreenState(on bool) {
	for _, kind := range DeviceKinds() {
		if on {
			c.devices[kind].ScreenOn()
		} else {
			c.devices[kind].ScreenOff()
		}
	}
}
