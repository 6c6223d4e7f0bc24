package boost

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-logr/logr"

	"github.com/perfmgr/boostd/pkg/util"
)

// Func definitions for unit testing
var (
	testHookStateApplied func(kind DeviceKind, state uint32)
)

type governorHandle struct {
	gov Governor
}

// Device holds the boost state for one boost target. Producers mutate
// the atomic state word and signal the wake channel; the worker is the
// only consumer and the only caller into the governor.
type Device struct {
	kind               DeviceKind
	boostFreq          uint64
	inputBoostDuration time.Duration
	maxBoostDuration   time.Duration

	handle  atomic.Pointer[governorHandle]
	state   atomic.Uint32
	wake    chan struct{}
	unboost *time.Timer

	cancelFunc func()
	waitGroup  sync.WaitGroup
	logger     logr.Logger
}

func newDevice(kind DeviceKind, boostFreq uint64, opts Opts, logger logr.Logger) *Device {
	d := &Device{
		kind:               kind,
		boostFreq:          boostFreq,
		inputBoostDuration: opts.InputBoostDuration,
		maxBoostDuration:   opts.MaxBoostDuration,
		wake:               make(chan struct{}, 1),
		logger:             logger.WithName("BoostDevice").WithValues("device", kind.String()),
	}

	d.unboost = time.AfterFunc(time.Hour, d.unboostExpired)
	d.unboost.Stop()

	return d
}

// Kind returns the device's kind.
func (d *Device) Kind() DeviceKind {
	return d.kind
}

// Register binds the externally owned governor. Until a governor is
// bound every kick is a silent no-op.
func (d *Device) Register(gov Governor) {
	gov.MarkBoostDevice()
	d.handle.Store(&governorHandle{gov: gov})
}

func (d *Device) governor() Governor {
	h := d.handle.Load()
	if h == nil {
		return nil
	}
	return h.gov
}

// State returns the current raw state bits.
func (d *Device) State() uint32 {
	return d.state.Load()
}

// StateBits decodes the state word.
func (d *Device) StateBits() (screenOff, inputBoost, maxBoost bool) {
	s := d.state.Load()
	return s&stateScreenOff != 0, s&stateInputBoost != 0, s&stateMaxBoost != 0
}

// Registered reports whether a governor is bound.
func (d *Device) Registered() bool {
	return d.handle.Load() != nil
}

// Kick arms an input boost, or a max boost when max is set. Kicks on an
// unregistered device or while the screen is off are ignored. Setting
// either boost bit clears the other. A kick that merely reschedules a
// pending unboost deadline does not wake the worker; a fresh boost does.
func (d *Device) Kick(max bool) {
	if d.governor() == nil || d.state.Load()&stateScreenOff != 0 {
		return
	}

	var duration time.Duration
	if max {
		d.state.Or(stateMaxBoost)
		d.state.And(^stateInputBoost)
		duration = d.maxBoostDuration
	} else {
		d.state.Or(stateInputBoost)
		d.state.And(^stateMaxBoost)
		duration = d.inputBoostDuration
	}

	if !d.unboost.Reset(duration) {
		d.wakeWorker()
	}
}

// ScreenOff marks the screen as blanked and wakes the worker. Boost bits
// are left untouched; ScreenOff only wins precedence.
func (d *Device) ScreenOff() {
	d.state.Or(stateScreenOff)
	d.wakeWorker()
}

// ScreenOn clears the blanked bit. The worker is deliberately not woken;
// the cleared bit is observed on the next wake.
func (d *Device) ScreenOn() {
	d.state.And(^stateScreenOff)
}

func (d *Device) unboostExpired() {
	d.state.And(^(stateInputBoost | stateMaxBoost))
	d.wakeWorker()
}

func (d *Device) wakeWorker() {
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

func (d *Device) start() {
	ctx, cancelFunc := context.WithCancel(context.Background())
	d.cancelFunc = cancelFunc
	d.waitGroup.Add(1)

	go d.runLoop(ctx)
}

func (d *Device) stop() {
	d.unboost.Stop()
	if d.cancelFunc != nil {
		d.cancelFunc()
	}
	d.waitGroup.Wait()
}

func (d *Device) runLoop(ctx context.Context) {
	defer d.waitGroup.Done()

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	if err := util.SetRealtimePriority(); err != nil {
		d.logger.V(5).Info("running without realtime priority", "error", err.Error())
	}

	var lastState uint32
	for {
		select {
		case <-ctx.Done():
			return
		case <-d.wake:
		}

		currState := d.state.Load()
		if currState == lastState {
			continue
		}
		lastState = currState
		d.applyBoosts(currState)

		if testHookStateApplied != nil {
			testHookStateApplied(d.kind, currState)
		}
	}
}

// applyBoosts maps the state bits onto the governor's min frequency.
// Precedence, highest first: ScreenOff, MaxBoost, InputBoost, idle.
func (d *Device) applyBoosts(state uint32) {
	gov := d.governor()
	if gov == nil {
		return
	}

	switch {
	case state&stateScreenOff != 0:
		gov.SetMinFreq(gov.Floor())
	case state&stateMaxBoost != 0:
		gov.SetMinFreq(gov.MaxFreq())
	case state&stateInputBoost != 0:
		gov.SetMinFreq(util.Min(d.boostFreq, gov.MaxFreq()))
	default:
		gov.SetMinFreq(gov.Floor())
	}
	gov.Recompute()
}
