// Package devfreq models a frequency-scaled device with its own lock,
// an ascending frequency table, and externally adjustable min/max limits.
// The boost and saver subsystems push limits into a Device; the device
// owns the locking and the recompute step that picks the effective target.
package devfreq

import (
	"errors"
	"fmt"
	"sync"

	"github.com/perfmgr/boostd/pkg/util"
)

// ErrEmptyTable is returned when a Device is created without any
// operating points.
var ErrEmptyTable = errors.New("devfreq: empty frequency table")

// UpdateFunc receives the new effective target frequency after a
// Recompute. It is invoked with the device lock held, so it must not
// call back into the Device.
type UpdateFunc func(targetHz uint64)

// Device is a single frequency-scaled device. All limit mutations and
// recomputes happen under the device's own mutex; callers never take
// the lock themselves.
type Device struct {
	name string

	mu          sync.Mutex
	table       []uint64
	minFreq     uint64
	maxFreq     uint64
	current     uint64
	boostDevice bool
	onUpdate    UpdateFunc
}

// New creates a Device from an ascending, non-empty frequency table.
// Limits start wide open: min at the table floor, max at the table
// ceiling. onUpdate may be nil.
func New(name string, table []uint64, onUpdate UpdateFunc) (*Device, error) {
	if len(table) == 0 {
		return nil, ErrEmptyTable
	}
	for i := 1; i < len(table); i++ {
		if table[i] < table[i-1] {
			return nil, fmt.Errorf("devfreq: frequency table for %q is not ascending", name)
		}
	}

	d := &Device{
		name:     name,
		table:    append([]uint64(nil), table...),
		minFreq:  table[0],
		maxFreq:  table[len(table)-1],
		current:  table[0],
		onUpdate: onUpdate,
	}
	return d, nil
}

// Name returns the device name.
func (d *Device) Name() string {
	return d.name
}

// Floor returns the lowest table frequency.
func (d *Device) Floor() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.table[0]
}

// Ceiling returns the highest table frequency.
func (d *Device) Ceiling() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.table[len(d.table)-1]
}

// MaxFreq returns the current max-frequency limit.
func (d *Device) MaxFreq() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.maxFreq
}

// MinFreq returns the current min-frequency limit.
func (d *Device) MinFreq() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.minFreq
}

// CurrentFreq returns the effective frequency chosen by the last
// Recompute.
func (d *Device) CurrentFreq() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.current
}

// SetMinFreq replaces the min-frequency limit.
func (d *Device) SetMinFreq(hz uint64) {
	d.mu.Lock()
	d.minFreq = hz
	d.mu.Unlock()
}

// SetMaxFreq replaces the max-frequency limit.
func (d *Device) SetMaxFreq(hz uint64) {
	d.mu.Lock()
	d.maxFreq = hz
	d.mu.Unlock()
}

// MarkBoostDevice flags the device as managed by the boost controller.
func (d *Device) MarkBoostDevice() {
	d.mu.Lock()
	d.boostDevice = true
	d.mu.Unlock()
}

// IsBoostDevice reports whether MarkBoostDevice has been called.
func (d *Device) IsBoostDevice() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.boostDevice
}

// Recompute re-derives the effective target frequency from the table
// and the current limits, then notifies the update callback. The target
// is the lowest table entry satisfying the min limit, clamped into
// [minFreq, maxFreq] interpreted against the table bounds.
func (d *Device) Recompute() {
	d.mu.Lock()
	defer d.mu.Unlock()

	lo := util.Clamp(d.minFreq, d.table[0], d.table[len(d.table)-1])
	hi := util.Clamp(d.maxFreq, d.table[0], d.table[len(d.table)-1])
	if hi < lo {
		hi = lo
	}

	target := hi
	for _, hz := range d.table {
		if hz >= lo {
			target = util.Min(hz, hi)
			break
		}
	}
	d.current = target

	if d.onUpdate != nil {
		d.onUpdate(target)
	}
}
