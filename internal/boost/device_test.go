package boost

import (
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockGovernor struct {
	mock.Mock
}

func (m *mockGovernor) Floor() uint64 {
	return m.Called().Get(0).(uint64)
}

func (m *mockGovernor) MaxFreq() uint64 {
	return m.Called().Get(0).(uint64)
}

func (m *mockGovernor) SetMinFreq(hz uint64) {
	m.Called(hz)
}

func (m *mockGovernor) Recompute() {
	m.Called()
}

func (m *mockGovernor) MarkBoostDevice() {
	m.Called()
}

func newMockGovernor(floor, maxFreq uint64) *mockGovernor {
	gov := &mockGovernor{}
	gov.On("MarkBoostDevice").Return()
	gov.On("Floor").Return(floor).Maybe()
	gov.On("MaxFreq").Return(maxFreq).Maybe()
	gov.On("SetMinFreq", mock.Anything).Return().Maybe()
	gov.On("Recompute").Return().Maybe()
	return gov
}

// newTestDevice builds a started device with the apply hook wired to a
// channel. A nil governor leaves the device unregistered.
func newTestDevice(t *testing.T, gov Governor, inputDur, maxDur time.Duration) (*Device, chan uint32) {
	t.Helper()

	opts := Opts{
		InputBoostDuration: inputDur,
		MaxBoostDuration:   maxDur,
	}
	d := newDevice(DeviceCPUBandwidth, 500, opts, logr.Discard())

	applied := make(chan uint32, 16)
	testHookStateApplied = func(_ DeviceKind, state uint32) {
		applied <- state
	}
	t.Cleanup(func() { testHookStateApplied = nil })

	if gov != nil {
		d.Register(gov)
	}

	d.start()
	t.Cleanup(d.stop)

	return d, applied
}

func waitApplied(t *testing.T, applied chan uint32) uint32 {
	t.Helper()
	select {
	case state := <-applied:
		return state
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not apply a state change in time")
		return 0
	}
}

func assertNotApplied(t *testing.T, applied chan uint32, window time.Duration) {
	t.Helper()
	select {
	case state := <-applied:
		t.Fatalf("unexpected state application: %#x", state)
	case <-time.After(window):
	}
}

func TestDevice_MaxKickClearsInputBoost(t *testing.T) {
	gov := newMockGovernor(100, 1000)
	d, _ := newTestDevice(t, gov, time.Hour, time.Hour)

	d.Kick(false)
	d.Kick(true)

	assert.Equal(t, stateMaxBoost, d.State())
}

func TestDevice_PlainKickClearsMaxBoost(t *testing.T) {
	gov := newMockGovernor(100, 1000)
	d, _ := newTestDevice(t, gov, time.Hour, time.Hour)

	d.Kick(true)
	d.Kick(false)

	assert.Equal(t, stateInputBoost, d.State())
}

func TestDevice_MaxBoostAppliesMaxFrequency(t *testing.T) {
	gov := newMockGovernor(100, 1000)
	d, applied := newTestDevice(t, gov, time.Hour, time.Hour)

	d.Kick(true)
	waitApplied(t, applied)

	gov.AssertCalled(t, "SetMinFreq", uint64(1000))
	gov.AssertCalled(t, "Recompute")
	assert.Equal(t, stateMaxBoost, d.State())
}

func TestDevice_InputBoostCapsAtMaxFrequency(t *testing.T) {
	// Configured boost frequency 500 exceeds the device max of 400.
	gov := newMockGovernor(100, 400)
	d, applied := newTestDevice(t, gov, time.Hour, time.Hour)

	d.Kick(false)
	waitApplied(t, applied)

	gov.AssertCalled(t, "SetMinFreq", uint64(400))
	require.Equal(t, stateInputBoost, d.State())
}

func TestDevice_ScreenOffOverridesMaxBoost(t *testing.T) {
	gov := newMockGovernor(100, 1000)
	d, applied := newTestDevice(t, gov, time.Hour, time.Hour)

	d.Kick(true)
	waitApplied(t, applied)
	gov.AssertCalled(t, "SetMinFreq", uint64(1000))

	d.ScreenOff()
	waitApplied(t, applied)

	gov.AssertCalled(t, "SetMinFreq", uint64(100))
	screenOff, _, maxBoost := d.StateBits()
	assert.True(t, screenOff)
	assert.True(t, maxBoost, "ScreenOff wins precedence but leaves the boost bit set")
}

func TestDevice_UnboostDeadlineClearsBoostBits(t *testing.T) {
	gov := newMockGovernor(100, 1000)
	d, applied := newTestDevice(t, gov, 30*time.Millisecond, time.Hour)

	d.Kick(false)
	assert.Equal(t, stateInputBoost, waitApplied(t, applied))

	assert.Equal(t, uint32(0), waitApplied(t, applied), "deadline clears all boost bits")
	assert.Equal(t, uint32(0), d.State())
	gov.AssertCalled(t, "SetMinFreq", uint64(100))
}

func TestDevice_KickUnregisteredIsNoOp(t *testing.T) {
	d, applied := newTestDevice(t, nil, time.Hour, time.Hour)

	d.Kick(false)
	d.Kick(true)

	assert.Equal(t, uint32(0), d.State())
	assert.False(t, d.unboost.Stop(), "no deadline was armed")
	assertNotApplied(t, applied, 50*time.Millisecond)
}

func TestDevice_KickWhileScreenOffIsNoOp(t *testing.T) {
	gov := newMockGovernor(100, 1000)
	d, applied := newTestDevice(t, gov, time.Hour, time.Hour)

	d.ScreenOff()
	waitApplied(t, applied)

	d.Kick(false)
	assert.Equal(t, stateScreenOff, d.State())
	assertNotApplied(t, applied, 50*time.Millisecond)
}

func TestDevice_RescheduledKickDoesNotRewake(t *testing.T) {
	gov := newMockGovernor(100, 1000)
	d, applied := newTestDevice(t, gov, time.Hour, time.Hour)

	d.Kick(false)
	waitApplied(t, applied)

	// The deadline is pending, so this kick only reschedules it.
	d.Kick(false)
	assertNotApplied(t, applied, 50*time.Millisecond)
}

func TestDevice_ScreenOnDoesNotWake(t *testing.T) {
	gov := newMockGovernor(100, 1000)
	d, applied := newTestDevice(t, gov, time.Hour, time.Hour)

	d.ScreenOff()
	waitApplied(t, applied)

	d.ScreenOn()
	assert.Equal(t, uint32(0), d.State())
	assertNotApplied(t, applied, 50*time.Millisecond)
}
