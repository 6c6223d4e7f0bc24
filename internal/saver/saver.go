// Package saver clamps CPU and devfreq frequencies and retunes VM
// writeback policy based on display power state and active audio
// streams. Screen off drops the caps to save power; active sound keeps
// a slightly higher cap set so playback does not stutter.
package saver

import (
	"context"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/go-logr/logr"

	"github.com/perfmgr/boostd/pkg/devfreq"
	"github.com/perfmgr/boostd/pkg/util"
)

// CPUCluster identifies a CPU frequency domain.
type CPUCluster int

const (
	ClusterLittle CPUCluster = iota
	ClusterBig
	ClusterPrime

	clusterCount
)

func (c CPUCluster) String() string {
	switch c {
	case ClusterLittle:
		return "little"
	case ClusterBig:
		return "big"
	case ClusterPrime:
		return "prime"
	default:
		return "unknown"
	}
}

// DevfreqClass identifies a devfreq device family by what it scales.
type DevfreqClass int

const (
	ClassCPULLCCDDRBW DevfreqClass = iota
	ClassCPUDDRLatfloor
	ClassLLCCDDRLat
	ClassCPULLCCBW
	ClassCPULLCCLat

	devfreqClassCount
)

// classify maps a devfreq device name onto its class, mirroring the
// platform naming scheme. Unknown devices are ignored.
func classify(name string) (DevfreqClass, bool) {
	switch {
	case name == "soc:qcom,cpu-llcc-ddr-bw":
		return ClassCPULLCCDDRBW, true
	case strings.Contains(name, "cpu-ddr-latfloor"):
		return ClassCPUDDRLatfloor, true
	case strings.Contains(name, "llcc-ddr-lat"):
		return ClassLLCCDDRLat, true
	case strings.Contains(name, "cpu-llcc-bw"):
		return ClassCPULLCCBW, true
	case strings.Contains(name, "cpu-llcc-lat"):
		return ClassCPULLCCLat, true
	default:
		return 0, false
	}
}

// ClusterFreqs configures one CPU cluster. A zero value disables saver
// management for that cluster.
type ClusterFreqs struct {
	ScreenOnMin       uint64
	ScreenOffMax      uint64
	ScreenOffSoundMax uint64
}

// CPUPolicy is the external CPU frequency policy the saver adjusts.
type CPUPolicy interface {
	HWBounds(cluster CPUCluster) (minHz, maxHz uint64)
	SetLimits(cluster CPUCluster, minHz, maxHz uint64)
}

// WritebackSettings are the VM knobs swapped between screen states.
type WritebackSettings struct {
	Swappiness              uint
	DirtyExpireCentisecs    uint
	DirtyWritebackCentisecs uint
	DirtyBackgroundRatio    uint
	DirtyRatio              uint
}

// VMPolicy is the external VM writeback policy sink.
type VMPolicy interface {
	Apply(WritebackSettings)
}

// Opts configures the saver.
type Opts struct {
	CPU              map[CPUCluster]ClusterFreqs
	ScreenOn         WritebackSettings
	ScreenOff        WritebackSettings
	DevfreqCaps      map[DevfreqClass]uint64
	DevfreqSoundCaps map[DevfreqClass]uint64
}

// Saver runs a dedicated worker that reapplies frequency caps and VM
// policy whenever the screen state or the stream count changes.
type Saver struct {
	cpu  CPUPolicy
	vm   VMPolicy
	opts Opts

	mu      sync.Mutex
	devices map[DevfreqClass][]*devfreq.Device

	screenOn atomic.Bool
	streams  atomic.Int32
	wake     chan struct{}

	cancelFunc func()
	waitGroup  sync.WaitGroup
	logger     logr.Logger
}

// New creates a Saver. cpu and vm may be nil when the respective policy
// is not managed.
func New(cpu CPUPolicy, vm VMPolicy, opts Opts, logger logr.Logger) *Saver {
	return &Saver{
		cpu:     cpu,
		vm:      vm,
		opts:    opts,
		devices: make(map[DevfreqClass][]*devfreq.Device),
		wake:    make(chan struct{}, 1),
		logger:  logger.WithName("PowerSaver"),
	}
}

// RegisterDevfreq adds a devfreq device to its class. Devices with
// unrecognized names are ignored.
func (s *Saver) RegisterDevfreq(dev *devfreq.Device) {
	class, ok := classify(dev.Name())
	if !ok {
		s.logger.V(4).Info("ignoring devfreq device", "name", dev.Name())
		return
	}

	s.mu.Lock()
	s.devices[class] = append(s.devices[class], dev)
	s.mu.Unlock()

	s.logger.V(4).Info("devfreq device registered", "name", dev.Name(), "class", int(class))
}

// SetScreenState records a display transition and wakes the worker.
func (s *Saver) SetScreenState(on bool) {
	s.screenOn.Store(on)
	s.wakeWorker()
}

// SoundEnabled bumps the active-stream count.
func (s *Saver) SoundEnabled() {
	s.streams.Add(1)
	s.wakeWorker()
}

// SoundDisabled drops the active-stream count. The count never goes
// below zero.
func (s *Saver) SoundDisabled() {
	if s.streams.Load() == 0 {
		return
	}
	s.streams.Add(-1)
	s.wakeWorker()
}

// Streams returns the active-stream count.
func (s *Saver) Streams() int32 {
	return s.streams.Load()
}

func (s *Saver) wakeWorker() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Start launches the update worker.
func (s *Saver) Start() {
	ctx, cancelFunc := context.WithCancel(context.Background())
	s.cancelFunc = cancelFunc
	s.waitGroup.Add(1)

	go s.runLoop(ctx)
}

// Stop signals the worker and joins it.
func (s *Saver) Stop() {
	if s.cancelFunc != nil {
		s.cancelFunc()
	}
	s.waitGroup.Wait()
}

func (s *Saver) runLoop(ctx context.Context) {
	defer s.waitGroup.Done()

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	if err := util.SetRealtimePriority(); err != nil {
		s.logger.V(5).Info("running without realtime priority", "error", err.Error())
	}

	first := true
	lastScreenOn := false
	lastStreams := int32(0)
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.wake:
		}

		screenOn := s.screenOn.Load()
		streams := s.streams.Load()
		if !first && screenOn == lastScreenOn && streams == lastStreams {
			continue
		}
		first = false
		lastScreenOn = screenOn
		lastStreams = streams

		s.updateCPUPolicy(screenOn, streams)
		s.updateDevfreqPolicy(screenOn, streams)
		s.updateVMPolicy(screenOn)
	}
}

func (s *Saver) updateCPUPolicy(screenOn bool, streams int32) {
	if s.cpu == nil {
		return
	}

	for cluster, freqs := range s.opts.CPU {
		if freqs == (ClusterFreqs{}) {
			continue
		}
		hwMin, hwMax := s.cpu.HWBounds(cluster)

		if screenOn {
			minHz := util.Clamp(freqs.ScreenOnMin, hwMin, hwMax)
			s.cpu.SetLimits(cluster, minHz, hwMax)
			continue
		}

		capHz := freqs.ScreenOffMax
		if streams > 0 {
			capHz = freqs.ScreenOffSoundMax
		}
		s.cpu.SetLimits(cluster, hwMin, util.Clamp(capHz, hwMin, hwMax))
	}
}

func (s *Saver) updateDevfreqPolicy(screenOn bool, streams int32) {
	caps := s.opts.DevfreqCaps
	if streams > 0 {
		caps = s.opts.DevfreqSoundCaps
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for class, devs := range s.devices {
		for _, dev := range devs {
			if screenOn {
				dev.SetMaxFreq(dev.Ceiling())
			} else if capHz, ok := caps[class]; ok {
				dev.SetMaxFreq(capHz)
			}
			dev.Recompute()
		}
	}
}

func (s *Saver) updateVMPolicy(screenOn bool) {
	if s.vm == nil {
		return
	}
	if screenOn {
		s.vm.Apply(s.opts.ScreenOn)
	} else {
		s.vm.Apply(s.opts.ScreenOff)
	}
}
