// Package daemon wires the boost controller, the page pools, the power
// saver, and the event bridge into a long-running process with an HTTP
// surface for metrics and debugging.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-logr/logr"
	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/perfmgr/boostd/internal/boost"
	"github.com/perfmgr/boostd/internal/bridge"
	"github.com/perfmgr/boostd/internal/config"
	"github.com/perfmgr/boostd/internal/monitoring"
	"github.com/perfmgr/boostd/internal/pool"
	"github.com/perfmgr/boostd/internal/saver"
	"github.com/perfmgr/boostd/pkg/devfreq"
)

// Bandwidth operating points of the reference platform's scaling
// devices, in MB/s.
var (
	cpubwTable  = []uint64{762, 1144, 1720, 2086, 2929, 3879, 5161, 5931, 6881, 7980, 8368, 9887}
	llccbwTable = []uint64{300, 556, 806, 1077, 1804, 2092, 2929, 4943, 5931, 6881, 7216}
)

// The saver-managed devfreq devices and their operating points.
var saverDevfreqDevices = []struct {
	name  string
	table []uint64
}{
	{"soc:qcom,cpu-llcc-ddr-bw", cpubwTable},
	{"soc:qcom,cpu-ddr-latfloor", cpubwTable},
	{"soc:qcom,llcc-ddr-lat", cpubwTable},
	{"soc:qcom,cpu-llcc-bw", llccbwTable},
	{"soc:qcom,cpu-llcc-lat", llccbwTable},
}

// Daemon owns every subsystem for the process lifetime.
type Daemon struct {
	cfg    config.Config
	logger logr.Logger

	controller *boost.Controller
	powerSaver *saver.Saver
	events     *bridge.Bridge
	shrinker   *pool.Shrinker
	pools      []*pool.PagePool
	alloc      pool.Allocator

	input    *virtualInputSource
	display  *displayNotifier
	registry *prom.Registry
}

// New builds and connects all subsystems. Workers are running and
// notifiers are registered when New returns without error; on any
// registration failure everything already started is stopped and joined
// first.
func New(cfg config.Config, logger logr.Logger) (*Daemon, error) {
	d := &Daemon{
		cfg:    cfg,
		logger: logger.WithName("daemon"),
	}

	opts := boost.Opts{
		InputBoostDuration: time.Duration(cfg.Boost.InputBoostDurationMS) * time.Millisecond,
		MaxBoostDuration:   time.Duration(cfg.Boost.MaxBoostDurationMS) * time.Millisecond,
		BoostFrequencies: map[boost.DeviceKind]uint64{
			boost.DeviceCPUBandwidth: cfg.Boost.CPUBandwidthFreq,
			boost.DeviceLLCBandwidth: cfg.Boost.LLCBandwidthFreq,
		},
	}
	d.controller = boost.NewController(opts, logger)

	d.powerSaver = saver.New(newCPUPolicy(logger), newVMPolicy(logger), saverOpts(cfg.Saver), logger)
	if cfg.Saver.Enabled {
		for _, sd := range saverDevfreqDevices {
			dev, err := devfreq.New(sd.name, sd.table, nil)
			if err != nil {
				return nil, err
			}
			d.powerSaver.RegisterDevfreq(dev)
		}
	}

	d.alloc = pool.NewHeapAllocator(0)
	d.shrinker = pool.NewShrinker(logger)
	for _, pc := range cfg.Pools {
		var flags pool.AllocFlags
		if pc.Highmem {
			flags |= pool.FlagHighmem
		}
		if !pc.Cached {
			flags |= pool.FlagZero
		}
		p := pool.NewPagePool(d.alloc, flags, pc.Order, pc.Cached)
		d.pools = append(d.pools, p)
		d.shrinker.Register(p)
	}

	if err := d.registerGovernors(); err != nil {
		return nil, err
	}

	listeners := []bridge.ScreenListener{}
	if cfg.Saver.Enabled {
		listeners = append(listeners, d.powerSaver)
	}
	d.events = bridge.New(d.controller, listeners, logger)

	if err := d.controller.Start(); err != nil {
		return nil, fmt.Errorf("starting boost workers: %w", err)
	}
	if cfg.Saver.Enabled {
		d.powerSaver.Start()
	}

	d.input = newVirtualInputSource(logger)
	d.display = &displayNotifier{}
	if err := d.events.Attach(d.input, d.display); err != nil {
		d.controller.Stop()
		if cfg.Saver.Enabled {
			d.powerSaver.Stop()
		}
		return nil, err
	}

	d.registry = prom.NewRegistry()
	d.registry.MustRegister(
		monitoring.NewPoolCollector(d.shrinker, logger.WithName(monitoring.LogTopName)),
		monitoring.NewBoostCollector(d.controller, logger.WithName(monitoring.LogTopName)),
		monitoring.NewSaverCollector(d.powerSaver),
	)

	return d, nil
}

func (d *Daemon) registerGovernors() error {
	cpubw, err := devfreq.New("soc:qcom,cpubw", cpubwTable, nil)
	if err != nil {
		return err
	}
	llccbw, err := devfreq.New("soc:qcom,llccbw", llccbwTable, nil)
	if err != nil {
		return err
	}

	d.controller.RegisterDevice(boost.DeviceCPUBandwidth, cpubw)
	d.controller.RegisterDevice(boost.DeviceLLCBandwidth, llccbw)
	return nil
}

func saverOpts(cfg config.SaverConfig) saver.Opts {
	clusterByName := map[string]saver.CPUCluster{
		"little": saver.ClusterLittle,
		"big":    saver.ClusterBig,
		"prime":  saver.ClusterPrime,
	}
	classByName := map[string]saver.DevfreqClass{
		"cpu-llcc-ddr-bw":  saver.ClassCPULLCCDDRBW,
		"cpu-ddr-latfloor": saver.ClassCPUDDRLatfloor,
		"llcc-ddr-lat":     saver.ClassLLCCDDRLat,
		"cpu-llcc-bw":      saver.ClassCPULLCCBW,
		"cpu-llcc-lat":     saver.ClassCPULLCCLat,
	}

	opts := saver.Opts{
		CPU:              make(map[saver.CPUCluster]saver.ClusterFreqs),
		DevfreqCaps:      make(map[saver.DevfreqClass]uint64),
		DevfreqSoundCaps: make(map[saver.DevfreqClass]uint64),
		ScreenOn:         writeback(cfg.ScreenOn),
		ScreenOff:        writeback(cfg.ScreenOff),
	}
	for name, cc := range cfg.Clusters {
		cluster, ok := clusterByName[name]
		if !ok {
			continue
		}
		opts.CPU[cluster] = saver.ClusterFreqs{
			ScreenOnMin:       cc.ScreenOnMin,
			ScreenOffMax:      cc.ScreenOffMax,
			ScreenOffSoundMax: cc.ScreenOffSoundMax,
		}
	}
	for name, capHz := range cfg.DevfreqCaps {
		if class, ok := classByName[name]; ok {
			opts.DevfreqCaps[class] = capHz
		}
	}
	for name, capHz := range cfg.DevfreqSoundCaps {
		if class, ok := classByName[name]; ok {
			opts.DevfreqSoundCaps[class] = capHz
		}
	}
	return opts
}

func writeback(cfg config.WritebackConfig) saver.WritebackSettings {
	return saver.WritebackSettings{
		Swappiness:              cfg.Swappiness,
		DirtyExpireCentisecs:    cfg.DirtyExpireCentisecs,
		DirtyWritebackCentisecs: cfg.DirtyWritebackCentisecs,
		DirtyBackgroundRatio:    cfg.DirtyBackgroundRatio,
		DirtyRatio:              cfg.DirtyRatio,
	}
}

// Start serves HTTP until ctx is canceled, then shuts everything down in
// reverse start order.
func (d *Daemon) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:    d.cfg.HTTP.Addr(),
		Handler: d.router(),
	}

	errCh := make(chan error, 1)
	go func() {
		d.logger.Info("http server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		d.stop()
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		d.logger.Error(err, "http shutdown")
	}

	d.stop()
	return nil
}

func (d *Daemon) stop() {
	d.logger.V(5).Info("stopping all workers")

	d.controller.Stop()
	if d.cfg.Saver.Enabled {
		d.powerSaver.Stop()
	}
	for _, p := range d.pools {
		d.shrinker.Unregister(p)
		p.Destroy()
	}

	d.logger.V(5).Info("successfully stopped all")
}
