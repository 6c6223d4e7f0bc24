package daemon

import (
	"sync"

	"github.com/go-logr/logr"

	"github.com/perfmgr/boostd/internal/saver"
)

// Hardware frequency ranges of the reference platform's clusters, kHz.
var clusterBounds = map[saver.CPUCluster][2]uint64{
	saver.ClusterLittle: {300000, 1804800},
	saver.ClusterBig:    {710400, 2419200},
	saver.ClusterPrime:  {825600, 2841600},
}

// cpuPolicy records the limits the saver pushes per cluster. A real
// deployment would write them through to cpufreq.
type cpuPolicy struct {
	logger logr.Logger

	mu     sync.Mutex
	limits map[saver.CPUCluster][2]uint64
}

func newCPUPolicy(logger logr.Logger) *cpuPolicy {
	return &cpuPolicy{
		logger: logger.WithName("CPUPolicy"),
		limits: make(map[saver.CPUCluster][2]uint64),
	}
}

func (p *cpuPolicy) HWBounds(cluster saver.CPUCluster) (uint64, uint64) {
	b := clusterBounds[cluster]
	return b[0], b[1]
}

func (p *cpuPolicy) SetLimits(cluster saver.CPUCluster, minHz, maxHz uint64) {
	p.mu.Lock()
	p.limits[cluster] = [2]uint64{minHz, maxHz}
	p.mu.Unlock()

	p.logger.V(5).Info("cluster limits updated",
		"cluster", cluster.String(), "min", minHz, "max", maxHz)
}

// Limits returns the last limits applied to a cluster.
func (p *cpuPolicy) Limits(cluster saver.CPUCluster) (uint64, uint64, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	l, ok := p.limits[cluster]
	return l[0], l[1], ok
}

// vmPolicy records the writeback settings the saver applies.
type vmPolicy struct {
	logger logr.Logger

	mu      sync.Mutex
	current saver.WritebackSettings
}

func newVMPolicy(logger logr.Logger) *vmPolicy {
	return &vmPolicy{logger: logger.WithName("VMPolicy")}
}

func (p *vmPolicy) Apply(s saver.WritebackSettings) {
	p.mu.Lock()
	p.current = s
	p.mu.Unlock()

	p.logger.V(5).Info("writeback policy updated", "swappiness", s.Swappiness)
}

// Current returns the last applied settings.
func (p *vmPolicy) Current() saver.WritebackSettings {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}
