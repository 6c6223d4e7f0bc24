// Package monitoring exposes pool, boost, and saver state as prometheus
// collectors.
package monitoring

import (
	"strconv"

	"github.com/go-logr/logr"
	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/perfmgr/boostd/internal/boost"
	"github.com/perfmgr/boostd/internal/pool"
	"github.com/perfmgr/boostd/internal/saver"
)

// Helper constants for prom Collectors
const (
	promNamespace string = "boostd"

	LogTopName     string = "monitoring"
	poolSubsystem  string = "pool"
	boostSubsystem string = "boost"
	saverSubsystem string = "saver"
)

type collectorImpl struct {
	collectFunc  func(ch chan<- prom.Metric)
	describeFunc func(ch chan<- *prom.Desc)
}

func (c collectorImpl) Collect(ch chan<- prom.Metric) {
	c.collectFunc(ch)
}

func (c collectorImpl) Describe(ch chan<- *prom.Desc) {
	c.describeFunc(ch)
}

// NewPoolCollector builds a Collector reporting per-pool tier counts and
// the global pooled page total for every pool registered with shr.
func NewPoolCollector(shr *pool.Shrinker, log logr.Logger) prom.Collector {
	lowDesc := prom.NewDesc(
		prom.BuildFQName(promNamespace, poolSubsystem, "low_blocks"),
		"Blocks held in the low tier of a pool.",
		[]string{"order", "cached"},
		nil,
	)
	highDesc := prom.NewDesc(
		prom.BuildFQName(promNamespace, poolSubsystem, "high_blocks"),
		"Blocks held in the high tier of a pool.",
		[]string{"order", "cached"},
		nil,
	)
	totalDesc := prom.NewDesc(
		prom.BuildFQName(promNamespace, poolSubsystem, "pages_total"),
		"Pooled base units across all pools.",
		nil,
		nil,
	)

	return collectorImpl{
		describeFunc: func(ch chan<- *prom.Desc) {
			ch <- lowDesc
			ch <- highDesc
			ch <- totalDesc
		},
		collectFunc: func(ch chan<- prom.Metric) {
			for _, p := range shr.Pools() {
				log.V(5).Info("Collecting pool metrics", "order", p.Order())
				orderLabel := strconv.Itoa(int(p.Order()))
				cachedLabel := strconv.FormatBool(p.Cached())
				ch <- prom.MustNewConstMetric(
					lowDesc, prom.GaugeValue, float64(p.LowCount()), orderLabel, cachedLabel)
				ch <- prom.MustNewConstMetric(
					highDesc, prom.GaugeValue, float64(p.HighCount()), orderLabel, cachedLabel)
			}
			ch <- prom.MustNewConstMetric(
				totalDesc, prom.GaugeValue, float64(pool.TotalPages()))
		},
	}
}

// NewBoostCollector builds a Collector reporting each boost device's
// state bits and registration status.
func NewBoostCollector(ctrl *boost.Controller, log logr.Logger) prom.Collector {
	stateDesc := prom.NewDesc(
		prom.BuildFQName(promNamespace, boostSubsystem, "state_bit"),
		"Boost state bits per device (1 when the bit is set).",
		[]string{"device", "bit"},
		nil,
	)
	registeredDesc := prom.NewDesc(
		prom.BuildFQName(promNamespace, boostSubsystem, "device_registered"),
		"Whether a governor is bound to the boost device.",
		[]string{"device"},
		nil,
	)

	boolToFloat := func(b bool) float64 {
		if b {
			return 1
		}
		return 0
	}

	return collectorImpl{
		describeFunc: func(ch chan<- *prom.Desc) {
			ch <- stateDesc
			ch <- registeredDesc
		},
		collectFunc: func(ch chan<- prom.Metric) {
			for _, kind := range boost.DeviceKinds() {
				dev := ctrl.Device(kind)
				log.V(5).Info("Collecting boost metrics", "device", kind.String())
				screenOff, inputBoost, maxBoost := dev.StateBits()
				ch <- prom.MustNewConstMetric(
					stateDesc, prom.GaugeValue, boolToFloat(screenOff), kind.String(), "screen_off")
				ch <- prom.MustNewConstMetric(
					stateDesc, prom.GaugeValue, boolToFloat(inputBoost), kind.String(), "input_boost")
				ch <- prom.MustNewConstMetric(
					stateDesc, prom.GaugeValue, boolToFloat(maxBoost), kind.String(), "max_boost")
				ch <- prom.MustNewConstMetric(
					registeredDesc, prom.GaugeValue, boolToFloat(dev.Registered()), kind.String())
			}
		},
	}
}

// NewSaverCollector builds a Collector reporting the active audio stream
// count.
func NewSaverCollector(s *saver.Saver) prom.Collector {
	streamsDesc := prom.NewDesc(
		prom.BuildFQName(promNamespace, saverSubsystem, "audio_streams"),
		"Active audio streams observed by the power saver.",
		nil,
		nil,
	)

	return collectorImpl{
		describeFunc: func(ch chan<- *prom.Desc) {
			ch <- streamsDesc
		},
		collectFunc: func(ch chan<- prom.Metric) {
			ch <- prom.MustNewConstMetric(
				streamsDesc, prom.GaugeValue, float64(s.Streams()))
		},
	}
}
