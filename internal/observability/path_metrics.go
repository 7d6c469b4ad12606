package observability

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PathCollector exposes shortest-path specific Prometheus metrics.
type PathCollector struct {
	gatherer prometheus.Gatherer

	PathComputationDuration prometheus.Histogram
	PathCacheHitRatio       prometheus.Gauge
}

// NewPathCollector registers path metrics against the provided registerer.
func NewPathCollector(reg prometheus.Registerer) (*PathCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	pathHistogram := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "navigation_path_computation_duration_seconds",
		Help:    "Duration of route recomputations including the shortest-path search.",
		Buckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
	})
	pathHistogram, err := registerHistogram(reg, pathHistogram, "navigation_path_computation_duration_seconds")
	if err != nil {
		return nil, err
	}

	cacheRatio := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "navigation_path_cache_hit_ratio",
		Help: "Hit ratio for the shortest-path cache.",
	})
	cacheRatio, err = registerGauge(reg, cacheRatio, "navigation_path_cache_hit_ratio")
	if err != nil {
		return nil, err
	}

	return &PathCollector{
		gatherer:                gatherer,
		PathComputationDuration: pathHistogram,
		PathCacheHitRatio:       cacheRatio,
	}, nil
}

// Gatherer returns the Prometheus gatherer associated with the collector.
func (c *PathCollector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

// ObservePathComputation records a path computation duration measurement.
func (c *PathCollector) ObservePathComputation(d time.Duration) {
	if c == nil || c.PathComputationDuration == nil {
		return
	}
	c.PathComputationDuration.Observe(d.Seconds())
}

// SetPathCacheHitRatio sets the path cache hit ratio, clamped to [0,1].
func (c *PathCollector) SetPathCacheHitRatio(ratio float64) {
	if c == nil || c.PathCacheHitRatio == nil {
		return
	}
	if ratio < 0 {
		ratio = 0
	}
	if ratio > 1 {
		ratio = 1
	}
	c.PathCacheHitRatio.Set(ratio)
}

func registerHistogram(reg prometheus.Registerer, hist prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(hist); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return hist, nil
}
