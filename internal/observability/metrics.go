package observability

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/signalsfoundry/satnav/model"
)

// NavigationCollector bundles Prometheus metrics for the navigation engine.
// It satisfies core.MetricsRecorder.
type NavigationCollector struct {
	gatherer prometheus.Gatherer

	Ticks          *prometheus.CounterVec
	Recomputations *prometheus.CounterVec
	Maneuvers      *prometheus.CounterVec

	RouteRoadsRemaining prometheus.Gauge
	NetworkRoads        prometheus.Gauge
	NetworkJunctions    prometheus.Gauge

	*PathCollector
}

// NewNavigationCollector registers navigation metrics against the provided
// registerer, defaulting to the global Prometheus registry when nil.
// Collectors already registered under the same name are reused.
func NewNavigationCollector(reg prometheus.Registerer) (*NavigationCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	ticks, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "navigation_ticks_total",
		Help: "Total number of processed pose samples, labeled by resulting status.",
	}, []string{"status"}), "navigation_ticks_total")
	if err != nil {
		return nil, err
	}

	recomputations, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "navigation_route_recomputations_total",
		Help: "Total number of route recomputations, labeled by outcome.",
	}, []string{"outcome"}), "navigation_route_recomputations_total")
	if err != nil {
		return nil, err
	}

	maneuvers, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "navigation_maneuvers_total",
		Help: "Total number of emitted maneuver and arrival notifications, labeled by kind.",
	}, []string{"kind"}), "navigation_maneuvers_total")
	if err != nil {
		return nil, err
	}

	remaining, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "navigation_route_roads_remaining",
		Help: "Number of roads left on the active route.",
	}), "navigation_route_roads_remaining")
	if err != nil {
		return nil, err
	}
	roads, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "navigation_network_roads",
		Help: "Number of roads in the loaded network.",
	}), "navigation_network_roads")
	if err != nil {
		return nil, err
	}
	junctions, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "navigation_network_junctions",
		Help: "Number of junctions in the loaded network.",
	}), "navigation_network_junctions")
	if err != nil {
		return nil, err
	}

	paths, err := NewPathCollector(reg)
	if err != nil {
		return nil, err
	}

	return &NavigationCollector{
		gatherer:            gatherer,
		Ticks:               ticks,
		Recomputations:      recomputations,
		Maneuvers:           maneuvers,
		RouteRoadsRemaining: remaining,
		NetworkRoads:        roads,
		NetworkJunctions:    junctions,
		PathCollector:       paths,
	}, nil
}

// Handler exposes a ready-to-use /metrics handler.
func (c *NavigationCollector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// ObserveTick counts one processed pose.
func (c *NavigationCollector) ObserveTick(status model.Status) {
	if c == nil || c.Ticks == nil {
		return
	}
	c.Ticks.WithLabelValues(string(status)).Inc()
}

// ObserveRecomputation counts a route recomputation and records how long the
// path search took.
func (c *NavigationCollector) ObserveRecomputation(outcome string, d time.Duration) {
	if c == nil {
		return
	}
	if c.Recomputations != nil {
		c.Recomputations.WithLabelValues(outcome).Inc()
	}
	c.PathCollector.ObservePathComputation(d)
}

// ObserveManeuver counts an emitted notification.
func (c *NavigationCollector) ObserveManeuver(kind model.ManeuverKind) {
	if c == nil || c.Maneuvers == nil {
		return
	}
	c.Maneuvers.WithLabelValues(string(kind)).Inc()
}

// SetRouteRoadsRemaining updates the remaining-roads gauge.
func (c *NavigationCollector) SetRouteRoadsRemaining(n int) {
	if c == nil || c.RouteRoadsRemaining == nil {
		return
	}
	c.RouteRoadsRemaining.Set(float64(n))
}

// SetNetworkSize updates the network gauges after a load.
func (c *NavigationCollector) SetNetworkSize(roads, junctions int) {
	if c == nil {
		return
	}
	if c.NetworkRoads != nil {
		c.NetworkRoads.Set(float64(roads))
	}
	if c.NetworkJunctions != nil {
		c.NetworkJunctions.Set(float64(junctions))
	}
}

// SetPathCacheHitRatio sets the shortest-path cache hit ratio.
func (c *NavigationCollector) SetPathCacheHitRatio(ratio float64) {
	if c == nil {
		return
	}
	c.PathCollector.SetPathCacheHitRatio(ratio)
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
