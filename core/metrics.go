package core

import (
	"time"

	"github.com/signalsfoundry/satnav/model"
)

// Recomputation outcomes reported to MetricsRecorder.
const (
	RecomputeComputed    = "computed"
	RecomputeUnreachable = "unreachable"
)

// MetricsRecorder receives navigation measurements. Implementations must be
// safe for concurrent use.
type MetricsRecorder interface {
	ObserveTick(status model.Status)
	ObserveRecomputation(outcome string, d time.Duration)
	ObserveManeuver(kind model.ManeuverKind)
	SetRouteRoadsRemaining(n int)
	SetNetworkSize(roads, junctions int)
	SetPathCacheHitRatio(ratio float64)
}

type noopMetrics struct{}

func (noopMetrics) ObserveTick(model.Status)                   {}
func (noopMetrics) ObserveRecomputation(string, time.Duration) {}
func (noopMetrics) ObserveManeuver(model.ManeuverKind)         {}
func (noopMetrics) SetRouteRoadsRemaining(int)                 {}
func (noopMetrics) SetNetworkSize(int, int)                    {}
func (noopMetrics) SetPathCacheHitRatio(float64)               {}
