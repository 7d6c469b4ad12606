package core

import (
	"fmt"
	"math"

	"github.com/signalsfoundry/satnav/model"
)

// ManeuverInput describes one road change at a junction.
type ManeuverInput struct {
	Current  *Road
	Next     *Road
	Junction Vec3
	// Vehicle is the current position; it tells which way the vehicle runs
	// along Current.
	Vehicle Vec3
	// Onward, when set, is the junction the route heads for on Next. It
	// tells which way the vehicle will leave along Next. Without it the
	// vehicle is assumed to head for Next's farther end.
	Onward *Vec3
}

// DeriveManeuver classifies the turn from Current onto Next.
//
// The incoming vector runs from a point lookback vertices before the
// junction up to the junction's vertex on Current; the outgoing vector runs
// from the junction's vertex on Next lookback vertices onward. Skipping the
// points right at the junction smooths out recording jitter. With the
// junction at a road end this is "which end is nearer" plus a fixed look-back.
//
// Normalised vectors whose dot product exceeds straightDot are straight.
// Otherwise the horizontal cross product decides: with Z up, a positive
// value is a counter-clockwise (left) turn and a negative one a right turn.
// An exact reversal counts as left.
func DeriveManeuver(in ManeuverInput, lookback int, straightDot float64) model.ManeuverKind {
	if in.Current == nil || in.Next == nil {
		return model.ManeuverStraight
	}
	if lookback < 1 {
		lookback = 1
	}

	incoming := incomingVector(in.Current, in.Junction, in.Vehicle, lookback).Normalize()
	outgoing := outgoingVector(in.Next, in.Junction, in.Onward, lookback).Normalize()
	if incoming.Norm() == 0 || outgoing.Norm() == 0 {
		return model.ManeuverStraight
	}

	if incoming.Dot(outgoing) > straightDot {
		return model.ManeuverStraight
	}
	if incoming.Cross2D(outgoing) < 0 {
		return model.ManeuverRight
	}
	return model.ManeuverLeft
}

// junctionVertex returns the vertex index nearest to the junction's
// projection and the projection's offset along the polyline.
func junctionVertex(points []Vec3, junction Vec3) (int, float64) {
	proj := projectOntoPolyline(junction, points)
	if len(points) < 2 {
		return 0, proj.Offset
	}
	anchor := proj.Segment
	if proj.T >= 0.5 {
		anchor++
	}
	return anchor, proj.Offset
}

func incomingVector(r *Road, junction, vehicle Vec3, lookback int) Vec3 {
	points := r.Points
	n := len(points)
	if n < 2 {
		return Vec3{}
	}
	anchor, junctionOffset := junctionVertex(points, junction)
	vehicleOffset := projectOntoPolyline(vehicle, points).Offset

	// towardsEnd: travelling towards higher indices.
	var towardsEnd bool
	switch {
	case vehicleOffset < junctionOffset:
		towardsEnd = true
	case vehicleOffset > junctionOffset:
		towardsEnd = false
	default:
		// Vehicle level with the junction: approach from the farther end.
		towardsEnd = junctionOffset > r.Length/2
	}

	var from int
	if towardsEnd {
		from = max(0, anchor-lookback)
	} else {
		from = min(n-1, anchor+lookback)
	}
	if from == anchor {
		return Vec3{}
	}
	return points[anchor].Sub(points[from])
}

func outgoingVector(r *Road, junction Vec3, onward *Vec3, lookback int) Vec3 {
	points := r.Points
	n := len(points)
	if n < 2 {
		return Vec3{}
	}
	anchor, junctionOffset := junctionVertex(points, junction)

	forward := junctionOffset <= r.Length/2
	if onward != nil {
		forward = projectOntoPolyline(*onward, points).Offset >= junctionOffset
	}

	var to int
	if forward {
		to = min(n-1, anchor+lookback)
	} else {
		to = max(0, anchor-lookback)
	}
	if to == anchor {
		return Vec3{}
	}
	return points[to].Sub(points[anchor])
}

// Instruction renders the human-readable text for a maneuver.
func Instruction(kind model.ManeuverKind, distance float64) string {
	d := math.Round(distance)
	switch kind {
	case model.ManeuverLeft:
		return fmt.Sprintf("Turn left in %.0fm", d)
	case model.ManeuverRight:
		return fmt.Sprintf("Turn right in %.0fm", d)
	case model.ManeuverArrived:
		return "You have arrived at your destination"
	default:
		return fmt.Sprintf("Continue straight in %.0fm", d)
	}
}
