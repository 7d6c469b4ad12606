package model

import "time"

// Pose is a single vehicle position sample in the network's coordinate frame.
// Heading is in degrees and is carried through for collaborators; route
// resolution works from position alone.
type Pose struct {
	X       float64   `json:"x"`
	Y       float64   `json:"y"`
	Z       float64   `json:"z"`
	Heading float64   `json:"heading"`
	Time    time.Time `json:"time,omitempty"`
}

// ManeuverKind classifies an instruction emitted by the navigation engine.
type ManeuverKind string

const (
	ManeuverStraight ManeuverKind = "straight"
	ManeuverLeft     ManeuverKind = "left"
	ManeuverRight    ManeuverKind = "right"
	ManeuverArrived  ManeuverKind = "arrived"
)

// ManeuverEvent is the notification raised when the vehicle approaches a
// junction where the route changes roads, or reaches its destination.
type ManeuverEvent struct {
	ID          string       `json:"id"`
	Instruction string       `json:"instruction"`
	Kind        ManeuverKind `json:"kind"`
	Distance    float64      `json:"distance"`
	Junction    int          `json:"junction"`
	FromRoad    int          `json:"from_road"`
	ToRoad      int          `json:"to_road"` // -1 on arrival
	Time        time.Time    `json:"time"`
}

// Status is the coarse per-tick state reported by the navigation service.
type Status string

const (
	StatusDisabled      Status = "disabled"       // sat-nav switched off
	StatusUnavailable   Status = "unavailable"    // network could not be loaded
	StatusNoDestination Status = "no_destination" // nothing to route to yet
	StatusOffMap        Status = "off_map"        // too far from every known road
	StatusUnreachable   Status = "unreachable"    // no path to the destination
	StatusOnRoute       Status = "on_route"
	StatusArrived       Status = "arrived"
)

// TickResult summarises one processed pose sample.
type TickResult struct {
	Status       Status
	MatchedRoad  int
	RoadDistance float64
	Matched      bool
	Event        *ManeuverEvent
}
