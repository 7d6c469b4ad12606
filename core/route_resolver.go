package core

import (
	"context"
	"time"

	"github.com/signalsfoundry/satnav/internal/logging"
	"github.com/signalsfoundry/satnav/model"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const tracerName = "github.com/signalsfoundry/satnav/core"

// NoDestination marks a RouteState without a destination.
const NoDestination = -1

// RouteState is the active route of one vehicle.
//
// Roads[0] is the road currently being driven. Junctions holds the junction
// path the route was computed from; its front is dropped together with each
// completed road but it always keeps the destination.
type RouteState struct {
	Destination     int
	Junctions       []int
	Roads           []int
	ManeuverEmitted bool
	Unreachable     bool
	Arrived         bool
}

// NewRouteState returns a state with no destination and an empty route.
func NewRouteState() RouteState {
	return RouteState{Destination: NoDestination}
}

// HasDestination reports whether a destination is set.
func (s *RouteState) HasDestination() bool {
	return s.Destination != NoDestination
}

// SetDestination selects a new destination and forces a recompute on the
// next step.
func (s *RouteState) SetDestination(junction int) {
	s.Destination = junction
	s.clearRoute()
}

// ClearDestination drops the destination and the route.
func (s *RouteState) ClearDestination() {
	s.Destination = NoDestination
	s.clearRoute()
}

func (s *RouteState) clearRoute() {
	s.Junctions = nil
	s.Roads = nil
	s.ManeuverEmitted = false
	s.Unreachable = false
	s.Arrived = false
}

// Clone returns a deep copy of s.
func (s RouteState) Clone() RouteState {
	s.Junctions = append([]int(nil), s.Junctions...)
	s.Roads = append([]int(nil), s.Roads...)
	return s
}

func (s *RouteState) onRoute(road int) bool {
	for _, r := range s.Roads {
		if r == road {
			return true
		}
	}
	return false
}

// popRoad drops the completed front road and its entry junction.
func (s *RouteState) popRoad() {
	s.Roads = s.Roads[1:]
	if len(s.Junctions) > 1 {
		s.Junctions = s.Junctions[1:]
	}
	s.ManeuverEmitted = false
}

// Match is the map-matching result fed into a resolver step.
type Match struct {
	RoadID   int
	Distance float64
	OK       bool
}

// StepResult is what one resolver step decided.
type StepResult struct {
	Status     model.Status
	Event      *model.ManeuverEvent
	Recomputed bool
}

// RouteResolver advances a RouteState against map-matching results. It holds
// no per-vehicle data and is safe for concurrent use.
type RouteResolver struct {
	store   *NetworkStore
	graph   *NavigationGraph
	paths   *PathCache
	cfg     NavigationConfig
	log     logging.Logger
	metrics MetricsRecorder
}

// NewRouteResolver wires a resolver over an immutable network.
func NewRouteResolver(store *NetworkStore, graph *NavigationGraph, paths *PathCache, cfg NavigationConfig, log logging.Logger, metrics MetricsRecorder) *RouteResolver {
	if log == nil {
		log = logging.Noop()
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &RouteResolver{
		store:   store,
		graph:   graph,
		paths:   paths,
		cfg:     cfg.ApplyDefaults(),
		log:     log,
		metrics: metrics,
	}
}

// Step runs one navigation update for a vehicle at position.
//
// A vehicle at or beyond the off-route tolerance from every road is off map
// and its route is left untouched. Otherwise completed roads are dropped
// from the front of the route, and a route that does not contain the matched
// road is recomputed from a junction of that road. Finally at most one
// maneuver or arrival event is produced per route leg.
func (r *RouteResolver) Step(ctx context.Context, state *RouteState, position Vec3, m Match) StepResult {
	if !m.OK || m.Distance >= r.cfg.OffRouteTolerance {
		return StepResult{Status: model.StatusOffMap}
	}
	if !state.HasDestination() {
		return StepResult{Status: model.StatusNoDestination}
	}

	var res StepResult
	if state.onRoute(m.RoadID) {
		for state.Roads[0] != m.RoadID {
			state.popRoad()
			state.Arrived = false
		}
	} else {
		r.recompute(ctx, state, m.RoadID)
		res.Recomputed = true
	}

	if state.Unreachable || len(state.Roads) == 0 {
		res.Status = model.StatusUnreachable
		return res
	}

	res.Event = r.maybeEmit(state, position)
	res.Status = model.StatusOnRoute
	if state.Arrived {
		res.Status = model.StatusArrived
	}
	return res
}

func (r *RouteResolver) recompute(ctx context.Context, state *RouteState, matched int) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "navigation.RecomputeRoute")
	defer span.End()
	start := time.Now()

	log := r.logger(ctx)
	wasUnreachable := state.Unreachable
	state.clearRoute()
	span.SetAttributes(
		attribute.Int("navigation.matched_road", matched),
		attribute.Int("navigation.destination", state.Destination),
	)

	touching := r.store.JunctionsForRoad(matched)
	if len(touching) == 0 {
		state.Unreachable = true
		r.metrics.ObserveRecomputation(RecomputeUnreachable, time.Since(start))
		span.SetStatus(codes.Error, "matched road has no junction")
		if !wasUnreachable {
			log.Warn(ctx, "route recompute: matched road touches no junction",
				logging.Int("road_id", matched),
			)
		}
		return
	}
	origin := touching[0]
	span.SetAttributes(attribute.Int("navigation.origin", origin))

	path, hit := r.paths.ShortestPath(origin, state.Destination)
	r.metrics.SetPathCacheHitRatio(r.paths.HitRatio())
	span.SetAttributes(attribute.Bool("navigation.path_cache_hit", hit))

	if len(path) == 0 {
		state.Unreachable = true
		r.metrics.ObserveRecomputation(RecomputeUnreachable, time.Since(start))
		span.SetStatus(codes.Error, "destination unreachable")
		if !wasUnreachable {
			log.Warn(ctx, "route recompute: destination unreachable",
				logging.Int("origin", origin),
				logging.Int("destination", state.Destination),
			)
		}
		return
	}

	roads, err := r.graph.PathRoads(path)
	if err != nil {
		state.Unreachable = true
		r.metrics.ObserveRecomputation(RecomputeUnreachable, time.Since(start))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Error(ctx, "route recompute: inconsistent path", logging.Error(err))
		return
	}
	path, roads = mergeRoadRuns(path, roads)
	if len(roads) == 0 || roads[0] != matched {
		roads = append([]int{matched}, roads...)
	}

	state.Junctions = path
	state.Roads = roads
	r.metrics.ObserveRecomputation(RecomputeComputed, time.Since(start))
	span.SetAttributes(attribute.Int("navigation.route_roads", len(roads)))
	log.Debug(ctx, "route recomputed",
		logging.Int("origin", origin),
		logging.Int("destination", state.Destination),
		logging.Ints("junctions", path),
		logging.Ints("roads", roads),
		logging.Bool("cache_hit", hit),
	)
}

// mergeRoadRuns collapses consecutive edges along the same road into one
// leg. The junctions passed through in the middle of a road are dropped, so
// junctions[i+1] stays the junction where roads[i] ends.
func mergeRoadRuns(junctions, roads []int) ([]int, []int) {
	if len(roads) < 2 {
		return junctions, roads
	}
	outJ := make([]int, 0, len(junctions))
	outR := make([]int, 0, len(roads))
	outJ = append(outJ, junctions[0])
	for i, road := range roads {
		if n := len(outR); n > 0 && outR[n-1] == road {
			outJ[len(outJ)-1] = junctions[i+1]
			continue
		}
		outR = append(outR, road)
		outJ = append(outJ, junctions[i+1])
	}
	return outJ, outR
}

// logger prefers the tick-scoped logger carried by ctx.
func (r *RouteResolver) logger(ctx context.Context) logging.Logger {
	if l := logging.LoggerFromContext(ctx); l != nil {
		return l
	}
	return r.log
}

func (r *RouteResolver) maybeEmit(state *RouteState, position Vec3) *model.ManeuverEvent {
	if state.ManeuverEmitted {
		return nil
	}
	if len(state.Roads) == 1 {
		return r.arrival(state, position)
	}
	return r.maneuver(state, position)
}

func (r *RouteResolver) arrival(state *RouteState, position Vec3) *model.ManeuverEvent {
	final, ok := r.store.Junction(state.Destination)
	if !ok {
		return nil
	}
	d := position.DistanceTo(final.Location)
	if d >= r.cfg.ArrivalDistance {
		return nil
	}
	state.ManeuverEmitted = true
	state.Arrived = true
	return &model.ManeuverEvent{
		Instruction: Instruction(model.ManeuverArrived, d),
		Kind:        model.ManeuverArrived,
		Distance:    d,
		Junction:    final.Index,
		FromRoad:    state.Roads[0],
		ToRoad:      -1,
	}
}

func (r *RouteResolver) maneuver(state *RouteState, position Vec3) *model.ManeuverEvent {
	current, next := state.Roads[0], state.Roads[1]
	at := r.changeJunction(state, current, next)
	if at < 0 {
		return nil
	}
	junction, _ := r.store.Junction(state.Junctions[at])
	d := position.DistanceTo(junction.Location)
	if d >= r.cfg.ManeuverDistance {
		return nil
	}

	currentRoad, _ := r.store.Road(current)
	nextRoad, _ := r.store.Road(next)
	in := ManeuverInput{
		Current:  currentRoad,
		Next:     nextRoad,
		Junction: junction.Location,
		Vehicle:  position,
	}
	if at+1 < len(state.Junctions) {
		if onward, ok := r.store.Junction(state.Junctions[at+1]); ok {
			loc := onward.Location
			in.Onward = &loc
		}
	}
	kind := DeriveManeuver(in, r.cfg.LookbackPoints, r.cfg.StraightDot)

	state.ManeuverEmitted = true
	return &model.ManeuverEvent{
		Instruction: Instruction(kind, d),
		Kind:        kind,
		Distance:    d,
		Junction:    junction.Index,
		FromRoad:    current,
		ToRoad:      next,
	}
}

// changeJunction returns the position in state.Junctions where the route
// leaves current for next, or -1. The route's own alignment is tried first:
// Junctions[1] ends Roads[0], or Junctions[0] when the matched road was put in
// front of the computed path.
func (r *RouteResolver) changeJunction(state *RouteState, current, next int) int {
	joins := func(i int) bool {
		if i < 0 || i >= len(state.Junctions) {
			return false
		}
		j, ok := r.store.Junction(state.Junctions[i])
		return ok && j.HasRoad(current) && j.HasRoad(next)
	}
	if at := len(state.Junctions) - len(state.Roads); joins(at) {
		return at
	}
	for i := range state.Junctions {
		if joins(i) {
			return i
		}
	}
	return -1
}
