package core

import (
	"context"
	"sync"
	"testing"

	"github.com/signalsfoundry/satnav/internal/logging"
	"github.com/signalsfoundry/satnav/model"
)

type logEntry struct {
	level string
	msg   string
}

// recordingLogger captures log calls for assertions.
type recordingLogger struct {
	mu      sync.Mutex
	entries []logEntry
}

func (l *recordingLogger) add(level, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, logEntry{level: level, msg: msg})
}

func (l *recordingLogger) Debug(_ context.Context, msg string, _ ...logging.Field) { l.add("debug", msg) }
func (l *recordingLogger) Info(_ context.Context, msg string, _ ...logging.Field)  { l.add("info", msg) }
func (l *recordingLogger) Warn(_ context.Context, msg string, _ ...logging.Field)  { l.add("warn", msg) }
func (l *recordingLogger) Error(_ context.Context, msg string, _ ...logging.Field) { l.add("error", msg) }
func (l *recordingLogger) With(...logging.Field) logging.Logger                    { return l }

func (l *recordingLogger) count(level string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, e := range l.entries {
		if e.level == level {
			n++
		}
	}
	return n
}

type resolverFixture struct {
	store    *NetworkStore
	matcher  *MapMatcher
	resolver *RouteResolver
	log      *recordingLogger
}

func newResolverFixture(t *testing.T, desc *NetworkDescription) *resolverFixture {
	t.Helper()
	store := mustStore(t, desc)
	graph := BuildNavigationGraph(store)
	paths, err := NewPathCache(graph, 16)
	if err != nil {
		t.Fatalf("NewPathCache: %v", err)
	}
	log := &recordingLogger{}
	return &resolverFixture{
		store:    store,
		matcher:  NewMapMatcher(store),
		resolver: NewRouteResolver(store, graph, paths, DefaultNavigationConfig(), log, nil),
		log:      log,
	}
}

// step matches p and runs one resolver step.
func (f *resolverFixture) step(state *RouteState, p Vec3) StepResult {
	id, d, ok := f.matcher.ClosestRoad(p)
	return f.resolver.Step(context.Background(), state, p, Match{RoadID: id, Distance: d, OK: ok})
}

func TestRouteResolver_StraightThroughToArrival(t *testing.T) {
	f := newResolverFixture(t, lineNetwork())
	state := NewRouteState()
	state.SetDestination(2)

	res := f.step(&state, Vec3{X: 10, Y: 2})
	if res.Status != model.StatusOnRoute || !res.Recomputed || res.Event != nil {
		t.Fatalf("first step = %+v; want on_route, recomputed, no event", res)
	}
	if len(state.Roads) != 2 || state.Roads[0] != 0 || state.Roads[1] != 1 {
		t.Fatalf("route roads = %v, want [0 1]", state.Roads)
	}
	if len(state.Junctions) != 3 {
		t.Fatalf("route junctions = %v, want [0 1 2]", state.Junctions)
	}

	res = f.step(&state, Vec3{X: 200})
	if res.Event == nil {
		t.Fatalf("expected a maneuver 100 before junction 1")
	}
	if res.Event.Kind != model.ManeuverStraight || res.Event.Junction != 1 ||
		res.Event.FromRoad != 0 || res.Event.ToRoad != 1 {
		t.Fatalf("event = %+v", res.Event)
	}
	if res.Event.Instruction != "Continue straight in 100m" {
		t.Fatalf("instruction = %q", res.Event.Instruction)
	}
	if res.Recomputed {
		t.Fatalf("staying on the route must not recompute")
	}

	// Same leg: no second notification.
	for _, x := range []float64{230, 260, 290} {
		if res := f.step(&state, Vec3{X: x}); res.Event != nil {
			t.Fatalf("duplicate event at x=%v: %+v", x, res.Event)
		}
	}

	// Crossing onto road 1 advances the leg.
	res = f.step(&state, Vec3{X: 350})
	if res.Status != model.StatusOnRoute || res.Recomputed {
		t.Fatalf("leg advance = %+v", res)
	}
	if len(state.Roads) != 1 || state.Roads[0] != 1 || state.ManeuverEmitted {
		t.Fatalf("after leg advance state = %+v", state)
	}
	if len(state.Junctions) != 2 || state.Junctions[0] != 1 {
		t.Fatalf("after leg advance junctions = %v, want [1 2]", state.Junctions)
	}

	res = f.step(&state, Vec3{X: 560})
	if res.Status != model.StatusArrived || res.Event == nil || res.Event.Kind != model.ManeuverArrived {
		t.Fatalf("arrival step = %+v", res)
	}
	if res.Event.ToRoad != -1 || res.Event.Junction != 2 {
		t.Fatalf("arrival event = %+v", res.Event)
	}

	res = f.step(&state, Vec3{X: 590})
	if res.Status != model.StatusArrived || res.Event != nil {
		t.Fatalf("after arrival = %+v; want arrived with no event", res)
	}
}

func TestRouteResolver_TurnsAtCross(t *testing.T) {
	cases := []struct {
		dest int
		kind model.ManeuverKind
		text string
	}{
		{2, model.ManeuverRight, "Turn right in 100m"},
		{3, model.ManeuverLeft, "Turn left in 100m"},
		{4, model.ManeuverStraight, "Continue straight in 100m"},
	}
	for _, tc := range cases {
		f := newResolverFixture(t, crossNetwork())
		state := NewRouteState()
		state.SetDestination(tc.dest)

		if res := f.step(&state, Vec3{Y: -250}); res.Event != nil {
			t.Fatalf("dest %d: early event %+v", tc.dest, res.Event)
		}
		res := f.step(&state, Vec3{Y: -100})
		if res.Event == nil || res.Event.Kind != tc.kind || res.Event.Instruction != tc.text {
			t.Fatalf("dest %d: event = %+v, want %s", tc.dest, res.Event, tc.text)
		}
	}
}

func TestRouteResolver_OffRouteToleranceBoundary(t *testing.T) {
	f := newResolverFixture(t, lineNetwork())
	tol := DefaultNavigationConfig().OffRouteTolerance

	state := NewRouteState()
	state.SetDestination(2)
	res := f.resolver.Step(context.Background(), &state, Vec3{X: 100, Y: tol}, Match{RoadID: 0, Distance: tol, OK: true})
	if res.Status != model.StatusOffMap || res.Recomputed {
		t.Fatalf("distance == tolerance: %+v; want off_map without recompute", res)
	}
	if state.Roads != nil || state.Destination != 2 {
		t.Fatalf("off-map step changed the route: %+v", state)
	}

	res = f.resolver.Step(context.Background(), &state, Vec3{X: 100, Y: tol - 0.001}, Match{RoadID: 0, Distance: tol - 0.001, OK: true})
	if res.Status != model.StatusOnRoute || !res.Recomputed {
		t.Fatalf("distance just inside tolerance: %+v; want on_route with recompute", res)
	}
}

func TestRouteResolver_OffMapFreezesRoute(t *testing.T) {
	f := newResolverFixture(t, lineNetwork())
	state := NewRouteState()
	state.SetDestination(2)
	f.step(&state, Vec3{X: 10})
	before := state.Clone()

	if res := f.step(&state, Vec3{X: 100, Y: 400}); res.Status != model.StatusOffMap {
		t.Fatalf("status = %s, want off_map", res.Status)
	}
	if len(state.Roads) != len(before.Roads) || len(state.Junctions) != len(before.Junctions) {
		t.Fatalf("route changed while off map: %+v → %+v", before, state)
	}

	res := f.resolver.Step(context.Background(), &state, Vec3{}, Match{})
	if res.Status != model.StatusOffMap {
		t.Fatalf("unmatched step = %s, want off_map", res.Status)
	}
}

func TestRouteResolver_NoDestination(t *testing.T) {
	f := newResolverFixture(t, lineNetwork())
	state := NewRouteState()
	res := f.step(&state, Vec3{X: 10})
	if res.Status != model.StatusNoDestination || res.Event != nil || res.Recomputed {
		t.Fatalf("no destination step = %+v", res)
	}
}

func TestRouteResolver_Unreachable(t *testing.T) {
	desc := lineNetwork()
	desc.Roads = append(desc.Roads, road(2, straightPath(Vec3{Y: 500}, Vec3{X: 100, Y: 500}, 50)))
	desc.Junctions = append(desc.Junctions, junction(0, 500, 0, 2), junction(100, 500, 0, 2))
	f := newResolverFixture(t, desc)

	state := NewRouteState()
	state.SetDestination(4)
	for i := 0; i < 3; i++ {
		res := f.step(&state, Vec3{X: 10 + float64(i)*10})
		if res.Status != model.StatusUnreachable || res.Event != nil {
			t.Fatalf("step %d = %+v; want unreachable", i, res)
		}
	}
	if !state.Unreachable {
		t.Fatalf("state.Unreachable not set")
	}
	if got := f.log.count("warn"); got != 1 {
		t.Fatalf("unreachable warned %d times, want once", got)
	}

	state.SetDestination(2)
	if res := f.step(&state, Vec3{X: 40}); res.Status != model.StatusOnRoute {
		t.Fatalf("after switching destination = %s, want on_route", res.Status)
	}
}

func TestRouteResolver_DestinationOnMatchedRoad(t *testing.T) {
	f := newResolverFixture(t, lineNetwork())
	state := NewRouteState()
	state.SetDestination(0)

	res := f.step(&state, Vec3{X: 200})
	if res.Status != model.StatusOnRoute || len(state.Roads) != 1 || state.Roads[0] != 0 {
		t.Fatalf("step = %+v, roads %v; want on_route along [0]", res, state.Roads)
	}
	res = f.step(&state, Vec3{X: 20})
	if res.Status != model.StatusArrived || res.Event == nil || res.Event.Kind != model.ManeuverArrived {
		t.Fatalf("arrival = %+v", res)
	}
}

func TestRouteResolver_RecomputesAfterWrongTurn(t *testing.T) {
	f := newResolverFixture(t, crossNetwork())
	state := NewRouteState()
	state.SetDestination(2)

	f.step(&state, Vec3{Y: -200})
	f.step(&state, Vec3{Y: -100})
	if !state.ManeuverEmitted {
		t.Fatalf("expected the turn to have been announced")
	}

	// Vehicle went west instead of east.
	res := f.step(&state, Vec3{X: -100})
	if !res.Recomputed {
		t.Fatalf("leaving the route must recompute")
	}
	if len(state.Roads) != 2 || state.Roads[0] != 2 || state.Roads[1] != 1 {
		t.Fatalf("recomputed roads = %v, want [2 1]", state.Roads)
	}
	if res.Event == nil || res.Event.Kind != model.ManeuverStraight || res.Event.Junction != 1 {
		t.Fatalf("event after recompute = %+v; want straight at junction 1", res.Event)
	}
}

func TestRouteState_SetDestinationResetsRoute(t *testing.T) {
	state := RouteState{Destination: 1, Junctions: []int{0, 1}, Roads: []int{0}, ManeuverEmitted: true, Arrived: true}
	clone := state.Clone()
	clone.Roads[0] = 9
	if state.Roads[0] != 0 {
		t.Fatalf("Clone shares storage")
	}

	state.SetDestination(3)
	if state.Destination != 3 || state.Roads != nil || state.Junctions != nil || state.ManeuverEmitted || state.Arrived {
		t.Fatalf("SetDestination left stale route: %+v", state)
	}
	state.ClearDestination()
	if state.HasDestination() {
		t.Fatalf("ClearDestination kept destination %d", state.Destination)
	}
}

// throughRoadNetwork has R0 running east through J0, J1 and J2, and R1
// leaving J2 north to J3.
func throughRoadNetwork() *NetworkDescription {
	return &NetworkDescription{
		Roads: []RoadRecord{
			road(0, straightPath(Vec3{}, Vec3{X: 600}, 30)),
			road(1, straightPath(Vec3{X: 600}, Vec3{X: 600, Y: 300}, 30)),
		},
		Junctions: []JunctionRecord{
			junction(0, 0, 0, 0),
			junction(300, 0, 0, 0),
			junction(600, 0, 0, 0, 1),
			junction(600, 300, 0, 1),
		},
	}
}

func TestRouteResolver_RoadThroughSeveralJunctions(t *testing.T) {
	f := newResolverFixture(t, throughRoadNetwork())
	state := NewRouteState()
	state.SetDestination(3)

	var events []*model.ManeuverEvent
	for _, x := range []float64{100, 200, 350, 460, 500, 550, 580} {
		res := f.step(&state, Vec3{X: x})
		if res.Status != model.StatusOnRoute {
			t.Fatalf("x=%v: status = %s, want on_route", x, res.Status)
		}
		for i := 1; i < len(state.Roads); i++ {
			if state.Roads[i] == state.Roads[i-1] {
				t.Fatalf("x=%v: route roads %v repeat a road", x, state.Roads)
			}
		}
		if res.Event != nil {
			events = append(events, res.Event)
		}
	}

	if len(state.Roads) != 2 || state.Roads[0] != 0 || state.Roads[1] != 1 {
		t.Fatalf("route roads = %v, want [0 1]", state.Roads)
	}
	if len(state.Junctions) != 3 || state.Junctions[1] != 2 {
		t.Fatalf("route junctions = %v, want [0 2 3]", state.Junctions)
	}
	if len(events) != 1 {
		t.Fatalf("got %d maneuvers, want exactly one: %+v", len(events), events)
	}
	ev := events[0]
	if ev.Junction != 2 || ev.Kind != model.ManeuverLeft || ev.FromRoad != 0 || ev.ToRoad != 1 {
		t.Fatalf("maneuver = %+v; want left from road 0 to road 1 at junction 2", ev)
	}
	if ev.Instruction != "Turn left in 140m" {
		t.Fatalf("instruction = %q", ev.Instruction)
	}

	if res := f.step(&state, Vec3{X: 600, Y: 100}); res.Status != model.StatusOnRoute || len(state.Roads) != 1 {
		t.Fatalf("after turning = %+v, roads %v", res, state.Roads)
	}
	res := f.step(&state, Vec3{X: 600, Y: 270})
	if res.Status != model.StatusArrived || res.Event == nil || res.Event.Junction != 3 {
		t.Fatalf("arrival = %+v", res)
	}
}

func TestMergeRoadRuns(t *testing.T) {
	junctions, roads := mergeRoadRuns([]int{0, 1, 2, 3, 4}, []int{7, 7, 8, 8})
	if len(roads) != 2 || roads[0] != 7 || roads[1] != 8 {
		t.Fatalf("roads = %v, want [7 8]", roads)
	}
	if len(junctions) != 3 || junctions[0] != 0 || junctions[1] != 2 || junctions[2] != 4 {
		t.Fatalf("junctions = %v, want [0 2 4]", junctions)
	}

	junctions, roads = mergeRoadRuns([]int{5}, []int{})
	if len(junctions) != 1 || len(roads) != 0 {
		t.Fatalf("single junction path = %v / %v", junctions, roads)
	}
}

func TestRouteResolver_RoadWithoutJunctionWarnsOnce(t *testing.T) {
	desc := lineNetwork()
	desc.Roads = append(desc.Roads, road(2, straightPath(Vec3{Y: 500}, Vec3{X: 100, Y: 500}, 50)))
	f := newResolverFixture(t, desc)

	state := NewRouteState()
	state.SetDestination(2)
	for i := 0; i < 4; i++ {
		res := f.step(&state, Vec3{X: 20 + float64(i)*10, Y: 500})
		if res.Status != model.StatusUnreachable {
			t.Fatalf("step %d status = %s, want unreachable", i, res.Status)
		}
	}
	if got := f.log.count("warn"); got != 1 {
		t.Fatalf("warned %d times, want once", got)
	}
}
