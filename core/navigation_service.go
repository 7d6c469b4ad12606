package core

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/signalsfoundry/satnav/internal/logging"
	"github.com/signalsfoundry/satnav/model"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// loadedNetwork bundles everything derived from one successful load.
type loadedNetwork struct {
	store    *NetworkStore
	graph    *NavigationGraph
	paths    *PathCache
	matcher  *MapMatcher
	resolver *RouteResolver
}

type subscriber struct {
	id uint64
	fn func(model.ManeuverEvent)
}

// NavigationService is the facade the tick driver talks to. It loads the
// network on first use, matches every pose to a road, advances the route and
// publishes maneuver events.
//
// Tick must be driven by a single goroutine at a time; SetDestination,
// ClearDestination, Snapshot and Subscribe are safe to call concurrently
// with it.
type NavigationService struct {
	source  NetworkSource
	cfg     NavigationConfig
	log     logging.Logger
	metrics MetricsRecorder
	now     func() time.Time

	// mu guards the fields below.
	mu          sync.Mutex
	network     *loadedNetwork
	state       RouteState
	status      model.Status
	lastMatch   Match
	lastEvent   *model.ManeuverEvent
	ticks       uint64
	loadFailure error

	subMu   sync.RWMutex
	subs    []subscriber
	nextSub uint64
}

// ServiceOption customises NavigationService construction.
type ServiceOption func(*NavigationService)

// WithLogger sets the structured logger.
func WithLogger(l logging.Logger) ServiceOption {
	return func(s *NavigationService) {
		if l != nil {
			s.log = l
		}
	}
}

// WithMetricsRecorder attaches an optional metrics recorder.
func WithMetricsRecorder(m MetricsRecorder) ServiceOption {
	return func(s *NavigationService) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithClock overrides the time source used to stamp events from poses that
// carry no timestamp.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *NavigationService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewNavigationService creates a service that loads its network from source
// on the first tick.
func NewNavigationService(source NetworkSource, cfg NavigationConfig, opts ...ServiceOption) *NavigationService {
	s := &NavigationService{
		source:  source,
		cfg:     cfg.ApplyDefaults(),
		log:     logging.Noop(),
		metrics: noopMetrics{},
		now:     time.Now,
		state:   NewRouteState(),
		status:  model.StatusNoDestination,
	}
	if !s.cfg.Enabled {
		s.status = model.StatusDisabled
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Config returns the effective configuration.
func (s *NavigationService) Config() NavigationConfig {
	return s.cfg
}

// Tick processes one pose sample. It never fails: load problems, an off-map
// vehicle or an unreachable destination are reported through the status.
func (s *NavigationService) Tick(ctx context.Context, pose model.Pose) model.TickResult {
	ctx, log := logging.WithTickLogger(ctx, s.log)
	ctx = logging.ContextWithLogger(ctx, log)
	ctx, span := otel.Tracer(tracerName).Start(ctx, "navigation.Tick")
	defer span.End()

	s.mu.Lock()
	res := s.tickLocked(ctx, log, pose)
	s.mu.Unlock()

	span.SetAttributes(
		attribute.String("navigation.status", string(res.Status)),
		attribute.Bool("navigation.event", res.Event != nil),
	)
	if res.Matched {
		span.SetAttributes(
			attribute.Int("navigation.matched_road", res.MatchedRoad),
			attribute.Float64("navigation.road_distance", res.RoadDistance),
		)
	}

	s.metrics.ObserveTick(res.Status)
	if res.Event != nil {
		s.metrics.ObserveManeuver(res.Event.Kind)
		s.publish(*res.Event)
	}
	return res
}

func (s *NavigationService) tickLocked(ctx context.Context, log logging.Logger, pose model.Pose) model.TickResult {
	s.ticks++
	if !s.cfg.Enabled {
		s.status = model.StatusDisabled
		return model.TickResult{Status: model.StatusDisabled}
	}

	net, err := s.ensureLoadedLocked(ctx, log)
	if err != nil {
		s.status = model.StatusUnavailable
		return model.TickResult{Status: model.StatusUnavailable}
	}

	pos := Vec3{X: pose.X, Y: pose.Y, Z: pose.Z}
	road, dist, ok := net.matcher.ClosestRoad(pos)
	m := Match{RoadID: road, Distance: dist, OK: ok}
	s.lastMatch = m

	step := net.resolver.Step(ctx, &s.state, pos, m)
	if step.Status == model.StatusOffMap && s.status != model.StatusOffMap {
		log.Warn(ctx, "vehicle is off map; route frozen",
			logging.Int("nearest_road", road),
			logging.Float("distance", dist),
			logging.Float("tolerance", s.cfg.OffRouteTolerance),
		)
	}
	s.status = step.Status
	s.metrics.SetRouteRoadsRemaining(len(s.state.Roads))

	res := model.TickResult{
		Status:      step.Status,
		MatchedRoad: road,
		Matched:     ok,
	}
	if ok {
		res.RoadDistance = dist
	}
	if step.Event != nil {
		ev := *step.Event
		ev.ID = uuid.NewString()
		ev.Time = pose.Time
		if ev.Time.IsZero() {
			ev.Time = s.now()
		}
		s.lastEvent = &ev
		res.Event = &ev
		log.Info(ctx, "maneuver emitted",
			logging.String("event_id", ev.ID),
			logging.String("kind", string(ev.Kind)),
			logging.String("instruction", ev.Instruction),
			logging.Int("junction", ev.Junction),
			logging.Float("distance", ev.Distance),
		)
	}
	return res
}

// ensureLoadedLocked loads the network once. A failed load is retried on the
// next call.
func (s *NavigationService) ensureLoadedLocked(ctx context.Context, log logging.Logger) (*loadedNetwork, error) {
	if s.network != nil {
		return s.network, nil
	}
	if s.source == nil {
		return nil, fmt.Errorf("%w: no network source configured", ErrNetworkUnavailable)
	}

	store, err := LoadNetwork(ctx, s.source)
	if err != nil {
		if s.loadFailure == nil || s.loadFailure.Error() != err.Error() {
			log.Error(ctx, "network load failed; navigation unavailable", logging.Error(err))
		}
		s.loadFailure = err
		return nil, fmt.Errorf("%w: %w", ErrNetworkUnavailable, err)
	}

	graph := BuildNavigationGraph(store)
	paths, err := NewPathCache(graph, s.cfg.PathCacheSize)
	if err != nil {
		s.loadFailure = err
		return nil, fmt.Errorf("%w: %w", ErrNetworkUnavailable, err)
	}
	s.network = &loadedNetwork{
		store:    store,
		graph:    graph,
		paths:    paths,
		matcher:  NewMapMatcher(store),
		resolver: NewRouteResolver(store, graph, paths, s.cfg, s.log, s.metrics),
	}
	s.loadFailure = nil

	s.metrics.SetNetworkSize(store.RoadCount(), store.JunctionCount())
	log.Info(ctx, "network loaded",
		logging.Int("roads", store.RoadCount()),
		logging.Int("junctions", store.JunctionCount()),
		logging.Int("edges", graph.EdgeCount()),
	)
	return s.network, nil
}

// SetDestination routes to the junction with the given index. The network is
// loaded if needed. An unknown index clears the destination and returns
// ErrUnknownJunction.
func (s *NavigationService) SetDestination(ctx context.Context, junction int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	net, err := s.ensureLoadedLocked(ctx, s.log)
	if err != nil {
		return err
	}
	if _, ok := net.store.Junction(junction); !ok {
		s.state.ClearDestination()
		s.status = model.StatusNoDestination
		return fmt.Errorf("%w: %d", ErrUnknownJunction, junction)
	}
	s.state.SetDestination(junction)
	s.log.Info(ctx, "destination set", logging.Int("junction", junction))
	return nil
}

// ClearDestination drops the destination and the active route.
func (s *NavigationService) ClearDestination() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.ClearDestination()
	if s.cfg.Enabled {
		s.status = model.StatusNoDestination
	}
	s.metrics.SetRouteRoadsRemaining(0)
}

// Subscribe registers fn for every emitted event. Callbacks run on the
// ticking goroutine after the tick has released its lock. The returned
// function removes the subscription.
func (s *NavigationService) Subscribe(fn func(model.ManeuverEvent)) func() {
	if fn == nil {
		return func() {}
	}
	s.subMu.Lock()
	s.nextSub++
	id := s.nextSub
	s.subs = append(s.subs, subscriber{id: id, fn: fn})
	s.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subMu.Lock()
			defer s.subMu.Unlock()
			for i, sub := range s.subs {
				if sub.id == id {
					s.subs = append(s.subs[:i], s.subs[i+1:]...)
					return
				}
			}
		})
	}
}

func (s *NavigationService) publish(ev model.ManeuverEvent) {
	s.subMu.RLock()
	subs := append([]subscriber(nil), s.subs...)
	s.subMu.RUnlock()
	for _, sub := range subs {
		sub.fn(ev)
	}
}

// ServiceSnapshot is a point-in-time copy of the service state.
type ServiceSnapshot struct {
	Enabled         bool                 `json:"enabled"`
	Loaded          bool                 `json:"loaded"`
	LoadError       string               `json:"load_error,omitempty"`
	Status          model.Status         `json:"status"`
	Ticks           uint64               `json:"ticks"`
	Destination     *int                 `json:"destination"`
	RouteJunctions  []int                `json:"route_junctions"`
	RouteRoads      []int                `json:"route_roads"`
	ManeuverEmitted bool                 `json:"maneuver_emitted"`
	MatchedRoad     *int                 `json:"matched_road"`
	RoadDistance    *float64             `json:"road_distance"`
	LastEvent       *model.ManeuverEvent `json:"last_event,omitempty"`
}

// Snapshot returns a copy of the current state.
func (s *NavigationService) Snapshot() ServiceSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := s.state.Clone()
	snap := ServiceSnapshot{
		Enabled:         s.cfg.Enabled,
		Loaded:          s.network != nil,
		Status:          s.status,
		Ticks:           s.ticks,
		RouteJunctions:  state.Junctions,
		RouteRoads:      state.Roads,
		ManeuverEmitted: state.ManeuverEmitted,
	}
	if snap.RouteJunctions == nil {
		snap.RouteJunctions = []int{}
	}
	if snap.RouteRoads == nil {
		snap.RouteRoads = []int{}
	}
	if s.loadFailure != nil {
		snap.LoadError = s.loadFailure.Error()
	}
	if state.HasDestination() {
		d := state.Destination
		snap.Destination = &d
	}
	if s.lastMatch.OK && !math.IsInf(s.lastMatch.Distance, 0) {
		road, dist := s.lastMatch.RoadID, s.lastMatch.Distance
		snap.MatchedRoad = &road
		snap.RoadDistance = &dist
	}
	if s.lastEvent != nil {
		ev := *s.lastEvent
		snap.LastEvent = &ev
	}
	return snap
}
