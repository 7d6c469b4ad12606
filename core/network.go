package core

import (
	"errors"
	"fmt"
	"sort"
)

var (
	ErrMalformedNetwork   = errors.New("malformed network description")
	ErrUnknownRoad        = errors.New("unknown road")
	ErrUnknownJunction    = errors.New("unknown junction")
	ErrNetworkUnavailable = errors.New("network not loaded")
	ErrUnsupportedFormat  = errors.New("unsupported network format")
)

// NetworkMetadata is the optional header written by the network authoring
// tool.
type NetworkMetadata struct {
	Unit             string `json:"unit,omitempty"`
	CoordinateSystem string `json:"coordinate_system,omitempty"`
}

// NetworkDescription is the serialised form of a recorded road network. The
// same shape is used for every supported encoding.
type NetworkDescription struct {
	Metadata  *NetworkMetadata `json:"metadata,omitempty"`
	Roads     []RoadRecord     `json:"roads"`
	Junctions []JunctionRecord `json:"junctions"`
}

// RoadRecord is one road entry of a NetworkDescription.
type RoadRecord struct {
	RoadID     *int        `json:"road_id"`
	PointCount *int        `json:"point_count,omitempty"`
	ClosedLoop bool        `json:"closed_loop,omitempty"`
	Path       [][]float64 `json:"path"`
}

// JunctionRecord is one junction entry of a NetworkDescription.
type JunctionRecord struct {
	Location       []float64 `json:"location"`
	ConnectedRoads []int     `json:"connected_roads"`
}

// Road is an immutable polyline of the network. Roads are bidirectional.
type Road struct {
	ID         int
	Points     []Vec3
	Length     float64
	ClosedLoop bool
}

// Junction is a point where roads meet. Index is its position in the
// network's junction list and doubles as its graph node id.
type Junction struct {
	Index    int
	Location Vec3
	Roads    []int
}

// HasRoad reports whether roadID meets at this junction.
func (j Junction) HasRoad(roadID int) bool {
	for _, id := range j.Roads {
		if id == roadID {
			return true
		}
	}
	return false
}

// NetworkStore is the loaded, read-only road network. It is built once and
// may be shared freely between goroutines.
type NetworkStore struct {
	metadata      NetworkMetadata
	roads         map[int]*Road
	roadOrder     []int
	junctions     []Junction
	roadJunctions map[int][]int
}

// NewNetworkStore validates desc and builds the store, including the
// road → junction reverse index.
func NewNetworkStore(desc *NetworkDescription) (*NetworkStore, error) {
	if desc == nil {
		return nil, fmt.Errorf("%w: nil description", ErrMalformedNetwork)
	}
	if desc.Roads == nil {
		return nil, fmt.Errorf("%w: missing roads", ErrMalformedNetwork)
	}
	if desc.Junctions == nil {
		return nil, fmt.Errorf("%w: missing junctions", ErrMalformedNetwork)
	}

	store := &NetworkStore{
		roads:         make(map[int]*Road, len(desc.Roads)),
		roadOrder:     make([]int, 0, len(desc.Roads)),
		junctions:     make([]Junction, 0, len(desc.Junctions)),
		roadJunctions: make(map[int][]int),
	}
	if desc.Metadata != nil {
		store.metadata = *desc.Metadata
	}

	for i, rec := range desc.Roads {
		road, err := roadFromRecord(i, rec)
		if err != nil {
			return nil, err
		}
		if _, exists := store.roads[road.ID]; exists {
			return nil, fmt.Errorf("%w: duplicate road_id %d", ErrMalformedNetwork, road.ID)
		}
		store.roads[road.ID] = road
		store.roadOrder = append(store.roadOrder, road.ID)
	}
	sort.Ints(store.roadOrder)

	for i, rec := range desc.Junctions {
		if rec.Location == nil {
			return nil, fmt.Errorf("%w: junction %d: missing location", ErrMalformedNetwork, i)
		}
		loc, err := vecFromTriple(rec.Location)
		if err != nil {
			return nil, fmt.Errorf("%w: junction %d: location: %v", ErrMalformedNetwork, i, err)
		}
		if rec.ConnectedRoads == nil {
			return nil, fmt.Errorf("%w: junction %d: missing connected_roads", ErrMalformedNetwork, i)
		}

		seen := make(map[int]bool, len(rec.ConnectedRoads))
		roads := make([]int, 0, len(rec.ConnectedRoads))
		for _, roadID := range rec.ConnectedRoads {
			if _, ok := store.roads[roadID]; !ok {
				return nil, fmt.Errorf("%w: junction %d references road %d", ErrUnknownRoad, i, roadID)
			}
			if seen[roadID] {
				continue
			}
			seen[roadID] = true
			roads = append(roads, roadID)
			store.roadJunctions[roadID] = append(store.roadJunctions[roadID], i)
		}
		store.junctions = append(store.junctions, Junction{Index: i, Location: loc, Roads: roads})
	}

	return store, nil
}

func roadFromRecord(i int, rec RoadRecord) (*Road, error) {
	if rec.RoadID == nil {
		return nil, fmt.Errorf("%w: road %d: missing road_id", ErrMalformedNetwork, i)
	}
	id := *rec.RoadID
	if len(rec.Path) == 0 {
		return nil, fmt.Errorf("%w: road %d: empty path", ErrMalformedNetwork, id)
	}
	if rec.PointCount != nil && *rec.PointCount != len(rec.Path) {
		return nil, fmt.Errorf("%w: road %d: point_count %d does not match %d path points",
			ErrMalformedNetwork, id, *rec.PointCount, len(rec.Path))
	}

	points := make([]Vec3, 0, len(rec.Path))
	for j, raw := range rec.Path {
		p, err := vecFromTriple(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: road %d point %d: %v", ErrMalformedNetwork, id, j, err)
		}
		points = append(points, p)
	}

	return &Road{
		ID:         id,
		Points:     points,
		Length:     polylineLength(points),
		ClosedLoop: rec.ClosedLoop,
	}, nil
}

func vecFromTriple(raw []float64) (Vec3, error) {
	if len(raw) != 3 {
		return Vec3{}, fmt.Errorf("expected [x,y,z], got %d values", len(raw))
	}
	v := Vec3{X: raw[0], Y: raw[1], Z: raw[2]}
	if !v.isFinite() {
		return Vec3{}, fmt.Errorf("non-finite coordinate %v", raw)
	}
	return v, nil
}

// Metadata returns the optional document header.
func (s *NetworkStore) Metadata() NetworkMetadata {
	return s.metadata
}

// Road returns the road with the given id.
func (s *NetworkStore) Road(id int) (*Road, bool) {
	r, ok := s.roads[id]
	return r, ok
}

// Roads returns every road ordered by ascending id.
func (s *NetworkStore) Roads() []*Road {
	out := make([]*Road, 0, len(s.roadOrder))
	for _, id := range s.roadOrder {
		out = append(out, s.roads[id])
	}
	return out
}

// RoadCount returns the number of loaded roads.
func (s *NetworkStore) RoadCount() int {
	return len(s.roads)
}

// Junction returns the junction at index i.
func (s *NetworkStore) Junction(i int) (Junction, bool) {
	if i < 0 || i >= len(s.junctions) {
		return Junction{}, false
	}
	return s.junctions[i], true
}

// Junctions returns a copy of the junction list.
func (s *NetworkStore) Junctions() []Junction {
	return append([]Junction(nil), s.junctions...)
}

// JunctionCount returns the number of loaded junctions.
func (s *NetworkStore) JunctionCount() int {
	return len(s.junctions)
}

// JunctionsForRoad returns the indices of junctions touching roadID, in
// junction list order.
func (s *NetworkStore) JunctionsForRoad(roadID int) []int {
	return append([]int(nil), s.roadJunctions[roadID]...)
}
