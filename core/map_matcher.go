package core

import (
	"math"

	"github.com/paulmach/orb"
)

type indexedRoad struct {
	road  *Road
	bound orb.Bound // horizontal (XY) extent of the polyline
}

// MapMatcher finds the road nearest to an arbitrary point.
//
// It is a linear scan over every segment of every road. Each road's XY
// bounding box is checked first: planar distance to the box never exceeds
// the 3-D distance to any of its segments, so a road whose box is no closer
// than the current best cannot win and is skipped.
type MapMatcher struct {
	roads []indexedRoad
}

// NewMapMatcher indexes the roads of store in ascending id order.
func NewMapMatcher(store *NetworkStore) *MapMatcher {
	roads := store.Roads()
	m := &MapMatcher{roads: make([]indexedRoad, 0, len(roads))}
	for _, r := range roads {
		ls := make(orb.LineString, 0, len(r.Points))
		for _, p := range r.Points {
			ls = append(ls, orb.Point{p.X, p.Y})
		}
		m.roads = append(m.roads, indexedRoad{road: r, bound: ls.Bound()})
	}
	return m
}

// ClosestRoad returns the id of the road whose polyline lies closest to
// position and that distance. ok is false, with an infinite distance, when no
// roads are loaded. Ties resolve to the lowest road id.
func (m *MapMatcher) ClosestRoad(position Vec3) (roadID int, distance float64, ok bool) {
	best := math.Inf(1)
	bestID := 0
	found := false

	for _, ir := range m.roads {
		if planarDistanceToBound(ir.bound, position) >= best {
			continue
		}
		d := distanceToRoad(position, ir.road)
		if d < best {
			best = d
			bestID = ir.road.ID
			found = true
		}
	}
	return bestID, best, found
}

func distanceToRoad(p Vec3, r *Road) float64 {
	if len(r.Points) == 1 {
		return p.DistanceTo(r.Points[0])
	}
	best := math.Inf(1)
	for i := 1; i < len(r.Points); i++ {
		if d := SegmentDistance(p, r.Points[i-1], r.Points[i]); d < best {
			best = d
		}
	}
	return best
}

func planarDistanceToBound(b orb.Bound, p Vec3) float64 {
	dx := math.Max(0, math.Max(b.Min.X()-p.X, p.X-b.Max.X()))
	dy := math.Max(0, math.Max(b.Min.Y()-p.Y, p.Y-b.Max.Y()))
	return math.Hypot(dx, dy)
}
