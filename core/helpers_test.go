package core

import (
	"math"
	"testing"
)

func approxEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-6
}

func intPtr(v int) *int { return &v }

// straightPath samples the segment from→to every step units, both ends
// included.
func straightPath(from, to Vec3, step float64) [][]float64 {
	dir := to.Sub(from)
	n := int(math.Round(dir.Norm() / step))
	if n < 1 {
		n = 1
	}
	out := make([][]float64, 0, n+1)
	for i := 0; i <= n; i++ {
		p := from.Add(dir.Scale(float64(i) / float64(n)))
		out = append(out, []float64{p.X, p.Y, p.Z})
	}
	return out
}

func road(id int, path [][]float64) RoadRecord {
	return RoadRecord{RoadID: intPtr(id), Path: path}
}

func junction(x, y, z float64, roads ...int) JunctionRecord {
	if roads == nil {
		roads = []int{}
	}
	return JunctionRecord{Location: []float64{x, y, z}, ConnectedRoads: roads}
}

// lineNetwork is J0 -R0- J1 -R1- J2 along the X axis, 300 units per road
// sampled every 30 units.
func lineNetwork() *NetworkDescription {
	return &NetworkDescription{
		Roads: []RoadRecord{
			road(0, straightPath(Vec3{}, Vec3{X: 300}, 30)),
			road(1, straightPath(Vec3{X: 300}, Vec3{X: 600}, 30)),
		},
		Junctions: []JunctionRecord{
			junction(0, 0, 0, 0),
			junction(300, 0, 0, 0, 1),
			junction(600, 0, 0, 1),
		},
	}
}

// crossNetwork is a plus-shaped intersection at the origin. R0 comes in
// from the south, R1 leaves east, R2 leaves west and R3 continues north.
func crossNetwork() *NetworkDescription {
	c := Vec3{}
	return &NetworkDescription{
		Roads: []RoadRecord{
			road(0, straightPath(Vec3{Y: -300}, c, 30)),
			road(1, straightPath(c, Vec3{X: 300}, 30)),
			road(2, straightPath(c, Vec3{X: -300}, 30)),
			road(3, straightPath(c, Vec3{Y: 300}, 30)),
		},
		Junctions: []JunctionRecord{
			junction(0, -300, 0, 0),
			junction(0, 0, 0, 0, 1, 2, 3),
			junction(300, 0, 0, 1),
			junction(-300, 0, 0, 2),
			junction(0, 300, 0, 3),
		},
	}
}

func mustStore(t *testing.T, desc *NetworkDescription) *NetworkStore {
	t.Helper()
	store, err := NewNetworkStore(desc)
	if err != nil {
		t.Fatalf("NewNetworkStore: %v", err)
	}
	return store
}
