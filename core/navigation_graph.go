package core

import (
	"fmt"
	"math"
	"sort"
)

// GraphEdge is the road connecting two adjacent junctions and the distance
// travelled along it between them.
type GraphEdge struct {
	RoadID int
	Length float64
}

// NavigationGraph is the junction adjacency structure derived from a
// NetworkStore. Nodes are junction indices. Every edge is stored in both
// directions and the graph is never mutated after BuildNavigationGraph.
type NavigationGraph struct {
	edges     []map[int]GraphEdge
	neighbors [][]int // insertion order, keeps searches deterministic
	edgeCount int
}

type junctionOnRoad struct {
	junction int
	offset   float64
}

// BuildNavigationGraph connects the junctions of every road.
//
// A road meeting exactly two junctions yields one edge weighted by the
// road's length. A road meeting more junctions is split at each of them:
// junctions are ordered by where they project onto the polyline and only
// neighbours in that order are connected, weighted by the distance along the
// road between the projections. A closed loop additionally connects its last
// and first junction across the seam. Roads meeting a single junction are
// dead ends and get no edge.
//
// When two roads connect the same junction pair the shorter one is kept.
func BuildNavigationGraph(store *NetworkStore) *NavigationGraph {
	n := store.JunctionCount()
	g := &NavigationGraph{
		edges:     make([]map[int]GraphEdge, n),
		neighbors: make([][]int, n),
	}
	for i := range g.edges {
		g.edges[i] = make(map[int]GraphEdge)
	}

	for _, road := range store.Roads() {
		touching := store.JunctionsForRoad(road.ID)
		switch {
		case len(touching) < 2:
			continue
		case len(touching) == 2:
			g.addEdge(touching[0], touching[1], GraphEdge{RoadID: road.ID, Length: road.Length})
		default:
			ordered := orderJunctionsAlongRoad(store, road, touching)
			for i := 1; i < len(ordered); i++ {
				a, b := ordered[i-1], ordered[i]
				g.addEdge(a.junction, b.junction, GraphEdge{RoadID: road.ID, Length: b.offset - a.offset})
			}
			if road.ClosedLoop {
				first, last := ordered[0], ordered[len(ordered)-1]
				seam := road.Length - last.offset + first.offset
				g.addEdge(last.junction, first.junction, GraphEdge{RoadID: road.ID, Length: seam})
			}
		}
	}
	return g
}

func orderJunctionsAlongRoad(store *NetworkStore, road *Road, touching []int) []junctionOnRoad {
	ordered := make([]junctionOnRoad, 0, len(touching))
	for _, idx := range touching {
		j, _ := store.Junction(idx)
		proj := projectOntoPolyline(j.Location, road.Points)
		ordered = append(ordered, junctionOnRoad{junction: idx, offset: proj.Offset})
	}
	sort.SliceStable(ordered, func(a, b int) bool {
		return ordered[a].offset < ordered[b].offset
	})
	return ordered
}

func (g *NavigationGraph) addEdge(u, v int, e GraphEdge) {
	if u == v {
		return
	}
	if existing, ok := g.edges[u][v]; ok {
		if existing.Length <= e.Length {
			return
		}
	} else {
		g.neighbors[u] = append(g.neighbors[u], v)
		g.neighbors[v] = append(g.neighbors[v], u)
		g.edgeCount++
	}
	g.edges[u][v] = e
	g.edges[v][u] = e
}

// NodeCount returns the number of junctions in the graph.
func (g *NavigationGraph) NodeCount() int {
	return len(g.edges)
}

// EdgeCount returns the number of undirected edges.
func (g *NavigationGraph) EdgeCount() int {
	return g.edgeCount
}

// Edge returns the edge between u and v, if any.
func (g *NavigationGraph) Edge(u, v int) (GraphEdge, bool) {
	if !g.hasNode(u) {
		return GraphEdge{}, false
	}
	e, ok := g.edges[u][v]
	return e, ok
}

// Neighbors returns the junctions adjacent to u in insertion order.
func (g *NavigationGraph) Neighbors(u int) []int {
	if !g.hasNode(u) {
		return nil
	}
	return append([]int(nil), g.neighbors[u]...)
}

func (g *NavigationGraph) hasNode(u int) bool {
	return u >= 0 && u < len(g.edges)
}

// PathRoads converts a junction path into the road ids of its edges.
func (g *NavigationGraph) PathRoads(path []int) ([]int, error) {
	if len(path) < 2 {
		return []int{}, nil
	}
	roads := make([]int, 0, len(path)-1)
	for i := 1; i < len(path); i++ {
		e, ok := g.Edge(path[i-1], path[i])
		if !ok {
			return nil, fmt.Errorf("no edge between junctions %d and %d", path[i-1], path[i])
		}
		roads = append(roads, e.RoadID)
	}
	return roads, nil
}

// PathCost sums the edge lengths of a junction path. It reports false when
// consecutive junctions are not adjacent.
func (g *NavigationGraph) PathCost(path []int) (float64, bool) {
	total := 0.0
	for i := 1; i < len(path); i++ {
		e, ok := g.Edge(path[i-1], path[i])
		if !ok {
			return math.Inf(1), false
		}
		total += e.Length
	}
	return total, true
}
