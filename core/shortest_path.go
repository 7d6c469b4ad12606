package core

import (
	"container/heap"
	"math"
)

type frontierItem struct {
	node int
	cost float64
	seq  int
}

type frontier []frontierItem

func (f frontier) Len() int { return len(f) }
func (f frontier) Less(i, j int) bool {
	if f[i].cost != f[j].cost {
		return f[i].cost < f[j].cost
	}
	return f[i].seq < f[j].seq
}
func (f frontier) Swap(i, j int) { f[i], f[j] = f[j], f[i] }

func (f *frontier) Push(x any) { *f = append(*f, x.(frontierItem)) }

func (f *frontier) Pop() any {
	old := *f
	n := len(old)
	item := old[n-1]
	*f = old[:n-1]
	return item
}

// ShortestPath returns the junction indices of a minimum-length path from
// start to end, both inclusive. The result is empty when end cannot be
// reached or either index is out of range; start == end yields [start].
//
// Equal-cost frontier entries are expanded in discovery order.
func (g *NavigationGraph) ShortestPath(start, end int) []int {
	if !g.hasNode(start) || !g.hasNode(end) {
		return []int{}
	}

	dist := make([]float64, len(g.edges))
	prev := make([]int, len(g.edges))
	for i := range dist {
		dist[i] = math.Inf(1)
		prev[i] = -1
	}
	dist[start] = 0

	seq := 0
	pq := &frontier{{node: start, cost: 0, seq: seq}}
	settled := make([]bool, len(g.edges))

	for pq.Len() > 0 {
		item := heap.Pop(pq).(frontierItem)
		u := item.node
		if settled[u] {
			continue
		}
		settled[u] = true
		if u == end {
			break
		}

		for _, v := range g.neighbors[u] {
			if settled[v] {
				continue
			}
			cost := dist[u] + g.edges[u][v].Length
			if cost < dist[v] {
				dist[v] = cost
				prev[v] = u
				seq++
				heap.Push(pq, frontierItem{node: v, cost: cost, seq: seq})
			}
		}
	}

	if math.IsInf(dist[end], 1) {
		return []int{}
	}

	path := []int{}
	for node := end; node != -1; node = prev[node] {
		path = append(path, node)
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}
