package trav

import (
	"container/heap"
)

// UnreachableDistance marks patches the Dijkstra pre-pass never reached.
// Large enough to never occur on a real map. Divided by a speed and scaled
// to integer cost it exceeds the int32 range (2e11 at 0.5 m/s); the
// heuristics hold it in a 64-bit int.
const UnreachableDistance = 99_999_999.0

type distNode struct {
	p *Patch
	d float64
}

type distHeap []distNode

func (h distHeap) Len() int           { return len(h) }
func (h distHeap) Less(i, j int) bool { return h[i].d < h[j].d }
func (h distHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *distHeap) Push(x any)        { *h = append(*h, x.(distNode)) }
func (h *distHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// ComputeDistances runs Dijkstra over the driveability links from start,
// weighting each edge by the 3D Euclidean distance between patch centers.
// The result is indexed by patch id; unreached and non-traversable patches
// hold UnreachableDistance.
func ComputeDistances(g *Graph, start *Patch) []float64 {
	dist := make([]float64, g.NumPatches())
	for i := range dist {
		dist[i] = UnreachableDistance
	}
	if start == nil || start.ID() >= len(dist) {
		return dist
	}

	open := &distHeap{{p: start, d: 0}}
	heap.Init(open)
	dist[start.id] = 0
	closed := make(map[int]bool)

	for open.Len() > 0 {
		cur := heap.Pop(open).(distNode)
		if closed[cur.p.id] {
			continue
		}
		closed[cur.p.id] = true

		curPos := g.Position(cur.p)
		for _, n := range cur.p.Connections() {
			if n.Kind() != KindTraversable {
				continue
			}
			if n.id >= len(dist) {
				continue
			}
			d := cur.d + curPos.Sub(g.Position(n)).Norm()
			if d < dist[n.id] {
				dist[n.id] = d
				heap.Push(open, distNode{p: n, d: d})
			}
		}
	}
	return dist
}
