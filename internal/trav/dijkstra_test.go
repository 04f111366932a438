package trav

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"

	"github.com/soraxas/ugv-nav4d/internal/mls"
)

func TestDijkstraFlat(t *testing.T) {
	cfg := testConfig()
	g := flatGraph(t, cfg)

	start := g.Lookup(r3.Vector{X: 0.05, Y: 0.05, Z: 0})
	if start == nil {
		t.Fatal("no start patch")
	}
	dist := ComputeDistances(g, start)

	if dist[start.ID()] != 0 {
		t.Errorf("dist(start) = %f", dist[start.ID()])
	}

	goal := g.Lookup(r3.Vector{X: 0.95, Y: 0.95, Z: 0})
	d := dist[goal.ID()]
	if d >= UnreachableDistance {
		t.Fatal("goal unreachable on flat map")
	}
	// Diagonal links make the path 9 diagonal steps.
	want := 9 * math.Hypot(cfg.GridResolution, cfg.GridResolution)
	if math.Abs(d-want) > 1e-6 {
		t.Errorf("dist(goal) = %f, want %f", d, want)
	}
}

// Distances must satisfy the triangle inequality via any relay patch.
func TestDijkstraTriangleInequality(t *testing.T) {
	cfg := testConfig()
	g := flatGraph(t, cfg)

	start := g.Lookup(r3.Vector{X: 0.05, Y: 0.05, Z: 0})
	distA := ComputeDistances(g, start)

	relay := g.Lookup(r3.Vector{X: 0.55, Y: 0.35, Z: 0})
	distB := ComputeDistances(g, relay)

	for _, p := range g.Patches() {
		if p.Kind() != KindTraversable {
			continue
		}
		if distA[p.ID()] >= UnreachableDistance {
			continue
		}
		viaRelay := distA[relay.ID()] + distB[p.ID()]
		if distA[p.ID()] > viaRelay+1e-9 {
			t.Fatalf("triangle inequality violated at patch %d: %f > %f",
				p.ID(), distA[p.ID()], viaRelay)
		}
	}
}

// A patch's distance can never undercut a neighbor's by more than one edge.
func TestDijkstraEdgeConsistency(t *testing.T) {
	cfg := testConfig()
	g := flatGraph(t, cfg)

	start := g.Lookup(r3.Vector{X: 0.05, Y: 0.05, Z: 0})
	dist := ComputeDistances(g, start)

	for _, p := range g.Patches() {
		if dist[p.ID()] >= UnreachableDistance {
			continue
		}
		pPos := g.Position(p)
		for _, n := range p.Connections() {
			if n.Kind() != KindTraversable || n.ID() >= len(dist) {
				continue
			}
			edge := pPos.Sub(g.Position(n)).Norm()
			if dist[n.ID()] > dist[p.ID()]+edge+1e-9 {
				t.Fatalf("dist(%d)=%f exceeds dist(%d)=%f + edge %f",
					n.ID(), dist[n.ID()], p.ID(), dist[p.ID()], edge)
			}
		}
	}
}

func TestDijkstraWallUnreachable(t *testing.T) {
	cfg := testConfig()
	grid := mls.BuildFlat(10, 10, cfg.GridResolution, 0)
	grid.AddWall(5, 0, 6, 10, 0.25)

	g := NewGraph(RoleDriveability, grid, cfg, nil)
	g.ExpandAll([]r3.Vector{
		{X: 0.15, Y: 0.55, Z: 0},
		{X: 0.85, Y: 0.55, Z: 0},
	})

	start := g.Lookup(r3.Vector{X: 0.15, Y: 0.55, Z: 0})
	dist := ComputeDistances(g, start)

	far := g.Lookup(r3.Vector{X: 0.85, Y: 0.55, Z: 0})
	if far == nil {
		t.Fatal("no far patch")
	}
	if dist[far.ID()] < UnreachableDistance {
		t.Errorf("patch behind wall reachable: %f", dist[far.ID()])
	}
}
