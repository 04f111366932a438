package trav

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"

	"github.com/soraxas/ugv-nav4d/internal/core"
	"github.com/soraxas/ugv-nav4d/internal/mls"
)

func testConfig() core.TraversabilityConfig {
	cfg := core.DefaultConfig().Traversability
	cfg.GridResolution = 0.1
	cfg.StepHeight = 0.15
	return cfg
}

// flatGraph builds a fully expanded graph over flat 10x10 terrain.
func flatGraph(t *testing.T, cfg core.TraversabilityConfig) *Graph {
	t.Helper()
	grid := mls.BuildFlat(10, 10, cfg.GridResolution, 0)
	g := NewGraph(RoleDriveability, grid, cfg, nil)
	g.ExpandAll([]r3.Vector{{X: 0.55, Y: 0.55, Z: 0}})
	return g
}

func TestExpandFlat(t *testing.T) {
	g := flatGraph(t, testConfig())

	p := g.Lookup(r3.Vector{X: 0.55, Y: 0.55, Z: 0})
	if p == nil {
		t.Fatal("no patch at center")
	}
	if p.Kind() != KindTraversable {
		t.Fatalf("kind = %v, want traversable", p.Kind())
	}
	if p.Slope() > 1e-6 {
		t.Errorf("slope = %f on flat ground", p.Slope())
	}
	if got := len(p.Connections()); got != 8 {
		t.Errorf("center patch has %d links, want 8", got)
	}
	if !p.OrientationAllowed(1.234) {
		t.Error("flat patch must allow every heading")
	}
}

// Expanding a patch twice yields the same kind and the same links.
func TestExpandIdempotent(t *testing.T) {
	cfg := testConfig()
	grid := mls.BuildFlat(10, 10, cfg.GridResolution, 0)
	g := NewGraph(RoleDriveability, grid, cfg, nil)

	p, err := g.GenerateStartPatch(r3.Vector{X: 0.55, Y: 0.55, Z: 0})
	if err != nil {
		t.Fatal(err)
	}
	first := g.Expand(p)
	kind := p.Kind()
	links := len(p.Connections())

	second := g.Expand(p)
	if first != second || p.Kind() != kind || len(p.Connections()) != links {
		t.Errorf("expansion not idempotent: (%v,%v,%d) vs (%v,%v,%d)",
			first, kind, links, second, p.Kind(), len(p.Connections()))
	}
}

// A step of 0.3m links when stepHeight=0.5 and does not when stepHeight=0.1.
func TestStepHeightLinking(t *testing.T) {
	for _, tc := range []struct {
		stepHeight float64
		wantLink   bool
	}{
		{0.5, true},
		{0.1, false},
	} {
		cfg := testConfig()
		cfg.StepHeight = tc.stepHeight
		grid := mls.BuildFlat(10, 10, cfg.GridResolution, 0)
		grid.AddStepX(5, 0.3)

		g := NewGraph(RoleDriveability, grid, cfg, nil)
		g.ExpandAll([]r3.Vector{{X: 0.25, Y: 0.55, Z: 0}})

		before := g.Lookup(r3.Vector{X: 0.45, Y: 0.55, Z: 0})
		if before == nil || !before.IsExpanded() {
			t.Fatalf("stepHeight=%.1f: patch before step missing or unexpanded", tc.stepHeight)
		}
		link := before.ConnectedTo(core.Index{X: 5, Y: 5})
		if tc.wantLink && link == nil {
			t.Errorf("stepHeight=%.1f: expected link across step", tc.stepHeight)
		}
		if !tc.wantLink && link != nil {
			t.Errorf("stepHeight=%.1f: unexpected link across step", tc.stepHeight)
		}
	}
}

// On a 30 degree ramp with a 10 degree roll limit, headings along the
// gradient stay allowed while headings across it are rejected.
func TestRampAllowedOrientations(t *testing.T) {
	cfg := testConfig()
	cfg.SlopeLimit = 40 * math.Pi / 180
	cfg.MaxPitch = 40 * math.Pi / 180
	cfg.MaxRoll = 10 * math.Pi / 180
	cfg.StepHeight = 0.2

	grid := mls.BuildFlat(20, 10, cfg.GridResolution, 0)
	grid.AddRampX(0, 20, 0, 30*math.Pi/180)

	g := NewGraph(RoleDriveability, grid, cfg, nil)
	g.ExpandAll([]r3.Vector{{X: 1.05, Y: 0.55, Z: math.Tan(30*math.Pi/180) * 1.0}})

	p := g.Lookup(r3.Vector{X: 1.05, Y: 0.55, Z: math.Tan(30*math.Pi/180) * 1.0})
	if p == nil || !p.IsExpanded() {
		t.Fatal("ramp patch missing or unexpanded")
	}
	if p.Kind() != KindTraversable {
		t.Fatalf("ramp kind = %v, want traversable (slope %.3f)", p.Kind(), p.Slope())
	}
	if math.Abs(p.Slope()-30*math.Pi/180) > 0.05 {
		t.Errorf("slope = %.3f, want ~%.3f", p.Slope(), 30*math.Pi/180)
	}
	if !p.OrientationAllowed(0) {
		t.Error("heading +x (uphill) must be allowed")
	}
	if !p.OrientationAllowed(math.Pi) {
		t.Error("heading -x (downhill) must be allowed")
	}
	if p.OrientationAllowed(math.Pi / 2) {
		t.Error("heading +y (across slope) must be rejected")
	}
	if p.OrientationAllowed(-math.Pi / 2) {
		t.Error("heading -y (across slope) must be rejected")
	}
}

func TestSteepSlopeIsObstacle(t *testing.T) {
	cfg := testConfig()
	cfg.SlopeLimit = 20 * math.Pi / 180

	grid := mls.BuildFlat(20, 10, cfg.GridResolution, 0)
	grid.AddRampX(8, 14, 0, 35*math.Pi/180)

	g := NewGraph(RoleDriveability, grid, cfg, nil)
	p, err := g.GenerateStartPatch(grid.FromGrid(core.Index{X: 10, Y: 5}, math.Tan(35*math.Pi/180)*0.2))
	if err != nil {
		t.Fatal(err)
	}
	if g.Expand(p) {
		t.Fatal("steep patch expanded as traversable")
	}
	if p.Kind() != KindObstacle {
		t.Errorf("kind = %v, want obstacle", p.Kind())
	}
}

func TestUnknownNeighborMakesFrontier(t *testing.T) {
	cfg := testConfig()
	grid := mls.BuildFlat(10, 10, cfg.GridResolution, 0)
	grid.ClearRect(6, 0, 10, 10)

	g := NewGraph(RoleDriveability, grid, cfg, nil)
	g.ExpandAll([]r3.Vector{{X: 0.15, Y: 0.55, Z: 0}})

	edge := g.Lookup(r3.Vector{X: 0.55, Y: 0.55, Z: 0})
	if edge == nil || !edge.IsExpanded() {
		t.Fatal("edge patch missing or unexpanded")
	}
	if edge.Kind() != KindFrontier {
		t.Errorf("kind at unknown boundary = %v, want frontier", edge.Kind())
	}

	inner := g.Lookup(r3.Vector{X: 0.25, Y: 0.55, Z: 0})
	if inner.Kind() != KindTraversable {
		t.Errorf("inner kind = %v, want traversable", inner.Kind())
	}
}

func TestGenerateStartPatchOutOfBounds(t *testing.T) {
	cfg := testConfig()
	grid := mls.BuildFlat(10, 10, cfg.GridResolution, 0)
	g := NewGraph(RoleDriveability, grid, cfg, nil)

	if _, err := g.GenerateStartPatch(r3.Vector{X: -1, Y: 0.5, Z: 0}); err == nil {
		t.Error("expected error for position outside map")
	}
}

func TestMultiLevelMatching(t *testing.T) {
	cfg := testConfig()
	grid := mls.BuildFlat(4, 4, cfg.GridResolution, 0)
	// Second level (a bridge deck) above the whole area.
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			grid.Add(core.Index{X: x, Y: y}, mls.SurfacePatch{Z: 1.0})
		}
	}
	g := NewGraph(RoleObstacle, grid, cfg, nil)

	low := g.FindMatchingPatch(core.Index{X: 1, Y: 1}, 0.1)
	high := g.FindMatchingPatch(core.Index{X: 1, Y: 1}, 0.9)
	if low == nil || high == nil {
		t.Fatal("missing patches")
	}
	if low.Height() != 0 {
		t.Errorf("low match height = %f, want 0", low.Height())
	}
	if high.Height() != 1 {
		t.Errorf("high match height = %f, want 1", high.Height())
	}
	if low == high {
		t.Error("levels must map to distinct patches")
	}
}
