// Package vis implements a Gio-based debug viewer for the traversability
// layers and planned trajectories, plus a static HTML report renderer.
package vis

import (
	"github.com/soraxas/ugv-nav4d/internal/env"
	"github.com/soraxas/ugv-nav4d/internal/trav"
)

// Cell is one patch snapshot for rendering.
type Cell struct {
	X, Y float64 // cell corner, world coordinates
	Z    float64
	Kind trav.Kind
}

// Scene is an immutable snapshot of everything the viewer draws. Snapshots
// decouple rendering from the planner's locking.
type Scene struct {
	Resolution float64
	Cells      []Cell
	// Path is the planned trajectory as world-coordinate polylines, one
	// per segment; negative-speed segments are marked in Backward.
	Path     [][][2]float64
	Backward []bool
	Start    [2]float64
	Goal     [2]float64
	HasPlan  bool
}

// Snapshot captures the driveability layer and an optional trajectory.
func Snapshot(e *env.Env, segments []env.Segment) Scene {
	g := e.TravGraph()
	res := g.Map().Resolution()
	sc := Scene{Resolution: res}

	for _, p := range g.Patches() {
		if !p.IsExpanded() {
			continue
		}
		sc.Cells = append(sc.Cells, Cell{
			X:    float64(p.Index().X) * res,
			Y:    float64(p.Index().Y) * res,
			Z:    p.Height(),
			Kind: p.Kind(),
		})
	}

	for _, seg := range segments {
		line := make([][2]float64, 0, len(seg.Positions))
		for _, pos := range seg.Positions {
			line = append(line, [2]float64{pos.X, pos.Y})
		}
		sc.Path = append(sc.Path, line)
		sc.Backward = append(sc.Backward, seg.Speed < 0)
	}
	sc.HasPlan = len(segments) > 0

	if id := e.StartStateID(); id >= 0 {
		if pos, err := e.StatePosition(id); err == nil {
			sc.Start = [2]float64{pos.X, pos.Y}
		}
	}
	if id := e.GoalStateID(); id >= 0 {
		if pos, err := e.StatePosition(id); err == nil {
			sc.Goal = [2]float64{pos.X, pos.Y}
		}
	}
	return sc
}

// Bounds returns the world-space bounding box of the scene.
func (s Scene) Bounds() (minX, minY, maxX, maxY float64) {
	if len(s.Cells) == 0 {
		return 0, 0, 1, 1
	}
	minX, minY = s.Cells[0].X, s.Cells[0].Y
	maxX, maxY = minX, minY
	for _, c := range s.Cells {
		if c.X < minX {
			minX = c.X
		}
		if c.Y < minY {
			minY = c.Y
		}
		if c.X+s.Resolution > maxX {
			maxX = c.X + s.Resolution
		}
		if c.Y+s.Resolution > maxY {
			maxY = c.Y + s.Resolution
		}
	}
	return minX, minY, maxX, maxY
}
