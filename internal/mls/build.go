package mls

import (
	"math"

	"github.com/soraxas/ugv-nav4d/internal/core"
)

// Builders for synthetic terrain, used by tests and tools.

// BuildFlat creates a grid with a single level surface at height z in every
// cell.
func BuildFlat(numX, numY int, resolution, z float64) *Grid {
	g := NewGrid(numX, numY, resolution)
	for y := 0; y < numY; y++ {
		for x := 0; x < numX; x++ {
			g.Add(core.Index{X: x, Y: y}, SurfacePatch{Z: z})
		}
	}
	return g
}

// AddRampX overwrites cells in [x0,x1) with a plane rising along +x at the
// given incline (radians), starting from height z0 at x0.
func (g *Grid) AddRampX(x0, x1 int, z0, incline float64) {
	rise := math.Tan(incline) * g.res
	for y := 0; y < g.numY; y++ {
		for x := x0; x < x1 && x < g.numX; x++ {
			idx := core.Index{X: x, Y: y}
			g.ClearCell(idx)
			g.Add(idx, SurfacePatch{Z: z0 + float64(x-x0)*rise})
		}
	}
}

// AddStepX raises every cell with x >= at by dz, forming a step edge along
// the given column.
func (g *Grid) AddStepX(at int, dz float64) {
	for y := 0; y < g.numY; y++ {
		for x := at; x < g.numX; x++ {
			idx := core.Index{X: x, Y: y}
			stack := g.Cell(idx)
			raised := make([]SurfacePatch, len(stack))
			for i, p := range stack {
				p.Z += dz
				raised[i] = p
			}
			g.ClearCell(idx)
			for _, p := range raised {
				g.Add(idx, p)
			}
		}
	}
}

// AddWall raises the cells of the rectangle [x0,x1)×[y0,y1) by height,
// producing terrain the robot cannot climb.
func (g *Grid) AddWall(x0, y0, x1, y1 int, height float64) {
	for y := y0; y < y1 && y < g.numY; y++ {
		for x := x0; x < x1 && x < g.numX; x++ {
			idx := core.Index{X: x, Y: y}
			stack := g.Cell(idx)
			base := 0.0
			if len(stack) > 0 {
				base = stack[len(stack)-1].Z
			}
			g.ClearCell(idx)
			g.Add(idx, SurfacePatch{Z: base + height})
		}
	}
}

// ClearRect removes all surfaces inside the rectangle, leaving unknown
// terrain that classifies as frontier at its boundary.
func (g *Grid) ClearRect(x0, y0, x1, y1 int) {
	for y := y0; y < y1 && y < g.numY; y++ {
		for x := x0; x < x1 && x < g.numX; x++ {
			g.ClearCell(core.Index{X: x, Y: y})
		}
	}
}
