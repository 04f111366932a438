// Package mls models the Multi-Level-Surface map the planner runs on: a 2D
// grid of fixed resolution where each cell holds a stack of surface patches
// at different heights. The planner treats the map as read-only.
package mls

import (
	"sort"

	"github.com/golang/geo/r3"

	"github.com/soraxas/ugv-nav4d/internal/core"
)

// SurfacePatch is one surface layer within a cell.
type SurfacePatch struct {
	Z      float64
	Normal r3.Vector // zero when unknown
}

// Grid is the MLS map. Cell (0,0) spans world [0,res)×[0,res).
type Grid struct {
	res   float64
	numX  int
	numY  int
	cells [][]SurfacePatch
}

// NewGrid creates an empty map of numX×numY cells at the given resolution.
func NewGrid(numX, numY int, resolution float64) *Grid {
	return &Grid{
		res:   resolution,
		numX:  numX,
		numY:  numY,
		cells: make([][]SurfacePatch, numX*numY),
	}
}

// Resolution returns the cell edge length in meters.
func (g *Grid) Resolution() float64 { return g.res }

// NumCellsX returns the grid width in cells.
func (g *Grid) NumCellsX() int { return g.numX }

// NumCellsY returns the grid height in cells.
func (g *Grid) NumCellsY() int { return g.numY }

// InBounds reports whether idx addresses a cell of the grid.
func (g *Grid) InBounds(idx core.Index) bool {
	return idx.X >= 0 && idx.X < g.numX && idx.Y >= 0 && idx.Y < g.numY
}

// ToGrid converts a world position to a cell index.
func (g *Grid) ToGrid(x, y float64) (core.Index, bool) {
	idx := core.Index{X: int(x / g.res), Y: int(y / g.res)}
	if x < 0 || y < 0 || !g.InBounds(idx) {
		return core.Index{}, false
	}
	return idx, true
}

// FromGrid returns the world position of a cell center at height z.
func (g *Grid) FromGrid(idx core.Index, z float64) r3.Vector {
	return r3.Vector{
		X: (float64(idx.X) + 0.5) * g.res,
		Y: (float64(idx.Y) + 0.5) * g.res,
		Z: z,
	}
}

// Cell returns the surface patches stacked in a cell, ordered by height.
// The returned slice is owned by the grid.
func (g *Grid) Cell(idx core.Index) []SurfacePatch {
	if !g.InBounds(idx) {
		return nil
	}
	return g.cells[idx.Y*g.numX+idx.X]
}

// Add inserts a surface patch, keeping the stack sorted by height.
func (g *Grid) Add(idx core.Index, p SurfacePatch) {
	if !g.InBounds(idx) {
		return
	}
	i := idx.Y*g.numX + idx.X
	g.cells[i] = append(g.cells[i], p)
	sort.Slice(g.cells[i], func(a, b int) bool { return g.cells[i][a].Z < g.cells[i][b].Z })
}

// ClearCell removes all surfaces from a cell, leaving it unknown.
func (g *Grid) ClearCell(idx core.Index) {
	if g.InBounds(idx) {
		g.cells[idx.Y*g.numX+idx.X] = nil
	}
}
