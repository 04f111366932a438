package trav

import (
	"fmt"
	"math"
	"sync"

	"github.com/dhconnelly/rtreego"
	"github.com/golang/geo/r3"
	"go.uber.org/zap"

	"github.com/soraxas/ugv-nav4d/internal/core"
	"github.com/soraxas/ugv-nav4d/internal/mls"
)

// Role distinguishes the two layers built over the same MLS map.
type Role int

const (
	// RoleDriveability models where the wheel contact point can rest.
	RoleDriveability Role = iota
	// RoleObstacle models the volume swept by the full robot body.
	RoleObstacle
)

func (r Role) String() string {
	return [...]string{"driveability", "obstacle"}[r]
}

// Graph incrementally builds a traversability graph from an MLS map.
// Patches are created on demand and classified by Expand. A single map-wide
// mutex guards all mutation; readers go through the patches' expanded flag.
type Graph struct {
	role Role
	cfg  core.TraversabilityConfig
	mls  *mls.Grid
	log  *zap.Logger

	mu      sync.Mutex
	cells   map[core.Index][]*Patch
	patches []*Patch

	spatialMu sync.RWMutex
	spatial   *rtreego.Rtree
}

// NewGraph creates an empty graph over the map.
func NewGraph(role Role, grid *mls.Grid, cfg core.TraversabilityConfig, log *zap.Logger) *Graph {
	if log == nil {
		log = zap.NewNop()
	}
	return &Graph{
		role:    role,
		cfg:     cfg,
		mls:     grid,
		log:     log.With(zap.Stringer("layer", role)),
		cells:   make(map[core.Index][]*Patch),
		spatial: rtreego.NewTree(2, 25, 50),
	}
}

// Role returns the layer this graph models.
func (g *Graph) Role() Role { return g.role }

// Map returns the underlying MLS grid.
func (g *Graph) Map() *mls.Grid { return g.mls }

// Position returns the world position of a patch center.
func (g *Graph) Position(p *Patch) r3.Vector {
	return g.mls.FromGrid(p.index, p.height)
}

// NumPatches returns the number of patches created so far.
func (g *Graph) NumPatches() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.patches)
}

// PatchByID returns the patch with the given id, or nil.
func (g *Graph) PatchByID(id int) *Patch {
	g.mu.Lock()
	defer g.mu.Unlock()
	if id < 0 || id >= len(g.patches) {
		return nil
	}
	return g.patches[id]
}

// Patches returns a snapshot of all patches.
func (g *Graph) Patches() []*Patch {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]*Patch, len(g.patches))
	copy(out, g.patches)
	return out
}

// FrontierPatches returns all expanded patches classified Frontier.
func (g *Graph) FrontierPatches() []*Patch {
	var out []*Patch
	for _, p := range g.Patches() {
		if p.Kind() == KindFrontier {
			out = append(out, p)
		}
	}
	return out
}

// CellPatches returns the patches of a cell, creating them from the MLS
// stack on first access.
func (g *Graph) CellPatches(idx core.Index) []*Patch {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.cellPatchesLocked(idx)
}

func (g *Graph) cellPatchesLocked(idx core.Index) []*Patch {
	if ps, ok := g.cells[idx]; ok {
		return ps
	}
	if !g.mls.InBounds(idx) {
		g.cells[idx] = nil
		return nil
	}
	var ps []*Patch
	for _, s := range g.mls.Cell(idx) {
		p := &Patch{id: len(g.patches), index: idx, height: s.Z}
		g.patches = append(g.patches, p)
		ps = append(ps, p)
	}
	g.cells[idx] = ps
	return ps
}

// GenerateStartPatch locates the patch closest in height to pos, creating
// the cell's patches if needed, and returns it without expanding it.
func (g *Graph) GenerateStartPatch(pos r3.Vector) (*Patch, error) {
	idx, ok := g.mls.ToGrid(pos.X, pos.Y)
	if !ok {
		return nil, fmt.Errorf("%w: (%.3f, %.3f)", core.ErrMapOutOfBounds, pos.X, pos.Y)
	}
	best := g.closestPatch(idx, pos.Z)
	if best == nil {
		return nil, fmt.Errorf("%w: no surface at cell (%d, %d)", core.ErrStateCreation, idx.X, idx.Y)
	}
	return best, nil
}

// Lookup returns the patch closest in height to pos, or nil.
func (g *Graph) Lookup(pos r3.Vector) *Patch {
	idx, ok := g.mls.ToGrid(pos.X, pos.Y)
	if !ok {
		return nil
	}
	return g.closestPatch(idx, pos.Z)
}

// FindMatchingPatch maps a patch of the other layer onto this one: the
// patch at the same cell whose height difference is minimal.
func (g *Graph) FindMatchingPatch(idx core.Index, z float64) *Patch {
	return g.closestPatch(idx, z)
}

func (g *Graph) closestPatch(idx core.Index, z float64) *Patch {
	var best *Patch
	minDist := math.Inf(1)
	for _, p := range g.CellPatches(idx) {
		d := math.Abs(p.height - z)
		if d < minDist {
			minDist = d
			best = p
		}
	}
	return best
}

// Expand classifies the patch and resolves its neighbor links. It returns
// true when the patch is Traversable. Safe to call concurrently; expansion
// of the same patch is serialized through the map-wide mutex and
// double-checked against the expanded flag.
func (g *Graph) Expand(p *Patch) bool {
	if p.expanded.Load() {
		return p.kind == KindTraversable
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if !p.expanded.Load() {
		g.expandLocked(p)
	}
	return p.kind == KindTraversable
}

// ExpandFrom floods expansion out from seed until no unexpanded neighbor of
// a traversable patch remains.
func (g *Graph) ExpandFrom(seed *Patch) {
	queue := []*Patch{seed}
	queued := map[*Patch]bool{seed: true}
	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]
		if !g.Expand(p) {
			continue
		}
		for _, n := range p.Connections() {
			if !n.IsExpanded() && !queued[n] {
				queued[n] = true
				queue = append(queue, n)
			}
		}
	}
	g.log.Debug("expansion flood done", zap.Int("patches", g.NumPatches()))
}

// ExpandAll floods expansion from each seed position. Positions outside the
// map or without a surface are skipped.
func (g *Graph) ExpandAll(seeds []r3.Vector) {
	for _, pos := range seeds {
		p, err := g.GenerateStartPatch(pos)
		if err != nil {
			g.log.Warn("seed skipped", zap.Error(err))
			continue
		}
		g.ExpandFrom(p)
	}
}

// Clear drops all patches, returning the graph to its initial state.
func (g *Graph) Clear() {
	g.mu.Lock()
	g.cells = make(map[core.Index][]*Patch)
	g.patches = nil
	g.mu.Unlock()

	g.spatialMu.Lock()
	g.spatial = rtreego.NewTree(2, 25, 50)
	g.spatialMu.Unlock()
}
