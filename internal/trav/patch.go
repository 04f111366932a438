// Package trav builds traversability graphs over an MLS map and provides
// the distance and footprint computations the search environment runs on.
package trav

import (
	"sync/atomic"

	"github.com/soraxas/ugv-nav4d/internal/core"
)

// Kind classifies a patch. Transitions go from Unknown/Unset to one of the
// final kinds during expansion and never back.
type Kind int

const (
	KindUnknown Kind = iota
	KindUnset
	KindTraversable
	KindObstacle
	KindFrontier
)

func (k Kind) String() string {
	return [...]string{"unknown", "unset", "traversable", "obstacle", "frontier"}[k]
}

// Patch is one surface layer of one grid cell: a node of the traversability
// graph. Classification fields are written once during expansion, under the
// graph mutex, and published by the expanded flag.
type Patch struct {
	id     int
	index  core.Index
	height float64

	expanded atomic.Bool

	kind        Kind
	slope       float64
	gradientDir float64
	allowed     []core.AngleSegment
	neighbors   []*Patch
}

// ID returns the sequential patch id, usable as a dense array index.
func (p *Patch) ID() int { return p.id }

// Index returns the grid cell of the patch.
func (p *Patch) Index() core.Index { return p.index }

// Height returns the surface height.
func (p *Patch) Height() float64 { return p.height }

// IsExpanded reports whether classification and linking have completed.
func (p *Patch) IsExpanded() bool { return p.expanded.Load() }

// Kind returns the classification, KindUnknown before expansion.
func (p *Patch) Kind() Kind {
	if !p.expanded.Load() {
		return KindUnknown
	}
	return p.kind
}

// Slope returns the fitted plane incline in radians.
func (p *Patch) Slope() float64 {
	if !p.expanded.Load() {
		return 0
	}
	return p.slope
}

// AllowedOrientations returns the heading segments the robot may assume on
// this patch without exceeding its roll and pitch limits.
func (p *Patch) AllowedOrientations() []core.AngleSegment {
	if !p.expanded.Load() {
		return nil
	}
	return p.allowed
}

// OrientationAllowed reports whether the heading is inside any allowed
// segment.
func (p *Patch) OrientationAllowed(rad float64) bool {
	return core.HeadingAllowed(p.AllowedOrientations(), rad)
}

// Connections returns the linked neighbor patches. Links are resolved during
// expansion and immutable afterwards.
func (p *Patch) Connections() []*Patch {
	if !p.expanded.Load() {
		return nil
	}
	return p.neighbors
}

// ConnectedTo returns the neighbor at the given cell, or nil when the step
// height rule left no link in that direction.
func (p *Patch) ConnectedTo(idx core.Index) *Patch {
	for _, n := range p.Connections() {
		if n.index == idx {
			return n
		}
	}
	return nil
}
