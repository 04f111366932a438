package motion

import (
	"fmt"

	"github.com/soraxas/ugv-nav4d/internal/core"
)

// Table indexes primitives by discrete start heading and by id.
type Table struct {
	numAngles int
	motions   []*Motion
	byTheta   [][]*Motion
}

// NewTable creates an empty table for numAngles discrete headings.
func NewTable(numAngles int) *Table {
	return &Table{
		numAngles: numAngles,
		byTheta:   make([][]*Motion, numAngles),
	}
}

// NumAngles returns the heading discretization of the table.
func (t *Table) NumAngles() int { return t.numAngles }

// Len returns the number of primitives.
func (t *Table) Len() int { return len(t.motions) }

// Add validates a primitive, assigns its id and indexes it. Primitives with
// malformed step lists and duplicates of (Δx, Δy, Δθ) within a start-theta
// bucket are rejected.
func (t *Table) Add(m Motion) (*Motion, error) {
	if m.StartTheta.NumAngles() != t.numAngles || m.EndTheta.NumAngles() != t.numAngles {
		return nil, fmt.Errorf("motion discretization %d does not match table %d",
			m.StartTheta.NumAngles(), t.numAngles)
	}
	if err := validateSteps(m.TravSteps, m.DX, m.DY); err != nil {
		return nil, fmt.Errorf("trav steps: %w", err)
	}
	if err := validateSteps(m.ObstSteps, m.DX, m.DY); err != nil {
		return nil, fmt.Errorf("obst steps: %w", err)
	}
	if m.BaseCost < 1 {
		return nil, fmt.Errorf("base cost %d below 1", m.BaseCost)
	}

	bucket := m.StartTheta.Theta()
	for _, other := range t.byTheta[bucket] {
		if other.DX == m.DX && other.DY == m.DY && other.EndTheta == m.EndTheta {
			return nil, fmt.Errorf("duplicate primitive (%d,%d,θ%d) for start θ%d",
				m.DX, m.DY, m.EndTheta.Theta(), bucket)
		}
	}

	m.ID = len(t.motions)
	stored := m
	t.motions = append(t.motions, &stored)
	t.byTheta[bucket] = append(t.byTheta[bucket], &stored)
	return &stored, nil
}

// ForStartTheta returns the primitives applicable from the given heading.
func (t *Table) ForStartTheta(theta core.DiscreteTheta) []*Motion {
	if theta.Theta() >= t.numAngles {
		return nil
	}
	return t.byTheta[theta.Theta()]
}

// ByID returns the primitive with the given id, or nil.
func (t *Table) ByID(id int) *Motion {
	if id < 0 || id >= len(t.motions) {
		return nil
	}
	return t.motions[id]
}

// validateSteps enforces the step list invariant: starts at (0,0), ends at
// the primitive's cell offset, and consecutive cells stay 8-connected.
func validateSteps(steps []PoseWithCell, dx, dy int) error {
	if len(steps) == 0 {
		return fmt.Errorf("empty step list")
	}
	if steps[0].Cell != (core.Index{}) {
		return fmt.Errorf("first cell %v is not the origin", steps[0].Cell)
	}
	last := steps[len(steps)-1].Cell
	if last.X != dx || last.Y != dy {
		return fmt.Errorf("last cell (%d,%d) does not match offset (%d,%d)", last.X, last.Y, dx, dy)
	}
	for i := 1; i < len(steps); i++ {
		d := steps[i].Cell.Sub(steps[i-1].Cell)
		if d.X < -1 || d.X > 1 || d.Y < -1 || d.Y > 1 {
			return fmt.Errorf("cells %v and %v are not adjacent", steps[i-1].Cell, steps[i].Cell)
		}
	}
	return nil
}
