// Package motion holds the pre-computed motion primitive table the search
// environment expands states with. Primitives are indexed by their discrete
// start heading and by id.
package motion

import (
	"math"

	"github.com/soraxas/ugv-nav4d/internal/core"
)

// CostScaleFactor converts seconds to the integer cost unit shared between
// edge costs and the heuristic (milliseconds).
const CostScaleFactor = 1000

// Kind classifies a primitive's maneuver.
type Kind int

const (
	Forward Kind = iota
	Backward
	PointTurn
	Lateral
)

func (k Kind) String() string {
	return [...]string{"forward", "backward", "pointturn", "lateral"}[k]
}

// PoseWithCell is one intermediate step of a primitive: the cell offset from
// the start cell and the continuous pose relative to the start cell center.
type PoseWithCell struct {
	Cell core.Index
	Pose core.Pose2D
}

// CellWithPoses groups the dense sample poses falling into one cell. Used
// only for trajectory output.
type CellWithPoses struct {
	Cell  core.Index
	Poses []core.Pose2D
}

// Motion is one pre-computed primitive.
type Motion struct {
	ID         int
	DX, DY     int
	StartTheta core.DiscreteTheta
	EndTheta   core.DiscreteTheta
	Kind       Kind

	// TravSteps traces the driveability layer, one entry per crossed cell.
	TravSteps []PoseWithCell
	// ObstSteps traces the obstacle layer with denser pose sampling.
	ObstSteps []PoseWithCell
	// Samples is the dense polyline for trajectory output.
	Samples []CellWithPoses

	TranslationDist float64 // meters
	AngularDist     float64 // radians

	BaseCost       int
	CostMultiplier int
}

// CalculateCost derives the integer cost of covering translationDist and
// angularDist at the given speeds. Translation and rotation overlap, so the
// slower of the two dominates. The result is never below 1.
func CalculateCost(translationDist, angularDist, translationSpeed, rotationSpeed float64, multiplier int) int {
	tTrans := translationDist / translationSpeed
	tRot := angularDist / rotationSpeed
	cost := int(math.Ceil(math.Max(tTrans, tRot) * float64(multiplier) * CostScaleFactor))
	if cost < 1 {
		cost = 1
	}
	return cost
}

// PrecomputeCost fills BaseCost from the primitive's geometry.
func (m *Motion) PrecomputeCost(mobility core.Mobility) {
	m.BaseCost = CalculateCost(m.TranslationDist, m.AngularDist,
		mobility.TranslationSpeed, mobility.RotationSpeed, m.CostMultiplier)
}
