package motion

import (
	"fmt"
	"math"

	"github.com/soraxas/ugv-nav4d/internal/core"
)

// DefaultSet synthesizes a primitive table from straight-line templates:
// forward, backward and lateral translations up to the configured reach,
// plus point turns by one and two heading bins either way. External primitive tables can
// be supplied instead; this covers platforms without a dedicated spline
// primitive source.
func DefaultSet(prim core.PrimitiveConfig, mobility core.Mobility, gridRes float64) (*Table, error) {
	n := prim.NumAngles
	if n < 4 || n%4 != 0 {
		return nil, fmt.Errorf("num_angles must be a positive multiple of 4, got %d", n)
	}
	table := NewTable(n)

	for t := 0; t < n; t++ {
		start := core.NewDiscreteTheta(t, n)

		for r := 1; r <= prim.Reach; r++ {
			if dx, dy, ok := straightOffset(start, r); ok {
				addStraight(table, start, dx, dy, Forward, mobility, gridRes)
				addStraight(table, start, -dx, -dy, Backward, mobility, gridRes)
			}
			// Lateral slides keep the body heading while moving sideways.
			left := start.Add(n / 4)
			if dx, dy, ok := straightOffset(left, r); ok {
				addStraight(table, start, dx, dy, Lateral, mobility, gridRes)
				addStraight(table, start, -dx, -dy, Lateral, mobility, gridRes)
			}
		}

		for _, dt := range []int{-2, -1, 1, 2} {
			addPointTurn(table, start, dt, mobility)
		}
	}

	if table.Len() == 0 {
		return nil, fmt.Errorf("primitive synthesis produced no motions")
	}
	return table, nil
}

// straightOffset maps a heading and reach onto an integer cell offset. The
// offset is only usable when its direction discretizes back onto the same
// heading bin, otherwise the motion would drift off its heading.
func straightOffset(theta core.DiscreteTheta, reach int) (dx, dy int, ok bool) {
	rad := theta.Radian()
	dx = int(math.Round(math.Cos(rad) * float64(reach)))
	dy = int(math.Round(math.Sin(rad) * float64(reach)))
	if dx == 0 && dy == 0 {
		return 0, 0, false
	}
	back := core.ThetaFromRadian(math.Atan2(float64(dy), float64(dx)), theta.NumAngles())
	if back != theta {
		return 0, 0, false
	}
	return dx, dy, true
}

func addStraight(table *Table, start core.DiscreteTheta, dx, dy int, kind Kind, mobility core.Mobility, gridRes float64) {
	heading := start.Radian()
	endX := float64(dx) * gridRes
	endY := float64(dy) * gridRes
	length := math.Hypot(endX, endY)

	const samplesPerCell = 16
	numSamples := samplesPerCell * (abs(dx) + abs(dy) + 1)

	m := Motion{
		DX:              dx,
		DY:              dy,
		StartTheta:      start,
		EndTheta:        start,
		Kind:            kind,
		TranslationDist: length,
		AngularDist:     0,
		CostMultiplier:  multiplierFor(kind, mobility),
	}

	lastCell := core.Index{}
	var cellSamples []core.Pose2D
	flush := func() {
		if len(cellSamples) == 0 {
			return
		}
		mid := cellSamples[len(cellSamples)/2]
		m.TravSteps = append(m.TravSteps, PoseWithCell{Cell: lastCell, Pose: cellSamples[0]})
		m.ObstSteps = append(m.ObstSteps, PoseWithCell{Cell: lastCell, Pose: mid})
		m.Samples = append(m.Samples, CellWithPoses{Cell: lastCell, Poses: cellSamples})
		cellSamples = nil
	}

	for i := 0; i <= numSamples; i++ {
		s := float64(i) / float64(numSamples)
		pose := core.Pose2D{X: s * endX, Y: s * endY, Heading: heading}
		cell := core.Index{
			X: int(math.Round(pose.X / gridRes)),
			Y: int(math.Round(pose.Y / gridRes)),
		}
		if cell != lastCell && len(cellSamples) > 0 {
			flush()
			lastCell = cell
		}
		cellSamples = append(cellSamples, pose)
	}
	flush()

	m.PrecomputeCost(mobility)
	// Grid-aligned duplicates of shorter reaches are rejected by the table;
	// that is expected, not an error.
	table.Add(m) //nolint:errcheck
}

func addPointTurn(table *Table, start core.DiscreteTheta, dTheta int, mobility core.Mobility) {
	end := start.Add(dTheta)
	angular := start.ShortestDist(end).Radian()

	m := Motion{
		StartTheta:      start,
		EndTheta:        end,
		Kind:            PointTurn,
		TranslationDist: 0,
		AngularDist:     angular,
		CostMultiplier:  multiplierFor(PointTurn, mobility),
	}

	// A point turn never leaves its cell; the obstacle trace still sweeps
	// the heading so incline limits apply to intermediate orientations.
	m.TravSteps = []PoseWithCell{{Pose: core.Pose2D{Heading: start.Radian()}}}
	const turnSamples = 8
	var poses []core.Pose2D
	from := start.Radian()
	diff := signedAngleDiff(from, end.Radian())
	for i := 0; i <= turnSamples; i++ {
		h := from + diff*float64(i)/float64(turnSamples)
		pose := core.Pose2D{Heading: core.NormalizeAngle(h)}
		poses = append(poses, pose)
		m.ObstSteps = append(m.ObstSteps, PoseWithCell{Pose: pose})
	}
	m.Samples = []CellWithPoses{{Poses: poses}}

	m.PrecomputeCost(mobility)
	table.Add(m) //nolint:errcheck
}

// signedAngleDiff returns the smallest signed rotation from a to b.
func signedAngleDiff(a, b float64) float64 {
	d := math.Mod(b-a, 2*math.Pi)
	if d > math.Pi {
		d -= 2 * math.Pi
	}
	if d < -math.Pi {
		d += 2 * math.Pi
	}
	return d
}

func multiplierFor(kind Kind, mobility core.Mobility) int {
	switch kind {
	case Forward:
		return mobility.MultiplierForward
	case Backward:
		return mobility.MultiplierBackward
	case Lateral:
		return mobility.MultiplierLateral
	case PointTurn:
		return mobility.MultiplierPointTurn
	default:
		return 1
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
