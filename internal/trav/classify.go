package trav

import (
	"math"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	"github.com/soraxas/ugv-nav4d/internal/core"
)

var neighborOffsets = []core.Index{
	{X: -1, Y: -1}, {X: 0, Y: -1}, {X: 1, Y: -1},
	{X: -1, Y: 0}, {X: 1, Y: 0},
	{X: -1, Y: 1}, {X: 0, Y: 1}, {X: 1, Y: 1},
}

// expandLocked classifies p and resolves its neighbor links. Caller holds
// g.mu and has verified p is not expanded. The expanded flag is stored last
// so lock-free readers observe fully written classification data.
func (g *Graph) expandLocked(p *Patch) {
	slope, gradientDir, missingData, ok := g.fitPlane(p)

	switch {
	case ok && slope > g.cfg.SlopeLimit:
		p.kind = KindObstacle
	case !ok && !missingData:
		// Degenerate support without unknown neighbors: an isolated
		// ridge the robot cannot stand on.
		p.kind = KindObstacle
	case !ok || missingData:
		p.kind = KindFrontier
	default:
		p.kind = KindTraversable
	}
	p.slope = slope
	p.gradientDir = gradientDir
	p.allowed = allowedOrientations(slope, gradientDir, g.cfg.MaxRoll, g.cfg.MaxPitch)

	// Neighbor links: one patch per adjacent cell, chosen by height
	// proximity, absent when the step exceeds the configured step height.
	for _, off := range neighborOffsets {
		idx := p.index.Add(off)
		var best *Patch
		minDz := math.Inf(1)
		for _, q := range g.cellPatchesLocked(idx) {
			dz := math.Abs(q.height - p.height)
			if dz < minDz {
				minDz = dz
				best = q
			}
		}
		if best != nil && minDz <= g.cfg.StepHeight {
			p.neighbors = append(p.neighbors, best)
		}
	}

	if p.kind == KindObstacle || p.kind == KindFrontier {
		g.insertSpatial(p)
	}

	p.expanded.Store(true)

	g.log.Debug("patch expanded",
		zap.Int("id", p.id),
		zap.Int("x", p.index.X), zap.Int("y", p.index.Y),
		zap.Stringer("kind", p.kind),
		zap.Float64("slope", slope))
}

// fitPlane fits z = a·x + b·y + c over the 3×3 MLS neighborhood by least
// squares and returns the incline and uphill direction. missingData is set
// when an in-bounds neighbor cell holds no surface at all; ok is false when
// fewer than three support points exist.
func (g *Graph) fitPlane(p *Patch) (slope, gradientDir float64, missingData, ok bool) {
	res := g.mls.Resolution()
	var xs, ys, zs []float64
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			idx := core.Index{X: p.index.X + dx, Y: p.index.Y + dy}
			if !g.mls.InBounds(idx) {
				continue
			}
			stack := g.mls.Cell(idx)
			if len(stack) == 0 {
				missingData = true
				continue
			}
			// Support point: the surface closest to the patch height,
			// ignored when beyond the step height (separate level).
			bestZ := math.NaN()
			minDz := math.Inf(1)
			for _, s := range stack {
				dz := math.Abs(s.Z - p.height)
				if dz < minDz {
					minDz = dz
					bestZ = s.Z
				}
			}
			if minDz > g.cfg.StepHeight {
				continue
			}
			xs = append(xs, float64(dx)*res)
			ys = append(ys, float64(dy)*res)
			zs = append(zs, bestZ)
		}
	}
	if len(zs) < 3 {
		return 0, 0, missingData, false
	}

	a := mat.NewDense(len(zs), 3, nil)
	b := mat.NewVecDense(len(zs), zs)
	for i := range zs {
		a.Set(i, 0, xs[i])
		a.Set(i, 1, ys[i])
		a.Set(i, 2, 1)
	}
	var beta mat.VecDense
	if err := beta.SolveVec(a, b); err != nil {
		// Degenerate neighborhood (e.g. collinear support).
		return 0, 0, missingData, false
	}
	gx, gy := beta.AtVec(0), beta.AtVec(1)
	slope = math.Atan(math.Hypot(gx, gy))
	gradientDir = math.Atan2(gy, gx)
	return slope, gradientDir, missingData, true
}

// allowedOrientations derives the heading segments within which roll and
// pitch stay inside their limits on a plane of the given incline. Flat
// enough patches allow every heading; patches steeper than maxPitch allow
// none. In between, two segments centered on the uphill and downhill
// directions remain, with half-width bounded by the roll limit.
func allowedOrientations(slope, gradientDir, maxRoll, maxPitch float64) []core.AngleSegment {
	if slope <= math.Min(maxRoll, maxPitch) {
		return []core.AngleSegment{core.FullCircle()}
	}
	if slope > maxPitch {
		return nil
	}
	ratio := math.Tan(maxRoll) / math.Tan(slope)
	if ratio >= 1 {
		return []core.AngleSegment{core.FullCircle()}
	}
	halfWidth := math.Asin(ratio)
	return []core.AngleSegment{
		{Start: core.NormalizeAngle(gradientDir - halfWidth), Width: 2 * halfWidth},
		{Start: core.NormalizeAngle(gradientDir + math.Pi - halfWidth), Width: 2 * halfWidth},
	}
}
