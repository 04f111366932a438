package env

import (
	"fmt"
	"math"
	"runtime"
	"sync"

	"github.com/golang/geo/r3"
	"go.uber.org/zap"

	"github.com/soraxas/ugv-nav4d/internal/core"
	"github.com/soraxas/ugv-nav4d/internal/motion"
	"github.com/soraxas/ugv-nav4d/internal/trav"
)

// GetSuccs enumerates the successors of a state: every primitive applicable
// from its heading that traces traversable driveability patches, passes the
// obstacle-layer sweep and keeps the footprint clean. Infeasible primitives
// are silently skipped. The successor order is unspecified.
func (e *Env) GetSuccs(id int) ([]Successor, error) {
	s, err := e.state(id)
	if err != nil {
		return nil, err
	}
	sourceTrav := s.xyz.trav
	if !e.travGraph.Expand(sourceTrav) {
		e.log.Debug("source state not expandable", zap.Int("state", id))
		return nil, nil
	}

	sourcePos := e.travGraph.Position(sourceTrav)
	sourceObst := e.obstGraph.FindMatchingPatch(sourceTrav.Index(), sourceTrav.Height())
	if sourceObst == nil {
		return nil, fmt.Errorf("%w: no obstacle patch for state %d", core.ErrInternalInvariant, id)
	}

	motions := e.motions.ForStartTheta(s.theta.theta)

	var (
		succs    []Successor
		resultMu sync.Mutex
		firstErr error
		errMu    sync.Mutex
	)
	work := func(m *motion.Motion) {
		succ, ok, err := e.applyMotion(sourceTrav, sourceObst, sourcePos, m)
		if err != nil {
			errMu.Lock()
			if firstErr == nil {
				firstErr = err
			}
			errMu.Unlock()
			return
		}
		if !ok {
			return
		}
		resultMu.Lock()
		succs = append(succs, succ)
		resultMu.Unlock()
	}

	if e.cfg.Traversability.Parallel && len(motions) > 1 {
		workers := runtime.GOMAXPROCS(0)
		if workers > len(motions) {
			workers = len(motions)
		}
		var wg sync.WaitGroup
		ch := make(chan *motion.Motion)
		for w := 0; w < workers; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for m := range ch {
					work(m)
				}
			}()
		}
		for _, m := range motions {
			ch <- m
		}
		close(ch)
		wg.Wait()
	} else {
		for _, m := range motions {
			work(m)
		}
	}

	if firstErr != nil {
		return nil, firstErr
	}
	return succs, nil
}

// movementPossible resolves one step along a layer: the target patch must
// be linked, expandable and traversable.
func movementPossible(g *trav.Graph, from *trav.Patch, fromIdx, toIdx core.Index) *trav.Patch {
	if toIdx == fromIdx {
		return from
	}
	target := from.ConnectedTo(toIdx)
	if target == nil {
		return nil
	}
	if !g.Expand(target) {
		return nil
	}
	return target
}

// applyMotion checks one primitive from the source state. ok is false when
// the primitive is infeasible here; err reports invariant violations only.
func (e *Env) applyMotion(sourceTrav, sourceObst *trav.Patch, sourcePos r3.Vector, m *motion.Motion) (Successor, bool, error) {
	// Trace the driveability layer.
	srcIdx := sourceTrav.Index()
	goalTrav := sourceTrav
	curIdx := srcIdx
	for _, step := range m.TravSteps {
		newIdx := srcIdx.Add(step.Cell)
		goalTrav = movementPossible(e.travGraph, goalTrav, curIdx, newIdx)
		if goalTrav == nil {
			return Successor{}, false, nil
		}
		curIdx = newIdx
	}
	wantIdx := srcIdx.Add(core.Index{X: m.DX, Y: m.DY})
	if goalTrav.Index() != wantIdx {
		return Successor{}, false, fmt.Errorf("%w: motion %d walked to (%d,%d), expected (%d,%d)",
			core.ErrInternalInvariant, m.ID, goalTrav.Index().X, goalTrav.Index().Y, wantIdx.X, wantIdx.Y)
	}

	// Re-trace the obstacle layer with the swept poses.
	obstIdx := sourceObst.Index()
	obstNode := sourceObst
	curObstIdx := obstIdx
	nodes := make([]*trav.Patch, 0, len(m.ObstSteps))
	poses := make([]core.Pose2D, 0, len(m.ObstSteps))
	for _, step := range m.ObstSteps {
		newIdx := obstIdx.Add(step.Cell)
		obstNode = movementPossible(e.obstGraph, obstNode, curObstIdx, newIdx)
		if obstNode == nil {
			return Successor{}, false, nil
		}
		if e.cfg.Traversability.EnableInclineLimit && !obstNode.OrientationAllowed(step.Pose.Heading) {
			return Successor{}, false, nil
		}
		nodes = append(nodes, obstNode)
		poses = append(poses, core.Pose2D{
			X:       step.Pose.X + sourcePos.X,
			Y:       step.Pose.Y + sourcePos.Y,
			Heading: step.Pose.Heading,
		})
		curObstIdx = newIdx
	}

	stats := trav.NewPathStatistics(e.cfg.Traversability)
	stats.Calculate(e.obstGraph, nodes, poses)
	if stats.Robot().NumObstacles() > 0 || stats.Robot().NumFrontiers() > 0 {
		return Successor{}, false, nil
	}

	// The motion is feasible; allocate the successor state.
	succXYZ := e.getOrCreateXYZ(goalTrav)
	succTheta := e.getOrCreateTheta(succXYZ, m.EndTheta)

	cost, err := e.edgeCost(sourceTrav, goalTrav, nodes, stats, m)
	if err != nil {
		return Successor{}, false, err
	}
	return Successor{StateID: succTheta.id, Cost: cost, MotionID: m.ID}, true, nil
}

// edgeCost applies the slope metric and the boundary proximity penalties to
// the primitive's base cost.
func (e *Env) edgeCost(sourceTrav, goalTrav *trav.Patch, nodes []*trav.Patch, stats *trav.PathStatistics, m *motion.Motion) (int, error) {
	tc := &e.cfg.Traversability
	cost := float64(m.BaseCost)

	switch tc.SlopeMetric {
	case core.SlopeAvg:
		cost += cost * avgSlope(nodes) * tc.SlopeMetricScale
	case core.SlopeMax:
		cost += cost * maxSlope(nodes) * tc.SlopeMetricScale
	case core.SlopeTriangle:
		// Treat the motion as a straight line lifted into 3D between the
		// start and end patch heights.
		heightDiff := math.Abs(sourceTrav.Height() - goalTrav.Height())
		len3d := math.Sqrt(m.TranslationDist*m.TranslationDist + heightDiff*heightDiff)
		cost = float64(motion.CalculateCost(len3d, m.AngularDist,
			e.cfg.Mobility.TranslationSpeed, e.cfg.Mobility.RotationSpeed, m.CostMultiplier))
	case core.SlopeNone:
	default:
		return 0, fmt.Errorf("%w: unknown slope metric %d", core.ErrInternalInvariant, tc.SlopeMetric)
	}

	if stats.Boundary().NumObstacles() > 0 {
		cost += cost * proximityImpact(stats.Boundary().MinDistToObstacles(), tc.CostFunctionDist)
	}
	if stats.Boundary().NumFrontiers() > 0 {
		cost += cost * proximityImpact(stats.Boundary().MinDistToFrontiers(), tc.CostFunctionDist)
	}

	if cost > math.MaxInt32 {
		cost = math.MaxInt32
	}
	result := int(cost)
	if result < m.BaseCost || m.BaseCost < 1 {
		return 0, fmt.Errorf("%w: edge cost %d below base cost %d", core.ErrInternalInvariant, result, m.BaseCost)
	}
	return result, nil
}

// proximityImpact scales from 0 (at or beyond the outer radius) to 1 (in
// contact).
func proximityImpact(minDist, outerRadius float64) float64 {
	if minDist > outerRadius {
		minDist = outerRadius
	}
	return (outerRadius - minDist) / outerRadius
}

func avgSlope(nodes []*trav.Patch) float64 {
	if len(nodes) == 0 {
		return 0
	}
	sum := 0.0
	for _, n := range nodes {
		sum += n.Slope()
	}
	return sum / float64(len(nodes))
}

func maxSlope(nodes []*trav.Patch) float64 {
	m := 0.0
	for _, n := range nodes {
		if s := n.Slope(); s > m {
			m = s
		}
	}
	return m
}

// GetMotion returns the cheapest motion leading from one state to another,
// re-deriving the successor set of the source.
func (e *Env) GetMotion(fromID, toID int) (*motion.Motion, error) {
	succs, err := e.GetSuccs(fromID)
	if err != nil {
		return nil, err
	}
	best := -1
	bestCost := 0
	for _, s := range succs {
		if s.StateID != toID {
			continue
		}
		if best == -1 || s.Cost < bestCost {
			best = s.MotionID
			bestCost = s.Cost
		}
	}
	if best == -1 {
		return nil, fmt.Errorf("%w: no motion connects state %d to %d", core.ErrInternalInvariant, fromID, toID)
	}
	return e.motions.ByID(best), nil
}
