package env

import (
	"fmt"
	"math"

	"github.com/golang/geo/r3"
	"go.uber.org/zap"

	"github.com/soraxas/ugv-nav4d/internal/core"
	"github.com/soraxas/ugv-nav4d/internal/motion"
	"github.com/soraxas/ugv-nav4d/internal/trav"
)

// Segment is one motion of the output trajectory: a dense polyline and a
// signed speed, negative for backward motions.
type Segment struct {
	Positions []r3.Vector
	Speed     float64
	Kind      motion.Kind
}

// Trajectory converts a state-id path into trajectory segments. The z
// coordinate is lifted from the driveability patches the motion crosses.
func (e *Env) Trajectory(stateIDs []int) ([]Segment, error) {
	if len(stateIDs) < 2 {
		return nil, nil
	}
	result := make([]Segment, 0, len(stateIDs)-1)

	for i := 0; i < len(stateIDs)-1; i++ {
		m, err := e.GetMotion(stateIDs[i], stateIDs[i+1])
		if err != nil {
			return nil, err
		}
		s, err := e.state(stateIDs[i])
		if err != nil {
			return nil, err
		}
		start := e.travGraph.Position(s.xyz.trav)
		startIdx := s.xyz.trav.Index()

		cur := s.xyz.trav
		lastIdx := startIdx
		var positions []r3.Vector
		for _, cwp := range m.Samples {
			curIdx := startIdx.Add(cwp.Cell)
			if curIdx != lastIdx {
				next := cur.ConnectedTo(curIdx)
				if next == nil {
					return nil, fmt.Errorf("%w: trajectory not continuous at (%d,%d)",
						core.ErrInternalInvariant, curIdx.X, curIdx.Y)
				}
				cur = next
				lastIdx = curIdx
			}
			for _, p := range cwp.Poses {
				pos := r3.Vector{X: p.X + start.X, Y: p.Y + start.Y, Z: cur.Height()}
				if len(positions) == 0 || positions[len(positions)-1] != pos {
					positions = append(positions, pos)
				}
			}
		}

		result = append(result, Segment{
			Positions: positions,
			Speed:     signedSpeed(m.Kind, e.cfg.Mobility.TranslationSpeed),
			Kind:      m.Kind,
		})
	}
	return result, nil
}

func signedSpeed(kind motion.Kind, speed float64) float64 {
	if kind == motion.Backward {
		return -speed
	}
	return speed
}

// FindEscapeTrajectory searches for the primitive that leads out of an
// obstacle: the one with the fewest obstacle and frontier overlaps along its
// sweep whose end pose has a clean footprint. Used when SetStart fails with
// ErrObstacleCheck. Returns the segment along with the pose to restart
// planning from.
func (e *Env) FindEscapeTrajectory(pos r3.Vector, thetaRad float64) (Segment, r3.Vector, float64, error) {
	startTrav, err := e.travGraph.GenerateStartPatch(pos)
	if err != nil {
		return Segment{}, r3.Vector{}, 0, err
	}
	e.travGraph.Expand(startTrav)
	e.expandObstacleNeighborhood(startTrav.Index(), startTrav.Height())

	obstStart := e.obstGraph.FindMatchingPatch(startTrav.Index(), startTrav.Height())
	if obstStart == nil {
		return Segment{}, r3.Vector{}, 0, fmt.Errorf("%w: no obstacle patch at escape start", core.ErrStateCreation)
	}
	startPos := e.travGraph.Position(startTrav)

	disc := core.ThetaFromRadian(thetaRad, e.cfg.Primitives.NumAngles)

	bestCount := math.MaxInt
	var bestMotion *motion.Motion
	var bestPoses []core.Pose2D
	var bestEnd *trav.Patch

	for _, m := range e.motions.ForStartTheta(disc) {
		obstIdx := obstStart.Index()
		cur := obstStart
		curIdx := obstIdx
		nodes := make([]*trav.Patch, 0, len(m.ObstSteps))
		poses := make([]core.Pose2D, 0, len(m.ObstSteps))
		feasible := true
		for _, step := range m.ObstSteps {
			newIdx := obstIdx.Add(step.Cell)
			if newIdx != curIdx {
				next := cur.ConnectedTo(newIdx)
				if next == nil {
					feasible = false
					break
				}
				e.obstGraph.Expand(next)
				cur = next
				curIdx = newIdx
			}
			nodes = append(nodes, cur)
			poses = append(poses, core.Pose2D{
				X:       step.Pose.X + startPos.X,
				Y:       step.Pose.Y + startPos.Y,
				Heading: step.Pose.Heading,
			})
		}
		if !feasible {
			continue
		}

		// The end pose must be fully outside obstacles and frontiers.
		endPos := e.obstGraph.Position(cur)
		endStats := trav.NewPathStatistics(e.cfg.Traversability)
		endStats.Calculate(e.obstGraph,
			[]*trav.Patch{cur},
			[]core.Pose2D{{X: endPos.X, Y: endPos.Y, Heading: m.EndTheta.Radian()}})
		if endStats.Robot().NumObstacles() > 0 || endStats.Robot().NumFrontiers() > 0 {
			continue
		}

		stats := trav.NewPathStatistics(e.cfg.Traversability)
		stats.Calculate(e.obstGraph, nodes, poses)
		count := stats.Robot().NumObstacles() + stats.Robot().NumFrontiers()
		if count < bestCount {
			bestCount = count
			bestMotion = m
			bestPoses = poses
			bestEnd = cur
		}
	}

	if bestMotion == nil {
		return Segment{}, r3.Vector{}, 0, fmt.Errorf("%w: robot is stuck at (%.3f, %.3f)",
			core.ErrNoEscape, pos.X, pos.Y)
	}

	positions := make([]r3.Vector, 0, len(bestPoses))
	for _, p := range bestPoses {
		positions = append(positions, r3.Vector{X: p.X, Y: p.Y, Z: startPos.Z})
	}
	seg := Segment{
		Positions: positions,
		Speed:     signedSpeed(bestMotion.Kind, e.cfg.Mobility.TranslationSpeed),
		Kind:      bestMotion.Kind,
	}
	newStart := e.obstGraph.Position(bestEnd)
	e.log.Debug("escape trajectory found",
		zap.Int("motion", bestMotion.ID), zap.Int("overlaps", bestCount))
	return seg, newStart, bestMotion.EndTheta.Radian(), nil
}

// expandObstacleNeighborhood classifies every obstacle-layer patch the
// escape primitives can reach; the start and goal footprint checks use it
// too. The regular flood stops at non-traversable and unlinked patches,
// which is exactly where escape planning starts.
func (e *Env) expandObstacleNeighborhood(center core.Index, z float64) {
	reach := e.cfg.Primitives.Reach + 2
	for dy := -reach; dy <= reach; dy++ {
		for dx := -reach; dx <= reach; dx++ {
			idx := core.Index{X: center.X + dx, Y: center.Y + dy}
			for _, p := range e.obstGraph.CellPatches(idx) {
				e.obstGraph.Expand(p)
			}
		}
	}
}
