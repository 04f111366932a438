// Package env presents the terrain to a heuristic graph search as integer
// state ids over (x, y, z-patch, θ) with successors, edge costs and an
// admissible Dijkstra-backed heuristic.
package env

import (
	"fmt"
	"math"
	"sync"

	"github.com/golang/geo/r3"
	"go.uber.org/zap"

	"github.com/soraxas/ugv-nav4d/internal/core"
	"github.com/soraxas/ugv-nav4d/internal/mls"
	"github.com/soraxas/ugv-nav4d/internal/motion"
	"github.com/soraxas/ugv-nav4d/internal/trav"
)

// Successor is one outgoing edge of a state.
type Successor struct {
	StateID  int
	Cost     int
	MotionID int
}

// xyzNode groups the theta states reached on one driveability patch.
type xyzNode struct {
	trav   *trav.Patch
	thetas map[int]*thetaNode
}

// thetaNode is one search state.
type thetaNode struct {
	id    int
	theta core.DiscreteTheta
	xyz   *xyzNode
}

type stateRef struct {
	xyz   *xyzNode
	theta *thetaNode
}

// Env is the search environment. One instance holds all planning state;
// Clear resets it.
type Env struct {
	cfg     core.Config
	mlsGrid *mls.Grid
	motions *motion.Table
	log     *zap.Logger

	travGraph *trav.Graph
	obstGraph *trav.Graph

	// gridMu guards the xyz node table.
	gridMu sync.Mutex
	xyz    map[*trav.Patch]*xyzNode

	// thetaMu guards theta node allocation and the state table.
	thetaMu   sync.Mutex
	idToState []stateRef

	startXYZ, goalXYZ     *xyzNode
	startTheta, goalTheta *thetaNode
	obstacleStart         *trav.Patch

	// Written by SetGoal, read lock-free afterwards.
	distToStart, distToGoal []float64
}

// New creates an environment over the given map and primitive table.
func New(grid *mls.Grid, cfg core.Config, table *motion.Table, log *zap.Logger) (*Env, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if table.NumAngles() != cfg.Primitives.NumAngles {
		return nil, fmt.Errorf("primitive table has %d angles, config %d",
			table.NumAngles(), cfg.Primitives.NumAngles)
	}
	return &Env{
		cfg:       cfg,
		mlsGrid:   grid,
		motions:   table,
		log:       log,
		travGraph: trav.NewGraph(trav.RoleDriveability, grid, cfg.Traversability, log),
		obstGraph: trav.NewGraph(trav.RoleObstacle, grid, cfg.Traversability, log),
		xyz:       make(map[*trav.Patch]*xyzNode),
	}, nil
}

// TravGraph returns the driveability layer.
func (e *Env) TravGraph() *trav.Graph { return e.travGraph }

// ObstGraph returns the obstacle layer.
func (e *Env) ObstGraph() *trav.Graph { return e.obstGraph }

// Motions returns the primitive table.
func (e *Env) Motions() *motion.Table { return e.motions }

// NumStates returns the number of states created so far.
func (e *Env) NumStates() int {
	e.thetaMu.Lock()
	defer e.thetaMu.Unlock()
	return len(e.idToState)
}

// StartStateID returns the id of the start state, -1 before SetStart.
func (e *Env) StartStateID() int {
	if e.startTheta == nil {
		return -1
	}
	return e.startTheta.id
}

// GoalStateID returns the id of the goal state, -1 before SetGoal.
func (e *Env) GoalStateID() int {
	if e.goalTheta == nil {
		return -1
	}
	return e.goalTheta.id
}

// Clear resets all search state. The traversability layers stay; they are
// rebuilt deterministically from the map, so keeping them only saves work.
func (e *Env) Clear() {
	e.gridMu.Lock()
	e.xyz = make(map[*trav.Patch]*xyzNode)
	e.gridMu.Unlock()

	e.thetaMu.Lock()
	e.idToState = nil
	e.thetaMu.Unlock()

	e.startXYZ, e.goalXYZ = nil, nil
	e.startTheta, e.goalTheta = nil, nil
	e.obstacleStart = nil
	e.distToStart, e.distToGoal = nil, nil
}

func (e *Env) getOrCreateXYZ(p *trav.Patch) *xyzNode {
	e.gridMu.Lock()
	defer e.gridMu.Unlock()
	if n, ok := e.xyz[p]; ok {
		return n
	}
	n := &xyzNode{trav: p, thetas: make(map[int]*thetaNode)}
	e.xyz[p] = n
	return n
}

func (e *Env) getOrCreateTheta(x *xyzNode, theta core.DiscreteTheta) *thetaNode {
	e.thetaMu.Lock()
	defer e.thetaMu.Unlock()
	if tn, ok := x.thetas[theta.Theta()]; ok {
		return tn
	}
	tn := &thetaNode{id: len(e.idToState), theta: theta, xyz: x}
	x.thetas[theta.Theta()] = tn
	e.idToState = append(e.idToState, stateRef{xyz: x, theta: tn})
	return tn
}

func (e *Env) state(id int) (stateRef, error) {
	e.thetaMu.Lock()
	defer e.thetaMu.Unlock()
	if id < 0 || id >= len(e.idToState) {
		return stateRef{}, fmt.Errorf("%w: unknown state id %d", core.ErrInternalInvariant, id)
	}
	return e.idToState[id], nil
}

// StatePosition returns the world position of a state.
func (e *Env) StatePosition(id int) (r3.Vector, error) {
	s, err := e.state(id)
	if err != nil {
		return r3.Vector{}, err
	}
	return e.travGraph.Position(s.xyz.trav), nil
}

// StateTheta returns the discrete heading of a state.
func (e *Env) StateTheta(id int) (core.DiscreteTheta, error) {
	s, err := e.state(id)
	if err != nil {
		return core.DiscreteTheta{}, err
	}
	return s.theta.theta, nil
}

// createStateFromPose resolves the driveability patch under pos, verifies it
// is traversable and allocates the state.
func (e *Env) createStateFromPose(name string, pos r3.Vector, thetaRad float64) (*thetaNode, error) {
	p, err := e.travGraph.GenerateStartPatch(pos)
	if err != nil {
		return nil, err
	}
	if !e.travGraph.Expand(p) {
		return nil, fmt.Errorf("%w: %s pose (%.3f, %.3f) is not traversable (%s)",
			core.ErrStateCreation, name, pos.X, pos.Y, p.Kind())
	}
	if e.cfg.Traversability.EnableInclineLimit && !p.OrientationAllowed(thetaRad) {
		return nil, fmt.Errorf("%w: %s heading %.3f rad on slope %.3f rad",
			core.ErrOrientationNotAllowed, name, thetaRad, p.Slope())
	}
	x := e.getOrCreateXYZ(p)
	return e.getOrCreateTheta(x, core.ThetaFromRadian(thetaRad, e.cfg.Primitives.NumAngles)), nil
}

// checkFootprint verifies that the robot rectangle at the given pose is
// free of obstacles and frontiers on the obstacle layer.
func (e *Env) checkFootprint(name string, pos r3.Vector, thetaRad float64) error {
	idx, ok := e.mlsGrid.ToGrid(pos.X, pos.Y)
	if !ok {
		return fmt.Errorf("%w: %s outside obstacle map", core.ErrMapOutOfBounds, name)
	}
	obstNode := e.obstGraph.FindMatchingPatch(idx, pos.Z)
	if obstNode == nil {
		return fmt.Errorf("%w: no obstacle patch under %s", core.ErrObstacleCheck, name)
	}
	e.obstGraph.Expand(obstNode)
	// Obstacle patches the flood never linked are still unclassified and
	// would be invisible to the footprint query.
	e.expandObstacleNeighborhood(idx, pos.Z)

	// Discretize the heading: the planner runs on discrete theta
	// internally, and external and internal checks must agree.
	disc := core.ThetaFromRadian(thetaRad, e.cfg.Primitives.NumAngles)
	center := e.obstGraph.Position(obstNode)

	stats := trav.NewPathStatistics(e.cfg.Traversability)
	stats.Calculate(e.obstGraph,
		[]*trav.Patch{obstNode},
		[]core.Pose2D{{X: center.X, Y: center.Y, Heading: disc.Radian()}})

	if stats.Robot().NumObstacles() > 0 || stats.Robot().NumFrontiers() > 0 {
		return fmt.Errorf("%w: %s footprint hits %d obstacles, %d frontiers",
			core.ErrObstacleCheck, name, stats.Robot().NumObstacles(), stats.Robot().NumFrontiers())
	}
	return nil
}

// SetStart creates the start state and expands both layers around it.
func (e *Env) SetStart(pos r3.Vector, thetaRad float64) error {
	tn, err := e.createStateFromPose("start", pos, thetaRad)
	if err != nil {
		return err
	}

	obstacleStart, err := e.obstGraph.GenerateStartPatch(pos)
	if err != nil {
		return fmt.Errorf("%w: no obstacle patch at start", core.ErrObstacleCheck)
	}
	e.obstacleStart = obstacleStart

	e.log.Debug("expanding layers from start")
	e.travGraph.ExpandFrom(tn.xyz.trav)
	e.obstGraph.ExpandFrom(obstacleStart)

	if err := e.checkFootprint("start", pos, thetaRad); err != nil {
		return err
	}

	e.startXYZ = tn.xyz
	e.startTheta = tn
	return nil
}

// SetGoal creates the goal state and precomputes the heuristic distance
// fields. SetStart must have been called.
func (e *Env) SetGoal(pos r3.Vector, thetaRad float64) error {
	if e.startTheta == nil {
		return fmt.Errorf("start must be set before goal")
	}
	tn, err := e.createStateFromPose("goal", pos, thetaRad)
	if err != nil {
		return err
	}
	if err := e.checkFootprint("goal", pos, thetaRad); err != nil {
		return err
	}

	e.goalXYZ = tn.xyz
	e.goalTheta = tn
	e.precomputeHeuristic()
	e.log.Debug("heuristic computed", zap.Int("patches", e.travGraph.NumPatches()))
	return nil
}

// precomputeHeuristic runs Dijkstra from the goal and the start patch over
// the driveability layer. The fields are read lock-free afterwards.
func (e *Env) precomputeHeuristic() {
	e.distToGoal = trav.ComputeDistances(e.travGraph, e.goalXYZ.trav)
	e.distToStart = trav.ComputeDistances(e.travGraph, e.startXYZ.trav)
}

func (e *Env) distanceField(field []float64, patchID int) float64 {
	if field == nil || patchID >= len(field) {
		return trav.UnreachableDistance
	}
	return field[patchID]
}

// GetGoalHeuristic returns an admissible lower bound on the remaining cost:
// the slower of translating the Dijkstra distance and rotating the angular
// distance, scaled to the integer cost unit.
func (e *Env) GetGoalHeuristic(id int) (int, error) {
	if e.goalTheta == nil {
		return 0, fmt.Errorf("%w: goal heuristic queried before SetGoal", core.ErrInternalInvariant)
	}
	s, err := e.state(id)
	if err != nil {
		return 0, err
	}
	if s.xyz.trav.Kind() != trav.KindTraversable {
		return 0, fmt.Errorf("%w: heuristic queried for non-traversable state %d",
			core.ErrInternalInvariant, id)
	}
	d := e.distanceField(e.distToGoal, s.xyz.trav.ID())
	tTrans := d / e.cfg.Mobility.TranslationSpeed
	tRot := s.theta.theta.ShortestDist(e.goalTheta.theta).Radian() / e.cfg.Mobility.RotationSpeed
	h := int(math.Floor(math.Max(tTrans, tRot) * motion.CostScaleFactor))
	if h < 0 {
		return 0, fmt.Errorf("%w: negative goal heuristic for state %d", core.ErrInternalInvariant, id)
	}
	return h, nil
}

// GetStartHeuristic mirrors GetGoalHeuristic for backward searches.
func (e *Env) GetStartHeuristic(id int) (int, error) {
	if e.startTheta == nil {
		return 0, fmt.Errorf("%w: start heuristic queried before SetStart", core.ErrInternalInvariant)
	}
	s, err := e.state(id)
	if err != nil {
		return 0, err
	}
	d := e.distanceField(e.distToStart, s.xyz.trav.ID())
	tTrans := d / e.cfg.Mobility.TranslationSpeed
	tRot := e.startTheta.theta.ShortestDist(s.theta.theta).Radian() / e.cfg.Mobility.RotationSpeed
	h := int(math.Floor(math.Max(tTrans, tRot) * motion.CostScaleFactor))
	if h < 0 {
		return 0, fmt.Errorf("%w: negative start heuristic for state %d", core.ErrInternalInvariant, id)
	}
	return h, nil
}
