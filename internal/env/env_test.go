package env

import (
	"errors"
	"math"
	"testing"

	"github.com/golang/geo/r3"

	"github.com/soraxas/ugv-nav4d/internal/core"
	"github.com/soraxas/ugv-nav4d/internal/mls"
	"github.com/soraxas/ugv-nav4d/internal/motion"
)

func testConfig() core.Config {
	cfg := core.DefaultConfig()
	cfg.Traversability.GridResolution = 0.1
	cfg.Traversability.RobotSizeX = 0.2
	cfg.Traversability.RobotSizeY = 0.2
	cfg.Traversability.CostFunctionDist = 0.2
	cfg.Primitives.NumAngles = 16
	cfg.Primitives.Reach = 2
	return cfg
}

func newEnv(t *testing.T, grid *mls.Grid, cfg core.Config) *Env {
	t.Helper()
	table, err := motion.DefaultSet(cfg.Primitives, cfg.Mobility, cfg.Traversability.GridResolution)
	if err != nil {
		t.Fatal(err)
	}
	e, err := New(grid, cfg, table, nil)
	if err != nil {
		t.Fatal(err)
	}
	return e
}

// Scenario: flat 10x10 grid, no obstacles.
func TestFlatGridStartGoal(t *testing.T) {
	cfg := testConfig()
	grid := mls.BuildFlat(10, 10, 0.1, 0)
	e := newEnv(t, grid, cfg)

	if err := e.SetStart(r3.Vector{X: 0.05, Y: 0.05, Z: 0}, 0); err != nil {
		t.Fatalf("SetStart: %v", err)
	}
	if err := e.SetGoal(r3.Vector{X: 0.95, Y: 0.95, Z: 0}, 0); err != nil {
		t.Fatalf("SetGoal: %v", err)
	}

	succs, err := e.GetSuccs(e.StartStateID())
	if err != nil {
		t.Fatal(err)
	}
	if len(succs) == 0 {
		t.Fatal("no successors at start on flat map")
	}

	// The Dijkstra distance on the fully linked flat map equals the
	// diagonal, so the heuristic is the travel time scaled to cost units.
	wantDist := 9 * math.Hypot(0.1, 0.1)
	want := int(math.Floor(wantDist / cfg.Mobility.TranslationSpeed * motion.CostScaleFactor))
	h, err := e.GetGoalHeuristic(e.StartStateID())
	if err != nil {
		t.Fatal(err)
	}
	if h != want {
		t.Errorf("h(start) = %d, want %d", h, want)
	}

	hg, err := e.GetGoalHeuristic(e.GoalStateID())
	if err != nil {
		t.Fatal(err)
	}
	if hg != 0 {
		t.Errorf("h(goal) = %d, want 0", hg)
	}
}

// State ids are monotonically increasing and stable across lookups, and a
// cleared environment reproduces them.
func TestStateIDMonotonicityAndClear(t *testing.T) {
	cfg := testConfig()
	grid := mls.BuildFlat(10, 10, 0.1, 0)
	e := newEnv(t, grid, cfg)

	if err := e.SetStart(r3.Vector{X: 0.05, Y: 0.05, Z: 0}, 0); err != nil {
		t.Fatal(err)
	}
	if err := e.SetGoal(r3.Vector{X: 0.95, Y: 0.95, Z: 0}, 0); err != nil {
		t.Fatal(err)
	}
	startID := e.StartStateID()
	goalID := e.GoalStateID()
	if startID != 0 {
		t.Errorf("start id = %d, want 0", startID)
	}
	if goalID <= startID {
		t.Errorf("goal id %d not greater than start id %d", goalID, startID)
	}

	succs, err := e.GetSuccs(startID)
	if err != nil {
		t.Fatal(err)
	}
	for _, s := range succs {
		if s.StateID < 0 || s.StateID >= e.NumStates() {
			t.Errorf("successor id %d outside state table", s.StateID)
		}
		pos1, err := e.StatePosition(s.StateID)
		if err != nil {
			t.Fatal(err)
		}
		pos2, _ := e.StatePosition(s.StateID)
		if pos1 != pos2 {
			t.Errorf("state %d position unstable", s.StateID)
		}
	}

	e.Clear()
	if e.NumStates() != 0 {
		t.Fatal("clear left states behind")
	}
	if err := e.SetStart(r3.Vector{X: 0.05, Y: 0.05, Z: 0}, 0); err != nil {
		t.Fatal(err)
	}
	if e.StartStateID() != startID {
		t.Errorf("start id after clear = %d, want %d", e.StartStateID(), startID)
	}
}

// Every successor's cost stays at or above the primitive base cost, and the
// goal heuristic is consistent along edges.
func TestEdgeCostFloorAndAdmissibility(t *testing.T) {
	cfg := testConfig()
	cfg.Traversability.SlopeMetric = core.SlopeTriangle
	grid := mls.BuildFlat(12, 12, 0.1, 0)
	grid.AddWall(6, 0, 7, 6, 0.25)
	e := newEnv(t, grid, cfg)

	if err := e.SetStart(r3.Vector{X: 0.25, Y: 0.25, Z: 0}, 0); err != nil {
		t.Fatal(err)
	}
	if err := e.SetGoal(r3.Vector{X: 1.05, Y: 0.95, Z: 0}, 0); err != nil {
		t.Fatal(err)
	}

	visited := map[int]bool{}
	frontier := []int{e.StartStateID()}
	checked := 0
	for depth := 0; depth < 3 && len(frontier) > 0; depth++ {
		var next []int
		for _, id := range frontier {
			if visited[id] {
				continue
			}
			visited[id] = true
			hs, err := e.GetGoalHeuristic(id)
			if err != nil {
				t.Fatal(err)
			}
			succs, err := e.GetSuccs(id)
			if err != nil {
				t.Fatal(err)
			}
			for _, s := range succs {
				m := e.Motions().ByID(s.MotionID)
				if m.BaseCost < 1 {
					t.Fatalf("motion %d base cost %d below 1", m.ID, m.BaseCost)
				}
				if s.Cost < m.BaseCost {
					t.Fatalf("edge cost %d below base cost %d", s.Cost, m.BaseCost)
				}
				hn, err := e.GetGoalHeuristic(s.StateID)
				if err != nil {
					t.Fatal(err)
				}
				if hs > s.Cost+hn {
					t.Fatalf("heuristic inconsistent: h=%d > c=%d + h'=%d", hs, s.Cost, hn)
				}
				checked++
				next = append(next, s.StateID)
			}
		}
		frontier = next
	}
	if checked == 0 {
		t.Fatal("no edges checked")
	}
}

// Scenario: a step across the middle column is crossable with a generous
// step height and blocks the forward motion with a small one.
func TestStepCrossing(t *testing.T) {
	for _, tc := range []struct {
		stepHeight float64
		wantCross  bool
	}{
		{0.5, true},
		{0.1, false},
	} {
		cfg := testConfig()
		cfg.Traversability.StepHeight = tc.stepHeight
		// The plane fit sees the 0.3m rise; keep it below the slope limit
		// so the step edge stays traversable and only the link rule decides.
		cfg.Traversability.SlopeLimit = 1.2
		cfg.Traversability.MaxPitch = 1.3

		grid := mls.BuildFlat(20, 10, 0.1, 0)
		grid.AddStepX(10, 0.3)
		e := newEnv(t, grid, cfg)

		if err := e.SetStart(r3.Vector{X: 0.95, Y: 0.55, Z: 0}, 0); err != nil {
			t.Fatalf("stepHeight=%.1f SetStart: %v", tc.stepHeight, err)
		}

		succs, err := e.GetSuccs(e.StartStateID())
		if err != nil {
			t.Fatal(err)
		}
		crossed := false
		for _, s := range succs {
			pos, err := e.StatePosition(s.StateID)
			if err != nil {
				t.Fatal(err)
			}
			if pos.X > 1.0 {
				crossed = true
			}
		}
		if crossed != tc.wantCross {
			t.Errorf("stepHeight=%.1f: crossed=%v, want %v", tc.stepHeight, crossed, tc.wantCross)
		}
	}
}

// Scenario: 30 degree ramp along +x with a 10 degree roll limit. Headings
// across the slope are rejected, headings along it survive.
func TestRampInclineLimit(t *testing.T) {
	cfg := testConfig()
	cfg.Traversability.EnableInclineLimit = true
	cfg.Traversability.SlopeLimit = 40 * math.Pi / 180
	cfg.Traversability.MaxPitch = 40 * math.Pi / 180
	cfg.Traversability.MaxRoll = 10 * math.Pi / 180
	cfg.Traversability.StepHeight = 0.2

	incline := 30 * math.Pi / 180
	grid := mls.BuildFlat(30, 10, 0.1, 0)
	grid.AddRampX(0, 30, 0, incline)
	e := newEnv(t, grid, cfg)

	zAt := func(x float64) float64 { return math.Tan(incline) * x }

	// Standing across the slope is refused outright.
	err := e.SetStart(r3.Vector{X: 1.05, Y: 0.55, Z: zAt(1.0)}, math.Pi/2)
	if !errors.Is(err, core.ErrOrientationNotAllowed) {
		t.Fatalf("SetStart across slope: err = %v, want ErrOrientationNotAllowed", err)
	}

	if err := e.SetStart(r3.Vector{X: 1.05, Y: 0.55, Z: zAt(1.0)}, 0); err != nil {
		t.Fatalf("SetStart uphill: %v", err)
	}

	succs, err := e.GetSuccs(e.StartStateID())
	if err != nil {
		t.Fatal(err)
	}
	if len(succs) == 0 {
		t.Fatal("no successors on ramp")
	}
	movedUp := false
	for _, s := range succs {
		th, err := e.StateTheta(s.StateID)
		if err != nil {
			t.Fatal(err)
		}
		// Point turns toward the cross-slope headings exceed the roll
		// limit and must not survive; only the start heading remains.
		if th.Theta() != 0 {
			t.Errorf("successor with heading bin %d on ramp", th.Theta())
		}
		pos, _ := e.StatePosition(s.StateID)
		if pos.X > 1.1 {
			movedUp = true
		}
	}
	if !movedUp {
		t.Error("no successor moves up the ramp")
	}
}

// Scenario: an obstacle rectangle blocks the direct corridor; no successor
// crosses it.
func TestObstacleBlocksCrossing(t *testing.T) {
	cfg := testConfig()
	grid := mls.BuildFlat(10, 20, 0.1, 0)
	grid.AddWall(5, 0, 6, 10, 0.25)
	e := newEnv(t, grid, cfg)

	if err := e.SetStart(r3.Vector{X: 0.25, Y: 0.55, Z: 0}, 0); err != nil {
		t.Fatal(err)
	}
	if err := e.SetGoal(r3.Vector{X: 0.85, Y: 0.55, Z: 0}, 0); err != nil {
		t.Fatal(err)
	}

	// Walk the whole reachable state space; nothing may land inside the
	// wall or pass through it at blocked rows.
	visited := map[int]bool{}
	queue := []int{e.StartStateID()}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if visited[id] {
			continue
		}
		visited[id] = true
		succs, err := e.GetSuccs(id)
		if err != nil {
			t.Fatal(err)
		}
		from, _ := e.StatePosition(id)
		for _, s := range succs {
			to, err := e.StatePosition(s.StateID)
			if err != nil {
				t.Fatal(err)
			}
			if to.X > 0.5 && to.X < 0.6 && to.Y < 1.0 {
				t.Fatalf("successor lands inside wall at (%.2f, %.2f)", to.X, to.Y)
			}
			if from.Y < 0.9 && to.Y < 0.9 && (from.X < 0.5) != (to.X < 0.5) {
				t.Fatalf("successor crosses wall from (%.2f,%.2f) to (%.2f,%.2f)", from.X, from.Y, to.X, to.Y)
			}
			if !visited[s.StateID] {
				queue = append(queue, s.StateID)
			}
		}
	}
	if len(visited) < 10 {
		t.Fatalf("state space suspiciously small: %d states", len(visited))
	}
}

// Scenario: a start whose footprint intersects the wall is rejected, and the
// escape search finds a primitive leading out.
func TestEscapeTrajectory(t *testing.T) {
	cfg := testConfig()
	cfg.Traversability.RobotSizeX = 0.4
	grid := mls.BuildFlat(10, 20, 0.1, 0)
	grid.AddWall(5, 0, 6, 10, 0.25)
	e := newEnv(t, grid, cfg)

	inside := r3.Vector{X: 0.38, Y: 0.55, Z: 0}
	err := e.SetStart(inside, math.Pi)
	if !errors.Is(err, core.ErrObstacleCheck) {
		t.Fatalf("SetStart inside obstacle: err = %v, want ErrObstacleCheck", err)
	}

	seg, newStart, newTheta, err := e.FindEscapeTrajectory(inside, math.Pi)
	if err != nil {
		t.Fatalf("FindEscapeTrajectory: %v", err)
	}
	if len(seg.Positions) == 0 {
		t.Fatal("escape segment is empty")
	}
	if newStart.X >= inside.X {
		t.Errorf("escape does not move away from wall: new x %.2f", newStart.X)
	}

	// Planning from the escape end pose must now succeed.
	e.Clear()
	if err := e.SetStart(newStart, newTheta); err != nil {
		t.Fatalf("SetStart after escape: %v", err)
	}
}

// Escape fails with ErrNoEscape when the robot is walled in.
func TestEscapeStuck(t *testing.T) {
	cfg := testConfig()
	cfg.Traversability.RobotSizeX = 0.5
	cfg.Traversability.RobotSizeY = 0.5
	grid := mls.BuildFlat(11, 11, 0.1, 0)
	// A one-cell wide obstacle ring; the interior is too small for the
	// footprint to ever come clean.
	grid.AddWall(3, 3, 8, 4, 0.25)
	grid.AddWall(3, 7, 8, 8, 0.25)
	grid.AddWall(3, 4, 4, 7, 0.25)
	grid.AddWall(7, 4, 8, 7, 0.25)
	e := newEnv(t, grid, cfg)

	_, _, _, err := e.FindEscapeTrajectory(r3.Vector{X: 0.55, Y: 0.55, Z: 0}, 0)
	if !errors.Is(err, core.ErrNoEscape) {
		t.Fatalf("err = %v, want ErrNoEscape", err)
	}
}

// GetMotion returns a motion whose cell offset matches the state positions.
func TestGetMotionMatchesGeometry(t *testing.T) {
	cfg := testConfig()
	grid := mls.BuildFlat(10, 10, 0.1, 0)
	e := newEnv(t, grid, cfg)

	if err := e.SetStart(r3.Vector{X: 0.35, Y: 0.35, Z: 0}, 0); err != nil {
		t.Fatal(err)
	}
	succs, err := e.GetSuccs(e.StartStateID())
	if err != nil {
		t.Fatal(err)
	}
	if len(succs) == 0 {
		t.Fatal("no successors")
	}
	res := cfg.Traversability.GridResolution
	for _, s := range succs {
		m, err := e.GetMotion(e.StartStateID(), s.StateID)
		if err != nil {
			t.Fatal(err)
		}
		from, _ := e.StatePosition(e.StartStateID())
		to, _ := e.StatePosition(s.StateID)
		dx := int(math.Round((to.X - from.X) / res))
		dy := int(math.Round((to.Y - from.Y) / res))
		// Several motions may share an endpoint; the returned one must at
		// least land on the same cell.
		if m.DX != dx || m.DY != dy {
			t.Errorf("motion (%d,%d) does not match offset (%d,%d)", m.DX, m.DY, dx, dy)
		}
	}
}

func TestTrajectoryAssembly(t *testing.T) {
	cfg := testConfig()
	grid := mls.BuildFlat(10, 10, 0.1, 0)
	e := newEnv(t, grid, cfg)

	if err := e.SetStart(r3.Vector{X: 0.35, Y: 0.35, Z: 0}, 0); err != nil {
		t.Fatal(err)
	}
	succs, err := e.GetSuccs(e.StartStateID())
	if err != nil {
		t.Fatal(err)
	}
	var fwd, bwd *Successor
	for i := range succs {
		m := e.Motions().ByID(succs[i].MotionID)
		if m.Kind == motion.Forward && fwd == nil {
			fwd = &succs[i]
		}
		if m.Kind == motion.Backward && bwd == nil {
			bwd = &succs[i]
		}
	}
	if fwd == nil || bwd == nil {
		t.Fatal("missing forward or backward successor")
	}

	segs, err := e.Trajectory([]int{e.StartStateID(), fwd.StateID})
	if err != nil {
		t.Fatal(err)
	}
	if len(segs) != 1 {
		t.Fatalf("got %d segments, want 1", len(segs))
	}
	if segs[0].Speed <= 0 {
		t.Errorf("forward segment speed = %f", segs[0].Speed)
	}
	if len(segs[0].Positions) < 2 {
		t.Errorf("segment polyline too short: %d points", len(segs[0].Positions))
	}

	segs, err = e.Trajectory([]int{e.StartStateID(), bwd.StateID})
	if err != nil {
		t.Fatal(err)
	}
	if segs[0].Speed >= 0 {
		t.Errorf("backward segment speed = %f", segs[0].Speed)
	}
}

func TestSetStartOutOfMap(t *testing.T) {
	cfg := testConfig()
	grid := mls.BuildFlat(10, 10, 0.1, 0)
	e := newEnv(t, grid, cfg)

	err := e.SetStart(r3.Vector{X: 5, Y: 5, Z: 0}, 0)
	if !errors.Is(err, core.ErrMapOutOfBounds) {
		t.Errorf("err = %v, want ErrMapOutOfBounds", err)
	}
}

// Successor enumeration with parallel workers matches the serial result.
func TestParallelSuccessorsMatchSerial(t *testing.T) {
	build := func(parallel bool) map[Successor]bool {
		cfg := testConfig()
		cfg.Traversability.Parallel = parallel
		grid := mls.BuildFlat(12, 12, 0.1, 0)
		grid.AddWall(6, 0, 7, 6, 0.25)
		e := newEnv(t, grid, cfg)
		if err := e.SetStart(r3.Vector{X: 0.45, Y: 0.45, Z: 0}, 0); err != nil {
			t.Fatal(err)
		}
		succs, err := e.GetSuccs(e.StartStateID())
		if err != nil {
			t.Fatal(err)
		}
		// State ids depend on allocation order; compare by motion and cost.
		set := make(map[Successor]bool)
		for _, s := range succs {
			set[Successor{MotionID: s.MotionID, Cost: s.Cost}] = true
		}
		return set
	}

	serial := build(false)
	parallel := build(true)
	if len(serial) != len(parallel) {
		t.Fatalf("serial %d successors, parallel %d", len(serial), len(parallel))
	}
	for s := range serial {
		if !parallel[s] {
			t.Errorf("successor %+v missing in parallel run", s)
		}
	}
}

// The heuristic stays non-negative across the reachable space.
func TestHeuristicNonNegative(t *testing.T) {
	cfg := testConfig()
	grid := mls.BuildFlat(10, 10, 0.1, 0)
	e := newEnv(t, grid, cfg)

	if err := e.SetStart(r3.Vector{X: 0.15, Y: 0.15, Z: 0}, 0); err != nil {
		t.Fatal(err)
	}
	if err := e.SetGoal(r3.Vector{X: 0.85, Y: 0.85, Z: 0}, math.Pi/2); err != nil {
		t.Fatal(err)
	}

	visited := map[int]bool{}
	queue := []int{e.StartStateID()}
	for len(queue) > 0 && len(visited) < 200 {
		id := queue[0]
		queue = queue[1:]
		if visited[id] {
			continue
		}
		visited[id] = true
		hg, err := e.GetGoalHeuristic(id)
		if err != nil {
			t.Fatal(err)
		}
		hs, err := e.GetStartHeuristic(id)
		if err != nil {
			t.Fatal(err)
		}
		if hg < 0 || hs < 0 {
			t.Fatalf("negative heuristic at state %d: goal %d start %d", id, hg, hs)
		}
		succs, err := e.GetSuccs(id)
		if err != nil {
			t.Fatal(err)
		}
		for _, s := range succs {
			if !visited[s.StateID] {
				queue = append(queue, s.StateID)
			}
		}
	}
}
