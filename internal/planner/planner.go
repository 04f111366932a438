// Package planner drives the search environment with an anytime weighted
// A*: it plans quickly with an inflated heuristic and re-plans with
// decreasing inflation, keeping the best path found.
package planner

import (
	"container/heap"
	"fmt"
	"time"

	"github.com/golang/geo/r3"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/soraxas/ugv-nav4d/internal/env"
)

// Result is a finished planning run.
type Result struct {
	RunID      string
	StateIDs   []int
	Cost       int
	Epsilon    float64
	Expansions int
	Trajectory []env.Segment
	Elapsed    time.Duration
}

// Planner wraps an environment with the outer search loop.
type Planner struct {
	env *env.Env
	log *zap.Logger

	// Successor lists are cached so the environment expands each state at
	// most once across the anytime iterations.
	succCache map[int][]env.Successor
}

// New creates a planner over the environment.
func New(e *env.Env, log *zap.Logger) *Planner {
	if log == nil {
		log = zap.NewNop()
	}
	return &Planner{env: e, log: log, succCache: make(map[int][]env.Successor)}
}

// DefaultEpsilons is the anytime inflation schedule, ending at the
// admissible search.
var DefaultEpsilons = []float64{3.0, 2.0, 1.5, 1.0}

// Plan sets the start and goal and searches. Failures from the environment
// (out of map, untraversable poses, blocked footprints) propagate to the
// caller.
func (p *Planner) Plan(start r3.Vector, startTheta float64, goal r3.Vector, goalTheta float64) (*Result, error) {
	began := time.Now()
	runID := uuid.NewString()
	log := p.log.With(zap.String("run", runID))

	if err := p.env.SetStart(start, startTheta); err != nil {
		return nil, err
	}
	if err := p.env.SetGoal(goal, goalTheta); err != nil {
		return nil, err
	}
	p.succCache = make(map[int][]env.Successor)

	var best *Result
	for _, eps := range DefaultEpsilons {
		path, cost, expansions, err := p.weightedAStar(eps)
		if err != nil {
			return nil, err
		}
		if path == nil {
			log.Debug("no path at inflation", zap.Float64("epsilon", eps))
			continue
		}
		log.Debug("path found",
			zap.Float64("epsilon", eps),
			zap.Int("cost", cost),
			zap.Int("expansions", expansions))
		if best == nil || cost < best.Cost {
			best = &Result{
				RunID:      runID,
				StateIDs:   path,
				Cost:       cost,
				Epsilon:    eps,
				Expansions: expansions,
			}
		}
	}
	if best == nil {
		return nil, fmt.Errorf("no path from start to goal")
	}

	traj, err := p.env.Trajectory(best.StateIDs)
	if err != nil {
		return nil, err
	}
	best.Trajectory = traj
	best.Elapsed = time.Since(began)
	log.Info("planning finished",
		zap.Int("cost", best.Cost),
		zap.Int("states", len(best.StateIDs)),
		zap.Duration("elapsed", best.Elapsed))
	return best, nil
}

func (p *Planner) successors(id int) ([]env.Successor, error) {
	if succs, ok := p.succCache[id]; ok {
		return succs, nil
	}
	succs, err := p.env.GetSuccs(id)
	if err != nil {
		return nil, err
	}
	p.succCache[id] = succs
	return succs, nil
}

type searchNode struct {
	stateID int
	g       int
	f       float64
	parent  *searchNode
}

type searchHeap []*searchNode

func (h searchHeap) Len() int           { return len(h) }
func (h searchHeap) Less(i, j int) bool { return h[i].f < h[j].f }
func (h searchHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *searchHeap) Push(x any)        { *h = append(*h, x.(*searchNode)) }
func (h *searchHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return x
}

// weightedAStar runs a single search with the heuristic inflated by eps.
func (p *Planner) weightedAStar(eps float64) (path []int, cost, expansions int, err error) {
	startID := p.env.StartStateID()
	goalID := p.env.GoalStateID()

	h0, err := p.env.GetGoalHeuristic(startID)
	if err != nil {
		return nil, 0, 0, err
	}

	open := &searchHeap{{stateID: startID, g: 0, f: eps * float64(h0)}}
	heap.Init(open)
	bestG := map[int]int{startID: 0}
	closed := map[int]bool{}

	for open.Len() > 0 {
		cur := heap.Pop(open).(*searchNode)
		if closed[cur.stateID] {
			continue
		}
		closed[cur.stateID] = true
		expansions++

		if cur.stateID == goalID {
			return reconstruct(cur), cur.g, expansions, nil
		}

		succs, err := p.successors(cur.stateID)
		if err != nil {
			return nil, 0, 0, err
		}
		for _, s := range succs {
			g := cur.g + s.Cost
			if prev, ok := bestG[s.StateID]; ok && prev <= g {
				continue
			}
			bestG[s.StateID] = g
			h, err := p.env.GetGoalHeuristic(s.StateID)
			if err != nil {
				return nil, 0, 0, err
			}
			heap.Push(open, &searchNode{
				stateID: s.StateID,
				g:       g,
				f:       float64(g) + eps*float64(h),
				parent:  cur,
			})
		}
	}
	return nil, 0, expansions, nil
}

func reconstruct(node *searchNode) []int {
	var path []int
	for n := node; n != nil; n = n.parent {
		path = append([]int{n.stateID}, path...)
	}
	return path
}
