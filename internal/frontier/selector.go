// Package frontier selects exploration targets: frontier patches of the
// driveability layer, promoted to drivable poses and ranked by a blended
// cost of goal distance, explorability and travel distance.
package frontier

import (
	"fmt"
	"math"
	"sort"

	"github.com/golang/geo/r3"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/num/quat"

	"github.com/soraxas/ugv-nav4d/internal/core"
	"github.com/soraxas/ugv-nav4d/internal/trav"
)

// Candidate is one ranked exploration pose.
type Candidate struct {
	Position        r3.Vector
	Orientation     quat.Number // rotation about +z
	Heading         float64     // radians, same rotation
	Cost            float64
	ExplorableRatio float64
}

// Selector ranks frontier patches for autonomous exploration.
type Selector struct {
	travGraph *trav.Graph
	obstGraph *trav.Graph
	cfg       core.Config
	log       *zap.Logger
}

// New creates a selector over the two layers.
func New(travGraph, obstGraph *trav.Graph, cfg core.Config, log *zap.Logger) *Selector {
	if log == nil {
		log = zap.NewNop()
	}
	return &Selector{travGraph: travGraph, obstGraph: obstGraph, cfg: cfg, log: log}
}

type nodeWithOrientation struct {
	node    *trav.Patch
	heading float64
}

// NextFrontiers returns exploration candidates sorted by ascending cost.
// goalHint biases the ranking toward a region of interest; robotPos anchors
// the travel distance term.
func (s *Selector) NextFrontiers(robotPos, goalHint r3.Vector) ([]Candidate, error) {
	robotPatch := s.travGraph.Lookup(robotPos)
	if robotPatch == nil || !robotPatch.IsExpanded() {
		return nil, fmt.Errorf("%w: robot position not on expanded terrain", core.ErrStateCreation)
	}

	frontiers := s.travGraph.FrontierPatches()
	if len(frontiers) == 0 {
		return nil, nil
	}

	oriented := s.orientFrontiers(frontiers)
	promoted := s.promoteToTraversable(oriented)
	collisionFree := s.collisionFreeNeighbors(promoted)
	deduped := dedupByPatch(collisionFree)

	return s.rank(deduped, robotPatch, goalHint)
}

// orientFrontiers estimates an outward heading per frontier with a
// Sobel-like operator over the linked 3×3 neighborhood, counting only
// classified neighbors. The heading points away from the explored mass;
// headings the patch's slope disallows snap to the first allowed segment.
func (s *Selector) orientFrontiers(frontiers []*trav.Patch) []nodeWithOrientation {
	out := make([]nodeWithOrientation, 0, len(frontiers))
	for _, f := range frontiers {
		var sx, sy float64
		for _, n := range f.Connections() {
			k := n.Kind()
			if k == trav.KindUnknown || k == trav.KindUnset {
				continue
			}
			d := n.Index().Sub(f.Index())
			wx, wy := float64(d.X), float64(d.Y)
			if d.Y == 0 {
				wx *= 2
			}
			if d.X == 0 {
				wy *= 2
			}
			sx += wx
			sy += wy
		}
		heading := math.Atan2(-sy, -sx)
		if sx == 0 && sy == 0 {
			heading = 0
		}

		allowed := f.AllowedOrientations()
		if !core.HeadingAllowed(allowed, heading) {
			if len(allowed) == 0 {
				continue
			}
			heading = allowed[0].Midpoint()
		}
		out = append(out, nodeWithOrientation{node: f, heading: heading})
	}
	return out
}

// promoteToTraversable replaces each frontier with a traversable patch
// among its direct connections when one exists.
func (s *Selector) promoteToTraversable(nodes []nodeWithOrientation) []nodeWithOrientation {
	out := make([]nodeWithOrientation, 0, len(nodes))
	for _, n := range nodes {
		promoted := n
		for _, c := range n.node.Connections() {
			if c.Kind() == trav.KindTraversable {
				promoted.node = c
				break
			}
		}
		out = append(out, promoted)
	}
	return out
}

// collisionFreeNeighbors runs a bounded BFS from each candidate until a
// traversable patch with an obstacle-free footprint is found within the
// configured distance. Candidates without one are dropped.
func (s *Selector) collisionFreeNeighbors(nodes []nodeWithOrientation) []nodeWithOrientation {
	maxDist := s.cfg.Frontier.MaxNeighborDistance
	out := make([]nodeWithOrientation, 0, len(nodes))
	for _, n := range nodes {
		startPos := s.travGraph.Position(n.node)
		var found *trav.Patch
		trav.Visit(n.node, func(p *trav.Patch, distToRoot int) (bool, bool) {
			if p.Kind() == trav.KindTraversable && s.footprintClear(p, n.heading) {
				found = p
				return false, true
			}
			dist := s.travGraph.Position(p).Sub(startPos).Norm()
			return dist < maxDist, false
		})
		if found != nil {
			out = append(out, nodeWithOrientation{node: found, heading: n.heading})
		}
	}
	return out
}

// footprintClear checks the robot rectangle at the patch center for
// obstacle overlap on the obstacle layer. Frontier overlap is expected next
// to unexplored terrain and does not disqualify a candidate.
func (s *Selector) footprintClear(p *trav.Patch, heading float64) bool {
	obstNode := s.obstGraph.FindMatchingPatch(p.Index(), p.Height())
	if obstNode == nil {
		return false
	}
	s.obstGraph.Expand(obstNode)
	center := s.obstGraph.Position(obstNode)

	stats := trav.NewPathStatistics(s.cfg.Traversability)
	stats.Calculate(s.obstGraph,
		[]*trav.Patch{obstNode},
		[]core.Pose2D{{X: center.X, Y: center.Y, Heading: heading}})
	return stats.Robot().NumObstacles() == 0
}

func dedupByPatch(nodes []nodeWithOrientation) []nodeWithOrientation {
	seen := make(map[*trav.Patch]bool, len(nodes))
	out := make([]nodeWithOrientation, 0, len(nodes))
	for _, n := range nodes {
		if seen[n.node] {
			continue
		}
		seen[n.node] = true
		out = append(out, n)
	}
	return out
}

// rank computes the blended cost and sorts ascending.
func (s *Selector) rank(nodes []nodeWithOrientation, robotPatch *trav.Patch, goalHint r3.Vector) ([]Candidate, error) {
	if len(nodes) == 0 {
		return nil, nil
	}
	fc := s.cfg.Frontier

	distFromStart := trav.ComputeDistances(s.travGraph, robotPatch)
	var distToGoal []float64
	goalPatch := s.travGraph.Lookup(goalHint)
	if goalPatch != nil && goalPatch.IsExpanded() {
		distToGoal = trav.ComputeDistances(s.travGraph, goalPatch)
	} else {
		s.log.Warn("goal hint off the expanded map, ignoring goal distance term")
	}

	// Normalizers over the finite distances of the surviving candidates.
	maxStart, maxGoal := 0.0, 0.0
	type scored struct {
		n      nodeWithOrientation
		dStart float64
		dGoal  float64
		ratio  float64
	}
	var kept []scored
	for _, n := range nodes {
		ds := fieldValue(distFromStart, n.node.ID())
		if ds >= trav.UnreachableDistance {
			continue
		}
		sc := scored{n: n, dStart: ds, ratio: s.explorableRatio(n.node)}
		if distToGoal != nil {
			sc.dGoal = fieldValue(distToGoal, n.node.ID())
			if sc.dGoal < trav.UnreachableDistance && sc.dGoal > maxGoal {
				maxGoal = sc.dGoal
			}
		}
		if ds > maxStart {
			maxStart = ds
		}
		kept = append(kept, sc)
	}

	candidates := make([]Candidate, 0, len(kept))
	for _, sc := range kept {
		cost := fc.WExplore * sc.ratio
		if maxStart > 0 {
			cost += fc.WTravel * (sc.dStart / maxStart)
		}
		if distToGoal != nil {
			if sc.dGoal >= trav.UnreachableDistance {
				cost += fc.WGoal
			} else if maxGoal > 0 {
				cost += fc.WGoal * (sc.dGoal / maxGoal)
			}
		}
		half := sc.n.heading / 2
		candidates = append(candidates, Candidate{
			Position:        s.travGraph.Position(sc.n.node),
			Orientation:     quat.Number{Real: math.Cos(half), Kmag: math.Sin(half)},
			Heading:         sc.n.heading,
			Cost:            cost,
			ExplorableRatio: sc.ratio,
		})
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Cost < candidates[j].Cost })
	s.log.Debug("frontier candidates ranked", zap.Int("count", len(candidates)))
	return candidates, nil
}

func fieldValue(field []float64, id int) float64 {
	if id >= len(field) {
		return trav.UnreachableDistance
	}
	return field[id]
}

// explorableRatio measures how much of its neighborhood the candidate can
// reach along links: the number of patches within R link hops (R the
// configured visit radius) over the full square (2R+1)².
func (s *Selector) explorableRatio(p *trav.Patch) float64 {
	radius := s.cfg.Frontier.VisitRadius
	maxVisitable := float64((2*radius + 1) * (2*radius + 1))
	visited := 0
	trav.Visit(p, func(_ *trav.Patch, distToRoot int) (bool, bool) {
		visited++
		return distToRoot < radius, false
	})
	return float64(visited) / maxVisitable
}
