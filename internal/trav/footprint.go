package trav

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"github.com/soraxas/ugv-nav4d/internal/core"
)

// Stats accumulates obstacle and frontier hits of one footprint region.
type Stats struct {
	numObstacles     int
	numFrontiers     int
	minDistObstacles float64
	minDistFrontiers float64
}

// NumObstacles returns the number of distinct obstacle patches hit.
func (s Stats) NumObstacles() int { return s.numObstacles }

// NumFrontiers returns the number of distinct frontier patches hit.
func (s Stats) NumFrontiers() int { return s.numFrontiers }

// MinDistToObstacles returns the shortest pose-center distance to an
// obstacle patch, +Inf when none was hit.
func (s Stats) MinDistToObstacles() float64 { return s.minDistObstacles }

// MinDistToFrontiers returns the shortest pose-center distance to a
// frontier patch, +Inf when none was hit.
func (s Stats) MinDistToFrontiers() float64 { return s.minDistFrontiers }

// PathStatistics sweeps the oriented robot rectangle along the poses of a
// motion and reports, per the obstacle layer, what lies underneath it
// (robot stats) and what lies in the surrounding ring of radius
// costFunctionDist (boundary stats). Unexpanded patches under the footprint
// do not count.
type PathStatistics struct {
	cfg      core.TraversabilityConfig
	robot    Stats
	boundary Stats
}

// NewPathStatistics creates an evaluator for the given configuration.
func NewPathStatistics(cfg core.TraversabilityConfig) *PathStatistics {
	inf := math.Inf(1)
	return &PathStatistics{
		cfg:      cfg,
		robot:    Stats{minDistObstacles: inf, minDistFrontiers: inf},
		boundary: Stats{minDistObstacles: inf, minDistFrontiers: inf},
	}
}

// Robot returns the inner-footprint statistics.
func (ps *PathStatistics) Robot() Stats { return ps.robot }

// Boundary returns the ring statistics.
func (ps *PathStatistics) Boundary() Stats { return ps.boundary }

// Calculate sweeps the footprint over the poses. path supplies the walked
// obstacle patches and is consulted for the height reference of each pose,
// so that surfaces on a different level (above or below the body) are
// ignored.
func (ps *PathStatistics) Calculate(layer *Graph, path []*Patch, poses []core.Pose2D) {
	hx := ps.cfg.RobotSizeX / 2
	hy := ps.cfg.RobotSizeY / 2
	circum := math.Hypot(hx, hy)
	reach := circum + ps.cfg.CostFunctionDist

	seenRobot := make(map[*Patch]bool)
	seenBoundary := make(map[*Patch]bool)

	for i, pose := range poses {
		zRef := poseHeight(path, i)

		candidates := layer.QueryRegion(pose.X-reach, pose.Y-reach, pose.X+reach, pose.Y+reach)
		if len(candidates) == 0 {
			continue
		}
		poly := footprintPolygon(pose, hx, hy)

		for _, q := range candidates {
			if !math.IsNaN(zRef) && math.Abs(q.Height()-zRef) > ps.cfg.RobotHeight {
				continue
			}
			pos := layer.Position(q)
			pt := orb.Point{pos.X, pos.Y}

			if planar.PolygonContains(poly, pt) {
				if !seenRobot[q] {
					seenRobot[q] = true
					ps.robot.add(q.Kind(), 0)
				}
				continue
			}
			centerDist := math.Hypot(pos.X-pose.X, pos.Y-pose.Y)
			if centerDist > ps.cfg.CostFunctionDist+circum {
				continue
			}
			if seenBoundary[q] {
				ps.boundary.observeDist(q.Kind(), centerDist)
				continue
			}
			seenBoundary[q] = true
			ps.boundary.add(q.Kind(), centerDist)
		}
	}
}

func poseHeight(path []*Patch, i int) float64 {
	if len(path) == 0 {
		return math.NaN()
	}
	if i >= len(path) {
		i = len(path) - 1
	}
	if path[i] == nil {
		return math.NaN()
	}
	return path[i].Height()
}

func footprintPolygon(pose core.Pose2D, hx, hy float64) orb.Polygon {
	sin, cos := math.Sincos(pose.Heading)
	corner := func(dx, dy float64) orb.Point {
		return orb.Point{
			pose.X + dx*cos - dy*sin,
			pose.Y + dx*sin + dy*cos,
		}
	}
	ring := orb.Ring{
		corner(-hx, -hy),
		corner(hx, -hy),
		corner(hx, hy),
		corner(-hx, hy),
		corner(-hx, -hy),
	}
	return orb.Polygon{ring}
}

func (s *Stats) add(k Kind, dist float64) {
	switch k {
	case KindObstacle:
		s.numObstacles++
	case KindFrontier:
		s.numFrontiers++
	default:
		return
	}
	s.observeDist(k, dist)
}

func (s *Stats) observeDist(k Kind, dist float64) {
	switch k {
	case KindObstacle:
		if dist < s.minDistObstacles {
			s.minDistObstacles = dist
		}
	case KindFrontier:
		if dist < s.minDistFrontiers {
			s.minDistFrontiers = dist
		}
	}
}
