// Command ugvnav plans a trajectory across an MLS terrain file and prints
// the resulting motion segments. With -explore it ranks frontier candidates
// instead. An optional HTML report renders the traversability map and path.
package main

import (
	"flag"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/golang/geo/r3"
	"go.uber.org/zap"

	"github.com/soraxas/ugv-nav4d/internal/core"
	"github.com/soraxas/ugv-nav4d/internal/env"
	"github.com/soraxas/ugv-nav4d/internal/frontier"
	"github.com/soraxas/ugv-nav4d/internal/mls"
	"github.com/soraxas/ugv-nav4d/internal/motion"
	"github.com/soraxas/ugv-nav4d/internal/planner"
	"github.com/soraxas/ugv-nav4d/internal/vis"
)

func main() {
	var (
		configPath = flag.String("config", "", "YAML configuration file (defaults apply when empty)")
		terrain    = flag.String("terrain", "", "MLS terrain JSON file (a flat demo map when empty)")
		startFlag  = flag.String("start", "0.15,0.15,0", "start position x,y,z in meters")
		startTheta = flag.Float64("start-theta", 0, "start heading in radians")
		goalFlag   = flag.String("goal", "0.85,0.85,0", "goal position x,y,z in meters")
		goalTheta  = flag.Float64("goal-theta", 0, "goal heading in radians")
		explore    = flag.Bool("explore", false, "rank frontier candidates instead of planning")
		report     = flag.String("report", "", "write an HTML report to this path")
		verbose    = flag.Bool("v", false, "verbose logging")
	)
	flag.Parse()

	logger := zap.NewNop()
	if *verbose {
		var err error
		logger, err = zap.NewDevelopment()
		if err != nil {
			log.Fatal(err)
		}
	}
	defer logger.Sync() //nolint:errcheck

	cfg := core.DefaultConfig()
	if *configPath != "" {
		var err error
		cfg, err = core.LoadConfig(*configPath)
		if err != nil {
			log.Fatalf("config: %v", err)
		}
	}

	var grid *mls.Grid
	if *terrain != "" {
		var err error
		grid, err = mls.Load(*terrain)
		if err != nil {
			log.Fatalf("terrain: %v", err)
		}
	} else {
		grid = mls.BuildFlat(10, 10, cfg.Traversability.GridResolution, 0)
	}

	table, err := motion.DefaultSet(cfg.Primitives, cfg.Mobility, cfg.Traversability.GridResolution)
	if err != nil {
		log.Fatalf("primitives: %v", err)
	}
	e, err := env.New(grid, cfg, table, logger)
	if err != nil {
		log.Fatalf("environment: %v", err)
	}

	start, err := parseVector(*startFlag)
	if err != nil {
		log.Fatalf("start: %v", err)
	}
	goal, err := parseVector(*goalFlag)
	if err != nil {
		log.Fatalf("goal: %v", err)
	}

	if *explore {
		runExplore(e, cfg, logger, start, goal)
		return
	}

	p := planner.New(e, logger)
	res, err := p.Plan(start, *startTheta, goal, *goalTheta)
	if err != nil {
		log.Fatalf("planning failed: %v", err)
	}

	fmt.Printf("run %s: %d states, cost %d, epsilon %.1f, %d expansions, %v\n",
		res.RunID, len(res.StateIDs), res.Cost, res.Epsilon, res.Expansions, res.Elapsed)
	for i, seg := range res.Trajectory {
		last := seg.Positions[len(seg.Positions)-1]
		fmt.Printf("  segment %2d: %-9s speed %+.2f m/s, %3d points, ends (%.2f, %.2f, %.2f)\n",
			i, seg.Kind, seg.Speed, len(seg.Positions), last.X, last.Y, last.Z)
	}

	if *report != "" {
		sc := vis.Snapshot(e, res.Trajectory)
		if err := vis.WriteReport(sc, "ugv-nav4d plan", *report); err != nil {
			log.Fatalf("report: %v", err)
		}
		fmt.Printf("report written to %s\n", *report)
	}
}

func runExplore(e *env.Env, cfg core.Config, logger *zap.Logger, robotPos, goalHint r3.Vector) {
	e.TravGraph().ExpandAll([]r3.Vector{robotPos})
	e.ObstGraph().ExpandAll([]r3.Vector{robotPos})

	sel := frontier.New(e.TravGraph(), e.ObstGraph(), cfg, logger)
	candidates, err := sel.NextFrontiers(robotPos, goalHint)
	if err != nil {
		log.Fatalf("frontier selection failed: %v", err)
	}
	if len(candidates) == 0 {
		fmt.Println("map fully explored, no frontier candidates")
		return
	}
	for i, c := range candidates {
		fmt.Printf("  candidate %2d: (%.2f, %.2f, %.2f) heading %.2f rad, cost %.3f, explorable %.2f\n",
			i, c.Position.X, c.Position.Y, c.Position.Z, c.Heading, c.Cost, c.ExplorableRatio)
	}
}

func parseVector(s string) (r3.Vector, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return r3.Vector{}, fmt.Errorf("want x,y,z, got %q", s)
	}
	var v [3]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return r3.Vector{}, fmt.Errorf("component %d of %q: %w", i, s, err)
		}
		v[i] = f
	}
	return r3.Vector{X: v[0], Y: v[1], Z: v[2]}, nil
}
