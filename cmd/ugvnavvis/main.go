// Command ugvnavvis plans a trajectory and opens the GUI viewer on the
// result. Right-drag pans, scroll zooms, R refits the view.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"gioui.org/app"
	"gioui.org/unit"
	"github.com/golang/geo/r3"

	"github.com/soraxas/ugv-nav4d/internal/core"
	"github.com/soraxas/ugv-nav4d/internal/env"
	"github.com/soraxas/ugv-nav4d/internal/mls"
	"github.com/soraxas/ugv-nav4d/internal/motion"
	"github.com/soraxas/ugv-nav4d/internal/planner"
	"github.com/soraxas/ugv-nav4d/internal/vis"
)

func main() {
	var (
		configPath = flag.String("config", "", "YAML configuration file")
		terrain    = flag.String("terrain", "", "MLS terrain JSON file (a flat demo map when empty)")
		startFlag  = flag.String("start", "0.15,0.15,0", "start position x,y,z in meters")
		startTheta = flag.Float64("start-theta", 0, "start heading in radians")
		goalFlag   = flag.String("goal", "0.85,0.85,0", "goal position x,y,z in meters")
		goalTheta  = flag.Float64("goal-theta", 0, "goal heading in radians")
	)
	flag.Parse()

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
	e, err := env.New(grid, cfg, table, nil)
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

	var segments []env.Segment
	p := planner.New(e, nil)
	res, err := p.Plan(start, *startTheta, goal, *goalTheta)
	if err != nil {
		// Show the expanded map anyway; the failure is visible there.
		log.Printf("planning failed: %v", err)
	} else {
		segments = res.Trajectory
		log.Printf("cost %d over %d states", res.Cost, len(res.StateIDs))
	}

	scene := vis.Snapshot(e, segments)

	go func() {
		window := new(app.Window)
		window.Option(
			app.Title("ugv-nav4d"),
			app.Size(unit.Dp(1200), unit.Dp(900)),
		)
		viewer := vis.NewApp(scene)
		if err := viewer.Run(window); err != nil {
			log.Fatal(err)
		}
		os.Exit(0)
	}()
	app.Main()
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
