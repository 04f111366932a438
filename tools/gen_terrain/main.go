// Package main generates deterministic synthetic MLS terrain files for
// testing and benchmarking the planner.
package main

import (
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand"

	"github.com/soraxas/ugv-nav4d/internal/core"
	"github.com/soraxas/ugv-nav4d/internal/mls"
)

func main() {
	var (
		out        = flag.String("out", "terrain.json", "output file")
		size       = flag.Int("size", 50, "grid size in cells per side")
		resolution = flag.Float64("res", 0.1, "grid resolution in meters")
		seed       = flag.Int64("seed", 1, "random seed")
		hills      = flag.Int("hills", 3, "number of smooth hills")
		hillHeight = flag.Float64("hill-height", 0.4, "peak height of hills in meters")
		walls      = flag.Int("walls", 2, "number of wall segments")
		wallHeight = flag.Float64("wall-height", 0.5, "wall height in meters")
		holes      = flag.Int("holes", 1, "number of unknown (unmapped) rectangles")
	)
	flag.Parse()

	rng := rand.New(rand.NewSource(*seed))
	grid := mls.BuildFlat(*size, *size, *resolution, 0)

	type hill struct {
		cx, cy, radius, height float64
	}
	hs := make([]hill, 0, *hills)
	for i := 0; i < *hills; i++ {
		hs = append(hs, hill{
			cx:     rng.Float64() * float64(*size),
			cy:     rng.Float64() * float64(*size),
			radius: (0.15 + rng.Float64()*0.2) * float64(*size),
			height: *hillHeight * (0.5 + rng.Float64()*0.5),
		})
	}
	for y := 0; y < *size; y++ {
		for x := 0; x < *size; x++ {
			z := 0.0
			for _, h := range hs {
				d := math.Hypot(float64(x)-h.cx, float64(y)-h.cy)
				if d < h.radius {
					z += h.height * 0.5 * (1 + math.Cos(math.Pi*d/h.radius))
				}
			}
			idx := core.Index{X: x, Y: y}
			grid.ClearCell(idx)
			grid.Add(idx, mls.SurfacePatch{Z: z})
		}
	}

	for i := 0; i < *walls; i++ {
		x0 := rng.Intn(*size - 4)
		y0 := rng.Intn(*size - 4)
		length := 4 + rng.Intn(*size/2)
		if rng.Intn(2) == 0 {
			grid.AddWall(x0, y0, min(x0+length, *size), y0+1, *wallHeight)
		} else {
			grid.AddWall(x0, y0, x0+1, min(y0+length, *size), *wallHeight)
		}
	}

	for i := 0; i < *holes; i++ {
		x0 := rng.Intn(*size - 6)
		y0 := rng.Intn(*size - 6)
		w := 3 + rng.Intn(*size/4)
		h := 3 + rng.Intn(*size/4)
		grid.ClearRect(x0, y0, min(x0+w, *size), min(y0+h, *size))
	}

	name := fmt.Sprintf("terrain_%dx%d_seed%d", *size, *size, *seed)
	if err := mls.Save(grid, name, *out); err != nil {
		log.Fatal(err)
	}
	fmt.Printf("wrote %s (%d cells, %d hills, %d walls, %d holes)\n",
		*out, *size**size, *hills, *walls, *holes)
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
