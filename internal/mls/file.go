package mls

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/soraxas/ugv-nav4d/internal/core"
)

// TerrainFile is the on-disk JSON representation of an MLS map, as written
// by tools/gen_terrain.
type TerrainFile struct {
	Name       string        `json:"name"`
	Resolution float64       `json:"resolution"`
	NumX       int           `json:"num_x"`
	NumY       int           `json:"num_y"`
	Cells      []TerrainCell `json:"cells"`
}

// TerrainCell holds the surface heights of one cell. Cells absent from the
// file stay unknown.
type TerrainCell struct {
	X  int       `json:"x"`
	Y  int       `json:"y"`
	Zs []float64 `json:"zs"`
}

// Load reads a terrain file into a Grid.
func Load(path string) (*Grid, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read terrain: %w", err)
	}
	var tf TerrainFile
	if err := json.Unmarshal(data, &tf); err != nil {
		return nil, fmt.Errorf("parse terrain: %w", err)
	}
	if tf.Resolution <= 0 || tf.NumX <= 0 || tf.NumY <= 0 {
		return nil, fmt.Errorf("terrain %q: bad dimensions %dx%d@%f", tf.Name, tf.NumX, tf.NumY, tf.Resolution)
	}
	g := NewGrid(tf.NumX, tf.NumY, tf.Resolution)
	for _, c := range tf.Cells {
		for _, z := range c.Zs {
			g.Add(core.Index{X: c.X, Y: c.Y}, SurfacePatch{Z: z})
		}
	}
	return g, nil
}

// Save writes the grid as a terrain file.
func Save(g *Grid, name, path string) error {
	tf := TerrainFile{
		Name:       name,
		Resolution: g.Resolution(),
		NumX:       g.NumCellsX(),
		NumY:       g.NumCellsY(),
	}
	for y := 0; y < g.NumCellsY(); y++ {
		for x := 0; x < g.NumCellsX(); x++ {
			stack := g.Cell(core.Index{X: x, Y: y})
			if len(stack) == 0 {
				continue
			}
			cell := TerrainCell{X: x, Y: y}
			for _, p := range stack {
				cell.Zs = append(cell.Zs, p.Z)
			}
			tf.Cells = append(tf.Cells, cell)
		}
	}
	data, err := json.MarshalIndent(&tf, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal terrain: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
