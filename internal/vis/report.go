package vis

import (
	"fmt"
	"os"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/soraxas/ugv-nav4d/internal/trav"
)

// WriteReport renders the scene as a standalone HTML scatter plot: one
// series per patch kind plus the planned path. Meant for quick inspection
// without the GUI viewer.
func WriteReport(sc Scene, title, path string) error {
	byKind := map[trav.Kind][]opts.ScatterData{}
	half := sc.Resolution / 2
	for _, c := range sc.Cells {
		byKind[c.Kind] = append(byKind[c.Kind], opts.ScatterData{
			Value: []interface{}{c.X + half, c.Y + half, c.Z},
		})
	}

	var pathData []opts.ScatterData
	for _, line := range sc.Path {
		for _, pt := range line {
			pathData = append(pathData, opts.ScatterData{Value: []interface{}{pt[0], pt[1], 0.0}})
		}
	}

	minX, minY, maxX, maxY := sc.Bounds()

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Theme: "dark", Width: "900px", Height: "900px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    title,
			Subtitle: fmt.Sprintf("patches=%d path points=%d", len(sc.Cells), len(pathData)),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Min: minX, Max: maxX, Name: "X (m)"}),
		charts.WithYAxisOpts(opts.YAxis{Min: minY, Max: maxY, Name: "Y (m)"}),
	)

	series := []struct {
		name string
		kind trav.Kind
		size int
	}{
		{"traversable", trav.KindTraversable, 4},
		{"obstacle", trav.KindObstacle, 5},
		{"frontier", trav.KindFrontier, 5},
	}
	for _, s := range series {
		if len(byKind[s.kind]) == 0 {
			continue
		}
		scatter.AddSeries(s.name, byKind[s.kind],
			charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: s.size}))
	}
	if len(pathData) > 0 {
		scatter.AddSeries("path", pathData,
			charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 3}))
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	defer f.Close()
	if err := scatter.Render(f); err != nil {
		return fmt.Errorf("render report: %w", err)
	}
	return nil
}
