package vis

import (
	"image"
	"image/color"
	"math"

	"gioui.org/f32"
	"gioui.org/layout"
	"gioui.org/op/clip"
	"gioui.org/op/paint"

	"github.com/soraxas/ugv-nav4d/internal/trav"
)

// Patch kind colors.
var (
	colorTraversable = color.NRGBA{R: 70, G: 120, B: 80, A: 255}
	colorObstacle    = color.NRGBA{R: 190, G: 70, B: 60, A: 255}
	colorFrontier    = color.NRGBA{R: 90, G: 130, B: 210, A: 255}
	colorUnknown     = color.NRGBA{R: 60, G: 60, B: 65, A: 255}
	colorPath        = color.NRGBA{R: 250, G: 220, B: 90, A: 255}
	colorPathBack    = color.NRGBA{R: 230, G: 120, B: 220, A: 255}
	colorStart       = color.NRGBA{R: 110, G: 190, B: 255, A: 255}
	colorGoal        = color.NRGBA{R: 255, G: 140, B: 80, A: 255}
)

func kindColor(k trav.Kind) color.NRGBA {
	switch k {
	case trav.KindTraversable:
		return colorTraversable
	case trav.KindObstacle:
		return colorObstacle
	case trav.KindFrontier:
		return colorFrontier
	default:
		return colorUnknown
	}
}

// drawScene renders cells, trajectory and the start/goal markers.
func drawScene(gtx layout.Context, sc Scene, cam *Camera) {
	for _, c := range sc.Cells {
		x0, y0 := cam.WorldToScreen(c.X, c.Y)
		x1, y1 := cam.WorldToScreen(c.X+sc.Resolution, c.Y+sc.Resolution)
		rect := image.Rect(int(x0), int(y0), int(x1)+1, int(y1)+1)
		paint.FillShape(gtx.Ops, kindColor(c.Kind), clip.Rect(rect).Op())
	}

	for i, line := range sc.Path {
		col := colorPath
		if i < len(sc.Backward) && sc.Backward[i] {
			col = colorPathBack
		}
		for j := 1; j < len(line); j++ {
			drawLine(gtx, cam, line[j-1], line[j], col, 2)
		}
	}

	if sc.HasPlan {
		drawMarker(gtx, cam, sc.Start, colorStart)
		drawMarker(gtx, cam, sc.Goal, colorGoal)
	}
}

// drawLine fills a quad along the segment, width in screen pixels.
func drawLine(gtx layout.Context, cam *Camera, a, b [2]float64, col color.NRGBA, width float32) {
	x1, y1 := cam.WorldToScreen(a[0], a[1])
	x2, y2 := cam.WorldToScreen(b[0], b[1])

	dx := x2 - x1
	dy := y2 - y1
	length := float32(math.Hypot(float64(dx), float64(dy)))
	if length < 0.1 {
		return
	}
	px := -dy / length * width / 2
	py := dx / length * width / 2

	var path clip.Path
	path.Begin(gtx.Ops)
	path.MoveTo(f32.Pt(x1+px, y1+py))
	path.LineTo(f32.Pt(x2+px, y2+py))
	path.LineTo(f32.Pt(x2-px, y2-py))
	path.LineTo(f32.Pt(x1-px, y1-py))
	path.Close()
	paint.FillShape(gtx.Ops, col, clip.Outline{Path: path.End()}.Op())
}

// drawMarker draws a filled circle at the world position.
func drawMarker(gtx layout.Context, cam *Camera, pos [2]float64, col color.NRGBA) {
	cx, cy := cam.WorldToScreen(pos[0], pos[1])
	const r = 6

	var path clip.Path
	path.Begin(gtx.Ops)
	path.Move(f32.Pt(cx+r, cy))
	const segments = 16
	for i := 1; i <= segments; i++ {
		angle := float64(i) * 2 * math.Pi / segments
		x := cx + r*float32(math.Cos(angle))
		y := cy + r*float32(math.Sin(angle))
		path.Line(f32.Pt(x-path.Pos().X, y-path.Pos().Y))
	}
	path.Close()
	paint.FillShape(gtx.Ops, col, clip.Outline{Path: path.End()}.Op())
}
