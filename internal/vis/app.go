package vis

import (
	"image"
	"image/color"

	"gioui.org/app"
	"gioui.org/io/event"
	"gioui.org/io/key"
	"gioui.org/io/pointer"
	"gioui.org/layout"
	"gioui.org/op"
	"gioui.org/op/clip"
	"gioui.org/op/paint"
)

// App is the viewer: one scene, a pannable camera, nothing else.
type App struct {
	scene  Scene
	camera *Camera
	fitted bool
}

// NewApp creates a viewer for the scene.
func NewApp(scene Scene) *App {
	return &App{scene: scene, camera: NewCamera()}
}

// Run drives the window event loop until the window closes.
func (a *App) Run(w *app.Window) error {
	var ops op.Ops
	tag := new(int)

	for {
		switch e := w.Event().(type) {
		case app.DestroyEvent:
			return e.Err

		case app.FrameEvent:
			gtx := app.NewContext(&ops, e)

			for {
				ev, ok := gtx.Event(key.Filter{Focus: tag})
				if !ok {
					break
				}
				if ke, ok := ev.(key.Event); ok && ke.State == key.Press && ke.Name == "R" {
					a.fitScene(gtx)
				}
			}
			event.Op(gtx.Ops, tag)

			a.layout(gtx)
			e.Frame(gtx.Ops)
		}
	}
}

func (a *App) layout(gtx layout.Context) layout.Dimensions {
	bounds := gtx.Constraints.Max
	defer clip.Rect(image.Rect(0, 0, bounds.X, bounds.Y)).Push(gtx.Ops).Pop()

	paint.Fill(gtx.Ops, color.NRGBA{R: 25, G: 28, B: 32, A: 255})

	a.handlePointer(gtx)
	if !a.fitted {
		a.fitScene(gtx)
		a.fitted = true
	}

	drawScene(gtx, a.scene, a.camera)
	return layout.Dimensions{Size: bounds}
}

func (a *App) fitScene(gtx layout.Context) {
	minX, minY, maxX, maxY := a.scene.Bounds()
	a.camera.FitBounds(minX, minY, maxX, maxY,
		float32(gtx.Constraints.Max.X), float32(gtx.Constraints.Max.Y), 40)
}

func (a *App) handlePointer(gtx layout.Context) {
	bounds := gtx.Constraints.Max
	area := clip.Rect(image.Rect(0, 0, bounds.X, bounds.Y)).Push(gtx.Ops)
	event.Op(gtx.Ops, a)
	area.Pop()

	for {
		ev, ok := gtx.Event(pointer.Filter{
			Target: a,
			Kinds:  pointer.Press | pointer.Drag | pointer.Release | pointer.Scroll,
		})
		if !ok {
			break
		}
		if pe, ok := ev.(pointer.Event); ok {
			a.camera.HandleEvent(pe)
		}
	}
}
