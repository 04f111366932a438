package vis

import (
	"gioui.org/io/pointer"
)

// Camera manages the view transform: pan in screen pixels, uniform zoom.
type Camera struct {
	OffsetX float32
	OffsetY float32
	Zoom    float32

	dragging bool
	lastX    float32
	lastY    float32
}

// NewCamera creates a camera at the default view.
func NewCamera() *Camera {
	return &Camera{OffsetX: 60, OffsetY: 60, Zoom: 400}
}

// Reset restores the default view.
func (c *Camera) Reset() {
	c.OffsetX, c.OffsetY, c.Zoom = 60, 60, 400
}

// WorldToScreen converts world coordinates to screen pixels.
func (c *Camera) WorldToScreen(wx, wy float64) (float32, float32) {
	return float32(wx)*c.Zoom + c.OffsetX, float32(wy)*c.Zoom + c.OffsetY
}

// ScreenToWorld converts screen pixels to world coordinates.
func (c *Camera) ScreenToWorld(sx, sy float32) (float64, float64) {
	return float64((sx - c.OffsetX) / c.Zoom), float64((sy - c.OffsetY) / c.Zoom)
}

// HandleEvent applies pointer drag for pan and scroll for zoom centered on
// the cursor.
func (c *Camera) HandleEvent(ev pointer.Event) {
	switch ev.Kind {
	case pointer.Press:
		if ev.Buttons.Contain(pointer.ButtonSecondary) || ev.Buttons.Contain(pointer.ButtonTertiary) {
			c.dragging = true
		}
		c.lastX, c.lastY = ev.Position.X, ev.Position.Y

	case pointer.Drag:
		if c.dragging {
			c.OffsetX += ev.Position.X - c.lastX
			c.OffsetY += ev.Position.Y - c.lastY
		}
		c.lastX, c.lastY = ev.Position.X, ev.Position.Y

	case pointer.Release, pointer.Cancel:
		c.dragging = false

	case pointer.Scroll:
		if ev.Scroll.Y == 0 {
			return
		}
		wx, wy := c.ScreenToWorld(ev.Position.X, ev.Position.Y)
		if ev.Scroll.Y > 0 {
			c.Zoom /= 1.1
		} else {
			c.Zoom *= 1.1
		}
		if c.Zoom < 20 {
			c.Zoom = 20
		}
		if c.Zoom > 4000 {
			c.Zoom = 4000
		}
		sx, sy := c.WorldToScreen(wx, wy)
		c.OffsetX += ev.Position.X - sx
		c.OffsetY += ev.Position.Y - sy
	}
}

// FitBounds adjusts zoom and offset so the world rectangle fills the
// screen with a margin.
func (c *Camera) FitBounds(minX, minY, maxX, maxY float64, screenW, screenH, margin float32) {
	worldW := maxX - minX
	worldH := maxY - minY
	if worldW <= 0 || worldH <= 0 {
		return
	}
	zoomX := (screenW - 2*margin) / float32(worldW)
	zoomY := (screenH - 2*margin) / float32(worldH)
	c.Zoom = zoomX
	if zoomY < zoomX {
		c.Zoom = zoomY
	}
	cx := (minX + maxX) / 2
	cy := (minY + maxY) / 2
	c.OffsetX = screenW/2 - float32(cx)*c.Zoom
	c.OffsetY = screenH/2 - float32(cy)*c.Zoom
}
