package core

// Index addresses a cell of the 2D planning grid.
type Index struct {
	X, Y int
}

// Add returns the component-wise sum.
func (i Index) Add(o Index) Index {
	return Index{X: i.X + o.X, Y: i.Y + o.Y}
}

// Sub returns the component-wise difference.
func (i Index) Sub(o Index) Index {
	return Index{X: i.X - o.X, Y: i.Y - o.Y}
}

// Pose2D is a continuous planar pose. Positions of intermediate motion
// samples are relative to the starting cell center until shifted into world
// coordinates.
type Pose2D struct {
	X, Y    float64
	Heading float64
}
