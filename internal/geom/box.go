package geom

// Box is an axis-aligned bounding box in pixel coordinates.
type Box struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

// NewBox constructs a box from min/max pixel coordinates (max exclusive).
func NewBox(minX, minY, maxX, maxY int) Box {
	return Box{X: minX, Y: minY, W: maxX - minX, H: maxY - minY}
}

// Area returns the box area in pixels.
func (b Box) Area() int { return b.W * b.H }

// AspectRatio returns width/height; zero-height boxes report 0.
func (b Box) AspectRatio() float64 {
	if b.H == 0 {
		return 0
	}
	return float64(b.W) / float64(b.H)
}

// Empty reports whether the box has no area.
func (b Box) Empty() bool { return b.W <= 0 || b.H <= 0 }

// Union returns the smallest box containing both b and o.
func (b Box) Union(o Box) Box {
	if b.Empty() {
		return o
	}
	if o.Empty() {
		return b
	}
	minX := min(b.X, o.X)
	minY := min(b.Y, o.Y)
	maxX := max(b.X+b.W, o.X+o.W)
	maxY := max(b.Y+b.H, o.Y+o.H)
	return NewBox(minX, minY, maxX, maxY)
}

// Intersects reports whether the two boxes overlap.
func (b Box) Intersects(o Box) bool {
	return b.X < o.X+o.W && o.X < b.X+b.W && b.Y < o.Y+o.H && o.Y < b.Y+b.H
}
