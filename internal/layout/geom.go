package layout

import "math"

// Point is a position in the global coordinate space shared by all
// monitors, origin at the top-left of the main monitor, y growing down.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Rect represents window or monitor geometry in logical pixels.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Contains reports whether p lies inside r. Edges count as inside so a
// pointer pinned against a screen border still resolves.
func (r Rect) Contains(p Point) bool {
	return p.X >= r.X && p.X <= r.X+r.Width && p.Y >= r.Y && p.Y <= r.Y+r.Height
}

// ContainsY reports whether the horizontal band [Y, Y+Height) covers y.
func (r Rect) ContainsY(y float64) bool {
	return r.Height > 0 && y >= r.Y && y < r.Y+r.Height
}

// Center returns the midpoint of r.
func (r Rect) Center() Point {
	return Point{X: r.X + r.Width/2, Y: r.Y + r.Height/2}
}

// Area returns width times height.
func (r Rect) Area() float64 {
	return r.Width * r.Height
}

// Bottom returns the y coordinate of the lower edge.
func (r Rect) Bottom() float64 {
	return r.Y + r.Height
}

// IsZero reports whether the rect carries no geometry at all, the
// placeholder for windows whose bounds are not yet known.
func (r Rect) IsZero() bool {
	return r.X == 0 && r.Y == 0 && r.Width == 0 && r.Height == 0
}

// Distance returns the Euclidean distance between two points.
func Distance(a, b Point) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

// DistanceToRect returns the distance from p to the nearest point of r,
// zero when p lies inside r.
func DistanceToRect(p Point, r Rect) float64 {
	return Distance(p, Point{
		X: clamp(p.X, r.X, r.X+r.Width),
		Y: clamp(p.Y, r.Y, r.Y+r.Height),
	})
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
