// Package geom holds the value types shared by every coordinate-aware part of
// the editor. Each coordinate space has its own point type so that a pair of
// numbers can never silently change meaning; conversions live in the coords
// package.
package geom

import "math"

// ScreenPoint is a position in viewport pixels, measured from the top-left of
// the visible viewport.
type ScreenPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// DocumentPoint is a position in document-absolute pixels: a screen position
// plus the current scroll offset.
type DocumentPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// PagePoint is a position in pixels relative to the top-left corner of a page
// surface. This is the space annotations are stored in.
type PagePoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// PDFPoint is a position in PDF user space: 72 points per inch, unscaled,
// with the origin at the bottom-left of the page.
type PDFPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// PageLocation pairs a page-relative point with the page that owns it.
type PageLocation struct {
	PageNum int       `json:"page_num"`
	Point   PagePoint `json:"point"`
}

// Size is a width and height pair. Page sizes reported by the document
// provider are in PDF points.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Sub returns the vector from q to p.
func (p PagePoint) Sub(q PagePoint) (dx, dy float64) {
	return p.X - q.X, p.Y - q.Y
}

// Rect is an axis-aligned rectangle. Its space is given by context: page
// rects are page-relative, surface placements are screen rects.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// RectFromCorners builds the normalized rectangle spanned by two page points,
// regardless of the drag direction.
func RectFromCorners(a, b PagePoint) Rect {
	return Rect{
		X:      math.Min(a.X, b.X),
		Y:      math.Min(a.Y, b.Y),
		Width:  math.Abs(b.X - a.X),
		Height: math.Abs(b.Y - a.Y),
	}
}

// BoundsOf returns the bounding box of a point sequence. An empty sequence
// yields the zero Rect.
func BoundsOf(points []PagePoint) Rect {
	if len(points) == 0 {
		return Rect{}
	}
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, p := range points {
		minX = math.Min(minX, p.X)
		minY = math.Min(minY, p.Y)
		maxX = math.Max(maxX, p.X)
		maxY = math.Max(maxY, p.Y)
	}
	return Rect{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}

// Right returns the x coordinate of the right edge.
func (r Rect) Right() float64 { return r.X + r.Width }

// Bottom returns the y coordinate of the bottom edge.
func (r Rect) Bottom() float64 { return r.Y + r.Height }

// Center returns the midpoint of the rectangle.
func (r Rect) Center() (x, y float64) {
	return r.X + r.Width/2, r.Y + r.Height/2
}

// IsEmpty reports whether the rectangle has no area.
func (r Rect) IsEmpty() bool { return r.Width <= 0 || r.Height <= 0 }

// Contains reports whether (x, y) lies inside the rectangle, edges included.
func (r Rect) Contains(x, y float64) bool {
	return x >= r.X && x <= r.Right() && y >= r.Y && y <= r.Bottom()
}

// Inflate grows the rectangle by d on every side. A negative d shrinks it.
func (r Rect) Inflate(d float64) Rect {
	return Rect{X: r.X - d, Y: r.Y - d, Width: r.Width + 2*d, Height: r.Height + 2*d}
}

// Translate moves the rectangle by (dx, dy).
func (r Rect) Translate(dx, dy float64) Rect {
	r.X += dx
	r.Y += dy
	return r
}

// Scale multiplies every component by s.
func (r Rect) Scale(s float64) Rect {
	return Rect{X: r.X * s, Y: r.Y * s, Width: r.Width * s, Height: r.Height * s}
}

// Normalize returns an equivalent rectangle with non-negative width and height.
func (r Rect) Normalize() Rect {
	if r.Width < 0 {
		r.X += r.Width
		r.Width = -r.Width
	}
	if r.Height < 0 {
		r.Y += r.Height
		r.Height = -r.Height
	}
	return r
}

// ApproxEqual reports whether two floats differ by less than eps.
func ApproxEqual(a, b, eps float64) bool {
	return math.Abs(a-b) < eps
}
