// Package geom holds the small value types shared by the window registry,
// the coordinate mapper and the overlay tracker.
package geom

import "fmt"

// Point is an integer pixel position (origin top-left, Y down).
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Sub returns p - q.
func (p Point) Sub(q Point) Point {
	return Point{X: p.X - q.X, Y: p.Y - q.Y}
}

// Vec2 is a two component float vector.
type Vec2 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Add returns v + w.
func (v Vec2) Add(w Vec2) Vec2 {
	return Vec2{X: v.X + w.X, Y: v.Y + w.Y}
}

// Sub returns v - w.
func (v Vec2) Sub(w Vec2) Vec2 {
	return Vec2{X: v.X - w.X, Y: v.Y - w.Y}
}

// Mul returns the component-wise product of v and w.
func (v Vec2) Mul(w Vec2) Vec2 {
	return Vec2{X: v.X * w.X, Y: v.Y * w.Y}
}

func (v Vec2) String() string {
	return fmt.Sprintf("(%.4g, %.4g)", v.X, v.Y)
}

// Vec3 is a three component float vector.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// XY drops the depth component.
func (v Vec3) XY() Vec2 {
	return Vec2{X: v.X, Y: v.Y}
}

func (v Vec3) String() string {
	return fmt.Sprintf("(%.4g, %.4g, %.4g)", v.X, v.Y, v.Z)
}

// Size is a pixel extent.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Empty reports whether the size has no area.
func (s Size) Empty() bool {
	return s.Width <= 0 || s.Height <= 0
}

// Vec returns the size as a vector.
func (s Size) Vec() Vec2 {
	return Vec2{X: s.Width, Y: s.Height}
}

// Rect is a pixel-space rectangle anchored at its top-left corner.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// RectFromEdges builds a Rect from left/top/right/bottom edges as reported by
// most windowing APIs.
func RectFromEdges(left, top, right, bottom int32) Rect {
	return Rect{
		X:      float64(left),
		Y:      float64(top),
		Width:  float64(right - left),
		Height: float64(bottom - top),
	}
}

// Position returns the top-left corner.
func (r Rect) Position() Vec2 {
	return Vec2{X: r.X, Y: r.Y}
}

// Size returns the extent of the rectangle.
func (r Rect) Size() Vec2 {
	return Vec2{X: r.Width, Y: r.Height}
}

func (r Rect) String() string {
	return fmt.Sprintf("[%g,%g %gx%g]", r.X, r.Y, r.Width, r.Height)
}
