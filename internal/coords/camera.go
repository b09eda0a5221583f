package coords

import "deskhook/internal/geom"

// Camera projects viewport pixels into world space. Pixel coordinates passed
// to ScreenToWorldPoint use a bottom-left origin with Y up.
type Camera interface {
	Position() geom.Vec3
	SetPosition(geom.Vec3)
	ScreenToWorldPoint(screen geom.Vec2, viewport geom.Size) geom.Vec2
}

// Orthographic is an axis-aligned orthographic camera. Size is half the
// visible world height; the visible width follows the viewport aspect.
type Orthographic struct {
	Size float64
	Pos  geom.Vec3
}

func NewOrthographic(size float64, pos geom.Vec3) *Orthographic {
	return &Orthographic{Size: size, Pos: pos}
}

func (c *Orthographic) Position() geom.Vec3 {
	return c.Pos
}

func (c *Orthographic) SetPosition(p geom.Vec3) {
	c.Pos = p
}

func (c *Orthographic) ScreenToWorldPoint(screen geom.Vec2, viewport geom.Size) geom.Vec2 {
	if viewport.Empty() {
		return c.Pos.XY()
	}
	halfH := c.Size
	halfW := c.Size * viewport.Width / viewport.Height
	return geom.Vec2{
		X: c.Pos.X + (screen.X/viewport.Width*2-1)*halfW,
		Y: c.Pos.Y + (screen.Y/viewport.Height*2-1)*halfH,
	}
}
