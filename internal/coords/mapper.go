// Package coords maps desktop pixel geometry into the world space of an
// orthographic render camera.
package coords

import (
	"fmt"

	"deskhook/internal/geom"
)

// ScaleReference is the result of one scale computation.
type ScaleReference struct {
	UnitsPerPixel geom.Vec2 `json:"unitsPerPixel"`
	Viewport      geom.Size `json:"viewport"`
	// Extent is the world size of the whole viewport.
	Extent geom.Vec2 `json:"extent"`
}

func (r ScaleReference) String() string {
	return fmt.Sprintf("%gx%g px -> %s world", r.Viewport.Width, r.Viewport.Height, r.Extent)
}

// Mapper converts pixel positions (top-left origin, Y down) and sizes into
// world space. The scale only changes on RecalculateScale; callers must
// invoke it again after a viewport resize.
type Mapper struct {
	camera Camera
	ref    ScaleReference
	valid  bool
}

func NewMapper() *Mapper {
	return &Mapper{}
}

// RecalculateScale measures how many world units one pixel covers by
// projecting a one pixel offset through camera with the camera moved to the
// origin. The camera's position is restored before returning. For a
// degenerate viewport the previous scale and camera, if any, are kept and
// ErrDegenerateViewport is returned.
func (m *Mapper) RecalculateScale(viewport geom.Size, camera Camera) error {
	if camera == nil {
		return fmt.Errorf("recalculate scale: nil camera")
	}
	if viewport.Empty() {
		return fmt.Errorf("recalculate scale for %gx%g: %w", viewport.Width, viewport.Height, ErrDegenerateViewport)
	}
	m.camera = camera

	saved := camera.Position()
	camera.SetPosition(geom.Vec3{})
	origin := camera.ScreenToWorldPoint(geom.Vec2{}, viewport)
	unit := camera.ScreenToWorldPoint(geom.Vec2{X: 1, Y: 1}, viewport)
	camera.SetPosition(saved)

	upp := unit.Sub(origin)
	m.ref = ScaleReference{
		UnitsPerPixel: upp,
		Viewport:      viewport,
		Extent:        upp.Mul(viewport.Vec()),
	}
	m.valid = true
	return nil
}

// Valid reports whether a scale has been computed.
func (m *Mapper) Valid() bool {
	return m.valid
}

// Scale returns the world extent of the viewport.
func (m *Mapper) Scale() (geom.Vec2, error) {
	if !m.valid {
		return geom.Vec2{}, ErrScaleUndefined
	}
	return m.ref.Extent, nil
}

// Reference returns the full scale reference.
func (m *Mapper) Reference() (ScaleReference, error) {
	if !m.valid {
		return ScaleReference{}, ErrScaleUndefined
	}
	return m.ref, nil
}

// ScreenToWorldPosition maps pixel p so that (0,0) lands on the top-left
// world corner of the view and the viewport size lands on the bottom-right,
// both relative to the camera's current position.
func (m *Mapper) ScreenToWorldPosition(p geom.Vec2) (geom.Vec2, error) {
	if !m.valid {
		return geom.Vec2{}, ErrScaleUndefined
	}
	s, vp := m.ref.Extent, m.ref.Viewport
	cam := m.camera.Position()
	return geom.Vec2{
		X: cam.X + p.X/vp.Width*s.X - s.X*0.5,
		Y: cam.Y + (1-p.Y/vp.Height)*s.Y - s.Y*0.5,
	}, nil
}

// ScreenToWorldSize maps a pixel extent to world units. Depth is always 1.
func (m *Mapper) ScreenToWorldSize(size geom.Vec2) (geom.Vec3, error) {
	if !m.valid {
		return geom.Vec3{}, ErrScaleUndefined
	}
	s, vp := m.ref.Extent, m.ref.Viewport
	return geom.Vec3{
		X: size.X / vp.Width * s.X,
		Y: size.Y / vp.Height * s.Y,
		Z: 1,
	}, nil
}
