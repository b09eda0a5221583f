package overlay

import (
	"bytes"
	"iter"
	"log"
	"math"
	"slices"
	"testing"

	"deskhook/internal/coords"
	"deskhook/internal/geom"
	"deskhook/internal/window"
)

type windows []window.Descriptor

func (w *windows) EnumerateVisibleWindows() iter.Seq[window.Descriptor] {
	return slices.Values(*w)
}

func setup(t *testing.T) (*windows, *window.Registry, *coords.Mapper, *Tracker) {
	t.Helper()
	quiet := log.New(&bytes.Buffer{}, "", 0)
	src := &windows{}
	reg := window.NewRegistry(src, window.WithLogger(quiet))
	m := coords.NewMapper()
	if err := m.RecalculateScale(geom.Size{Width: 1920, Height: 1080}, coords.NewOrthographic(5, geom.Vec3{})); err != nil {
		t.Fatal(err)
	}
	tr := NewTracker(m, quiet)
	tr.Attach(reg)
	return src, reg, m, tr
}

func TestPlacementFollowsWindow(t *testing.T) {
	src, reg, m, tr := setup(t)
	*src = windows{{Handle: 1, Title: "a", Rect: geom.Rect{X: 0, Y: 0, Width: 960, Height: 540}}}
	reg.Poll()
	tr.Update()

	list := tr.List()
	if len(list) != 1 {
		t.Fatalf("Expected 1 placement, got %d", len(list))
	}
	s, _ := m.Scale()
	p := list[0]
	if p.Position != (geom.Vec2{X: -s.X / 2, Y: s.Y / 2}) {
		t.Errorf("Expected top-left world corner, got %s", p.Position)
	}
	if p.Scale != (geom.Vec3{X: 960.0 / 1920 * s.X, Y: 540.0 / 1080 * s.Y, Z: 1}) {
		t.Errorf("Expected half viewport scale, got %s", p.Scale)
	}
	if p.Hidden() {
		t.Error("Expected placement to be visible")
	}
}

func TestFullWidthAndEmptyWindowsHidden(t *testing.T) {
	src, reg, _, tr := setup(t)
	*src = windows{
		{Handle: 1, Title: "max", Rect: geom.Rect{Width: 1920, Height: 1040}},
		{Handle: 2, Title: "empty", Rect: geom.Rect{X: 10, Y: 10, Height: 100}},
	}
	reg.Poll()
	tr.Update()

	for _, p := range tr.List() {
		if !p.Hidden() {
			t.Errorf("Expected %q to be hidden, got scale %s", p.Title, p.Scale)
		}
	}
}

func TestChangedAndRemovedCallbacks(t *testing.T) {
	src, reg, _, tr := setup(t)
	changed, removed := 0, 0
	tr.AddOnChanged(func(Placement) { changed++ })
	tr.AddOnRemoved(func(Placement) { removed++ })

	*src = windows{{Handle: 1, Title: "a", Rect: geom.Rect{Width: 100, Height: 100}}}
	reg.Poll()
	tr.Update()
	tr.Update()
	if changed != 1 {
		t.Errorf("Expected 1 change for a still window, got %d", changed)
	}

	(*src)[0].Rect.X = 50
	reg.Poll()
	tr.Update()
	if changed != 2 {
		t.Errorf("Expected a change after moving, got %d", changed)
	}

	*src = nil
	reg.Poll()
	if removed != 1 || tr.Len() != 0 {
		t.Errorf("Expected placement removed, got removed=%d len=%d", removed, tr.Len())
	}
}

func TestCameraMoveShiftsPlacements(t *testing.T) {
	quiet := log.New(&bytes.Buffer{}, "", 0)
	src := &windows{{Handle: 1, Title: "a", Rect: geom.Rect{X: 960, Y: 540, Width: 100, Height: 100}}}
	reg := window.NewRegistry(src, window.WithLogger(quiet))
	cam := coords.NewOrthographic(5, geom.Vec3{})
	m := coords.NewMapper()
	m.RecalculateScale(geom.Size{Width: 1920, Height: 1080}, cam)
	tr := NewTracker(m, quiet)
	tr.Attach(reg)
	reg.Poll()
	tr.Update()
	before := tr.List()[0].Position

	cam.SetPosition(geom.Vec3{X: 2, Y: 1})
	tr.Update()
	after := tr.List()[0].Position

	if math.Abs(after.X-before.X-2) > 1e-9 || math.Abs(after.Y-before.Y-1) > 1e-9 {
		t.Errorf("Expected placement to shift with camera, got %s then %s", before, after)
	}
}

func TestAttachAdoptsLiveWindows(t *testing.T) {
	quiet := log.New(&bytes.Buffer{}, "", 0)
	src := &windows{{Handle: 1, Title: "a"}, {Handle: 2, Title: "b"}}
	reg := window.NewRegistry(src, window.WithLogger(quiet))
	reg.Poll()

	tr := NewTracker(coords.NewMapper(), quiet)
	tr.Attach(reg)
	if tr.Len() != 2 {
		t.Errorf("Expected 2 adopted windows, got %d", tr.Len())
	}

	tr.Detach()
	if tr.Len() != 0 {
		t.Errorf("Expected Detach to drop placements, got %d", tr.Len())
	}
	reg.Poll()
	*src = nil
	reg.Poll()
	if tr.Len() != 0 {
		t.Error("Expected a detached tracker to ignore the registry")
	}
}

func TestUpdateWithoutScale(t *testing.T) {
	var buf bytes.Buffer
	src := &windows{{Handle: 1, Title: "a", Rect: geom.Rect{Width: 10, Height: 10}}}
	reg := window.NewRegistry(src, window.WithLogger(log.New(&buf, "", 0)))
	tr := NewTracker(coords.NewMapper(), log.New(&buf, "", 0))
	tr.Attach(reg)
	reg.Poll()

	tr.Update()
	tr.Update()
	if n := bytes.Count(buf.Bytes(), []byte("skipping update")); n != 1 {
		t.Errorf("Expected one warning, got %d", n)
	}
}
