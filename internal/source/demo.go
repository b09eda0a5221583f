package source

import (
	"context"
	"math"
	"time"

	"deskhook/internal/geom"
	"deskhook/internal/input"
	"deskhook/internal/window"
)

var demoWindows = []window.Descriptor{
	{Handle: 0x1001, Title: "Editor", Rect: geom.Rect{X: 100, Y: 80, Width: 800, Height: 600}},
	{Handle: 0x1002, Title: "Terminal", Rect: geom.Rect{X: 960, Y: 200, Width: 640, Height: 400}},
	{Handle: 0x1003, Title: "Browser", Rect: geom.Rect{X: 300, Y: 500, Width: 1000, Height: 500}},
}

var demoKeys = []input.Key{input.KeyH, input.KeyE, input.KeyL, input.KeyL, input.KeyO, input.KeySpace}

// DemoStep advances the scripted demo timeline to step n: windows drift,
// the browser comes and goes, keys are typed and the cursor circles.
func DemoStep(s *Scripted, n int) {
	ws := make([]window.Descriptor, 0, len(demoWindows))
	for i, d := range demoWindows {
		if i == 2 && (n/50)%2 == 1 {
			continue
		}
		d.Rect.X += float64((n * (i + 1)) % 200)
		ws = append(ws, d)
	}
	s.SetWindows(ws...)

	switch k := demoKeys[(n/10)%len(demoKeys)]; n % 10 {
	case 0:
		s.Key(k, true)
	case 3:
		s.Key(k, false)
	}
	switch n % 40 {
	case 0:
		s.Button(input.ButtonLeft, true)
	case 5:
		s.Button(input.ButtonLeft, false)
	}

	angle := float64(n) / 30
	s.SetCursorPosition(geom.Point{
		X: 960 + int(300*math.Cos(angle)),
		Y: 540 + int(300*math.Sin(angle)),
	})
}

// RunDemo calls DemoStep every interval until ctx is done.
func RunDemo(ctx context.Context, s *Scripted, interval time.Duration) {
	s.SetTaskbar(TaskbarInfo{Edge: EdgeBottom, Rect: geom.Rect{Y: 1040, Width: 1920, Height: 40}})
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for n := 0; ; n++ {
		DemoStep(s, n)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
