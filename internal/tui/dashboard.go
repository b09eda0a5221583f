// Package tui renders a live terminal view of a running core.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"deskhook/internal/core"
	"deskhook/internal/protocol"

	"github.com/gdamore/tcell/v2"
)

var (
	styleDefault = tcell.StyleDefault
	styleHeader  = tcell.StyleDefault.Bold(true).Foreground(tcell.ColorAqua)
	styleDim     = tcell.StyleDefault.Foreground(tcell.ColorGray)
	stylePaused  = tcell.StyleDefault.Bold(true).Foreground(tcell.ColorYellow)
)

// Dashboard ticks a core and draws its snapshot after every frame.
type Dashboard struct {
	screen tcell.Screen
	core   *core.Core
}

// New creates a dashboard on screen. The screen must already be
// initialized; Run finalizes it.
func New(screen tcell.Screen, c *core.Core) *Dashboard {
	return &Dashboard{screen: screen, core: c}
}

// NewTerminal opens the controlling terminal.
func NewTerminal(c *core.Core) (*Dashboard, error) {
	screen, err := tcell.NewScreen()
	if err != nil {
		return nil, fmt.Errorf("tui: %w", err)
	}
	if err := screen.Init(); err != nil {
		return nil, fmt.Errorf("tui: %w", err)
	}
	return New(screen, c), nil
}

// Run drives the core at its configured rate until ctx is done or the user
// quits with q, Esc or Ctrl+C. p toggles the paused state.
func (d *Dashboard) Run(ctx context.Context) error {
	defer d.screen.Fini()

	rate := d.core.Config().Window.TickRate
	ticker := time.NewTicker(time.Second / time.Duration(rate))
	defer ticker.Stop()

	events := make(chan tcell.Event, 100)
	quit := make(chan struct{})
	defer close(quit)
	go func() {
		for {
			ev := d.screen.PollEvent()
			if ev == nil {
				return
			}
			select {
			case events <- ev:
			case <-quit:
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev := <-events:
			if !d.handle(ev) {
				return nil
			}

		case <-ticker.C:
			d.core.Tick()
			d.Draw(d.core.Snapshot())
		}
	}
}

// handle reports false when the dashboard should close.
func (d *Dashboard) handle(ev tcell.Event) bool {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		switch {
		case ev.Key() == tcell.KeyEscape, ev.Key() == tcell.KeyCtrlC:
			return false
		case ev.Key() == tcell.KeyRune && ev.Rune() == 'q':
			return false
		case ev.Key() == tcell.KeyRune && ev.Rune() == 'p':
			d.core.SetPaused(!d.core.Paused())
		}
	case *tcell.EventResize:
		d.screen.Sync()
	}
	return true
}

// Draw renders snap. A nil snapshot draws the header only.
func (d *Dashboard) Draw(snap *protocol.Snapshot) {
	d.screen.Clear()
	width, height := d.screen.Size()

	if snap == nil {
		d.text(0, 0, styleHeader, "deskhook: waiting for first tick")
		d.screen.Show()
		return
	}

	state := "running"
	style := styleHeader
	switch {
	case !snap.Enabled:
		state = "disabled"
		style = styleDim
	case snap.Paused:
		state = "PAUSED"
		style = stylePaused
	}
	d.text(0, 0, style, fmt.Sprintf("deskhook  frame %d  %s  dropped %d", snap.Frame, state, snap.DroppedEvents))

	d.text(0, 2, styleDefault, "keys:    "+joinOr(snap.HeldKeys, "-"))
	d.text(0, 3, styleDefault, "buttons: "+joinOr(snap.HeldButtons, "-"))
	d.text(0, 4, styleDefault, fmt.Sprintf("cursor:  %d,%d (%+d,%+d)",
		snap.Cursor.X, snap.Cursor.Y, snap.CursorDelta.X, snap.CursorDelta.Y))
	scale := "undefined"
	if snap.Scale != nil {
		scale = snap.Scale.String()
	}
	d.text(0, 5, styleDefault, "scale:   "+scale)
	if snap.Taskbar != nil {
		d.text(0, 6, styleDefault, "taskbar: "+snap.Taskbar.String())
	}

	d.text(0, 8, styleHeader, fmt.Sprintf("%-12s %-32s %-24s %s", "HANDLE", "TITLE", "RECT", "OVERLAY"))
	overlays := make(map[string]string, len(snap.Overlays))
	for _, o := range snap.Overlays {
		place := "hidden"
		if !o.Hidden() {
			place = fmt.Sprintf("%s x %s", o.Position, o.Scale)
		}
		overlays[o.Handle.String()] = place
	}

	row := 9
	for _, w := range snap.Windows {
		if row >= height-1 {
			d.text(0, row, styleDim, fmt.Sprintf("... %d more", len(snap.Windows)-(row-9)))
			break
		}
		handle := w.Handle.String()
		place, ok := overlays[handle]
		if !ok {
			place = "-"
		}
		d.text(0, row, styleDefault, fmt.Sprintf("%-12s %-32s %-24s %s", handle, truncate(w.Title, 32), w.Rect, place))
		row++
	}

	d.text(0, height-1, styleDim, truncate("q quit  p pause", width))
	d.screen.Show()
}

func (d *Dashboard) text(x, y int, style tcell.Style, s string) {
	width, _ := d.screen.Size()
	for _, r := range s {
		if x >= width {
			return
		}
		d.screen.SetContent(x, y, r, nil, style)
		x++
	}
}

func joinOr(items []string, empty string) string {
	if len(items) == 0 {
		return empty
	}
	return strings.Join(items, " ")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "~"
}
