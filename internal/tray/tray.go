// Package tray provides the system tray icon and menu using getlantern/systray.
package tray

import (
	"sync"

	"github.com/getlantern/systray"
)

// MenuItem represents a menu item
type MenuItem struct {
	ID        int
	Title     string
	Checkable bool
	Callback  func()

	checked bool
	item    *systray.MenuItem
}

// Tray manages the system tray icon and menu
type Tray struct {
	mu      sync.Mutex
	title   string
	tooltip string
	items   []*MenuItem
	quitCh  chan struct{}
	onExit  func()
}

// New creates a new system tray
func New(title, tooltip string) *Tray {
	return &Tray{
		title:   title,
		tooltip: tooltip,
		quitCh:  make(chan struct{}),
	}
}

// OnExit sets a function called after the tray loop ends.
func (t *Tray) OnExit(fn func()) {
	t.onExit = fn
}

// AddMenuItem adds a menu item to the tray
func (t *Tray) AddMenuItem(title string, callback func()) int {
	return t.add(&MenuItem{Title: title, Callback: callback})
}

// AddCheckbox adds a menu item with a check mark.
func (t *Tray) AddCheckbox(title string, checked bool, callback func()) int {
	return t.add(&MenuItem{Title: title, Checkable: true, checked: checked, Callback: callback})
}

func (t *Tray) add(mi *MenuItem) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	mi.ID = len(t.items)
	t.items = append(t.items, mi)
	return mi.ID
}

// AddSeparator adds a separator to the menu
func (t *Tray) AddSeparator() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.items = append(t.items, nil) // nil indicates separator
}

// SetItemChecked sets the checked state of a menu item. It may be called
// before Run; the state is applied when the menu is built.
func (t *Tray) SetItemChecked(id int, checked bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if id < 0 || id >= len(t.items) || t.items[id] == nil {
		return
	}
	mi := t.items[id]
	mi.checked = checked
	if mi.item == nil {
		return
	}
	if checked {
		mi.item.Check()
	} else {
		mi.item.Uncheck()
	}
}

// ItemChecked reports the checked state of a menu item.
func (t *Tray) ItemChecked(id int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if id < 0 || id >= len(t.items) || t.items[id] == nil {
		return false
	}
	return t.items[id].checked
}

// Run starts the tray event loop (blocks)
func (t *Tray) Run() {
	systray.Run(t.setupMenu, func() {
		close(t.quitCh)
		if t.onExit != nil {
			t.onExit()
		}
	})
}

// setupMenu is called when systray is ready
func (t *Tray) setupMenu() {
	systray.SetTitle(t.title)
	systray.SetTooltip(t.tooltip)
	systray.SetIcon(icon())

	t.mu.Lock()
	defer t.mu.Unlock()
	for _, mi := range t.items {
		if mi == nil {
			systray.AddSeparator()
			continue
		}
		if mi.Checkable {
			mi.item = systray.AddMenuItemCheckbox(mi.Title, "", mi.checked)
		} else {
			mi.item = systray.AddMenuItem(mi.Title, "")
		}

		if mi.Callback != nil {
			go t.listen(mi)
		}
	}
}

func (t *Tray) listen(mi *MenuItem) {
	for {
		select {
		case <-mi.item.ClickedCh:
			mi.Callback()
		case <-t.quitCh:
			return
		}
	}
}

// Stop stops the tray
func (t *Tray) Stop() {
	systray.Quit()
}

// icon returns a 16x16 32-bit ICO with a filled ring.
func icon() []byte {
	const (
		size      = 16
		pixelData = size * size * 4
		maskData  = size * 4 // 1bpp rows padded to 32 bits
		dibHeader = 40
		imageSize = dibHeader + pixelData + maskData
		offset    = 6 + 16
	)
	ico := make([]byte, offset+imageSize)

	// ICONDIR + one ICONDIRENTRY
	copy(ico[0:6], []byte{0, 0, 1, 0, 1, 0})
	ico[6], ico[7] = size, size
	ico[10], ico[12] = 1, 32
	putUint32(ico[14:], imageSize)
	putUint32(ico[18:], offset)

	// BITMAPINFOHEADER; height is doubled to cover the AND mask
	dib := ico[offset:]
	putUint32(dib[0:], dibHeader)
	putUint32(dib[4:], size)
	putUint32(dib[8:], size*2)
	dib[12], dib[14] = 1, 32
	putUint32(dib[20:], pixelData+maskData)

	// bottom-up BGRA rows
	pixels := dib[dibHeader:]
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			dx, dy := 2*x-size+1, 2*y-size+1
			d := dx*dx + dy*dy
			if d > 15*15 || d < 7*7 {
				continue
			}
			p := pixels[(y*size+x)*4:]
			p[0], p[1], p[2], p[3] = 0xE0, 0xA0, 0x30, 0xFF
		}
	}
	return ico
}

func putUint32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}
