//go:build windows

package source

import (
	"fmt"
	"iter"
	"log"
	"runtime"
	"slices"
	"sync"
	"sync/atomic"
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"

	"deskhook/internal/geom"
	"deskhook/internal/input"
	"deskhook/internal/window"
)

var (
	user32                  = windows.NewLazySystemDLL("user32.dll")
	procSetWindowsHookEx    = user32.NewProc("SetWindowsHookExW")
	procCallNextHookEx      = user32.NewProc("CallNextHookEx")
	procUnhookWindowsHookEx = user32.NewProc("UnhookWindowsHookEx")
	procGetMessage          = user32.NewProc("GetMessageW")
	procTranslateMessage    = user32.NewProc("TranslateMessage")
	procDispatchMessage     = user32.NewProc("DispatchMessageW")
	procPostThreadMessage   = user32.NewProc("PostThreadMessageW")
	procGetWindowTextLength = user32.NewProc("GetWindowTextLengthW")
	procGetWindowRect       = user32.NewProc("GetWindowRect")
	procGetCursorPos        = user32.NewProc("GetCursorPos")
	procSetCursorPos        = user32.NewProc("SetCursorPos")
	kernel32                = windows.NewLazySystemDLL("kernel32.dll")
	procGetModuleHandle     = kernel32.NewProc("GetModuleHandleW")
	shell32                 = windows.NewLazySystemDLL("shell32.dll")
	procSHAppBarMessage     = shell32.NewProc("SHAppBarMessage")
)

const (
	WH_KEYBOARD_LL = 13
	WH_MOUSE_LL    = 14
	WM_QUIT        = 0x0012
	WM_KEYDOWN     = 0x0100
	WM_KEYUP       = 0x0101
	WM_SYSKEYDOWN  = 0x0104
	WM_SYSKEYUP    = 0x0105

	WM_LBUTTONDOWN = 0x0201
	WM_LBUTTONUP   = 0x0202
	WM_RBUTTONDOWN = 0x0204
	WM_RBUTTONUP   = 0x0205
	WM_MBUTTONDOWN = 0x0207
	WM_MBUTTONUP   = 0x0208
	WM_XBUTTONDOWN = 0x020B
	WM_XBUTTONUP   = 0x020C

	ABM_GETTASKBARPOS = 5
)

type KBDLLHOOKSTRUCT struct {
	VkCode      uint32
	ScanCode    uint32
	Flags       uint32
	Time        uint32
	DwExtraInfo uintptr
}

type MSLLHOOKSTRUCT struct {
	Point       struct{ X, Y int32 }
	MouseData   uint32
	Flags       uint32
	Time        uint32
	DwExtraInfo uintptr
}

type RECT struct {
	Left, Top, Right, Bottom int32
}

type APPBARDATA struct {
	CbSize           uint32
	HWnd             uintptr
	UCallbackMessage uint32
	UEdge            uint32
	Rc               RECT
	LParam           uintptr
}

// Hook procedures are process-wide; syscall callbacks are a finite resource,
// so they are created once and route to the running Platform.
var (
	active       atomic.Pointer[Platform]
	keyboardProc = syscall.NewCallback(keyboardHook)
	mouseProc    = syscall.NewCallback(mouseHook)
	enumProc     = syscall.NewCallback(enumWindow)

	enumMu  sync.Mutex
	enumBuf []window.Descriptor
)

// Platform is the Windows source: low-level keyboard and mouse hooks plus
// EnumWindows based enumeration.
type Platform struct {
	mu       sync.Mutex
	running  bool
	threadID uint32
	done     chan struct{}

	keys    subscribers[KeyFunc]
	buttons subscribers[ButtonFunc]

	logger *log.Logger
	// virtual-key codes already reported as unknown
	unknown sync.Map
}

// NewPlatform returns the source for the current OS.
func NewPlatform(logger *log.Logger) Source {
	if logger == nil {
		logger = log.Default()
	}
	return &Platform{logger: logger}
}

// Start installs the hooks on a dedicated, locked OS thread that runs a
// message loop.
func (p *Platform) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return ErrAlreadyStarted
	}
	if !active.CompareAndSwap(nil, p) {
		return fmt.Errorf("another hook source is already active")
	}

	ready := make(chan error, 1)
	p.done = make(chan struct{})
	go p.hookThread(ready)

	if err := <-ready; err != nil {
		active.Store(nil)
		return err
	}
	p.running = true
	return nil
}

// hookThread owns the hooks; they must be installed and removed on the
// thread that pumps messages.
func (p *Platform) hookThread(ready chan<- error) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(p.done)

	p.threadID = windows.GetCurrentThreadId()
	hMod, _, _ := procGetModuleHandle.Call(0)

	keyboard, _, err := procSetWindowsHookEx.Call(WH_KEYBOARD_LL, keyboardProc, hMod, 0)
	if keyboard == 0 {
		ready <- fmt.Errorf("setting keyboard hook: %v", err)
		return
	}
	defer procUnhookWindowsHookEx.Call(keyboard)

	mouse, _, err := procSetWindowsHookEx.Call(WH_MOUSE_LL, mouseProc, hMod, 0)
	if mouse == 0 {
		ready <- fmt.Errorf("setting mouse hook: %v", err)
		return
	}
	defer procUnhookWindowsHookEx.Call(mouse)

	p.logger.Println("Source: Windows low-level hooks started.")
	ready <- nil

	var msg struct {
		Hwnd    syscall.Handle
		Message uint32
		Wparam  uintptr
		Lparam  uintptr
		Time    uint32
		Pt      struct{ X, Y int32 }
	}
	for {
		ret, _, _ := procGetMessage.Call(uintptr(unsafe.Pointer(&msg)), 0, 0, 0)
		if int32(ret) <= 0 {
			break
		}
		procTranslateMessage.Call(uintptr(unsafe.Pointer(&msg)))
		procDispatchMessage.Call(uintptr(unsafe.Pointer(&msg)))
	}
	p.logger.Println("Source: Windows low-level hooks stopped.")
}

// Stop ends the message loop and removes the hooks.
func (p *Platform) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return nil
	}
	p.running = false
	active.CompareAndSwap(p, nil)

	ret, _, err := procPostThreadMessage.Call(uintptr(p.threadID), WM_QUIT, 0, 0)
	if ret == 0 {
		return fmt.Errorf("stopping hook thread: %v", err)
	}
	<-p.done
	return nil
}

func (p *Platform) SubscribeRawKey(fn KeyFunc)       { p.keys.add(fn) }
func (p *Platform) SubscribeRawButton(fn ButtonFunc) { p.buttons.add(fn) }

func keyboardHook(nCode int, wParam uintptr, lParam uintptr) uintptr {
	if nCode >= 0 {
		if p := active.Load(); p != nil {
			kb := (*KBDLLHOOKSTRUCT)(unsafe.Pointer(lParam))
			switch wParam {
			case WM_KEYDOWN, WM_SYSKEYDOWN:
				p.deliverKey(kb.VkCode, true)
			case WM_KEYUP, WM_SYSKEYUP:
				p.deliverKey(kb.VkCode, false)
			}
		}
	}
	ret, _, _ := procCallNextHookEx.Call(0, uintptr(nCode), wParam, lParam)
	return ret
}

func (p *Platform) deliverKey(vk uint32, pressed bool) {
	key, ok := keyFromVK(vk)
	if !ok {
		if _, seen := p.unknown.LoadOrStore(vk, struct{}{}); !seen {
			p.logger.Printf("Source: ignoring unmapped virtual key 0x%02X", vk)
		}
		return
	}
	for _, fn := range p.keys.snapshot() {
		fn(key, pressed)
	}
}

func mouseHook(nCode int, wParam uintptr, lParam uintptr) uintptr {
	if nCode >= 0 {
		if p := active.Load(); p != nil {
			ms := (*MSLLHOOKSTRUCT)(unsafe.Pointer(lParam))
			if b, pressed, ok := buttonFromMessage(wParam, ms.MouseData); ok {
				for _, fn := range p.buttons.snapshot() {
					fn(b, pressed)
				}
			}
		}
	}
	ret, _, _ := procCallNextHookEx.Call(0, uintptr(nCode), wParam, lParam)
	return ret
}

func buttonFromMessage(msg uintptr, mouseData uint32) (input.Button, bool, bool) {
	switch msg {
	case WM_LBUTTONDOWN:
		return input.ButtonLeft, true, true
	case WM_LBUTTONUP:
		return input.ButtonLeft, false, true
	case WM_RBUTTONDOWN:
		return input.ButtonRight, true, true
	case WM_RBUTTONUP:
		return input.ButtonRight, false, true
	case WM_MBUTTONDOWN:
		return input.ButtonMiddle, true, true
	case WM_MBUTTONUP:
		return input.ButtonMiddle, false, true
	case WM_XBUTTONDOWN, WM_XBUTTONUP:
		pressed := msg == WM_XBUTTONDOWN
		switch mouseData >> 16 {
		case 1:
			return input.ButtonBack, pressed, true
		case 2:
			return input.ButtonForward, pressed, true
		}
	}
	return 0, false, false
}

// EnumerateVisibleWindows returns a sequence that runs one EnumWindows pass
// each time it is ranged over, skipping the shell window, invisible or
// cloaked windows and windows without a title. EnumWindows is
// callback-driven, so a pass is collected before the first yield and
// breaking out early does not cut the pass short. A failed call yields
// nothing.
func (p *Platform) EnumerateVisibleWindows() iter.Seq[window.Descriptor] {
	return func(yield func(window.Descriptor) bool) {
		enumMu.Lock()
		enumBuf = enumBuf[:0]
		err := windows.EnumWindows(enumProc, nil)
		snapshot := slices.Clone(enumBuf)
		enumMu.Unlock()

		if err != nil {
			p.logger.Printf("Source: EnumWindows failed: %v", err)
			return
		}
		for _, d := range snapshot {
			if !yield(d) {
				return
			}
		}
	}
}

func enumWindow(hwnd windows.HWND, _ uintptr) uintptr {
	if hwnd == windows.GetShellWindow() || !windows.IsWindowVisible(hwnd) {
		return 1
	}
	length, _, _ := procGetWindowTextLength.Call(uintptr(hwnd))
	if length == 0 {
		return 1
	}
	var cloaked uint32
	if err := windows.DwmGetWindowAttribute(hwnd, windows.DWMWA_CLOAKED, unsafe.Pointer(&cloaked), uint32(unsafe.Sizeof(cloaked))); err == nil && cloaked != 0 {
		return 1
	}

	buf := make([]uint16, length+1)
	n, _ := windows.GetWindowText(hwnd, &buf[0], int32(len(buf)))
	if n == 0 {
		return 1
	}

	var rc RECT
	procGetWindowRect.Call(uintptr(hwnd), uintptr(unsafe.Pointer(&rc)))

	enumBuf = append(enumBuf, window.Descriptor{
		Handle: window.Handle(hwnd),
		Title:  windows.UTF16ToString(buf[:n]),
		Rect:   geom.RectFromEdges(rc.Left, rc.Top, rc.Right, rc.Bottom),
	})
	return 1
}

func (p *Platform) CursorPosition() (geom.Point, error) {
	var pt struct{ X, Y int32 }
	ret, _, err := procGetCursorPos.Call(uintptr(unsafe.Pointer(&pt)))
	if ret == 0 {
		return geom.Point{}, fmt.Errorf("GetCursorPos: %v", err)
	}
	return geom.Point{X: int(pt.X), Y: int(pt.Y)}, nil
}

func (p *Platform) SetCursorPosition(pt geom.Point) error {
	ret, _, err := procSetCursorPos.Call(uintptr(int32(pt.X)), uintptr(int32(pt.Y)))
	if ret == 0 {
		return fmt.Errorf("SetCursorPos: %v", err)
	}
	return nil
}

func (p *Platform) Taskbar() (TaskbarInfo, error) {
	abd := APPBARDATA{}
	abd.CbSize = uint32(unsafe.Sizeof(abd))
	ret, _, _ := procSHAppBarMessage.Call(ABM_GETTASKBARPOS, uintptr(unsafe.Pointer(&abd)))
	if ret == 0 {
		return TaskbarInfo{Edge: EdgeUnknown}, nil
	}
	return TaskbarInfo{
		Edge: Edge(abd.UEdge),
		Rect: geom.RectFromEdges(abd.Rc.Left, abd.Rc.Top, abd.Rc.Right, abd.Rc.Bottom),
	}, nil
}
