//go:build !windows

package source

import (
	"iter"
	"log"

	"deskhook/internal/geom"
	"deskhook/internal/window"
)

// Platform is the fallback source for systems without hook support. Start
// fails; everything else reports an empty desktop.
type Platform struct {
	logger *log.Logger
}

// NewPlatform returns the source for the current OS.
func NewPlatform(logger *log.Logger) Source {
	if logger == nil {
		logger = log.Default()
	}
	return &Platform{logger: logger}
}

func (p *Platform) Start() error {
	return ErrUnsupportedPlatform
}

func (p *Platform) Stop() error { return nil }

func (p *Platform) SubscribeRawKey(KeyFunc)       {}
func (p *Platform) SubscribeRawButton(ButtonFunc) {}

func (p *Platform) EnumerateVisibleWindows() iter.Seq[window.Descriptor] {
	return func(func(window.Descriptor) bool) {}
}

func (p *Platform) CursorPosition() (geom.Point, error) {
	return geom.Point{}, ErrUnsupportedPlatform
}

func (p *Platform) Taskbar() (TaskbarInfo, error) {
	return TaskbarInfo{Edge: EdgeUnknown}, ErrUnsupportedPlatform
}
