package source

import "errors"

var (
	// ErrUnsupportedPlatform is returned by the platform source where no OS
	// integration exists.
	ErrUnsupportedPlatform = errors.New("desktop hooks are not supported on this platform")
	// ErrAlreadyStarted is returned by Start on a running source.
	ErrAlreadyStarted = errors.New("source already started")
)
