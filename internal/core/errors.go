package core

import "errors"

var (
	// ErrAlreadyEnabled is returned by Enable on an enabled core.
	ErrAlreadyEnabled = errors.New("core already enabled")
	// ErrNotEnabled is returned by Disable on a core that is not enabled.
	ErrNotEnabled = errors.New("core not enabled")
)
