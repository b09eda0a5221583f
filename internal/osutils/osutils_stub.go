//go:build !windows

// Package osutils holds small OS-specific helpers used at startup.
package osutils

import (
	"os"
	"runtime"
)

// IsAdmin reports whether the process runs as root.
func IsAdmin() bool {
	return os.Geteuid() == 0
}

// HookVisibilityWarning explains what the platform source cannot observe.
func HookVisibilityWarning() string {
	return "no desktop hooks on " + runtime.GOOS + ": use -demo for a scripted desktop"
}

// EnsureFirewallRule is a no-op outside Windows.
func EnsureFirewallRule(port int) error {
	return nil
}
