//go:build windows

// Package osutils holds small OS-specific helpers used at startup.
package osutils

import (
	"fmt"
	"log"
	"os/exec"
	"strings"

	"golang.org/x/sys/windows"
)

// IsAdmin checks if the current process has administrative privileges
func IsAdmin() bool {
	var token windows.Token
	h, _ := windows.GetCurrentProcess()
	if err := windows.OpenProcessToken(h, windows.TOKEN_QUERY, &token); err != nil {
		return false
	}
	defer token.Close()

	var sid *windows.SID
	err := windows.AllocateAndInitializeSid(
		&windows.SECURITY_NT_AUTHORITY,
		2,
		windows.SECURITY_BUILTIN_DOMAIN_RID,
		windows.DOMAIN_ALIAS_RID_ADMINS,
		0, 0, 0, 0, 0, 0,
		&sid,
	)
	if err != nil {
		return false
	}
	defer windows.FreeSid(sid)

	member, err := token.IsMember(sid)
	return err == nil && member
}

// HookVisibilityWarning explains what low-level hooks will miss in the
// current process, or returns "" when nothing is missed.
func HookVisibilityWarning() string {
	if IsAdmin() {
		return ""
	}
	return "not elevated: input aimed at elevated windows is invisible to the hooks"
}

// EnsureFirewallRule opens the API port for inbound TCP. It is only needed
// when the API listens on a non-loopback address.
func EnsureFirewallRule(port int) error {
	ruleName := "deskhook API"

	out, err := exec.Command("netsh", "advfirewall", "firewall", "show", "rule", "name="+ruleName).CombinedOutput()
	if err == nil && strings.Contains(string(out), fmt.Sprintf("%d", port)) {
		log.Printf("Firewall: Rule '%s' already allows port %d", ruleName, port)
		return nil
	}

	if !IsAdmin() {
		return fmt.Errorf("firewall rule for port %d missing and process is not elevated", port)
	}

	ps := fmt.Sprintf(
		"Remove-NetFirewallRule -DisplayName '%s' -ErrorAction SilentlyContinue; New-NetFirewallRule -DisplayName '%s' -Direction Inbound -LocalPort %d -Protocol TCP -Action Allow -Profile Private",
		ruleName, ruleName, port,
	)
	if out, err := exec.Command("powershell", "-NoProfile", "-Command", ps).CombinedOutput(); err != nil {
		return fmt.Errorf("failed to create firewall rule: %w (Output: %s)", err, string(out))
	}
	log.Printf("Firewall: Created rule '%s' for port %d", ruleName, port)
	return nil
}
