// Package autostart registers deskhook to start on login.
package autostart

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"text/template"
)

const label = "com.deskhook.agent"

const macLaunchAgentPlist = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
    <key>Label</key>
    <string>{{.Label}}</string>
    <key>ProgramArguments</key>
    <array>
        <string>{{.ExecutablePath}}</string>
{{- range .Args}}
        <string>{{.}}</string>
{{- end}}
    </array>
    <key>RunAtLoad</key>
    <true/>
    <key>KeepAlive</key>
    <false/>
</dict>
</plist>
`

var plistTemplate = template.Must(template.New("plist").Parse(macLaunchAgentPlist))

// Enable enables auto-start on login. args are passed to the executable.
func Enable(args ...string) error {
	execPath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get executable path: %w", err)
	}

	switch runtime.GOOS {
	case "darwin":
		dir, err := launchAgentsDir()
		if err != nil {
			return err
		}
		return writePlist(dir, execPath, args)
	case "windows":
		return enableWindows(execPath, args)
	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}
}

// Disable disables auto-start on login
func Disable() error {
	switch runtime.GOOS {
	case "darwin":
		dir, err := launchAgentsDir()
		if err != nil {
			return err
		}
		return removePlist(dir)
	case "windows":
		return disableWindows()
	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}
}

// IsEnabled checks if auto-start is enabled
func IsEnabled() bool {
	switch runtime.GOOS {
	case "darwin":
		dir, err := launchAgentsDir()
		if err != nil {
			return false
		}
		_, err = os.Stat(plistPath(dir))
		return err == nil
	case "windows":
		return isEnabledWindows()
	default:
		return false
	}
}

// Sync makes the login item match want.
func Sync(want bool, args ...string) error {
	if IsEnabled() == want {
		return nil
	}
	if want {
		return Enable(args...)
	}
	return Disable()
}

func launchAgentsDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, "Library", "LaunchAgents"), nil
}

func plistPath(dir string) string {
	return filepath.Join(dir, label+".plist")
}

func writePlist(dir, execPath string, args []string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	f, err := os.Create(plistPath(dir))
	if err != nil {
		return err
	}
	defer f.Close()

	return plistTemplate.Execute(f, struct {
		Label          string
		ExecutablePath string
		Args           []string
	}{label, execPath, args})
}

func removePlist(dir string) error {
	if err := os.Remove(plistPath(dir)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
