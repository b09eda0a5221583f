// Package config provides configuration management for deskhook.
package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"sync"
)

// Config represents the application configuration
type Config struct {
	// Modules toggles the engines driven by the core
	Modules ModulesConfig `json:"modules" toml:"modules"`

	// Window contains tick and viewport settings
	Window WindowConfig `json:"window" toml:"window"`

	// Camera describes the orthographic render camera used for mapping
	Camera CameraConfig `json:"camera" toml:"camera"`

	// API contains the HTTP/WebSocket server settings
	API APIConfig `json:"api" toml:"api"`

	// Script contains the Lua bindings settings
	Script ScriptConfig `json:"script" toml:"script"`

	// General contains general application settings
	General GeneralConfig `json:"general" toml:"general"`
}

// ModulesConfig selects which engines run each tick.
type ModulesConfig struct {
	Inputs   bool `json:"inputs" toml:"inputs"`
	Cursor   bool `json:"cursor" toml:"cursor"`
	Windows  bool `json:"windows" toml:"windows"`
	Overlays bool `json:"overlays" toml:"overlays"`
}

// WindowConfig contains tick and viewport settings
type WindowConfig struct {
	// TickRate is the number of ticks per second
	TickRate int `json:"tick_rate" toml:"tick_rate"`

	// Viewport is the render surface size in pixels
	Viewport ViewportConfig `json:"viewport" toml:"viewport"`
}

type ViewportConfig struct {
	Width  int `json:"width" toml:"width"`
	Height int `json:"height" toml:"height"`
}

// CameraConfig describes the orthographic camera
type CameraConfig struct {
	// OrthographicSize is half the visible world height
	OrthographicSize float64 `json:"orthographic_size" toml:"orthographic_size"`

	Position PositionConfig `json:"position" toml:"position"`
}

type PositionConfig struct {
	X float64 `json:"x" toml:"x"`
	Y float64 `json:"y" toml:"y"`
	Z float64 `json:"z" toml:"z"`
}

// APIConfig contains the HTTP/WebSocket server settings
type APIConfig struct {
	// Enabled starts the API server in service mode
	Enabled bool `json:"enabled" toml:"enabled"`

	// Addr is the listen host (default: 127.0.0.1)
	Addr string `json:"addr,omitempty" toml:"addr,omitempty"`

	// Port is the port for the API server (default: 18090)
	Port int `json:"port" toml:"port"`

	// Token is an optional authentication token for API requests
	Token string `json:"token,omitempty" toml:"token,omitempty"`
}

// ScriptConfig contains the Lua bindings settings
type ScriptConfig struct {
	// Path to a Lua file loaded at startup (optional)
	Path string `json:"path,omitempty" toml:"path,omitempty"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	// StartOnBoot determines if app starts on system boot
	StartOnBoot bool `json:"start_on_boot" toml:"start_on_boot"`

	// ShowTray shows the system tray icon in service mode
	ShowTray bool `json:"show_tray" toml:"show_tray"`

	// Debug enables per-event logging
	Debug bool `json:"debug" toml:"debug"`

	// EscapeHotkey pauses input handling (e.g. "Ctrl+Alt+Shift+Esc")
	EscapeHotkey string `json:"escape_hotkey,omitempty" toml:"escape_hotkey,omitempty"`
}

// DefaultConfig returns a new Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Modules: ModulesConfig{
			Inputs:   true,
			Cursor:   true,
			Windows:  true,
			Overlays: true,
		},
		Window: WindowConfig{
			TickRate: 60,
			Viewport: ViewportConfig{Width: 1920, Height: 1080},
		},
		Camera: CameraConfig{
			OrthographicSize: 5,
			Position:         PositionConfig{Z: -10},
		},
		API: APIConfig{
			Enabled: true,
			Addr:    "127.0.0.1",
			Port:    18090,
		},
		General: GeneralConfig{
			ShowTray:     true,
			EscapeHotkey: "Ctrl+Alt+Shift+Esc",
		},
	}
}

// Validate checks values that would break the engines.
func (c *Config) Validate() error {
	if c.Window.TickRate <= 0 || c.Window.TickRate > 1000 {
		return fmt.Errorf("window.tick_rate must be in 1..1000, got %d", c.Window.TickRate)
	}
	if c.Window.Viewport.Width < 0 || c.Window.Viewport.Height < 0 {
		return fmt.Errorf("window.viewport must not be negative, got %dx%d",
			c.Window.Viewport.Width, c.Window.Viewport.Height)
	}
	if c.Camera.OrthographicSize <= 0 {
		return fmt.Errorf("camera.orthographic_size must be positive, got %g", c.Camera.OrthographicSize)
	}
	if c.API.Port < 0 || c.API.Port > 65535 {
		return fmt.Errorf("api.port out of range: %d", c.API.Port)
	}
	return nil
}

// Manager handles loading and saving configuration
type Manager struct {
	mu         sync.Mutex
	configPath string
	config     *Config
	onChanged  []func()
}

// NewManager creates a configuration manager for the per-user config file
func NewManager() (*Manager, error) {
	configPath, err := getConfigPath()
	if err != nil {
		return nil, err
	}
	return NewManagerAt(configPath)
}

// NewManagerAt creates a configuration manager for an explicit path. The
// extension selects the format.
func NewManagerAt(path string) (*Manager, error) {
	if _, err := formatOf(path); err != nil {
		return nil, err
	}
	return &Manager{
		configPath: path,
		config:     DefaultConfig(),
	}, nil
}

// getConfigPath returns the path to the configuration file
func getConfigPath() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, "Library", "Application Support", "deskhook")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			appData = filepath.Join(home, "AppData", "Roaming")
		}
		configDir = filepath.Join(appData, "deskhook")
	default:
		configDir = os.Getenv("XDG_CONFIG_HOME")
		if configDir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			configDir = filepath.Join(home, ".config")
		}
		configDir = filepath.Join(configDir, "deskhook")
	}

	// Create directory if it doesn't exist
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return "", err
	}

	return filepath.Join(configDir, "config.json"), nil
}

// Path returns the file the manager reads and writes.
func (m *Manager) Path() string {
	return m.configPath
}

// Load reads the configuration from disk. A missing file leaves the current
// configuration untouched.
func (m *Manager) Load() error {
	data, err := os.ReadFile(m.configPath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading config file %s: %w", m.configPath, err)
	}

	cfg := DefaultConfig()
	if err := decode(m.configPath, data, cfg); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config %s: %w", m.configPath, err)
	}

	m.mu.Lock()
	m.config = cfg
	m.mu.Unlock()
	m.notify()
	return nil
}

// Save writes the configuration to disk
func (m *Manager) Save() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := encode(m.configPath, m.config)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(m.configPath), 0755); err != nil {
		return err
	}
	log.Printf("Config: Saving configuration to %s (%d bytes)", m.configPath, len(data))
	return os.WriteFile(m.configPath, data, 0644)
}

// Get returns a copy of the current configuration
func (m *Manager) Get() *Config {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *m.config
	return &c
}

// Set validates and replaces the configuration
func (m *Manager) Set(config *Config) error {
	if err := config.Validate(); err != nil {
		return err
	}
	c := *config
	m.mu.Lock()
	m.config = &c
	m.mu.Unlock()
	m.notify()
	return nil
}

// RegisterChangeCallback registers a function to be called when config changes
func (m *Manager) RegisterChangeCallback(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onChanged = append(m.onChanged, fn)
}

func (m *Manager) notify() {
	m.mu.Lock()
	callbacks := m.onChanged
	m.mu.Unlock()
	for _, fn := range callbacks {
		fn()
	}
}
