package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Backend names.
const (
	BackendX11      = "x11"
	BackendHeadless = "headless"
)

// Hotkey actions.
const (
	ActionToggleLayer = "toggle_layer"
	ActionShowLayer   = "show_layer"
	ActionHideLayer   = "hide_layer"
	ActionRaiseLayer  = "raise_layer"
)

// Arrange modes.
const (
	ArrangeGrid       = "grid"
	ArrangeVertical   = "vertical"
	ArrangeHorizontal = "horizontal"
)

const (
	DefaultScreenIDOffset = 1000
	DefaultSeat           = "default"
	DefaultCommitInterval = 500 * time.Millisecond
)

// Debug scopes accepted in debug_scopes.
var DebugScopes = []string{"controller", "input", "ipc", "backend"}

// ScreenEntry pins a connector name to a fixed screen id.
type ScreenEntry struct {
	Name string `yaml:"name"`
	ID   uint32 `yaml:"id"`
}

// HeadlessOutput is a virtual output of the headless backend.
type HeadlessOutput struct {
	Name   string `yaml:"name"`
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
}

// AuditConfig configures the rotating mutation log.
type AuditConfig struct {
	Enabled   bool   `yaml:"enabled"`
	File      string `yaml:"file,omitempty"`
	MaxSizeMB int    `yaml:"max_size_mb,omitempty"`
	MaxFiles  int    `yaml:"max_files,omitempty"`
}

// LoggingConfig configures daemon logging.
type LoggingConfig struct {
	Level string      `yaml:"level"`
	Audit AuditConfig `yaml:"audit"`
}

// Hotkey binds a key combination to a layer action.
type Hotkey struct {
	Key     string `yaml:"key"`
	Action  string `yaml:"action"`
	LayerID uint32 `yaml:"layer_id"`
}

// ArrangeConfig holds defaults for layer arrange.
type ArrangeConfig struct {
	Gap  int    `yaml:"gap"`
	Mode string `yaml:"mode"`
}

// Config is the daemon configuration.
type Config struct {
	Backend             string           `yaml:"backend"`
	X11Display          string           `yaml:"x11_display,omitempty"`
	ScreenIDOffset      uint32           `yaml:"screen_id_offset"`
	Screens             []ScreenEntry    `yaml:"screens,omitempty"`
	HeadlessOutputs     []HeadlessOutput `yaml:"headless_outputs,omitempty"`
	BackgroundSurfaceID uint32           `yaml:"background_surface_id,omitempty"`
	BackgroundColor     string           `yaml:"background_color,omitempty"`
	DefaultSeat         string           `yaml:"default_seat"`
	EnableCursor        bool             `yaml:"enable_cursor"`
	CommitInterval      time.Duration    `yaml:"commit_interval"`
	DebugScopes         []string         `yaml:"debug_scopes,omitempty"`
	Logging             LoggingConfig    `yaml:"logging"`
	Hotkeys             []Hotkey         `yaml:"hotkeys,omitempty"`
	Arrange             ArrangeConfig    `yaml:"arrange"`
	SocketPath          string           `yaml:"socket_path,omitempty"`
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	return &Config{
		Backend:        BackendX11,
		ScreenIDOffset: DefaultScreenIDOffset,
		HeadlessOutputs: []HeadlessOutput{
			{Name: "HEADLESS-1", Width: 1920, Height: 1080},
		},
		DefaultSeat:    DefaultSeat,
		CommitInterval: DefaultCommitInterval,
		Logging: LoggingConfig{
			Level: "info",
		},
		Arrange: ArrangeConfig{Gap: 8, Mode: ArrangeGrid},
	}
}

// ValidationError reports an invalid config value at a YAML path.
type ValidationError struct {
	Path string
	Err  error
}

func (e *ValidationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Path != "" {
		return fmt.Sprintf("%s: %v", e.Path, e.Err)
	}
	return e.Err.Error()
}

func (e *ValidationError) Unwrap() error { return e.Err }

// Validate performs strict validation of the configuration.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendX11, BackendHeadless:
	default:
		return &ValidationError{Path: "backend", Err: fmt.Errorf("backend must be one of: x11, headless")}
	}

	names := make(map[string]struct{}, len(c.Screens))
	ids := make(map[uint32]struct{}, len(c.Screens))
	for i, s := range c.Screens {
		path := fmt.Sprintf("screens[%d]", i)
		if strings.TrimSpace(s.Name) == "" {
			return &ValidationError{Path: path + ".name", Err: fmt.Errorf("name is required")}
		}
		if _, dup := names[s.Name]; dup {
			return &ValidationError{Path: path + ".name", Err: fmt.Errorf("duplicate screen name %q", s.Name)}
		}
		if _, dup := ids[s.ID]; dup {
			return &ValidationError{Path: path + ".id", Err: fmt.Errorf("duplicate screen id %d", s.ID)}
		}
		if s.ID == 0xFFFFFFFF {
			return &ValidationError{Path: path + ".id", Err: fmt.Errorf("id must not be the invalid id")}
		}
		names[s.Name] = struct{}{}
		ids[s.ID] = struct{}{}
	}

	if c.Backend == BackendHeadless && len(c.HeadlessOutputs) == 0 {
		return &ValidationError{Path: "headless_outputs", Err: fmt.Errorf("headless backend needs at least one output")}
	}
	for i, o := range c.HeadlessOutputs {
		if o.Width <= 0 || o.Height <= 0 {
			return &ValidationError{Path: fmt.Sprintf("headless_outputs[%d]", i), Err: fmt.Errorf("width and height must be > 0")}
		}
	}

	if c.BackgroundColor != "" {
		if _, err := ParseColor(c.BackgroundColor); err != nil {
			return &ValidationError{Path: "background_color", Err: err}
		}
	}
	if strings.TrimSpace(c.DefaultSeat) == "" {
		return &ValidationError{Path: "default_seat", Err: fmt.Errorf("default_seat is required")}
	}
	if c.CommitInterval <= 0 {
		return &ValidationError{Path: "commit_interval", Err: fmt.Errorf("commit_interval must be > 0")}
	}
	for _, scope := range c.DebugScopes {
		if !knownScope(scope) {
			return &ValidationError{Path: "debug_scopes", Err: fmt.Errorf("unknown scope %q (want one of: %s)", scope, strings.Join(DebugScopes, ", "))}
		}
	}
	if _, err := ParseLevel(c.Logging.Level); err != nil {
		return &ValidationError{Path: "logging.level", Err: err}
	}
	if c.Logging.Audit.MaxSizeMB < 0 || c.Logging.Audit.MaxFiles < 0 {
		return &ValidationError{Path: "logging.audit", Err: fmt.Errorf("max_size_mb and max_files must be >= 0")}
	}

	for i, hk := range c.Hotkeys {
		path := fmt.Sprintf("hotkeys[%d]", i)
		if strings.TrimSpace(hk.Key) == "" {
			return &ValidationError{Path: path + ".key", Err: fmt.Errorf("key is required")}
		}
		switch hk.Action {
		case ActionToggleLayer, ActionShowLayer, ActionHideLayer, ActionRaiseLayer:
		default:
			return &ValidationError{Path: path + ".action", Err: fmt.Errorf("action must be one of: toggle_layer, show_layer, hide_layer, raise_layer")}
		}
	}

	if c.Arrange.Gap < 0 {
		return &ValidationError{Path: "arrange.gap", Err: fmt.Errorf("gap must be >= 0")}
	}
	switch c.Arrange.Mode {
	case ArrangeGrid, ArrangeVertical, ArrangeHorizontal:
	default:
		return &ValidationError{Path: "arrange.mode", Err: fmt.Errorf("mode must be one of: grid, vertical, horizontal")}
	}
	return nil
}

func knownScope(s string) bool {
	for _, k := range DebugScopes {
		if k == s {
			return true
		}
	}
	return false
}

// DebugEnabled reports whether debug logging is on for scope.
func (c *Config) DebugEnabled(scope string) bool {
	if c == nil {
		return false
	}
	for _, s := range c.DebugScopes {
		if s == scope {
			return true
		}
	}
	return false
}

// ScreenFor resolves the screen id of an output: a configured name match
// wins, otherwise the output id plus the offset.
func (c *Config) ScreenFor(outputID uint32, name string) uint32 {
	for _, s := range c.Screens {
		if s.Name == name {
			return s.ID
		}
	}
	return outputID + c.ScreenIDOffset
}

// ParseColor parses a 0xAARRGGBB colour.
func ParseColor(s string) (uint32, error) {
	hex, ok := strings.CutPrefix(strings.ToLower(s), "0x")
	if !ok || len(hex) != 8 {
		return 0, fmt.Errorf("colour %q must look like 0xAARRGGBB", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("colour %q: %w", s, err)
	}
	return uint32(v), nil
}

// ParseLevel maps a logging level name to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("level must be one of: debug, info, warn, error")
}

// GetAuditConfig returns the audit configuration with defaults applied.
func (c *Config) GetAuditConfig() AuditConfig {
	if c == nil {
		return AuditConfig{}
	}
	cfg := c.Logging.Audit
	if cfg.File == "" {
		home, err := os.UserHomeDir()
		if err != nil || home == "" {
			home = os.Getenv("HOME")
		}
		if home == "" {
			home = "."
		}
		cfg.File = filepath.Join(home, ".local/share/layerctl/audit.log")
	}
	if cfg.MaxSizeMB == 0 {
		cfg.MaxSizeMB = 10
	}
	if cfg.MaxFiles == 0 {
		cfg.MaxFiles = 3
	}
	return cfg
}

// Save writes the configuration to the standard location.
func (c *Config) Save() error {
	path, err := DefaultConfigPath()
	if err != nil {
		return err
	}
	return c.SaveToPath(path)
}

// SaveToPath validates and writes the configuration to path.
//
// Comments in an existing file are not preserved.
func (c *Config) SaveToPath(path string) error {
	if err := c.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
