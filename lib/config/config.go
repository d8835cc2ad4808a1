// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvironmentVariable names the config file consulted by Load.
const EnvironmentVariable = "LOOM_CONFIG"

// Config is the complete loom configuration.
type Config struct {
	// Paths locates session sockets and resurrection data.
	Paths PathsConfig `yaml:"paths"`

	// Client tunes the attaching terminal client.
	Client ClientConfig `yaml:"client"`

	// Server tunes session server processes.
	Server ServerConfig `yaml:"server"`

	// Stream tunes the pty byte stream pump's render throttling.
	Stream StreamConfig `yaml:"stream"`

	// Registry tunes session discovery.
	Registry RegistryConfig `yaml:"registry"`

	// Log configures structured logging.
	Log LogConfig `yaml:"log"`
}

// PathsConfig configures directory locations.
type PathsConfig struct {
	// SocketDir holds one socket per live session, named after the
	// session. Default: $XDG_RUNTIME_DIR/loom, or /tmp/loom-<uid>.
	SocketDir string `yaml:"socket_dir"`

	// CacheDir holds one subdirectory per session with its cached
	// layout. Default: $XDG_CACHE_HOME/loom/session_info.
	CacheDir string `yaml:"cache_dir"`
}

// ClientConfig configures the attach client.
type ClientConfig struct {
	// PollTimeout bounds each stdin readiness poll. Default: 10ms.
	PollTimeout time.Duration `yaml:"poll_timeout"`

	// ResizeThrottle is the window within which terminal resize
	// signals collapse into one notification. Default: 50ms.
	ResizeThrottle time.Duration `yaml:"resize_throttle"`

	// Mouse enables mouse reporting while attached. Default: true.
	Mouse bool `yaml:"mouse"`
}

// ServerConfig configures session servers.
type ServerConfig struct {
	// Shell is the program run in a new session's pane. Default: $SHELL
	// or /bin/sh.
	Shell string `yaml:"shell"`

	// ScrollbackBytes is how much recent pane output is replayed to a
	// newly attached client. Default: 1 MiB.
	ScrollbackBytes int `yaml:"scrollback_bytes"`

	// CacheLayout writes a layout to the cache directory when a session
	// starts, which makes it resurrectable after it dies. Default: true.
	CacheLayout bool `yaml:"cache_layout"`

	// RenderQueue is the number of pump instructions buffered ahead of
	// the renderer before the pump blocks. Default: 64.
	RenderQueue int `yaml:"render_queue"`
}

// StreamConfig configures render throttling in the byte stream pump.
type StreamConfig struct {
	// RenderDelay is how long the pump waits for more output after a
	// chunk before asking for a render. Default: 5ms.
	RenderDelay time.Duration `yaml:"render_delay"`

	// BackpressureThreshold is the render send latency above which the
	// consumer counts as backed up. Default: 50ms.
	BackpressureThreshold time.Duration `yaml:"backpressure_threshold"`

	// GapStep is the first non-zero minimum gap between renders once
	// the consumer backs up. Default: 30ms.
	GapStep time.Duration `yaml:"gap_step"`

	// MaxGap caps the minimum gap between renders. Default: 500ms.
	MaxGap time.Duration `yaml:"max_gap"`
}

// RegistryConfig configures session discovery.
type RegistryConfig struct {
	// ProbeTimeout bounds a single liveness probe. Default: 1s.
	ProbeTimeout time.Duration `yaml:"probe_timeout"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	// Level is one of debug, info, warn, error. Default: info.
	Level string `yaml:"level"`
}

// Default returns a configuration usable without any file.
func Default() *Config {
	shell := os.Getenv("SHELL")
	if shell == "" {
		shell = "/bin/sh"
	}
	return &Config{
		Paths: PathsConfig{
			SocketDir: defaultSocketDir(),
			CacheDir:  defaultCacheDir(),
		},
		Client: ClientConfig{
			PollTimeout:    10 * time.Millisecond,
			ResizeThrottle: 50 * time.Millisecond,
			Mouse:          true,
		},
		Server: ServerConfig{
			Shell:           shell,
			ScrollbackBytes: 1 << 20,
			CacheLayout:     true,
			RenderQueue:     64,
		},
		Stream: StreamConfig{
			RenderDelay:           5 * time.Millisecond,
			BackpressureThreshold: 50 * time.Millisecond,
			GapStep:               30 * time.Millisecond,
			MaxGap:                500 * time.Millisecond,
		},
		Registry: RegistryConfig{
			ProbeTimeout: time.Second,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

func defaultSocketDir() string {
	if runtimeDir := os.Getenv("XDG_RUNTIME_DIR"); runtimeDir != "" {
		return filepath.Join(runtimeDir, "loom")
	}
	return fmt.Sprintf("/tmp/loom-%d", os.Getuid())
}

func defaultCacheDir() string {
	cacheRoot, err := os.UserCacheDir()
	if err != nil {
		cacheRoot = filepath.Join(os.TempDir(), fmt.Sprintf("loom-cache-%d", os.Getuid()))
	}
	return filepath.Join(cacheRoot, "loom", "session_info")
}

// Load returns Default overlaid with the file named by LOOM_CONFIG, or
// Default alone when the variable is unset.
func Load() (*Config, error) {
	configPath := os.Getenv(EnvironmentVariable)
	if configPath == "" {
		return Default(), nil
	}
	return LoadFile(configPath)
}

// LoadFile returns Default overlaid with the file at path.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	cfg.expandVariables()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}
	c.Paths.SocketDir = expandVars(c.Paths.SocketDir, vars)
	c.Paths.CacheDir = expandVars(c.Paths.CacheDir, vars)
	c.Server.Shell = expandVars(c.Server.Shell, vars)
}

// varPattern matches ${VAR} and ${VAR:-default}.
var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Paths.SocketDir == "" {
		errs = append(errs, fmt.Errorf("paths.socket_dir is required"))
	}
	if c.Paths.CacheDir == "" {
		errs = append(errs, fmt.Errorf("paths.cache_dir is required"))
	}
	if c.Server.Shell == "" {
		errs = append(errs, fmt.Errorf("server.shell is required"))
	}

	durations := []struct {
		name  string
		value time.Duration
	}{
		{"client.poll_timeout", c.Client.PollTimeout},
		{"client.resize_throttle", c.Client.ResizeThrottle},
		{"stream.render_delay", c.Stream.RenderDelay},
		{"stream.backpressure_threshold", c.Stream.BackpressureThreshold},
		{"stream.gap_step", c.Stream.GapStep},
		{"stream.max_gap", c.Stream.MaxGap},
		{"registry.probe_timeout", c.Registry.ProbeTimeout},
	}
	for _, duration := range durations {
		if duration.value <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %v", duration.name, duration.value))
		}
	}
	if c.Stream.MaxGap < c.Stream.GapStep {
		errs = append(errs, fmt.Errorf("stream.max_gap (%v) must be at least stream.gap_step (%v)", c.Stream.MaxGap, c.Stream.GapStep))
	}

	if c.Server.ScrollbackBytes <= 0 {
		errs = append(errs, fmt.Errorf("server.scrollback_bytes must be positive"))
	}
	if c.Server.RenderQueue <= 0 {
		errs = append(errs, fmt.Errorf("server.render_queue must be positive"))
	}

	if _, err := c.LogLevel(); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// LogLevel parses Log.Level.
func (c *Config) LogLevel() (slog.Level, error) {
	switch strings.ToLower(c.Log.Level) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("log.level must be one of debug, info, warn, error; got %q", c.Log.Level)
	}
}

// EnsurePaths creates the socket and cache directories. The socket
// directory is private to the user since anyone who can connect to a
// session socket can type into it.
func (c *Config) EnsurePaths() error {
	if err := os.MkdirAll(c.Paths.SocketDir, 0700); err != nil {
		return fmt.Errorf("creating %s: %w", c.Paths.SocketDir, err)
	}
	if err := os.MkdirAll(c.Paths.CacheDir, 0755); err != nil {
		return fmt.Errorf("creating %s: %w", c.Paths.CacheDir, err)
	}
	return nil
}
