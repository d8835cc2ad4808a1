// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default() does not validate: %v", err)
	}
	if cfg.Client.PollTimeout != 10*time.Millisecond {
		t.Errorf("expected poll_timeout=10ms, got %v", cfg.Client.PollTimeout)
	}
	if cfg.Client.ResizeThrottle != 50*time.Millisecond {
		t.Errorf("expected resize_throttle=50ms, got %v", cfg.Client.ResizeThrottle)
	}
	if !cfg.Server.CacheLayout {
		t.Error("expected cache_layout=true")
	}
	if !strings.HasSuffix(cfg.Paths.CacheDir, filepath.Join("loom", "session_info")) {
		t.Errorf("expected cache_dir to end in loom/session_info, got %s", cfg.Paths.CacheDir)
	}
}

func TestDefaultSocketDirFollowsRuntimeDir(t *testing.T) {
	t.Setenv("XDG_RUNTIME_DIR", "/run/user/4242")
	if got := Default().Paths.SocketDir; got != "/run/user/4242/loom" {
		t.Errorf("socket_dir = %s, want /run/user/4242/loom", got)
	}

	t.Setenv("XDG_RUNTIME_DIR", "")
	if got := Default().Paths.SocketDir; !strings.HasPrefix(got, "/tmp/loom-") {
		t.Errorf("socket_dir without runtime dir = %s, want /tmp/loom-<uid>", got)
	}
}

func TestLoadWithoutConfigUsesDefaults(t *testing.T) {
	t.Setenv(EnvironmentVariable, "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Stream.MaxGap != Default().Stream.MaxGap {
		t.Errorf("expected default max_gap, got %v", cfg.Stream.MaxGap)
	}
}

func TestLoadFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "loom.yaml")
	configContent := `
paths:
  socket_dir: /custom/sockets
client:
  poll_timeout: 20ms
  mouse: false
stream:
  gap_step: 10ms
  max_gap: 1s
log:
  level: debug
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	t.Setenv(EnvironmentVariable, configPath)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Paths.SocketDir != "/custom/sockets" {
		t.Errorf("expected socket_dir=/custom/sockets, got %s", cfg.Paths.SocketDir)
	}
	if cfg.Client.PollTimeout != 20*time.Millisecond {
		t.Errorf("expected poll_timeout=20ms, got %v", cfg.Client.PollTimeout)
	}
	if cfg.Client.Mouse {
		t.Error("expected mouse=false")
	}
	if cfg.Stream.MaxGap != time.Second {
		t.Errorf("expected max_gap=1s, got %v", cfg.Stream.MaxGap)
	}
	// Unset fields keep defaults.
	if cfg.Client.ResizeThrottle != 50*time.Millisecond {
		t.Errorf("expected default resize_throttle, got %v", cfg.Client.ResizeThrottle)
	}
	level, err := cfg.LogLevel()
	if err != nil || level != slog.LevelDebug {
		t.Errorf("LogLevel() = %v, %v; want debug", level, err)
	}
}

func TestLoadFileMissing(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestLoadFileRejectsInvalid(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "loom.yaml")
	if err := os.WriteFile(configPath, []byte("client:\n  poll_timeout: 0s\n"), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	_, err := LoadFile(configPath)
	if err == nil || !strings.Contains(err.Error(), "client.poll_timeout") {
		t.Fatalf("expected poll_timeout validation error, got %v", err)
	}
}

func TestExpandVars(t *testing.T) {
	t.Setenv("LOOM_TEST_RUNTIME", "/run/user/1000")

	tests := []struct {
		input string
		vars  map[string]string
		want  string
	}{
		{"${HOME}/cache", map[string]string{"HOME": "/home/alice"}, "/home/alice/cache"},
		{"${LOOM_TEST_RUNTIME}/loom", nil, "/run/user/1000/loom"},
		{"${LOOM_TEST_UNSET:-/tmp}/loom", nil, "/tmp/loom"},
		{"${LOOM_TEST_UNSET}/loom", nil, "/loom"},
		{"/plain/path", nil, "/plain/path"},
	}
	for _, test := range tests {
		if got := expandVars(test.input, test.vars); got != test.want {
			t.Errorf("expandVars(%q) = %q, want %q", test.input, got, test.want)
		}
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Paths.SocketDir = ""
	cfg.Stream.MaxGap = time.Millisecond
	cfg.Log.Level = "verbose"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation errors")
	}
	for _, fragment := range []string{"paths.socket_dir", "stream.max_gap", "log.level"} {
		if !strings.Contains(err.Error(), fragment) {
			t.Errorf("validation error missing %q: %v", fragment, err)
		}
	}
}

func TestEnsurePaths(t *testing.T) {
	root := t.TempDir()
	cfg := Default()
	cfg.Paths.SocketDir = filepath.Join(root, "sockets")
	cfg.Paths.CacheDir = filepath.Join(root, "cache", "session_info")

	if err := cfg.EnsurePaths(); err != nil {
		t.Fatalf("EnsurePaths() failed: %v", err)
	}
	info, err := os.Stat(cfg.Paths.SocketDir)
	if err != nil {
		t.Fatalf("socket dir not created: %v", err)
	}
	if info.Mode().Perm() != 0700 {
		t.Errorf("socket dir mode = %v, want 0700", info.Mode().Perm())
	}
	if _, err := os.Stat(cfg.Paths.CacheDir); err != nil {
		t.Errorf("cache dir not created: %v", err)
	}
}
