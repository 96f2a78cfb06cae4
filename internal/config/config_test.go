// Nestkit - Google Nest Smart Device Management client SDK
// Copyright 2026 Halcyon Labs
// SPDX-License-Identifier: Apache-2.0
// https://github.com/halcyonlabs/nestkit

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func validEnv(t *testing.T) {
	t.Helper()
	t.Setenv("NEST_PROJECT_ID", "device-project")
	t.Setenv("NEST_CLIENT_ID", "client-id")
	t.Setenv("NEST_CLIENT_SECRET", "client-secret")
	t.Setenv("NEST_REFRESH_TOKEN", "refresh-token")
}

func TestLoadDefaults(t *testing.T) {
	validEnv(t)
	cfg, err := LoadFile("")
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Media.CacheSize != 2 {
		t.Errorf("cache size = %d, want default 2", cfg.Media.CacheSize)
	}
	if cfg.Subscriber.AckTimeout != 30*time.Second {
		t.Errorf("ack timeout = %v", cfg.Subscriber.AckTimeout)
	}
	if cfg.Media.FetchRate != 0 {
		t.Errorf("fetch rate = %v, want unlimited by default", cfg.Media.FetchRate)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("log level = %q", cfg.Logging.Level)
	}
	if cfg.Project.DeviceAccessProjectID != "device-project" {
		t.Errorf("project id = %q", cfg.Project.DeviceAccessProjectID)
	}
}

func TestLoadFileLayering(t *testing.T) {
	validEnv(t)
	path := filepath.Join(t.TempDir(), "nestctl.yaml")
	body := strings.Join([]string{
		"media:",
		"  cache_size: 11",
		"  fetch: true",
		"  fetch_rate: 2.5",
		"logging:",
		"  level: debug",
	}, "\n")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	// Environment overrides the file.
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Media.CacheSize != 11 || !cfg.Media.Fetch {
		t.Errorf("media = %+v", cfg.Media)
	}
	if cfg.Media.FetchRate != 2.5 {
		t.Errorf("fetch rate = %v, want 2.5", cfg.Media.FetchRate)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("log level = %q, want env override", cfg.Logging.Level)
	}
}

func TestLoadMissingProject(t *testing.T) {
	validEnv(t)
	t.Setenv("NEST_PROJECT_ID", "")
	if _, err := LoadFile(""); err == nil {
		t.Error("expected validation error for missing project id")
	}
}

func TestLoadMissingTokens(t *testing.T) {
	validEnv(t)
	t.Setenv("NEST_REFRESH_TOKEN", "")
	if _, err := LoadFile(""); err == nil {
		t.Error("expected validation error when no token material is set")
	}

	t.Setenv("NEST_ACCESS_TOKEN", "short-lived")
	if _, err := LoadFile(""); err != nil {
		t.Errorf("access token alone should be accepted: %v", err)
	}
}

func TestLoadRejectsBadLevel(t *testing.T) {
	validEnv(t)
	t.Setenv("LOG_LEVEL", "loud")
	if _, err := LoadFile(""); err == nil {
		t.Error("expected validation error for unknown log level")
	}
}

func TestUnmappedEnvIgnored(t *testing.T) {
	validEnv(t)
	t.Setenv("PATH_PREFIX", "/somewhere")
	cfg, err := LoadFile("")
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Media.StorePath != "" {
		t.Errorf("store path = %q, unrelated env should not apply", cfg.Media.StorePath)
	}
}
