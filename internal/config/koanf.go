// Nestkit - Google Nest Smart Device Management client SDK
// Copyright 2026 Halcyon Labs
// SPDX-License-Identifier: Apache-2.0
// https://github.com/halcyonlabs/nestkit

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists where config files are searched, in order. The
// first file found wins.
var DefaultConfigPaths = []string{
	"nestctl.yaml",
	"nestctl.yml",
	"/etc/nestctl/config.yaml",
	"/etc/nestctl/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "NESTCTL_CONFIG"

// Load builds the configuration in three layers: struct defaults, then an
// optional yaml file, then environment variables.
func Load() (*Config, error) {
	return LoadFile(findConfigFile())
}

// LoadFile is Load with an explicit config file path; an empty path skips
// the file layer.
func LoadFile(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// envTransformFunc maps environment variable names to koanf config paths.
// Unmapped variables are skipped so unrelated environment state cannot
// pollute the config.
func envTransformFunc(key string) string {
	mappings := map[string]string{
		"nest_project_id":       "project.device_access_project_id",
		"nest_cloud_project_id": "project.cloud_project_id",
		"nest_api_url":          "project.api_url",

		"nest_client_id":     "oauth.client_id",
		"nest_client_secret": "oauth.client_secret",
		"nest_refresh_token": "oauth.refresh_token",
		"nest_access_token":  "oauth.access_token",

		"nest_subscription": "subscriber.subscription",
		"nest_ack_timeout":  "subscriber.ack_timeout",

		"nest_media_cache_size": "media.cache_size",
		"nest_media_fetch":      "media.fetch",
		"nest_media_fetch_rate": "media.fetch_rate",
		"nest_media_store_path": "media.store_path",
		"nest_ffmpeg_path":      "media.ffmpeg_path",

		"log_level":  "logging.level",
		"log_format": "logging.format",
	}
	if mapped, ok := mappings[strings.ToLower(key)]; ok {
		return mapped
	}
	return ""
}
