// Nestkit - Google Nest Smart Device Management client SDK
// Copyright 2026 Halcyon Labs
// SPDX-License-Identifier: Apache-2.0
// https://github.com/halcyonlabs/nestkit

// Package config loads nestctl configuration from defaults, an optional yaml
// file, and environment variables, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config is the full nestctl configuration.
type Config struct {
	Project    ProjectConfig    `koanf:"project"`
	OAuth      OAuthConfig      `koanf:"oauth"`
	Subscriber SubscriberConfig `koanf:"subscriber"`
	Media      MediaConfig      `koanf:"media"`
	Logging    LoggingConfig    `koanf:"logging"`
}

// ProjectConfig identifies the device access and cloud console projects.
type ProjectConfig struct {
	// DeviceAccessProjectID is the SDM device access project id.
	DeviceAccessProjectID string `koanf:"device_access_project_id" validate:"required"`

	// CloudProjectID is the Google Cloud console project that owns the
	// pub/sub subscription. Only needed for subscription management and
	// event streaming.
	CloudProjectID string `koanf:"cloud_project_id"`

	// APIURL overrides the SDM endpoint, e.g. for testing.
	APIURL string `koanf:"api_url" validate:"omitempty,url"`
}

// OAuthConfig carries the OAuth2 client and stored token material.
type OAuthConfig struct {
	ClientID     string `koanf:"client_id" validate:"required"`
	ClientSecret string `koanf:"client_secret" validate:"required"`
	RefreshToken string `koanf:"refresh_token"`

	// AccessToken can be set instead of RefreshToken for short-lived runs.
	AccessToken string `koanf:"access_token"`
}

// SubscriberConfig configures the event stream consumer.
type SubscriberConfig struct {
	// Subscription is the fully qualified pub/sub subscription name.
	Subscription string `koanf:"subscription"`

	// AckTimeout bounds processing of one message before it is redelivered.
	AckTimeout time.Duration `koanf:"ack_timeout" validate:"min=0"`
}

// MediaConfig configures the event media cache.
type MediaConfig struct {
	// CacheSize is the per-device bound on cached event sessions.
	CacheSize int `koanf:"cache_size" validate:"min=1"`

	// Fetch enables pre-fetching media when events arrive.
	Fetch bool `koanf:"fetch"`

	// FetchRate bounds eager pre-fetches against the API, in fetches per
	// second. Zero means unlimited.
	FetchRate float64 `koanf:"fetch_rate" validate:"min=0"`

	// StorePath enables the persistent badger-backed media store when set;
	// empty means in-memory.
	StorePath string `koanf:"store_path"`

	// FFmpegPath is the transcoder binary used for clip thumbnails; empty
	// disables thumbnail generation.
	FFmpegPath string `koanf:"ffmpeg_path"`
}

// LoggingConfig mirrors internal/logging.Config.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error disabled"`
	Format string `koanf:"format" validate:"oneof=json console"`
}

func defaultConfig() *Config {
	return &Config{
		Subscriber: SubscriberConfig{
			AckTimeout: 30 * time.Second,
		},
		Media: MediaConfig{
			CacheSize: 2,
			Fetch:     false,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks that required configuration is present and well formed.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var invalid *validator.InvalidValidationError
		if errors.As(err, &invalid) {
			return fmt.Errorf("validate configuration: %w", err)
		}
		for _, fieldErr := range err.(validator.ValidationErrors) {
			return fmt.Errorf("configuration field %s failed %q validation",
				fieldErr.Namespace(), fieldErr.Tag())
		}
	}
	if c.OAuth.RefreshToken == "" && c.OAuth.AccessToken == "" {
		return fmt.Errorf("either oauth.refresh_token or oauth.access_token is required")
	}
	return nil
}
