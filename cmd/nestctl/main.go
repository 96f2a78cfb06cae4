// Nestkit - Google Nest Smart Device Management client SDK
// Copyright 2026 Halcyon Labs
// SPDX-License-Identifier: Apache-2.0
// https://github.com/halcyonlabs/nestkit

// Package main is the nestctl command line tool.
//
// nestctl talks to the Smart Device Management API with credentials from the
// nestctl config (defaults -> yaml file -> environment, see internal/config).
// It can list and inspect devices and structures, run thermostat and camera
// commands, and stream pub/sub events to stdout.
//
// Examples:
//
//	export NEST_PROJECT_ID=your-device-access-project
//	export NEST_CLIENT_ID=... NEST_CLIENT_SECRET=... NEST_REFRESH_TOKEN=...
//	nestctl devices
//	nestctl set-mode <device-id> HEAT
//	NEST_SUBSCRIPTION=projects/p/subscriptions/s nestctl subscribe
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/oauth2"

	"github.com/halcyonlabs/nestkit/api"
	"github.com/halcyonlabs/nestkit/auth"
	"github.com/halcyonlabs/nestkit/internal/config"
	"github.com/halcyonlabs/nestkit/internal/logging"
)

const usage = `usage: nestctl <command> [args]

commands:
  devices                          list devices
  structures                       list structures
  get <device-id>                  show one device
  set-mode <device-id> <mode>      set thermostat mode (HEAT, COOL, HEATCOOL, OFF)
  set-heat <device-id> <celsius>   set heat setpoint
  set-cool <device-id> <celsius>   set cool setpoint
  set-range <device-id> <heat> <cool>
                                   set heat/cool setpoint range
  rtsp-stream <device-id>          generate an RTSP stream url
  subscribe                        stream events to stdout (needs NEST_SUBSCRIPTION)
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}
	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	creds := credentials(ctx, cfg)
	client, err := newAPIClient(ctx, cfg, creds)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create API client")
	}

	if err := dispatch(ctx, cfg, creds, client, os.Args[1], os.Args[2:]); err != nil {
		logging.Fatal().Err(err).Str("command", os.Args[1]).Msg("Command failed")
	}
}

func dispatch(ctx context.Context, cfg *config.Config, creds auth.Credentials, client *api.Client, command string, args []string) error {
	switch command {
	case "devices":
		return cmdDevices(ctx, client)
	case "structures":
		return cmdStructures(ctx, client)
	case "get":
		if len(args) != 1 {
			return fmt.Errorf("usage: nestctl get <device-id>")
		}
		return cmdGetDevice(ctx, client, args[0])
	case "set-mode":
		if len(args) != 2 {
			return fmt.Errorf("usage: nestctl set-mode <device-id> <mode>")
		}
		return cmdSetMode(ctx, client, args[0], args[1])
	case "set-heat":
		if len(args) != 2 {
			return fmt.Errorf("usage: nestctl set-heat <device-id> <celsius>")
		}
		return cmdSetHeat(ctx, client, args[0], args[1])
	case "set-cool":
		if len(args) != 2 {
			return fmt.Errorf("usage: nestctl set-cool <device-id> <celsius>")
		}
		return cmdSetCool(ctx, client, args[0], args[1])
	case "set-range":
		if len(args) != 3 {
			return fmt.Errorf("usage: nestctl set-range <device-id> <heat> <cool>")
		}
		return cmdSetRange(ctx, client, args[0], args[1], args[2])
	case "rtsp-stream":
		if len(args) != 1 {
			return fmt.Errorf("usage: nestctl rtsp-stream <device-id>")
		}
		return cmdRtspStream(ctx, client, args[0])
	case "subscribe":
		return cmdSubscribe(ctx, cfg, creds, client)
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", command)
	}
}

// credentials builds the credential provider from config: a refresh token
// when available, otherwise the static access token.
func credentials(ctx context.Context, cfg *config.Config) auth.Credentials {
	if cfg.OAuth.RefreshToken != "" {
		oauthCfg := &oauth2.Config{
			ClientID:     cfg.OAuth.ClientID,
			ClientSecret: cfg.OAuth.ClientSecret,
			Endpoint: oauth2.Endpoint{
				TokenURL: auth.OAuthTokenURL,
			},
			Scopes: auth.Scopes,
		}
		return auth.NewOAuth(ctx, oauthCfg, &oauth2.Token{RefreshToken: cfg.OAuth.RefreshToken})
	}
	return auth.Static(cfg.OAuth.AccessToken)
}

func newAPIClient(ctx context.Context, cfg *config.Config, creds auth.Credentials) (*api.Client, error) {
	var opts []api.Option
	if cfg.Project.APIURL != "" {
		opts = append(opts, api.WithAPIURL(cfg.Project.APIURL))
	}
	return api.NewClient(auth.HTTPClient(ctx, creds), cfg.Project.DeviceAccessProjectID, opts...)
}
