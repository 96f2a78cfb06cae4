// Nestkit - Google Nest Smart Device Management client SDK
// Copyright 2026 Halcyon Labs
// SPDX-License-Identifier: Apache-2.0
// https://github.com/halcyonlabs/nestkit

package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/goccy/go-json"

	"github.com/halcyonlabs/nestkit/api"
	"github.com/halcyonlabs/nestkit/device"
)

// deviceSummary is the human-facing listing shape for one device.
type deviceSummary struct {
	Name         string            `json:"name"`
	Type         string            `json:"type"`
	CustomName   string            `json:"customName,omitempty"`
	Connectivity string            `json:"connectivity,omitempty"`
	Temperature  float64           `json:"ambientTemperatureCelsius,omitempty"`
	Humidity     float64           `json:"ambientHumidityPercent,omitempty"`
	Mode         string            `json:"thermostatMode,omitempty"`
	HvacStatus   string            `json:"hvacStatus,omitempty"`
	Parents      map[string]string `json:"parents,omitempty"`
}

func summarize(d *device.Device) deviceSummary {
	s := deviceSummary{
		Name:    d.Name(),
		Type:    d.Type(),
		Parents: d.ParentRelations(),
	}
	if info := d.Info(); info != nil {
		s.CustomName = info.CustomName
	}
	if conn := d.Connectivity(); conn != nil {
		s.Connectivity = conn.Status
	}
	if temp := d.Temperature(); temp != nil {
		s.Temperature = temp.AmbientTemperatureCelsius
	}
	if hum := d.Humidity(); hum != nil {
		s.Humidity = hum.AmbientHumidityPercent
	}
	if mode := d.ThermostatMode(); mode != nil {
		s.Mode = mode.Mode
	}
	if hvac := d.ThermostatHvac(); hvac != nil {
		s.HvacStatus = hvac.Status
	}
	return s
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func cmdDevices(ctx context.Context, client *api.Client) error {
	devices, err := client.GetDevices(ctx)
	if err != nil {
		return err
	}
	summaries := make([]deviceSummary, 0, len(devices))
	for _, d := range devices {
		summaries = append(summaries, summarize(d))
	}
	return printJSON(summaries)
}

func cmdStructures(ctx context.Context, client *api.Client) error {
	structures, err := client.GetStructures(ctx)
	if err != nil {
		return err
	}
	type structureSummary struct {
		Name       string `json:"name"`
		CustomName string `json:"customName,omitempty"`
	}
	summaries := make([]structureSummary, 0, len(structures))
	for _, s := range structures {
		summaries = append(summaries, structureSummary{Name: s.Name(), CustomName: s.CustomName()})
	}
	return printJSON(summaries)
}

func cmdGetDevice(ctx context.Context, client *api.Client, deviceID string) error {
	d, err := client.GetDevice(ctx, deviceID)
	if err != nil {
		return err
	}
	return printJSON(summarize(d))
}

func cmdSetMode(ctx context.Context, client *api.Client, deviceID, mode string) error {
	d, err := client.GetDevice(ctx, deviceID)
	if err != nil {
		return err
	}
	tr := d.ThermostatMode()
	if tr == nil {
		return fmt.Errorf("device %s has no thermostat mode trait", deviceID)
	}
	return tr.SetMode(ctx, mode)
}

func parseCelsius(arg string) (float64, error) {
	v, err := strconv.ParseFloat(arg, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid temperature %q: %w", arg, err)
	}
	return v, nil
}

func cmdSetHeat(ctx context.Context, client *api.Client, deviceID, arg string) error {
	heat, err := parseCelsius(arg)
	if err != nil {
		return err
	}
	d, err := client.GetDevice(ctx, deviceID)
	if err != nil {
		return err
	}
	tr := d.ThermostatTemperatureSetpoint()
	if tr == nil {
		return fmt.Errorf("device %s has no setpoint trait", deviceID)
	}
	return tr.SetHeat(ctx, heat)
}

func cmdSetCool(ctx context.Context, client *api.Client, deviceID, arg string) error {
	cool, err := parseCelsius(arg)
	if err != nil {
		return err
	}
	d, err := client.GetDevice(ctx, deviceID)
	if err != nil {
		return err
	}
	tr := d.ThermostatTemperatureSetpoint()
	if tr == nil {
		return fmt.Errorf("device %s has no setpoint trait", deviceID)
	}
	return tr.SetCool(ctx, cool)
}

func cmdSetRange(ctx context.Context, client *api.Client, deviceID, heatArg, coolArg string) error {
	heat, err := parseCelsius(heatArg)
	if err != nil {
		return err
	}
	cool, err := parseCelsius(coolArg)
	if err != nil {
		return err
	}
	d, err := client.GetDevice(ctx, deviceID)
	if err != nil {
		return err
	}
	tr := d.ThermostatTemperatureSetpoint()
	if tr == nil {
		return fmt.Errorf("device %s has no setpoint trait", deviceID)
	}
	return tr.SetRange(ctx, heat, cool)
}

func cmdRtspStream(ctx context.Context, client *api.Client, deviceID string) error {
	d, err := client.GetDevice(ctx, deviceID)
	if err != nil {
		return err
	}
	tr := d.CameraLiveStream()
	if tr == nil {
		return fmt.Errorf("device %s has no live stream trait", deviceID)
	}
	stream, err := tr.GenerateRtspStream(ctx)
	if err != nil {
		return err
	}
	return printJSON(map[string]any{
		"url":       stream.URL,
		"expiresAt": stream.ExpiresAt,
	})
}
