// Nestkit - Google Nest Smart Device Management client SDK
// Copyright 2026 Halcyon Labs
// SPDX-License-Identifier: Apache-2.0
// https://github.com/halcyonlabs/nestkit

package trait

import (
	"context"
	"fmt"
	"time"
)

// ConnectivityTrait reports whether the device is reachable.
type ConnectivityTrait struct {
	// Status is "ONLINE" or "OFFLINE".
	Status string `json:"status"`
}

func (*ConnectivityTrait) TraitType() Type { return Connectivity }

// FanTrait controls the device fan.
type FanTrait struct {
	commandTrait

	// TimerMode is "ON" or "OFF".
	TimerMode    string     `json:"timerMode,omitempty"`
	TimerTimeout *time.Time `json:"timerTimeout,omitempty"`
}

func (*FanTrait) TraitType() Type { return Fan }

// SetTimer changes the fan timer mode. A positive duration bounds how long
// the timer runs, in seconds.
func (t *FanTrait) SetTimer(ctx context.Context, timerMode string, duration time.Duration) error {
	params := map[string]any{"timerMode": timerMode}
	if duration > 0 {
		params["duration"] = fmt.Sprintf("%ds", int(duration.Seconds()))
	}
	_, err := t.execute(ctx, "sdm.devices.commands.Fan.SetTimer", params)
	return err
}

// InfoTrait carries device-level information.
type InfoTrait struct {
	CustomName string `json:"customName,omitempty"`
}

func (*InfoTrait) TraitType() Type { return Info }

// HumidityTrait reports the humidity measured at the device.
type HumidityTrait struct {
	AmbientHumidityPercent float64 `json:"ambientHumidityPercent"`
}

func (*HumidityTrait) TraitType() Type { return Humidity }

// TemperatureTrait reports the temperature measured at the device.
type TemperatureTrait struct {
	AmbientTemperatureCelsius float64 `json:"ambientTemperatureCelsius"`
}

func (*TemperatureTrait) TraitType() Type { return Temperature }
