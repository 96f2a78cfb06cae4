// Nestkit - Google Nest Smart Device Management client SDK
// Copyright 2026 Halcyon Labs
// SPDX-License-Identifier: Apache-2.0
// https://github.com/halcyonlabs/nestkit

package trait

import "context"

// ThermostatEcoTrait controls the thermostat Eco mode and its temperature
// band.
type ThermostatEcoTrait struct {
	commandTrait

	AvailableModes []string `json:"availableModes,omitempty"`
	Mode           string   `json:"mode,omitempty"`
	HeatCelsius    float64  `json:"heatCelsius,omitempty"`
	CoolCelsius    float64  `json:"coolCelsius,omitempty"`
}

func (*ThermostatEcoTrait) TraitType() Type { return ThermostatEco }

// SetMode changes the thermostat Eco mode.
func (t *ThermostatEcoTrait) SetMode(ctx context.Context, mode string) error {
	_, err := t.execute(ctx, "sdm.devices.commands.ThermostatEco.SetMode", map[string]any{
		"mode": mode,
	})
	return err
}

// ThermostatHvacTrait reports the current HVAC status.
type ThermostatHvacTrait struct {
	// Status is "OFF", "HEATING" or "COOLING".
	Status string `json:"status"`
}

func (*ThermostatHvacTrait) TraitType() Type { return ThermostatHvac }

// ThermostatModeTrait controls the active thermostat mode.
type ThermostatModeTrait struct {
	commandTrait

	AvailableModes []string `json:"availableModes,omitempty"`
	Mode           string   `json:"mode,omitempty"`
}

func (*ThermostatModeTrait) TraitType() Type { return ThermostatMode }

// SetMode changes the thermostat mode.
func (t *ThermostatModeTrait) SetMode(ctx context.Context, mode string) error {
	_, err := t.execute(ctx, "sdm.devices.commands.ThermostatMode.SetMode", map[string]any{
		"mode": mode,
	})
	return err
}

// ThermostatTemperatureSetpointTrait controls the target temperatures.
type ThermostatTemperatureSetpointTrait struct {
	commandTrait

	HeatCelsius float64 `json:"heatCelsius,omitempty"`
	CoolCelsius float64 `json:"coolCelsius,omitempty"`
}

func (*ThermostatTemperatureSetpointTrait) TraitType() Type { return ThermostatTemperatureSetpoint }

// SetHeat changes the heating setpoint. Valid in HEAT mode.
func (t *ThermostatTemperatureSetpointTrait) SetHeat(ctx context.Context, heat float64) error {
	_, err := t.execute(ctx, "sdm.devices.commands.ThermostatTemperatureSetpoint.SetHeat", map[string]any{
		"heatCelsius": heat,
	})
	return err
}

// SetCool changes the cooling setpoint. Valid in COOL mode.
func (t *ThermostatTemperatureSetpointTrait) SetCool(ctx context.Context, cool float64) error {
	_, err := t.execute(ctx, "sdm.devices.commands.ThermostatTemperatureSetpoint.SetCool", map[string]any{
		"coolCelsius": cool,
	})
	return err
}

// SetRange changes both setpoints. Valid in HEATCOOL mode.
func (t *ThermostatTemperatureSetpointTrait) SetRange(ctx context.Context, heat, cool float64) error {
	_, err := t.execute(ctx, "sdm.devices.commands.ThermostatTemperatureSetpoint.SetRange", map[string]any{
		"heatCelsius": heat,
		"coolCelsius": cool,
	})
	return err
}
