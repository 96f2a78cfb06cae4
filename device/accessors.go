// Nestkit - Google Nest Smart Device Management client SDK
// Copyright 2026 Halcyon Labs
// SPDX-License-Identifier: Apache-2.0
// https://github.com/halcyonlabs/nestkit

package device

import "github.com/halcyonlabs/nestkit/trait"

// Typed accessors for common traits. Each returns nil when the device does
// not carry the trait.

func (d *Device) Info() *trait.InfoTrait {
	tr, _ := d.Trait(trait.Info).(*trait.InfoTrait)
	return tr
}

func (d *Device) Connectivity() *trait.ConnectivityTrait {
	tr, _ := d.Trait(trait.Connectivity).(*trait.ConnectivityTrait)
	return tr
}

func (d *Device) Fan() *trait.FanTrait {
	tr, _ := d.Trait(trait.Fan).(*trait.FanTrait)
	return tr
}

func (d *Device) Humidity() *trait.HumidityTrait {
	tr, _ := d.Trait(trait.Humidity).(*trait.HumidityTrait)
	return tr
}

func (d *Device) Temperature() *trait.TemperatureTrait {
	tr, _ := d.Trait(trait.Temperature).(*trait.TemperatureTrait)
	return tr
}

func (d *Device) ThermostatEco() *trait.ThermostatEcoTrait {
	tr, _ := d.Trait(trait.ThermostatEco).(*trait.ThermostatEcoTrait)
	return tr
}

func (d *Device) ThermostatHvac() *trait.ThermostatHvacTrait {
	tr, _ := d.Trait(trait.ThermostatHvac).(*trait.ThermostatHvacTrait)
	return tr
}

func (d *Device) ThermostatMode() *trait.ThermostatModeTrait {
	tr, _ := d.Trait(trait.ThermostatMode).(*trait.ThermostatModeTrait)
	return tr
}

func (d *Device) ThermostatTemperatureSetpoint() *trait.ThermostatTemperatureSetpointTrait {
	tr, _ := d.Trait(trait.ThermostatTemperatureSetpoint).(*trait.ThermostatTemperatureSetpointTrait)
	return tr
}

func (d *Device) CameraImage() *trait.CameraImageTrait {
	tr, _ := d.Trait(trait.CameraImage).(*trait.CameraImageTrait)
	return tr
}

func (d *Device) CameraLiveStream() *trait.CameraLiveStreamTrait {
	tr, _ := d.Trait(trait.CameraLiveStream).(*trait.CameraLiveStreamTrait)
	return tr
}

func (d *Device) CameraEventImage() *trait.CameraEventImageTrait {
	tr, _ := d.Trait(trait.CameraEventImage).(*trait.CameraEventImageTrait)
	return tr
}

func (d *Device) CameraClipPreview() *trait.CameraClipPreviewTrait {
	tr, _ := d.Trait(trait.CameraClipPreview).(*trait.CameraClipPreviewTrait)
	return tr
}

func (d *Device) DoorbellChime() *trait.DoorbellChimeTrait {
	tr, _ := d.Trait(trait.DoorbellChime).(*trait.DoorbellChimeTrait)
	return tr
}
