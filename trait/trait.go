// Nestkit - Google Nest Smart Device Management client SDK
// Copyright 2026 Halcyon Labs
// SPDX-License-Identifier: Apache-2.0
// https://github.com/halcyonlabs/nestkit

// Package trait models the fixed vocabulary of SDM traits as typed values.
//
// Trait names dispatch through a static table built at init time; payloads
// naming traits outside the table are ignored rather than surfaced. Trait
// values are immutable snapshots: an update replaces the stored object, it
// never mutates fields in place.
package trait

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/halcyonlabs/nestkit/event"
)

// Type identifies a trait by its SDM trait name.
type Type string

const (
	// Device traits.
	Connectivity Type = "sdm.devices.traits.Connectivity"
	Fan          Type = "sdm.devices.traits.Fan"
	Info         Type = "sdm.devices.traits.Info"
	Humidity     Type = "sdm.devices.traits.Humidity"
	Temperature  Type = "sdm.devices.traits.Temperature"

	// Thermostat traits.
	ThermostatEco                 Type = "sdm.devices.traits.ThermostatEco"
	ThermostatHvac                Type = "sdm.devices.traits.ThermostatHvac"
	ThermostatMode                Type = "sdm.devices.traits.ThermostatMode"
	ThermostatTemperatureSetpoint Type = "sdm.devices.traits.ThermostatTemperatureSetpoint"

	// Camera traits.
	CameraImage       Type = "sdm.devices.traits.CameraImage"
	CameraLiveStream  Type = "sdm.devices.traits.CameraLiveStream"
	CameraEventImage  Type = "sdm.devices.traits.CameraEventImage"
	CameraMotion      Type = "sdm.devices.traits.CameraMotion"
	CameraPerson      Type = "sdm.devices.traits.CameraPerson"
	CameraSound       Type = "sdm.devices.traits.CameraSound"
	CameraClipPreview Type = "sdm.devices.traits.CameraClipPreview"

	// Doorbell traits.
	DoorbellChime Type = "sdm.devices.traits.DoorbellChime"

	// Structure traits.
	StructureInfo     Type = "sdm.structures.traits.Info"
	StructureRoomInfo Type = "sdm.structures.traits.RoomInfo"
)

// Trait is a typed snapshot of one functional aspect of a device or
// structure.
type Trait interface {
	TraitType() Type
}

// EventTrait is implemented by traits whose devices emit events of a
// corresponding type.
type EventTrait interface {
	Trait
	EventType() event.Type
}

// CommandExecutor issues device commands and fetches media over the REST
// API. It is implemented by the api package and faked in tests.
type CommandExecutor interface {
	// Execute runs a device command and returns the raw "results" payload.
	Execute(ctx context.Context, deviceName, command string, params map[string]any) (json.RawMessage, error)

	// FetchImage downloads media from url. A non-empty basicToken is sent
	// as a Basic authorization header (event images); otherwise the
	// request uses the standard authorized client. A positive width is
	// appended as a resize parameter.
	FetchImage(ctx context.Context, url, basicToken string, width int) ([]byte, error)
}

// binder is implemented by traits that carry a command executor.
type binder interface {
	bind(deviceName string, exec CommandExecutor)
}

// commandTrait holds the device binding shared by command-capable traits.
type commandTrait struct {
	deviceName string
	exec       CommandExecutor
}

func (c *commandTrait) bind(deviceName string, exec CommandExecutor) {
	c.deviceName = deviceName
	c.exec = exec
}

func (c *commandTrait) execute(ctx context.Context, command string, params map[string]any) (json.RawMessage, error) {
	if c.exec == nil {
		return nil, fmt.Errorf("trait has no command executor bound")
	}
	return c.exec.Execute(ctx, c.deviceName, command, params)
}

// builders is the static registration table mapping trait names to their
// constructors. Built once; never mutated at runtime.
var builders = map[Type]func() Trait{
	Connectivity:                  func() Trait { return &ConnectivityTrait{} },
	Fan:                           func() Trait { return &FanTrait{} },
	Info:                          func() Trait { return &InfoTrait{} },
	Humidity:                      func() Trait { return &HumidityTrait{} },
	Temperature:                   func() Trait { return &TemperatureTrait{} },
	ThermostatEco:                 func() Trait { return &ThermostatEcoTrait{} },
	ThermostatHvac:                func() Trait { return &ThermostatHvacTrait{} },
	ThermostatMode:                func() Trait { return &ThermostatModeTrait{} },
	ThermostatTemperatureSetpoint: func() Trait { return &ThermostatTemperatureSetpointTrait{} },
	CameraImage:                   func() Trait { return &CameraImageTrait{} },
	CameraLiveStream:              func() Trait { return &CameraLiveStreamTrait{} },
	CameraEventImage:              func() Trait { return &CameraEventImageTrait{} },
	CameraMotion:                  func() Trait { return &CameraMotionTrait{} },
	CameraPerson:                  func() Trait { return &CameraPersonTrait{} },
	CameraSound:                   func() Trait { return &CameraSoundTrait{} },
	CameraClipPreview:             func() Trait { return &CameraClipPreviewTrait{} },
	DoorbellChime:                 func() Trait { return &DoorbellChimeTrait{} },
	StructureInfo:                 func() Trait { return &StructureInfoTrait{} },
	StructureRoomInfo:             func() Trait { return &StructureRoomInfoTrait{} },
}

// Known reports whether t is part of the supported trait vocabulary.
func Known(t Type) bool {
	_, ok := builders[t]
	return ok
}

// BuildOne parses a single trait payload. Unknown trait names return
// (nil, nil); malformed payloads for known traits are a validation error.
func BuildOne(name Type, data json.RawMessage, deviceName string, exec CommandExecutor) (Trait, error) {
	build, ok := builders[name]
	if !ok {
		return nil, nil
	}
	tr := build()
	if len(data) > 0 {
		if err := json.Unmarshal(data, tr); err != nil {
			return nil, fmt.Errorf("parse trait %s: %w", name, err)
		}
	}
	if b, ok := tr.(binder); ok {
		b.bind(deviceName, exec)
	}
	return tr, nil
}

// Build parses a trait map from raw payloads, silently skipping unknown
// trait names.
func Build(raw map[string]json.RawMessage, deviceName string, exec CommandExecutor) (map[Type]Trait, error) {
	out := make(map[Type]Trait, len(raw))
	for name, data := range raw {
		tr, err := BuildOne(Type(name), data, deviceName, exec)
		if err != nil {
			return nil, err
		}
		if tr == nil {
			continue
		}
		out[Type(name)] = tr
	}
	return out, nil
}
