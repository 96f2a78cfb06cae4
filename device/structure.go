// Nestkit - Google Nest Smart Device Management client SDK
// Copyright 2026 Halcyon Labs
// SPDX-License-Identifier: Apache-2.0
// https://github.com/halcyonlabs/nestkit

package device

import (
	"fmt"

	"github.com/goccy/go-json"

	"github.com/halcyonlabs/nestkit/trait"
)

// Structure is a home or room in the SDM API.
type Structure struct {
	name   string
	traits map[trait.Type]trait.Trait
}

type wireStructure struct {
	Name   string                     `json:"name"`
	Traits map[string]json.RawMessage `json:"traits"`
}

// NewStructure parses a structure from its API representation.
func NewStructure(raw json.RawMessage) (*Structure, error) {
	var w wireStructure
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("parse structure: %w", err)
	}
	if w.Name == "" {
		return nil, fmt.Errorf("parse structure: missing name")
	}
	traits, err := trait.Build(w.Traits, w.Name, nil)
	if err != nil {
		return nil, err
	}
	return &Structure{name: w.Name, traits: traits}, nil
}

// Name returns the resource name, e.g. "enterprises/XYZ/structures/123".
func (s *Structure) Name() string { return s.name }

// Info returns the structure info trait, or nil.
func (s *Structure) Info() *trait.StructureInfoTrait {
	tr, _ := s.traits[trait.StructureInfo].(*trait.StructureInfoTrait)
	return tr
}

// RoomInfo returns the room info trait, or nil.
func (s *Structure) RoomInfo() *trait.StructureRoomInfoTrait {
	tr, _ := s.traits[trait.StructureRoomInfo].(*trait.StructureRoomInfoTrait)
	return tr
}

// CustomName returns the display name from whichever info trait is present.
func (s *Structure) CustomName() string {
	if info := s.Info(); info != nil && info.CustomName != "" {
		return info.CustomName
	}
	if room := s.RoomInfo(); room != nil && room.CustomName != "" {
		return room.CustomName
	}
	return ""
}
