// Nestkit - Google Nest Smart Device Management client SDK
// Copyright 2026 Halcyon Labs
// SPDX-License-Identifier: Apache-2.0
// https://github.com/halcyonlabs/nestkit

package trait

// StructureInfoTrait carries structure-level information.
type StructureInfoTrait struct {
	CustomName string `json:"customName,omitempty"`
}

func (*StructureInfoTrait) TraitType() Type { return StructureInfo }

// StructureRoomInfoTrait carries room-level information.
type StructureRoomInfoTrait struct {
	CustomName string `json:"customName,omitempty"`
}

func (*StructureRoomInfoTrait) TraitType() Type { return StructureRoomInfo }
