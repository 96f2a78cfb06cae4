// Nestkit - Google Nest Smart Device Management client SDK
// Copyright 2026 Halcyon Labs
// SPDX-License-Identifier: Apache-2.0
// https://github.com/halcyonlabs/nestkit

package device

import (
	"context"
	"fmt"
	"testing"

	"github.com/goccy/go-json"

	"github.com/halcyonlabs/nestkit/event"
)

type fakeLister struct {
	devices    []*Device
	structures []*Structure
	err        error
}

func (f *fakeLister) ListDevices(_ context.Context) ([]*Device, error) {
	return f.devices, f.err
}

func (f *fakeLister) ListStructures(_ context.Context) ([]*Structure, error) {
	return f.structures, f.err
}

func makeDevice(t *testing.T, name string) *Device {
	t.Helper()
	d, err := New(json.RawMessage(fmt.Sprintf(
		`{"name": %q, "traits": {"sdm.devices.traits.Connectivity": {"status": "ONLINE"}}}`, name)), nil)
	if err != nil {
		t.Fatal(err)
	}
	return d
}

func makeStructure(t *testing.T, name, customName string) *Structure {
	t.Helper()
	s, err := NewStructure(json.RawMessage(fmt.Sprintf(
		`{"name": %q, "traits": {"sdm.structures.traits.Info": {"customName": %q}}}`, name, customName)))
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestManagerRegistry(t *testing.T) {
	m := NewManager(nil)
	d := makeDevice(t, "enterprises/p/devices/d1")
	if err := m.AddDevice(d); err != nil {
		t.Fatal(err)
	}
	s := makeStructure(t, "enterprises/p/structures/s1", "Home")
	if err := m.AddStructure(s); err != nil {
		t.Fatal(err)
	}
	if m.Device("enterprises/p/devices/d1") != d {
		t.Error("device lookup failed")
	}
	if m.Structure("enterprises/p/structures/s1") != s {
		t.Error("structure lookup failed")
	}
	if len(m.Devices()) != 1 || len(m.Structures()) != 1 {
		t.Error("unexpected registry sizes")
	}
}

func TestManagerRefresh(t *testing.T) {
	m := NewManager(nil)
	d1 := makeDevice(t, "enterprises/p/devices/d1")
	if err := m.AddDevice(d1); err != nil {
		t.Fatal(err)
	}

	d2 := makeDevice(t, "enterprises/p/devices/d2")
	lister := &fakeLister{
		devices:    []*Device{d1, d2},
		structures: []*Structure{makeStructure(t, "enterprises/p/structures/s1", "Home")},
	}
	if err := m.Refresh(context.Background(), lister); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if len(m.Devices()) != 2 {
		t.Fatalf("expected 2 devices after refresh, got %d", len(m.Devices()))
	}
	if m.Device("enterprises/p/devices/d1") != d1 {
		t.Error("existing device should keep its accumulated state")
	}

	// d1 vanishes from the inventory.
	lister.devices = []*Device{d2}
	if err := m.Refresh(context.Background(), lister); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if m.Device("enterprises/p/devices/d1") != nil {
		t.Error("vanished device should be dropped")
	}
	if m.Device("enterprises/p/devices/d2") == nil {
		t.Error("remaining device missing")
	}
}

func TestManagerDispatch(t *testing.T) {
	m := NewManager(nil)
	d := makeDevice(t, "enterprises/p/devices/d1")
	if err := m.AddDevice(d); err != nil {
		t.Fatal(err)
	}

	msg, err := event.ParseMessage([]byte(`{
		"eventId": "id",
		"timestamp": "2024-05-10T12:00:00Z",
		"resourceUpdate": {
			"name": "enterprises/p/devices/d1",
			"traits": {"sdm.devices.traits.Connectivity": {"status": "OFFLINE"}}
		}
	}`))
	if err != nil {
		t.Fatal(err)
	}
	if err := m.HandleEvent(context.Background(), msg); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}
	if got := d.Connectivity().Status; got != "OFFLINE" {
		t.Errorf("status = %q", got)
	}
}

func TestManagerDispatchUnknownDevice(t *testing.T) {
	m := NewManager(nil)
	msg, err := event.ParseMessage([]byte(`{
		"eventId": "id",
		"timestamp": "2024-05-10T12:00:00Z",
		"resourceUpdate": {"name": "enterprises/p/devices/untracked", "traits": {}}
	}`))
	if err != nil {
		t.Fatal(err)
	}
	// Messages for untracked devices are dropped without error.
	if err := m.HandleEvent(context.Background(), msg); err != nil {
		t.Errorf("HandleEvent: %v", err)
	}
}

func TestManagerRelationUpdates(t *testing.T) {
	m := NewManager(nil)
	d := makeDevice(t, "enterprises/p/devices/d1")
	if err := m.AddDevice(d); err != nil {
		t.Fatal(err)
	}
	if err := m.AddStructure(makeStructure(t, "enterprises/p/structures/s1", "Home")); err != nil {
		t.Fatal(err)
	}

	created, err := event.ParseMessage([]byte(`{
		"eventId": "id",
		"timestamp": "2024-05-10T12:00:00Z",
		"relationUpdate": {
			"type": "CREATED",
			"subject": "enterprises/p/structures/s1",
			"object": "enterprises/p/devices/d1"
		}
	}`))
	if err != nil {
		t.Fatal(err)
	}
	if err := m.HandleEvent(context.Background(), created); err != nil {
		t.Fatal(err)
	}
	rels := d.ParentRelations()
	if rels["enterprises/p/structures/s1"] != "Home" {
		t.Errorf("relation display name = %q, want Home", rels["enterprises/p/structures/s1"])
	}

	// A relation to an unknown structure resolves to a placeholder name.
	createdUnknown, err := event.ParseMessage([]byte(`{
		"eventId": "id",
		"timestamp": "2024-05-10T12:00:01Z",
		"relationUpdate": {
			"type": "CREATED",
			"subject": "enterprises/p/structures/mystery",
			"object": "enterprises/p/devices/d1"
		}
	}`))
	if err != nil {
		t.Fatal(err)
	}
	if err := m.HandleEvent(context.Background(), createdUnknown); err != nil {
		t.Fatal(err)
	}
	if got := d.ParentRelations()["enterprises/p/structures/mystery"]; got != "Unknown" {
		t.Errorf("unknown structure display name = %q", got)
	}

	deleted, err := event.ParseMessage([]byte(`{
		"eventId": "id",
		"timestamp": "2024-05-10T12:00:02Z",
		"relationUpdate": {
			"type": "DELETED",
			"subject": "enterprises/p/structures/s1",
			"object": "enterprises/p/devices/d1"
		}
	}`))
	if err != nil {
		t.Fatal(err)
	}
	if err := m.HandleEvent(context.Background(), deleted); err != nil {
		t.Fatal(err)
	}
	if _, ok := d.ParentRelations()["enterprises/p/structures/s1"]; ok {
		t.Error("deleted relation should be removed")
	}
}

func TestStructureCustomName(t *testing.T) {
	s := makeStructure(t, "enterprises/p/structures/s1", "Home")
	if s.CustomName() != "Home" {
		t.Errorf("CustomName = %q", s.CustomName())
	}
	room, err := NewStructure(json.RawMessage(`{
		"name": "enterprises/p/structures/s1/rooms/r1",
		"traits": {"sdm.structures.traits.RoomInfo": {"customName": "Kitchen"}}
	}`))
	if err != nil {
		t.Fatal(err)
	}
	if room.CustomName() != "Kitchen" {
		t.Errorf("room CustomName = %q", room.CustomName())
	}
}
