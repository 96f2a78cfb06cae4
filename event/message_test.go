// Nestkit - Google Nest Smart Device Management client SDK
// Copyright 2026 Halcyon Labs
// SPDX-License-Identifier: Apache-2.0
// https://github.com/halcyonlabs/nestkit

package event

import (
	"testing"
	"time"
)

func TestParseResourceUpdateMessage(t *testing.T) {
	data := []byte(`{
		"eventId": "0120ecc7-3b57-4eb4-9941-91609f189fb4",
		"timestamp": "2024-05-10T12:00:00.123Z",
		"resourceUpdate": {
			"name": "enterprises/project-id/devices/device-id",
			"events": {
				"sdm.devices.events.CameraMotion.Motion": {
					"eventSessionId": "CjY5Y3VK",
					"eventId": "FWWVQVU",
					"zones": ["Zone 1"]
				}
			}
		},
		"userId": "AVPHwEuBfnPOnTqzVFT4IONX2Qqhu9EJ4ubO-bNnQ-yi"
	}`)
	m, err := ParseMessage(data)
	if err != nil {
		t.Fatalf("ParseMessage: %v", err)
	}
	if m.EventID != "0120ecc7-3b57-4eb4-9941-91609f189fb4" {
		t.Errorf("EventID = %q", m.EventID)
	}
	if got := m.ResourceUpdateName(); got != "enterprises/project-id/devices/device-id" {
		t.Errorf("ResourceUpdateName = %q", got)
	}
	want := time.Date(2024, 5, 10, 12, 0, 0, 123000000, time.UTC)
	if !m.Timestamp.Equal(want) {
		t.Errorf("Timestamp = %v, want %v", m.Timestamp, want)
	}

	events := m.ResourceUpdateEvents()
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	motion, ok := events[CameraMotion]
	if !ok {
		t.Fatal("expected CameraMotion event")
	}
	if motion.SessionID != "CjY5Y3VK" || motion.EventID != "FWWVQVU" {
		t.Errorf("unexpected event identity: %+v", motion)
	}
	if len(motion.Zones) != 1 || motion.Zones[0] != "Zone 1" {
		t.Errorf("zones = %v", motion.Zones)
	}
}

func TestParseMessageIgnoresUnknownEventTypes(t *testing.T) {
	data := []byte(`{
		"eventId": "id",
		"timestamp": "2024-05-10T12:00:00Z",
		"resourceUpdate": {
			"name": "enterprises/project-id/devices/device-id",
			"events": {
				"sdm.devices.events.SomeFuture.Event": {"eventSessionId": "S", "eventId": "E"},
				"sdm.devices.events.CameraSound.Sound": {"eventSessionId": "S", "eventId": "E2"}
			}
		}
	}`)
	m, err := ParseMessage(data)
	if err != nil {
		t.Fatalf("ParseMessage: %v", err)
	}
	events := m.ResourceUpdateEvents()
	if len(events) != 1 {
		t.Fatalf("expected unknown event to be dropped, got %d events", len(events))
	}
	if _, ok := events[CameraSound]; !ok {
		t.Error("expected CameraSound to survive")
	}
}

func TestParseRelationUpdateMessage(t *testing.T) {
	data := []byte(`{
		"eventId": "id",
		"timestamp": "2024-05-10T12:00:00Z",
		"relationUpdate": {
			"type": "CREATED",
			"subject": "enterprises/project-id/structures/structure-id/rooms/room-id",
			"object": "enterprises/project-id/devices/device-id"
		}
	}`)
	m, err := ParseMessage(data)
	if err != nil {
		t.Fatalf("ParseMessage: %v", err)
	}
	if m.RelationUpdate == nil {
		t.Fatal("expected relation update")
	}
	if m.RelationUpdate.Type != RelationCreated {
		t.Errorf("relation type = %q", m.RelationUpdate.Type)
	}
	if m.ResourceUpdateName() != "" {
		t.Error("relation message should have no resource update name")
	}
}

func TestParseMessageThreadState(t *testing.T) {
	data := []byte(`{
		"eventId": "id",
		"timestamp": "2024-05-10T12:00:00Z",
		"eventThreadId": "thread-1",
		"eventThreadState": "ENDED",
		"resourceUpdate": {"name": "enterprises/p/devices/d", "events": {}}
	}`)
	m, err := ParseMessage(data)
	if err != nil {
		t.Fatalf("ParseMessage: %v", err)
	}
	if m.ThreadID != "thread-1" {
		t.Errorf("ThreadID = %q", m.ThreadID)
	}
	if !m.IsThreadEnded() {
		t.Error("expected IsThreadEnded")
	}
}

func TestParseMessageBadTimestamp(t *testing.T) {
	data := []byte(`{"eventId": "id", "timestamp": "yesterday"}`)
	if _, err := ParseMessage(data); err == nil {
		t.Error("expected error for malformed timestamp")
	}
}

func TestParseMessageBadJSON(t *testing.T) {
	if _, err := ParseMessage([]byte("{")); err == nil {
		t.Error("expected error for malformed json")
	}
}

func TestEventSessionsGrouping(t *testing.T) {
	data := []byte(`{
		"eventId": "id",
		"timestamp": "2024-05-10T12:00:00Z",
		"resourceUpdate": {
			"name": "enterprises/p/devices/d",
			"events": {
				"sdm.devices.events.CameraMotion.Motion": {"eventSessionId": "S1", "eventId": "E1"},
				"sdm.devices.events.CameraClipPreview.ClipPreview": {"eventSessionId": "S1", "previewUrl": "https://previewurl"},
				"sdm.devices.events.DoorbellChime.Chime": {"eventSessionId": "S2", "eventId": "E3"}
			}
		}
	}`)
	m, err := ParseMessage(data)
	if err != nil {
		t.Fatalf("ParseMessage: %v", err)
	}
	sessions := m.EventSessions()
	if len(sessions) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(sessions))
	}
	s1 := sessions["S1"]
	if len(s1) != 2 {
		t.Fatalf("expected 2 events in S1, got %d", len(s1))
	}
	// The clip preview upgrades the media type of every event in the message.
	if got := s1[CameraMotion].MediaType(); got != MediaTypeClipPreview {
		t.Errorf("S1 motion media type = %s, want %s", got, MediaTypeClipPreview)
	}
	if len(sessions["S2"]) != 1 {
		t.Errorf("expected 1 event in S2, got %d", len(sessions["S2"]))
	}
}

func TestWithEvents(t *testing.T) {
	data := []byte(`{
		"eventId": "id",
		"timestamp": "2024-05-10T12:00:00Z",
		"resourceUpdate": {
			"name": "enterprises/p/devices/d",
			"events": {
				"sdm.devices.events.CameraMotion.Motion": {"eventSessionId": "S1", "eventId": "E1"}
			}
		}
	}`)
	m, err := ParseMessage(data)
	if err != nil {
		t.Fatalf("ParseMessage: %v", err)
	}
	accumulated := map[Type]Event{
		CameraMotion: {Type: CameraMotion, SessionID: "S1", EventID: "E1"},
		CameraSound:  {Type: CameraSound, SessionID: "S1", EventID: "E2"},
	}
	view := m.WithEvents(accumulated)
	if len(view.ResourceUpdateEvents()) != 2 {
		t.Errorf("expected accumulated view with 2 events")
	}
	// Original message is unchanged.
	if len(m.ResourceUpdateEvents()) != 1 {
		t.Errorf("original message should still have 1 event")
	}
}
