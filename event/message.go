// Nestkit - Google Nest Smart Device Management client SDK
// Copyright 2026 Halcyon Labs
// SPDX-License-Identifier: Apache-2.0
// https://github.com/halcyonlabs/nestkit

package event

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"
)

// ThreadState is the explicit lifecycle framing carried by some event types,
// notably clip-preview-bearing cameras.
type ThreadState string

const (
	ThreadStateNone    ThreadState = ""
	ThreadStateStarted ThreadState = "STARTED"
	ThreadStateUpdated ThreadState = "UPDATED"
	ThreadStateEnded   ThreadState = "ENDED"
)

// RelationType classifies a relation update.
type RelationType string

const (
	RelationCreated RelationType = "CREATED"
	RelationUpdated RelationType = "UPDATED"
	RelationDeleted RelationType = "DELETED"
)

// RelationUpdate represents a relational change between a resource and its
// parent room or structure.
type RelationUpdate struct {
	Type    RelationType `json:"type"`
	Subject string       `json:"subject"`
	Object  string       `json:"object"`
}

// ResourceUpdate carries partial trait data and/or events for one resource.
type ResourceUpdate struct {
	Name   string                     `json:"name"`
	Traits map[string]json.RawMessage `json:"traits"`
	Events map[string]json.RawMessage `json:"events"`
}

// Message is one decoded message from the event stream. Unknown top-level
// keys and unknown event types are tolerated and ignored.
type Message struct {
	EventID        string
	Timestamp      time.Time
	ResourceUpdate *ResourceUpdate
	RelationUpdate *RelationUpdate
	ThreadID       string
	ThreadState    ThreadState

	// eventOverride replaces the parsed resource-update events when a
	// notification is delivered with an accumulated session view.
	eventOverride map[Type]Event
}

type wireMessage struct {
	EventID        string          `json:"eventId"`
	Timestamp      string          `json:"timestamp"`
	ResourceUpdate *ResourceUpdate `json:"resourceUpdate"`
	RelationUpdate *RelationUpdate `json:"relationUpdate"`
	ThreadID       string          `json:"eventThreadId"`
	ThreadState    string          `json:"eventThreadState"`
}

// ParseMessage decodes a raw event stream payload.
func ParseMessage(data []byte) (*Message, error) {
	var w wireMessage
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("parse event message: %w", err)
	}
	m := &Message{
		EventID:        w.EventID,
		ResourceUpdate: w.ResourceUpdate,
		RelationUpdate: w.RelationUpdate,
		ThreadID:       w.ThreadID,
		ThreadState:    ThreadState(w.ThreadState),
	}
	if w.Timestamp != "" {
		ts, err := time.Parse(time.RFC3339Nano, w.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("parse event timestamp %q: %w", w.Timestamp, err)
		}
		m.Timestamp = ts.UTC()
	}
	return m, nil
}

// ResourceUpdateName returns the resource name the message updates, or ""
// for relation-only messages.
func (m *Message) ResourceUpdateName() string {
	if m.ResourceUpdate == nil {
		return ""
	}
	return m.ResourceUpdate.Name
}

// ResourceUpdateTraits returns the partial trait payloads in this message.
func (m *Message) ResourceUpdateTraits() map[string]json.RawMessage {
	if m.ResourceUpdate == nil {
		return nil
	}
	return m.ResourceUpdate.Traits
}

// ResourceUpdateEvents returns the typed events in this message, keyed by
// event type. Event names outside the known vocabulary are dropped.
func (m *Message) ResourceUpdateEvents() map[Type]Event {
	if m.eventOverride != nil {
		return m.eventOverride
	}
	if m.ResourceUpdate == nil {
		return nil
	}
	events := make(map[Type]Event, len(m.ResourceUpdate.Events))
	for name, raw := range m.ResourceUpdate.Events {
		if e, ok := buildEvent(Type(name), raw, m.Timestamp); ok {
			events[e.Type] = e
		}
	}
	return events
}

// EventSessions groups the message's events by session id and stamps each
// event with the session's collapsed media type.
func (m *Message) EventSessions() map[string]map[Type]Event {
	events := m.ResourceUpdateEvents()
	if len(events) == 0 {
		return nil
	}
	all := make([]Event, 0, len(events))
	for _, e := range events {
		all = append(all, e)
	}
	mediaType := SessionMediaTypeOf(all)

	sessions := make(map[string]map[Type]Event)
	for t, e := range events {
		e.SessionMediaType = mediaType
		session, ok := sessions[e.SessionID]
		if !ok {
			session = make(map[Type]Event)
			sessions[e.SessionID] = session
		}
		session[t] = e
	}
	return sessions
}

// IsThreadEnded reports whether the message closes an event thread.
func (m *Message) IsThreadEnded() bool {
	return m.ThreadState == ThreadStateEnded
}

// WithEvents returns a copy of the message whose event set is replaced with
// the given accumulated view. Used when delivering session notifications so
// subscribers see the full accumulated contents rather than a single
// message's slice of it.
func (m *Message) WithEvents(events map[Type]Event) *Message {
	clone := *m
	clone.eventOverride = events
	return &clone
}
