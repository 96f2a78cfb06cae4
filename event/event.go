// Nestkit - Google Nest Smart Device Management client SDK
// Copyright 2026 Halcyon Labs
// SPDX-License-Identifier: Apache-2.0
// https://github.com/halcyonlabs/nestkit

// Package event models messages from the SDM event stream: typed camera and
// doorbell events, the opaque event token used for media lookup, and the
// pub/sub message envelope carrying trait and relation updates.
package event

import (
	"encoding/hex"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/crypto/blake2b"
)

// MediaType classifies the media associated with an event.
type MediaType string

const (
	// MediaTypeImage is a still snapshot.
	MediaTypeImage MediaType = "image/jpeg"
	// MediaTypeClipPreview is a short video clip.
	MediaTypeClipPreview MediaType = "video/mp4"
	// MediaTypeImagePreview is an animated thumbnail derived from a clip.
	MediaTypeImagePreview MediaType = "image/gif"
)

// Type identifies an event variant by its SDM event name.
type Type string

const (
	CameraMotion      Type = "sdm.devices.events.CameraMotion.Motion"
	CameraPerson      Type = "sdm.devices.events.CameraPerson.Person"
	CameraSound       Type = "sdm.devices.events.CameraSound.Sound"
	DoorbellChime     Type = "sdm.devices.events.DoorbellChime.Chime"
	CameraClipPreview Type = "sdm.devices.events.CameraClipPreview.ClipPreview"
)

// Event images expire shortly after the event is published.
const ImageTTL = 30 * time.Second

// Clip previews carry no expiration in the API; 15 minutes is the
// conventional window.
const ClipPreviewTTL = 15 * time.Minute

// eventSpec describes one known event variant. The table is fixed at compile
// time; unknown event names on the wire are ignored.
type eventSpec struct {
	mediaType MediaType
	ttl       time.Duration
}

var eventTable = map[Type]eventSpec{
	CameraMotion:      {MediaTypeImage, ImageTTL},
	CameraPerson:      {MediaTypeImage, ImageTTL},
	CameraSound:       {MediaTypeImage, ImageTTL},
	DoorbellChime:     {MediaTypeImage, ImageTTL},
	CameraClipPreview: {MediaTypeClipPreview, ClipPreviewTTL},
}

// KnownType reports whether t is part of the supported event vocabulary.
func KnownType(t Type) bool {
	_, ok := eventTable[t]
	return ok
}

// Event is one reported occurrence within an event session. Events are
// immutable once constructed; a newer event of the same type supersedes the
// active pointer held by the corresponding trait.
type Event struct {
	Type       Type      `json:"event_type"`
	SessionID  string    `json:"event_session_id"`
	EventID    string    `json:"event_id,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
	Zones      []string  `json:"zones,omitempty"`
	PreviewURL string    `json:"preview_url,omitempty"`

	// SessionMediaType overrides the variant's default media type when the
	// surrounding session carries richer media (e.g. a clip preview).
	SessionMediaType MediaType `json:"event_image_type,omitempty"`
}

// ID returns the identifier used for image generation and token encoding.
// Clip previews have no server-side event id, so the preview URL hash is
// used instead.
func (e Event) ID() string {
	if e.Type == CameraClipPreview {
		sum := blake2b.Sum512([]byte(e.PreviewURL))
		return hex.EncodeToString(sum[:])
	}
	return e.EventID
}

// MediaType returns the media classification for this event, honoring any
// session-level override.
func (e Event) MediaType() MediaType {
	if e.SessionMediaType != "" {
		return e.SessionMediaType
	}
	return eventTable[e.Type].mediaType
}

// ExpiresAt returns the moment the event's media stops being fetchable.
func (e Event) ExpiresAt() time.Time {
	ttl := eventTable[e.Type].ttl
	if ttl == 0 {
		ttl = ImageTTL
	}
	return e.Timestamp.Add(ttl)
}

// Expired reports whether the event's expiration has passed at now.
func (e Event) Expired(now time.Time) bool {
	return !now.Before(e.ExpiresAt())
}

// Token returns the encoded event token for this event.
func (e Event) Token() string {
	return Token{SessionID: e.SessionID, EventID: e.ID()}.Encode()
}

// wireEvent is the payload shape of a single event in a resourceUpdate.
type wireEvent struct {
	SessionID  string   `json:"eventSessionId"`
	EventID    string   `json:"eventId"`
	PreviewURL string   `json:"previewUrl"`
	Zones      []string `json:"zones"`
}

// buildEvent constructs a typed event from raw payload data. Returns false
// for event names outside the known vocabulary.
func buildEvent(t Type, data json.RawMessage, timestamp time.Time) (Event, bool) {
	if !KnownType(t) {
		return Event{}, false
	}
	var w wireEvent
	if err := json.Unmarshal(data, &w); err != nil {
		return Event{}, false
	}
	return Event{
		Type:       t,
		SessionID:  w.SessionID,
		EventID:    w.EventID,
		Timestamp:  timestamp,
		Zones:      w.Zones,
		PreviewURL: w.PreviewURL,
	}, true
}

// SessionMediaTypeOf determines the media type to report for a set of events
// in one session: any non-image media (a clip preview) wins over snapshots.
func SessionMediaTypeOf(events []Event) MediaType {
	for _, e := range events {
		if mt := eventTable[e.Type].mediaType; mt != MediaTypeImage {
			return mt
		}
	}
	return MediaTypeImage
}
