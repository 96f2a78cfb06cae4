// Nestkit - Google Nest Smart Device Management client SDK
// Copyright 2026 Halcyon Labs
// SPDX-License-Identifier: Apache-2.0
// https://github.com/halcyonlabs/nestkit

package media

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/halcyonlabs/nestkit/event"
)

// Media is fetched media content for an event.
type Media struct {
	Contents  []byte
	MediaType event.MediaType
}

// ContentType returns the MIME content type of the media.
func (m Media) ContentType() string {
	return string(m.MediaType)
}

// ImageSession describes one image-backed event available for serving.
type ImageSession struct {
	// EventToken fetches the media for the event.
	EventToken string
	Timestamp  time.Time
	EventType  event.Type
}

// ClipPreviewSession describes one clip-backed event session available for
// serving.
type ClipPreviewSession struct {
	// EventToken fetches the media for the session.
	EventToken string
	Timestamp  time.Time
	EventTypes []event.Type
}

// SessionRecord is the persisted state of one event session: its accumulated
// events, the media keys assigned so far, and which events still await
// notification. Records are stored per device in insertion order so the
// oldest session can be evicted first.
type SessionRecord struct {
	SessionID         string                     `json:"eventSessionId"`
	Events            map[event.Type]event.Event `json:"events"`
	MediaKey          string                     `json:"mediaKey,omitempty"`
	EventMediaKeys    map[string]string          `json:"eventMediaKeys,omitempty"`
	ThumbnailMediaKey string                     `json:"thumbnailMediaKey,omitempty"`
	PendingEventTypes []event.Type               `json:"pendingEventTypes,omitempty"`
}

// normalize re-links the session media type across all events after loading
// from the store.
func (r *SessionRecord) normalize() {
	all := make([]event.Event, 0, len(r.Events))
	for _, e := range r.Events {
		all = append(all, e)
	}
	mediaType := event.SessionMediaTypeOf(all)
	for t, e := range r.Events {
		e.SessionMediaType = mediaType
		r.Events[t] = e
	}
}

// visibleEventOrder collapses a session's events to a single representative,
// most interesting first.
var visibleEventOrder = []event.Type{
	event.DoorbellChime,
	event.CameraPerson,
	event.CameraMotion,
	event.CameraSound,
}

// visibleEvent returns the primary visible event for the session, or false
// when the session has none (e.g. a clip preview arrived alone).
func (r *SessionRecord) visibleEvent() (event.Event, bool) {
	for _, t := range visibleEventOrder {
		if e, ok := r.Events[t]; ok {
			return e, true
		}
	}
	return event.Event{}, false
}

// mergeEvents folds new incoming events into the record. Event types not
// seen before in this session become pending notification.
func (r *SessionRecord) mergeEvents(incoming map[event.Type]event.Event) {
	if r.Events == nil {
		r.Events = make(map[event.Type]event.Event, len(incoming))
	}
	for t, e := range incoming {
		if _, seen := r.Events[t]; !seen {
			r.PendingEventTypes = append(r.PendingEventTypes, t)
		}
		r.Events[t] = e
	}
}

// pendingEvents returns the events in this record that have not yet been
// delivered to the update callback.
func (r *SessionRecord) pendingEvents() map[event.Type]event.Event {
	out := make(map[event.Type]event.Event, len(r.PendingEventTypes))
	for _, t := range r.PendingEventTypes {
		if e, ok := r.Events[t]; ok {
			out[t] = e
		}
	}
	return out
}

// notified clears the pending flag for the given event types.
func (r *SessionRecord) notified(types map[event.Type]event.Event) {
	if len(types) == 0 {
		return
	}
	remaining := r.PendingEventTypes[:0]
	for _, t := range r.PendingEventTypes {
		if _, ok := types[t]; !ok {
			remaining = append(remaining, t)
		}
	}
	r.PendingEventTypes = remaining
}

// mediaKeyForToken resolves the media key for a decoded token, falling back
// to the session-level media key for clip sessions.
func (r *SessionRecord) mediaKeyForToken(tok event.Token) string {
	if tok.EventID != "" {
		if key, ok := r.EventMediaKeys[tok.EventID]; ok {
			return key
		}
	}
	return r.MediaKey
}

// anyMediaKey returns any assigned media key, or "" when no media has been
// fetched for the session yet.
func (r *SessionRecord) anyMediaKey() string {
	if r.MediaKey != "" {
		return r.MediaKey
	}
	for _, key := range r.EventMediaKeys {
		return key
	}
	return ""
}

// allMediaKeys returns every media key owned by the record, for purging.
func (r *SessionRecord) allMediaKeys() []string {
	var keys []string
	if r.MediaKey != "" {
		keys = append(keys, r.MediaKey)
	}
	if r.ThumbnailMediaKey != "" {
		keys = append(keys, r.ThumbnailMediaKey)
	}
	for _, key := range r.EventMediaKeys {
		keys = append(keys, key)
	}
	return keys
}

// hasMedia reports whether the session has any fetched media to serve.
func (r *SessionRecord) hasMedia() bool {
	return r.MediaKey != "" || len(r.EventMediaKeys) > 0
}

// EventMediaStore persists session records and their media content. The
// model data maps device id to that device's session records, oldest first.
type EventMediaStore interface {
	// Load returns the persisted model data, or nil when nothing has been
	// saved yet.
	Load(ctx context.Context) (map[string][]*SessionRecord, error)

	// Save persists the model data.
	Save(ctx context.Context, data map[string][]*SessionRecord) error

	// MediaKey returns the storage key for the session-level media of the
	// device and event.
	MediaKey(deviceID string, e event.Event) string

	// ImageMediaKey returns the storage key for a per-event snapshot.
	ImageMediaKey(deviceID string, e event.Event) string

	// ClipPreviewMediaKey returns the storage key for a session clip.
	ClipPreviewMediaKey(deviceID string, e event.Event) string

	// ClipPreviewThumbnailMediaKey returns the storage key for the
	// transcoded clip thumbnail, or "" when thumbnails are unsupported.
	ClipPreviewThumbnailMediaKey(deviceID string, e event.Event) string

	// LoadMedia returns stored media content, or (nil, nil) when absent.
	LoadMedia(ctx context.Context, mediaKey string) ([]byte, error)

	// SaveMedia writes media content.
	SaveMedia(ctx context.Context, mediaKey string, content []byte) error

	// RemoveMedia deletes media content. Removing an absent key is not an
	// error.
	RemoveMedia(ctx context.Context, mediaKey string) error
}

// InMemoryStore is an EventMediaStore holding everything in process memory.
// It is the default store and is suitable for tests and short-lived
// programs.
type InMemoryStore struct {
	mu    sync.Mutex
	data  map[string][]*SessionRecord
	media map[string][]byte
}

// NewInMemoryStore returns an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{media: make(map[string][]byte)}
}

func (s *InMemoryStore) Load(_ context.Context) (map[string][]*SessionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data, nil
}

func (s *InMemoryStore) Save(_ context.Context, data map[string][]*SessionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = data
	return nil
}

func (s *InMemoryStore) MediaKey(deviceID string, e event.Event) string {
	suffix := "jpg"
	if e.MediaType() == event.MediaTypeClipPreview {
		suffix = "mp4"
	}
	return fmt.Sprintf("%s_%s_%s.%s", deviceID, e.Timestamp.UTC().Format(time.RFC3339), e.SessionID, suffix)
}

func (s *InMemoryStore) ImageMediaKey(deviceID string, e event.Event) string {
	return fmt.Sprintf("%s_%s_%s_%s.jpg", deviceID, e.Timestamp.UTC().Format(time.RFC3339), e.SessionID, e.EventID)
}

func (s *InMemoryStore) ClipPreviewMediaKey(deviceID string, e event.Event) string {
	return fmt.Sprintf("%s_%s_%s.mp4", deviceID, e.Timestamp.UTC().Format(time.RFC3339), e.SessionID)
}

func (s *InMemoryStore) ClipPreviewThumbnailMediaKey(deviceID string, e event.Event) string {
	return fmt.Sprintf("%s_%s_%s_thumb.gif", deviceID, e.Timestamp.UTC().Format(time.RFC3339), e.SessionID)
}

func (s *InMemoryStore) LoadMedia(_ context.Context, mediaKey string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.media[mediaKey], nil
}

func (s *InMemoryStore) SaveMedia(_ context.Context, mediaKey string, content []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.media[mediaKey] = content
	return nil
}

func (s *InMemoryStore) RemoveMedia(_ context.Context, mediaKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.media, mediaKey)
	return nil
}
