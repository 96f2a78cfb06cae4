// Nestkit - Google Nest Smart Device Management client SDK
// Copyright 2026 Halcyon Labs
// SPDX-License-Identifier: Apache-2.0
// https://github.com/halcyonlabs/nestkit

// Package media manages the lifecycle of event media for a single device: a
// bounded FIFO cache of event sessions, optional eager pre-fetch of
// snapshots and clip previews, and token-based retrieval of stored media.
package media

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/halcyonlabs/nestkit/diagnostics"
	"github.com/halcyonlabs/nestkit/event"
	"github.com/halcyonlabs/nestkit/internal/logging"
	"github.com/halcyonlabs/nestkit/trait"
)

// SnapshotWidthPx is the width requested for event snapshots. Large enough
// for processing without being a size problem.
const SnapshotWidthPx = 1600

// TraitSource exposes the live traits the manager needs from its device.
// The device's trait set changes as updates arrive, so the manager asks
// rather than caching.
type TraitSource interface {
	// ClipPreviewTrait returns the clip preview trait, or nil.
	ClipPreviewTrait() *trait.CameraClipPreviewTrait

	// EventImageTrait returns the event image trait, or nil.
	EventImageTrait() *trait.CameraEventImageTrait

	// SupportsEventType reports whether the device has a trait emitting the
	// given event type.
	SupportsEventType(t event.Type) bool
}

// UpdateCallback receives event messages after the manager has reconciled
// sessions and fetched media.
type UpdateCallback func(ctx context.Context, msg *event.Message)

// Manager tracks recent event sessions for one device and serves their
// media.
type Manager struct {
	deviceID string
	source   TraitSource
	diag     *diagnostics.Diagnostics

	mu       sync.Mutex
	policy   *CachePolicy
	callback UpdateCallback

	now func() time.Time
}

// NewManager returns a manager for the given device with the default cache
// policy.
func NewManager(deviceID string, source TraitSource, diag *diagnostics.Diagnostics) *Manager {
	return &Manager{
		deviceID: deviceID,
		source:   source,
		diag:     diag,
		policy:   NewCachePolicy(),
		now:      time.Now,
	}
}

// CachePolicy returns the active cache policy.
func (m *Manager) CachePolicy() *CachePolicy {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.policy
}

// SetCachePolicy replaces the cache policy.
func (m *Manager) SetCachePolicy(policy *CachePolicy) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if policy.Store == nil {
		policy.Store = NewInMemoryStore()
	}
	m.policy = policy
}

// SetUpdateCallback registers the callback invoked when notifiable events
// arrive.
func (m *Manager) SetUpdateCallback(cb UpdateCallback) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callback = cb
}

// supportsFetch reports whether the device can produce media at all.
func (m *Manager) supportsFetch() bool {
	return m.source.ClipPreviewTrait() != nil || m.source.EventImageTrait() != nil
}

// loadRecords returns this device's session records from the store, oldest
// first. Caller holds m.mu.
func (m *Manager) loadRecords(ctx context.Context) ([]*SessionRecord, error) {
	data, err := m.policy.Store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load event media model: %w", err)
	}
	records := data[m.deviceID]
	for _, r := range records {
		r.normalize()
	}
	return records, nil
}

// saveRecords persists this device's session records. Caller holds m.mu.
func (m *Manager) saveRecords(ctx context.Context, records []*SessionRecord) error {
	data, err := m.policy.Store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load event media model: %w", err)
	}
	if data == nil {
		data = make(map[string][]*SessionRecord)
	}
	data[m.deviceID] = records
	if err := m.policy.Store.Save(ctx, data); err != nil {
		return fmt.Errorf("save event media model: %w", err)
	}
	return nil
}

func findRecord(records []*SessionRecord, sessionID string) *SessionRecord {
	for _, r := range records {
		if r.SessionID == sessionID {
			return r
		}
	}
	return nil
}

// fetchMedia fetches any missing media for the record. Clip-capable devices
// fetch the session clip; image-capable devices fetch a snapshot per
// unexpired event.
func (m *Manager) fetchMedia(ctx context.Context, r *SessionRecord) error {
	store := m.policy.Store
	now := m.now()

	if clipTrait := m.source.ClipPreviewTrait(); clipTrait != nil {
		m.diag.Increment("fetch_clip")
		visible, hasVisible := r.visibleEvent()
		clip, hasClip := r.Events[event.CameraClipPreview]
		if r.MediaKey != "" || !hasVisible || !hasClip || clip.Expired(now) {
			m.diag.Increment("fetch_clip.skip")
			return nil
		}
		contents, err := clipTrait.DownloadPreview(ctx, clip.PreviewURL)
		if err != nil {
			return err
		}
		mediaKey := store.ClipPreviewMediaKey(m.deviceID, visible)
		r.MediaKey = mediaKey
		logging.Debug().Str("media_key", mediaKey).Str("session_id", r.SessionID).Msg("Saving media")
		m.diag.Increment("fetch_clip.save")
		return store.SaveMedia(ctx, mediaKey, contents)
	}

	imageTrait := m.source.EventImageTrait()
	if imageTrait == nil {
		return nil
	}
	m.diag.Increment("fetch_image")
	for _, e := range r.Events {
		if _, done := r.EventMediaKeys[e.EventID]; done || e.Expired(now) {
			m.diag.Increment("fetch_image.skip")
			continue
		}
		img, err := imageTrait.GenerateImage(ctx, e.EventID)
		if err != nil {
			return err
		}
		contents, err := img.Contents(ctx, SnapshotWidthPx)
		if err != nil {
			return err
		}
		mediaKey := store.ImageMediaKey(m.deviceID, e)
		if r.EventMediaKeys == nil {
			r.EventMediaKeys = make(map[string]string)
		}
		r.EventMediaKeys[e.EventID] = mediaKey
		logging.Debug().Str("media_key", mediaKey).Str("session_id", r.SessionID).Msg("Saving media")
		m.diag.Increment("fetch_image.save")
		if err := store.SaveMedia(ctx, mediaKey, contents); err != nil {
			return err
		}
	}
	return nil
}

// HandleEvents reconciles an event message into the session model, fetches
// media per policy, delivers notifications and evicts old sessions.
func (m *Manager) HandleEvents(ctx context.Context, msg *event.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.diag.Increment("event")
	sessions := msg.EventSessions()
	if len(sessions) == 0 {
		return nil
	}
	recvLatency := m.now().Sub(msg.Timestamp)

	// Drop sessions whose events are all unsupported by the device.
	for sessionID, events := range sessions {
		supported := false
		for t, e := range events {
			if !e.Expired(m.now()) {
				m.diag.Elapsed(string(t), recvLatency)
			} else {
				m.diag.Elapsed(string(t)+"_expired", recvLatency)
			}
			if !m.source.SupportsEventType(t) {
				m.diag.Increment("event.unsupported." + string(t))
				logging.Debug().Str("event_type", string(t)).Msg("Unsupported event trait")
				continue
			}
			supported = true
		}
		if !supported {
			delete(sessions, sessionID)
		}
	}

	records, err := m.loadRecords(ctx)
	if err != nil {
		return err
	}

	prefetch := m.supportsFetch() && m.policy.Fetch
	var touched []*SessionRecord
	failure := false
	for sessionID, events := range sessions {
		r := findRecord(records, sessionID)
		if r != nil {
			m.diag.Increment("event.update")
			r.mergeEvents(events)
		} else {
			m.diag.Increment("event.new")
			r = &SessionRecord{SessionID: sessionID}
			r.mergeEvents(events)
			records = append(records, r)
		}
		touched = append(touched, r)

		if prefetch {
			m.diag.Increment("event.fetch")
			if err := m.prefetchOne(ctx, r); err != nil {
				m.diag.Increment("event.fetch_error")
				failure = true
				logging.Warn().Err(err).Str("session_id", sessionID).Msg("Failure when pre-fetching event media")
			}
		}
	}

	// Deliver undelivered events. A session whose media has not landed yet
	// is held back only while pre-fetch is still expected to produce it.
	pending := make(map[event.Type]event.Event)
	for _, r := range touched {
		if r.anyMediaKey() == "" && prefetch && !msg.IsThreadEnded() && !failure {
			continue
		}
		for t, e := range r.pendingEvents() {
			pending[t] = e
		}
	}
	if len(pending) > 0 {
		notify := msg.WithEvents(pending)
		if m.callback != nil {
			m.diag.Increment("event.notify")
			m.callback(ctx, notify)
		}
	} else {
		logging.Debug().Msg("Message did not contain notifiable events")
	}

	for _, r := range touched {
		r.notified(pending)
	}
	records = m.expire(ctx, records)
	return m.saveRecords(ctx, records)
}

// prefetchOne runs a rate-limited media fetch for one record.
func (m *Manager) prefetchOne(ctx context.Context, r *SessionRecord) error {
	if m.policy.FetchLimiter != nil {
		if err := m.policy.FetchLimiter.Wait(ctx); err != nil {
			return fmt.Errorf("fetch rate limit: %w", err)
		}
	}
	return m.fetchMedia(ctx, r)
}

// expire drops the oldest sessions once the cache exceeds its bound,
// purging their media. Eviction happens in batches so a full cache does not
// thrash.
func (m *Manager) expire(ctx context.Context, records []*SessionRecord) []*SessionRecord {
	logging.Debug().Int("size", len(records)).Msg("Checking cache size")
	if len(records) <= m.policy.EventCacheSize {
		return records
	}
	count := m.policy.expireCount()
	logging.Debug().Int("count", count).Msg("Expiring cache")
	for i := 0; i < count && len(records) > 0; i++ {
		old := records[0]
		records = records[1:]
		logging.Debug().Str("session_id", old.SessionID).Strs("media_keys", old.allMediaKeys()).Msg("Expiring media")
		for _, key := range old.allMediaKeys() {
			if err := m.policy.Store.RemoveMedia(ctx, key); err != nil {
				logging.Warn().Err(err).Str("media_key", key).Msg("Failed to remove expired media")
			}
		}
	}
	return records
}

// GetMediaFromToken returns the media for an encoded event token, or nil
// when the event is unknown or its media is gone.
func (m *Manager) GetMediaFromToken(ctx context.Context, eventToken string) (*Media, error) {
	tok, err := event.DecodeToken(eventToken)
	if err != nil {
		return nil, err
	}
	return m.GetMedia(ctx, tok)
}

// GetMedia returns the media for a decoded token. When the media was never
// pre-fetched and the event is still fetchable, it is fetched on demand and
// cached so subsequent calls are served from the store.
func (m *Manager) GetMedia(ctx context.Context, tok event.Token) (*Media, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	records, err := m.loadRecords(ctx)
	if err != nil {
		return nil, err
	}
	r := findRecord(records, tok.SessionID)
	if r == nil {
		m.diag.Increment("get_media.invalid_event")
		logging.Debug().Str("session_id", tok.SessionID).Msg("No event information found for event")
		return nil, nil
	}

	mediaKey := r.mediaKeyForToken(tok)
	if mediaKey == "" && m.supportsFetch() {
		if err := m.fetchMedia(ctx, r); err != nil {
			return nil, err
		}
		if err := m.saveRecords(ctx, records); err != nil {
			return nil, err
		}
		mediaKey = r.mediaKeyForToken(tok)
	}
	if mediaKey == "" {
		m.diag.Increment("get_media.no_media")
		logging.Debug().Str("session_id", tok.SessionID).Msg("No persisted media for event")
		return nil, nil
	}

	contents, err := m.policy.Store.LoadMedia(ctx, mediaKey)
	if err != nil {
		return nil, fmt.Errorf("load media %s: %w", mediaKey, err)
	}
	if contents == nil {
		m.diag.Increment("get_media.empty")
		logging.Debug().Str("session_id", tok.SessionID).Str("media_key", mediaKey).Msg("Unable to load persisted media")
		return nil, nil
	}
	visible, ok := r.visibleEvent()
	if !ok {
		return nil, nil
	}
	m.diag.Increment("get_media.success")
	return &Media{Contents: contents, MediaType: visible.MediaType()}, nil
}

// GetClipThumbnailFromToken returns a transcoded thumbnail for a clip
// session, producing and caching it on first use. Returns nil when the
// session has no clip or transcoding is unavailable.
func (m *Manager) GetClipThumbnailFromToken(ctx context.Context, eventToken string) (*Media, error) {
	m.diag.Increment("get_clip")
	tok, err := event.DecodeToken(eventToken)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	records, err := m.loadRecords(ctx)
	if err != nil {
		return nil, err
	}
	r := findRecord(records, tok.SessionID)
	if r == nil {
		m.diag.Increment("get_clip.invalid_event")
		logging.Debug().Str("session_id", tok.SessionID).Msg("No event information found for event")
		return nil, nil
	}
	visible, ok := r.visibleEvent()
	if !ok {
		m.diag.Increment("get_clip.invalid_event")
		return nil, nil
	}

	if r.ThumbnailMediaKey != "" {
		contents, err := m.policy.Store.LoadMedia(ctx, r.ThumbnailMediaKey)
		if err != nil {
			return nil, fmt.Errorf("load media %s: %w", r.ThumbnailMediaKey, err)
		}
		if contents != nil {
			m.diag.Increment("get_clip.cached")
			return &Media{Contents: contents, MediaType: event.MediaTypeImagePreview}, nil
		}
		logging.Debug().Str("media_key", r.ThumbnailMediaKey).Msg("Thumbnail does not exist; transcoding")
	}

	mediaKey := r.mediaKeyForToken(tok)
	if mediaKey == "" {
		m.diag.Increment("get_clip.no_media")
		logging.Debug().Str("session_id", tok.SessionID).Msg("No persisted media for event")
		return nil, nil
	}

	thumbnailKey := m.policy.Store.ClipPreviewThumbnailMediaKey(m.deviceID, visible)
	if m.policy.Transcoder == nil || thumbnailKey == "" {
		m.diag.Increment("get_clip.no_transcoding")
		logging.Debug().Msg("Clip transcoding disabled")
		return nil, nil
	}

	if err := m.policy.Transcoder.TranscodeClip(ctx, mediaKey, thumbnailKey); err != nil {
		m.diag.Increment("get_clip.transcode_error")
		logging.Debug().Err(err).Msg("Failure to transcode clip thumbnail")
		return nil, nil
	}

	contents, err := m.policy.Store.LoadMedia(ctx, thumbnailKey)
	if err != nil {
		return nil, fmt.Errorf("load media %s: %w", thumbnailKey, err)
	}
	if contents == nil {
		m.diag.Increment("get_clip.load_error")
		logging.Debug().Str("media_key", thumbnailKey).Msg("Failed to load transcoded clip")
		return nil, nil
	}

	r.ThumbnailMediaKey = thumbnailKey
	if err := m.saveRecords(ctx, records); err != nil {
		return nil, err
	}
	m.diag.Increment("get_clip.success")
	return &Media{Contents: contents, MediaType: event.MediaTypeImagePreview}, nil
}

// ImageSessions returns the recent image-backed events that have media to
// serve, newest first.
func (m *Manager) ImageSessions(ctx context.Context) ([]ImageSession, error) {
	m.diag.Increment("load_image_sessions")
	m.mu.Lock()
	defer m.mu.Unlock()

	records, err := m.loadRecords(ctx)
	if err != nil {
		return nil, err
	}
	var out []ImageSession
	for _, r := range records {
		if !r.hasMedia() {
			continue
		}
		for _, e := range r.Events {
			if r.MediaKey == "" {
				if _, ok := r.EventMediaKeys[e.EventID]; !ok {
					continue
				}
			}
			out = append(out, ImageSession{
				EventToken: e.Token(),
				Timestamp:  e.Timestamp,
				EventType:  e.Type,
			})
		}
	}
	sortSessionsByTimeDesc(out)
	return out, nil
}

// ClipPreviewSessions returns the recent clip-backed sessions that have
// media to serve, newest first. Each session collapses to its earliest
// visible event.
func (m *Manager) ClipPreviewSessions(ctx context.Context) ([]ClipPreviewSession, error) {
	m.diag.Increment("load_clip_previews")
	m.mu.Lock()
	defer m.mu.Unlock()

	records, err := m.loadRecords(ctx)
	if err != nil {
		return nil, err
	}
	var out []ClipPreviewSession
	for _, r := range records {
		if !r.hasMedia() {
			continue
		}
		var visible []event.Event
		for _, e := range r.Events {
			if isVisibleEventType(e.Type) {
				visible = append(visible, e)
			}
		}
		if len(visible) == 0 {
			logging.Debug().Str("session_id", r.SessionID).Msg("Partial event in storage")
			continue
		}
		sortEventsByTimeAsc(visible)
		types := make([]event.Type, 0, len(visible))
		for _, e := range visible {
			types = append(types, e.Type)
		}
		out = append(out, ClipPreviewSession{
			EventToken: visible[0].Token(),
			Timestamp:  visible[0].Timestamp,
			EventTypes: types,
		})
	}
	sortClipsByTimeDesc(out)
	return out, nil
}

func isVisibleEventType(t event.Type) bool {
	for _, v := range visibleEventOrder {
		if v == t {
			return true
		}
	}
	return false
}
