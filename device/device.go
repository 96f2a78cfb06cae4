// Nestkit - Google Nest Smart Device Management client SDK
// Copyright 2026 Halcyon Labs
// SPDX-License-Identifier: Apache-2.0
// https://github.com/halcyonlabs/nestkit

// Package device holds the state model for SDM devices and structures: typed
// trait snapshots with per-trait update ordering, event dispatch, and the
// registry tracking every device and structure in an enterprise.
package device

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/halcyonlabs/nestkit/diagnostics"
	"github.com/halcyonlabs/nestkit/event"
	"github.com/halcyonlabs/nestkit/internal/logging"
	"github.com/halcyonlabs/nestkit/media"
	"github.com/halcyonlabs/nestkit/trait"
)

// TypeDoorbell is the display type reported for doorbells. The API omits
// the DoorbellChime trait for some doorbells, so it is filled in from the
// type.
const TypeDoorbell = "sdm.devices.types.DOORBELL"

// ParentRelation links a device to its parent room or structure.
type ParentRelation struct {
	Parent      string `json:"parent"`
	DisplayName string `json:"displayName"`
}

// EventCallback receives event messages dispatched to a device.
type EventCallback func(ctx context.Context, msg *event.Message)

// Device is the live state of one SDM device. Trait updates replace trait
// snapshots atomically; stale updates are dropped using per-trait
// timestamps.
type Device struct {
	name       string
	deviceType string
	exec       trait.CommandExecutor
	diag       *diagnostics.Diagnostics

	mu         sync.RWMutex
	rawTraits  map[trait.Type]json.RawMessage
	traits     map[trait.Type]trait.Trait
	relations  []ParentRelation
	watermarks map[trait.Type]time.Time
	lastEvents map[event.Type]event.Event

	callbackMu sync.Mutex
	callbacks  map[int]EventCallback
	nextID     int

	mediaManager *media.Manager
}

type wireDevice struct {
	Name            string                     `json:"name"`
	Type            string                     `json:"type"`
	Traits          map[string]json.RawMessage `json:"traits"`
	ParentRelations []json.RawMessage          `json:"parentRelations"`
}

// New parses a device from its API representation and binds its
// command-capable traits to exec.
func New(raw json.RawMessage, exec trait.CommandExecutor) (*Device, error) {
	var w wireDevice
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("parse device: %w", err)
	}
	if w.Name == "" {
		return nil, fmt.Errorf("parse device: missing name")
	}
	if w.Traits == nil {
		w.Traits = make(map[string]json.RawMessage)
	}
	// Some doorbells omit the chime trait from the API response.
	if w.Type == TypeDoorbell {
		if _, ok := w.Traits[string(trait.DoorbellChime)]; !ok {
			w.Traits[string(trait.DoorbellChime)] = json.RawMessage(`{}`)
		}
	}

	d := &Device{
		name:       w.Name,
		deviceType: w.Type,
		exec:       exec,
		diag:       diagnostics.New(),
		rawTraits:  make(map[trait.Type]json.RawMessage),
		traits:     make(map[trait.Type]trait.Trait),
		watermarks: make(map[trait.Type]time.Time),
		lastEvents: make(map[event.Type]event.Event),
		callbacks:  make(map[int]EventCallback),
	}
	for name, data := range w.Traits {
		tr, err := trait.BuildOne(trait.Type(name), data, w.Name, exec)
		if err != nil {
			return nil, err
		}
		if tr == nil {
			continue
		}
		d.rawTraits[trait.Type(name)] = data
		d.traits[trait.Type(name)] = tr
	}
	for _, rel := range w.ParentRelations {
		var parsed ParentRelation
		if err := json.Unmarshal(rel, &parsed); err != nil {
			continue
		}
		// Ignore invalid relations
		if parsed.Parent == "" || parsed.DisplayName == "" {
			continue
		}
		d.relations = append(d.relations, parsed)
	}
	d.mediaManager = media.NewManager(w.Name, (*traitSource)(d), d.diag.Subkey("event_media"))
	return d, nil
}

// Name returns the resource name, e.g. "enterprises/XYZ/devices/123".
func (d *Device) Name() string { return d.name }

// Type returns the display type of the device. It should not be used to
// infer functionality; use the traits instead.
func (d *Device) Type() string { return d.deviceType }

// Traits returns a snapshot of the device's traits.
func (d *Device) Traits() map[trait.Type]trait.Trait {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make(map[trait.Type]trait.Trait, len(d.traits))
	for t, tr := range d.traits {
		out[t] = tr
	}
	return out
}

// Trait returns the named trait, or nil when the device lacks it.
func (d *Device) Trait(t trait.Type) trait.Trait {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.traits[t]
}

// ParentRelations maps each parent resource to its display name.
func (d *Device) ParentRelations() map[string]string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make(map[string]string, len(d.relations))
	for _, rel := range d.relations {
		out[rel.Parent] = rel.DisplayName
	}
	return out
}

// DeleteRelation removes the device's relation to the given parent.
func (d *Device) DeleteRelation(parent string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	kept := d.relations[:0]
	for _, rel := range d.relations {
		if rel.Parent != parent {
			kept = append(kept, rel)
		}
	}
	d.relations = kept
}

// CreateRelation records a new parent relation for the device.
func (d *Device) CreateRelation(rel ParentRelation) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.relations = append(d.relations, rel)
}

// MediaManager returns the event media manager for this device.
func (d *Device) MediaManager() *media.Manager {
	return d.mediaManager
}

// Diagnostics returns the per-device counters.
func (d *Device) Diagnostics() *diagnostics.Diagnostics {
	return d.diag
}

// AddEventCallback registers a callback for events dispatched to this
// device. The returned function unregisters it.
func (d *Device) AddEventCallback(cb EventCallback) func() {
	d.callbackMu.Lock()
	defer d.callbackMu.Unlock()
	id := d.nextID
	d.nextID++
	d.callbacks[id] = cb
	return func() {
		d.callbackMu.Lock()
		defer d.callbackMu.Unlock()
		delete(d.callbacks, id)
	}
}

// AddUpdateListener registers a listener invoked on any update to this
// device. The returned function unregisters it.
func (d *Device) AddUpdateListener(listener func()) func() {
	return d.AddEventCallback(func(context.Context, *event.Message) {
		listener()
	})
}

// HandleEvent applies an event message addressed to this device: trait
// updates first, then event media handling, then registered callbacks.
func (d *Device) HandleEvent(ctx context.Context, msg *event.Message) error {
	logging.Debug().Str("event_id", msg.EventID).Time("timestamp", msg.Timestamp).Msg("Processing update")
	name := msg.ResourceUpdateName()
	if name == "" {
		return fmt.Errorf("event was not a resource update")
	}
	if name != d.name {
		return fmt.Errorf("resource update for %s does not match device %s", name, d.name)
	}
	d.handleTraits(msg)
	d.recordEvents(msg)
	if err := d.mediaManager.HandleEvents(ctx, msg); err != nil {
		return err
	}
	d.callbackMu.Lock()
	cbs := make([]EventCallback, 0, len(d.callbacks))
	for _, cb := range d.callbacks {
		cbs = append(cbs, cb)
	}
	d.callbackMu.Unlock()
	for _, cb := range cbs {
		cb(ctx, msg)
	}
	return nil
}

// handleTraits merges partial trait payloads into the device state. Updates
// older than the last applied update for a trait are discarded; traits the
// device does not already carry are ignored.
func (d *Device) handleTraits(msg *event.Message) {
	updates := msg.ResourceUpdateTraits()
	if len(updates) == 0 {
		return
	}
	logging.Debug().Int("traits", len(updates)).Msg("Trait update")

	d.mu.Lock()
	defer d.mu.Unlock()
	for name, delta := range updates {
		t := trait.Type(name)
		if !trait.Known(t) {
			continue
		}
		existing, ok := d.rawTraits[t]
		if !ok {
			// Only merge updates into traits the device already has.
			continue
		}
		if ts, ok := d.watermarks[t]; ok && ts.After(msg.Timestamp) {
			logging.Debug().Time("timestamp", msg.Timestamp).Str("trait", name).Msg("Discarding stale update")
			continue
		}
		merged, err := mergeRawTrait(existing, delta)
		if err != nil {
			logging.Warn().Err(err).Str("trait", name).Msg("Failed to merge trait update")
			continue
		}
		rebuilt, err := trait.BuildOne(t, merged, d.name, d.exec)
		if err != nil {
			logging.Warn().Err(err).Str("trait", name).Msg("Failed to parse trait update")
			continue
		}
		d.rawTraits[t] = merged
		d.traits[t] = rebuilt
		d.watermarks[t] = msg.Timestamp
	}
}

// recordEvents tracks the most recent event per type for ActiveEvent.
func (d *Device) recordEvents(msg *event.Message) {
	events := msg.ResourceUpdateEvents()
	if len(events) == 0 {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	for t, e := range events {
		if last, ok := d.lastEvents[t]; ok && last.Timestamp.After(e.Timestamp) {
			continue
		}
		d.lastEvents[t] = e
	}
}

// LastEvent returns the most recent event of the given type, if any.
func (d *Device) LastEvent(t event.Type) (event.Event, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	e, ok := d.lastEvents[t]
	return e, ok
}

// ActiveEvent returns the most recent event of the given type if it has not
// yet expired at now.
func (d *Device) ActiveEvent(t event.Type, now time.Time) (event.Event, bool) {
	e, ok := d.LastEvent(t)
	if !ok || e.Expired(now) {
		return event.Event{}, false
	}
	return e, true
}

// mergeRawTrait overlays the fields of delta onto existing at the top
// level, producing the merged raw trait payload.
func mergeRawTrait(existing, delta json.RawMessage) (json.RawMessage, error) {
	base := make(map[string]any)
	if len(existing) > 0 {
		if err := json.Unmarshal(existing, &base); err != nil {
			return nil, err
		}
	}
	update := make(map[string]any)
	if err := json.Unmarshal(delta, &update); err != nil {
		return nil, err
	}
	for k, v := range update {
		base[k] = v
	}
	return json.Marshal(base)
}

// traitSource adapts Device to the media manager's view of its traits.
type traitSource Device

func (s *traitSource) ClipPreviewTrait() *trait.CameraClipPreviewTrait {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if tr, ok := s.traits[trait.CameraClipPreview].(*trait.CameraClipPreviewTrait); ok {
		return tr
	}
	return nil
}

func (s *traitSource) EventImageTrait() *trait.CameraEventImageTrait {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if tr, ok := s.traits[trait.CameraEventImage].(*trait.CameraEventImageTrait); ok {
		return tr
	}
	return nil
}

func (s *traitSource) SupportsEventType(t event.Type) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, tr := range s.traits {
		if et, ok := tr.(trait.EventTrait); ok && et.EventType() == t {
			return true
		}
	}
	return false
}
