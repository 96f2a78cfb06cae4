// Nestkit - Google Nest Smart Device Management client SDK
// Copyright 2026 Halcyon Labs
// SPDX-License-Identifier: Apache-2.0
// https://github.com/halcyonlabs/nestkit

package device

import (
	"context"
	"fmt"
	"sync"

	"github.com/halcyonlabs/nestkit/event"
	"github.com/halcyonlabs/nestkit/internal/logging"
	"github.com/halcyonlabs/nestkit/media"
)

// unknownStructureName is used when a relation points at a structure the
// manager does not know.
const unknownStructureName = "Unknown"

// Lister fetches the current device and structure inventory from the API.
// Implemented by the api package.
type Lister interface {
	ListDevices(ctx context.Context) ([]*Device, error)
	ListStructures(ctx context.Context) ([]*Structure, error)
}

// Manager tracks the current state of all devices and structures and routes
// event messages to the right device.
type Manager struct {
	mu         sync.RWMutex
	devices    map[string]*Device
	structures map[string]*Structure
	policy     *media.CachePolicy
	callback   media.UpdateCallback
}

// NewManager returns an empty manager. A nil policy gets the default cache
// policy; the policy is shared by every tracked device's media manager.
func NewManager(policy *media.CachePolicy) *Manager {
	if policy == nil {
		policy = media.NewCachePolicy()
	}
	return &Manager{
		devices:    make(map[string]*Device),
		structures: make(map[string]*Structure),
		policy:     policy,
	}
}

// CachePolicy returns the cache policy shared across tracked devices.
func (m *Manager) CachePolicy() *media.CachePolicy {
	return m.policy
}

// Devices returns a snapshot of the tracked devices by resource name.
func (m *Manager) Devices() map[string]*Device {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]*Device, len(m.devices))
	for name, d := range m.devices {
		out[name] = d
	}
	return out
}

// Structures returns a snapshot of the tracked structures by resource name.
func (m *Manager) Structures() map[string]*Structure {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]*Structure, len(m.structures))
	for name, s := range m.structures {
		out[name] = s
	}
	return out
}

// Device returns the tracked device with the given resource name, or nil.
func (m *Manager) Device(name string) *Device {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.devices[name]
}

// Structure returns the tracked structure with the given resource name, or
// nil.
func (m *Manager) Structure(name string) *Structure {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.structures[name]
}

// AddDevice starts tracking a device. The manager's cache policy and update
// callback are shared with the device's media manager.
func (m *Manager) AddDevice(d *Device) error {
	if d.Name() == "" {
		return fmt.Errorf("device has no name")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.devices[d.Name()] = d
	d.MediaManager().SetCachePolicy(m.policy)
	if m.callback != nil {
		d.MediaManager().SetUpdateCallback(m.callback)
	}
	return nil
}

// AddStructure starts tracking a structure.
func (m *Manager) AddStructure(s *Structure) error {
	if s.Name() == "" {
		return fmt.Errorf("structure has no name")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.structures[s.Name()] = s
	return nil
}

// SetUpdateCallback registers the callback shared by all device media
// managers.
func (m *Manager) SetUpdateCallback(cb media.UpdateCallback) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callback = cb
	for _, d := range m.devices {
		d.MediaManager().SetUpdateCallback(cb)
	}
}

// Refresh reconciles the registries against the API inventory: new
// resources are added, vanished ones are dropped, existing devices keep
// their accumulated state.
func (m *Manager) Refresh(ctx context.Context, lister Lister) error {
	devices, err := lister.ListDevices(ctx)
	if err != nil {
		return fmt.Errorf("refresh devices: %w", err)
	}
	structures, err := lister.ListStructures(ctx)
	if err != nil {
		return fmt.Errorf("refresh structures: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	seen := make(map[string]bool, len(devices))
	for _, d := range devices {
		seen[d.Name()] = true
		if _, ok := m.devices[d.Name()]; ok {
			continue
		}
		logging.Debug().Str("device", d.Name()).Msg("Tracking new device")
		m.devices[d.Name()] = d
		d.MediaManager().SetCachePolicy(m.policy)
		if m.callback != nil {
			d.MediaManager().SetUpdateCallback(m.callback)
		}
	}
	for name := range m.devices {
		if !seen[name] {
			logging.Debug().Str("device", name).Msg("Dropping vanished device")
			delete(m.devices, name)
		}
	}

	seenStructures := make(map[string]bool, len(structures))
	for _, s := range structures {
		seenStructures[s.Name()] = true
		m.structures[s.Name()] = s
	}
	for name := range m.structures {
		if !seenStructures[name] {
			delete(m.structures, name)
		}
	}
	return nil
}

// HandleEvent routes an event message. Relation updates adjust device
// parents; resource updates go to the addressed device. Messages for
// unknown devices are dropped silently, since subscriptions can span more
// devices than the manager tracks.
func (m *Manager) HandleEvent(ctx context.Context, msg *event.Message) error {
	if msg.RelationUpdate != nil {
		m.handleRelation(msg.RelationUpdate)
		m.mu.RLock()
		cb := m.callback
		m.mu.RUnlock()
		if cb != nil {
			cb(ctx, msg)
		}
		return nil
	}

	name := msg.ResourceUpdateName()
	if name == "" {
		return nil
	}
	d := m.Device(name)
	if d == nil {
		logging.Debug().Str("device", name).Msg("Ignoring event for untracked device")
		return nil
	}
	return d.HandleEvent(ctx, msg)
}

// structureName resolves the display name of a relation subject.
func (m *Manager) structureName(subject string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s, ok := m.structures[subject]; ok {
		if name := s.CustomName(); name != "" {
			return name
		}
	}
	return unknownStructureName
}

func (m *Manager) handleRelation(rel *event.RelationUpdate) {
	d := m.Device(rel.Object)
	if d == nil {
		return
	}
	switch rel.Type {
	case event.RelationDeleted:
		d.DeleteRelation(rel.Subject)
	case event.RelationCreated, event.RelationUpdated:
		d.CreateRelation(ParentRelation{
			Parent:      rel.Subject,
			DisplayName: m.structureName(rel.Subject),
		})
	}
}
