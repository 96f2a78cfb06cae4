// Nestkit - Google Nest Smart Device Management client SDK
// Copyright 2026 Halcyon Labs
// SPDX-License-Identifier: Apache-2.0
// https://github.com/halcyonlabs/nestkit

// Package subscriber consumes the SDM event stream over Cloud Pub/Sub and
// keeps a device manager in sync with it.
//
// The Subscriber owns a streaming pull connection (see StreamingManager) and
// lazily bootstraps a device.Manager from the API on first use. Messages are
// decoded, applied to the tracked devices, and acknowledged only once fully
// processed, so failures lead to redelivery rather than data loss.
package subscriber

import (
	"context"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/halcyonlabs/nestkit"
	"github.com/halcyonlabs/nestkit/device"
	"github.com/halcyonlabs/nestkit/diagnostics"
	"github.com/halcyonlabs/nestkit/event"
	"github.com/halcyonlabs/nestkit/internal/logging"
	"github.com/halcyonlabs/nestkit/media"
)

// subscriptionNamePattern matches fully qualified pub/sub subscription names.
var subscriptionNamePattern = regexp.MustCompile(`^projects/[^/]+/subscriptions/[^/]+$`)

const thermostatModeTrait = "sdm.devices.traits.ThermostatMode"

// Subscriber connects the event stream to a device manager.
type Subscriber struct {
	lister       device.Lister
	client       PullClient
	subscription string
	policy       *media.CachePolicy
	diag         *diagnostics.Diagnostics
	msgTimeout   time.Duration

	mu       sync.Mutex
	manager  *device.Manager
	callback media.UpdateCallback
	stream   *StreamingManager
}

// SubscriberOption configures a Subscriber.
type SubscriberOption func(*Subscriber)

// WithCachePolicy sets the event media cache policy shared across devices.
func WithCachePolicy(policy *media.CachePolicy) SubscriberOption {
	return func(s *Subscriber) { s.policy = policy }
}

// WithSubscriberDiagnostics attaches a counter set to the subscriber and its
// streaming manager.
func WithSubscriberDiagnostics(d *diagnostics.Diagnostics) SubscriberOption {
	return func(s *Subscriber) { s.diag = d }
}

// WithMessageTimeout overrides how long one message may take to process
// before it is abandoned for redelivery. Non-positive values keep the
// default MessageTimeout.
func WithMessageTimeout(d time.Duration) SubscriberOption {
	return func(s *Subscriber) { s.msgTimeout = d }
}

// NewSubscriber validates the subscription name and returns a subscriber.
// The lister (usually an api.Client) populates the device manager; the pull
// client delivers event messages.
func NewSubscriber(lister device.Lister, client PullClient, subscription string, opts ...SubscriberOption) (*Subscriber, error) {
	if !subscriptionNamePattern.MatchString(subscription) {
		return nil, fmt.Errorf(
			"%w: subscription name %q must match projects/<project>/subscriptions/<name>",
			nestkit.ErrConfiguration, subscription)
	}
	s := &Subscriber{
		lister:       lister,
		client:       client,
		subscription: subscription,
		diag:         diagnostics.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// SetUpdateCallback registers the callback invoked after every applied
// message. May be called before or after the device manager exists.
func (s *Subscriber) SetUpdateCallback(cb media.UpdateCallback) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.callback = cb
	if s.manager != nil {
		s.manager.SetUpdateCallback(cb)
	}
}

// DeviceManager returns the device manager, bootstrapping it from the API on
// first call. Structures are loaded before devices so relation updates can
// resolve display names from the start.
func (s *Subscriber) DeviceManager(ctx context.Context) (*device.Manager, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deviceManagerLocked(ctx)
}

func (s *Subscriber) deviceManagerLocked(ctx context.Context) (*device.Manager, error) {
	if s.manager != nil {
		return s.manager, nil
	}
	m := device.NewManager(s.policy)
	structures, err := s.lister.ListStructures(ctx)
	if err != nil {
		return nil, fmt.Errorf("bootstrap structures: %w", err)
	}
	for _, st := range structures {
		if err := m.AddStructure(st); err != nil {
			return nil, err
		}
	}
	devices, err := s.lister.ListDevices(ctx)
	if err != nil {
		return nil, fmt.Errorf("bootstrap devices: %w", err)
	}
	for _, d := range devices {
		if err := m.AddDevice(d); err != nil {
			return nil, err
		}
	}
	if s.callback != nil {
		m.SetUpdateCallback(s.callback)
	}
	logging.Info().Int("devices", len(devices)).Int("structures", len(structures)).Msg("Device manager bootstrapped")
	s.manager = m
	return m, nil
}

// Start bootstraps the device manager if needed and begins pulling events.
// The first connection attempt is made synchronously so configuration and
// auth failures surface here.
func (s *Subscriber) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.stream != nil {
		s.mu.Unlock()
		return nil
	}
	if _, err := s.deviceManagerLocked(ctx); err != nil {
		s.mu.Unlock()
		return err
	}
	stream := NewStreamingManager(s.client, s.subscription, s.handleMessage, s.diag.Subkey("stream"),
		WithStreamingMessageTimeout(s.msgTimeout))
	s.stream = stream
	s.mu.Unlock()

	if err := stream.Start(ctx); err != nil {
		s.mu.Lock()
		s.stream = nil
		s.mu.Unlock()
		return err
	}
	return nil
}

// Stop shuts down the pull stream. Safe to call multiple times.
func (s *Subscriber) Stop() {
	s.mu.Lock()
	stream := s.stream
	s.stream = nil
	s.mu.Unlock()
	if stream != nil {
		stream.Stop()
	}
}

// Healthy reports whether the event stream is currently connected.
func (s *Subscriber) Healthy() bool {
	s.mu.Lock()
	stream := s.stream
	s.mu.Unlock()
	return stream != nil && stream.Healthy()
}

// handleMessage applies one decoded message to the device manager.
func (s *Subscriber) handleMessage(ctx context.Context, msg *event.Message) error {
	received := time.Now()
	if !msg.Timestamp.IsZero() {
		s.diag.Elapsed("message_received", received.Sub(msg.Timestamp))
	}

	s.mu.Lock()
	manager := s.manager
	s.mu.Unlock()
	if manager == nil {
		return fmt.Errorf("%w: device manager not initialized", nestkit.ErrSubscriber)
	}

	if s.isInvalidThermostatUpdate(msg) {
		// Some thermostats publish a bogus trait update claiming the only
		// available mode is OFF. Applying it would wedge the device model, so
		// skip the message and reload state from the API instead.
		s.diag.Increment("invalid-thermostat-update")
		if err := manager.Refresh(ctx, s.lister); err != nil {
			s.diag.Increment("invalid-thermostat-update-refresh-failure")
			return fmt.Errorf("refresh after invalid thermostat update: %w", err)
		}
		s.diag.Increment("invalid-thermostat-update-refresh-success")
		return nil
	}

	if err := manager.HandleEvent(ctx, msg); err != nil {
		return err
	}
	s.diag.Elapsed("message_processed", time.Since(received))
	return nil
}

// isInvalidThermostatUpdate detects the known-bad ThermostatMode publish
// where availableModes collapses to ["OFF"].
func (s *Subscriber) isInvalidThermostatUpdate(msg *event.Message) bool {
	traits := msg.ResourceUpdateTraits()
	raw, ok := traits[thermostatModeTrait]
	if !ok {
		return false
	}
	var mode struct {
		AvailableModes []string `json:"availableModes"`
	}
	if err := json.Unmarshal(raw, &mode); err != nil {
		return false
	}
	return len(mode.AvailableModes) == 1 && mode.AvailableModes[0] == "OFF"
}
