// Nestkit - Google Nest Smart Device Management client SDK
// Copyright 2026 Halcyon Labs
// SPDX-License-Identifier: Apache-2.0
// https://github.com/halcyonlabs/nestkit

// Package nestkit defines the shared error taxonomy for the Smart Device
// Management client SDK.
//
// The SDK itself lives in subpackages:
//
//   - api: thin REST client for devices, structures, and commands
//   - event: event messages, event variants, and event tokens
//   - trait: typed trait values and device commands
//   - device: device/structure models and the device manager
//   - media: event session tracking and event media caching
//   - subscriber: the streaming pull consumer
//   - admin: pub/sub topic and subscription provisioning
//
// Typical usage wires an api.Client and a pull client into a subscriber,
// registers an update callback, and starts the stream:
//
//	sub, err := subscriber.NewSubscriber(client, pull, subscriptionName)
//	if err != nil {
//	    // bad subscription name
//	}
//	sub.SetUpdateCallback(onEvent)
//	if err := sub.Start(ctx); err != nil {
//	    // initial connect failed
//	}
//	defer sub.Stop()
package nestkit
