// Nestkit - Google Nest Smart Device Management client SDK
// Copyright 2026 Halcyon Labs
// SPDX-License-Identifier: Apache-2.0
// https://github.com/halcyonlabs/nestkit

package media

import (
	"golang.org/x/time/rate"

	"github.com/halcyonlabs/nestkit/transcoder"
)

// DefaultCacheSize is the number of event sessions kept per device when the
// policy does not say otherwise.
const DefaultCacheSize = 2

// expireBatchFraction is the share of the cache purged per eviction pass.
const expireBatchFraction = 0.05

// CachePolicy controls how much event media is kept and whether media is
// fetched eagerly when events arrive.
type CachePolicy struct {
	// EventCacheSize is the number of event sessions to keep per device.
	EventCacheSize int

	// Fetch enables eager media pre-fetch on event arrival.
	Fetch bool

	// Store persists session records and media content.
	Store EventMediaStore

	// Transcoder produces clip thumbnails. Nil disables thumbnails.
	Transcoder transcoder.Transcoder

	// FetchLimiter bounds the rate of eager pre-fetches against the API.
	// Nil means unlimited.
	FetchLimiter *rate.Limiter
}

// NewCachePolicy returns a policy with the default cache size and an
// in-memory store.
func NewCachePolicy() *CachePolicy {
	return &CachePolicy{
		EventCacheSize: DefaultCacheSize,
		Store:          NewInMemoryStore(),
	}
}

// expireCount returns the number of sessions to evict per purge pass.
func (p *CachePolicy) expireCount() int {
	if n := int(float64(p.EventCacheSize) * expireBatchFraction); n > 1 {
		return n
	}
	return 1
}
