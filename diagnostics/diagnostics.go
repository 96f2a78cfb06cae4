// Nestkit - Google Nest Smart Device Management client SDK
// Copyright 2026 Halcyon Labs
// SPDX-License-Identifier: Apache-2.0
// https://github.com/halcyonlabs/nestkit

// Package diagnostics provides counter sinks for observing SDK behavior.
//
// A Diagnostics value is passed explicitly to the managers, caches, and
// consumers that record into it; there is no process-global state. Counters
// are cheap to record and can be exported either as a nested map (for debug
// dumps) or as a prometheus collector.
package diagnostics

import (
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Diagnostics accumulates named counters for one component. Subkey returns a
// child scope whose counters appear nested in AsMap and labeled in the
// prometheus export.
type Diagnostics struct {
	mu       sync.Mutex
	counters map[string]int64
	children map[string]*Diagnostics
}

// New creates an empty Diagnostics sink.
func New() *Diagnostics {
	return &Diagnostics{
		counters: make(map[string]int64),
		children: make(map[string]*Diagnostics),
	}
}

// Increment adds one to the counter for key.
func (d *Diagnostics) Increment(key string) {
	if d == nil {
		return
	}
	d.mu.Lock()
	d.counters[key]++
	d.mu.Unlock()
}

// Elapsed records a duration observation for key as a count and a running
// sum in milliseconds.
func (d *Diagnostics) Elapsed(key string, elapsed time.Duration) {
	if d == nil {
		return
	}
	d.mu.Lock()
	d.counters[key+"_count"]++
	d.counters[key+"_sum_ms"] += elapsed.Milliseconds()
	d.mu.Unlock()
}

// Value returns the current value of the counter for key.
func (d *Diagnostics) Value(key string) int64 {
	if d == nil {
		return 0
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.counters[key]
}

// Subkey returns the child scope with the given name, creating it if needed.
func (d *Diagnostics) Subkey(name string) *Diagnostics {
	if d == nil {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	child, ok := d.children[name]
	if !ok {
		child = New()
		d.children[name] = child
	}
	return child
}

// AsMap returns the counters as a nested map suitable for debug output.
func (d *Diagnostics) AsMap() map[string]any {
	if d == nil {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	result := make(map[string]any, len(d.counters)+len(d.children))
	for k, v := range d.counters {
		result[k] = v
	}
	for name, child := range d.children {
		if m := child.AsMap(); len(m) > 0 {
			result[name] = m
		}
	}
	return result
}

// Reset clears all counters and child scopes, for testing.
func (d *Diagnostics) Reset() {
	if d == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.counters = make(map[string]int64)
	d.children = make(map[string]*Diagnostics)
}

// Collector returns a prometheus collector exposing every counter in this
// sink and its children as a single counter metric with component and key
// labels. The collector reads live values on each scrape.
func (d *Diagnostics) Collector(namespace string) prometheus.Collector {
	return &collector{
		diag: d,
		desc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "diagnostics_total"),
			"Diagnostic counters recorded by the SDK.",
			[]string{"component", "key"},
			nil,
		),
	}
}

type collector struct {
	diag *Diagnostics
	desc *prometheus.Desc
}

func (c *collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.desc
}

func (c *collector) Collect(ch chan<- prometheus.Metric) {
	c.collect(ch, c.diag, "")
}

func (c *collector) collect(ch chan<- prometheus.Metric, d *Diagnostics, component string) {
	d.mu.Lock()
	keys := make([]string, 0, len(d.counters))
	for k := range d.counters {
		keys = append(keys, k)
	}
	values := make(map[string]int64, len(d.counters))
	for k, v := range d.counters {
		values[k] = v
	}
	names := make([]string, 0, len(d.children))
	children := make(map[string]*Diagnostics, len(d.children))
	for name, child := range d.children {
		names = append(names, name)
		children[name] = child
	}
	d.mu.Unlock()

	sort.Strings(keys)
	for _, k := range keys {
		ch <- prometheus.MustNewConstMetric(
			c.desc, prometheus.CounterValue, float64(values[k]), component, k,
		)
	}
	sort.Strings(names)
	for _, name := range names {
		path := name
		if component != "" {
			path = component + "." + name
		}
		c.collect(ch, children[name], path)
	}
}
