// Nestkit - Google Nest Smart Device Management client SDK
// Copyright 2026 Halcyon Labs
// SPDX-License-Identifier: Apache-2.0
// https://github.com/halcyonlabs/nestkit

package media

import (
	"sort"

	"github.com/halcyonlabs/nestkit/event"
)

func sortSessionsByTimeDesc(sessions []ImageSession) {
	sort.SliceStable(sessions, func(i, j int) bool {
		return sessions[i].Timestamp.After(sessions[j].Timestamp)
	})
}

func sortClipsByTimeDesc(clips []ClipPreviewSession) {
	sort.SliceStable(clips, func(i, j int) bool {
		return clips[i].Timestamp.After(clips[j].Timestamp)
	})
}

func sortEventsByTimeAsc(events []event.Event) {
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Timestamp.Before(events[j].Timestamp)
	})
}
