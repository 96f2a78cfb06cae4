// Nestkit - Google Nest Smart Device Management client SDK
// Copyright 2026 Halcyon Labs
// SPDX-License-Identifier: Apache-2.0
// https://github.com/halcyonlabs/nestkit

package trait

import "github.com/halcyonlabs/nestkit/event"

// DoorbellChimeTrait belongs to any doorbell that emits chime press events.
type DoorbellChimeTrait struct{}

func (*DoorbellChimeTrait) TraitType() Type       { return DoorbellChime }
func (*DoorbellChimeTrait) EventType() event.Type { return event.DoorbellChime }
