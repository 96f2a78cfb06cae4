// Nestkit - Google Nest Smart Device Management client SDK
// Copyright 2026 Halcyon Labs
// SPDX-License-Identifier: Apache-2.0
// https://github.com/halcyonlabs/nestkit

package event

import (
	"encoding/base64"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/halcyonlabs/nestkit"
)

// Token is an opaque handle identifying a unique (session, event) pair. The
// encoded form is safe to hand to external callers for later media lookup
// without exposing raw internal identifiers.
type Token struct {
	SessionID string
	EventID   string
}

// Encode serializes the token as base64-wrapped JSON.
func (t Token) Encode() string {
	data, _ := json.Marshal([]string{t.SessionID, t.EventID})
	return base64.StdEncoding.EncodeToString(data)
}

// DecodeToken parses an encoded token. Malformed input of any kind (bad
// base64, bad JSON, wrong shape) returns an error wrapping
// nestkit.ErrDecode.
func DecodeToken(content string) (Token, error) {
	raw, err := base64.StdEncoding.DecodeString(content)
	if err != nil {
		return Token{}, fmt.Errorf("%w: invalid base64: %v", nestkit.ErrDecode, err)
	}
	var parts []string
	if err := json.Unmarshal(raw, &parts); err != nil {
		return Token{}, fmt.Errorf("%w: invalid payload: %v", nestkit.ErrDecode, err)
	}
	if len(parts) != 2 {
		return Token{}, fmt.Errorf("%w: expected 2 elements, got %d", nestkit.ErrDecode, len(parts))
	}
	return Token{SessionID: parts[0], EventID: parts[1]}, nil
}
