// Nestkit - Google Nest Smart Device Management client SDK
// Copyright 2026 Halcyon Labs
// SPDX-License-Identifier: Apache-2.0
// https://github.com/halcyonlabs/nestkit

package nestkit

import "errors"

// ErrConfiguration indicates a misconfigured topic or subscription name.
// Configuration errors are never retried.
var ErrConfiguration = errors.New("configuration error")

// ErrAuth indicates expired or invalid credentials. Surfaced directly on the
// initial stream connect; retried transparently on reconnect.
var ErrAuth = errors.New("authentication error")

// ErrSubscriber indicates a transport or server failure on the event stream.
// Retried with backoff.
var ErrSubscriber = errors.New("subscriber error")

// ErrAPI indicates a generic REST API failure.
var ErrAPI = errors.New("api error")

// ErrForbidden indicates the credentials lack access to the resource.
var ErrForbidden = errors.New("forbidden")

// ErrNotFound indicates the resource does not exist.
var ErrNotFound = errors.New("not found")

// ErrDecode indicates a malformed event token.
var ErrDecode = errors.New("decode error")

// ErrTranscode indicates a failure running the external transcoder.
var ErrTranscode = errors.New("transcode error")
