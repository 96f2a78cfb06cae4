// Nestkit - Google Nest Smart Device Management client SDK
// Copyright 2026 Halcyon Labs
// SPDX-License-Identifier: Apache-2.0
// https://github.com/halcyonlabs/nestkit

// Package webrtc contains helpers for manipulating WebRTC SDP payloads.
package webrtc

import (
	"fmt"
	"strings"
)

// SDP direction attributes.
const (
	DirectionSendRecv = "sendrecv"
	DirectionSendOnly = "sendonly"
	DirectionRecvOnly = "recvonly"
	DirectionInactive = "inactive"
)

// SDP media kinds.
const (
	MediaKindAudio       = "audio"
	MediaKindVideo       = "video"
	MediaKindApplication = "application"
)

var directions = []string{
	DirectionSendRecv,
	DirectionSendOnly,
	DirectionRecvOnly,
	DirectionInactive,
}

// mediaDirection returns the direction attribute of the first media section
// of the given kind, or "" when absent.
func mediaDirection(sdp, kind string) string {
	inSection := false
	for _, line := range strings.Split(sdp, "\r\n") {
		if strings.HasPrefix(line, "m=") {
			inSection = strings.HasPrefix(line, "m="+kind)
		}
		if inSection && strings.HasPrefix(line, "a=") {
			for _, d := range directions {
				if strings.HasPrefix(line, "a="+d) {
					return d
				}
			}
		}
	}
	return ""
}

// updateDirection rewrites the direction attribute of media sections of the
// given kind from oldDir to newDir.
func updateDirection(answerSDP, kind, oldDir, newDir string) string {
	var out []string
	inSection := false
	for _, line := range strings.Split(answerSDP, "\r\n") {
		if strings.HasPrefix(line, "m=") {
			inSection = strings.HasPrefix(line, "m="+kind)
		}
		if inSection && strings.HasPrefix(line, "a="+oldDir) {
			out = append(out, strings.Replace(line, "a="+oldDir, "a="+newDir, 1))
			continue
		}
		out = append(out, line)
	}
	return strings.Join(out, "\r\n")
}

// addFoundationToCandidates fills in a foundation value for ICE candidate
// lines that lack one.
func addFoundationToCandidates(sdp string) string {
	var out []string
	index := 1
	for _, line := range strings.Split(sdp, "\r\n") {
		if strings.HasPrefix(line, "a=candidate: ") {
			out = append(out, strings.Replace(line, "a=candidate: ", fmt.Sprintf("a=candidate:%d ", index), 1))
			index++
			continue
		}
		out = append(out, line)
	}
	return strings.Join(out, "\r\n")
}

// FixMozillaSDPAnswer repairs an SDP answer that Firefox rejects.
//
// When the offer comes from Firefox: a recvonly offer direction must not be
// answered with sendrecv, and ICE candidates in the answer must carry a
// foundation field. Non-Firefox offers pass through unchanged.
func FixMozillaSDPAnswer(offerSDP, answerSDP string) string {
	if !strings.Contains(offerSDP, "mozilla") {
		return answerSDP
	}
	if mediaDirection(offerSDP, MediaKindVideo) == DirectionRecvOnly {
		answerSDP = updateDirection(answerSDP, MediaKindVideo, DirectionSendRecv, DirectionSendOnly)
	}
	if mediaDirection(offerSDP, MediaKindAudio) == DirectionRecvOnly {
		answerSDP = updateDirection(answerSDP, MediaKindAudio, DirectionSendRecv, DirectionSendOnly)
	}
	return addFoundationToCandidates(answerSDP)
}
