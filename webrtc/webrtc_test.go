// Nestkit - Google Nest Smart Device Management client SDK
// Copyright 2026 Halcyon Labs
// SPDX-License-Identifier: Apache-2.0
// https://github.com/halcyonlabs/nestkit

package webrtc

import (
	"strings"
	"testing"
)

const mozillaRecvOnlyOffer = "v=0\r\n" +
	"o=mozilla...THIS_IS_SDPARTA-99.0 8 2 IN IP4 0.0.0.0\r\n" +
	"m=video 9 UDP/TLS/RTP/SAVPF 120\r\n" +
	"a=recvonly\r\n" +
	"m=audio 9 UDP/TLS/RTP/SAVPF 109\r\n" +
	"a=recvonly\r\n"

const sendRecvAnswer = "v=0\r\n" +
	"o=- 0 2 IN IP4 127.0.0.1\r\n" +
	"m=video 9 UDP/TLS/RTP/SAVPF 120\r\n" +
	"a=sendrecv\r\n" +
	"a=candidate: 1 udp 2122260223 192.168.1.1 51000 typ host\r\n" +
	"m=audio 9 UDP/TLS/RTP/SAVPF 109\r\n" +
	"a=sendrecv\r\n" +
	"a=candidate: 1 udp 2122260223 192.168.1.1 51001 typ host\r\n"

func TestFixMozillaSDPAnswer(t *testing.T) {
	fixed := FixMozillaSDPAnswer(mozillaRecvOnlyOffer, sendRecvAnswer)
	if strings.Contains(fixed, "a=sendrecv") {
		t.Error("sendrecv should be rewritten to sendonly for recvonly mozilla offers")
	}
	if !strings.Contains(fixed, "a=sendonly") {
		t.Error("expected sendonly direction in fixed answer")
	}
	if strings.Contains(fixed, "a=candidate: ") {
		t.Error("candidates should have a foundation value")
	}
	if !strings.Contains(fixed, "a=candidate:1 ") || !strings.Contains(fixed, "a=candidate:2 ") {
		t.Errorf("expected numbered candidate foundations, got:\n%s", fixed)
	}
}

func TestFixMozillaSDPAnswerNonMozillaPassthrough(t *testing.T) {
	offer := strings.ReplaceAll(mozillaRecvOnlyOffer, "mozilla", "chrome")
	if got := FixMozillaSDPAnswer(offer, sendRecvAnswer); got != sendRecvAnswer {
		t.Error("non-mozilla offers should leave the answer untouched")
	}
}

func TestMediaDirection(t *testing.T) {
	if got := mediaDirection(mozillaRecvOnlyOffer, MediaKindVideo); got != DirectionRecvOnly {
		t.Errorf("video direction = %q, want %q", got, DirectionRecvOnly)
	}
	if got := mediaDirection(sendRecvAnswer, MediaKindAudio); got != DirectionSendRecv {
		t.Errorf("audio direction = %q, want %q", got, DirectionSendRecv)
	}
	if got := mediaDirection("v=0\r\n", MediaKindVideo); got != "" {
		t.Errorf("missing section direction = %q, want empty", got)
	}
}
