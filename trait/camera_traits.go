// Nestkit - Google Nest Smart Device Management client SDK
// Copyright 2026 Halcyon Labs
// SPDX-License-Identifier: Apache-2.0
// https://github.com/halcyonlabs/nestkit

package trait

import (
	"context"
	"fmt"
	"net/url"
	"slices"
	"time"

	"github.com/goccy/go-json"

	"github.com/halcyonlabs/nestkit/event"
	"github.com/halcyonlabs/nestkit/internal/logging"
	"github.com/halcyonlabs/nestkit/webrtc"
)

// Streaming protocols advertised by CameraLiveStream.
const (
	ProtocolRTSP   = "RTSP"
	ProtocolWebRTC = "WEB_RTC"
)

// Resolution is the maximum resolution of an image or stream.
type Resolution struct {
	Width  int `json:"width,omitempty"`
	Height int `json:"height,omitempty"`
}

// CameraImageTrait belongs to any device that supports taking images.
type CameraImageTrait struct {
	MaxImageResolution Resolution `json:"maxImageResolution,omitempty"`
}

func (*CameraImageTrait) TraitType() Type { return CameraImage }

// EventImage is a downloadable image produced in response to an event. The
// token authorizes the download and is sent as a Basic authorization header.
type EventImage struct {
	URL   string `json:"url"`
	Token string `json:"token"`

	exec CommandExecutor
}

// Contents downloads the image bytes. A positive width requests a resized
// image; the height scales to the camera's aspect ratio.
func (i *EventImage) Contents(ctx context.Context, width int) ([]byte, error) {
	if i.exec == nil {
		return nil, fmt.Errorf("event image has no command executor bound")
	}
	return i.exec.FetchImage(ctx, i.URL, i.Token, width)
}

// CameraEventImageTrait belongs to any device that generates images from
// events.
type CameraEventImageTrait struct {
	commandTrait
}

func (*CameraEventImageTrait) TraitType() Type { return CameraEventImage }

// GenerateImage exchanges an event id for a short-lived event image.
func (t *CameraEventImageTrait) GenerateImage(ctx context.Context, eventID string) (*EventImage, error) {
	results, err := t.execute(ctx, "sdm.devices.commands.CameraEventImage.GenerateImage", map[string]any{
		"eventId": eventID,
	})
	if err != nil {
		return nil, err
	}
	var img EventImage
	if err := json.Unmarshal(results, &img); err != nil {
		return nil, fmt.Errorf("parse generated image: %w", err)
	}
	img.exec = t.exec
	return &img, nil
}

// RtspStream grants access to an RTSP live stream URL.
type RtspStream struct {
	URL                  string    `json:"-"`
	StreamToken          string    `json:"streamToken"`
	StreamExtensionToken string    `json:"streamExtensionToken"`
	ExpiresAt            time.Time `json:"expiresAt"`

	deviceName string
	exec       CommandExecutor
}

type rtspStreamURLs struct {
	RtspURL string `json:"rtspUrl"`
}

// ExtendStream requests a fresh access token and returns a stream whose URL
// carries the new token.
func (s *RtspStream) ExtendStream(ctx context.Context) (*RtspStream, error) {
	results, err := s.exec.Execute(ctx, s.deviceName, "sdm.devices.commands.CameraLiveStream.ExtendRtspStream", map[string]any{
		"streamExtensionToken": s.StreamExtensionToken,
	})
	if err != nil {
		return nil, err
	}
	next := &RtspStream{deviceName: s.deviceName, exec: s.exec}
	if err := json.Unmarshal(results, next); err != nil {
		return nil, fmt.Errorf("parse extended stream: %w", err)
	}
	// Rewrite the stream URL's auth query with the fresh token.
	parsed, err := url.Parse(s.URL)
	if err != nil {
		return nil, fmt.Errorf("parse stream url: %w", err)
	}
	parsed.RawQuery = "auth=" + next.StreamToken
	next.URL = parsed.String()
	return next, nil
}

// StopStream invalidates the access token and stops the live stream.
func (s *RtspStream) StopStream(ctx context.Context) error {
	_, err := s.exec.Execute(ctx, s.deviceName, "sdm.devices.commands.CameraLiveStream.StopRtspStream", map[string]any{
		"streamExtensionToken": s.StreamExtensionToken,
	})
	return err
}

// WebRtcStream grants access to a WebRTC live stream.
type WebRtcStream struct {
	AnswerSDP      string    `json:"answerSdp"`
	MediaSessionID string    `json:"mediaSessionId"`
	ExpiresAt      time.Time `json:"expiresAt"`

	deviceName string
	exec       CommandExecutor
}

// ExtendStream extends the media session, preserving the original SDP answer.
func (s *WebRtcStream) ExtendStream(ctx context.Context) (*WebRtcStream, error) {
	results, err := s.exec.Execute(ctx, s.deviceName, "sdm.devices.commands.CameraLiveStream.ExtendWebRtcStream", map[string]any{
		"mediaSessionId": s.MediaSessionID,
	})
	if err != nil {
		return nil, err
	}
	next := &WebRtcStream{deviceName: s.deviceName, exec: s.exec}
	if err := json.Unmarshal(results, next); err != nil {
		return nil, fmt.Errorf("parse extended stream: %w", err)
	}
	next.AnswerSDP = s.AnswerSDP
	return next, nil
}

// StopStream invalidates the media session and stops the live stream.
func (s *WebRtcStream) StopStream(ctx context.Context) error {
	_, err := s.exec.Execute(ctx, s.deviceName, "sdm.devices.commands.CameraLiveStream.StopWebRtcStream", map[string]any{
		"mediaSessionId": s.MediaSessionID,
	})
	return err
}

// CameraLiveStreamTrait belongs to any device that supports live streaming.
type CameraLiveStreamTrait struct {
	commandTrait

	MaxVideoResolution Resolution `json:"maxVideoResolution,omitempty"`
	VideoCodecs        []string   `json:"videoCodecs,omitempty"`
	AudioCodecs        []string   `json:"audioCodecs,omitempty"`
	SupportedProtocols []string   `json:"supportedProtocols,omitempty"`
}

func (*CameraLiveStreamTrait) TraitType() Type { return CameraLiveStream }

// Protocols returns the supported streaming protocols, defaulting to RTSP
// when the device advertises none.
func (t *CameraLiveStreamTrait) Protocols() []string {
	known := make([]string, 0, len(t.SupportedProtocols))
	for _, p := range t.SupportedProtocols {
		if p == ProtocolRTSP || p == ProtocolWebRTC {
			known = append(known, p)
		}
	}
	if len(known) == 0 {
		return []string{ProtocolRTSP}
	}
	return known
}

// GenerateRtspStream requests a token to access an RTSP live stream URL.
func (t *CameraLiveStreamTrait) GenerateRtspStream(ctx context.Context) (*RtspStream, error) {
	if !slices.Contains(t.Protocols(), ProtocolRTSP) {
		return nil, fmt.Errorf("device does not support RTSP streams")
	}
	results, err := t.execute(ctx, "sdm.devices.commands.CameraLiveStream.GenerateRtspStream", map[string]any{})
	if err != nil {
		return nil, err
	}
	var wire struct {
		StreamURLs           rtspStreamURLs `json:"streamUrls"`
		StreamToken          string         `json:"streamToken"`
		StreamExtensionToken string         `json:"streamExtensionToken"`
		ExpiresAt            time.Time      `json:"expiresAt"`
	}
	if err := json.Unmarshal(results, &wire); err != nil {
		return nil, fmt.Errorf("parse rtsp stream: %w", err)
	}
	return &RtspStream{
		URL:                  wire.StreamURLs.RtspURL,
		StreamToken:          wire.StreamToken,
		StreamExtensionToken: wire.StreamExtensionToken,
		ExpiresAt:            wire.ExpiresAt,
		deviceName:           t.deviceName,
		exec:                 t.exec,
	}, nil
}

// GenerateWebRtcStream exchanges an SDP offer for a WebRTC live stream. The
// SDP answer is repaired for Firefox offers before being returned.
func (t *CameraLiveStreamTrait) GenerateWebRtcStream(ctx context.Context, offerSDP string) (*WebRtcStream, error) {
	if !slices.Contains(t.Protocols(), ProtocolWebRTC) {
		return nil, fmt.Errorf("device does not support WebRTC streams")
	}
	results, err := t.execute(ctx, "sdm.devices.commands.CameraLiveStream.GenerateWebRtcStream", map[string]any{
		"offerSdp": offerSDP,
	})
	if err != nil {
		return nil, err
	}
	stream := &WebRtcStream{deviceName: t.deviceName, exec: t.exec}
	if err := json.Unmarshal(results, stream); err != nil {
		return nil, fmt.Errorf("parse webrtc stream: %w", err)
	}
	logging.Debug().Str("media_session_id", stream.MediaSessionID).Msg("Received SDP answer")
	stream.AnswerSDP = webrtc.FixMozillaSDPAnswer(offerSDP, stream.AnswerSDP)
	return stream, nil
}

// CameraMotionTrait belongs to any device that emits motion events.
type CameraMotionTrait struct{}

func (*CameraMotionTrait) TraitType() Type       { return CameraMotion }
func (*CameraMotionTrait) EventType() event.Type { return event.CameraMotion }

// CameraPersonTrait belongs to any device that emits person events.
type CameraPersonTrait struct{}

func (*CameraPersonTrait) TraitType() Type       { return CameraPerson }
func (*CameraPersonTrait) EventType() event.Type { return event.CameraPerson }

// CameraSoundTrait belongs to any device that emits sound events.
type CameraSoundTrait struct{}

func (*CameraSoundTrait) TraitType() Type       { return CameraSound }
func (*CameraSoundTrait) EventType() event.Type { return event.CameraSound }

// CameraClipPreviewTrait belongs to any device that attaches clip previews
// to its event sessions.
type CameraClipPreviewTrait struct {
	commandTrait
}

func (*CameraClipPreviewTrait) TraitType() Type       { return CameraClipPreview }
func (*CameraClipPreviewTrait) EventType() event.Type { return event.CameraClipPreview }

// DownloadPreview fetches the clip preview bytes from its url. No token is
// needed; the url itself is the capability.
func (t *CameraClipPreviewTrait) DownloadPreview(ctx context.Context, previewURL string) ([]byte, error) {
	if t.exec == nil {
		return nil, fmt.Errorf("trait has no command executor bound")
	}
	return t.exec.FetchImage(ctx, previewURL, "", 0)
}
