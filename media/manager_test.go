// Nestkit - Google Nest Smart Device Management client SDK
// Copyright 2026 Halcyon Labs
// SPDX-License-Identifier: Apache-2.0
// https://github.com/halcyonlabs/nestkit

package media

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/halcyonlabs/nestkit/diagnostics"
	"github.com/halcyonlabs/nestkit/event"
	"github.com/halcyonlabs/nestkit/trait"
)

const testDeviceID = "enterprises/project-id/devices/device-id"

var baseTime = time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

type fakeExec struct {
	generateCalls int
	fetchCalls    int
	execErr       error
	imageData     []byte
	lastFetchURL  string
}

func (f *fakeExec) Execute(_ context.Context, _, command string, params map[string]any) (json.RawMessage, error) {
	if f.execErr != nil {
		return nil, f.execErr
	}
	if command == "sdm.devices.commands.CameraEventImage.GenerateImage" {
		f.generateCalls++
		return json.RawMessage(fmt.Sprintf(`{"url": "https://domain/image/%v", "token": "g.0.token"}`, params["eventId"])), nil
	}
	return json.RawMessage(`{}`), nil
}

func (f *fakeExec) FetchImage(_ context.Context, url, _ string, _ int) ([]byte, error) {
	if f.execErr != nil {
		return nil, f.execErr
	}
	f.fetchCalls++
	f.lastFetchURL = url
	return f.imageData, nil
}

type fakeSource struct {
	clip  *trait.CameraClipPreviewTrait
	img   *trait.CameraEventImageTrait
	types map[event.Type]bool
}

func (f *fakeSource) ClipPreviewTrait() *trait.CameraClipPreviewTrait { return f.clip }
func (f *fakeSource) EventImageTrait() *trait.CameraEventImageTrait   { return f.img }
func (f *fakeSource) SupportsEventType(t event.Type) bool             { return f.types[t] }

// imageSource builds a source for a snapshot-capable camera.
func imageSource(t *testing.T, exec trait.CommandExecutor) *fakeSource {
	t.Helper()
	built, err := trait.Build(map[string]json.RawMessage{
		string(trait.CameraEventImage): json.RawMessage(`{}`),
	}, testDeviceID, exec)
	if err != nil {
		t.Fatal(err)
	}
	return &fakeSource{
		img: built[trait.CameraEventImage].(*trait.CameraEventImageTrait),
		types: map[event.Type]bool{
			event.CameraMotion:  true,
			event.CameraPerson:  true,
			event.DoorbellChime: true,
		},
	}
}

// clipSource builds a source for a clip-preview camera.
func clipSource(t *testing.T, exec trait.CommandExecutor) *fakeSource {
	t.Helper()
	built, err := trait.Build(map[string]json.RawMessage{
		string(trait.CameraClipPreview): json.RawMessage(`{}`),
	}, testDeviceID, exec)
	if err != nil {
		t.Fatal(err)
	}
	return &fakeSource{
		clip: built[trait.CameraClipPreview].(*trait.CameraClipPreviewTrait),
		types: map[event.Type]bool{
			event.CameraMotion:      true,
			event.CameraPerson:      true,
			event.CameraClipPreview: true,
		},
	}
}

func newTestManager(source TraitSource) *Manager {
	m := NewManager(testDeviceID, source, diagnostics.New())
	m.now = func() time.Time { return baseTime.Add(time.Second) }
	return m
}

func motionMessage(t *testing.T, sessionID, eventID string, ts time.Time) *event.Message {
	t.Helper()
	return eventMessage(t, ts, "", fmt.Sprintf(
		`"sdm.devices.events.CameraMotion.Motion": {"eventSessionId": %q, "eventId": %q}`,
		sessionID, eventID))
}

func eventMessage(t *testing.T, ts time.Time, threadState string, eventsJSON string) *event.Message {
	t.Helper()
	thread := ""
	if threadState != "" {
		thread = fmt.Sprintf(`"eventThreadId": "thread-1", "eventThreadState": %q,`, threadState)
	}
	data := fmt.Sprintf(`{
		"eventId": "msg-id",
		"timestamp": %q,
		%s
		"resourceUpdate": {"name": %q, "events": {%s}}
	}`, ts.Format(time.RFC3339Nano), thread, testDeviceID, eventsJSON)
	m, err := event.ParseMessage([]byte(data))
	if err != nil {
		t.Fatalf("ParseMessage: %v", err)
	}
	return m
}

func TestHandleEventsNotifiesCallback(t *testing.T) {
	exec := &fakeExec{}
	m := newTestManager(imageSource(t, exec))
	var notified []*event.Message
	m.SetUpdateCallback(func(_ context.Context, msg *event.Message) {
		notified = append(notified, msg)
	})

	msg := motionMessage(t, "S1", "E1", baseTime)
	if err := m.HandleEvents(context.Background(), msg); err != nil {
		t.Fatalf("HandleEvents: %v", err)
	}
	if len(notified) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(notified))
	}
	events := notified[0].ResourceUpdateEvents()
	if _, ok := events[event.CameraMotion]; !ok {
		t.Error("expected motion event in notification")
	}

	// Re-delivering the same event type in the same session is not a new
	// notification.
	if err := m.HandleEvents(context.Background(), motionMessage(t, "S1", "E1", baseTime)); err != nil {
		t.Fatalf("HandleEvents: %v", err)
	}
	if len(notified) != 1 {
		t.Errorf("expected no new notification for repeated event type, got %d", len(notified))
	}
}

func TestSessionAccumulation(t *testing.T) {
	exec := &fakeExec{}
	m := newTestManager(imageSource(t, exec))

	if err := m.HandleEvents(context.Background(), motionMessage(t, "S1", "E1", baseTime)); err != nil {
		t.Fatal(err)
	}
	person := eventMessage(t, baseTime, "",
		`"sdm.devices.events.CameraPerson.Person": {"eventSessionId": "S1", "eventId": "E2"}`)
	if err := m.HandleEvents(context.Background(), person); err != nil {
		t.Fatal(err)
	}

	records, err := m.loadRecords(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 session record, got %d", len(records))
	}
	r := records[0]
	if len(r.Events) != 2 {
		t.Errorf("expected accumulated session with 2 events, got %d", len(r.Events))
	}
	if _, ok := r.Events[event.CameraMotion]; !ok {
		t.Error("motion event missing from session")
	}
	if _, ok := r.Events[event.CameraPerson]; !ok {
		t.Error("person event missing from session")
	}
}

func TestCacheBoundEviction(t *testing.T) {
	exec := &fakeExec{imageData: []byte("img")}
	m := newTestManager(imageSource(t, exec))
	store := NewInMemoryStore()
	m.SetCachePolicy(&CachePolicy{EventCacheSize: 2, Fetch: true, Store: store})

	for i := 1; i <= 3; i++ {
		msg := motionMessage(t, fmt.Sprintf("S%d", i), fmt.Sprintf("E%d", i), baseTime)
		if err := m.HandleEvents(context.Background(), msg); err != nil {
			t.Fatal(err)
		}
	}

	records, err := m.loadRecords(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 {
		t.Fatalf("expected cache bounded at 2 sessions, got %d", len(records))
	}
	if records[0].SessionID != "S2" || records[1].SessionID != "S3" {
		t.Errorf("expected oldest session evicted, got %q, %q", records[0].SessionID, records[1].SessionID)
	}
	// Evicted media is purged from the store.
	if data, _ := store.LoadMedia(context.Background(), store.ImageMediaKey(testDeviceID, event.Event{
		SessionID: "S1", EventID: "E1", Timestamp: baseTime,
	})); data != nil {
		t.Error("expected evicted session media to be removed")
	}
}

func TestLazyFetchOnGetMedia(t *testing.T) {
	exec := &fakeExec{imageData: []byte("snapshot")}
	m := newTestManager(imageSource(t, exec))

	if err := m.HandleEvents(context.Background(), motionMessage(t, "S1", "E1", baseTime)); err != nil {
		t.Fatal(err)
	}
	if exec.generateCalls != 0 {
		t.Fatalf("no media should be fetched before GetMedia, got %d calls", exec.generateCalls)
	}

	tok := event.Token{SessionID: "S1", EventID: "E1"}
	media, err := m.GetMedia(context.Background(), tok)
	if err != nil {
		t.Fatalf("GetMedia: %v", err)
	}
	if media == nil || string(media.Contents) != "snapshot" {
		t.Fatalf("media = %+v", media)
	}
	if media.MediaType != event.MediaTypeImage {
		t.Errorf("media type = %s", media.MediaType)
	}
	if exec.generateCalls != 1 {
		t.Errorf("expected 1 generate call, got %d", exec.generateCalls)
	}

	// Second fetch is served from the cache without a new command.
	media2, err := m.GetMedia(context.Background(), tok)
	if err != nil {
		t.Fatalf("GetMedia: %v", err)
	}
	if media2 == nil || string(media2.Contents) != "snapshot" {
		t.Fatalf("media2 = %+v", media2)
	}
	if exec.generateCalls != 1 {
		t.Errorf("expected cached media, got %d generate calls", exec.generateCalls)
	}
}

func TestGetMediaExpiredEvent(t *testing.T) {
	exec := &fakeExec{imageData: []byte("snapshot")}
	m := newTestManager(imageSource(t, exec))
	// The event is past its TTL by the time media is requested.
	m.now = func() time.Time { return baseTime.Add(time.Minute) }

	if err := m.HandleEvents(context.Background(), motionMessage(t, "S1", "E1", baseTime)); err != nil {
		t.Fatal(err)
	}
	media, err := m.GetMedia(context.Background(), event.Token{SessionID: "S1", EventID: "E1"})
	if err != nil {
		t.Fatalf("GetMedia: %v", err)
	}
	if media != nil {
		t.Error("expired event should yield no media")
	}
	if exec.generateCalls != 0 {
		t.Errorf("expired event should not be fetched, got %d calls", exec.generateCalls)
	}
}

func TestGetMediaUnknownSession(t *testing.T) {
	m := newTestManager(imageSource(t, &fakeExec{}))
	media, err := m.GetMedia(context.Background(), event.Token{SessionID: "nope", EventID: "E"})
	if err != nil {
		t.Fatalf("GetMedia: %v", err)
	}
	if media != nil {
		t.Error("unknown session should yield no media")
	}
}

func TestPrefetchSuppressesUntilMediaArrives(t *testing.T) {
	exec := &fakeExec{imageData: []byte("clip-bytes")}
	m := newTestManager(clipSource(t, exec))
	m.SetCachePolicy(&CachePolicy{EventCacheSize: 5, Fetch: true, Store: NewInMemoryStore()})

	var notified []*event.Message
	m.SetUpdateCallback(func(_ context.Context, msg *event.Message) {
		notified = append(notified, msg)
	})

	// Motion arrives first without the clip; nothing can be fetched yet so
	// the notification is withheld.
	started := eventMessage(t, baseTime, "STARTED",
		`"sdm.devices.events.CameraMotion.Motion": {"eventSessionId": "S1", "eventId": "E1"}`)
	if err := m.HandleEvents(context.Background(), started); err != nil {
		t.Fatal(err)
	}
	if len(notified) != 0 {
		t.Fatalf("notification should be withheld until media lands, got %d", len(notified))
	}

	// The clip preview closes the thread; media is fetched and the
	// accumulated session is delivered.
	ended := eventMessage(t, baseTime, "ENDED",
		`"sdm.devices.events.CameraClipPreview.ClipPreview": {"eventSessionId": "S1", "previewUrl": "https://previewurl/clip.mp4"}`)
	if err := m.HandleEvents(context.Background(), ended); err != nil {
		t.Fatal(err)
	}
	if len(notified) != 1 {
		t.Fatalf("expected delivery at thread end, got %d", len(notified))
	}
	events := notified[0].ResourceUpdateEvents()
	if len(events) != 2 {
		t.Fatalf("expected accumulated notification with 2 events, got %d", len(events))
	}
	if _, ok := events[event.CameraMotion]; !ok {
		t.Error("expected motion in accumulated notification")
	}
	if _, ok := events[event.CameraClipPreview]; !ok {
		t.Error("expected clip preview in accumulated notification")
	}
	if exec.fetchCalls != 1 {
		t.Errorf("expected 1 clip download, got %d", exec.fetchCalls)
	}
}

func TestPrefetchFailureStillDelivers(t *testing.T) {
	exec := &fakeExec{execErr: errors.New("backend down")}
	m := newTestManager(imageSource(t, exec))
	m.SetCachePolicy(&CachePolicy{EventCacheSize: 5, Fetch: true, Store: NewInMemoryStore()})

	var notified []*event.Message
	m.SetUpdateCallback(func(_ context.Context, msg *event.Message) {
		notified = append(notified, msg)
	})
	if err := m.HandleEvents(context.Background(), motionMessage(t, "S1", "E1", baseTime)); err != nil {
		t.Fatal(err)
	}
	if len(notified) != 1 {
		t.Errorf("fetch failure must not swallow the notification, got %d", len(notified))
	}
}

func TestPrefetchRateLimited(t *testing.T) {
	exec := &fakeExec{imageData: []byte("img")}
	m := newTestManager(imageSource(t, exec))
	// One token with no refill: the first eager fetch is permitted, the
	// second has to wait for a token that never comes.
	limiter := rate.NewLimiter(0, 1)
	m.SetCachePolicy(&CachePolicy{EventCacheSize: 5, Fetch: true, Store: NewInMemoryStore(), FetchLimiter: limiter})

	var notified int
	m.SetUpdateCallback(func(_ context.Context, _ *event.Message) { notified++ })

	if err := m.HandleEvents(context.Background(), motionMessage(t, "S1", "E1", baseTime)); err != nil {
		t.Fatal(err)
	}
	if exec.generateCalls != 1 {
		t.Fatalf("first prefetch should pass the limiter, got %d calls", exec.generateCalls)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := m.HandleEvents(ctx, motionMessage(t, "S2", "E2", baseTime)); err != nil {
		t.Fatal(err)
	}
	if exec.generateCalls != 1 {
		t.Errorf("exhausted limiter should block the second prefetch, got %d calls", exec.generateCalls)
	}
	if notified != 2 {
		t.Errorf("rate-limited fetch must not swallow the notification, got %d", notified)
	}

	// Once the limiter allows traffic again, prefetch resumes.
	limiter.SetLimit(rate.Inf)
	if err := m.HandleEvents(context.Background(), motionMessage(t, "S3", "E3", baseTime)); err != nil {
		t.Fatal(err)
	}
	if exec.generateCalls != 2 {
		t.Errorf("open limiter should permit prefetch, got %d calls", exec.generateCalls)
	}
}

func TestUnsupportedEventsDropped(t *testing.T) {
	exec := &fakeExec{}
	source := imageSource(t, exec)
	source.types = map[event.Type]bool{event.DoorbellChime: true}
	m := newTestManager(source)

	var notified int
	m.SetUpdateCallback(func(_ context.Context, _ *event.Message) { notified++ })
	if err := m.HandleEvents(context.Background(), motionMessage(t, "S1", "E1", baseTime)); err != nil {
		t.Fatal(err)
	}
	if notified != 0 {
		t.Error("unsupported events should not notify")
	}
	records, _ := m.loadRecords(context.Background())
	if len(records) != 0 {
		t.Error("unsupported events should not be stored")
	}
}

func TestImageSessions(t *testing.T) {
	exec := &fakeExec{imageData: []byte("img")}
	m := newTestManager(imageSource(t, exec))
	m.SetCachePolicy(&CachePolicy{EventCacheSize: 5, Fetch: true, Store: NewInMemoryStore()})

	if err := m.HandleEvents(context.Background(), motionMessage(t, "S1", "E1", baseTime)); err != nil {
		t.Fatal(err)
	}
	later := eventMessage(t, baseTime, "",
		`"sdm.devices.events.DoorbellChime.Chime": {"eventSessionId": "S2", "eventId": "E2"}`)
	later.Timestamp = baseTime.Add(time.Second)
	if err := m.HandleEvents(context.Background(), later); err != nil {
		t.Fatal(err)
	}

	sessions, err := m.ImageSessions(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(sessions) != 2 {
		t.Fatalf("expected 2 image sessions, got %d", len(sessions))
	}
	if sessions[0].EventType != event.DoorbellChime {
		t.Errorf("sessions should be newest first, got %s", sessions[0].EventType)
	}
	if sessions[0].EventToken == "" {
		t.Error("expected a usable event token")
	}
}

type storeTranscoder struct {
	store *InMemoryStore
	data  []byte
	fail  bool
}

func (s *storeTranscoder) TranscodeClip(ctx context.Context, _, outputFile string) error {
	if s.fail {
		return errors.New("transcode failed")
	}
	return s.store.SaveMedia(ctx, outputFile, s.data)
}

func TestClipPreviewSessionsAndThumbnail(t *testing.T) {
	exec := &fakeExec{imageData: []byte("clip-bytes")}
	m := newTestManager(clipSource(t, exec))
	store := NewInMemoryStore()
	tc := &storeTranscoder{store: store, data: []byte("thumb-bytes")}
	m.SetCachePolicy(&CachePolicy{EventCacheSize: 5, Fetch: true, Store: store, Transcoder: tc})

	msg := eventMessage(t, baseTime, "ENDED",
		`"sdm.devices.events.CameraPerson.Person": {"eventSessionId": "S1", "eventId": "E1"},
		 "sdm.devices.events.CameraClipPreview.ClipPreview": {"eventSessionId": "S1", "previewUrl": "https://previewurl/clip.mp4"}`)
	if err := m.HandleEvents(context.Background(), msg); err != nil {
		t.Fatal(err)
	}

	clips, err := m.ClipPreviewSessions(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(clips) != 1 {
		t.Fatalf("expected 1 clip session, got %d", len(clips))
	}
	if len(clips[0].EventTypes) != 1 || clips[0].EventTypes[0] != event.CameraPerson {
		t.Errorf("clip event types = %v", clips[0].EventTypes)
	}

	media, err := m.GetMediaFromToken(context.Background(), clips[0].EventToken)
	if err != nil {
		t.Fatal(err)
	}
	if media == nil || string(media.Contents) != "clip-bytes" {
		t.Fatalf("clip media = %+v", media)
	}
	if media.MediaType != event.MediaTypeClipPreview {
		t.Errorf("clip media type = %s", media.MediaType)
	}

	thumb, err := m.GetClipThumbnailFromToken(context.Background(), clips[0].EventToken)
	if err != nil {
		t.Fatal(err)
	}
	if thumb == nil || string(thumb.Contents) != "thumb-bytes" {
		t.Fatalf("thumbnail = %+v", thumb)
	}
	if thumb.MediaType != event.MediaTypeImagePreview {
		t.Errorf("thumbnail media type = %s", thumb.MediaType)
	}

	// Second request is served from the cached thumbnail.
	tc.fail = true
	thumb2, err := m.GetClipThumbnailFromToken(context.Background(), clips[0].EventToken)
	if err != nil {
		t.Fatal(err)
	}
	if thumb2 == nil || string(thumb2.Contents) != "thumb-bytes" {
		t.Fatalf("cached thumbnail = %+v", thumb2)
	}
}

func TestGetClipThumbnailNoTranscoder(t *testing.T) {
	exec := &fakeExec{imageData: []byte("clip-bytes")}
	m := newTestManager(clipSource(t, exec))
	m.SetCachePolicy(&CachePolicy{EventCacheSize: 5, Fetch: true, Store: NewInMemoryStore()})

	msg := eventMessage(t, baseTime, "ENDED",
		`"sdm.devices.events.CameraMotion.Motion": {"eventSessionId": "S1", "eventId": "E1"},
		 "sdm.devices.events.CameraClipPreview.ClipPreview": {"eventSessionId": "S1", "previewUrl": "https://previewurl/clip.mp4"}`)
	if err := m.HandleEvents(context.Background(), msg); err != nil {
		t.Fatal(err)
	}
	clips, err := m.ClipPreviewSessions(context.Background())
	if err != nil || len(clips) != 1 {
		t.Fatalf("clips = %v, err = %v", clips, err)
	}
	thumb, err := m.GetClipThumbnailFromToken(context.Background(), clips[0].EventToken)
	if err != nil {
		t.Fatal(err)
	}
	if thumb != nil {
		t.Error("thumbnail should be unavailable without a transcoder")
	}
}
