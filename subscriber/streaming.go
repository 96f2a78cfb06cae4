// Nestkit - Google Nest Smart Device Management client SDK
// Copyright 2026 Halcyon Labs
// SPDX-License-Identifier: Apache-2.0
// https://github.com/halcyonlabs/nestkit

package subscriber

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/halcyonlabs/nestkit/diagnostics"
	"github.com/halcyonlabs/nestkit/event"
	"github.com/halcyonlabs/nestkit/internal/logging"
)

const (
	// MessageTimeout is the default bound on processing a single pulled
	// message. A message that cannot be processed in time is left unacked
	// for redelivery.
	MessageTimeout = 30 * time.Second

	// MinBackoff is the delay before the first reconnect attempt.
	MinBackoff = 10 * time.Second

	// MaxBackoff caps the reconnect delay.
	MaxBackoff = 10 * time.Minute

	// BackoffMultiplier grows the reconnect delay after each failed attempt.
	BackoffMultiplier = 1.5
)

// MessageCallback handles one decoded event message. A non-nil error leaves
// the message unacked so the subscription redelivers it.
type MessageCallback func(ctx context.Context, msg *event.Message) error

// StreamingManager owns one streaming pull connection: it receives message
// batches, dispatches them to the callback, acknowledges the successes, and
// reconnects with exponential backoff when the stream fails. Acks that could
// not be sent before a disconnect are carried over to the next connection.
type StreamingManager struct {
	client       PullClient
	subscription string
	callback     MessageCallback
	diag         *diagnostics.Diagnostics

	minBackoff     time.Duration
	maxBackoff     time.Duration
	messageTimeout time.Duration

	mu           sync.Mutex
	pendingAckMu sync.Mutex
	pendingAcks  []string
	stream       PullStream
	cancel       context.CancelFunc
	done         chan struct{}
	healthy      atomic.Bool
}

// StreamingOption configures a StreamingManager.
type StreamingOption func(*StreamingManager)

// WithStreamingMessageTimeout overrides the per-message processing bound.
// Non-positive values keep the default.
func WithStreamingMessageTimeout(d time.Duration) StreamingOption {
	return func(s *StreamingManager) {
		if d > 0 {
			s.messageTimeout = d
		}
	}
}

// NewStreamingManager returns a manager for the given subscription. Start
// must be called to begin pulling.
func NewStreamingManager(client PullClient, subscription string, callback MessageCallback, diag *diagnostics.Diagnostics, opts ...StreamingOption) *StreamingManager {
	s := &StreamingManager{
		client:         client,
		subscription:   subscription,
		callback:       callback,
		diag:           diag,
		minBackoff:     MinBackoff,
		maxBackoff:     MaxBackoff,
		messageTimeout: MessageTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Healthy reports whether the stream is currently connected.
func (s *StreamingManager) Healthy() bool {
	return s.healthy.Load()
}

// PendingAckIDs drains the ack ids accumulated since the last drain. The
// returned slice is owned by the caller.
func (s *StreamingManager) PendingAckIDs() []string {
	s.pendingAckMu.Lock()
	defer s.pendingAckMu.Unlock()
	ids := s.pendingAcks
	s.pendingAcks = nil
	return ids
}

func (s *StreamingManager) appendAckID(id string) {
	s.pendingAckMu.Lock()
	s.pendingAcks = append(s.pendingAcks, id)
	s.pendingAckMu.Unlock()
}

// Start makes a single connection attempt and, on success, launches the
// background pull loop. A failed first attempt is returned to the caller
// rather than retried, so misconfiguration surfaces immediately.
func (s *StreamingManager) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done != nil {
		return nil
	}
	s.diag.Increment("start")

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stream, err := s.connect(runCtx)
	if err != nil {
		cancel()
		return err
	}
	s.stream = stream
	s.cancel = cancel
	s.done = make(chan struct{})
	s.healthy.Store(true)
	go s.run(runCtx, stream, s.done)
	return nil
}

// Stop tears down the stream and waits for the pull loop to exit. Safe to
// call multiple times.
func (s *StreamingManager) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	done := s.done
	s.cancel = nil
	s.done = nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	s.diag.Increment("stop")
	cancel()
	<-done
	s.healthy.Store(false)
}

// connect opens a new pull stream and replays any acks left over from the
// previous connection.
func (s *StreamingManager) connect(ctx context.Context) (PullStream, error) {
	s.diag.Increment("connect")
	stream, err := s.client.StreamingPull(ctx, s.subscription)
	if err != nil {
		return nil, err
	}
	if pending := s.PendingAckIDs(); len(pending) > 0 {
		if err := stream.SendAcks(pending); err != nil {
			logging.Warn().Err(err).Int("count", len(pending)).Msg("Failed to replay pending acks")
		}
	}
	return stream, nil
}

func (s *StreamingManager) run(ctx context.Context, stream PullStream, done chan struct{}) {
	defer close(done)
	defer s.healthy.Store(false)
	s.diag.Increment("run")

	b := s.newBackoff()

	for {
		resp, err := stream.Recv()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.diag.Increment("exception")
			s.healthy.Store(false)
			logging.Warn().Err(err).Msg("Streaming pull failed, reconnecting")
			stream = s.reconnect(ctx, b)
			if stream == nil {
				return
			}
			s.healthy.Store(true)
			continue
		}
		// Any response from the server means the connection is good again.
		b.Reset()
		s.handleResponse(ctx, stream, resp)
	}
}

// newBackoff builds the reconnect delay policy: exponential growth without
// jitter, capped at maxBackoff, never giving up.
func (s *StreamingManager) newBackoff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.minBackoff
	b.RandomizationFactor = 0
	b.Multiplier = BackoffMultiplier
	b.MaxInterval = s.maxBackoff
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// reconnect retries the connection with exponential backoff until it
// succeeds or the context is cancelled.
func (s *StreamingManager) reconnect(ctx context.Context, b *backoff.ExponentialBackOff) PullStream {
	for {
		wait := b.NextBackOff()
		s.diag.Increment("backoff")
		logging.Info().Dur("wait", wait).Msg("Backing off before reconnect")
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
		stream, err := s.connect(ctx)
		if err == nil {
			return stream
		}
		if ctx.Err() != nil {
			return nil
		}
		logging.Warn().Err(err).Msg("Reconnect attempt failed")
	}
}

// handleResponse processes a batch and acks the messages that were handled
// successfully.
func (s *StreamingManager) handleResponse(ctx context.Context, stream PullStream, resp *PullResponse) {
	for _, msg := range resp.Messages {
		if ctx.Err() != nil {
			return
		}
		if s.processMessage(ctx, msg) {
			s.appendAckID(msg.AckID)
		}
	}
	if pending := s.PendingAckIDs(); len(pending) > 0 {
		if err := stream.SendAcks(pending); err != nil {
			logging.Warn().Err(err).Int("count", len(pending)).Msg("Ack send failed, deferring to reconnect")
			// Put them back so the next connection replays them.
			s.pendingAckMu.Lock()
			s.pendingAcks = append(pending, s.pendingAcks...)
			s.pendingAckMu.Unlock()
		}
	}
}

// processMessage decodes and dispatches one message, reporting whether it
// should be acked.
func (s *StreamingManager) processMessage(ctx context.Context, msg PulledMessage) bool {
	s.diag.Increment("process_message")
	msgCtx, cancel := context.WithTimeout(ctx, s.messageTimeout)
	defer cancel()

	parsed, err := event.ParseMessage(msg.Data)
	if err != nil {
		s.diag.Increment("process_message_exception")
		logging.Warn().Err(err).Msg("Dropping undecodable message")
		return false
	}
	if err := s.callback(msgCtx, parsed); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			s.diag.Increment("process_message_timeout")
		} else {
			s.diag.Increment("process_message_exception")
		}
		logging.Warn().Err(err).Str("event_id", parsed.EventID).Msg("Message processing failed, leaving unacked")
		return false
	}
	return true
}
