// Nestkit - Google Nest Smart Device Management client SDK
// Copyright 2026 Halcyon Labs
// SPDX-License-Identifier: Apache-2.0
// https://github.com/halcyonlabs/nestkit

package subscriber

import (
	"context"
	"fmt"
	"time"

	pubsubapi "cloud.google.com/go/pubsub/apiv1"
	"cloud.google.com/go/pubsub/apiv1/pubsubpb"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/halcyonlabs/nestkit"
	"github.com/halcyonlabs/nestkit/auth"
	"github.com/halcyonlabs/nestkit/internal/logging"
)

// StreamAckDeadline is the ack deadline requested for the streaming pull.
const StreamAckDeadline = 30 * time.Second

// PulledMessage is one message received from the subscription.
type PulledMessage struct {
	AckID string
	Data  []byte
}

// PullResponse is one batch of messages from the stream.
type PullResponse struct {
	Messages []PulledMessage
}

// PullStream is an open streaming pull session.
type PullStream interface {
	// Recv blocks for the next batch of messages.
	Recv() (*PullResponse, error)

	// SendAcks acknowledges processed messages on the stream.
	SendAcks(ackIDs []string) error

	// CloseSend closes the sending side of the stream.
	CloseSend() error
}

// PullClient opens streaming pull sessions against a subscription. Faked in
// tests.
type PullClient interface {
	StreamingPull(ctx context.Context, subscription string) (PullStream, error)
	Close() error
}

// classifyError maps a pub/sub RPC error onto the error taxonomy: a missing
// subscription is a configuration problem, an authentication failure is an
// auth problem, anything else is a subscriber failure.
func classifyError(op string, err error) error {
	switch status.Code(err) {
	case codes.NotFound:
		return fmt.Errorf("%w: %s: %v", nestkit.ErrConfiguration, op, err)
	case codes.Unauthenticated:
		return fmt.Errorf("%w: %s: %v", nestkit.ErrAuth, op, err)
	default:
		return fmt.Errorf("%w: %s: %v", nestkit.ErrSubscriber, op, err)
	}
}

// GooglePullClient is the production PullClient backed by the Cloud Pub/Sub
// gRPC API.
type GooglePullClient struct {
	client *pubsubapi.SubscriberClient
}

// NewGooglePullClient dials the Pub/Sub subscriber API with the given
// credentials.
func NewGooglePullClient(ctx context.Context, creds auth.Credentials, opts ...option.ClientOption) (*GooglePullClient, error) {
	opts = append([]option.ClientOption{option.WithTokenSource(auth.TokenSource(ctx, creds))}, opts...)
	client, err := pubsubapi.NewSubscriberClient(ctx, opts...)
	if err != nil {
		return nil, classifyError("new_subscriber_client", err)
	}
	return &GooglePullClient{client: client}, nil
}

func (g *GooglePullClient) StreamingPull(ctx context.Context, subscription string) (PullStream, error) {
	logging.Debug().Str("subscription", subscription).Msg("Sending streaming pull request")
	stream, err := g.client.StreamingPull(ctx)
	if err != nil {
		return nil, classifyError("streaming_pull", err)
	}
	err = stream.Send(&pubsubpb.StreamingPullRequest{
		Subscription:             subscription,
		StreamAckDeadlineSeconds: int32(StreamAckDeadline.Seconds()),
	})
	if err != nil {
		return nil, classifyError("streaming_pull", err)
	}
	return &googleStream{stream: stream}, nil
}

func (g *GooglePullClient) Close() error {
	return g.client.Close()
}

type googleStream struct {
	stream pubsubpb.Subscriber_StreamingPullClient
}

func (s *googleStream) Recv() (*PullResponse, error) {
	resp, err := s.stream.Recv()
	if err != nil {
		return nil, classifyError("recv", err)
	}
	out := &PullResponse{Messages: make([]PulledMessage, 0, len(resp.ReceivedMessages))}
	for _, rm := range resp.ReceivedMessages {
		if rm.Message == nil {
			continue
		}
		out.Messages = append(out.Messages, PulledMessage{
			AckID: rm.AckId,
			Data:  rm.Message.Data,
		})
	}
	return out, nil
}

func (s *googleStream) SendAcks(ackIDs []string) error {
	if len(ackIDs) == 0 {
		return nil
	}
	logging.Debug().Int("count", len(ackIDs)).Msg("Acking messages")
	if err := s.stream.Send(&pubsubpb.StreamingPullRequest{AckIds: ackIDs}); err != nil {
		return classifyError("acknowledge", err)
	}
	return nil
}

func (s *googleStream) CloseSend() error {
	return s.stream.CloseSend()
}
