// Nestkit - Google Nest Smart Device Management client SDK
// Copyright 2026 Halcyon Labs
// SPDX-License-Identifier: Apache-2.0
// https://github.com/halcyonlabs/nestkit

package subscriber

import (
	"context"

	"github.com/thejerf/suture/v4"
)

// Service adapts a Subscriber to a suture service so supervision trees can
// own its lifecycle. A failed start is returned to the supervisor, which
// restarts the service with its own backoff on top of the subscriber's.
type Service struct {
	sub *Subscriber
}

var _ suture.Service = (*Service)(nil)

// NewService wraps sub for supervision.
func NewService(sub *Subscriber) *Service {
	return &Service{sub: sub}
}

// Serve implements suture.Service.
func (s *Service) Serve(ctx context.Context) error {
	if err := s.sub.Start(ctx); err != nil {
		return err
	}
	defer s.sub.Stop()
	<-ctx.Done()
	return ctx.Err()
}
