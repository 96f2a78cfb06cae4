// Nestkit - Google Nest Smart Device Management client SDK
// Copyright 2026 Halcyon Labs
// SPDX-License-Identifier: Apache-2.0
// https://github.com/halcyonlabs/nestkit

package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-json"
	"github.com/thejerf/suture/v4"
	"github.com/thejerf/sutureslog"
	"golang.org/x/time/rate"

	"github.com/halcyonlabs/nestkit/api"
	"github.com/halcyonlabs/nestkit/auth"
	"github.com/halcyonlabs/nestkit/event"
	"github.com/halcyonlabs/nestkit/internal/config"
	"github.com/halcyonlabs/nestkit/internal/logging"
	"github.com/halcyonlabs/nestkit/media"
	"github.com/halcyonlabs/nestkit/media/badgerstore"
	"github.com/halcyonlabs/nestkit/subscriber"
	"github.com/halcyonlabs/nestkit/transcoder"
)

// cmdSubscribe runs the event consumer under a supervisor until the context
// is cancelled, printing every received message as one json line.
func cmdSubscribe(ctx context.Context, cfg *config.Config, creds auth.Credentials, client *api.Client) error {
	if cfg.Subscriber.Subscription == "" {
		return fmt.Errorf("subscriber.subscription is required (NEST_SUBSCRIPTION)")
	}

	policy, closeStore, err := cachePolicy(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	pull, err := subscriber.NewGooglePullClient(ctx, creds)
	if err != nil {
		return err
	}
	defer pull.Close()

	sub, err := subscriber.NewSubscriber(client, pull, cfg.Subscriber.Subscription,
		subscriber.WithCachePolicy(policy),
		subscriber.WithMessageTimeout(cfg.Subscriber.AckTimeout))
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	sub.SetUpdateCallback(func(_ context.Context, msg *event.Message) {
		line := map[string]any{
			"eventId":   msg.EventID,
			"timestamp": msg.Timestamp,
		}
		if msg.ResourceUpdate != nil {
			line["device"] = msg.ResourceUpdate.Name
		}
		if msg.RelationUpdate != nil {
			line["relation"] = msg.RelationUpdate
		}
		events := msg.ResourceUpdateEvents()
		if len(events) > 0 {
			types := make([]string, 0, len(events))
			for t := range events {
				types = append(types, string(t))
			}
			line["events"] = types
		}
		if err := enc.Encode(line); err != nil {
			logging.Err(err).Msg("Failed to write event")
		}
	})

	handler := &sutureslog.Handler{Logger: logging.NewSlogLogger()}
	sup := suture.New("nestctl", suture.Spec{
		EventHook:      handler.MustHook(),
		FailureBackoff: 15 * time.Second,
		Timeout:        10 * time.Second,
	})
	sup.Add(subscriber.NewService(sub))

	logging.Info().Str("subscription", cfg.Subscriber.Subscription).Msg("Streaming events, ctrl-c to stop")
	err = sup.Serve(ctx)
	if err != nil && err != context.Canceled {
		return err
	}
	return nil
}

// cachePolicy builds the media cache policy from config, opening the badger
// store when a path is configured.
func cachePolicy(cfg *config.Config) (*media.CachePolicy, func(), error) {
	policy := media.NewCachePolicy()
	policy.EventCacheSize = cfg.Media.CacheSize
	policy.Fetch = cfg.Media.Fetch
	if cfg.Media.FetchRate > 0 {
		policy.FetchLimiter = rate.NewLimiter(rate.Limit(cfg.Media.FetchRate), 1)
	}

	closeStore := func() {}
	if cfg.Media.StorePath != "" {
		store, err := badgerstore.Open(badgerstore.Config{Path: cfg.Media.StorePath})
		if err != nil {
			return nil, nil, fmt.Errorf("open media store: %w", err)
		}
		policy.Store = store
		closeStore = func() {
			if err := store.Close(); err != nil {
				logging.Err(err).Msg("Failed to close media store")
			}
		}
	}
	if cfg.Media.FFmpegPath != "" {
		policy.Transcoder = transcoder.NewFFmpeg(cfg.Media.FFmpegPath, "")
	}
	return policy, closeStore, nil
}
