// Nestkit - Google Nest Smart Device Management client SDK
// Copyright 2026 Halcyon Labs
// SPDX-License-Identifier: Apache-2.0
// https://github.com/halcyonlabs/nestkit

// Package badgerstore provides a durable EventMediaStore backed by BadgerDB,
// so event sessions and media survive process restarts.
package badgerstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/halcyonlabs/nestkit/event"
	"github.com/halcyonlabs/nestkit/internal/logging"
	"github.com/halcyonlabs/nestkit/media"
)

const (
	modelKey    = "model:sessions"
	mediaPrefix = "media:"
)

// Config controls how the store opens its database.
type Config struct {
	// Path is the database directory.
	Path string

	// SyncWrites forces an fsync on every write.
	SyncWrites bool
}

// Store is an EventMediaStore persisted in BadgerDB. The session model is
// stored as one JSON document; media content is stored per key.
type Store struct {
	db *badger.DB
}

// Open opens or creates the store at cfg.Path.
func Open(cfg Config) (*Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("badgerstore: path is required")
	}
	opts := badger.DefaultOptions(cfg.Path)
	opts.SyncWrites = cfg.SyncWrites

	// Reduce logging verbosity
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open BadgerDB: %w", err)
	}
	logging.Info().Str("path", cfg.Path).Bool("sync_writes", cfg.SyncWrites).Msg("Event media store opened")
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Load(_ context.Context) (map[string][]*media.SessionRecord, error) {
	var data map[string][]*media.SessionRecord
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(modelKey))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &data)
		})
	})
	if err != nil {
		return nil, fmt.Errorf("load session model: %w", err)
	}
	return data, nil
}

func (s *Store) Save(_ context.Context, data map[string][]*media.SessionRecord) error {
	encoded, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode session model: %w", err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(modelKey), encoded)
	})
	if err != nil {
		return fmt.Errorf("save session model: %w", err)
	}
	return nil
}

func (s *Store) MediaKey(deviceID string, e event.Event) string {
	suffix := "jpg"
	if e.MediaType() == event.MediaTypeClipPreview {
		suffix = "mp4"
	}
	return fmt.Sprintf("%s_%s_%s.%s", deviceID, e.Timestamp.UTC().Format(time.RFC3339), e.SessionID, suffix)
}

func (s *Store) ImageMediaKey(deviceID string, e event.Event) string {
	return fmt.Sprintf("%s_%s_%s_%s.jpg", deviceID, e.Timestamp.UTC().Format(time.RFC3339), e.SessionID, e.EventID)
}

func (s *Store) ClipPreviewMediaKey(deviceID string, e event.Event) string {
	return fmt.Sprintf("%s_%s_%s.mp4", deviceID, e.Timestamp.UTC().Format(time.RFC3339), e.SessionID)
}

func (s *Store) ClipPreviewThumbnailMediaKey(deviceID string, e event.Event) string {
	return fmt.Sprintf("%s_%s_%s_thumb.gif", deviceID, e.Timestamp.UTC().Format(time.RFC3339), e.SessionID)
}

func (s *Store) LoadMedia(_ context.Context, mediaKey string) ([]byte, error) {
	var content []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(mediaPrefix + mediaKey))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		content, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("load media %s: %w", mediaKey, err)
	}
	return content, nil
}

func (s *Store) SaveMedia(_ context.Context, mediaKey string, content []byte) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(mediaPrefix+mediaKey), content)
	})
	if err != nil {
		return fmt.Errorf("save media %s: %w", mediaKey, err)
	}
	return nil
}

func (s *Store) RemoveMedia(_ context.Context, mediaKey string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		err := txn.Delete([]byte(mediaPrefix + mediaKey))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("remove media %s: %w", mediaKey, err)
	}
	return nil
}
