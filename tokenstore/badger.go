// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package tokenstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/dgraph-io/badger/v4"
)

// keyPrefix namespaces token records inside the BadgerDB keyspace.
const keyPrefix = "token/"

// Config holds configuration for the BadgerDB-backed store.
type Config struct {
	// Path is the directory for BadgerDB files.
	// Required for persistent databases. Ignored when InMemory is true.
	Path string

	// InMemory enables in-memory mode (no disk persistence).
	// Useful for testing.
	InMemory bool

	// SyncWrites enables synchronous writes for durability.
	// Default: true for production, false for testing.
	SyncWrites bool

	// Logger is the logger for BadgerDB operations.
	// If nil, BadgerDB's internal logging is disabled.
	Logger *slog.Logger
}

// DefaultConfig returns production defaults: durable synchronous writes.
func DefaultConfig() Config {
	return Config{SyncWrites: true}
}

// InMemoryConfig returns configuration optimized for testing: in-memory
// mode, no disk I/O, asynchronous writes.
func InMemoryConfig() Config {
	return Config{InMemory: true, SyncWrites: false}
}

// badgerLogger adapts slog.Logger to BadgerDB's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// BadgerStore implements Store on an embedded BadgerDB instance.
//
// Thread Safety: the underlying *badger.DB is safe for concurrent use;
// BadgerStore adds no mutable state of its own.
type BadgerStore struct {
	db *badger.DB
}

// Compile-time interface implementation check.
var _ Store = (*BadgerStore)(nil)

// Open creates and opens a BadgerDB-backed token store with the given
// configuration. Creates the directory if it doesn't exist. The caller
// must call Close() when done.
func Open(cfg Config) (*BadgerStore, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent database")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create database directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}

	opts = opts.WithSyncWrites(cfg.SyncWrites)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil) // Disable BadgerDB's internal logging
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}

	return &BadgerStore{db: db}, nil
}

// OpenWithPath opens a persistent store with production defaults at path.
func OpenWithPath(path string) (*BadgerStore, error) {
	cfg := DefaultConfig()
	cfg.Path = path
	return Open(cfg)
}

// OpenInMemory opens an in-memory store for testing. Data is lost when
// the store is closed.
func OpenInMemory() (*BadgerStore, error) {
	return Open(InMemoryConfig())
}

// Close releases the underlying database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

// Lookup returns the record for the given token, or ErrTokenNotFound.
func (s *BadgerStore) Lookup(_ context.Context, token string) (*AccessToken, error) {
	var rec AccessToken
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyPrefix + token))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, ErrTokenNotFound
		}
		return nil, fmt.Errorf("token lookup failed: %w", err)
	}
	return &rec, nil
}

// Put writes the record, overwriting any existing record for the token.
//
// This is a blind write: the usage-counter write-back from the guard
// stores its own snapshot, so concurrent increments for the same token
// resolve last-write-wins.
func (s *BadgerStore) Put(_ context.Context, rec *AccessToken) error {
	if rec == nil || rec.Token == "" {
		return errors.New("record must have a token")
	}
	val, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal token record: %w", err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(keyPrefix+rec.Token), val)
	})
	if err != nil {
		return fmt.Errorf("token write failed: %w", err)
	}
	return nil
}

// List returns every provisioned token record, in key order.
func (s *BadgerStore) List(_ context.Context) ([]*AccessToken, error) {
	var recs []*AccessToken
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(keyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var rec AccessToken
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			})
			if err != nil {
				return err
			}
			recs = append(recs, &rec)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("token list failed: %w", err)
	}
	return recs, nil
}

// Delete removes the record for the given token.
func (s *BadgerStore) Delete(_ context.Context, token string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(keyPrefix + token))
	})
	if err != nil {
		return fmt.Errorf("token delete failed: %w", err)
	}
	return nil
}
