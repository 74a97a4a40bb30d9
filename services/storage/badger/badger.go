// Copyright (C) 2026 Hunch Creative Ltd (dev@hunchcreative.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package badger wraps a BadgerDB instance behind a small transactional
// surface. Callers get context-aware read and write transactions without
// touching BadgerDB lifecycle details; main owns Open and Close.
package badger

import (
	"context"
	"fmt"

	dgbadger "github.com/dgraph-io/badger/v4"
)

// Config controls how the database is opened.
type Config struct {
	// Path is the directory for the BadgerDB value log and LSM tree.
	// Ignored when InMemory is true.
	Path string

	// InMemory opens a database that never touches disk. Used by tests.
	InMemory bool

	// SyncWrites forces an fsync on every write. Off by default; the data
	// stored here is a cache and can always be refetched.
	SyncWrites bool
}

// DefaultConfig returns the standard cache-oriented configuration.
// Callers set Path before passing the config to OpenDB.
func DefaultConfig() Config {
	return Config{
		SyncWrites: false,
	}
}

// DB is an opened BadgerDB handle.
//
// Thread Safety: Safe for concurrent use. BadgerDB transactions are
// per-goroutine.
type DB struct {
	db *dgbadger.DB
}

// OpenDB opens (creating if necessary) a BadgerDB at the configured path.
//
// Description:
//
//	BadgerDB's internal logger is suppressed; operational visibility comes
//	from the callers' slog output. The returned DB must be closed by the
//	caller, typically via defer in main.
//
// Inputs:
//   - cfg: Open configuration. Path must be set unless InMemory is true.
//
// Outputs:
//   - *DB: Opened handle. Nil on error.
//   - error: Non-nil if the directory cannot be created or is locked by
//     another process.
func OpenDB(cfg Config) (*DB, error) {
	opts := dgbadger.DefaultOptions(cfg.Path).
		WithLogger(nil).
		WithSyncWrites(cfg.SyncWrites)

	if cfg.InMemory {
		opts = dgbadger.DefaultOptions("").
			WithLogger(nil).
			WithInMemory(true)
	}

	db, err := dgbadger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badger: open %q: %w", cfg.Path, err)
	}
	return &DB{db: db}, nil
}

// WithReadTxn runs fn inside a read-only transaction.
//
// The context is checked before the transaction starts; BadgerDB itself does
// not observe cancellation mid-transaction.
func (d *DB) WithReadTxn(ctx context.Context, fn func(txn *dgbadger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return d.db.View(fn)
}

// WithTxn runs fn inside a read-write transaction.
func (d *DB) WithTxn(ctx context.Context, fn func(txn *dgbadger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return d.db.Update(fn)
}

// Close releases the database. Further transactions fail after Close.
func (d *DB) Close() error {
	return d.db.Close()
}
