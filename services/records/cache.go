// Copyright (C) 2026 Hunch Creative Ltd (dev@hunchcreative.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package records

// =============================================================================
// CachedStore: Read-Through Record Cache
// =============================================================================
//
// Record store reads are remote HTTP calls with a hard rate ceiling. People
// and budget rows change slowly relative to conversation pace, so pure reads
// go through a BadgerDB cache with a short TTL.
//
// Storage layout:
//
//	records/people/v1/{clientCode}|{searchTerm}  →  JSON PeopleResult
//	records/client/v1/{clientCode}               →  JSON ClientDetail
//	records/spend/v1/{clientCode}/{period}       →  JSON SpendSummary
//
// TTL is enforced by BadgerDB's native GC; expired keys read as misses.
// ReserveJobNumber is a write and is never cached; it also evicts the
// client detail entry so the advanced job sequence is visible immediately.

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	dgbadger "github.com/dgraph-io/badger/v4"

	badgerstore "github.com/hunchcreative/dot/services/storage/badger"
)

// recordsCacheDefaultTTL is the default lifetime of a cached read. Budgets
// move during the working day, so entries stay short-lived.
const recordsCacheDefaultTTL = 5 * time.Minute

const (
	peopleKeyPrefix = "records/people/v1/"
	clientKeyPrefix = "records/client/v1/"
	spendKeyPrefix  = "records/spend/v1/"
)

// errCacheMiss distinguishes "key not found" (a normal miss) from a genuine
// storage error inside the load path.
var errCacheMiss = errors.New("cache miss")

// CachedStore wraps a Store with a BadgerDB read-through cache.
//
// Description:
//
//	Pure reads (SearchPeople, ClientDetail, SpendSummary) consult the cache
//	first and fall back to the inner store, saving on the way out. Cache
//	failures are never fatal: a broken cache degrades to direct reads with
//	a warning. A nil DB disables caching entirely, which is the correct mode
//	for tests and for deployments without a cache directory.
//
// Thread Safety: Safe for concurrent use. BadgerDB transactions are
// per-goroutine; the inner store manages its own rate limiting.
type CachedStore struct {
	inner  Store
	db     *badgerstore.DB
	ttl    time.Duration
	logger *slog.Logger
}

// NewCachedStore creates a CachedStore over the given inner store.
//
// Inputs:
//   - inner: The real record store client. Must not be nil.
//   - db: Opened BadgerDB wrapper, or nil to disable caching.
//   - ttl: Lifetime for each cached entry. Pass 0 to use the default.
//   - logger: Logger for hit/miss diagnostics. May be nil.
//
// Outputs:
//   - *CachedStore: Ready-to-use store. Never nil.
func NewCachedStore(inner Store, db *badgerstore.DB, ttl time.Duration, logger *slog.Logger) *CachedStore {
	if inner == nil {
		panic("NewCachedStore: inner store must not be nil")
	}
	if ttl <= 0 {
		ttl = recordsCacheDefaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedStore{inner: inner, db: db, ttl: ttl, logger: logger}
}

// SearchPeople queries the people directory through the cache.
func (c *CachedStore) SearchPeople(ctx context.Context, q PeopleQuery) (*PeopleResult, error) {
	key := peopleKey(q)

	var cached PeopleResult
	if c.loadJSON(ctx, key, &cached) {
		return &cached, nil
	}

	result, err := c.inner.SearchPeople(ctx, q)
	if err != nil {
		return nil, err
	}
	c.saveJSON(ctx, key, result)
	return result, nil
}

// ClientDetail returns the merged commercial record through the cache.
func (c *CachedStore) ClientDetail(ctx context.Context, clientCode string) (*ClientDetail, error) {
	key := clientKey(clientCode)

	var cached ClientDetail
	if c.loadJSON(ctx, key, &cached) {
		return &cached, nil
	}

	detail, err := c.inner.ClientDetail(ctx, clientCode)
	if err != nil {
		return nil, err
	}
	c.saveJSON(ctx, key, detail)
	return detail, nil
}

// SpendSummary returns the budget position through the cache.
func (c *CachedStore) SpendSummary(ctx context.Context, clientCode, period string) (*SpendSummary, error) {
	key := spendKey(clientCode, period)

	var cached SpendSummary
	if c.loadJSON(ctx, key, &cached) {
		return &cached, nil
	}

	summary, err := c.inner.SpendSummary(ctx, clientCode, period)
	if err != nil {
		return nil, err
	}
	c.saveJSON(ctx, key, summary)
	return summary, nil
}

// ReserveJobNumber passes through to the inner store and evicts the cached
// client detail, whose nextJobNumber has just advanced.
func (c *CachedStore) ReserveJobNumber(ctx context.Context, clientCode string) (*JobReservation, error) {
	reservation, err := c.inner.ReserveJobNumber(ctx, clientCode)
	if err != nil {
		return nil, err
	}

	if c.db != nil {
		key := clientKey(clientCode)
		evictErr := c.db.WithTxn(ctx, func(txn *dgbadger.Txn) error {
			return txn.Delete(key)
		})
		if evictErr != nil {
			c.logger.Warn("records cache: evict after reserve failed",
				slog.String("client_code", clientCode),
				slog.String("error", evictErr.Error()),
			)
		}
	}

	return reservation, nil
}

// loadJSON reads and decodes a cached entry. Returns true only on a clean
// hit; misses and all failures return false and the caller goes upstream.
func (c *CachedStore) loadJSON(ctx context.Context, key []byte, out any) bool {
	if c.db == nil {
		return false
	}

	var raw []byte
	err := c.db.WithReadTxn(ctx, func(txn *dgbadger.Txn) error {
		item, err := txn.Get(key)
		if errors.Is(err, dgbadger.ErrKeyNotFound) {
			return errCacheMiss
		}
		if err != nil {
			return fmt.Errorf("get cache key: %w", err)
		}
		raw, err = item.ValueCopy(nil)
		if err != nil {
			return fmt.Errorf("copy value: %w", err)
		}
		return nil
	})

	if errors.Is(err, errCacheMiss) {
		c.logger.Debug("records cache: miss", slog.String("key", string(key)))
		return false
	}
	if err != nil {
		c.logger.Warn("records cache: load failed, reading through",
			slog.String("key", string(key)),
			slog.String("error", err.Error()),
		)
		return false
	}

	if err := json.Unmarshal(raw, out); err != nil {
		c.logger.Warn("records cache: decode failed, reading through",
			slog.String("key", string(key)),
			slog.String("error", err.Error()),
		)
		return false
	}

	c.logger.Debug("records cache: hit", slog.String("key", string(key)))
	return true
}

// saveJSON persists a cache entry with the configured TTL. Failure is
// logged and swallowed; the next read simply goes upstream again.
func (c *CachedStore) saveJSON(ctx context.Context, key []byte, value any) {
	if c.db == nil {
		return
	}

	raw, err := json.Marshal(value)
	if err != nil {
		c.logger.Warn("records cache: encode failed",
			slog.String("key", string(key)),
			slog.String("error", err.Error()),
		)
		return
	}

	err = c.db.WithTxn(ctx, func(txn *dgbadger.Txn) error {
		entry := dgbadger.NewEntry(key, raw).WithTTL(c.ttl)
		return txn.SetEntry(entry)
	})
	if err != nil {
		c.logger.Warn("records cache: save failed",
			slog.String("key", string(key)),
			slog.String("error", err.Error()),
		)
		return
	}

	c.logger.Debug("records cache: saved",
		slog.String("key", string(key)),
		slog.Duration("ttl", c.ttl),
	)
}

// =============================================================================
// Keys
// =============================================================================

// peopleKey builds the cache key for a people search. The search term is
// lowercased so equivalent queries share an entry.
func peopleKey(q PeopleQuery) []byte {
	return []byte(peopleKeyPrefix + q.ClientCode + "|" + strings.ToLower(q.SearchTerm))
}

// clientKey builds the cache key for a client detail record.
func clientKey(clientCode string) []byte {
	return []byte(clientKeyPrefix + clientCode)
}

// spendKey builds the cache key for a spend summary.
func spendKey(clientCode, period string) []byte {
	return []byte(spendKeyPrefix + clientCode + "/" + period)
}
