// Copyright (C) 2026 Hunch Creative Ltd (dev@hunchcreative.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// records_cache_dump inspects the Dot assistant's records cache.
//
// The records cache persists record store responses (people searches, client
// details, spend summaries) in BadgerDB between server restarts so repeat
// questions skip the upstream API. This tool opens the cache read-only and
// prints a human-readable summary: keys, TTL remaining, sizes, and a preview
// of each cached value.
//
// Usage:
//
//	records_cache_dump [--path /path/to/records/cache]
//
// If --path is not given, reads DOT_CACHE_DIR from the environment, falling
// back to ~/.dot/cache/records/.
//
// Exit codes:
//
//	0: success (including "empty cache", which prints a message and exits 0)
//	1: error opening or reading the database
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	dgbadger "github.com/dgraph-io/badger/v4"
)

// Key prefixes must match the cache layer in services/records exactly.
const (
	cacheKeyRoot    = "records/"
	peoplePrefix    = "records/people/v1/"
	clientPrefix    = "records/client/v1/"
	spendPrefix     = "records/spend/v1/"
	valuePreviewMax = 240
)

func main() {
	pathFlag := flag.String("path", "", "Path to records BadgerDB directory (overrides DOT_CACHE_DIR env var)")
	flag.Parse()

	dbPath := *pathFlag
	if dbPath == "" {
		dbPath = os.Getenv("DOT_CACHE_DIR")
	}
	if dbPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			fatalf("cannot resolve home directory: %v", err)
		}
		dbPath = filepath.Join(home, ".dot", "cache", "records")
	}

	fmt.Printf("Records cache path: %s\n", dbPath)

	// Check existence before trying to open. Gives a cleaner error message
	// than BadgerDB's "no such file or directory" buried in a long error.
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		fmt.Println("Cache directory does not exist. The server has not yet cached any record lookups.")
		fmt.Println("Start the Dot server and ask a question that touches the record store to populate it.")
		os.Exit(0)
	}

	// Only reads are performed against the store.
	opts := dgbadger.DefaultOptions(dbPath).
		WithLogger(nil).
		WithReadOnly(true)

	db, err := dgbadger.Open(opts)
	if err != nil {
		fatalf("open BadgerDB at %s: %v", dbPath, err)
	}
	defer func() { _ = db.Close() }()

	type entry struct {
		key       string
		expiresAt time.Time
		hasExpiry bool
		rawSize   int
		preview   string
		readErr   error
	}

	var entries []entry
	counts := map[string]int{}

	err = db.View(func(txn *dgbadger.Txn) error {
		iterOpts := dgbadger.DefaultIteratorOptions
		iterOpts.PrefetchValues = true
		it := txn.NewIterator(iterOpts)
		defer it.Close()

		prefix := []byte(cacheKeyRoot)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			key := string(item.Key())

			var e entry
			e.key = key
			counts[keyFamily(key)]++

			if expiresAt := item.ExpiresAt(); expiresAt > 0 {
				e.hasExpiry = true
				e.expiresAt = time.Unix(int64(expiresAt), 0)
			}

			raw, err := item.ValueCopy(nil)
			if err != nil {
				e.readErr = fmt.Errorf("copy value: %w", err)
				entries = append(entries, e)
				continue
			}
			e.rawSize = len(raw)
			e.preview = previewJSON(raw)

			entries = append(entries, e)
		}
		return nil
	})
	if err != nil {
		fatalf("read BadgerDB: %v", err)
	}

	if len(entries) == 0 {
		fmt.Println("\nNo records cache entries found.")
		fmt.Println("The cache opened cleanly but nothing has been written to it yet.")
		os.Exit(0)
	}

	fmt.Printf("\nFound %d cache entr%s:\n", len(entries), plural(len(entries), "y", "ies"))
	fmt.Println(strings.Repeat("─", 80))

	for i, e := range entries {
		fmt.Printf("\n[%d] Key:      %s\n", i+1, e.key)
		fmt.Printf("    Family:   %s\n", keyFamily(e.key))

		if e.hasExpiry {
			remaining := time.Until(e.expiresAt)
			if remaining < 0 {
				fmt.Printf("    TTL:      EXPIRED (%s ago)\n", (-remaining).Round(time.Second))
			} else {
				fmt.Printf("    TTL:      %s remaining (expires %s)\n",
					remaining.Round(time.Second),
					e.expiresAt.Format("2006-01-02 15:04:05 MST"),
				)
			}
		} else {
			fmt.Printf("    TTL:      no expiry set\n")
		}

		fmt.Printf("    Raw size: %s\n", formatBytes(e.rawSize))

		if e.readErr != nil {
			fmt.Printf("    READ ERROR: %v\n", e.readErr)
			continue
		}
		fmt.Printf("    Value:    %s\n", e.preview)
	}

	fmt.Printf("\n%s\n", strings.Repeat("─", 80))
	fmt.Printf("Summary: %d people, %d client, %d spend, %d other (cache path: %s)\n",
		counts["people"], counts["client"], counts["spend"], counts["other"], dbPath)
}

// keyFamily classifies a cache key by its prefix.
func keyFamily(key string) string {
	switch {
	case strings.HasPrefix(key, peoplePrefix):
		return "people"
	case strings.HasPrefix(key, clientPrefix):
		return "client"
	case strings.HasPrefix(key, spendPrefix):
		return "spend"
	default:
		return "other"
	}
}

// previewJSON compacts a JSON value and truncates it for display. Values
// that fail to compact (not JSON after all) print as raw bytes.
func previewJSON(raw []byte) string {
	var buf bytes.Buffer
	s := string(raw)
	if err := json.Compact(&buf, raw); err == nil {
		s = buf.String()
	}
	if len(s) > valuePreviewMax {
		return s[:valuePreviewMax] + " ...(truncated)"
	}
	return s
}

// formatBytes formats a byte count as a human-readable string.
func formatBytes(n int) string {
	switch {
	case n >= 1024*1024:
		return fmt.Sprintf("%.1f MB (%d bytes)", float64(n)/1024/1024, n)
	case n >= 1024:
		return fmt.Sprintf("%.1f KB (%d bytes)", float64(n)/1024, n)
	default:
		return fmt.Sprintf("%d bytes", n)
	}
}

// plural returns singular or plural suffix based on count.
func plural(n int, singular, pluralSuffix string) string {
	if n == 1 {
		return singular
	}
	return pluralSuffix
}

// fatalf prints to stderr and exits 1.
func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "records_cache_dump: "+format+"\n", args...)
	os.Exit(1)
}
