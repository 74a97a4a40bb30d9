// Copyright (C) 2026 Hunch Creative Ltd (dev@hunchcreative.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package session holds per-conversation state between queries: a bounded
// message history and a small context map the interpreter uses to resolve
// references like "them" or "that client".
//
// Sessions are ephemeral. Nothing here touches disk; a restart forgets every
// conversation, which is acceptable for an assistant whose sessions idle out
// after thirty minutes anyway.
package session

import (
	"log/slog"
	"sync"
	"time"
)

// DefaultTTL is how long a session survives without activity.
const DefaultTTL = 30 * time.Minute

// maxHistoryMessages bounds the per-session history. Each exchange appends
// two messages (question + summary), so this keeps the latest ten exchanges.
const maxHistoryMessages = 20

// Context keys shared with the orchestrator.
const (
	// KeyLastClient is the client code the conversation last settled on.
	KeyLastClient = "lastClient"
	// KeyLastJob is the job the conversation last referenced.
	KeyLastJob = "lastJob"
	// KeyPendingReserve arms the two-step job number reservation. Holds the
	// client code awaiting confirmation; empty means disarmed.
	KeyPendingReserve = "pendingReserve"
)

// Message is one entry in a session's history.
type Message struct {
	Role    string `json:"role"`    // "user" or "assistant"
	Content string `json:"content"`
}

// Session is one conversation's state.
//
// Thread Safety: All field access goes through methods; the internal mutex
// guards data. The separate run lock (Acquire/Release) serializes whole
// queries and is never taken by data methods, so snapshot reads proceed
// while another goroutine is mid-query.
type Session struct {
	id string

	runMu sync.Mutex // held for a full query via Acquire/Release

	mu           sync.Mutex
	messages     []Message
	context      map[string]string
	lastActiveAt time.Time
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Acquire blocks until this session's run lock is free. Two concurrent
// queries on one session id execute one after the other rather than
// interleaving their history writes.
func (s *Session) Acquire() { s.runMu.Lock() }

// Release frees the run lock taken by Acquire.
func (s *Session) Release() { s.runMu.Unlock() }

// History returns a copy of the session's messages, oldest first.
func (s *Session) History() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Context returns a copy of the session's context map.
func (s *Session) Context() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.context))
	for k, v := range s.context {
		out[k] = v
	}
	return out
}

// ContextValue returns one context entry. Unset keys return "".
func (s *Session) ContextValue(key string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.context[key]
}

// append adds messages and trims to the history bound, dropping oldest.
func (s *Session) append(now time.Time, msgs ...Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, msgs...)
	if excess := len(s.messages) - maxHistoryMessages; excess > 0 {
		s.messages = s.messages[excess:]
	}
	s.lastActiveAt = now
}

// mergeContext shallow-merges entries into the context map. Incoming keys
// overwrite; existing keys not mentioned stay put.
func (s *Session) mergeContext(entries map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range entries {
		s.context[k] = v
	}
}

// touch refreshes the activity timestamp.
func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActiveAt = now
}

// lastActive reads the activity timestamp.
func (s *Session) lastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActiveAt
}

// =============================================================================
// Store
// =============================================================================

// Store is the in-memory session registry.
//
// Description:
//
//	Expiry is lazy: every GetOrCreate sweeps sessions idle past the TTL.
//	There is no background timer, so an idle service holds expired sessions
//	in memory until the next request, which is fine at this scale and keeps
//	the store free of goroutine lifecycle concerns.
//
//	Absence is never an error. GetOrCreate creates, Append and MergeContext
//	create-on-write, Clear on an unknown id is a no-op.
//
// Thread Safety: Safe for concurrent use. The store mutex guards only the
// registry map; per-session data has its own lock.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*Session
	ttl      time.Duration
	logger   *slog.Logger

	// now is swapped out by tests to control expiry.
	now func() time.Time
}

// NewStore creates a session store.
//
// Inputs:
//   - ttl: Idle lifetime of a session. Pass 0 to use the default (30 min).
//   - logger: Logger for sweep diagnostics. May be nil.
func NewStore(ttl time.Duration, logger *slog.Logger) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		logger:   logger,
		now:      time.Now,
	}
}

// GetOrCreate returns the session for id, creating it if absent, and
// refreshes its activity timestamp. Expired sessions are swept first, so a
// caller returning after the TTL gets a fresh session under the same id.
func (s *Store) GetOrCreate(id string) *Session {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.sweepLocked(now)

	sess, ok := s.sessions[id]
	if !ok {
		sess = newSession(id, now)
		s.sessions[id] = sess
		s.logger.Debug("session created", slog.String("session_id", id))
	}
	sess.touch(now)
	return sess
}

// Append records messages in the session's history, creating the session if
// it does not exist. History is trimmed to the latest twenty messages.
func (s *Store) Append(id string, msgs ...Message) {
	now := s.now()

	s.mu.Lock()
	sess, ok := s.sessions[id]
	if !ok {
		sess = newSession(id, now)
		s.sessions[id] = sess
	}
	s.mu.Unlock()

	sess.append(now, msgs...)
}

// MergeContext shallow-merges entries into the session's context map,
// creating the session if it does not exist.
func (s *Store) MergeContext(id string, entries map[string]string) {
	if len(entries) == 0 {
		return
	}
	now := s.now()

	s.mu.Lock()
	sess, ok := s.sessions[id]
	if !ok {
		sess = newSession(id, now)
		s.sessions[id] = sess
	}
	s.mu.Unlock()

	sess.mergeContext(entries)
}

// Clear removes the session. Clearing an unknown or already-cleared id
// succeeds silently.
func (s *Store) Clear(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; ok {
		delete(s.sessions, id)
		s.logger.Debug("session cleared", slog.String("session_id", id))
	}
}

// Count returns the number of sessions currently held, including any that
// have expired but not yet been swept.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// sweepLocked drops sessions idle past the TTL. Caller holds s.mu.
func (s *Store) sweepLocked(now time.Time) {
	for id, sess := range s.sessions {
		if now.Sub(sess.lastActive()) > s.ttl {
			delete(s.sessions, id)
			s.logger.Debug("session expired", slog.String("session_id", id))
		}
	}
}

func newSession(id string, now time.Time) *Session {
	return &Session{
		id:           id,
		context:      make(map[string]string),
		lastActiveAt: now,
	}
}
