// Copyright (C) 2026 Hunch Creative Ltd (dev@hunchcreative.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package intent defines the structured result of interpreting one user
// question. The Intent JSON shape is the assistant's outbound contract:
// clients branch on coreRequest and modifiers, so every field is present in
// the serialized form. Absent values marshal as explicit nulls, never
// disappear.
package intent

// CoreRequest is the primary action category of an interpreted question.
type CoreRequest string

const (
	// Find lists or searches jobs.
	Find CoreRequest = "FIND"
	// Due asks about deadlines, overdue work, or urgency.
	Due CoreRequest = "DUE"
	// Update modifies a job.
	Update CoreRequest = "UPDATE"
	// Tracker opens the budget tracker.
	Tracker CoreRequest = "TRACKER"
	// Help asks what the assistant can do.
	Help CoreRequest = "HELP"
	// Clarify means a reference could not be resolved and the assistant
	// needs the user to name the client or job.
	Clarify CoreRequest = "CLARIFY"
	// Query asks a data question answered via tools (people, budgets).
	Query CoreRequest = "QUERY"
	// Handoff escalates to a human.
	Handoff CoreRequest = "HANDOFF"
	// Log captures a note or timesheet entry.
	Log CoreRequest = "LOG"
	// Unknown means the question is outside the assistant's scope.
	Unknown CoreRequest = "UNKNOWN"
)

// coreRequests is the closed set of valid values.
var coreRequests = map[CoreRequest]struct{}{
	Find:    {},
	Due:     {},
	Update:  {},
	Tracker: {},
	Help:    {},
	Clarify: {},
	Query:   {},
	Handoff: {},
	Log:     {},
	Unknown: {},
}

// Valid reports whether c is one of the defined core requests.
func (c CoreRequest) Valid() bool {
	_, ok := coreRequests[c]
	return ok
}

// Modifiers narrow a core request. All fields are nullable; a null means
// the engine saw no signal for that dimension, which is different from an
// empty string.
type Modifiers struct {
	Client     *string `json:"client"`
	Status     *string `json:"status"`
	WithClient *bool   `json:"withClient"`
	DateRange  *string `json:"dateRange"`
	SortBy     *string `json:"sortBy"`
	SortOrder  *string `json:"sortOrder"`
	Period     *string `json:"period"`
}

// Intent is the structured interpretation of one question.
//
// Description:
//
//	The engine emits this shape as JSON; the validator parses and
//	normalizes it; handlers return it verbatim to the caller. understood
//	false means the question was out of scope, and FallbackMessage then
//	carries the user-facing line. The optional fields are populated only
//	for their matching core request (ClarifyMessage for CLARIFY,
//	HandoffQuestion for HANDOFF, LogTitle/LogNotes for LOG) but are always
//	present in the JSON as nulls otherwise.
type Intent struct {
	CoreRequest     CoreRequest `json:"coreRequest"`
	Modifiers       Modifiers   `json:"modifiers"`
	SearchTerms     []string    `json:"searchTerms"`
	Understood      bool        `json:"understood"`
	FallbackMessage *string     `json:"fallbackMessage"`
	ClarifyMessage  *string     `json:"clarifyMessage"`
	NextPrompt      *string     `json:"nextPrompt"`
	HandoffQuestion *string     `json:"handoffQuestion"`
	LogTitle        *string     `json:"logTitle"`
	LogNotes        *string     `json:"logNotes"`
	ResponseText    *string     `json:"responseText"`
}

// defaultFallbackMessage is used when the engine marks a question as not
// understood but forgets to supply its own line.
const defaultFallbackMessage = "I'm a project bot, not a mind reader. Try me on jobs, people, or budgets."

// Normalize repairs an Intent parsed from engine output so downstream code
// can rely on the contract.
//
// Description:
//
//	Three repairs: a missing or out-of-enumeration coreRequest becomes
//	UNKNOWN with understood false and the stock fallback; understood false
//	without a fallbackMessage gets the stock line; a nil searchTerms slice
//	becomes empty so it marshals as [] rather than null.
func (i *Intent) Normalize() {
	if !i.CoreRequest.Valid() {
		i.CoreRequest = Unknown
		i.Understood = false
	}
	if !i.Understood && i.FallbackMessage == nil {
		msg := defaultFallbackMessage
		i.FallbackMessage = &msg
	}
	if i.SearchTerms == nil {
		i.SearchTerms = []string{}
	}
}

// ResolvedClient returns the client code the intent settled on, or "" when
// no client was resolved. Used for the session history summary and the
// lastClient context merge.
func (i *Intent) ResolvedClient() string {
	if i.Modifiers.Client == nil {
		return ""
	}
	return *i.Modifiers.Client
}
