// Copyright (C) 2026 Hunch Creative Ltd (dev@hunchcreative.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/hunchcreative/dot/services/assistant/intent"
)

// actionLabels maps data-flavored core requests to the verb the CLI prints.
// Conversational requests (CLARIFY, HANDOFF, LOG, HELP, UNKNOWN) render from
// their message fields instead.
var actionLabels = map[intent.CoreRequest]string{
	intent.Find:    "Searching jobs",
	intent.Due:     "Checking due dates",
	intent.Update:  "Pulling the latest update",
	intent.Tracker: "Opening the spend tracker",
	intent.Query:   "Looking it up",
}

// renderReply prints one assistant turn in a terminal-friendly form.
//
// Description:
//
//	Soft failures and not-understood turns print their conversational
//	fallback line. CLARIFY prints the follow-up question, HANDOFF the
//	refined question for a human, LOG a confirmation of what was noted.
//	Data requests print the action plus its qualifiers so the user can see
//	exactly how the question was interpreted. A nextPrompt, when present,
//	prints as a dim suggestion line.
func renderReply(w io.Writer, reply *queryReply) {
	if reply.Fallback != "" {
		fmt.Fprintln(w, reply.Fallback)
		return
	}

	it := reply.Intent
	if it == nil {
		fmt.Fprintln(w, "(empty reply)")
		return
	}

	switch {
	case !it.Understood:
		fmt.Fprintln(w, deref(it.FallbackMessage, "I didn't catch that."))
	case it.CoreRequest == intent.Clarify:
		fmt.Fprintln(w, deref(it.ClarifyMessage, "Can you give me a little more to go on?"))
	case it.CoreRequest == intent.Handoff:
		fmt.Fprintf(w, "Handing off to the team: %s\n", deref(it.HandoffQuestion, "(no question captured)"))
	case it.CoreRequest == intent.Log:
		fmt.Fprintf(w, "Noted: %s\n", deref(it.LogTitle, "(untitled)"))
		if notes := deref(it.LogNotes, ""); notes != "" {
			fmt.Fprintf(w, "  %s\n", notes)
		}
	case it.ResponseText != nil && *it.ResponseText != "":
		fmt.Fprintln(w, *it.ResponseText)
	default:
		fmt.Fprintln(w, summarizeAction(it))
	}

	if hint := deref(it.NextPrompt, ""); hint != "" {
		fmt.Fprintf(w, "\033[2m  try: %q\033[0m\n", hint)
	}
}

// summarizeAction builds the one-line interpretation of a data request,
// e.g. `Checking due dates for SKY (due thisWeek, status live)`.
func summarizeAction(it *intent.Intent) string {
	label, ok := actionLabels[it.CoreRequest]
	if !ok {
		label = string(it.CoreRequest)
	}

	var b strings.Builder
	b.WriteString(label)

	if client := it.ResolvedClient(); client != "" {
		b.WriteString(" for ")
		b.WriteString(client)
	}

	var quals []string
	m := it.Modifiers
	if m.DateRange != nil && *m.DateRange != "" {
		quals = append(quals, "due "+*m.DateRange)
	}
	if m.Status != nil && *m.Status != "" {
		quals = append(quals, "status "+*m.Status)
	}
	if m.Period != nil && *m.Period != "" {
		quals = append(quals, "period "+*m.Period)
	}
	if m.SortBy != nil && *m.SortBy != "" {
		sort := "sorted by " + *m.SortBy
		if m.SortOrder != nil && *m.SortOrder != "" {
			sort += " " + *m.SortOrder
		}
		quals = append(quals, sort)
	}
	if m.WithClient != nil && *m.WithClient {
		quals = append(quals, "with client")
	}
	if len(it.SearchTerms) > 0 {
		quals = append(quals, fmt.Sprintf("matching %q", strings.Join(it.SearchTerms, " ")))
	}
	if len(quals) > 0 {
		b.WriteString(" (")
		b.WriteString(strings.Join(quals, ", "))
		b.WriteString(")")
	}
	return b.String()
}

func deref(s *string, fallback string) string {
	if s == nil || *s == "" {
		return fallback
	}
	return *s
}
