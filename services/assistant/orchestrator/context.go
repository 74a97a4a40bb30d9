// Copyright (C) 2026 Hunch Creative Ltd (dev@hunchcreative.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package orchestrator

import (
	"strings"

	"github.com/hunchcreative/dot/services/assistant/session"
)

// =============================================================================
// Context Hint
// =============================================================================

// buildContextHint summarizes a session's resolved entities for the prompt.
//
// Description:
//
//	The engine resolves "them" and "that job" itself; this only surfaces
//	what earlier turns pinned down. Returns "" for a session with no
//	resolved entities, which the template renders as a fresh conversation.
func buildContextHint(sess *session.Session) string {
	var parts []string

	if client := sess.ContextValue(session.KeyLastClient); client != "" {
		parts = append(parts, "Last client discussed: "+client+".")
	}
	if job := sess.ContextValue(session.KeyLastJob); job != "" {
		parts = append(parts, "Last job discussed: "+job+".")
	}

	if len(parts) == 0 {
		return ""
	}
	return strings.Join(parts, " ")
}
