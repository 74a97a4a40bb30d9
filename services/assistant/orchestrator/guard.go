// Copyright (C) 2026 Hunch Creative Ltd (dev@hunchcreative.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package orchestrator

import (
	"encoding/json"
)

// =============================================================================
// Scope Guard
// =============================================================================

// forceClientScope rewrites tool arguments so a scoped session can only
// touch its bound client.
//
// Description:
//
//	Prompt instructions are advisory; this runs on the dispatch path and
//	overwrites clientCode unconditionally, so an engine that asks about a
//	different client still gets answers for the bound one. Arguments that
//	fail to parse are returned untouched and left for the tool's own
//	validation to reject.
func forceClientScope(args json.RawMessage, boundClient string) json.RawMessage {
	if boundClient == "" {
		return args
	}

	var fields map[string]any
	if len(args) > 0 {
		if err := json.Unmarshal(args, &fields); err != nil {
			return args
		}
	}
	if fields == nil {
		fields = make(map[string]any)
	}

	fields["clientCode"] = boundClient

	rewritten, err := json.Marshal(fields)
	if err != nil {
		return args
	}
	return rewritten
}
