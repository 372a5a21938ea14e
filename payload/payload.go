// Package payload normalizes enqueue input at the control-surface boundary.
//
// Callers may submit either a structured JSON object (with "command",
// "max_retries", "id" keys) or a raw shell string. This package models that
// as a tagged input variant so the rest of the system only ever sees a
// normalized (command, max_retries, external_id) triple — mirroring the
// original queuectl.py cmd_enqueue, which attempts json.loads first and
// falls back to treating the whole payload as the command.
package payload

import "encoding/json"

// Parsed is the normalized result of parsing enqueue input.
type Parsed struct {
	Command    string
	MaxRetries *uint32 // nil if the payload did not specify one
	ExternalID string  // empty if the payload did not specify one
}

type structured struct {
	Command    string  `json:"command"`
	MaxRetries *uint32 `json:"max_retries"`
	ID         string  `json:"id"`
}

// Parse normalizes raw enqueue input. raw is the payload exactly as given
// on the command line: a single JSON object string, or one or more words
// that are joined with spaces and treated as a literal shell command.
//
// Parse tries json.Unmarshal first. If that succeeds and yields a non-empty
// command, the structured fields are used. Any other outcome — invalid
// JSON, or valid JSON with no usable command — falls back to treating the
// joined raw words as the literal command, with no max-retries override
// and no external id, matching cmd_enqueue's broad except-and-fallback
// behavior.
//
// An explicit max_retries of 0 is treated the same as it being absent, so
// the caller's default applies instead — matching cmd_enqueue's own
// `or default_retries` and worker.py's `int(... or 3)` falsy coercion.
// Without this, {"max_retries":0} would be stored as 0, and the worker
// would then apply its own fixed default of 3 (see queuectl.Decide) instead
// of the configured or CLI default.
func Parse(raw []string) Parsed {
	joined := join(raw)
	var s structured
	if err := json.Unmarshal([]byte(joined), &s); err == nil && s.Command != "" {
		if s.MaxRetries != nil && *s.MaxRetries == 0 {
			s.MaxRetries = nil
		}
		return Parsed{
			Command:    s.Command,
			MaxRetries: s.MaxRetries,
			ExternalID: s.ID,
		}
	}
	return Parsed{Command: joined}
}

func join(raw []string) string {
	out := ""
	for i, w := range raw {
		if i > 0 {
			out += " "
		}
		out += w
	}
	return out
}
