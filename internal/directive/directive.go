// Package directive separates the machine-readable action block from the
// prose of an assistant reply. The model embeds at most one block per turn:
//
//	<ACTION>{"command": "top_processes", "params": {"count": 5}}</ACTION>
//
// Extraction is a pure text transformation and never fails: anything that
// does not decode cleanly degrades to "no directive" with the prose kept.
package directive

import (
	"encoding/json"
	"strings"
)

const (
	openMarker  = "<ACTION>"
	closeMarker = "</ACTION>"
)

// Directive is the decoded action block: a command identifier from the
// fixed table and its parameter mapping as sent by the model. Parameter
// values keep their JSON types; the dispatcher validates them per command.
type Directive struct {
	Command string         `json:"command"`
	Params  map[string]any `json:"params"`
}

// Extract splits a raw reply into prose and an optional directive.
// If the reply carries no complete marker pair, prose is the whole trimmed
// input and ok is false. A malformed block (unparseable JSON, missing
// command name) also yields ok = false, but the prose before the opening
// marker is still returned. Only the first marker pair is honored.
func Extract(reply string) (prose string, d Directive, ok bool) {
	start := strings.Index(reply, openMarker)
	if start < 0 {
		return strings.TrimSpace(reply), Directive{}, false
	}

	rest := reply[start+len(openMarker):]
	end := strings.Index(rest, closeMarker)
	if end < 0 {
		// Truncated block: no pair, surface everything as prose.
		return strings.TrimSpace(reply), Directive{}, false
	}

	prose = strings.TrimSpace(reply[:start])

	body := strings.TrimSpace(rest[:end])
	if err := json.Unmarshal([]byte(body), &d); err != nil {
		return prose, Directive{}, false
	}
	if d.Command == "" {
		return prose, Directive{}, false
	}
	if d.Params == nil {
		d.Params = map[string]any{}
	}
	return prose, d, true
}

// Encode renders the directive in the wire format the model is instructed
// to emit. Extract(Encode(d)) reproduces d.
func (d Directive) Encode() string {
	p := d.Params
	if p == nil {
		p = map[string]any{}
	}
	body, err := json.Marshal(Directive{Command: d.Command, Params: p})
	if err != nil {
		// Only non-serializable param values can get here; the decoded
		// form never contains those.
		return ""
	}
	return openMarker + string(body) + closeMarker
}
