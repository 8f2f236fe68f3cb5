// Package registry loads the rule sources the engine matches against:
// instruction files with a YAML preamble, the skill registry, the MCP server
// registry and the hook definitions in settings.json.
//
// Every loader is read-only and never fatal: a missing document yields no
// records, a malformed one yields a *ParseError the caller may log and
// otherwise ignore.
package registry

import (
	"errors"
	"fmt"
)

// Kind tags which MatchSpec variant is populated.
type Kind int

const (
	KindNone Kind = iota
	KindKeywords
	KindPattern
)

func (k Kind) String() string {
	switch k {
	case KindKeywords:
		return "keywords"
	case KindPattern:
		return "pattern"
	default:
		return "none"
	}
}

// MatchSpec is a tagged union: either Keywords or Pattern is set.
// Keywords are single lowercase words, matched as substrings.
// Pattern is one regular expression, matched case-insensitively.
type MatchSpec struct {
	Keywords []string `json:"keywords,omitempty"`
	Pattern  string   `json:"pattern,omitempty"`
}

// Kind reports the populated variant. Pattern wins if both are present.
func (m MatchSpec) Kind() Kind {
	switch {
	case m.Pattern != "":
		return KindPattern
	case len(m.Keywords) > 0:
		return KindKeywords
	default:
		return KindNone
	}
}

// RuleRecord is one instruction, skill or tool-server entry.
// Records are immutable for the duration of an invocation.
type RuleRecord struct {
	ID          string    `json:"id"`
	Enabled     bool      `json:"enabled"`
	Triggers    MatchSpec `json:"triggers"`
	Payload     string    `json:"payload,omitempty"`
	Description string    `json:"description,omitempty"`
	Scope       []string  `json:"scope,omitempty"`
	Source      string    `json:"source,omitempty"`
}

// HookEntry is one command hook bound to a host event in settings.json.
type HookEntry struct {
	Event   string `json:"event"`
	Matcher string `json:"matcher"`
	Name    string `json:"name"`
	Command string `json:"command"`
	Async   bool   `json:"async"`
}

// ErrMissing is returned when a registry document does not exist.
var ErrMissing = errors.New("registry document missing")

// ParseError reports a registry document or entry that could not be parsed.
type ParseError struct {
	Source string
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Source, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Source, e.Reason)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Enabled returns the records with Enabled set, preserving order.
func Enabled(records []RuleRecord) []RuleRecord {
	out := make([]RuleRecord, 0, len(records))
	for _, r := range records {
		if r.Enabled {
			out = append(out, r)
		}
	}
	return out
}

// ByID returns the record with the given id.
func ByID(records []RuleRecord, id string) (RuleRecord, bool) {
	for _, r := range records {
		if r.ID == id {
			return r, true
		}
	}
	return RuleRecord{}, false
}
