package state

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"supermanager/internal/matcher"
)

// Suggestion is one matched item carried across the turn boundary. Skill
// suggestions also carry their scope paths.
type Suggestion struct {
	matcher.MatchResult
	Scope []string `json:"scope,omitempty"`
}

// Suggestions groups a turn's matches per registry.
type Suggestions struct {
	Skills       []Suggestion `json:"skills"`
	Tools        []Suggestion `json:"tools"`
	Instructions []Suggestion `json:"instructions"`
}

// SuggestionState is the persisted hand-off document. Its JSON form is the
// contract between the prompt-time writer and the invocation-time
// reconciler.
type SuggestionState struct {
	Timestamp     time.Time   `json:"-"`
	PromptSnippet string      `json:"prompt_snippet"`
	Suggestions   Suggestions `json:"suggestions"`
	Fulfilled     []string    `json:"fulfilled"`
}

type wireState struct {
	Timestamp     string      `json:"timestamp"`
	PromptSnippet string      `json:"prompt_snippet"`
	Suggestions   Suggestions `json:"suggestions"`
	Fulfilled     []string    `json:"fulfilled"`
}

// MarshalJSON writes the timestamp as RFC3339Nano and never emits null lists.
func (s SuggestionState) MarshalJSON() ([]byte, error) {
	w := wireState{
		Timestamp:     s.Timestamp.UTC().Format(time.RFC3339Nano),
		PromptSnippet: s.PromptSnippet,
		Suggestions: Suggestions{
			Skills:       nonNil(s.Suggestions.Skills),
			Tools:        nonNil(s.Suggestions.Tools),
			Instructions: nonNil(s.Suggestions.Instructions),
		},
		Fulfilled: s.Fulfilled,
	}
	if w.Fulfilled == nil {
		w.Fulfilled = []string{}
	}
	return json.Marshal(w)
}

// UnmarshalJSON accepts the document written by MarshalJSON.
func (s *SuggestionState) UnmarshalJSON(data []byte) error {
	var w wireState
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	ts, err := time.Parse(time.RFC3339Nano, w.Timestamp)
	if err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	*s = SuggestionState{
		Timestamp:     ts,
		PromptSnippet: w.PromptSnippet,
		Suggestions:   w.Suggestions,
		Fulfilled:     w.Fulfilled,
	}
	return nil
}

// ParseState decodes a persisted state document.
func ParseState(data []byte) (*SuggestionState, error) {
	var s SuggestionState
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse suggestion state: %w", err)
	}
	return &s, nil
}

// IsFulfilled reports whether id has been marked fulfilled.
func (s *SuggestionState) IsFulfilled(id string) bool {
	for _, f := range s.Fulfilled {
		if f == id {
			return true
		}
	}
	return false
}

// Actionable returns the skill and tool suggestions, the ones an invocation
// can fulfil.
func (s *SuggestionState) Actionable() []Suggestion {
	out := make([]Suggestion, 0, len(s.Suggestions.Skills)+len(s.Suggestions.Tools))
	out = append(out, s.Suggestions.Skills...)
	out = append(out, s.Suggestions.Tools...)
	return out
}

// Unfulfilled returns the actionable suggestions not yet fulfilled, skills
// first.
func (s *SuggestionState) Unfulfilled() []Suggestion {
	var out []Suggestion
	for _, sg := range s.Actionable() {
		if !s.IsFulfilled(sg.RecordID) {
			out = append(out, sg)
		}
	}
	return out
}

func (s *SuggestionState) addFulfilled(id string) bool {
	if s.IsFulfilled(id) {
		return false
	}
	s.Fulfilled = append(s.Fulfilled, id)
	sort.Strings(s.Fulfilled)
	return true
}

// TurnMatches is everything the matcher found for one prompt.
type TurnMatches struct {
	Prompt       string
	Skills       []Suggestion
	Tools        []Suggestion
	Instructions []Suggestion
}

// HasActionable reports whether any skill or tool matched.
func (t TurnMatches) HasActionable() bool {
	return len(t.Skills) > 0 || len(t.Tools) > 0
}

// FromMatches wraps plain match results as suggestions without scope.
func FromMatches(results []matcher.MatchResult) []Suggestion {
	out := make([]Suggestion, 0, len(results))
	for _, r := range results {
		out = append(out, Suggestion{MatchResult: r})
	}
	return out
}

func nonNil(s []Suggestion) []Suggestion {
	if s == nil {
		return []Suggestion{}
	}
	return s
}

// IDs returns the record ids of suggestions in order.
func IDs(suggestions []Suggestion) []string {
	out := make([]string, 0, len(suggestions))
	for _, s := range suggestions {
		out = append(out, s.RecordID)
	}
	return out
}
