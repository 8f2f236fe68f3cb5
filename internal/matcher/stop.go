package matcher

import (
	"strings"

	"supermanager/internal/registry"
)

// StopDecision is the outcome of the end-of-turn check.
type StopDecision struct {
	Allow   bool
	Matches []MatchResult
	Reason  string
}

// CheckStop runs the end-of-turn pass: the assistant's final response is
// matched against the Stop rules and any match keeps the turn open, with the
// matched rules' bodies as the reason.
func (m *Matcher) CheckStop(response string, rules []registry.RuleRecord) StopDecision {
	matches := m.Match(response, rules)
	if len(matches) == 0 {
		return StopDecision{Allow: true}
	}

	var reasons []string
	for _, match := range matches {
		rec, _ := registry.ByID(rules, match.RecordID)
		body := strings.TrimSpace(rec.Payload)
		if body == "" {
			body = "Rule " + rec.ID + " matched \"" + match.TriggeringTerm + "\"."
		}
		reasons = append(reasons, body)
	}
	return StopDecision{
		Allow:   false,
		Matches: matches,
		Reason:  strings.Join(reasons, "\n\n"),
	}
}
