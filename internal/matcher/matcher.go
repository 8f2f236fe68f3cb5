// Package matcher evaluates free text against registry records.
package matcher

import (
	"regexp"
	"strings"

	"supermanager/internal/registry"

	"go.uber.org/zap"
)

// MatchResult is one matched record and the term that triggered it.
type MatchResult struct {
	RecordID       string `json:"id"`
	TriggeringTerm string `json:"term"`
}

// Matcher matches text against records. It caches compiled patterns for the
// lifetime of one invocation and is not safe for concurrent use.
type Matcher struct {
	logger   *zap.Logger
	compiled map[string]*regexp.Regexp
	failed   map[string]bool
}

// New creates a Matcher that logs pattern failures to logger.
func New(logger *zap.Logger) *Matcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Matcher{
		logger:   logger,
		compiled: make(map[string]*regexp.Regexp),
		failed:   make(map[string]bool),
	}
}

// Match is a convenience wrapper around a throwaway Matcher.
func Match(text string, records []registry.RuleRecord) []MatchResult {
	return New(nil).Match(text, records)
}

// Match returns the records matched by text, in record order.
//
// Keyword records match on the first keyword (in the record's own order)
// found as a substring of the lowercased text. Pattern records are tested
// case-insensitively against the raw text; a pattern that fails to compile
// is logged and skipped. Disabled records are dropped before scanning and
// empty or whitespace-only text matches nothing.
func (m *Matcher) Match(text string, records []registry.RuleRecord) []MatchResult {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	lower := strings.ToLower(text)
	var results []MatchResult
	for _, rec := range registry.Enabled(records) {
		term, ok := m.matchRecord(text, lower, rec)
		if !ok {
			continue
		}
		results = append(results, MatchResult{RecordID: rec.ID, TriggeringTerm: term})
	}
	return results
}

func (m *Matcher) matchRecord(raw, lower string, rec registry.RuleRecord) (string, bool) {
	switch rec.Triggers.Kind() {
	case registry.KindKeywords:
		for _, kw := range rec.Triggers.Keywords {
			if kw != "" && strings.Contains(lower, kw) {
				return kw, true
			}
		}
		return "", false
	case registry.KindPattern:
		re := m.compile(rec)
		if re == nil {
			return "", false
		}
		loc := re.FindStringIndex(raw)
		if loc == nil {
			return "", false
		}
		return raw[loc[0]:loc[1]], true
	default:
		return "", false
	}
}

func (m *Matcher) compile(rec registry.RuleRecord) *regexp.Regexp {
	pattern := rec.Triggers.Pattern
	if re, ok := m.compiled[pattern]; ok {
		return re
	}
	if m.failed[pattern] {
		return nil
	}
	re, err := CompilePattern(pattern)
	if err != nil {
		m.failed[pattern] = true
		m.logger.Warn("skipping record with invalid pattern",
			zap.String("record", rec.ID),
			zap.String("pattern", pattern),
			zap.Error(err),
		)
		return nil
	}
	m.compiled[pattern] = re
	return re
}

// CompilePattern compiles a record pattern case-insensitively.
func CompilePattern(pattern string) (*regexp.Regexp, error) {
	return regexp.Compile("(?i)" + pattern)
}

// IDs returns the record ids of results, in order.
func IDs(results []MatchResult) []string {
	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.RecordID
	}
	return ids
}
