package matcher

import (
	"regexp"
	"strings"
)

// PseudoPromptGuard recognises host-generated pseudo-prompts (background task
// notifications, slash-command echoes, system reminders) so they are not
// treated as user input.
type PseudoPromptGuard struct {
	envelope *regexp.Regexp
}

// NewPseudoPromptGuard builds a guard for the given envelope tag names.
func NewPseudoPromptGuard(tags []string) *PseudoPromptGuard {
	if len(tags) == 0 {
		return &PseudoPromptGuard{}
	}
	quoted := make([]string, len(tags))
	for i, tag := range tags {
		quoted[i] = regexp.QuoteMeta(tag)
	}
	alt := strings.Join(quoted, "|")
	// Envelopes may span lines. RE2 has no backreferences, so any known closing tag ends one.
	re := regexp.MustCompile(`(?s)<(` + alt + `)(?:\s[^>]*)?>.*?</(?:` + alt + `)>`)
	return &PseudoPromptGuard{envelope: re}
}

// UserText strips every recognised envelope and returns the trimmed remainder.
// A prompt made only of envelopes reduces to "" and therefore matches nothing.
func (g *PseudoPromptGuard) UserText(prompt string) string {
	if g == nil || g.envelope == nil {
		return prompt
	}
	return strings.TrimSpace(g.envelope.ReplaceAllString(prompt, ""))
}

// IsPseudoPrompt reports whether prompt is non-empty but entirely host-generated.
func (g *PseudoPromptGuard) IsPseudoPrompt(prompt string) bool {
	return strings.TrimSpace(prompt) != "" && g.UserText(prompt) == ""
}
