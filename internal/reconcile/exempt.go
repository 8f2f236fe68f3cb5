package reconcile

import (
	"path"
	"strings"

	"supermanager/internal/config"
)

var planningFiles = []string{"plan.md", "todo.md"}

// Exemptions is the set of target locations never reconciled, so the engine
// cannot block edits to its own files or to planning notes.
type Exemptions struct {
	fragments []string
}

// NewExemptions builds the exempt set from the runtime layout plus any
// extra fragments from configuration.
func NewExemptions(p config.Paths, extra []string) Exemptions {
	raw := []string{
		p.ManagerDir,
		p.StateDir,
		p.LogsDir,
		p.InstructionsDir,
		".claude/super-manager/",
		".claude/instructions/",
		".claude/plans/",
	}
	raw = append(raw, extra...)

	var e Exemptions
	seen := map[string]bool{}
	for _, r := range raw {
		n := strings.TrimSpace(normalizePath(r))
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		e.fragments = append(e.fragments, n)
	}
	return e
}

// Exempt reports whether the file path target is exempt: it lies under an
// exempt directory or is a planning file.
func (e Exemptions) Exempt(target string) bool {
	if e.underExemptDir(target) {
		return true
	}
	t := normalizePath(target)
	base := path.Base(strings.TrimRight(t, "/"))
	for _, name := range planningFiles {
		if base == name {
			return true
		}
	}
	return false
}

// Reconcilable returns the targets of inv that are subject to
// reconciliation and whether the invocation is exempt as a whole.
//
// File tools drop exempt targets one by one and are exempt only when every
// target is. Glob is exempt when its search root is; the pattern never
// exempts. A shell command is exempt only when it names at least one path
// and every path it names lies under an exempt directory; planning file
// basenames do not count inside command text.
func (e Exemptions) Reconcilable(inv Invocation) ([]string, bool) {
	targets := Targets(inv)
	switch inv.ToolName {
	case "Bash":
		if e.commandExempt(inputString(inv.Input, "command")) {
			return nil, true
		}
		return targets, false
	case "Glob":
		if root := inputString(inv.Input, "path"); root != "" && e.Exempt(root) {
			return nil, true
		}
		return targets, false
	}

	var kept []string
	for _, t := range targets {
		if !e.Exempt(t) {
			kept = append(kept, t)
		}
	}
	return kept, len(targets) > 0 && len(kept) == 0
}

func (e Exemptions) underExemptDir(target string) bool {
	t := asDir(normalizePath(target))
	if t == "/" {
		return false
	}
	for _, f := range e.fragments {
		if strings.Contains(t, f) {
			return true
		}
	}
	return false
}

func (e Exemptions) commandExempt(command string) bool {
	var paths []string
	for _, word := range commandWords(command) {
		if strings.ContainsAny(word, `/\`) {
			paths = append(paths, word)
		}
	}
	if len(paths) == 0 {
		return false
	}
	for _, p := range paths {
		if !e.underExemptDir(p) {
			return false
		}
	}
	return true
}

// commandWords splits a shell command on whitespace and control operators,
// dropping surrounding quotes.
func commandWords(command string) []string {
	fields := strings.FieldsFunc(command, func(r rune) bool {
		switch r {
		case ' ', '\t', '\n', '\r', ';', '|', '&', '<', '>', '(', ')':
			return true
		}
		return false
	})
	out := fields[:0]
	for _, f := range fields {
		f = strings.Trim(f, `"'`+"`")
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}
