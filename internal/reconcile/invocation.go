package reconcile

import (
	"strings"
)

// Invocation is a tool call announced by the host before it runs.
type Invocation struct {
	ToolName  string
	Input     map[string]any
	SessionID string
}

// ID returns the identifier matched against suggestion ids. The Skill tool
// is identified by the skill it loads; every other tool, including
// mcp__<server>__<tool> calls, by its own name.
func (inv Invocation) ID() string {
	if inv.ToolName == "Skill" {
		if s := inputString(inv.Input, "skill"); s != "" {
			return s
		}
		if s := inputString(inv.Input, "command"); s != "" {
			return s
		}
	}
	return inv.ToolName
}

// IsMCP reports whether the invocation targets a tool server.
func (inv Invocation) IsMCP() bool {
	return strings.HasPrefix(inv.ToolName, "mcp__")
}

// Targets extracts what the invocation touches: file paths for file tools,
// the search root (and glob pattern) for search tools, and the raw command
// line for the shell.
func Targets(inv Invocation) []string {
	var keys []string
	switch inv.ToolName {
	case "Read", "Write", "Edit", "MultiEdit":
		keys = []string{"file_path"}
	case "NotebookEdit", "NotebookRead":
		keys = []string{"notebook_path", "file_path"}
	case "Glob":
		keys = []string{"path", "pattern"}
	case "Grep", "LS":
		keys = []string{"path"}
	case "Bash":
		keys = []string{"command"}
	default:
		keys = []string{"file_path", "path"}
	}

	var out []string
	for _, k := range keys {
		if v := inputString(inv.Input, k); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func inputString(input map[string]any, key string) string {
	if input == nil {
		return ""
	}
	s, _ := input[key].(string)
	return strings.TrimSpace(s)
}

// normalizePath lowercases and converts backslashes so scope and target
// comparisons ignore case and separator style.
func normalizePath(p string) string {
	return strings.ToLower(strings.ReplaceAll(p, `\`, "/"))
}

// asDir appends a trailing slash so a directory target matches scopes and
// fragments written as "dir/".
func asDir(p string) string {
	if strings.HasSuffix(p, "/") {
		return p
	}
	return p + "/"
}
