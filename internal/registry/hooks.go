package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

type settingsHook struct {
	Type    string `json:"type"`
	Command string `json:"command"`
	Async   bool   `json:"async"`
}

type settingsMatcher struct {
	Matcher string         `json:"matcher"`
	Hooks   []settingsHook `json:"hooks"`
}

type settingsDocument struct {
	Hooks map[string][]settingsMatcher `json:"hooks"`
}

// LoadHooks reads the hook definitions from the host settings.json.
func LoadHooks(path string) ([]HookEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", path, ErrMissing)
		}
		return nil, &ParseError{Source: path, Reason: "read", Err: err}
	}
	hooks, err := ParseHooks(data)
	if err != nil {
		return nil, &ParseError{Source: path, Reason: "settings hooks", Err: err}
	}
	return hooks, nil
}

// ParseHooks flattens the settings.json hooks object. Events are visited in
// sorted order; entries within an event keep document order.
func ParseHooks(data []byte) ([]HookEntry, error) {
	var doc settingsDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}

	events := make([]string, 0, len(doc.Hooks))
	for event := range doc.Hooks {
		events = append(events, event)
	}
	sort.Strings(events)

	var out []HookEntry
	for _, event := range events {
		for _, m := range doc.Hooks[event] {
			for _, h := range m.Hooks {
				if h.Type != "" && h.Type != "command" {
					continue
				}
				out = append(out, HookEntry{
					Event:   event,
					Matcher: m.Matcher,
					Name:    HookName(h.Command),
					Command: h.Command,
					Async:   h.Async,
				})
			}
		}
	}
	return out, nil
}

var scriptExts = map[string]bool{
	".js": true, ".mjs": true, ".cjs": true, ".ts": true,
	".py": true, ".sh": true, ".ps1": true, ".go": true,
}

// HookName derives a stable short name from a hook command: the basename
// of its script argument without extension, falling back to the program.
func HookName(command string) string {
	fields := splitCommand(command)
	if len(fields) == 0 {
		return ""
	}
	pick := fields[0]
	for i := len(fields) - 1; i >= 0; i-- {
		if scriptExts[strings.ToLower(filepath.Ext(fields[i]))] {
			pick = fields[i]
			break
		}
	}
	pick = strings.ReplaceAll(pick, `\`, "/")
	base := pick[strings.LastIndex(pick, "/")+1:]
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// splitCommand splits a command line on whitespace outside single or double
// quotes and removes the quotes. Backslashes are kept literally so Windows
// paths survive.
func splitCommand(command string) []string {
	var (
		fields  []string
		cur     strings.Builder
		quote   rune
		inField bool
	)
	for _, r := range command {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			} else {
				cur.WriteRune(r)
			}
		case r == '"' || r == '\'':
			quote = r
			inField = true
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			if inField {
				fields = append(fields, cur.String())
				cur.Reset()
				inField = false
			}
		default:
			cur.WriteRune(r)
			inField = true
		}
	}
	if inField {
		fields = append(fields, cur.String())
	}
	return fields
}
