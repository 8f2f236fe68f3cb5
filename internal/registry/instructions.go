package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// instructionFrontmatter is the preamble of an instruction file.
type instructionFrontmatter struct {
	ID          string   `yaml:"id"`
	Enabled     *bool    `yaml:"enabled"`
	Keywords    []string `yaml:"keywords"`
	Pattern     string   `yaml:"pattern"`
	Description string   `yaml:"description"`
}

// LoadInstructions parses every *.md file in dir, in filename order.
// Files without a preamble boundary or without an id are skipped and
// reported in the returned error slice. A missing dir yields nothing.
func LoadInstructions(dir string) ([]RuleRecord, []error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, []error{&ParseError{Source: dir, Reason: "read dir", Err: err}}
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".md") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	var records []RuleRecord
	var errs []error
	for _, name := range names {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			errs = append(errs, &ParseError{Source: path, Reason: "read", Err: err})
			continue
		}
		rec, err := ParseInstruction(data)
		if err != nil {
			errs = append(errs, &ParseError{Source: path, Reason: "preamble", Err: err})
			continue
		}
		rec.Source = path
		records = append(records, rec)
	}
	return records, errs
}

// ParseInstruction parses one instruction document.
func ParseInstruction(data []byte) (RuleRecord, error) {
	front, body, ok := splitFrontmatter(string(data))
	if !ok {
		return RuleRecord{}, fmt.Errorf("no preamble boundary")
	}

	rest, raw := extractRawTriggers(front)

	var fm instructionFrontmatter
	if err := yaml.Unmarshal([]byte(rest), &fm); err != nil {
		return RuleRecord{}, err
	}
	if raw.pattern != nil {
		fm.Pattern = *raw.pattern
	}
	if raw.keywords != nil {
		fm.Keywords = raw.keywords
	}
	fm.ID = strings.TrimSpace(fm.ID)
	if fm.ID == "" {
		return RuleRecord{}, fmt.Errorf("missing id")
	}

	enabled := true
	if fm.Enabled != nil {
		enabled = *fm.Enabled
	}

	return RuleRecord{
		ID:      fm.ID,
		Enabled: enabled,
		Triggers: MatchSpec{
			Keywords: normalizeKeywords(fm.Keywords),
			Pattern:  strings.TrimSpace(fm.Pattern),
		},
		Payload:     body,
		Description: strings.TrimSpace(fm.Description),
	}, nil
}

type rawTriggers struct {
	pattern  *string
	keywords []string
}

// extractRawTriggers lifts single-line "pattern:" and bracketed "keywords:"
// entries out of the preamble and returns the remaining lines. Their values
// are taken as written: a pattern is one regex and a keyword list is split
// on commas only. Block-style values are left to the YAML decoder.
func extractRawTriggers(front string) (string, rawTriggers) {
	var raw rawTriggers
	var kept []string
	for _, line := range strings.Split(front, "\n") {
		if v, ok := strings.CutPrefix(line, "pattern:"); ok {
			v = strings.TrimSpace(v)
			if v != "" && !strings.HasPrefix(v, "|") && !strings.HasPrefix(v, ">") {
				p := rawScalar(v)
				raw.pattern = &p
				continue
			}
		}
		if v, ok := strings.CutPrefix(line, "keywords:"); ok {
			v = strings.TrimSpace(v)
			if strings.HasPrefix(v, "[") && strings.HasSuffix(v, "]") {
				raw.keywords = []string{}
				for _, item := range strings.Split(v[1:len(v)-1], ",") {
					if item = rawScalar(strings.TrimSpace(item)); item != "" {
						raw.keywords = append(raw.keywords, item)
					}
				}
				continue
			}
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n"), raw
}

// rawScalar returns v verbatim unless it is wholly quoted, in which case
// the quoted scalar is decoded so escapes keep their YAML meaning.
func rawScalar(v string) string {
	if len(v) < 2 {
		return v
	}
	if q := v[0]; (q == '"' || q == '\'') && v[len(v)-1] == q {
		var s string
		if err := yaml.Unmarshal([]byte(v), &s); err == nil {
			return s
		}
		return v[1 : len(v)-1]
	}
	return v
}

// splitFrontmatter separates a leading "---" delimited block from the body.
func splitFrontmatter(raw string) (frontmatter string, body string, ok bool) {
	raw = strings.TrimPrefix(raw, "\ufeff")
	raw = strings.ReplaceAll(raw, "\r\n", "\n")
	raw = strings.ReplaceAll(raw, "\r", "\n")
	if !strings.HasPrefix(raw, "---\n") {
		return "", strings.TrimSpace(raw), false
	}
	lines := strings.Split(raw, "\n")
	end := -1
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "---" {
			end = i
			break
		}
	}
	if end <= 0 {
		return "", strings.TrimSpace(raw), false
	}
	front := strings.Join(lines[1:end], "\n")
	bodyPart := ""
	if end+1 < len(lines) {
		bodyPart = strings.Join(lines[end+1:], "\n")
	}
	return strings.TrimSpace(front), strings.TrimSpace(bodyPart), true
}

// normalizeKeywords trims, lowercases and drops empty or repeated keywords,
// keeping first-seen order.
func normalizeKeywords(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, kw := range in {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" || seen[kw] {
			continue
		}
		seen[kw] = true
		out = append(out, kw)
	}
	return out
}
