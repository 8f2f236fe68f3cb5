package registry

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

//go:embed skill_registry.schema.json
var skillRegistrySchema []byte

type skillEntry struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Enabled     *bool    `json:"enabled"`
	Description string   `json:"description"`
	Keywords    []string `json:"keywords"`
	Pattern     string   `json:"pattern"`
	Scope       struct {
		Paths []string `json:"paths"`
	} `json:"scope"`
}

type skillDocument struct {
	Skills json.RawMessage `json:"skills"`
}

// LoadSkills reads the skill registry at path.
func LoadSkills(path string) ([]RuleRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", path, ErrMissing)
		}
		return nil, &ParseError{Source: path, Reason: "read", Err: err}
	}
	records, err := ParseSkills(data)
	if err != nil {
		return nil, &ParseError{Source: path, Reason: "skill registry", Err: err}
	}
	for i := range records {
		records[i].Source = path
	}
	return records, nil
}

// ParseSkills validates a skill registry document against its schema and
// decodes it. Both the list form {"skills": [...]} and the keyed form
// {"skills": {"<id>": {...}}} are accepted; the keyed form iterates in
// key order.
func ParseSkills(data []byte) ([]RuleRecord, error) {
	if err := validateSkillDocument(data); err != nil {
		return nil, err
	}

	var doc skillDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}

	var entries []skillEntry
	raw := bytes.TrimSpace(doc.Skills)
	if len(raw) > 0 && raw[0] == '{' {
		keyed := map[string]skillEntry{}
		if err := json.Unmarshal(raw, &keyed); err != nil {
			return nil, err
		}
		keys := make([]string, 0, len(keyed))
		for k := range keyed {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			e := keyed[k]
			if e.ID == "" {
				e.ID = k
			}
			entries = append(entries, e)
		}
	} else if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, err
	}

	records := make([]RuleRecord, 0, len(entries))
	for _, e := range entries {
		id := strings.TrimSpace(e.ID)
		if id == "" {
			id = strings.TrimSpace(e.Name)
		}
		if id == "" {
			continue
		}
		enabled := true
		if e.Enabled != nil {
			enabled = *e.Enabled
		}
		records = append(records, RuleRecord{
			ID:      id,
			Enabled: enabled,
			Triggers: MatchSpec{
				Keywords: normalizeKeywords(e.Keywords),
				Pattern:  strings.TrimSpace(e.Pattern),
			},
			Description: strings.TrimSpace(e.Description),
			Scope:       cleanScope(e.Scope.Paths),
		})
	}
	return records, nil
}

func validateSkillDocument(data []byte) error {
	schemaDoc, err := jsonschema.UnmarshalJSON(bytes.NewReader(skillRegistrySchema))
	if err != nil {
		return fmt.Errorf("schema unmarshal error: %w", err)
	}

	c := jsonschema.NewCompiler()
	if err := c.AddResource("skill-registry.schema.json", schemaDoc); err != nil {
		return fmt.Errorf("schema compile error: %w", err)
	}
	sch, err := c.Compile("skill-registry.schema.json")
	if err != nil {
		return fmt.Errorf("schema compile error: %w", err)
	}

	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("registry is not valid JSON: %w", err)
	}
	if err := sch.Validate(inst); err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	return nil
}

func cleanScope(paths []string) []string {
	var out []string
	for _, p := range paths {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
