package registry

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type serverEntry struct {
	Name        string   `yaml:"name"`
	Enabled     *bool    `yaml:"enabled"`
	Description string   `yaml:"description"`
	Keywords    []string `yaml:"keywords"`
	Tags        []string `yaml:"tags"`
}

type serversDocument struct {
	Servers yaml.Node `yaml:"servers"`
}

// LoadServers reads the first existing servers.yaml among paths and returns
// its records together with the path that was used.
func LoadServers(paths ...string) ([]RuleRecord, string, error) {
	for _, path := range paths {
		if path == "" {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, path, &ParseError{Source: path, Reason: "read", Err: err}
		}
		records, err := ParseServers(data)
		if err != nil {
			return nil, path, &ParseError{Source: path, Reason: "servers.yaml", Err: err}
		}
		for i := range records {
			records[i].Source = path
		}
		return records, path, nil
	}
	return nil, "", fmt.Errorf("servers.yaml: %w", ErrMissing)
}

// ParseServers decodes a servers.yaml document. The servers key may be a
// mapping of name to entry (document order is kept) or a list of entries
// carrying a name field. Keywords and tags both become match keywords.
func ParseServers(data []byte) ([]RuleRecord, error) {
	var doc serversDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}

	var entries []serverEntry
	switch doc.Servers.Kind {
	case 0:
		return nil, nil
	case yaml.MappingNode:
		content := doc.Servers.Content
		for i := 0; i+1 < len(content); i += 2 {
			var e serverEntry
			if err := content[i+1].Decode(&e); err != nil {
				return nil, fmt.Errorf("server %q: %w", content[i].Value, err)
			}
			e.Name = content[i].Value
			entries = append(entries, e)
		}
	case yaml.SequenceNode:
		for _, node := range doc.Servers.Content {
			var e serverEntry
			if err := node.Decode(&e); err != nil {
				return nil, err
			}
			entries = append(entries, e)
		}
	default:
		return nil, fmt.Errorf("servers must be a mapping or a list")
	}

	records := make([]RuleRecord, 0, len(entries))
	for _, e := range entries {
		name := strings.TrimSpace(e.Name)
		if name == "" {
			continue
		}
		enabled := true
		if e.Enabled != nil {
			enabled = *e.Enabled
		}
		records = append(records, RuleRecord{
			ID:          name,
			Enabled:     enabled,
			Triggers:    MatchSpec{Keywords: normalizeKeywords(append(append([]string{}, e.Keywords...), e.Tags...))},
			Description: strings.TrimSpace(e.Description),
		})
	}
	return records, nil
}
