// Package fingerprint reduces the active hook/server/skill/instruction set to
// a minimal canonical projection and hashes it, so drift between two points
// in a session is a single string comparison.
//
// Project is the only place the projection is defined. Session start and
// prompt time both go through it; adding a field here changes both.
package fingerprint

import (
	"encoding/json"
	"fmt"
	"sort"

	"supermanager/internal/registry"

	"github.com/cespare/xxhash/v2"
	"github.com/gowebpki/jcs"
)

// HookProjection is the part of a hook that counts as configuration.
type HookProjection struct {
	Event   string `json:"event"`
	Matcher string `json:"matcher"`
	Name    string `json:"name"`
	Async   bool   `json:"async"`
}

// ServerProjection is the part of a tool server that counts as configuration.
type ServerProjection struct {
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`
}

// SkillProjection is the part of a skill that counts as configuration.
type SkillProjection struct {
	ID      string `json:"id"`
	Enabled bool   `json:"enabled"`
}

// InstructionProjection is the part of an instruction that counts as configuration.
type InstructionProjection struct {
	ID string `json:"id"`
}

// Snapshot is the canonical minimal form of the active configuration.
// Every list is non-nil and sorted.
type Snapshot struct {
	Hooks        []HookProjection        `json:"hooks"`
	Servers      []ServerProjection      `json:"servers"`
	Skills       []SkillProjection       `json:"skills"`
	Instructions []InstructionProjection `json:"instructions"`
}

// Digest is the hex-encoded hash of a Snapshot.
type Digest string

// Project builds the Snapshot. Servers and skills keep their enabled flag so
// toggling one changes the digest; instructions carry only an id, so only
// enabled instructions are projected.
func Project(hooks []registry.HookEntry, servers, skills, instructions []registry.RuleRecord) Snapshot {
	s := Snapshot{
		Hooks:        make([]HookProjection, 0, len(hooks)),
		Servers:      make([]ServerProjection, 0, len(servers)),
		Skills:       make([]SkillProjection, 0, len(skills)),
		Instructions: make([]InstructionProjection, 0, len(instructions)),
	}

	for _, h := range hooks {
		s.Hooks = append(s.Hooks, HookProjection{Event: h.Event, Matcher: h.Matcher, Name: h.Name, Async: h.Async})
	}
	for _, srv := range servers {
		s.Servers = append(s.Servers, ServerProjection{Name: srv.ID, Enabled: srv.Enabled})
	}
	for _, sk := range skills {
		s.Skills = append(s.Skills, SkillProjection{ID: sk.ID, Enabled: sk.Enabled})
	}
	for _, in := range instructions {
		if in.Enabled {
			s.Instructions = append(s.Instructions, InstructionProjection{ID: in.ID})
		}
	}

	sort.Slice(s.Hooks, func(i, j int) bool {
		a, b := s.Hooks[i], s.Hooks[j]
		if a.Event != b.Event {
			return a.Event < b.Event
		}
		if a.Matcher != b.Matcher {
			return a.Matcher < b.Matcher
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return !a.Async && b.Async
	})
	sort.Slice(s.Servers, func(i, j int) bool {
		if s.Servers[i].Name != s.Servers[j].Name {
			return s.Servers[i].Name < s.Servers[j].Name
		}
		return !s.Servers[i].Enabled && s.Servers[j].Enabled
	})
	sort.Slice(s.Skills, func(i, j int) bool {
		if s.Skills[i].ID != s.Skills[j].ID {
			return s.Skills[i].ID < s.Skills[j].ID
		}
		return !s.Skills[i].Enabled && s.Skills[j].Enabled
	})
	sort.Slice(s.Instructions, func(i, j int) bool {
		return s.Instructions[i].ID < s.Instructions[j].ID
	})

	return s
}

// ProjectSet projects a loaded registry set. Prompt and Stop instructions
// are both part of the configuration.
func ProjectSet(set registry.Set) Snapshot {
	instructions := make([]registry.RuleRecord, 0, len(set.Instructions)+len(set.StopRules))
	instructions = append(instructions, set.Instructions...)
	instructions = append(instructions, set.StopRules...)
	return Project(set.Hooks, set.Servers, set.Skills, instructions)
}

// Canonical returns the RFC 8785 canonical JSON form of the snapshot.
func Canonical(s Snapshot) ([]byte, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}
	canon, err := jcs.Transform(raw)
	if err != nil {
		return nil, fmt.Errorf("canonicalize snapshot: %w", err)
	}
	return canon, nil
}

// Compute hashes the canonical snapshot with xxhash64.
func Compute(s Snapshot) (Digest, error) {
	canon, err := Canonical(s)
	if err != nil {
		return "", err
	}
	return Digest(fmt.Sprintf("%016x", xxhash.Sum64(canon))), nil
}
