// Package status keeps the observability cache: a single JSON document
// overwritten on every hook invocation and read back only by the statusline.
package status

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"supermanager/internal/state"
)

// Matched lists the ids matched at prompt time.
type Matched struct {
	Skills       []string `json:"skills"`
	Tools        []string `json:"tools"`
	Instructions []string `json:"instructions"`
}

// Status is the cached view of the latest invocation.
type Status struct {
	UpdatedAt     time.Time `json:"updated_at"`
	InvocationID  string    `json:"invocation_id"`
	SessionID     string    `json:"session_id,omitempty"`
	Event         string    `json:"event"`
	Tool          string    `json:"tool,omitempty"`
	Matched       Matched   `json:"matched"`
	Verdict       string    `json:"verdict"`
	Unfulfilled   []string  `json:"unfulfilled"`
	Violating     []string  `json:"violating"`
	ConfigChanged bool      `json:"config_changed"`
}

// Cache persists Status under state.KeyStatus.
type Cache struct {
	kv state.KV
}

// NewCache creates a cache over kv.
func NewCache(kv state.KV) *Cache {
	return &Cache{kv: kv}
}

// Write overwrites the cached status.
func (c *Cache) Write(s Status) error {
	normalize(&s)
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal status: %w", err)
	}
	return c.kv.Write(state.KeyStatus, data)
}

// Load returns the cached status. A missing cache yields the zero Status and
// no error.
func (c *Cache) Load() (Status, error) {
	var s Status
	data, err := c.kv.Read(state.KeyStatus)
	if err != nil {
		if errors.Is(err, state.ErrNotFound) {
			return s, nil
		}
		return s, err
	}
	if err := json.Unmarshal(data, &s); err != nil {
		return Status{}, fmt.Errorf("parse status: %w", err)
	}
	return s, nil
}

// Update loads the cached status, applies fn and writes the result. An
// unreadable cache starts from the zero Status.
func (c *Cache) Update(fn func(*Status)) error {
	s, err := c.Load()
	if err != nil {
		s = Status{}
	}
	fn(&s)
	return c.Write(s)
}

func normalize(s *Status) {
	for _, l := range []*[]string{&s.Matched.Skills, &s.Matched.Tools, &s.Matched.Instructions, &s.Unfulfilled, &s.Violating} {
		if *l == nil {
			*l = []string{}
		}
	}
}
