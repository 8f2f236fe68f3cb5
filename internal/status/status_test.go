package status

import (
	"encoding/json"
	"testing"
	"time"

	"supermanager/internal/state"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_WriteLoad(t *testing.T) {
	kv := state.NewFileKV(t.TempDir(), nil)
	c := NewCache(kv)

	in := Status{
		UpdatedAt:    time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		InvocationID: "inv",
		Event:        "PreToolUse",
		Tool:         "Edit",
		Matched:      Matched{Skills: []string{"billing"}},
		Verdict:      "HARD_BLOCK",
		Unfulfilled:  []string{"billing"},
		Violating:    []string{"billing"},
	}
	require.NoError(t, c.Write(in))

	got, err := c.Load()
	require.NoError(t, err)
	assert.Equal(t, "HARD_BLOCK", got.Verdict)
	assert.Equal(t, []string{"billing"}, got.Violating)
	assert.Equal(t, []string{}, got.Matched.Tools)
	assert.True(t, got.UpdatedAt.Equal(in.UpdatedAt))
}

func TestCache_JSONKeys(t *testing.T) {
	kv := state.NewFileKV(t.TempDir(), nil)
	require.NoError(t, NewCache(kv).Write(Status{Verdict: "NONE"}))

	data, err := kv.Read(state.KeyStatus)
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	for _, key := range []string{"updated_at", "invocation_id", "event", "matched", "verdict", "unfulfilled", "violating", "config_changed"} {
		assert.Contains(t, doc, key)
	}
	assert.Equal(t, []any{}, doc["unfulfilled"])
}

func TestCache_LoadMissing(t *testing.T) {
	got, err := NewCache(state.NewFileKV(t.TempDir(), nil)).Load()
	require.NoError(t, err)
	assert.True(t, got.UpdatedAt.IsZero())
}

func TestCache_UpdateKeepsOtherFields(t *testing.T) {
	c := NewCache(state.NewFileKV(t.TempDir(), nil))
	require.NoError(t, c.Write(Status{Event: "UserPromptSubmit", Matched: Matched{Skills: []string{"billing"}}, ConfigChanged: true}))

	require.NoError(t, c.Update(func(s *Status) {
		s.Event = "PreToolUse"
		s.Verdict = "SOFT_WARN"
	}))

	got, err := c.Load()
	require.NoError(t, err)
	assert.Equal(t, "PreToolUse", got.Event)
	assert.Equal(t, "SOFT_WARN", got.Verdict)
	assert.Equal(t, []string{"billing"}, got.Matched.Skills)
	assert.True(t, got.ConfigChanged)
}

func TestCache_UpdateRecoversFromCorruptCache(t *testing.T) {
	kv := state.NewFileKV(t.TempDir(), nil)
	require.NoError(t, kv.Write(state.KeyStatus, []byte("garbage")))
	c := NewCache(kv)

	require.NoError(t, c.Update(func(s *Status) { s.Verdict = "NONE" }))
	got, err := c.Load()
	require.NoError(t, err)
	assert.Equal(t, "NONE", got.Verdict)
}

func TestRender(t *testing.T) {
	assert.Contains(t, Render(Status{}), "idle")

	out := Render(Status{
		UpdatedAt:     time.Now(),
		Matched:       Matched{Skills: []string{"billing", "reporting"}, Tools: []string{"pg"}},
		Verdict:       "HARD_BLOCK",
		Violating:     []string{"billing"},
		ConfigChanged: true,
	})
	assert.Contains(t, out, "skills:2 tools:1 instr:0")
	assert.Contains(t, out, "BLOCK billing")
	assert.Contains(t, out, "config changed")

	out = Render(Status{UpdatedAt: time.Now(), Verdict: "SOFT_WARN", Unfulfilled: []string{"reporting"}})
	assert.Contains(t, out, "pending reporting")
	assert.NotContains(t, out, "BLOCK")
}
