package state

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"supermanager/internal/matcher"
	"supermanager/internal/usage"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func sg(id, term string, scope ...string) Suggestion {
	return Suggestion{MatchResult: matcher.MatchResult{RecordID: id, TriggeringTerm: term}, Scope: scope}
}

type fixture struct {
	kv    *FileKV
	store *Store
	clock *fakeClock
	usage string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	clock := &fakeClock{now: time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)}
	usagePath := filepath.Join(dir, "logs", "skill-usage.jsonl")
	kv := NewFileKV(filepath.Join(dir, "state"), nil)
	store := NewStore(kv, Options{
		Clock:        clock.Now,
		Usage:        usage.NewLog(usagePath, 0),
		SessionID:    "sess-1",
		InvocationID: "inv-1",
	})
	return &fixture{kv: kv, store: store, clock: clock, usage: usagePath}
}

func (f *fixture) usageEvents(t *testing.T) []usage.Event {
	t.Helper()
	fh, err := os.Open(f.usage)
	if os.IsNotExist(err) {
		return nil
	}
	require.NoError(t, err)
	defer fh.Close()
	var out []usage.Event
	sc := bufio.NewScanner(fh)
	for sc.Scan() {
		var ev usage.Event
		require.NoError(t, json.Unmarshal(sc.Bytes(), &ev))
		out = append(out, ev)
	}
	return out
}

func TestStore_RoundTrip(t *testing.T) {
	f := newFixture(t)
	turn := TurnMatches{
		Prompt:       "please update billing and reporting",
		Skills:       []Suggestion{sg("billing", "billing", "skills/billing/"), sg("reporting", "report")},
		Tools:        []Suggestion{sg("postgres", "sql")},
		Instructions: []Suggestion{sg("style", "update")},
	}
	require.NoError(t, f.store.Write(turn))

	got, err := f.store.Read()
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.True(t, got.Timestamp.Equal(f.clock.now))
	assert.Equal(t, "please update billing and reporting", got.PromptSnippet)
	assert.Empty(t, got.Fulfilled)
	if diff := cmp.Diff(turn.Skills, got.Suggestions.Skills); diff != "" {
		t.Fatalf("skills mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(turn.Tools, got.Suggestions.Tools); diff != "" {
		t.Fatalf("tools mismatch (-want +got):\n%s", diff)
	}
}

func TestStore_WireFormatIsStable(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.Write(TurnMatches{Prompt: "p", Skills: []Suggestion{sg("billing", "bill", "skills/billing/")}}))

	data, err := f.kv.Read(KeySuggestions)
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "2026-05-04T10:00:00Z", doc["timestamp"])
	assert.Equal(t, "p", doc["prompt_snippet"])
	assert.Equal(t, []any{}, doc["fulfilled"])

	suggestions := doc["suggestions"].(map[string]any)
	assert.Equal(t, []any{}, suggestions["tools"])
	assert.Equal(t, []any{}, suggestions["instructions"])
	skill := suggestions["skills"].([]any)[0].(map[string]any)
	assert.Equal(t, "billing", skill["id"])
	assert.Equal(t, "bill", skill["term"])
	assert.Equal(t, []any{"skills/billing/"}, skill["scope"])
}

func TestStore_SnippetTruncated(t *testing.T) {
	f := newFixture(t)
	long := make([]rune, 250)
	for i := range long {
		long[i] = 'é'
	}
	require.NoError(t, f.store.Write(TurnMatches{Prompt: string(long), Tools: []Suggestion{sg("t", "t")}}))

	got, err := f.store.Read()
	require.NoError(t, err)
	assert.Len(t, []rune(got.PromptSnippet), 100)
}

func TestStore_NoActionableMatchesDeletes(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.Write(TurnMatches{Skills: []Suggestion{sg("a", "a")}}))

	require.NoError(t, f.store.Write(TurnMatches{Instructions: []Suggestion{sg("i", "i")}}))
	got, err := f.store.Read()
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = os.Stat(f.kv.Path(KeySuggestions))
	assert.True(t, os.IsNotExist(err))

	// Idempotent on an already-absent file.
	assert.NoError(t, f.store.Write(TurnMatches{}))
}

func TestStore_FreshWriteResetsFulfilled(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.Write(TurnMatches{Skills: []Suggestion{sg("billing", "billing")}}))
	_, newly, err := f.store.MarkFulfilled("billing")
	require.NoError(t, err)
	require.Equal(t, []string{"billing"}, newly)

	require.NoError(t, f.store.Write(TurnMatches{Skills: []Suggestion{sg("billing", "billing")}}))
	got, err := f.store.Read()
	require.NoError(t, err)
	assert.Empty(t, got.Fulfilled)
}

func TestStore_ExpiredStateIsDeleted(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.Write(TurnMatches{Skills: []Suggestion{sg("a", "a")}}))

	f.clock.Advance(DefaultTTL)
	got, err := f.store.Read()
	require.NoError(t, err)
	require.NotNil(t, got, "exactly TTL old is still valid")

	f.clock.Advance(time.Second)
	got, err = f.store.Read()
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = f.kv.Read(KeySuggestions)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_UnparsableIsAbsent(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.kv.Write(KeySuggestions, []byte("{not json")))

	got, err := f.store.Read()
	assert.Nil(t, got)
	assert.Error(t, err)

	require.NoError(t, f.kv.Write(KeySuggestions, []byte(`{"timestamp":"yesterday"}`)))
	got, err = f.store.Read()
	assert.Nil(t, got)
	assert.Error(t, err)
}

func TestStore_MarkFulfilled(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.Write(TurnMatches{
		Prompt: "rotate the token and check postgres",
		Skills: []Suggestion{sg("billing", "bill"), sg("reporting", "report")},
		Tools:  []Suggestion{sg("postgres", "sql")},
	}))

	st, newly, err := f.store.MarkFulfilled("mcp__postgres__query")
	require.NoError(t, err)
	assert.Equal(t, []string{"postgres"}, newly)
	assert.Equal(t, []string{"postgres"}, st.Fulfilled)

	st, newly, err = f.store.MarkFulfilled("Read")
	require.NoError(t, err)
	assert.Empty(t, newly)
	assert.Equal(t, []string{"billing", "reporting"}, IDs(st.Unfulfilled()))

	st, newly, err = f.store.MarkFulfilled("billing")
	require.NoError(t, err)
	assert.Equal(t, []string{"billing"}, newly)

	persisted, err := f.store.Read()
	require.NoError(t, err)
	assert.Equal(t, []string{"billing", "postgres"}, persisted.Fulfilled)
	assert.Equal(t, []string{"reporting"}, IDs(persisted.Unfulfilled()))

	events := f.usageEvents(t)
	require.Len(t, events, 3)
	assert.Equal(t, "mcp__postgres__query", events[0].Invoked)
	assert.True(t, events[0].Fulfilled)
	assert.False(t, events[1].Fulfilled)
	assert.Equal(t, "sess-1", events[2].SessionID)
	assert.Equal(t, "inv-1", events[2].InvocationID)
	assert.Equal(t, "rotate the token and check postgres", events[2].PromptSnippet)
}

func TestStore_MarkFulfilledWithoutStateStillLogs(t *testing.T) {
	f := newFixture(t)

	st, newly, err := f.store.MarkFulfilled("Bash")
	require.NoError(t, err)
	assert.Nil(t, st)
	assert.Empty(t, newly)

	events := f.usageEvents(t)
	require.Len(t, events, 1)
	assert.Equal(t, "Bash", events[0].Invoked)
	assert.False(t, events[0].Fulfilled)
}

func TestSubstringFulfillment(t *testing.T) {
	s := SubstringFulfillment{}
	tests := []struct {
		suggestion, invocation string
		want                   bool
	}{
		{"billing", "billing", true},
		{"billing", "billing-v2", true},
		{"postgres", "mcp__postgres__query", true},
		{"billing-v2", "billing", false},
		{"Billing", "billing", false},
		{"", "billing", false},
		{"billing", "", false},
	}
	for _, tt := range tests {
		if got := s.Fulfills(tt.suggestion, tt.invocation); got != tt.want {
			t.Errorf("Fulfills(%q, %q) = %v, want %v", tt.suggestion, tt.invocation, got, tt.want)
		}
	}
}
