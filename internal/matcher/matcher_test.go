package matcher

import (
	"testing"

	"supermanager/internal/registry"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func kw(id string, words ...string) registry.RuleRecord {
	return registry.RuleRecord{ID: id, Enabled: true, Triggers: registry.MatchSpec{Keywords: words}}
}

func pat(id, pattern string) registry.RuleRecord {
	return registry.RuleRecord{ID: id, Enabled: true, Triggers: registry.MatchSpec{Pattern: pattern}}
}

func TestMatch_CredentialScenario(t *testing.T) {
	records := []registry.RuleRecord{
		kw("credential-management", "token", "rotate", "secret", "password"),
	}

	got := Match("please rotate my api token", records)

	// "rotate" appears first in the text, but "token" is first in the record.
	want := []MatchResult{{RecordID: "credential-management", TriggeringTerm: "token"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("Match mismatch (-want +got):\n%s", diff)
	}
}

func TestMatch_KeywordFirstMatchOrder(t *testing.T) {
	records := []registry.RuleRecord{kw("creds", "rotate", "token")}

	got := Match("please rotate my api TOKEN", records)

	require.Len(t, got, 1)
	assert.Equal(t, "rotate", got[0].TriggeringTerm)
}

func TestMatch_KeywordIsSubstring(t *testing.T) {
	got := Match("Tokenization is fun", []registry.RuleRecord{kw("t", "token")})
	require.Len(t, got, 1)
	assert.Equal(t, "token", got[0].TriggeringTerm)
}

func TestMatch_PatternUsesRawTextCaseInsensitive(t *testing.T) {
	records := []registry.RuleRecord{pat("deploy", `deploy\s+to\s+(prod|production)`)}

	got := Match("Can you DEPLOY to Production now?", records)

	require.Len(t, got, 1)
	assert.Equal(t, "DEPLOY to Production", got[0].TriggeringTerm)
}

func TestMatch_OrderFollowsRegistry(t *testing.T) {
	records := []registry.RuleRecord{
		kw("zeta", "deploy"),
		pat("alpha", "deploy"),
		kw("middle", "nothing-here"),
		kw("beta", "prod"),
	}

	got := IDs(Match("deploy to prod", records))

	assert.Equal(t, []string{"zeta", "alpha", "beta"}, got)
}

func TestMatch_DisabledAndEmptySpecNeverMatch(t *testing.T) {
	disabled := kw("off", "deploy")
	disabled.Enabled = false
	records := []registry.RuleRecord{
		disabled,
		{ID: "inert", Enabled: true},
		kw("on", "deploy"),
	}

	got := IDs(Match("deploy", records))

	assert.Equal(t, []string{"on"}, got)
}

func TestMatch_EmptyInputShortCircuits(t *testing.T) {
	records := []registry.RuleRecord{pat("anything", ".*"), kw("space", " ")}

	assert.Empty(t, Match("", records))
	assert.Empty(t, Match("  \n\t ", records))
}

func TestMatch_InvalidPatternLoggedAndSkipped(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	m := New(zap.New(core))
	records := []registry.RuleRecord{
		pat("broken", "(unclosed"),
		pat("broken-again", "(unclosed"),
		kw("fine", "hello"),
	}

	got := m.Match("hello (unclosed", records)
	got = append(got, m.Match("hello again", records)...)

	assert.Equal(t, []string{"fine", "fine"}, IDs(got))
	assert.Equal(t, 1, logs.FilterMessage("skipping record with invalid pattern").Len(),
		"a failing pattern is compiled and logged once per invocation")
}

func TestMatch_Deterministic(t *testing.T) {
	records := []registry.RuleRecord{
		kw("a", "x", "y"), pat("b", "y+"), kw("c", "z"),
	}
	first := Match("xyz yy", records)
	for i := 0; i < 20; i++ {
		if diff := cmp.Diff(first, Match("xyz yy", records)); diff != "" {
			t.Fatalf("run %d differs:\n%s", i, diff)
		}
	}
}

func TestPseudoPromptGuard(t *testing.T) {
	g := NewPseudoPromptGuard([]string{"task-notification", "system-reminder"})

	t.Run("notification only", func(t *testing.T) {
		prompt := "<task-notification>\n<task-id>abc</task-id>\nBackground token rotation finished\n</task-notification>"
		assert.Equal(t, "", g.UserText(prompt))
		assert.True(t, g.IsPseudoPrompt(prompt))
		assert.Empty(t, Match(g.UserText(prompt), []registry.RuleRecord{kw("creds", "token")}))
	})

	t.Run("user text survives", func(t *testing.T) {
		prompt := "<system-reminder>ignore</system-reminder> rotate the token"
		assert.Equal(t, "rotate the token", g.UserText(prompt))
		assert.False(t, g.IsPseudoPrompt(prompt))
	})

	t.Run("unknown tags are user text", func(t *testing.T) {
		prompt := "<div>token</div>"
		assert.Equal(t, prompt, g.UserText(prompt))
	})

	t.Run("empty prompt is not pseudo", func(t *testing.T) {
		assert.False(t, g.IsPseudoPrompt("   "))
	})

	t.Run("no tags configured", func(t *testing.T) {
		assert.Equal(t, "<task-notification>x</task-notification>", NewPseudoPromptGuard(nil).UserText("<task-notification>x</task-notification>"))
	})
}

func TestCheckStop(t *testing.T) {
	rules := []registry.RuleRecord{
		{ID: "verify-done", Enabled: true, Triggers: registry.MatchSpec{Pattern: `\b(all|everything)\s+(is\s+)?(done|complete)\b`}, Payload: "Run the tests before claiming completion."},
		{ID: "no-body", Enabled: true, Triggers: registry.MatchSpec{Pattern: `should work now`}},
	}
	m := New(nil)

	t.Run("allows unmatched response", func(t *testing.T) {
		d := m.CheckStop("I updated the parser.", rules)
		assert.True(t, d.Allow)
		assert.Empty(t, d.Reason)
	})

	t.Run("blocks matched response", func(t *testing.T) {
		d := m.CheckStop("Everything is done. It should work now.", rules)
		require.False(t, d.Allow)
		assert.Equal(t, []string{"verify-done", "no-body"}, IDs(d.Matches))
		assert.Contains(t, d.Reason, "Run the tests before claiming completion.")
		assert.Contains(t, d.Reason, `Rule no-body matched "should work now".`)
	})

	t.Run("empty response allows", func(t *testing.T) {
		assert.True(t, m.CheckStop("", rules).Allow)
	})
}
