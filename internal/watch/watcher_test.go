package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"supermanager/internal/config"

	"go.uber.org/goleak"
)

func setup(t *testing.T) config.Paths {
	t.Helper()
	t.Setenv("SUPER_MANAGER_DIR", "")
	t.Setenv("MCP_SERVERS_YAML", "")
	p := config.ResolvePaths(t.TempDir())
	for _, dir := range []string{p.RegistriesDir, p.InstructionDir(config.EventUserPromptSubmit), p.InstructionDir(config.EventStop)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", dir, err)
		}
	}
	return p
}

func TestRegistryWatcher_ReportsSettledChanges(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	p := setup(t)
	got := make(chan []string, 4)
	w, err := New(p, 50*time.Millisecond, func(_ context.Context, paths []string) {
		got <- paths
	}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !w.IsWatching() {
		t.Fatalf("IsWatching = false after Start")
	}

	instr := filepath.Join(p.InstructionDir(config.EventUserPromptSubmit), "creds.md")
	if err := os.WriteFile(instr, []byte("---\nid: creds\n---\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	select {
	case paths := <-got:
		if len(paths) != 1 || paths[0] != filepath.Clean(instr) {
			t.Fatalf("paths = %v, want [%s]", paths, instr)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("no change reported")
	}

	w.Stop()
	if w.IsWatching() {
		t.Fatalf("IsWatching = true after Stop")
	}
	if s := w.Stats(); s.Batches < 1 || s.Created+s.Modified < 1 {
		t.Fatalf("stats = %+v", s)
	}
}

func TestRegistryWatcher_Relevant(t *testing.T) {
	p := setup(t)
	w, err := New(p, time.Second, nil, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer w.watcher.Close()

	tests := []struct {
		path string
		want bool
	}{
		{p.SettingsJSON, true},
		{p.SkillRegistry, true},
		{filepath.Join(p.RegistriesDir, "servers.yaml"), true},
		{filepath.Join(p.InstructionDir(config.EventStop), "done.md"), true},
		{p.ConfigHashFile, false},
		{filepath.Join(p.RegistriesDir, ".skill-registry.json.123.tmp"), false},
		{filepath.Join(p.ClaudeDir, "CLAUDE.md"), false},
		{filepath.Join(p.RegistriesDir, "notes.txt"), false},
	}
	for _, tt := range tests {
		if got := w.relevant(tt.path); got != tt.want {
			t.Errorf("relevant(%s) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestRegistryWatcher_StopWithoutStart(t *testing.T) {
	p := setup(t)
	w, err := New(p, time.Second, nil, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	w.Stop()
	_ = w.watcher.Close()
}
