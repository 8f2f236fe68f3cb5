package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Enforcement.Mode != EnforcementBlock {
		t.Errorf("expected Mode=block, got %s", cfg.Enforcement.Mode)
	}
	if cfg.State.Backend != BackendFile {
		t.Errorf("expected Backend=file, got %s", cfg.State.Backend)
	}
	if cfg.GetStateTTL() != 10*time.Minute {
		t.Errorf("expected TTL=10m, got %s", cfg.GetStateTTL())
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestConfig_SaveLoad(t *testing.T) {
	t.Setenv("SUPER_MANAGER_ENFORCEMENT", "")
	t.Setenv("SUPER_MANAGER_STATE_BACKEND", "")

	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg := DefaultConfig()
	cfg.Enforcement.Mode = EnforcementWarn
	cfg.State.TTL = "2m"

	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Enforcement.Mode != EnforcementWarn {
		t.Errorf("expected Mode=warn, got %s", loaded.Enforcement.Mode)
	}
	if loaded.GetStateTTL() != 2*time.Minute {
		t.Errorf("expected TTL=2m, got %s", loaded.GetStateTTL())
	}
}

func TestConfig_LoadMissingReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.State.SnippetLength != 100 {
		t.Errorf("expected default snippet length, got %d", cfg.State.SnippetLength)
	}
}

func TestConfig_LoadMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("state: [unclosed"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected parse error for malformed yaml")
	}
}

func TestConfig_Validate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Enforcement.Mode = "shout"
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for invalid mode")
	}

	cfg = DefaultConfig()
	cfg.State.Backend = "postgres"
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for invalid backend")
	}

	cfg = DefaultConfig()
	cfg.State.TTL = "ten minutes"
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for invalid ttl")
	}
}

func TestConfig_Helpers(t *testing.T) {
	cfg := DefaultConfig()
	cfg.State.TTL = "garbage"
	cfg.Watch.Debounce = "garbage"
	cfg.State.SnippetLength = 0

	if cfg.GetStateTTL() != 10*time.Minute {
		t.Error("GetStateTTL should fall back to 10m")
	}
	if cfg.GetWatchDebounce() != 500*time.Millisecond {
		t.Error("GetWatchDebounce should fall back to 500ms")
	}
	if cfg.GetSnippetLength() != 100 {
		t.Error("GetSnippetLength should fall back to 100")
	}
}

func TestLoggingConfig_Categories(t *testing.T) {
	lc := LoggingConfig{Level: "info", Categories: map[string]bool{"matcher": false}}
	if lc.IsCategoryEnabled("matcher") {
		t.Error("matcher should be disabled")
	}
	if !lc.IsCategoryEnabled("state") {
		t.Error("unlisted categories should be enabled")
	}

	lc.Level = "off"
	if lc.IsCategoryEnabled("state") {
		t.Error("level off should disable every category")
	}
}

func TestResolvePaths(t *testing.T) {
	t.Setenv("SUPER_MANAGER_DIR", "")
	t.Setenv("MCP_SERVERS_YAML", "")

	home := t.TempDir()
	p := ResolvePaths(home)

	if p.ManagerDir != filepath.Join(home, ".claude", "super-manager") {
		t.Errorf("unexpected manager dir %s", p.ManagerDir)
	}
	if p.ConfigHashFile != filepath.Join(home, ".claude", "super-manager", "registries", "last-known-config-hash.txt") {
		t.Errorf("unexpected hash file %s", p.ConfigHashFile)
	}
	if got := p.InstructionDir(EventStop); got != filepath.Join(home, ".claude", "instructions", "Stop") {
		t.Errorf("unexpected Stop instruction dir %s", got)
	}
	if len(p.ServersYAMLCandidates) != 2 {
		t.Errorf("expected 2 servers.yaml candidates, got %v", p.ServersYAMLCandidates)
	}
	if p.FindServersYAML() != "" {
		t.Error("no servers.yaml should be found in an empty home")
	}
}

func TestResolvePaths_FindServersYAMLOrder(t *testing.T) {
	home := t.TempDir()
	override := filepath.Join(home, "custom-servers.yaml")
	t.Setenv("MCP_SERVERS_YAML", override)
	t.Setenv("SUPER_MANAGER_DIR", "")

	p := ResolvePaths(home)
	fallback := filepath.Join(p.RegistriesDir, "servers.yaml")
	if err := os.MkdirAll(p.RegistriesDir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(fallback, []byte("servers: {}\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if got := p.FindServersYAML(); got != fallback {
		t.Fatalf("expected fallback %s, got %s", fallback, got)
	}

	if err := os.WriteFile(override, []byte("servers: {}\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if got := p.FindServersYAML(); got != override {
		t.Fatalf("expected override %s, got %s", override, got)
	}
}
