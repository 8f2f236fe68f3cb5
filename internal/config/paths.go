package config

import (
	"os"
	"path/filepath"
)

// Hook events understood by the host.
const (
	EventSessionStart      = "SessionStart"
	EventSessionEnd        = "SessionEnd"
	EventUserPromptSubmit  = "UserPromptSubmit"
	EventPreToolUse        = "PreToolUse"
	EventPostToolUse       = "PostToolUse"
	EventPreCompact        = "PreCompact"
	EventStop              = "Stop"
	EventSubagentStop      = "SubagentStop"
	EventPermissionRequest = "PermissionRequest"
)

// ValidHookEvents lists every event a settings.json hook may be bound to.
var ValidHookEvents = []string{
	EventSessionStart, EventSessionEnd, EventUserPromptSubmit,
	EventPreToolUse, EventPostToolUse, EventPreCompact,
	EventStop, EventSubagentStop, EventPermissionRequest,
}

// Paths is every file and directory the engine reads or writes.
// It is resolved once per invocation and passed down explicitly.
type Paths struct {
	HomeDir    string
	ClaudeDir  string
	ManagerDir string

	RegistriesDir   string
	InstructionsDir string
	LogsDir         string
	StateDir        string

	ConfigFile     string
	SettingsJSON   string
	SkillRegistry  string
	ConfigHashFile string

	// Candidate servers.yaml locations, in search order.
	ServersYAMLCandidates []string

	SuggestionStateFile string
	StatusCacheFile     string
	UsageLog            string
	StateDB             string
}

// HomeDir returns $HOME, falling back to $USERPROFILE.
func HomeDir() string {
	if home := os.Getenv("HOME"); home != "" {
		return home
	}
	return os.Getenv("USERPROFILE")
}

// ResolvePaths builds the runtime layout rooted at home.
// SUPER_MANAGER_DIR relocates the manager directory and MCP_SERVERS_YAML
// takes precedence over the default servers.yaml locations.
func ResolvePaths(home string) Paths {
	claudeDir := filepath.Join(home, ".claude")
	managerDir := filepath.Join(claudeDir, "super-manager")
	if dir := os.Getenv("SUPER_MANAGER_DIR"); dir != "" {
		managerDir = dir
	}

	registries := filepath.Join(managerDir, "registries")
	stateDir := filepath.Join(managerDir, "state")
	logsDir := filepath.Join(managerDir, "logs")

	var servers []string
	if p := os.Getenv("MCP_SERVERS_YAML"); p != "" {
		servers = append(servers, p)
	}
	servers = append(servers,
		filepath.Join(home, "mcp", "mcp-manager", "servers.yaml"),
		filepath.Join(registries, "servers.yaml"),
	)

	return Paths{
		HomeDir:    home,
		ClaudeDir:  claudeDir,
		ManagerDir: managerDir,

		RegistriesDir:   registries,
		InstructionsDir: filepath.Join(claudeDir, "instructions"),
		LogsDir:         logsDir,
		StateDir:        stateDir,

		ConfigFile:     filepath.Join(managerDir, "config.yaml"),
		SettingsJSON:   filepath.Join(claudeDir, "settings.json"),
		SkillRegistry:  filepath.Join(registries, "skill-registry.json"),
		ConfigHashFile: filepath.Join(registries, "last-known-config-hash.txt"),

		ServersYAMLCandidates: servers,

		SuggestionStateFile: filepath.Join(stateDir, "skill-suggestions.json"),
		StatusCacheFile:     filepath.Join(stateDir, "status.json"),
		UsageLog:            filepath.Join(logsDir, "skill-usage.jsonl"),
		StateDB:             filepath.Join(stateDir, "state.db"),
	}
}

// InstructionDir returns the instruction directory for a hook event.
func (p Paths) InstructionDir(event string) string {
	return filepath.Join(p.InstructionsDir, event)
}

// FindServersYAML returns the first existing servers.yaml, or "".
func (p Paths) FindServersYAML() string {
	for _, path := range p.ServersYAMLCandidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
