package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all supermanager configuration.
type Config struct {
	// Enforcement policy for reconciliation verdicts
	Enforcement EnforcementConfig `yaml:"enforcement"`

	// Suggestion state persistence
	State StateConfig `yaml:"state"`

	// Prompt matching
	Matching MatchingConfig `yaml:"matching"`

	// Config watcher (supermanager watch)
	Watch WatchConfig `yaml:"watch"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// Enforcement modes.
const (
	EnforcementBlock = "block" // HARD_BLOCK denies, SOFT_WARN warns
	EnforcementWarn  = "warn"  // every verdict is surfaced as a warning
	EnforcementLog   = "log"   // verdicts are recorded, never surfaced
)

// EnforcementConfig decides whether reconciliation verdicts reach the host.
type EnforcementConfig struct {
	Mode string `yaml:"mode"`

	// Extra path fragments that are never reconciled.
	ExemptPaths []string `yaml:"exempt_paths"`
}

// State backends.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// StateConfig configures the suggestion state store.
type StateConfig struct {
	Backend string `yaml:"backend"` // file, sqlite
	TTL     string `yaml:"ttl"`

	// Prompt snippet length kept in state and usage records (runes)
	SnippetLength int `yaml:"snippet_length"`
}

// MatchingConfig configures prompt matching.
type MatchingConfig struct {
	// Cap on instruction bodies injected per turn; 0 means no cap.
	MaxInstructions int `yaml:"max_instructions"`

	// Host-generated envelope tags that mark a prompt as not user input.
	PseudoPromptTags []string `yaml:"pseudo_prompt_tags"`
}

// WatchConfig configures the registry watcher.
type WatchConfig struct {
	Debounce string `yaml:"debounce"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Enforcement: EnforcementConfig{
			Mode: EnforcementBlock,
		},
		State: StateConfig{
			Backend:       BackendFile,
			TTL:           "10m",
			SnippetLength: 100,
		},
		Matching: MatchingConfig{
			PseudoPromptTags: []string{
				"task-notification",
				"bash-notification",
				"system-reminder",
				"local-command-stdout",
				"local-command-stderr",
				"command-name",
				"command-message",
				"command-args",
			},
		},
		Watch: WatchConfig{
			Debounce: "500ms",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Return defaults if config file doesn't exist
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if mode := os.Getenv("SUPER_MANAGER_ENFORCEMENT"); mode != "" {
		c.Enforcement.Mode = mode
	}
	if backend := os.Getenv("SUPER_MANAGER_STATE_BACKEND"); backend != "" {
		c.State.Backend = backend
	}
	if level := os.Getenv("SUPER_MANAGER_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
}

// GetStateTTL returns the suggestion state TTL as a duration.
func (c *Config) GetStateTTL() time.Duration {
	d, err := time.ParseDuration(c.State.TTL)
	if err != nil || d <= 0 {
		return 10 * time.Minute
	}
	return d
}

// GetWatchDebounce returns the watcher debounce window as a duration.
func (c *Config) GetWatchDebounce() time.Duration {
	d, err := time.ParseDuration(c.Watch.Debounce)
	if err != nil || d < 0 {
		return 500 * time.Millisecond
	}
	return d
}

// GetSnippetLength returns the prompt snippet length with its default.
func (c *Config) GetSnippetLength() int {
	if c.State.SnippetLength <= 0 {
		return 100
	}
	return c.State.SnippetLength
}

// ValidEnforcementModes lists all supported enforcement modes.
var ValidEnforcementModes = []string{EnforcementBlock, EnforcementWarn, EnforcementLog}

// ValidBackends lists all supported state backends.
var ValidBackends = []string{BackendFile, BackendSQLite}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if !contains(ValidEnforcementModes, c.Enforcement.Mode) {
		return fmt.Errorf("invalid enforcement mode: %s (valid: %v)", c.Enforcement.Mode, ValidEnforcementModes)
	}
	if !contains(ValidBackends, c.State.Backend) {
		return fmt.Errorf("invalid state backend: %s (valid: %v)", c.State.Backend, ValidBackends)
	}
	if _, err := time.ParseDuration(c.State.TTL); err != nil {
		return fmt.Errorf("invalid state ttl %q: %w", c.State.TTL, err)
	}
	return nil
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
