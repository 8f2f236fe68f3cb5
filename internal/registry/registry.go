package registry

import (
	"errors"

	"supermanager/internal/config"

	"go.uber.org/zap"
)

// Set is every registry loaded for one invocation.
type Set struct {
	Instructions []RuleRecord // UserPromptSubmit instructions
	StopRules    []RuleRecord // Stop instructions
	Skills       []RuleRecord
	Servers      []RuleRecord
	Hooks        []HookEntry

	ServersPath string
}

// Load reads all registries under p. Failures are logged and the affected
// category is left empty; Load itself never fails.
func Load(p config.Paths, logger *zap.Logger) Set {
	if logger == nil {
		logger = zap.NewNop()
	}
	var set Set

	set.Instructions = loadInstructionDir(p.InstructionDir(config.EventUserPromptSubmit), logger)
	set.StopRules = loadInstructionDir(p.InstructionDir(config.EventStop), logger)

	skills, err := LoadSkills(p.SkillRegistry)
	logLoad(logger, "skills", p.SkillRegistry, err)
	set.Skills = skills

	servers, path, err := LoadServers(p.ServersYAMLCandidates...)
	logLoad(logger, "servers", path, err)
	set.Servers = servers
	set.ServersPath = path

	hooks, err := LoadHooks(p.SettingsJSON)
	logLoad(logger, "hooks", p.SettingsJSON, err)
	set.Hooks = hooks

	logger.Debug("registries loaded",
		zap.Int("instructions", len(set.Instructions)),
		zap.Int("stop_rules", len(set.StopRules)),
		zap.Int("skills", len(set.Skills)),
		zap.Int("servers", len(set.Servers)),
		zap.Int("hooks", len(set.Hooks)),
	)
	return set
}

func loadInstructionDir(dir string, logger *zap.Logger) []RuleRecord {
	records, errs := LoadInstructions(dir)
	for _, err := range errs {
		logger.Warn("skipping instruction", zap.Error(err))
	}
	return records
}

func logLoad(logger *zap.Logger, category, source string, err error) {
	switch {
	case err == nil:
	case errors.Is(err, ErrMissing):
		logger.Debug("registry absent", zap.String("registry", category), zap.String("source", source))
	default:
		logger.Warn("registry unreadable, using empty list",
			zap.String("registry", category),
			zap.String("source", source),
			zap.Error(err),
		)
	}
}
