// Package engine wires the registries, matcher, fingerprint tracker, state
// store and reconciler together for one hook invocation.
package engine

import (
	"errors"
	"time"

	"supermanager/internal/config"
	"supermanager/internal/fingerprint"
	"supermanager/internal/logging"
	"supermanager/internal/state"
	"supermanager/internal/status"
	"supermanager/internal/usage"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Options controls how a Runtime is built.
type Options struct {
	// Home overrides the home directory used to resolve paths.
	Home    string
	Verbose bool
	// Clock overrides time.Now.
	Clock func() time.Time
	// Loggers overrides file logging (tests).
	Loggers *logging.Loggers
}

// Runtime is the explicit context of one invocation. Nothing in the engine
// reads process-wide state; everything comes from here.
type Runtime struct {
	Config       *config.Config
	Paths        config.Paths
	Loggers      *logging.Loggers
	Clock        func() time.Time
	InvocationID string

	KV      state.KV
	Usage   *usage.Log
	Status  *status.Cache
	Tracker *fingerprint.Tracker

	sessionID string
}

// NewRuntime resolves paths, loads configuration, opens logging and the
// state backend. Configuration and logging failures degrade to defaults; an
// error is returned only when no state backend at all can be opened.
func NewRuntime(opts Options) (*Runtime, error) {
	home := opts.Home
	if home == "" {
		home = config.HomeDir()
	}
	paths := config.ResolvePaths(home)

	cfg, cfgErr := config.Load(paths.ConfigFile)
	if cfgErr != nil {
		cfg = config.DefaultConfig()
	}
	var validateErr error
	if cfgErr == nil {
		if validateErr = cfg.Validate(); validateErr != nil {
			logCfg := cfg.Logging
			cfg = config.DefaultConfig()
			cfg.Logging = logCfg
		}
	}

	loggers := opts.Loggers
	if loggers == nil {
		l, err := logging.New(cfg.Logging, paths.LogsDir, opts.Verbose)
		if err != nil {
			l = logging.Nop()
		}
		loggers = l
	}

	boot := loggers.Get(logging.CategoryBoot)
	if cfgErr != nil {
		boot.Warn("config unreadable, using defaults", zap.String("path", paths.ConfigFile), zap.Error(cfgErr))
	}
	if validateErr != nil {
		boot.Warn("config invalid, using defaults", zap.Error(validateErr))
	}

	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}

	rt := &Runtime{
		Config:       cfg,
		Paths:        paths,
		Loggers:      loggers,
		Clock:        clock,
		InvocationID: uuid.NewString(),
		Usage:        usage.NewLog(paths.UsageLog, cfg.GetSnippetLength()),
	}

	kv, err := OpenKV(cfg, paths, loggers.Get(logging.CategoryState))
	if err != nil {
		return nil, err
	}
	rt.KV = kv
	rt.Status = status.NewCache(kv)
	rt.Tracker = fingerprint.NewTracker(kv, loggers.Get(logging.CategoryFingerprint))

	boot.Debug("runtime ready",
		zap.String("invocation_id", rt.InvocationID),
		zap.String("manager_dir", paths.ManagerDir),
		zap.String("backend", cfg.State.Backend),
		zap.String("enforcement", cfg.Enforcement.Mode),
	)
	return rt, nil
}

// OpenKV opens the configured state backend. A sqlite backend that cannot be
// opened falls back to files.
func OpenKV(cfg *config.Config, paths config.Paths, logger *zap.Logger) (state.KV, error) {
	files := map[string]string{
		state.KeySuggestions: paths.SuggestionStateFile,
		state.KeyStatus:      paths.StatusCacheFile,
		state.KeyConfigHash:  paths.ConfigHashFile,
	}
	if cfg.State.Backend == config.BackendSQLite {
		kv, err := state.OpenSQLiteKV(paths.StateDB)
		if err == nil {
			return kv, nil
		}
		logger.Warn("sqlite state unavailable, falling back to files", zap.Error(err))
	}
	if paths.StateDir == "" {
		return nil, errors.New("no state directory")
	}
	return state.NewFileKV(paths.StateDir, files), nil
}

// WithSession stamps the host session id on everything the runtime writes.
func (rt *Runtime) WithSession(id string) *Runtime {
	rt.sessionID = id
	return rt
}

// SessionID returns the host session id, if known.
func (rt *Runtime) SessionID() string { return rt.sessionID }

// Logger returns the logger for a category.
func (rt *Runtime) Logger(c logging.Category) *zap.Logger {
	return rt.Loggers.Get(c).With(zap.String("invocation_id", rt.InvocationID))
}

// Store builds the suggestion store for this invocation.
func (rt *Runtime) Store() *state.Store {
	return state.NewStore(rt.KV, state.Options{
		TTL:           rt.Config.GetStateTTL(),
		SnippetLength: rt.Config.GetSnippetLength(),
		Clock:         rt.Clock,
		Usage:         rt.Usage,
		Logger:        rt.Logger(logging.CategoryState),
		SessionID:     rt.sessionID,
		InvocationID:  rt.InvocationID,
	})
}

// Close releases the state backend and flushes logs.
func (rt *Runtime) Close() error {
	rt.Loggers.Sync()
	if rt.KV != nil {
		return rt.KV.Close()
	}
	return nil
}
