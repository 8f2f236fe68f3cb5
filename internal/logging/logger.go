// Package logging provides config-driven categorized file-based logging.
// Logs are written to <manager>/logs/ as JSON lines; stdout and stderr belong
// to the hook protocol and are never written to.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"supermanager/internal/config"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category represents a log category/subsystem
type Category string

const (
	CategoryBoot        Category = "boot"        // Startup, config loading
	CategoryRegistry    Category = "registry"    // Registry loading
	CategoryMatcher     Category = "matcher"     // Prompt/response matching
	CategoryFingerprint Category = "fingerprint" // Config drift detection
	CategoryState       Category = "state"       // Suggestion state store
	CategoryReconcile   Category = "reconcile"   // Tool invocation reconciliation
	CategoryUsage       Category = "usage"       // Usage log
	CategoryHooks       Category = "hooks"       // Hook protocol I/O
	CategoryWatch       Category = "watch"       // Registry watcher
)

// Loggers hands out per-category zap loggers for one invocation.
type Loggers struct {
	base *zap.Logger
	cfg  config.LoggingConfig
}

// Nop returns Loggers that discard everything.
func Nop() *Loggers {
	return &Loggers{base: zap.NewNop(), cfg: config.LoggingConfig{Level: "off"}}
}

// New builds a zap logger writing to a dated file under logsDir.
// verbose forces debug level. Level "off" yields a no-op logger.
func New(cfg config.LoggingConfig, logsDir string, verbose bool) (*Loggers, error) {
	if !cfg.IsEnabled() && !verbose {
		return Nop(), nil
	}

	if err := os.MkdirAll(logsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create logs directory: %w", err)
	}

	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	if verbose {
		level = zapcore.DebugLevel
		cfg.Level = "debug"
	}

	date := time.Now().Format("2006-01-02")
	logPath := filepath.Join(logsDir, fmt.Sprintf("%s_supermanager.log", date))

	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.OutputPaths = []string{logPath}
	zc.ErrorOutputPaths = []string{logPath}
	zc.Sampling = nil
	zc.EncoderConfig.TimeKey = "ts"
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if cfg.Format == "text" {
		zc.Encoding = "console"
	}

	base, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	return &Loggers{base: base, cfg: cfg}, nil
}

// Get returns the logger for a category, or a no-op logger when the
// category is disabled.
func (l *Loggers) Get(category Category) *zap.Logger {
	if l == nil || l.base == nil {
		return zap.NewNop()
	}
	if l.cfg.Categories != nil && !l.cfg.IsCategoryEnabled(string(category)) {
		return zap.NewNop()
	}
	return l.base.Named(string(category))
}

// Sync flushes buffered entries.
func (l *Loggers) Sync() {
	if l == nil || l.base == nil {
		return
	}
	_ = l.base.Sync()
}

func parseLevel(level string) (zapcore.Level, error) {
	switch level {
	case "", "info":
		return zapcore.InfoLevel, nil
	case "debug":
		return zapcore.DebugLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	case "off":
		return zapcore.InfoLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("invalid log level: %s", level)
	}
}
