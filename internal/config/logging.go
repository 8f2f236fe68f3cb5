package config

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level      string          `yaml:"level"`      // debug, info, warn, error, off
	Format     string          `yaml:"format"`     // json, text
	Categories map[string]bool `yaml:"categories"` // Per-category toggles
}

// IsEnabled reports whether any logging happens at all.
func (c *LoggingConfig) IsEnabled() bool {
	return c.Level != "off"
}

// IsCategoryEnabled returns whether logging is enabled for a category.
// Categories not listed are enabled.
func (c *LoggingConfig) IsCategoryEnabled(category string) bool {
	if !c.IsEnabled() {
		return false
	}
	if c.Categories == nil {
		return true
	}
	enabled, exists := c.Categories[category]
	if !exists {
		return true
	}
	return enabled
}
