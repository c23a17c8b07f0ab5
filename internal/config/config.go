// Package config loads recall configuration from defaults, a YAML file and
// RECALL_* environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rcliao/recall/internal/model"
	"github.com/rcliao/recall/internal/safety"
)

// Config holds the resolved configuration.
type Config struct {
	StoragePath string
	Backend     string
	DefaultUser string

	Retention Retention
	Limits    Limits
	Safety    safety.Settings
	Log       Log

	// ConfigFileUsed is the config file that was read, if any.
	ConfigFileUsed string
	// Warnings collects non-fatal problems found while loading.
	Warnings []string
}

// Retention holds the time-to-live of each memory type.
type Retention struct {
	Conversation      time.Duration
	UserPreference    time.Duration
	ProjectContext    time.Duration
	TaskResult        time.Duration
	LearnedCorrection time.Duration
	ToolPattern       time.Duration
}

// FallbackTTL applies to memory types without an entry.
const FallbackTTL = 7 * 24 * time.Hour

// TTL returns the time-to-live for memory type t.
func (r Retention) TTL(t model.MemoryType) time.Duration {
	var d time.Duration
	switch t {
	case model.TypeConversation:
		d = r.Conversation
	case model.TypeUserPreference:
		d = r.UserPreference
	case model.TypeProjectContext:
		d = r.ProjectContext
	case model.TypeTaskResult:
		d = r.TaskResult
	case model.TypeLearnedCorrection:
		d = r.LearnedCorrection
	case model.TypeToolPattern:
		d = r.ToolPattern
	}
	if d <= 0 {
		return FallbackTTL
	}
	return d
}

// Limits bounds storage growth and context size.
type Limits struct {
	MaxConversationsPerUser  int `mapstructure:"max_conversations_per_user"`
	MaxPreferencesPerUser    int `mapstructure:"max_preferences_per_user"`
	MaxProjectContexts       int `mapstructure:"max_project_contexts"`
	MaxTaskResultsPerProject int `mapstructure:"max_task_results_per_project"`
	MaxCorrectionsPerUser    int `mapstructure:"max_corrections_per_user"`
	MaxToolPatterns          int `mapstructure:"max_tool_patterns"`

	MaxContentLength  int `mapstructure:"max_content_length"`
	MaxTotalStorageMB int `mapstructure:"max_total_storage_mb"`

	MaxMemoriesInContext int `mapstructure:"max_memories_in_context"`
	MaxContextChars      int `mapstructure:"max_context_chars"`
}

// Cap returns the per-owner count limit for memory type t, or 0 for none.
func (l Limits) Cap(t model.MemoryType) int {
	switch t {
	case model.TypeConversation:
		return l.MaxConversationsPerUser
	case model.TypeUserPreference:
		return l.MaxPreferencesPerUser
	case model.TypeProjectContext:
		return l.MaxProjectContexts
	case model.TypeTaskResult:
		return l.MaxTaskResultsPerProject
	case model.TypeLearnedCorrection:
		return l.MaxCorrectionsPerUser
	case model.TypeToolPattern:
		return l.MaxToolPatterns
	}
	return 0
}

// Log configures the process logger.
type Log struct {
	Debug  bool   `mapstructure:"debug"`
	Format string `mapstructure:"format"`
}

const (
	BackendSQLite      = "sqlite"
	DefaultUserName    = "default_user"
	defaultAppDir      = "recall"
	defaultDBFile      = "memory.db"
	maxSaneContent     = 50000
	maxSaneContextSize = 15000
)

// DefaultRetention returns the stock TTL table.
func DefaultRetention() Retention {
	day := 24 * time.Hour
	return Retention{
		Conversation:      7 * day,
		UserPreference:    90 * day,
		ProjectContext:    30 * day,
		TaskResult:        14 * day,
		LearnedCorrection: 180 * day,
		ToolPattern:       60 * day,
	}
}

// DefaultLimits returns the stock storage limits.
func DefaultLimits() Limits {
	return Limits{
		MaxConversationsPerUser:  500,
		MaxPreferencesPerUser:    50,
		MaxProjectContexts:       100,
		MaxTaskResultsPerProject: 200,
		MaxCorrectionsPerUser:    100,
		MaxToolPatterns:          50,
		MaxContentLength:         safety.DefaultMaxLength,
		MaxTotalStorageMB:        500,
		MaxMemoriesInContext:     20,
		MaxContextChars:          8000,
	}
}

// Default returns an in-memory configuration with stock values and the given
// storage path. It performs no I/O; tests and embedders use it directly.
func Default(storagePath string) *Config {
	return &Config{
		StoragePath: storagePath,
		Backend:     BackendSQLite,
		DefaultUser: DefaultUserName,
		Retention:   DefaultRetention(),
		Limits:      DefaultLimits(),
		Safety:      safety.DefaultSettings(),
		Log:         Log{Format: "text"},
	}
}

// Validate reports configuration choices that work but are probably
// mistakes.
func (c *Config) Validate() []string {
	var warnings []string

	if c.Limits.MaxContentLength > maxSaneContent {
		warnings = append(warnings, fmt.Sprintf("limits.max_content_length is very high (%d); this may cause performance issues", c.Limits.MaxContentLength))
	}
	if c.Limits.MaxContextChars > maxSaneContextSize {
		warnings = append(warnings, fmt.Sprintf("limits.max_context_chars is very high (%d); this may exceed model context windows", c.Limits.MaxContextChars))
	}
	if !c.Safety.FilterSensitiveData {
		warnings = append(warnings, "sensitive data filtering is disabled; secrets may be stored in memory")
	}
	if !c.Safety.EscapeControlSequences {
		warnings = append(warnings, "control sequence escaping is disabled; stored memories may carry prompt injections")
	}
	if c.Backend != BackendSQLite {
		warnings = append(warnings, fmt.Sprintf("unsupported backend %q; only %q is available", c.Backend, BackendSQLite))
	}

	if c.StoragePath != "" {
		dir := filepath.Dir(c.StoragePath)
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			warnings = append(warnings, fmt.Sprintf("storage directory is not accessible: %s", dir))
		}
	}

	return warnings
}
