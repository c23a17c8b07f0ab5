package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"

	"github.com/rcliao/recall/internal/safety"
)

// EnvPrefix prefixes every environment variable the loader reads.
const EnvPrefix = "RECALL"

// definition mirrors the YAML file layout.
type definition struct {
	StoragePath string          `mapstructure:"storage_path"`
	Backend     string          `mapstructure:"backend"`
	DefaultUser string          `mapstructure:"default_user"`
	Retention   retentionDef    `mapstructure:"retention"`
	Limits      Limits          `mapstructure:"limits"`
	Safety      safety.Settings `mapstructure:"safety"`
	Log         Log             `mapstructure:"log"`
}

type retentionDef struct {
	Conversation      string `mapstructure:"conversation"`
	UserPreference    string `mapstructure:"user_preference"`
	ProjectContext    string `mapstructure:"project_context"`
	TaskResult        string `mapstructure:"task_result"`
	LearnedCorrection string `mapstructure:"learned_correction"`
	ToolPattern       string `mapstructure:"tool_pattern"`
}

// Loader reads and merges configuration from its sources.
type Loader struct {
	v           *viper.Viper
	configFile  string
	storagePath string
	defaultUser string
	warnings    []string
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithConfigFile reads configuration from path instead of the XDG location.
func WithConfigFile(path string) LoaderOption {
	return func(l *Loader) {
		l.configFile = path
	}
}

// WithStoragePath overrides every other source of the database path.
func WithStoragePath(path string) LoaderOption {
	return func(l *Loader) {
		l.storagePath = path
	}
}

// WithDefaultUser overrides the configured default user name.
func WithDefaultUser(name string) LoaderOption {
	return func(l *Loader) {
		l.defaultUser = name
	}
}

// Load builds a Config from explicit options, RECALL_* environment
// variables, the config file and defaults, in that order of precedence.
func Load(opts ...LoaderOption) (*Config, error) {
	l := &Loader{v: viper.New()}
	for _, opt := range opts {
		opt(l)
	}
	return l.Load()
}

// Load reads the configuration.
func (l *Loader) Load() (*Config, error) {
	if l.configFile != "" {
		if _, err := os.Stat(l.configFile); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}
	l.configureViper()
	l.bindEnvironmentVariables()
	l.setViperDefaultValues()

	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var def definition
	if err := l.v.Unmarshal(&def); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg, err := l.buildConfig(def)
	if err != nil {
		return nil, fmt.Errorf("failed to build config: %w", err)
	}
	cfg.ConfigFileUsed = l.v.ConfigFileUsed()
	cfg.Warnings = append(l.warnings, cfg.Validate()...)
	return cfg, nil
}

func (l *Loader) configureViper() {
	if l.configFile == "" {
		l.v.AddConfigPath(filepath.Join(xdg.ConfigHome, defaultAppDir))
		l.v.SetConfigName("config")
	} else {
		l.v.SetConfigFile(l.configFile)
	}
	l.v.SetConfigType("yaml")
	l.v.SetEnvPrefix(EnvPrefix)
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	l.v.AutomaticEnv()
}

// envBindings maps config keys to environment variables whose names do not
// follow the automatic key mapping.
var envBindings = []struct {
	key string
	env string
}{
	{key: "storage_path", env: "MEMORY_PATH"},
	{key: "backend", env: "MEMORY_BACKEND"},
	{key: "default_user", env: "DEFAULT_USER"},
	{key: "log.debug", env: "DEBUG"},
}

func (l *Loader) bindEnvironmentVariables() {
	for _, b := range envBindings {
		_ = l.v.BindEnv(b.key, EnvPrefix+"_"+b.env)
	}
}

func (l *Loader) setViperDefaultValues() {
	l.v.SetDefault("storage_path", "")
	l.v.SetDefault("backend", BackendSQLite)
	l.v.SetDefault("default_user", DefaultUserName)

	// Retention
	l.v.SetDefault("retention.conversation", "7d")
	l.v.SetDefault("retention.user_preference", "90d")
	l.v.SetDefault("retention.project_context", "30d")
	l.v.SetDefault("retention.task_result", "14d")
	l.v.SetDefault("retention.learned_correction", "180d")
	l.v.SetDefault("retention.tool_pattern", "60d")

	// Limits
	limits := DefaultLimits()
	l.v.SetDefault("limits.max_conversations_per_user", limits.MaxConversationsPerUser)
	l.v.SetDefault("limits.max_preferences_per_user", limits.MaxPreferencesPerUser)
	l.v.SetDefault("limits.max_project_contexts", limits.MaxProjectContexts)
	l.v.SetDefault("limits.max_task_results_per_project", limits.MaxTaskResultsPerProject)
	l.v.SetDefault("limits.max_corrections_per_user", limits.MaxCorrectionsPerUser)
	l.v.SetDefault("limits.max_tool_patterns", limits.MaxToolPatterns)
	l.v.SetDefault("limits.max_content_length", limits.MaxContentLength)
	l.v.SetDefault("limits.max_total_storage_mb", limits.MaxTotalStorageMB)
	l.v.SetDefault("limits.max_memories_in_context", limits.MaxMemoriesInContext)
	l.v.SetDefault("limits.max_context_chars", limits.MaxContextChars)

	// Safety
	s := safety.DefaultSettings()
	l.v.SetDefault("safety.filter_sensitive_data", s.FilterSensitiveData)
	l.v.SetDefault("safety.sensitive_patterns", s.SensitivePatterns)
	l.v.SetDefault("safety.escape_control_sequences", s.EscapeControlSequences)
	l.v.SetDefault("safety.blocked_sequences", s.BlockedSequences)
	l.v.SetDefault("safety.validate_file_paths", s.ValidateFilePaths)
	l.v.SetDefault("safety.denied_path_globs", []string{})
	l.v.SetDefault("safety.max_content_length", s.MaxContentLength)

	// Logging
	l.v.SetDefault("log.debug", false)
	l.v.SetDefault("log.format", "text")
}

func (l *Loader) buildConfig(def definition) (*Config, error) {
	cfg := &Config{
		Backend:     def.Backend,
		DefaultUser: def.DefaultUser,
		Limits:      def.Limits,
		Safety:      def.Safety,
		Log:         def.Log,
	}
	if l.defaultUser != "" {
		cfg.DefaultUser = l.defaultUser
	}
	if cfg.DefaultUser == "" {
		cfg.DefaultUser = DefaultUserName
	}

	ttls := []struct {
		name   string
		value  string
		target *time.Duration
	}{
		{"conversation", def.Retention.Conversation, &cfg.Retention.Conversation},
		{"user_preference", def.Retention.UserPreference, &cfg.Retention.UserPreference},
		{"project_context", def.Retention.ProjectContext, &cfg.Retention.ProjectContext},
		{"task_result", def.Retention.TaskResult, &cfg.Retention.TaskResult},
		{"learned_correction", def.Retention.LearnedCorrection, &cfg.Retention.LearnedCorrection},
		{"tool_pattern", def.Retention.ToolPattern, &cfg.Retention.ToolPattern},
	}
	for _, ttl := range ttls {
		d, err := ParseTTL(ttl.value)
		if err != nil {
			return nil, fmt.Errorf("retention.%s: %w", ttl.name, err)
		}
		*ttl.target = d
	}

	explicit := l.storagePath
	if explicit == "" {
		explicit = def.StoragePath
	}
	path, warnings, err := ResolveStoragePath(explicit)
	if err != nil {
		return nil, err
	}
	l.warnings = append(l.warnings, warnings...)
	cfg.StoragePath = path

	return cfg, nil
}

// ResolveStoragePath returns the absolute database path and creates its
// parent directory. An empty explicit path resolves to the per-user XDG data
// directory, falling back to ./data when that is not usable.
func ResolveStoragePath(explicit string) (string, []string, error) {
	if explicit != "" {
		path, err := expandPath(explicit)
		if err != nil {
			return "", nil, fmt.Errorf("resolve storage path %q: %w", explicit, err)
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return "", nil, fmt.Errorf("create storage dir: %w", err)
		}
		return path, nil, nil
	}

	path, err := xdg.DataFile(filepath.Join(defaultAppDir, defaultDBFile))
	if err == nil {
		return path, nil, nil
	}

	warning := fmt.Sprintf("could not access user data directory (%v), falling back to project directory", err)
	cwd, cwdErr := os.Getwd()
	if cwdErr != nil {
		return "", nil, fmt.Errorf("resolve fallback storage path: %w", cwdErr)
	}
	dir := filepath.Join(cwd, "data")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", nil, fmt.Errorf("create storage dir: %w", err)
	}
	return filepath.Join(dir, defaultDBFile), []string{warning}, nil
}

func expandPath(p string) (string, error) {
	if p == "~" || strings.HasPrefix(p, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		p = filepath.Join(home, strings.TrimPrefix(p, "~"))
	}
	return filepath.Abs(p)
}

var ttlRegex = regexp.MustCompile(`^(\d+)([dhms])$`)

// ParseTTL parses a TTL like "7d", "24h", "30m" or "60s". Go duration
// strings such as "1h30m" are accepted too.
func ParseTTL(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	m := ttlRegex.FindStringSubmatch(s)
	if m == nil {
		d, err := time.ParseDuration(s)
		if err != nil || d <= 0 {
			return 0, fmt.Errorf("invalid ttl %q (use e.g. 7d, 24h, 30m, 60s)", s)
		}
		return d, nil
	}
	n, _ := strconv.Atoi(m[1])
	if n <= 0 {
		return 0, fmt.Errorf("invalid ttl %q: must be positive", s)
	}
	switch m[2] {
	case "d":
		return time.Duration(n) * 24 * time.Hour, nil
	case "h":
		return time.Duration(n) * time.Hour, nil
	case "m":
		return time.Duration(n) * time.Minute, nil
	case "s":
		return time.Duration(n) * time.Second, nil
	}
	return 0, fmt.Errorf("unknown unit %q", m[2])
}
