package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// appName names the user config directory and the env prefix.
const appName = "sprintgate"

// ProjectConfigPath is the project-local config file, relative to the
// working directory.
const ProjectConfigPath = ".claude/sprintgate.yaml"

// Loader handles Viper-based configuration loading.
//
// Use [NewLoader] to create an instance, then [Loader.Load] for the standard
// search order or [Loader.LoadFromFile] for an explicit file.
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a [Loader] with defaults and environment bindings applied.
func NewLoader() *Loader {
	v := viper.New()
	v.SetEnvPrefix("SPRINTGATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v, DefaultConfig())

	// Short aliases for the settings people most often override from the shell.
	_ = v.BindEnv("claude.binary_path", "SPRINTGATE_CLAUDE_PATH")
	_ = v.BindEnv("work_tracking.github.token", "SPRINTGATE_GITHUB_TOKEN", "GITHUB_TOKEN")
	_ = v.BindEnv("analysis.api_key", "SPRINTGATE_ANTHROPIC_API_KEY", "ANTHROPIC_API_KEY")
	_ = v.BindEnv("review.strategy", "SPRINTGATE_STRATEGY")

	return &Loader{v: v}
}

// Load reads configuration using the standard search order documented on the
// package. A missing config file is not an error.
func (l *Loader) Load() (*Config, error) {
	if path := os.Getenv("SPRINTGATE_CONFIG_PATH"); path != "" {
		return l.LoadFromFile(path)
	}

	if path, err := DefaultConfigPath(); err == nil {
		if _, statErr := os.Stat(path); statErr == nil {
			return l.LoadFromFile(path)
		}
	}

	if _, err := os.Stat(ProjectConfigPath); err == nil {
		return l.LoadFromFile(ProjectConfigPath)
	}

	return l.unmarshal()
}

// LoadFromFile reads configuration from path. The format follows the file
// extension (yaml, json, toml).
func (l *Loader) LoadFromFile(path string) (*Config, error) {
	l.v.SetConfigFile(path)
	if err := l.v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}
	return l.unmarshal()
}

func (l *Loader) unmarshal() (*Config, error) {
	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that would otherwise fail deep inside a run.
func (c *Config) Validate() error {
	switch c.Review.Strategy {
	case StrategyHeuristic, StrategyDirect, StrategyHandoff:
	default:
		return fmt.Errorf("invalid review strategy %q (want heuristic, direct or handoff)", c.Review.Strategy)
	}
	switch c.Analysis.Provider {
	case ProviderAnthropic, ProviderClaudeCLI:
	default:
		return fmt.Errorf("invalid analysis provider %q (want anthropic or claude-cli)", c.Analysis.Provider)
	}
	if c.Review.Handoff.Timeout <= 0 {
		return fmt.Errorf("review.handoff.timeout must be positive")
	}
	if c.Review.Handoff.PollInterval <= 0 {
		return fmt.Errorf("review.handoff.poll_interval must be positive")
	}
	if c.Review.AuditDir == "" {
		return fmt.Errorf("review.audit_dir must be set")
	}
	return nil
}

// ConfigDir returns the platform-standard config directory for sprintgate.
func ConfigDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, appName), nil
}

// DefaultConfigPath returns the user-level config file path.
func DefaultConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("work_tracking.platform", d.WorkTracking.Platform)
	v.SetDefault("work_tracking.file_path", d.WorkTracking.FilePath)
	v.SetDefault("work_tracking.github.owner", d.WorkTracking.GitHub.Owner)
	v.SetDefault("work_tracking.github.repo", d.WorkTracking.GitHub.Repo)
	v.SetDefault("work_tracking.github.token", d.WorkTracking.GitHub.Token)
	v.SetDefault("work_tracking.github.base_url", d.WorkTracking.GitHub.BaseURL)
	v.SetDefault("work_tracking.work_item_types", d.WorkTracking.WorkItemTypes)
	v.SetDefault("work_tracking.done_states", d.WorkTracking.DoneStates)
	v.SetDefault("work_tracking.closed_state", d.WorkTracking.ClosedState)

	v.SetDefault("review.strategy", d.Review.Strategy)
	v.SetDefault("review.state_dir", d.Review.StateDir)
	v.SetDefault("review.audit_dir", d.Review.AuditDir)
	v.SetDefault("review.reports_dir", d.Review.ReportsDir)
	v.SetDefault("review.test_reports_dir", d.Review.TestReportsDir)
	v.SetDefault("review.handoff.timeout", d.Review.Handoff.Timeout)
	v.SetDefault("review.handoff.poll_interval", d.Review.Handoff.PollInterval)
	v.SetDefault("review.thresholds.quality_min", d.Review.Thresholds.QualityMin)
	v.SetDefault("review.thresholds.engineering_min", d.Review.Thresholds.EngineeringMin)

	v.SetDefault("analysis.provider", d.Analysis.Provider)
	v.SetDefault("analysis.model", d.Analysis.Model)
	v.SetDefault("analysis.api_key", d.Analysis.APIKey)

	v.SetDefault("claude.output_format", d.Claude.OutputFormat)
	v.SetDefault("claude.binary_path", d.Claude.BinaryPath)

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)

	v.SetDefault("output.truncate_length", d.Output.TruncateLength)
}
