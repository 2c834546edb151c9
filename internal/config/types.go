// Package config provides configuration loading and management for sprintgate.
//
// Configuration is loaded using Viper, supporting YAML config files and environment
// variable overrides. The defaults run a review against the file-based work item
// document with the local heuristic reviewers, so no configuration is needed to
// try the tool.
//
// Key types:
//   - [Config] is the root configuration container with all settings
//   - [Loader] handles Viper-based configuration loading
//   - [WorkTrackingConfig] selects and configures the work item backend
//   - [ReviewConfig] holds directories, strategy and thresholds for the review
//   - [AnalysisConfig] configures the direct-call analysis provider
//
// Configuration priority (highest to lowest):
//  1. Environment variables (SPRINTGATE_ prefix)
//  2. Config file specified by SPRINTGATE_CONFIG_PATH
//  3. User config directory (platform-standard):
//     - Linux: ~/.config/sprintgate/config.yaml
//     - macOS: ~/Library/Application Support/sprintgate/config.yaml
//     - Windows: %APPDATA%\sprintgate\config.yaml
//  4. ./.claude/sprintgate.yaml (project-local)
//  5. [DefaultConfig] defaults
package config

import (
	"sort"
	"strings"
	"time"
)

// Review strategies for the multi-reviewer step.
const (
	StrategyHeuristic = "heuristic"
	StrategyDirect    = "direct"
	StrategyHandoff   = "handoff"
)

// Analysis providers for the direct strategy.
const (
	ProviderAnthropic = "anthropic"
	ProviderClaudeCLI = "claude-cli"
)

// Config represents the root configuration structure.
type Config struct {
	// WorkTracking selects the work item backend.
	WorkTracking WorkTrackingConfig `mapstructure:"work_tracking"`

	// Review contains the review pipeline settings.
	Review ReviewConfig `mapstructure:"review"`

	// Analysis configures the provider used by the direct strategy.
	Analysis AnalysisConfig `mapstructure:"analysis"`

	// Claude contains Claude CLI binary configuration.
	Claude ClaudeConfig `mapstructure:"claude"`

	// Logging configures the structured diagnostic logger.
	Logging LoggingConfig `mapstructure:"logging"`

	// Output contains terminal output formatting configuration.
	Output OutputConfig `mapstructure:"output"`
}

// WorkTrackingConfig selects and configures the work item backend.
type WorkTrackingConfig struct {
	// Platform is "file-based" (default), "github" or "none".
	Platform string `mapstructure:"platform"`

	// FilePath is the YAML work item document for the file-based platform.
	// Default: .claude/work-items/work-items.yaml
	FilePath string `mapstructure:"file_path"`

	// GitHub configures the github platform.
	GitHub GitHubConfig `mapstructure:"github"`

	// WorkItemTypes maps logical type names to tracker type names.
	// The "epic" entry names the type that closure acts on.
	WorkItemTypes map[string]string `mapstructure:"work_item_types"`

	// DoneStates lists the states that count as completed.
	DoneStates []string `mapstructure:"done_states"`

	// ClosedState is the state written to epics during closure.
	ClosedState string `mapstructure:"closed_state"`
}

// EpicType returns the tracker type name used for epics.
func (w WorkTrackingConfig) EpicType() string {
	if t, ok := w.WorkItemTypes["epic"]; ok && t != "" {
		return t
	}
	return "Epic"
}

// TypeLabels returns the configured tracker type names, sorted by logical name
// so label matching is deterministic.
func (w WorkTrackingConfig) TypeLabels() []string {
	keys := make([]string, 0, len(w.WorkItemTypes))
	for k := range w.WorkItemTypes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	labels := make([]string, 0, len(keys))
	for _, k := range keys {
		labels = append(labels, w.WorkItemTypes[k])
	}
	return labels
}

// IsDone reports whether state is one of the configured done states.
// States compare case-insensitively, as trackers disagree on casing.
func (w WorkTrackingConfig) IsDone(state string) bool {
	for _, s := range w.DoneStates {
		if strings.EqualFold(s, state) {
			return true
		}
	}
	return false
}

// IsClosed reports whether state is the configured closed state.
func (w WorkTrackingConfig) IsClosed(state string) bool {
	return w.ClosedState != "" && strings.EqualFold(w.ClosedState, state)
}

// ReportedDoneState is the state a tracker without named states (GitHub's
// open/closed flag) reports for finished items. It is always one of the done
// states so completed work counts as completed.
func (w WorkTrackingConfig) ReportedDoneState() string {
	if len(w.DoneStates) > 0 {
		return w.DoneStates[0]
	}
	return w.ClosedState
}

// GitHubConfig configures the GitHub Issues backend.
type GitHubConfig struct {
	Owner string `mapstructure:"owner"`
	Repo  string `mapstructure:"repo"`

	// Token is a personal access token. Prefer SPRINTGATE_GITHUB_TOKEN over
	// writing it into a config file.
	Token string `mapstructure:"token"`

	// BaseURL points at a GitHub Enterprise API. Empty means github.com.
	BaseURL string `mapstructure:"base_url"`
}

// ReviewConfig holds the review pipeline settings.
type ReviewConfig struct {
	// Strategy is the multi-reviewer strategy: "heuristic" (default),
	// "direct" or "handoff".
	Strategy string `mapstructure:"strategy"`

	// StateDir holds the handoff request and response artifacts.
	StateDir string `mapstructure:"state_dir"`

	// AuditDir receives one audit record per run.
	AuditDir string `mapstructure:"audit_dir"`

	// ReportsDir receives the closure report.
	ReportsDir string `mapstructure:"reports_dir"`

	// TestReportsDir is scanned for *.md test reports during verification.
	TestReportsDir string `mapstructure:"test_reports_dir"`

	// Handoff bounds the file-drop analysis wait.
	Handoff HandoffConfig `mapstructure:"handoff"`

	// Thresholds drive the local heuristic reviewers.
	Thresholds ThresholdConfig `mapstructure:"thresholds"`
}

// HandoffConfig bounds the handoff strategy's poll loop.
type HandoffConfig struct {
	// Timeout is the hard limit on waiting for a response. Default: 5m.
	Timeout time.Duration `mapstructure:"timeout"`

	// PollInterval is the delay between checks for the response. Default: 2s.
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

// ThresholdConfig holds completion-rate thresholds, in percent.
type ThresholdConfig struct {
	// QualityMin is the completion rate at which QA approves. Default: 80.
	QualityMin float64 `mapstructure:"quality_min"`

	// EngineeringMin is the completion rate at which engineering approves
	// rather than returning a conditional. Default: 90.
	EngineeringMin float64 `mapstructure:"engineering_min"`
}

// AnalysisConfig configures the direct-call analysis provider.
type AnalysisConfig struct {
	// Provider is "anthropic" (API via langchaingo) or "claude-cli".
	Provider string `mapstructure:"provider"`

	// Model is the model name passed to the provider. Empty uses the
	// provider default.
	Model string `mapstructure:"model"`

	// APIKey is the Anthropic API key. Falls back to ANTHROPIC_API_KEY.
	APIKey string `mapstructure:"api_key"`
}

// ClaudeConfig contains Claude CLI configuration.
type ClaudeConfig struct {
	// OutputFormat is passed to Claude CLI. Should be "stream-json".
	OutputFormat string `mapstructure:"output_format"`

	// BinaryPath is the path to the Claude CLI binary.
	// Default: "claude" (assumes Claude is in PATH).
	BinaryPath string `mapstructure:"binary_path"`
}

// LoggingConfig configures the diagnostic logger.
type LoggingConfig struct {
	// Level is debug, info, warn or error. Default: warn.
	Level string `mapstructure:"level"`

	// Format is "console" (default) or "json".
	Format string `mapstructure:"format"`
}

// OutputConfig contains terminal output formatting configuration.
type OutputConfig struct {
	// TruncateLength is the maximum length of detail lines in step output.
	// Default: 80
	TruncateLength int `mapstructure:"truncate_length"`
}

// DefaultConfig returns a new [Config] with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		WorkTracking: WorkTrackingConfig{
			Platform: "file-based",
			FilePath: ".claude/work-items/work-items.yaml",
			WorkItemTypes: map[string]string{
				"epic":    "Epic",
				"feature": "Feature",
				"task":    "Task",
				"bug":     "Bug",
			},
			DoneStates:  []string{"Done"},
			ClosedState: "Done",
		},
		Review: ReviewConfig{
			Strategy:       StrategyHeuristic,
			StateDir:       ".claude/workflow-state",
			AuditDir:       ".claude/workflow-state",
			ReportsDir:     ".claude/reports/deployments",
			TestReportsDir: ".claude/test-reports",
			Handoff: HandoffConfig{
				Timeout:      5 * time.Minute,
				PollInterval: 2 * time.Second,
			},
			Thresholds: ThresholdConfig{
				QualityMin:     80,
				EngineeringMin: 90,
			},
		},
		Analysis: AnalysisConfig{
			Provider: ProviderAnthropic,
		},
		Claude: ClaudeConfig{
			OutputFormat: "stream-json",
			BinaryPath:   "claude",
		},
		Logging: LoggingConfig{
			Level:  "warn",
			Format: "console",
		},
		Output: OutputConfig{
			TruncateLength: 80,
		},
	}
}
