package claude

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"

	"go.uber.org/zap"
)

// EventHandler receives each parsed event of a session.
type EventHandler func(Event)

// Executor runs a single prompt through the Claude CLI.
type Executor interface {
	// ExecuteWithResult runs prompt, passes every event to handler and
	// returns the process exit code. model overrides the CLI default when
	// non-empty. A non-nil error means the session could not be run at all.
	ExecuteWithResult(ctx context.Context, prompt string, handler EventHandler, model string) (int, error)
}

// ExecutorConfig configures a [DefaultExecutor].
type ExecutorConfig struct {
	// BinaryPath is the Claude CLI binary. Default: "claude".
	BinaryPath string

	// OutputFormat is passed to --output-format. Default: "stream-json".
	OutputFormat string
}

// DefaultExecutor implements [Executor] by spawning the Claude CLI.
type DefaultExecutor struct {
	config ExecutorConfig
	parser Parser
	logger *zap.Logger
}

// NewExecutor creates a [DefaultExecutor]. A nil logger discards diagnostics.
func NewExecutor(config ExecutorConfig, logger *zap.Logger) *DefaultExecutor {
	if config.BinaryPath == "" {
		config.BinaryPath = "claude"
	}
	if config.OutputFormat == "" {
		config.OutputFormat = "stream-json"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DefaultExecutor{
		config: config,
		parser: NewParser(),
		logger: logger,
	}
}

// ExecuteWithResult spawns the CLI in print mode and streams its output
// through handler. Stderr is attached to the returned error when the process
// cannot be started or is killed by ctx.
func (e *DefaultExecutor) ExecuteWithResult(ctx context.Context, prompt string, handler EventHandler, model string) (int, error) {
	args := []string{"--print", prompt, "--output-format", e.config.OutputFormat}
	if e.config.OutputFormat == "stream-json" {
		args = append(args, "--verbose")
	}
	if model != "" {
		args = append(args, "--model", model)
	}

	cmd := exec.CommandContext(ctx, e.config.BinaryPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return -1, fmt.Errorf("failed to open claude stdout: %w", err)
	}

	e.logger.Debug("starting claude session",
		zap.String("binary", e.config.BinaryPath),
		zap.String("model", model),
		zap.Int("prompt_bytes", len(prompt)),
	)
	if err := cmd.Start(); err != nil {
		return -1, fmt.Errorf("failed to start claude: %w", err)
	}

	for event := range e.parser.Parse(stdout) {
		if handler != nil {
			handler(event)
		}
	}

	err = cmd.Wait()
	if ctx.Err() != nil {
		return -1, ctx.Err()
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			e.logger.Debug("claude exited with error",
				zap.Int("exit_code", exitErr.ExitCode()),
				zap.String("stderr", stderr.String()),
			)
			return exitErr.ExitCode(), nil
		}
		return -1, fmt.Errorf("claude failed: %w: %s", err, stderr.String())
	}
	return 0, nil
}

// MockExecutor implements [Executor] for testing.
//
// Events are delivered to the handler in order, then ExitCode and Error are
// returned. Every prompt is recorded in RecordedPrompts and every model in
// RecordedModels.
type MockExecutor struct {
	Events   []Event
	ExitCode int
	Error    error

	RecordedPrompts []string
	RecordedModels  []string
}

// ExecuteWithResult replays the configured events.
func (m *MockExecutor) ExecuteWithResult(ctx context.Context, prompt string, handler EventHandler, model string) (int, error) {
	m.RecordedPrompts = append(m.RecordedPrompts, prompt)
	m.RecordedModels = append(m.RecordedModels, model)
	if m.Error != nil {
		return -1, m.Error
	}
	for _, event := range m.Events {
		if handler != nil {
			handler(event)
		}
	}
	return m.ExitCode, nil
}
