package analysis

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"

	"sprintgate/internal/claude"
	"sprintgate/internal/evidence"
)

// DefaultAnthropicModel is used when no model is configured.
const DefaultAnthropicModel = "claude-sonnet-4-5"

// AnthropicProvider implements [Provider] against the Anthropic API through
// langchaingo.
type AnthropicProvider struct {
	llm llms.Model
}

// NewAnthropicProvider creates an [AnthropicProvider]. An empty apiKey lets
// langchaingo read ANTHROPIC_API_KEY.
func NewAnthropicProvider(apiKey, model string) (*AnthropicProvider, error) {
	if model == "" {
		model = DefaultAnthropicModel
	}
	opts := []anthropic.Option{anthropic.WithModel(model)}
	if apiKey != "" {
		opts = append(opts, anthropic.WithToken(apiKey))
	}

	llm, err := anthropic.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create anthropic client: %w", err)
	}
	return &AnthropicProvider{llm: llm}, nil
}

// NewModelProvider wraps any langchaingo model as a [Provider].
func NewModelProvider(llm llms.Model) *AnthropicProvider {
	return &AnthropicProvider{llm: llm}
}

// Analyze sends the snapshot as one prompt and parses the JSON answer.
func (p *AnthropicProvider) Analyze(ctx context.Context, snap Snapshot) (evidence.Reviews, error) {
	prompt, err := BuildPrompt(snap)
	if err != nil {
		return evidence.Reviews{}, err
	}

	answer, err := llms.GenerateFromSinglePrompt(ctx, p.llm, prompt,
		llms.WithTemperature(0),
		llms.WithMaxTokens(1024),
	)
	if err != nil {
		return evidence.Reviews{}, fmt.Errorf("anthropic analysis failed: %w", err)
	}
	return parseAnswer(answer)
}

// ClaudeCLIProvider implements [Provider] by running a one-shot Claude CLI
// session.
type ClaudeCLIProvider struct {
	executor claude.Executor
	model    string
}

// NewClaudeCLIProvider creates a [ClaudeCLIProvider].
func NewClaudeCLIProvider(executor claude.Executor, model string) *ClaudeCLIProvider {
	return &ClaudeCLIProvider{executor: executor, model: model}
}

// Analyze runs the prompt through the CLI and parses the session answer.
func (p *ClaudeCLIProvider) Analyze(ctx context.Context, snap Snapshot) (evidence.Reviews, error) {
	prompt, err := BuildPrompt(snap)
	if err != nil {
		return evidence.Reviews{}, err
	}

	var transcript claude.Transcript
	exitCode, err := p.executor.ExecuteWithResult(ctx, prompt, transcript.Handle, p.model)
	if err != nil {
		return evidence.Reviews{}, fmt.Errorf("claude analysis failed: %w", err)
	}
	if exitCode != 0 {
		return evidence.Reviews{}, fmt.Errorf("claude analysis returned exit code %d", exitCode)
	}
	if transcript.Failed() {
		return evidence.Reviews{}, fmt.Errorf("claude analysis reported an error: %s", transcript.Text())
	}
	return parseAnswer(transcript.Text())
}

// MockProvider implements [Provider] for testing.
type MockProvider struct {
	Reviews evidence.Reviews
	Err     error

	// Snapshots records every snapshot passed to Analyze.
	Snapshots []Snapshot
}

// Analyze returns the configured reviews or error.
func (m *MockProvider) Analyze(ctx context.Context, snap Snapshot) (evidence.Reviews, error) {
	m.Snapshots = append(m.Snapshots, snap)
	if m.Err != nil {
		return evidence.Reviews{}, m.Err
	}
	return m.Reviews, nil
}
