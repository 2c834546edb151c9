package analysis

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"sprintgate/internal/claude"
	"sprintgate/internal/clock"
	"sprintgate/internal/config"
	"sprintgate/internal/evidence"
)

func snapshotWithRate(rate float64) Snapshot {
	return Snapshot{
		Subject: "Sprint 7",
		Metrics: evidence.Metrics{TotalItems: 10, CompletedItems: int(rate / 10), CompletionRate: rate},
	}
}

func TestHeuristic_Review(t *testing.T) {
	tests := []struct {
		name            string
		rate            float64
		wantQA          string
		wantEngineering string
	}{
		{name: "complete sprint", rate: 100, wantQA: "APPROVE", wantEngineering: "APPROVE"},
		{name: "at engineering threshold", rate: 90, wantQA: "APPROVE", wantEngineering: "APPROVE"},
		{name: "between thresholds", rate: 85, wantQA: "APPROVE", wantEngineering: "CONDITIONAL"},
		{name: "at quality threshold", rate: 80, wantQA: "APPROVE", wantEngineering: "CONDITIONAL"},
		{name: "half done", rate: 50, wantQA: "BLOCK", wantEngineering: "CONDITIONAL"},
		{name: "nothing done", rate: 0, wantQA: "BLOCK", wantEngineering: "CONDITIONAL"},
	}

	h := NewHeuristic(config.DefaultConfig().Review.Thresholds)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reviews, err := h.Review(context.Background(), snapshotWithRate(tt.rate))

			require.NoError(t, err)
			assert.Equal(t, tt.wantQA, reviews.QA.Recommendation)
			assert.Equal(t, "APPROVE", reviews.Security.Recommendation)
			assert.Equal(t, tt.wantEngineering, reviews.Engineering.Recommendation)
			assert.Equal(t, evidence.SourceHeuristic, reviews.Source)
			assert.Nil(t, reviews.Degraded)
		})
	}
}

func TestHeuristic_IsPure(t *testing.T) {
	h := NewHeuristic(config.DefaultConfig().Review.Thresholds)
	assert.Equal(t, h.Evaluate(72.5), h.Evaluate(72.5))
	assert.Equal(t, "72.5% completion rate", h.Evaluate(72.5).QA.Detail)
}

func TestSynthesize(t *testing.T) {
	approve := evidence.Review{Recommendation: "APPROVE"}
	block := evidence.Review{Recommendation: "BLOCK"}
	conditional := evidence.Review{Recommendation: "CONDITIONAL"}

	tests := []struct {
		name    string
		reviews evidence.Reviews
		want    string
	}{
		{name: "all approve", reviews: evidence.Reviews{QA: approve, Security: approve, Engineering: approve}, want: "APPROVE"},
		{name: "lowercase approve", reviews: evidence.Reviews{QA: evidence.Review{Recommendation: "approve"}, Security: approve, Engineering: approve}, want: "APPROVE"},
		{name: "qa dissents", reviews: evidence.Reviews{QA: block, Security: approve, Engineering: approve}, want: "CONDITIONAL"},
		{name: "security dissents", reviews: evidence.Reviews{QA: approve, Security: block, Engineering: approve}, want: "CONDITIONAL"},
		{name: "engineering dissents", reviews: evidence.Reviews{QA: approve, Security: approve, Engineering: conditional}, want: "CONDITIONAL"},
		{name: "all dissent", reviews: evidence.Reviews{QA: block, Security: block, Engineering: conditional}, want: "CONDITIONAL"},
		{name: "unavailable", reviews: Unavailable(evidence.SourceDirect, errors.New("down")), want: "CONDITIONAL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Synthesize(tt.reviews, 75)
			assert.Equal(t, tt.want, got.Recommendation)
			assert.Equal(t, 75.0, got.CompletionRate)
			assert.Equal(t, got, Synthesize(tt.reviews, 75))
		})
	}
}

func TestSynthesize_RationaleNamesDissenters(t *testing.T) {
	got := Synthesize(evidence.Reviews{
		QA:          evidence.Review{Recommendation: "BLOCK"},
		Security:    evidence.Review{Recommendation: "APPROVE"},
		Engineering: evidence.Review{Recommendation: "APPROVE"},
	}, 50)

	assert.Contains(t, got.Rationale, "qa: BLOCK")
	assert.NotContains(t, got.Rationale, "security")
}

func TestParseReviews(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		check   func(t *testing.T, r evidence.Reviews)
		wantErr string
	}{
		{
			name:  "detail keys",
			input: `{"qa":{"recommendation":"APPROVE","detail":"ok"},"security":{"recommendation":"APPROVE","detail":"clean"},"engineering":{"recommendation":"CONDITIONAL","detail":"debt"}}`,
			check: func(t *testing.T, r evidence.Reviews) {
				assert.Equal(t, "ok", r.QA.Detail)
				assert.Equal(t, "CONDITIONAL", r.Engineering.Recommendation)
			},
		},
		{
			name:  "legacy keys and lowercase tokens",
			input: `{"qa":{"recommendation":"approve","notes":"All tests passing"},"security":{"recommendation":"APPROVE","score":"5/5"},"engineering":{"recommendation":" Approve ","readiness":"9.5/10"}}`,
			check: func(t *testing.T, r evidence.Reviews) {
				assert.Equal(t, "APPROVE", r.QA.Recommendation)
				assert.Equal(t, "All tests passing", r.QA.Detail)
				assert.Equal(t, "5/5", r.Security.Detail)
				assert.Equal(t, "APPROVE", r.Engineering.Recommendation)
				assert.Equal(t, "9.5/10", r.Engineering.Detail)
			},
		},
		{
			name:    "missing role",
			input:   `{"qa":{"recommendation":"APPROVE"},"security":{"recommendation":"APPROVE"}}`,
			wantErr: "missing engineering review",
		},
		{
			name:    "empty recommendation",
			input:   `{"qa":{"recommendation":""},"security":{"recommendation":"APPROVE"},"engineering":{"recommendation":"APPROVE"}}`,
			wantErr: "qa review has no recommendation",
		},
		{
			name:    "not json",
			input:   `APPROVE everything`,
			wantErr: "invalid review response",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reviews, err := ParseReviews([]byte(tt.input))
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidResponse)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			tt.check(t, reviews)
		})
	}
}

func TestParseAnswer_ExtractsFencedJSON(t *testing.T) {
	answer := "Here is my review:\n```json\n" +
		`{"qa":{"recommendation":"APPROVE"},"security":{"recommendation":"APPROVE"},"engineering":{"recommendation":"APPROVE"}}` +
		"\n```\nLet me know if you need more."

	reviews, err := parseAnswer(answer)

	require.NoError(t, err)
	assert.Equal(t, "APPROVE", reviews.Security.Recommendation)

	_, err = parseAnswer("no json here")
	assert.ErrorIs(t, err, ErrInvalidResponse)
}

func TestBuildPrompt(t *testing.T) {
	prompt, err := BuildPrompt(snapshotWithRate(100))

	require.NoError(t, err)
	assert.Contains(t, prompt, Instruction)
	assert.Contains(t, prompt, `"sprint": "Sprint 7"`)
	assert.Contains(t, prompt, `"completion_rate": 100`)
	assert.Contains(t, prompt, `"engineering"`)
}

func TestDirect_Review(t *testing.T) {
	mock := &MockProvider{Reviews: evidence.Reviews{
		QA:          evidence.Review{Recommendation: "APPROVE", Detail: "fine"},
		Security:    evidence.Review{Recommendation: "APPROVE"},
		Engineering: evidence.Review{Recommendation: "APPROVE"},
	}}

	reviews, err := NewDirect(mock, nil).Review(context.Background(), snapshotWithRate(100))

	require.NoError(t, err)
	assert.Equal(t, "fine", reviews.QA.Detail)
	assert.Equal(t, evidence.SourceDirect, reviews.Source)
	require.Len(t, mock.Snapshots, 1)
	assert.Equal(t, "Sprint 7", mock.Snapshots[0].Subject)
}

func TestDirect_ProviderErrorDegrades(t *testing.T) {
	mock := &MockProvider{Err: errors.New("api unreachable")}

	reviews, err := NewDirect(mock, nil).Review(context.Background(), snapshotWithRate(100))

	require.NoError(t, err)
	require.NotNil(t, reviews.Degraded)
	assert.Contains(t, reviews.Degraded.Reason, "api unreachable")
	for _, r := range reviews.All() {
		assert.Equal(t, evidence.RecommendUnavailable, r.Recommendation)
	}
}

func TestDirect_NilProvider(t *testing.T) {
	reviews, err := NewDirect(nil, nil).Review(context.Background(), snapshotWithRate(100))

	require.NoError(t, err)
	require.NotNil(t, reviews.Degraded)
	assert.Equal(t, ErrNoProvider.Error(), reviews.Degraded.Reason)
}

func TestDirect_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	mock := &MockProvider{Err: context.Canceled}

	_, err := NewDirect(mock, nil).Review(ctx, snapshotWithRate(100))

	assert.ErrorIs(t, err, context.Canceled)
}

// fakeModel is a langchaingo model returning a fixed answer.
type fakeModel struct {
	answer  string
	err     error
	prompts []string
}

func (f *fakeModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	for _, m := range messages {
		for _, part := range m.Parts {
			if text, ok := part.(llms.TextContent); ok {
				f.prompts = append(f.prompts, text.Text)
			}
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: f.answer}}}, nil
}

func (f *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, f, prompt, options...)
}

func TestAnthropicProvider_Analyze(t *testing.T) {
	model := &fakeModel{answer: `{"qa":{"recommendation":"APPROVE","detail":"tests green"},"security":{"recommendation":"BLOCK","detail":"secret in repo"},"engineering":{"recommendation":"APPROVE"}}`}
	provider := NewModelProvider(model)

	reviews, err := provider.Analyze(context.Background(), snapshotWithRate(100))

	require.NoError(t, err)
	assert.Equal(t, "BLOCK", reviews.Security.Recommendation)
	assert.Equal(t, "secret in repo", reviews.Security.Detail)
	require.Len(t, model.prompts, 1)
	assert.Contains(t, model.prompts[0], Instruction)
}

func TestAnthropicProvider_Errors(t *testing.T) {
	_, err := NewModelProvider(&fakeModel{err: errors.New("429")}).Analyze(context.Background(), snapshotWithRate(100))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "anthropic analysis failed")

	_, err = NewModelProvider(&fakeModel{answer: "I cannot review this."}).Analyze(context.Background(), snapshotWithRate(100))
	assert.ErrorIs(t, err, ErrInvalidResponse)
}

func TestNewAnthropicProvider_MissingKey(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")

	_, err := NewAnthropicProvider("", "")

	assert.Error(t, err)
}

func TestClaudeCLIProvider_Analyze(t *testing.T) {
	answer := `{"qa":{"recommendation":"APPROVE"},"security":{"recommendation":"APPROVE"},"engineering":{"recommendation":"CONDITIONAL","detail":"flaky e2e"}}`

	tests := []struct {
		name     string
		executor *claude.MockExecutor
		wantErr  string
		wantEng  string
	}{
		{
			name: "answer in result event",
			executor: &claude.MockExecutor{Events: []claude.Event{
				{Type: claude.EventTypeSystem, SessionStarted: true},
				{Type: claude.EventTypeAssistant, Text: "Reviewing..."},
				{Type: claude.EventTypeResult, SessionComplete: true, Result: answer},
			}},
			wantEng: "CONDITIONAL",
		},
		{
			name:     "non-zero exit",
			executor: &claude.MockExecutor{ExitCode: 1},
			wantErr:  "exit code 1",
		},
		{
			name:     "spawn failure",
			executor: &claude.MockExecutor{Error: errors.New("not installed")},
			wantErr:  "claude analysis failed",
		},
		{
			name: "error result",
			executor: &claude.MockExecutor{Events: []claude.Event{
				{Type: claude.EventTypeResult, SessionComplete: true, IsError: true, Result: "quota exceeded"},
			}},
			wantErr: "quota exceeded",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := NewClaudeCLIProvider(tt.executor, "opus")
			reviews, err := provider.Analyze(context.Background(), snapshotWithRate(100))

			require.Len(t, tt.executor.RecordedModels, 1)
			assert.Equal(t, "opus", tt.executor.RecordedModels[0])
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantEng, reviews.Engineering.Recommendation)
			assert.Equal(t, "flaky e2e", reviews.Engineering.Detail)
		})
	}
}

func TestNewStrategy(t *testing.T) {
	cfg := config.DefaultConfig()

	s, err := NewStrategy(cfg, "", clock.Real{}, nil)
	require.NoError(t, err)
	assert.IsType(t, &Heuristic{}, s)

	s, err = NewStrategy(cfg, config.StrategyHandoff, clock.Real{}, nil)
	require.NoError(t, err)
	handoff, ok := s.(*Handoff)
	require.True(t, ok)
	assert.Contains(t, handoff.RequestPath(), RequestFile)

	cfg.Analysis.Provider = config.ProviderClaudeCLI
	s, err = NewStrategy(cfg, config.StrategyDirect, clock.Real{}, nil)
	require.NoError(t, err)
	direct, ok := s.(*Direct)
	require.True(t, ok)
	assert.IsType(t, &ClaudeCLIProvider{}, direct.provider)

	_, err = NewStrategy(cfg, "guess", clock.Real{}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown review strategy")
}

func TestNewStrategy_DirectWithoutCredentialsDegrades(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	cfg := config.DefaultConfig()

	s, err := NewStrategy(cfg, config.StrategyDirect, clock.Real{}, nil)
	require.NoError(t, err)

	reviews, err := s.Review(context.Background(), snapshotWithRate(100))
	require.NoError(t, err)
	require.NotNil(t, reviews.Degraded)
	assert.Contains(t, reviews.Degraded.Reason, ErrNoProvider.Error())
	assert.Equal(t, "CONDITIONAL", Synthesize(reviews, 100).Recommendation)
}
