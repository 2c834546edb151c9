package analysis

import (
	"fmt"

	"go.uber.org/zap"

	"sprintgate/internal/claude"
	"sprintgate/internal/clock"
	"sprintgate/internal/config"
)

// NewProvider builds the provider named by cfg.Analysis.Provider.
func NewProvider(cfg *config.Config, logger *zap.Logger) (Provider, error) {
	switch cfg.Analysis.Provider {
	case config.ProviderAnthropic, "":
		provider, err := NewAnthropicProvider(cfg.Analysis.APIKey, cfg.Analysis.Model)
		if err != nil {
			return nil, err
		}
		return provider, nil

	case config.ProviderClaudeCLI:
		executor := claude.NewExecutor(claude.ExecutorConfig{
			BinaryPath:   cfg.Claude.BinaryPath,
			OutputFormat: cfg.Claude.OutputFormat,
		}, logger)
		return NewClaudeCLIProvider(executor, cfg.Analysis.Model), nil

	default:
		return nil, fmt.Errorf("unknown analysis provider: %s", cfg.Analysis.Provider)
	}
}

// NewStrategy builds the review strategy named by strategy, falling back to
// cfg.Review.Strategy when strategy is empty.
//
// A direct strategy whose provider cannot be built is still returned; it
// records unavailable reviews instead of failing the run.
func NewStrategy(cfg *config.Config, strategy string, clk clock.Clock, logger *zap.Logger) (Strategy, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if strategy == "" {
		strategy = cfg.Review.Strategy
	}
	heuristic := NewHeuristic(cfg.Review.Thresholds)

	switch strategy {
	case config.StrategyHeuristic, "":
		return heuristic, nil

	case config.StrategyDirect:
		provider, err := NewProvider(cfg, logger)
		if err != nil {
			logger.Warn("analysis provider unavailable", zap.Error(err))
			direct := NewDirect(nil, logger)
			direct.reason = fmt.Errorf("%w: %v", ErrNoProvider, err)
			return direct, nil
		}
		return NewDirect(provider, logger), nil

	case config.StrategyHandoff:
		return NewHandoff(HandoffOptions{
			Dir:          cfg.Review.StateDir,
			Timeout:      cfg.Review.Handoff.Timeout,
			PollInterval: cfg.Review.Handoff.PollInterval,
		}, heuristic, clk, logger), nil

	default:
		return nil, fmt.Errorf("unknown review strategy: %s", strategy)
	}
}
