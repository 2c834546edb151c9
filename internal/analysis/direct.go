package analysis

import (
	"context"

	"go.uber.org/zap"

	"sprintgate/internal/evidence"
)

// Direct is the strategy that asks a [Provider] once and keeps its answer.
type Direct struct {
	provider Provider
	logger   *zap.Logger

	// reason explains a nil provider.
	reason error
}

// NewDirect creates a [Direct] strategy. A nil provider is allowed and yields
// unavailable reviews.
func NewDirect(provider Provider, logger *zap.Logger) *Direct {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Direct{provider: provider, logger: logger}
}

// Review calls the provider. Provider failures are returned as degraded
// reviews; only context cancellation is returned as an error.
func (d *Direct) Review(ctx context.Context, snap Snapshot) (evidence.Reviews, error) {
	if d.provider == nil {
		reason := d.reason
		if reason == nil {
			reason = ErrNoProvider
		}
		return Unavailable(evidence.SourceDirect, reason), nil
	}

	reviews, err := d.provider.Analyze(ctx, snap)
	if err != nil {
		if ctx.Err() != nil {
			return evidence.Reviews{}, ctx.Err()
		}
		d.logger.Warn("analysis provider failed", zap.String("subject", snap.Subject), zap.Error(err))
		return Unavailable(evidence.SourceDirect, err), nil
	}

	reviews.Source = evidence.SourceDirect
	return reviews, nil
}
