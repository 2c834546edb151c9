package analysis

import (
	"context"
	"fmt"

	"sprintgate/internal/config"
	"sprintgate/internal/evidence"
)

// Heuristic is the local strategy: a pure function of the completion rate.
type Heuristic struct {
	thresholds config.ThresholdConfig
}

// NewHeuristic creates a [Heuristic] using the given thresholds.
func NewHeuristic(thresholds config.ThresholdConfig) *Heuristic {
	return &Heuristic{thresholds: thresholds}
}

// Review never fails and never blocks.
func (h *Heuristic) Review(ctx context.Context, snap Snapshot) (evidence.Reviews, error) {
	return h.Evaluate(snap.Metrics.CompletionRate), nil
}

// Evaluate returns the heuristic reviews for a completion rate in percent.
func (h *Heuristic) Evaluate(completionRate float64) evidence.Reviews {
	qa := evidence.RecommendBlock
	if completionRate >= h.thresholds.QualityMin {
		qa = evidence.RecommendApprove
	}
	engineering := evidence.RecommendConditional
	if completionRate >= h.thresholds.EngineeringMin {
		engineering = evidence.RecommendApprove
	}

	return evidence.Reviews{
		QA: evidence.Review{
			Recommendation: qa,
			Detail:         fmt.Sprintf("%.1f%% completion rate", completionRate),
		},
		Security: evidence.Review{
			Recommendation: evidence.RecommendApprove,
			Detail:         "N/A (local analysis)",
		},
		Engineering: evidence.Review{
			Recommendation: engineering,
			Detail:         fmt.Sprintf("%.0f%% readiness", completionRate),
		},
		Source: evidence.SourceHeuristic,
	}
}
