package review

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"sprintgate/internal/analysis"
	"sprintgate/internal/evidence"
	"sprintgate/internal/output"
	"sprintgate/internal/pipeline"
	"sprintgate/internal/workitem"
)

// degrade reports a collaborator failure in a pre-gate step. A cancelled
// context is returned as an error so the run halts instead. Steps at or after
// the gate never degrade; their failure is returned unchanged.
func (s *Sequencer) degrade(ctx context.Context, r *run, id pipeline.StepID, err error) (*evidence.Degradation, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if !pipeline.IsPreGate(id) {
		return nil, err
	}
	r.logger.Warn("collaborator unavailable", zap.String("step", string(id)), zap.Error(err))
	s.printer.Warning("%v", err)
	return evidence.Degraded(err), nil
}

func (s *Sequencer) collectMetrics(ctx context.Context, r *run) (evidence.Value, string, error) {
	if s.adapter == nil {
		degraded, err := s.degrade(ctx, r, pipeline.StepMetrics, ErrNoAdapter)
		if err != nil {
			return nil, "", err
		}
		return evidence.Metrics{Degraded: degraded}, "metrics unavailable", nil
	}

	items, err := s.adapter.Query(ctx, r.subject)
	if err != nil {
		degraded, err := s.degrade(ctx, r, pipeline.StepMetrics, fmt.Errorf("failed to query work items: %w", err))
		if err != nil {
			return nil, "", err
		}
		return evidence.Metrics{Degraded: degraded}, "metrics unavailable", nil
	}

	completed := 0
	for _, item := range items {
		if s.opts.Tracking.IsDone(item.State) {
			completed++
		}
	}
	rate := 0.0
	if len(items) > 0 {
		rate = float64(completed) / float64(len(items)) * 100
	}

	s.printer.Detail("Retrieved %d work items", len(items))
	s.printer.Detail("%d completed (%.1f%%)", completed, rate)

	return evidence.Metrics{
		TotalItems:     len(items),
		CompletedItems: completed,
		CompletionRate: rate,
		WorkItems:      items,
	}, "metrics collected", nil
}

// sprintItems returns the work items recorded by step 1, and false when the
// metrics were degraded.
func sprintItems(r *run) ([]workitem.WorkItem, bool) {
	metrics, ok := r.store.Metrics()
	if !ok || metrics.Degraded != nil {
		return nil, false
	}
	return metrics.WorkItems, true
}

func (s *Sequencer) analyzeItems(r *run) (evidence.Value, string, error) {
	items, ok := sprintItems(r)
	if !ok {
		s.printer.Warning("No work items available for analysis")
		return evidence.Analysis{
			ByType:  map[string]int{},
			ByState: map[string]int{},
			Note:    "No work items available for analysis",
		}, "analysis skipped", nil
	}

	byType := make(map[string]int)
	byState := make(map[string]int)
	for _, item := range items {
		byType[valueOr(item.Type, "Unknown")]++
		byState[valueOr(item.State, "Unknown")]++
	}

	s.printer.Text("  Work item breakdown:")
	s.printer.Table([]string{"TYPE", "COUNT"}, countRows(byType))
	s.printer.Text("  State distribution:")
	s.printer.Table([]string{"STATE", "COUNT"}, countRows(byState))

	return evidence.Analysis{
		ByType:  byType,
		ByState: byState,
		Total:   len(items),
	}, "analysis done", nil
}

func (s *Sequencer) identifyEpics(r *run) (evidence.Value, string, error) {
	items, ok := sprintItems(r)
	if !ok {
		s.printer.Warning("No work items available - cannot identify EPICs")
		return evidence.Categories{Epics: []workitem.WorkItem{}}, "no EPICs identified", nil
	}

	epicType := s.opts.Tracking.EpicType()
	epics := []workitem.WorkItem{}
	for _, item := range items {
		if strings.EqualFold(item.Type, epicType) && s.opts.Tracking.IsDone(item.State) {
			epics = append(epics, item)
		}
	}

	s.printer.Detail("Found %d completed EPIC(s)", len(epics))
	for _, epic := range epics {
		s.printer.Detail("  EPIC #%s: %s", epic.ID, valueOr(epic.Title, "Untitled"))
	}

	return evidence.Categories{Count: len(epics), Epics: epics}, "EPICs identified", nil
}

func (s *Sequencer) verify(ctx context.Context, r *run) (evidence.Value, string, error) {
	var v evidence.Verification

	reports, err := filepath.Glob(filepath.Join(s.opts.TestReportsDir, "*.md"))
	if err != nil {
		return nil, "", fmt.Errorf("invalid test reports directory: %w", err)
	}
	sort.Strings(reports)
	v.ReportsFound = len(reports)
	v.ReportFiles = reports
	if len(reports) == 0 {
		v.Note = "No test reports found in " + s.opts.TestReportsDir
		s.printer.Warning("No test reports found (expected %s/*.md)", s.opts.TestReportsDir)
	} else {
		s.printer.Detail("Found %d test report(s)", len(reports))
		for _, path := range reports {
			s.printer.Detail("  %s", filepath.Base(path))
		}
	}

	categories, _ := r.store.Categories()
	if len(categories.Epics) == 0 || s.adapter == nil {
		return v, "test verification done", nil
	}

	// Epic states are read again so closure acts on what the tracker holds
	// now, not on what step 1 saw.
	for _, epic := range categories.Epics {
		current, err := s.adapter.Get(ctx, epic.ID)
		if err != nil {
			degraded, err := s.degrade(ctx, r, pipeline.StepVerification, fmt.Errorf("failed to re-read EPIC #%s: %w", epic.ID, err))
			if err != nil {
				return nil, "", err
			}
			v.Degraded = degraded
			return v, "test verification done", nil
		}
		if s.opts.Tracking.IsDone(current.State) || s.opts.Tracking.IsClosed(current.State) {
			v.VerifiedEpics = append(v.VerifiedEpics, epic.ID)
			continue
		}
		v.MismatchedEpics = append(v.MismatchedEpics, epic.ID)
		s.printer.Warning("EPIC #%s is now %q and will not be closed", epic.ID, current.State)
	}
	s.printer.Detail("%d EPIC(s) confirmed done in the tracker", len(v.VerifiedEpics))

	return v, "test verification done", nil
}

func (s *Sequencer) collectReviews(ctx context.Context, r *run) (evidence.Value, string, error) {
	metrics, _ := r.store.Metrics()
	analyzed, _ := r.store.Analysis()
	categories, _ := r.store.Categories()
	verification, _ := r.store.Verification()

	reviews, err := s.strategy.Review(ctx, analysis.Snapshot{
		Subject:      r.subject,
		Metrics:      metrics,
		Analysis:     analyzed,
		Categories:   categories,
		Verification: verification,
	})
	if err != nil {
		return nil, "", err
	}
	if reviews.Degraded != nil {
		r.logger.Warn("reviews degraded", zap.String("source", reviews.Source), zap.String("reason", reviews.Degraded.Reason))
		s.printer.Warning("analysis unavailable: %s", reviews.Degraded.Reason)
	}

	s.printer.Table([]string{"REVIEWER", "RECOMMENDATION", "DETAIL"}, [][]string{
		{"QA", reviews.QA.Recommendation, reviews.QA.Detail},
		{"Security", reviews.Security.Recommendation, reviews.Security.Detail},
		{"Engineering", reviews.Engineering.Recommendation, reviews.Engineering.Detail},
	})
	s.printer.Detail("Source: %s", valueOr(reviews.Source, "unknown"))

	return reviews, "reviews collected", nil
}

func (s *Sequencer) recommend(r *run) (evidence.Value, string, error) {
	reviews, ok := r.store.Reviews()
	if !ok {
		return nil, "", errors.New("no reviews recorded")
	}
	metrics, _ := r.store.Metrics()

	rec := analysis.Synthesize(reviews, metrics.CompletionRate)

	s.printer.Detail("Recommendation: %s", rec.Recommendation)
	s.printer.Detail("Rationale: %s", rec.Rationale)
	s.printer.Detail("Completion: %.1f%%", rec.CompletionRate)

	return rec, "recommendation prepared", nil
}

func (s *Sequencer) approve(ctx context.Context, r *run) (evidence.Value, string, error) {
	if s.gate == nil {
		return nil, "", errors.New("no approval gate configured")
	}
	rec, ok := r.store.Recommendation()
	if !ok {
		return nil, "", errors.New("no recommendation recorded")
	}

	completed := r.store.Completed()
	names := make([]string, len(completed))
	for i, id := range completed {
		names[i] = string(id)
	}

	decision, err := s.gate.Decide(ctx, output.GateSummary{
		Subject:        r.subject,
		Recommendation: rec.Recommendation,
		Rationale:      rec.Rationale,
		CompletionRate: rec.CompletionRate,
		Completed:      names,
	})
	if err != nil {
		return nil, "", err
	}

	switch {
	case decision.Approved:
		return decision, "closure approved", nil
	case decision.Interrupted:
		return decision, "approval interrupted", nil
	default:
		return decision, "closure denied", nil
	}
}

func (s *Sequencer) closeSprint(ctx context.Context, r *run) (evidence.Value, string, error) {
	metrics, _ := r.store.Metrics()
	categories, _ := r.store.Categories()
	verification, _ := r.store.Verification()

	skip := make(map[string]bool, len(verification.MismatchedEpics))
	for _, id := range verification.MismatchedEpics {
		skip[id] = true
	}

	closure := evidence.Closure{ItemsReviewed: metrics.TotalItems, EpicIDs: []string{}}
	closedState := s.opts.Tracking.ClosedState

	switch {
	case s.opts.DryRun:
		closure.Note = "Dry run - no work items updated"
		s.printer.Warning("Dry run: %d EPIC(s) would be marked %s", len(categories.Epics)-len(skip), closedState)
	case s.adapter == nil:
		closure.Note = "No adapter available"
		s.printer.Warning("No adapter - cannot mark EPICs as %s", closedState)
	case len(categories.Epics) == 0:
		s.printer.Detail("No EPICs to close")
	default:
		for _, epic := range categories.Epics {
			if skip[epic.ID] {
				continue
			}
			if s.opts.Tracking.IsClosed(epic.State) {
				s.printer.Detail("✓ EPIC #%s - Already %s", epic.ID, closedState)
				closure.EpicIDs = append(closure.EpicIDs, epic.ID)
				continue
			}
			if err := ctx.Err(); err != nil {
				return nil, "", s.recordPartial(r, closure, "", err)
			}
			if _, err := s.adapter.Update(ctx, epic.ID, workitem.Changes{State: closedState}); err != nil {
				return nil, "", s.recordPartial(r, closure, epic.ID, fmt.Errorf("failed to close EPIC #%s: %w", epic.ID, err))
			}
			r.logger.Info("epic closed", zap.String("epic", epic.ID), zap.String("state", closedState))
			s.printer.Detail("✓ EPIC #%s - marked %s", epic.ID, closedState)
			closure.EpicIDs = append(closure.EpicIDs, epic.ID)
		}
	}
	closure.EpicsClosed = len(closure.EpicIDs)

	path, err := s.writeReport(r, closure)
	if err != nil {
		return nil, "", s.recordPartial(r, closure, "", err)
	}
	closure.ReportPath = path
	s.printer.Detail("Closure report: %s", path)

	return closure, "sprint closed", nil
}

// recordPartial keeps what closure already changed for the audit record and
// returns err. failedID names the item whose update failed, if any; its state
// in the tracker is unknown.
func (s *Sequencer) recordPartial(r *run, closure evidence.Closure, failedID string, err error) error {
	if len(closure.EpicIDs) > 0 || failedID != "" {
		closure.EpicsClosed = len(closure.EpicIDs)
		closure.Partial = true
		closure.FailedID = failedID
		closure.Error = err.Error()
		r.partial = &closure
		r.logger.Warn("closure stopped partway",
			zap.Strings("closed", closure.EpicIDs),
			zap.String("failed", failedID),
			zap.Error(err))
	}
	return err
}

func countRows(counts map[string]int) [][]string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	rows := make([][]string, len(keys))
	for i, k := range keys {
		rows[i] = []string{k, fmt.Sprint(counts[k])}
	}
	return rows
}

func valueOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
