// Package review runs the externally enforced sprint review.
//
// The [Sequencer] walks the fixed pipeline from internal/pipeline one step at a
// time. Each step reads the evidence recorded so far and contributes exactly
// one new value. The approval gate runs after every analysis step and before
// closure, and closure is only reached with an approving decision. Whatever
// happens (completion, denial, interruption, failure or panic) the run is
// written to the audit log before [Sequencer.Run] returns.
//
// Key types:
//   - [Sequencer] - Executes one review run
//   - [Outcome] - What a finished run reports back
//   - [Gate] - The human decision collaborator
//   - [AuditWriter] - Persists the terminal record
package review

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"sprintgate/internal/analysis"
	"sprintgate/internal/audit"
	"sprintgate/internal/clock"
	"sprintgate/internal/config"
	"sprintgate/internal/evidence"
	"sprintgate/internal/output"
	"sprintgate/internal/pipeline"
	"sprintgate/internal/workitem"
)

// Status is the state of a review run.
type Status string

// Run statuses. A run starts in progress and ends in exactly one of the
// terminal statuses.
const (
	StatusInProgress  Status = "in_progress"
	StatusCompleted   Status = Status(output.StatusCompleted)
	StatusCancelled   Status = Status(output.StatusCancelled)
	StatusInterrupted Status = Status(output.StatusInterrupted)
	StatusError       Status = Status(output.StatusError)
)

var (
	// ErrAuditFailed is returned by [Sequencer.Run] when the audit record
	// could not be written.
	ErrAuditFailed = errors.New("audit record not persisted")

	// ErrNoAdapter is recorded as degraded evidence when no work tracking
	// adapter is configured.
	ErrNoAdapter = errors.New("no work item adapter configured")
)

// Gate obtains the operator's approval decision.
//
// An error means no decision could be obtained at all. Operator interruption
// is not an error; it is a decision with Interrupted set.
type Gate interface {
	Decide(ctx context.Context, summary output.GateSummary) (evidence.ApprovalDecision, error)
}

// AuditWriter persists the terminal record of a run and returns its location.
// [audit.Logger] implements it.
type AuditWriter interface {
	Persist(rec audit.Record) (string, error)
}

// Options configures a [Sequencer].
type Options struct {
	// Tracking supplies the epic type, done states and closed state.
	Tracking config.WorkTrackingConfig

	// ReportsDir receives the closure report.
	ReportsDir string

	// TestReportsDir is searched for *.md test reports.
	TestReportsDir string

	// StrategyName is shown in the run header.
	StrategyName string

	// DryRun skips work item updates during closure.
	DryRun bool
}

// OptionsFromConfig builds [Options] from cfg.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Tracking:       cfg.WorkTracking,
		ReportsDir:     cfg.Review.ReportsDir,
		TestReportsDir: cfg.Review.TestReportsDir,
		StrategyName:   cfg.Review.Strategy,
	}
}

// Outcome reports a finished run.
type Outcome struct {
	RunID     string
	Status    Status
	Evidence  *evidence.Store
	Duration  time.Duration
	AuditPath string

	// Error is the failure that ended a run with [StatusError].
	Error string
}

// Sequencer executes the review pipeline.
//
// Collaborators are injected through [NewSequencer]. The adapter may be nil,
// in which case the work item steps record degraded evidence.
type Sequencer struct {
	adapter  workitem.Adapter
	strategy analysis.Strategy
	gate     Gate
	auditor  AuditWriter
	printer  output.Printer
	opts     Options
	logger   *zap.Logger
	clock    clock.Clock
}

// NewSequencer creates a Sequencer. A nil strategy falls back to the local
// heuristic with default thresholds.
func NewSequencer(adapter workitem.Adapter, strategy analysis.Strategy, gate Gate, auditor AuditWriter, printer output.Printer, opts Options) *Sequencer {
	if strategy == nil {
		strategy = analysis.NewHeuristic(config.DefaultConfig().Review.Thresholds)
	}
	return &Sequencer{
		adapter:  adapter,
		strategy: strategy,
		gate:     gate,
		auditor:  auditor,
		printer:  printer,
		opts:     opts,
		logger:   zap.NewNop(),
		clock:    clock.Real{},
	}
}

// SetLogger sets the diagnostic logger.
func (s *Sequencer) SetLogger(logger *zap.Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// SetClock replaces the clock used for timestamps.
func (s *Sequencer) SetClock(clk clock.Clock) {
	if clk != nil {
		s.clock = clk
	}
}

// SetDryRun toggles dry-run closure.
func (s *Sequencer) SetDryRun(dryRun bool) {
	s.opts.DryRun = dryRun
}

// run is the mutable state of one execution. Only the sequencer touches it.
type run struct {
	id      string
	subject string
	start   time.Time
	store   *evidence.Store
	logger  *zap.Logger

	// partial is set when closure failed after mutating work items.
	partial *evidence.Closure
}

// haltStatus is the terminal status for an interruption: a run that already
// reached the gate is cancelled, an earlier one is interrupted.
func (r *run) haltStatus() Status {
	if r.store.Has(pipeline.StepApproval) {
		return StatusCancelled
	}
	return StatusInterrupted
}

// Run executes one review of subject.
//
// The returned error is non-nil only when the audit record could not be
// persisted; every other failure is reported through [Outcome.Status].
func (s *Sequencer) Run(ctx context.Context, subject string) (Outcome, error) {
	r := &run{
		id:      uuid.NewString(),
		subject: subject,
		start:   s.clock.Now(),
		store:   evidence.NewStore(),
	}
	r.logger = s.logger.With(zap.String("run_id", r.id), zap.String("subject", subject))
	r.logger.Info("review started", zap.String("strategy", s.opts.StrategyName), zap.Bool("dry_run", s.opts.DryRun))

	s.printer.RunHeader(subject, r.id, s.opts.StrategyName, s.opts.DryRun)

	status, runErr := s.execute(ctx, r)
	end := s.clock.Now()

	outcome := Outcome{
		RunID:    r.id,
		Status:   status,
		Evidence: r.store,
		Duration: end.Sub(r.start),
	}
	if runErr != nil {
		outcome.Error = runErr.Error()
		r.logger.Error("review failed", zap.Error(runErr))
	}

	path, auditErr := s.persist(r, status, end, runErr)
	outcome.AuditPath = path

	s.printer.RunComplete(output.RunSummary{
		Status:         string(status),
		Subject:        subject,
		RunID:          r.id,
		StepsCompleted: r.store.Len(),
		Duration:       outcome.Duration,
		AuditPath:      path,
		Error:          outcome.Error,
	})

	if auditErr != nil {
		r.logger.Error("audit record not written", zap.Error(auditErr))
		return outcome, fmt.Errorf("%w: %v", ErrAuditFailed, auditErr)
	}
	r.logger.Info("review finished", zap.String("status", string(status)), zap.String("audit", path))
	return outcome, nil
}

func (s *Sequencer) persist(r *run, status Status, end time.Time, runErr error) (string, error) {
	rec, err := audit.NewRecord(r.id, r.subject, string(status), r.start, end, r.store)
	if err != nil {
		return "", err
	}
	if runErr != nil {
		rec.Error = runErr.Error()
	}
	rec.PartialClosure = r.partial
	return s.auditor.Persist(rec)
}

// execute walks the pipeline and returns the terminal status. Panics raised
// by steps or collaborators end the run with [StatusError].
func (s *Sequencer) execute(ctx context.Context, r *run) (status Status, err error) {
	defer func() {
		if p := recover(); p != nil {
			status = StatusError
			err = fmt.Errorf("panic during review: %v", p)
		}
	}()

	steps := pipeline.Steps()
	for i, step := range steps {
		if ctx.Err() != nil {
			r.logger.Warn("review interrupted", zap.String("step", string(step.ID)))
			return r.haltStatus(), nil
		}

		s.printer.StepStart(i+1, len(steps), step.Title)
		r.logger.Debug("step started", zap.String("step", string(step.ID)))

		value, summary, err := s.runStep(ctx, r, step.ID)
		if err != nil {
			if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
				r.logger.Warn("review interrupted", zap.String("step", string(step.ID)))
				return r.haltStatus(), nil
			}
			return StatusError, fmt.Errorf("step %s failed: %w", step.ID, err)
		}

		if err := r.store.Put(value); err != nil {
			return StatusError, fmt.Errorf("step %s: %w", step.ID, err)
		}
		s.printer.StepComplete(i+1, summary)
		r.logger.Debug("step complete", zap.String("step", string(step.ID)))

		if decision, ok := value.(evidence.ApprovalDecision); ok && !decision.Approved {
			r.logger.Info("closure not approved",
				zap.String("response", decision.RawResponse),
				zap.Bool("interrupted", decision.Interrupted))
			return StatusCancelled, nil
		}
	}
	return StatusCompleted, nil
}

func (s *Sequencer) runStep(ctx context.Context, r *run, id pipeline.StepID) (evidence.Value, string, error) {
	switch id {
	case pipeline.StepMetrics:
		return s.collectMetrics(ctx, r)
	case pipeline.StepAnalysis:
		return s.analyzeItems(r)
	case pipeline.StepCategories:
		return s.identifyEpics(r)
	case pipeline.StepVerification:
		return s.verify(ctx, r)
	case pipeline.StepReviews:
		return s.collectReviews(ctx, r)
	case pipeline.StepRecommendation:
		return s.recommend(r)
	case pipeline.StepApproval:
		return s.approve(ctx, r)
	case pipeline.StepClosure:
		return s.closeSprint(ctx, r)
	default:
		return nil, "", fmt.Errorf("%w: %s", pipeline.ErrUnknownStep, id)
	}
}
