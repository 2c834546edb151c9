package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"sprintgate/internal/analysis"
	"sprintgate/internal/gate"
	"sprintgate/internal/review"
)

func newReviewCommand(app *App) *cobra.Command {
	var (
		strategy string
		dryRun   bool
	)

	cmd := &cobra.Command{
		Use:   "review <sprint>",
		Short: "Run the enforced sprint review",
		Long: `Run the sprint review pipeline for a sprint:
  1. Sprint metrics collection
  2. Work item analysis
  3. EPIC identification
  4. Test execution verification
  5. Multi-reviewer analysis (QA, Security, Engineering)
  6. Recommendation
  7. HUMAN APPROVAL GATE (blocks until you answer yes or no)
  8. Sprint closure

Only "yes" at the gate closes the sprint. Any other answer cancels the review
without changing any work item.

Exit codes: 0 closed, 1 cancelled or failed, 2 audit record not written,
130 interrupted before the gate.

Example:
  sprintgate review "Sprint 7" --strategy handoff`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg := app.Config
			if strategy == "" {
				strategy = cfg.Review.Strategy
			}

			s, err := analysis.NewStrategy(cfg, strategy, app.Clock, app.logger())
			if err != nil {
				return err
			}
			if h, ok := s.(*analysis.Handoff); ok {
				h.SetWaitCallback(app.Printer.HandoffWaiting)
			}

			opts := review.OptionsFromConfig(cfg)
			opts.StrategyName = strategy
			opts.DryRun = dryRun

			seq := review.NewSequencer(
				app.Adapter,
				s,
				gate.New(cmd.InOrStdin(), app.Printer, app.Clock),
				app.Auditor,
				app.Printer,
				opts,
			)
			seq.SetLogger(app.logger())
			seq.SetClock(app.Clock)

			outcome, err := seq.Run(ctx, args[0])
			if err != nil {
				if errors.Is(err, review.ErrAuditFailed) {
					fmt.Fprintln(cmd.ErrOrStderr(), "Error:", err)
					return NewExitError(ExitAuditFailure)
				}
				return err
			}
			if code := exitCodeFor(outcome.Status); code != ExitOK {
				return NewExitError(code)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&strategy, "strategy", "", "analysis strategy: heuristic, direct or handoff (default from config)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "run every step but do not update work items at closure")
	return cmd
}
