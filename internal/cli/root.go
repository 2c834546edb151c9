// Package cli provides the sprintgate command line.
//
// The root command wires configuration, logging, the work tracking adapter
// and the audit logger into an [App], and subcommands use it:
//
//   - review <sprint> runs the enforced sprint review
//   - audit list|show inspects persisted audit records
//   - items list|add works with the sprint's work items
//
// Commands return [ExitError] from RunE instead of exiting, so the whole tree
// can be driven from tests. [Execute] is the only place that calls os.Exit.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"sprintgate/internal/audit"
	"sprintgate/internal/clock"
	"sprintgate/internal/config"
	"sprintgate/internal/logging"
	"sprintgate/internal/output"
	"sprintgate/internal/review"
	"sprintgate/internal/workitem"
)

// App holds the dependencies shared by all commands.
//
// A nil Adapter is valid and means no work tracking is configured; the review
// then records degraded evidence.
type App struct {
	Config  *config.Config
	Adapter workitem.Adapter
	Auditor review.AuditWriter
	Printer output.Printer
	Logger  *zap.Logger
	Clock   clock.Clock
}

// NewApp builds an App from cfg.
func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, err
	}

	adapter, err := workitem.New(ctx, cfg.WorkTracking)
	if err != nil {
		return nil, err
	}

	printer := output.NewPrinter()
	printer.SetTruncateLength(cfg.Output.TruncateLength)

	return &App{
		Config:  cfg,
		Adapter: adapter,
		Auditor: audit.NewLogger(cfg.Review.AuditDir, logger),
		Printer: printer,
		Logger:  logger,
		Clock:   clock.Real{},
	}, nil
}

// logger returns the app logger or a no-op one.
func (a *App) logger() *zap.Logger {
	if a.Logger == nil {
		return zap.NewNop()
	}
	return a.Logger
}

// NewRootCommand creates the root command with every subcommand attached.
func NewRootCommand(app *App) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "sprintgate",
		Short: "Externally enforced sprint review",
		Long: `sprintgate runs the sprint review as a fixed sequence of steps that an
agent driving it cannot skip, reorder or claim to have completed.

Every run stops at a blocking human approval gate before anything is closed,
and every run leaves an audit record, whatever its outcome.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		newReviewCommand(app),
		newAuditCommand(app),
		newItemsCommand(app),
	)
	return rootCmd
}

// ExecuteResult is the outcome of running the command tree.
type ExecuteResult struct {
	ExitCode int
	Err      error
}

// RunWithConfig runs the command tree with os.Args and cfg. SIGINT and
// SIGTERM cancel the command context.
func RunWithConfig(cfg *config.Config) ExecuteResult {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := NewApp(ctx, cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return ExecuteResult{ExitCode: ExitFailure, Err: err}
	}
	defer func() { _ = app.Logger.Sync() }()

	return executeContext(ctx, NewRootCommand(app))
}

func executeContext(ctx context.Context, cmd *cobra.Command) ExecuteResult {
	if err := cmd.ExecuteContext(ctx); err != nil {
		if code, ok := IsExitError(err); ok {
			return ExecuteResult{ExitCode: code, Err: err}
		}
		fmt.Fprintln(cmd.ErrOrStderr(), "Error:", err)
		return ExecuteResult{ExitCode: ExitFailure, Err: err}
	}
	return ExecuteResult{ExitCode: ExitOK}
}

// Execute loads configuration, runs the command tree and exits the process.
func Execute() {
	cfg, err := config.NewLoader().Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error loading config:", err)
		os.Exit(ExitFailure)
	}

	result := RunWithConfig(cfg)
	os.Exit(result.ExitCode)
}
