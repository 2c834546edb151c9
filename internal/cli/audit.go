package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"sprintgate/internal/audit"
	"sprintgate/internal/pipeline"
)

func newAuditCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Inspect audit records of past reviews",
	}
	cmd.AddCommand(newAuditListCommand(app), newAuditShowCommand(app))
	return cmd
}

func newAuditListCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List audit records, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := audit.List(app.Config.Review.AuditDir)
			if errors.Is(err, audit.ErrNoRecords) {
				app.Printer.Text("No audit records in %s", app.Config.Review.AuditDir)
				return nil
			}
			if err != nil {
				return err
			}

			rows := make([][]string, len(entries))
			for i, e := range entries {
				rows[i] = []string{
					e.Record.EndTime.Local().Format("2006-01-02 15:04:05"),
					e.Record.Sprint,
					e.Record.Status,
					fmt.Sprintf("%d/%d", len(e.Record.StepsCompleted), pipeline.Len()),
					shortID(e.Record.RunID),
				}
			}
			app.Printer.Table([]string{"FINISHED", "SPRINT", "STATUS", "STEPS", "RUN"}, rows)
			return nil
		},
	}
}

func newAuditShowCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show <path|run-id>",
		Short: "Show one audit record",
		Long: `Show an audit record, selected by file path or by run id. A unique
prefix of the run id is enough.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, path, err := findRecord(app.Config.Review.AuditDir, args[0])
			if err != nil {
				return err
			}

			app.Printer.Text("Record:   %s", path)
			app.Printer.Text("Run:      %s", rec.RunID)
			app.Printer.Text("Sprint:   %s", rec.Sprint)
			app.Printer.Text("Status:   %s", rec.Status)
			app.Printer.Text("Duration: %.1fs", rec.DurationSeconds)
			app.Printer.Text("Gate:     %s", rec.Enforcement.ApprovalGate)
			if rec.Error != "" {
				app.Printer.Text("Error:    %s", rec.Error)
			}
			if rec.PartialClosure != nil {
				app.Printer.Text("Partial closure: closed %v, failed on %q", rec.PartialClosure.EpicIDs, rec.PartialClosure.FailedID)
			}
			for i, id := range rec.StepsCompleted {
				app.Printer.Text("  %d. %s (%s)", i+1, id, pipeline.Title(id))
			}

			var pretty bytes.Buffer
			if err := json.Indent(&pretty, rec.StepEvidence, "", "  "); err != nil {
				return fmt.Errorf("failed to format step evidence: %w", err)
			}
			app.Printer.Text("%s", pretty.String())
			return nil
		},
	}
}

// findRecord resolves ref as a file path first, then as a run id prefix.
func findRecord(dir, ref string) (audit.Record, string, error) {
	if _, err := os.Stat(ref); err == nil {
		rec, err := audit.Load(ref)
		return rec, ref, err
	}

	entries, err := audit.List(dir)
	if err != nil {
		return audit.Record{}, "", err
	}
	var matches []audit.Entry
	for _, e := range entries {
		if strings.HasPrefix(e.Record.RunID, ref) {
			matches = append(matches, e)
		}
	}
	switch len(matches) {
	case 0:
		return audit.Record{}, "", fmt.Errorf("no audit record matches %q", ref)
	case 1:
		return matches[0].Record, matches[0].Path, nil
	default:
		return audit.Record{}, "", fmt.Errorf("run id prefix %q matches %d records", ref, len(matches))
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
