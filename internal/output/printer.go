// Package output renders the operator-facing terminal output of sprintgate.
//
// Everything the operator sees during a review goes through [Printer]: the run
// header, one block per step, the approval gate panel and the terminal banner
// naming the final status and the audit record. Diagnostics go to the zap
// logger instead, on stderr.
//
// Key types:
//   - [Printer] - Interface used by the review sequencer and the CLI
//   - [DefaultPrinter] - lipgloss-styled implementation
//   - [GateSummary] - What the operator is shown before deciding
//   - [RunSummary] - What the terminal banner reports
package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// Terminal statuses, mirrored from the review package for banner selection.
const (
	StatusCompleted   = "completed"
	StatusCancelled   = "cancelled"
	StatusInterrupted = "interrupted"
	StatusError       = "error"
)

const (
	rule                  = "═══════════════════════════════════════════════════════════════════"
	thinRule              = "───────────────────────────────────────────────────────────────────"
	defaultTruncateLength = 80
)

// GateSummary is shown at the approval gate.
type GateSummary struct {
	Subject        string
	Recommendation string
	Rationale      string
	CompletionRate float64
	Completed      []string
}

// RunSummary is reported by the terminal banner.
type RunSummary struct {
	Status         string
	Subject        string
	RunID          string
	StepsCompleted int
	Duration       time.Duration
	AuditPath      string
	Error          string
}

// Printer renders review progress for the operator.
type Printer interface {
	// RunHeader opens a review run.
	RunHeader(subject, runID, strategy string, dryRun bool)

	// StepStart opens the block of step pos out of total.
	StepStart(pos, total int, title string)

	// Detail prints an indented line inside the current step.
	Detail(format string, args ...any)

	// Warning prints a highlighted line inside the current step.
	Warning(format string, args ...any)

	// StepComplete closes the current step.
	StepComplete(pos int, summary string)

	// HandoffWaiting tells the operator where the analyst must answer.
	HandoffWaiting(requestPath, responsePath string, timeout time.Duration)

	// GatePanel shows the decision summary before the approval prompt.
	GatePanel(summary GateSummary)

	// Prompt writes the question without a trailing newline.
	Prompt(question string)

	// RunComplete prints the banner matching summary.Status.
	RunComplete(summary RunSummary)

	// Table prints rows under headers.
	Table(headers []string, rows [][]string)

	// Text prints a plain line.
	Text(format string, args ...any)
}

// DefaultPrinter implements [Printer] with lipgloss styles.
type DefaultPrinter struct {
	out      io.Writer
	truncate int
	styles   styles
}

// NewPrinter creates a [DefaultPrinter] writing to stdout.
func NewPrinter() *DefaultPrinter {
	return NewPrinterWithWriter(os.Stdout)
}

// NewPrinterWithWriter creates a [DefaultPrinter] writing to w. Color is
// enabled only when w is a terminal.
func NewPrinterWithWriter(w io.Writer) *DefaultPrinter {
	return &DefaultPrinter{
		out:      w,
		truncate: defaultTruncateLength,
		styles:   newStyles(lipgloss.NewRenderer(w)),
	}
}

// SetTruncateLength bounds detail lines. Values <= 0 disable truncation.
func (p *DefaultPrinter) SetTruncateLength(n int) {
	p.truncate = n
}

func (p *DefaultPrinter) RunHeader(subject, runID, strategy string, dryRun bool) {
	fmt.Fprintln(p.out)
	fmt.Fprintf(p.out, "╔%s╗\n", rule)
	fmt.Fprintf(p.out, "║  %s\n", p.styles.title.Render("Sprint Review (externally enforced): "+subject))
	fmt.Fprintf(p.out, "║  Run: %s   Analysis: %s\n", runID, strategy)
	if dryRun {
		fmt.Fprintf(p.out, "║  %s\n", p.styles.warning.Render("DRY RUN: closure will not update work items"))
	}
	fmt.Fprintf(p.out, "╚%s╝\n", rule)
}

func (p *DefaultPrinter) StepStart(pos, total int, title string) {
	fmt.Fprintln(p.out)
	fmt.Fprintln(p.out, thinRule)
	fmt.Fprintf(p.out, "%s %s\n", p.styles.step.Render(fmt.Sprintf("[%d/%d]", pos, total)), p.styles.title.Render(title))
	fmt.Fprintln(p.out, thinRule)
}

func (p *DefaultPrinter) Detail(format string, args ...any) {
	fmt.Fprintf(p.out, "  %s\n", p.clip(fmt.Sprintf(format, args...)))
}

func (p *DefaultPrinter) Warning(format string, args ...any) {
	fmt.Fprintf(p.out, "  %s\n", p.styles.warning.Render("! "+p.clip(fmt.Sprintf(format, args...))))
}

func (p *DefaultPrinter) StepComplete(pos int, summary string) {
	fmt.Fprintf(p.out, "%s\n", p.styles.success.Render(fmt.Sprintf("✓ Step %d complete - %s", pos, summary)))
}

func (p *DefaultPrinter) HandoffWaiting(requestPath, responsePath string, timeout time.Duration) {
	fmt.Fprintln(p.out)
	fmt.Fprintf(p.out, "╔%s╗\n", rule)
	fmt.Fprintf(p.out, "║  %s\n", p.styles.title.Render("WAITING FOR ANALYSIS"))
	fmt.Fprintf(p.out, "╠%s╣\n", rule)
	fmt.Fprintf(p.out, "║  Request:  %s\n", requestPath)
	fmt.Fprintf(p.out, "║  Write the QA, Security and Engineering reviews to:\n")
	fmt.Fprintf(p.out, "║            %s\n", responsePath)
	fmt.Fprintf(p.out, "║  Timeout:  %s (local heuristic answers after that)\n", timeout)
	fmt.Fprintf(p.out, "╚%s╝\n", rule)
}

func (p *DefaultPrinter) GatePanel(s GateSummary) {
	fmt.Fprintln(p.out)
	fmt.Fprintf(p.out, "╔%s╗\n", rule)
	fmt.Fprintf(p.out, "║  %s\n", p.styles.gate.Render("HUMAN APPROVAL GATE"))
	fmt.Fprintf(p.out, "║  Execution halted pending approval\n")
	fmt.Fprintf(p.out, "╠%s╣\n", rule)
	fmt.Fprintf(p.out, "║  Sprint:          %s\n", s.Subject)
	fmt.Fprintf(p.out, "║  Recommendation:  %s\n", p.recommendation(s.Recommendation))
	fmt.Fprintf(p.out, "║  Rationale:       %s\n", s.Rationale)
	fmt.Fprintf(p.out, "║  Completion:      %.1f%%\n", s.CompletionRate)
	fmt.Fprintf(p.out, "╠%s╣\n", rule)
	fmt.Fprintf(p.out, "║  Steps completed and verified:\n")
	for i, id := range s.Completed {
		fmt.Fprintf(p.out, "║    %d. %s\n", i+1, id)
	}
	fmt.Fprintf(p.out, "╠%s╣\n", rule)
	fmt.Fprintf(p.out, "║  yes = approve sprint closure and continue\n")
	fmt.Fprintf(p.out, "║  no  = cancel sprint review (no changes made)\n")
	fmt.Fprintf(p.out, "╚%s╝\n", rule)
}

func (p *DefaultPrinter) Prompt(question string) {
	fmt.Fprintf(p.out, "%s ", question)
}

func (p *DefaultPrinter) RunComplete(s RunSummary) {
	var headline string
	switch s.Status {
	case StatusCompleted:
		headline = p.styles.success.Render("✓ SPRINT REVIEW COMPLETE - approved and closed")
	case StatusCancelled:
		headline = p.styles.warning.Render("✗ SPRINT REVIEW CANCELLED - closure not approved, no changes made")
	case StatusInterrupted:
		headline = p.styles.warning.Render("✗ SPRINT REVIEW INTERRUPTED")
	default:
		headline = p.styles.failure.Render("✗ SPRINT REVIEW FAILED")
	}

	fmt.Fprintln(p.out)
	fmt.Fprintf(p.out, "╔%s╗\n", rule)
	fmt.Fprintf(p.out, "║  %s\n", headline)
	fmt.Fprintf(p.out, "║  Sprint: %s\n", s.Subject)
	fmt.Fprintf(p.out, "╠%s╣\n", rule)
	fmt.Fprintf(p.out, "║  Status:   %s\n", s.Status)
	if s.RunID != "" {
		fmt.Fprintf(p.out, "║  Run:      %s\n", s.RunID)
	}
	fmt.Fprintf(p.out, "║  Steps:    %d\n", s.StepsCompleted)
	fmt.Fprintf(p.out, "║  Duration: %s\n", s.Duration.Round(time.Millisecond))
	if s.Error != "" {
		fmt.Fprintf(p.out, "║  Error:    %s\n", p.styles.failure.Render(s.Error))
	}
	if s.AuditPath != "" {
		fmt.Fprintf(p.out, "║  Audit:    %s\n", s.AuditPath)
	} else {
		fmt.Fprintf(p.out, "║  Audit:    %s\n", p.styles.failure.Render("NOT WRITTEN"))
	}
	fmt.Fprintf(p.out, "╚%s╝\n", rule)
}

func (p *DefaultPrinter) Table(headers []string, rows [][]string) {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return p.styles.header
			}
			return p.styles.cell
		})
	fmt.Fprintln(p.out, t.Render())
}

func (p *DefaultPrinter) Text(format string, args ...any) {
	fmt.Fprintf(p.out, format+"\n", args...)
}

func (p *DefaultPrinter) recommendation(token string) string {
	switch strings.ToUpper(token) {
	case "APPROVE":
		return p.styles.success.Render(token)
	case "":
		return "N/A"
	default:
		return p.styles.warning.Render(token)
	}
}

func (p *DefaultPrinter) clip(s string) string {
	if p.truncate <= 0 || len(s) <= p.truncate {
		return s
	}
	if p.truncate <= 3 {
		return s[:p.truncate]
	}
	return s[:p.truncate-3] + "..."
}
