package output

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func setupPrinter() (*DefaultPrinter, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	return NewPrinterWithWriter(buf), buf
}

func TestPrinter_RunHeader(t *testing.T) {
	p, buf := setupPrinter()

	p.RunHeader("Sprint 7", "run-123", "heuristic", true)

	out := buf.String()
	assert.Contains(t, out, "Sprint Review (externally enforced): Sprint 7")
	assert.Contains(t, out, "run-123")
	assert.Contains(t, out, "heuristic")
	assert.Contains(t, out, "DRY RUN")
}

func TestPrinter_StepBlock(t *testing.T) {
	p, buf := setupPrinter()

	p.StepStart(3, 8, "EPIC Identification")
	p.Detail("EPIC #%s: %s", "101", "Checkout redesign")
	p.Warning("no work items available")
	p.StepComplete(3, "EPICs identified")

	out := buf.String()
	assert.Contains(t, out, "[3/8]")
	assert.Contains(t, out, "EPIC Identification")
	assert.Contains(t, out, "  EPIC #101: Checkout redesign")
	assert.Contains(t, out, "! no work items available")
	assert.Contains(t, out, "✓ Step 3 complete - EPICs identified")
}

func TestPrinter_DetailTruncates(t *testing.T) {
	p, buf := setupPrinter()
	p.SetTruncateLength(10)

	p.Detail("%s", strings.Repeat("x", 30))

	assert.Contains(t, buf.String(), "xxxxxxx...")
	assert.NotContains(t, buf.String(), strings.Repeat("x", 11))
}

func TestPrinter_DetailTruncationDisabled(t *testing.T) {
	p, buf := setupPrinter()
	p.SetTruncateLength(0)

	p.Detail("%s", strings.Repeat("y", 200))

	assert.Contains(t, buf.String(), strings.Repeat("y", 200))
}

func TestPrinter_GatePanel(t *testing.T) {
	p, buf := setupPrinter()

	p.GatePanel(GateSummary{
		Subject:        "Sprint 7",
		Recommendation: "CONDITIONAL",
		Rationale:      "Some reviews have concerns",
		CompletionRate: 85.71,
		Completed:      []string{"1-metrics", "2-analysis"},
	})
	p.Prompt("Approve sprint closure? (yes/no):")

	out := buf.String()
	assert.Contains(t, out, "HUMAN APPROVAL GATE")
	assert.Contains(t, out, "CONDITIONAL")
	assert.Contains(t, out, "Some reviews have concerns")
	assert.Contains(t, out, "85.7%")
	assert.Contains(t, out, "1. 1-metrics")
	assert.Contains(t, out, "2. 2-analysis")
	assert.True(t, strings.HasSuffix(out, "Approve sprint closure? (yes/no): "))
}

func TestPrinter_RunComplete(t *testing.T) {
	tests := []struct {
		name    string
		summary RunSummary
		want    []string
	}{
		{
			name:    "completed",
			summary: RunSummary{Status: StatusCompleted, Subject: "Sprint 7", StepsCompleted: 8, AuditPath: "/tmp/a.json"},
			want:    []string{"SPRINT REVIEW COMPLETE", "Steps:    8", "/tmp/a.json"},
		},
		{
			name:    "cancelled",
			summary: RunSummary{Status: StatusCancelled, Subject: "Sprint 7", StepsCompleted: 7, AuditPath: "/tmp/b.json"},
			want:    []string{"SPRINT REVIEW CANCELLED", "no changes made", "/tmp/b.json"},
		},
		{
			name:    "interrupted",
			summary: RunSummary{Status: StatusInterrupted, Subject: "Sprint 7", AuditPath: "/tmp/c.json"},
			want:    []string{"SPRINT REVIEW INTERRUPTED", "/tmp/c.json"},
		},
		{
			name:    "error without audit",
			summary: RunSummary{Status: StatusError, Subject: "Sprint 7", Error: "disk full"},
			want:    []string{"SPRINT REVIEW FAILED", "disk full", "NOT WRITTEN"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, buf := setupPrinter()
			tt.summary.Duration = 1500 * time.Millisecond

			p.RunComplete(tt.summary)

			out := buf.String()
			for _, want := range tt.want {
				assert.Contains(t, out, want)
			}
			assert.Contains(t, out, "1.5s")
		})
	}
}

func TestPrinter_HandoffWaiting(t *testing.T) {
	p, buf := setupPrinter()

	p.HandoffWaiting("/s/request.json", "/s/response.json", 5*time.Minute)

	out := buf.String()
	assert.Contains(t, out, "WAITING FOR ANALYSIS")
	assert.Contains(t, out, "/s/request.json")
	assert.Contains(t, out, "/s/response.json")
	assert.Contains(t, out, "5m0s")
}

func TestPrinter_Table(t *testing.T) {
	p, buf := setupPrinter()

	p.Table([]string{"ID", "TYPE"}, [][]string{{"101", "Epic"}, {"102", "Task"}})

	out := buf.String()
	assert.Contains(t, out, "ID")
	assert.Contains(t, out, "101")
	assert.Contains(t, out, "Task")
}

func TestNewPrinter(t *testing.T) {
	var p Printer = NewPrinter()
	assert.NotNil(t, p)
}
