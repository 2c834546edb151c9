// Package gate implements the blocking human approval checkpoint.
//
// The gate shows the operator the synthesized recommendation and the steps
// already verified, then blocks on one line of input. There is no timeout and
// no default answer. Only "yes" approves; any other answer is a denial and the
// operator is not asked again.
//
// Key types:
//   - [Gate] - Reads one decision per call from an input stream
package gate

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"sprintgate/internal/clock"
	"sprintgate/internal/evidence"
	"sprintgate/internal/output"
)

// Question is the prompt shown after the gate panel.
const Question = "Approve sprint closure? (yes/no):"

// Affirmative is the only answer that approves closure.
const Affirmative = "yes"

// Gate asks the operator for an approval decision.
//
// A Gate is not safe for concurrent use. After a cancelled [Gate.Decide] the
// read it started stays pending, and the next Decide waits on that same read,
// so the line it consumes is not lost.
type Gate struct {
	in      *bufio.Reader
	printer output.Printer
	clock   clock.Clock

	// pending is the outstanding read, if a previous Decide was cancelled.
	pending chan answer
}

// New creates a Gate reading answers from in.
func New(in io.Reader, printer output.Printer, clk clock.Clock) *Gate {
	if clk == nil {
		clk = clock.Real{}
	}
	return &Gate{
		in:      bufio.NewReader(in),
		printer: printer,
		clock:   clk,
	}
}

type answer struct {
	line string
	err  error
}

// Decide shows summary and blocks until the operator answers or ctx is done.
//
// End of input without an answer, or a cancelled context, yields an
// interrupted denial. Any other read error is returned and no decision is
// made.
func (g *Gate) Decide(ctx context.Context, summary output.GateSummary) (evidence.ApprovalDecision, error) {
	g.printer.GatePanel(summary)
	g.printer.Prompt(Question)

	// The read cannot be interrupted, so it runs on its own goroutine.
	if g.pending == nil {
		answers := make(chan answer, 1)
		go func() {
			line, err := g.in.ReadString('\n')
			answers <- answer{line: line, err: err}
		}()
		g.pending = answers
	}

	select {
	case <-ctx.Done():
		g.printer.Text("")
		return evidence.ApprovalDecision{DecidedAt: g.clock.Now(), Interrupted: true}, nil
	case a := <-g.pending:
		g.pending = nil
		raw := strings.TrimRight(a.line, "\r\n")
		if a.err != nil {
			if !errors.Is(a.err, io.EOF) {
				return evidence.ApprovalDecision{}, fmt.Errorf("failed to read approval: %w", a.err)
			}
			if strings.TrimSpace(raw) == "" {
				g.printer.Text("")
				return evidence.ApprovalDecision{DecidedAt: g.clock.Now(), Interrupted: true}, nil
			}
		}
		return evidence.ApprovalDecision{
			Approved:    IsApproval(raw),
			RawResponse: raw,
			DecidedAt:   g.clock.Now(),
		}, nil
	}
}

// IsApproval reports whether answer approves closure.
func IsApproval(answer string) bool {
	return strings.EqualFold(strings.TrimSpace(answer), Affirmative)
}
