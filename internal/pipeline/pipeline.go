// Package pipeline defines the fixed step order of the enforced sprint review.
//
// The order is compiled into the binary. Nothing reads it from configuration, so
// no config file, flag, or agent-written artifact can move the approval gate
// ahead of the analysis steps or drop it from the sequence.
//
// Key types:
//   - [StepID] - Stable identifier used as evidence key and audit anchor
//   - [Step] - A step id with its display title
package pipeline

import "errors"

// ErrUnknownStep is returned when a step id is not part of the pipeline.
var ErrUnknownStep = errors.New("unknown pipeline step")

// StepID identifies one step of the review pipeline.
type StepID string

// The review steps, in execution order.
const (
	StepMetrics        StepID = "1-metrics"
	StepAnalysis       StepID = "2-analysis"
	StepCategories     StepID = "3-epics"
	StepVerification   StepID = "4-tests"
	StepReviews        StepID = "5-reviews"
	StepRecommendation StepID = "6-recommendation"
	StepApproval       StepID = "7-approval"
	StepClosure        StepID = "8-closure"
)

// Step pairs a step id with the title shown to the operator.
type Step struct {
	ID    StepID
	Title string
}

var order = []Step{
	{ID: StepMetrics, Title: "Sprint Metrics Collection"},
	{ID: StepAnalysis, Title: "Work Item Analysis"},
	{ID: StepCategories, Title: "EPIC Identification"},
	{ID: StepVerification, Title: "Test Execution Verification"},
	{ID: StepReviews, Title: "Multi-Reviewer Analysis"},
	{ID: StepRecommendation, Title: "Scrum Master Recommendation"},
	{ID: StepApproval, Title: "HUMAN APPROVAL GATE"},
	{ID: StepClosure, Title: "Sprint Closure"},
}

// Steps returns a copy of the pipeline in execution order.
func Steps() []Step {
	steps := make([]Step, len(order))
	copy(steps, order)
	return steps
}

// IDs returns the step ids in execution order.
func IDs() []StepID {
	ids := make([]StepID, len(order))
	for i, s := range order {
		ids[i] = s.ID
	}
	return ids
}

// Len returns the number of pipeline steps.
func Len() int {
	return len(order)
}

// Position returns the 1-based position of id in the pipeline.
func Position(id StepID) (int, error) {
	for i, s := range order {
		if s.ID == id {
			return i + 1, nil
		}
	}
	return 0, ErrUnknownStep
}

// Title returns the display title for id, or the id itself when unknown.
func Title(id StepID) string {
	for _, s := range order {
		if s.ID == id {
			return s.Title
		}
	}
	return string(id)
}

// IsPreGate reports whether id runs before the approval gate. Pre-gate steps
// may degrade when a collaborator is unavailable; the gate and closure may not.
func IsPreGate(id StepID) bool {
	pos, err := Position(id)
	if err != nil {
		return false
	}
	gate, _ := Position(StepApproval)
	return pos < gate
}

// ValidateOrder checks that completed lists known steps in strictly
// increasing pipeline position, which also rules out duplicates.
func ValidateOrder(completed []StepID) error {
	last := 0
	for _, id := range completed {
		pos, err := Position(id)
		if err != nil {
			return err
		}
		if pos <= last {
			return errors.New("pipeline steps out of order: " + string(id))
		}
		last = pos
	}
	return nil
}
