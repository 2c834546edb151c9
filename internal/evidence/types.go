// Package evidence holds the structured output of each review step.
//
// Every pipeline step produces exactly one evidence value, and each step has
// its own Go type, so consumers know the shape of what they read. The
// [Store] keeps values in execution order and never replaces one once written.
//
// Key types:
//   - [Value] - Implemented by every per-step evidence type
//   - [Store] - Ordered, append-only evidence log
//   - [Degradation] - Marks a value substituted because a collaborator failed
package evidence

import (
	"strings"
	"time"

	"sprintgate/internal/pipeline"
	"sprintgate/internal/workitem"
)

// Value is the evidence produced by a single pipeline step.
type Value interface {
	// Step returns the pipeline step this value belongs to.
	Step() pipeline.StepID
}

// Degradation marks an evidence value that was substituted because an
// external collaborator was unavailable or failed.
type Degradation struct {
	Reason string `json:"reason"`
}

// Degraded returns a [Degradation] for err.
func Degraded(err error) *Degradation {
	return &Degradation{Reason: err.Error()}
}

// Metrics is the evidence of step 1-metrics.
type Metrics struct {
	TotalItems     int                 `json:"total_tasks"`
	CompletedItems int                 `json:"completed_tasks"`
	CompletionRate float64             `json:"completion_rate"`
	WorkItems      []workitem.WorkItem `json:"work_items,omitempty"`
	Degraded       *Degradation        `json:"degraded,omitempty"`
}

func (Metrics) Step() pipeline.StepID { return pipeline.StepMetrics }

// Analysis is the evidence of step 2-analysis.
type Analysis struct {
	ByType   map[string]int `json:"by_type"`
	ByState  map[string]int `json:"by_state"`
	Total    int            `json:"total"`
	Note     string         `json:"note,omitempty"`
	Degraded *Degradation   `json:"degraded,omitempty"`
}

func (Analysis) Step() pipeline.StepID { return pipeline.StepAnalysis }

// Categories is the evidence of step 3-epics: the completed epics of the
// sprint, which closure later acts on.
type Categories struct {
	Count    int                 `json:"count"`
	Epics    []workitem.WorkItem `json:"epics"`
	Degraded *Degradation        `json:"degraded,omitempty"`
}

func (Categories) Step() pipeline.StepID { return pipeline.StepCategories }

// Verification is the evidence of step 4-tests.
type Verification struct {
	ReportsFound int      `json:"reports_found"`
	ReportFiles  []string `json:"report_files,omitempty"`

	// VerifiedEpics were re-read from the tracker and confirmed done.
	VerifiedEpics []string `json:"verified_epics,omitempty"`

	// MismatchedEpics were re-read from the tracker and are no longer done.
	MismatchedEpics []string `json:"mismatched_epics,omitempty"`

	Note     string       `json:"note,omitempty"`
	Degraded *Degradation `json:"degraded,omitempty"`
}

func (Verification) Step() pipeline.StepID { return pipeline.StepVerification }

// Recommendation tokens produced by reviewers and by synthesis.
const (
	RecommendApprove     = "APPROVE"
	RecommendBlock       = "BLOCK"
	RecommendConditional = "CONDITIONAL"
	RecommendUnavailable = "UNAVAILABLE"
)

// IsAffirmative reports whether a recommendation token approves. Tokens are
// compared case-insensitively by prefix, so "approve" and
// "APPROVE_WITH_NOTES" both count.
func IsAffirmative(recommendation string) bool {
	return strings.HasPrefix(strings.ToUpper(strings.TrimSpace(recommendation)), RecommendApprove)
}

// Review is one reviewer's judgment.
type Review struct {
	Recommendation string `json:"recommendation"`
	Detail         string `json:"detail"`
}

// Review sources recorded on [Reviews].
const (
	SourceHeuristic       = "heuristic"
	SourceDirect          = "direct"
	SourceHandoff         = "handoff"
	SourceHandoffFallback = "handoff-fallback"
)

// Reviews is the evidence of step 5-reviews: three independent judgments.
type Reviews struct {
	QA          Review       `json:"qa"`
	Security    Review       `json:"security"`
	Engineering Review       `json:"engineering"`
	Source      string       `json:"source,omitempty"`
	Degraded    *Degradation `json:"degraded,omitempty"`
}

func (Reviews) Step() pipeline.StepID { return pipeline.StepReviews }

// All returns the three reviews in display order.
func (r Reviews) All() []Review {
	return []Review{r.QA, r.Security, r.Engineering}
}

// Recommendation is the evidence of step 6-recommendation.
type Recommendation struct {
	Recommendation string  `json:"recommendation"`
	Rationale      string  `json:"rationale"`
	CompletionRate float64 `json:"completion_rate"`
}

func (Recommendation) Step() pipeline.StepID { return pipeline.StepRecommendation }

// ApprovalDecision is the evidence of step 7-approval.
type ApprovalDecision struct {
	Approved    bool      `json:"approved"`
	RawResponse string    `json:"response"`
	DecidedAt   time.Time `json:"timestamp"`

	// Interrupted is set when the operator aborted instead of answering.
	Interrupted bool `json:"interrupted,omitempty"`
}

func (ApprovalDecision) Step() pipeline.StepID { return pipeline.StepApproval }

// Closure is the evidence of step 8-closure.
type Closure struct {
	ItemsReviewed int      `json:"items_reviewed"`
	EpicsClosed   int      `json:"epics_closed"`
	EpicIDs       []string `json:"epic_ids,omitempty"`
	ReportPath    string   `json:"report_path,omitempty"`
	Note          string   `json:"note,omitempty"`

	// Partial is set when closure stopped after mutating some items. Such
	// a value is never stored as step evidence; the audit record carries it.
	Partial  bool   `json:"partial,omitempty"`
	FailedID string `json:"failed_id,omitempty"`
	Error    string `json:"error,omitempty"`
}

func (Closure) Step() pipeline.StepID { return pipeline.StepClosure }
