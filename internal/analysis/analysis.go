// Package analysis produces the three reviewer judgments of a sprint review.
//
// A [Strategy] turns the evidence of the first four steps into an
// [evidence.Reviews] value. Three strategies exist and are selected by
// configuration:
//
//   - [Heuristic] derives recommendations from the completion rate alone and
//     never fails. It is the default and the fallback of [Handoff].
//   - [Direct] asks a [Provider] (the Anthropic API or the Claude CLI) once
//     and records its answer verbatim.
//   - [Handoff] writes a request file and waits, bounded by a timeout, for an
//     analyst to drop a response file next to it.
//
// [Synthesize] folds the three judgments into the overall recommendation.
package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"sprintgate/internal/evidence"
)

// ErrInvalidResponse is returned when a provider or analyst response does not
// have the three-reviewer shape.
var ErrInvalidResponse = errors.New("invalid review response")

// ErrNoProvider is recorded when the direct strategy has no usable provider.
var ErrNoProvider = errors.New("no analysis provider configured")

// Instruction is the fixed request sent with every evidence snapshot.
const Instruction = "Please provide QA, Security, and Engineering reviews for this sprint"

// Snapshot is the evidence reviewers judge: everything recorded before the
// review step.
type Snapshot struct {
	Subject      string                `json:"sprint"`
	Metrics      evidence.Metrics      `json:"metrics"`
	Analysis     evidence.Analysis     `json:"analysis"`
	Categories   evidence.Categories   `json:"epics"`
	Verification evidence.Verification `json:"tests"`
}

// Strategy produces the reviews for a snapshot.
//
// Collaborator failures are reported inside the returned value as a
// [evidence.Degradation]. A non-nil error means the run itself must stop,
// such as a cancelled context.
type Strategy interface {
	Review(ctx context.Context, snap Snapshot) (evidence.Reviews, error)
}

// Provider is a synchronous analysis backend used by [Direct].
type Provider interface {
	Analyze(ctx context.Context, snap Snapshot) (evidence.Reviews, error)
}

// reviewPayload accepts the analyst response shape. The detail text may come
// under "detail" or any of the per-role legacy keys.
type reviewPayload struct {
	Recommendation string `json:"recommendation"`
	Detail         string `json:"detail"`
	Notes          string `json:"notes"`
	Score          string `json:"score"`
	Readiness      string `json:"readiness"`
}

func (p *reviewPayload) review() evidence.Review {
	detail := p.Detail
	for _, alt := range []string{p.Notes, p.Score, p.Readiness} {
		if detail == "" {
			detail = alt
		}
	}
	return evidence.Review{
		Recommendation: strings.ToUpper(strings.TrimSpace(p.Recommendation)),
		Detail:         detail,
	}
}

// ParseReviews decodes a response with "qa", "security" and "engineering"
// keys. Each role must carry a recommendation token; tokens are upper-cased.
func ParseReviews(data []byte) (evidence.Reviews, error) {
	var raw struct {
		QA          *reviewPayload `json:"qa"`
		Security    *reviewPayload `json:"security"`
		Engineering *reviewPayload `json:"engineering"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return evidence.Reviews{}, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}

	roles := []struct {
		name    string
		payload *reviewPayload
	}{
		{"qa", raw.QA},
		{"security", raw.Security},
		{"engineering", raw.Engineering},
	}
	for _, role := range roles {
		if role.payload == nil {
			return evidence.Reviews{}, fmt.Errorf("%w: missing %s review", ErrInvalidResponse, role.name)
		}
		if strings.TrimSpace(role.payload.Recommendation) == "" {
			return evidence.Reviews{}, fmt.Errorf("%w: %s review has no recommendation", ErrInvalidResponse, role.name)
		}
	}

	return evidence.Reviews{
		QA:          raw.QA.review(),
		Security:    raw.Security.review(),
		Engineering: raw.Engineering.review(),
	}, nil
}

// extractJSON returns the outermost JSON object in text. Model answers often
// wrap the object in prose or a code fence.
func extractJSON(text string) (string, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return "", fmt.Errorf("%w: no JSON object in response", ErrInvalidResponse)
	}
	return text[start : end+1], nil
}

// parseAnswer extracts and decodes the reviews embedded in a model answer.
func parseAnswer(text string) (evidence.Reviews, error) {
	object, err := extractJSON(text)
	if err != nil {
		return evidence.Reviews{}, err
	}
	return ParseReviews([]byte(object))
}

// BuildPrompt renders the analysis request sent to model providers.
func BuildPrompt(snap Snapshot) (string, error) {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode snapshot: %w", err)
	}

	var b strings.Builder
	b.WriteString(Instruction)
	b.WriteString(".\n\nSprint evidence:\n")
	b.Write(data)
	b.WriteString("\n\n")
	b.WriteString(responseFormat)
	return b.String(), nil
}

// responseFormat tells the analyst or model what to return.
const responseFormat = `Respond with a single JSON object and nothing else:
{
  "qa": {"recommendation": "APPROVE|BLOCK", "detail": "..."},
  "security": {"recommendation": "APPROVE|BLOCK", "detail": "..."},
  "engineering": {"recommendation": "APPROVE|CONDITIONAL", "detail": "..."}
}`

// Unavailable returns the reviews recorded when a provider could not answer.
// Every role reports UNAVAILABLE, so synthesis can never approve.
func Unavailable(source string, err error) evidence.Reviews {
	review := evidence.Review{
		Recommendation: evidence.RecommendUnavailable,
		Detail:         err.Error(),
	}
	return evidence.Reviews{
		QA:          review,
		Security:    review,
		Engineering: review,
		Source:      source,
		Degraded:    evidence.Degraded(err),
	}
}

// Synthesize computes the overall recommendation: APPROVE when every reviewer
// approves, otherwise CONDITIONAL.
func Synthesize(reviews evidence.Reviews, completionRate float64) evidence.Recommendation {
	roles := []struct {
		name   string
		review evidence.Review
	}{
		{"qa", reviews.QA},
		{"security", reviews.Security},
		{"engineering", reviews.Engineering},
	}

	var concerns []string
	for _, role := range roles {
		if !evidence.IsAffirmative(role.review.Recommendation) {
			concerns = append(concerns, fmt.Sprintf("%s: %s", role.name, role.review.Recommendation))
		}
	}

	if len(concerns) == 0 {
		return evidence.Recommendation{
			Recommendation: evidence.RecommendApprove,
			Rationale:      "All reviews passed - sprint is ready for closure",
			CompletionRate: completionRate,
		}
	}
	return evidence.Recommendation{
		Recommendation: evidence.RecommendConditional,
		Rationale:      fmt.Sprintf("Some reviews have concerns (%s) - review carefully", strings.Join(concerns, ", ")),
		CompletionRate: completionRate,
	}
}
