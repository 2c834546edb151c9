package evidence

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"sprintgate/internal/pipeline"
)

// Sentinel errors returned by [Store.Put].
var (
	// ErrDuplicate means evidence for the step was already recorded.
	ErrDuplicate = errors.New("evidence already recorded for step")

	// ErrOutOfOrder means the step does not come after the last recorded one.
	ErrOutOfOrder = errors.New("evidence recorded out of pipeline order")

	// ErrGateRequired means closure evidence was offered without an
	// approving gate decision.
	ErrGateRequired = errors.New("closure requires an approved gate decision")
)

// Store is the ordered, append-only evidence log of one review run.
//
// Put accepts each step once, only in pipeline order, and only accepts
// closure after an approving gate decision. The order of successful Put
// calls is the run's steps_completed list.
type Store struct {
	order  []pipeline.StepID
	values map[pipeline.StepID]Value
}

// NewStore creates an empty [Store].
func NewStore() *Store {
	return &Store{values: make(map[pipeline.StepID]Value)}
}

// Put records v under its step id.
func (s *Store) Put(v Value) error {
	id := v.Step()
	pos, err := pipeline.Position(id)
	if err != nil {
		return err
	}
	if _, ok := s.values[id]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicate, id)
	}
	if n := len(s.order); n > 0 {
		lastPos, _ := pipeline.Position(s.order[n-1])
		if pos <= lastPos {
			return fmt.Errorf("%w: %s after %s", ErrOutOfOrder, id, s.order[n-1])
		}
	}
	if id == pipeline.StepClosure {
		decision, ok := s.Approval()
		if !ok || !decision.Approved {
			return ErrGateRequired
		}
	}

	s.order = append(s.order, id)
	s.values[id] = v
	return nil
}

// Get returns the evidence recorded for id.
func (s *Store) Get(id pipeline.StepID) (Value, bool) {
	v, ok := s.values[id]
	return v, ok
}

// Has reports whether evidence was recorded for id.
func (s *Store) Has(id pipeline.StepID) bool {
	_, ok := s.values[id]
	return ok
}

// Completed returns the recorded step ids in execution order.
func (s *Store) Completed() []pipeline.StepID {
	out := make([]pipeline.StepID, len(s.order))
	copy(out, s.order)
	return out
}

// Len returns the number of recorded steps.
func (s *Store) Len() int {
	return len(s.order)
}

// Metrics returns the 1-metrics evidence.
func (s *Store) Metrics() (Metrics, bool) {
	v, ok := s.values[pipeline.StepMetrics].(Metrics)
	return v, ok
}

// Analysis returns the 2-analysis evidence.
func (s *Store) Analysis() (Analysis, bool) {
	v, ok := s.values[pipeline.StepAnalysis].(Analysis)
	return v, ok
}

// Categories returns the 3-epics evidence.
func (s *Store) Categories() (Categories, bool) {
	v, ok := s.values[pipeline.StepCategories].(Categories)
	return v, ok
}

// Verification returns the 4-tests evidence.
func (s *Store) Verification() (Verification, bool) {
	v, ok := s.values[pipeline.StepVerification].(Verification)
	return v, ok
}

// Reviews returns the 5-reviews evidence.
func (s *Store) Reviews() (Reviews, bool) {
	v, ok := s.values[pipeline.StepReviews].(Reviews)
	return v, ok
}

// Recommendation returns the 6-recommendation evidence.
func (s *Store) Recommendation() (Recommendation, bool) {
	v, ok := s.values[pipeline.StepRecommendation].(Recommendation)
	return v, ok
}

// Approval returns the 7-approval evidence.
func (s *Store) Approval() (ApprovalDecision, bool) {
	v, ok := s.values[pipeline.StepApproval].(ApprovalDecision)
	return v, ok
}

// Closure returns the 8-closure evidence.
func (s *Store) Closure() (Closure, bool) {
	v, ok := s.values[pipeline.StepClosure].(Closure)
	return v, ok
}

// MarshalJSON encodes the store as a JSON object whose keys appear in
// execution order.
func (s *Store) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, id := range s.order {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(string(id))
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(s.values[id])
		if err != nil {
			return nil, fmt.Errorf("failed to encode evidence %s: %w", id, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
