package evidence

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sprintgate/internal/pipeline"
	"sprintgate/internal/workitem"
)

func preGate() []Value {
	return []Value{
		Metrics{TotalItems: 2, CompletedItems: 1, CompletionRate: 50},
		Analysis{ByType: map[string]int{"Task": 2}, ByState: map[string]int{"Done": 1, "Active": 1}, Total: 2},
		Categories{Count: 1, Epics: []workitem.WorkItem{{ID: "7", Type: "Epic", State: "Done"}}},
		Verification{ReportsFound: 0},
		Reviews{QA: Review{Recommendation: RecommendBlock}, Source: SourceHeuristic},
		Recommendation{Recommendation: RecommendConditional, CompletionRate: 50},
	}
}

func TestStore_PutInOrder(t *testing.T) {
	store := NewStore()
	for _, v := range preGate() {
		require.NoError(t, store.Put(v))
	}

	assert.Equal(t, 6, store.Len())
	assert.Equal(t, []pipeline.StepID{
		pipeline.StepMetrics,
		pipeline.StepAnalysis,
		pipeline.StepCategories,
		pipeline.StepVerification,
		pipeline.StepReviews,
		pipeline.StepRecommendation,
	}, store.Completed())

	metrics, ok := store.Metrics()
	require.True(t, ok)
	assert.Equal(t, 50.0, metrics.CompletionRate)

	_, ok = store.Approval()
	assert.False(t, ok)
}

func TestStore_RejectsDuplicate(t *testing.T) {
	store := NewStore()
	require.NoError(t, store.Put(Metrics{TotalItems: 1}))

	err := store.Put(Metrics{TotalItems: 99})

	assert.ErrorIs(t, err, ErrDuplicate)
	metrics, _ := store.Metrics()
	assert.Equal(t, 1, metrics.TotalItems, "first value must be kept")
}

func TestStore_RejectsOutOfOrder(t *testing.T) {
	store := NewStore()
	require.NoError(t, store.Put(Categories{}))

	err := store.Put(Metrics{})

	assert.ErrorIs(t, err, ErrOutOfOrder)
	assert.Equal(t, []pipeline.StepID{pipeline.StepCategories}, store.Completed())
}

func TestStore_ClosureRequiresApproval(t *testing.T) {
	tests := []struct {
		name     string
		decision *ApprovalDecision
		wantErr  error
	}{
		{name: "no decision", decision: nil, wantErr: ErrGateRequired},
		{name: "denied", decision: &ApprovalDecision{Approved: false, RawResponse: "no"}, wantErr: ErrGateRequired},
		{name: "interrupted", decision: &ApprovalDecision{Interrupted: true}, wantErr: ErrGateRequired},
		{name: "approved", decision: &ApprovalDecision{Approved: true, RawResponse: "yes"}, wantErr: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewStore()
			for _, v := range preGate() {
				require.NoError(t, store.Put(v))
			}
			if tt.decision != nil {
				require.NoError(t, store.Put(*tt.decision))
			}

			err := store.Put(Closure{EpicsClosed: 1})

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.False(t, store.Has(pipeline.StepClosure))
				return
			}
			require.NoError(t, err)
			assert.True(t, store.Has(pipeline.StepClosure))
		})
	}
}

func TestStore_MarshalJSON_PreservesOrder(t *testing.T) {
	store := NewStore()
	for _, v := range preGate() {
		require.NoError(t, store.Put(v))
	}
	require.NoError(t, store.Put(ApprovalDecision{
		Approved:    true,
		RawResponse: "yes",
		DecidedAt:   time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
	}))

	data, err := json.Marshal(store)
	require.NoError(t, err)

	text := string(data)
	last := -1
	for _, id := range store.Completed() {
		idx := strings.Index(text, `"`+string(id)+`"`)
		require.NotEqual(t, -1, idx, "missing %s", id)
		assert.Greater(t, idx, last, "%s out of order", id)
		last = idx
	}

	var decoded map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.JSONEq(t, `{"approved":true,"response":"yes","timestamp":"2026-03-02T10:00:00Z"}`, string(decoded["7-approval"]))
}

func TestStore_MarshalJSON_Empty(t *testing.T) {
	data, err := json.Marshal(NewStore())
	require.NoError(t, err)
	assert.Equal(t, "{}", string(data))
}

func TestDegraded(t *testing.T) {
	d := Degraded(errors.New("tracker offline"))
	assert.Equal(t, "tracker offline", d.Reason)

	data, err := json.Marshal(Metrics{Degraded: d})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"degraded":{"reason":"tracker offline"}`)
}

func TestIsAffirmative(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"APPROVE", true},
		{"approve", true},
		{" Approve with notes", true},
		{"APPROVE_WITH_CONDITIONS", true},
		{"CONDITIONAL", false},
		{"BLOCK", false},
		{"UNAVAILABLE", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, IsAffirmative(tt.input))
		})
	}
}

func TestReviews_All(t *testing.T) {
	r := Reviews{
		QA:          Review{Recommendation: "A"},
		Security:    Review{Recommendation: "B"},
		Engineering: Review{Recommendation: "C"},
	}
	all := r.All()
	require.Len(t, all, 3)
	assert.Equal(t, "A", all[0].Recommendation)
	assert.Equal(t, "C", all[2].Recommendation)
}
