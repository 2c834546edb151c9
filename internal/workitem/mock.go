package workitem

import (
	"context"
	"fmt"
)

// MockAdapter implements [Adapter] for testing.
//
// Items is the backing store. Set QueryErr, GetErr or UpdateErr to make the
// matching call fail; UpdateErrOn fails Update for a single id only.
type MockAdapter struct {
	Items []WorkItem

	QueryErr    error
	GetErr      error
	CreateErr   error
	UpdateErr   error
	UpdateErrOn string

	// Calls records every method invocation as "Method:arg".
	Calls []string
}

// Query returns the items whose iteration is sprint. Items without an
// iteration match every sprint.
func (m *MockAdapter) Query(ctx context.Context, sprint string) ([]WorkItem, error) {
	m.Calls = append(m.Calls, "Query:"+sprint)
	if m.QueryErr != nil {
		return nil, m.QueryErr
	}
	var out []WorkItem
	for _, item := range m.Items {
		if item.Iteration == "" || item.Iteration == sprint {
			out = append(out, item)
		}
	}
	return out, nil
}

// Get returns the item with id.
func (m *MockAdapter) Get(ctx context.Context, id string) (WorkItem, error) {
	m.Calls = append(m.Calls, "Get:"+id)
	if m.GetErr != nil {
		return WorkItem{}, m.GetErr
	}
	for _, item := range m.Items {
		if item.ID == id {
			return item, nil
		}
	}
	return WorkItem{}, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// Create appends item.
func (m *MockAdapter) Create(ctx context.Context, item WorkItem) (WorkItem, error) {
	m.Calls = append(m.Calls, "Create:"+item.Title)
	if m.CreateErr != nil {
		return WorkItem{}, m.CreateErr
	}
	if item.ID == "" {
		item.ID = nextID(m.Items)
	}
	m.Items = append(m.Items, item)
	return item, nil
}

// Update applies changes to the item with id.
func (m *MockAdapter) Update(ctx context.Context, id string, changes Changes) (WorkItem, error) {
	m.Calls = append(m.Calls, "Update:"+id)
	if m.UpdateErr != nil && (m.UpdateErrOn == "" || m.UpdateErrOn == id) {
		return WorkItem{}, m.UpdateErr
	}
	for i, item := range m.Items {
		if item.ID == id {
			m.Items[i] = changes.apply(item)
			return m.Items[i], nil
		}
	}
	return WorkItem{}, fmt.Errorf("%w: %s", ErrNotFound, id)
}
