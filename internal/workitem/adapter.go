// Package workitem provides uniform access to tracked work items.
//
// The review pipeline reads sprint work items through [Adapter] and writes to
// them only during closure. Two backends are provided: [FileAdapter] keeps
// items in a YAML document inside the repository, and [GitHubAdapter] maps a
// sprint onto a GitHub milestone.
//
// Key types:
//   - [WorkItem] - An opaque tracked unit (task, bug, feature, epic)
//   - [Adapter] - Query/get/create/update over work items
//   - [Changes] - Field updates applied by [Adapter.Update]
package workitem

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound is returned by [Adapter.Get] and [Adapter.Update] when the
// work item does not exist.
var ErrNotFound = errors.New("work item not found")

// WorkItem is a single tracked unit of work.
type WorkItem struct {
	ID        string `json:"id" yaml:"id"`
	Type      string `json:"type" yaml:"type"`
	State     string `json:"state" yaml:"state"`
	Title     string `json:"title" yaml:"title"`
	ParentID  string `json:"parent_id,omitempty" yaml:"parent_id,omitempty"`
	Iteration string `json:"iteration,omitempty" yaml:"iteration,omitempty"`
}

// Changes holds the fields to update on a work item. Empty fields are left
// unchanged.
type Changes struct {
	State string
	Title string
}

// IsEmpty reports whether c changes nothing.
func (c Changes) IsEmpty() bool {
	return c.State == "" && c.Title == ""
}

// apply returns item with c applied.
func (c Changes) apply(item WorkItem) WorkItem {
	if c.State != "" {
		item.State = c.State
	}
	if c.Title != "" {
		item.Title = c.Title
	}
	return item
}

// Adapter is the work tracking collaborator used by the review pipeline.
//
// Implementations must not retain or mutate returned slices after returning
// them; the pipeline stores them as evidence.
type Adapter interface {
	// Query returns every work item assigned to the given sprint.
	Query(ctx context.Context, sprint string) ([]WorkItem, error)

	// Get returns a single item or [ErrNotFound].
	Get(ctx context.Context, id string) (WorkItem, error)

	// Create adds a new item and returns it with its assigned id.
	Create(ctx context.Context, item WorkItem) (WorkItem, error)

	// Update applies changes and returns the updated item.
	Update(ctx context.Context, id string, changes Changes) (WorkItem, error)
}

// UnavailableError wraps an adapter failure so callers can distinguish a
// collaborator outage from a fault in their own logic.
type UnavailableError struct {
	Platform string
	Err      error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("%s work tracking unavailable: %v", e.Platform, e.Err)
}

func (e *UnavailableError) Unwrap() error {
	return e.Err
}
