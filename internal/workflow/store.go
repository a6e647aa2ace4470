package workflow

import (
	"context"

	id "idv/pkg/domain"
)

// TransitionFunc computes the next persisted workflow and its event from the
// locked current row. ctx carries the transaction the writes join.
type TransitionFunc func(ctx context.Context, current Workflow) (Workflow, Event, error)

// Store persists workflows and their event log.
type Store interface {
	Create(ctx context.Context, wf Workflow) error
	Get(ctx context.Context, workflowID id.WorkflowID) (Workflow, error)
	Events(ctx context.Context, workflowID id.WorkflowID) ([]Event, error)
	// Transition locks the workflow, runs fn and, when fn succeeds, writes
	// the returned state and appends the event atomically. A failing fn
	// leaves the row and the log untouched.
	Transition(ctx context.Context, workflowID id.WorkflowID, fn TransitionFunc) (Workflow, error)
}
