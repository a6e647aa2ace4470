// Package webhook delivers onboarding events to tenants. Delivery is a side
// effect of a committed transition and never fails the caller.
package webhook

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	id "idv/pkg/domain"
)

// Kind names the event type tenants subscribe to.
type Kind string

const (
	KindOnboardingStatusChanged Kind = "onboarding.status_changed"
	KindOnboardingCompleted     Kind = "onboarding.completed"
	KindManualReviewCreated     Kind = "manual_review.created"
)

// Event is one webhook payload.
type Event struct {
	ID            string            `json:"id"`
	Kind          Kind              `json:"kind"`
	TenantID      id.TenantID       `json:"tenant_id"`
	WorkflowID    id.WorkflowID     `json:"workflow_id"`
	ScopedVaultID id.ScopedVaultID  `json:"scoped_vault_id"`
	Status        string            `json:"status,omitempty"`
	Data          map[string]string `json:"data,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
}

// NewEvent stamps an event with a fresh id.
func NewEvent(kind Kind, tenantID id.TenantID, workflowID id.WorkflowID, vaultID id.ScopedVaultID, now time.Time) Event {
	return Event{
		ID:            uuid.NewString(),
		Kind:          kind,
		TenantID:      tenantID,
		WorkflowID:    workflowID,
		ScopedVaultID: vaultID,
		CreatedAt:     now,
	}
}

// Enqueuer accepts events for asynchronous delivery.
type Enqueuer interface {
	Enqueue(ctx context.Context, events ...Event)
}

// MemoryEnqueuer records events in process.
type MemoryEnqueuer struct {
	mu     sync.Mutex
	events []Event
}

func NewMemoryEnqueuer() *MemoryEnqueuer {
	return &MemoryEnqueuer{}
}

func (m *MemoryEnqueuer) Enqueue(_ context.Context, events ...Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, events...)
}

// Events returns a copy of what was enqueued.
func (m *MemoryEnqueuer) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Event(nil), m.events...)
}

// Discard drops every event.
type Discard struct{}

func (Discard) Enqueue(context.Context, ...Event) {}
