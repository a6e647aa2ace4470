package audit

import (
	"context"
	"time"

	id "idv/pkg/domain"
)

// EventCategory classifies audit events by retention and routing.
type EventCategory string

const (
	// CategoryCompliance covers events with regulatory significance. They are
	// written fail-closed in the same transaction as the change they describe.
	CategoryCompliance EventCategory = "compliance"

	// CategoryOperations covers events kept for operational visibility only.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture a key action.
type Event struct {
	Category  EventCategory
	Timestamp time.Time
	TenantID  id.TenantID
	// Subject is the entity the event is about, usually a workflow or rule id.
	Subject  string
	Action   string
	Decision string
	Reason   string
	// Digest is the canonical hash of the snapshot the event refers to.
	Digest    string
	RequestID string
	ActorID   string
}

type AuditEvent string

const (
	EventDecisionMade         AuditEvent = "decision_made"
	EventRuleVersionCreated   AuditEvent = "rule_version_created"
	EventRuleDeactivated      AuditEvent = "rule_deactivated"
	EventDocumentHardErrored  AuditEvent = "document_hard_errored"
	EventWorkflowTransitioned AuditEvent = "workflow_transitioned"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventDecisionMade:         CategoryCompliance,
	EventRuleVersionCreated:   CategoryCompliance,
	EventRuleDeactivated:      CategoryCompliance,
	EventDocumentHardErrored:  CategoryCompliance,
	EventWorkflowTransitioned: CategoryOperations,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// ComplianceEvent is the input to the fail-closed compliance publisher.
type ComplianceEvent struct {
	Timestamp time.Time
	TenantID  id.TenantID
	Subject   string
	Action    AuditEvent
	Decision  string
	Reason    string
	Digest    string
	RequestID string
	ActorID   string
}

// ToEvent converts to the stored Event shape.
func (e ComplianceEvent) ToEvent() Event {
	return Event{
		Category:  CategoryCompliance,
		Timestamp: e.Timestamp,
		TenantID:  e.TenantID,
		Subject:   e.Subject,
		Action:    string(e.Action),
		Decision:  e.Decision,
		Reason:    e.Reason,
		Digest:    e.Digest,
		RequestID: e.RequestID,
		ActorID:   e.ActorID,
	}
}

// Store persists audit events. Implementations join the caller's
// transaction when one is present in ctx.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListBySubject(ctx context.Context, subject string) ([]Event, error)
}
