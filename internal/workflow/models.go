// Package workflow runs per-applicant onboarding workflows. Each workflow
// kind has a transition table and a Handler that executes transition
// bodies; the Engine applies actions under a row lock and records one event
// per successful transition.
package workflow

import (
	"time"

	"github.com/google/uuid"

	id "idv/pkg/domain"

	"idv/internal/rules"
)

// Kind selects the transition table and handler.
type Kind string

const (
	KindKyc      Kind = "kyc"
	KindKyb      Kind = "kyb"
	KindDocument Kind = "document"
)

// State is the current stage of a workflow, prefixed by its kind.
type State string

const (
	KycDataCollection State = "kyc.data_collection"
	KycDocCollection  State = "kyc.doc_collection"
	KycVendorCalls    State = "kyc.vendor_calls"
	KycDecisioning    State = "kyc.decisioning"
	KycComplete       State = "kyc.complete"

	KybDataCollection State = "kyb.data_collection"
	KybAwaitingBoKyc  State = "kyb.awaiting_bo_kyc"
	KybVendorCalls    State = "kyb.vendor_calls"
	KybDecisioning    State = "kyb.decisioning"
	KybComplete       State = "kyb.complete"

	DocumentDataCollection State = "document.data_collection"
	DocumentDecisioning    State = "document.decisioning"
	DocumentComplete       State = "document.complete"
)

var initialStates = map[Kind]State{
	KindKyc:      KycDataCollection,
	KindKyb:      KybDataCollection,
	KindDocument: DocumentDataCollection,
}

// InitialState is where a new workflow of kind starts.
func (k Kind) InitialState() (State, bool) {
	s, ok := initialStates[k]
	return s, ok
}

// IsTerminal reports whether no further action is accepted.
func (s State) IsTerminal() bool {
	return s == KycComplete || s == KybComplete || s == DocumentComplete
}

// Workflow is one onboarding run for a scoped vault.
type Workflow struct {
	ID               id.WorkflowID
	TenantID         id.TenantID
	ScopedVaultID    id.ScopedVaultID
	PlaybookID       id.PlaybookID
	Kind             Kind
	State            State
	DecisionIntentID id.DecisionIntentID
	// IsRedo marks a rerun that reuses vendor results of a previous run.
	IsRedo bool
	// IsSandbox runs use fixture vendors and never commit data.
	IsSandbox bool
	// DocumentCollected is set once a document was collected in this run.
	DocumentCollected bool
	Decision          *Decision
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// New builds a workflow in its kind's initial state.
func New(kind Kind, tenantID id.TenantID, vaultID id.ScopedVaultID, playbookID id.PlaybookID, now time.Time) (Workflow, error) {
	state, ok := kind.InitialState()
	if !ok {
		return Workflow{}, errUnknownKind(kind)
	}
	return Workflow{
		ID:               id.NewWorkflowID(),
		TenantID:         tenantID,
		ScopedVaultID:    vaultID,
		PlaybookID:       playbookID,
		Kind:             kind,
		State:            state,
		DecisionIntentID: id.NewDecisionIntentID(),
		CreatedAt:        now,
		UpdatedAt:        now,
	}, nil
}

// Event is the append-only record of one transition.
type Event struct {
	ID         uuid.UUID
	WorkflowID id.WorkflowID
	FromState  State
	ToState    State
	Action     ActionKind
	CreatedAt  time.Time
}

// DecisionKind tells whether rules ran for a decision.
type DecisionKind string

const (
	DecisionRulesExecuted    DecisionKind = "rules_executed"
	DecisionRulesNotExecuted DecisionKind = "rules_not_executed"
)

// Decision is the outcome of decisioning fed into MakeDecision.
type Decision struct {
	Kind DecisionKind `json:"kind"`
	// Action is nil when rules ran and none fired, which is a pass.
	Action             *rules.Action      `json:"action,omitempty"`
	CreateManualReview bool               `json:"create_manual_review"`
	ShouldCommit       bool               `json:"should_commit"`
	RuleSetResultID    id.RuleSetResultID `json:"rule_set_result_id"`
}

// Status reports the decision the way webhooks present it.
func (d Decision) Status() string {
	switch {
	case d.Kind == DecisionRulesNotExecuted:
		return "pass"
	case d.Action == nil:
		return "pass"
	case d.Action.Kind == rules.ActionKindFail:
		return "fail"
	case d.Action.IsStepUp():
		return "step_up"
	default:
		return "pending_review"
	}
}
