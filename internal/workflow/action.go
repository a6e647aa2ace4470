package workflow

import (
	id "idv/pkg/domain"
)

// ActionKind names an action in transition tables and events.
type ActionKind string

const (
	ActionAuthorize       ActionKind = "authorize"
	ActionDocCollected    ActionKind = "doc_collected"
	ActionBoKycCompleted  ActionKind = "bo_kyc_completed"
	ActionMakeVendorCalls ActionKind = "make_vendor_calls"
	ActionMakeDecision    ActionKind = "make_decision"
)

// Action is the only legal input to a transition. The set is closed.
type Action interface {
	Kind() ActionKind
	isAction()
}

// Authorize is sent when the applicant finishes data collection.
type Authorize struct{}

// DocCollected reports an identity document that finished verification.
type DocCollected struct {
	DocumentID id.IdentityDocumentID
}

// BoKycCompleted reports that every beneficial owner finished KYC.
type BoKycCompleted struct{}

// MakeVendorCalls runs the vendor calls of the current stage.
type MakeVendorCalls struct{}

// MakeDecision applies Decision, or computes one when it is nil.
type MakeDecision struct {
	Decision *Decision
}

func (Authorize) Kind() ActionKind       { return ActionAuthorize }
func (DocCollected) Kind() ActionKind    { return ActionDocCollected }
func (BoKycCompleted) Kind() ActionKind  { return ActionBoKycCompleted }
func (MakeVendorCalls) Kind() ActionKind { return ActionMakeVendorCalls }
func (MakeDecision) Kind() ActionKind    { return ActionMakeDecision }

func (Authorize) isAction()       {}
func (DocCollected) isAction()    {}
func (BoKycCompleted) isAction()  {}
func (MakeVendorCalls) isAction() {}
func (MakeDecision) isAction()    {}
