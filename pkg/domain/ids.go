// Package domain holds typed identifiers shared across the decisioning core.
//
// Every identifier is a distinct named UUID type so a workflow id can never be
// passed where a scoped vault id is expected. Parse* functions are the trust
// boundary: they reject empty, malformed and nil UUIDs with CodeInvalidInput.
package domain

import (
	"github.com/google/uuid"

	dErrors "idv/pkg/domain-errors"
)

type (
	TenantID              uuid.UUID
	WorkflowID            uuid.UUID
	ScopedVaultID         uuid.UUID
	PlaybookID            uuid.UUID
	DecisionIntentID      uuid.UUID
	IdentityDocumentID    uuid.UUID
	SessionID             uuid.UUID
	VerificationRequestID uuid.UUID
	VerificationResultID  uuid.UUID
	RiskSignalID          uuid.UUID
	RuleID                uuid.UUID
	RuleInstanceID        uuid.UUID
	RuleSetResultID       uuid.UUID
)

func parseID[T ~[16]byte](s, kind string) (T, error) {
	var zero T
	if s == "" {
		return zero, dErrors.New(dErrors.CodeInvalidInput, kind+" is required")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return zero, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid "+kind)
	}
	if u == uuid.Nil {
		return zero, dErrors.New(dErrors.CodeInvalidInput, kind+" must not be nil")
	}
	return T(u), nil
}

func ParseTenantID(s string) (TenantID, error)     { return parseID[TenantID](s, "tenant id") }
func ParseWorkflowID(s string) (WorkflowID, error) { return parseID[WorkflowID](s, "workflow id") }
func ParseScopedVaultID(s string) (ScopedVaultID, error) {
	return parseID[ScopedVaultID](s, "scoped vault id")
}
func ParsePlaybookID(s string) (PlaybookID, error) { return parseID[PlaybookID](s, "playbook id") }
func ParseIdentityDocumentID(s string) (IdentityDocumentID, error) {
	return parseID[IdentityDocumentID](s, "identity document id")
}
func ParseSessionID(s string) (SessionID, error) { return parseID[SessionID](s, "session id") }
func ParseRuleID(s string) (RuleID, error)       { return parseID[RuleID](s, "rule id") }

func NewTenantID() TenantID                           { return TenantID(uuid.New()) }
func NewWorkflowID() WorkflowID                       { return WorkflowID(uuid.New()) }
func NewScopedVaultID() ScopedVaultID                 { return ScopedVaultID(uuid.New()) }
func NewPlaybookID() PlaybookID                       { return PlaybookID(uuid.New()) }
func NewDecisionIntentID() DecisionIntentID           { return DecisionIntentID(uuid.New()) }
func NewIdentityDocumentID() IdentityDocumentID       { return IdentityDocumentID(uuid.New()) }
func NewSessionID() SessionID                         { return SessionID(uuid.New()) }
func NewVerificationRequestID() VerificationRequestID { return VerificationRequestID(uuid.New()) }
func NewVerificationResultID() VerificationResultID   { return VerificationResultID(uuid.New()) }
func NewRiskSignalID() RiskSignalID                   { return RiskSignalID(uuid.New()) }
func NewRuleID() RuleID                               { return RuleID(uuid.New()) }
func NewRuleInstanceID() RuleInstanceID               { return RuleInstanceID(uuid.New()) }
func NewRuleSetResultID() RuleSetResultID             { return RuleSetResultID(uuid.New()) }

func (id TenantID) String() string              { return uuid.UUID(id).String() }
func (id WorkflowID) String() string            { return uuid.UUID(id).String() }
func (id ScopedVaultID) String() string         { return uuid.UUID(id).String() }
func (id PlaybookID) String() string            { return uuid.UUID(id).String() }
func (id DecisionIntentID) String() string      { return uuid.UUID(id).String() }
func (id IdentityDocumentID) String() string    { return uuid.UUID(id).String() }
func (id SessionID) String() string             { return uuid.UUID(id).String() }
func (id VerificationRequestID) String() string { return uuid.UUID(id).String() }
func (id VerificationResultID) String() string  { return uuid.UUID(id).String() }
func (id RiskSignalID) String() string          { return uuid.UUID(id).String() }
func (id RuleID) String() string                { return uuid.UUID(id).String() }
func (id RuleInstanceID) String() string        { return uuid.UUID(id).String() }
func (id RuleSetResultID) String() string       { return uuid.UUID(id).String() }

func (id TenantID) IsNil() bool              { return uuid.UUID(id) == uuid.Nil }
func (id WorkflowID) IsNil() bool            { return uuid.UUID(id) == uuid.Nil }
func (id ScopedVaultID) IsNil() bool         { return uuid.UUID(id) == uuid.Nil }
func (id PlaybookID) IsNil() bool            { return uuid.UUID(id) == uuid.Nil }
func (id DecisionIntentID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }
func (id IdentityDocumentID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id SessionID) IsNil() bool             { return uuid.UUID(id) == uuid.Nil }
func (id VerificationResultID) IsNil() bool  { return uuid.UUID(id) == uuid.Nil }
func (id VerificationRequestID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id RuleID) IsNil() bool                { return uuid.UUID(id) == uuid.Nil }

func ParseDecisionIntentID(s string) (DecisionIntentID, error) {
	return parseID[DecisionIntentID](s, "decision intent id")
}
func ParseRuleInstanceID(s string) (RuleInstanceID, error) {
	return parseID[RuleInstanceID](s, "rule instance id")
}

func (id RiskSignalID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id RuleInstanceID) IsNil() bool  { return uuid.UUID(id) == uuid.Nil }
func (id RuleSetResultID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
