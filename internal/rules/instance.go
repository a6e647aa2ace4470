// Package rules evaluates tenant risk rules against canonical reason codes
// and stores their version history.
package rules

import (
	"time"

	id "idv/pkg/domain"
	dErrors "idv/pkg/domain-errors"
)

// Kind scopes a rule to the subject being onboarded.
type Kind string

const (
	KindPerson   Kind = "person"
	KindBusiness Kind = "business"
	KindAny      Kind = "any"
)

// Scope is the subject of one evaluation pass.
type Scope string

const (
	ScopePerson   Scope = "person"
	ScopeBusiness Scope = "business"
)

func (k Kind) applies(s Scope) bool {
	return k == KindAny || string(k) == string(s)
}

// Instance is one version of a logical rule. RuleID is stable across edits;
// each edit appends a new Instance with Version+1 and deactivates the old
// one.
type Instance struct {
	ID            id.RuleInstanceID
	RuleID        id.RuleID
	Version       int
	TenantID      id.TenantID
	PlaybookID    id.PlaybookID
	IsLive        bool
	Name          string
	Expression    Expression
	Action        Action
	Kind          Kind
	IsShadow      bool
	CreatedBy     string
	CreatedAt     time.Time
	DeactivatedAt *time.Time
}

// IsActive reports whether this is the current version.
func (i Instance) IsActive() bool { return i.DeactivatedAt == nil }

// Validate checks the fields a stored rule must carry.
func (i Instance) Validate() error {
	if i.Name == "" {
		return dErrors.New(dErrors.CodeValidation, "rule name is required")
	}
	switch i.Kind {
	case KindPerson, KindBusiness, KindAny:
	default:
		return dErrors.Newf(dErrors.CodeValidation, "unknown rule kind %q", i.Kind)
	}
	if err := i.Action.Validate(); err != nil {
		return err
	}
	return i.Expression.Validate()
}

// global rules carry no tenant or playbook and apply everywhere; the
// embedded baseline is the only source of them.
func (i Instance) global() bool {
	return i.TenantID.IsNil() && i.PlaybookID.IsNil()
}
