// Package onboarding holds the transition bodies of the Kyc, Kyb and
// Document workflows. The engine validates every action against its table;
// the handlers here pick the next state, make the vendor calls a state
// needs and ask the decision service for a decision.
package onboarding

import (
	"context"
	"errors"
	"log/slog"

	id "idv/pkg/domain"
	dErrors "idv/pkg/domain-errors"
	"idv/pkg/platform/sentinel"

	"idv/internal/platform/flags"
	"idv/internal/playbook"
	"idv/internal/vault"
	"idv/internal/vendor"
	"idv/internal/workflow"
)

// Decider produces the decision of a workflow in its Decisioning state.
type Decider interface {
	Decide(ctx context.Context, wf workflow.Workflow) (workflow.Decision, error)
}

// VendorCaller runs an ordered vendor chain and stores its signals.
type VendorCaller interface {
	CallChain(ctx context.Context, apis []vendor.API, call vendor.Call) (*vendor.Outcome, error)
}

// PlaybookProvider returns a playbook configuration snapshot.
type PlaybookProvider interface {
	Config(ctx context.Context, tenantID id.TenantID, playbookID id.PlaybookID) (playbook.Config, error)
}

// DataDecryptor reads the vault data sent to vendors.
type DataDecryptor interface {
	Decrypt(ctx context.Context, vaultID id.ScopedVaultID, ids []vault.DataIdentifier) (map[vault.DataIdentifier]string, error)
}

// Deps are shared by every handler.
type Deps struct {
	Playbooks PlaybookProvider
	Vault     DataDecryptor
	Decider   Decider
	// Vendors serves live runs and Sandbox serves sandbox runs. Sandbox
	// falls back to Vendors when nil.
	Vendors VendorCaller
	Sandbox VendorCaller
	// Calls is the vendor request log, read to avoid repeating calls
	// that already succeeded.
	Calls    vendor.Store
	KycChain []vendor.API
	Flags    flags.Flags
	Logger   *slog.Logger
}

// Handlers builds the handler of every workflow kind.
func Handlers(deps Deps) (map[workflow.Kind]workflow.Handler, error) {
	if deps.Playbooks == nil || deps.Vault == nil || deps.Decider == nil || deps.Vendors == nil || deps.Calls == nil {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "onboarding handlers need playbooks, vault, decider, vendors and the call log")
	}
	if len(deps.KycChain) == 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "kyc vendor chain is empty")
	}
	if deps.Flags == nil {
		deps.Flags = flags.NewStatic()
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	b := &base{deps: deps}
	return map[workflow.Kind]workflow.Handler{
		workflow.KindKyc:      &KycHandler{base: b},
		workflow.KindKyb:      &KybHandler{base: b},
		workflow.KindDocument: &DocumentHandler{base: b},
	}, nil
}

var _ VendorCaller = (*vendor.Caller)(nil)

func translate(err error, msg string) error {
	var de *dErrors.Error
	switch {
	case errors.As(err, &de):
		return err
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(err, dErrors.CodeNotFound, msg)
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(err, dErrors.CodeConflict, msg)
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, msg)
}
