package onboarding

import (
	"context"
	"errors"
	"fmt"

	dErrors "idv/pkg/domain-errors"
	"idv/pkg/platform/sentinel"
	txcontext "idv/pkg/platform/tx"
	"idv/pkg/requestcontext"

	"idv/internal/platform/flags"
	"idv/internal/playbook"
	"idv/internal/vault"
	"idv/internal/vendor"
	"idv/internal/webhook"
	"idv/internal/workflow"
)

var (
	personFields = []vault.DataIdentifier{
		vault.IDFirstName,
		vault.IDLastName,
		vault.IDDob,
		vault.IDSsn9,
		vault.IDAddressLine1,
		vault.IDZip,
		vault.IDCountry,
		vault.IDPhoneNumber,
		vault.IDEmail,
	}
	businessFields = []vault.DataIdentifier{vault.BusinessName, vault.BusinessTin}
	sandboxFields  = []vault.DataIdentifier{vault.SandboxOutcome, vault.SandboxCodes}

	amlChain = []vendor.API{vendor.IncodeWatchlistCheck}
	kybChain = []vendor.API{vendor.MiddeskBusinessVerification}
)

type base struct {
	deps Deps
}

func (b *base) config(ctx context.Context, wf workflow.Workflow) (playbook.Config, error) {
	cfg, err := b.deps.Playbooks.Config(ctx, wf.TenantID, wf.PlaybookID)
	if err != nil {
		return playbook.Config{}, translate(err, "failed to load playbook")
	}
	return cfg, nil
}

func (b *base) needsAml(wf workflow.Workflow, cfg playbook.Config) bool {
	return cfg.EnhancedAml || b.deps.Flags.IsOn(flags.KycEnhancedAmlForce, wf.TenantID)
}

// runChain calls apis unless one of them already succeeded for this
// decision intent, so a resumed or stepped-up run does not pay twice.
func (b *base) runChain(ctx context.Context, wf workflow.Workflow, apis []vendor.API, fields []vault.DataIdentifier) error {
	done, err := b.succeeded(ctx, wf, apis)
	if err != nil {
		return err
	}
	if done {
		b.deps.Logger.InfoContext(ctx, "vendor chain already succeeded, skipping",
			"workflow_id", wf.ID.String(),
			"apis", apis,
		)
		return nil
	}

	if wf.IsSandbox {
		fields = append(append([]vault.DataIdentifier(nil), fields...), sandboxFields...)
	}
	data, err := b.deps.Vault.Decrypt(txcontext.Detach(ctx), wf.ScopedVaultID, fields)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to decrypt vendor data")
	}
	payload := make(map[string]string, len(data))
	for k, v := range data {
		payload[string(k)] = v
	}

	_, err = b.caller(wf).CallChain(ctx, apis, vendor.Call{
		ScopedVaultID:    wf.ScopedVaultID,
		DecisionIntentID: wf.DecisionIntentID,
		Data:             payload,
	})
	return err
}

func (b *base) caller(wf workflow.Workflow) VendorCaller {
	if wf.IsSandbox && b.deps.Sandbox != nil {
		return b.deps.Sandbox
	}
	return b.deps.Vendors
}

func (b *base) succeeded(ctx context.Context, wf workflow.Workflow, apis []vendor.API) (bool, error) {
	attempts, err := b.deps.Calls.ListByIntent(txcontext.Detach(ctx), wf.DecisionIntentID)
	if err != nil {
		return false, translate(err, "failed to load vendor calls")
	}
	for _, a := range attempts {
		if a.Result == nil || a.Result.IsError {
			continue
		}
		for _, api := range apis {
			if a.Request.API == api {
				return true, nil
			}
		}
	}
	return false, nil
}

// hasPriorResults reports whether the vault has a successful call to any
// of apis from an earlier run.
func (b *base) hasPriorResults(ctx context.Context, wf workflow.Workflow, apis []vendor.API) (bool, error) {
	_, err := b.deps.Calls.LatestSuccessful(txcontext.Detach(ctx), wf.ScopedVaultID, apis)
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return false, nil
	case err != nil:
		return false, translate(err, "failed to load prior vendor results")
	}
	return true, nil
}

// decide applies a supplied decision or computes one.
func (b *base) decide(ctx context.Context, wf workflow.Workflow, action workflow.Action) (workflow.Decision, error) {
	md, ok := action.(workflow.MakeDecision)
	if !ok {
		return workflow.Decision{}, unexpected(wf, action)
	}
	if md.Decision != nil {
		return *md.Decision, nil
	}
	return b.deps.Decider.Decide(ctx, wf)
}

// complete moves wf to its terminal state with dec and the completion
// webhooks.
func complete(ctx context.Context, wf workflow.Workflow, state workflow.State, dec workflow.Decision) workflow.Outcome {
	wf.State = state
	wf.Decision = &dec
	now := requestcontext.Now(ctx)

	done := webhook.NewEvent(webhook.KindOnboardingCompleted, wf.TenantID, wf.ID, wf.ScopedVaultID, now)
	done.Status = dec.Status()
	hooks := []webhook.Event{done}
	if dec.CreateManualReview {
		review := webhook.NewEvent(webhook.KindManualReviewCreated, wf.TenantID, wf.ID, wf.ScopedVaultID, now)
		review.Status = dec.Status()
		hooks = append(hooks, review)
	}
	return workflow.Outcome{Workflow: wf, Webhooks: hooks}
}

func unexpected(wf workflow.Workflow, action workflow.Action) error {
	return dErrors.New(dErrors.CodeAssertion,
		fmt.Sprintf("%s handler has no body for %s in %s", wf.Kind, action.Kind(), wf.State))
}
