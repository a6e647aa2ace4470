package onboarding

import (
	"context"

	"idv/internal/workflow"
)

// KybHandler runs business onboarding. Beneficial owners finish their own
// KYC workflows before BoKycCompleted arrives.
type KybHandler struct {
	*base
}

func (h *KybHandler) Transition(ctx context.Context, wf workflow.Workflow, action workflow.Action) (workflow.Outcome, error) {
	switch wf.State {
	case workflow.KybDataCollection:
		wf.State = workflow.KybAwaitingBoKyc
		return workflow.Outcome{Workflow: wf}, nil

	case workflow.KybAwaitingBoKyc:
		wf.State = workflow.KybVendorCalls
		return workflow.Outcome{Workflow: wf}, nil

	case workflow.KybVendorCalls:
		cfg, err := h.config(ctx, wf)
		if err != nil {
			return workflow.Outcome{}, err
		}
		if !cfg.SkipKyb {
			if err := h.runChain(ctx, wf, kybChain, businessFields); err != nil {
				return workflow.Outcome{}, err
			}
		}
		if h.needsAml(wf, cfg) {
			if err := h.runChain(ctx, wf, amlChain, businessFields); err != nil {
				return workflow.Outcome{}, err
			}
		}
		wf.State = workflow.KybDecisioning
		return workflow.Outcome{Workflow: wf}, nil

	case workflow.KybDecisioning:
		// Kyb has no step-up path; a step-up completes with that status.
		dec, err := h.decide(ctx, wf, action)
		if err != nil {
			return workflow.Outcome{}, err
		}
		return complete(ctx, wf, workflow.KybComplete, dec), nil
	}
	return workflow.Outcome{}, unexpected(wf, action)
}

func (h *KybHandler) AutoFollow(wf workflow.Workflow) workflow.Action {
	switch wf.State {
	case workflow.KybVendorCalls:
		return workflow.MakeVendorCalls{}
	case workflow.KybDecisioning:
		return workflow.MakeDecision{}
	}
	return nil
}
