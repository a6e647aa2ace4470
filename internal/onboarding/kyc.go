package onboarding

import (
	"context"

	dErrors "idv/pkg/domain-errors"

	"idv/internal/workflow"
)

// KycHandler runs person onboarding:
//
//	DataCollection -> [DocCollection] -> VendorCalls -> Decisioning -> Complete
//
// A step-up decision sends Decisioning back to DocCollection.
type KycHandler struct {
	*base
}

func (h *KycHandler) Transition(ctx context.Context, wf workflow.Workflow, action workflow.Action) (workflow.Outcome, error) {
	switch wf.State {
	case workflow.KycDataCollection:
		return h.authorize(ctx, wf)

	case workflow.KycDocCollection:
		dc, ok := action.(workflow.DocCollected)
		if !ok {
			return workflow.Outcome{}, unexpected(wf, action)
		}
		if dc.DocumentID.IsNil() {
			return workflow.Outcome{}, dErrors.New(dErrors.CodeInvalidInput, "collected document id is required")
		}
		wf.DocumentCollected = true
		wf.State = workflow.KycVendorCalls
		return workflow.Outcome{Workflow: wf}, nil

	case workflow.KycVendorCalls:
		if err := h.vendorCalls(ctx, wf); err != nil {
			return workflow.Outcome{}, err
		}
		wf.State = workflow.KycDecisioning
		return workflow.Outcome{Workflow: wf}, nil

	case workflow.KycDecisioning:
		dec, err := h.decide(ctx, wf, action)
		if err != nil {
			return workflow.Outcome{}, err
		}
		if dec.Action != nil && dec.Action.IsStepUp() {
			h.deps.Logger.InfoContext(ctx, "step-up requested",
				"workflow_id", wf.ID.String(),
				"step_up", string(dec.Action.StepUp),
			)
			wf.State = workflow.KycDocCollection
			wf.Decision = &dec
			return workflow.Outcome{Workflow: wf}, nil
		}
		return complete(ctx, wf, workflow.KycComplete, dec), nil
	}
	return workflow.Outcome{}, unexpected(wf, action)
}

// authorize picks the first state after data collection. A redo with
// prior KYC results goes straight to decisioning.
func (h *KycHandler) authorize(ctx context.Context, wf workflow.Workflow) (workflow.Outcome, error) {
	cfg, err := h.config(ctx, wf)
	if err != nil {
		return workflow.Outcome{}, err
	}

	if wf.IsRedo {
		prior, err := h.hasPriorResults(ctx, wf, h.deps.KycChain)
		if err != nil {
			return workflow.Outcome{}, err
		}
		if prior {
			wf.State = workflow.KycDecisioning
			return workflow.Outcome{Workflow: wf}, nil
		}
	}

	switch {
	case cfg.RequestsDocument():
		wf.State = workflow.KycDocCollection
	case cfg.SkipKyc && !h.needsAml(wf, cfg):
		wf.State = workflow.KycDecisioning
	default:
		wf.State = workflow.KycVendorCalls
	}
	return workflow.Outcome{Workflow: wf}, nil
}

func (h *KycHandler) vendorCalls(ctx context.Context, wf workflow.Workflow) error {
	cfg, err := h.config(ctx, wf)
	if err != nil {
		return err
	}
	if !cfg.SkipKyc {
		if err := h.runChain(ctx, wf, h.deps.KycChain, personFields); err != nil {
			return err
		}
	}
	if h.needsAml(wf, cfg) {
		return h.runChain(ctx, wf, amlChain, personFields)
	}
	return nil
}

func (h *KycHandler) AutoFollow(wf workflow.Workflow) workflow.Action {
	switch wf.State {
	case workflow.KycVendorCalls:
		return workflow.MakeVendorCalls{}
	case workflow.KycDecisioning:
		return workflow.MakeDecision{}
	}
	return nil
}
