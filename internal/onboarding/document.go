package onboarding

import (
	"context"

	dErrors "idv/pkg/domain-errors"

	"idv/internal/workflow"
)

// DocumentHandler runs document-only onboarding. The document machine runs
// outside the workflow; DocCollected arrives once it completed.
type DocumentHandler struct {
	*base
}

func (h *DocumentHandler) Transition(ctx context.Context, wf workflow.Workflow, action workflow.Action) (workflow.Outcome, error) {
	switch wf.State {
	case workflow.DocumentDataCollection:
		dc, ok := action.(workflow.DocCollected)
		if !ok {
			return workflow.Outcome{}, unexpected(wf, action)
		}
		if dc.DocumentID.IsNil() {
			return workflow.Outcome{}, dErrors.New(dErrors.CodeInvalidInput, "collected document id is required")
		}
		wf.DocumentCollected = true
		wf.State = workflow.DocumentDecisioning
		return workflow.Outcome{Workflow: wf}, nil

	case workflow.DocumentDecisioning:
		dec, err := h.decide(ctx, wf, action)
		if err != nil {
			return workflow.Outcome{}, err
		}
		return complete(ctx, wf, workflow.DocumentComplete, dec), nil
	}
	return workflow.Outcome{}, unexpected(wf, action)
}

func (h *DocumentHandler) AutoFollow(wf workflow.Workflow) workflow.Action {
	if wf.State == workflow.DocumentDecisioning {
		return workflow.MakeDecision{}
	}
	return nil
}
