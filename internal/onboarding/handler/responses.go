package handler

import (
	"time"

	"idv/internal/document"
	"idv/internal/rules"
	"idv/internal/workflow"
)

// WorkflowResponse is a workflow as clients see it.
type WorkflowResponse struct {
	ID                string            `json:"id"`
	ScopedVaultID     string            `json:"scoped_vault_id"`
	PlaybookID        string            `json:"playbook_id"`
	Kind              string            `json:"kind"`
	State             string            `json:"state"`
	IsSandbox         bool              `json:"is_sandbox"`
	IsRedo            bool              `json:"is_redo"`
	DocumentCollected bool              `json:"document_collected"`
	Decision          *DecisionResponse `json:"decision,omitempty"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

type DecisionResponse struct {
	Status             string `json:"status"`
	Kind               string `json:"kind"`
	Action             string `json:"action,omitempty"`
	CreateManualReview bool   `json:"create_manual_review"`
	ShouldCommit       bool   `json:"should_commit"`
	RuleSetResultID    string `json:"rule_set_result_id,omitempty"`
}

func FromWorkflow(wf workflow.Workflow) WorkflowResponse {
	resp := WorkflowResponse{
		ID:                wf.ID.String(),
		ScopedVaultID:     wf.ScopedVaultID.String(),
		PlaybookID:        wf.PlaybookID.String(),
		Kind:              string(wf.Kind),
		State:             string(wf.State),
		IsSandbox:         wf.IsSandbox,
		IsRedo:            wf.IsRedo,
		DocumentCollected: wf.DocumentCollected,
		CreatedAt:         wf.CreatedAt,
		UpdatedAt:         wf.UpdatedAt,
	}
	if d := wf.Decision; d != nil {
		resp.Decision = &DecisionResponse{
			Status:             d.Status(),
			Kind:               string(d.Kind),
			CreateManualReview: d.CreateManualReview,
			ShouldCommit:       d.ShouldCommit,
		}
		if d.Action != nil {
			resp.Decision.Action = d.Action.String()
		}
		if !d.RuleSetResultID.IsNil() {
			resp.Decision.RuleSetResultID = d.RuleSetResultID.String()
		}
	}
	return resp
}

type EventResponse struct {
	FromState string    `json:"from_state"`
	ToState   string    `json:"to_state"`
	Action    string    `json:"action"`
	CreatedAt time.Time `json:"created_at"`
}

func FromEvents(events []workflow.Event) []EventResponse {
	out := make([]EventResponse, len(events))
	for i, e := range events {
		out[i] = EventResponse{
			FromState: string(e.FromState),
			ToState:   string(e.ToState),
			Action:    string(e.Action),
			CreatedAt: e.CreatedAt,
		}
	}
	return out
}

type DocumentResponse struct {
	ID            string   `json:"id"`
	DocumentType  string   `json:"document_type"`
	CountryCode   string   `json:"country_code"`
	CollectSelfie bool     `json:"collect_selfie"`
	Uploaded      []string `json:"uploaded"`
}

func FromDocument(doc document.IdentityDocument) DocumentResponse {
	uploaded := []string{}
	for _, side := range []document.Side{document.SideFront, document.SideBack, document.SideSelfie} {
		if doc.Locator(side) != nil {
			uploaded = append(uploaded, string(side))
		}
	}
	return DocumentResponse{
		ID:            doc.ID.String(),
		DocumentType:  string(doc.DocumentType),
		CountryCode:   doc.CountryCode,
		CollectSelfie: doc.CollectSelfie,
		Uploaded:      uploaded,
	}
}

// VerifyResponse reports where verification stopped. Workflow is set when
// a completed document moved the workflow on.
type VerifyResponse struct {
	Status         string            `json:"status"`
	NextSide       string            `json:"next_side,omitempty"`
	FailureReasons []string          `json:"failure_reasons,omitempty"`
	Workflow       *WorkflowResponse `json:"workflow,omitempty"`
}

func FromOutcome(out document.Outcome) VerifyResponse {
	resp := VerifyResponse{Status: string(out.Status), NextSide: string(out.NextSide)}
	for _, r := range out.FailureReasons {
		resp.FailureReasons = append(resp.FailureReasons, string(r))
	}
	return resp
}

type EvaluationResponse struct {
	Action string   `json:"action"`
	Fired  []string `json:"fired"`
	Shadow []string `json:"shadow_fired,omitempty"`
}

type PreviewResponse struct {
	Active    EvaluationResponse `json:"active"`
	Candidate EvaluationResponse `json:"candidate"`
}

func FromEvaluation(e rules.Evaluation) EvaluationResponse {
	resp := EvaluationResponse{Action: "pass", Fired: []string{}}
	if e.Action != nil {
		resp.Action = e.Action.String()
	}
	for _, r := range e.Results {
		if !r.Fired {
			continue
		}
		if r.Rule.IsShadow {
			resp.Shadow = append(resp.Shadow, r.Rule.Name)
			continue
		}
		resp.Fired = append(resp.Fired, r.Rule.Name)
	}
	return resp
}
