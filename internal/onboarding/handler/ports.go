package handler

import (
	"context"

	id "idv/pkg/domain"

	"idv/internal/document"
	"idv/internal/workflow"
)

// Engine runs onboarding workflows.
type Engine interface {
	Start(ctx context.Context, wf workflow.Workflow) error
	Get(ctx context.Context, workflowID id.WorkflowID) (workflow.Workflow, error)
	Events(ctx context.Context, workflowID id.WorkflowID) ([]workflow.Event, error)
	Run(ctx context.Context, workflowID id.WorkflowID, action workflow.Action) (workflow.Workflow, error)
}

// Documents takes identity documents in and verifies them.
type Documents interface {
	CreateDocument(ctx context.Context, vaultID id.ScopedVaultID, docType document.DocumentType, countryCode string, collectSelfie bool) (document.IdentityDocument, error)
	GetDocument(ctx context.Context, docID id.IdentityDocumentID) (document.IdentityDocument, error)
	UploadSide(ctx context.Context, docID id.IdentityDocumentID, side document.Side, image []byte) (document.IdentityDocument, error)
	Verify(ctx context.Context, req document.Request, sandbox bool) (document.Outcome, error)
}
