package handler

import (
	"strings"

	id "idv/pkg/domain"
	dErrors "idv/pkg/domain-errors"

	"idv/internal/document"
	"idv/internal/vault"
	"idv/internal/workflow"
)

const maxVaultFields = 64

// CreateWorkflowRequest is the body of POST /v1/workflows.
type CreateWorkflowRequest struct {
	Kind          string `json:"kind"`
	PlaybookID    string `json:"playbook_id"`
	ScopedVaultID string `json:"scoped_vault_id,omitempty"`
	IsSandbox     bool   `json:"is_sandbox,omitempty"`
	IsRedo        bool   `json:"is_redo,omitempty"`
	// Data is written to the vault before the workflow starts. Keys are
	// data identifiers such as "id.first_name".
	Data map[string]string `json:"data,omitempty"`

	kind       workflow.Kind
	playbookID id.PlaybookID
	vaultID    id.ScopedVaultID
	data       map[vault.DataIdentifier]string
}

func (r *CreateWorkflowRequest) Validate() error {
	r.kind = workflow.Kind(strings.TrimSpace(r.Kind))
	if _, ok := r.kind.InitialState(); !ok {
		return dErrors.Newf(dErrors.CodeValidation, "unknown workflow kind %q", r.Kind)
	}

	playbookID, err := id.ParsePlaybookID(strings.TrimSpace(r.PlaybookID))
	if err != nil || playbookID.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "playbook_id must be a uuid")
	}
	r.playbookID = playbookID

	if v := strings.TrimSpace(r.ScopedVaultID); v != "" {
		if r.vaultID, err = id.ParseScopedVaultID(v); err != nil {
			return dErrors.New(dErrors.CodeValidation, "scoped_vault_id must be a uuid")
		}
	} else {
		if r.IsRedo {
			return dErrors.New(dErrors.CodeValidation, "a redo needs the scoped_vault_id of the earlier run")
		}
		r.vaultID = id.NewScopedVaultID()
	}

	if len(r.Data) > maxVaultFields {
		return dErrors.Newf(dErrors.CodeValidation, "data has more than %d fields", maxVaultFields)
	}
	r.data = make(map[vault.DataIdentifier]string, len(r.Data))
	for k, v := range r.Data {
		k = strings.TrimSpace(k)
		if k == "" {
			return dErrors.New(dErrors.CodeValidation, "data keys must not be empty")
		}
		r.data[vault.DataIdentifier(k)] = v
	}
	return nil
}

// ActionRequest is the body of POST /v1/workflows/{id}/actions. Vendor
// calls and decisioning follow automatically and cannot be sent.
type ActionRequest struct {
	Action     string `json:"action"`
	DocumentID string `json:"document_id,omitempty"`

	action workflow.Action
}

func (r *ActionRequest) Validate() error {
	switch workflow.ActionKind(strings.TrimSpace(r.Action)) {
	case workflow.ActionAuthorize:
		r.action = workflow.Authorize{}
	case workflow.ActionBoKycCompleted:
		r.action = workflow.BoKycCompleted{}
	case workflow.ActionDocCollected:
		docID, err := id.ParseIdentityDocumentID(strings.TrimSpace(r.DocumentID))
		if err != nil || docID.IsNil() {
			return dErrors.New(dErrors.CodeValidation, "document_id must be a uuid")
		}
		r.action = workflow.DocCollected{DocumentID: docID}
	default:
		return dErrors.Newf(dErrors.CodeValidation, "action %q cannot be sent by clients", r.Action)
	}
	return nil
}

// CreateDocumentRequest is the body of POST /v1/workflows/{id}/documents.
type CreateDocumentRequest struct {
	DocumentType  string `json:"document_type"`
	CountryCode   string `json:"country_code"`
	CollectSelfie bool   `json:"collect_selfie,omitempty"`
}

func (r *CreateDocumentRequest) Validate() error {
	r.DocumentType = strings.TrimSpace(r.DocumentType)
	if !document.DocumentType(r.DocumentType).IsKnown() {
		return dErrors.Newf(dErrors.CodeValidation, "unknown document_type %q", r.DocumentType)
	}
	r.CountryCode = strings.ToUpper(strings.TrimSpace(r.CountryCode))
	if len(r.CountryCode) != 2 {
		return dErrors.New(dErrors.CodeValidation, "country_code must be ISO 3166-1 alpha-2")
	}
	return nil
}
