package document

import (
	"context"

	id "idv/pkg/domain"
	dErrors "idv/pkg/domain-errors"
	"idv/pkg/requestcontext"
)

// Service takes evidence in and runs the Machine over it.
type Service struct {
	deps    Deps
	sandbox VendorClient
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithSandboxVendor answers sandbox runs. Without it sandbox runs use the
// live vendor from Deps.
func WithSandboxVendor(c VendorClient) ServiceOption {
	return func(s *Service) { s.sandbox = c }
}

func NewService(deps Deps, opts ...ServiceOption) *Service {
	s := &Service{deps: deps}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateDocument records a document with no images yet.
func (s *Service) CreateDocument(ctx context.Context, vaultID id.ScopedVaultID, docType DocumentType, countryCode string, collectSelfie bool) (IdentityDocument, error) {
	if vaultID.IsNil() {
		return IdentityDocument{}, dErrors.New(dErrors.CodeInvalidInput, "scoped vault is required")
	}
	doc, err := NewIdentityDocument(vaultID, docType, countryCode, collectSelfie, requestcontext.Now(ctx))
	if err != nil {
		return IdentityDocument{}, err
	}
	if err := s.deps.Evidence.CreateDocument(ctx, doc); err != nil {
		return IdentityDocument{}, storeError(err, "failed to create identity document")
	}
	return doc, nil
}

func (s *Service) GetDocument(ctx context.Context, docID id.IdentityDocumentID) (IdentityDocument, error) {
	doc, err := s.deps.Evidence.GetDocument(ctx, docID)
	if err != nil {
		return IdentityDocument{}, storeError(err, "failed to load identity document")
	}
	return doc, nil
}

// UploadSide stores image on the document. A repeated upload replaces the
// side, which is how a RetryUpload is answered.
func (s *Service) UploadSide(ctx context.Context, docID id.IdentityDocumentID, side Side, image []byte) (IdentityDocument, error) {
	doc, err := s.GetDocument(ctx, docID)
	if err != nil {
		return IdentityDocument{}, err
	}
	loc, err := Upload(ctx, s.deps.Vault, s.deps.Evidence, doc, side, image)
	if err != nil {
		return IdentityDocument{}, err
	}
	doc.setLocator(side, &loc)
	return doc, nil
}

// Verify advances the document's session as far as the uploaded sides
// allow. Sandbox runs use the sandbox vendor when one is configured.
func (s *Service) Verify(ctx context.Context, req Request, sandbox bool) (Outcome, error) {
	deps := s.deps
	if sandbox && s.sandbox != nil {
		deps.Vendor = s.sandbox
	}
	m, err := New(deps, req)
	if err != nil {
		return Outcome{}, err
	}
	return m.Run(ctx)
}
