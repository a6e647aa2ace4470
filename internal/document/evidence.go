package document

import (
	"context"
	"fmt"
	"time"

	id "idv/pkg/domain"
	dErrors "idv/pkg/domain-errors"

	"idv/internal/vault"
)

// IdentityDocument is the evidence a user submitted. Image bytes live in the
// vault; the record only holds locators.
type IdentityDocument struct {
	ID            id.IdentityDocumentID
	ScopedVaultID id.ScopedVaultID
	DocumentType  DocumentType
	CountryCode   string
	CollectSelfie bool
	FrontLocator  *vault.Locator
	BackLocator   *vault.Locator
	SelfieLocator *vault.Locator
	CreatedAt     time.Time
}

// NewIdentityDocument validates and builds a document record with no images.
func NewIdentityDocument(vaultID id.ScopedVaultID, docType DocumentType, countryCode string, collectSelfie bool, now time.Time) (IdentityDocument, error) {
	if !docType.IsKnown() {
		return IdentityDocument{}, dErrors.Newf(dErrors.CodeInvalidInput, "unknown document type %q", docType)
	}
	if len(countryCode) != 2 {
		return IdentityDocument{}, dErrors.New(dErrors.CodeInvalidInput, "country code must be ISO 3166-1 alpha-2")
	}
	return IdentityDocument{
		ID:            id.NewIdentityDocumentID(),
		ScopedVaultID: vaultID,
		DocumentType:  docType,
		CountryCode:   countryCode,
		CollectSelfie: collectSelfie,
		CreatedAt:     now,
	}, nil
}

// Locator returns the stored image for side, or nil.
func (d IdentityDocument) Locator(side Side) *vault.Locator {
	switch side {
	case SideFront:
		return d.FrontLocator
	case SideBack:
		return d.BackLocator
	case SideSelfie:
		return d.SelfieLocator
	}
	return nil
}

func (d *IdentityDocument) setLocator(side Side, loc *vault.Locator) {
	switch side {
	case SideFront:
		d.FrontLocator = loc
	case SideBack:
		d.BackLocator = loc
	case SideSelfie:
		d.SelfieLocator = loc
	}
}

// EvidenceStore persists identity document records.
type EvidenceStore interface {
	CreateDocument(ctx context.Context, doc IdentityDocument) error
	GetDocument(ctx context.Context, docID id.IdentityDocumentID) (IdentityDocument, error)
	// SetSide points side at loc. A nil loc clears the image so the side
	// is collected again.
	SetSide(ctx context.Context, docID id.IdentityDocumentID, side Side, loc *vault.Locator) error
}

// Upload stores image in the vault and attaches it to the document.
func Upload(ctx context.Context, v vault.Vault, store EvidenceStore, doc IdentityDocument, side Side, image []byte) (vault.Locator, error) {
	if len(image) == 0 {
		return "", dErrors.New(dErrors.CodeInvalidInput, "image is empty")
	}
	if side == SideBack && doc.DocumentType.IsSingleSided() {
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "%s has no back side", doc.DocumentType)
	}
	if side == SideSelfie && !doc.CollectSelfie {
		return "", dErrors.New(dErrors.CodeInvalidInput, "selfie is not collected for this document")
	}
	loc, err := v.Store(ctx, doc.ScopedVaultID, image)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to store image")
	}
	if err := store.SetSide(ctx, doc.ID, side, &loc); err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, fmt.Sprintf("failed to attach %s image", side))
	}
	return loc, nil
}
